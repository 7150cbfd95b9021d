// Package bot runs the Telegram command bot: users pause and resume
// their own automation, check today's status, and enroll new accounts,
// all from the chat the daemon already notifies them in.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/absenlab/absen/errors"
	"github.com/absenlab/absen/internal/httpclient"
	"github.com/absenlab/absen/schedule"
	"github.com/absenlab/absen/state"
)

const defaultAPIBase = "https://api.telegram.org"

// longPollSeconds is passed to getUpdates; Telegram holds the request
// open up to this long, so the HTTP timeout must exceed it.
const longPollSeconds = 30

// Handler executes one chat command and returns the reply text.
type Handler func(ctx context.Context, req Request) (string, error)

// Request is one parsed incoming command.
type Request struct {
	ChatID   string
	Username string // resolved from the chat id; "" if unknown
	Args     string // text after the command word
}

// Resolver maps a Telegram chat id to the configured username.
type Resolver func(chatID string) (string, bool)

// ScheduleLookup returns a user's parsed schedule; /pauseonce needs it
// to name the class being skipped.
type ScheduleLookup func(username string) (schedule.Set, bool)

// Bot long-polls Telegram and dispatches commands.
type Bot struct {
	client  *httpclient.Client
	apiBase string
	token   string

	store      *state.Store
	resolve    Resolver
	schedules  ScheduleLookup
	configPath string // where /setup persists new users
	log        *zap.SugaredLogger
	now        func() time.Time

	mu       sync.Mutex
	handlers map[string]Handler
	setups   map[string]*setupFlow
	offset   int64
}

// Option adjusts a Bot.
type Option func(*Bot)

// WithAPIBase overrides the Telegram API base URL.
func WithAPIBase(base string) Option {
	return func(b *Bot) { b.apiBase = strings.TrimRight(base, "/") }
}

// WithClient overrides the HTTP client.
func WithClient(c *httpclient.Client) Option {
	return func(b *Bot) { b.client = c }
}

// WithClock overrides time lookup. Tests pin next-class queries with it.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// New creates a bot with the built-in command set registered.
func New(token string, store *state.Store, resolve Resolver, schedules ScheduleLookup, configPath string, log *zap.SugaredLogger, opts ...Option) *Bot {
	b := &Bot{
		client:     httpclient.New((longPollSeconds + 10) * time.Second),
		apiBase:    defaultAPIBase,
		token:      token,
		store:      store,
		resolve:    resolve,
		schedules:  schedules,
		configPath: configPath,
		log:        log.Named("bot"),
		now:        time.Now,
		handlers:   make(map[string]Handler),
		setups:     make(map[string]*setupFlow),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.registerBuiltins()
	return b
}

// register adds a command handler. Panics if the command is already
// registered; duplicates are programmer error, not runtime state.
func (b *Bot) register(command string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[command]; exists {
		panic(fmt.Sprintf("handler already registered for command: %s", command))
	}
	b.handlers[command] = h
}

// Run polls for updates until the context ends.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Infow("Bot started")
	for {
		select {
		case <-ctx.Done():
			b.log.Infow("Bot stopped")
			return nil
		default:
		}

		updates, err := b.getUpdates(ctx)
		if err != nil {
			if errors.IsAny(err, context.Canceled, context.DeadlineExceeded) {
				continue
			}
			b.log.Warnw("getUpdates failed, backing off", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, upd := range updates {
			b.advanceOffset(upd.UpdateID)
			if upd.Message == nil || upd.Message.Text == "" {
				continue
			}
			b.handleMessage(ctx, strconv.FormatInt(upd.Message.Chat.ID, 10), upd.Message.Text)
		}
	}
}

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	Text string `json:"text"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

func (b *Bot) advanceOffset(updateID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if updateID >= b.offset {
		b.offset = updateID + 1
	}
}

func (b *Bot) getUpdates(ctx context.Context) ([]update, error) {
	b.mu.Lock()
	offset := b.offset
	b.mu.Unlock()

	q := url.Values{}
	q.Set("timeout", strconv.Itoa(longPollSeconds))
	if offset > 0 {
		q.Set("offset", strconv.FormatInt(offset, 10))
	}

	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", b.apiBase, b.token, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build getUpdates request")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "getUpdates")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read getUpdates response")
	}

	var parsed struct {
		OK          bool     `json:"ok"`
		Description string   `json:"description"`
		Result      []update `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrapf(err, "decode getUpdates response (status %d)", resp.StatusCode)
	}
	if !parsed.OK {
		return nil, errors.Newf("telegram API error: %s", parsed.Description)
	}
	return parsed.Result, nil
}

// handleMessage routes one incoming message: an active setup flow eats
// everything, then slash commands, then a gentle hint.
func (b *Bot) handleMessage(ctx context.Context, chatID, text string) {
	text = strings.TrimSpace(text)

	if b.setupActive(chatID) && !strings.HasPrefix(text, "/") {
		reply := b.advanceSetup(ctx, chatID, text)
		b.reply(ctx, chatID, reply)
		return
	}

	if !strings.HasPrefix(text, "/") {
		b.reply(ctx, chatID, "Send /help to see what I can do.")
		return
	}

	command, args, _ := strings.Cut(text, " ")
	// Accept the /cmd@BotName form groups produce.
	if at := strings.Index(command, "@"); at != -1 {
		command = command[:at]
	}
	command = strings.ToLower(command)

	b.mu.Lock()
	handler, ok := b.handlers[command]
	b.mu.Unlock()
	if !ok {
		b.reply(ctx, chatID, fmt.Sprintf("Unknown command %s. Send /help.", command))
		return
	}

	req := Request{ChatID: chatID, Args: strings.TrimSpace(args)}
	if b.resolve != nil {
		req.Username, _ = b.resolve(chatID)
	}

	reply, err := handler(ctx, req)
	if err != nil {
		b.log.Warnw("Command failed", "command", command, "chat", chatID, "error", err)
		reply = "Something went wrong handling that command."
	}
	b.reply(ctx, chatID, reply)
}

func (b *Bot) reply(ctx context.Context, chatID, text string) {
	if text == "" {
		return
	}
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", b.apiBase, b.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Warnw("Reply failed", "chat", chatID, "error", err)
		return
	}
	resp.Body.Close()
}
