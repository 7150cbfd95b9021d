// Package telegram sends outcome messages through the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/absenlab/absen/errors"
	"github.com/absenlab/absen/internal/httpclient"
	"github.com/absenlab/absen/notify"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram allows roughly 30 messages per second bot-wide. We stay well
// under that so a burst of simultaneous workflow results never trips 429s.
const sendsPerSecond = 5

// Notifier implements notify.Notifier over the Bot API sendMessage method.
type Notifier struct {
	client  *httpclient.Client
	limiter *rate.Limiter
	apiBase string
	token   string
}

// Option adjusts a Notifier. Used by tests to point at a local server.
type Option func(*Notifier)

// WithAPIBase overrides the Telegram API base URL.
func WithAPIBase(base string) Option {
	return func(n *Notifier) { n.apiBase = strings.TrimRight(base, "/") }
}

// WithClient overrides the HTTP client.
func WithClient(c *httpclient.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// New creates a Telegram notifier for the given bot token.
func New(token string, opts ...Option) *Notifier {
	n := &Notifier{
		client:  httpclient.New(15 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(sendsPerSecond), sendsPerSecond),
		apiBase: defaultAPIBase,
		token:   token,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the channel this notifier serves.
func (n *Notifier) Name() notify.Channel {
	return notify.ChannelTelegram
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Send delivers text to the chat id in target.Address.
func (n *Notifier) Send(ctx context.Context, target notify.Target, text string) error {
	if target.Address == "" {
		return errors.New("telegram target has empty chat id")
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter")
	}

	form := url.Values{}
	form.Set("chat_id", target.Address)
	form.Set("text", text)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "build sendMessage request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "sendMessage")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return errors.Wrap(err, "read sendMessage response")
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return errors.Wrapf(err, "decode sendMessage response (status %d)", resp.StatusCode)
	}
	if !parsed.OK {
		return errors.Newf("telegram API error %d: %s", parsed.ErrorCode, parsed.Description)
	}
	return nil
}
