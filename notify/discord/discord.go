// Package discord sends outcome messages as Discord direct messages
// through the REST API using a bot token.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/absenlab/absen/errors"
	"github.com/absenlab/absen/internal/httpclient"
	"github.com/absenlab/absen/notify"
)

const defaultAPIBase = "https://discord.com/api/v10"

// Notifier implements notify.Notifier over Discord's REST API. Sending a
// DM takes two calls: open (or reuse) the DM channel for the user, then
// post the message to that channel. Channel ids are cached per user.
type Notifier struct {
	client  *httpclient.Client
	apiBase string
	token   string

	mu       sync.Mutex
	channels map[string]string // user id -> DM channel id
}

// Option adjusts a Notifier. Used by tests to point at a local server.
type Option func(*Notifier)

// WithAPIBase overrides the Discord API base URL.
func WithAPIBase(base string) Option {
	return func(n *Notifier) { n.apiBase = strings.TrimRight(base, "/") }
}

// WithClient overrides the HTTP client.
func WithClient(c *httpclient.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// New creates a Discord notifier for the given bot token.
func New(token string, opts ...Option) *Notifier {
	n := &Notifier{
		client:   httpclient.New(15 * time.Second),
		apiBase:  defaultAPIBase,
		token:    token,
		channels: make(map[string]string),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the channel this notifier serves.
func (n *Notifier) Name() notify.Channel {
	return notify.ChannelDiscord
}

// Send delivers text as a DM to the user id in target.Address.
func (n *Notifier) Send(ctx context.Context, target notify.Target, text string) error {
	if target.Address == "" {
		return errors.New("discord target has empty user id")
	}

	channelID, err := n.dmChannel(ctx, target.Address)
	if err != nil {
		return errors.Wrap(err, "open DM channel")
	}

	payload := map[string]string{"content": text}
	var resp struct {
		ID string `json:"id"`
	}
	if err := n.post(ctx, fmt.Sprintf("/channels/%s/messages", channelID), payload, &resp); err != nil {
		// The cached channel may have gone stale; drop it so the next
		// send reopens the DM.
		n.mu.Lock()
		delete(n.channels, target.Address)
		n.mu.Unlock()
		return errors.Wrap(err, "post message")
	}
	return nil
}

func (n *Notifier) dmChannel(ctx context.Context, userID string) (string, error) {
	n.mu.Lock()
	if id, ok := n.channels[userID]; ok {
		n.mu.Unlock()
		return id, nil
	}
	n.mu.Unlock()

	payload := map[string]string{"recipient_id": userID}
	var resp struct {
		ID string `json:"id"`
	}
	if err := n.post(ctx, "/users/@me/channels", payload, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("DM channel response missing id")
	}

	n.mu.Lock()
	n.channels[userID] = resp.ID
	n.mu.Unlock()
	return resp.ID, nil
}

func (n *Notifier) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiBase+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bot "+n.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("discord API status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}
