// Package notify delivers per-user outcome messages. Delivery is
// best-effort by contract: a failed notification is logged and dropped,
// never escalated into the attendance workflow's own result.
package notify

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Channel tags a notification transport. Targets declare their channel
// explicitly; there is no runtime type inspection anywhere in dispatch.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelDiscord  Channel = "discord"
)

// Target is where one user's messages go.
type Target struct {
	Channel Channel
	// Address is channel-specific: a Telegram chat id or a Discord user id.
	Address string
}

// Notifier sends a message to a single target over one transport.
type Notifier interface {
	// Name returns the channel this notifier serves.
	Name() Channel
	Send(ctx context.Context, target Target, text string) error
}

// Registry resolves targets to notifiers by declared channel.
// Thread-safe for concurrent lookup during a pass.
type Registry struct {
	notifiers map[Channel]Notifier
	mu        sync.RWMutex
}

// NewRegistry creates an empty notifier registry.
func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[Channel]Notifier)}
}

// Register adds a notifier for its channel.
// Panics if the channel is already registered.
func (r *Registry) Register(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := n.Name()
	if _, exists := r.notifiers[ch]; exists {
		panic(fmt.Sprintf("notifier already registered for channel: %s", ch))
	}
	r.notifiers[ch] = n
}

// Get retrieves the notifier for a channel, or nil.
func (r *Registry) Get(ch Channel) Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notifiers[ch]
}

// Channels returns all registered channel names.
func (r *Registry) Channels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chs := make([]Channel, 0, len(r.notifiers))
	for ch := range r.notifiers {
		chs = append(chs, ch)
	}
	return chs
}

// Dispatcher routes messages through the registry and absorbs failures.
type Dispatcher struct {
	registry *Registry
	logger   *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger.Named("notify")}
}

// Dispatch sends text to the target. Failures — unknown channel, transport
// errors — are logged and swallowed; the caller's outcome is already
// decided and must not change because a chat message bounced.
func (d *Dispatcher) Dispatch(ctx context.Context, target Target, text string) {
	n := d.registry.Get(target.Channel)
	if n == nil {
		d.logger.Warnw("No notifier for channel, dropping message",
			"channel", target.Channel,
			"address", target.Address)
		return
	}

	if err := n.Send(ctx, target, text); err != nil {
		d.logger.Warnw("Notification delivery failed",
			"channel", target.Channel,
			"address", target.Address,
			"error", err)
	}
}
