package config

import (
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/absenlab/absen/errors"
	"github.com/absenlab/absen/logger"
)

// Watcher watches a config file and triggers reload callbacks. A change
// picks up new users and tuning on the next scheduler tick without
// restarting the daemon.
type Watcher struct {
	configPath     string
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	mu             sync.Mutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration

	ownWrite   bool // suppresses reloads for our own Save calls
	ownWriteMu sync.Mutex
}

// ReloadCallback receives the freshly loaded config.
type ReloadCallback func(*Config) error

// NewWatcher creates a watcher for the given config file.
func NewWatcher(configPath string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	if err := fsw.Add(configPath); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watch config file %s", configPath)
	}

	return &Watcher{
		configPath:     configPath,
		watcher:        fsw,
		debouncePeriod: 500 * time.Millisecond,
	}, nil
}

// OnReload registers a callback for config changes.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// MarkOwnWrite flags the next file event as self-inflicted.
func (w *Watcher) MarkOwnWrite() {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	w.ownWrite = true
}

func (w *Watcher) consumeOwnWrite() bool {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	if w.ownWrite {
		w.ownWrite = false
		return true
	}
	return false
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if isBackupFile(event.Name) {
				continue
			}
			if w.consumeOwnWrite() {
				logger.Debugw("Config watcher ignoring own write", "file", event.Name)
				continue
			}
			logger.Infow("Config file changed", "file", event.Name, "op", event.Op.String())
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		if err := w.reload(); err != nil {
			logger.Errorw("Config reload failed", "error", err)
		}
	})
}

func (w *Watcher) reload() error {
	Reset()
	cfg, err := Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "reloaded config invalid, keeping old settings")
	}

	w.mu.Lock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, cb := range callbacks {
		if err := cb(cfg); err != nil {
			logger.Warnw("Config reload callback failed", "error", err)
		}
	}
	return nil
}

func isBackupFile(name string) bool {
	return strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".swp")
}
