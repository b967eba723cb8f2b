package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/medfolio/medfolio/internal/entitlement/domain"
)

// DefaultWatchInterval is the default interval between reachability polls.
const DefaultWatchInterval = 30 * time.Second

// Watcher polls the reachability probe and invokes a callback when the
// device transitions from offline to online, so pending local mutations are
// flushed explicitly instead of waiting for an incidental status check.
type Watcher struct {
	probe     domain.ConnectivityProbe
	interval  time.Duration
	onRegain  func(ctx context.Context)
	logger    *slog.Logger
	running   atomic.Bool
	connected atomic.Bool
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewWatcher creates a connectivity watcher.
func NewWatcher(probe domain.ConnectivityProbe, interval time.Duration, onRegain func(ctx context.Context), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watcher{
		probe:    probe,
		interval: interval,
		onRegain: onRegain,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Run polls until the context is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	w.running.Store(true)
	w.connected.Store(w.probe.IsConnected(ctx))
	w.logger.Info("connectivity watcher started",
		"interval", w.interval,
		"connected", w.connected.Load(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.running.Store(false)
			return ctx.Err()
		case <-w.stopCh:
			w.running.Store(false)
			return nil
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// Stop signals the watcher to stop gracefully. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// IsRunning reports whether the watcher loop is active.
func (w *Watcher) IsRunning() bool {
	return w.running.Load()
}

func (w *Watcher) poll(ctx context.Context) {
	was := w.connected.Load()
	now := w.probe.IsConnected(ctx)
	w.connected.Store(now)

	if !was && now {
		w.logger.Info("connectivity regained, flushing pending changes")
		if w.onRegain != nil {
			w.onRegain(ctx)
		}
	}
}
