package connectivity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// flipProbe is a switchable probe for watcher tests.
type flipProbe struct {
	mu        sync.Mutex
	connected bool
}

func (p *flipProbe) IsConnected(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *flipProbe) set(connected bool) {
	p.mu.Lock()
	p.connected = connected
	p.mu.Unlock()
}

func TestWatcherInvokesCallbackOnRegain(t *testing.T) {
	probe := &flipProbe{connected: false}
	regained := make(chan struct{}, 1)

	watcher := NewWatcher(probe, 10*time.Millisecond, func(ctx context.Context) {
		select {
		case regained <- struct{}{}:
		default:
		}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	// Let the watcher observe the offline baseline, then come back online.
	time.Sleep(30 * time.Millisecond)
	probe.set(true)

	select {
	case <-regained:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked after connectivity regain")
	}
}

func TestWatcherDoesNotFireWhileOnline(t *testing.T) {
	probe := &flipProbe{connected: true}
	fired := make(chan struct{}, 1)

	watcher := NewWatcher(probe, 10*time.Millisecond, func(ctx context.Context) {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	select {
	case <-fired:
		t.Fatal("callback fired without an offline-to-online transition")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcherStop(t *testing.T) {
	probe := &flipProbe{connected: true}
	watcher := NewWatcher(probe, 10*time.Millisecond, nil, nil)

	done := make(chan error, 1)
	go func() {
		done <- watcher.Run(context.Background())
	}()

	// Wait for the loop to come up before stopping it.
	deadline := time.Now().Add(time.Second)
	for !watcher.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	watcher.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.False(t, watcher.IsRunning())
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	probe := &flipProbe{connected: true}
	watcher := NewWatcher(probe, 10*time.Millisecond, nil, nil)

	done := make(chan error, 1)
	go func() {
		done <- watcher.Run(context.Background())
	}()

	deadline := time.Now().Add(time.Second)
	for !watcher.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// A second Stop, including one racing the loop's exit, must not panic.
	watcher.Stop()
	watcher.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	watcher.Stop()
}
