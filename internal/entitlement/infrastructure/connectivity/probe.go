// Package connectivity implements the network reachability probe consulted
// before any remote round trip.
package connectivity

import (
	"context"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/singleflight"
)

// DialProbe reports reachability by opening a TCP connection to a known
// endpoint. The probe is conservative: any dial failure or timeout reads as
// disconnected. Concurrent probes are coalesced into a single dial so a
// burst of entitlement calls doesn't fan out into a burst of dials.
type DialProbe struct {
	addr    string
	timeout time.Duration
	dialer  *net.Dialer
	group   singleflight.Group
	logger  *slog.Logger
}

// NewDialProbe creates a probe against addr (host:port).
func NewDialProbe(addr string, timeout time.Duration, logger *slog.Logger) *DialProbe {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &DialProbe{
		addr:    addr,
		timeout: timeout,
		dialer:  &net.Dialer{},
		logger:  logger,
	}
}

// IsConnected dials the probe endpoint within the bounded timeout.
func (p *DialProbe) IsConnected(ctx context.Context) bool {
	result, err, _ := p.group.Do(p.addr, func() (any, error) {
		// The dial is shared across coalesced callers, so it runs on its
		// own deadline rather than the first caller's context: a caller
		// arriving with a cancelled context must not fail the probe for
		// everyone waiting on the same key.
		dialCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		conn, err := p.dialer.DialContext(dialCtx, "tcp", p.addr)
		if err != nil {
			return false, nil
		}
		_ = conn.Close()
		return true, nil
	})
	if err != nil {
		return false
	}
	connected, ok := result.(bool)
	if !ok {
		return false
	}
	if !connected {
		p.logger.Debug("connectivity probe failed", "addr", p.addr)
	}
	return connected
}

// StaticProbe reports a fixed answer. Used in tests and in local mode where
// no billing backend is configured.
type StaticProbe struct {
	Connected bool
}

// IsConnected returns the configured answer.
func (p *StaticProbe) IsConnected(ctx context.Context) bool {
	return p.Connected
}
