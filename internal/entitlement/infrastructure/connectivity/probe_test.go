package connectivity

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialProbeReachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	probe := NewDialProbe(listener.Addr().String(), time.Second, nil)
	assert.True(t, probe.IsConnected(context.Background()))
}

func TestDialProbeUnreachable(t *testing.T) {
	// Grab a free port and close it again so the dial is refused.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	probe := NewDialProbe(addr, 500*time.Millisecond, nil)
	assert.False(t, probe.IsConnected(context.Background()))
}

func TestDialProbeCancelledCallerDoesNotPoisonDial(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	probe := NewDialProbe(listener.Addr().String(), time.Second, nil)

	// The coalesced dial runs on its own deadline, so even a caller whose
	// context is already cancelled observes the real reachability instead
	// of failing the shared result for everyone.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, probe.IsConnected(ctx))
}

func TestStaticProbe(t *testing.T) {
	assert.True(t, (&StaticProbe{Connected: true}).IsConnected(context.Background()))
	assert.False(t, (&StaticProbe{}).IsConnected(context.Background()))
}
