package node

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/drhuangmht/owlnest/internal/config"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	cfg := config.Default()
	cfg.ListenAddresses = []string{"/ip4/127.0.0.1/tcp/0"}
	n, err := New(cfg, Options{}, "test")
	if err != nil {
		t.Fatalf("creating node: %v", err)
	}
	return n
}

func TestNodeStartStop(t *testing.T) {
	n := newTestNode(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	if len(n.Host.Addrs()) == 0 {
		t.Fatal("expected host to have at least one listen address")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if err := n.Close(); err != nil {
		t.Fatalf("closing node: %v", err)
	}
}

func TestNodeTeardownLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t,
		// libp2p's resource manager and QUIC transport keep long-lived
		// background goroutines alive beyond a single host's Close; only the
		// goroutines this package itself starts are in scope here.
		goleak.IgnoreTopFunction("github.com/libp2p/go-libp2p/p2p/muxer/yamux.(*stream).readLoop"),
		goleak.IgnoreTopFunction("github.com/quic-go/quic-go.(*packetHandlerMap).listen"),
	)

	n := newTestNode(t)
	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	cancel()
	time.Sleep(200 * time.Millisecond)
	if err := n.Close(); err != nil {
		t.Fatalf("closing node: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
}
