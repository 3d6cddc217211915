package swarm

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	ma "github.com/multiformats/go-multiaddr"
)

func newTestHost(t *testing.T) host.Host {
	t.Helper()
	h, err := libp2p.New(
		libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"),
		libp2p.DisableRelay(),
	)
	if err != nil {
		t.Fatalf("creating libp2p host: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func startTask(t *testing.T, h host.Host, bufferSize int) (*Task, SwarmHandle) {
	t.Helper()
	bus := NewBroadcaster()
	task := NewTask(h, bus, bufferSize, 8, 50*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go task.Run(ctx)
	t.Cleanup(cancel)
	return task, task.Handle()
}

func TestDialAndListConnected(t *testing.T) {
	a := newTestHost(t)
	b := newTestHost(t)
	_, handleA := startTask(t, a, 16)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := handleA.Dial(ctx, b.ID(), b.Addrs()); err != nil {
		t.Fatalf("dial: %v", err)
	}

	connected := handleA.ListConnected()
	found := false
	for _, p := range connected {
		if p == b.ID() {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s in connected list, got %v", b.ID(), connected)
	}
	if !handleA.IsConnectedToPeerId(b.ID()) {
		t.Fatalf("expected IsConnectedToPeerId true for %s", b.ID())
	}
}

func TestDisconnect(t *testing.T) {
	a := newTestHost(t)
	b := newTestHost(t)
	_, handleA := startTask(t, a, 16)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := handleA.Dial(ctx, b.ID(), b.Addrs()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := handleA.DisconnectFromPeerId(b.ID()); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if handleA.IsConnectedToPeerId(b.ID()) {
		t.Fatalf("expected disconnected from %s", b.ID())
	}
}

func TestListenAddsListener(t *testing.T) {
	a := newTestHost(t)
	_, handleA := startTask(t, a, 16)

	before := len(handleA.ListListeners())
	addr, err := ma.NewMultiaddr("/ip4/127.0.0.1/tcp/0")
	if err != nil {
		t.Fatalf("parsing multiaddr: %v", err)
	}
	if err := handleA.Listen(addr); err != nil {
		t.Fatalf("listen: %v", err)
	}
	after := handleA.ListListeners()
	if len(after) <= before {
		t.Fatalf("expected additional listener, before=%d after=%d", before, len(after))
	}
}

func TestExternalAddressRoundTrip(t *testing.T) {
	a := newTestHost(t)
	_, handleA := startTask(t, a, 16)

	addr, err := ma.NewMultiaddr("/ip4/203.0.113.5/tcp/4242")
	if err != nil {
		t.Fatalf("parsing multiaddr: %v", err)
	}
	handleA.AddExternalAddress(addr)

	found := false
	for _, got := range handleA.ListExternalAddresses() {
		if got.Equal(addr) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s in external addresses", addr)
	}

	handleA.RemoveExternalAddress(addr)
	for _, got := range handleA.ListExternalAddresses() {
		if got.Equal(addr) {
			t.Fatalf("expected %s removed from external addresses", addr)
		}
	}
}
