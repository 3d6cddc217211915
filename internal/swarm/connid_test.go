package swarm

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

func TestConnTrackerAssignsAndForgetsIDs(t *testing.T) {
	a := newTestHost(t)
	b := newTestHost(t)

	tracker := NewConnTracker()
	a.Network().Notify(tracker)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Connect(ctx, peer.AddrInfo{ID: b.ID(), Addrs: b.Addrs()}); err != nil {
		t.Fatalf("connecting hosts: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	conns := a.Network().ConnsToPeer(b.ID())
	if len(conns) == 0 {
		t.Fatal("expected at least one connection to b")
	}
	id1 := tracker.IDFor(conns[0])
	id2 := tracker.IDFor(conns[0])
	if id1 != id2 {
		t.Fatalf("expected stable id across calls, got %s and %s", id1, id2)
	}

	a.Network().ClosePeer(b.ID())
	time.Sleep(100 * time.Millisecond)

	tracker.mu.Lock()
	_, stillTracked := tracker.ids[conns[0]]
	tracker.mu.Unlock()
	if stillTracked {
		t.Fatal("expected connection id forgotten after disconnect")
	}
}
