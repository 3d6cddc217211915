package swarm

import (
	"sync"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/network"
	ma "github.com/multiformats/go-multiaddr"
)

// ConnID is an opaque, trace-only identifier for one network.Conn. It has
// no wire meaning; it exists purely to correlate log lines and metrics
// across a connection's lifetime, the same role network.ConnID plays
// inside go-libp2p itself (unexported, so unusable from outside the
// module).
type ConnID = uuid.UUID

// ConnTracker assigns a ConnID to every connection as it's established and
// forgets it on disconnect. It is installed as a network.Notifiee.
type ConnTracker struct {
	mu  sync.Mutex
	ids map[network.Conn]ConnID
}

// NewConnTracker returns an empty ConnTracker.
func NewConnTracker() *ConnTracker {
	return &ConnTracker{ids: make(map[network.Conn]ConnID)}
}

// IDFor returns the tracked ConnID for c, assigning a fresh one if c is not
// yet known (e.g. the notifee fired after this call raced it).
func (t *ConnTracker) IDFor(c network.Conn) ConnID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[c]; ok {
		return id
	}
	id := uuid.New()
	t.ids[c] = id
	return id
}

func (t *ConnTracker) Listen(network.Network, ma.Multiaddr)      {}
func (t *ConnTracker) ListenClose(network.Network, ma.Multiaddr) {}

func (t *ConnTracker) Connected(_ network.Network, c network.Conn) {
	t.mu.Lock()
	if _, ok := t.ids[c]; !ok {
		t.ids[c] = uuid.New()
	}
	t.mu.Unlock()
}

func (t *ConnTracker) Disconnected(_ network.Network, c network.Conn) {
	t.mu.Lock()
	delete(t.ids, c)
	t.mu.Unlock()
}
