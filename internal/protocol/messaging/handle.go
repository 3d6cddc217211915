package messaging

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/drhuangmht/owlnest/internal/protoerr"
)

// Handle is a cheap, clonable value applications use to talk to a running
// Behaviour. It carries only a send end of the command channel; all state
// lives in the Behaviour's actor goroutine.
type Handle struct {
	cmds    chan<- any
	timeout time.Duration
}

// HandleFrom returns a Handle bound to b's command channel. Behaviour does
// not expose its channel field directly so callers cannot bypass it.
func HandleFrom(b *Behaviour) Handle {
	return Handle{cmds: b.cmds, timeout: b.timeout}
}

// SendMessage dispatches msg to peerID and blocks until the frame has been
// written to the outbound stream (no reply from the remote is awaited), the
// peer is found to be disconnected, or the per-protocol timeout elapses.
func (h Handle) SendMessage(peerID peer.ID, msg Message) (time.Duration, error) {
	callback := make(chan sendResult, 1)
	h.cmds <- sendCmd{peer: peerID, msg: msg, callback: callback}

	select {
	case res := <-callback:
		return res.rtt, res.err
	case <-time.After(h.timeout):
		return 0, protoerr.ErrTimeout
	}
}

// ListConnected returns every peer the host currently has a connection to,
// whether or not that peer supports this protocol.
func (h Handle) ListConnected() []peer.ID {
	callback := make(chan []peer.ID, 1)
	h.cmds <- listConnectedCmd{callback: callback}
	return <-callback
}
