package advertise

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/drhuangmht/owlnest/internal/protoerr"
	"github.com/drhuangmht/owlnest/internal/swarm"
)

// Handle is a cheap, clonable value applications use to drive a running
// advertise Behaviour.
type Handle struct {
	cmds         chan<- any
	bus          *swarm.Broadcaster
	queryTimeout time.Duration
}

// HandleFrom returns a Handle bound to b.
func HandleFrom(b *Behaviour, queryTimeout time.Duration) Handle {
	return Handle{cmds: b.cmds, bus: b.bus, queryTimeout: queryTimeout}
}

// SetProviderState toggles whether this node answers advertise queries and
// echoes the value it was set to.
func (h Handle) SetProviderState(state bool) bool {
	callback := make(chan bool, 1)
	h.cmds <- setProviderStateCmd{state: state, callback: callback}
	return <-callback
}

// GetProviderState reports the current provider flag.
func (h Handle) GetProviderState() bool {
	callback := make(chan bool, 1)
	h.cmds <- getProviderStateCmd{callback: callback}
	return <-callback
}

// QueryAdvertisedPeer asks relay for its advertised set. A nil result means
// relay reports it is not providing; a non-nil, possibly empty slice means
// it is providing.
func (h Handle) QueryAdvertisedPeer(relay peer.ID) (*[]peer.ID, error) {
	sub := h.bus.Subscribe()
	defer sub.Close()

	h.cmds <- queryAdvertisedPeerCmd{relay: relay}

	deadline := time.After(h.queryTimeout)
	for {
		select {
		case ev := <-sub.Out():
			out, ok := ev.Payload.(OutEvent)
			if !ok {
				continue
			}
			if out.QueryAnswered != nil && out.QueryAnswered.From == relay {
				return out.QueryAnswered.List, nil
			}
			if out.Error != nil && out.Error.Peer == relay {
				return nil, out.Error.Err
			}
		case <-deadline:
			return nil, protoerr.ErrTimeout
		}
	}
}

// SetRemoteAdvertisement asks remote to add or remove us from its
// advertised set.
func (h Handle) SetRemoteAdvertisement(remote peer.ID, state bool) {
	h.cmds <- setRemoteAdvertisementCmd{remote: remote, state: state}
}

// RemoveAdvertised removes peer from the local advertised set, reporting
// whether it was present.
func (h Handle) RemoveAdvertised(p peer.ID) bool {
	callback := make(chan bool, 1)
	h.cmds <- removeAdvertisedCmd{peer: p, callback: callback}
	return <-callback
}

// ClearAdvertised empties the local advertised set.
func (h Handle) ClearAdvertised() {
	done := make(chan struct{})
	h.cmds <- clearAdvertisedCmd{done: done}
	<-done
}

// ListAdvertised snapshots the local advertised set.
func (h Handle) ListAdvertised() []peer.ID {
	callback := make(chan []peer.ID, 1)
	h.cmds <- listAdvertisedCmd{callback: callback}
	return <-callback
}

// ListConnected snapshots the connected-peer set.
func (h Handle) ListConnected() []peer.ID {
	callback := make(chan []peer.ID, 1)
	h.cmds <- listConnectedCmd{callback: callback}
	return <-callback
}
