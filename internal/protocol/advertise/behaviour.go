package advertise

import (
	"context"
	"log/slog"
	"time"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/drhuangmht/owlnest/internal/protoerr"
	"github.com/drhuangmht/owlnest/internal/swarm"
	"github.com/drhuangmht/owlnest/internal/wire"
)

// OutEvent is the tagged union of events this protocol raises.
type OutEvent struct {
	QueryAnswered          *QueryAnswered
	AdvertisedPeerChanged  *AdvertisedPeerChanged
	Error                  *ErrorEvent
}

// QueryAnswered reports the result of a QueryAdvertisedPeer round trip.
// List is nil when the remote reports it is not providing; a non-nil,
// possibly empty slice means the remote is providing.
type QueryAnswered struct {
	From peer.ID
	List *[]peer.ID
}

// AdvertisedPeerChanged reports an explicit removal from the local
// advertised set.
type AdvertisedPeerChanged struct {
	Peer    peer.ID
	Removed bool
}

// ErrorEvent reports a handler- or behaviour-level failure, keyed by the
// peer the operation concerned so QueryAdvertisedPeer's handle can match it.
type ErrorEvent struct {
	Peer peer.ID
	Err  error
}

// Command types accepted on the behaviour's command channel.
type (
	setProviderStateCmd struct {
		state    bool
		callback chan<- bool
	}
	getProviderStateCmd struct {
		callback chan<- bool
	}
	queryAdvertisedPeerCmd struct {
		relay peer.ID
	}
	setRemoteAdvertisementCmd struct {
		remote peer.ID
		state  bool
	}
	removeAdvertisedCmd struct {
		peer     peer.ID
		callback chan<- bool
	}
	clearAdvertisedCmd struct {
		done chan<- struct{}
	}
	listAdvertisedCmd struct {
		callback chan<- []peer.ID
	}
	listConnectedCmd struct {
		callback chan<- []peer.ID
	}
	incomingAdvertiseSelfCmd struct {
		peer  peer.ID
		state bool
	}
	incomingQueryCmd struct {
		peer peer.ID
	}
	incomingAnswerCmd struct {
		peer peer.ID
		list *[]peer.ID
	}
)

// Behaviour owns the advertised set, the connected-peer set, and the
// provider flag. All of it is mutated only from the goroutine running Run.
type Behaviour struct {
	host    host.Host
	timeout time.Duration
	bus     *swarm.Broadcaster

	cmds    chan any
	workers map[peer.ID]*outboundWorker

	advertisedPeers map[peer.ID]struct{}
	connectedPeers  map[peer.ID]struct{}
	isProviding     bool
}

// New constructs a Behaviour. Call Run to start its actor goroutine.
func New(h host.Host, timeout time.Duration, bus *swarm.Broadcaster) *Behaviour {
	return &Behaviour{
		host:            h,
		timeout:         timeout,
		bus:             bus,
		cmds:            make(chan any, 16),
		workers:         make(map[peer.ID]*outboundWorker),
		advertisedPeers: make(map[peer.ID]struct{}),
		connectedPeers:  make(map[peer.ID]struct{}),
	}
}

// Run installs the stream handler and services commands/events until ctx is
// cancelled.
func (b *Behaviour) Run(ctx context.Context) {
	b.host.SetStreamHandler(ProtocolID, b.handleInboundStream)
	defer b.host.RemoveStreamHandler(ProtocolID)

	sub, err := b.host.EventBus().Subscribe(new(event.EvtPeerConnectednessChanged))
	if err != nil {
		slog.Error("advertise: event bus subscribe failed", "error", err)
		return
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			for p, w := range b.workers {
				w.stop()
				delete(b.workers, p)
			}
			return
		case raw := <-sub.Out():
			e := raw.(event.EvtPeerConnectednessChanged)
			if e.Connectedness == network.Connected {
				b.connectedPeers[e.Peer] = struct{}{}
			} else {
				delete(b.connectedPeers, e.Peer)
				delete(b.advertisedPeers, e.Peer)
				if w, ok := b.workers[e.Peer]; ok {
					w.stop()
					delete(b.workers, e.Peer)
				}
			}
		case cmd := <-b.cmds:
			b.handleCmd(cmd)
		}
	}
}

func (b *Behaviour) handleCmd(cmd any) {
	switch c := cmd.(type) {
	case setProviderStateCmd:
		b.isProviding = c.state
		c.callback <- c.state
	case getProviderStateCmd:
		c.callback <- b.isProviding
	case queryAdvertisedPeerCmd:
		if _, ok := b.connectedPeers[c.relay]; !ok {
			b.bus.Publish(swarm.Event{Protocol: "advertise", Payload: OutEvent{
				Error: &ErrorEvent{Peer: c.relay, Err: &protoerr.NotProvidingError{Relay: c.relay.String()}},
			}})
			return
		}
		b.workerFor(c.relay).enqueue(queryPacket{})
	case setRemoteAdvertisementCmd:
		b.workerFor(c.remote).enqueue(advertiseSelfPacket{state: c.state})
	case removeAdvertisedCmd:
		_, existed := b.advertisedPeers[c.peer]
		delete(b.advertisedPeers, c.peer)
		b.bus.Publish(swarm.Event{Protocol: "advertise", Payload: OutEvent{
			AdvertisedPeerChanged: &AdvertisedPeerChanged{Peer: c.peer, Removed: existed},
		}})
		c.callback <- existed
	case clearAdvertisedCmd:
		b.advertisedPeers = make(map[peer.ID]struct{})
		close(c.done)
	case listAdvertisedCmd:
		c.callback <- keys(b.advertisedPeers)
	case listConnectedCmd:
		c.callback <- keys(b.connectedPeers)
	case incomingAdvertiseSelfCmd:
		if c.state {
			b.advertisedPeers[c.peer] = struct{}{}
		} else {
			delete(b.advertisedPeers, c.peer)
		}
	case incomingQueryCmd:
		if b.isProviding {
			list := keys(b.advertisedPeers)
			b.workerFor(c.peer).enqueue(answerPacket{list: &list})
		} else {
			b.workerFor(c.peer).enqueue(answerPacket{list: nil})
		}
	case incomingAnswerCmd:
		b.bus.Publish(swarm.Event{Protocol: "advertise", Payload: OutEvent{
			QueryAnswered: &QueryAnswered{From: c.peer, List: c.list},
		}})
	}
}

func keys(m map[peer.ID]struct{}) []peer.ID {
	out := make([]peer.ID, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	return out
}

func (b *Behaviour) workerFor(p peer.ID) *outboundWorker {
	if w, ok := b.workers[p]; ok {
		return w
	}
	w := newOutboundWorker(b.host, p, b.timeout, b.bus)
	b.workers[p] = w
	return w
}

func (b *Behaviour) handleInboundStream(s network.Stream) {
	defer s.Close()
	remote := s.Conn().RemotePeer()
	for {
		data, err := wire.Recv(s)
		if err != nil {
			return
		}
		d, err := decode(data)
		if err != nil {
			b.bus.Publish(swarm.Event{Protocol: "advertise", Payload: OutEvent{
				Error: &ErrorEvent{Peer: remote, Err: &protoerr.UnrecognizedMessageError{Detail: err}},
			}})
			continue
		}
		switch d.kind {
		case kindAdvertiseSelf:
			b.cmds <- incomingAdvertiseSelfCmd{peer: remote, state: d.advertiseSelf}
		case kindQuery:
			b.cmds <- incomingQueryCmd{peer: remote}
		case kindAnswer:
			b.cmds <- incomingAnswerCmd{peer: remote, list: d.advertisedPeers}
		}
	}
}
