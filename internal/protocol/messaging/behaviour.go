package messaging

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

// OutEvent is the tagged union of events this protocol raises toward the
// broadcast channel.
type OutEvent struct {
	IncomingMessage *IncomingMessage
	Error           *ErrorEvent
}

// IncomingMessage reports a Msg packet received from a peer.
type IncomingMessage struct {
	From peer.ID
	Msg  Message
}

// ErrorEvent reports a handler-level failure not tied to a pending callback.
type ErrorEvent struct {
	Peer peer.ID
	Err  error
}

type sendCmd struct {
	peer     peer.ID
	msg      Message
	callback chan<- sendResult
}

type sendResult struct {
	rtt time.Duration
	err error
}

type listConnectedCmd struct {
	callback chan<- []peer.ID
}

// Behaviour owns every piece of per-peer messaging state: each peer's
// outbound worker. Connectivity is read from the host's network rather than
// tracked here. The worker map is touched only from the single goroutine
// started by Run; nothing here is guarded by a mutex.
type Behaviour struct {
	host    host.Host
	timeout time.Duration
	bus     *swarm.Broadcaster

	cmds    chan any
	workers map[peer.ID]*outboundWorker
}

// New constructs a Behaviour. Call Run to start its actor goroutine and
// install the protocol's stream handler.
func New(h host.Host, timeout time.Duration, bus *swarm.Broadcaster) *Behaviour {
	return &Behaviour{
		host:    h,
		timeout: timeout,
		bus:     bus,
		cmds:    make(chan any, 16),
		workers: make(map[peer.ID]*outboundWorker),
	}
}

// Run installs the protocol's inbound stream handler and blocks, servicing
// commands and connection-lifecycle events, until ctx is cancelled.
func (b *Behaviour) Run(ctx context.Context) {
	b.host.SetStreamHandler(ProtocolID, b.handleInboundStream)
	defer b.host.RemoveStreamHandler(ProtocolID)

	sub, err := b.host.EventBus().Subscribe(new(event.EvtPeerConnectednessChanged))
	if err != nil {
		slog.Error("messaging: event bus subscribe failed", "error", err)
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
			if e.Connectedness != network.Connected {
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
	case sendCmd:
		if !b.isConnected(c.peer) {
			c.callback <- sendResult{err: protoerr.ErrPeerNotFound}
			return
		}
		w := b.workerFor(c.peer)
		w.jobs <- sendJob{msg: c.msg, callback: c.callback}
	case listConnectedCmd:
		c.callback <- b.host.Network().Peers()
	}
}

func (b *Behaviour) isConnected(p peer.ID) bool {
	return b.host.Network().Connectedness(p) == network.Connected
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
	for {
		data, err := wire.Recv(s)
		if err != nil {
			return
		}
		msg, err := decode(data)
		if err != nil {
			b.bus.Publish(swarm.Event{Protocol: "messaging", Payload: OutEvent{
				Error: &ErrorEvent{Peer: s.Conn().RemotePeer(), Err: &protoerr.UnrecognizedMessageError{Detail: err}},
			}})
			continue
		}
		b.bus.Publish(swarm.Event{Protocol: "messaging", Payload: OutEvent{
			IncomingMessage: &IncomingMessage{From: s.Conn().RemotePeer(), Msg: msg},
		}})
	}
}

// outboundWorker realizes the per-peer outbound state machine from §4.2
// (None -> OpenStream -> Idle -> Busy -> Idle/None) as a dedicated
// goroutine so its state is never shared.
type outboundWorker struct {
	jobs chan sendJob
	done chan struct{}
}

type sendJob struct {
	msg      Message
	callback chan<- sendResult
}

func newOutboundWorker(h host.Host, p peer.ID, timeout time.Duration, bus *swarm.Broadcaster) *outboundWorker {
	w := &outboundWorker{jobs: make(chan sendJob, 16), done: make(chan struct{})}
	go w.run(h, p, timeout, bus)
	return w
}

func (w *outboundWorker) run(h host.Host, p peer.ID, timeout time.Duration, bus *swarm.Broadcaster) {
	var stream network.Stream
	defer func() {
		if stream != nil {
			stream.Close()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case job := <-w.jobs:
			if stream == nil {
				s, err := h.NewStream(context.Background(), p, ProtocolID)
				if err != nil {
					bus.Publish(swarm.Event{Protocol: "messaging", Payload: OutEvent{
						Error: &ErrorEvent{Peer: p, Err: protoerr.ErrUnsupported},
					}})
					job.callback <- sendResult{err: protoerr.ErrUnsupported}
					continue
				}
				stream = s
			}

			payload, err := encode(job.msg)
			if err != nil {
				job.callback <- sendResult{err: err}
				continue
			}

			stream.SetWriteDeadline(time.Now().Add(timeout))
			rtt, err := wire.Send(stream, payload)
			stream.SetWriteDeadline(time.Time{})
			if err != nil {
				stream.Close()
				stream = nil
				wrapped := protoerr.NewIOError(err)
				bus.Publish(swarm.Event{Protocol: "messaging", Payload: OutEvent{
					Error: &ErrorEvent{Peer: p, Err: wrapped},
				}})
				job.callback <- sendResult{err: wrapped}
				continue
			}
			job.callback <- sendResult{rtt: rtt}
		}
	}
}

func (w *outboundWorker) stop() {
	close(w.done)
}
