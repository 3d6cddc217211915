package advertise

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/drhuangmht/owlnest/internal/protoerr"
	"github.com/drhuangmht/owlnest/internal/swarm"
	"github.com/drhuangmht/owlnest/internal/wire"
)

// outboundPacket is the sum of the three shapes the outbound worker can
// encode; only one of encodeQuery/encodeAdvertiseSelf/encodeAnswer applies.
type outboundPacket interface {
	encode() ([]byte, error)
}

type queryPacket struct{}

func (queryPacket) encode() ([]byte, error) { return encodeQuery() }

type advertiseSelfPacket struct{ state bool }

func (p advertiseSelfPacket) encode() ([]byte, error) { return encodeAdvertiseSelf(p.state) }

type answerPacket struct{ list *[]peer.ID }

func (p answerPacket) encode() ([]byte, error) { return encodeAnswer(p.list) }

// outboundWorker realizes the per-peer outbound state machine of §4.2 for
// the advertise protocol: one goroutine, one lazily-opened stream, one FIFO
// of packets to send.
type outboundWorker struct {
	jobs chan outboundPacket
	done chan struct{}
}

func newOutboundWorker(h host.Host, p peer.ID, timeout time.Duration, bus *swarm.Broadcaster) *outboundWorker {
	w := &outboundWorker{jobs: make(chan outboundPacket, 16), done: make(chan struct{})}
	go w.run(h, p, timeout, bus)
	return w
}

func (w *outboundWorker) enqueue(pkt outboundPacket) {
	select {
	case w.jobs <- pkt:
	case <-w.done:
	}
}

func (w *outboundWorker) stop() {
	close(w.done)
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
					bus.Publish(swarm.Event{Protocol: "advertise", Payload: OutEvent{
						Error: &ErrorEvent{Peer: p, Err: protoerr.ErrUnsupported},
					}})
					continue
				}
				stream = s
			}

			payload, err := job.encode()
			if err != nil {
				bus.Publish(swarm.Event{Protocol: "advertise", Payload: OutEvent{
					Error: &ErrorEvent{Peer: p, Err: err},
				}})
				continue
			}

			stream.SetWriteDeadline(time.Now().Add(timeout))
			_, err = wire.Send(stream, payload)
			stream.SetWriteDeadline(time.Time{})
			if err != nil {
				stream.Close()
				stream = nil
				bus.Publish(swarm.Event{Protocol: "advertise", Payload: OutEvent{
					Error: &ErrorEvent{Peer: p, Err: protoerr.NewIOError(err)},
				}})
			}
		}
	}
}
