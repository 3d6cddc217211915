package blob

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

// outboundJob is the sum of the six wire shapes the outbound worker can
// encode and send.
type outboundJob interface {
	encode() ([]byte, error)
}

type sendRequestJob struct {
	fileName   string
	bytesTotal uint64
	sendID     uint64
}

func (j sendRequestJob) encode() ([]byte, error) {
	return encodeSendRequest(j.fileName, j.bytesTotal, j.sendID)
}

type acceptJob struct{ sendID uint64 }

func (j acceptJob) encode() ([]byte, error) { return encodeAccept(j.sendID) }

type rejectJob struct{ sendID uint64 }

func (j rejectJob) encode() ([]byte, error) { return encodeReject(j.sendID) }

type chunkJob struct {
	sendID uint64
	offset uint64
	bytes  []byte
}

func (j chunkJob) encode() ([]byte, error) { return encodeChunk(j.sendID, j.offset, j.bytes) }

type cancelJob struct{ id uint64 }

func (j cancelJob) encode() ([]byte, error) { return encodeCancel(j.id) }

type ackJob struct {
	sendID uint64
	offset uint64
}

func (j ackJob) encode() ([]byte, error) { return encodeAck(j.sendID, j.offset) }

// outboundWorker realizes the per-peer outbound state machine of §4.2 for
// the blob protocol: one goroutine, one lazily-opened stream, one FIFO of
// jobs to send. Chunks and their acks flow through this same queue, so a
// single worker naturally serializes all transfers sharing one peer.
type outboundWorker struct {
	jobs chan outboundJob
	done chan struct{}
}

func newOutboundWorker(h host.Host, p peer.ID, timeout time.Duration, bus *swarm.Broadcaster) *outboundWorker {
	w := &outboundWorker{jobs: make(chan outboundJob, 64), done: make(chan struct{})}
	go w.run(h, p, timeout, bus)
	return w
}

func (w *outboundWorker) enqueue(job outboundJob) {
	select {
	case w.jobs <- job:
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
					bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{
						Error: &ErrorEvent{Peer: p, Err: protoerr.ErrUnsupported},
					}})
					continue
				}
				stream = s
			}

			payload, err := job.encode()
			if err != nil {
				bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{
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
				bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{
					Error: &ErrorEvent{Peer: p, Err: protoerr.NewIOError(err)},
				}})
			}
		}
	}
}
