package blob

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/drhuangmht/owlnest/internal/swarm"
)

// OutEvent is the tagged union of events this protocol raises.
type OutEvent struct {
	IncomingFile     *IncomingFile
	RecvProgressed   *RecvProgressed
	OngoingRecvError *OngoingRecvError
	SendProgressed   *SendProgressed
	ReqSendResult    *ReqSendResult
	CancelledSend    *CancelledSend
	Error            *ErrorEvent
}

type IncomingFile struct {
	From       peer.ID
	FileName   string
	BytesTotal uint64
	RecvID     uint64
}

type RecvProgressed struct {
	RecvID        uint64
	BytesReceived uint64
	Finished      bool
}

type OngoingRecvError struct {
	RecvID uint64
	Err    error
}

type SendProgressed struct {
	SendID    uint64
	BytesSent uint64
	Finished  bool
}

// ReqSendResult echoes the send_id handed back synchronously by Send, for
// subscribers who were already listening before the call was made.
type ReqSendResult struct {
	SendID uint64
}

type CancelledSend struct {
	SendID uint64
}

type ErrorEvent struct {
	Peer peer.ID
	Err  error
}

type recvKey struct {
	from   peer.ID
	sendID uint64
}

// Behaviour owns every send and recv record, the send_id/recv_id counters,
// and the from-peer/send_id -> recv_id map. All of it is mutated only from
// the goroutine running Run.
type Behaviour struct {
	host      host.Host
	timeout   time.Duration
	chunkSize int
	bus       *swarm.Broadcaster

	cmds    chan any
	workers map[peer.ID]*outboundWorker

	sendCounter atomic.Uint64
	recvCounter atomic.Uint64

	sends          map[uint64]*sendRecord
	recvs          map[uint64]*recvRecord
	sendIDToRecvID map[recvKey]uint64
}

// New constructs a Behaviour. chunkSize <= 0 selects DefaultChunkSize.
func New(h host.Host, timeout time.Duration, chunkSize int, bus *swarm.Broadcaster) *Behaviour {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Behaviour{
		host:           h,
		timeout:        timeout,
		chunkSize:      chunkSize,
		bus:            bus,
		cmds:           make(chan any, 16),
		workers:        make(map[peer.ID]*outboundWorker),
		sends:          make(map[uint64]*sendRecord),
		recvs:          make(map[uint64]*recvRecord),
		sendIDToRecvID: make(map[recvKey]uint64),
	}
}

// Run installs the stream handler and services commands/events until ctx is
// cancelled.
func (b *Behaviour) Run(ctx context.Context) {
	b.host.SetStreamHandler(ProtocolID, b.handleInboundStream)
	defer b.host.RemoveStreamHandler(ProtocolID)

	sub, err := b.host.EventBus().Subscribe(new(event.EvtPeerConnectednessChanged))
	if err != nil {
		slog.Error("blob: event bus subscribe failed", "error", err)
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
			for _, rec := range b.sends {
				if rec.file != nil {
					rec.file.Close()
				}
			}
			for _, rec := range b.recvs {
				if rec.file != nil {
					rec.file.Close()
				}
			}
			return
		case raw := <-sub.Out():
			e := raw.(event.EvtPeerConnectednessChanged)
			if e.Connectedness != network.Connected {
				if w, ok := b.workers[e.Peer]; ok {
					w.stop()
					delete(b.workers, e.Peer)
				}
				b.purgePeer(e.Peer)
			}
		case cmd := <-b.cmds:
			b.handleCmd(cmd)
		}
	}
}

func (b *Behaviour) workerFor(p peer.ID) *outboundWorker {
	if w, ok := b.workers[p]; ok {
		return w
	}
	w := newOutboundWorker(b.host, p, b.timeout, b.bus)
	b.workers[p] = w
	return w
}

func (b *Behaviour) nextSendID() uint64 {
	return b.sendCounter.Add(1) - 1
}

func (b *Behaviour) recvIDFor(from peer.ID, sendID uint64) uint64 {
	key := recvKey{from: from, sendID: sendID}
	if id, ok := b.sendIDToRecvID[key]; ok {
		return id
	}
	id := b.recvCounter.Add(1) - 1
	b.sendIDToRecvID[key] = id
	return id
}
