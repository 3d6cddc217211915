package blob

import (
	"io"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/drhuangmht/owlnest/internal/protoerr"
	"github.com/drhuangmht/owlnest/internal/swarm"
	"github.com/drhuangmht/owlnest/internal/wire"
)

// Commands submitted by the Handle layer.
type (
	sendFileCmd struct {
		to       peer.ID
		path     string
		callback chan<- sendFileResult
	}
	sendFileResult struct {
		sendID uint64
		err    error
	}
	acceptFileCmd struct {
		recvID          uint64
		destinationPath string
		callback        chan<- error
	}
	rejectFileCmd struct {
		recvID   uint64
		callback chan<- error
	}
	cancelSendCmd struct {
		sendID   uint64
		callback chan<- error
	}
	cancelRecvCmd struct {
		recvID   uint64
		callback chan<- error
	}
	listPendingSendCmd struct {
		callback chan<- []SendInfo
	}
	listPendingRecvCmd struct {
		callback chan<- []RecvInfo
	}
)

// Commands synthesized from inbound wire packets.
type (
	incomingSendRequestCmd struct {
		from       peer.ID
		fileName   string
		bytesTotal uint64
		sendID     uint64
	}
	incomingAcceptCmd struct {
		from   peer.ID
		sendID uint64
	}
	incomingRejectCmd struct {
		from   peer.ID
		sendID uint64
	}
	incomingChunkCmd struct {
		from   peer.ID
		sendID uint64
		offset uint64
		bytes  []byte
	}
	incomingCancelCmd struct {
		from peer.ID
		id   uint64
	}
	incomingAckCmd struct {
		from   peer.ID
		sendID uint64
		offset uint64
	}
)

func (b *Behaviour) handleCmd(cmd any) {
	switch c := cmd.(type) {
	case sendFileCmd:
		b.doSendFile(c)
	case acceptFileCmd:
		b.doAcceptFile(c)
	case rejectFileCmd:
		b.doRejectFile(c)
	case cancelSendCmd:
		b.doCancelSend(c)
	case cancelRecvCmd:
		b.doCancelRecv(c)
	case listPendingSendCmd:
		c.callback <- b.snapshotSends()
	case listPendingRecvCmd:
		c.callback <- b.snapshotRecvs()
	case incomingSendRequestCmd:
		b.onIncomingSendRequest(c)
	case incomingAcceptCmd:
		b.onIncomingAccept(c)
	case incomingRejectCmd:
		b.onIncomingReject(c)
	case incomingChunkCmd:
		b.onIncomingChunk(c)
	case incomingCancelCmd:
		b.onIncomingCancel(c)
	case incomingAckCmd:
		b.onIncomingAck(c)
	}
}

func (b *Behaviour) doSendFile(c sendFileCmd) {
	info, err := os.Stat(c.path)
	switch {
	case err != nil && os.IsNotExist(err):
		c.callback <- sendFileResult{err: protoerr.ErrFileNotFound}
		return
	case err != nil && os.IsPermission(err):
		c.callback <- sendFileResult{err: protoerr.ErrPermissionDenied}
		return
	case err != nil:
		c.callback <- sendFileResult{err: &protoerr.FsError{Path: c.path, Kind: err}}
		return
	case info.IsDir():
		c.callback <- sendFileResult{err: protoerr.ErrIsDirectory}
		return
	}

	f, err := os.Open(c.path)
	if err != nil {
		c.callback <- sendFileResult{err: &protoerr.FsError{Path: c.path, Kind: err}}
		return
	}

	sendID := b.nextSendID()
	rec := &sendRecord{
		sendID:     sendID,
		remote:     c.to,
		file:       f,
		path:       c.path,
		bytesTotal: uint64(info.Size()),
	}
	b.sends[sendID] = rec

	b.workerFor(c.to).enqueue(sendRequestJob{fileName: filepath.Base(c.path), bytesTotal: rec.bytesTotal, sendID: sendID})

	c.callback <- sendFileResult{sendID: sendID}
	b.bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{ReqSendResult: &ReqSendResult{SendID: sendID}}})
}

func (b *Behaviour) doAcceptFile(c acceptFileCmd) {
	rec, ok := b.recvs[c.recvID]
	if !ok {
		c.callback <- protoerr.ErrUnknownRecvID
		return
	}

	dest := c.destinationPath
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, rec.fileName)
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			c.callback <- &protoerr.FsError{Path: dest, Kind: protoerr.ErrAlreadyExists}
			return
		}
		c.callback <- &protoerr.FsError{Path: dest, Kind: err}
		return
	}

	rec.file = f
	rec.destPath = dest
	rec.accepted = true

	b.workerFor(rec.from).enqueue(acceptJob{sendID: rec.sendID})
	c.callback <- nil
}

func (b *Behaviour) doRejectFile(c rejectFileCmd) {
	rec, ok := b.recvs[c.recvID]
	if !ok {
		c.callback <- protoerr.ErrUnknownRecvID
		return
	}
	delete(b.recvs, c.recvID)
	delete(b.sendIDToRecvID, recvKey{from: rec.from, sendID: rec.sendID})
	b.workerFor(rec.from).enqueue(rejectJob{sendID: rec.sendID})
	c.callback <- nil
}

func (b *Behaviour) doCancelSend(c cancelSendCmd) {
	rec, ok := b.sends[c.sendID]
	if !ok {
		c.callback <- protoerr.ErrUnknownSendID
		return
	}
	delete(b.sends, c.sendID)
	if rec.file != nil {
		rec.file.Close()
	}
	b.workerFor(rec.remote).enqueue(cancelJob{id: c.sendID})
	c.callback <- nil
}

func (b *Behaviour) doCancelRecv(c cancelRecvCmd) {
	rec, ok := b.recvs[c.recvID]
	if !ok {
		c.callback <- protoerr.ErrUnknownRecvID
		return
	}
	delete(b.recvs, c.recvID)
	delete(b.sendIDToRecvID, recvKey{from: rec.from, sendID: rec.sendID})
	if rec.file != nil {
		rec.file.Close()
	}
	b.workerFor(rec.from).enqueue(cancelJob{id: rec.sendID})
	c.callback <- nil
}

// purgePeer tears down every send/recv record involving p, as required when
// the underlying connection closes: records don't just sit there waiting
// for a cancel that will now never arrive over the wire.
func (b *Behaviour) purgePeer(p peer.ID) {
	for sendID, rec := range b.sends {
		if rec.remote != p {
			continue
		}
		delete(b.sends, sendID)
		if rec.file != nil {
			rec.file.Close()
		}
		b.bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{CancelledSend: &CancelledSend{SendID: sendID}}})
	}
	for recvID, rec := range b.recvs {
		if rec.from != p {
			continue
		}
		delete(b.recvs, recvID)
		delete(b.sendIDToRecvID, recvKey{from: rec.from, sendID: rec.sendID})
		if rec.file != nil {
			rec.file.Close()
		}
		b.bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{
			OngoingRecvError: &OngoingRecvError{RecvID: recvID, Err: protoerr.ErrConnectionClosed},
		}})
	}
}

func (b *Behaviour) snapshotSends() []SendInfo {
	out := make([]SendInfo, 0, len(b.sends))
	for _, rec := range b.sends {
		out = append(out, SendInfo{
			SendID: rec.sendID, Remote: rec.remote, Path: rec.path,
			BytesTotal: rec.bytesTotal, BytesSent: rec.bytesSent,
			Started: rec.started, Accepted: rec.accepted,
		})
	}
	return out
}

func (b *Behaviour) snapshotRecvs() []RecvInfo {
	out := make([]RecvInfo, 0, len(b.recvs))
	for _, rec := range b.recvs {
		out = append(out, RecvInfo{
			RecvID: rec.recvID, From: rec.from, FileName: rec.fileName,
			BytesTotal: rec.bytesTotal, BytesReceived: rec.bytesReceived,
			Accepted: rec.accepted,
		})
	}
	return out
}

func (b *Behaviour) onIncomingSendRequest(c incomingSendRequestCmd) {
	recvID := b.recvIDFor(c.from, c.sendID)
	b.recvs[recvID] = &recvRecord{
		recvID: recvID, from: c.from, sendID: c.sendID,
		fileName: c.fileName, bytesTotal: c.bytesTotal,
	}
	b.bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{
		IncomingFile: &IncomingFile{From: c.from, FileName: c.fileName, BytesTotal: c.bytesTotal, RecvID: recvID},
	}})
}

func (b *Behaviour) onIncomingAccept(c incomingAcceptCmd) {
	rec, ok := b.sends[c.sendID]
	if !ok || rec.remote != c.from {
		return
	}
	rec.started = true
	rec.accepted = true
	b.sendNextChunk(rec)
}

func (b *Behaviour) onIncomingReject(c incomingRejectCmd) {
	rec, ok := b.sends[c.sendID]
	if !ok || rec.remote != c.from {
		return
	}
	delete(b.sends, c.sendID)
	if rec.file != nil {
		rec.file.Close()
	}
	b.bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{CancelledSend: &CancelledSend{SendID: c.sendID}}})
}

func (b *Behaviour) onIncomingChunk(c incomingChunkCmd) {
	recvID, ok := b.sendIDToRecvID[recvKey{from: c.from, sendID: c.sendID}]
	if !ok {
		return
	}
	rec, ok := b.recvs[recvID]
	if !ok || !rec.accepted || rec.file == nil {
		return
	}

	if _, err := rec.file.WriteAt(c.bytes, int64(c.offset)); err != nil {
		b.bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{
			OngoingRecvError: &OngoingRecvError{RecvID: recvID, Err: &protoerr.FsError{Path: rec.destPath, Kind: err}},
		}})
		return
	}
	rec.bytesReceived += uint64(len(c.bytes))

	b.workerFor(rec.from).enqueue(ackJob{sendID: rec.sendID, offset: c.offset})

	if rec.bytesReceived >= rec.bytesTotal {
		rec.file.Close()
		delete(b.recvs, recvID)
		delete(b.sendIDToRecvID, recvKey{from: c.from, sendID: c.sendID})
		b.bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{
			RecvProgressed: &RecvProgressed{RecvID: recvID, BytesReceived: rec.bytesReceived, Finished: true},
		}})
	}
}

func (b *Behaviour) onIncomingCancel(c incomingCancelCmd) {
	if rec, ok := b.sends[c.id]; ok && rec.remote == c.from {
		delete(b.sends, c.id)
		if rec.file != nil {
			rec.file.Close()
		}
		b.bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{CancelledSend: &CancelledSend{SendID: c.id}}})
		return
	}
	key := recvKey{from: c.from, sendID: c.id}
	if recvID, ok := b.sendIDToRecvID[key]; ok {
		if rec, ok := b.recvs[recvID]; ok {
			delete(b.recvs, recvID)
			delete(b.sendIDToRecvID, key)
			if rec.file != nil {
				rec.file.Close()
			}
			b.bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{
				OngoingRecvError: &OngoingRecvError{RecvID: recvID, Err: protoerr.ErrCancelled},
			}})
		}
	}
}

func (b *Behaviour) onIncomingAck(c incomingAckCmd) {
	rec, ok := b.sends[c.sendID]
	if !ok || rec.remote != c.from {
		return
	}
	rec.bytesSent += rec.pendingChunkLen
	rec.pendingChunkLen = 0

	if rec.bytesSent >= rec.bytesTotal {
		rec.file.Close()
		delete(b.sends, c.sendID)
		b.bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{
			SendProgressed: &SendProgressed{SendID: c.sendID, BytesSent: rec.bytesSent, Finished: true},
		}})
		return
	}
	b.sendNextChunk(rec)
}

// sendNextChunk reads the next chunkSize-bounded slice of rec's source file
// and hands it to the peer's outbound worker. Stop-and-wait: called only
// after the previous chunk (if any) has been acknowledged.
func (b *Behaviour) sendNextChunk(rec *sendRecord) {
	remaining := rec.bytesTotal - rec.bytesSent
	n := uint64(b.chunkSize)
	if remaining < n {
		n = remaining
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := rec.file.ReadAt(buf, int64(rec.bytesSent)); err != nil && err != io.EOF {
			b.bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{
				Error: &ErrorEvent{Peer: rec.remote, Err: &protoerr.FsError{Path: rec.path, Kind: err}},
			}})
			return
		}
	}
	rec.pendingChunkLen = n
	b.workerFor(rec.remote).enqueue(chunkJob{sendID: rec.sendID, offset: rec.bytesSent, bytes: buf})
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
			b.bus.Publish(swarm.Event{Protocol: "blob", Payload: OutEvent{
				Error: &ErrorEvent{Peer: remote, Err: &protoerr.UnrecognizedMessageError{Detail: err}},
			}})
			continue
		}
		switch d.kind {
		case kindSendRequest:
			b.cmds <- incomingSendRequestCmd{from: remote, fileName: d.fileName, bytesTotal: d.bytesTotal, sendID: d.sendID}
		case kindAccept:
			b.cmds <- incomingAcceptCmd{from: remote, sendID: d.sendID}
		case kindReject:
			b.cmds <- incomingRejectCmd{from: remote, sendID: d.sendID}
		case kindChunk:
			b.cmds <- incomingChunkCmd{from: remote, sendID: d.sendID, offset: d.offset, bytes: d.bytes}
		case kindCancel:
			b.cmds <- incomingCancelCmd{from: remote, id: d.id}
		case kindAck:
			b.cmds <- incomingAckCmd{from: remote, sendID: d.sendID, offset: d.offset}
		}
	}
}
