package blob

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/drhuangmht/owlnest/internal/protoerr"
)

// Handle is a cheap, clonable value applications use to drive a running
// blob Behaviour.
type Handle struct {
	cmds    chan<- any
	timeout time.Duration
}

// HandleFrom returns a Handle bound to b.
func HandleFrom(b *Behaviour, timeout time.Duration) Handle {
	return Handle{cmds: b.cmds, timeout: timeout}
}

// Send requests sending the file at path to peer, returning the local
// send_id assigned to the transfer once the peer's accept/reject decision
// is pending.
func (h Handle) Send(to peer.ID, path string) (uint64, error) {
	callback := make(chan sendFileResult, 1)
	h.cmds <- sendFileCmd{to: to, path: path, callback: callback}
	select {
	case r := <-callback:
		return r.sendID, r.err
	case <-time.After(h.timeout):
		return 0, protoerr.ErrTimeout
	}
}

// AcceptFile accepts an incoming transfer, writing it to destinationPath.
// If destinationPath names an existing directory, the remote's advertised
// file name is joined onto it; otherwise destinationPath is treated as the
// exact destination and rejected if it already exists.
func (h Handle) AcceptFile(recvID uint64, destinationPath string) error {
	callback := make(chan error, 1)
	h.cmds <- acceptFileCmd{recvID: recvID, destinationPath: destinationPath, callback: callback}
	select {
	case err := <-callback:
		return err
	case <-time.After(h.timeout):
		return protoerr.ErrTimeout
	}
}

// RejectFile declines an incoming transfer.
func (h Handle) RejectFile(recvID uint64) error {
	callback := make(chan error, 1)
	h.cmds <- rejectFileCmd{recvID: recvID, callback: callback}
	select {
	case err := <-callback:
		return err
	case <-time.After(h.timeout):
		return protoerr.ErrTimeout
	}
}

// CancelSend cancels an in-flight outbound transfer.
func (h Handle) CancelSend(sendID uint64) error {
	callback := make(chan error, 1)
	h.cmds <- cancelSendCmd{sendID: sendID, callback: callback}
	select {
	case err := <-callback:
		return err
	case <-time.After(h.timeout):
		return protoerr.ErrTimeout
	}
}

// CancelRecv cancels an in-flight inbound transfer.
func (h Handle) CancelRecv(recvID uint64) error {
	callback := make(chan error, 1)
	h.cmds <- cancelRecvCmd{recvID: recvID, callback: callback}
	select {
	case err := <-callback:
		return err
	case <-time.After(h.timeout):
		return protoerr.ErrTimeout
	}
}

// ListPendingSend snapshots every in-flight outbound transfer.
func (h Handle) ListPendingSend() []SendInfo {
	callback := make(chan []SendInfo, 1)
	h.cmds <- listPendingSendCmd{callback: callback}
	return <-callback
}

// ListPendingRecv snapshots every in-flight inbound transfer.
func (h Handle) ListPendingRecv() []RecvInfo {
	callback := make(chan []RecvInfo, 1)
	h.cmds <- listPendingRecvCmd{callback: callback}
	return <-callback
}
