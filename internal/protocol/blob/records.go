package blob

import (
	"os"

	"github.com/libp2p/go-libp2p/core/peer"
)

// sendRecord tracks one in-flight outbound transfer, keyed by its
// local_send_id.
type sendRecord struct {
	sendID     uint64
	remote     peer.ID
	file       *os.File
	path       string
	bytesTotal uint64
	bytesSent  uint64
	// pendingChunkLen is the length of the most recently sent, not-yet-acked
	// chunk. Stop-and-wait: at most one chunk per send record is in flight.
	pendingChunkLen uint64
	started         bool
	accepted        bool
}

// recvRecord tracks one in-flight inbound transfer, keyed by its
// local_recv_id.
type recvRecord struct {
	recvID        uint64
	from          peer.ID
	sendID        uint64 // the sender's send_id, needed to address Accept/Cancel/Ack back
	fileName      string
	bytesTotal    uint64
	bytesReceived uint64
	file          *os.File
	destPath      string
	accepted      bool
}

// SendInfo is a read-only snapshot of a sendRecord for the handle layer.
type SendInfo struct {
	SendID     uint64
	Remote     peer.ID
	Path       string
	BytesTotal uint64
	BytesSent  uint64
	Started    bool
	Accepted   bool
}

// RecvInfo is a read-only snapshot of a recvRecord for the handle layer.
type RecvInfo struct {
	RecvID        uint64
	From          peer.ID
	FileName      string
	BytesTotal    uint64
	BytesReceived uint64
	Accepted      bool
}
