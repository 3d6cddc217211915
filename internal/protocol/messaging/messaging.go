// Package messaging implements the real-time text messaging protocol:
// "/owlnest/messaging/0.0.1".
package messaging

import (
	"encoding/json"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// ProtocolID is the multistream-select protocol name. It must not change
// without a version bump.
const ProtocolID protocol.ID = "/owlnest/messaging/0.0.1"

// Message is the immutable payload of a single text message.
type Message struct {
	From      peer.ID `json:"from"`
	To        peer.ID `json:"to"`
	Timestamp int64   `json:"timestamp"`
	Body      string  `json:"body"`
}

// New constructs a Message stamped with the current wall-clock time.
func New(from, to peer.ID, body string) Message {
	return Message{From: from, To: to, Timestamp: time.Now().Unix(), Body: body}
}

// packet is the sole wire variant for this protocol.
type packet struct {
	Msg Message `json:"msg"`
}

func encode(msg Message) ([]byte, error) {
	return json.Marshal(packet{Msg: msg})
}

func decode(data []byte) (Message, error) {
	var p packet
	if err := json.Unmarshal(data, &p); err != nil {
		return Message{}, err
	}
	return p.Msg, nil
}
