// Package blob implements the resumable file-transfer protocol:
// "/owlnest/blob/0.0.1".
package blob

import (
	"encoding/json"
	"fmt"

	"github.com/libp2p/go-libp2p/core/protocol"
)

// ProtocolID is the multistream-select protocol name.
const ProtocolID protocol.ID = "/owlnest/blob/0.0.1"

// DefaultChunkSize is used when a Behaviour is constructed without an
// explicit chunk size. 16 KiB is not surfaced on the wire; changing it
// does not affect protocol compatibility.
const DefaultChunkSize = 16 * 1024

type kind string

const (
	kindSendRequest kind = "send_request"
	kindAccept      kind = "accept"
	kindReject      kind = "reject"
	kindChunk       kind = "chunk"
	kindCancel      kind = "cancel"
	kindAck         kind = "ack"
)

type wirePacket struct {
	Type       kind   `json:"type"`
	FileName   string `json:"file_name,omitempty"`
	BytesTotal uint64 `json:"bytes_total,omitempty"`
	SendID     uint64 `json:"send_id,omitempty"`
	Offset     uint64 `json:"offset,omitempty"`
	Bytes      []byte `json:"bytes,omitempty"`
	ID         uint64 `json:"id,omitempty"`
}

func encodeSendRequest(fileName string, bytesTotal, sendID uint64) ([]byte, error) {
	return json.Marshal(wirePacket{Type: kindSendRequest, FileName: fileName, BytesTotal: bytesTotal, SendID: sendID})
}

func encodeAccept(sendID uint64) ([]byte, error) {
	return json.Marshal(wirePacket{Type: kindAccept, SendID: sendID})
}

func encodeReject(sendID uint64) ([]byte, error) {
	return json.Marshal(wirePacket{Type: kindReject, SendID: sendID})
}

func encodeChunk(sendID, offset uint64, bytes []byte) ([]byte, error) {
	return json.Marshal(wirePacket{Type: kindChunk, SendID: sendID, Offset: offset, Bytes: bytes})
}

func encodeCancel(id uint64) ([]byte, error) {
	return json.Marshal(wirePacket{Type: kindCancel, ID: id})
}

func encodeAck(sendID, offset uint64) ([]byte, error) {
	return json.Marshal(wirePacket{Type: kindAck, SendID: sendID, Offset: offset})
}

type decoded struct {
	kind       kind
	fileName   string
	bytesTotal uint64
	sendID     uint64
	offset     uint64
	bytes      []byte
	id         uint64
}

func decode(data []byte) (decoded, error) {
	var p wirePacket
	if err := json.Unmarshal(data, &p); err != nil {
		return decoded{}, err
	}
	switch p.Type {
	case kindSendRequest, kindAccept, kindReject, kindChunk, kindCancel, kindAck:
	default:
		return decoded{}, fmt.Errorf("unknown blob packet type %q", p.Type)
	}
	return decoded{
		kind:       p.Type,
		fileName:   p.FileName,
		bytesTotal: p.BytesTotal,
		sendID:     p.SendID,
		offset:     p.Offset,
		bytes:      p.Bytes,
		id:         p.ID,
	}, nil
}
