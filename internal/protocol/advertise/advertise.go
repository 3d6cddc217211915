// Package advertise implements the peer advertisement / directory protocol:
// "/owlnest/advertise/0.0.1".
package advertise

import (
	"encoding/json"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// ProtocolID is the multistream-select protocol name.
const ProtocolID protocol.ID = "/owlnest/advertise/0.0.1"

type kind string

const (
	kindAdvertiseSelf kind = "advertise_self"
	kindQuery         kind = "query"
	kindAnswer        kind = "answer"
)

// wirePacket is the externally tagged variant union for this protocol.
// AdvertisedPeers distinguishes "None" (nil, not providing) from
// "Some([])" (non-nil empty slice, providing with nothing advertised) —
// the open question this spec resolves per §9.
type wirePacket struct {
	Type            kind       `json:"type"`
	AdvertiseSelf   bool       `json:"advertise_self,omitempty"`
	AdvertisedPeers *[]peer.ID `json:"advertised_peers,omitempty"`
}

func encodeAdvertiseSelf(state bool) ([]byte, error) {
	return json.Marshal(wirePacket{Type: kindAdvertiseSelf, AdvertiseSelf: state})
}

func encodeQuery() ([]byte, error) {
	return json.Marshal(wirePacket{Type: kindQuery})
}

func encodeAnswer(list *[]peer.ID) ([]byte, error) {
	return json.Marshal(wirePacket{Type: kindAnswer, AdvertisedPeers: list})
}

// decoded is the parsed form of wirePacket, named-field for switch clarity.
type decoded struct {
	kind            kind
	advertiseSelf   bool
	advertisedPeers *[]peer.ID
}

func decode(data []byte) (decoded, error) {
	var p wirePacket
	if err := json.Unmarshal(data, &p); err != nil {
		return decoded{}, err
	}
	switch p.Type {
	case kindAdvertiseSelf, kindQuery, kindAnswer:
	default:
		return decoded{}, fmt.Errorf("unknown advertise packet type %q", p.Type)
	}
	return decoded{kind: p.Type, advertiseSelf: p.AdvertiseSelf, advertisedPeers: p.AdvertisedPeers}, nil
}
