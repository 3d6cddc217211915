package swarm

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/drhuangmht/owlnest/internal/protoerr"
)

const defaultOpTimeout = 10 * time.Second

type dialCmd struct {
	ctx      context.Context
	peerID   peer.ID
	addrs    []ma.Multiaddr
	callback chan<- error
}

type listenCmd struct {
	addr     ma.Multiaddr
	callback chan<- error
}

type listListenersCmd struct {
	callback chan<- []ma.Multiaddr
}

type removeListenersCmd struct {
	addrs    []ma.Multiaddr
	callback chan<- bool
}

type addExternalAddressCmd struct {
	addr ma.Multiaddr
}

type removeExternalAddressCmd struct {
	addr ma.Multiaddr
}

type listExternalAddressesCmd struct {
	callback chan<- []ma.Multiaddr
}

type listConnectedCmd struct {
	callback chan<- []peer.ID
}

type isConnectedCmd struct {
	peerID   peer.ID
	callback chan<- bool
}

type disconnectCmd struct {
	peerID   peer.ID
	callback chan<- error
}

// SwarmHandle is a cheap, clonable value applications use to drive the
// generic swarm operations of a running Task: dialing, listening, and
// connection bookkeeping that isn't owned by any single protocol.
type SwarmHandle struct {
	cmds chan<- any
}

// Dial connects to peerID at the given addresses, blocking up to
// defaultOpTimeout.
func (h SwarmHandle) Dial(ctx context.Context, peerID peer.ID, addrs []ma.Multiaddr) error {
	callback := make(chan error, 1)
	h.cmds <- dialCmd{ctx: ctx, peerID: peerID, addrs: addrs, callback: callback}
	select {
	case err := <-callback:
		return err
	case <-time.After(defaultOpTimeout):
		return protoerr.ErrTimeout
	}
}

// Listen starts listening on addr.
func (h SwarmHandle) Listen(addr ma.Multiaddr) error {
	callback := make(chan error, 1)
	h.cmds <- listenCmd{addr: addr, callback: callback}
	select {
	case err := <-callback:
		return err
	case <-time.After(defaultOpTimeout):
		return protoerr.ErrTimeout
	}
}

// ListListeners snapshots the host's current listen addresses.
func (h SwarmHandle) ListListeners() []ma.Multiaddr {
	callback := make(chan []ma.Multiaddr, 1)
	h.cmds <- listListenersCmd{callback: callback}
	return <-callback
}

// RemoveListeners closes the listeners bound to addrs, reporting whether
// the underlying network supports runtime listener removal.
func (h SwarmHandle) RemoveListeners(addrs []ma.Multiaddr) bool {
	callback := make(chan bool, 1)
	h.cmds <- removeListenersCmd{addrs: addrs, callback: callback}
	return <-callback
}

// AddExternalAddress records addr as an externally reachable address for
// this node.
func (h SwarmHandle) AddExternalAddress(addr ma.Multiaddr) {
	h.cmds <- addExternalAddressCmd{addr: addr}
}

// RemoveExternalAddress forgets a previously declared external address.
func (h SwarmHandle) RemoveExternalAddress(addr ma.Multiaddr) {
	h.cmds <- removeExternalAddressCmd{addr: addr}
}

// ListExternalAddresses snapshots the declared external addresses.
func (h SwarmHandle) ListExternalAddresses() []ma.Multiaddr {
	callback := make(chan []ma.Multiaddr, 1)
	h.cmds <- listExternalAddressesCmd{callback: callback}
	return <-callback
}

// ListConnected snapshots every peer with a live connection.
func (h SwarmHandle) ListConnected() []peer.ID {
	callback := make(chan []peer.ID, 1)
	h.cmds <- listConnectedCmd{callback: callback}
	return <-callback
}

// IsConnectedToPeerId reports whether peerID currently has a live
// connection.
func (h SwarmHandle) IsConnectedToPeerId(peerID peer.ID) bool {
	callback := make(chan bool, 1)
	h.cmds <- isConnectedCmd{peerID: peerID, callback: callback}
	return <-callback
}

// DisconnectFromPeerId closes every connection to peerID.
func (h SwarmHandle) DisconnectFromPeerId(peerID peer.ID) error {
	callback := make(chan error, 1)
	h.cmds <- disconnectCmd{peerID: peerID, callback: callback}
	select {
	case err := <-callback:
		return err
	case <-time.After(defaultOpTimeout):
		return protoerr.ErrTimeout
	}
}
