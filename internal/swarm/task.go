// Package swarm owns the composed libp2p host and the single long-lived
// task (§4.7) that drives it: a select loop merging generic swarm
// operations, libp2p network events (republished on the Broadcaster), and
// a periodic timer.
package swarm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// listenCloser is implemented by go-libp2p's concrete swarm network
// (p2p/net/swarm.Swarm) but not exposed on the network.Network interface
// itself, so RemoveListeners type-asserts for it rather than widening the
// interface this package depends on.
type listenCloser interface {
	ListenClose(addrs ...ma.Multiaddr) bool
}

// Task owns the host and the generic swarm-operations command channel. It
// has no notion of messaging/advertise/blob; those run as independent
// Behaviours that watch the host's event bus themselves and publish their
// own events on the same Broadcaster.
type Task struct {
	host host.Host
	bus  *Broadcaster

	bufferSize   int
	eventTimeout time.Duration

	cmds chan any

	// externalAddrs holds operator-declared external addresses. go-libp2p
	// does not expose a runtime-mutable equivalent of rust-libp2p's
	// Swarm::add_external_address on the generic host.Host interface, so
	// this is tracked independently; ListExternalAddresses returns exactly
	// these declared addresses.
	extMu         sync.Mutex
	externalAddrs map[string]ma.Multiaddr

	metrics *Metrics
}

// NewTask constructs a Task bound to h, publishing swarm-level events on
// bus. bufferSize governs the backpressure gate (rounded to a multiple of 4
// by the caller, per the config layer); cmdBufferSize sizes the command
// channel. metrics may be nil.
func NewTask(h host.Host, bus *Broadcaster, bufferSize, cmdBufferSize int, eventTimeout time.Duration, metrics *Metrics) *Task {
	return &Task{
		host:          h,
		bus:           bus,
		bufferSize:    bufferSize,
		eventTimeout:  eventTimeout,
		cmds:          make(chan any, cmdBufferSize),
		externalAddrs: make(map[string]ma.Multiaddr),
		metrics:       metrics,
	}
}

// Host returns the underlying libp2p host, for wiring protocol Behaviours.
func (t *Task) Host() host.Host { return t.host }

// Handle returns a SwarmHandle bound to this task's command channel.
func (t *Task) Handle() SwarmHandle {
	return SwarmHandle{cmds: t.cmds}
}

// Run drives the select loop described in §4.7 until ctx is cancelled.
func (t *Task) Run(ctx context.Context) {
	sub, err := t.host.EventBus().Subscribe([]any{
		new(event.EvtPeerConnectednessChanged),
		new(event.EvtLocalAddressesUpdated),
		new(event.EvtLocalReachabilityChanged),
	})
	if err != nil {
		slog.Error("swarm: event bus subscribe failed", "error", err)
		return
	}
	defer sub.Close()

	ticker := time.NewTicker(t.eventTimeout)
	defer ticker.Stop()

	// gate is the backpressure threshold from §4.7: (buffer_size >> 2) << 2.
	gate := (t.bufferSize >> 2) << 2

	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-t.cmds:
			t.handleCmd(cmd)

		case raw, ok := <-sub.Out():
			if !ok {
				return
			}
			if t.bus.Lag() >= gate {
				// Backpressure: stop forwarding swarm events once the
				// broadcast backlog reaches the gate, rather than let it
				// grow unbounded while a subscriber lags.
				continue
			}
			t.bus.Publish(Event{Protocol: "swarm", Payload: raw})

		case <-ticker.C:
			lag := t.bus.Lag()
			if t.metrics != nil {
				t.metrics.SwarmEventLag.Set(float64(lag))
				t.metrics.ConnectedPeers.Set(float64(len(t.host.Network().Peers())))
			}
			if lag > t.bufferSize/2 {
				slog.Warn("swarm: event subscriber lagging", "lag", lag, "buffer_size", t.bufferSize)
			}
		}
	}
}

func (t *Task) handleCmd(cmd any) {
	if t.metrics != nil {
		t.metrics.SwarmCommands.WithLabelValues(cmdKind(cmd)).Inc()
	}
	switch c := cmd.(type) {
	case dialCmd:
		c.callback <- t.host.Connect(c.ctx, peer.AddrInfo{ID: c.peerID, Addrs: c.addrs})

	case listenCmd:
		c.callback <- t.host.Network().Listen(c.addr)

	case listListenersCmd:
		c.callback <- t.host.Network().ListenAddresses()

	case removeListenersCmd:
		lc, ok := t.host.Network().(listenCloser)
		if !ok {
			c.callback <- false
			return
		}
		c.callback <- lc.ListenClose(c.addrs...)

	case addExternalAddressCmd:
		t.extMu.Lock()
		t.externalAddrs[c.addr.String()] = c.addr
		t.extMu.Unlock()

	case removeExternalAddressCmd:
		t.extMu.Lock()
		delete(t.externalAddrs, c.addr.String())
		t.extMu.Unlock()

	case listExternalAddressesCmd:
		t.extMu.Lock()
		addrs := make([]ma.Multiaddr, 0, len(t.externalAddrs))
		for _, a := range t.externalAddrs {
			addrs = append(addrs, a)
		}
		t.extMu.Unlock()
		c.callback <- addrs

	case listConnectedCmd:
		c.callback <- t.host.Network().Peers()

	case isConnectedCmd:
		c.callback <- t.host.Network().Connectedness(c.peerID) == network.Connected

	case disconnectCmd:
		c.callback <- t.host.Network().ClosePeer(c.peerID)
	}
}

func cmdKind(cmd any) string {
	switch cmd.(type) {
	case dialCmd:
		return "dial"
	case listenCmd:
		return "listen"
	case listListenersCmd:
		return "list_listeners"
	case removeListenersCmd:
		return "remove_listeners"
	case addExternalAddressCmd:
		return "add_external_address"
	case removeExternalAddressCmd:
		return "remove_external_address"
	case listExternalAddressesCmd:
		return "list_external_addresses"
	case listConnectedCmd:
		return "list_connected"
	case isConnectedCmd:
		return "is_connected"
	case disconnectCmd:
		return "disconnect"
	default:
		return "unknown"
	}
}
