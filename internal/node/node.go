// Package node composes a libp2p host, the three application protocol
// behaviours, and the generic swarm task into one runnable instance.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/routing"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ws "github.com/libp2p/go-libp2p/p2p/transport/websocket"

	"github.com/drhuangmht/owlnest/internal/config"
	"github.com/drhuangmht/owlnest/internal/identity"
	"github.com/drhuangmht/owlnest/internal/protocol/advertise"
	"github.com/drhuangmht/owlnest/internal/protocol/blob"
	"github.com/drhuangmht/owlnest/internal/protocol/messaging"
	"github.com/drhuangmht/owlnest/internal/swarm"
)

// mdnsRendezvous tags the mDNS service so owlnest nodes only discover each
// other, not unrelated libp2p services on the same LAN segment.
const mdnsRendezvous = "owlnest-mdns"

// Options toggles the NAT-traversal and discovery behaviours §1 assumes
// exist but treats as opaque collaborators: these compose as ordinary
// libp2p.Option values and are never reimplemented here.
type Options struct {
	EnableMDNS  bool
	EnableDHT   bool
	RelayAddrs  []string
	EnableNAT   bool
	EnableHolePunch bool
}

// Node is one running owlnest instance: an identity, a libp2p host, the
// three protocol behaviours, the swarm task, and the metrics registry
// backing all of them.
type Node struct {
	Identity *identity.Identity
	Host     host.Host
	Metrics  *swarm.Metrics

	Bus  *swarm.Broadcaster
	Task *swarm.Task

	Messaging messaging.Handle
	Advertise advertise.Handle
	Blob      blob.Handle

	msgBeh *messaging.Behaviour
	advBeh *advertise.Behaviour
	blobBeh *blob.Behaviour

	tracker *swarm.ConnTracker
	kdht    *dht.IpfsDHT
	mdnsSvc mdns.Service

	cancel context.CancelFunc
}

// New loads/generates identity, composes the libp2p host, wires every
// protocol Behaviour and the swarm Task to a shared Broadcaster. Apart from
// the host itself and the mDNS service (when enabled), nothing is started
// yet — call Run to actually drive the node.
func New(cfg *config.SwarmConfig, opts Options, version string) (*Node, error) {
	id, err := identity.LoadOrCreate(cfg.IdentityPath)
	if err != nil {
		return nil, fmt.Errorf("loading identity: %w", err)
	}

	tracker := swarm.NewConnTracker()

	hostOpts := []libp2p.Option{
		libp2p.Identity(id.PrivKey()),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.Transport(ws.New),
	}
	if len(cfg.ListenAddresses) > 0 {
		hostOpts = append(hostOpts, libp2p.ListenAddrStrings(cfg.ListenAddresses...))
	}
	if len(opts.RelayAddrs) > 0 {
		relayInfos, err := parseRelayAddrs(opts.RelayAddrs)
		if err != nil {
			return nil, fmt.Errorf("parsing relay addresses: %w", err)
		}
		if len(relayInfos) > 0 {
			hostOpts = append(hostOpts, libp2p.EnableAutoRelayWithStaticRelays(relayInfos))
		}
	}
	if opts.EnableNAT {
		hostOpts = append(hostOpts, libp2p.NATPortMap())
	}
	if opts.EnableHolePunch {
		hostOpts = append(hostOpts, libp2p.EnableHolePunching())
	}

	var kdht *dht.IpfsDHT
	if opts.EnableDHT {
		hostOpts = append(hostOpts, libp2p.Routing(func(h host.Host) (routing.PeerRouting, error) {
			d, err := dht.New(context.Background(), h, dht.Mode(dht.ModeClient))
			if err != nil {
				return nil, err
			}
			kdht = d
			return d, nil
		}))
	}

	h, err := libp2p.New(hostOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating libp2p host: %w", err)
	}
	h.Network().Notify(tracker)

	var mdnsSvc mdns.Service
	if opts.EnableMDNS {
		mdnsSvc = mdns.NewMdnsService(h, mdnsRendezvous, &mdnsNotifee{host: h})
		if err := mdnsSvc.Start(); err != nil {
			h.Close()
			return nil, fmt.Errorf("starting mdns: %w", err)
		}
	}

	metrics := swarm.NewMetrics(version, goVersionString())
	bus := swarm.NewBroadcaster()
	task := swarm.NewTask(h, bus, cfg.SwarmEventBufferSize, cfg.CommandBufferSize, cfg.SwarmEventTimeout(), metrics)

	msgBeh := messaging.New(h, cfg.Messaging.Timeout(), bus)
	advBeh := advertise.New(h, cfg.Advertise.Timeout(), bus)
	blobBeh := blob.New(h, cfg.Blob.Timeout(), cfg.Blob.ChunkSizeBytes, bus)

	return &Node{
		Identity: id,
		Host:     h,
		Metrics:  metrics,
		Bus:      bus,
		Task:     task,

		Messaging: messaging.HandleFrom(msgBeh),
		Advertise: advertise.HandleFrom(advBeh, cfg.Advertise.QueryTimeout()),
		Blob:      blob.HandleFrom(blobBeh, cfg.Blob.Timeout()),

		msgBeh:  msgBeh,
		advBeh:  advBeh,
		blobBeh: blobBeh,

		tracker: tracker,
		kdht:    kdht,
		mdnsSvc: mdnsSvc,
	}, nil
}

// Swarm returns a SwarmHandle for the generic dial/listen/connection
// operations of §4.7.
func (n *Node) Swarm() swarm.SwarmHandle { return n.Task.Handle() }

// Run starts every Behaviour and the swarm Task, blocking until ctx is
// cancelled.
func (n *Node) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	go n.msgBeh.Run(ctx)
	go n.advBeh.Run(ctx)
	go n.blobBeh.Run(ctx)
	n.Task.Run(ctx)
}

// Close stops the node's background work and tears down the host.
func (n *Node) Close() error {
	if n.cancel != nil {
		n.cancel()
	}
	if n.mdnsSvc != nil {
		n.mdnsSvc.Close()
	}
	if n.kdht != nil {
		n.kdht.Close()
	}
	return n.Host.Close()
}

type mdnsNotifee struct {
	host host.Host
}

func (n *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == n.host.ID() {
		return
	}
	if err := n.host.Connect(context.Background(), pi); err != nil {
		slog.Debug("node: mdns-discovered peer connect failed", "peer", pi.ID, "error", err)
	}
}

func goVersionString() string { return runtime.Version() }

func parseRelayAddrs(addrs []string) ([]peer.AddrInfo, error) {
	seen := make(map[peer.ID]bool)
	var infos []peer.AddrInfo
	for _, s := range addrs {
		ai, err := peer.AddrInfoFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid relay addr %s: %w", s, err)
		}
		if seen[ai.ID] {
			for i := range infos {
				if infos[i].ID == ai.ID {
					infos[i].Addrs = append(infos[i].Addrs, ai.Addrs...)
				}
			}
			continue
		}
		seen[ai.ID] = true
		infos = append(infos, *ai)
	}
	return infos, nil
}
