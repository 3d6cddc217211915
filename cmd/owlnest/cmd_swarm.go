package main

import (
	"context"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/urfave/cli"
)

var dialCommand = cli.Command{
	Name:      "dial",
	Usage:     "connect to a peer at a given multiaddr",
	ArgsUsage: "<multiaddr-with-/p2p/-suffix>",
	Action:    dialAction,
}

func dialAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("requires exactly one argument: <multiaddr>")
	}
	addr, err := ma.NewMultiaddr(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid multiaddr: %w", err)
	}
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return fmt.Errorf("multiaddr missing /p2p/ suffix: %w", err)
	}

	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	ctx, dialCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer dialCancel()
	if err := n.Swarm().Dial(ctx, info.ID, info.Addrs); err != nil {
		return err
	}
	fmt.Printf("connected to %s\n", info.ID)
	return nil
}

var listenCommand = cli.Command{
	Name:      "listen",
	Usage:     "add a listen address and report the resolved listeners",
	ArgsUsage: "<multiaddr>",
	Action:    listenAction,
}

func listenAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("requires exactly one argument: <multiaddr>")
	}
	addr, err := ma.NewMultiaddr(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid multiaddr: %w", err)
	}

	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	if err := n.Swarm().Listen(addr); err != nil {
		return err
	}
	for _, a := range n.Swarm().ListListeners() {
		fmt.Println(a)
	}
	return nil
}

var listListenersCommand = cli.Command{
	Name:   "list-listeners",
	Usage:  "print the swarm's current listen addresses",
	Action: listListenersAction,
}

func listListenersAction(c *cli.Context) error {
	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	time.Sleep(c.GlobalDuration("settle"))
	for _, a := range n.Swarm().ListListeners() {
		fmt.Println(a)
	}
	return nil
}

var listConnectedCommand = cli.Command{
	Name:   "list-connected",
	Usage:  "print peers the swarm is currently connected to",
	Action: listConnectedAction,
}

func listConnectedAction(c *cli.Context) error {
	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	time.Sleep(c.GlobalDuration("settle"))
	for _, p := range n.Swarm().ListConnected() {
		fmt.Println(p)
	}
	return nil
}
