package main

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/urfave/cli"
)

var advertiseCommand = cli.Command{
	Name:  "advertise",
	Usage: "act as, or query, a relay's advertised-peer list",
	Subcommands: []cli.Command{
		advertiseProviderStartCommand,
		advertiseProviderStopCommand,
		advertiseProviderStateCommand,
		advertiseListCommand,
		advertiseRemoveCommand,
		advertiseClearCommand,
		advertiseSetRemoteCommand,
		advertiseQueryCommand,
	},
}

var advertiseProviderStartCommand = cli.Command{
	Name:   "provider-start",
	Usage:  "start answering advertise queries as a provider",
	Action: advertiseSetProviderAction(true),
}

var advertiseProviderStopCommand = cli.Command{
	Name:   "provider-stop",
	Usage:  "stop answering advertise queries",
	Action: advertiseSetProviderAction(false),
}

func advertiseSetProviderAction(state bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		n, cancel, err := bootNode(c)
		if err != nil {
			return err
		}
		defer cancel()

		got := n.Advertise.SetProviderState(state)
		fmt.Printf("provider state: %t\n", got)
		return nil
	}
}

var advertiseProviderStateCommand = cli.Command{
	Name:   "provider-state",
	Usage:  "print whether this node is currently a provider",
	Action: advertiseProviderStateAction,
}

func advertiseProviderStateAction(c *cli.Context) error {
	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	fmt.Printf("provider state: %t\n", n.Advertise.GetProviderState())
	return nil
}

var advertiseListCommand = cli.Command{
	Name:   "list",
	Usage:  "list the locally advertised peer set",
	Action: advertiseListAction,
}

func advertiseListAction(c *cli.Context) error {
	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	for _, p := range n.Advertise.ListAdvertised() {
		fmt.Println(p)
	}
	return nil
}

var advertiseRemoveCommand = cli.Command{
	Name:      "remove",
	Usage:     "remove a peer from the locally advertised set",
	ArgsUsage: "<peer-id>",
	Action:    advertiseRemoveAction,
}

func advertiseRemoveAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("requires exactly one argument: <peer-id>")
	}
	p, err := peer.Decode(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid peer id: %w", err)
	}

	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	fmt.Printf("removed: %t\n", n.Advertise.RemoveAdvertised(p))
	return nil
}

var advertiseClearCommand = cli.Command{
	Name:   "clear",
	Usage:  "empty the locally advertised set",
	Action: advertiseClearAction,
}

func advertiseClearAction(c *cli.Context) error {
	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	n.Advertise.ClearAdvertised()
	return nil
}

var advertiseSetRemoteCommand = cli.Command{
	Name:      "set-remote",
	Usage:     "ask a remote peer to add or remove us from its advertised set",
	ArgsUsage: "<peer-id> <true|false>",
	Action:    advertiseSetRemoteAction,
}

func advertiseSetRemoteAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("requires exactly two arguments: <peer-id> <true|false>")
	}
	remote, err := peer.Decode(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid peer id: %w", err)
	}
	var state bool
	switch c.Args().Get(1) {
	case "true":
		state = true
	case "false":
		state = false
	default:
		return fmt.Errorf("second argument must be true or false")
	}

	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	n.Advertise.SetRemoteAdvertisement(remote, state)
	return nil
}

var advertiseQueryCommand = cli.Command{
	Name:      "query",
	Usage:     "query a relay for its advertised peer set",
	ArgsUsage: "<relay-peer-id>",
	Action:    advertiseQueryAction,
}

func advertiseQueryAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("requires exactly one argument: <relay-peer-id>")
	}
	relay, err := peer.Decode(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid peer id: %w", err)
	}

	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	list, err := n.Advertise.QueryAdvertisedPeer(relay)
	if err != nil {
		return err
	}
	if list == nil {
		fmt.Println("relay is not providing")
		return nil
	}
	for _, p := range *list {
		fmt.Println(p)
	}
	return nil
}
