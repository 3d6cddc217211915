package main

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/urfave/cli"

	"github.com/drhuangmht/owlnest/internal/protocol/messaging"
)

var sendMessageCommand = cli.Command{
	Name:      "send-message",
	Usage:     "send a one-shot text message to a peer and print the round-trip time",
	ArgsUsage: "<peer-id> <body>",
	Action:    sendMessageAction,
}

func sendMessageAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("requires exactly two arguments: <peer-id> <body>")
	}
	to, err := peer.Decode(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid peer id: %w", err)
	}
	body := c.Args().Get(1)

	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	msg := messaging.New(n.Identity.PeerID, to, body)
	rtt, err := n.Messaging.SendMessage(to, msg)
	if err != nil {
		return err
	}
	fmt.Printf("sent in %s\n", rtt)
	return nil
}
