package main

import (
	"fmt"
	"strconv"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/urfave/cli"
)

var blobCommand = cli.Command{
	Name:  "blob",
	Usage: "send and receive files over the swarm",
	Subcommands: []cli.Command{
		blobSendCommand,
		blobRecvCommand,
		blobListSendCommand,
		blobListRecvCommand,
		blobCancelSendCommand,
		blobCancelRecvCommand,
	},
}

var blobSendCommand = cli.Command{
	Name:      "send",
	Usage:     "offer a file to a peer",
	ArgsUsage: "<peer-id> <path>",
	Action:    blobSendAction,
}

func blobSendAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("requires exactly two arguments: <peer-id> <path>")
	}
	to, err := peer.Decode(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid peer id: %w", err)
	}
	path := c.Args().Get(1)

	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	sendID, err := n.Blob.Send(to, path)
	if err != nil {
		return err
	}
	fmt.Printf("send_id: %d\n", sendID)
	return nil
}

var blobRecvCommand = cli.Command{
	Name:  "recv",
	Usage: "accept or reject a pending inbound transfer",
	Subcommands: []cli.Command{
		blobRecvAcceptCommand,
		blobRecvRejectCommand,
	},
}

var blobRecvAcceptCommand = cli.Command{
	Name:      "accept",
	Usage:     "accept a pending transfer and write it to destination",
	ArgsUsage: "<recv-id> <destination>",
	Action:    blobRecvAcceptAction,
}

func blobRecvAcceptAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("requires exactly two arguments: <recv-id> <destination>")
	}
	recvID, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid recv_id: %w", err)
	}
	dest := c.Args().Get(1)

	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	return n.Blob.AcceptFile(recvID, dest)
}

var blobRecvRejectCommand = cli.Command{
	Name:      "reject",
	Usage:     "reject a pending transfer",
	ArgsUsage: "<recv-id>",
	Action:    blobRecvRejectAction,
}

func blobRecvRejectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("requires exactly one argument: <recv-id>")
	}
	recvID, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid recv_id: %w", err)
	}

	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	return n.Blob.RejectFile(recvID)
}

var blobListSendCommand = cli.Command{
	Name:   "list-send",
	Usage:  "list in-flight outbound transfers",
	Action: blobListSendAction,
}

func blobListSendAction(c *cli.Context) error {
	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	for _, s := range n.Blob.ListPendingSend() {
		fmt.Printf("send_id=%d remote=%s path=%s %d/%d started=%t accepted=%t\n",
			s.SendID, s.Remote, s.Path, s.BytesSent, s.BytesTotal, s.Started, s.Accepted)
	}
	return nil
}

var blobListRecvCommand = cli.Command{
	Name:   "list-recv",
	Usage:  "list in-flight inbound transfers",
	Action: blobListRecvAction,
}

func blobListRecvAction(c *cli.Context) error {
	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	for _, r := range n.Blob.ListPendingRecv() {
		fmt.Printf("recv_id=%d from=%s file=%s %d/%d accepted=%t\n",
			r.RecvID, r.From, r.FileName, r.BytesReceived, r.BytesTotal, r.Accepted)
	}
	return nil
}

var blobCancelSendCommand = cli.Command{
	Name:      "cancel-send",
	Usage:     "cancel an in-flight outbound transfer",
	ArgsUsage: "<send-id>",
	Action:    blobCancelSendAction,
}

func blobCancelSendAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("requires exactly one argument: <send-id>")
	}
	sendID, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid send_id: %w", err)
	}

	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	return n.Blob.CancelSend(sendID)
}

var blobCancelRecvCommand = cli.Command{
	Name:      "cancel-recv",
	Usage:     "cancel an in-flight inbound transfer",
	ArgsUsage: "<recv-id>",
	Action:    blobCancelRecvAction,
}

func blobCancelRecvAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("requires exactly one argument: <recv-id>")
	}
	recvID, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid recv_id: %w", err)
	}

	n, cancel, err := bootNode(c)
	if err != nil {
		return err
	}
	defer cancel()

	return n.Blob.CancelRecv(recvID)
}
