package main

import (
	"encoding/base64"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/drhuangmht/owlnest/internal/identity"
)

var keygenCommand = cli.Command{
	Name:      "keygen",
	Usage:     "generate or load an identity and print its peer id",
	ArgsUsage: "<identity-path>",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "export-public",
			Usage: "also print the base64-encoded protobuf public key",
		},
	},
	Action: keygenAction,
}

func keygenAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("requires exactly one argument: <identity-path>")
	}
	path := c.Args().First()

	id, err := identity.LoadOrCreate(path)
	if err != nil {
		return err
	}

	color.Green("peer id: %s", id.PeerID.String())
	fmt.Printf("identity file: %s\n", path)

	if c.Bool("export-public") {
		pub, err := id.ExportPublicKey()
		if err != nil {
			return err
		}
		fmt.Printf("public key: %s\n", base64.StdEncoding.EncodeToString(pub))
	}
	return nil
}
