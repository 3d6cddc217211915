// Command owlnest is a thin urfave/cli front end over the handle layer: it
// boots one Node, performs one operation, and exits. It is a demonstration
// client, not a daemon — every invocation pays the cost of a fresh libp2p
// host, and list-listeners and list-connected also wait a short settle
// delay before reading the host's state.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli"
)

// Set via -ldflags at build time, mirroring the teacher's cmd/shurli.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	app := cli.NewApp()
	app.Name = "owlnest"
	app.Usage = "drive an owlnest swarm: dial, listen, message, advertise, and transfer files"
	app.Version = fmt.Sprintf("%s (%s) built %s", version, commit, buildDate)
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "",
			Usage: "path to a swarm config YAML file (defaults applied when omitted)",
		},
		cli.DurationFlag{
			Name:  "settle",
			Value: defaultSettleDelay,
			Usage: "time to let the host finish connecting before issuing the command",
		},
	}
	app.Commands = []cli.Command{
		keygenCommand,
		dialCommand,
		listenCommand,
		listListenersCommand,
		listConnectedCommand,
		sendMessageCommand,
		advertiseCommand,
		blobCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "owlnest:", err)
		os.Exit(1)
	}
}
