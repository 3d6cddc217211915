package main

import (
	"context"
	"time"

	"github.com/urfave/cli"

	"github.com/drhuangmht/owlnest/internal/config"
	"github.com/drhuangmht/owlnest/internal/node"
)

const defaultSettleDelay = 300 * time.Millisecond

// bootNode loads config per the --config flag and brings up a Node with
// its background goroutines running, returning a cancel func the caller
// must defer.
func bootNode(c *cli.Context) (*node.Node, context.CancelFunc, error) {
	cfgPath := c.GlobalString("config")
	var cfg *config.SwarmConfig
	var err error
	if cfgPath == "" {
		cfg = config.Default()
	} else {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return nil, nil, err
		}
	}

	n, err := node.New(cfg, node.Options{EnableNAT: true, EnableHolePunch: true}, version)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)

	return n, func() {
		cancel()
		n.Close()
	}, nil
}
