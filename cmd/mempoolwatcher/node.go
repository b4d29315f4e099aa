package main

import (
	"context"
	"log"

	"github.com/jack695/Btc-mempool-watcher/internal/bitcoind"
)

func connectToBitcoinNode(ctx context.Context, config *Config) *bitcoind.Client {
	log.Printf("Connecting to node %s (%s)", config.RPCHost, config.network.Name)

	client, err := bitcoind.Dial(bitcoind.Config{
		Host:       config.RPCHost,
		User:       config.RPCUser,
		Pass:       config.RPCPassword,
		CookiePath: config.RPCCookiePath,
		Params:     config.network.Name,
		Timeout:    config.rpcTimeout(),
	})
	if err != nil {
		log.Fatalf("Error connecting to Bitcoin node: %v", err)
	}

	// An unreachable node is not fatal: every cycle retries on its own.
	client.Probe(ctx, config.RPCHost)
	return client
}
