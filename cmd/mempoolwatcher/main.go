package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/jack695/Btc-mempool-watcher/internal/dump"
	"github.com/jack695/Btc-mempool-watcher/internal/watcher"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}

func main() {
	// Load configuration
	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := dump.New(config.DumpFolder)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// A broken watch list at startup is a configuration error. Later cycles
	// only log it so the file can be fixed while running.
	outputs, err := watcher.LoadWatchList(config.OutputsFile)
	if err != nil {
		log.Fatalf("Error loading watched outputs: %v", err)
	}
	log.Printf("Loaded %d watched outputs from %s", len(outputs), config.OutputsFile)

	// Connect to Bitcoin node
	client := connectToBitcoinNode(ctx, config)
	defer client.Shutdown()

	wake := make(chan struct{}, 1)
	if config.ZMQ != "" {
		go subscribeHashTx(ctx, config.ZMQ, wake)
	}

	w := watcher.New(watcher.Config{
		WatchFile:   config.OutputsFile,
		CacheTTL:    config.cacheTTL(),
		Interval:    config.fetchInterval(),
		MinInterval: config.zmqMinInterval(),
		Workers:     config.Workers,
	}, client, sink)

	log.Printf(color.GreenString("Watching mempool, dumping matches to %s"), sink.Path())
	w.Run(ctx, wake)

	log.Println("Shutting down")
}
