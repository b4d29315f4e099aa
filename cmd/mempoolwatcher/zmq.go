package main

import (
	"context"
	"log"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"
)

// subscribeHashTx wakes the watcher whenever the node announces a new
// transaction on its ZeroMQ hashtx endpoint. Notifications arriving while a
// wake-up is already pending are coalesced.
func subscribeHashTx(ctx context.Context, endpoint string, wake chan<- struct{}) {
	log.Println("Starting ZeroMQ mempool notifications...")

	// Initialize ZMQ context and subscriber
	zctx, err := zmq4.NewContext()
	if err != nil {
		log.Printf("Failed to create ZMQ context: %v", err)
		return
	}
	defer zctx.Term()

	subscriber, err := zctx.NewSocket(zmq4.SUB)
	if err != nil {
		log.Printf("Failed to create ZMQ subscriber socket: %v", err)
		return
	}
	defer subscriber.Close()

	// Wake up regularly to notice shutdown.
	if err := subscriber.SetRcvtimeo(time.Second); err != nil {
		log.Printf("Failed to set ZMQ receive timeout: %v", err)
		return
	}

	if err := subscriber.Connect(endpoint); err != nil {
		log.Printf("Failed to connect to ZMQ endpoint %s: %v", endpoint, err)
		return
	}

	if err := subscriber.SetSubscribe("hashtx"); err != nil {
		log.Printf("Failed to subscribe to hashtx topic: %v", err)
		return
	}

	log.Printf("Successfully subscribed to ZMQ endpoint %s", endpoint)

	for ctx.Err() == nil {
		// Receive multipart message (topic, body, sequence)
		msgs, err := subscriber.RecvMessageBytes(0)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			log.Printf("Error receiving ZMQ message: %v", err)
			continue
		}

		if len(msgs) < 2 || string(msgs[0]) != "hashtx" {
			log.Printf("Received unexpected ZMQ message")
			continue
		}

		select {
		case wake <- struct{}{}:
		default:
		}
	}
}
