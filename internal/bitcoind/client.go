// Package bitcoind talks to a Bitcoin Core node over its JSON-RPC interface.
package bitcoind

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/rpcclient"
)

// ErrNoResult is returned when the node answers without a result.
var ErrNoResult = errors.New("rpc response has no result")

// Config holds the connection settings for a node.
type Config struct {
	// Host is host:port, optionally followed by /wallet/<name>.
	Host       string
	User       string
	Pass       string
	CookiePath string
	// Params is the chain name, e.g. "mainnet" or "regtest".
	Params string
	// Timeout bounds every call. Zero waits forever.
	Timeout time.Duration
}

// Transaction is a verbose getrawtransaction result. Raw holds the bytes
// exactly as the node sent them; Detail is decoded from Raw.
type Transaction struct {
	TxID   string
	Detail btcjson.TxRawResult
	Raw    json.RawMessage
}

// Client wraps an rpcclient in HTTP POST mode.
//
// rpcclient fails a call only when the response body is not JSON-RPC or
// carries an error object. A non-2xx status whose body is a well-formed
// success response is accepted as a result.
type Client struct {
	rpc     *rpcclient.Client
	timeout time.Duration
}

// Dial creates a client. No request is sent until the first call.
func Dial(cfg Config) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		Params:       cfg.Params,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
	// rpcclient prefers the cookie over user/pass whenever a path is set.
	if cfg.User == "" {
		connCfg.CookiePath = cfg.CookiePath
	}

	rpc, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating rpc client for %s: %w", cfg.Host, err)
	}

	return &Client{rpc: rpc, timeout: cfg.Timeout}, nil
}

// Shutdown stops the underlying rpcclient.
func (c *Client) Shutdown() {
	c.rpc.Shutdown()
}

// BlockCount returns the height of the node's best chain.
func (c *Client) BlockCount(ctx context.Context) (int64, error) {
	return call(ctx, c.timeout, c.rpc.GetBlockCount)
}

// RawMempool lists the ids of all transactions in the node's mempool.
func (c *Client) RawMempool(ctx context.Context) ([]string, error) {
	hashes, err := call(ctx, c.timeout, c.rpc.GetRawMempool)
	if err != nil {
		return nil, fmt.Errorf("getrawmempool: %w", err)
	}

	txids := make([]string, 0, len(hashes))
	for _, h := range hashes {
		txids = append(txids, h.String())
	}
	return txids, nil
}

// Transaction fetches the verbose form of txid.
func (c *Client) Transaction(ctx context.Context, txid string) (*Transaction, error) {
	id, err := json.Marshal(txid)
	if err != nil {
		return nil, err
	}
	params := []json.RawMessage{id, json.RawMessage("true")}

	raw, err := call(ctx, c.timeout, func() (json.RawMessage, error) {
		return c.rpc.RawRequest("getrawtransaction", params)
	})
	if err != nil {
		return nil, fmt.Errorf("getrawtransaction %s: %w", txid, err)
	}

	return ParseTransaction(txid, raw)
}

// ParseTransaction decodes a verbose getrawtransaction result. txid is used
// when the result does not carry its own.
func ParseTransaction(txid string, raw json.RawMessage) (*Transaction, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("getrawtransaction %s: %w", txid, ErrNoResult)
	}

	tx := &Transaction{TxID: txid, Raw: raw}
	if err := json.Unmarshal(raw, &tx.Detail); err != nil {
		return nil, fmt.Errorf("error decoding transaction %s: %w", txid, err)
	}
	if tx.Detail.Txid != "" {
		tx.TxID = tx.Detail.Txid
	}

	return tx, nil
}

// call runs fn and waits for it until ctx is done or timeout elapses.
// rpcclient has no context support, so an abandoned call keeps running in
// the background until the node answers.
func call[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Probe logs the node height, or a warning when the node is unreachable.
func (c *Client) Probe(ctx context.Context, host string) {
	height, err := c.BlockCount(ctx)
	if err != nil {
		log.Printf("Node %s is not answering yet: %v", host, err)
		return
	}
	log.Printf("Successfully connected to Bitcoin node. Current block height: %d", height)
}
