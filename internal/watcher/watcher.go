// Package watcher polls a node's mempool for transactions spending watched
// outputs and dumps every match.
package watcher

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/jack695/Btc-mempool-watcher/internal/bitcoind"
	"github.com/jack695/Btc-mempool-watcher/internal/cache"
)

// Source is the node the watcher polls.
type Source interface {
	RawMempool(ctx context.Context) ([]string, error)
	Transaction(ctx context.Context, txid string) (*bitcoind.Transaction, error)
}

// Sink persists matched transactions.
type Sink interface {
	Dump(tx *bitcoind.Transaction) (string, error)
}

// Config controls a Watcher.
type Config struct {
	// WatchFile is reloaded at the start of every cycle.
	WatchFile string
	// CacheTTL is how long a processed txid is skipped.
	CacheTTL time.Duration
	// Interval is the pause between cycles.
	Interval time.Duration
	// MinInterval is the shortest time between the starts of two cycles when
	// a wake-up cuts the pause short. Zero means Interval/10.
	MinInterval time.Duration
	// Workers bounds concurrent transaction fetches. Values below 1 mean 1.
	Workers int
}

// Report counts what happened during one cycle.
type Report struct {
	Watched     int
	Candidates  int
	Skipped     int
	Fetched     int
	FetchFailed int
	Matched     int
	Dumped      int
	DumpFailed  int
	Evicted     int
}

// Watcher remembers which mempool txids it has already processed.
type Watcher struct {
	config Config
	source Source
	sink   Sink
	seen   *cache.Cache[string, struct{}]
}

// Option configures a Watcher.
type Option func(*options)

type options struct {
	cacheOpts []cache.Option
}

// WithClock makes the seen cache read the time from now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.cacheOpts = append(o.cacheOpts, cache.WithClock(now))
	}
}

// New creates a Watcher. Nothing is loaded until the first cycle.
func New(config Config, source Source, sink Sink, opts ...Option) *Watcher {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.MinInterval <= 0 {
		config.MinInterval = config.Interval / 10
	}

	return &Watcher{
		config: config,
		source: source,
		sink:   sink,
		seen:   cache.New[string, struct{}](config.CacheTTL, o.cacheOpts...),
	}
}

// Seen reports whether txid was processed within the cache TTL.
func (w *Watcher) Seen(txid string) bool {
	return w.seen.Contains(txid)
}

// Run executes cycles until ctx is cancelled. A cycle that has started is
// always finished. A value on wake ends the pause between cycles early, but
// never before MinInterval has passed since the previous cycle started.
func (w *Watcher) Run(ctx context.Context, wake <-chan struct{}) {
	cycleCtx := context.WithoutCancel(ctx)
	log.Printf("Processed transactions are skipped for %s", w.seen.DefaultTTL())

	for {
		started := time.Now()
		report, err := w.Cycle(cycleCtx)
		if err != nil {
			log.Printf(color.RedString("Cycle failed: %v"), err)
		} else {
			log.Printf("Cycle done: %s", report)
		}

		if ctx.Err() != nil {
			return
		}

		log.Printf("Sleeping for %s...", w.config.Interval)
		timer := time.NewTimer(w.config.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-wake:
			if !holdUntil(ctx, started.Add(w.config.MinInterval), timer) {
				return
			}
		case <-timer.C:
		}
	}
}

// holdUntil waits until at, or until the regular pause timer fires if that
// comes first. It returns false when ctx is cancelled meanwhile.
func holdUntil(ctx context.Context, at time.Time, timer *time.Timer) bool {
	defer timer.Stop()

	remaining := time.Until(at)
	if remaining <= 0 {
		return true
	}

	floor := time.NewTimer(remaining)
	defer floor.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-floor.C:
	case <-timer.C:
	}
	return true
}

// Cycle reloads the watch list, scans the mempool once and sweeps the seen
// cache. A returned error means the cycle was abandoned before scanning.
func (w *Watcher) Cycle(ctx context.Context) (Report, error) {
	var report Report

	watched, err := LoadWatchList(w.config.WatchFile)
	if err != nil {
		return report, err
	}
	report.Watched = len(watched)
	log.Printf("Watching %d outputs...", len(watched))

	txids, err := w.source.RawMempool(ctx)
	if err != nil {
		return report, err
	}
	report.Candidates = len(txids)

	var stats cycleStats
	g := new(errgroup.Group)
	g.SetLimit(w.config.Workers)
	for _, txid := range txids {
		txid := txid
		g.Go(func() error {
			w.process(ctx, txid, watched, &stats)
			return nil
		})
	}
	_ = g.Wait()

	report.Skipped = int(stats.skipped.Load())
	report.Fetched = int(stats.fetched.Load())
	report.FetchFailed = int(stats.fetchFailed.Load())
	report.Matched = int(stats.matched.Load())
	report.Dumped = int(stats.dumped.Load())
	report.DumpFailed = int(stats.dumpFailed.Load())
	report.Evicted = w.seen.Sweep()

	return report, nil
}

type cycleStats struct {
	skipped     atomic.Int64
	fetched     atomic.Int64
	fetchFailed atomic.Int64
	matched     atomic.Int64
	dumped      atomic.Int64
	dumpFailed  atomic.Int64
}

// process handles a single mempool txid. Errors are logged and counted, never
// returned, so one bad transaction cannot stop the others.
func (w *Watcher) process(ctx context.Context, txid string, watched WatchList, stats *cycleStats) {
	if w.seen.Contains(txid) {
		stats.skipped.Add(1)
		return
	}

	tx, err := w.source.Transaction(ctx, txid)
	if err == nil && tx == nil {
		err = bitcoind.ErrNoResult
	}
	if err != nil {
		stats.fetchFailed.Add(1)
		log.Printf(color.RedString("Error fetching transaction %s: %v"), txid, err)
		return
	}
	stats.fetched.Add(1)

	// Marked even when the dump below fails: a lost dump is not retried
	// while the txid stays cached.
	defer w.seen.Set(txid, struct{}{})

	spent, ok := Spends(&tx.Detail, watched)
	if !ok {
		return
	}
	stats.matched.Add(1)

	log.Printf(color.YellowString("Transaction %s spends watched output %s\n"+
		"\t%s"),
		shortTxID(tx.TxID),
		spent,
		summarize(&tx.Detail),
	)

	name, err := w.sink.Dump(tx)
	if err != nil {
		stats.dumpFailed.Add(1)
		log.Printf(color.RedString("Failed to dump transaction %s: %v"), tx.TxID, err)
		return
	}
	stats.dumped.Add(1)

	log.Printf(color.GreenString("Dumped transaction %s to %s"), tx.TxID, name)
}

// String renders the report for log lines.
func (r Report) String() string {
	return fmt.Sprintf("watched=%d candidates=%d skipped=%d fetched=%d fetch_failed=%d matched=%d dumped=%d dump_failed=%d evicted=%d",
		r.Watched, r.Candidates, r.Skipped, r.Fetched, r.FetchFailed, r.Matched, r.Dumped, r.DumpFailed, r.Evicted)
}
