package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/probe"
	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/source"
	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/store"
)

// Fetcher retrieves per-source address extractions.
// *source.Fetcher implements it; tests substitute fakes.
type Fetcher interface {
	FetchAll(ctx context.Context, urls []string) []source.Extraction
}

// Prober measures latency for a capped address list.
// *probe.Prober implements it; tests substitute fakes.
type Prober interface {
	ProbeAll(ctx context.Context, addrs []string) []probe.Result
}

// Config holds the orchestrator's run parameters. It can be swapped at
// runtime via UpdateConfig when the config file is reloaded.
type Config struct {
	// Sources is the list of harvest URLs.
	Sources []string

	// FastCount is the maximum size of the ranked Best subset.
	FastCount int
}

// Orchestrator composes fetch → aggregate → probe → rank into runs and
// persists the resulting snapshots. Each snapshot write is independent:
// a failed probe stage leaves the already-written collection snapshot
// authoritative, and a failed run leaves the last good snapshots in
// place. Concurrent runs are not mutually excluded; runs are infrequent
// and overwriting is idempotent, so last writer wins.
type Orchestrator struct {
	fetcher Fetcher
	prober  Prober
	kv      store.KV

	mu  sync.RWMutex
	cfg Config

	now func() time.Time // injectable for deterministic tests
}

// New creates an Orchestrator over the given collaborators.
func New(fetcher Fetcher, prober Prober, kv store.KV, cfg Config) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		prober:  prober,
		kv:      kv,
		cfg:     cfg,
		now:     time.Now,
	}
}

// UpdateConfig atomically replaces the run parameters.
func (o *Orchestrator) UpdateConfig(cfg Config) {
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()
}

func (o *Orchestrator) config() Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg
}

// RunCollection harvests all sources, aggregates the addresses and
// persists the resulting CollectionSnapshot, unconditionally replacing
// the prior one.
func (o *Orchestrator) RunCollection(ctx context.Context) (*CollectionSnapshot, error) {
	cfg := o.config()

	extractions := o.fetcher.FetchAll(ctx, cfg.Sources)
	snap := Aggregate(extractions, o.now().UTC())

	if err := putJSON(ctx, o.kv, store.CollectionKey, snap); err != nil {
		return nil, fmt.Errorf("pipeline: persist collection: %w", err)
	}

	failed := 0
	for _, r := range snap.Sources {
		if !r.Succeeded {
			failed++
		}
	}
	slog.Info("pipeline: collection complete",
		"addresses", len(snap.Addresses),
		"sources", len(snap.Sources),
		"failed_sources", failed)

	return snap, nil
}

// RunSpeedTest probes the given collection, ranks the results and
// persists the RankedSnapshot, replacing the prior one — even when zero
// probes succeeded, in which case Best is empty. That behavior is
// intentional; see /fast-ips consumers before changing it.
func (o *Orchestrator) RunSpeedTest(ctx context.Context, snap *CollectionSnapshot) (*RankedSnapshot, error) {
	cfg := o.config()

	addrs := make([]string, len(snap.Addresses))
	for i, rec := range snap.Addresses {
		addrs[i] = rec.Address
	}

	results := o.prober.ProbeAll(ctx, addrs)
	probed := make([]AddressRecord, len(results))
	for i, r := range results {
		probed[i] = AddressRecord{
			Address:   r.Address,
			LatencyMs: r.LatencyMs,
			LastError: r.Err,
		}
	}

	ranked := Rank(probed, cfg.FastCount, o.now().UTC())
	if err := putJSON(ctx, o.kv, store.RankedKey, ranked); err != nil {
		return nil, fmt.Errorf("pipeline: persist ranking: %w", err)
	}

	slog.Info("pipeline: speed test complete",
		"probed", len(ranked.AllProbed),
		"best", len(ranked.Best))

	return ranked, nil
}

// RunFull composes RunCollection and RunSpeedTest.
func (o *Orchestrator) RunFull(ctx context.Context) (*CollectionSnapshot, *RankedSnapshot, error) {
	snap, err := o.RunCollection(ctx)
	if err != nil {
		return nil, nil, err
	}
	ranked, err := o.RunSpeedTest(ctx, snap)
	if err != nil {
		// The collection snapshot is already durable and stays valid.
		return snap, nil, err
	}
	return snap, ranked, nil
}

// ProbeOne measures a single address on demand. When the address is
// present in the stored collection its record is patched with the new
// latency (or error); an address outside the collection is probed but
// not stored.
func (o *Orchestrator) ProbeOne(ctx context.Context, addr string) (probe.Result, error) {
	results := o.prober.ProbeAll(ctx, []string{addr})
	if len(results) == 0 {
		return probe.Result{Address: addr, Err: "not probed"}, nil
	}
	res := results[0]

	snap, err := o.Collection(ctx)
	if err != nil {
		return res, fmt.Errorf("pipeline: load collection: %w", err)
	}

	patched := false
	for i := range snap.Addresses {
		if snap.Addresses[i].Address == addr {
			snap.Addresses[i].LatencyMs = res.LatencyMs
			snap.Addresses[i].LastError = res.Err
			patched = true
			break
		}
	}
	if patched {
		if err := putJSON(ctx, o.kv, store.CollectionKey, snap); err != nil {
			return res, fmt.Errorf("pipeline: persist collection: %w", err)
		}
	}
	return res, nil
}

// Collection returns the current CollectionSnapshot, or an empty one if
// no run has ever completed.
func (o *Orchestrator) Collection(ctx context.Context) (*CollectionSnapshot, error) {
	var snap CollectionSnapshot
	if err := getJSON(ctx, o.kv, store.CollectionKey, &snap); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &CollectionSnapshot{}, nil
		}
		return nil, fmt.Errorf("pipeline: load collection: %w", err)
	}
	return &snap, nil
}

// Ranked returns the current RankedSnapshot, or an empty one if no
// speed test has ever completed.
func (o *Orchestrator) Ranked(ctx context.Context) (*RankedSnapshot, error) {
	var snap RankedSnapshot
	if err := getJSON(ctx, o.kv, store.RankedKey, &snap); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &RankedSnapshot{}, nil
		}
		return nil, fmt.Errorf("pipeline: load ranking: %w", err)
	}
	return &snap, nil
}

// Run triggers a full run every interval until ctx is cancelled.
// Failures are logged and absorbed; the next tick tries again.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			start := time.Now()
			snap, _, err := o.RunFull(ctx)
			if err != nil {
				slog.Error("pipeline: scheduled run failed", "err", err)
				continue
			}
			slog.Info("pipeline: scheduled run complete",
				"addresses", len(snap.Addresses),
				"duration", time.Since(start))
		}
	}
}

func putJSON(ctx context.Context, kv store.KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return kv.Put(ctx, key, data)
}

func getJSON(ctx context.Context, kv store.KV, key string, v any) error {
	data, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %q: %w", key, err)
	}
	return nil
}
