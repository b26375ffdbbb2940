package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/probe"
	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/source"
	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/store"
)

// fakeFetcher returns canned extractions regardless of the url list.
type fakeFetcher struct {
	extractions []source.Extraction
}

func (f fakeFetcher) FetchAll(_ context.Context, _ []string) []source.Extraction {
	return f.extractions
}

// fakeProber resolves latency from a map; addresses missing from it fail.
type fakeProber struct {
	latencies map[string]int64
}

func (f fakeProber) ProbeAll(_ context.Context, addrs []string) []probe.Result {
	out := make([]probe.Result, len(addrs))
	for i, a := range addrs {
		if lat, ok := f.latencies[a]; ok {
			v := lat
			out[i] = probe.Result{Address: a, LatencyMs: &v}
		} else {
			out[i] = probe.Result{Address: a, Err: "probe: timeout"}
		}
	}
	return out
}

// failingKV wraps a KV and fails writes to the named keys.
type failingKV struct {
	store.KV
	failPut map[string]bool
}

func (f *failingKV) Put(ctx context.Context, key string, value []byte) error {
	if f.failPut[key] {
		return errors.New("store unavailable")
	}
	return f.KV.Put(ctx, key, value)
}

func newOrchestrator(kv store.KV, fetcher Fetcher, prober Prober) *Orchestrator {
	return New(fetcher, prober, kv, Config{
		Sources:   []string{"https://src.example"},
		FastCount: 2,
	})
}

func oneSource(addrs ...string) fakeFetcher {
	return fakeFetcher{extractions: []source.Extraction{{
		Source:    "https://src.example",
		Addresses: addrs,
		Count:     len(addrs),
		Succeeded: true,
	}}}
}

func TestRunCollection_PersistsSnapshot(t *testing.T) {
	kv := store.NewMemory()
	o := newOrchestrator(kv, oneSource("1.2.3.4", "5.6.7.8", "1.2.3.4"), fakeProber{})

	snap, err := o.RunCollection(context.Background())
	if err != nil {
		t.Fatalf("RunCollection: %v", err)
	}
	if len(snap.Addresses) != 2 {
		t.Errorf("addresses: got %d, want 2", len(snap.Addresses))
	}

	loaded, err := o.Collection(context.Background())
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if len(loaded.Addresses) != 2 {
		t.Errorf("loaded addresses: got %d, want 2", len(loaded.Addresses))
	}
	if loaded.Addresses[0].Address != "1.2.3.4" {
		t.Errorf("loaded[0]: got %q", loaded.Addresses[0].Address)
	}
}

func TestRunCollection_OverwritesPrior(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	o := newOrchestrator(kv, oneSource("1.1.1.1"), fakeProber{})
	if _, err := o.RunCollection(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}

	o.fetcher = oneSource("2.2.2.2", "3.3.3.3")
	if _, err := o.RunCollection(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}

	loaded, _ := o.Collection(ctx)
	if len(loaded.Addresses) != 2 || loaded.Addresses[0].Address != "2.2.2.2" {
		t.Errorf("snapshot not replaced: %+v", loaded.Addresses)
	}
}

func TestRunSpeedTest_RanksAndPersists(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	prober := fakeProber{latencies: map[string]int64{"A": 50, "C": 10}}
	o := newOrchestrator(kv, oneSource("A", "B", "C"), prober)

	snap, err := o.RunCollection(ctx)
	if err != nil {
		t.Fatalf("RunCollection: %v", err)
	}
	ranked, err := o.RunSpeedTest(ctx, snap)
	if err != nil {
		t.Fatalf("RunSpeedTest: %v", err)
	}

	if len(ranked.Best) != 2 {
		t.Fatalf("best: got %d, want 2", len(ranked.Best))
	}
	if ranked.Best[0].Address != "C" || ranked.Best[1].Address != "A" {
		t.Errorf("best order: got %v", bestAddrs(ranked))
	}

	loaded, err := o.Ranked(ctx)
	if err != nil {
		t.Fatalf("Ranked: %v", err)
	}
	if len(loaded.Best) != 2 || loaded.Best[0].Address != "C" {
		t.Errorf("loaded best: %+v", loaded.Best)
	}
	if len(loaded.AllProbed) != 3 {
		t.Errorf("loaded all_probed: got %d, want 3", len(loaded.AllProbed))
	}
}

func TestRunSpeedTest_EmptyResultStillOverwrites(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	o := newOrchestrator(kv, oneSource("A"), fakeProber{latencies: map[string]int64{"A": 5}})
	snap, _ := o.RunCollection(ctx)
	if _, err := o.RunSpeedTest(ctx, snap); err != nil {
		t.Fatalf("first speed test: %v", err)
	}

	// Second run: every probe fails. The empty ranking replaces the good one.
	o.prober = fakeProber{}
	if _, err := o.RunSpeedTest(ctx, snap); err != nil {
		t.Fatalf("second speed test: %v", err)
	}

	loaded, _ := o.Ranked(ctx)
	if len(loaded.Best) != 0 {
		t.Errorf("best after all-fail run: got %d, want 0", len(loaded.Best))
	}
}

func TestRunFull_ProbeStoreFailureKeepsCollection(t *testing.T) {
	kv := &failingKV{KV: store.NewMemory(), failPut: map[string]bool{store.RankedKey: true}}
	ctx := context.Background()

	o := newOrchestrator(kv, oneSource("A"), fakeProber{latencies: map[string]int64{"A": 5}})

	snap, ranked, err := o.RunFull(ctx)
	if err == nil {
		t.Fatal("expected error from ranked write failure")
	}
	if ranked != nil {
		t.Error("ranked snapshot returned despite write failure")
	}
	if snap == nil || len(snap.Addresses) != 1 {
		t.Fatalf("collection snapshot: %+v", snap)
	}

	// Collection write already happened and stays valid.
	loaded, err := o.Collection(ctx)
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if len(loaded.Addresses) != 1 {
		t.Errorf("collection lost: got %d addresses", len(loaded.Addresses))
	}
}

func TestRunCollection_StoreFailureLeavesPriorSnapshot(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	o := newOrchestrator(mem, oneSource("1.1.1.1"), fakeProber{})
	if _, err := o.RunCollection(ctx); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	o.kv = &failingKV{KV: mem, failPut: map[string]bool{store.CollectionKey: true}}
	o.fetcher = oneSource("2.2.2.2")
	if _, err := o.RunCollection(ctx); err == nil {
		t.Fatal("expected error from collection write failure")
	}

	o.kv = mem
	loaded, _ := o.Collection(ctx)
	if len(loaded.Addresses) != 1 || loaded.Addresses[0].Address != "1.1.1.1" {
		t.Errorf("prior snapshot corrupted: %+v", loaded.Addresses)
	}
}

func TestProbeOne_PatchesStoredRecord(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	o := newOrchestrator(kv, oneSource("A", "B"), fakeProber{latencies: map[string]int64{"A": 42}})
	if _, err := o.RunCollection(ctx); err != nil {
		t.Fatalf("RunCollection: %v", err)
	}

	res, err := o.ProbeOne(ctx, "A")
	if err != nil {
		t.Fatalf("ProbeOne: %v", err)
	}
	if res.LatencyMs == nil || *res.LatencyMs != 42 {
		t.Fatalf("result latency: %+v", res)
	}

	loaded, _ := o.Collection(ctx)
	if loaded.Addresses[0].LatencyMs == nil || *loaded.Addresses[0].LatencyMs != 42 {
		t.Errorf("stored record not patched: %+v", loaded.Addresses[0])
	}
	if loaded.Addresses[1].LatencyMs != nil {
		t.Errorf("unrelated record mutated: %+v", loaded.Addresses[1])
	}
}

func TestProbeOne_UnknownAddressNotStored(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	o := newOrchestrator(kv, oneSource("A"), fakeProber{latencies: map[string]int64{"Z": 7}})
	o.RunCollection(ctx) //nolint:errcheck

	res, err := o.ProbeOne(ctx, "Z")
	if err != nil {
		t.Fatalf("ProbeOne: %v", err)
	}
	if res.LatencyMs == nil {
		t.Fatalf("probe failed: %+v", res)
	}

	loaded, _ := o.Collection(ctx)
	if len(loaded.Addresses) != 1 || loaded.Addresses[0].Address != "A" {
		t.Errorf("collection mutated by foreign probe: %+v", loaded.Addresses)
	}
}

func TestReads_EmptyStoreReturnEmptySnapshots(t *testing.T) {
	o := newOrchestrator(store.NewMemory(), fakeFetcher{}, fakeProber{})
	ctx := context.Background()

	snap, err := o.Collection(ctx)
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if len(snap.Addresses) != 0 {
		t.Errorf("addresses: got %d, want 0", len(snap.Addresses))
	}

	ranked, err := o.Ranked(ctx)
	if err != nil {
		t.Fatalf("Ranked: %v", err)
	}
	if len(ranked.Best) != 0 {
		t.Errorf("best: got %d, want 0", len(ranked.Best))
	}
}

func TestUpdateConfig_SwapsSources(t *testing.T) {
	o := newOrchestrator(store.NewMemory(), fakeFetcher{}, fakeProber{})
	o.UpdateConfig(Config{Sources: []string{"https://new.example"}, FastCount: 9})

	cfg := o.config()
	if len(cfg.Sources) != 1 || cfg.Sources[0] != "https://new.example" {
		t.Errorf("sources: got %v", cfg.Sources)
	}
	if cfg.FastCount != 9 {
		t.Errorf("fast count: got %d, want 9", cfg.FastCount)
	}
}

func TestRun_ScheduledTickTriggersFullRun(t *testing.T) {
	kv := store.NewMemory()
	o := newOrchestrator(kv, oneSource("A"), fakeProber{latencies: map[string]int64{"A": 3}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Run(ctx, 20*time.Millisecond)
		close(done)
	}()

	// Wait for at least one tick to land a snapshot.
	deadline := time.After(2 * time.Second)
	for {
		snap, err := o.Collection(context.Background())
		if err == nil && len(snap.Addresses) > 0 {
			break
		}
		select {
		case <-deadline:
			cancel()
			t.Fatal("no scheduled run completed within 2s")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
