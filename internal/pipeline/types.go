package pipeline

import "time"

// AddressRecord is one candidate address. LatencyMs is nil until the
// prober has measured it (or permanently nil if the probe failed, with
// LastError set). Records are never mutated in place across runs; each
// run replaces the whole collection.
type AddressRecord struct {
	Address   string `json:"address"`
	LatencyMs *int64 `json:"latency_ms"`
	LastError string `json:"last_error,omitempty"`
}

// SourceReport records the outcome of scanning one source, including
// failed sources (count 0, succeeded false).
type SourceReport struct {
	Source    string `json:"source"`
	Count     int    `json:"count"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// CollectionSnapshot is the deduplicated union of all source
// extractions for one run. Immutable once written; a new run fully
// replaces the prior snapshot under its store key.
type CollectionSnapshot struct {
	Addresses   []AddressRecord `json:"addresses"`
	CollectedAt time.Time       `json:"collected_at"`
	Sources     []SourceReport  `json:"sources"`
}

// RankedSnapshot is derived from a CollectionSnapshot by probing and
// ranking. Best holds at most the configured fast count, ascending by
// latency; AllProbed holds every probed record in collection order.
type RankedSnapshot struct {
	Best      []AddressRecord `json:"best"`
	AllProbed []AddressRecord `json:"all_probed"`
	ProbedAt  time.Time       `json:"probed_at"`
}
