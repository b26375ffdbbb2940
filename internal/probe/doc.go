// Package probe measures reachability latency for candidate addresses.
// Probes fan out over a fixed-size worker pool, each with its own
// timeout, and fan back in once all have settled; output order matches
// input order so downstream ranking is deterministic.
package probe
