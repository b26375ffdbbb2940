// Package store provides the durable key-value layer used for all
// persisted state: collection and ranked snapshots, the singleton access
// token, and login sessions.
//
// Two implementations of the KV interface exist:
//   - Memory — mutex-guarded map with per-key TTL, for tests and
//     ephemeral deployments
//   - SQLite — single kv table with a nullable expiry column, for
//     durable deployments
//
// Both treat expired entries as absent on Get and run a background
// eviction sweep via Run(ctx, interval). Per-key puts are atomic; the
// core never needs cross-key transactions.
package store
