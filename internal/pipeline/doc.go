// Package pipeline composes the acquisition stages — fetch, aggregate,
// probe, rank — into runs and persists the resulting snapshots.
//
// A run produces two independent store writes: the CollectionSnapshot
// after aggregation and the RankedSnapshot after probing. Either write
// fully replaces its predecessor or fails leaving it intact; there is
// no cross-stage transaction and no automatic retry.
package pipeline
