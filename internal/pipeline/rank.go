package pipeline

import (
	"sort"
	"time"
)

// Rank filters probed to successful records, orders them ascending by
// latency and takes the first k. The sort is stable so ties keep their
// input order, making repeated runs over identical probe results
// byte-identical. Fewer than k successes yields a shorter Best with no
// padding; zero successes yields an empty one.
func Rank(probed []AddressRecord, k int, now time.Time) *RankedSnapshot {
	succeeded := make([]AddressRecord, 0, len(probed))
	for _, r := range probed {
		if r.LatencyMs != nil {
			succeeded = append(succeeded, r)
		}
	}

	sort.SliceStable(succeeded, func(i, j int) bool {
		return *succeeded[i].LatencyMs < *succeeded[j].LatencyMs
	})

	if k > 0 && len(succeeded) > k {
		succeeded = succeeded[:k]
	}

	return &RankedSnapshot{
		Best:      succeeded,
		AllProbed: probed,
		ProbedAt:  now,
	}
}
