package pipeline

import (
	"time"

	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/source"
)

// Aggregate unions the per-source extractions into a CollectionSnapshot.
// Duplicate address strings collapse; the survivors keep first-seen
// order so repeated runs over identical source output produce an
// identical sequence. Every source gets a report entry, failed ones
// included.
func Aggregate(extractions []source.Extraction, now time.Time) *CollectionSnapshot {
	seen := make(map[string]struct{})
	var addrs []AddressRecord
	reports := make([]SourceReport, 0, len(extractions))

	for _, ex := range extractions {
		reports = append(reports, SourceReport{
			Source:    ex.Source,
			Count:     ex.Count,
			Succeeded: ex.Succeeded,
			Error:     ex.Err,
		})
		for _, a := range ex.Addresses {
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			addrs = append(addrs, AddressRecord{Address: a})
		}
	}

	return &CollectionSnapshot{
		Addresses:   addrs,
		CollectedAt: now,
		Sources:     reports,
	}
}
