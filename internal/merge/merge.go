// Package merge combines freshly converted records with an existing
// backup into one deduplicated, chronologically ordered sequence.
package merge

import (
	"sort"

	"github.com/earthastronaut/hangouts-sms-export/internal/smsbackup"
)

// Result carries the merged sequence plus how many inputs were dropped as
// duplicates.
type Result struct {
	Records    []smsbackup.Record
	Duplicates int
}

// Records merges existing backup records with newly converted ones.
// Duplicates are recognized by the (participant-set, timestamp, body) key;
// the first occurrence wins, so an existing record survives over a fresh
// copy of itself. Output is sorted by timestamp ascending, and the stable
// sort keeps existing records ahead of fresh ones at equal timestamps.
func Records(existing, fresh []smsbackup.Record) Result {
	combined := make([]smsbackup.Record, 0, len(existing)+len(fresh))
	combined = append(combined, existing...)
	combined = append(combined, fresh...)

	seen := make(map[string]bool, len(combined))
	merged := make([]smsbackup.Record, 0, len(combined))
	for _, rec := range combined {
		key := rec.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, rec)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date() < merged[j].Date()
	})

	return Result{
		Records:    merged,
		Duplicates: len(combined) - len(merged),
	}
}
