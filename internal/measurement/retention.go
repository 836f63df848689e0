package measurement

import "time"

// MergeAndPrune merges freshly fetched rows into the existing table and
// enforces the retention horizon. Rows without a usable timestamp are
// dropped, timestamps are normalized to UTC, duplicate (sensor id, timestamp)
// rows are eliminated with the first occurrence winning (existing table
// first, then fresh rows in order), and rows strictly older than
// now minus horizon are pruned.
//
// An empty fresh set is fine: pruning alone may still shrink the table.
func MergeAndPrune(existing, fresh Table, now time.Time, horizon time.Duration) Table {
	cutoff := now.UTC().Add(-horizon)

	merged := make(Table, 0, len(existing)+len(fresh))
	seen := make(map[Key]struct{}, len(existing)+len(fresh))

	for _, t := range []Table{existing, fresh} {
		for _, r := range t {
			if r.Timestamp.IsZero() {
				continue
			}
			r.Timestamp = r.Timestamp.UTC()
			if r.Timestamp.Before(cutoff) {
				continue
			}
			k := r.key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, r)
		}
	}
	return merged
}
