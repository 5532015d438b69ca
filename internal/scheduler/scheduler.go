// Package scheduler slices the discovered URL list into contiguous batches.
package scheduler

// NextBatch returns all[cursor:min(cursor+size, len(all))] and the cursor
// advanced past it. It never decides termination: an exhausted cursor simply
// yields an empty batch. A cursor outside [0, len(all)] is clamped and a
// non-positive size yields an empty batch.
func NextBatch(all []string, cursor, size int) ([]string, int) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(all) {
		cursor = len(all)
	}
	if size <= 0 {
		return nil, cursor
	}
	end := min(cursor+size, len(all))
	batch := all[cursor:end:end]
	return batch, cursor + len(batch)
}

// Remaining reports how many URLs are left after cursor.
func Remaining(all []string, cursor int) int {
	if cursor >= len(all) {
		return 0
	}
	return len(all) - cursor
}
