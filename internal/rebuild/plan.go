// Package rebuild drives the batch reconstruction of an all-atom trajectory
// from a coarse-grained one: frame 0 seeds the all-atom topology, the
// remaining frames are rebuilt by a bounded pool of cgback subprocesses,
// and each batch is reassembled in frame order and persisted as a DCD
// segment before the next batch starts.
package rebuild

// Batch is a contiguous, inclusive range of reconstruction target frames.
// Frame 0 is the reference frame and never part of a batch.
type Batch struct {
	Index int
	Start int
	End   int
}

// Len returns the number of frames in the batch.
func (b Batch) Len() int {
	return b.End - b.Start + 1
}

// Plan partitions the reconstruction targets 1..frameCount-1 into
// contiguous batches of at most batchSize frames. The batches are
// non-overlapping, ascending, and cover the whole target range; their
// number is ceil((frameCount-1)/batchSize). A trajectory with fewer than
// two frames yields no batches.
func Plan(frameCount, batchSize int) []Batch {
	if frameCount < 2 || batchSize < 1 {
		return nil
	}
	var batches []Batch
	last := frameCount - 1
	for start := 1; start <= last; start += batchSize {
		end := start + batchSize - 1
		if end > last {
			end = last
		}
		batches = append(batches, Batch{Index: len(batches), Start: start, End: end})
	}
	return batches
}
