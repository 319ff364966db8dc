package rebuild

import (
	"log"

	chem "github.com/rmera/gochem"
	v3 "github.com/rmera/gochem/v3"

	"github.com/pinak2299/cgback/internal/trajio"
)

// AssembleStats summarizes a persisted batch segment.
type AssembleStats struct {
	Written int   // frames written, including the carried-over base frames
	Missing []int // frame indices absent from the results map
}

// AssembleSegment writes a batch's trajectory segment: first the base
// frames (the reference frame for batch 0, the previous segment's frames
// otherwise), then the batch's results in strictly ascending frame index
// order, regardless of the order the workers finished in. An index absent
// from results is logged once and skipped; the segment is simply one frame
// shorter.
func AssembleSegment(path string, natoms int, base []*v3.Matrix, b Batch, results map[int]*chem.Molecule) (AssembleStats, error) {
	var stats AssembleStats

	w, err := trajio.NewSegmentWriter(path, natoms)
	if err != nil {
		return stats, err
	}
	defer w.Close()

	for _, frame := range base {
		if err := w.Append(frame); err != nil {
			return stats, err
		}
	}
	for idx := b.Start; idx <= b.End; idx++ {
		mol, ok := results[idx]
		if !ok {
			log.Printf("warning: missing frame %d in batch %d", idx, b.Index+1)
			stats.Missing = append(stats.Missing, idx)
			continue
		}
		if err := w.Append(mol.Coords[0]); err != nil {
			return stats, err
		}
	}
	stats.Written = w.Frames()
	return stats, nil
}
