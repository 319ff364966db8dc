package rebuild

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	chem "github.com/rmera/gochem"
	v3 "github.com/rmera/gochem/v3"

	"github.com/pinak2299/cgback/internal/staging"
	"github.com/pinak2299/cgback/internal/trajio"
)

// Recorder persists run progress (segments written, frames that failed).
// Implemented by the runlog store; a nil Recorder disables recording.
type Recorder interface {
	RecordSegment(start, end int, path string, written, missing int) error
	RecordFrameError(frameIdx int, msg string) error
}

// SegmentResult describes one persisted segment of a finished run.
type SegmentResult struct {
	Batch   Batch
	Path    string
	Written int
	Missing []int
}

// Summary is the outcome of a whole run.
type Summary struct {
	RefAtoms int
	Segments []SegmentResult
	Failed   int
}

// Driver owns one reconstruction run. It proceeds strictly in order:
// clear staging, rebuild the reference frame, then one batch at a time,
// each persisted before the next begins. Only reference-frame failure,
// trajectory I/O failure or cancellation abort the run; individual frame
// failures become gaps in the output.
type Driver struct {
	Rebuilder FrameRebuilder
	Dirs      staging.Dirs
	BatchSize int
	Workers   int
	TrajPath  string
	OutputDir string
	Recorder  Recorder
}

// Run executes the full reconstruction of coarse.
func (d *Driver) Run(ctx context.Context, coarse *trajio.Coarse) (Summary, error) {
	var sum Summary

	if err := d.Dirs.Clear(); err != nil {
		return sum, err
	}

	refMol, err := d.rebuildReference(ctx, coarse)
	if err != nil {
		return sum, fmt.Errorf("reference frame reconstruction failed: %w", err)
	}
	natoms := refMol.Len()
	sum.RefAtoms = natoms
	log.Printf("reference frame rebuilt: %d atoms from %d coarse particles", natoms, coarse.NAtoms())

	batches := Plan(coarse.FrameCount(), d.BatchSize)
	if len(batches) == 0 {
		log.Printf("trajectory has a single frame, nothing beyond the reference to rebuild")
		return sum, nil
	}
	log.Printf("processing %d frames in %d batches of up to %d, %d workers",
		coarse.FrameCount()-1, len(batches), d.BatchSize, d.Workers)

	pool := NewPool(d.Rebuilder, d.Dirs, d.Workers)
	prevSegment := ""
	for _, b := range batches {
		log.Printf("processing batch %d/%d (frames %d-%d)", b.Index+1, len(batches), b.Start, b.End)

		// Batch 0 extends the reference trajectory; every later batch
		// reloads the previous batch's segment file from disk so no more
		// than one batch's worth of structures is ever held in memory.
		var base []*v3.Matrix
		if b.Index == 0 {
			base = []*v3.Matrix{refMol.Coords[0]}
		} else {
			base, err = trajio.ReadSegment(prevSegment, natoms)
			if err != nil {
				return sum, err
			}
		}

		tasks := make([]Task, 0, b.Len())
		for idx := b.Start; idx <= b.End; idx++ {
			tasks = append(tasks, Task{Index: idx, Frame: coarse.Frames[idx]})
		}

		results, failures, err := pool.Run(ctx, coarse.Mol, tasks)
		if err != nil {
			return sum, err
		}
		sum.Failed += len(failures)
		d.recordFailures(failures)

		segPath := filepath.Join(d.OutputDir, trajio.SegmentName(d.TrajPath, b.Start, b.End))
		stats, err := AssembleSegment(segPath, natoms, base, b, results)
		if err != nil {
			return sum, err
		}
		log.Printf("saved batch trajectory to %s (%d frames, %d missing)", segPath, stats.Written, len(stats.Missing))
		if d.Recorder != nil {
			if err := d.Recorder.RecordSegment(b.Start, b.End, segPath, stats.Written, len(stats.Missing)); err != nil {
				log.Printf("failed to record segment %s: %v", segPath, err)
			}
		}

		sum.Segments = append(sum.Segments, SegmentResult{Batch: b, Path: segPath, Written: stats.Written, Missing: stats.Missing})
		prevSegment = segPath
	}
	return sum, nil
}

// rebuildReference reconstructs frame 0 synchronously and loads the result
// as the all-atom topology that seeds every segment. Unlike batch tasks,
// its staging files are kept on disk as the run's reference structures, and
// any failure aborts the run.
func (d *Driver) rebuildReference(ctx context.Context, coarse *trajio.Coarse) (*chem.Molecule, error) {
	inPDB := d.Dirs.FramePath(0)
	outPDB := d.Dirs.OutputPath(0)

	if err := trajio.WriteFramePDB(inPDB, coarse.Frames[0], coarse.Mol); err != nil {
		return nil, err
	}
	if err := d.Rebuilder.Rebuild(ctx, inPDB, outPDB); err != nil {
		return nil, err
	}
	return trajio.LoadPDB(outPDB)
}

func (d *Driver) recordFailures(failures []FrameError) {
	if d.Recorder == nil {
		return
	}
	for _, f := range failures {
		if err := d.Recorder.RecordFrameError(f.Index, f.Err.Error()); err != nil {
			log.Printf("failed to record frame error %d: %v", f.Index, err)
		}
	}
}
