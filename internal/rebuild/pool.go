package rebuild

import (
	"context"
	"log"
	"sync"

	chem "github.com/rmera/gochem"
	"golang.org/x/sync/errgroup"

	"github.com/pinak2299/cgback/internal/staging"
)

// Pool dispatches reconstruction tasks to at most workers concurrent
// cgback subprocesses and collects the results keyed by frame index.
// A failed task is recorded as a FrameError and leaves a gap in the
// results; it does not cancel the rest of the batch.
type Pool struct {
	rebuilder FrameRebuilder
	dirs      staging.Dirs
	workers   int
}

func NewPool(r FrameRebuilder, dirs staging.Dirs, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{rebuilder: r, dirs: dirs, workers: workers}
}

// Run processes every task and returns the completed results in a map
// keyed by frame index, plus the per-frame failures. Submission follows
// task order; completion order is whatever the workers produce. Run only
// returns a non-nil error when the context is canceled.
func (p *Pool) Run(ctx context.Context, top chem.Atomer, tasks []Task) (map[int]*chem.Molecule, []FrameError, error) {
	results := make(map[int]*chem.Molecule, len(tasks))
	var failures []FrameError
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, t := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mol, err := runTask(gctx, p.rebuilder, p.dirs, top, t)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("frame %d failed: %v", t.Index, err)
				failures = append(failures, FrameError{Index: t.Index, Err: err})
				return nil
			}
			results[t.Index] = mol
			log.Printf("completed frame %d", t.Index)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, failures, err
	}
	return results, failures, nil
}
