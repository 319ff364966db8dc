package rebuild

import (
	"context"
	"fmt"

	chem "github.com/rmera/gochem"
	v3 "github.com/rmera/gochem/v3"

	"github.com/pinak2299/cgback/internal/staging"
	"github.com/pinak2299/cgback/internal/trajio"
)

// FrameRebuilder turns one coarse-grained structure file into an all-atom
// one. Implemented by cgback.Runner; tests substitute fakes.
type FrameRebuilder interface {
	Rebuild(ctx context.Context, inputPDB, outputPDB string) error
}

// Task is one reconstruction unit: a frame index and its coordinate set.
type Task struct {
	Index int
	Frame *v3.Matrix
}

// FrameError records a reconstruction failure for a single frame. Failed
// frames become gaps in the persisted output; they do not abort the batch.
type FrameError struct {
	Index int
	Err   error
}

func (e FrameError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Index, e.Err)
}

// runTask writes the task's frame to the staging area, invokes the
// rebuilder on it and loads the resulting all-atom structure. Both staging
// files are removed on every exit path, whether or not the reconstruction
// produced usable output.
func runTask(ctx context.Context, r FrameRebuilder, dirs staging.Dirs, top chem.Atomer, t Task) (*chem.Molecule, error) {
	inPDB := dirs.FramePath(t.Index)
	outPDB := dirs.OutputPath(t.Index)
	defer dirs.Remove(t.Index)

	if err := trajio.WriteFramePDB(inPDB, t.Frame, top); err != nil {
		return nil, err
	}
	if err := r.Rebuild(ctx, inPDB, outPDB); err != nil {
		return nil, err
	}
	return trajio.LoadPDB(outPDB)
}
