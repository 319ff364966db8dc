package staging

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dirs holds the two scratch directories shared by all workers: one for
// single-frame PDB files handed to cgback, one for cgback's outputs.
// Filenames embed the frame index, so concurrent workers never collide.
type Dirs struct {
	Frames  string
	Outputs string
}

func New(framesDir, outputsDir string) Dirs {
	return Dirs{Frames: framesDir, Outputs: outputsDir}
}

// FramePath returns the input PDB path for a frame index.
func (d Dirs) FramePath(idx int) string {
	return filepath.Join(d.Frames, fmt.Sprintf("frame%d_proc.pdb", idx))
}

// OutputPath returns the cgback output PDB path for a frame index.
func (d Dirs) OutputPath(idx int) string {
	return filepath.Join(d.Outputs, fmt.Sprintf("out%d_proc.pdb", idx))
}

// Ensure creates both directories if they don't exist.
func (d Dirs) Ensure() error {
	for _, dir := range []string{d.Frames, d.Outputs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create staging directory %s: %w", dir, err)
		}
	}
	return nil
}

// Clear removes stale files left by a previous aborted run. Missing
// directories are created rather than treated as an error.
func (d Dirs) Clear() error {
	if err := d.Ensure(); err != nil {
		return err
	}
	for _, dir := range []string{d.Frames, d.Outputs} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to read staging directory %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("failed to clear %s: %w", dir, err)
			}
		}
	}
	return nil
}

// Remove deletes both staging files for a frame index. Removal is
// unconditional; files that were never written are not an error.
func (d Dirs) Remove(idx int) {
	// A leftover that can't be removed here gets cleared at the next
	// startup anyway.
	os.Remove(d.FramePath(idx))
	os.Remove(d.OutputPath(idx))
}
