package rebuild

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	chem "github.com/rmera/gochem"
	v3 "github.com/rmera/gochem/v3"
	"github.com/stretchr/testify/require"

	"github.com/pinak2299/cgback/internal/staging"
)

// Three C-alpha particles, enough topology for goChem to read and write.
const testPDB = `ATOM      1  CA  ALA A   1       0.000   0.000   0.000  1.00  0.00           C
ATOM      2  CA  GLY A   2       3.800   0.000   0.000  1.00  0.00           C
ATOM      3  CA  SER A   3       7.600   0.000   0.000  1.00  0.00           C
END
`

func writeTestTopology(t *testing.T, dir string) *chem.Molecule {
	t.Helper()
	path := filepath.Join(dir, "top.pdb")
	require.NoError(t, os.WriteFile(path, []byte(testPDB), 0644))
	mol, err := chem.PDBFileRead(path, false)
	require.NoError(t, err)
	require.Equal(t, 3, mol.Len())
	return mol
}

// testFrame builds a coordinate set whose x column encodes the frame index,
// so output ordering can be checked after a round trip.
func testFrame(natoms, idx int) *v3.Matrix {
	m := v3.Zeros(natoms)
	for a := 0; a < natoms; a++ {
		m.Set(a, 0, float64(idx))
		m.Set(a, 1, float64(a))
		m.Set(a, 2, 0)
	}
	return m
}

func newTestDirs(t *testing.T) staging.Dirs {
	t.Helper()
	root := t.TempDir()
	dirs := staging.New(filepath.Join(root, "frames"), filepath.Join(root, "outputs"))
	require.NoError(t, dirs.Ensure())
	return dirs
}

// fakeRebuilder stands in for the cgback executable: it copies the input
// structure file to the output path. Delays inject out-of-order completion;
// fail marks frame indices whose reconstruction should error out.
type fakeRebuilder struct {
	mu     sync.Mutex
	delays map[int]time.Duration
	fail   map[int]bool
	calls  []int
}

func (f *fakeRebuilder) Rebuild(ctx context.Context, inputPDB, outputPDB string) error {
	idx := stagingIndex(inputPDB)
	f.mu.Lock()
	f.calls = append(f.calls, idx)
	f.mu.Unlock()

	if d := f.delays[idx]; d > 0 {
		time.Sleep(d)
	}
	if f.fail[idx] {
		return errors.New("reconstruction blew up")
	}
	data, err := os.ReadFile(inputPDB)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPDB, data, 0644)
}

// stagingIndex recovers the frame index from a frame<idx>_proc.pdb name.
func stagingIndex(path string) int {
	name := filepath.Base(path)
	name = strings.TrimPrefix(name, "frame")
	name, _, _ = strings.Cut(name, "_")
	idx, _ := strconv.Atoi(name)
	return idx
}
