package trajio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPDB = `ATOM      1  CA  ALA A   1       0.000   0.000   0.000  1.00  0.00           C
ATOM      2  CA  GLY A   2       3.800   0.000   0.000  1.00  0.00           C
ATOM      3  CA  SER A   3       7.600   0.000   0.000  1.00  0.00           C
END
`

func TestLoadCoarse(t *testing.T) {
	dir := t.TempDir()
	pdbPath := filepath.Join(dir, "top.pdb")
	require.NoError(t, os.WriteFile(pdbPath, []byte(testPDB), 0644))

	dcdPath := filepath.Join(dir, "coarse.dcd")
	w, err := NewSegmentWriter(dcdPath, 3)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Append(frameWith(3, float64(i))))
	}
	w.Close()

	coarse, err := LoadCoarse(dcdPath, pdbPath)
	require.NoError(t, err)
	assert.Equal(t, 5, coarse.FrameCount())
	assert.Equal(t, 3, coarse.NAtoms())
	for i, frame := range coarse.Frames {
		assert.InDelta(t, float64(i), frame.At(0, 0), 1e-4)
	}
}

func TestLoadCoarseAtomMismatch(t *testing.T) {
	dir := t.TempDir()
	pdbPath := filepath.Join(dir, "top.pdb")
	require.NoError(t, os.WriteFile(pdbPath, []byte(testPDB), 0644))

	dcdPath := filepath.Join(dir, "coarse.dcd")
	w, err := NewSegmentWriter(dcdPath, 5)
	require.NoError(t, err)
	require.NoError(t, w.Append(frameWith(5, 0)))
	w.Close()

	_, err = LoadCoarse(dcdPath, pdbPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atom count mismatch")
}

func TestFramePDBRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pdbPath := filepath.Join(dir, "top.pdb")
	require.NoError(t, os.WriteFile(pdbPath, []byte(testPDB), 0644))
	mol, err := LoadPDB(pdbPath)
	require.NoError(t, err)

	out := filepath.Join(dir, "frame.pdb")
	require.NoError(t, WriteFramePDB(out, frameWith(3, 2), mol))

	got, err := LoadPDB(out)
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())
	assert.InDelta(t, 2.0, got.Coords[0].At(0, 0), 1e-3)
	assert.InDelta(t, 1.0, got.Coords[0].At(1, 1), 1e-3)
}

func TestLoadPDBMissingFile(t *testing.T) {
	_, err := LoadPDB(filepath.Join(t.TempDir(), "nope.pdb"))
	require.Error(t, err)
}
