package runlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenFailsWhenDatabasePathIsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "runs.db"), 0755))

	_, err := Open(dir)
	require.Error(t, err)
}

func TestCreateAndListRuns(t *testing.T) {
	s := openTestStore(t)

	id, err := s.CreateRun(Run{
		TrajFile:    "coarse.dcd",
		TopFile:     "top.pdb",
		Device:      "cuda:0",
		TotalFrames: 1001,
		BatchSize:   500,
		Workers:     4,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, StatusRunning, runs[0].Status)
	assert.Equal(t, "coarse.dcd", runs[0].TrajFile)
	assert.Equal(t, 1001, runs[0].TotalFrames)

	require.NoError(t, s.UpdateRunStatus(id, StatusCompleted))
	runs, err = s.ListRuns()
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, runs[0].Status)
}

func TestRecorderPersistsSegmentsAndFailures(t *testing.T) {
	s := openTestStore(t)
	id, err := s.CreateRun(Run{TrajFile: "coarse.dcd", TopFile: "top.pdb"})
	require.NoError(t, err)

	rec := s.Recorder(id)
	require.NoError(t, rec.RecordSegment(1, 500, "rebuilt_coarse_1_500.dcd", 500, 1))
	require.NoError(t, rec.RecordSegment(501, 1000, "rebuilt_coarse_501_1000.dcd", 1000, 0))
	require.NoError(t, rec.RecordFrameError(42, "cgback failed: exit status 1"))

	segs, err := s.ListSegments(id)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, 1, segs[0].StartFrame)
	assert.Equal(t, 500, segs[0].EndFrame)
	assert.Equal(t, 1, segs[0].Missing)
	assert.Equal(t, 501, segs[1].StartFrame)

	errs, err := s.ListFrameErrors(id)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, 42, errs[0].FrameIdx)
	assert.Contains(t, errs[0].Message, "exit status 1")
}

func TestRecordSegmentReplacesOnRerun(t *testing.T) {
	s := openTestStore(t)
	id, err := s.CreateRun(Run{TrajFile: "coarse.dcd", TopFile: "top.pdb"})
	require.NoError(t, err)

	rec := s.Recorder(id)
	require.NoError(t, rec.RecordSegment(1, 500, "a.dcd", 498, 2))
	require.NoError(t, rec.RecordSegment(1, 500, "a.dcd", 500, 0))

	segs, err := s.ListSegments(id)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, 500, segs[0].FramesWritten)
	assert.Equal(t, 0, segs[0].Missing)
}
