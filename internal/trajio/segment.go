package trajio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	chem "github.com/rmera/gochem"
	"github.com/rmera/gochem/traj/dcd"
	v3 "github.com/rmera/gochem/v3"
)

// SegmentName builds the file name for a persisted batch covering the
// inclusive frame range [start, end]: rebuilt_<base>_<start>_<end>.dcd,
// where base is the input trajectory's file name without extension.
func SegmentName(trajPath string, start, end int) string {
	return fmt.Sprintf("rebuilt_%s_%d_%d.dcd", Stem(trajPath), start, end)
}

// Stem returns the base name of a path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SegmentWriter appends coordinate frames to a DCD segment file. Every
// frame must carry the same atom count.
type SegmentWriter struct {
	w      *dcd.DCDWObj
	path   string
	natoms int
	frames int
}

func NewSegmentWriter(path string, natoms int) (*SegmentWriter, error) {
	w, err := dcd.NewWriter(path, natoms)
	if err != nil {
		return nil, fmt.Errorf("failed to create segment %s: %w", path, err)
	}
	return &SegmentWriter{w: w, path: path, natoms: natoms}, nil
}

// Append writes one frame to the segment.
func (s *SegmentWriter) Append(frame *v3.Matrix) error {
	if frame.NVecs() != s.natoms {
		return fmt.Errorf("frame has %d atoms, segment %s expects %d", frame.NVecs(), s.path, s.natoms)
	}
	if err := s.w.WNext(frame); err != nil {
		return fmt.Errorf("failed to write frame to %s: %w", s.path, err)
	}
	s.frames++
	return nil
}

// Frames returns the number of frames written so far.
func (s *SegmentWriter) Frames() int {
	return s.frames
}

// Close finalizes the segment file.
func (s *SegmentWriter) Close() {
	s.w.Close()
}

// ReadSegment loads every frame of a previously persisted segment. natoms
// is the all-atom count established by the reference reconstruction; a
// segment with a different atom count is rejected.
func ReadSegment(path string, natoms int) ([]*v3.Matrix, error) {
	traj, err := dcd.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s: %w", path, err)
	}
	if traj.Len() != natoms {
		return nil, fmt.Errorf("segment %s has %d atoms, expected %d", path, traj.Len(), natoms)
	}
	frames, err := readAll(traj)
	if err != nil {
		return nil, fmt.Errorf("failed to read segment %s: %w", path, err)
	}
	return frames, nil
}

// Segment is a persisted batch file located on disk.
type Segment struct {
	Path  string
	Start int
	End   int
}

// FindSegments lists the segment files for an input trajectory found in
// dir, sorted by starting frame index. File names that do not parse as
// segment names are ignored.
func FindSegments(dir, trajPath string) ([]Segment, error) {
	prefix := "rebuilt_" + Stem(trajPath) + "_"
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var segs []Segment
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".dcd") {
			continue
		}
		start, end, ok := parseRange(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".dcd"))
		if !ok {
			continue
		}
		segs = append(segs, Segment{Path: filepath.Join(dir, name), Start: start, End: end})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
	return segs, nil
}

// parseRange parses the "<start>_<end>" suffix of a segment name.
func parseRange(s string) (int, int, bool) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// MergeSegments merges a run's segment files into a single trajectory
// file. Segments are cumulative: each one starts with the full content of
// its predecessor before its own batch, so for every segment after the
// first only the frames beyond what has already been merged are copied.
// The segment ranges must chain contiguously. Returns the total number of
// frames written; the input segments are left in place.
func MergeSegments(outPath string, segs []Segment) (int, error) {
	if len(segs) == 0 {
		return 0, fmt.Errorf("no segments to merge")
	}
	for i := 1; i < len(segs); i++ {
		if segs[i].Start != segs[i-1].End+1 {
			return 0, fmt.Errorf("segments do not chain: [%d,%d] followed by [%d,%d]",
				segs[i-1].Start, segs[i-1].End, segs[i].Start, segs[i].End)
		}
	}
	first, err := dcd.New(segs[0].Path)
	if err != nil {
		return 0, fmt.Errorf("failed to open segment %s: %w", segs[0].Path, err)
	}
	natoms := first.Len()

	w, err := NewSegmentWriter(outPath, natoms)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	if err := copyFrames(w, first, segs[0].Path, 0); err != nil {
		return w.Frames(), err
	}
	for _, seg := range segs[1:] {
		traj, err := dcd.New(seg.Path)
		if err != nil {
			return w.Frames(), fmt.Errorf("failed to open segment %s: %w", seg.Path, err)
		}
		if traj.Len() != natoms {
			return w.Frames(), fmt.Errorf("segment %s has %d atoms, expected %d", seg.Path, traj.Len(), natoms)
		}
		// Everything merged so far is repeated at the head of this segment.
		if err := copyFrames(w, traj, seg.Path, w.Frames()); err != nil {
			return w.Frames(), err
		}
	}
	return w.Frames(), nil
}

// copyFrames appends a segment's frames to w, discarding the first skip
// frames.
func copyFrames(w *SegmentWriter, traj *dcd.DCDObj, path string, skip int) error {
	frame := v3.Zeros(traj.Len())
	for n := 0; ; n++ {
		err := traj.Next(frame)
		if err != nil {
			if _, ok := err.(chem.LastFrameError); ok {
				if n < skip {
					return fmt.Errorf("segment %s has %d frames, fewer than the %d already merged", path, n, skip)
				}
				return nil
			}
			return fmt.Errorf("failed to read segment %s: %w", path, err)
		}
		if n < skip {
			continue
		}
		if err := w.Append(frame); err != nil {
			return err
		}
	}
}
