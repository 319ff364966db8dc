package runlog

import (
	"time"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Run struct {
	ID          int64
	TrajFile    string
	TopFile     string
	Device      string
	TotalFrames int
	BatchSize   int
	Workers     int
	Status      string
	CreatedTime time.Time
}

type SegmentRecord struct {
	RunID         int64
	StartFrame    int
	EndFrame      int
	Filename      string
	FramesWritten int
	Missing       int
}

type FrameErrorRecord struct {
	RunID    int64
	FrameIdx int
	Message  string
}

// CreateRun inserts a new run in the running state and returns its id.
func (s *Store) CreateRun(r Run) (int64, error) {
	query := `INSERT INTO runs (traj_file, top_file, device, total_frames, batch_size, workers, status)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.Exec(query, r.TrajFile, r.TopFile, r.Device, r.TotalFrames, r.BatchSize, r.Workers, StatusRunning)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) UpdateRunStatus(id int64, status string) error {
	query := `UPDATE runs SET status = ? WHERE id = ?`
	_, err := s.db.Exec(query, status, id)
	return err
}

func (s *Store) ListRuns() ([]Run, error) {
	query := `SELECT id, traj_file, top_file, device, total_frames, batch_size, workers, status, created_time
	          FROM runs ORDER BY created_time DESC`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.TrajFile, &r.TopFile, &r.Device, &r.TotalFrames,
			&r.BatchSize, &r.Workers, &r.Status, &r.CreatedTime); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) ListSegments(runID int64) ([]SegmentRecord, error) {
	query := `SELECT run_id, start_frame, end_frame, filename, frames_written, missing
	          FROM segments WHERE run_id = ? ORDER BY start_frame`
	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segs []SegmentRecord
	for rows.Next() {
		var sr SegmentRecord
		if err := rows.Scan(&sr.RunID, &sr.StartFrame, &sr.EndFrame, &sr.Filename,
			&sr.FramesWritten, &sr.Missing); err != nil {
			return nil, err
		}
		segs = append(segs, sr)
	}
	return segs, rows.Err()
}

func (s *Store) ListFrameErrors(runID int64) ([]FrameErrorRecord, error) {
	query := `SELECT run_id, frame_idx, message FROM frame_errors WHERE run_id = ? ORDER BY frame_idx`
	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []FrameErrorRecord
	for rows.Next() {
		var fe FrameErrorRecord
		if err := rows.Scan(&fe.RunID, &fe.FrameIdx, &fe.Message); err != nil {
			return nil, err
		}
		errs = append(errs, fe)
	}
	return errs, rows.Err()
}

// RunRecorder scopes segment and frame-error recording to a single run.
// It satisfies the rebuild.Recorder interface.
type RunRecorder struct {
	store *Store
	runID int64
}

func (s *Store) Recorder(runID int64) *RunRecorder {
	return &RunRecorder{store: s, runID: runID}
}

func (r *RunRecorder) RecordSegment(start, end int, path string, written, missing int) error {
	query := `INSERT OR REPLACE INTO segments (run_id, start_frame, end_frame, filename, frames_written, missing)
	          VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.store.db.Exec(query, r.runID, start, end, path, written, missing)
	return err
}

func (r *RunRecorder) RecordFrameError(frameIdx int, msg string) error {
	query := `INSERT INTO frame_errors (run_id, frame_idx, message) VALUES (?, ?, ?)`
	_, err := r.store.db.Exec(query, r.runID, frameIdx, msg)
	return err
}
