// Package runlog keeps a durable record of reconstruction runs in a SQLite
// database: one row per run, one per persisted segment, one per failed
// frame. The segment files themselves are the real output; the runlog
// exists so a run's progress and gaps can be inspected afterwards.
package runlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open initializes the runlog database under dataDir, creating the
// directory and schema if needed.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	dbFile := filepath.Join(dataDir, "runs.db")
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// WAL and a busy timeout keep the recorder responsive while workers log.
	_, _ = db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
		PRAGMA foreign_keys = ON;
	`)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init runlog schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		traj_file TEXT NOT NULL,
		top_file TEXT NOT NULL,
		device TEXT,
		total_frames INTEGER,
		batch_size INTEGER,
		workers INTEGER,
		status TEXT,
		created_time DATETIME DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS segments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		start_frame INTEGER NOT NULL,
		end_frame INTEGER NOT NULL,
		filename TEXT NOT NULL,
		frames_written INTEGER,
		missing INTEGER,
		created_time DATETIME DEFAULT (datetime('now')),
		UNIQUE(run_id, start_frame)
	);

	CREATE TABLE IF NOT EXISTS frame_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		frame_idx INTEGER NOT NULL,
		message TEXT,
		created_time DATETIME DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_segments_run_id ON segments(run_id);
	CREATE INDEX IF NOT EXISTS idx_frame_errors_run_id ON frame_errors(run_id);
	`
	_, err := s.db.Exec(query)
	return err
}
