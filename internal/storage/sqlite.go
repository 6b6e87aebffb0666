package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/san-kum/radsim/internal/snapshot"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	run_json    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	snapshot_id TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	label       TEXT NOT NULL,
	iteration   INTEGER NOT NULL,
	scope       TEXT NOT NULL,
	converged   INTEGER NOT NULL,
	t_inner     REAL NOT NULL,
	state_json  TEXT NOT NULL,
	extra_json  TEXT,
	created_at  TEXT NOT NULL,
	UNIQUE (run_id, label)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id, iteration);
`

// SQLiteStore keeps runs and snapshots in one SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pragma")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type snapshotExtra struct {
	Scalars map[string]float64   `json:"scalars,omitempty"`
	Arrays  map[string][]float64 `json:"arrays,omitempty"`
	Runner  *snapshot.Runner     `json:"runner,omitempty"`
}

// Persist writes one snapshot. A snapshot with the same run and label
// replaces the previous one.
func (s *SQLiteStore) Persist(ctx context.Context, snap snapshot.Snapshot) error {
	snap = snap.Trim()
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	stateJSON, err := json.Marshal(snap.State)
	if err != nil {
		return errors.Wrap(err, "marshal state")
	}
	extraJSON, err := json.Marshal(snapshotExtra{Scalars: snap.Scalars, Arrays: snap.Arrays, Runner: snap.Runner})
	if err != nil {
		return errors.Wrap(err, "marshal extra")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots
		 (snapshot_id, run_id, label, iteration, scope, converged, t_inner, state_json, extra_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.RunID, snap.Label, snap.Iteration, string(snap.Scope), boolToInt(snap.Converged),
		snap.State.TInner, string(stateJSON), string(extraJSON), snap.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "insert snapshot %s/%s", snap.RunID, snap.Label)
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run snapshot.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(err, "marshal run")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, created_at, run_json) VALUES (?, ?, ?)`,
		run.ID, run.Timestamp.UTC().Format(time.RFC3339Nano), string(data),
	)
	if err != nil {
		return errors.Wrapf(err, "insert run %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]snapshot.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_json FROM runs ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	runs := make([]snapshot.Run, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		var run snapshot.Run
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			return nil, errors.Wrap(err, "decode run")
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) LoadRun(ctx context.Context, id string) (*snapshot.Run, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT run_json FROM runs WHERE run_id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(snapshot.ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query run %s", id)
	}

	var run snapshot.Run
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, errors.Wrap(err, "decode run")
	}
	return &run, nil
}

func (s *SQLiteStore) LoadSnapshots(ctx context.Context, runID string) ([]snapshot.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_id, label, iteration, scope, converged, state_json, extra_json, created_at
		 FROM snapshots WHERE run_id = ? ORDER BY iteration`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query snapshots")
	}
	defer rows.Close()

	snaps := make([]snapshot.Snapshot, 0)
	for rows.Next() {
		var (
			snap      snapshot.Snapshot
			scope     string
			converged int
			stateJSON string
			extraJSON sql.NullString
			createdAt string
		)
		if err := rows.Scan(&snap.ID, &snap.Label, &snap.Iteration, &scope, &converged,
			&stateJSON, &extraJSON, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan snapshot")
		}
		snap.RunID = runID
		snap.Scope = snapshot.Scope(scope)
		snap.Converged = converged != 0
		if err := json.Unmarshal([]byte(stateJSON), &snap.State); err != nil {
			return nil, errors.Wrap(err, "decode state")
		}
		if extraJSON.Valid && extraJSON.String != "" {
			var extra snapshotExtra
			if err := json.Unmarshal([]byte(extraJSON.String), &extra); err != nil {
				return nil, errors.Wrap(err, "decode extra")
			}
			snap.Scalars, snap.Arrays, snap.Runner = extra.Scalars, extra.Arrays, extra.Runner
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			snap.CreatedAt = t
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
