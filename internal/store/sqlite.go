package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/entity-xref/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	workspace  TEXT NOT NULL,
	command    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_stages (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	name         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	counts       TEXT,
	error        TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_skips (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	dataset_id TEXT NOT NULL,
	row_ref    TEXT NOT NULL,
	reason     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS datasets (
	dataset_id TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	sha256     TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT '',
	row_count  INTEGER NOT NULL DEFAULT 0,
	records    INTEGER NOT NULL DEFAULT 0,
	skipped    INTEGER NOT NULL DEFAULT 0,
	run_id     TEXT NOT NULL,
	loaded_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_command ON runs(command);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
CREATE INDEX IF NOT EXISTS idx_run_skips_run_id ON run_skips(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, workspace, command string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, workspace, command, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, workspace, command, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Workspace: workspace,
		Command:   command,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace, command, status, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, name, status, counts, error, started_at, completed_at
		 FROM run_stages WHERE run_id = ? ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list stages for run %s", runID)
	}
	defer rows.Close()

	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		r.Stages = append(r.Stages, *st)
	}
	return r, eris.Wrap(rows.Err(), "sqlite: list stages iterate")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, workspace, command, status, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Command != "" {
		query += ` AND command = ?`
		args = append(args, filter.Command)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) CreateStage(ctx context.Context, runID, name string) (*model.RunStage, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_stages (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert stage for run %s", runID)
	}

	return &model.RunStage{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteStage(ctx context.Context, stageID string, status model.RunStatus, counts map[string]int64, errMsg string) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stage counts")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_stages SET status = ?, counts = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), string(countsJSON), errMsg, time.Now().UTC(), stageID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete stage %s", stageID)
	}
	return checkRowsAffected(res, "stage", stageID)
}

func (s *SQLiteStore) RecordSkips(ctx context.Context, runID string, skips []model.SkipEntry) (int64, error) {
	if len(skips) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin skips tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_skips (run_id, dataset_id, row_ref, reason) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare skip insert")
	}
	defer stmt.Close()

	for _, sk := range skips {
		if _, err := stmt.ExecContext(ctx, runID, sk.DatasetID, sk.RowRef, string(sk.Reason)); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert skip %s#%s", sk.DatasetID, sk.RowRef)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit skips")
	}
	return int64(len(skips)), nil
}

func (s *SQLiteStore) UpsertDatasets(ctx context.Context, snaps []DatasetSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin datasets tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, d := range snaps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO datasets (dataset_id, path, sha256, source_url, row_count, records, skipped, run_id, loaded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(dataset_id) DO UPDATE SET
			   path = excluded.path, sha256 = excluded.sha256, source_url = excluded.source_url,
			   row_count = excluded.row_count, records = excluded.records, skipped = excluded.skipped,
			   run_id = excluded.run_id, loaded_at = excluded.loaded_at`,
			d.DatasetID, d.Path, d.SHA256, d.SourceURL, d.Rows, d.Records, d.Skipped, d.RunID, d.LoadedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert dataset %s", d.DatasetID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit datasets")
}

func (s *SQLiteStore) ListDatasets(ctx context.Context) ([]DatasetSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dataset_id, path, sha256, source_url, row_count, records, skipped, run_id, loaded_at
		 FROM datasets ORDER BY dataset_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list datasets")
	}
	defer rows.Close()

	var out []DatasetSnapshot
	for rows.Next() {
		var d DatasetSnapshot
		if err := rows.Scan(&d.DatasetID, &d.Path, &d.SHA256, &d.SourceURL, &d.Rows, &d.Records, &d.Skipped, &d.RunID, &d.LoadedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dataset")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list datasets iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	err := row.Scan(&r.ID, &r.Workspace, &r.Command, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	return &r, nil
}

func scanStage(row scannable) (*model.RunStage, error) {
	var st model.RunStage
	var counts sql.NullString
	var completed sql.NullTime

	if err := row.Scan(&st.ID, &st.RunID, &st.Name, &st.Status, &counts, &st.Error, &st.StartedAt, &completed); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan stage")
	}
	if counts.Valid && counts.String != "" && counts.String != "null" {
		if err := json.Unmarshal([]byte(counts.String), &st.Counts); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stage counts")
		}
	}
	if completed.Valid {
		t := completed.Time
		st.CompletedAt = &t
	}
	return &st, nil
}
