package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/entity-xref/internal/db"
	"github.com/sells-group/entity-xref/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var preparedStatements = map[string]string{
	"insert_run":     `INSERT INTO runs (id, workspace, command, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"finish_run":     `UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
	"insert_stage":   `INSERT INTO run_stages (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_stage": `UPDATE run_stages SET status = $1, counts = $2, error = $3, completed_at = $4 WHERE id = $5`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	workspace  TEXT NOT NULL,
	command    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_stages (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	name         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	counts       JSONB,
	error        TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
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
	row_count  BIGINT NOT NULL DEFAULT 0,
	records    BIGINT NOT NULL DEFAULT 0,
	skipped    BIGINT NOT NULL DEFAULT 0,
	run_id     TEXT NOT NULL,
	loaded_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_command ON runs(command);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
CREATE INDEX IF NOT EXISTS idx_run_skips_run_id ON run_skips(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, workspace, command string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, workspace, command, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, workspace, command, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace, command, status, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Workspace, &r.Command, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: get run %s: run not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, name, status, counts, error, started_at, completed_at
		 FROM run_stages WHERE run_id = $1 ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list stages for run %s", runID)
	}
	defer rows.Close()

	for rows.Next() {
		var st model.RunStage
		var counts *[]byte
		if err := rows.Scan(&st.ID, &st.RunID, &st.Name, &st.Status, &counts, &st.Error, &st.StartedAt, &st.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage")
		}
		if counts != nil {
			if err := json.Unmarshal(*counts, &st.Counts); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal stage counts")
			}
		}
		r.Stages = append(r.Stages, st)
	}
	return &r, eris.Wrap(rows.Err(), "postgres: list stages iterate")
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, workspace, command, status, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Command != "" {
		query += fmt.Sprintf(` AND command = $%d`, argIdx)
		args = append(args, filter.Command)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.Workspace, &r.Command, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) CreateStage(ctx context.Context, runID, name string) (*model.RunStage, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_stages (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, runID, name, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert stage for run %s", runID)
	}

	return &model.RunStage{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteStage(ctx context.Context, stageID string, status model.RunStatus, counts map[string]int64, errMsg string) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stage counts")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE run_stages SET status = $1, counts = $2, error = $3, completed_at = $4 WHERE id = $5`,
		string(status), countsJSON, errMsg, time.Now().UTC(), stageID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete stage %s", stageID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("stage not found: %s", stageID)
	}
	return nil
}

var skipColumns = []string{"run_id", "dataset_id", "row_ref", "reason"}

func (s *PostgresStore) RecordSkips(ctx context.Context, runID string, skips []model.SkipEntry) (int64, error) {
	rows := make([][]any, len(skips))
	for i, sk := range skips {
		rows[i] = []any{runID, sk.DatasetID, sk.RowRef, string(sk.Reason)}
	}
	n, err := db.CopyFrom(ctx, s.pool, "run_skips", skipColumns, rows)
	return n, eris.Wrapf(err, "postgres: record skips for run %s", runID)
}

var datasetColumns = []string{
	"dataset_id", "path", "sha256", "source_url", "row_count", "records", "skipped", "run_id", "loaded_at",
}

func (s *PostgresStore) UpsertDatasets(ctx context.Context, snaps []DatasetSnapshot) error {
	rows := make([][]any, len(snaps))
	for i, d := range snaps {
		rows[i] = []any{d.DatasetID, d.Path, d.SHA256, d.SourceURL, d.Rows, d.Records, d.Skipped, d.RunID, d.LoadedAt.UTC()}
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "datasets",
		Columns:      datasetColumns,
		ConflictKeys: []string{"dataset_id"},
	}, rows)
	return eris.Wrap(err, "postgres: upsert datasets")
}

func (s *PostgresStore) ListDatasets(ctx context.Context) ([]DatasetSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT dataset_id, path, sha256, source_url, row_count, records, skipped, run_id, loaded_at
		 FROM datasets ORDER BY dataset_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list datasets")
	}
	defer rows.Close()

	var out []DatasetSnapshot
	for rows.Next() {
		var d DatasetSnapshot
		if err := rows.Scan(&d.DatasetID, &d.Path, &d.SHA256, &d.SourceURL, &d.Rows, &d.Records, &d.Skipped, &d.RunID, &d.LoadedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dataset")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list datasets iterate")
}
