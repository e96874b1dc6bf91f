package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "/ws", "run")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	stage, err := st.CreateStage(ctx, run.ID, model.StageResolve)
	require.NoError(t, err)
	require.NoError(t, st.CompleteStage(ctx, stage.ID, model.RunStatusComplete, map[string]int64{"records": 7, "entities": 3}, ""))

	failed, err := st.CreateStage(ctx, run.ID, model.StageCrossref)
	require.NoError(t, err)
	require.NoError(t, st.CompleteStage(ctx, failed.ID, model.RunStatusFailed, nil, "canonical.json missing"))

	require.NoError(t, st.FinishRun(ctx, run.ID, model.RunStatusFailed, "crossref failed"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "crossref failed", got.Error)
	assert.Equal(t, "/ws", got.Workspace)
	require.Len(t, got.Stages, 2)

	byName := map[string]model.RunStage{}
	for _, s := range got.Stages {
		byName[s.Name] = s
	}
	assert.Equal(t, int64(7), byName[model.StageResolve].Counts["records"])
	assert.NotNil(t, byName[model.StageResolve].CompletedAt)
	assert.Equal(t, model.RunStatusFailed, byName[model.StageCrossref].Status)
	assert.Equal(t, "canonical.json missing", byName[model.StageCrossref].Error)
	assert.Nil(t, byName[model.StageCrossref].Counts)
}

func TestSQLite_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "nope")
	assert.ErrorContains(t, err, "run not found")
	assert.ErrorContains(t, st.FinishRun(ctx, "nope", model.RunStatusComplete, ""), "run not found")
	assert.ErrorContains(t, st.CompleteStage(ctx, "nope", model.RunStatusComplete, nil, ""), "stage not found")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "/ws", "resolve")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "/ws", "crossref")
	require.NoError(t, err)
	require.NoError(t, st.FinishRun(ctx, a.ID, model.RunStatusComplete, ""))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	done, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)

	cross, err := st.ListRuns(ctx, RunFilter{Command: "crossref"})
	require.NoError(t, err)
	require.Len(t, cross, 1)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_RecordSkips(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "/ws", "resolve")
	require.NoError(t, err)

	n, err := st.RecordSkips(ctx, run.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = st.RecordSkips(ctx, run.ID, []model.SkipEntry{
		{DatasetID: "campaign", RowRef: "3", Reason: model.SkipMissingName},
		{DatasetID: "lobby", RowRef: "$[1]", Reason: model.SkipParseError},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var count int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_skips WHERE run_id = ?`, run.ID).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestSQLite_UpsertDatasets(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	loaded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.UpsertDatasets(ctx, []DatasetSnapshot{
		{DatasetID: "registry", Path: "a.csv", SHA256: "one", Rows: 10, Records: 10, RunID: "r1", LoadedAt: loaded},
		{DatasetID: "campaign", Path: "b.csv", SHA256: "two", Rows: 4, Records: 3, Skipped: 1, RunID: "r1", LoadedAt: loaded},
	}))
	require.NoError(t, st.UpsertDatasets(ctx, []DatasetSnapshot{
		{DatasetID: "registry", Path: "a.csv", SHA256: "three", Rows: 12, Records: 12, RunID: "r2", LoadedAt: loaded.Add(time.Hour)},
	}))

	out, err := st.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "campaign", out[0].DatasetID)
	assert.Equal(t, int64(1), out[0].Skipped)
	assert.Equal(t, "registry", out[1].DatasetID)
	assert.Equal(t, "three", out[1].SHA256)
	assert.Equal(t, int64(12), out[1].Rows)
	assert.Equal(t, "r2", out[1].RunID)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st, err := Open(ctx, config.StoreConfig{Driver: "sqlite"}, dir)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	assert.FileExists(t, filepath.Join(dir, DefaultSQLiteFile))

	nop, err := Open(ctx, config.StoreConfig{Driver: "none"}, dir)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, nop)

	_, err = Open(ctx, config.StoreConfig{Driver: "postgres"}, dir)
	assert.ErrorContains(t, err, "requires store.database_url")

	_, err = Open(ctx, config.StoreConfig{Driver: "mongo"}, dir)
	assert.ErrorContains(t, err, "unknown driver")
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var st Store = Nop{}

	run, err := st.CreateRun(ctx, "/ws", "run")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)

	stage, err := st.CreateStage(ctx, run.ID, model.StageChain)
	require.NoError(t, err)
	assert.Equal(t, run.ID, stage.RunID)
	assert.NoError(t, st.CompleteStage(ctx, stage.ID, model.RunStatusComplete, nil, ""))
	assert.NoError(t, st.FinishRun(ctx, run.ID, model.RunStatusComplete, ""))

	_, err = st.GetRun(ctx, run.ID)
	assert.Error(t, err)
}
