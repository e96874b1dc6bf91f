package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/entity-xref/internal/model"
)

// Nop is a ledger that records nothing. Runs and stages still get ids so
// callers need no special casing.
type Nop struct{}

func (Nop) CreateRun(_ context.Context, workspace, command string) (*model.Run, error) {
	now := time.Now().UTC()
	return &model.Run{
		ID:        uuid.New().String(),
		Workspace: workspace,
		Command:   command,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (Nop) FinishRun(context.Context, string, model.RunStatus, string) error { return nil }

func (Nop) GetRun(_ context.Context, runID string) (*model.Run, error) {
	return nil, eris.Errorf("run not found: %s", runID)
}

func (Nop) ListRuns(context.Context, RunFilter) ([]model.Run, error) { return nil, nil }

func (Nop) CreateStage(_ context.Context, runID, name string) (*model.RunStage, error) {
	return &model.RunStage{
		ID:        uuid.New().String(),
		RunID:     runID,
		Name:      name,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}, nil
}

func (Nop) CompleteStage(context.Context, string, model.RunStatus, map[string]int64, string) error {
	return nil
}

func (Nop) RecordSkips(context.Context, string, []model.SkipEntry) (int64, error) { return 0, nil }

func (Nop) UpsertDatasets(context.Context, []DatasetSnapshot) error { return nil }

func (Nop) ListDatasets(context.Context) ([]DatasetSnapshot, error) { return nil, nil }

func (Nop) Migrate(context.Context) error { return nil }

func (Nop) Close() error { return nil }
