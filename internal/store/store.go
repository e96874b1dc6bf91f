// Package store persists the run ledger: pipeline runs, their stages, skipped
// rows and per-dataset load snapshots. Artifacts stay on disk; the ledger only
// records what happened.
package store

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/model"
)

// DefaultSQLiteFile is the ledger file created inside the workspace when no
// database URL is configured.
const DefaultSQLiteFile = "xref-ledger.db"

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	Command string          `json:"command,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// DatasetSnapshot records the state of one dataset as last loaded.
type DatasetSnapshot struct {
	DatasetID string    `json:"dataset_id"`
	Path      string    `json:"path"`
	SHA256    string    `json:"sha256,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	Rows      int64     `json:"rows"`
	Records   int64     `json:"records"`
	Skipped   int64     `json:"skipped"`
	RunID     string    `json:"run_id"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// Store defines the run ledger.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, workspace, command string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stages
	CreateStage(ctx context.Context, runID, name string) (*model.RunStage, error)
	CompleteStage(ctx context.Context, stageID string, status model.RunStatus, counts map[string]int64, errMsg string) error

	// Load bookkeeping
	RecordSkips(ctx context.Context, runID string, skips []model.SkipEntry) (int64, error)
	UpsertDatasets(ctx context.Context, snaps []DatasetSnapshot) error
	ListDatasets(ctx context.Context) ([]DatasetSnapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the ledger selected by cfg.Driver, migrated and ready to use.
func Open(ctx context.Context, cfg config.StoreConfig, workspaceDir string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = filepath.Join(workspaceDir, DefaultSQLiteFile)
		}
		st, err = NewSQLite(dsn)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires store.database_url")
		}
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "none":
		return Nop{}, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
