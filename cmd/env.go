package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/artifact"
	"github.com/sells-group/entity-xref/internal/dataset"
	"github.com/sells-group/entity-xref/internal/metrics"
	"github.com/sells-group/entity-xref/internal/pipeline"
	"github.com/sells-group/entity-xref/internal/store"
)

// pipelineEnv holds everything a stage command needs.
type pipelineEnv struct {
	Store    store.Store
	Manifest *dataset.Manifest
	Metrics  *metrics.Metrics
	Pipeline *pipeline.Pipeline
	unlock   func()
}

// Close releases the ledger and the workspace lock.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
	if pe.unlock != nil {
		pe.unlock()
	}
}

// initPipeline validates configuration for mode, loads the manifest, opens
// the ledger and builds the Pipeline. Writing commands pass lock to hold
// the workspace lock until Close.
func initPipeline(ctx context.Context, mode string, lock bool) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &pipelineEnv{Metrics: metrics.New()}
	if lock {
		unlock, err := artifact.Lock(cfg.Workspace.Dir)
		if err != nil {
			return nil, err
		}
		env.unlock = unlock
	}

	m, err := dataset.LoadManifest(cfg.Workspace.ManifestPath(), cfg.Workspace.DatasetsPath())
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Manifest = m

	st, err := store.Open(ctx, cfg.Store, cfg.Workspace.Dir)
	if err != nil {
		zap.L().Warn("run ledger unavailable, continuing without it",
			zap.String("driver", cfg.Store.Driver), zap.Error(err))
		st = store.Nop{}
	}
	env.Store = st

	p, err := pipeline.New(cfg, st, env.Metrics, m)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Pipeline = p
	return env, nil
}

// initStore opens the run ledger for read-only commands.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store, cfg.Workspace.Dir)
	if err != nil {
		return nil, eris.Wrap(err, "open run ledger")
	}
	return st, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
