// Package pipeline orchestrates the resolution stages against a workspace:
// resolve (normalize, block, score, cluster), crossref, chain build and
// validation, and confidence scoring. Stages communicate only through the
// artifacts directory; the run ledger records what each invocation did.
package pipeline

import (
	"context"
	"time"

	"github.com/sells-group/entity-xref/internal/artifact"
	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/dataset"
	"github.com/sells-group/entity-xref/internal/metrics"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/store"
)

// Pipeline runs stages for one workspace.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	metrics   *metrics.Metrics
	artifacts *artifact.Dir
	manifest  *dataset.Manifest
	loader    *dataset.Loader
	now       func() time.Time
}

// New creates a Pipeline. The configured dataset filter is checked against
// the manifest here so a bad filter fails before any stage runs.
func New(cfg *config.Config, st store.Store, m *metrics.Metrics, manifest *dataset.Manifest) (*Pipeline, error) {
	if st == nil {
		st = store.Nop{}
	}
	if len(cfg.Xref.Datasets) > 0 {
		if _, err := manifest.Select(cfg.Xref.Datasets); err != nil {
			return nil, err
		}
	}
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		metrics:   m,
		artifacts: artifact.NewDir(cfg.Workspace.ArtifactsPath()),
		manifest:  manifest,
		loader:    &dataset.Loader{NameColumns: cfg.Resolve.NameColumns},
		now:       time.Now,
	}, nil
}

// Artifacts returns the artifacts directory the pipeline reads and writes.
func (p *Pipeline) Artifacts() *artifact.Dir {
	return p.artifacts
}

// Summary describes a finished multi-stage run.
type Summary struct {
	RunID   string           `json:"run_id"`
	Resolve ResolveResult    `json:"resolve"`
	Xrefs   int              `json:"xrefs"`
	Chains  int              `json:"chains"`
	Tiers   map[string]int   `json:"tiers"`
	Changed int              `json:"changed"`
	DryRun  bool             `json:"dry_run"`
	Stages  []model.RunStage `json:"stages"`
}

// RunAll executes every stage in order: resolve, crossref, chain build and
// scoring. dryRun applies to scoring only.
func (p *Pipeline) RunAll(ctx context.Context, dryRun bool) (*Summary, error) {
	r := p.begin(ctx, "run", true)
	sum := &Summary{RunID: r.id, DryRun: dryRun}

	err := func() error {
		res, err := p.resolve(ctx, r)
		if err != nil {
			return err
		}
		sum.Resolve = *res

		xrefs, err := p.crossref(ctx, r)
		if err != nil {
			return err
		}
		sum.Xrefs = len(xrefs)

		chains, err := p.buildChains(ctx, r, nil)
		if err != nil {
			return err
		}
		sum.Chains = len(chains)

		scored, err := p.score(ctx, r, dryRun)
		if err != nil {
			return err
		}
		sum.Tiers = tierCounts(scored)
		for _, d := range scored.Decisions {
			if d.Changed() {
				sum.Changed++
			}
		}
		return nil
	}()
	sum.Stages = r.stages
	return sum, r.finish(err)
}
