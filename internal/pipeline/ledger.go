package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/store"
)

// run tracks one ledger run. Ledger failures are logged, never fatal: the
// artifacts are the source of truth.
type run struct {
	p      *Pipeline
	ctx    context.Context
	id     string
	ledger store.Store
	log    *zap.Logger
	stages []model.RunStage
}

// begin opens a ledger run. Unrecorded runs (dry runs) get an id but leave
// no ledger rows.
func (p *Pipeline) begin(ctx context.Context, command string, record bool) *run {
	ledger := p.store
	if !record {
		ledger = store.Nop{}
	}
	r := &run{p: p, ctx: ctx, ledger: ledger}

	rec, err := ledger.CreateRun(ctx, p.cfg.Workspace.Dir, command)
	if err != nil {
		zap.L().Warn("pipeline: failed to create run", zap.String("command", command), zap.Error(err))
		rec, _ = store.Nop{}.CreateRun(ctx, p.cfg.Workspace.Dir, command)
		r.ledger = store.Nop{}
	}
	r.id = rec.ID
	r.log = zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", r.id), zap.String("command", command))
	r.log.Info("pipeline: run started")
	return r
}

// stage runs fn as a named stage, recording its outcome and counts.
func (r *run) stage(name string, fn func() (map[string]int64, error)) error {
	st, err := r.ledger.CreateStage(r.ctx, r.id, name)
	if err != nil {
		r.log.Warn("pipeline: failed to create stage", zap.String("stage", name), zap.Error(err))
	}

	start := time.Now()
	counts, fnErr := fn()
	duration := time.Since(start)

	status := model.RunStatusComplete
	errMsg := ""
	if fnErr != nil {
		status = model.RunStatusFailed
		errMsg = fnErr.Error()
		r.log.Error("pipeline: stage failed",
			zap.String("stage", name),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.Error(fnErr),
		)
	} else {
		r.log.Info("pipeline: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.Any("counts", counts),
		)
	}
	r.p.metrics.ObserveStage(name, status, duration)

	done := time.Now().UTC()
	rs := model.RunStage{
		RunID:       r.id,
		Name:        name,
		Status:      status,
		Counts:      counts,
		Error:       errMsg,
		StartedAt:   start.UTC(),
		CompletedAt: &done,
	}
	if st != nil {
		rs.ID = st.ID
		if err := r.ledger.CompleteStage(r.ctx, st.ID, status, counts, errMsg); err != nil {
			r.log.Warn("pipeline: failed to complete stage", zap.String("stage", name), zap.Error(err))
		}
	}
	r.stages = append(r.stages, rs)
	return fnErr
}

// finish closes the ledger run and passes err through.
func (r *run) finish(err error) error {
	status := model.RunStatusComplete
	errMsg := ""
	if err != nil {
		status = model.RunStatusFailed
		errMsg = err.Error()
	}
	if ferr := r.ledger.FinishRun(r.ctx, r.id, status, errMsg); ferr != nil {
		r.log.Warn("pipeline: failed to finish run", zap.Error(ferr))
	}
	r.log.Info("pipeline: run finished", zap.String("status", string(status)))
	return err
}
