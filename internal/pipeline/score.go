package pipeline

import (
	"context"

	"github.com/sells-group/entity-xref/internal/artifact"
	"github.com/sells-group/entity-xref/internal/confidence"
	"github.com/sells-group/entity-xref/internal/model"
)

// Score grades every cross-reference and chain. A dry run computes and
// returns the decisions but writes nothing and leaves no ledger rows.
func (p *Pipeline) Score(ctx context.Context, dryRun bool) (confidence.Result, error) {
	r := p.begin(ctx, model.StageConfidence, !dryRun)
	res, err := p.score(ctx, r, dryRun)
	return res, r.finish(err)
}

func (p *Pipeline) score(_ context.Context, r *run, dryRun bool) (confidence.Result, error) {
	var res confidence.Result
	err := r.stage(model.StageConfidence, func() (map[string]int64, error) {
		var xrefs []model.CrossReference
		if _, err := p.artifacts.Read(artifact.XrefsFile, &xrefs); err != nil {
			return nil, err
		}
		chains, err := p.chainList()
		if err != nil {
			if !artifact.IsMissing(err) {
				return nil, err
			}
			r.log.Info("pipeline: no chains to score yet")
			chains = nil
		}

		res = confidence.New(p.cfg.Resolve).Rescore(xrefs, chains)

		changed := 0
		for _, d := range res.Decisions {
			if d.Changed() {
				changed++
			}
		}
		counts := map[string]int64{
			"xrefs":   int64(len(res.Xrefs)),
			"chains":  int64(len(res.Chains)),
			"changed": int64(changed),
		}
		for tier, n := range tierCounts(res) {
			counts[tier] = int64(n)
		}
		if dryRun {
			return counts, nil
		}

		if res.XrefsChanged() {
			if err := p.artifacts.Write(artifact.XrefsFile, r.id, res.Xrefs); err != nil {
				return nil, err
			}
		}
		if res.ChainsChanged() {
			if err := p.artifacts.Write(artifact.ChainsFile, r.id, res.Chains); err != nil {
				return nil, err
			}
		}
		if err := artifact.AppendJSONL(p.artifacts, artifact.ScoringLogFile, res.LogEntries(r.id, p.now())); err != nil {
			return nil, err
		}

		byKind := map[string]map[model.ConfidenceTier]int{
			model.TargetXref:  {},
			model.TargetChain: {},
		}
		for _, d := range res.Decisions {
			byKind[d.TargetKind][d.Next.Tier]++
		}
		for kind, tiers := range byKind {
			p.metrics.SetTiers(kind, tiers)
		}
		return counts, nil
	})
	return res, err
}

// tierCounts counts tiers across every decision.
func tierCounts(res confidence.Result) map[string]int {
	out := make(map[string]int)
	for _, d := range res.Decisions {
		out[string(d.Next.Tier)]++
	}
	return out
}
