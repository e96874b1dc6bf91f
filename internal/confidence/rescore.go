package confidence

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/model"
)

// Decision is one re-score outcome.
type Decision struct {
	TargetKind string
	TargetID   string
	Previous   *model.Confidence
	Next       model.Confidence
}

// Changed reports whether the tier or basis differ from the stored value.
func (d Decision) Changed() bool {
	return d.Previous == nil || *d.Previous != d.Next
}

// Result holds re-scored copies of the inputs. Inputs are never modified.
type Result struct {
	Xrefs     []model.CrossReference
	Chains    []model.EvidenceChain
	Decisions []Decision
}

// XrefsChanged reports whether any cross-reference tier changed.
func (r Result) XrefsChanged() bool { return r.changed(model.TargetXref) }

// ChainsChanged reports whether any chain tier changed.
func (r Result) ChainsChanged() bool { return r.changed(model.TargetChain) }

func (r Result) changed(kind string) bool {
	for _, d := range r.Decisions {
		if d.TargetKind == kind && d.Changed() {
			return true
		}
	}
	return false
}

// LogEntries converts decisions into scoring log entries.
func (r Result) LogEntries(runID string, now time.Time) []model.ScoreLogEntry {
	out := make([]model.ScoreLogEntry, len(r.Decisions))
	for i, d := range r.Decisions {
		e := model.ScoreLogEntry{
			Timestamp:  now.UTC(),
			RunID:      runID,
			TargetKind: d.TargetKind,
			TargetID:   d.TargetID,
			Tier:       d.Next.Tier,
			Basis:      d.Next.Basis,
			Changed:    d.Changed(),
		}
		if d.Previous != nil {
			e.PreviousTier = d.Previous.Tier
		}
		out[i] = e
	}
	return out
}

// Rescore grades every cross-reference and chain. Only the Confidence field
// of the returned copies differs from the inputs.
func (s *Scorer) Rescore(xrefs []model.CrossReference, chains []model.EvidenceChain) Result {
	log := zap.L().With(zap.String("component", "confidence"))
	res := Result{
		Xrefs:  make([]model.CrossReference, len(xrefs)),
		Chains: make([]model.EvidenceChain, len(chains)),
	}

	for i, x := range xrefs {
		next := s.Xref(x)
		res.Decisions = append(res.Decisions, Decision{TargetKind: model.TargetXref, TargetID: x.ID, Previous: x.Confidence, Next: next})
		x.Confidence = &next
		res.Xrefs[i] = x
	}
	for i, c := range chains {
		next := s.Chain(c)
		res.Decisions = append(res.Decisions, Decision{TargetKind: model.TargetChain, TargetID: c.ID, Previous: c.Confidence, Next: next})
		c.Confidence = &next
		res.Chains[i] = c
	}

	tiers := make(map[model.ConfidenceTier]int)
	changed := 0
	for _, d := range res.Decisions {
		tiers[d.Next.Tier]++
		if d.Changed() {
			changed++
		}
	}
	log.Info("confidence: rescored",
		zap.Int("xrefs", len(xrefs)),
		zap.Int("chains", len(chains)),
		zap.Int("changed", changed),
		zap.Int("confirmed", tiers[model.TierConfirmed]),
		zap.Int("probable", tiers[model.TierProbable]),
		zap.Int("possible", tiers[model.TierPossible]),
		zap.Int("unresolved", tiers[model.TierUnresolved]),
	)
	return res
}
