// Package confidence grades cross-references and evidence chains into
// Confirmed, Probable, Possible or Unresolved tiers.
package confidence

import (
	"fmt"
	"strings"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/normalize"
)

// MaxPossibleHops is the longest chain that can still be graded Possible.
const MaxPossibleHops = 3

// Evidence is the tier-relevant summary of a finding.
type Evidence struct {
	Similarity         float64
	IndependentSources int
	HardIDKinds        []string
	HardIDConflict     bool
	Contradicted       bool
	Unresolvable       bool
	OfficialSource     bool
	Hops               int
}

// Scorer applies the tier decision table.
type Scorer struct {
	strong   float64
	moderate float64
	weak     float64
}

// New creates a Scorer from the resolution thresholds: similarity for strong
// evidence, wide-net for moderate, discard as the floor for Possible.
func New(cfg config.ResolveConfig) *Scorer {
	return &Scorer{strong: cfg.SimilarityThreshold, moderate: cfg.WideNetThreshold, weak: cfg.DiscardThreshold}
}

// Decide grades evidence. Rules apply top-down and the first match wins.
func (s *Scorer) Decide(ev Evidence) model.Confidence {
	hardID := len(ev.HardIDKinds) > 0
	facts := describe(ev)

	switch {
	case ev.HardIDConflict:
		return verdict(model.TierUnresolved, "contradictory hard identifiers", facts)
	case ev.Contradicted:
		return verdict(model.TierUnresolved, "sources sharing a lineage root disagree", facts)
	case ev.Unresolvable:
		return verdict(model.TierUnresolved, "no linking evidence", facts)
	case ev.IndependentSources >= 2 && (ev.Similarity >= s.strong || hardID):
		return verdict(model.TierConfirmed, "independent sources agree", facts)
	case ev.OfficialSource && (ev.Similarity >= s.strong || hardID):
		return verdict(model.TierProbable, "strong official-record source", facts)
	case ev.IndependentSources >= 2 && ev.Similarity >= s.moderate:
		return verdict(model.TierProbable, "multiple sources with moderate similarity", facts)
	case hardID && ev.Similarity >= s.moderate:
		return verdict(model.TierProbable, "hard identifier agreement", facts)
	case ev.Similarity >= s.weak && ev.Similarity < s.strong && ev.Hops <= MaxPossibleHops:
		return verdict(model.TierPossible, "circumstantial evidence only", facts)
	default:
		return verdict(model.TierUnresolved, "insufficient evidence", facts)
	}
}

func verdict(tier model.ConfidenceTier, reason string, facts []string) model.Confidence {
	return model.Confidence{Tier: tier, Basis: reason + "; " + strings.Join(facts, "; ")}
}

func describe(ev Evidence) []string {
	facts := []string{
		fmt.Sprintf("similarity %.2f", ev.Similarity),
		fmt.Sprintf("%d independent source(s)", ev.IndependentSources),
	}
	if len(ev.HardIDKinds) > 0 {
		facts = append(facts, "hard-id agreement on "+strings.Join(ev.HardIDKinds, ","))
	}
	if ev.OfficialSource {
		facts = append(facts, "official source")
	}
	facts = append(facts, fmt.Sprintf("%d hop(s)", ev.Hops))
	return facts
}

// XrefEvidence summarizes a cross-reference. Only hard-id agreement between
// independent source groups counts; two rows of one source cannot vouch for
// each other.
func XrefEvidence(x model.CrossReference) Evidence {
	hops := len(x.RecordIDs()) - 1
	return Evidence{
		Similarity:         x.Quality.WeakestScore,
		IndependentSources: x.Quality.IndependentSources,
		HardIDKinds:        x.Quality.CrossSourceKinds,
		HardIDConflict:     x.Quality.Conflicted,
		OfficialSource:     x.Quality.OfficialSource,
		Hops:               max(hops, 0),
	}
}

// ChainEvidence summarizes an evidence chain. Only a corroborated chain
// counts more than one independent source.
func ChainEvidence(c model.EvidenceChain) Evidence {
	ev := Evidence{
		Similarity:         c.LinkStrength,
		IndependentSources: min(c.IndependentSources, 1),
		Contradicted:       c.CorroborationStatus == model.CorroborationContradicted,
		Unresolvable:       c.CorroborationStatus == model.CorroborationUnresolvable,
		OfficialSource:     c.OfficialSource,
		Hops:               len(c.Hops),
	}
	if c.CorroborationStatus == model.CorroborationCorroborated {
		ev.IndependentSources = c.IndependentSources
	}
	seen := make(map[string]bool)
	for _, h := range c.Hops {
		if h.MatchType == model.MatchTypeExact && normalize.IsHardKind(h.LinkField) && !seen[h.LinkField] {
			seen[h.LinkField] = true
			ev.HardIDKinds = append(ev.HardIDKinds, h.LinkField)
		}
	}
	return ev
}

// Xref grades a cross-reference.
func (s *Scorer) Xref(x model.CrossReference) model.Confidence {
	return s.Decide(XrefEvidence(x))
}

// Chain grades an evidence chain.
func (s *Scorer) Chain(c model.EvidenceChain) model.Confidence {
	return s.Decide(ChainEvidence(c))
}
