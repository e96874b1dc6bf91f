// Package match scores candidate record pairs. Hard disqualifiers are checked
// first and short-circuit to a fixed negative score; otherwise weighted
// signals are summed and the result capped at 1.0.
package match

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/normalize"
)

// fuzzyAddressFloor is the edit similarity at which two different address
// lines still count as the same address. A changed house number on a short
// line stays below it.
const fuzzyAddressFloor = 0.92

// Scorer computes MatchScores from normalized keys. It is safe for
// concurrent use.
type Scorer struct {
	weights config.ScoringConfig
	deny    *Denylist
	keys    map[string]model.NormalizedKey
}

// NewScorer creates a Scorer over the given keys, indexed by record id.
func NewScorer(weights config.ScoringConfig, deny *Denylist, keys map[string]model.NormalizedKey) *Scorer {
	return &Scorer{weights: weights, deny: deny, keys: keys}
}

// Lookup scores two records by id. ok is false when either id is unknown.
func (s *Scorer) Lookup(a, b string) (model.MatchScore, bool) {
	ka, okA := s.keys[a]
	kb, okB := s.keys[b]
	if !okA || !okB {
		return model.MatchScore{}, false
	}
	return s.Score(ka, kb), true
}

// Score computes the match score of two normalized keys.
func (s *Scorer) Score(a, b model.NormalizedKey) model.MatchScore {
	ms := model.MatchScore{Pair: model.NewCandidatePair(a.RecordID, b.RecordID)}

	if reason, detail := s.disqualify(a, b); reason != "" {
		ms.Disqualified = true
		ms.DisqualifiedBy = reason
		ms.Score = s.weights.DisqualifiedScore
		ms.RawScore = s.weights.DisqualifiedScore
		ms.Signals = []model.Signal{{Name: reason, Detail: detail}}
		zap.L().Debug("match: pair disqualified",
			zap.String("a", ms.Pair.A), zap.String("b", ms.Pair.B),
			zap.String("reason", reason), zap.String("detail", detail))
		return ms
	}

	add := func(name string, weight, sim float64, detail string) {
		ms.Signals = append(ms.Signals, model.Signal{
			Name: name, Weight: weight, Similarity: sim, Contribution: weight * sim, Detail: detail,
		})
		ms.RawScore += weight * sim
	}

	idsA, idsB := a.IdentifierSet(), b.IdentifierSet()

	if agreed := agreedKinds(idsA, idsB, normalize.IsHardKind); len(agreed) > 0 {
		ms.HardIDAgreement = agreed
		add(model.SignalHardID, s.weights.HardID, 1.0, strings.Join(agreed, ","))
	}

	if agreed := agreedKinds(idsA, idsB, normalize.IsContactKind); len(agreed) > 0 {
		add(model.SignalContact, s.weights.Contact, 1.0, strings.Join(agreed, ","))
	}

	if sim := NameSimilarity(a.Name.Forms(), b.Name.Forms(), s.weights.NameFloor); sim >= s.weights.NameFloor {
		add(model.SignalName, s.weights.Name, sim, "")
	}

	if la, lb := a.Address.Line, b.Address.Line; la != "" && lb != "" {
		switch {
		case s.deny.Contains(la) || s.deny.Contains(lb):
			ms.AddressSuppressed = true
			add(model.SignalAddress, s.weights.Address, 0, "registered agent address")
		case la == lb:
			add(model.SignalAddress, s.weights.Address, 1.0, "exact")
		default:
			if sim := EditSimilarity(la, lb); sim >= fuzzyAddressFloor {
				add(model.SignalAddress, s.weights.Address, sim, "fuzzy")
			}
		}
	}

	if a.State != "" && a.State == b.State {
		add(model.SignalState, s.weights.State, 1.0, a.State)
	}

	if sa, sb := a.Name.LegalSuffix, b.Name.LegalSuffix; sa != "" && sb != "" && disjointFields(sa, sb) {
		add(model.SignalSuffixPenalty, -s.weights.SuffixPenalty, 1.0, sa+" vs "+sb)
	}

	ms.Score = min(ms.RawScore, 1.0)
	return ms
}

// disqualify returns the first hard disqualifier that applies to the pair.
func (s *Scorer) disqualify(a, b model.NormalizedKey) (string, string) {
	if a.Name.Empty() || b.Name.Empty() {
		return model.DisqualifyUnmatchable, "blank name"
	}

	idsA, idsB := a.IdentifierSet(), b.IdentifierSet()
	kinds := make([]string, 0, len(idsA))
	for kind := range idsA {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if !normalize.IsHardKind(kind) || len(idsB[kind]) == 0 {
			continue
		}
		if !intersects(idsA[kind], idsB[kind]) {
			return model.DisqualifyIdentifier, kind
		}
	}

	if a.Country != "" && b.Country != "" && a.Country != b.Country {
		return model.DisqualifyCountry, a.Country + " vs " + b.Country
	}
	if a.Jurisdiction != "" && b.Jurisdiction != "" && a.Jurisdiction != b.Jurisdiction {
		return model.DisqualifyJurisdiction, a.Jurisdiction + " vs " + b.Jurisdiction
	}
	return "", ""
}

// ScoreAll scores pairs on up to workers goroutines. Workers only produce
// scores; the result is in the same order as pairs.
func (s *Scorer) ScoreAll(ctx context.Context, pairs []model.CandidatePair, workers int) ([]model.MatchScore, error) {
	if workers < 1 {
		workers = 1
	}
	out := make([]model.MatchScore, len(pairs))

	chunk := (len(pairs) + workers*4 - 1) / (workers * 4)
	if chunk < 64 {
		chunk = 64
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(pairs); start += chunk {
		end := min(start+chunk, len(pairs))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				ms, ok := s.Lookup(pairs[i].A, pairs[i].B)
				if !ok {
					return eris.Errorf("match: unknown record in pair %s / %s", pairs[i].A, pairs[i].B)
				}
				out[i] = ms
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "match: score pairs")
	}
	return out, nil
}

// Band classifies a score against the auto-match, review and wide-net
// thresholds.
func Band(score float64, cfg config.ResolveConfig) model.MatchBand {
	switch {
	case score >= cfg.SimilarityThreshold:
		return model.BandAutoMatch
	case score >= cfg.WideNetThreshold:
		return model.BandReview
	case score >= cfg.DiscardThreshold:
		return model.BandWideNet
	default:
		return model.BandDiscard
	}
}

func agreedKinds(a, b map[string]map[string]bool, class func(string) bool) []string {
	var out []string
	for kind, values := range a {
		if class(kind) && intersects(values, b[kind]) {
			out = append(out, kind)
		}
	}
	sort.Strings(out)
	return out
}

func intersects(a, b map[string]bool) bool {
	for v := range a {
		if b[v] {
			return true
		}
	}
	return false
}

func disjointFields(a, b string) bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(a) {
		set[f] = true
	}
	for _, f := range strings.Fields(b) {
		if set[f] {
			return false
		}
	}
	return true
}
