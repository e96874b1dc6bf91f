package confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/model"
)

func scorer() *Scorer {
	return New(config.ResolveConfig{SimilarityThreshold: 0.85, WideNetThreshold: 0.70, DiscardThreshold: 0.55})
}

func TestDecide_Table(t *testing.T) {
	tests := []struct {
		name string
		ev   Evidence
		want model.ConfidenceTier
	}{
		{"independent strong", Evidence{Similarity: 0.90, IndependentSources: 2, Hops: 1}, model.TierConfirmed},
		{"independent hard id weak name", Evidence{Similarity: 0.60, IndependentSources: 3, HardIDKinds: []string{"ein"}, Hops: 2}, model.TierConfirmed},
		{"conflict beats everything", Evidence{Similarity: 1.0, IndependentSources: 3, HardIDKinds: []string{"ein"}, HardIDConflict: true}, model.TierUnresolved},
		{"contradicted", Evidence{Similarity: 0.95, IndependentSources: 2, Contradicted: true}, model.TierUnresolved},
		{"no hops", Evidence{Unresolvable: true, IndependentSources: 1}, model.TierUnresolved},
		{"single official strong", Evidence{Similarity: 0.90, IndependentSources: 1, OfficialSource: true, Hops: 1}, model.TierProbable},
		{"two sources moderate", Evidence{Similarity: 0.72, IndependentSources: 2, Hops: 1}, model.TierProbable},
		{"hard id single source", Evidence{Similarity: 0.75, IndependentSources: 1, HardIDKinds: []string{"cik"}, Hops: 1}, model.TierProbable},
		{"circumstantial", Evidence{Similarity: 0.60, IndependentSources: 1, Hops: 3}, model.TierPossible},
		{"circumstantial too long", Evidence{Similarity: 0.60, IndependentSources: 1, Hops: 4}, model.TierUnresolved},
		{"single strong unofficial", Evidence{Similarity: 0.90, IndependentSources: 1, Hops: 1}, model.TierUnresolved},
		{"weak", Evidence{Similarity: 0.40, IndependentSources: 2, Hops: 1}, model.TierUnresolved},
	}
	s := scorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Decide(tt.ev)
			assert.Equal(t, tt.want, got.Tier)
			assert.NotEmpty(t, got.Basis)
		})
	}
}

func TestDecide_Basis(t *testing.T) {
	got := scorer().Decide(Evidence{Similarity: 0.75, IndependentSources: 3, HardIDKinds: []string{"ein"}, OfficialSource: true, Hops: 2})
	assert.Equal(t, model.TierConfirmed, got.Tier)
	assert.Equal(t, "independent sources agree; similarity 0.75; 3 independent source(s); hard-id agreement on ein; official source; 2 hop(s)", got.Basis)
}

func acmeXref() model.CrossReference {
	return model.CrossReference{
		ID: "xref-1",
		Datasets: []model.DatasetRef{
			{DatasetID: "campaign", RecordIDs: []string{"campaign#1"}},
			{DatasetID: "lobby", RecordIDs: []string{"lobby#1"}},
			{DatasetID: "registry", RecordIDs: []string{"registry#1"}},
		},
		Quality: model.MatchQuality{WeakestScore: 0.75, HardIDAgreements: 1, AgreedKinds: []string{"ein"}, CrossSourceKinds: []string{"ein"}, IndependentSources: 3, OfficialSource: true},
	}
}

func TestXrefEvidence(t *testing.T) {
	ev := XrefEvidence(acmeXref())
	assert.Equal(t, 2, ev.Hops)
	assert.Equal(t, 3, ev.IndependentSources)
	assert.Equal(t, model.TierConfirmed, scorer().Xref(acmeXref()).Tier)

	x := acmeXref()
	x.Quality.Conflicted = true
	assert.Equal(t, model.TierUnresolved, scorer().Xref(x).Tier)
}

func TestChainEvidence(t *testing.T) {
	c := model.EvidenceChain{
		ID:                  "chain-1",
		LinkStrength:        0.80,
		CorroborationStatus: model.CorroborationSingle,
		IndependentSources:  2,
		Hops: []model.Hop{
			{LinkField: "ein", MatchType: model.MatchTypeExact, MatchScore: 1.0},
			{LinkField: "name", MatchType: model.MatchTypeFuzzy, MatchScore: 0.80},
		},
	}
	ev := ChainEvidence(c)
	assert.Equal(t, 1, ev.IndependentSources)
	assert.Equal(t, []string{"ein"}, ev.HardIDKinds)
	assert.Equal(t, model.TierProbable, scorer().Chain(c).Tier)

	c.CorroborationStatus = model.CorroborationCorroborated
	assert.Equal(t, model.TierConfirmed, scorer().Chain(c).Tier)

	c.CorroborationStatus = model.CorroborationContradicted
	assert.Equal(t, model.TierUnresolved, scorer().Chain(c).Tier)
}

func TestRescore_DoesNotMutateInputs(t *testing.T) {
	xs := []model.CrossReference{acmeXref()}
	res := scorer().Rescore(xs, nil)

	assert.Nil(t, xs[0].Confidence)
	require.NotNil(t, res.Xrefs[0].Confidence)
	assert.Equal(t, model.TierConfirmed, res.Xrefs[0].Confidence.Tier)
	assert.True(t, res.XrefsChanged())
	assert.False(t, res.ChainsChanged())

	res.Xrefs[0].Confidence = nil
	assert.Equal(t, xs[0], res.Xrefs[0])
}

func TestRescore_Idempotent(t *testing.T) {
	s := scorer()
	first := s.Rescore([]model.CrossReference{acmeXref()}, []model.EvidenceChain{{ID: "chain-1"}})
	second := s.Rescore(first.Xrefs, first.Chains)

	assert.Equal(t, first.Xrefs, second.Xrefs)
	assert.Equal(t, first.Chains, second.Chains)
	assert.False(t, second.XrefsChanged())
	assert.False(t, second.ChainsChanged())
	for _, d := range second.Decisions {
		assert.False(t, d.Changed())
	}
}

func TestResult_LogEntries(t *testing.T) {
	s := scorer()
	first := s.Rescore([]model.CrossReference{acmeXref()}, nil)
	second := s.Rescore(first.Xrefs, nil)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := second.LogEntries("run-1", now)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ScoreLogEntry{
		Timestamp:    now,
		RunID:        "run-1",
		TargetKind:   model.TargetXref,
		TargetID:     "xref-1",
		PreviousTier: model.TierConfirmed,
		Tier:         model.TierConfirmed,
		Basis:        first.Xrefs[0].Confidence.Basis,
		Changed:      false,
	}, entries[0])
}
