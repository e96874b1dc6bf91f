package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/normalize"
)

func resolveConfig(policy string) config.ResolveConfig {
	return config.ResolveConfig{
		SimilarityThreshold: 0.85, WideNetThreshold: 0.70, DiscardThreshold: 0.55,
		MergeThreshold: 0.70, GatePolicy: policy,
	}
}

func rec(ds, row, name string, ids ...model.Identifier) model.Record {
	return model.Record{DatasetID: ds, RowRef: row, Name: name, Identifiers: ids}
}

func keysFor(records []model.Record) map[string]model.NormalizedKey {
	_, byID := normalize.Keys(records)
	return byID
}

func score(a, b string, s float64) model.MatchScore {
	return model.MatchScore{Pair: model.NewCandidatePair(a, b), Score: s, RawScore: s}
}

func entityOf(res Result, recordID string) *model.CanonicalEntity {
	for i := range res.Entities {
		if res.Entities[i].HasMember(recordID) {
			return &res.Entities[i]
		}
	}
	return nil
}

func TestCluster_NoTransitiveChainError(t *testing.T) {
	records := []model.Record{rec("d", "a", "Alpha"), rec("d", "b", "Alpha Beta"), rec("d", "c", "Beta")}
	scores := []model.MatchScore{
		score("d#a", "d#b", 0.90),
		score("d#b", "d#c", 0.90),
		score("d#a", "d#c", 0.40),
	}

	for _, policy := range []string{GateAll, GateRepresentative} {
		t.Run(policy, func(t *testing.T) {
			res := New(resolveConfig(policy), nil).Cluster(records, keysFor(records), scores)
			ea, ec := entityOf(res, "d#a"), entityOf(res, "d#c")
			require.NotNil(t, ea)
			require.NotNil(t, ec)
			assert.NotEqual(t, ea.CanonicalID, ec.CanonicalID, "A and C must never be co-members")
			assert.Equal(t, 1, res.Refused)
		})
	}
}

func TestCluster_MissingDirectScoreUsesLookup(t *testing.T) {
	records := []model.Record{rec("d", "a", "Alpha"), rec("d", "b", "Alpha"), rec("d", "c", "Alpha")}
	scores := []model.MatchScore{score("d#a", "d#b", 0.95), score("d#b", "d#c", 0.95)}

	// Without a lookup the a/c pair cannot be verified.
	res := New(resolveConfig(GateAll), nil).Cluster(records, keysFor(records), scores)
	assert.Len(t, res.Entities, 2)

	calls := 0
	lookup := func(a, b string) (model.MatchScore, bool) {
		calls++
		return score(a, b, 0.92), true
	}
	res = New(resolveConfig(GateAll), lookup).Cluster(records, keysFor(records), scores)
	require.Len(t, res.Entities, 1)
	assert.Len(t, res.Entities[0].Members, 3)
	assert.Len(t, res.Entities[0].PairScores, 3)
	assert.Positive(t, calls)
}

func TestCluster_RefusesHardIdentifierConflict(t *testing.T) {
	records := []model.Record{
		rec("a", "1", "Acme", model.Identifier{Kind: "ein", Value: "111111111"}),
		rec("b", "1", "Acme"),
		rec("c", "1", "Acme", model.Identifier{Kind: "ein", Value: "222222222"}),
	}
	scores := []model.MatchScore{
		score("a#1", "b#1", 0.95),
		score("b#1", "c#1", 0.95),
		score("a#1", "c#1", 0.95), // an inconsistent upstream score must not override the identifier check
	}
	res := New(resolveConfig(GateAll), nil).Cluster(records, keysFor(records), scores)
	assert.NotEqual(t, entityOf(res, "a#1").CanonicalID, entityOf(res, "c#1").CanonicalID)
	for _, e := range res.Entities {
		assert.False(t, e.Flagged)
	}
}

func TestCluster_FlagsConflictWithinRecord(t *testing.T) {
	records := []model.Record{
		rec("a", "1", "Acme", model.Identifier{Kind: "ein", Value: "111111111"}, model.Identifier{Kind: "tax_id", Value: "222222222"}),
		rec("b", "1", "Acme", model.Identifier{Kind: "ein", Value: "111111111"}),
	}
	scores := []model.MatchScore{score("a#1", "b#1", 1.0)}
	res := New(resolveConfig(GateAll), nil).Cluster(records, keysFor(records), scores)

	require.Len(t, res.Entities, 1)
	e := res.Entities[0]
	assert.True(t, e.Flagged)
	require.Len(t, e.Conflicts, 1)
	assert.Equal(t, "ein", e.Conflicts[0].Kind)
	assert.Equal(t, []string{"111111111", "222222222"}, e.Conflicts[0].Values)
	assert.Equal(t, []string{"a#1"}, e.Conflicts[0].Sources["222222222"])
	assert.Contains(t, e.ConfidenceBasis, "FLAGGED")
}

func TestCluster_SubGateScoresBecomeCandidateLinks(t *testing.T) {
	records := []model.Record{rec("a", "1", "Acme Holdings"), rec("b", "1", "Acme Partners")}
	scores := []model.MatchScore{score("a#1", "b#1", 0.60)}
	res := New(resolveConfig(GateAll), nil).Cluster(records, keysFor(records), scores)

	assert.Len(t, res.Entities, 2)
	require.Len(t, res.CandidateLinks, 1)
	link := res.CandidateLinks[0]
	assert.Equal(t, ReasonWideNet, link.Reason)
	assert.InDelta(t, 0.60, link.Score, 1e-9)
	assert.Equal(t, entityOf(res, "a#1").CanonicalID, link.FromEntity)
}

func TestCluster_DisqualifiedAndDiscardedIgnored(t *testing.T) {
	records := []model.Record{rec("a", "1", "Acme"), rec("b", "1", "Acme"), rec("c", "1", "Zeta")}
	dq := score("a#1", "b#1", -1)
	dq.Disqualified = true
	scores := []model.MatchScore{dq, score("a#1", "c#1", 0.30)}
	res := New(resolveConfig(GateAll), nil).Cluster(records, keysFor(records), scores)
	assert.Len(t, res.Entities, 3)
	assert.Empty(t, res.CandidateLinks)
}

func TestCluster_DeterministicAcrossInputOrder(t *testing.T) {
	records := []model.Record{rec("c", "1", "Acme"), rec("a", "1", "Acme"), rec("b", "1", "Acme")}
	scores := []model.MatchScore{score("b#1", "c#1", 0.9), score("a#1", "b#1", 0.9), score("a#1", "c#1", 0.9)}

	res1 := New(resolveConfig(GateAll), nil).Cluster(records, keysFor(records), scores)
	reversedRecs := []model.Record{records[2], records[1], records[0]}
	reversedScores := []model.MatchScore{scores[2], scores[1], scores[0]}
	res2 := New(resolveConfig(GateAll), nil).Cluster(reversedRecs, keysFor(reversedRecs), reversedScores)

	assert.Equal(t, res1.Entities, res2.Entities)
	require.Len(t, res1.Entities, 1)
	assert.Equal(t, CanonicalID("a#1"), res1.Entities[0].CanonicalID)
	assert.Equal(t, []string{"a#1", "b#1", "c#1"}, res1.Entities[0].MemberIDs())
}

func TestCluster_CanonicalNameByReliability(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	r1 := rec("campaign", "1", "ACME CORP LLC")
	r1.Provenance = model.Provenance{Reliability: model.ReliabilityC, AccessedAt: &early}
	r2 := rec("registry", "1", "Acme Corporation")
	r2.Provenance = model.Provenance{Reliability: model.ReliabilityA, AccessedAt: &late}
	r3 := rec("lobby", "1", "Acme Corp.")
	r3.Provenance = model.Provenance{Reliability: model.ReliabilityA, AccessedAt: &early}

	records := []model.Record{r1, r2, r3}
	scores := []model.MatchScore{
		score("campaign#1", "registry#1", 0.9), score("campaign#1", "lobby#1", 0.9), score("lobby#1", "registry#1", 1.0),
	}
	res := New(resolveConfig(GateAll), nil).Cluster(records, keysFor(records), scores)
	require.Len(t, res.Entities, 1)
	// Both A-graded; lobby was collected first.
	assert.Equal(t, "Acme Corp.", res.Entities[0].CanonicalName)
	assert.Equal(t, "acme", res.Entities[0].NormalizedName)
	assert.Equal(t, model.EntityOrganization, res.Entities[0].EntityType)
}

func TestCluster_MemberSimilarity(t *testing.T) {
	records := []model.Record{rec("a", "1", "Acme"), rec("b", "1", "Acme"), rec("c", "1", "Solo")}
	res := New(resolveConfig(GateAll), nil).Cluster(records, keysFor(records), []model.MatchScore{score("a#1", "b#1", 0.8)})

	pair := entityOf(res, "a#1")
	require.NotNil(t, pair)
	for _, m := range pair.Members {
		assert.InDelta(t, 0.8, m.Similarity, 1e-9)
	}
	solo := entityOf(res, "c#1")
	assert.InDelta(t, 1.0, solo.Members[0].Similarity, 1e-9)
	assert.Equal(t, "singleton", solo.ConfidenceBasis)
}

func TestArena_UnionKeepsLowestRoot(t *testing.T) {
	a := newArena(4)
	assert.Equal(t, 1, a.union(3, 1))
	assert.Equal(t, 0, a.union(2, 0))
	root := a.union(a.find(3), a.find(2))
	assert.Equal(t, 0, root)
	assert.Equal(t, []int{0, 1, 2, 3}, a.members[0])
	assert.Equal(t, []int{0}, a.roots())
}
