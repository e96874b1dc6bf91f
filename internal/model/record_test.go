package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordID_RoundTrip(t *testing.T) {
	r := Record{DatasetID: "campaign", RowRef: "12"}
	assert.Equal(t, "campaign#12", r.ID())

	ds, row, ok := SplitRecordID(r.ID())
	assert.True(t, ok)
	assert.Equal(t, "campaign", ds)
	assert.Equal(t, "12", row)

	_, _, ok = SplitRecordID("no-separator")
	assert.False(t, ok)
	_, _, ok = SplitRecordID("trailing#")
	assert.False(t, ok)
}

func TestParseEntityType(t *testing.T) {
	assert.Equal(t, EntityPerson, ParseEntityType("Individual"))
	assert.Equal(t, EntityOrganization, ParseEntityType(" company "))
	assert.Equal(t, EntityUnknown, ParseEntityType("trust"))
}

func TestIdentifierValues(t *testing.T) {
	r := Record{Identifiers: []Identifier{
		{Kind: "ein", Value: "2"}, {Kind: "ein", Value: "1"}, {Kind: "ein", Value: "2"},
		{Kind: "phone", Value: "3"}, {Kind: "ein", Value: ""},
	}}
	assert.Equal(t, []string{"1", "2"}, r.IdentifierValues("ein"))
	assert.Nil(t, r.IdentifierValues("cik"))
}

func TestSortRecords(t *testing.T) {
	recs := []Record{{DatasetID: "b", RowRef: "1"}, {DatasetID: "a", RowRef: "2"}, {DatasetID: "a", RowRef: "1"}}
	SortRecords(recs)
	assert.Equal(t, "a#1", recs[0].ID())
	assert.Equal(t, "a#2", recs[1].ID())
	assert.Equal(t, "b#1", recs[2].ID())
}

func TestNewCandidatePair_Ordered(t *testing.T) {
	assert.Equal(t, NewCandidatePair("x#1", "a#1"), NewCandidatePair("a#1", "x#1"))
	assert.Equal(t, "a#1", NewCandidatePair("x#1", "a#1").A)
}

func TestReliabilityRank(t *testing.T) {
	assert.Less(t, ReliabilityRank(ReliabilityA), ReliabilityRank(ReliabilityB))
	assert.Equal(t, ReliabilityRank(ReliabilityF), ReliabilityRank("?"))
}

func TestLineageRoots(t *testing.T) {
	p := Provenance{Path: "datasets/a.csv"}
	assert.Equal(t, []string{"file:datasets/a.csv"}, p.LineageRoots())

	p.SourceURL = "https://example.gov/a.csv"
	assert.Equal(t, []string{"https://example.gov/a.csv"}, p.LineageRoots())

	p.Lineage = []string{"aggregator", "state-registry"}
	roots := p.LineageRoots()
	assert.Equal(t, []string{"aggregator", "state-registry"}, roots)
	roots[0] = "mutated"
	assert.Equal(t, "aggregator", p.Lineage[0])
}

func TestCanonicalEntity_PairScore(t *testing.T) {
	e := CanonicalEntity{PairScores: []PairScore{{A: "a#1", B: "b#1", Score: 0.9}}}
	ps, ok := e.PairScore("b#1", "a#1")
	assert.True(t, ok)
	assert.InDelta(t, 0.9, ps.Score, 1e-9)
	_, ok = e.PairScore("a#1", "c#1")
	assert.False(t, ok)
}

func TestEvidenceChain_CitedRecords(t *testing.T) {
	c := EvidenceChain{AnchorRecord: "a#1", Hops: []Hop{{FromRecord: "a#1", ToRecord: "b#1"}, {FromRecord: "b#1", ToRecord: "c#1"}}}
	assert.Equal(t, []string{"a#1", "b#1", "c#1"}, c.CitedRecords())
}

func TestIndependentGroups(t *testing.T) {
	groups, n := IndependentGroups([][]string{
		{"fec-bulk"},
		{"aggregator", "fec-bulk"},
		{"state-registry"},
		{"aggregator"},
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, groups[0], groups[1])
	assert.Equal(t, groups[0], groups[3])
	assert.NotEqual(t, groups[0], groups[2])

	_, n = IndependentGroups(nil)
	assert.Equal(t, 0, n)
}
