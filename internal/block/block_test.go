package block

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/model"
)

func testConfig() config.BlockingConfig {
	return config.BlockingConfig{PrefixLen: 3, Window: 3, MaxBlockSize: 50, StopTokens: config.DefaultStopTokens}
}

func key(id, name, state string) model.NormalizedKey {
	return model.NormalizedKey{RecordID: id, Name: model.NormalizedName{Canonical: name}, State: state}
}

func hasPair(pairs []model.CandidatePair, a, b string) bool {
	want := model.NewCandidatePair(a, b)
	for _, p := range pairs {
		if p == want {
			return true
		}
	}
	return false
}

func TestSoundex(t *testing.T) {
	tests := map[string]string{
		"robert": "R163", "rupert": "R163", "ashcraft": "A261", "tymczak": "T522",
		"pfister": "P236", "acme": "A250", "akme": "A250", "a": "A000", "123": "",
		"3m": "M000", "o'brien": "O165",
	}
	for in, want := range tests {
		assert.Equal(t, want, Soundex(in), in)
	}
}

func TestCandidates_UnionOfStrategies(t *testing.T) {
	keys := []model.NormalizedKey{
		key("a#1", "acme", "DE"),
		key("b#1", "acme", ""),           // same phonetic + token, different prefix key
		key("c#1", "akme", "NY"),         // phonetic only
		key("d#1", "widget works", "DE"), // token "works" with e#1
		key("e#1", "zeta works", "CA"),
	}
	pairs, report := New(testConfig()).Candidates(keys)

	assert.True(t, hasPair(pairs, "a#1", "b#1"))
	assert.True(t, hasPair(pairs, "a#1", "c#1"))
	assert.True(t, hasPair(pairs, "d#1", "e#1"))
	assert.Equal(t, len(pairs), report.Pairs)
	assert.Empty(t, report.OversizeBlocks)

	for i := 1; i < len(pairs); i++ {
		prev, cur := pairs[i-1], pairs[i]
		assert.True(t, prev.A < cur.A || (prev.A == cur.A && prev.B < cur.B), "pairs sorted")
	}
}

func TestCandidates_StopTokensIgnored(t *testing.T) {
	b := New(config.BlockingConfig{PrefixLen: 3, Window: 2, MaxBlockSize: 50, StopTokens: []string{"holdings"}})
	blocks := b.Blocks([]model.NormalizedKey{key("a#1", "alpha holdings", ""), key("b#1", "zulu holdings", "")})
	_, ok := blocks[StrategyToken+":holdings"]
	assert.False(t, ok)
	assert.Equal(t, []string{"a#1"}, blocks[StrategyToken+":alpha"])
}

func TestCandidates_UnmatchableExcluded(t *testing.T) {
	keys := []model.NormalizedKey{key("a#1", "", "DE"), key("b#1", "acme", "DE"), key("c#1", "acme", "DE")}
	pairs, report := New(testConfig()).Candidates(keys)

	assert.Equal(t, []string{"a#1"}, report.Unmatchable)
	for _, p := range pairs {
		assert.NotEqual(t, "a#1", p.A)
		assert.NotEqual(t, "a#1", p.B)
	}
	assert.True(t, hasPair(pairs, "b#1", "c#1"))
}

func TestCandidates_AlternateFormsBlock(t *testing.T) {
	k1 := key("a#1", "bob smith", "")
	k1.Name.Alternates = []string{"robert smith"}
	k2 := key("b#1", "robert smith", "")
	blocks := New(testConfig()).Blocks([]model.NormalizedKey{k1, k2})
	assert.Equal(t, []string{"a#1", "b#1"}, blocks[StrategyPrefix+":rob|"])
}

func TestCandidates_OversizeBlockFlagged(t *testing.T) {
	cfg := config.BlockingConfig{PrefixLen: 3, Window: 2, MaxBlockSize: 5}
	var keys []model.NormalizedKey
	for i := 0; i < 20; i++ {
		keys = append(keys, key(fmt.Sprintf("ds#%02d", i), fmt.Sprintf("acme %c", 'a'+i), "DE"))
	}
	pairs, report := New(cfg).Candidates(keys)

	require.NotEmpty(t, report.OversizeBlocks)
	found := false
	for _, ob := range report.OversizeBlocks {
		if ob.Key == StrategyPrefix+":acm|DE" {
			found = true
			assert.Equal(t, 20, ob.Size)
			assert.Equal(t, StrategyPrefix, ob.Strategy)
		}
	}
	assert.True(t, found)
	// Only window neighbours are paired, never the full 190 pairs.
	assert.Less(t, len(pairs), 20*19/2)
	assert.True(t, hasPair(pairs, "ds#00", "ds#01"))
	assert.False(t, hasPair(pairs, "ds#00", "ds#19"))
}

func TestCandidates_Deterministic(t *testing.T) {
	keys := []model.NormalizedKey{
		key("c#1", "acme", "DE"), key("a#1", "acme", "DE"), key("b#1", "acme widgets", ""),
	}
	reversed := []model.NormalizedKey{keys[2], keys[1], keys[0]}
	p1, _ := New(testConfig()).Candidates(keys)
	p2, _ := New(testConfig()).Candidates(reversed)
	assert.Equal(t, p1, p2)
}

func TestPrefix_Runes(t *testing.T) {
	assert.Equal(t, "caf", prefix("cafe", 3))
	assert.Equal(t, "ab", prefix("ab", 3))
	assert.Equal(t, "日本語", prefix("日本語テキスト", 3))
}
