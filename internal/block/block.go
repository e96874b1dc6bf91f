// Package block proposes candidate record pairs for scoring. A pair is a
// candidate when the two records share any blocking key: name prefix plus
// state, phonetic code, or a name token. A sorted-neighborhood pass adds
// near-miss pairs. Blocks larger than the configured cap are reported and
// only compared through the sorted-neighborhood window.
package block

import (
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/model"
)

// Blocking strategies.
const (
	StrategyPrefix             = "prefix_state"
	StrategyPhonetic           = "phonetic"
	StrategyToken              = "token"
	StrategySortedNeighborhood = "sorted_neighborhood"
)

// OversizeBlock is a block that exceeded the size cap.
type OversizeBlock struct {
	Key      string `json:"key"`
	Strategy string `json:"strategy"`
	Size     int    `json:"size"`
}

// Report summarizes one blocking run.
type Report struct {
	Records         int             `json:"records"`
	Blocks          int             `json:"blocks"`
	Pairs           int             `json:"pairs"`
	PairsByStrategy map[string]int  `json:"pairs_by_strategy"`
	OversizeBlocks  []OversizeBlock `json:"oversize_blocks"`
	// Unmatchable lists records whose name normalized to nothing.
	Unmatchable []string `json:"unmatchable"`
}

// Blocker generates candidate pairs from normalized keys.
type Blocker struct {
	cfg  config.BlockingConfig
	stop map[string]bool
}

// New creates a Blocker.
func New(cfg config.BlockingConfig) *Blocker {
	if cfg.PrefixLen <= 0 {
		cfg.PrefixLen = 3
	}
	if cfg.Window < 2 {
		cfg.Window = 2
	}
	if cfg.MaxBlockSize < 2 {
		cfg.MaxBlockSize = 2
	}
	stop := make(map[string]bool, len(cfg.StopTokens))
	for _, t := range cfg.StopTokens {
		stop[strings.ToLower(t)] = true
	}
	return &Blocker{cfg: cfg, stop: stop}
}

// Blocks maps every block key to the sorted ids of the records that carry
// it. Keys are prefixed with their strategy. Unmatchable records carry no
// keys.
func (b *Blocker) Blocks(keys []model.NormalizedKey) map[string][]string {
	blocks := make(map[string][]string)
	for _, k := range keys {
		if k.Name.Empty() {
			continue
		}
		for _, bk := range b.keysFor(k) {
			blocks[bk] = append(blocks[bk], k.RecordID)
		}
	}
	for bk, ids := range blocks {
		sort.Strings(ids)
		blocks[bk] = dedupe(ids)
	}
	return blocks
}

// keysFor returns the distinct block keys of one record, including keys of
// alternate name forms.
func (b *Blocker) keysFor(k model.NormalizedKey) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(key string) {
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	for _, form := range k.Name.Forms() {
		if form == "" {
			continue
		}
		add(StrategyPrefix + ":" + prefix(form, b.cfg.PrefixLen) + "|" + k.State)
		if code := phoneticKey(form); code != "" {
			add(StrategyPhonetic + ":" + code)
		}
		for _, tok := range strings.Fields(form) {
			if utf8.RuneCountInString(tok) < 2 || b.stop[tok] {
				continue
			}
			add(StrategyToken + ":" + tok)
		}
	}
	return out
}

// Candidates returns the deduplicated candidate pairs, ordered by pair, and
// a report of what was blocked.
func (b *Blocker) Candidates(keys []model.NormalizedKey) ([]model.CandidatePair, Report) {
	log := zap.L().With(zap.String("component", "blocker"))

	report := Report{Records: len(keys), PairsByStrategy: make(map[string]int)}
	byID := make(map[string]model.NormalizedKey, len(keys))
	var blockable []model.NormalizedKey
	for _, k := range keys {
		if k.Name.Empty() {
			report.Unmatchable = append(report.Unmatchable, k.RecordID)
			continue
		}
		byID[k.RecordID] = k
		blockable = append(blockable, k)
	}
	sort.Strings(report.Unmatchable)

	pairs := make(map[model.CandidatePair]bool)
	add := func(x, y, strategy string) {
		if x == y {
			return
		}
		p := model.NewCandidatePair(x, y)
		if pairs[p] {
			return
		}
		pairs[p] = true
		report.PairsByStrategy[strategy]++
	}

	blocks := b.Blocks(blockable)
	report.Blocks = len(blocks)
	blockKeys := make([]string, 0, len(blocks))
	for bk := range blocks {
		blockKeys = append(blockKeys, bk)
	}
	sort.Strings(blockKeys)

	for _, bk := range blockKeys {
		ids := blocks[bk]
		strategy, _, _ := strings.Cut(bk, ":")
		if len(ids) > b.cfg.MaxBlockSize {
			report.OversizeBlocks = append(report.OversizeBlocks, OversizeBlock{Key: bk, Strategy: strategy, Size: len(ids)})
			log.Warn("oversize block, comparing by sorted neighborhood only",
				zap.String("key", bk), zap.Int("size", len(ids)), zap.Int("max", b.cfg.MaxBlockSize))
			b.sortedNeighborhood(ids, byID, add)
			continue
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				add(ids[i], ids[j], strategy)
			}
		}
	}

	// Global window over all names catches truncations that share no key.
	all := make([]string, len(blockable))
	for i, k := range blockable {
		all[i] = k.RecordID
	}
	b.sortedNeighborhood(all, byID, add)

	out := make([]model.CandidatePair, 0, len(pairs))
	for p := range pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	report.Pairs = len(out)

	log.Info("blocking complete",
		zap.Int("records", report.Records),
		zap.Int("unmatchable", len(report.Unmatchable)),
		zap.Int("blocks", report.Blocks),
		zap.Int("oversize_blocks", len(report.OversizeBlocks)),
		zap.Int("pairs", report.Pairs),
	)
	return out, report
}

// sortedNeighborhood sorts ids by canonical name and pairs each record with
// the next Window-1 records.
func (b *Blocker) sortedNeighborhood(ids []string, byID map[string]model.NormalizedKey, add func(x, y, strategy string)) {
	sorted := append([]string(nil), ids...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ni, nj := byID[sorted[i]].Name.Canonical, byID[sorted[j]].Name.Canonical
		if ni != nj {
			return ni < nj
		}
		return sorted[i] < sorted[j]
	})
	for i := range sorted {
		for j := i + 1; j < len(sorted) && j < i+b.cfg.Window; j++ {
			add(sorted[i], sorted[j], StrategySortedNeighborhood)
		}
	}
}

func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
