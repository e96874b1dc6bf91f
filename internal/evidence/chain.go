// Package evidence builds evidence chains for cross-references and custom
// claims, grades their corroboration, and validates persisted chains
// against the raw datasets.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/match"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/normalize"
)

// ScoreLookup scores two records by id on demand.
type ScoreLookup func(a, b string) (model.MatchScore, bool)

// RowCounter reports the current number of rows in a dataset.
type RowCounter interface {
	RowCount(datasetID string) (int, error)
}

// Builder assembles evidence chains from a canonical map.
type Builder struct {
	records  map[string]model.Record
	entities map[string]model.CanonicalEntity
	owner    map[string]string
	lookup   ScoreLookup
	counter  RowCounter
}

// NewBuilder creates a Builder. lookup scores record pairs that have no
// stored pair score; counter supplies dataset row counts. Either may be nil.
func NewBuilder(cm model.CanonicalMap, lookup ScoreLookup, counter RowCounter) *Builder {
	return &Builder{
		records:  cm.RecordIndex(),
		entities: cm.EntityIndex(),
		owner:    cm.MembershipIndex(),
		lookup:   lookup,
		counter:  counter,
	}
}

// ChainID derives a stable chain id from its claim and cited records.
func ChainID(claim string, recordIDs []string) string {
	sum := sha256.Sum256([]byte(claim + "\x00" + strings.Join(recordIDs, ",")))
	return "chain-" + hex.EncodeToString(sum[:])[:12]
}

// ForXref builds the chain supporting one cross-reference. Records are
// ordered most reliable source first, then by dataset and id, and each hop
// links consecutive records.
func (b *Builder) ForXref(x model.CrossReference) (model.EvidenceChain, error) {
	ids := x.RecordIDs()
	for _, id := range ids {
		if _, ok := b.records[id]; !ok {
			return model.EvidenceChain{}, eris.Errorf("evidence: xref %s cites unknown record %s", x.ID, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		a, c := b.records[ids[i]], b.records[ids[j]]
		ra, rc := model.ReliabilityRank(a.Provenance.Reliability), model.ReliabilityRank(c.Provenance.Reliability)
		if ra != rc {
			return ra < rc
		}
		if a.DatasetID != c.DatasetID {
			return a.DatasetID < c.DatasetID
		}
		return ids[i] < ids[j]
	})

	claim := fmt.Sprintf("%q is the same entity across datasets %s", x.CanonicalName, strings.Join(x.DatasetIDs(), ", "))
	chain, err := b.build(claim, ids)
	if err != nil {
		return model.EvidenceChain{}, err
	}
	chain.ID = "chain-" + strings.TrimPrefix(x.ID, "xref-")
	chain.XrefID = x.ID
	chain.CanonicalID = x.CanonicalID
	if e, ok := b.entities[x.CanonicalID]; ok && e.Flagged && len(chain.Hops) > 0 {
		chain.CorroborationStatus = model.CorroborationContradicted
	}
	logChain(chain)
	return chain, nil
}

// ForClaim builds a chain for a free-text claim over the given records, in
// the given order.
func (b *Builder) ForClaim(claim string, recordIDs []string) (model.EvidenceChain, error) {
	if strings.TrimSpace(claim) == "" {
		return model.EvidenceChain{}, eris.New("evidence: claim text is required")
	}
	if len(recordIDs) == 0 {
		return model.EvidenceChain{}, eris.New("evidence: a claim must cite at least one record")
	}
	for _, id := range recordIDs {
		if _, ok := b.records[id]; !ok {
			return model.EvidenceChain{}, eris.Errorf("evidence: claim cites unknown record %s", id)
		}
	}
	chain, err := b.build(claim, recordIDs)
	if err != nil {
		return model.EvidenceChain{}, err
	}
	chain.ID = ChainID(claim, recordIDs)
	if ent := b.owner[recordIDs[0]]; ent != "" {
		same := true
		for _, id := range recordIDs[1:] {
			same = same && b.owner[id] == ent
		}
		if same {
			chain.CanonicalID = ent
		}
	}
	logChain(chain)
	return chain, nil
}

func (b *Builder) build(claim string, ids []string) (model.EvidenceChain, error) {
	anchor := b.records[ids[0]]
	chain := model.EvidenceChain{
		Claim:         claim,
		AnchorRecord:  ids[0],
		AnchorLineage: anchor.Provenance.LineageRoots(),
		Hops:          []model.Hop{},
	}

	for i := 1; i < len(ids); i++ {
		from, to := ids[i-1], ids[i]
		hop := model.Hop{FromRecord: from, ToRecord: to, SourceLineage: b.records[to].Provenance.LineageRoots()}
		if ps, ok := b.pairScore(from, to); ok {
			hop.MatchScore = ps.Score
			hop.LinkField = ps.LinkField
			hop.MatchType = ps.MatchType
		} else {
			hop.LinkField = "name"
			hop.MatchType = model.MatchTypeFuzzy
		}
		hop.CitedFields = CitedFields(b.records[to], hop.LinkField)
		chain.Hops = append(chain.Hops, hop)
	}

	anchorField := "name"
	if len(chain.Hops) > 0 {
		anchorField = chain.Hops[0].LinkField
	}
	chain.AnchorFields = CitedFields(anchor, anchorField)

	chain.LinkStrength = LinkStrength(chain.Hops)
	grade(&chain, b.records)

	if b.counter != nil {
		chain.DatasetRowCounts = make(map[string]int)
		for _, id := range chain.CitedRecords() {
			ds := b.records[id].DatasetID
			if _, done := chain.DatasetRowCounts[ds]; done {
				continue
			}
			n, err := b.counter.RowCount(ds)
			if err != nil {
				return model.EvidenceChain{}, eris.Wrapf(err, "evidence: count rows of %s", ds)
			}
			chain.DatasetRowCounts[ds] = n
		}
	}
	return chain, nil
}

// pairScore finds the stored score of two records in their shared entity,
// falling back to the lookup.
func (b *Builder) pairScore(from, to string) (model.PairScore, bool) {
	if ent := b.owner[from]; ent != "" && ent == b.owner[to] {
		if ps, ok := b.entities[ent].PairScore(from, to); ok {
			return ps, true
		}
	}
	if b.lookup == nil {
		return model.PairScore{}, false
	}
	ms, ok := b.lookup(from, to)
	if !ok {
		return model.PairScore{}, false
	}
	field, mt := match.Classify(ms)
	score := ms.Score
	if ms.Disqualified {
		score = 0
	}
	return model.PairScore{A: ms.Pair.A, B: ms.Pair.B, Score: score, HardIDAgreement: ms.HardIDAgreement, LinkField: field, MatchType: mt}, true
}

// LinkStrength is the weakest hop score; a chain without hops has none.
func LinkStrength(hops []model.Hop) float64 {
	if len(hops) == 0 {
		return 0
	}
	strength := hops[0].MatchScore
	for _, h := range hops[1:] {
		strength = min(strength, h.MatchScore)
	}
	return strength
}

// CitedFields snapshots the values a hop relies on: the record name plus the
// link field.
func CitedFields(rec model.Record, linkField string) map[string]string {
	out := map[string]string{"name": rec.Name}
	if linkField != "" && linkField != "name" {
		out[linkField] = FieldValue(rec, linkField)
	}
	return out
}

// FieldValue reads a cited field from a record: name, address, state, an
// identifier kind (values joined by ","), or a raw column.
func FieldValue(rec model.Record, field string) string {
	switch field {
	case "name":
		return rec.Name
	case "address":
		return rec.Address
	case "state":
		return rec.State
	}
	if normalize.IsHardKind(field) || normalize.IsContactKind(field) {
		return strings.Join(rec.IdentifierValues(field), ",")
	}
	return rec.Fields[field]
}

func logChain(c model.EvidenceChain) {
	zap.L().Debug("evidence: chain graded",
		zap.String("chain_id", c.ID),
		zap.Int("hops", len(c.Hops)),
		zap.Float64("link_strength", c.LinkStrength),
		zap.String("status", string(c.CorroborationStatus)),
		zap.Int("independent_sources", c.IndependentSources),
	)
}
