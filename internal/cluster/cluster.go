// Package cluster turns scored record pairs into canonical entities. Unions
// are gated: a merge is accepted only when the records on both sides score
// directly against each other, never through an intermediate record alone.
package cluster

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/match"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/normalize"
)

// Gate policies.
const (
	GateAll            = "all"
	GateRepresentative = "representative"
)

// Candidate link reasons.
const (
	ReasonWideNet     = "wide_net"
	ReasonGateRefused = "gate_refused"
)

// ScoreLookup scores two records by id on demand; ok is false when either
// record is unknown.
type ScoreLookup func(a, b string) (model.MatchScore, bool)

// Result is the outcome of one clustering run.
type Result struct {
	Entities       []model.CanonicalEntity
	CandidateLinks []model.CandidateLink
	Merges         int
	Refused        int
}

// Clusterer builds canonical entities.
type Clusterer struct {
	cfg    config.ResolveConfig
	lookup ScoreLookup
}

// New creates a Clusterer. lookup supplies direct scores for member pairs
// the blocker never proposed; it may be nil, in which case such pairs fail
// the gate.
func New(cfg config.ResolveConfig, lookup ScoreLookup) *Clusterer {
	if cfg.GatePolicy == "" {
		cfg.GatePolicy = GateAll
	}
	return &Clusterer{cfg: cfg, lookup: lookup}
}

type run struct {
	c       *Clusterer
	ids     []string
	index   map[string]int
	keys    map[string]model.NormalizedKey
	records map[string]model.Record
	scores  map[model.CandidatePair]model.MatchScore
	arena   *arena
}

// Cluster unions records connected by accepted scores. Scores are consumed
// by a single writer in a fixed order (score descending, then pair ids), so
// the result does not depend on input order. Every record ends up in exactly
// one entity; unmatched records are singletons.
func (c *Clusterer) Cluster(records []model.Record, keys map[string]model.NormalizedKey, scores []model.MatchScore) Result {
	log := zap.L().With(zap.String("component", "clusterer"))

	r := &run{
		c:       c,
		index:   make(map[string]int, len(records)),
		keys:    keys,
		records: make(map[string]model.Record, len(records)),
		scores:  make(map[model.CandidatePair]model.MatchScore, len(scores)),
	}
	for _, rec := range records {
		r.records[rec.ID()] = rec
	}
	for id := range r.records {
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)
	for i, id := range r.ids {
		r.index[id] = i
	}
	r.arena = newArena(len(r.ids))

	var edges []model.MatchScore
	for _, ms := range scores {
		r.scores[ms.Pair] = ms
		if ms.Disqualified || ms.Score < c.cfg.DiscardThreshold {
			continue
		}
		if _, ok := r.index[ms.Pair.A]; !ok {
			continue
		}
		if _, ok := r.index[ms.Pair.B]; !ok {
			continue
		}
		edges = append(edges, ms)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Score != edges[j].Score {
			return edges[i].Score > edges[j].Score
		}
		if edges[i].Pair.A != edges[j].Pair.A {
			return edges[i].Pair.A < edges[j].Pair.A
		}
		return edges[i].Pair.B < edges[j].Pair.B
	})

	var res Result
	refused := make(map[model.CandidatePair]bool)
	for _, e := range edges {
		if e.Score < c.cfg.MergeThreshold {
			continue
		}
		ra, rb := r.arena.find(r.index[e.Pair.A]), r.arena.find(r.index[e.Pair.B])
		if ra == rb {
			continue
		}
		if reason := r.gate(ra, rb, e); reason != "" {
			refused[e.Pair] = true
			res.Refused++
			log.Debug("cluster: union refused",
				zap.String("a", e.Pair.A), zap.String("b", e.Pair.B),
				zap.Float64("score", e.Score), zap.String("reason", reason))
			continue
		}
		r.arena.union(ra, rb)
		res.Merges++
	}

	res.Entities = r.entities()
	res.CandidateLinks = r.candidateLinks(edges, refused, res.Entities)

	flagged := 0
	for _, e := range res.Entities {
		if e.Flagged {
			flagged++
			log.Warn("cluster: conflicting hard identifiers",
				zap.String("canonical_id", e.CanonicalID),
				zap.String("canonical_name", e.CanonicalName),
				zap.Int("conflicts", len(e.Conflicts)))
		}
	}
	log.Info("clustering complete",
		zap.Int("records", len(r.ids)),
		zap.Int("entities", len(res.Entities)),
		zap.Int("merges", res.Merges),
		zap.Int("refused", res.Refused),
		zap.Int("flagged", flagged),
		zap.Int("candidate_links", len(res.CandidateLinks)),
	)
	return res
}

// gate returns a non-empty reason when the clusters rooted at ra and rb
// must not merge.
func (r *run) gate(ra, rb int, edge model.MatchScore) string {
	left, right := r.arena.members[ra], r.arena.members[rb]

	// Hard identifiers are checked across every member pair regardless of
	// policy.
	for _, i := range left {
		for _, j := range right {
			if kind := hardConflict(r.keys[r.ids[i]], r.keys[r.ids[j]]); kind != "" {
				return "conflicting " + kind
			}
		}
	}

	switch r.c.cfg.GatePolicy {
	case GateRepresentative:
		// The edge endpoints must each clear the gate against the other
		// cluster's representative (its lowest record id).
		a, b := r.index[edge.Pair.A], r.index[edge.Pair.B]
		if r.arena.find(a) != ra {
			a, b = b, a
		}
		if reason := r.direct(a, right[0]); reason != "" {
			return reason
		}
		return r.direct(left[0], b)
	default:
		for _, i := range left {
			for _, j := range right {
				if reason := r.direct(i, j); reason != "" {
					return reason
				}
			}
		}
		return ""
	}
}

// direct checks the direct score of two records against the merge gate.
func (r *run) direct(i, j int) string {
	ms, ok := r.score(r.ids[i], r.ids[j])
	if !ok {
		return fmt.Sprintf("no direct score %s / %s", r.ids[i], r.ids[j])
	}
	if ms.Disqualified {
		return fmt.Sprintf("%s / %s disqualified: %s", r.ids[i], r.ids[j], ms.DisqualifiedBy)
	}
	if ms.Score < r.c.cfg.MergeThreshold {
		return fmt.Sprintf("%s / %s direct score %.2f below gate", r.ids[i], r.ids[j], ms.Score)
	}
	return ""
}

// score returns the known score of a pair, computing and caching it on
// demand.
func (r *run) score(a, b string) (model.MatchScore, bool) {
	if a == b {
		return model.MatchScore{Pair: model.NewCandidatePair(a, b), Score: 1}, true
	}
	p := model.NewCandidatePair(a, b)
	if ms, ok := r.scores[p]; ok {
		return ms, true
	}
	if r.c.lookup == nil {
		return model.MatchScore{}, false
	}
	ms, ok := r.c.lookup(a, b)
	if ok {
		r.scores[p] = ms
	}
	return ms, ok
}

func hardConflict(a, b model.NormalizedKey) string {
	ia, ib := a.IdentifierSet(), b.IdentifierSet()
	kinds := make([]string, 0, len(ia))
	for kind := range ia {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if !normalize.IsHardKind(kind) || len(ib[kind]) == 0 {
			continue
		}
		shared := false
		for v := range ia[kind] {
			if ib[kind][v] {
				shared = true
				break
			}
		}
		if !shared {
			return kind
		}
	}
	return ""
}

// CanonicalID derives the stable entity id from the entity's lowest record id.
func CanonicalID(lowestRecordID string) string {
	sum := sha256.Sum256([]byte(lowestRecordID))
	return "ent-" + hex.EncodeToString(sum[:])[:12]
}

func (r *run) entities() []model.CanonicalEntity {
	roots := r.arena.roots()
	out := make([]model.CanonicalEntity, 0, len(roots))
	for _, root := range roots {
		out = append(out, r.entity(r.arena.members[root]))
	}
	// roots ascend, so entities are ordered by lowest member id.
	return out
}

func (r *run) entity(members []int) model.CanonicalEntity {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = r.ids[m]
	}

	e := model.CanonicalEntity{CanonicalID: CanonicalID(ids[0])}

	named := r.pickName(ids)
	e.CanonicalName = r.records[named].Name
	e.NormalizedName = r.keys[named].Name.Canonical
	e.EntityType = r.entityType(named, ids)

	best := make(map[string]float64, len(ids))
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			ms, ok := r.score(ids[i], ids[j])
			if !ok {
				continue
			}
			field, mt := match.Classify(ms)
			e.PairScores = append(e.PairScores, model.PairScore{
				A: ms.Pair.A, B: ms.Pair.B, Score: ms.Score,
				HardIDAgreement: ms.HardIDAgreement, LinkField: field, MatchType: mt,
			})
			best[ids[i]] = max(best[ids[i]], ms.Score)
			best[ids[j]] = max(best[ids[j]], ms.Score)
		}
	}

	for _, id := range ids {
		sim := 1.0
		if len(ids) > 1 {
			sim = best[id]
		}
		e.Members = append(e.Members, model.MemberRecord{
			RecordID: id, DatasetID: r.records[id].DatasetID, Name: r.records[id].Name, Similarity: sim,
		})
	}

	e.Identifiers, e.Conflicts = r.aggregateIdentifiers(ids)
	e.Flagged = len(e.Conflicts) > 0
	e.ConfidenceBasis = basis(e)
	return e
}

// pickName chooses the member whose name becomes canonical: most reliable
// source, then earliest collection, then lexicographic name, then id.
func (r *run) pickName(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := r.records[sorted[i]], r.records[sorted[j]]
		ra, rb := model.ReliabilityRank(a.Provenance.Reliability), model.ReliabilityRank(b.Provenance.Reliability)
		if ra != rb {
			return ra < rb
		}
		ta, tb := a.Provenance.AccessedAt, b.Provenance.AccessedAt
		switch {
		case ta != nil && tb == nil:
			return true
		case ta == nil && tb != nil:
			return false
		case ta != nil && tb != nil && !ta.Equal(*tb):
			return ta.Before(*tb)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return sorted[i] < sorted[j]
	})
	return sorted[0]
}

func (r *run) entityType(named string, ids []string) model.EntityType {
	if t := r.keys[named].Name.EntityType; t == model.EntityPerson || t == model.EntityOrganization {
		return t
	}
	for _, id := range ids {
		if t := r.keys[id].Name.EntityType; t == model.EntityPerson || t == model.EntityOrganization {
			return t
		}
	}
	return model.EntityUnknown
}

func (r *run) aggregateIdentifiers(ids []string) (map[string][]string, []model.IdentifierConflict) {
	sources := make(map[string]map[string][]string) // kind -> value -> record ids
	for _, id := range ids {
		for _, ident := range r.keys[id].Identifiers {
			if sources[ident.Kind] == nil {
				sources[ident.Kind] = make(map[string][]string)
			}
			sources[ident.Kind][ident.Value] = append(sources[ident.Kind][ident.Value], id)
		}
	}
	if len(sources) == 0 {
		return nil, nil
	}

	kinds := make([]string, 0, len(sources))
	for kind := range sources {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	idents := make(map[string][]string, len(sources))
	var conflicts []model.IdentifierConflict
	for _, kind := range kinds {
		values := make([]string, 0, len(sources[kind]))
		for v := range sources[kind] {
			values = append(values, v)
		}
		sort.Strings(values)
		idents[kind] = values
		if normalize.IsHardKind(kind) && len(values) > 1 {
			conflicts = append(conflicts, model.IdentifierConflict{Kind: kind, Values: values, Sources: sources[kind]})
		}
	}
	return idents, conflicts
}

func basis(e model.CanonicalEntity) string {
	if len(e.Members) == 1 {
		return "singleton"
	}
	weakest := 1.0
	agreed := make(map[string]bool)
	for _, ps := range e.PairScores {
		weakest = min(weakest, ps.Score)
		for _, k := range ps.HardIDAgreement {
			agreed[k] = true
		}
	}
	parts := []string{fmt.Sprintf("%d members", len(e.Members)), fmt.Sprintf("weakest direct score %.2f", weakest)}
	if len(agreed) > 0 {
		kinds := make([]string, 0, len(agreed))
		for k := range agreed {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts = append(parts, "hard-id agreement on "+strings.Join(kinds, ","))
	}
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("FLAGGED: %d distinct %s values", len(c.Values), c.Kind))
	}
	return strings.Join(parts, "; ")
}

// candidateLinks records wide-net and gate-refused edges that ended up
// between two different entities, keeping the best edge per entity pair.
func (r *run) candidateLinks(edges []model.MatchScore, refused map[model.CandidatePair]bool, entities []model.CanonicalEntity) []model.CandidateLink {
	owner := make(map[string]string, len(r.ids))
	for _, e := range entities {
		for _, m := range e.Members {
			owner[m.RecordID] = e.CanonicalID
		}
	}

	best := make(map[[2]string]model.CandidateLink)
	var order [][2]string
	for _, e := range edges {
		from, to := owner[e.Pair.A], owner[e.Pair.B]
		if from == to {
			continue
		}
		reason := ReasonWideNet
		if refused[e.Pair] {
			reason = ReasonGateRefused
		}
		k := [2]string{from, to}
		if to < from {
			k = [2]string{to, from}
		}
		if _, ok := best[k]; ok {
			continue // edges arrive best first
		}
		best[k] = model.CandidateLink{
			FromEntity: from, ToEntity: to, FromRecord: e.Pair.A, ToRecord: e.Pair.B, Score: e.Score, Reason: reason,
		}
		order = append(order, k)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i][0] != order[j][0] {
			return order[i][0] < order[j][0]
		}
		return order[i][1] < order[j][1]
	})
	out := make([]model.CandidateLink, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}
