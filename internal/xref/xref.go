// Package xref links canonical entities to the datasets they appear in.
package xref

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/model"
)

// Options restricts cross-referencing.
type Options struct {
	// MinDatasets is the minimum number of distinct datasets an entity must
	// appear in. Values below 2 are rejected.
	MinDatasets int
	// Datasets, when non-empty, limits linkage to these dataset ids.
	Datasets []string
}

// ID derives the cross-reference id from its canonical entity id.
func ID(canonicalID string) string {
	return "xref-" + strings.TrimPrefix(canonicalID, "ent-")
}

// Build emits one CrossReference per canonical entity with members in at
// least MinDatasets datasets. Only records that the canonical map assigns
// to the entity are referenced.
func Build(cm model.CanonicalMap, opts Options) ([]model.CrossReference, error) {
	log := zap.L().With(zap.String("component", "crossref"))

	if opts.MinDatasets < 2 {
		return nil, eris.Errorf("xref: min_datasets must be >= 2, got %d", opts.MinDatasets)
	}
	var filter map[string]bool
	if len(opts.Datasets) > 0 {
		filter = make(map[string]bool, len(opts.Datasets))
		for _, ds := range opts.Datasets {
			filter[ds] = true
		}
	}

	records := cm.RecordIndex()
	owner := cm.MembershipIndex()

	var out []model.CrossReference
	for _, e := range cm.Entities {
		byDataset := make(map[string][]string)
		for _, m := range e.Members {
			rec, ok := records[m.RecordID]
			if !ok || owner[m.RecordID] != e.CanonicalID {
				log.Warn("xref: member not backed by canonical map, skipping",
					zap.String("canonical_id", e.CanonicalID), zap.String("record_id", m.RecordID))
				continue
			}
			if filter != nil && !filter[rec.DatasetID] {
				continue
			}
			byDataset[rec.DatasetID] = append(byDataset[rec.DatasetID], m.RecordID)
		}
		if len(byDataset) < opts.MinDatasets {
			continue
		}

		x := model.CrossReference{
			ID:            ID(e.CanonicalID),
			CanonicalID:   e.CanonicalID,
			CanonicalName: e.CanonicalName,
		}
		datasetIDs := make([]string, 0, len(byDataset))
		for ds := range byDataset {
			datasetIDs = append(datasetIDs, ds)
		}
		sort.Strings(datasetIDs)
		for _, ds := range datasetIDs {
			ids := byDataset[ds]
			sort.Strings(ids)
			x.Datasets = append(x.Datasets, model.DatasetRef{DatasetID: ds, RecordIDs: ids})
		}
		x.Quality = quality(e, x, records)
		out = append(out, x)
	}

	log.Info("cross-referencing complete",
		zap.Int("entities", len(cm.Entities)),
		zap.Int("xrefs", len(out)),
		zap.Int("min_datasets", opts.MinDatasets),
		zap.Strings("datasets", opts.Datasets),
	)
	return out, nil
}

func quality(e model.CanonicalEntity, x model.CrossReference, records map[string]model.Record) model.MatchQuality {
	included := make(map[string]bool)
	for _, id := range x.RecordIDs() {
		included[id] = true
	}

	q := model.MatchQuality{Conflicted: e.Flagged}

	// Independence is judged per dataset: a dataset's sources are the
	// lineage roots of its cited records.
	roots := make([][]string, 0, len(x.Datasets))
	datasetIndex := make(map[string]int, len(x.Datasets))
	for i, ds := range x.Datasets {
		datasetIndex[ds.DatasetID] = i
		var rs []string
		for _, id := range ds.RecordIDs {
			rec := records[id]
			rs = append(rs, rec.Provenance.LineageRoots()...)
			if rec.Provenance.Official {
				q.OfficialSource = true
			}
		}
		roots = append(roots, rs)
	}
	groups, independent := model.IndependentGroups(roots)
	q.IndependentSources = independent
	groupOf := func(recordID string) int {
		return groups[datasetIndex[records[recordID].DatasetID]]
	}

	agreed := make(map[string]bool)
	crossSource := make(map[string]bool)
	n := 0
	sum := 0.0
	for _, ps := range e.PairScores {
		if !included[ps.A] || !included[ps.B] {
			continue
		}
		if n == 0 || ps.Score < q.WeakestScore {
			q.WeakestScore = ps.Score
		}
		sum += ps.Score
		n++
		if len(ps.HardIDAgreement) == 0 {
			continue
		}
		q.HardIDAgreements++
		cross := groupOf(ps.A) != groupOf(ps.B)
		for _, k := range ps.HardIDAgreement {
			agreed[k] = true
			if cross {
				crossSource[k] = true
			}
		}
	}
	if n > 0 {
		q.MeanScore = sum / float64(n)
	}
	q.AgreedKinds = sortedKeys(agreed)
	q.CrossSourceKinds = sortedKeys(crossSource)
	return q
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
