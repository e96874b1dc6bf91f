package pipeline

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/artifact"
	"github.com/sells-group/entity-xref/internal/block"
	"github.com/sells-group/entity-xref/internal/cluster"
	"github.com/sells-group/entity-xref/internal/match"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/normalize"
	"github.com/sells-group/entity-xref/internal/store"
)

// ResolveResult summarizes one resolve stage.
type ResolveResult struct {
	Records        int `json:"records"`
	Skipped        int `json:"skipped"`
	Pairs          int `json:"pairs"`
	Entities       int `json:"entities"`
	Merges         int `json:"merges"`
	Refused        int `json:"refused"`
	CandidateLinks int `json:"candidate_links"`
	Flagged        int `json:"flagged"`
}

// Resolve loads every manifest dataset and writes the canonical entity map,
// blocking report and skip log.
func (p *Pipeline) Resolve(ctx context.Context) (*ResolveResult, error) {
	r := p.begin(ctx, model.StageResolve, true)
	res, err := p.resolve(ctx, r)
	return res, r.finish(err)
}

func (p *Pipeline) resolve(ctx context.Context, r *run) (*ResolveResult, error) {
	out := &ResolveResult{}
	err := r.stage(model.StageResolve, func() (map[string]int64, error) {
		specs, err := p.manifest.Select(nil)
		if err != nil {
			return nil, err
		}
		loaded, err := p.loader.LoadAll(ctx, specs)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: load datasets")
		}

		keys, byID := normalize.Keys(loaded.Records)
		pairs, report := block.New(p.cfg.Blocking).Candidates(keys)

		// Blank names never enter clustering.
		skips := loaded.Skips
		unmatchable := make(map[string]bool, len(report.Unmatchable))
		for _, id := range report.Unmatchable {
			unmatchable[id] = true
			ds, row, _ := model.SplitRecordID(id)
			skips = append(skips, model.SkipEntry{DatasetID: ds, RowRef: row, Reason: model.SkipUnmatchable})
		}
		records := make([]model.Record, 0, len(loaded.Records))
		for _, rec := range loaded.Records {
			if !unmatchable[rec.ID()] {
				records = append(records, rec)
			}
		}

		scorer := match.NewScorer(p.cfg.Scoring, match.NewDenylist(p.cfg.Resolve.RegisteredAgentAddresses), byID)
		scores, err := scorer.ScoreAll(ctx, pairs, p.cfg.Resolve.Workers)
		if err != nil {
			return nil, err
		}
		p.observePairs(scores)

		clustered := cluster.New(p.cfg.Resolve, scorer.Lookup).Cluster(records, byID, scores)
		cm := model.CanonicalMap{
			Entities:       clustered.Entities,
			CandidateLinks: clustered.CandidateLinks,
			Records:        records,
		}

		if err := p.artifacts.Write(artifact.CanonicalFile, r.id, cm); err != nil {
			return nil, err
		}
		if err := p.artifacts.Write(artifact.BlockingReportFile, r.id, report); err != nil {
			return nil, err
		}
		if err := artifact.WriteJSONL(p.artifacts, artifact.SkipLogFile, skips); err != nil {
			return nil, err
		}

		p.recordLoad(r, loaded.RowCounts, records, skips)

		out.Records = len(records)
		out.Skipped = len(skips)
		out.Pairs = len(pairs)
		out.Entities = len(cm.Entities)
		out.Merges = clustered.Merges
		out.Refused = clustered.Refused
		out.CandidateLinks = len(cm.CandidateLinks)
		for _, e := range cm.Entities {
			if e.Flagged {
				out.Flagged++
			}
		}
		p.metrics.AddMerges(clustered.Merges, clustered.Refused)
		p.metrics.SetEntities(len(cm.Entities))

		return map[string]int64{
			"records":         int64(out.Records),
			"skipped":         int64(out.Skipped),
			"pairs":           int64(out.Pairs),
			"entities":        int64(out.Entities),
			"merges":          int64(out.Merges),
			"refused":         int64(out.Refused),
			"candidate_links": int64(out.CandidateLinks),
			"flagged":         int64(out.Flagged),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) observePairs(scores []model.MatchScore) {
	byOutcome := make(map[string]int)
	for _, ms := range scores {
		if ms.Disqualified {
			byOutcome["disqualified"]++
			continue
		}
		byOutcome[string(match.Band(ms.Score, p.cfg.Resolve))]++
	}
	for outcome, n := range byOutcome {
		p.metrics.AddPairs(outcome, n)
	}
}

// recordLoad writes skips and per-dataset snapshots to the ledger.
func (p *Pipeline) recordLoad(r *run, rowCounts map[string]int, records []model.Record, skips []model.SkipEntry) {
	if _, err := r.ledger.RecordSkips(r.ctx, r.id, skips); err != nil {
		r.log.Warn("pipeline: failed to record skips", zap.Error(err))
	}

	snaps := make(map[string]*store.DatasetSnapshot)
	snapshot := func(ds string) *store.DatasetSnapshot {
		s, ok := snaps[ds]
		if !ok {
			s = &store.DatasetSnapshot{DatasetID: ds, RunID: r.id, LoadedAt: p.now().UTC()}
			if spec, found := p.manifest.Spec(ds); found {
				s.Path = spec.Path
				s.SourceURL = spec.SourceURL
			}
			snaps[ds] = s
		}
		return s
	}
	for ds, n := range rowCounts {
		snapshot(ds).Rows = int64(n)
	}
	for _, rec := range records {
		s := snapshot(rec.DatasetID)
		s.Records++
		if s.SHA256 == "" {
			s.SHA256 = rec.Provenance.SHA256
		}
	}
	for _, sk := range skips {
		snapshot(sk.DatasetID).Skipped++
		p.metrics.IncSkipped(sk.DatasetID, sk.Reason)
	}

	out := make([]store.DatasetSnapshot, 0, len(snaps))
	for _, s := range snaps {
		p.metrics.AddLoaded(s.DatasetID, int(s.Records))
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DatasetID < out[j].DatasetID })
	if err := r.ledger.UpsertDatasets(r.ctx, out); err != nil {
		r.log.Warn("pipeline: failed to record dataset snapshots", zap.Error(err))
	}
}
