package pipeline

import (
	"context"

	"github.com/sells-group/entity-xref/internal/artifact"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/xref"
)

// Crossref reads the canonical map and writes xrefs.json.
func (p *Pipeline) Crossref(ctx context.Context) ([]model.CrossReference, error) {
	r := p.begin(ctx, model.StageCrossref, true)
	out, err := p.crossref(ctx, r)
	return out, r.finish(err)
}

func (p *Pipeline) crossref(_ context.Context, r *run) ([]model.CrossReference, error) {
	var out []model.CrossReference
	err := r.stage(model.StageCrossref, func() (map[string]int64, error) {
		var cm model.CanonicalMap
		if _, err := p.artifacts.Read(artifact.CanonicalFile, &cm); err != nil {
			return nil, err
		}
		xrefs, err := xref.Build(cm, xref.Options{
			MinDatasets: p.cfg.Xref.MinDatasets,
			Datasets:    p.cfg.Xref.Datasets,
		})
		if err != nil {
			return nil, err
		}

		// Keep prior tiers so the next scoring pass logs real transitions.
		prev, err := p.readXrefs(true)
		if err != nil {
			return nil, err
		}
		carried := 0
		for i := range xrefs {
			if old, ok := prev[xrefs[i].ID]; ok && old.Confidence != nil {
				c := *old.Confidence
				xrefs[i].Confidence = &c
				carried++
			}
		}

		if err := p.artifacts.Write(artifact.XrefsFile, r.id, xrefs); err != nil {
			return nil, err
		}
		p.metrics.SetXrefs(len(xrefs))
		out = xrefs
		return map[string]int64{
			"entities":     int64(len(cm.Entities)),
			"xrefs":        int64(len(xrefs)),
			"min_datasets": int64(p.cfg.Xref.MinDatasets),
			"carried_tier": int64(carried),
		}, nil
	})
	return out, err
}

// readXrefs indexes xrefs.json by id. When optional is set a missing file
// yields an empty index.
func (p *Pipeline) readXrefs(optional bool) (map[string]model.CrossReference, error) {
	var xrefs []model.CrossReference
	if _, err := p.artifacts.Read(artifact.XrefsFile, &xrefs); err != nil {
		if optional && artifact.IsMissing(err) {
			return map[string]model.CrossReference{}, nil
		}
		return nil, err
	}
	out := make(map[string]model.CrossReference, len(xrefs))
	for _, x := range xrefs {
		out[x.ID] = x
	}
	return out, nil
}
