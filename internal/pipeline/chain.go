package pipeline

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/artifact"
	"github.com/sells-group/entity-xref/internal/dataset"
	"github.com/sells-group/entity-xref/internal/evidence"
	"github.com/sells-group/entity-xref/internal/match"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/normalize"
)

// Claim is a caller-supplied claim over explicit records.
type Claim struct {
	Text    string   `json:"text"`
	Records []string `json:"records"`
}

// BuildChains writes chains.json: one chain per cross-reference plus every
// custom claim, including custom claims from earlier builds.
func (p *Pipeline) BuildChains(ctx context.Context, claims []Claim) ([]model.EvidenceChain, error) {
	r := p.begin(ctx, model.StageChain, true)
	out, err := p.buildChains(ctx, r, claims)
	return out, r.finish(err)
}

func (p *Pipeline) buildChains(ctx context.Context, r *run, claims []Claim) ([]model.EvidenceChain, error) {
	var out []model.EvidenceChain
	err := r.stage(model.StageChain, func() (map[string]int64, error) {
		var cm model.CanonicalMap
		if _, err := p.artifacts.Read(artifact.CanonicalFile, &cm); err != nil {
			return nil, err
		}
		var xrefs []model.CrossReference
		if _, err := p.artifacts.Read(artifact.XrefsFile, &xrefs); err != nil {
			return nil, err
		}
		prev, err := p.readChains(true)
		if err != nil {
			return nil, err
		}

		builder := evidence.NewBuilder(cm, p.lookup(cm), dataset.NewSource(ctx, p.manifest, p.loader))
		byID := make(map[string]model.EvidenceChain)

		for _, x := range xrefs {
			c, err := builder.ForXref(x)
			if err != nil {
				return nil, eris.Wrapf(err, "pipeline: chain for %s", x.ID)
			}
			byID[c.ID] = c
		}

		dropped := 0
		for _, old := range prev {
			if old.XrefID != "" {
				continue
			}
			c, err := builder.ForClaim(old.Claim, old.CitedRecords())
			if err != nil {
				r.log.Warn("pipeline: dropping custom chain", zap.String("chain_id", old.ID), zap.Error(err))
				dropped++
				continue
			}
			byID[c.ID] = c
		}
		for _, cl := range claims {
			c, err := builder.ForClaim(cl.Text, cl.Records)
			if err != nil {
				return nil, err
			}
			byID[c.ID] = c
		}

		chains := make([]model.EvidenceChain, 0, len(byID))
		status := make(map[string]int)
		for _, c := range byID {
			if old, ok := prev[c.ID]; ok && old.Confidence != nil {
				conf := *old.Confidence
				c.Confidence = &conf
			}
			status[string(c.CorroborationStatus)]++
			chains = append(chains, c)
		}
		sort.Slice(chains, func(i, j int) bool { return chains[i].ID < chains[j].ID })

		if err := p.artifacts.Write(artifact.ChainsFile, r.id, chains); err != nil {
			return nil, err
		}
		p.metrics.SetChains(status)
		out = chains
		return map[string]int64{
			"chains":       int64(len(chains)),
			"custom":       int64(len(claims)),
			"dropped":      int64(dropped),
			"corroborated": int64(status[string(model.CorroborationCorroborated)]),
			"contradicted": int64(status[string(model.CorroborationContradicted)]),
		}, nil
	})
	return out, err
}

// ValidateChains re-reads the raw datasets behind persisted chains. An empty
// chainID validates every chain.
func (p *Pipeline) ValidateChains(ctx context.Context, chainID string) ([]evidence.Report, error) {
	r := p.begin(ctx, "chain-validate", true)
	var reports []evidence.Report
	err := r.stage(model.StageChain, func() (map[string]int64, error) {
		chains, err := p.chainList()
		if err != nil {
			return nil, err
		}
		if chainID != "" {
			var picked []model.EvidenceChain
			for _, c := range chains {
				if c.ID == chainID {
					picked = append(picked, c)
				}
			}
			if len(picked) == 0 {
				return nil, eris.Errorf("pipeline: chain %s not found in %s", chainID, p.artifacts.Path(artifact.ChainsFile))
			}
			chains = picked
		}

		reports = evidence.ValidateAll(chains, dataset.NewSource(ctx, p.manifest, p.loader))
		invalid, issues := 0, 0
		for _, rep := range reports {
			if !rep.Valid {
				invalid++
			}
			issues += len(rep.Issues)
		}
		return map[string]int64{
			"chains":  int64(len(reports)),
			"invalid": int64(invalid),
			"issues":  int64(issues),
		}, nil
	})
	return reports, r.finish(err)
}

// lookup scores any two canonical-map records on demand.
func (p *Pipeline) lookup(cm model.CanonicalMap) evidence.ScoreLookup {
	_, byID := normalize.Keys(cm.Records)
	scorer := match.NewScorer(p.cfg.Scoring, match.NewDenylist(p.cfg.Resolve.RegisteredAgentAddresses), byID)
	return scorer.Lookup
}

func (p *Pipeline) chainList() ([]model.EvidenceChain, error) {
	var chains []model.EvidenceChain
	_, err := p.artifacts.Read(artifact.ChainsFile, &chains)
	return chains, err
}

// readChains indexes chains.json by id. When optional is set a missing file
// yields an empty index.
func (p *Pipeline) readChains(optional bool) (map[string]model.EvidenceChain, error) {
	chains, err := p.chainList()
	if err != nil {
		if optional && artifact.IsMissing(err) {
			return map[string]model.EvidenceChain{}, nil
		}
		return nil, err
	}
	out := make(map[string]model.EvidenceChain, len(chains))
	for _, c := range chains {
		out[c.ID] = c
	}
	return out, nil
}
