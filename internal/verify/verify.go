// Package verify re-checks persisted artifacts in a pass that shares no
// state with the stages that produced them. Inputs are the artifact files
// and the raw datasets only.
package verify

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/artifact"
	"github.com/sells-group/entity-xref/internal/confidence"
	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/dataset"
	"github.com/sells-group/entity-xref/internal/evidence"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/store"
	"github.com/sells-group/entity-xref/internal/xref"
)

// Check names.
const (
	CheckXrefCoverage  = "xref_coverage"
	CheckChainSources  = "chain_sources"
	CheckChainStrength = "chain_link_strength"
	CheckConfidence    = "confidence_agreement"
)

const strengthTolerance = 1e-9

// Check is the outcome of one verification check.
type Check struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Checked  int      `json:"checked"`
	Skipped  string   `json:"skipped,omitempty"`
	Failures []string `json:"failures"`
}

func (c *Check) fail(format string, args ...any) {
	c.Failures = append(c.Failures, fmt.Sprintf(format, args...))
}

// Report is written to verify_report.json.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Passed      bool      `json:"passed"`
	Checks      []Check   `json:"checks"`
}

// Failed returns the checks that did not pass.
func (r *Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Verifier runs the verification pass for one workspace.
type Verifier struct {
	cfg       *config.Config
	store     store.Store
	artifacts *artifact.Dir
	manifest  *dataset.Manifest
	loader    *dataset.Loader
	now       func() time.Time
}

// New creates a Verifier. A nil store records nothing.
func New(cfg *config.Config, st store.Store, manifest *dataset.Manifest) *Verifier {
	if st == nil {
		st = store.Nop{}
	}
	return &Verifier{
		cfg:       cfg,
		store:     st,
		artifacts: artifact.NewDir(cfg.Workspace.ArtifactsPath()),
		manifest:  manifest,
		loader:    &dataset.Loader{NameColumns: cfg.Resolve.NameColumns},
		now:       time.Now,
	}
}

// Run executes every check and writes verify_report.json. A failed check is
// reported, not returned: the error is reserved for unreadable artifacts.
func (v *Verifier) Run(ctx context.Context) (*Report, error) {
	log := zap.L().With(zap.String("component", "verify"))

	ledger := v.store
	run, err := ledger.CreateRun(ctx, v.cfg.Workspace.Dir, model.StageVerify)
	if err != nil {
		log.Warn("verify: failed to create run", zap.Error(err))
		ledger = store.Nop{}
		run, _ = ledger.CreateRun(ctx, v.cfg.Workspace.Dir, model.StageVerify)
	}
	stage, err := ledger.CreateStage(ctx, run.ID, model.StageVerify)
	if err != nil {
		log.Warn("verify: failed to create stage", zap.Error(err))
	}

	report, err := v.verify(ctx, run.ID)

	status, errMsg := model.RunStatusComplete, ""
	counts := map[string]int64{}
	if err != nil {
		status, errMsg = model.RunStatusFailed, err.Error()
	} else {
		counts["checks"] = int64(len(report.Checks))
		counts["failed"] = int64(len(report.Failed()))
	}
	if stage != nil {
		if cerr := ledger.CompleteStage(ctx, stage.ID, status, counts, errMsg); cerr != nil {
			log.Warn("verify: failed to complete stage", zap.Error(cerr))
		}
	}
	if ferr := ledger.FinishRun(ctx, run.ID, status, errMsg); ferr != nil {
		log.Warn("verify: failed to finish run", zap.Error(ferr))
	}
	if err != nil {
		return nil, err
	}

	for _, c := range report.Checks {
		if c.Passed {
			log.Info("verify: check passed", zap.String("check", c.Name), zap.Int("checked", c.Checked))
			continue
		}
		log.Warn("verify: check failed", zap.String("check", c.Name), zap.Int("failures", len(c.Failures)))
	}
	return report, nil
}

func (v *Verifier) verify(ctx context.Context, runID string) (*Report, error) {
	var cm model.CanonicalMap
	if _, err := v.artifacts.Read(artifact.CanonicalFile, &cm); err != nil {
		return nil, err
	}
	var xrefs []model.CrossReference
	if _, err := v.artifacts.Read(artifact.XrefsFile, &xrefs); err != nil {
		return nil, err
	}
	var chains []model.EvidenceChain
	haveChains := true
	if _, err := v.artifacts.Read(artifact.ChainsFile, &chains); err != nil {
		if !artifact.IsMissing(err) {
			return nil, err
		}
		haveChains = false
	}

	report := &Report{RunID: runID, GeneratedAt: v.now().UTC()}
	report.Checks = append(report.Checks, Coverage(cm, xrefs, v.cfg.Xref))

	if haveChains {
		src := dataset.NewSource(ctx, v.manifest, v.loader)
		report.Checks = append(report.Checks, ChainSources(chains, src), ChainStrength(cm, xrefs, chains))
	} else {
		for _, name := range []string{CheckChainSources, CheckChainStrength} {
			report.Checks = append(report.Checks, Check{Name: name, Passed: true, Skipped: "no chains built", Failures: []string{}})
		}
	}
	report.Checks = append(report.Checks, Agreement(confidence.New(v.cfg.Resolve), xrefs, chains))

	report.Passed = len(report.Failed()) == 0
	if err := v.artifacts.Write(artifact.VerifyReportFile, runID, report); err != nil {
		return nil, eris.Wrap(err, "verify: write report")
	}
	return report, nil
}

// Coverage checks every cross-reference against the canonical map: the
// entity exists, every cited record is one of its members, the dataset
// count meets the minimum and no entity is referenced twice.
func Coverage(cm model.CanonicalMap, xrefs []model.CrossReference, cfg config.XrefConfig) Check {
	c := Check{Name: CheckXrefCoverage, Failures: []string{}}
	entities := cm.EntityIndex()
	owner := cm.MembershipIndex()
	records := cm.RecordIndex()
	var filter map[string]bool
	if len(cfg.Datasets) > 0 {
		filter = make(map[string]bool, len(cfg.Datasets))
		for _, ds := range cfg.Datasets {
			filter[ds] = true
		}
	}

	seen := make(map[string]string, len(xrefs))
	for _, x := range xrefs {
		c.Checked++
		if _, ok := entities[x.CanonicalID]; !ok {
			c.fail("%s: canonical entity %s not in canonical map", x.ID, x.CanonicalID)
			continue
		}
		if want := xref.ID(x.CanonicalID); x.ID != want {
			c.fail("%s: id does not match canonical entity (want %s)", x.ID, want)
		}
		if prev, dup := seen[x.CanonicalID]; dup {
			c.fail("%s: canonical entity %s already referenced by %s", x.ID, x.CanonicalID, prev)
		}
		seen[x.CanonicalID] = x.ID

		if len(x.Datasets) < cfg.MinDatasets {
			c.fail("%s: spans %d datasets, minimum is %d", x.ID, len(x.Datasets), cfg.MinDatasets)
		}
		for _, ref := range x.Datasets {
			if filter != nil && !filter[ref.DatasetID] {
				c.fail("%s: dataset %s is outside the configured filter", x.ID, ref.DatasetID)
			}
			for _, id := range ref.RecordIDs {
				rec, ok := records[id]
				switch {
				case !ok:
					c.fail("%s: record %s not in canonical map", x.ID, id)
				case owner[id] != x.CanonicalID:
					c.fail("%s: record %s belongs to %q, not %s", x.ID, id, owner[id], x.CanonicalID)
				case rec.DatasetID != ref.DatasetID:
					c.fail("%s: record %s listed under dataset %s", x.ID, id, ref.DatasetID)
				}
			}
		}
	}
	c.Passed = len(c.Failures) == 0
	return c
}

// ChainSources re-reads the raw datasets every chain cites.
func ChainSources(chains []model.EvidenceChain, src evidence.Source) Check {
	c := Check{Name: CheckChainSources, Failures: []string{}}
	for _, rep := range evidence.ValidateAll(chains, src) {
		c.Checked++
		for _, is := range rep.Issues {
			msg := fmt.Sprintf("%s: %s %s", rep.ChainID, is.Kind, is.RecordID)
			if is.Field != "" {
				msg += fmt.Sprintf(" field %s: cited %q, raw %q", is.Field, is.Expected, is.Actual)
			}
			if is.Detail != "" {
				msg += " (" + is.Detail + ")"
			}
			c.Failures = append(c.Failures, msg)
		}
		if !rep.Valid && len(rep.Issues) == 0 {
			c.fail("%s: invalid", rep.ChainID)
		}
	}
	c.Passed = len(c.Failures) == 0
	return c
}

// ChainStrength recomputes each chain's link strength from its hops and
// checks that every cited record and referenced xref exists.
func ChainStrength(cm model.CanonicalMap, xrefs []model.CrossReference, chains []model.EvidenceChain) Check {
	c := Check{Name: CheckChainStrength, Failures: []string{}}
	records := cm.RecordIndex()
	xrefIDs := make(map[string]bool, len(xrefs))
	for _, x := range xrefs {
		xrefIDs[x.ID] = true
	}
	for _, ch := range chains {
		c.Checked++
		if got := evidence.LinkStrength(ch.Hops); math.Abs(got-ch.LinkStrength) > strengthTolerance {
			c.fail("%s: link strength %.4f, hops give %.4f", ch.ID, ch.LinkStrength, got)
		}
		if ch.XrefID != "" && !xrefIDs[ch.XrefID] {
			c.fail("%s: cross-reference %s not in xrefs", ch.ID, ch.XrefID)
		}
		for i, h := range ch.Hops {
			want := ch.AnchorRecord
			if i > 0 {
				want = ch.Hops[i-1].ToRecord
			}
			if h.FromRecord != want {
				c.fail("%s: hop %d starts at %s, previous hop ends at %s", ch.ID, i, h.FromRecord, want)
			}
		}
		for _, id := range ch.CitedRecords() {
			if _, ok := records[id]; !ok {
				c.fail("%s: cited record %s not in canonical map", ch.ID, id)
			}
		}
	}
	c.Passed = len(c.Failures) == 0
	return c
}

// Agreement re-scores every finding without writing and compares the result
// with the persisted tier.
func Agreement(s *confidence.Scorer, xrefs []model.CrossReference, chains []model.EvidenceChain) Check {
	c := Check{Name: CheckConfidence, Failures: []string{}}
	res := s.Rescore(xrefs, chains)
	for _, d := range res.Decisions {
		c.Checked++
		switch {
		case d.Previous == nil:
			c.fail("%s %s: not scored", d.TargetKind, d.TargetID)
		case d.Previous.Tier != d.Next.Tier:
			c.fail("%s %s: stored %s, recomputed %s", d.TargetKind, d.TargetID, d.Previous.Tier, d.Next.Tier)
		case d.Previous.Basis != d.Next.Basis:
			c.fail("%s %s: basis drifted: stored %q, recomputed %q", d.TargetKind, d.TargetID, d.Previous.Basis, d.Next.Basis)
		}
	}
	c.Passed = len(c.Failures) == 0
	return c
}
