// Package metrics provides Prometheus metrics for pipeline stages.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/entity-xref/internal/model"
)

// Metrics holds pipeline collectors registered on their own registry so a
// process can build more than one pipeline without duplicate registration.
type Metrics struct {
	reg *prometheus.Registry

	// Stage latency by stage name and outcome
	StageDuration *prometheus.HistogramVec

	// Records loaded and skipped, by dataset
	RecordsLoaded  *prometheus.CounterVec
	RecordsSkipped *prometheus.CounterVec

	// Candidate pairs scored, by outcome: merge, candidate, discard, disqualified
	PairsScored *prometheus.CounterVec

	Merges   prometheus.Counter
	Refusals prometheus.Counter

	Entities prometheus.Gauge
	Xrefs    prometheus.Gauge
	Chains   *prometheus.GaugeVec

	// Current tier distribution by target kind (xref, chain) and tier
	Tiers *prometheus.GaugeVec
}

// New creates a Metrics instance with every collector registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xref",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"stage", "status"}),

		RecordsLoaded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xref",
			Subsystem: "resolve",
			Name:      "records_loaded_total",
			Help:      "Records loaded from datasets",
		}, []string{"dataset"}),

		RecordsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xref",
			Subsystem: "resolve",
			Name:      "records_skipped_total",
			Help:      "Rows written to the skip log by reason",
		}, []string{"dataset", "reason"}),

		PairsScored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xref",
			Subsystem: "resolve",
			Name:      "pairs_scored_total",
			Help:      "Candidate pairs scored by outcome",
		}, []string{"outcome"}),

		Merges: f.NewCounter(prometheus.CounterOpts{
			Namespace: "xref",
			Subsystem: "resolve",
			Name:      "merges_total",
			Help:      "Cluster merges performed",
		}),

		Refusals: f.NewCounter(prometheus.CounterOpts{
			Namespace: "xref",
			Subsystem: "resolve",
			Name:      "merge_refusals_total",
			Help:      "Merges refused by the cluster gate or an identifier conflict",
		}),

		Entities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "xref",
			Subsystem: "resolve",
			Name:      "entities",
			Help:      "Canonical entities in the last resolve",
		}),

		Xrefs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "xref",
			Subsystem: "crossref",
			Name:      "xrefs",
			Help:      "Cross-references in the last crossref",
		}),

		Chains: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "xref",
			Subsystem: "chain",
			Name:      "chains",
			Help:      "Evidence chains by corroboration status",
		}, []string{"status"}),

		Tiers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "xref",
			Subsystem: "confidence",
			Name:      "tier_assignments",
			Help:      "Current confidence tier counts by target kind",
		}, []string{"kind", "tier"}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveStage records the duration of a finished stage.
func (m *Metrics) ObserveStage(stage string, status model.RunStatus, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage, string(status)).Observe(d.Seconds())
	}
}

// AddLoaded records records loaded from a dataset.
func (m *Metrics) AddLoaded(dataset string, n int) {
	if m != nil {
		m.RecordsLoaded.WithLabelValues(dataset).Add(float64(n))
	}
}

// IncSkipped records one skipped row.
func (m *Metrics) IncSkipped(dataset, reason string) {
	if m != nil {
		m.RecordsSkipped.WithLabelValues(dataset, reason).Inc()
	}
}

// AddPairs records scored pairs for one outcome.
func (m *Metrics) AddPairs(outcome string, n int) {
	if m != nil {
		m.PairsScored.WithLabelValues(outcome).Add(float64(n))
	}
}

// AddMerges records cluster merges and refusals.
func (m *Metrics) AddMerges(merges, refused int) {
	if m != nil {
		m.Merges.Add(float64(merges))
		m.Refusals.Add(float64(refused))
	}
}

// SetEntities sets the entity gauge.
func (m *Metrics) SetEntities(n int) {
	if m != nil {
		m.Entities.Set(float64(n))
	}
}

// SetXrefs sets the cross-reference gauge.
func (m *Metrics) SetXrefs(n int) {
	if m != nil {
		m.Xrefs.Set(float64(n))
	}
}

// SetChains replaces the chain status distribution.
func (m *Metrics) SetChains(byStatus map[string]int) {
	if m == nil {
		return
	}
	m.Chains.Reset()
	for status, n := range byStatus {
		m.Chains.WithLabelValues(status).Set(float64(n))
	}
}

// SetTiers replaces the tier distribution for one target kind.
func (m *Metrics) SetTiers(kind string, byTier map[model.ConfidenceTier]int) {
	if m == nil {
		return
	}
	for _, t := range []model.ConfidenceTier{model.TierConfirmed, model.TierProbable, model.TierPossible, model.TierUnresolved} {
		m.Tiers.WithLabelValues(kind, string(t)).Set(float64(byTier[t]))
	}
}
