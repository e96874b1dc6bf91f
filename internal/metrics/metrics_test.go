package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entity-xref/internal/model"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.SetEntities(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(a.Entities))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Entities))
}

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.AddLoaded("registry", 10)
	m.IncSkipped("campaign", model.SkipMissingName)
	m.IncSkipped("campaign", model.SkipMissingName)
	m.AddPairs("merge", 3)
	m.AddMerges(2, 1)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.RecordsLoaded.WithLabelValues("registry")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsSkipped.WithLabelValues("campaign", model.SkipMissingName)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PairsScored.WithLabelValues("merge")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Merges))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refusals))
}

func TestMetrics_Gauges(t *testing.T) {
	m := New()
	m.SetTiers(model.TargetXref, map[model.ConfidenceTier]int{model.TierConfirmed: 2})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Tiers.WithLabelValues("xref", "Confirmed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Tiers.WithLabelValues("xref", "Unresolved")))

	m.SetChains(map[string]int{"corroborated": 1})
	m.SetChains(map[string]int{"single": 2})
	assert.Equal(t, 1, testutil.CollectAndCount(m.Chains))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveStage("resolve", model.RunStatusComplete, time.Second)
	m.AddLoaded("a", 1)
	m.AddMerges(1, 0)
	m.SetTiers("xref", nil)
	m.SetChains(nil)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveStage(model.StageResolve, model.RunStatusComplete, 250*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `xref_pipeline_stage_duration_seconds_count{stage="resolve",status="complete"} 1`)
}
