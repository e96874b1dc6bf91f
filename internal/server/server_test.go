package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/dataset"
	"github.com/sells-group/entity-xref/internal/evidence"
	"github.com/sells-group/entity-xref/internal/metrics"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/pipeline"
)

const manifestYAML = `name: acme
datasets:
  - id: campaign
    path: campaign.csv
    reliability: C
    lineage: [fec-bulk]
    columns:
      names: [contributor_name]
  - id: registry
    path: registry.csv
    reliability: A
    official: true
    entity_type: organization
    columns:
      names: [entity_name]
      identifiers:
        ein: tax_id
  - id: lobby
    path: lobby.json
    reliability: B
    lineage: [senate-lda]
    columns:
      names: [client.name]
      identifiers:
        ein: client.ein
`

func testWorkspace(t *testing.T, run bool) (*config.Config, *dataset.Manifest) {
	t.Helper()
	dir := t.TempDir()
	ds := filepath.Join(dir, "datasets")
	require.NoError(t, os.MkdirAll(ds, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "investigation.yaml"), []byte(manifestYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ds, "campaign.csv"), []byte("contributor_name\nAcme Corp LLC\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ds, "registry.csv"), []byte("entity_name,tax_id\nAcme Corporation,12-3456789\nZeta Widgets Inc,98-7654321\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ds, "lobby.json"), []byte(`[{"client":{"name":"Acme Corp.","ein":"12-3456789"}}]`), 0o644))

	cfg := &config.Config{}
	cfg.Workspace = config.WorkspaceConfig{Dir: dir, Manifest: "investigation.yaml", ArtifactsDir: "artifacts", DatasetsDir: "datasets"}
	cfg.Resolve = config.ResolveConfig{
		SimilarityThreshold: 0.85, WideNetThreshold: 0.70, DiscardThreshold: 0.55,
		MergeThreshold: 0.70, GatePolicy: "all", Workers: 1,
	}
	cfg.Scoring = config.ScoringConfig{HardID: 1, Contact: 0.8, Name: 0.8, Address: 0.1, State: 0.05, SuffixPenalty: 0.05, NameFloor: 0.5, DisqualifiedScore: -1}
	cfg.Blocking = config.BlockingConfig{PrefixLen: 3, Window: 5, MaxBlockSize: 500}
	cfg.Xref.MinDatasets = 2

	m, err := dataset.LoadManifest(cfg.Workspace.ManifestPath(), cfg.Workspace.DatasetsPath())
	require.NoError(t, err)
	if run {
		p, err := pipeline.New(cfg, nil, nil, m)
		require.NoError(t, err)
		_, err = p.RunAll(context.Background(), false)
		require.NoError(t, err)
	}
	return cfg, m
}

func newTestServer(t *testing.T, run bool) *httptest.Server {
	t.Helper()
	cfg, m := testWorkspace(t, run)
	ts := httptest.NewServer(New(cfg, m, metrics.New()).Router())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestEntities(t *testing.T) {
	ts := newTestServer(t, true)

	var all listResponse[model.CanonicalEntity]
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/entities", &all))
	assert.Equal(t, 2, all.Total)

	var acme listResponse[model.CanonicalEntity]
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/entities?q=acme", &acme))
	require.Len(t, acme.Items, 1)
	assert.Len(t, acme.Items[0].Members, 3)

	var lobby listResponse[model.CanonicalEntity]
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/entities?dataset=lobby", &lobby))
	assert.Equal(t, 1, lobby.Total)

	var paged listResponse[model.CanonicalEntity]
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/entities?limit=1&offset=1", &paged))
	assert.Equal(t, 2, paged.Total)
	assert.Len(t, paged.Items, 1)

	var one entityResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/entities/"+acme.Items[0].CanonicalID, &one))
	assert.Len(t, one.Records, 3)

	var missing errorResponse
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/entities/ent-nope", &missing))
	assert.Contains(t, missing.Error, "ent-nope")
}

func TestXrefs(t *testing.T) {
	ts := newTestServer(t, true)

	var confirmed listResponse[model.CrossReference]
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/xrefs?tier=confirmed", &confirmed))
	require.Len(t, confirmed.Items, 1)

	var possible listResponse[model.CrossReference]
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/xrefs?tier=Possible", &possible))
	assert.Equal(t, 0, possible.Total)
	assert.NotNil(t, possible.Items)

	id := confirmed.Items[0].ID
	var x model.CrossReference
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/xrefs/"+id, &x))
	assert.Equal(t, id, x.ID)

	var score scoreResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/xrefs/"+id+"/score", &score))
	assert.False(t, score.Changed)
	assert.Equal(t, model.TierConfirmed, score.Computed.Tier)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/xrefs/xref-nope/score", nil))
}

func TestChains(t *testing.T) {
	ts := newTestServer(t, true)

	var chains listResponse[model.EvidenceChain]
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/chains?status=corroborated", &chains))
	require.Len(t, chains.Items, 1)

	id := chains.Items[0].ID
	var c model.EvidenceChain
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/chains/"+id, &c))
	assert.Equal(t, chains.Items[0].XrefID, c.XrefID)

	var rep evidence.Report
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/chains/"+id+"/validate", &rep))
	assert.True(t, rep.Valid)
	assert.Equal(t, id, rep.ChainID)
}

func TestMissingArtifactIsNotFound(t *testing.T) {
	ts := newTestServer(t, false)
	var body errorResponse
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/xrefs", &body))
	assert.Contains(t, body.Error, "xrefs.json")
}

func TestMetricsAndCORS(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close() //nolint:errcheck
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "xref_resolve_entities")

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/xrefs", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
