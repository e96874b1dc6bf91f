package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entity-xref/internal/artifact"
	"github.com/sells-group/entity-xref/internal/pipeline"
	"github.com/sells-group/entity-xref/internal/verify"
)

const testManifest = `name: acme
datasets:
  - id: campaign
    path: campaign.csv
    reliability: C
    lineage: [fec-bulk]
    columns:
      names: [contributor_name]
      state: state
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

func commandWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ds := filepath.Join(dir, "datasets")
	require.NoError(t, os.MkdirAll(ds, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "investigation.yaml"), []byte(testManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ds, "campaign.csv"), []byte(campaignCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ds, "registry.csv"), []byte("entity_name,tax_id\nAcme Corporation,12-3456789\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ds, "lobby.json"), []byte(`[{"client":{"name":"Acme Corp.","ein":"12-3456789"}}]`), 0o644))

	t.Setenv("XREF_WORKSPACE_DIR", dir)
	t.Setenv("XREF_STORE_DRIVER", "none")
	t.Setenv("XREF_LOG_LEVEL", "error")
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunThenVerify(t *testing.T) {
	dir := commandWorkspace(t)

	out, err := execute(t, "run", "--workspace", dir, "--dry-run=false")
	require.NoError(t, err)
	var sum pipeline.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 1, sum.Xrefs)
	assert.Equal(t, 1, sum.Chains)
	assert.Equal(t, 2, sum.Tiers["Confirmed"])

	art := artifact.NewDir(filepath.Join(dir, "artifacts"))
	for _, f := range []string{artifact.CanonicalFile, artifact.XrefsFile, artifact.ChainsFile, artifact.ScoringLogFile} {
		assert.True(t, art.Exists(f), f)
	}

	out, err = execute(t, "verify", "--workspace", dir)
	require.NoError(t, err)
	var report verify.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Passed)
	assert.True(t, art.Exists(artifact.VerifyReportFile))
}

func TestCrossref_WithoutResolveFails(t *testing.T) {
	dir := commandWorkspace(t)

	_, err := execute(t, "crossref", "--workspace", dir)
	require.Error(t, err)
	assert.True(t, artifact.IsMissing(err))
	assert.Contains(t, err.Error(), "xref resolve")
}

func TestCrossref_UnknownDatasetFilter(t *testing.T) {
	dir := commandWorkspace(t)

	_, err := execute(t, "crossref", "--workspace", dir, "--datasets", "campaign,nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in manifest: nope")
}

func TestWritingCommandNeedsLock(t *testing.T) {
	dir := commandWorkspace(t)

	unlock, err := artifact.Lock(dir)
	require.NoError(t, err)
	defer unlock()

	_, err = execute(t, "resolve", "--workspace", dir)
	require.ErrorIs(t, err, artifact.ErrLocked)
}
