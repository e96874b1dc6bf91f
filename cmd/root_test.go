package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"resolve", "crossref", "chain", "score", "run", "verify", "fetch", "status", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "xref", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("workspace"))
}

func TestChainCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range chainCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["build"])
	assert.True(t, names["validate"])
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		name  string
		cmd   *cobra.Command
		flags map[string]string
	}{
		{"crossref", crossrefCmd, map[string]string{"min-datasets": "2", "datasets": "[]"}},
		{"chain build", chainBuildCmd, map[string]string{"claim": "", "records": "[]"}},
		{"chain validate", chainValidateCmd, map[string]string{"chain": ""}},
		{"score", scoreCmd, map[string]string{"dry-run": "false"}},
		{"run", runCmd, map[string]string{"dry-run": "false"}},
		{"fetch", fetchCmd, map[string]string{"dataset": "", "url": "", "extract": ""}},
		{"status", statusCmd, map[string]string{"limit": "20", "status": "", "command": ""}},
		{"serve", serveCmd, map[string]string{"port": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for flag, def := range tt.flags {
				f := tt.cmd.Flags().Lookup(flag)
				require.NotNil(t, f, "%s should have --%s", tt.name, flag)
				assert.Equal(t, def, f.DefValue, "--%s default", flag)
			}
		})
	}
}
