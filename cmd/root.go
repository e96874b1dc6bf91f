package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/config"
)

var (
	cfg          *config.Config
	workspaceDir string
)

var rootCmd = &cobra.Command{
	Use:   "xref",
	Short: "Entity resolution and cross-reference pipeline",
	Long:  "Resolves records from public datasets into canonical entities, links them across datasets, builds cited evidence chains and grades every finding.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workspaceDir != "" {
			// Picked up by config.Load for both the config search path and workspace.dir.
			if err := os.Setenv("XREF_WORKSPACE_DIR", workspaceDir); err != nil {
				return eris.Wrap(err, "set workspace")
			}
		}
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVarP(&workspaceDir, "workspace", "w", "", "investigation workspace directory (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
