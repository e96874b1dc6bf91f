package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/entity-xref/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order: resolve, crossref, chain build, score",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		env, err := initPipeline(cmd.Context(), config.ModePipeline, true)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Pipeline.RunAll(cmd.Context(), dryRun || cfg.Confidence.DryRun)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sum)
	},
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "do not persist confidence tiers")
	rootCmd.AddCommand(runCmd)
}
