package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Independently re-check the persisted artifacts",
	Long:  "Reads only the artifact files and raw datasets, checks cross-reference membership, chain citations and confidence tiers, and writes verify_report.json. Exits non-zero when any check fails.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initPipeline(cmd.Context(), config.ModePipeline, true)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := verify.New(cfg, env.Store, env.Manifest).Run(cmd.Context())
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		if !report.Passed {
			return eris.Errorf("verify: %d of %d checks failed", len(report.Failed()), len(report.Checks))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
