package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/entity-xref/internal/config"
)

var crossrefCmd = &cobra.Command{
	Use:   "crossref",
	Short: "Link canonical entities across datasets into xrefs.json",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("min-datasets") {
			cfg.Xref.MinDatasets, _ = cmd.Flags().GetInt("min-datasets")
		}
		if cmd.Flags().Changed("datasets") {
			cfg.Xref.Datasets, _ = cmd.Flags().GetStringSlice("datasets")
		}

		env, err := initPipeline(cmd.Context(), config.ModePipeline, true)
		if err != nil {
			return err
		}
		defer env.Close()

		xrefs, err := env.Pipeline.Crossref(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"xrefs":        len(xrefs),
			"min_datasets": cfg.Xref.MinDatasets,
			"datasets":     cfg.Xref.Datasets,
		})
	},
}

func init() {
	crossrefCmd.Flags().Int("min-datasets", 2, "minimum number of distinct datasets per cross-reference")
	crossrefCmd.Flags().StringSlice("datasets", nil, "only link these dataset ids (comma separated)")
	rootCmd.AddCommand(crossrefCmd)
}
