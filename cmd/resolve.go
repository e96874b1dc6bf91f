package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/entity-xref/internal/config"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Normalize, block, score and cluster every dataset into canonical.json",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initPipeline(cmd.Context(), config.ModePipeline, true)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Resolve(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
