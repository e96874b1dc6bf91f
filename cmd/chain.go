package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/evidence"
	"github.com/sells-group/entity-xref/internal/pipeline"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Build and validate evidence chains",
}

// -- chain build --

var chainBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build one evidence chain per cross-reference plus custom claims",
	RunE: func(cmd *cobra.Command, _ []string) error {
		claimText, _ := cmd.Flags().GetString("claim")
		records, _ := cmd.Flags().GetStringSlice("records")
		claims, err := parseClaim(claimText, records)
		if err != nil {
			return err
		}

		env, err := initPipeline(cmd.Context(), config.ModePipeline, true)
		if err != nil {
			return err
		}
		defer env.Close()

		chains, err := env.Pipeline.BuildChains(cmd.Context(), claims)
		if err != nil {
			return err
		}
		status := make(map[string]int)
		for _, c := range chains {
			status[string(c.CorroborationStatus)]++
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"chains":        len(chains),
			"corroboration": status,
		})
	},
}

// parseClaim turns --claim/--records into a custom claim. Both or neither
// must be set.
func parseClaim(text string, records []string) ([]pipeline.Claim, error) {
	text = strings.TrimSpace(text)
	var ids []string
	for _, r := range records {
		if r = strings.TrimSpace(r); r != "" {
			ids = append(ids, r)
		}
	}
	switch {
	case text == "" && len(ids) == 0:
		return nil, nil
	case text == "":
		return nil, eris.New("--records requires --claim")
	case len(ids) == 0:
		return nil, eris.New("--claim requires --records")
	}
	return []pipeline.Claim{{Text: text, Records: ids}}, nil
}

// -- chain validate --

var chainValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Re-read the raw datasets behind persisted chains",
	RunE: func(cmd *cobra.Command, _ []string) error {
		chainID, _ := cmd.Flags().GetString("chain")

		env, err := initPipeline(cmd.Context(), config.ModePipeline, false)
		if err != nil {
			return err
		}
		defer env.Close()

		reports, err := env.Pipeline.ValidateChains(cmd.Context(), chainID)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
			return err
		}
		if n := countInvalid(reports); n > 0 {
			return eris.Errorf("chain validate: %d of %d chains failed validation", n, len(reports))
		}
		return nil
	},
}

func countInvalid(reports []evidence.Report) int {
	n := 0
	for _, r := range reports {
		if !r.Valid {
			n++
		}
	}
	return n
}

func init() {
	chainBuildCmd.Flags().String("claim", "", "custom claim text")
	chainBuildCmd.Flags().StringSlice("records", nil, "ordered record ids cited by the claim (dataset#row, comma separated)")
	chainValidateCmd.Flags().String("chain", "", "validate only this chain id")

	chainCmd.AddCommand(chainBuildCmd)
	chainCmd.AddCommand(chainValidateCmd)
	rootCmd.AddCommand(chainCmd)
}
