package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/model"
)

// decisionView is the printed form of one scoring decision.
type decisionView struct {
	Kind     string               `json:"kind"`
	ID       string               `json:"id"`
	Previous model.ConfidenceTier `json:"previous,omitempty"`
	Tier     model.ConfidenceTier `json:"tier"`
	Basis    string               `json:"basis"`
	Changed  bool                 `json:"changed"`
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Grade every cross-reference and chain",
	Long:  "Assigns Confirmed/Probable/Possible/Unresolved to every cross-reference and evidence chain. With --dry-run the decisions are printed and nothing is written.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		dryRun = dryRun || cfg.Confidence.DryRun

		env, err := initPipeline(cmd.Context(), config.ModePipeline, !dryRun)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Score(cmd.Context(), dryRun)
		if err != nil {
			return err
		}
		views := make([]decisionView, len(res.Decisions))
		for i, d := range res.Decisions {
			v := decisionView{Kind: d.TargetKind, ID: d.TargetID, Tier: d.Next.Tier, Basis: d.Next.Basis, Changed: d.Changed()}
			if d.Previous != nil {
				v.Previous = d.Previous.Tier
			}
			views[i] = v
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"dry_run":   dryRun,
			"decisions": views,
		})
	},
}

func init() {
	scoreCmd.Flags().Bool("dry-run", false, "compute tiers without writing artifacts or the scoring log")
	rootCmd.AddCommand(scoreCmd)
}
