package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List recent runs and the datasets they loaded",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(config.ModeStatus); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		command, _ := cmd.Flags().GetString("command")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:  model.RunStatus(status),
			Command: command,
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "status")
		}
		datasets, err := st.ListDatasets(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
		} else {
			formatRunsList(out, runs)
		}
		if len(datasets) > 0 {
			_, _ = fmt.Fprintln(out)
			formatDatasets(out, datasets)
		}
		return nil
	},
}

// -- status show --

var statusShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its stages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(config.ModeStatus); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "status show")
		}
		return printJSON(cmd.OutOrStdout(), run)
	},
}

func init() {
	statusCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	statusCmd.Flags().String("command", "", "filter by command (resolve, crossref, chain, confidence, run, verify)")
	statusCmd.Flags().Int("limit", 20, "max number of runs to display")

	statusCmd.AddCommand(statusShowCmd)
	rootCmd.AddCommand(statusCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMMAND\tSTATUS\tSTAGES\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Command,
			r.Status,
			stageSummary(r.Stages),
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// stageSummary renders stages as "resolve,crossref!" where ! marks a failure.
func stageSummary(stages []model.RunStage) string {
	if len(stages) == 0 {
		return "-"
	}
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
		if s.Status == model.RunStatusFailed {
			names[i] += "!"
		}
	}
	return strings.Join(names, ",")
}

// formatDatasets writes the dataset snapshot table to w.
func formatDatasets(out io.Writer, datasets []store.DatasetSnapshot) {
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].DatasetID < datasets[j].DatasetID })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATASET\tROWS\tRECORDS\tSKIPPED\tSHA256\tLOADED")
	_, _ = fmt.Fprintln(w, "-------\t----\t-------\t-------\t------\t------")
	for _, d := range datasets {
		sum := d.SHA256
		if len(sum) > 12 {
			sum = sum[:12]
		}
		if sum == "" {
			sum = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\n",
			d.DatasetID,
			d.Rows,
			d.Records,
			d.Skipped,
			sum,
			d.LoadedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
