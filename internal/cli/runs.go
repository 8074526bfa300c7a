package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZJvandeWeg/rust-red/internal/report"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// RunRecord is one history row in the runs command output.
type RunRecord struct {
	ID        string `json:"id"`
	Scenario  string `json:"scenario"`
	Status    string `json:"status"`
	Expected  int    `json:"expected"`
	Collected int    `json:"collected"`
	Duration  string `json:"duration"`
	StartedAt string `json:"started_at"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded harness runs",
		Long: `List runs recorded by the run and test commands, newest first.

Examples:
  redtest runs --db runs.db
  redtest runs --db runs.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run history database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func listRuns(opts *RunsOptions, cmd *cobra.Command) error {
	store, err := report.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening run database", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runs, err := store.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "listing runs", err)
	}

	if opts.Format == "json" {
		records := make([]RunRecord, len(runs))
		for i, r := range runs {
			records[i] = RunRecord{
				ID:        r.ID,
				Scenario:  r.Scenario,
				Status:    r.Status,
				Expected:  r.Expected,
				Collected: r.Collected,
				Duration:  r.Duration.String(),
				StartedAt: r.StartedAt.UTC().Format(time.RFC3339),
			}
		}
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(records)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-12s  %s  %d/%d  %s\n",
			r.StartedAt.UTC().Format(time.RFC3339),
			r.Status,
			r.Scenario,
			r.Collected,
			r.Expected,
			r.Duration.Round(time.Millisecond),
		)
	}
	return nil
}
