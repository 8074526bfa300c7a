package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZJvandeWeg/rust-red/internal/flows"
	"github.com/ZJvandeWeg/rust-red/internal/harness"
	"github.com/ZJvandeWeg/rust-red/internal/report"
	"github.com/ZJvandeWeg/rust-red/internal/scenario"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter   string // scenario filter (glob pattern on name)
	Exe      string
	Timeout  time.Duration
	Grace    time.Duration
	Database string
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name     string   `json:"name"`
	Pass     bool     `json:"pass"`
	Failures []string `json:"failures,omitempty"`
	Duration string   `json:"duration"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files against the target",
		Long: `Run every YAML scenario in a directory: each scenario's flow document
is fed to the rust-red binary over stdin and the collected messages are
checked against the scenario's expectations.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, target binary not found)

Examples:
  redtest test ./scenarios
  redtest test ./scenarios --filter "inject-*"
  redtest test ./scenarios --db runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on name")
	cmd.Flags().StringVar(&opts.Exe, "exe", "", "target binary path (default: resolved from environment)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-read inactivity timeout (default 8s)")
	cmd.Flags().DurationVar(&opts.Grace, "grace", 0, "wait bound after the stop signal (0 waits indefinitely)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record every run in a SQLite history database")

	return cmd
}

func runScenarios(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	exe, err := resolveExe(opts.Exe)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolving target binary", err)
	}

	scenarios, err := scenario.LoadDir(scenariosDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading scenarios", err)
	}
	scenarios, err = filterScenarios(scenarios, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "applying filter", err)
	}

	if len(scenarios) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	runner := &scenario.Runner{
		Exe: exe,
		Options: harness.Options{
			ReadTimeout: opts.Timeout,
			Grace:       opts.Grace,
			Logger:      newLogger(opts.RootOptions),
		},
		IDs:    flows.UUIDGenerator{},
		Logger: newLogger(opts.RootOptions),
	}

	if opts.Database != "" {
		store, serr := report.Open(opts.Database)
		if serr != nil {
			return WrapExitError(ExitCommandError, "opening run database", serr)
		}
		defer store.Close()
		runner.Store = store
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarios)),
		Total:     len(scenarios),
	}
	w := cmd.OutOrStdout()

	for _, sc := range scenarios {
		res, rerr := runner.Run(ctx, sc)
		if rerr != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s could not be attempted", sc.Name), rerr)
		}

		sr := ScenarioResult{
			Name:     res.Name,
			Pass:     res.Pass,
			Failures: res.Failures,
			Duration: res.Duration.Round(time.Millisecond).String(),
		}
		result.Scenarios = append(result.Scenarios, sr)

		if res.Pass {
			result.Passed++
			if opts.Format != "json" {
				fmt.Fprintf(w, "✓ %s (%s)\n", res.Name, sr.Duration)
			}
		} else {
			result.Failed++
			if opts.Format != "json" {
				fmt.Fprintf(w, "✗ %s\n", res.Name)
				for _, f := range res.Failures {
					fmt.Fprintf(w, "  %s\n", f)
				}
			}
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// filterScenarios keeps scenarios whose name matches the glob pattern.
// An empty pattern keeps everything.
func filterScenarios(scenarios []*scenario.Scenario, pattern string) ([]*scenario.Scenario, error) {
	if pattern == "" {
		return scenarios, nil
	}

	kept := make([]*scenario.Scenario, 0, len(scenarios))
	for _, sc := range scenarios {
		matched, err := filepath.Match(pattern, sc.Name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
		}
		if matched {
			kept = append(kept, sc)
		}
	}
	return kept, nil
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}
	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
