package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZJvandeWeg/rust-red/internal/canonical"
	"github.com/ZJvandeWeg/rust-red/internal/harness"
	"github.com/ZJvandeWeg/rust-red/internal/report"
	"github.com/ZJvandeWeg/rust-red/internal/target"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Expect   int
	Stdin    bool
	Exe      string
	Timeout  time.Duration
	Grace    time.Duration
	Lenient  bool
	Database string
}

// RunReport is the JSON payload of a run command.
type RunReport struct {
	Target    string            `json:"target"`
	Expected  int               `json:"expected"`
	Collected int               `json:"collected"`
	Messages  []harness.Message `json:"messages"`
	Duration  string            `json:"duration"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [flows-file]",
		Short: "Run the target against a flow document and collect messages",
		Long: `Launch the rust-red binary with a flow document, decode its framed
JSON output, and print the collected messages in stream order.

The document comes from a file argument, or from this process's stdin
with --stdin. The binary is resolved from RUSTRED_ROOT,
RUSTRED_BUILD_TARGET and RUSTRED_BUILD_PROFILE unless --exe is given.

Exit codes:
  0 - Collected messages without a harness error
  1 - Stream stalled or a frame failed to decode
  2 - Command error (no flow document, target binary not found)

Examples:
  redtest run flows.json -n 2
  cat flows.json | redtest run --stdin -n 1
  redtest run flows.json -n 3 --timeout 2s --db runs.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTarget(opts, args, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Expect, "expect", "n", 1, "number of messages to collect")
	cmd.Flags().BoolVar(&opts.Stdin, "stdin", false, "read the flow document from stdin")
	cmd.Flags().StringVar(&opts.Exe, "exe", "", "target binary path (default: resolved from environment)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-read inactivity timeout (default 8s)")
	cmd.Flags().DurationVar(&opts.Grace, "grace", 0, "wait bound after the stop signal (0 waits indefinitely)")
	cmd.Flags().BoolVar(&opts.Lenient, "lenient", false, "skip malformed frames instead of failing")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in a SQLite history database")

	return cmd
}

func runTarget(opts *RunOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Stdin == (len(args) == 1) {
		return NewExitError(ExitCommandError, "provide exactly one flow document: a flows file argument or --stdin")
	}

	exe, err := resolveExe(opts.Exe)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolving target binary", err)
	}
	formatter.VerboseLog("target binary: %s", exe)

	hopts := harness.Options{
		ReadTimeout:   opts.Timeout,
		Grace:         opts.Grace,
		LenientDecode: opts.Lenient,
		Logger:        newLogger(opts.RootOptions),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		scenario string
		msgs     []harness.Message
		runErr   error
	)
	start := time.Now()
	if opts.Stdin {
		scenario = "stdin"
		var doc any
		dec := json.NewDecoder(cmd.InOrStdin())
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return WrapExitError(ExitCommandError, "reading flow document from stdin", err)
		}
		msgs, runErr = harness.RunStdin(ctx, exe, doc, opts.Expect, hopts)
	} else {
		scenario = args[0]
		if _, err := os.Stat(args[0]); err != nil {
			return WrapExitError(ExitCommandError, "flow document not found", err)
		}
		msgs, runErr = harness.RunFile(ctx, exe, args[0], opts.Expect, hopts)
	}
	duration := time.Since(start)

	if opts.Database != "" {
		if err := recordRun(ctx, opts.Database, scenario, opts.Expect, msgs, duration, runErr); err != nil {
			formatter.VerboseLog("recording run: %v", err)
		}
	}

	if runErr != nil {
		code := "E_RUN"
		switch {
		case harness.IsStall(runErr):
			code = "E_STALL"
		case harness.IsDecode(runErr):
			code = "E_DECODE"
		case harness.IsLaunch(runErr):
			code = "E_LAUNCH"
		}
		_ = formatter.Error(code, runErr.Error(), nil)
		return NewExitError(ExitFailure, runErr.Error())
	}

	if opts.Format == "json" {
		return formatter.Success(RunReport{
			Target:    exe,
			Expected:  opts.Expect,
			Collected: len(msgs),
			Messages:  msgs,
			Duration:  duration.String(),
		})
	}

	w := cmd.OutOrStdout()
	for _, m := range msgs {
		fmt.Fprintln(w, renderMessage(m.Payload))
	}
	fmt.Fprintf(w, "collected %d of %d message(s) in %s\n", len(msgs), opts.Expect, duration.Round(time.Millisecond))
	return nil
}

// resolveExe picks the target binary: an explicit path wins, otherwise
// the environment-driven build layout is consulted.
func resolveExe(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}
	return target.FromEnv().Resolve()
}

func renderMessage(payload any) string {
	b, err := canonical.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(b)
}

// recordRun persists one ad-hoc invocation to the history database.
func recordRun(ctx context.Context, dbPath, scenario string, expected int, msgs []harness.Message, duration time.Duration, runErr error) error {
	store, err := report.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	payloads := make([]any, len(msgs))
	for i, m := range msgs {
		payloads[i] = m.Payload
	}
	messagesJSON, err := canonical.Marshal(payloads)
	if err != nil {
		messagesJSON = []byte("[]")
	}

	status := report.StatusPass
	switch {
	case harness.IsStall(runErr):
		status = report.StatusStall
	case harness.IsLaunch(runErr):
		status = report.StatusLaunchError
	case harness.IsDecode(runErr):
		status = report.StatusDecodeError
	case runErr != nil:
		status = report.StatusError
	case len(msgs) != expected:
		status = report.StatusFail
	}

	return store.RecordRun(ctx, report.Run{
		Scenario:  scenario,
		Status:    status,
		Expected:  expected,
		Collected: len(msgs),
		Messages:  string(messagesJSON),
		Duration:  duration,
	})
}
