package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ZJvandeWeg/rust-red/internal/canonical"
	"github.com/ZJvandeWeg/rust-red/internal/flows"
	"github.com/ZJvandeWeg/rust-red/internal/harness"
	"github.com/ZJvandeWeg/rust-red/internal/report"
)

// Result is the outcome of one scenario execution.
type Result struct {
	// Name is the scenario name.
	Name string

	// Pass is true when the harness succeeded and every expectation held.
	Pass bool

	// Messages are the collected payloads, in stream order. Populated
	// even on assertion failures so callers can inspect what arrived.
	Messages []harness.Message

	// Failures holds one line per violated expectation or harness error.
	Failures []string

	// Duration is the wall time of the target invocation.
	Duration time.Duration
}

// Runner executes scenarios against a resolved target binary.
type Runner struct {
	// Exe is the target binary path, typically from target.Resolve.
	Exe string

	// Options is the harness configuration shared by all scenarios.
	// A scenario's read_timeout overrides Options.ReadTimeout for that
	// scenario only.
	Options harness.Options

	// IDs mints ids for synthesized inject nodes. Nil uses UUIDv7;
	// tests use a sequential generator for stable documents.
	IDs flows.IDGenerator

	// Store, when non-nil, records every execution.
	Store *report.Store

	// Logger receives per-scenario progress. Nil discards.
	Logger *slog.Logger
}

// Run executes one scenario: build the flow document, drive the target
// over stdin, and evaluate expectations. Harness-level failures (launch,
// stall, malformed frames) become scenario failures, not errors; the
// returned error is reserved for a scenario that cannot be attempted at
// all (an unbuildable document).
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	gen := r.IDs
	if gen == nil {
		gen = flows.UUIDGenerator{}
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	doc, err := flows.BuildDocument(sc.Flows, sc.Injections, gen)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}

	opts := r.Options
	if d := sc.readTimeout(); d > 0 {
		opts.ReadTimeout = d
	}

	logger.Debug("running scenario", "name", sc.Name, "expect", sc.Expect, "nodes", len(doc))

	start := time.Now()
	msgs, runErr := harness.RunStdin(ctx, r.Exe, doc, sc.Expect, opts)
	res := &Result{
		Name:     sc.Name,
		Messages: msgs,
		Duration: time.Since(start),
	}

	if runErr != nil {
		res.Failures = append(res.Failures, runErr.Error())
	} else {
		res.Failures = assertMessages(sc, msgs)
	}
	res.Pass = len(res.Failures) == 0

	if res.Pass {
		logger.Debug("scenario passed", "name", sc.Name, "duration", res.Duration)
	} else {
		logger.Warn("scenario failed", "name", sc.Name, "failures", len(res.Failures))
	}

	if r.Store != nil {
		if err := r.record(ctx, sc, res, runErr); err != nil {
			logger.Warn("recording run failed", "name", sc.Name, "error", err)
		}
	}
	return res, nil
}

// RunAll executes scenarios in order and returns every result. A single
// failing scenario does not stop the rest.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) ([]*Result, error) {
	results := make([]*Result, 0, len(scenarios))
	for _, sc := range scenarios {
		res, err := r.Run(ctx, sc)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) record(ctx context.Context, sc *Scenario, res *Result, runErr error) error {
	payloads := make([]any, len(res.Messages))
	for i, m := range res.Messages {
		payloads[i] = m.Payload
	}
	messagesJSON, err := canonical.Marshal(payloads)
	if err != nil {
		messagesJSON = []byte("[]")
	}

	return r.Store.RecordRun(ctx, report.Run{
		Scenario:  sc.Name,
		Status:    runStatus(res, runErr),
		Expected:  sc.Expect,
		Collected: len(res.Messages),
		Messages:  string(messagesJSON),
		Duration:  res.Duration,
	})
}

func runStatus(res *Result, runErr error) string {
	switch {
	case runErr == nil && res.Pass:
		return report.StatusPass
	case runErr == nil:
		return report.StatusFail
	case harness.IsStall(runErr):
		return report.StatusStall
	case harness.IsLaunch(runErr):
		return report.StatusLaunchError
	case harness.IsDecode(runErr):
		return report.StatusDecodeError
	default:
		return report.StatusError
	}
}
