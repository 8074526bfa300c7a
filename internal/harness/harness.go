package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/ZJvandeWeg/rust-red/internal/launch"
)

// DefaultReadTimeout is the per-read inactivity bound applied when
// Options.ReadTimeout is zero.
const DefaultReadTimeout = 8 * time.Second

// Message is one decoded frame payload in collection order.
type Message struct {
	// Seq is the 1-based position of this message in the stream.
	Seq int `json:"seq"`

	// Payload is the frame's decoded JSON value. Numbers are
	// json.Number so integer payloads survive round-trips intact.
	Payload any `json:"payload"`
}

// Object returns the payload as a JSON object, or nil if the payload is
// not an object.
func (m Message) Object() map[string]any {
	obj, _ := m.Payload.(map[string]any)
	return obj
}

// Options tunes one harness invocation. The zero value gives the
// reference behavior: 8s per-read timeout, verbosity 0, strict decoding,
// unbounded post-interrupt wait.
type Options struct {
	// ReadTimeout bounds the wait for each stdout chunk. Each chunk that
	// arrives resets the window.
	ReadTimeout time.Duration

	// Grace bounds the wait for the child to exit after the cooperative
	// interrupt. Zero waits indefinitely, matching the reference
	// behavior; a child that ignores the interrupt then hangs the
	// invocation, so long-running callers should set a bound.
	Grace time.Duration

	// Verbosity is passed to the target as -v. The harness convention
	// is 0 so the framed stream is not interleaved with runtime logs.
	Verbosity int

	// LenientDecode skips malformed frames (with a warning) instead of
	// failing the invocation.
	LenientDecode bool

	// Env is merged over the harness environment for the child.
	Env map[string]string

	// Logger receives harness progress at debug level. Nil discards.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// RunFile launches the target against a flow file on disk and collects
// up to nexpected messages. The child's stdin carries no traffic.
//
// The returned slice may be shorter than nexpected if the target closed
// its output first; that is reported by return value, not error, so the
// caller can assert on what did arrive.
func RunFile(ctx context.Context, exe, flowsPath string, nexpected int, opts Options) ([]Message, error) {
	args := []string{"-v", strconv.Itoa(opts.Verbosity), "-f", flowsPath}
	return run(ctx, exe, args, nil, nexpected, opts)
}

// RunStdin launches the target in --stdin mode, serializes flowsDoc as
// UTF-8 JSON onto its standard input, closes the input to mark
// end-of-document, and collects up to nexpected messages.
func RunStdin(ctx context.Context, exe string, flowsDoc any, nexpected int, opts Options) ([]Message, error) {
	payload, err := json.Marshal(flowsDoc)
	if err != nil {
		return nil, fmt.Errorf("encoding flow document: %w", err)
	}
	args := []string{"-v", strconv.Itoa(opts.Verbosity), "--stdin"}
	return run(ctx, exe, args, payload, nexpected, opts)
}

func run(ctx context.Context, exe string, args []string, stdinDoc []byte, nexpected int, opts Options) (msgs []Message, err error) {
	opts = opts.withDefaults()

	l := &launch.Launcher{Env: opts.Env, Logger: opts.Logger}
	p, err := l.Start(exe, args...)
	if err != nil {
		return nil, err
	}

	// Whatever happens below, the child is reaped before we return.
	// Kill after a normal exit is a no-op and Wait is idempotent.
	defer func() {
		if err != nil {
			_ = p.Kill()
			_ = p.Wait()
		}
	}()

	if stdinDoc != nil {
		if _, werr := p.Stdin.Write(stdinDoc); werr != nil {
			return nil, fmt.Errorf("writing flow document to target stdin: %w", werr)
		}
	}
	if cerr := p.Stdin.Close(); cerr != nil {
		return nil, fmt.Errorf("closing target stdin: %w", cerr)
	}

	msgs, complete, err := collect(ctx, p, nexpected, opts)
	if err != nil {
		return nil, err
	}

	if complete {
		// Reached the requested count: ask the child to stop and wait
		// for it. The child's exit status after an interrupt is not a
		// collection failure.
		if err := shutdown(p, opts); err != nil {
			return nil, err
		}
		return msgs, nil
	}

	// End of stream before the count: the child closed stdout, usually
	// because it exited. Reap it and report the shortfall by length.
	if werr := p.Wait(); werr != nil {
		opts.Logger.Debug("target exited abnormally after closing output", "error", werr)
	}
	opts.Logger.Debug("stream ended short of requested count",
		"collected", len(msgs), "expected", nexpected)
	return msgs, nil
}

// shutdown sends the cooperative interrupt and waits for exit, applying
// the optional grace bound.
func shutdown(p *launch.Process, opts Options) error {
	if err := p.Interrupt(); err != nil {
		// The child may have exited on its own between the last frame
		// and the signal; reaping below settles either way.
		opts.Logger.Debug("interrupt delivery failed", "error", err)
	}

	if opts.Grace <= 0 {
		if err := p.Wait(); err != nil {
			opts.Logger.Debug("target exit status after interrupt", "error", err)
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- p.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			opts.Logger.Debug("target exit status after interrupt", "error", err)
		}
	case <-time.After(opts.Grace):
		opts.Logger.Warn("target ignored interrupt, killing", "grace", opts.Grace)
		_ = p.Kill()
		<-done
	}
	return nil
}
