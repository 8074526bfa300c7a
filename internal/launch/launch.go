// Package launch spawns the target binary with its stdio wired for the
// harness: a writable stdin, a readable stdout, and stderr captured for
// diagnostics. The child is placed in its own process group so the
// cooperative interrupt reaches it without touching the harness itself.
package launch

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// stderrPreviewMax bounds how much child stderr is retained for error
// messages. The rest is counted but dropped.
const stderrPreviewMax = 4096

// LaunchError reports that the target binary could not be spawned.
type LaunchError struct {
	Path string // executable the launcher tried to run
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Launcher starts target processes. The zero value is usable.
type Launcher struct {
	// Env holds variables merged over the harness's own environment for
	// the child. Passing overrides here, instead of mutating the ambient
	// environment around an invocation, keeps parallel invocations
	// independent.
	Env map[string]string

	// Logger receives debug-level spawn events. Nil discards.
	Logger *slog.Logger
}

// Process is an owned handle to a spawned target.
//
// The handle belongs to exactly one harness invocation: that invocation
// reads Stdout, optionally writes Stdin, and must observe the exit status
// via Wait (directly or through Interrupt/Kill cleanup) before returning.
type Process struct {
	cmd  *exec.Cmd
	path string

	// Stdin is the child's standard input. Close it to signal
	// end-of-input. Nil after Close.
	Stdin io.WriteCloser

	// Stdout is the child's standard output stream.
	Stdout io.ReadCloser

	stderr   *boundedBuffer
	copyDone chan struct{}

	waitOnce sync.Once
	waitErr  error
}

// Start spawns exe with the given arguments in its own process group.
// Stdin and stdout are pipes; stderr is captured internally.
func (l *Launcher) Start(exe string, args ...string) (*Process, error) {
	cmd := exec.Command(exe, args...)
	cmd.SysProcAttr = sysProcAttr()

	cmd.Env = os.Environ()
	for k, v := range l.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &LaunchError{Path: exe, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Path: exe, Err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, &LaunchError{Path: exe, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: exe, Err: err}
	}

	p := &Process{
		cmd:      cmd,
		path:     exe,
		Stdin:    stdin,
		Stdout:   stdout,
		stderr:   &boundedBuffer{max: stderrPreviewMax},
		copyDone: make(chan struct{}),
	}
	go func() {
		defer close(p.copyDone)
		_, _ = io.Copy(p.stderr, stderrPipe)
	}()

	if l.Logger != nil {
		l.Logger.Debug("target started", "path", exe, "args", args, "pid", cmd.Process.Pid)
	}
	return p, nil
}

// Pid returns the child's process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Interrupt sends the platform's cooperative-cancellation signal to the
// child's process group: SIGINT on POSIX, CTRL_BREAK_EVENT on Windows.
func (p *Process) Interrupt() error {
	return interrupt(p.cmd)
}

// Kill forcibly terminates the child. Used on stall and error paths
// where the child is presumed non-responsive.
func (p *Process) Kill() error {
	return p.cmd.Process.Kill()
}

// Wait reaps the child and returns its exit error, if any. Safe to call
// more than once; only the first call actually waits.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		// The stderr copier sees EOF when the child exits; draining it
		// before reaping avoids losing the tail of the capture.
		<-p.copyDone
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}

// StderrPreview returns up to the first 4 KiB of the child's stderr,
// for inclusion in harness error messages.
func (p *Process) StderrPreview() string {
	return p.stderr.String()
}

// boundedBuffer retains a bounded prefix of everything written to it.
// Writes past the bound are counted and discarded.
type boundedBuffer struct {
	max int

	mu    sync.Mutex
	buf   []byte
	total int64
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	if remaining := b.max - len(b.buf); remaining > 0 {
		if len(p) > remaining {
			b.buf = append(b.buf, p[:remaining]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
