package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/ZJvandeWeg/rust-red/internal/frame"
	"github.com/ZJvandeWeg/rust-red/internal/launch"
)

const readChunkSize = 4096

type chunk struct {
	data []byte
	err  error
}

// collect pulls stdout chunks through the frame decoder until nexpected
// messages have been yielded (complete=true) or the stream ends
// (complete=false). Each chunk must arrive within opts.ReadTimeout.
//
// collect does not clean up the child; the caller owns the process on
// every return path.
func collect(ctx context.Context, p *launch.Process, nexpected int, opts Options) (msgs []Message, complete bool, err error) {
	if nexpected <= 0 {
		return nil, true, nil
	}

	// One reader goroutine per invocation. It owns the stdout handle and
	// exits when the stream errors, closes, or the collector is done with
	// it; quit keeps it from blocking on a send nobody will drain.
	ch := make(chan chunk, 1)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		buf := make([]byte, readChunkSize)
		for {
			n, rerr := p.Stdout.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case ch <- chunk{data: data}:
				case <-quit:
					return
				}
			}
			if rerr != nil {
				select {
				case ch <- chunk{err: rerr}:
				case <-quit:
				}
				return
			}
		}
	}()

	dec := frame.NewDecoder()
	timer := time.NewTimer(opts.ReadTimeout)
	defer timer.Stop()

	for {
		select {
		case c := <-ch:
			if c.err != nil {
				if errors.Is(c.err, io.EOF) || errors.Is(c.err, fs.ErrClosed) {
					return msgs, false, nil
				}
				return msgs, false, fmt.Errorf("reading target stdout: %w", c.err)
			}

			for _, f := range dec.Feed(c.data) {
				if f.Err != nil {
					if opts.LenientDecode {
						opts.Logger.Warn("skipping malformed frame", "error", f.Err)
						continue
					}
					return msgs, false, f.Err
				}
				msgs = append(msgs, Message{Seq: len(msgs) + 1, Payload: f.Payload})
				opts.Logger.Debug("message collected", "seq", len(msgs), "expected", nexpected)
				if len(msgs) == nexpected {
					return msgs, true, nil
				}
			}

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(opts.ReadTimeout)

		case <-timer.C:
			return msgs, false, &StallError{
				Timeout:   opts.ReadTimeout,
				Collected: len(msgs),
				Stderr:    p.StderrPreview(),
			}

		case <-ctx.Done():
			return msgs, false, ctx.Err()
		}
	}
}
