package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Wire framing constants for the target's stdout protocol.
//
// Each message is introduced by an ASCII record separator and terminated
// by a line feed. Anything before the first separator (startup banners,
// stray log lines) is not a message.
const (
	RecordSeparator byte = 0x1e
	Terminator      byte = '\n'
)

// Frame is one completed message unit extracted from the stream.
//
// Payload holds the decoded JSON value (numbers as json.Number).
// If the payload text was not valid JSON, Err is set and Payload is nil;
// the decoder keeps scanning, so a bad frame never hides later ones.
type Frame struct {
	// Raw is the payload text between the separator and the terminator.
	Raw string

	// Payload is the decoded JSON value, nil when Err is set.
	Payload any

	// Err is the JSON decode failure for this frame, if any.
	Err error
}

// DecodeError reports a frame whose payload failed JSON parsing.
type DecodeError struct {
	Raw string // offending payload text
	Err error  // underlying JSON error
}

func (e *DecodeError) Error() string {
	raw := e.Raw
	if len(raw) > 80 {
		raw = raw[:80] + "..."
	}
	return fmt.Sprintf("malformed frame %q: %v", raw, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder incrementally splits a byte stream into frames.
//
// Feed appends a chunk and returns every frame the chunk completed.
// State between calls is at most one partial trailing frame: completed
// frames are removed from the buffer immediately, and bytes that precede
// a record separator are discarded as soon as they are known not to
// contain one. Only the newly appended region is ever rescanned.
//
// Decoder is not safe for concurrent use. One stream, one decoder.
type Decoder struct {
	buf []byte

	// inFrame is true once a record separator has been consumed and the
	// terminator for its frame has not yet arrived. buf then holds the
	// partial payload.
	inFrame bool

	// scanned marks how far buf has already been searched, so a payload
	// split across many reads is not rescanned from its separator each
	// time more bytes arrive.
	scanned int
}

// NewDecoder returns a Decoder with an empty buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the internal buffer and extracts every frame that
// is now complete, in stream order. Malformed payloads are returned as
// frames with Err set; scanning continues past them.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		if !d.inFrame {
			i := bytes.IndexByte(d.buf[d.scanned:], RecordSeparator)
			if i < 0 {
				// All buffered bytes are pre-frame noise. Nothing before a
				// separator can ever become part of a payload, so drop it.
				d.buf = d.buf[:0]
				d.scanned = 0
				return frames
			}
			d.buf = d.buf[d.scanned+i+1:]
			d.scanned = 0
			d.inFrame = true
		}

		j := bytes.IndexByte(d.buf[d.scanned:], Terminator)
		if j < 0 {
			// Partial payload. Remember how far we looked and wait for
			// the next chunk to deliver the terminator.
			d.scanned = len(d.buf)
			return frames
		}

		raw := string(d.buf[:d.scanned+j])
		d.buf = d.buf[d.scanned+j+1:]
		d.scanned = 0
		d.inFrame = false

		frames = append(frames, decodePayload(raw))
	}
}

// Pending reports whether the decoder is holding a partial frame.
func (d *Decoder) Pending() bool {
	return d.inFrame
}

func decodePayload(raw string) Frame {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Frame{Raw: raw, Err: &DecodeError{Raw: raw, Err: err}}
	}
	// Reject trailing garbage after the JSON document.
	if dec.More() {
		return Frame{Raw: raw, Err: &DecodeError{Raw: raw, Err: fmt.Errorf("trailing data after JSON document")}}
	}
	return Frame{Raw: raw, Payload: v}
}
