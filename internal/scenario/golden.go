package scenario

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/ZJvandeWeg/rust-red/internal/canonical"
	"github.com/ZJvandeWeg/rust-red/internal/harness"
)

// Snapshot renders collected messages for golden comparison: one
// canonical JSON payload per line, in stream order. Line-per-message
// keeps golden diffs readable when a flow changes.
func Snapshot(msgs []harness.Message) ([]byte, error) {
	var buf bytes.Buffer
	for _, m := range msgs {
		b, err := canonical.Marshal(m.Payload)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", m.Seq, err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// AssertGolden compares the messages against testdata/<name>.golden.
// Regenerate with: go test ./... -update
func AssertGolden(t *testing.T, name string, msgs []harness.Message) {
	t.Helper()

	snap, err := Snapshot(msgs)
	if err != nil {
		t.Fatalf("building snapshot for %s: %v", name, err)
	}

	g := goldie.New(t)
	g.Assert(t, name, snap)
}
