package scenario

import (
	"bytes"
	"fmt"

	"github.com/ZJvandeWeg/rust-red/internal/canonical"
	"github.com/ZJvandeWeg/rust-red/internal/harness"
)

// MatchSubset reports whether actual satisfies expected: objects match
// when every expected key matches recursively (extra actual keys are
// fine), everything else matches by canonical-JSON equality, which makes
// YAML's int 10 equal the wire's json.Number("10").
func MatchSubset(actual, expected any) bool {
	expObj, expIsObj := expected.(map[string]any)
	actObj, actIsObj := actual.(map[string]any)

	if expIsObj {
		if !actIsObj {
			return false
		}
		for k, expVal := range expObj {
			actVal, ok := actObj[k]
			if !ok || !MatchSubset(actVal, expVal) {
				return false
			}
		}
		return true
	}

	actBytes, err := canonical.Marshal(actual)
	if err != nil {
		return false
	}
	expBytes, err := canonical.Marshal(expected)
	if err != nil {
		return false
	}
	return bytes.Equal(actBytes, expBytes)
}

// assertMessages checks collected messages against a scenario's
// expectations and returns one failure string per violated expectation.
func assertMessages(sc *Scenario, msgs []harness.Message) []string {
	var failures []string

	if len(msgs) != sc.Expect {
		failures = append(failures, fmt.Sprintf(
			"expected %d message(s), collected %d", sc.Expect, len(msgs)))
	}

	for i, want := range sc.Messages {
		if i >= len(msgs) {
			failures = append(failures, fmt.Sprintf(
				"message %d: expected subset %v but no message was collected", i+1, want))
			continue
		}
		if !MatchSubset(msgs[i].Payload, map[string]any(want)) {
			failures = append(failures, fmt.Sprintf(
				"message %d: %s does not contain expected subset %v",
				i+1, renderPayload(msgs[i].Payload), want))
		}
	}

	return failures
}

func renderPayload(v any) string {
	b, err := canonical.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
