package scenario

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ZJvandeWeg/rust-red/internal/flows"
	"github.com/ZJvandeWeg/rust-red/internal/harness"
)

func TestMatchSubset_ScalarEquality(t *testing.T) {
	assert.True(t, MatchSubset("hello", "hello"))
	assert.False(t, MatchSubset("hello", "world"))
	assert.True(t, MatchSubset(true, true))
	assert.True(t, MatchSubset(nil, nil))
}

func TestMatchSubset_NumberForms(t *testing.T) {
	// Wire payloads carry json.Number; YAML expectations carry int or
	// float64. Same numeric text must match.
	assert.True(t, MatchSubset(json.Number("10"), 10))
	assert.True(t, MatchSubset(json.Number("2.5"), 2.5))
	assert.False(t, MatchSubset(json.Number("10"), 11))
}

func TestMatchSubset_ObjectSubset(t *testing.T) {
	actual := map[string]any{
		"payload": "hello",
		"topic":   "t1",
		"_msgid":  "abc123",
	}

	assert.True(t, MatchSubset(actual, map[string]any{"payload": "hello"}))
	assert.True(t, MatchSubset(actual, map[string]any{"payload": "hello", "topic": "t1"}))
	assert.False(t, MatchSubset(actual, map[string]any{"payload": "bye"}))
	assert.False(t, MatchSubset(actual, map[string]any{"missing": "x"}))
}

func TestMatchSubset_NestedObjects(t *testing.T) {
	actual := map[string]any{
		"payload": map[string]any{"a": json.Number("1"), "b": json.Number("2")},
	}

	assert.True(t, MatchSubset(actual, map[string]any{
		"payload": map[string]any{"a": 1},
	}))
	assert.False(t, MatchSubset(actual, map[string]any{
		"payload": map[string]any{"a": 2},
	}))
}

func TestMatchSubset_ArraysCompareExactly(t *testing.T) {
	actual := map[string]any{"payload": []any{json.Number("1"), json.Number("2")}}

	assert.True(t, MatchSubset(actual, map[string]any{"payload": []any{1, 2}}))
	assert.False(t, MatchSubset(actual, map[string]any{"payload": []any{1}}))
}

func TestMatchSubset_ObjectAgainstScalar(t *testing.T) {
	assert.False(t, MatchSubset("scalar", map[string]any{"k": "v"}))
}

func testScenario(expect int, messages ...map[string]any) *Scenario {
	return &Scenario{
		Name:     "t",
		Flows:    []flows.Node{{"id": "100", "type": "tab"}},
		Expect:   expect,
		Messages: messages,
	}
}

func msgList(payloads ...any) []harness.Message {
	msgs := make([]harness.Message, len(payloads))
	for i, p := range payloads {
		msgs[i] = harness.Message{Seq: i + 1, Payload: p}
	}
	return msgs
}

func TestAssertMessages_AllPass(t *testing.T) {
	sc := testScenario(2,
		map[string]any{"payload": "hello"},
		map[string]any{"payload": "world"},
	)
	msgs := msgList(
		map[string]any{"payload": "hello", "topic": "t1"},
		map[string]any{"payload": "world"},
	)

	assert.Empty(t, assertMessages(sc, msgs))
}

func TestAssertMessages_CountMismatch(t *testing.T) {
	sc := testScenario(3)
	msgs := msgList(map[string]any{"payload": "only-one"})

	failures := assertMessages(sc, msgs)
	assert.Len(t, failures, 1)
	assert.Contains(t, failures[0], "expected 3 message(s), collected 1")
}

func TestAssertMessages_SubsetViolation(t *testing.T) {
	sc := testScenario(1, map[string]any{"payload": "expected"})
	msgs := msgList(map[string]any{"payload": "actual"})

	failures := assertMessages(sc, msgs)
	assert.Len(t, failures, 1)
	assert.Contains(t, failures[0], "message 1")
}

func TestAssertMessages_MissingMessage(t *testing.T) {
	sc := testScenario(2,
		map[string]any{"payload": "a"},
		map[string]any{"payload": "b"},
	)
	msgs := msgList(map[string]any{"payload": "a"})

	failures := assertMessages(sc, msgs)
	// Count mismatch plus the unmatched second expectation.
	assert.Len(t, failures, 2)
}
