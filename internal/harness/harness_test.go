package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZJvandeWeg/rust-red/internal/frame"
)

// fakeTargetPath is the protocol-speaking stand-in binary, compiled once
// per test run from testdata/faketarget.
var fakeTargetPath string

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "rust-red-harness-*")
	if err != nil {
		log.Fatalf("creating temp dir: %v", err)
	}

	fakeTargetPath = filepath.Join(tmp, "faketarget")
	if runtime.GOOS == "windows" {
		fakeTargetPath += ".exe"
	}

	cmd := exec.Command("go", "build", "-o", fakeTargetPath, "./testdata/faketarget")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		os.RemoveAll(tmp)
		log.Fatalf("building fake target: %v", err)
	}

	code := m.Run()
	os.RemoveAll(tmp)
	os.Exit(code)
}

func fakeOpts(mode string, extra map[string]string) Options {
	env := map[string]string{"RUSTRED_FAKE_MODE": mode}
	for k, v := range extra {
		env[k] = v
	}
	return Options{Env: env}
}

// flowsFile writes a placeholder flow document for file-driven runs.
// The fake target never parses it; the real one would.
func flowsFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flows.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"100","type":"tab"}]`), 0o644))
	return path
}

func TestRunStdin_RoundTrip(t *testing.T) {
	doc := map[string]any{"topic": "t1", "payload": 10}

	msgs, err := RunStdin(context.Background(), fakeTargetPath, doc, 1, fakeOpts("echo", nil))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	obj := msgs[0].Object()
	require.NotNil(t, obj)
	assert.Equal(t, "t1", obj["topic"])
	assert.Equal(t, json.Number("10"), obj["payload"])
	assert.Equal(t, 1, msgs[0].Seq)
}

func TestRunFile_CollectsInOrder(t *testing.T) {
	opts := fakeOpts("emit", map[string]string{"RUSTRED_FAKE_COUNT": "3"})

	msgs, err := RunFile(context.Background(), fakeTargetPath, flowsFile(t), 3, opts)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	for i, m := range msgs {
		assert.Equal(t, i+1, m.Seq)
		obj := m.Object()
		require.NotNil(t, obj)
		assert.Equal(t, json.Number(fmt.Sprintf("%d", i+1)), obj["seq"])
		assert.Equal(t, fmt.Sprintf("msg-%d", i+1), obj["payload"])
	}
}

func TestRunFile_CountTermination(t *testing.T) {
	// Target offers 10 frames but stays alive; the harness must stop at
	// 2 and shut the child down instead of waiting for more.
	opts := fakeOpts("emit", map[string]string{"RUSTRED_FAKE_COUNT": "10"})

	start := time.Now()
	msgs, err := RunFile(context.Background(), fakeTargetPath, flowsFile(t), 2, opts)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Less(t, time.Since(start), DefaultReadTimeout,
		"count termination must not wait out the read timeout")
}

func TestRunFile_Shortfall(t *testing.T) {
	// Target exits after 2 frames; asking for 5 yields 2 and no error.
	opts := fakeOpts("short", map[string]string{"RUSTRED_FAKE_COUNT": "2"})

	msgs, err := RunFile(context.Background(), fakeTargetPath, flowsFile(t), 5, opts)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestRunFile_Stall(t *testing.T) {
	opts := fakeOpts("stall", nil)
	opts.ReadTimeout = 200 * time.Millisecond

	start := time.Now()
	_, err := RunFile(context.Background(), fakeTargetPath, flowsFile(t), 1, opts)
	require.Error(t, err)
	require.True(t, IsStall(err), "expected stall, got %v", err)

	var stall *StallError
	require.ErrorAs(t, err, &stall)
	assert.Equal(t, 200*time.Millisecond, stall.Timeout)
	assert.Equal(t, 0, stall.Collected)
	assert.Contains(t, stall.Stderr, "faketarget")

	assert.Less(t, time.Since(start), 5*time.Second,
		"stalled child must be killed promptly, not waited for")
}

func TestRunFile_DecodeError_Strict(t *testing.T) {
	msgs, err := RunFile(context.Background(), fakeTargetPath, flowsFile(t), 3, fakeOpts("bad-frame", nil))
	require.Error(t, err)
	assert.True(t, IsDecode(err), "expected decode error, got %v", err)
	assert.Nil(t, msgs)

	var decodeErr *frame.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, `{broken`, decodeErr.Raw)
}

func TestRunFile_DecodeError_Lenient(t *testing.T) {
	opts := fakeOpts("bad-frame", nil)
	opts.LenientDecode = true

	msgs, err := RunFile(context.Background(), fakeTargetPath, flowsFile(t), 2, opts)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	// The malformed frame is skipped; ordinals cover yielded messages only.
	assert.Equal(t, json.Number("1"), msgs[0].Object()["seq"])
	assert.Equal(t, 1, msgs[0].Seq)
	assert.Equal(t, json.Number("3"), msgs[1].Object()["seq"])
	assert.Equal(t, 2, msgs[1].Seq)
}

func TestRunFile_BannerIsDiscarded(t *testing.T) {
	// emit mode prints a banner line before the first separator; it must
	// never surface as a message payload.
	opts := fakeOpts("emit", map[string]string{"RUSTRED_FAKE_COUNT": "1"})

	msgs, err := RunFile(context.Background(), fakeTargetPath, flowsFile(t), 1, opts)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.NotContains(t, fmt.Sprintf("%v", msgs[0].Payload), "banner")
}

func TestRunFile_LaunchError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "rust-red")

	_, err := RunFile(context.Background(), missing, "flows.json", 1, Options{})
	require.Error(t, err)
	assert.True(t, IsLaunch(err), "expected launch error, got %v", err)
}

func TestRun_ZeroExpected(t *testing.T) {
	msgs, err := RunFile(context.Background(), fakeTargetPath, flowsFile(t), 0, fakeOpts("emit", nil))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	opts := fakeOpts("stall", nil)
	// Read timeout longer than the context: cancellation must win.
	opts.ReadTimeout = time.Minute

	start := time.Now()
	_, err := RunFile(ctx, fakeTargetPath, flowsFile(t), 1, opts)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunStdin_GraceKillsStubbornChild(t *testing.T) {
	// stall mode ignores the interrupt entirely. With nexpected=0 the
	// facade goes straight to shutdown; the grace bound must end it.
	opts := fakeOpts("stall", nil)
	opts.Grace = 300 * time.Millisecond

	start := time.Now()
	msgs, err := RunStdin(context.Background(), fakeTargetPath, map[string]any{}, 0, opts)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Less(t, time.Since(start), 10*time.Second)
}
