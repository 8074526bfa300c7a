package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZJvandeWeg/rust-red/internal/report"
)

func seededDatabase(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	store, err := report.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.RecordRun(ctx, report.Run{
		Scenario:  "first",
		Status:    report.StatusPass,
		Expected:  2,
		Collected: 2,
		Duration:  120 * time.Millisecond,
		StartedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.RecordRun(ctx, report.Run{
		Scenario:  "second",
		Status:    report.StatusStall,
		Expected:  3,
		Collected: 1,
		Duration:  8 * time.Second,
		StartedAt: time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC),
	}))
	return dbPath
}

func TestRunsCommand_ListsNewestFirst(t *testing.T) {
	dbPath := seededDatabase(t)

	out, _, err := execute(t, "", "runs", "--db", dbPath)
	require.NoError(t, err)

	secondIdx := strings.Index(out, "second")
	firstIdx := strings.Index(out, "first")
	require.GreaterOrEqual(t, secondIdx, 0)
	require.GreaterOrEqual(t, firstIdx, 0)
	assert.Less(t, secondIdx, firstIdx)
	assert.Contains(t, out, "stall")
	assert.Contains(t, out, "1/3")
}

func TestRunsCommand_Limit(t *testing.T) {
	dbPath := seededDatabase(t)

	out, _, err := execute(t, "", "runs", "--db", dbPath, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "second")
	assert.NotContains(t, out, "first")
}

func TestRunsCommand_JSONFormat(t *testing.T) {
	dbPath := seededDatabase(t)

	out, _, err := execute(t, "", "runs", "--db", dbPath, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	records, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, records, 2)
}

func TestRunsCommand_EmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := report.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, _, err := execute(t, "", "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestRunsCommand_RequiresDatabaseFlag(t *testing.T) {
	_, _, err := execute(t, "", "runs")
	require.Error(t, err)
}
