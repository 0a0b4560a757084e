package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordedRun(t *testing.T) string {
	t.Helper()
	path := writePipeline(t, `
name: traced
pipeline:
  steps:
    - sleep: 10ms
`)
	db := filepath.Join(t.TempDir(), "trace.db")
	_, err := executeCommand("run", path, "--trace-db", db)
	require.NoError(t, err)
	return db
}

func TestTraceCommandListsRuns(t *testing.T) {
	db := recordedRun(t)

	out, err := executeCommand("trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "success")
	assert.NotContains(t, out, "no recorded runs")
}

func TestTraceCommandPrintsTimeline(t *testing.T) {
	db := recordedRun(t)

	listing, err := executeCommand("trace", "--db", db, "--format", "json")
	require.NoError(t, err)
	var runs []struct {
		Token string `json:"Token"`
	}
	require.NoError(t, json.Unmarshal([]byte(listing), &runs))
	require.Len(t, runs, 1)

	out, err := executeCommand("trace", "--db", db, "--run", runs[0].Token)
	require.NoError(t, err)
	assert.Contains(t, out, "tree_started")
	assert.Contains(t, out, "tree_finished")
	assert.Contains(t, out, "outcome: success")
}

func TestTraceCommandJSONTimeline(t *testing.T) {
	db := recordedRun(t)

	listing, err := executeCommand("trace", "--db", db, "--format", "json")
	require.NoError(t, err)
	var runs []struct {
		Token string `json:"Token"`
	}
	require.NoError(t, json.Unmarshal([]byte(listing), &runs))
	require.Len(t, runs, 1)

	out, err := executeCommand("trace", "--db", db, "--run", runs[0].Token, "--format", "json")
	require.NoError(t, err)

	var result TraceResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, runs[0].Token, result.RunToken)
	assert.Equal(t, "success", result.Outcome)
	assert.NotEmpty(t, result.Timeline)
}

func TestTraceCommandUnknownRun(t *testing.T) {
	db := recordedRun(t)

	_, err := executeCommand("trace", "--db", db, "--run", "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceCommandEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	out, err := executeCommand("trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "no recorded runs")
}

func TestFormatTimelineGolden(t *testing.T) {
	result := TraceResult{
		RunToken: "golden-run",
		Outcome:  "failure",
		Timeline: []TraceEvent{
			{Seq: 1, Type: "tree_started", Success: true, Progress: 0, At: "2026-03-01T12:00:00Z"},
			{Seq: 2, Type: "group_entered", Success: true, Progress: 0, At: "2026-03-01T12:00:00Z"},
			{Seq: 3, Type: "task_started", Path: "0", Success: true, Progress: 0, At: "2026-03-01T12:00:00Z"},
			{Seq: 4, Type: "task_done", Path: "0", Success: false, Progress: 1, At: "2026-03-01T12:00:01Z"},
			{Seq: 5, Type: "group_exited", Success: false, Progress: 1, At: "2026-03-01T12:00:01Z"},
			{Seq: 6, Type: "tree_finished", Success: false, Progress: 1, At: "2026-03-01T12:00:01Z"},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "trace_timeline", []byte(FormatTimeline(result)))
}

func TestInvalidFormatRejected(t *testing.T) {
	_, err := executeCommand("trace", "--db", "x", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
