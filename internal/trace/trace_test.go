package trace

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poa00/tasktree/tasking"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ev(token string, seq int64, typ tasking.EventType, path string, success bool, progress int) tasking.Event {
	return tasking.Event{
		Type:     typ,
		RunToken: token,
		Seq:      seq,
		Path:     path,
		Success:  success,
		Progress: progress,
		Time:     time.Date(2026, 3, 1, 12, 0, 0, int(seq)*1000, time.UTC),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	events := []tasking.Event{
		ev("run-1", 1, tasking.TreeStarted, "", true, 0),
		ev("run-1", 2, tasking.GroupEntered, "", true, 0),
		ev("run-1", 3, tasking.TaskStarted, "0", true, 0),
		ev("run-1", 4, tasking.TaskDone, "0", false, 1),
		ev("run-1", 5, tasking.GroupExited, "", false, 1),
		ev("run-1", 6, tasking.TreeFinished, "", false, 1),
	}
	for _, e := range events {
		require.NoError(t, s.WriteEvent(ctx, e))
	}

	records, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, int64(1), records[0].Seq)
	assert.Equal(t, "tree_started", records[0].Type)
	assert.Equal(t, "0", records[2].Path)
	assert.False(t, records[3].Success)
	assert.Equal(t, 1, records[3].Progress)
	assert.True(t, events[0].Time.Equal(records[0].At))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].Token)
	assert.Equal(t, "failure", runs[0].Outcome)
	assert.False(t, runs[0].FinishedAt.IsZero())
}

func TestStoreWriteIsIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	e := ev("run-1", 1, tasking.TreeStarted, "", true, 0)
	require.NoError(t, s.WriteEvent(ctx, e))
	require.NoError(t, s.WriteEvent(ctx, e))

	records, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStoreUnknownRunIsEmpty(t *testing.T) {
	s := setupStore(t)

	records, err := s.ReadRun(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, records)

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStoreOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, s2.Close())
}

func TestStoreRecordsLiveRun(t *testing.T) {
	s := setupStore(t)

	tree, err := tasking.New(
		tasking.Group(tasking.Sync(func(*tasking.Scope) {})),
		tasking.WithRunTokens(tasking.NewFixedGenerator("live-run")),
	)
	require.NoError(t, err)
	tree.Observe(s.Observer(nil))

	require.NoError(t, tree.Run(context.Background()))

	records, err := s.ReadRun(context.Background(), "live-run")
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, "tree_started", records[0].Type)
	assert.Equal(t, "tree_finished", records[len(records)-1].Type)

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "success", runs[0].Outcome)
}
