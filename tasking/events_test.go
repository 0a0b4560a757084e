package tasking

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bareTask(err error) Item {
	return TaskFor(
		func() *instantAdapter { return &instantAdapter{err: err} },
		nil, nil, nil)
}

// canonicalTree is the fixed sequential tree the event tests run: a task, a
// nested group with one task, and a sync node.
func canonicalTree() Item {
	return Group(
		Sequential,
		bareTask(nil),
		Group(bareTask(nil)),
		Sync(func(*Scope) {}),
	)
}

func collectEvents(t *testing.T, root Item, opts ...TreeOption) ([]Event, *Tree) {
	t.Helper()
	tree, err := New(root, opts...)
	require.NoError(t, err)

	var events []Event
	tree.Observe(func(ev Event) { events = append(events, ev) })
	require.NoError(t, tree.Run(context.Background()))
	return events, tree
}

func TestTreeObserverEvents(t *testing.T) {
	events, _ := collectEvents(t, canonicalTree(),
		WithRunTokens(NewFixedGenerator("run-1")))

	var types []EventType
	var last int64
	for _, ev := range events {
		types = append(types, ev.Type)
		assert.Equal(t, "run-1", ev.RunToken)
		assert.Greater(t, ev.Seq, last)
		last = ev.Seq
	}
	assert.Equal(t, []EventType{
		TreeStarted,
		GroupEntered,
		TaskStarted, TaskDone,
		GroupEntered, TaskStarted, TaskDone, GroupExited,
		TaskDone,
		GroupExited,
		TreeFinished,
	}, types)

	final := events[len(events)-1]
	assert.True(t, final.Success)
	assert.Equal(t, 2, final.Progress)
}

func TestTreeObserverSuppressedAfterDestroy(t *testing.T) {
	l := &execLog{}
	tree, err := New(Group(blockedTask(l, 0)))
	require.NoError(t, err)

	var count int
	tree.Observe(func(Event) { count++ })

	tree.Start()
	seen := count
	tree.Destroy()

	assert.Equal(t, seen, count)
}

func renderEvents(events []Event) []byte {
	var b strings.Builder
	for _, ev := range events {
		path := ev.Path
		if path == "" {
			path = "-"
		}
		outcome := "ok"
		if !ev.Success {
			outcome = "err"
		}
		fmt.Fprintf(&b, "%02d %-13s %-4s %s progress=%d\n",
			ev.Seq, ev.Type, path, outcome, ev.Progress)
	}
	return []byte(b.String())
}

func TestTreeEventsGolden(t *testing.T) {
	events, _ := collectEvents(t, canonicalTree(),
		WithRunTokens(NewFixedGenerator("golden-run")))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "canonical_run", renderEvents(events))
}
