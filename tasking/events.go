package tasking

import "time"

// EventType describes an observer event's kind.
type EventType int

const (
	// TreeStarted fires once when a run begins, before the root is entered.
	TreeStarted EventType = iota + 1

	// TreeFinished fires once when the run reaches its terminal state.
	TreeFinished

	// TaskStarted fires when a leaf's adapter (or barrier wait) starts.
	TaskStarted

	// TaskDone fires when a leaf settles: adapter report, setup
	// short-circuit, barrier release or force-stop.
	TaskDone

	// GroupEntered fires when a group is entered, after its storage
	// instances exist.
	GroupEntered

	// GroupExited fires when a group settles, after its storage instances
	// are destroyed.
	GroupExited
)

// String returns the stable name used in logs and recorded traces.
func (t EventType) String() string {
	switch t {
	case TreeStarted:
		return "tree_started"
	case TreeFinished:
		return "tree_finished"
	case TaskStarted:
		return "task_started"
	case TaskDone:
		return "task_done"
	case GroupEntered:
		return "group_entered"
	case GroupExited:
		return "group_exited"
	default:
		return "unknown"
	}
}

// Event is a snapshot-based lifecycle notification. Events carry no
// pointers into the run arena, so observers may retain them freely.
//
// Events are delivered synchronously on the run loop, in the exact order
// the scheduler produced them; an observer must not call back into the
// emitting tree. Seq is per run and strictly increasing. Path is the
// node's position in the compiled tree as slash-joined child indexes
// ("" for the root, "0/2" for the third child of the first child).
type Event struct {
	Type     EventType
	RunToken string
	Seq      int64
	Path     string
	Success  bool
	Progress int
	Time     time.Time
}

// Observe registers an observer receiving every lifecycle event of this
// tree's runs. Register before Start.
func (t *Tree) Observe(fn func(Event)) {
	if fn == nil {
		return
	}
	t.observers = append(t.observers, fn)
}

// emit stamps and delivers one event. Suppressed entirely once the tree is
// destroyed, like every other callback.
func (t *Tree) emit(typ EventType, n *runNode, success bool) {
	if t.destroyed.Load() || len(t.observers) == 0 {
		return
	}
	path := ""
	if n != nil {
		path = n.c.path
	}
	ev := Event{
		Type:     typ,
		RunToken: t.runToken,
		Seq:      t.clock.Next(),
		Path:     path,
		Success:  success,
		Progress: int(t.progress.Load()),
		Time:     time.Now(),
	}
	for _, fn := range t.observers {
		fn(ev)
	}
}
