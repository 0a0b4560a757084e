package tasking

// TaskAction is the decision a setup callback may return to short-circuit a
// node before its adapter starts.
//
// Continue is the zero value: proceed and start the adapter. StopWithDone and
// StopWithError skip the adapter entirely and settle the node as succeeded or
// failed. A short-circuited task fires neither its done nor its error
// callback (only the setup callback ran); a short-circuited group still fires
// its own done/error callback, since the group reached a terminal outcome.
type TaskAction int

const (
	// Continue starts the node normally.
	Continue TaskAction = iota

	// StopWithDone settles the node as succeeded without starting it.
	StopWithDone

	// StopWithError settles the node as failed without starting it.
	StopWithError
)

// WorkflowPolicy governs how a group reacts to its children's terminal
// outcomes: whether further children are admitted, and what the group's own
// final outcome is once it stops admitting.
type WorkflowPolicy int

const (
	// StopOnError stops the group with failure on the first child error.
	// All children succeeding yields group success. This is the default.
	StopOnError WorkflowPolicy = iota

	// ContinueOnError keeps admitting children after an error, but any
	// child error forces the group's final outcome to failure.
	ContinueOnError

	// StopOnDone stops the group with success on the first child success.
	// A group that runs out of children without any success fails.
	StopOnDone

	// ContinueOnDone keeps admitting children after a success; the group
	// succeeds iff at least one child succeeded.
	ContinueOnDone

	// StopOnFinished stops the group on the first terminal child, adopting
	// that child's outcome. Still-running siblings are force-stopped
	// through their error path.
	StopOnFinished

	// Optional ignores child outcomes entirely: the group succeeds once
	// every child was admitted and settled.
	Optional
)

// Adapter is the uniform contract every asynchronous operation must expose
// to the engine.
//
// The engine calls Start exactly once per started leaf. The adapter must
// call report exactly once, from any goroutine, with nil for success or a
// non-nil error for failure. Stop requests cancellation of an in-flight
// operation; after Stop the engine ignores any late report, so adapters do
// not need to suppress it themselves. A fresh adapter instance is created
// for every execution of the declaring leaf.
type Adapter interface {
	Start(report func(error))
	Stop()
}

// itemKind discriminates the TaskItem variants. Modifier kinds (mode,
// policy, group handlers, storage declarations) are folded into their
// enclosing group's configuration during compilation and produce no
// run-node of their own.
type itemKind int

const (
	kindGroup itemKind = iota
	kindTask
	kindSync
	kindBarrierWait
	kindStorage
	kindMode
	kindPolicy
	kindGroupSetup
	kindGroupDone
	kindGroupError
)

// Item is one node of the declarative tree: a group, a task, a sync node, a
// barrier participant, or a group modifier. Items are immutable values;
// trees are built by nesting Group literals and compiled by New, never
// mutated in place.
type Item struct {
	kind       itemKind
	children   []Item
	limit      int // kindMode: 1 sequential, 0 unbounded, n parallel slots
	policy     WorkflowPolicy
	groupSetup func(*Scope) TaskAction
	groupHook  func(*Scope) // kindGroupDone / kindGroupError
	task       *taskSpec
	sync       func(*Scope) bool
	shape      *storageShape // kindStorage / kindBarrierWait
}

// taskSpec is the type-erased description of one leaf task. The generic
// TaskFor constructor erases the concrete adapter type via closures, so the
// rest of the engine deals with plain Adapters.
type taskSpec struct {
	create func() Adapter
	setup  func(*Scope, Adapter) TaskAction
	done   func(*Scope, Adapter)
	fail   func(*Scope, Adapter)
}

// Group composes children into one node. The children slice may freely mix
// ordinary nodes with modifiers: an execution mode, a workflow policy,
// storage declarations and group-level handlers. Declaration order of the
// ordinary children is significant: it is the start order in every execution
// mode and the admission order under a parallel limit.
func Group(children ...Item) Item {
	// Copy to keep the item immutable if the caller mutates its slice.
	kids := make([]Item, len(children))
	copy(kids, children)
	return Item{kind: kindGroup, children: kids}
}

// Sequential runs a group's children one at a time, in declared order.
// Groups default to sequential execution.
var Sequential = Item{kind: kindMode, limit: 1}

// Parallel admits all of a group's children immediately, in declared order.
var Parallel = Item{kind: kindMode, limit: 0}

// ParallelLimit admits at most limit children simultaneously; a freed slot
// admits the next not-yet-started child in declared order. Each immediate
// child counts as one slot regardless of how many leaves it contains.
// ParallelLimit(1) is Sequential, ParallelLimit(0) is Parallel.
func ParallelLimit(limit int) Item {
	return Item{kind: kindMode, limit: limit}
}

// Workflow sets the group's workflow policy.
func Workflow(policy WorkflowPolicy) Item {
	return Item{kind: kindPolicy, policy: policy}
}

// OnGroupSetup installs a handler fired once when the group is entered,
// after its storage instances exist. The returned TaskAction may
// short-circuit the whole group before any child starts.
func OnGroupSetup(handler func(*Scope) TaskAction) Item {
	return Item{kind: kindGroupSetup, groupSetup: handler}
}

// OnGroupDone installs a handler fired once if the group's final outcome is
// success, before its storage instances are destroyed.
func OnGroupDone(handler func(*Scope)) Item {
	return Item{kind: kindGroupDone, groupHook: handler}
}

// OnGroupError installs a handler fired once if the group's final outcome is
// failure, including when the group is force-stopped by a sibling or an
// enclosing policy.
func OnGroupError(handler func(*Scope)) Item {
	return Item{kind: kindGroupError, groupHook: handler}
}

// Sync wraps an inline synchronous function as a node. The node settles as
// succeeded immediately after fn returns. Sync nodes do not count as tasks
// for progress reporting.
func Sync(fn func(*Scope)) Item {
	if fn == nil {
		return Item{kind: kindSync}
	}
	return Item{kind: kindSync, sync: func(s *Scope) bool {
		fn(s)
		return true
	}}
}

// SyncBool is Sync for functions that decide success themselves: returning
// false settles the node as failed.
func SyncBool(fn func(*Scope) bool) Item {
	return Item{kind: kindSync, sync: fn}
}

// Task declares a leaf over a type-erased adapter. Most callers want the
// typed TaskFor instead. setup may be nil; done and fail may independently
// be nil.
func Task(create func() Adapter, setup func(*Scope, Adapter) TaskAction, done, fail func(*Scope, Adapter)) Item {
	return Item{kind: kindTask, task: &taskSpec{create: create, setup: setup, done: done, fail: fail}}
}

// TaskFor declares a leaf task over a concrete adapter type. create builds a
// fresh adapter per execution; setup configures it before Start and may
// return a TaskAction to short-circuit; done/fail receive the adapter after
// its single terminal report. Any handler may be nil.
func TaskFor[A Adapter](create func() A, setup func(*Scope, A) TaskAction, done, fail func(*Scope, A)) Item {
	spec := &taskSpec{}
	if create != nil {
		spec.create = func() Adapter { return create() }
	}
	if setup != nil {
		spec.setup = func(s *Scope, a Adapter) TaskAction { return setup(s, a.(A)) }
	}
	if done != nil {
		spec.done = func(s *Scope, a Adapter) { done(s, a.(A)) }
	}
	if fail != nil {
		spec.fail = func(s *Scope, a Adapter) { fail(s, a.(A)) }
	}
	return Item{kind: kindTask, task: spec}
}

// TreeTask embeds a nested Tree as a single opaque leaf. setup builds and
// returns the sub-tree; returning nil settles the leaf as failed without
// starting anything. The parent counts the leaf as one task regardless of
// the sub-tree's internal leaf count. Force-stopping the leaf destroys the
// sub-tree, suppressing the sub-tree's remaining callbacks.
func TreeTask(setup func(*Scope) *Tree) Item {
	return TaskFor(
		func() *subtreeAdapter { return &subtreeAdapter{} },
		func(s *Scope, a *subtreeAdapter) TaskAction {
			if setup != nil {
				a.tree = setup(s)
			}
			if a.tree == nil {
				return StopWithError
			}
			return Continue
		},
		nil, nil)
}

// subtreeAdapter drives a nested Tree through the Adapter contract.
type subtreeAdapter struct {
	tree *Tree
}

func (a *subtreeAdapter) Start(report func(error)) {
	a.tree.Start()
	go func() {
		<-a.tree.Done()
		report(a.tree.Result())
	}()
}

func (a *subtreeAdapter) Stop() {
	a.tree.Destroy()
}
