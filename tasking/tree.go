package tasking

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// TreeState is the coarse lifecycle state of a Tree.
type TreeState int32

const (
	// StateIdle means Start has not been called.
	StateIdle TreeState = iota
	// StateRunning means the run is in flight.
	StateRunning
	// StateSuccess means the run finished and the root group succeeded.
	StateSuccess
	// StateFailure means the run finished with failure, was stopped, or
	// was destroyed mid-run.
	StateFailure
)

func (s TreeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// storageHooks holds the per-tree lifecycle hooks registered for one storage
// handle via OnStorageSetup and OnStorageDone.
type storageHooks struct {
	setup []func(any)
	done  []func(any)
}

// Tree executes one compiled task declaration.
//
// A Tree is one-shot: Start runs the declaration exactly once and the tree
// then stays in its terminal state. Compile once with New, run, inspect the
// result; build a new Tree from the same Item to run the declaration again
// (the Item is immutable and freely reusable).
//
// All user callbacks, storage hooks and observers run on the tree's run
// loop, one at a time. Callbacks must not call Start, Stop, Run or Destroy
// on their own tree; driving a different tree (including a nested one) is
// fine.
type Tree struct {
	root      *cnode
	taskCount int

	log    *slog.Logger
	tokens RunTokenGenerator

	observers    []func(Event)
	storageHooks map[*storageShape]*storageHooks

	mu          sync.Mutex
	started     bool
	cancelCause error

	state     atomic.Int32
	destroyed atomic.Bool
	canceled  atomic.Bool
	progress  atomic.Int64
	clock     Clock

	queue     *eventQueue
	rroot     *runNode
	runToken  string
	result    error
	doneCh    chan struct{}
	closeDone sync.Once
}

// TreeOption configures a Tree at construction.
type TreeOption func(*Tree)

// WithLogger sets the structured logger the tree and its run use.
func WithLogger(log *slog.Logger) TreeOption {
	return func(t *Tree) {
		if log != nil {
			t.log = log
		}
	}
}

// WithRunTokens sets the run token generator, normally to a FixedGenerator
// in tests.
func WithRunTokens(g RunTokenGenerator) TreeOption {
	return func(t *Tree) {
		if g != nil {
			t.tokens = g
		}
	}
}

// New compiles the declaration into an executable tree. Malformed
// declarations (duplicate group modifiers, nil handlers where one is
// required, zero storage handles, negative parallel limits) are rejected
// here so a started run can never trip over its own shape.
func New(root Item, opts ...TreeOption) (*Tree, error) {
	c, err := compile(root)
	if err != nil {
		return nil, err
	}
	t := &Tree{
		root:         c,
		taskCount:    c.leafs,
		log:          slog.Default(),
		tokens:       UUIDv7Generator{},
		storageHooks: make(map[*storageShape]*storageHooks),
		queue:        newEventQueue(),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Tree) hooksFor(shape *storageShape) *storageHooks {
	h := t.storageHooks[shape]
	if h == nil {
		h = &storageHooks{}
		t.storageHooks[shape] = h
	}
	return h
}

// Start begins the run and returns without waiting for asynchronous work.
//
// The synchronous prefix of the tree (group entries, storage construction,
// setup handlers, sync nodes, up to the first adapter that does not settle
// immediately) executes on the caller's goroutine before Start returns, so
// storage instances of already-entered groups exist by then. The rest of the
// run proceeds on an internal goroutine. Start on an already started tree is
// a no-op.
func (t *Tree) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	t.state.Store(int32(StateRunning))
	t.runToken = t.tokens.Generate()
	t.rroot = buildRun(t.root, nil)

	t.log.Debug("run started", "run", t.runToken, "tasks", t.taskCount)
	t.emit(TreeStarted, nil, true)

	t.startNode(t.rroot)
	if t.finished() {
		return
	}
	go t.loop()
}

// Run starts the tree and blocks until it finishes or ctx expires. An
// expired context stops the run; the returned error is then a CANCELED
// RunError wrapping the context's error.
func (t *Tree) Run(ctx context.Context) error {
	t.Start()
	select {
	case <-t.doneCh:
	case <-ctx.Done():
		t.mu.Lock()
		t.cancelCause = ctx.Err()
		t.mu.Unlock()
		t.Stop()
	}
	return t.Result()
}

// Stop force-stops a running tree and blocks until it finished. Every
// running node settles through its error path, handlers included, and the
// run's result is a CANCELED RunError. Stopping an idle or finished tree is
// a no-op. Must not be called from the tree's own callbacks.
func (t *Tree) Stop() {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return
	}
	t.queue.Enqueue(treeEvent{kind: eventStop})
	<-t.doneCh
}

// Destroy tears a tree down mid-run and blocks until teardown completed.
//
// From the moment Destroy is called, no further user callback, storage hook
// or observer fires, but storage instances are still destroyed (their
// instance counts return to zero) and running adapters still receive Stop.
// Destroying an idle tree marks it finished; destroying a finished tree is
// a no-op. Must not be called from the tree's own callbacks.
func (t *Tree) Destroy() {
	t.destroyed.Store(true)

	t.mu.Lock()
	started := t.started
	t.started = true
	t.mu.Unlock()

	if !started {
		t.state.Store(int32(StateFailure))
		t.result = &RunError{Code: ErrCodeCanceled, Message: "tree destroyed before start"}
		t.queue.Close()
		t.closeDone.Do(func() { close(t.doneCh) })
		return
	}
	t.queue.Enqueue(treeEvent{kind: eventDestroy})
	<-t.doneCh
}

func (t *Tree) loop() {
	for !t.finished() {
		ev, ok := t.queue.TryDequeue()
		if !ok {
			<-t.queue.Wait()
			continue
		}
		t.processEvent(ev)
	}
}

func (t *Tree) processEvent(ev treeEvent) {
	switch ev.kind {
	case eventReport:
		t.handleReport(ev.node, ev.err)
	case eventStop:
		t.canceled.Store(true)
		if t.rroot.state == nodeRunning {
			t.finalizeGroup(t.rroot, false)
		}
	case eventDestroy:
		if t.rroot.state == nodeRunning {
			t.finalizeGroup(t.rroot, false)
		}
	}
}

// finishRun records the terminal outcome. Called exactly once per run, when
// the root settles.
func (t *Tree) finishRun(success bool) {
	switch {
	case t.destroyed.Load():
		t.result = &RunError{Code: ErrCodeCanceled, Message: "tree destroyed", RunToken: t.runToken}
	case t.canceled.Load():
		t.mu.Lock()
		cause := t.cancelCause
		t.mu.Unlock()
		t.result = &RunError{Code: ErrCodeCanceled, Message: "run stopped", RunToken: t.runToken, Cause: cause}
	case success:
		t.result = nil
	default:
		t.result = &RunError{Code: ErrCodeTaskFailed, Message: "run finished with failure", RunToken: t.runToken}
	}

	t.emit(TreeFinished, nil, t.result == nil)
	if t.result == nil {
		t.state.Store(int32(StateSuccess))
	} else {
		t.state.Store(int32(StateFailure))
	}
	t.log.Debug("run finished", "run", t.runToken, "state", t.State().String(), "progress", t.progress.Load())

	t.queue.Close()
	t.closeDone.Do(func() { close(t.doneCh) })
}

func (t *Tree) finished() bool {
	s := TreeState(t.state.Load())
	return s == StateSuccess || s == StateFailure
}

// TaskCount is the total number of tasks in the declaration: one per task
// leaf and barrier wait, zero per sync node, one per nested sub-tree.
func (t *Tree) TaskCount() int { return t.taskCount }

// ProgressMaximum equals TaskCount; it is the value ProgressValue reaches
// when the run finishes.
func (t *Tree) ProgressMaximum() int { return t.taskCount }

// ProgressValue is the number of tasks retired so far. Finished, skipped
// and force-stopped tasks all count, so a finished run always reports
// ProgressValue == ProgressMaximum however it ended.
func (t *Tree) ProgressValue() int { return int(t.progress.Load()) }

// State returns the tree's lifecycle state.
func (t *Tree) State() TreeState { return TreeState(t.state.Load()) }

// IsRunning reports whether a run is in flight.
func (t *Tree) IsRunning() bool { return t.State() == StateRunning }

// Done returns a channel closed when the run reaches its terminal state.
func (t *Tree) Done() <-chan struct{} { return t.doneCh }

// Result is the run's outcome: nil for success, a RunError otherwise. Only
// valid once Done is closed; before that it returns nil.
func (t *Tree) Result() error { return t.result }

func (t *Tree) scope(n *runNode) *Scope {
	return &Scope{tree: t, node: n}
}

// reporter builds the terminal-report callback handed to a leaf's adapter.
// Reports are enqueued to the run loop from whatever goroutine the adapter
// used; reports arriving after the run finished hit a closed queue and are
// dropped.
func (t *Tree) reporter(n *runNode) func(error) {
	return func(err error) {
		t.queue.Enqueue(treeEvent{kind: eventReport, node: n, err: err})
	}
}
