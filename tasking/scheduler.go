package tasking

// runNode is the per-run mutable state of one plan node. A fresh arena of
// run-nodes is built for every Start, so the compiled plan itself stays
// untouched. All fields are owned by the run loop after the synchronous
// start prefix completes.
type runNode struct {
	c      *cnode
	parent *runNode

	children []*runNode
	state    nodeState
	success  bool

	// group bookkeeping
	next      int // admission cursor into children
	active    int // children currently running
	anyDone   bool
	anyError  bool
	admitting bool

	storages map[*storageShape]any
	adapter  Adapter
}

type nodeState int8

const (
	nodePending nodeState = iota
	nodeRunning
	nodeSettled
)

func buildRun(c *cnode, parent *runNode) *runNode {
	n := &runNode{c: c, parent: parent}
	for _, cc := range c.children {
		n.children = append(n.children, buildRun(cc, n))
	}
	return n
}

func (t *Tree) startNode(n *runNode) {
	// A destroy observed mid-cascade must not bring any further node
	// online; the node retires through its skip path instead.
	if t.destroyed.Load() {
		t.skipNode(n)
		t.notifySettled(n, false)
		return
	}
	switch n.c.kind {
	case kindGroup:
		t.enterGroup(n)
	case kindTask:
		t.startTask(n)
	case kindSync:
		t.startSync(n)
	case kindBarrierWait:
		t.startBarrierWait(n)
	}
}

// enterGroup brings a group online: storage instances first, then the group
// setup handler, then child admission. A setup short-circuit settles the
// group immediately but still runs its own done or error handler.
func (t *Tree) enterGroup(n *runNode) {
	n.state = nodeRunning

	if len(n.c.shapes) > 0 {
		n.storages = make(map[*storageShape]any, len(n.c.shapes))
		for _, shape := range n.c.shapes {
			inst := shape.ctor()
			n.storages[shape] = inst
			shape.live.Add(1)
			if hooks := t.storageHooks[shape]; hooks != nil && !t.destroyed.Load() {
				for _, fn := range hooks.setup {
					fn(inst)
				}
			}
		}
	}

	t.emit(GroupEntered, n, true)

	if n.c.setup != nil && !t.destroyed.Load() {
		switch n.c.setup(t.scope(n)) {
		case StopWithDone:
			t.finalizeGroup(n, true)
			return
		case StopWithError:
			t.finalizeGroup(n, false)
			return
		}
	}

	t.admitChildren(n)
}

// admitChildren starts pending children up to the group's parallel limit.
// Children that settle synchronously re-enter the scheduler through
// childSettled while the admission loop is still on the stack; the admitting
// guard folds those recursive admission attempts into the running loop. This
// is also the single place a group is detected as complete.
func (t *Tree) admitChildren(n *runNode) {
	if n.admitting {
		return
	}
	n.admitting = true
	for n.state == nodeRunning && n.next < len(n.children) &&
		(n.c.limit == 0 || n.active < n.c.limit) {
		child := n.children[n.next]
		n.next++
		n.active++
		t.startNode(child)
	}
	n.admitting = false

	if n.state == nodeRunning && n.next >= len(n.children) && n.active == 0 {
		t.finalizeGroup(n, endOutcome(n))
	}
}

// endOutcome is the group result when every child has settled without the
// workflow policy cutting the run short. Childless groups land here too and
// succeed under every policy.
func endOutcome(n *runNode) bool {
	if len(n.children) == 0 {
		return true
	}
	switch n.c.policy {
	case StopOnDone, ContinueOnDone:
		return n.anyDone
	case Optional:
		return true
	default:
		return !n.anyError
	}
}

// childSettled folds one child's result into its group and applies the
// workflow policy. Stopping policies settle the whole group synchronously,
// force-stopping the remaining siblings in declared order.
func (t *Tree) childSettled(n *runNode, success bool) {
	if n.state != nodeRunning {
		return
	}
	n.active--
	if success {
		n.anyDone = true
	} else {
		n.anyError = true
	}

	switch n.c.policy {
	case StopOnError:
		if !success {
			t.finalizeGroup(n, false)
			return
		}
	case StopOnDone:
		if success {
			t.finalizeGroup(n, true)
			return
		}
	case StopOnFinished:
		t.finalizeGroup(n, success)
		return
	}

	t.admitChildren(n)
}

// finalizeGroup settles the group and reports the result upward. settleGroup
// alone is used when an ancestor is force-stopping this group and is already
// mid-decision, so no upward report may fire.
func (t *Tree) finalizeGroup(n *runNode, success bool) {
	t.settleGroup(n, success)
	t.notifySettled(n, success)
}

func (t *Tree) settleGroup(n *runNode, success bool) {
	if n.state == nodeSettled {
		return
	}
	n.state = nodeSettled
	n.success = success

	for _, child := range n.children {
		if child.state == nodeRunning {
			t.stopNode(child)
		}
	}
	for i := n.next; i < len(n.children); i++ {
		t.skipNode(n.children[i])
	}
	n.next = len(n.children)
	n.active = 0

	if !t.destroyed.Load() {
		if success && n.c.done != nil {
			n.c.done(t.scope(n))
		}
		if !success && n.c.fail != nil {
			n.c.fail(t.scope(n))
		}
	}
	t.teardownStorages(n)
	t.emit(GroupExited, n, success)
}

func (t *Tree) notifySettled(n *runNode, success bool) {
	if n.parent == nil {
		t.finishRun(success)
		return
	}
	t.childSettled(n.parent, success)
}

// stopNode force-stops a running node down its error path without reporting
// upward: the parent is the one doing the stopping and already knows.
func (t *Tree) stopNode(n *runNode) {
	switch n.c.kind {
	case kindGroup:
		t.settleGroup(n, false)
	case kindTask:
		if n.adapter != nil {
			n.adapter.Stop()
		}
		t.settleLeaf(n, false, true)
	default:
		t.settleLeaf(n, false, false)
	}
}

// skipNode retires a node that never started. No handlers fire, but its
// whole leaf budget still counts toward progress.
func (t *Tree) skipNode(n *runNode) {
	n.state = nodeSettled
	n.success = false
	t.advanceProgress(n.c.leafs)
}

func (t *Tree) startTask(n *runNode) {
	n.state = nodeRunning
	n.adapter = n.c.task.create()
	if n.adapter == nil {
		t.log.Error("task adapter constructor returned nil", "path", n.c.path)
		t.settleLeaf(n, false, false)
		t.notifySettled(n, false)
		return
	}

	act := Continue
	if n.c.task.setup != nil && !t.destroyed.Load() {
		act = n.c.task.setup(t.scope(n), n.adapter)
	}
	switch act {
	case StopWithDone:
		// setup short-circuit skips both task handlers
		t.settleLeaf(n, true, false)
		t.notifySettled(n, true)
		return
	case StopWithError:
		t.settleLeaf(n, false, false)
		t.notifySettled(n, false)
		return
	}

	t.emit(TaskStarted, n, true)
	n.adapter.Start(t.reporter(n))
}

// handleReport settles a task whose adapter finished. Reports arriving after
// the node was force-stopped are silently dropped.
func (t *Tree) handleReport(n *runNode, err error) {
	if n.state != nodeRunning {
		return
	}
	t.settleLeaf(n, err == nil, true)
	t.notifySettled(n, err == nil)
}

func (t *Tree) startSync(n *runNode) {
	n.state = nodeRunning
	ok := true
	if !t.destroyed.Load() {
		ok = n.c.sync(t.scope(n))
	}
	t.settleLeaf(n, ok, false)
	t.notifySettled(n, ok)
}

func (t *Tree) startBarrierWait(n *runNode) {
	n.state = nodeRunning
	inst := t.scope(n).lookup(n.c.barrier)
	if inst == nil {
		t.log.Error("barrier wait outside its storage scope", "path", n.c.path)
		t.settleLeaf(n, false, false)
		t.notifySettled(n, false)
		return
	}
	b := inst.(*Barrier)
	t.emit(TaskStarted, n, true)
	if b.Released() {
		t.settleLeaf(n, true, false)
		t.notifySettled(n, true)
		return
	}
	b.waiters = append(b.waiters, func() {
		if n.state != nodeRunning {
			return
		}
		t.settleLeaf(n, true, false)
		t.notifySettled(n, true)
	})
}

// settleLeaf retires a running leaf. Handlers fire only for tasks whose
// setup ran through, and never after Destroy.
func (t *Tree) settleLeaf(n *runNode, success bool, handlers bool) {
	n.state = nodeSettled
	n.success = success

	if handlers && n.c.task != nil && !t.destroyed.Load() {
		if success && n.c.task.done != nil {
			n.c.task.done(t.scope(n), n.adapter)
		}
		if !success && n.c.task.fail != nil {
			n.c.task.fail(t.scope(n), n.adapter)
		}
	}
	t.advanceProgress(n.c.leafs)
	t.emit(TaskDone, n, success)
}

// teardownStorages destroys a group's storage instances in reverse
// declaration order, after the group handlers have seen them. Done hooks are
// suppressed after Destroy, but the instances are torn down regardless.
func (t *Tree) teardownStorages(n *runNode) {
	for i := len(n.c.shapes) - 1; i >= 0; i-- {
		shape := n.c.shapes[i]
		inst, ok := n.storages[shape]
		if !ok {
			continue
		}
		if hooks := t.storageHooks[shape]; hooks != nil && !t.destroyed.Load() {
			for _, fn := range hooks.done {
				fn(inst)
			}
		}
		delete(n.storages, shape)
		shape.live.Add(-1)
	}
}

func (t *Tree) advanceProgress(delta int) {
	if delta > 0 {
		t.progress.Add(int64(delta))
	}
}
