package tasking

import "sync/atomic"

// storageShape is the shared identity behind a Storage handle. Handles are
// value types; every copy of a handle points at the same shape, so handle
// equality and instance lookup are both pointer identity on the shape.
//
// The live counter tracks instances across every tree currently using the
// handle. It exists for diagnostics and tests; the engine itself never
// reads it.
type storageShape struct {
	ctor func() any
	live atomic.Int64
}

// Storage is a typed, declaration-shared handle to per-invocation data.
//
// A handle is declared once (WithStorage inside a Group) and referenced from
// any callback within that group's subtree. Each dynamic entry of the
// declaring group constructs one fresh *T, reachable through Get until the
// group exits. Parallel sibling invocations of the declaring group get
// independent instances and never observe each other's mutations.
//
// Handles are comparable: two handles are equal iff they came from the same
// NewStorage call.
type Storage[T any] struct {
	shape *storageShape
}

// NewStorage creates a storage handle whose instances are zero-valued *T.
func NewStorage[T any]() Storage[T] {
	return Storage[T]{shape: &storageShape{ctor: func() any { return new(T) }}}
}

// Get resolves the active instance for the dynamic invocation the scope is
// bound to: the instance owned by the nearest enclosing group that declares
// this handle. Returns nil if no enclosing group declares it, which is a
// programming error in the tree literal.
func (s Storage[T]) Get(scope *Scope) *T {
	if scope == nil || s.shape == nil {
		return nil
	}
	inst := scope.lookup(s.shape)
	if inst == nil {
		scope.tree.log.Error("storage lookup failed: no enclosing group declares this handle",
			"run", scope.tree.runToken)
		return nil
	}
	return inst.(*T)
}

// InstanceCount reports the number of live instances behind this handle,
// across every tree that declared it. It is zero before any declaring group
// is entered and zero again once every run finished or was destroyed.
func (s Storage[T]) InstanceCount() int {
	if s.shape == nil {
		return 0
	}
	return int(s.shape.live.Load())
}

// valid reports whether the handle came from NewStorage (as opposed to a
// zero value).
func (s Storage[T]) valid() bool { return s.shape != nil }

// WithStorage declares the handle on the enclosing group: entering the group
// constructs one instance, exiting it destroys the instance. Declaring the
// same handle again in a nested group (or a nested sub-tree) shadows the
// outer instance for that subtree, which is how sub-trees aggregate results
// upward through an OnStorageDone hook.
func WithStorage[T any](s Storage[T]) Item {
	return Item{kind: kindStorage, shape: s.shape}
}

// OnStorageSetup registers a per-tree hook fired right after an instance of
// s is constructed, before the declaring group's own setup handler. The hook
// fires once per instance, on the tree's run loop. Register before Start.
func OnStorageSetup[T any](t *Tree, s Storage[T], hook func(*T)) {
	if hook == nil || s.shape == nil {
		return
	}
	h := t.hooksFor(s.shape)
	h.setup = append(h.setup, func(inst any) { hook(inst.(*T)) })
}

// OnStorageDone registers a per-tree hook fired right before an instance of
// s is destroyed on its declaring group's exit. The hook fires once per
// instance, on the tree's run loop, and is suppressed when the tree is
// destroyed mid-run. Register before Start.
func OnStorageDone[T any](t *Tree, s Storage[T], hook func(*T)) {
	if hook == nil || s.shape == nil {
		return
	}
	h := t.hooksFor(s.shape)
	h.done = append(h.done, func(inst any) { hook(inst.(*T)) })
}

// Scope binds a callback invocation to the dynamic tree position it runs at.
// Every handler receives a Scope; storage handles resolve their active
// instance through it. Scopes are only valid for the duration of the
// callback they were passed to.
type Scope struct {
	tree *Tree
	node *runNode
}

// RunToken returns the token identifying the current tree run, for log
// correlation.
func (s *Scope) RunToken() string { return s.tree.runToken }

// lookup walks from the bound node towards the root and returns the first
// instance of shape found, honoring shadowing by nested declarations.
func (s *Scope) lookup(shape *storageShape) any {
	for n := s.node; n != nil; n = n.parent {
		if n.storages != nil {
			if inst, ok := n.storages[shape]; ok {
				return inst
			}
		}
	}
	return nil
}
