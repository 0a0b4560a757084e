package tasking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageHandleIdentity(t *testing.T) {
	a := NewStorage[int]()
	b := a
	c := NewStorage[int]()

	assert.True(t, a == b)
	assert.False(t, a == c)
	assert.Equal(t, 0, a.InstanceCount())
}

func TestStorageLifecycle(t *testing.T) {
	st := NewStorage[int]()
	var order []string
	var setupSaw, doneSaw int

	root := Group(
		WithStorage(st),
		OnGroupSetup(func(s *Scope) TaskAction {
			order = append(order, "groupSetup")
			*st.Get(s) = 7
			return Continue
		}),
		Sync(func(s *Scope) {
			order = append(order, "sync")
			*st.Get(s) += 1
		}),
		OnGroupDone(func(s *Scope) {
			order = append(order, "groupDone")
		}),
	)

	tree, err := New(root)
	require.NoError(t, err)
	OnStorageSetup(tree, st, func(v *int) {
		order = append(order, "storageSetup")
		setupSaw = *v
	})
	OnStorageDone(tree, st, func(v *int) {
		order = append(order, "storageDone")
		doneSaw = *v
	})

	require.NoError(t, tree.Run(context.Background()))

	// instance exists before the group setup handler and survives until
	// after the group done handler
	assert.Equal(t, []string{"storageSetup", "groupSetup", "sync", "groupDone", "storageDone"}, order)
	assert.Equal(t, 0, setupSaw)
	assert.Equal(t, 8, doneSaw)
	assert.Equal(t, 0, st.InstanceCount())
}

func TestStorageInstanceCountDuringRun(t *testing.T) {
	st := NewStorage[int]()
	l := &execLog{}

	tree, err := New(Group(WithStorage(st), blockedTask(l, 0)))
	require.NoError(t, err)

	assert.Equal(t, 0, st.InstanceCount())
	tree.Start()
	// the declaring group was entered during the synchronous start prefix
	assert.Equal(t, 1, st.InstanceCount())

	tree.Stop()
	assert.Equal(t, 0, st.InstanceCount())
}

func TestStorageShadowing(t *testing.T) {
	st := NewStorage[int]()
	var outer, inner int

	root := Group(
		WithStorage(st),
		Sync(func(s *Scope) { *st.Get(s) = 1 }),
		Group(
			WithStorage(st),
			Sync(func(s *Scope) { *st.Get(s) = 2 }),
			Sync(func(s *Scope) { inner = *st.Get(s) }),
		),
		Sync(func(s *Scope) { outer = *st.Get(s) }),
	)

	tree, err := New(root)
	require.NoError(t, err)
	require.NoError(t, tree.Run(context.Background()))

	assert.Equal(t, 2, inner)
	assert.Equal(t, 1, outer)
	assert.Equal(t, 0, st.InstanceCount())
}

func TestStorageParallelInstances(t *testing.T) {
	st := NewStorage[int]()
	l := &execLog{}
	var values []int

	branch := func(id int) Item {
		return Group(
			WithStorage(st),
			Sync(func(s *Scope) { *st.Get(s) = id }),
			okTask(l, id),
		)
	}
	tree, err := New(Group(Parallel, branch(1), branch(2)))
	require.NoError(t, err)
	OnStorageDone(tree, st, func(v *int) { values = append(values, *v) })

	require.NoError(t, tree.Run(context.Background()))

	// one instance per branch, never shared
	assert.Equal(t, []int{1, 2}, values)
	assert.Equal(t, 0, st.InstanceCount())
}

func TestStorageSubtreeAggregation(t *testing.T) {
	st := NewStorage[int]()

	subtree := func(amount int) Item {
		return TreeTask(func(outer *Scope) *Tree {
			total := st.Get(outer)
			inner, err := New(Group(
				WithStorage(st),
				Sync(func(s *Scope) { *st.Get(s) = amount }),
			))
			if err != nil {
				return nil
			}
			// fold the inner instance into the enclosing one on teardown
			OnStorageDone(inner, st, func(v *int) { *total += *v })
			return inner
		})
	}

	var total int
	root := Group(
		WithStorage(st),
		subtree(3),
		subtree(4),
		Sync(func(s *Scope) { total = *st.Get(s) }),
	)

	tree, err := New(root)
	require.NoError(t, err)
	require.NoError(t, tree.Run(context.Background()))

	assert.Equal(t, 7, total)
	assert.Equal(t, 0, st.InstanceCount())
}

func TestStorageGetOutsideDeclaringScope(t *testing.T) {
	st := NewStorage[int]()
	got := new(int)

	tree, err := New(Group(SyncBool(func(s *Scope) bool {
		if st.Get(s) != nil {
			return true
		}
		got = nil
		return false
	})))
	require.NoError(t, err)

	runErr := tree.Run(context.Background())
	require.Error(t, runErr)
	assert.Nil(t, got)
}

func TestStorageDestroyMidRun(t *testing.T) {
	st := NewStorage[int]()
	l := &execLog{}
	doneHook := false

	tree, err := New(Group(
		WithStorage(st),
		OnGroupDone(func(*Scope) { l.add(9, hGroupDone) }),
		OnGroupError(func(*Scope) { l.add(9, hGroupError) }),
		blockedTask(l, 0),
	))
	require.NoError(t, err)
	OnStorageDone(tree, st, func(*int) { doneHook = true })

	tree.Start()
	require.Equal(t, 1, st.InstanceCount())

	tree.Destroy()

	// teardown happened, but no callback of any kind fired after Destroy
	assert.Equal(t, 0, st.InstanceCount())
	assert.False(t, doneHook)
	assert.Equal(t, []logEntry{e(0, hSetup)}, l.get())
	assert.True(t, IsCanceled(tree.Result()))
	assert.Equal(t, tree.TaskCount(), tree.ProgressValue())
}

func TestTreeDestroyBeforeStart(t *testing.T) {
	l := &execLog{}
	tree, err := New(Group(okTask(l, 0)))
	require.NoError(t, err)

	tree.Destroy()

	assert.True(t, IsCanceled(tree.Result()))
	assert.Equal(t, StateFailure, tree.State())

	tree.Start()
	assert.Empty(t, l.get())
}
