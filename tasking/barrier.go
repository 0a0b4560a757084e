package tasking

// Barrier is a counted rendezvous: once Advance has been called limit times
// on one instance, the barrier releases, resuming every suspended waiter and
// letting every later waiter pass immediately. Release is a single logical
// event; further Advance calls are no-ops.
//
// Barriers are declared as storage (WithStorage on the handle returned by
// NewBarrier), so barrier state is scoped to one dynamic invocation of the
// declaring group, exactly like any other storage instance. That makes a
// barrier the one primitive intentionally shared across branches of a run:
// independent branches, declared in any relative order, can rendezvous
// without a dependency edge in the tree.
//
// All methods must be called on the owning tree's run loop, which is where
// every user callback already runs.
type Barrier struct {
	limit    int
	count    int
	released bool
	waiters  []func()
}

// Advance counts one arrival. The arrival that reaches the limit releases
// the barrier, synchronously resuming suspended waiters in the order they
// suspended.
func (b *Barrier) Advance() {
	if b.released {
		return
	}
	b.count++
	if b.count >= b.limit {
		b.release()
	}
}

// Released reports whether the barrier has released.
func (b *Barrier) Released() bool { return b.released }

func (b *Barrier) release() {
	b.released = true
	waiters := b.waiters
	b.waiters = nil
	for _, resume := range waiters {
		resume()
	}
}

// NewBarrier returns a handle to a single-advance barrier: the first Advance
// releases it.
func NewBarrier() Storage[Barrier] {
	return NewMultiBarrier(1)
}

// NewMultiBarrier returns a handle to a barrier that releases after limit
// distinct Advance calls, arriving from any branches in any order. A limit
// below one releases on construction, letting every waiter pass.
func NewMultiBarrier(limit int) Storage[Barrier] {
	return Storage[Barrier]{shape: &storageShape{ctor: func() any {
		return &Barrier{limit: limit, released: limit < 1}
	}}}
}

// AdvanceBarrier is a synchronous node advancing the active barrier instance
// for the current invocation. It settles as failed if no enclosing group
// declares the handle.
func AdvanceBarrier(b Storage[Barrier]) Item {
	return SyncBool(func(s *Scope) bool {
		bar := b.Get(s)
		if bar == nil {
			return false
		}
		bar.Advance()
		return true
	})
}

// WaitForBarrier is a leaf that suspends until the active barrier instance
// releases. A waiter that starts after the release settles immediately.
// Waiters count as tasks for progress reporting.
func WaitForBarrier(b Storage[Barrier]) Item {
	return Item{kind: kindBarrierWait, shape: b.shape}
}
