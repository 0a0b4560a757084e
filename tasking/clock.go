package tasking

import "sync/atomic"

// Clock is a monotonic logical clock. Every observer Event a run emits is
// stamped with a strictly increasing seq from the owning tree's clock, so
// traces can be ordered without trusting wall time.
//
// Clock is safe for concurrent use, although the single-writer run loop is
// normally the only caller of Next.
type Clock struct {
	seq atomic.Int64
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
