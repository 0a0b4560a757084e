package adapters

import "time"

// Timer settles after Interval elapses, reporting Err (nil for success).
// Stop cancels a pending expiry; a timer stopped in time never reports.
//
// Configure Interval and Err in the task's setup handler, before the engine
// calls Start.
type Timer struct {
	Interval time.Duration
	Err      error

	timer *time.Timer
}

// Start arms the timer. The report fires on the timer goroutine.
func (t *Timer) Start(report func(error)) {
	err := t.Err
	t.timer = time.AfterFunc(t.Interval, func() {
		report(err)
	})
}

// Stop disarms a pending timer. Stopping an expired timer is a no-op; the
// engine drops the already-delivered or in-flight report on its own.
func (t *Timer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}
