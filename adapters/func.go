package adapters

import "context"

// Func runs Fn on its own goroutine and reports its returned error. Stop
// cancels the context passed to Fn; a cooperative Fn should return promptly
// with ctx.Err() once canceled, but even an uncooperative one cannot stall
// the engine, which merely ignores the eventual late report.
//
// Set Fn in the task's setup handler. A nil Fn reports success immediately.
type Func struct {
	Fn func(ctx context.Context) error

	cancel context.CancelFunc
}

// Start launches Fn. The report fires on the launched goroutine.
func (f *Func) Start(report func(error)) {
	if f.Fn == nil {
		report(nil)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() {
		defer cancel()
		report(f.Fn(ctx))
	}()
}

// Stop cancels the function's context.
func (f *Func) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
}
