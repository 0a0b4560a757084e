package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awaitReport(t *testing.T, reports <-chan error) error {
	t.Helper()
	select {
	case err := <-reports:
		return err
	case <-time.After(time.Second):
		t.Fatal("function never reported")
		return nil
	}
}

func TestFuncReportsResult(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		err  error
	}{
		{"Success", nil},
		{"Failure", boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Func{Fn: func(ctx context.Context) error { return tt.err }}
			reports := make(chan error, 1)
			f.Start(func(err error) { reports <- err })

			got := awaitReport(t, reports)
			if tt.err == nil {
				assert.NoError(t, got)
			} else {
				assert.ErrorIs(t, got, tt.err)
			}
		})
	}
}

func TestFuncNilFnReportsSuccess(t *testing.T) {
	f := &Func{}
	reports := make(chan error, 1)
	f.Start(func(err error) { reports <- err })
	assert.NoError(t, awaitReport(t, reports))
}

func TestFuncStopCancelsContext(t *testing.T) {
	f := &Func{Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	reports := make(chan error, 1)
	f.Start(func(err error) { reports <- err })

	f.Stop()
	err := awaitReport(t, reports)
	require.ErrorIs(t, err, context.Canceled)
}
