package trace

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poa00/tasktree/tasking"
)

// WriteEvent records one lifecycle event. TreeStarted opens the run row,
// TreeFinished closes it with the outcome; every event becomes an events
// row. ON CONFLICT DO NOTHING makes re-recording a run idempotent.
func (s *Store) WriteEvent(ctx context.Context, ev tasking.Event) error {
	at := ev.Time.UTC().Format(time.RFC3339Nano)

	switch ev.Type {
	case tasking.TreeStarted:
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO runs (token, started_at)
			VALUES (?, ?)
			ON CONFLICT(token) DO NOTHING
		`, ev.RunToken, at)
		if err != nil {
			return fmt.Errorf("write run: %w", err)
		}
	case tasking.TreeFinished:
		outcome := "failure"
		if ev.Success {
			outcome = "success"
		}
		_, err := s.db.ExecContext(ctx, `
			UPDATE runs SET finished_at = ?, outcome = ?
			WHERE token = ?
		`, at, outcome, ev.RunToken)
		if err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (run_token, seq, type, path, success, progress, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		ev.RunToken,
		ev.Seq,
		ev.Type.String(),
		ev.Path,
		boolInt(ev.Success),
		ev.Progress,
		at,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// Observer adapts the store into a tree observer. Observers cannot return
// errors, so write failures are logged and the run continues unrecorded
// from that point.
func (s *Store) Observer(log *slog.Logger) func(tasking.Event) {
	if log == nil {
		log = slog.Default()
	}
	return func(ev tasking.Event) {
		if err := s.WriteEvent(context.Background(), ev); err != nil {
			log.Error("trace write failed", "run", ev.RunToken, "seq", ev.Seq, "error", err)
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
