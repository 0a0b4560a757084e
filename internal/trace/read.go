package trace

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunInfo summarizes one recorded run.
type RunInfo struct {
	Token      string
	StartedAt  time.Time
	FinishedAt time.Time // zero if the run never finished recording
	Outcome    string    // "success", "failure", or "" while unfinished
}

// Record is one recorded lifecycle event.
type Record struct {
	Seq      int64
	Type     string
	Path     string
	Success  bool
	Progress int
	At       time.Time
}

// ListRuns returns all recorded runs, oldest first. Run tokens are UUIDv7,
// so token order is start order; the started_at sort makes that explicit.
//
// Returns an empty slice (not nil) when the database holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, started_at, finished_at, outcome
		FROM runs
		ORDER BY started_at ASC, token ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var info RunInfo
		var started string
		var finished, outcome sql.NullString
		if err := rows.Scan(&info.Token, &started, &finished, &outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if info.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finished.Valid {
			if info.FinishedAt, err = time.Parse(time.RFC3339Nano, finished.String); err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
		}
		info.Outcome = outcome.String
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// ReadRun returns a run's events in emission order.
//
// Returns an empty slice (not nil) for an unknown token.
func (s *Store) ReadRun(ctx context.Context, token string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, type, path, success, progress, at
		FROM events
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var success int
		var at string
		if err := rows.Scan(&rec.Seq, &rec.Type, &rec.Path, &success, &rec.Progress, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Success = success != 0
		if rec.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return records, nil
}
