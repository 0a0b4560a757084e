package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/poa00/tasktree/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunToken string
}

// TraceEvent is one event of a rendered run timeline.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Type     string `json:"type"`
	Path     string `json:"path,omitempty"`
	Success  bool   `json:"success"`
	Progress int    `json:"progress"`
	At       string `json:"at"`
}

// TraceResult holds the complete trace output for one run.
type TraceResult struct {
	RunToken string       `json:"run_token"`
	Outcome  string       `json:"outcome,omitempty"`
	Timeline []TraceEvent `json:"timeline"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded run traces",
		Long: `Inspect the trace database written by run --trace-db.

Without --run, lists every recorded run. With --run, prints that run's
timeline: every lifecycle event in emission order.

Examples:
  tasktree trace --db ./trace.db
  tasktree trace --db ./trace.db --run 01890bdc-5a2b-7c3d-9e4f-0a1b2c3d4e5f
  tasktree trace --db ./trace.db --run 01890bdc-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to print (omit to list runs)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := trace.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	if opts.RunToken == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return json.NewEncoder(out).Encode(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "no recorded runs")
			return nil
		}
		for _, run := range runs {
			outcome := run.Outcome
			if outcome == "" {
				outcome = "unfinished"
			}
			fmt.Fprintf(out, "%s  started=%s  %s\n",
				run.Token, run.StartedAt.Format(time.RFC3339), outcome)
		}
		return nil
	}

	records, err := st.ReadRun(ctx, opts.RunToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	if len(records) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no trace for run %q", opts.RunToken))
	}

	result := TraceResult{RunToken: opts.RunToken}
	for _, rec := range records {
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:      rec.Seq,
			Type:     rec.Type,
			Path:     rec.Path,
			Success:  rec.Success,
			Progress: rec.Progress,
			At:       rec.At.Format(time.RFC3339Nano),
		})
		if rec.Type == "tree_finished" {
			result.Outcome = outcomeWord(rec.Success)
		}
	}

	if opts.Format == "json" {
		return json.NewEncoder(out).Encode(result)
	}
	fmt.Fprint(out, FormatTimeline(result))
	return nil
}

// FormatTimeline renders a run timeline as text, one line per event.
func FormatTimeline(result TraceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", result.RunToken)
	for _, ev := range result.Timeline {
		path := ev.Path
		if path == "" {
			path = "."
		}
		fmt.Fprintf(&b, "%4d  %-14s %-12s %-7s progress=%d\n",
			ev.Seq, ev.Type, path, outcomeWord(ev.Success), ev.Progress)
	}
	if result.Outcome != "" {
		fmt.Fprintf(&b, "outcome: %s\n", result.Outcome)
	}
	return b.String()
}

func outcomeWord(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
