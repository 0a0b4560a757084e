package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/poa00/tasktree/internal/trace"
	"github.com/poa00/tasktree/tasking"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	TraceDB string
	Timeout time.Duration

	// RunTokens allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunTokens tasking.RunTokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Run a pipeline description",
		Long: `Run a YAML pipeline description through the tasking engine.

The pipeline file declares a tree of groups and timed steps together with
each group's execution mode and workflow policy. The process exits 0 when
the pipeline succeeds and 1 when it fails or times out.

Example:
  tasktree run ./pipeline.yaml
  tasktree run ./pipeline.yaml --trace-db ./trace.db --timeout 30s --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TraceDB, "trace-db", "", "record the run into this SQLite trace database")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "overall timeout (overrides the pipeline's own)")

	return cmd
}

func runPipeline(opts *RunOptions, path string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	pipe, err := LoadPipeline(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load pipeline", err)
	}
	log.Info("pipeline loaded", "name", pipe.Name, "file", path)

	root, err := pipe.Build(log)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid pipeline", err)
	}

	treeOpts := []tasking.TreeOption{tasking.WithLogger(log)}
	if opts.RunTokens != nil {
		treeOpts = append(treeOpts, tasking.WithRunTokens(opts.RunTokens))
	}
	tree, err := tasking.New(root, treeOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid pipeline", err)
	}

	if opts.TraceDB != "" {
		st, err := trace.Open(opts.TraceDB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open trace database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				log.Error("error closing trace database", "error", closeErr)
			}
		}()
		tree.Observe(st.Observer(log))
	}

	timeout := opts.Timeout
	if timeout == 0 {
		if timeout, err = pipe.TimeoutDuration(); err != nil {
			return WrapExitError(ExitCommandError, "invalid pipeline", err)
		}
	}
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Info("pipeline started", "name", pipe.Name, "tasks", tree.TaskCount())
	if err := tree.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("pipeline %q failed", pipe.Name), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pipeline %q succeeded (%d tasks)\n", pipe.Name, tree.TaskCount())
	return nil
}
