package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poa00/tasktree/adapters"
	"github.com/poa00/tasktree/tasking"
)

// Pipeline is the YAML description the run command executes.
type Pipeline struct {
	Name     string    `yaml:"name"`
	Timeout  string    `yaml:"timeout,omitempty"` // Go duration, 0 = no timeout
	Pipeline GroupSpec `yaml:"pipeline"`
}

// GroupSpec describes one group node.
type GroupSpec struct {
	Mode   string `yaml:"mode,omitempty"`   // "sequential" (default) | "parallel"
	Limit  int    `yaml:"limit,omitempty"`  // parallel slots, 0 = unbounded
	Policy string `yaml:"policy,omitempty"` // see policyNames, default stop-on-error
	Steps  []Step `yaml:"steps"`
}

// Step describes one child: exactly one of Sleep, Fail or Group must be set.
// Sleep completes successfully after the given duration; Fail fails after
// it. Name appears in step logs and defaults to the step's tree path.
type Step struct {
	Name  string     `yaml:"name,omitempty"`
	Sleep string     `yaml:"sleep,omitempty"`
	Fail  string     `yaml:"fail,omitempty"`
	Group *GroupSpec `yaml:"group,omitempty"`
}

var policyNames = map[string]tasking.WorkflowPolicy{
	"":                  tasking.StopOnError,
	"stop-on-error":     tasking.StopOnError,
	"continue-on-error": tasking.ContinueOnError,
	"stop-on-done":      tasking.StopOnDone,
	"continue-on-done":  tasking.ContinueOnDone,
	"stop-on-finished":  tasking.StopOnFinished,
	"optional":          tasking.Optional,
}

// LoadPipeline reads and parses a pipeline description file.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	if len(p.Pipeline.Steps) == 0 {
		return nil, errors.New("parse pipeline: no steps")
	}
	return &p, nil
}

// TimeoutDuration returns the parsed timeout, zero when none is set.
func (p *Pipeline) TimeoutDuration() (time.Duration, error) {
	if p.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parse timeout: %w", err)
	}
	return d, nil
}

// Build turns the description into an executable declaration. Step outcomes
// are logged through log as the run progresses.
func (p *Pipeline) Build(log *slog.Logger) (tasking.Item, error) {
	if log == nil {
		log = slog.Default()
	}
	return buildGroup(p.Pipeline, log, "")
}

func buildGroup(g GroupSpec, log *slog.Logger, path string) (tasking.Item, error) {
	policy, ok := policyNames[g.Policy]
	if !ok {
		return tasking.Item{}, fmt.Errorf("group %q: unknown policy %q", displayPath(path), g.Policy)
	}

	items := []tasking.Item{tasking.Workflow(policy)}
	switch g.Mode {
	case "", "sequential":
		items = append(items, tasking.Sequential)
	case "parallel":
		if g.Limit > 0 {
			items = append(items, tasking.ParallelLimit(g.Limit))
		} else {
			items = append(items, tasking.Parallel)
		}
	default:
		return tasking.Item{}, fmt.Errorf("group %q: unknown mode %q", displayPath(path), g.Mode)
	}

	for i, step := range g.Steps {
		item, err := buildStep(step, log, stepPath(path, i))
		if err != nil {
			return tasking.Item{}, err
		}
		items = append(items, item)
	}
	return tasking.Group(items...), nil
}

func buildStep(step Step, log *slog.Logger, path string) (tasking.Item, error) {
	name := step.Name
	if name == "" {
		name = path
	}

	set := 0
	for _, s := range []bool{step.Sleep != "", step.Fail != "", step.Group != nil} {
		if s {
			set++
		}
	}
	if set != 1 {
		return tasking.Item{}, fmt.Errorf("step %q: exactly one of sleep, fail or group required", name)
	}

	if step.Group != nil {
		return buildGroup(*step.Group, log, path)
	}

	spec := step.Sleep
	var stepErr error
	if step.Fail != "" {
		spec = step.Fail
		stepErr = fmt.Errorf("step %q failed", name)
	}
	d, err := time.ParseDuration(spec)
	if err != nil {
		return tasking.Item{}, fmt.Errorf("step %q: %w", name, err)
	}

	return tasking.TaskFor(
		func() *adapters.Timer { return &adapters.Timer{} },
		func(s *tasking.Scope, t *adapters.Timer) tasking.TaskAction {
			t.Interval = d
			t.Err = stepErr
			log.Debug("step started", "step", name, "run", s.RunToken())
			return tasking.Continue
		},
		func(s *tasking.Scope, t *adapters.Timer) {
			log.Info("step done", "step", name, "run", s.RunToken())
		},
		func(s *tasking.Scope, t *adapters.Timer) {
			log.Warn("step failed", "step", name, "run", s.RunToken())
		},
	), nil
}

func stepPath(parent string, index int) string {
	if parent == "" {
		return fmt.Sprintf("%d", index)
	}
	return fmt.Sprintf("%s/%d", parent, index)
}

func displayPath(path string) string {
	if path == "" {
		return "pipeline"
	}
	return path
}
