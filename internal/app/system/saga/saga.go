// Package saga runs multi-step mutations that span independent backend
// calls and reports what happened at each step, so callers can see and
// compensate for partial failure.
package saga

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/freshershub/internal/app/system/metrics"
)

// Step statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// ErrSkip, returned from a step's Run, records the step as skipped without
// stopping the sequence.
var ErrSkip = errors.New("saga: step skipped")

// Step is one unit of work. A failed required step stops the sequence;
// a failed BestEffort step is recorded and the sequence continues.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	BestEffort bool
}

// StepResult is the outcome of one step.
type StepResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	BestEffort bool   `json:"best_effort,omitempty"`
	Err        error  `json:"-"`
	Error      string `json:"error,omitempty"`
}

// Report lists one result per step, in order.
type Report struct {
	Steps []StepResult `json:"steps"`
}

// Run executes steps in order.
func Run(ctx context.Context, steps ...Step) *Report {
	rep := &Report{Steps: make([]StepResult, 0, len(steps))}
	aborted := false
	for _, s := range steps {
		if aborted {
			rep.Steps = append(rep.Steps, StepResult{Name: s.Name, Status: StatusSkipped, BestEffort: s.BestEffort})
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = s.Run(ctx)
		}
		if errors.Is(err, ErrSkip) {
			rep.Steps = append(rep.Steps, StepResult{Name: s.Name, Status: StatusSkipped, BestEffort: s.BestEffort})
			continue
		}
		if err != nil {
			rep.Steps = append(rep.Steps, StepResult{Name: s.Name, Status: StatusFailed, BestEffort: s.BestEffort, Err: err, Error: err.Error()})
			if !s.BestEffort {
				aborted = true
			}
			continue
		}
		rep.Steps = append(rep.Steps, StepResult{Name: s.Name, Status: StatusOK, BestEffort: s.BestEffort})
	}
	for _, s := range rep.Steps {
		metrics.SagaSteps.WithLabelValues(s.Name, s.Status).Inc()
	}
	return rep
}

// Step returns the named result.
func (r *Report) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// OK reports whether no step failed.
func (r *Report) OK() bool {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Completed reports whether every required step succeeded. Best-effort
// failures do not count against it.
func (r *Report) Completed() bool {
	return r.Err() == nil
}

// Err returns the error of the required step that stopped the sequence,
// or nil.
func (r *Report) Err() error {
	for _, s := range r.Steps {
		if s.Status == StatusFailed && !s.BestEffort {
			return s.Err
		}
	}
	return nil
}

// Failed returns the names of failed steps.
func (r *Report) Failed() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			out = append(out, s.Name)
		}
	}
	return out
}

// Summary joins every failure for logging.
func (r *Report) Summary() string {
	var parts []string
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			parts = append(parts, s.Name+": "+s.Error)
		}
	}
	return strings.Join(parts, "; ")
}

// Is reports whether any failed step's error matches target.
func (r *Report) Is(target error) bool {
	for _, s := range r.Steps {
		if s.Err != nil && errors.Is(s.Err, target) {
			return true
		}
	}
	return false
}
