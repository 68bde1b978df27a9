package saga_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/freshershub/internal/app/system/saga"
)

var errBoom = errors.New("boom")

func step(name string, err error, bestEffort bool, ran *[]string) saga.Step {
	return saga.Step{
		Name:       name,
		BestEffort: bestEffort,
		Run: func(ctx context.Context) error {
			*ran = append(*ran, name)
			return err
		},
	}
}

func statuses(r *saga.Report) []string {
	out := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Status
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRun_AllOK(t *testing.T) {
	var ran []string
	rep := saga.Run(context.Background(), step("a", nil, false, &ran), step("b", nil, true, &ran))
	if !rep.OK() || !rep.Completed() || rep.Err() != nil {
		t.Fatalf("report = %+v", rep)
	}
	if !equal(ran, []string{"a", "b"}) {
		t.Errorf("ran = %v", ran)
	}
}

func TestRun_RequiredFailureSkipsRest(t *testing.T) {
	var ran []string
	rep := saga.Run(context.Background(),
		step("upload", errBoom, false, &ran),
		step("insert", nil, false, &ran),
		step("notify", nil, true, &ran),
	)
	if !equal(statuses(rep), []string{saga.StatusFailed, saga.StatusSkipped, saga.StatusSkipped}) {
		t.Errorf("statuses = %v", statuses(rep))
	}
	if !equal(ran, []string{"upload"}) {
		t.Errorf("ran = %v", ran)
	}
	if !errors.Is(rep.Err(), errBoom) || rep.Completed() {
		t.Errorf("Err = %v, Completed = %v", rep.Err(), rep.Completed())
	}
}

func TestRun_RequiredFailureInLastPosition(t *testing.T) {
	var ran []string
	rep := saga.Run(context.Background(), step("upload", nil, false, &ran), step("insert", errBoom, false, &ran))
	if !errors.Is(rep.Err(), errBoom) {
		t.Errorf("Err = %v, want errBoom", rep.Err())
	}
	if got := rep.Failed(); !equal(got, []string{"insert"}) {
		t.Errorf("Failed = %v", got)
	}
}

func TestRun_BestEffortFailureContinues(t *testing.T) {
	var ran []string
	rep := saga.Run(context.Background(),
		step("mutate", nil, false, &ran),
		step("notify", errBoom, true, &ran),
		step("audit", nil, true, &ran),
	)
	if !equal(statuses(rep), []string{saga.StatusOK, saga.StatusFailed, saga.StatusOK}) {
		t.Errorf("statuses = %v", statuses(rep))
	}
	if !rep.Completed() || rep.OK() {
		t.Errorf("Completed = %v, OK = %v", rep.Completed(), rep.OK())
	}
	if !rep.Is(errBoom) {
		t.Error("expected report to carry errBoom")
	}
	if rep.Summary() != "notify: boom" {
		t.Errorf("Summary = %q", rep.Summary())
	}
	s, ok := rep.Step("notify")
	if !ok || s.Error != "boom" {
		t.Errorf("Step(notify) = %+v, %v", s, ok)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran []string
	rep := saga.Run(ctx, step("a", nil, false, &ran), step("b", nil, false, &ran))
	if len(ran) != 0 {
		t.Errorf("ran = %v, want nothing", ran)
	}
	if !errors.Is(rep.Err(), context.Canceled) {
		t.Errorf("Err = %v", rep.Err())
	}
}

func TestRun_SkipContinues(t *testing.T) {
	var ran []string
	rep := saga.Run(context.Background(),
		step("upload", saga.ErrSkip, false, &ran),
		step("insert", nil, false, &ran),
	)
	if !equal(statuses(rep), []string{saga.StatusSkipped, saga.StatusOK}) {
		t.Errorf("statuses = %v", statuses(rep))
	}
	if !rep.OK() || rep.Err() != nil {
		t.Errorf("OK = %v, Err = %v", rep.OK(), rep.Err())
	}
	if !equal(ran, []string{"upload", "insert"}) {
		t.Errorf("ran = %v", ran)
	}
}
