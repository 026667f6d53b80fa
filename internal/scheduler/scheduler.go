// Package scheduler decides which task of a plan should run next.
//
// The decision is a pure function of the plan: phases are considered in
// ascending order, and only the first phase that is eligible to make progress
// is examined for a pending task. The scheduler never skips past an eligible
// phase that still has work in flight or a failed task, so execution cannot
// advance beyond a failure without an explicit caller action.
package scheduler

import (
	"fmt"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/plan"
)

// SkipReasonCode enumerates why a phase was passed over.
type SkipReasonCode string

const (
	SkipReasonCompleted  SkipReasonCode = "completed"
	SkipReasonBlocked    SkipReasonCode = "blocked"
	SkipReasonEmpty      SkipReasonCode = "empty"
	SkipReasonDependency SkipReasonCode = "dependency-pending"
)

// SkipReason explains why a phase was excluded.
type SkipReason struct {
	Phase  domain.PhaseID `json:"phase" yaml:"phase"`
	Reason SkipReasonCode `json:"reason" yaml:"reason"`
	Detail string         `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// WaitReasonCode says why the eligible phase yielded no task.
type WaitReasonCode string

const (
	WaitNone       WaitReasonCode = ""
	WaitInFlight   WaitReasonCode = "in-flight"
	WaitFailed     WaitReasonCode = "failed-task"
	WaitNoEligible WaitReasonCode = "no-eligible-phase"
	WaitFinished   WaitReasonCode = "finished"
)

// Decision is the full outcome of one scheduling pass.
type Decision struct {
	Task    *plan.Task     `json:"task,omitempty" yaml:"task,omitempty"`
	Phase   domain.PhaseID `json:"phase,omitempty" yaml:"phase,omitempty"`
	Wait    WaitReasonCode `json:"wait,omitempty" yaml:"wait,omitempty"`
	Detail  string         `json:"detail,omitempty" yaml:"detail,omitempty"`
	Skipped []SkipReason   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// NextTask returns the next task to execute, or nil when nothing is runnable.
// It has no side effects; two calls on an unchanged plan return the same task.
func NextTask(p *plan.Plan) *plan.Task {
	return Decide(p).Task
}

// Decide runs a scheduling pass and records every skipped phase.
func Decide(p *plan.Plan) Decision {
	var d Decision
	for _, ph := range p.OrderedPhases() {
		if skip, ok := skipReason(p, ph); ok {
			d.Skipped = append(d.Skipped, skip)
			continue
		}

		d.Phase = ph.ID
		inFlight, failed := 0, 0
		for _, t := range p.PhaseTasks(ph) {
			switch t.Status {
			case domain.TaskPending:
				d.Task = t
				return d
			case domain.TaskInProgress:
				inFlight++
			case domain.TaskFailed:
				failed++
			}
		}

		switch {
		case failed > 0:
			d.Wait = WaitFailed
			d.Detail = fmt.Sprintf("%d failed task(s) in %s must be reopened", failed, ph.ID)
		case inFlight > 0:
			d.Wait = WaitInFlight
			d.Detail = fmt.Sprintf("%d task(s) in %s still in progress", inFlight, ph.ID)
		}
		return d
	}

	if Finished(p) {
		d.Wait = WaitFinished
		d.Detail = "all phases completed"
	} else {
		d.Wait = WaitNoEligible
		d.Detail = "no phase is eligible to run"
	}
	return d
}

func skipReason(p *plan.Plan, ph *plan.Phase) (SkipReason, bool) {
	switch {
	case ph.Status == domain.PhaseCompleted:
		return SkipReason{Phase: ph.ID, Reason: SkipReasonCompleted}, true
	case ph.Status == domain.PhaseBlocked:
		return SkipReason{Phase: ph.ID, Reason: SkipReasonBlocked, Detail: ph.BlockedReason}, true
	case len(ph.TaskIDs) == 0:
		return SkipReason{Phase: ph.ID, Reason: SkipReasonEmpty}, true
	}
	if dep, ok := p.DependenciesMet(ph); !ok {
		return SkipReason{Phase: ph.ID, Reason: SkipReasonDependency, Detail: fmt.Sprintf("waiting on %s", dep)}, true
	}
	return SkipReason{}, false
}

// Finished reports whether the plan has at least one phase and every phase is
// completed. A blocked phase or an empty phase keeps the plan open even when
// every task is done.
func Finished(p *plan.Plan) bool {
	phases := p.OrderedPhases()
	if len(phases) == 0 {
		return false
	}
	for _, ph := range phases {
		if ph.Status != domain.PhaseCompleted {
			return false
		}
	}
	return true
}
