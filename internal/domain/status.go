package domain

import "fmt"

// PhaseStatus is the lifecycle state of a phase.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseBlocked    PhaseStatus = "blocked"
)

var phaseTransitions = map[PhaseStatus][]PhaseStatus{
	PhasePending:    {PhaseInProgress, PhaseBlocked},
	PhaseInProgress: {PhaseCompleted, PhaseBlocked},
	PhaseBlocked:    {PhasePending},
	PhaseCompleted:  {},
}

// Validate checks if the phase status is one of the known values
func (s PhaseStatus) Validate() error {
	if _, ok := phaseTransitions[s]; !ok {
		return fmt.Errorf("invalid phase status %q", string(s))
	}
	return nil
}

// CanTransitionTo reports whether the lifecycle allows moving from s to target
func (s PhaseStatus) CanTransitionTo(target PhaseStatus) bool {
	return allowed(phaseTransitions[s], target)
}

// IsTerminal reports whether no further transition is possible
func (s PhaseStatus) IsTerminal() bool {
	return s == PhaseCompleted
}

func (s PhaseStatus) String() string { return string(s) }

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// failed -> pending is the explicit reopen path; nothing else leaves failed.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskInProgress},
	TaskInProgress: {TaskCompleted, TaskFailed},
	TaskFailed:     {TaskPending},
	TaskCompleted:  {},
}

// Validate checks if the task status is one of the known values
func (s TaskStatus) Validate() error {
	if _, ok := taskTransitions[s]; !ok {
		return fmt.Errorf("invalid task status %q", string(s))
	}
	return nil
}

// CanTransitionTo reports whether the lifecycle allows moving from s to target
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	return allowed(taskTransitions[s], target)
}

// IsTerminal reports whether the task reached completed or failed
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

func (s TaskStatus) String() string { return string(s) }

// SubtaskStatus is the lifecycle state of a subtask. Subtasks cannot fail.
type SubtaskStatus string

const (
	SubtaskPending    SubtaskStatus = "pending"
	SubtaskInProgress SubtaskStatus = "in_progress"
	SubtaskCompleted  SubtaskStatus = "completed"
)

var subtaskTransitions = map[SubtaskStatus][]SubtaskStatus{
	SubtaskPending:    {SubtaskInProgress},
	SubtaskInProgress: {SubtaskCompleted},
	SubtaskCompleted:  {},
}

// Validate checks if the subtask status is one of the known values
func (s SubtaskStatus) Validate() error {
	if _, ok := subtaskTransitions[s]; !ok {
		return fmt.Errorf("invalid subtask status %q", string(s))
	}
	return nil
}

// CanTransitionTo reports whether the lifecycle allows moving from s to target
func (s SubtaskStatus) CanTransitionTo(target SubtaskStatus) bool {
	return allowed(subtaskTransitions[s], target)
}

func (s SubtaskStatus) String() string { return string(s) }

func allowed[S comparable](targets []S, target S) bool {
	for _, t := range targets {
		if t == target {
			return true
		}
	}
	return false
}

// AllPhaseStatuses lists phase statuses in lifecycle order.
func AllPhaseStatuses() []PhaseStatus {
	return []PhaseStatus{PhasePending, PhaseInProgress, PhaseCompleted, PhaseBlocked}
}

// AllTaskStatuses lists task statuses in lifecycle order.
func AllTaskStatuses() []TaskStatus {
	return []TaskStatus{TaskPending, TaskInProgress, TaskCompleted, TaskFailed}
}

// AllSubtaskStatuses lists subtask statuses in lifecycle order.
func AllSubtaskStatuses() []SubtaskStatus {
	return []SubtaskStatus{SubtaskPending, SubtaskInProgress, SubtaskCompleted}
}
