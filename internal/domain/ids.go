package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PlanID identifies a plan. Plan ids are assigned once at creation and never change.
type PlanID string

// PhaseID identifies a phase within a plan.
type PhaseID string

// TaskID identifies a task within a plan.
type TaskID string

// SubtaskID identifies a subtask within a plan.
type SubtaskID string

// CheckpointID identifies a persisted checkpoint.
type CheckpointID string

const (
	phasePrefix   = "phase"
	taskPrefix    = "task"
	subtaskPrefix = "subtask"
)

func (id PlanID) String() string       { return string(id) }
func (id PhaseID) String() string      { return string(id) }
func (id TaskID) String() string       { return string(id) }
func (id SubtaskID) String() string    { return string(id) }
func (id CheckpointID) String() string { return string(id) }

// GeneratePlanID returns a fresh plan id. Ids sort by creation time.
func GeneratePlanID() (PlanID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate plan id: %w", err)
	}
	hex := strings.ReplaceAll(u.String(), "-", "")
	return PlanID("plan-" + hex[:20]), nil
}

// NewPhaseID returns the id of the n-th phase created in a plan.
func NewPhaseID(n int) PhaseID { return PhaseID(sequenceID(phasePrefix, n)) }

// NewTaskID returns the id of the n-th task created in a plan.
func NewTaskID(n int) TaskID { return TaskID(sequenceID(taskPrefix, n)) }

// NewSubtaskID returns the id of the n-th subtask created in a plan.
func NewSubtaskID(n int) SubtaskID { return SubtaskID(sequenceID(subtaskPrefix, n)) }

func sequenceID(prefix string, n int) string {
	return fmt.Sprintf("%s-%d", prefix, n)
}

// Sequence extracts the creation sequence number from a generated id.
// It returns false for ids that were not produced by the New*ID helpers.
func Sequence(id string) (int, bool) {
	i := strings.LastIndexByte(id, '-')
	if i < 0 || i == len(id)-1 {
		return 0, false
	}
	switch id[:i] {
	case phasePrefix, taskPrefix, subtaskPrefix:
	default:
		return 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Validate checks that the plan id is usable as a workspace directory name.
func (id PlanID) Validate() error {
	s := string(id)
	if s == "" {
		return fmt.Errorf("plan ID cannot be empty")
	}
	if strings.ContainsAny(s, `/\. `) {
		return fmt.Errorf("plan ID %q must not contain path separators, dots, or spaces", s)
	}
	return nil
}
