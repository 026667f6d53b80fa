package plan

import (
	"time"

	"github.com/felixgeelhaar/plancraft/internal/domain"
)

// Plan is the root of the ownership tree. Entities live in per-kind arenas
// keyed by id; ordering is carried by id lists on the owner.
type Plan struct {
	ID          domain.PlanID `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Workspace   string        `json:"workspace,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	PhaseOrder []domain.PhaseID              `json:"phase_order"`
	Phases     map[domain.PhaseID]*Phase     `json:"phases"`
	Tasks      map[domain.TaskID]*Task       `json:"tasks"`
	Subtasks   map[domain.SubtaskID]*Subtask `json:"subtasks"`
	Sequence   Counters                      `json:"sequence"`
}

// Counters hold the last sequence number handed out per entity kind.
type Counters struct {
	Phase   int `json:"phase"`
	Task    int `json:"task"`
	Subtask int `json:"subtask"`
}

// Phase is an ordered stage of a plan.
type Phase struct {
	ID            domain.PhaseID     `json:"id"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	Order         int                `json:"order"`
	Status        domain.PhaseStatus `json:"status"`
	DependsOn     []domain.PhaseID   `json:"depends_on,omitempty"`
	ExitCriteria  []string           `json:"exit_criteria,omitempty"`
	TaskIDs       []domain.TaskID    `json:"task_ids,omitempty"`
	BlockedReason string             `json:"blocked_reason,omitempty"`
	// BlockedBy is set when the block was inherited from an upstream phase.
	BlockedBy   domain.PhaseID `json:"blocked_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	History     []StatusChange `json:"history,omitempty"`
}

// Task is a unit of work inside a phase.
type Task struct {
	ID              domain.TaskID      `json:"id"`
	PhaseID         domain.PhaseID     `json:"phase_id"`
	Title           string             `json:"title"`
	Description     string             `json:"description,omitempty"`
	Status          domain.TaskStatus  `json:"status"`
	Context         *TaskContext       `json:"context,omitempty"`
	Result          *TaskResult        `json:"result,omitempty"`
	Attempts        int                `json:"attempts"`
	PreviousResults []TaskResult       `json:"previous_results,omitempty"`
	SubtaskIDs      []domain.SubtaskID `json:"subtask_ids,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	History         []StatusChange     `json:"history,omitempty"`
}

// Subtask is an ordered step of a task.
type Subtask struct {
	ID              domain.SubtaskID     `json:"id"`
	TaskID          domain.TaskID        `json:"parent_task_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description,omitempty"`
	ThinkingProcess string               `json:"thinking_process,omitempty"`
	Status          domain.SubtaskStatus `json:"status"`
	Order           int                  `json:"order"`
	CreatedAt       time.Time            `json:"created_at"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	History         []StatusChange       `json:"history,omitempty"`
}

// TaskContext is the guidance attached to a task at creation.
type TaskContext struct {
	Objective       string       `json:"objective" yaml:"objective"`
	Constraints     []Constraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Assumptions     []Assumption `json:"assumptions,omitempty" yaml:"assumptions,omitempty"`
	Resources       []string     `json:"resources,omitempty" yaml:"resources,omitempty"`
	SuccessCriteria []string     `json:"success_criteria,omitempty" yaml:"success_criteria,omitempty"`
	ThinkingProcess string       `json:"thinking_process,omitempty" yaml:"thinking_process,omitempty"`
}

// Constraint limits how a task may be carried out.
type Constraint struct {
	Text   string                `json:"text" yaml:"text"`
	Type   domain.ConstraintType `json:"type" yaml:"type"`
	Source string                `json:"source,omitempty" yaml:"source,omitempty"`
}

// Assumption records something taken as true while planning a task.
type Assumption struct {
	Text       string            `json:"text" yaml:"text"`
	Confidence domain.Confidence `json:"confidence" yaml:"confidence"`
	Test       string            `json:"test,omitempty" yaml:"test,omitempty"`
}

// TaskResult is the outcome recorded when a task completes or fails.
type TaskResult struct {
	TaskID        domain.TaskID `json:"task_id"`
	Success       bool          `json:"success"`
	Output        string        `json:"output,omitempty"`
	Artifacts     []string      `json:"artifacts,omitempty"`
	ThinkingSteps []string      `json:"thinking_steps,omitempty"`
	RecordedAt    time.Time     `json:"recorded_at"`
}

// StatusChange is one entry in an entity's status history.
type StatusChange struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// PhaseSpec describes a phase to create.
type PhaseSpec struct {
	Name         string
	Description  string
	ExitCriteria []string
	DependsOn    []domain.PhaseID
}

// TaskSpec describes a task to create.
type TaskSpec struct {
	Title       string
	Description string
	Context     *TaskContext
}

// SubtaskSpec describes a subtask to add. An Order of zero appends after the
// highest existing order.
type SubtaskSpec struct {
	Title           string
	Description     string
	ThinkingProcess string
	Order           int
}
