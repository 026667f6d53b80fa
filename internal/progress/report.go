package progress

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/plan"
)

// Report is a structured projection of a plan used by the json and yaml
// formatters and the HTTP surface.
type Report struct {
	PlanID      domain.PlanID `json:"plan_id" yaml:"plan_id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Progress    Progress      `json:"progress" yaml:"progress"`
	Phases      []PhaseReport `json:"phases" yaml:"phases"`
	GeneratedAt time.Time     `json:"generated_at" yaml:"generated_at"`
}

// PhaseReport is one phase in a Report.
type PhaseReport struct {
	ID            domain.PhaseID     `json:"id" yaml:"id"`
	Name          string             `json:"name" yaml:"name"`
	Status        domain.PhaseStatus `json:"status" yaml:"status"`
	DependsOn     []domain.PhaseID   `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	ExitCriteria  []string           `json:"exit_criteria,omitempty" yaml:"exit_criteria,omitempty"`
	BlockedReason string             `json:"blocked_reason,omitempty" yaml:"blocked_reason,omitempty"`
	Duration      string             `json:"duration,omitempty" yaml:"duration,omitempty"`
	Progress      Progress           `json:"progress" yaml:"progress"`
	Tasks         []TaskReport       `json:"tasks" yaml:"tasks"`
}

// TaskReport is one task in a Report.
type TaskReport struct {
	ID         domain.TaskID     `json:"id" yaml:"id"`
	Title      string            `json:"title" yaml:"title"`
	Status     domain.TaskStatus `json:"status" yaml:"status"`
	Attempts   int               `json:"attempts" yaml:"attempts"`
	Subtasks   string            `json:"subtasks,omitempty" yaml:"subtasks,omitempty"`
	Success    *bool             `json:"success,omitempty" yaml:"success,omitempty"`
	Output     string            `json:"output,omitempty" yaml:"output,omitempty"`
	Artifacts  []string          `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	RecordedAt *time.Time        `json:"recorded_at,omitempty" yaml:"recorded_at,omitempty"`
}

// BuildReport projects p into a Report in phase and task order.
func BuildReport(p *plan.Plan) Report {
	r := Report{
		PlanID:      p.ID,
		Name:        p.Name,
		Description: p.Description,
		Progress:    Compute(p),
		Phases:      make([]PhaseReport, 0, len(p.PhaseOrder)),
		GeneratedAt: plan.Now(),
	}

	for _, ph := range p.OrderedPhases() {
		pr := PhaseReport{
			ID:            ph.ID,
			Name:          ph.Name,
			Status:        ph.Status,
			DependsOn:     slices.Clone(ph.DependsOn),
			ExitCriteria:  slices.Clone(ph.ExitCriteria),
			BlockedReason: ph.BlockedReason,
			Progress:      ForPhase(p, ph),
			Tasks:         make([]TaskReport, 0, len(ph.TaskIDs)),
		}
		if ph.StartedAt != nil && ph.CompletedAt != nil {
			pr.Duration = FormatDuration(ph.CompletedAt.Sub(*ph.StartedAt))
		}
		for _, t := range p.PhaseTasks(ph) {
			pr.Tasks = append(pr.Tasks, taskReport(p, t))
		}
		r.Phases = append(r.Phases, pr)
	}
	return r
}

func taskReport(p *plan.Plan, t *plan.Task) TaskReport {
	tr := TaskReport{
		ID:       t.ID,
		Title:    t.Title,
		Status:   t.Status,
		Attempts: t.Attempts,
	}
	if subs := p.TaskSubtasks(t); len(subs) > 0 {
		done := 0
		for _, st := range subs {
			if st.Status == domain.SubtaskCompleted {
				done++
			}
		}
		tr.Subtasks = fmt.Sprintf("%d/%d", done, len(subs))
	}
	if t.Result != nil {
		ok := t.Result.Success
		at := t.Result.RecordedAt
		tr.Success = &ok
		tr.Output = t.Result.Output
		tr.Artifacts = slices.Clone(t.Result.Artifacts)
		tr.RecordedAt = &at
	}
	return tr
}

// GenerateReport renders a plain-text report of p.
func GenerateReport(p *plan.Plan) string {
	return BuildReport(p).String()
}

// String renders the report as plain text.
func (r Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Plan: %s (%s)\n", r.Name, r.PlanID)
	if r.Description != "" {
		fmt.Fprintf(&b, "%s\n", r.Description)
	}
	fmt.Fprintf(&b, "Progress: [%s] %.1f%% (%d/%d tasks)\n",
		Bar(r.Progress.PercentComplete, 30),
		r.Progress.PercentComplete,
		r.Progress.TasksCompleted,
		r.Progress.TotalTasks)

	for _, ph := range r.Phases {
		fmt.Fprintf(&b, "\n%s Phase %s: %s [%s] %d/%d",
			phaseSymbol(ph.Status), ph.ID, ph.Name, ph.Status,
			ph.Progress.TasksCompleted, ph.Progress.TotalTasks)
		if ph.Duration != "" {
			fmt.Fprintf(&b, " in %s", ph.Duration)
		}
		b.WriteString("\n")
		if len(ph.DependsOn) > 0 {
			deps := make([]string, len(ph.DependsOn))
			for i, d := range ph.DependsOn {
				deps[i] = d.String()
			}
			fmt.Fprintf(&b, "    depends on: %s\n", strings.Join(deps, ", "))
		}
		if ph.BlockedReason != "" {
			fmt.Fprintf(&b, "    blocked: %s\n", ph.BlockedReason)
		}
		if len(ph.Tasks) == 0 {
			b.WriteString("    (no tasks)\n")
		}
		for _, t := range ph.Tasks {
			fmt.Fprintf(&b, "  %s %s %s [%s]", taskSymbol(t.Status), t.ID, t.Title, t.Status)
			if t.Subtasks != "" {
				fmt.Fprintf(&b, " subtasks %s", t.Subtasks)
			}
			if t.Attempts > 1 {
				fmt.Fprintf(&b, " attempts %d", t.Attempts)
			}
			b.WriteString("\n")
			if t.Output != "" {
				fmt.Fprintf(&b, "      result: %s\n", firstLine(t.Output))
			}
			if len(t.Artifacts) > 0 {
				fmt.Fprintf(&b, "      artifacts: %s\n", strings.Join(t.Artifacts, ", "))
			}
		}
	}
	return b.String()
}

func phaseSymbol(s domain.PhaseStatus) string {
	switch s {
	case domain.PhaseCompleted:
		return "✓"
	case domain.PhaseInProgress:
		return "▶"
	case domain.PhaseBlocked:
		return "⊘"
	default:
		return "⟲"
	}
}

func taskSymbol(s domain.TaskStatus) string {
	switch s {
	case domain.TaskCompleted:
		return "✓"
	case domain.TaskInProgress:
		return "▶"
	case domain.TaskFailed:
		return "✗"
	default:
		return "⟲"
	}
}

func firstLine(s string) string {
	line, _, cut := strings.Cut(strings.TrimSpace(s), "\n")
	if cut {
		return line + " …"
	}
	return line
}
