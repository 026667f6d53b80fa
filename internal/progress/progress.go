// Package progress derives completion figures and reports from a plan.
//
// Everything here is read-only: callers pass a plan (normally a snapshot
// handed out by the engine) and get plain values back.
package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/plan"
)

// Progress summarizes task completion for a plan or a phase.
type Progress struct {
	TasksCompleted  int     `json:"tasks_completed" yaml:"tasks_completed"`
	TotalTasks      int     `json:"total_tasks" yaml:"total_tasks"`
	PercentComplete float64 `json:"percent_complete" yaml:"percent_complete"`

	Pending    int `json:"pending" yaml:"pending"`
	InProgress int `json:"in_progress" yaml:"in_progress"`
	Failed     int `json:"failed" yaml:"failed"`
}

// Compute returns overall progress. Percent is 0 for a plan without tasks.
func Compute(p *plan.Plan) Progress {
	var pr Progress
	for _, ph := range p.OrderedPhases() {
		pr.add(p.PhaseTasks(ph))
	}
	pr.finish()
	return pr
}

// ForPhase returns progress restricted to one phase.
func ForPhase(p *plan.Plan, ph *plan.Phase) Progress {
	var pr Progress
	pr.add(p.PhaseTasks(ph))
	pr.finish()
	return pr
}

func (pr *Progress) add(tasks []*plan.Task) {
	for _, t := range tasks {
		pr.TotalTasks++
		switch t.Status {
		case domain.TaskCompleted:
			pr.TasksCompleted++
		case domain.TaskInProgress:
			pr.InProgress++
		case domain.TaskFailed:
			pr.Failed++
		default:
			pr.Pending++
		}
	}
}

func (pr *Progress) finish() {
	if pr.TotalTasks == 0 {
		pr.PercentComplete = 0
		return
	}
	pr.PercentComplete = float64(pr.TasksCompleted) / float64(pr.TotalTasks) * 100
}

// Done reports whether every task is completed.
func (pr Progress) Done() bool {
	return pr.TotalTasks > 0 && pr.TasksCompleted == pr.TotalTasks
}

// Bar renders a fixed-width text bar for the given percentage.
func Bar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(float64(width) * percent / 100)
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// FormatDuration renders d rounded to the second, e.g. "1h2m3s".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
