package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plancraft/internal/checkpoint"
	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/plan"
	"github.com/felixgeelhaar/plancraft/internal/progress"
	"github.com/felixgeelhaar/plancraft/internal/scheduler"
	"github.com/felixgeelhaar/plancraft/internal/ux"
	"github.com/felixgeelhaar/plancraft/internal/workspace"
)

// render writes v to the command's output in the selected --format.
func render(cmd *cobra.Command, v any) error {
	f, err := ux.NewFormatter(outputFormat, &ux.FormatterOptions{
		Writer:  cmd.OutOrStdout(),
		NoColor: noColor,
	})
	if err != nil {
		return err
	}
	return f.Format(v)
}

// changeView is the output of every mutating command.
type changeView struct {
	Action      string             `json:"action" yaml:"action"`
	PlanID      domain.PlanID      `json:"plan_id" yaml:"plan_id"`
	Created     string             `json:"created,omitempty" yaml:"created,omitempty"`
	Transitions []plan.Transition  `json:"transitions,omitempty" yaml:"transitions,omitempty"`
	Checkpoint  checkpoint.Summary `json:"checkpoint" yaml:"checkpoint"`
}

func (v changeView) Render(s ux.Styles) string {
	var b strings.Builder
	b.WriteString(s.Success.Render("✓ " + v.Action))
	if v.Created != "" {
		b.WriteString(" " + s.Highlighted.Render(v.Created))
	}
	fmt.Fprintf(&b, " %s\n", s.Muted.Render("("+v.PlanID.String()+")"))
	for _, t := range v.Transitions {
		fmt.Fprintf(&b, "  %s %s: %s → %s", t.Entity, t.ID, s.Muted.Render(t.From), t.To)
		if t.Reason != "" {
			b.WriteString(s.Muted.Render("  " + t.Reason))
		}
		b.WriteString("\n")
	}
	b.WriteString(s.Muted.Render("checkpoint " + v.Checkpoint.ID.String()))
	return b.String()
}

type planSummary struct {
	ID       domain.PlanID     `json:"id" yaml:"id"`
	Name     string            `json:"name" yaml:"name"`
	Progress progress.Progress `json:"progress" yaml:"progress"`
	Error    string            `json:"error,omitempty" yaml:"error,omitempty"`
}

type planList []planSummary

func (l planList) Render(s ux.Styles) string {
	if len(l) == 0 {
		return s.Muted.Render("No plans yet. Create one with 'plancraft plan create <name>'.")
	}
	var b strings.Builder
	for i, p := range l {
		if i > 0 {
			b.WriteString("\n")
		}
		if p.Error != "" {
			fmt.Fprintf(&b, "%s  %s", s.Key.Render(p.ID.String()), s.Error.Render(p.Error))
			continue
		}
		fmt.Fprintf(&b, "%s  %s  %s",
			s.Key.Render(p.ID.String()), p.Name,
			s.Muted.Render(fmt.Sprintf("%.0f%% (%d/%d tasks)", p.Progress.PercentComplete, p.Progress.TasksCompleted, p.Progress.TotalTasks)))
	}
	return b.String()
}

type decisionView struct {
	PlanID   domain.PlanID      `json:"plan_id" yaml:"plan_id"`
	Decision scheduler.Decision `json:"decision" yaml:"decision"`
	explain  bool
}

func (v decisionView) Render(s ux.Styles) string {
	var b strings.Builder
	d := v.Decision
	if d.Task != nil {
		fmt.Fprintf(&b, "%s %s %s", s.Highlighted.Render(d.Task.ID.String()), d.Task.Title,
			s.Muted.Render("(phase "+d.Phase.String()+")"))
		if d.Task.Context != nil && d.Task.Context.Objective != "" {
			fmt.Fprintf(&b, "\n  objective: %s", d.Task.Context.Objective)
		}
	} else {
		switch d.Wait {
		case scheduler.WaitFinished:
			b.WriteString(s.Success.Render("All tasks completed."))
		case scheduler.WaitFailed:
			b.WriteString(s.Error.Render("Blocked by a failed task: ") + d.Detail)
		default:
			b.WriteString(s.Warning.Render("No task is ready: ") + d.Detail)
		}
	}
	if v.explain {
		for _, sk := range d.Skipped {
			fmt.Fprintf(&b, "\n  skipped %s: %s", sk.Phase, sk.Reason)
			if sk.Detail != "" {
				b.WriteString(s.Muted.Render(" (" + sk.Detail + ")"))
			}
		}
	}
	return b.String()
}

type progressView struct {
	PlanID   domain.PlanID     `json:"plan_id" yaml:"plan_id"`
	Progress progress.Progress `json:"progress" yaml:"progress"`
}

func (v progressView) Render(s ux.Styles) string {
	p := v.Progress
	line := fmt.Sprintf("[%s] %.1f%% (%d/%d tasks)",
		progress.Bar(p.PercentComplete, 30), p.PercentComplete, p.TasksCompleted, p.TotalTasks)
	if p.Done() {
		line = s.Success.Render(line)
	}
	detail := fmt.Sprintf("pending %d  in progress %d  failed %d", p.Pending, p.InProgress, p.Failed)
	return line + "\n" + s.Muted.Render(detail)
}

type checkpointList []checkpoint.Summary

func (l checkpointList) Render(s ux.Styles) string {
	if len(l) == 0 {
		return s.Muted.Render("No checkpoints found.")
	}
	var b strings.Builder
	for i, c := range l {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  %s  %s",
			s.Key.Render(c.ID.String()),
			c.Timestamp.Local().Format("2006-01-02 15:04:05"),
			s.Muted.Render(fmt.Sprintf("%d bytes", c.Size)))
		if command := c.Context["command"]; command != "" {
			b.WriteString(s.Muted.Render("  " + command))
		}
	}
	return b.String()
}

type checkpointDetail struct {
	Summary  checkpoint.Summary `json:"summary" yaml:"summary"`
	Progress progress.Progress  `json:"progress" yaml:"progress"`
	Phases   int                `json:"phases" yaml:"phases"`
}

func (v checkpointDetail) Render(s ux.Styles) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", s.Title.Render("Checkpoint"), v.Summary.ID)
	fmt.Fprintf(&b, "Plan:      %s\n", v.Summary.PlanID)
	fmt.Fprintf(&b, "Written:   %s\n", v.Summary.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Digest:    %s\n", s.Muted.Render(v.Summary.Digest))
	fmt.Fprintf(&b, "Size:      %d bytes\n", v.Summary.Size)
	fmt.Fprintf(&b, "Phases:    %d\n", v.Phases)
	fmt.Fprintf(&b, "Progress:  %.1f%% (%d/%d tasks)", v.Progress.PercentComplete, v.Progress.TasksCompleted, v.Progress.TotalTasks)
	for k, val := range v.Summary.Context {
		fmt.Fprintf(&b, "\n%s %s", s.Muted.Render(k+":"), val)
	}
	return b.String()
}

type entryList []workspace.Entry

func (l entryList) Render(s ux.Styles) string {
	if len(l) == 0 {
		return s.Muted.Render("No matching entries.")
	}
	var b strings.Builder
	for i, e := range l {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%-10s %8d  %s", s.Muted.Render(string(e.Kind)), e.Size, e.Path)
	}
	return b.String()
}

type reportView struct {
	progress.Report `yaml:",inline"`
}

func (v reportView) Render(s ux.Styles) string {
	var b strings.Builder
	b.WriteString(s.Title.Render(fmt.Sprintf("%s (%s)", v.Name, v.PlanID)))
	b.WriteString("\n")
	if v.Description != "" {
		b.WriteString(s.Subtitle.Render(v.Description) + "\n")
	}
	fmt.Fprintf(&b, "[%s] %.1f%% (%d/%d tasks)\n",
		progress.Bar(v.Progress.PercentComplete, 30), v.Progress.PercentComplete,
		v.Progress.TasksCompleted, v.Progress.TotalTasks)

	for _, ph := range v.Phases {
		fmt.Fprintf(&b, "\n%s %s %s %s\n", s.Key.Render(ph.ID.String()), ph.Name, s.Phase(ph.Status),
			s.Muted.Render(fmt.Sprintf("%d/%d", ph.Progress.TasksCompleted, ph.Progress.TotalTasks)))
		if ph.BlockedReason != "" {
			fmt.Fprintf(&b, "    %s\n", s.Warning.Render("blocked: "+ph.BlockedReason))
		}
		for _, t := range ph.Tasks {
			fmt.Fprintf(&b, "  %s %s %s", t.ID, t.Title, s.Task(t.Status))
			if t.Subtasks != "" {
				b.WriteString(s.Muted.Render(" subtasks " + t.Subtasks))
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
