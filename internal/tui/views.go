package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/plan"
	planprogress "github.com/felixgeelhaar/plancraft/internal/progress"
	"github.com/felixgeelhaar/plancraft/internal/scheduler"
)

// View renders the watch screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.snap.Plan == nil {
		if m.lastError != "" {
			return m.styles.Error.Render("Error: ") + m.lastError + "\n\n" + m.renderHelpLine()
		}
		return "Loading plan..."
	}

	var b strings.Builder
	p := m.snap.Plan

	b.WriteString(m.styles.Title.Render(fmt.Sprintf("plancraft watch · %s", p.Name)))
	b.WriteString("\n")
	b.WriteString(m.styles.Subtitle.Render(fmt.Sprintf("%s  checkpoint %s", p.ID, m.snap.Checkpoint)))
	b.WriteString("\n\n")

	b.WriteString(m.renderProgressBar(planprogress.Compute(p)))
	b.WriteString("\n\n")

	for _, ph := range p.OrderedPhases() {
		b.WriteString(m.renderPhase(p, ph))
	}

	b.WriteString("\n")
	b.WriteString(m.renderNext())
	b.WriteString("\n")

	if m.lastError != "" {
		b.WriteString(m.styles.Error.Render("Error: ") + m.lastError + "\n")
	}
	if !m.updatedAt.IsZero() {
		b.WriteString(m.styles.Muted.Render("updated " + m.updatedAt.Format("15:04:05")))
		b.WriteString("\n")
	}
	b.WriteString(m.renderHelpLine())
	return b.String()
}

func (m Model) renderProgressBar(pr planprogress.Progress) string {
	var bar string
	if m.noColor {
		bar = "[" + planprogress.Bar(pr.PercentComplete, m.bar.Width) + "]"
	} else {
		bar = m.bar.ViewAs(pr.PercentComplete / 100)
	}
	stats := fmt.Sprintf(" %.0f%% %d/%d tasks", pr.PercentComplete, pr.TasksCompleted, pr.TotalTasks)
	if pr.Failed > 0 {
		stats += m.styles.Error.Render(fmt.Sprintf("  %d failed", pr.Failed))
	}
	return bar + m.styles.Muted.Render(stats)
}

func (m Model) renderPhase(p *plan.Plan, ph *plan.Phase) string {
	var b strings.Builder
	pr := planprogress.ForPhase(p, ph)
	fmt.Fprintf(&b, "%s %s  %s %s\n",
		m.styles.Key.Render(ph.ID.String()),
		ph.Name,
		m.styles.Phase(ph.Status),
		m.styles.Muted.Render(fmt.Sprintf("%d/%d", pr.TasksCompleted, pr.TotalTasks)))
	if ph.Status == domain.PhaseBlocked && ph.BlockedReason != "" {
		fmt.Fprintf(&b, "    %s\n", m.styles.Warning.Render("blocked: "+ph.BlockedReason))
	}
	// completed phases collapse to their header line
	if ph.Status == domain.PhaseCompleted {
		return b.String()
	}
	for _, t := range p.PhaseTasks(ph) {
		fmt.Fprintf(&b, "    %s %s %s\n", t.ID, t.Title, m.styles.Task(t.Status))
	}
	return b.String()
}

func (m Model) renderNext() string {
	d := m.decision
	label := m.styles.Muted.Render("Next: ")
	if d.Task != nil {
		return label + m.styles.Highlighted.Render(fmt.Sprintf("%s %s", d.Task.ID, d.Task.Title))
	}
	switch d.Wait {
	case scheduler.WaitFinished:
		return label + m.styles.Success.Render("all tasks completed")
	case scheduler.WaitFailed:
		return label + m.styles.Error.Render(d.Detail)
	default:
		if d.Detail != "" {
			return label + m.styles.Warning.Render(d.Detail)
		}
		return label + m.styles.Muted.Render(string(d.Wait))
	}
}

func (m Model) renderHelpLine() string {
	keys := []string{
		m.styles.Key.Render("r") + " " + m.styles.Help.Render("reload"),
		m.styles.Key.Render("q") + " " + m.styles.Help.Render("quit"),
	}
	line := strings.Join(keys, m.styles.Help.Render(" • "))
	if m.changes == nil {
		line += m.styles.Help.Render("  (not watching)")
	}
	return lipgloss.NewStyle().MarginTop(1).Render(line)
}
