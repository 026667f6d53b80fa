package ux

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/plancraft/internal/domain"
)

// Styles holds the lipgloss styles shared by the text formatter and the
// watch view.
type Styles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Muted       lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	Highlighted lipgloss.Style
	Help        lipgloss.Style
	Key         lipgloss.Style
}

// NewStyles returns the default palette, or unstyled output when noColor is set.
func NewStyles(noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{
			Title: plain, Subtitle: plain, Muted: plain, Error: plain, Success: plain,
			Warning: plain, Highlighted: plain, Help: plain, Key: plain,
		}
	}
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")),
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")),
		Highlighted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Key: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true),
	}
}

// Phase renders a phase status with its color.
func (s Styles) Phase(st domain.PhaseStatus) string {
	switch st {
	case domain.PhaseCompleted:
		return s.Success.Render(st.String())
	case domain.PhaseInProgress:
		return s.Highlighted.Render(st.String())
	case domain.PhaseBlocked:
		return s.Warning.Render(st.String())
	default:
		return s.Muted.Render(st.String())
	}
}

// Task renders a task status with its color.
func (s Styles) Task(st domain.TaskStatus) string {
	switch st {
	case domain.TaskCompleted:
		return s.Success.Render(st.String())
	case domain.TaskInProgress:
		return s.Highlighted.Render(st.String())
	case domain.TaskFailed:
		return s.Error.Render(st.String())
	default:
		return s.Muted.Render(st.String())
	}
}
