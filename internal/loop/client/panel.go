package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tomz197/sshtargets/internal/leaderboard"
	"github.com/tomz197/sshtargets/internal/shell"
)

// scoreboard renders the leaderboard panel shown on the start screen.
type scoreboard struct {
	box   lipgloss.Style
	title lipgloss.Style
	mark  lipgloss.Style
	dim   lipgloss.Style
	warn  lipgloss.Style
}

const panelWidth = 34

func newScoreboard(r *lipgloss.Renderer) *scoreboard {
	return &scoreboard{
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1).
			Width(panelWidth),
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		mark:  r.NewStyle().Bold(true).Reverse(true),
		dim:   r.NewStyle().Faint(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// Render returns the panel for v. highlight marks one record when ok.
func (s *scoreboard) Render(v shell.View, highlight int64, ok bool) string {
	lines := []string{s.title.Render("HIGH SCORES"), ""}

	switch {
	case len(v.Top) > 0:
		for i, rec := range v.Top {
			line := fmt.Sprintf("%2d. %-*s %6d", i+1, leaderboard.MaxNameLength, rec.Name, rec.Score)
			if ok && rec.ID == highlight {
				line = s.mark.Render(line)
			}
			lines = append(lines, line)
		}
		lines = append(lines, "",
			fmt.Sprintf("%-8s %d", "Highest", v.Stats.Highest),
			fmt.Sprintf("%-8s %d", "Average", v.Stats.Average),
			fmt.Sprintf("%-8s %d", "Games", v.Stats.Count))
	case v.Status == shell.StatusFailed:
		lines = append(lines, s.warn.Render("Could not load scores."))
	case v.Status == shell.StatusReady:
		lines = append(lines, s.dim.Render("No scores yet. Be the first!"))
	default:
		lines = append(lines, s.dim.Render("Loading scores..."))
	}

	if v.Status == shell.StatusFailed {
		lines = append(lines, "", s.warn.Render("Press R to retry."))
	}
	if v.SaveErr != nil {
		lines = append(lines, "", s.warn.Render("Your last score was not saved."))
	}
	return s.box.Render(strings.Join(lines, "\n"))
}
