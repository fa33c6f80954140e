package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/daystreak/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Width(28)

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true).
			Width(10)

	streakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("238"))
)

// RenderHabits formats views as a list, one habit per line.
func RenderHabits(views []models.HabitView) string {
	if len(views) == 0 {
		return pendingStyle.Render("No habits yet. Add one with 'habit add <name>'.")
	}

	var b strings.Builder
	done := 0
	for _, v := range views {
		if v.CompletedToday {
			done++
		}
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("Today: %d/%d done", done, len(views))))
	b.WriteString("\n")

	for _, v := range views {
		mark := pendingStyle.Render("[ ]")
		if v.CompletedToday {
			mark = doneStyle.Render("[x]")
		}
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			mark, " ",
			nameStyle.Render(v.Name),
			categoryStyle.Render(string(v.Category)),
			streakStyle.Render(formatStreak(v.Streak)), "  ",
			idStyle.Render(shortID(v.ID)),
		)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStreak(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
