package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4F4FB7")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#626262")).
			Padding(0, 1)

	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#959595"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#73F59F"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#81A1C1"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

func successText(s string) string { return successStyle.Render("✓ " + s) }
func warningText(s string) string { return warningStyle.Render("! " + s) }
func errorText(s string) string   { return errorStyle.Render("✗ " + s) }
func infoText(s string) string    { return infoStyle.Render(s) }

// keyValues renders aligned "label: value" lines inside a box
func keyValues(title string, rows [][2]string) string {
	width := 0
	for _, r := range rows {
		if len(r[0]) > width {
			width = len(r[0])
		}
	}

	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", width, r[0])))
		b.WriteString("  ")
		b.WriteString(r[1])
	}
	return titleStyle.Render(title) + "\n" + boxStyle.Render(b.String())
}
