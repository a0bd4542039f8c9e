// Package theme holds the terminal styles used by the command line output.
package theme

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
)

// Color palette
var (
	Primary   = lipgloss.Color("#2563EB") // Exam blue
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F59E0B") // Amber
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim)

	Label = lipgloss.NewStyle().
		Foreground(Secondary).
		Width(18)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Accent)

	Rule = lipgloss.NewStyle().
		Foreground(Border)
)

// States
var (
	Good = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Bad = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)

	Warn = lipgloss.NewStyle().
		Foreground(Accent)
)

// Card frames a block of output.
var Card = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Border).
	Padding(0, 1)

// KV renders one "label  value" line.
func KV(label string, value any) string {
	return Label.Render(label) + fmt.Sprint(value)
}

// Check renders a tick or a cross.
func Check(ok bool) string {
	if ok {
		return Good.Render("✓")
	}
	return Bad.Render("✗")
}

// Divider is a horizontal rule of width n.
func Divider(n int) string {
	return Rule.Render(strings.Repeat("─", n))
}

// Section renders a title followed by its lines inside a card.
func Section(title string, lines ...string) string {
	body := strings.Join(lines, "\n")
	return Card.Render(Title.Render(title) + "\n" + body)
}
