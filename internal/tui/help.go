package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type helpItem struct {
	key  string
	desc string
}

var helpItems = []helpItem{
	{"r", "Ask for advice now"},
	{"a", "Toggle automatic requests"},
	{"c", "Toggle combat advice"},
	{"m", "Toggle multiple recommendations"},
	{"d", "Show snapshot sent to the model"},
	{"h", "Show advice history"},
	{"Esc", "Back"},
	{"↑ / ↓", "Scroll"},
	{"PgUp / PgDn", "Scroll page"},
	{"?", "Toggle help"},
	{"q / Ctrl+C", "Quit"},
}

// RenderHelp renders the help overlay centered in width x height.
func RenderHelp(width, height int) string {
	var lines []string
	lines = append(lines, titleStyle.Render("Keys"))
	lines = append(lines, "")

	maxKeyLen := 0
	for _, item := range helpItems {
		if w := lipgloss.Width(item.key); w > maxKeyLen {
			maxKeyLen = w
		}
	}
	for _, item := range helpItems {
		key := helpKeyStyle.Render(padRight(item.key, maxKeyLen))
		lines = append(lines, key+"  "+helpDescStyle.Render(item.desc))
	}

	box := helpStyle.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func padRight(s string, length int) string {
	w := lipgloss.Width(s)
	if w >= length {
		return s
	}
	return s + strings.Repeat(" ", length-w)
}
