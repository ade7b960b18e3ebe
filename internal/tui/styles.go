package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors - parchment and ember, readable on top of the game
var (
	colorBrand    = lipgloss.Color("#E8A33D") // Ember gold
	colorBrandDim = lipgloss.Color("#9C6A22")
	colorTeal     = lipgloss.Color("#4FC1B0")

	colorWarning = lipgloss.Color("#FF9F43")
	colorError   = lipgloss.Color("#FF4D5E")
	colorSuccess = lipgloss.Color("#7BD88F")
	colorMuted   = lipgloss.Color("#7A7490")

	colorBgPanel = lipgloss.Color("#15121C")
	colorKey     = lipgloss.Color("214") // JSON keys in the snapshot tree
	colorDim     = lipgloss.Color("240")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBrand)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBrand)

	stateIdleStyle = lipgloss.NewStyle().
			Foreground(colorTeal)

	stateBusyStyle = lipgloss.NewStyle().
			Foreground(colorBrand).
			Bold(true)

	stateSkippedStyle = lipgloss.NewStyle().
				Foreground(colorWarning)

	stateErroredStyle = lipgloss.NewStyle().
				Foreground(colorError).
				Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBrandDim).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(colorTeal).
			Bold(true)

	itemTitleStyle = lipgloss.NewStyle().
			Foreground(colorBrand).
			Bold(true)

	itemReasonStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	confidenceStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	helpStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorBrand).
			Background(colorBgPanel).
			Padding(1, 2).
			Margin(1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorTeal).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	toggleOnStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	toggleOffStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	dimmedStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

// StatusStyle picks the style of the engine state line.
func StatusStyle(status string, busy, failed bool) lipgloss.Style {
	switch {
	case busy:
		return stateBusyStyle
	case failed:
		return stateErroredStyle
	case strings.HasPrefix(status, "auto skipped"), strings.HasPrefix(status, "combat skipped"):
		return stateSkippedStyle
	default:
		return stateIdleStyle
	}
}

// renderSectionTitle renders a title padded with dashes to width.
func renderSectionTitle(title, suffix string, width int) string {
	titleWithSpaces := " " + title + " "
	available := width - lipgloss.Width(titleWithSpaces) - 4 - lipgloss.Width(suffix)
	if available < 2 {
		available = 2
	}
	left := available / 2
	right := available - left

	line := "┤─" + strings.Repeat("─", left) + titleWithSpaces + strings.Repeat("─", right) + "─├" + suffix
	return panelTitleStyle.Render(line)
}

// truncateToWidth truncates s to maxWidth display columns without cutting
// a multi-byte character.
func truncateToWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	currentWidth := 0
	for i, r := range s {
		charWidth := lipgloss.Width(string(r))
		if currentWidth+charWidth > maxWidth {
			return s[:i]
		}
		currentWidth += charWidth
	}
	return s
}

func truncateWithEllipsis(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return truncateToWidth(s, maxWidth)
	}
	return truncateToWidth(s, maxWidth-3) + "..."
}
