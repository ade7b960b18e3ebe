package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xonecas/spire-advisor/internal/advice"
	"github.com/xonecas/spire-advisor/internal/config"
	"github.com/xonecas/spire-advisor/internal/core"
	"github.com/xonecas/spire-advisor/internal/snapshot"
	"github.com/xonecas/spire-advisor/internal/store"
)

// Lines taken by the header, state block and footer around the body.
const chromeHeight = 7

func bodyHeight(height int) int {
	h := height - chromeHeight
	if h < 3 {
		h = 3
	}
	return h
}

// View renders the UI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return RenderHelp(m.width, m.height)
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderState())

	switch m.view {
	case ViewSnapshot:
		sections = append(sections, renderSectionTitle("SNAPSHOT", scrollSuffix(m), m.width))
		sections = append(sections, m.viewport.View())
	case ViewHistory:
		sections = append(sections, renderSectionTitle("HISTORY", scrollSuffix(m), m.width))
		sections = append(sections, m.viewport.View())
	default:
		sections = append(sections, renderSectionTitle("ADVICE", "", m.width))
		sections = append(sections, renderAdvice(m.engine.Recommendation(), m.engine.LastFailure(), m.width-2))
	}

	if m.err != nil {
		sections = append(sections, stateErroredStyle.Render("Error: "+m.err.Error()))
	}
	sections = append(sections, renderFooter(m.engine.Features(), m.width))
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := headerStyle.Render("SPIRE ADVISOR")
	net := m.net.View()
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(net)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + net
}

func (m Model) renderState() string {
	status := m.engine.Status()
	busy := m.engine.Busy()
	failed := m.engine.LastFailure() != nil && status == m.engine.LastFailure().Code

	line := StatusStyle(status, busy, failed).Render(status)
	if busy {
		line = m.spinner.View() + " " + line
	}
	if age := m.engine.SecondsSinceSuccess(); age >= 0 {
		line += labelStyle.Render(fmt.Sprintf("  last advice %s ago", formatAge(age)))
	}

	lines := []string{
		line,
		labelStyle.Render(truncateWithEllipsis(m.engine.SnapshotSummary(), m.width)),
		dimmedStyle.Render(truncateWithEllipsis(m.engine.SnapshotStatus(), m.width)),
	}
	return strings.Join(lines, "\n")
}

func formatAge(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", int(seconds))
	case seconds < 3600:
		return fmt.Sprintf("%dm", int(seconds/60))
	default:
		return fmt.Sprintf("%dh", int(seconds/3600))
	}
}

// renderAdvice renders the latest recommendation, or the last failure with
// its raw text.
func renderAdvice(rec *advice.Recommendation, failure *core.Failure, width int) string {
	if failure != nil {
		lines := []string{stateErroredStyle.Render(failure.Label + " failed: " + failure.Code)}
		if failure.Raw != "" {
			for _, l := range strings.Split(failure.Raw, "\n") {
				lines = append(lines, dimmedStyle.Render(truncateWithEllipsis(l, width)))
				if len(lines) > 6 {
					break
				}
			}
		}
		if rec == nil {
			return strings.Join(lines, "\n")
		}
		lines = append(lines, "")
		return strings.Join(lines, "\n") + "\n" + renderRecommendation(rec, width)
	}
	if rec == nil {
		return dimmedStyle.Render("No advice yet. Press r to ask.")
	}
	return renderRecommendation(rec, width)
}

func renderRecommendation(rec *advice.Recommendation, width int) string {
	var lines []string
	if rec.Summary != "" {
		lines = append(lines, lipgloss.NewStyle().Width(width).Render(rec.Summary))
	}
	for i, item := range rec.Items {
		head := fmt.Sprintf("%d. %s", i+1, itemTitleStyle.Render(item.Title))
		if item.Action != "" && item.Action != item.Title {
			head += ": " + item.Action
		}
		head += " " + confidenceStyle.Render(fmt.Sprintf("%d%%", int(item.Confidence*100+0.5)))
		lines = append(lines, head)
		if item.Reason != "" {
			lines = append(lines, "   "+itemReasonStyle.Render(truncateWithEllipsis(item.Reason, width-3)))
		}
	}
	if rec.NextPickIndex != nil {
		lines = append(lines, labelStyle.Render(fmt.Sprintf("next pick: #%d", *rec.NextPickIndex+1)))
	}
	if len(rec.RoutePlan) > 0 {
		lines = append(lines, labelStyle.Render("route: ")+strings.Join(rec.RoutePlan, " > "))
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

// renderSnapshot renders the payload last prepared for the model. States
// that were never serialized are shown untrimmed.
func renderSnapshot(snap *snapshot.Snapshot, width int) string {
	if snap == nil {
		return dimmedStyle.Render("no snapshot")
	}
	payload := snap.Serialized
	if payload == nil {
		data, err := json.Marshal(snap.State)
		if err != nil {
			return stateErroredStyle.Render(err.Error())
		}
		payload = data
	}
	tree, err := renderJSONTree(payload, false, width)
	if err != nil {
		return stateErroredStyle.Render(err.Error())
	}
	return tree
}

// renderHistory renders logged requests, newest last.
func renderHistory(entries []*store.AdviceEntry, width int) string {
	if len(entries) == 0 {
		return dimmedStyle.Render("no advice logged")
	}
	var lines []string
	for _, e := range entries {
		ts := labelStyle.Render("[" + e.CreatedAt.Local().Format("15:04:05") + "]")
		head := ts + " " + e.Context + " " + e.Label
		if e.Reason != "" {
			head += dimmedStyle.Render(" (" + e.Reason + ")")
		}
		lines = append(lines, head)
		if e.Failed() {
			lines = append(lines, "  "+stateErroredStyle.Render(e.Code))
			continue
		}
		if e.Summary != "" {
			lines = append(lines, "  "+truncateWithEllipsis(e.Summary, width-2))
		}
		for _, item := range e.Items {
			lines = append(lines, "  • "+truncateWithEllipsis(item.Title+": "+item.Action, width-4))
		}
	}
	return strings.Join(lines, "\n")
}

func scrollSuffix(m Model) string {
	if m.viewport.TotalLineCount() <= m.viewport.Height {
		return ""
	}
	return dimmedStyle.Render(fmt.Sprintf(" %3.0f%%", m.viewport.ScrollPercent()*100))
}

func renderFooter(f config.FeaturesConfig, width int) string {
	parts := []string{
		toggle("a", "auto", f.AutoTriggers),
		toggle("c", "combat", f.CombatAdvice),
		toggle("m", "multi", f.MultiRecommendations),
		toggle("", "kb", f.UseKnowledgeBase),
		helpDescStyle.Render("r ask  d snapshot  h history  ? help"),
	}
	line := strings.Join(parts, "  ")
	if lipgloss.Width(line) > width {
		// Drop the key hint before wrapping.
		line = strings.Join(parts[:len(parts)-1], "  ")
	}
	return line
}

func toggle(k, name string, on bool) string {
	label := name
	if k != "" {
		label = helpKeyStyle.Render(k) + " " + name
	}
	if on {
		return label + " " + toggleOnStyle.Render("on")
	}
	return label + " " + toggleOffStyle.Render("off")
}
