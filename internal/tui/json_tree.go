package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	treeEdge  = "├─"
	treeLast  = "└─"
	treeVert  = "│ "
	treeSpace = "  "

	// Arrays longer than arrayTruncateThreshold show their first and last
	// few elements only.
	arrayTruncateThreshold = 6
	arrayShowFirst         = 3
	arrayShowLast          = 3
)

var (
	treeKeyStyle   = lipgloss.NewStyle().Foreground(colorKey)
	treeIndexStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// renderJSONTree renders a snapshot payload as a box-drawing tree. Unless
// verbose is set, long arrays are elided in the middle. maxWidth bounds the
// line width (0 = no limit).
func renderJSONTree(payload []byte, verbose bool, maxWidth int) (string, error) {
	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	t := treeRenderer{verbose: verbose, maxWidth: maxWidth}
	t.children(data, "")
	return strings.Join(t.lines, "\n"), nil
}

type treeRenderer struct {
	verbose  bool
	maxWidth int
	lines    []string
}

type treeEntry struct {
	label string
	value any
}

// children renders the members of an object or array below prefix. A
// scalar at the top level renders as a single line.
func (t *treeRenderer) children(v any, prefix string) {
	var entries []treeEntry
	elided := 0
	switch v := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			entries = append(entries, treeEntry{treeKeyStyle.Render(fmt.Sprintf("%q: ", k)), v[k]})
		}
	case []any:
		idx := make([]int, 0, len(v))
		if !t.verbose && len(v) > arrayTruncateThreshold {
			for i := 0; i < arrayShowFirst; i++ {
				idx = append(idx, i)
			}
			for i := len(v) - arrayShowLast; i < len(v); i++ {
				idx = append(idx, i)
			}
			elided = len(v) - len(idx)
		} else {
			for i := range v {
				idx = append(idx, i)
			}
		}
		for _, i := range idx {
			entries = append(entries, treeEntry{treeIndexStyle.Render(fmt.Sprintf("[%d] ", i)), v[i]})
		}
	default:
		t.lines = append(t.lines, t.fit(prefix, fmt.Sprintf("%v", v)))
		return
	}

	for n, e := range entries {
		if elided > 0 && n == arrayShowFirst {
			t.lines = append(t.lines, prefix+treeEdge+dimmedStyle.Render(fmt.Sprintf("[%d more]", elided)))
		}
		last := n == len(entries)-1
		connector, childPrefix := treeEdge, prefix+treeVert
		if last {
			connector, childPrefix = treeLast, prefix+treeSpace
		}
		line := prefix + connector + e.label

		switch c := e.value.(type) {
		case map[string]any:
			if len(c) == 0 {
				t.lines = append(t.lines, line+"(empty)")
				continue
			}
			t.lines = append(t.lines, line)
			t.children(c, childPrefix)
		case []any:
			if len(c) == 0 {
				t.lines = append(t.lines, line+"(empty)")
				continue
			}
			t.lines = append(t.lines, line)
			t.children(c, childPrefix)
		default:
			t.lines = append(t.lines, t.fit(line, fmt.Sprintf("%v", c)))
		}
	}
}

// fit appends value to line, truncating the value to the remaining width.
func (t *treeRenderer) fit(line, value string) string {
	if t.maxWidth > 0 {
		available := t.maxWidth - lipgloss.Width(line)
		if available < 10 {
			available = 10
		}
		value = truncateWithEllipsis(value, available)
	}
	return line + value
}
