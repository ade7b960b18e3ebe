package gamestate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DebugLines flattens serialized snapshot JSON into sorted "path: value"
// lines for the debug panel. With compact set, arrays render as item counts
// instead of being expanded.
func DebugLines(data []byte, compact bool) []string {
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil
	}

	var root any
	decoder := json.NewDecoder(strings.NewReader(content))
	decoder.UseNumber()
	if err := decoder.Decode(&root); err != nil {
		return []string{"(invalid snapshot JSON)"}
	}

	w := lineWalker{compact: compact, lines: make([]string, 0, 64)}
	w.walk(root, "")
	return w.lines
}

type lineWalker struct {
	compact bool
	lines   []string
}

func (w *lineWalker) walk(value any, path string) {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			w.add(path, "{}")
			return
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			w.walk(v[key], joinPath(path, key))
		}
	case []any:
		if len(v) == 0 {
			w.add(path, "[]")
			return
		}
		if w.compact {
			w.add(path, fmt.Sprintf("[%d items]", len(v)))
			return
		}
		for i, item := range v {
			w.walk(item, fmt.Sprintf("%s[%d]", path, i))
		}
	default:
		w.add(path, formatScalar(v))
	}
}

func (w *lineWalker) add(path, value string) {
	if path == "" {
		w.lines = append(w.lines, value)
		return
	}
	w.lines = append(w.lines, path+": "+value)
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func formatScalar(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
