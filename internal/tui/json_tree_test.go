package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestRenderJSONTreeObject(t *testing.T) {
	tree, err := renderJSONTree([]byte(`{"context": "MAP", "run": {"floor": 3, "hp": 70}, "relics": []}`), false, 80)
	if err != nil {
		t.Fatalf("renderJSONTree() error: %v", err)
	}

	lines := strings.Split(tree, "\n")
	want := []string{
		`├─"context": MAP`,
		`├─"relics": (empty)`,
		`└─"run": `,
		`  ├─"floor": 3`,
		`  └─"hp": 70`,
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), tree)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestRenderJSONTreeArrayTruncation(t *testing.T) {
	items := make([]map[string]int, 10)
	for i := range items {
		items[i] = map[string]int{"id": i}
	}
	data, _ := json.Marshal(map[string]any{"deck": items})

	tree, err := renderJSONTree(data, false, 80)
	if err != nil {
		t.Fatalf("renderJSONTree() error: %v", err)
	}
	if !strings.Contains(tree, "[4 more]") {
		t.Error("expected '[4 more]' for a 10-item array")
	}
	for _, i := range []int{0, 1, 2, 7, 8, 9} {
		if !strings.Contains(tree, fmt.Sprintf(`"id": %d`, i)) {
			t.Errorf("expected item %d", i)
		}
	}
	for _, i := range []int{3, 4, 5, 6} {
		if strings.Contains(tree, fmt.Sprintf(`"id": %d`, i)) {
			t.Errorf("item %d should be elided", i)
		}
	}

	verbose, _ := renderJSONTree(data, true, 80)
	if strings.Contains(verbose, "more]") || !strings.Contains(verbose, `"id": 5`) {
		t.Error("verbose mode must show every item")
	}
}

func TestRenderJSONTreeTruncatesValues(t *testing.T) {
	long := strings.Repeat("x", 200)
	tree, err := renderJSONTree([]byte(`{"name":"`+long+`"}`), false, 40)
	if err != nil {
		t.Fatalf("renderJSONTree() error: %v", err)
	}
	if !strings.HasSuffix(tree, "...") || len(tree) > 60 {
		t.Errorf("expected truncated value, got %q", tree)
	}
}

func TestRenderJSONTreeInvalid(t *testing.T) {
	if _, err := renderJSONTree([]byte(`{invalid`), false, 80); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
