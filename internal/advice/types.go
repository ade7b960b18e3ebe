// Package advice builds prompts from snapshots and parses model replies
// into recommendations.
package advice

import "github.com/xonecas/spire-advisor/internal/gamestate"

// Action types attached to recommendation items.
const (
	ActionCombatLine = "combat_line"
	ActionGeneral    = "general"
)

// Item is one recommended action.
type Item struct {
	ActionType string  `json:"action_type"`
	Title      string  `json:"title"`
	Action     string  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Recommendation is a parsed model reply.
type Recommendation struct {
	Context       gamestate.ContextTag `json:"context"`
	Summary       string               `json:"summary"`
	Items         []Item               `json:"items"`
	NextPickIndex *int                 `json:"next_pick_index,omitempty"`
	RoutePlan     []string             `json:"route_plan,omitempty"`
}

// Cap is the maximum number of items kept for ctx. Combat and shop have
// fixed caps; elsewhere multi raises the default of one.
func Cap(ctx gamestate.ContextTag, multi bool) int {
	switch ctx {
	case gamestate.ContextCombat:
		return 2
	case gamestate.ContextShop:
		return 3
	}
	if multi {
		return 3
	}
	return 1
}
