package advice

import (
	"strconv"
	"strings"

	"github.com/xonecas/spire-advisor/internal/constants"
	"github.com/xonecas/spire-advisor/internal/gamestate"
)

// PromptInput is what a prompt is built from: the full state for the
// essential facts, and the trimmed payload for the snapshot body.
type PromptInput struct {
	Context gamestate.ContextTag
	State   *gamestate.RawState
	Payload []byte
	Digest  string
}

// PromptOptions mirror the user-facing feature toggles.
type PromptOptions struct {
	UseKnowledgeBase bool
	Multi            bool
	MaxSnapshotChars int
}

// Prompt is the system and user text of one request.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt renders the prompt for one request. It is pure.
func BuildPrompt(in PromptInput, opts PromptOptions) Prompt {
	ctx := in.Context
	if ctx == "" {
		ctx = gamestate.ContextOther
	}
	combat := ctx == gamestate.ContextCombat
	limit := opts.MaxSnapshotChars
	if limit <= 0 {
		limit = constants.PromptSnapshotMaxChars
	}

	system := constants.SystemPrompt
	if combat {
		system += "\n" + constants.CombatPromptAddendum
	}

	payload, truncated := truncateSnapshot(string(in.Payload), limit)
	if payload == "" {
		payload = "{}"
	}

	var b strings.Builder
	b.WriteString("context_type: " + string(ctx) + "\n")
	b.WriteString("snapshot_hash: " + in.Digest + "\n")
	if facts := EssentialFacts(in.State); facts != "" {
		b.WriteString("essential_facts: " + facts + "\n")
	}
	if opts.UseKnowledgeBase {
		if notes := Knowledge(ctx); notes != "" {
			b.WriteString("knowledge:\n" + notes)
		}
	}
	b.WriteString("snapshot_json: " + payload + "\n")
	if truncated {
		b.WriteString("snapshot_json_truncated: true\n")
	}
	b.WriteString("Output JSON schema:\n")
	b.WriteString(outputSchema(combat))
	b.WriteString("Rules: recommendations max " + strconv.Itoa(Cap(ctx, opts.Multi)))
	if combat {
		b.WriteString("; action_type must be combat_line")
	}
	b.WriteString("; all fields required; output JSON only.")

	return Prompt{System: system, User: b.String()}
}

func truncateSnapshot(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	keep := limit - len(constants.PromptTruncatedSuffix)
	if keep < 0 {
		keep = 0
	}
	return s[:keep] + constants.PromptTruncatedSuffix, true
}

func outputSchema(combat bool) string {
	actionTypes := "path|card_pick|potion|combat_line|shop|general"
	if combat {
		actionTypes = "combat_line"
	}
	return `{
  "context_type": "MAP|COMBAT|CARD_REWARD|SHOP|NEOW|BOSS_RELIC|REST|EVENT|OTHER",
  "summary": "short overview",
  "recommendations": [
    {
      "action_type": "` + actionTypes + `",
      "title": "short title",
      "action": "what to do",
      "reason": "why",
      "confidence": 0.0
    }
  ],
  "next_pick_index": 0,
  "route_plan": ["optional ordered node list for MAP"]
}
`
}

// EssentialFacts renders the run facts that must survive any trimming.
func EssentialFacts(s *gamestate.RawState) string {
	if s == nil {
		return ""
	}
	var parts []string
	if r := s.Run; r != nil {
		if r.Character != "" {
			parts = append(parts, "character="+r.Character)
		}
		if r.Ascension != nil {
			parts = append(parts, "ascension="+strconv.Itoa(*r.Ascension))
		}
		if r.HP != nil && r.MaxHP != nil {
			parts = append(parts, "hp="+strconv.Itoa(*r.HP)+"/"+strconv.Itoa(*r.MaxHP))
		}
		if r.Gold != nil {
			parts = append(parts, "gold="+strconv.Itoa(*r.Gold))
		}
	}
	if s.Deck != nil {
		ids := make([]string, len(s.Deck))
		for i, c := range s.Deck {
			ids[i] = c.ID
			if c.Upgraded {
				ids[i] += "+"
			}
		}
		parts = append(parts, "deck_count="+strconv.Itoa(len(ids)), "deck=["+strings.Join(ids, ",")+"]")
	}
	if s.Relics != nil {
		ids := make([]string, len(s.Relics))
		for i, r := range s.Relics {
			ids[i] = r.ID
		}
		parts = append(parts, "relics=["+strings.Join(ids, ",")+"]")
	}
	if s.Potions != nil {
		ids := make([]string, len(s.Potions))
		for i, p := range s.Potions {
			ids[i] = p.ID
		}
		parts = append(parts, "potions=["+strings.Join(ids, ",")+"]")
	}
	return strings.Join(parts, ", ")
}
