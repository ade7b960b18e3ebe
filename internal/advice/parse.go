package advice

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/xonecas/spire-advisor/internal/constants"
	"github.com/xonecas/spire-advisor/internal/gamestate"
)

// Parse failure kinds.
const (
	ParseEmpty          = "empty"
	ParseNoJSON         = "no_json"
	ParseSchemaMismatch = "schema_mismatch"
)

// ParseError reports a reply that could not be turned into a Recommendation.
// Raw holds the reply text, truncated for display.
type ParseError struct {
	Kind   string
	Detail string
	Raw    string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return "parse_failed:" + e.Kind
	}
	return "parse_failed:" + e.Kind + ": " + e.Detail
}

// Code is the status-line tag for the failure.
func (e *ParseError) Code() string {
	return "parse_failed:" + e.Kind
}

const replySchemaJSON = `{
  "type": "object",
  "required": ["recommendations"],
  "properties": {
    "context_type": {"type": ["string", "null"]},
    "summary": {"type": ["string", "null"]},
    "recommendations": {
      "type": "array",
      "items": {
        "type": ["object", "null"],
        "properties": {
          "action_type": {"type": ["string", "null"]},
          "title": {"type": ["string", "null"]},
          "action": {"type": ["string", "null"]},
          "reason": {"type": ["string", "null"]},
          "confidence": {"type": ["number", "null"]}
        }
      }
    },
    "next_pick_index": {"type": ["integer", "null"]},
    "route_plan": {
      "oneOf": [
        {"type": "string"},
        {"type": "null"},
        {"type": "array", "items": {"type": "string"}}
      ]
    }
  }
}`

var replySchema = mustCompileSchema(replySchemaJSON)

func mustCompileSchema(src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("parse reply schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("reply.json", doc); err != nil {
		panic(fmt.Sprintf("add reply schema: %v", err))
	}
	compiled, err := c.Compile("reply.json")
	if err != nil {
		panic(fmt.Sprintf("compile reply schema: %v", err))
	}
	return compiled
}

type wireItem struct {
	ActionType *string  `json:"action_type"`
	Title      *string  `json:"title"`
	Action     *string  `json:"action"`
	Reason     *string  `json:"reason"`
	Confidence *float64 `json:"confidence"`
}

type wireReply struct {
	ContextType   string          `json:"context_type"`
	Summary       string          `json:"summary"`
	Items         []*wireItem     `json:"recommendations"`
	NextPickIndex *int            `json:"next_pick_index"`
	RoutePlan     json.RawMessage `json:"route_plan"`
}

// ParseReply extracts the first JSON object from the model's text, checks it
// against the reply schema and clamps the item list to limit.
func ParseReply(text string, ctx gamestate.ContextTag, limit int) (*Recommendation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Kind: ParseEmpty}
	}
	obj := ExtractFirstObject(StripCodeFences(text))
	if obj == "" {
		return nil, &ParseError{Kind: ParseNoJSON, Raw: Truncate(text, constants.RawResponseMaxChars)}
	}

	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(obj))
	if err != nil {
		return nil, &ParseError{Kind: ParseNoJSON, Detail: err.Error(), Raw: Truncate(text, constants.RawResponseMaxChars)}
	}
	if err := replySchema.Validate(inst); err != nil {
		return nil, &ParseError{Kind: ParseSchemaMismatch, Detail: firstLine(err.Error()), Raw: Truncate(text, constants.RawResponseMaxChars)}
	}

	var wire wireReply
	if err := json.Unmarshal([]byte(obj), &wire); err != nil {
		return nil, &ParseError{Kind: ParseSchemaMismatch, Detail: err.Error(), Raw: Truncate(text, constants.RawResponseMaxChars)}
	}

	if limit < 1 {
		limit = 1
	}
	combat := ctx == gamestate.ContextCombat
	rec := &Recommendation{
		Context:       ctx,
		Summary:       wire.Summary,
		NextPickIndex: wire.NextPickIndex,
		RoutePlan:     parseRoutePlan(wire.RoutePlan),
	}
	for _, w := range wire.Items {
		if w == nil {
			continue
		}
		item := Item{
			ActionType: deref(w.ActionType),
			Title:      deref(w.Title),
			Action:     deref(w.Action),
			Reason:     deref(w.Reason),
			Confidence: constants.DefaultRecommendationConfidence,
		}
		if w.Confidence != nil {
			item.Confidence = *w.Confidence
		}
		switch {
		case combat:
			item.ActionType = ActionCombatLine
		case item.ActionType == "":
			item.ActionType = ActionGeneral
		}
		rec.Items = append(rec.Items, item)
		if len(rec.Items) >= limit {
			break
		}
	}
	return rec, nil
}

func parseRoutePlan(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return nil
		}
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

// StripCodeFences removes a surrounding markdown code fence, if any.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line.
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// ExtractFirstObject returns the first balanced {...} in s, honoring string
// literals and escapes, or "" if there is none.
func ExtractFirstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// Truncate caps s at n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
