package gamestate

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMarshalKeepsEmptyLists(t *testing.T) {
	s := &RawState{Context: ContextMap, Run: &Run{Floor: Int(3)}, Potions: []Potion{}}
	got := string(s.Marshal())

	if !strings.Contains(got, `"potions":[]`) {
		t.Errorf("expected empty potions to serialize as [], got %s", got)
	}
	if strings.Contains(got, "deck_summary") {
		t.Errorf("expected unknown deck to be omitted, got %s", got)
	}
}

func TestUnmarshalKeepsEmptyLists(t *testing.T) {
	var s RawState
	if err := json.Unmarshal([]byte(`{"context":"COMBAT","potions":[],"combat":{"turn":1,"hand":[]}}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Potions == nil || len(s.Potions) != 0 {
		t.Errorf("expected empty non-nil potions, got %#v", s.Potions)
	}
	if s.Combat.Hand == nil {
		t.Error("expected empty non-nil hand")
	}
	if s.Deck != nil {
		t.Errorf("expected nil deck, got %#v", s.Deck)
	}
}

func TestCloneIsDeepAndKeepsEmptyLists(t *testing.T) {
	s := sampleCombatState(0)
	s.Potions = []Potion{}
	s.Relics = nil
	s.Deck[0].Cost = Int(1)
	s.Shop = &Shop{Cards: []ShopItem{}}
	s.MapFull = sampleMapState(2, 2, 2).MapFull

	c := s.Clone()
	if diff := cmp.Diff(s, c); diff != "" {
		t.Fatalf("clone mismatch (-want +got):\n%s", diff)
	}
	if c.Potions == nil || c.Combat.Hand == nil || c.Shop.Cards == nil {
		t.Error("clone turned an empty list into nil")
	}
	if c.Relics != nil {
		t.Error("clone turned an unknown list into an empty one")
	}

	c.Deck[0].ID = "Changed"
	*c.Deck[0].Cost = 9
	*c.Run.Gold = 1
	c.Combat.Monsters[0].HP = 1
	c.MapFull.Rows[0].Nodes[0].Next[0].X = 99
	if s.Deck[0].ID == "Changed" || *s.Deck[0].Cost == 9 || *s.Run.Gold == 1 ||
		s.Combat.Monsters[0].HP == 1 || s.MapFull.Rows[0].Nodes[0].Next[0].X == 99 {
		t.Error("clone shares memory with the original")
	}
}
