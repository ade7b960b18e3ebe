package gamestate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTrimWithinBudget(t *testing.T) {
	s := sampleCombatState(5)
	res := Trim(s, 1<<20)
	if res.Trimmed() {
		t.Errorf("expected no steps, got %v", res.Dropped)
	}
	if string(res.Bytes) != string(s.Marshal()) {
		t.Error("expected untouched serialization")
	}
}

func TestTrimDoesNotMutateInput(t *testing.T) {
	s := sampleCombatState(40)
	before := s.Clone()
	Trim(s, 500)
	if diff := cmp.Diff(before, s); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}

func TestTrimCombatTruncatesHandBeforeRelics(t *testing.T) {
	s := sampleCombatState(60)
	full := len(s.Marshal())

	res := Trim(s, full/2)
	if len(res.Dropped) == 0 {
		t.Fatal("expected at least one step")
	}
	if res.Dropped[0] != StepHandTruncated {
		t.Errorf("expected first step %s, got %s", StepHandTruncated, res.Dropped[0])
	}
	if got := len(res.State.Combat.Hand); got != 10 {
		t.Errorf("expected hand of 10, got %d", got)
	}
	if i := indexOf(res.Dropped, StepRelicsDropped); i >= 0 && i < indexOf(res.Dropped, StepHandTruncated) {
		t.Errorf("relics dropped before hand truncated: %v", res.Dropped)
	}
	if len(res.Bytes) > full/2 {
		t.Errorf("expected size <= %d, got %d", full/2, len(res.Bytes))
	}
	if res.State.Relics == nil {
		t.Error("relics should survive when hand truncation is enough")
	}
}

func TestTrimMapTruncatesEdgesBeforeDroppingMapFull(t *testing.T) {
	s := sampleMapState(15, 7, 3)
	full := len(s.Marshal())

	res := Trim(s, full-100)
	if len(res.Dropped) == 0 {
		t.Fatal("expected at least one step")
	}
	if res.Dropped[0] != StepMapFullEdgesTruncated {
		t.Errorf("expected first step %s, got %v", StepMapFullEdgesTruncated, res.Dropped)
	}
	if res.State.MapFull == nil {
		t.Error("map_full should survive edge truncation")
	}

	tight := Trim(s, 600)
	edges := indexOf(tight.Dropped, StepMapFullEdgesTruncated)
	drop := indexOf(tight.Dropped, StepMapFullDropped)
	if edges < 0 || drop < 0 || edges > drop {
		t.Errorf("expected edge truncation before map_full drop, got %v", tight.Dropped)
	}
}

func TestTrimBudgetInvariant(t *testing.T) {
	states := []*RawState{
		sampleCombatState(25),
		sampleMapState(15, 7, 3),
		{Context: ContextCardReward, Run: sampleRun(), Deck: sampleDeck(500), Reward: &Reward{Choices: sampleDeck(5)}},
		{Context: ContextShop, Run: sampleRun(), Relics: sampleRelics(40), Shop: &Shop{PurgeCandidates: sampleDeck(50), PurgeAvailable: true, PurgeCost: 75}},
		{Context: ContextOther},
		nil,
	}
	budgets := []int{0, 10, 100, 400, 1000, 3000, 8000}

	for _, s := range states {
		for _, budget := range budgets {
			res := Trim(s, budget)
			if len(res.Bytes) > budget && !res.Exhausted {
				t.Errorf("budget %d: size %d over budget without exhaustion (steps %v)", budget, len(res.Bytes), res.Dropped)
			}
			if res.Exhausted && (res.State.Deck != nil || res.State.Combat != nil || res.State.MapFull != nil) {
				t.Errorf("budget %d: exhausted with sections still present", budget)
			}
		}
	}
}

func TestTrimPathologicalDeck(t *testing.T) {
	s := &RawState{Context: ContextCardReward, Run: sampleRun(), Deck: sampleDeck(2000)}
	res := Trim(s, 4000)
	if len(res.Bytes) > 4000 {
		t.Errorf("expected payload within budget, got %d bytes", len(res.Bytes))
	}
	if res.Exhausted {
		t.Error("expected budget to be satisfiable")
	}
	want := []string{StepDeckTruncated}
	if diff := cmp.Diff(want, res.Dropped); diff != "" {
		t.Errorf("dropped mismatch (-want +got):\n%s", diff)
	}
}

func TestTrimRewardIDOnly(t *testing.T) {
	s := &RawState{Context: ContextCardReward, Reward: &Reward{Choices: sampleDeck(3)}}
	res := Trim(s, len(s.Marshal())-1)
	if indexOf(res.Dropped, StepRewardIDOnly) < 0 {
		t.Fatalf("expected %s, got %v", StepRewardIDOnly, res.Dropped)
	}
	for _, c := range res.State.Reward.Choices {
		if c.Name != "" || c.Cost != nil || c.Type != "" || c.Rarity != "" {
			t.Errorf("expected id-only choice, got %+v", c)
		}
		if c.ID == "" {
			t.Error("card id must survive")
		}
	}
}

func TestStepIDsForEndsWithLastResort(t *testing.T) {
	for _, ctx := range []ContextTag{ContextCombat, ContextMap, ContextShop, ContextRest, ContextOther} {
		ids := StepIDsFor(ctx)
		if ids[len(ids)-1] != StepAllDropped {
			t.Errorf("%s: expected last step %s, got %s", ctx, StepAllDropped, ids[len(ids)-1])
		}
		if indexOf(ids, StepDeckDropped) < 0 {
			t.Errorf("%s: expected %s in order", ctx, StepDeckDropped)
		}
	}
}

// An unreachable budget runs every step in order. Dropped lists the steps
// that removed something; steps with nothing to remove are skipped and the
// run is flagged Exhausted.
func TestTrimExhaustedRunsEveryStep(t *testing.T) {
	s := sampleCombatState(14)
	res := Trim(s, 0)

	if !res.Exhausted {
		t.Fatal("expected exhaustion at budget 0")
	}
	if res.Dropped[len(res.Dropped)-1] != StepAllDropped {
		t.Errorf("expected %s last, got %v", StepAllDropped, res.Dropped)
	}

	order := StepIDsFor(ContextCombat)
	last := -1
	for _, id := range res.Dropped {
		i := indexOf(order, id)
		if i < 0 {
			t.Fatalf("unexpected step %s", id)
		}
		if i <= last {
			t.Errorf("step %s out of order in %v", id, res.Dropped)
		}
		last = i
	}
	for _, want := range []string{StepHandTruncated, StepDeckDropped, StepRelicsDropped, StepPotionsDropped} {
		if indexOf(res.Dropped, want) < 0 {
			t.Errorf("expected %s in %v", want, res.Dropped)
		}
	}
	if indexOf(res.Dropped, StepShopDropped) >= 0 {
		t.Error("a step with nothing to remove must not be recorded")
	}

	want := &RawState{Context: ContextCombat, Run: sampleRun()}
	want.Run.Seed = ""
	if diff := cmp.Diff(want, res.State); diff != "" {
		t.Errorf("only run data should survive (-want +got):\n%s", diff)
	}
}
