package gamestate

// Trim step identifiers, recorded in TrimResult.Dropped when a step fires.
const (
	StepMapNextTruncated      = "map.next_nodes.truncated_to_3"
	StepMapDropped            = "map.dropped"
	StepMapFullEdgesTruncated = "map_full.next.truncated_to_1"
	StepMapFullDropped        = "map_full.dropped"
	StepDeckTruncated         = "deck_summary.truncated_to_30"
	StepRelicsTruncated       = "relics.truncated_to_20"
	StepRelicsIDOnly          = "relics.id_only"
	StepPotionsIDOnly         = "potions.id_only"
	StepRewardTruncated       = "reward.choices.truncated_to_3"
	StepRewardIDOnly          = "reward.choices.id_only"
	StepHandTruncated         = "combat.hand.truncated_to_10"
	StepMonstersTruncated     = "combat.monsters.truncated_to_3"
	StepPlayerPowersTruncated = "combat.player_powers.truncated_to_10"
	StepMonsterPowersTrunc    = "combat.monster_powers.truncated_to_10"
	StepPurgeTruncated        = "shop.purge_candidates.truncated_to_10"
	StepUpgradeTruncated      = "rest.upgrade_options.truncated_to_10"
	StepShopDropped           = "shop.dropped"
	StepRestDropped           = "rest.dropped"
	StepEventDropped          = "event.dropped"
	StepNeowDropped           = "neow.dropped"
	StepBossRelicDropped      = "boss_relic.dropped"
	StepCombatDropped         = "combat.dropped"
	StepDeckDropped           = "deck_summary.dropped"
	StepRelicsDropped         = "relics.dropped"
	StepPotionsDropped        = "potions.dropped"
	StepRewardDropped         = "reward.dropped"
	StepAllDropped            = "sections.dropped_all"
)

// TrimResult is the outcome of Trim.
type TrimResult struct {
	State   *RawState
	Bytes   []byte
	Dropped []string
	// Exhausted is set when every step ran and the payload is still over budget.
	Exhausted bool
}

// Trimmed reports whether any step fired.
func (r TrimResult) Trimmed() bool {
	return len(r.Dropped) > 0
}

// trimStep mutates a state in place and reports whether it changed anything.
type trimStep struct {
	id    string
	apply func(*RawState) bool
}

// Trim serializes s and, if it exceeds budget bytes, applies the reduction
// steps for s.Context one at a time until it fits. s is not modified.
func Trim(s *RawState, budget int) TrimResult {
	work := s.Clone()
	if work == nil {
		work = &RawState{Context: ContextOther}
	}
	data := work.Marshal()
	if len(data) <= budget {
		return TrimResult{State: work, Bytes: data}
	}

	var dropped []string
	run := func(steps []trimStep) bool {
		for _, st := range steps {
			if !st.apply(work) {
				continue
			}
			dropped = append(dropped, st.id)
			data = work.Marshal()
			if len(data) <= budget {
				return true
			}
		}
		return false
	}

	if run(stepsFor(work.Context)) || run(lastResortSteps()) {
		return TrimResult{State: work, Bytes: data, Dropped: dropped}
	}
	return TrimResult{State: work, Bytes: data, Dropped: dropped, Exhausted: true}
}

// StepIDsFor lists the identifiers of the ordered steps for ctx, followed by
// the last-resort steps.
func StepIDsFor(ctx ContextTag) []string {
	steps := append(stepsFor(ctx), lastResortSteps()...)
	ids := make([]string, len(steps))
	for i, st := range steps {
		ids[i] = st.id
	}
	return ids
}

// stepsFor returns the context-specific reduction order. Data that matters
// most to the active decision is reduced last.
func stepsFor(ctx ContextTag) []trimStep {
	idTrims := []trimStep{deckTruncate, relicsTruncate, relicsIDOnly, potionsIDOnly}
	rewardTrims := []trimStep{rewardTruncate, rewardIDOnly}

	var steps []trimStep
	switch ctx {
	case ContextCombat:
		steps = append(steps, handTruncate, monstersTruncate, playerPowersTruncate, monsterPowersTruncate)
		steps = append(steps, unrelatedDrops(ctx)...)
		steps = append(steps, rewardTrims...)
		steps = append(steps, idTrims...)
	case ContextMap:
		steps = append(steps, rewardTrims...)
		steps = append(steps, unrelatedDrops(ctx)...)
		steps = append(steps, idTrims...)
		steps = append(steps, mapNextTruncate, mapFullEdgesTruncate, mapFullDrop, mapDrop)
	case ContextShop:
		steps = append(steps, unrelatedDrops(ctx)...)
		steps = append(steps, purgeTruncate)
		steps = append(steps, idTrims...)
		steps = append(steps, rewardTrims...)
	case ContextRest:
		steps = append(steps, unrelatedDrops(ctx)...)
		steps = append(steps, upgradeTruncate)
		steps = append(steps, idTrims...)
		steps = append(steps, rewardTrims...)
	default:
		steps = append(steps, mapNextTruncate)
		steps = append(steps, unrelatedDrops(ctx)...)
		steps = append(steps, idTrims...)
		steps = append(steps, rewardTrims...)
	}
	return steps
}

// unrelatedDrops drops every screen-specific section that does not belong to ctx.
func unrelatedDrops(ctx ContextTag) []trimStep {
	var steps []trimStep
	if ctx != ContextMap {
		steps = append(steps, mapFullDrop, mapDrop)
	}
	if ctx != ContextShop {
		steps = append(steps, shopDrop)
	}
	if ctx != ContextRest {
		steps = append(steps, restDrop)
	}
	if ctx != ContextEvent {
		steps = append(steps, eventDrop)
	}
	if ctx != ContextNeow {
		steps = append(steps, neowDrop)
	}
	if ctx != ContextBossRelic {
		steps = append(steps, bossRelicDrop)
	}
	if ctx != ContextCombat {
		steps = append(steps, combatDrop)
	}
	return steps
}

func lastResortSteps() []trimStep {
	return []trimStep{deckDrop, relicsDrop, potionsDrop, rewardDrop, eventDrop, dropAll}
}

var (
	mapNextTruncate = trimStep{StepMapNextTruncated, func(s *RawState) bool {
		if s.Map == nil || len(s.Map.NextNodes) <= 3 {
			return false
		}
		s.Map.NextNodes = s.Map.NextNodes[:3]
		return true
	}}
	mapDrop = trimStep{StepMapDropped, func(s *RawState) bool {
		if s.Map == nil {
			return false
		}
		s.Map = nil
		return true
	}}
	mapFullEdgesTruncate = trimStep{StepMapFullEdgesTruncated, func(s *RawState) bool {
		if s.MapFull == nil {
			return false
		}
		changed := false
		for ri := range s.MapFull.Rows {
			nodes := s.MapFull.Rows[ri].Nodes
			for ni := range nodes {
				if len(nodes[ni].Next) > 1 {
					nodes[ni].Next = nodes[ni].Next[:1]
					changed = true
				}
			}
		}
		return changed
	}}
	mapFullDrop = trimStep{StepMapFullDropped, func(s *RawState) bool {
		if s.MapFull == nil {
			return false
		}
		s.MapFull = nil
		return true
	}}
	deckTruncate = trimStep{StepDeckTruncated, func(s *RawState) bool {
		if len(s.Deck) <= 30 {
			return false
		}
		s.Deck = s.Deck[:30]
		return true
	}}
	relicsTruncate = trimStep{StepRelicsTruncated, func(s *RawState) bool {
		if len(s.Relics) <= 20 {
			return false
		}
		s.Relics = s.Relics[:20]
		return true
	}}
	relicsIDOnly = trimStep{StepRelicsIDOnly, func(s *RawState) bool {
		changed := false
		for i := range s.Relics {
			if s.Relics[i].Name != "" {
				s.Relics[i].Name = ""
				changed = true
			}
		}
		return changed
	}}
	potionsIDOnly = trimStep{StepPotionsIDOnly, func(s *RawState) bool {
		changed := false
		for i := range s.Potions {
			if s.Potions[i].Name != "" {
				s.Potions[i].Name = ""
				changed = true
			}
		}
		return changed
	}}
	rewardTruncate = trimStep{StepRewardTruncated, func(s *RawState) bool {
		if s.Reward == nil || len(s.Reward.Choices) <= 3 {
			return false
		}
		s.Reward.Choices = s.Reward.Choices[:3]
		return true
	}}
	rewardIDOnly = trimStep{StepRewardIDOnly, func(s *RawState) bool {
		if s.Reward == nil {
			return false
		}
		changed := false
		for i := range s.Reward.Choices {
			c := &s.Reward.Choices[i]
			if c.Name != "" || c.Cost != nil || c.Type != "" || c.Rarity != "" {
				c.Name, c.Cost, c.Type, c.Rarity = "", nil, "", ""
				changed = true
			}
		}
		return changed
	}}
	handTruncate = trimStep{StepHandTruncated, func(s *RawState) bool {
		if s.Combat == nil || len(s.Combat.Hand) <= 10 {
			return false
		}
		s.Combat.Hand = s.Combat.Hand[:10]
		return true
	}}
	monstersTruncate = trimStep{StepMonstersTruncated, func(s *RawState) bool {
		if s.Combat == nil || len(s.Combat.Monsters) <= 3 {
			return false
		}
		s.Combat.Monsters = s.Combat.Monsters[:3]
		return true
	}}
	playerPowersTruncate = trimStep{StepPlayerPowersTruncated, func(s *RawState) bool {
		if s.Combat == nil || len(s.Combat.PlayerPowers) <= 10 {
			return false
		}
		s.Combat.PlayerPowers = s.Combat.PlayerPowers[:10]
		return true
	}}
	monsterPowersTruncate = trimStep{StepMonsterPowersTrunc, func(s *RawState) bool {
		if s.Combat == nil {
			return false
		}
		changed := false
		for i := range s.Combat.Monsters {
			if len(s.Combat.Monsters[i].Powers) > 10 {
				s.Combat.Monsters[i].Powers = s.Combat.Monsters[i].Powers[:10]
				changed = true
			}
		}
		return changed
	}}
	purgeTruncate = trimStep{StepPurgeTruncated, func(s *RawState) bool {
		if s.Shop == nil || len(s.Shop.PurgeCandidates) <= 10 {
			return false
		}
		s.Shop.PurgeCandidates = s.Shop.PurgeCandidates[:10]
		return true
	}}
	upgradeTruncate = trimStep{StepUpgradeTruncated, func(s *RawState) bool {
		if s.Rest == nil || len(s.Rest.UpgradeOptions) <= 10 {
			return false
		}
		s.Rest.UpgradeOptions = s.Rest.UpgradeOptions[:10]
		return true
	}}
	shopDrop = trimStep{StepShopDropped, func(s *RawState) bool {
		if s.Shop == nil {
			return false
		}
		s.Shop = nil
		return true
	}}
	restDrop = trimStep{StepRestDropped, func(s *RawState) bool {
		if s.Rest == nil {
			return false
		}
		s.Rest = nil
		return true
	}}
	eventDrop = trimStep{StepEventDropped, func(s *RawState) bool {
		if s.Event == nil {
			return false
		}
		s.Event = nil
		return true
	}}
	neowDrop = trimStep{StepNeowDropped, func(s *RawState) bool {
		if s.Neow == nil {
			return false
		}
		s.Neow = nil
		return true
	}}
	bossRelicDrop = trimStep{StepBossRelicDropped, func(s *RawState) bool {
		if s.BossRelic == nil {
			return false
		}
		s.BossRelic = nil
		return true
	}}
	combatDrop = trimStep{StepCombatDropped, func(s *RawState) bool {
		if s.Combat == nil {
			return false
		}
		s.Combat = nil
		return true
	}}
	deckDrop = trimStep{StepDeckDropped, func(s *RawState) bool {
		if s.Deck == nil {
			return false
		}
		s.Deck = nil
		return true
	}}
	relicsDrop = trimStep{StepRelicsDropped, func(s *RawState) bool {
		if s.Relics == nil {
			return false
		}
		s.Relics = nil
		return true
	}}
	potionsDrop = trimStep{StepPotionsDropped, func(s *RawState) bool {
		if s.Potions == nil {
			return false
		}
		s.Potions = nil
		return true
	}}
	rewardDrop = trimStep{StepRewardDropped, func(s *RawState) bool {
		if s.Reward == nil {
			return false
		}
		s.Reward = nil
		return true
	}}
	dropAll = trimStep{StepAllDropped, func(s *RawState) bool {
		kept := RawState{Context: s.Context, Run: s.Run}
		if kept.Run != nil {
			// The character and seed strings are the only unbounded run fields.
			run := *kept.Run
			run.Seed = ""
			if len(run.Character) > 32 {
				run.Character = run.Character[:32]
			}
			kept.Run = &run
		}
		changed := s.Deck != nil || s.Relics != nil || s.Potions != nil ||
			s.Map != nil || s.MapFull != nil || s.Reward != nil || s.Neow != nil ||
			s.Shop != nil || s.BossRelic != nil || s.Rest != nil || s.Event != nil ||
			s.Combat != nil || (s.Run != nil && *s.Run != *kept.Run)
		*s = kept
		return changed
	}}
)
