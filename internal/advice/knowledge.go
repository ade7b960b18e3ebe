package advice

import "github.com/xonecas/spire-advisor/internal/gamestate"

var knowledgeNotes = map[gamestate.ContextTag]string{
	gamestate.ContextNeow: `- Neow bonuses usually trade a reward for a drawback.
- The "enemies in your next three combats have 1 HP" option can enable an early elite if the map allows.
`,
	gamestate.ContextMap: `- Elites start appearing from floor 6.
- Elites give a relic, gold and a card reward. Higher ascensions make them more common and stronger.
- Elite, rest and merchant rooms cannot be consecutive on the map.
- Compare map.next_nodes room types; prioritize safety when HP is low.
- Early Act 1 often wants one or two elites if the deck can handle them.
- If map_full is present, plan the whole act (elite count, shops, rest stops) before picking the next node.
`,
	gamestate.ContextCardReward: `- Card rewards can be skipped; skip when no choice improves the deck.
- Extra cards slow deck cycling, so prefer synergy and fixing current weaknesses.
`,
	gamestate.ContextShop: `- Card removal starts at 75 gold and rises by 25 each time.
- Smiling Mask fixes the removal cost at 50; some relics change shop prices.
- When purging, prefer curses, then weak basic cards.
- Pick removal targets from shop.purge_candidates.
`,
	gamestate.ContextBossRelic: `- Boss relics shape the rest of the run; weigh the drawback against the current deck.
`,
	gamestate.ContextRest: `- Rest when survival is at risk; smith when HP is safe and a high-impact upgrade exists.
- When smithing, choose from rest.upgrade_options.
`,
}

const defaultKnowledge = `- Prefer cohesive decks; skip options that do not improve the current plan.
`

// Knowledge returns the short strategy notes included for ctx. Combat has
// none; its state speaks for itself.
func Knowledge(ctx gamestate.ContextTag) string {
	if ctx == gamestate.ContextCombat {
		return ""
	}
	if notes, ok := knowledgeNotes[ctx]; ok {
		return notes
	}
	return defaultKnowledge
}
