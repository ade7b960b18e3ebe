package gamestate

import "fmt"

func sampleRun() *Run {
	return &Run{
		Act:       Int(1),
		Floor:     Int(7),
		Ascension: Int(10),
		Gold:      Int(120),
		HP:        Int(55),
		MaxHP:     Int(80),
		Character: "IRONCLAD",
		Seed:      "ABC123",
	}
}

func sampleDeck(n int) []Card {
	deck := make([]Card, n)
	for i := range deck {
		deck[i] = Card{ID: fmt.Sprintf("Strike_%d", i), Name: "Strike with a fairly long display name", Cost: Int(1), Type: "ATTACK", Rarity: "BASIC"}
	}
	return deck
}

func sampleRelics(n int) []Relic {
	relics := make([]Relic, n)
	for i := range relics {
		relics[i] = Relic{ID: fmt.Sprintf("Relic_%d", i), Name: "A relic with a descriptive name"}
	}
	return relics
}

func sampleCombatState(handSize int) *RawState {
	hand := make([]HandCard, handSize)
	for i := range hand {
		hand[i] = HandCard{ID: fmt.Sprintf("Bash_%d", i), Name: "Bash, a card with a verbose name for padding", Cost: 2, Type: "ATTACK"}
	}
	return &RawState{
		Context: ContextCombat,
		Run:     sampleRun(),
		Deck:    sampleDeck(12),
		Relics:  sampleRelics(4),
		Potions: []Potion{{ID: "Fire Potion", Name: "Fire Potion"}},
		Combat: &Combat{
			Turn:         3,
			Energy:       3,
			PlayerBlock:  5,
			PlayerPowers: []Power{{ID: "Strength", Amount: 2}},
			Hand:         hand,
			DrawPileSize: 4,
			Monsters: []Monster{
				{ID: "JawWorm", Name: "Jaw Worm", HP: 30, MaxHP: 42, Intent: "ATTACK", IntentDmg: 11, IntentHits: 1},
			},
		},
	}
}

func sampleMapState(rows, width, edges int) *RawState {
	full := &MapFull{}
	for y := 0; y < rows; y++ {
		row := MapRow{Y: y}
		for x := 0; x < width; x++ {
			node := MapFullNode{X: x, Y: y, RoomType: "MonsterRoom"}
			for e := 0; e < edges; e++ {
				node.Next = append(node.Next, MapNode{X: (x + e) % width, Y: y + 1, RoomType: "MonsterRoom"})
			}
			row.Nodes = append(row.Nodes, node)
		}
		full.Rows = append(full.Rows, row)
	}
	return &RawState{
		Context: ContextMap,
		Run:     sampleRun(),
		Map: &MapInfo{
			CurrX:     2,
			CurrY:     3,
			CurrType:  "MonsterRoom",
			NextNodes: []MapNode{{X: 1, Y: 4, RoomType: "ShopRoom"}, {X: 3, Y: 4, RoomType: "RestRoom"}},
		},
		MapFull: full,
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
