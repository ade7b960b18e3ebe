// Package gamestate models the game state the advisor reasons about and the
// pure functions over it: digest, trimming, fingerprints and signatures.
package gamestate

import "encoding/json"

// ContextTag identifies the screen the player is looking at.
type ContextTag string

const (
	ContextMap        ContextTag = "MAP"
	ContextCombat     ContextTag = "COMBAT"
	ContextCardReward ContextTag = "CARD_REWARD"
	ContextShop       ContextTag = "SHOP"
	ContextNeow       ContextTag = "NEOW"
	ContextBossRelic  ContextTag = "BOSS_RELIC"
	ContextRest       ContextTag = "REST"
	ContextEvent      ContextTag = "EVENT"
	ContextOther      ContextTag = "OTHER"
)

// ParseContextTag maps a string to a ContextTag, falling back to ContextOther.
func ParseContextTag(s string) ContextTag {
	switch tag := ContextTag(s); tag {
	case ContextMap, ContextCombat, ContextCardReward, ContextShop, ContextNeow,
		ContextBossRelic, ContextRest, ContextEvent:
		return tag
	default:
		return ContextOther
	}
}

// RawState is one extracted view of the game. A nil section means the value
// is unknown, never that it is empty.
type RawState struct {
	Context   ContextTag `json:"context"`
	Run       *Run       `json:"run,omitempty"`
	Deck      []Card     `json:"deck_summary,omitzero"`
	Relics    []Relic    `json:"relics,omitzero"`
	Potions   []Potion   `json:"potions,omitzero"`
	Map       *MapInfo   `json:"map,omitempty"`
	MapFull   *MapFull   `json:"map_full,omitempty"`
	Reward    *Reward    `json:"reward,omitempty"`
	Neow      *Neow      `json:"neow,omitempty"`
	Shop      *Shop      `json:"shop,omitempty"`
	BossRelic *BossRelic `json:"boss_relic,omitempty"`
	Rest      *Rest      `json:"rest,omitempty"`
	Event     *Event     `json:"event,omitempty"`
	Combat    *Combat    `json:"combat,omitempty"`
}

// Run holds run-wide stats.
type Run struct {
	Act       *int   `json:"act,omitempty"`
	Floor     *int   `json:"floor,omitempty"`
	Ascension *int   `json:"ascension,omitempty"`
	Gold      *int   `json:"gold,omitempty"`
	HP        *int   `json:"hp,omitempty"`
	MaxHP     *int   `json:"max_hp,omitempty"`
	Character string `json:"character,omitempty"`
	Seed      string `json:"seed,omitempty"`
}

type Card struct {
	ID       string `json:"card_id"`
	Name     string `json:"name,omitempty"`
	Upgraded bool   `json:"upgraded,omitempty"`
	Cost     *int   `json:"cost,omitempty"`
	Type     string `json:"type,omitempty"`
	Rarity   string `json:"rarity,omitempty"`
}

type Relic struct {
	ID   string `json:"relic_id"`
	Name string `json:"name,omitempty"`
}

type Potion struct {
	ID   string `json:"potion_id"`
	Name string `json:"name,omitempty"`
}

// MapNode is a node reference on the act map.
type MapNode struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	RoomType string `json:"room_type,omitempty"`
}

// MapInfo is the player's position and the reachable next nodes.
type MapInfo struct {
	CurrX     int       `json:"curr_x"`
	CurrY     int       `json:"curr_y"`
	CurrType  string    `json:"curr_type,omitempty"`
	NextNodes []MapNode `json:"next_nodes,omitzero"`
}

// MapFull is the whole act map, row by row, with outgoing edges.
type MapFull struct {
	Rows []MapRow `json:"rows,omitzero"`
}

type MapRow struct {
	Y     int           `json:"y"`
	Nodes []MapFullNode `json:"nodes,omitzero"`
}

type MapFullNode struct {
	X        int       `json:"x"`
	Y        int       `json:"y"`
	RoomType string    `json:"room_type,omitempty"`
	Next     []MapNode `json:"next,omitzero"`
}

type Reward struct {
	Choices []Card `json:"choices,omitzero"`
	CanSkip bool   `json:"can_skip,omitempty"`
}

type NeowOption struct {
	Label      string `json:"label"`
	RewardType string `json:"reward_type,omitempty"`
	Drawback   string `json:"drawback,omitempty"`
}

type Neow struct {
	Options []NeowOption `json:"options,omitzero"`
}

type ShopItem struct {
	ItemType string `json:"item_type"`
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Price    int    `json:"price"`
}

type Shop struct {
	Cards           []ShopItem `json:"cards,omitzero"`
	Relics          []ShopItem `json:"relics,omitzero"`
	Potions         []ShopItem `json:"potions,omitzero"`
	PurgeAvailable  bool       `json:"purge_available,omitempty"`
	PurgeCost       int        `json:"purge_cost,omitempty"`
	PurgeCandidates []Card     `json:"purge_candidates,omitzero"`
}

type BossRelic struct {
	Choices []Relic `json:"choices,omitzero"`
	CanSkip bool    `json:"can_skip,omitempty"`
}

type Rest struct {
	Options        []string `json:"options,omitzero"`
	UpgradeOptions []Card   `json:"upgrade_options,omitzero"`
}

type EventOption struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled,omitempty"`
}

type Event struct {
	ID      string        `json:"event_id,omitempty"`
	Name    string        `json:"event_name,omitempty"`
	Options []EventOption `json:"options,omitzero"`
}

// Power is a status effect and its stack count.
type Power struct {
	ID     string `json:"id"`
	Amount int    `json:"amount"`
}

type HandCard struct {
	ID       string `json:"card_id"`
	Name     string `json:"name,omitempty"`
	Cost     int    `json:"cost"`
	Upgraded bool   `json:"upgraded,omitempty"`
	Type     string `json:"type,omitempty"`
}

type Monster struct {
	ID            string  `json:"id"`
	Name          string  `json:"name,omitempty"`
	HP            int     `json:"hp"`
	MaxHP         int     `json:"max_hp"`
	Block         int     `json:"block,omitempty"`
	Intent        string  `json:"intent,omitempty"`
	IntentDmg     int     `json:"intent_dmg,omitempty"`
	IntentBaseDmg int     `json:"intent_base_dmg,omitempty"`
	IntentHits    int     `json:"intent_hits,omitempty"`
	IntentMulti   bool    `json:"intent_multi,omitempty"`
	MoveName      string  `json:"move_name,omitempty"`
	Powers        []Power `json:"powers,omitzero"`
}

type Combat struct {
	Turn            int        `json:"turn"`
	Energy          int        `json:"energy"`
	PlayerBlock     int        `json:"player_block"`
	PlayerPowers    []Power    `json:"player_powers,omitzero"`
	Hand            []HandCard `json:"hand,omitzero"`
	DrawPileSize    int        `json:"draw_pile_size"`
	DiscardPileSize int        `json:"discard_pile_size"`
	ExhaustPileSize int        `json:"exhaust_pile_size"`
	Monsters        []Monster  `json:"monsters,omitzero"`
}

// Int returns a pointer to v, for populating optional fields.
func Int(v int) *int {
	return &v
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// Clone returns a deep copy of s. Nil and empty lists stay distinct.
func (s *RawState) Clone() *RawState {
	if s == nil {
		return nil
	}
	out := &RawState{
		Context: s.Context,
		Deck:    cloneCards(s.Deck),
		Relics:  cloneSlice(s.Relics),
		Potions: cloneSlice(s.Potions),
	}
	if s.Run != nil {
		run := *s.Run
		run.Act = cloneInt(run.Act)
		run.Floor = cloneInt(run.Floor)
		run.Ascension = cloneInt(run.Ascension)
		run.Gold = cloneInt(run.Gold)
		run.HP = cloneInt(run.HP)
		run.MaxHP = cloneInt(run.MaxHP)
		out.Run = &run
	}
	if s.Map != nil {
		m := *s.Map
		m.NextNodes = cloneSlice(m.NextNodes)
		out.Map = &m
	}
	if s.MapFull != nil {
		mf := MapFull{Rows: cloneSlice(s.MapFull.Rows)}
		for i := range mf.Rows {
			mf.Rows[i].Nodes = cloneSlice(mf.Rows[i].Nodes)
			for j := range mf.Rows[i].Nodes {
				mf.Rows[i].Nodes[j].Next = cloneSlice(mf.Rows[i].Nodes[j].Next)
			}
		}
		out.MapFull = &mf
	}
	if s.Reward != nil {
		r := *s.Reward
		r.Choices = cloneCards(r.Choices)
		out.Reward = &r
	}
	if s.Neow != nil {
		out.Neow = &Neow{Options: cloneSlice(s.Neow.Options)}
	}
	if s.Shop != nil {
		sh := *s.Shop
		sh.Cards = cloneSlice(sh.Cards)
		sh.Relics = cloneSlice(sh.Relics)
		sh.Potions = cloneSlice(sh.Potions)
		sh.PurgeCandidates = cloneCards(sh.PurgeCandidates)
		out.Shop = &sh
	}
	if s.BossRelic != nil {
		br := *s.BossRelic
		br.Choices = cloneSlice(br.Choices)
		out.BossRelic = &br
	}
	if s.Rest != nil {
		r := Rest{Options: cloneSlice(s.Rest.Options), UpgradeOptions: cloneCards(s.Rest.UpgradeOptions)}
		out.Rest = &r
	}
	if s.Event != nil {
		e := *s.Event
		e.Options = cloneSlice(e.Options)
		out.Event = &e
	}
	if s.Combat != nil {
		c := *s.Combat
		c.PlayerPowers = cloneSlice(c.PlayerPowers)
		c.Hand = cloneSlice(c.Hand)
		c.Monsters = cloneSlice(c.Monsters)
		for i := range c.Monsters {
			c.Monsters[i].Powers = cloneSlice(c.Monsters[i].Powers)
		}
		out.Combat = &c
	}
	return out
}

// cloneSlice copies a list of plain values, keeping nil as nil.
func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneCards(in []Card) []Card {
	out := cloneSlice(in)
	for i := range out {
		out[i].Cost = cloneInt(out[i].Cost)
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Marshal serializes s in its canonical wire form.
func (s *RawState) Marshal() []byte {
	data, err := json.Marshal(s)
	if err != nil {
		return []byte("{}")
	}
	return data
}
