package gamestate

import (
	"strconv"
	"strings"
)

// Signatures are content fingerprints per screen family. A change in one
// while its screen is held means the player is looking at new options.
type Signatures struct {
	Reward    string
	Shop      string
	Neow      string
	BossRelic string
	Rest      string
	Event     string
	MapNode   string
}

// CombatView is the part of combat state the trigger engine needs.
type CombatView struct {
	Turn        int
	HandSize    int
	DrawPile    int
	DiscardPile int
}

// PotionOverflow is raised by the host when a potion arrives while every
// slot is full. Seq increases with each occurrence.
type PotionOverflow struct {
	Incoming  string
	SlotsFull bool
	Seq       int64
}

// Observation is the cheap per-tick view consumed by the trigger engine.
type Observation struct {
	InRun      bool
	Context    ContextTag
	PlayerTurn bool
	ScreenUp   bool
	Combat     CombatView
	Signatures Signatures
	Overflow   *PotionOverflow
}

// Observe derives signatures and the combat view from s. Host-only flags
// (PlayerTurn, ScreenUp, Overflow) are left for the caller to fill in.
func Observe(s *RawState) Observation {
	if s == nil {
		return Observation{Context: ContextOther}
	}
	obs := Observation{
		InRun:      s.Run != nil,
		Context:    s.Context,
		Signatures: SignaturesOf(s),
	}
	if c := s.Combat; c != nil {
		obs.Combat = CombatView{
			Turn:        c.Turn,
			HandSize:    len(c.Hand),
			DrawPile:    c.DrawPileSize,
			DiscardPile: c.DiscardPileSize,
		}
	}
	return obs
}

// SignaturesOf computes the per-family content signatures of s.
func SignaturesOf(s *RawState) Signatures {
	var sig Signatures
	if s == nil {
		return sig
	}
	if r := s.Reward; r != nil {
		ids := make([]string, len(r.Choices))
		for i, c := range r.Choices {
			ids[i] = cardKey(c)
		}
		sig.Reward = strings.Join(ids, ",") + "|skip=" + strconv.FormatBool(r.CanSkip)
	}
	if sh := s.Shop; sh != nil {
		var b strings.Builder
		for _, items := range [][]ShopItem{sh.Cards, sh.Relics, sh.Potions} {
			for _, it := range items {
				b.WriteString(it.ItemType + ":" + it.ID + "$" + strconv.Itoa(it.Price) + ",")
			}
			b.WriteByte('|')
		}
		b.WriteString("purge=" + strconv.FormatBool(sh.PurgeAvailable) + ":" + strconv.Itoa(sh.PurgeCost))
		sig.Shop = b.String()
	}
	if n := s.Neow; n != nil {
		opts := make([]string, len(n.Options))
		for i, o := range n.Options {
			opts[i] = o.Label + "/" + o.RewardType + "/" + o.Drawback
		}
		sig.Neow = strings.Join(opts, ",")
	}
	if br := s.BossRelic; br != nil {
		ids := make([]string, len(br.Choices))
		for i, r := range br.Choices {
			ids[i] = r.ID
		}
		sig.BossRelic = strings.Join(ids, ",")
	}
	if r := s.Rest; r != nil {
		sig.Rest = strings.Join(r.Options, ",")
	}
	if e := s.Event; e != nil {
		sig.Event = eventSignature(e)
	}
	if m := s.Map; m != nil {
		sig.MapNode = strconv.Itoa(m.CurrX) + "," + strconv.Itoa(m.CurrY)
	}
	return sig
}

// Fingerprint is the lightweight polling key: cheap to compute and sensitive
// to every change that should trigger a full refresh.
func Fingerprint(s *RawState) string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(s.Context))
	b.WriteByte('|')
	if s.Run != nil {
		b.WriteString(optInt(s.Run.Floor))
	}
	b.WriteByte('|')
	if s.Map != nil {
		b.WriteString(s.Map.CurrType)
		b.WriteString("|" + strconv.Itoa(s.Map.CurrX) + "," + strconv.Itoa(s.Map.CurrY))
	} else {
		b.WriteString("|")
	}
	b.WriteByte('|')
	if s.Run != nil {
		b.WriteString(optInt(s.Run.HP) + "|" + optInt(s.Run.Gold))
	}
	if c := s.Combat; c != nil && s.Context == ContextCombat {
		b.WriteString("|turn=" + strconv.Itoa(c.Turn))
		b.WriteString("|hand=" + strconv.Itoa(len(c.Hand)))
		b.WriteString("|energy=" + strconv.Itoa(c.Energy))
		b.WriteString("|intent=" + intentSignature(c.Monsters))
	}
	if e := s.Event; e != nil && s.Context == ContextEvent {
		b.WriteString("|event=" + eventSignature(e))
	}
	return b.String()
}

func intentSignature(monsters []Monster) string {
	parts := make([]string, len(monsters))
	for i, m := range monsters {
		parts[i] = m.ID + ":" + m.Intent + ":" + strconv.Itoa(m.IntentDmg) + "x" + strconv.Itoa(m.IntentHits) + ":" + strconv.Itoa(m.HP)
	}
	return strings.Join(parts, ",")
}

func eventSignature(e *Event) string {
	opts := make([]string, len(e.Options))
	for i, o := range e.Options {
		opts[i] = o.Label
		if o.Disabled {
			opts[i] += "!"
		}
	}
	return e.ID + ":" + strings.Join(opts, ",")
}

// Summary renders the one-line status summary of s.
func Summary(s *RawState) string {
	if s == nil {
		return "screen=?"
	}
	floor, hp, maxHP, gold := "?", "?", "?", "?"
	if r := s.Run; r != nil {
		floor, hp, maxHP, gold = optInt(r.Floor), optInt(r.HP), optInt(r.MaxHP), optInt(r.Gold)
	}
	return "screen=" + string(s.Context) + ", floor=" + floor + ", hp=" + hp + "/" + maxHP + ", gold=" + gold
}
