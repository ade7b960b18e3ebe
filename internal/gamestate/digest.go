package gamestate

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Digest returns the hex SHA-256 of the canonical string of s. Display names
// are excluded; list order is preserved.
func Digest(s *RawState) string {
	sum := sha256.Sum256([]byte(CanonicalString(s)))
	return hex.EncodeToString(sum[:])
}

// ShortDigest returns the first n hex digits of a digest.
func ShortDigest(digest string, n int) string {
	if len(digest) <= n {
		return digest
	}
	return digest[:n]
}

// CanonicalString builds the delimiter-separated form hashed by Digest.
// Every free-text value is length-prefixed so delimiters inside ids cannot
// shift field boundaries, and a nil list is written differently from an
// empty one.
func CanonicalString(s *RawState) string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	b.Grow(512)

	writeKey(&b, string(s.Context))
	b.WriteByte('|')
	if s.Run != nil {
		writeOptInt(&b, s.Run.Act)
		writeOptInt(&b, s.Run.Floor)
		writeOptInt(&b, s.Run.Ascension)
		writeOptInt(&b, s.Run.Gold)
		b.WriteString(optInt(s.Run.HP) + "/" + optInt(s.Run.MaxHP) + "|")
		writeKey(&b, s.Run.Character)
		b.WriteByte('|')
	} else {
		b.WriteString("run:?|")
	}

	b.WriteString("deck:")
	writeList(&b, s.Deck == nil, len(s.Deck), func(i int) string { return cardKey(s.Deck[i]) })
	b.WriteString("relics:")
	writeList(&b, s.Relics == nil, len(s.Relics), func(i int) string { return s.Relics[i].ID })
	b.WriteString("potions:")
	writeList(&b, s.Potions == nil, len(s.Potions), func(i int) string { return s.Potions[i].ID })

	if m := s.Map; m != nil {
		b.WriteString("map:")
		b.WriteString(strconv.Itoa(m.CurrX) + "," + strconv.Itoa(m.CurrY))
		b.WriteByte('|')
		writeList(&b, m.NextNodes == nil, len(m.NextNodes), func(i int) string { return nodeKey(m.NextNodes[i]) })
	}
	if mf := s.MapFull; mf != nil {
		b.WriteString("mapfull:")
		writeList(&b, mf.Rows == nil, len(mf.Rows), func(i int) string {
			var row strings.Builder
			nodes := mf.Rows[i].Nodes
			writeList(&row, nodes == nil, len(nodes), func(j int) string {
				n := nodes[j]
				var node strings.Builder
				node.WriteString(nodeKey(MapNode{X: n.X, Y: n.Y, RoomType: n.RoomType}))
				node.WriteByte('>')
				writeList(&node, n.Next == nil, len(n.Next), func(k int) string {
					return strconv.Itoa(n.Next[k].X) + "," + strconv.Itoa(n.Next[k].Y)
				})
				return node.String()
			})
			return row.String()
		})
	}
	if r := s.Reward; r != nil {
		b.WriteString("reward:")
		writeList(&b, r.Choices == nil, len(r.Choices), func(i int) string { return cardKey(r.Choices[i]) })
	}
	if n := s.Neow; n != nil {
		b.WriteString("neow:")
		writeList(&b, n.Options == nil, len(n.Options), func(i int) string {
			return lp(n.Options[i].RewardType) + "/" + lp(n.Options[i].Drawback)
		})
	}
	if sh := s.Shop; sh != nil {
		b.WriteString("shop:")
		for _, items := range [][]ShopItem{sh.Cards, sh.Relics, sh.Potions} {
			writeList(&b, items == nil, len(items), func(i int) string {
				return lp(items[i].ID) + "$" + strconv.Itoa(items[i].Price)
			})
		}
		b.WriteString("purge=" + strconv.FormatBool(sh.PurgeAvailable) + ":" + strconv.Itoa(sh.PurgeCost) + "|")
	}
	if br := s.BossRelic; br != nil {
		b.WriteString("boss:")
		writeList(&b, br.Choices == nil, len(br.Choices), func(i int) string { return br.Choices[i].ID })
	}
	if r := s.Rest; r != nil {
		b.WriteString("rest:")
		writeList(&b, r.Options == nil, len(r.Options), func(i int) string { return r.Options[i] })
	}
	if e := s.Event; e != nil {
		b.WriteString("event:")
		writeKey(&b, e.ID)
		b.WriteByte('|')
		writeList(&b, e.Options == nil, len(e.Options), func(i int) string {
			opt := lp(e.Options[i].Label)
			if e.Options[i].Disabled {
				opt += "!"
			}
			return opt
		})
	}
	if c := s.Combat; c != nil {
		b.WriteString("turn=" + strconv.Itoa(c.Turn) + "|")
		b.WriteString("energy=" + strconv.Itoa(c.Energy) + "|")
		b.WriteString("block=" + strconv.Itoa(c.PlayerBlock) + "|")
		b.WriteString("powers:")
		writeList(&b, c.PlayerPowers == nil, len(c.PlayerPowers), func(i int) string { return powerKey(c.PlayerPowers[i]) })
		b.WriteString("hand:")
		writeList(&b, c.Hand == nil, len(c.Hand), func(i int) string {
			return cardKey(Card{ID: c.Hand[i].ID, Upgraded: c.Hand[i].Upgraded})
		})
		b.WriteString("monsters:")
		writeList(&b, c.Monsters == nil, len(c.Monsters), func(i int) string {
			m := c.Monsters[i]
			var mon strings.Builder
			mon.WriteString(lp(m.ID) + ":" + strconv.Itoa(m.HP) + "/" + strconv.Itoa(m.MaxHP) + ":" + lp(m.Intent))
			writeList(&mon, m.Powers == nil, len(m.Powers), func(j int) string { return powerKey(m.Powers[j]) })
			return mon.String()
		})
	}
	return b.String()
}

func writeOptInt(b *strings.Builder, p *int) {
	b.WriteString(optInt(p))
	b.WriteByte('|')
}

func optInt(p *int) string {
	if p == nil {
		return "?"
	}
	return strconv.Itoa(*p)
}

// lp length-prefixes k.
func lp(k string) string {
	return strconv.Itoa(len(k)) + ":" + k
}

func writeKey(b *strings.Builder, k string) {
	b.WriteString(lp(k))
}

// writeList writes "?" for an unknown list and "[n]" followed by each
// length-prefixed key otherwise.
func writeList(b *strings.Builder, unknown bool, n int, key func(int) string) {
	if unknown {
		b.WriteString("?|")
		return
	}
	b.WriteString("[" + strconv.Itoa(n) + "]")
	for i := 0; i < n; i++ {
		writeKey(b, key(i))
	}
	b.WriteByte('|')
}

func cardKey(c Card) string {
	if c.Upgraded {
		return c.ID + "+"
	}
	return c.ID
}

func nodeKey(n MapNode) string {
	return strconv.Itoa(n.X) + "," + strconv.Itoa(n.Y) + ":" + lp(n.RoomType)
}

func powerKey(p Power) string {
	return lp(p.ID) + ":" + strconv.Itoa(p.Amount)
}
