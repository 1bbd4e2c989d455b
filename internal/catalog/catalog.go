// internal/catalog/catalog.go
package catalog

import (
	"github.com/google/uuid"

	"github.com/zhongsurehow/zhouyi/internal/mechanics"
)

// TargetMode says whom a card effect lands on.
type TargetMode string

const (
	TargetSelf  TargetMode = "self"
	TargetOther TargetMode = "other"
)

// EffectSpec is the declarative effect of a card. The resolver interprets
// it; the catalog never executes anything.
type EffectSpec struct {
	// Polarity effect: points added to the chosen side's counter.
	Polarity       *mechanics.Polarity `json:"polarity,omitempty"`
	PolarityPoints int                 `json:"polarity_points,omitempty"`

	// Element effect routed through the wuxing interaction table.
	Element         *mechanics.Element `json:"element,omitempty"`
	ElementStrength int                `json:"element_strength,omitempty"`

	// Flat resource gains for the target.
	Qi      int `json:"qi,omitempty"`
	DaoXing int `json:"dao_xing,omitempty"`
	ChengYi int `json:"cheng_yi,omitempty"`

	// Transform triggers a hexagram transformation of the card's hexagram,
	// with lines chosen by the room's configured policy.
	Transform bool `json:"transform,omitempty"`

	Target TargetMode `json:"target"`
}

// CardDef is a read-only card definition.
type CardDef struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Hexagram uint8      `json:"hexagram"` // 6-bit line pattern
	Cost     int        `json:"cost"`     // qi cost to play
	Effect   EffectSpec `json:"effect"`
}

// Catalog is the content collaborator: read-only card and hexagram lookup
// plus the deck composition for a new room.
type Catalog interface {
	CardDefinition(id uuid.UUID) (CardDef, bool)
	HexagramDefinition(pattern uint8) (mechanics.Hexagram, bool)
	// Deck returns the ordered card ids a fresh room's draw pile is built
	// from. Entries may repeat.
	Deck() []uuid.UUID
}

type memoryCatalog struct {
	cards map[uuid.UUID]CardDef
	deck  []uuid.UUID
}

func (c *memoryCatalog) CardDefinition(id uuid.UUID) (CardDef, bool) {
	def, ok := c.cards[id]
	return def, ok
}

func (c *memoryCatalog) HexagramDefinition(pattern uint8) (mechanics.Hexagram, bool) {
	if pattern > 63 {
		return mechanics.Hexagram{}, false
	}
	return mechanics.HexagramFromPattern(pattern), true
}

func (c *memoryCatalog) Deck() []uuid.UUID {
	out := make([]uuid.UUID, len(c.deck))
	copy(out, c.deck)
	return out
}

// cardID derives a stable id from the card name so catalogs are
// reproducible across processes.
func cardID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("zhouyi/card/"+name))
}

func polarity(p mechanics.Polarity) *mechanics.Polarity { return &p }
func element(e mechanics.Element) *mechanics.Element    { return &e }

// Default returns the built-in card set. Each of the eight trigrams
// contributes a pair of cards (doubled trigram hexagrams), covering the
// polarity, element, resource, and transformation effect families.
func Default() Catalog {
	defs := []CardDef{
		{Name: "Creative Heaven", Hexagram: 0b111111, Cost: 2, Effect: EffectSpec{
			Polarity: polarity(mechanics.Yang), PolarityPoints: 2, Element: element(mechanics.Metal), ElementStrength: 1, Target: TargetSelf,
		}},
		{Name: "Receptive Earth", Hexagram: 0b000000, Cost: 2, Effect: EffectSpec{
			Polarity: polarity(mechanics.Yin), PolarityPoints: 2, Element: element(mechanics.Earth), ElementStrength: 1, Target: TargetSelf,
		}},
		{Name: "Arousing Thunder", Hexagram: 0b001001, Cost: 1, Effect: EffectSpec{
			Polarity: polarity(mechanics.Yang), PolarityPoints: 1, Element: element(mechanics.Wood), ElementStrength: 2, Target: TargetSelf,
		}},
		{Name: "Gentle Wind", Hexagram: 0b110110, Cost: 1, Effect: EffectSpec{
			Polarity: polarity(mechanics.Yin), PolarityPoints: 1, Element: element(mechanics.Wood), ElementStrength: 2, Target: TargetSelf,
		}},
		{Name: "Abysmal Water", Hexagram: 0b010010, Cost: 2, Effect: EffectSpec{
			Element: element(mechanics.Water), ElementStrength: 2, ChengYi: 1, Target: TargetSelf,
		}},
		{Name: "Clinging Fire", Hexagram: 0b101101, Cost: 2, Effect: EffectSpec{
			Element: element(mechanics.Fire), ElementStrength: 2, DaoXing: 1, Target: TargetSelf,
		}},
		{Name: "Keeping Still", Hexagram: 0b100100, Cost: 1, Effect: EffectSpec{
			Qi: 3, Target: TargetSelf,
		}},
		{Name: "Joyous Lake", Hexagram: 0b011011, Cost: 1, Effect: EffectSpec{
			ChengYi: 2, Target: TargetSelf,
		}},
		{Name: "Turning Point", Hexagram: 0b000001, Cost: 3, Effect: EffectSpec{
			Transform: true, DaoXing: 1, Target: TargetSelf,
		}},
		{Name: "Breakthrough", Hexagram: 0b011111, Cost: 3, Effect: EffectSpec{
			Transform: true, Polarity: polarity(mechanics.Yang), PolarityPoints: 1, Target: TargetSelf,
		}},
		{Name: "Gathering Clouds", Hexagram: 0b010111, Cost: 2, Effect: EffectSpec{
			Element: element(mechanics.Water), ElementStrength: 2, Target: TargetOther,
		}},
		{Name: "Pressing Advance", Hexagram: 0b101000, Cost: 2, Effect: EffectSpec{
			Element: element(mechanics.Fire), ElementStrength: 2, Target: TargetOther,
		}},
	}

	c := &memoryCatalog{cards: make(map[uuid.UUID]CardDef, len(defs))}
	for _, d := range defs {
		d.ID = cardID(d.Name)
		c.cards[d.ID] = d
		// Two copies of each card per deck.
		c.deck = append(c.deck, d.ID, d.ID)
	}
	return c
}
