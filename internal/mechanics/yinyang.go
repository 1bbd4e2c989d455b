// internal/mechanics/yinyang.go
package mechanics

// Polarity is one of the two complementary states used by hexagram lines
// and by player polarity counters.
type Polarity int

const (
	Yin Polarity = iota
	Yang
)

// String returns the lowercase name used on the wire.
func (p Polarity) String() string {
	if p == Yang {
		return "yang"
	}
	return "yin"
}

// ParsePolarity maps a wire string to a Polarity. The second return value
// is false for anything other than "yin" or "yang".
func ParsePolarity(s string) (Polarity, bool) {
	switch s {
	case "yin":
		return Yin, true
	case "yang":
		return Yang, true
	}
	return Yin, false
}

// Balance bonus tiers. These are fixed by the ruleset, not tunable per game.
const (
	highBalanceRatio = 0.8
	midBalanceRatio  = 0.6
	highBalanceBonus = 2
	midBalanceBonus  = 1
)

// BalanceRatio computes min(yin,yang)/max(yin,yang). The empty pair (0,0)
// is perfectly balanced by definition. The result is always in [0, 1],
// and equals 1.0 exactly when yin == yang.
func BalanceRatio(yin, yang int) float64 {
	if yin == 0 && yang == 0 {
		return 1.0
	}
	lo, hi := yin, yang
	if lo > hi {
		lo, hi = hi, lo
	}
	return float64(lo) / float64(hi)
}

// BalanceBonus maps a balance ratio onto the fixed bonus tiers.
func BalanceBonus(ratio float64) int {
	switch {
	case ratio >= highBalanceRatio:
		return highBalanceBonus
	case ratio >= midBalanceRatio:
		return midBalanceBonus
	default:
		return 0
	}
}
