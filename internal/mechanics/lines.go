// internal/mechanics/lines.go
package mechanics

import "math/rand"

// LinePolicy selects which lines change when a transformation is triggered
// by a random event. The source material disagrees on the distribution, so
// the policy is explicit configuration rather than a hard-coded guess.
type LinePolicy interface {
	// Name identifies the policy in config and logs.
	Name() string
	// Select draws a ChangingLineSet from the given source.
	Select(r *rand.Rand) ChangingLineSet
}

// UniformPolicy draws the number of changing lines uniformly from 0..6,
// then picks that many distinct lines uniformly.
type UniformPolicy struct{}

func (UniformPolicy) Name() string { return "uniform" }

func (UniformPolicy) Select(r *rand.Rand) ChangingLineSet {
	count := r.Intn(HexagramLines + 1)
	return pickLines(r, count)
}

// ConservativePolicy biases toward few changes: each additional changing
// line is half as likely as the previous one. Roughly half of all draws
// change a single line and changing all six is rare, which matches the
// traditional coin method's feel without claiming to reproduce it.
type ConservativePolicy struct{}

func (ConservativePolicy) Name() string { return "conservative" }

func (ConservativePolicy) Select(r *rand.Rand) ChangingLineSet {
	count := 1
	for count < HexagramLines && r.Intn(2) == 0 {
		count++
	}
	return pickLines(r, count)
}

// pickLines selects count distinct line indices via a partial shuffle.
func pickLines(r *rand.Rand, count int) ChangingLineSet {
	idx := [HexagramLines]int{0, 1, 2, 3, 4, 5}
	var s ChangingLineSet
	for i := 0; i < count; i++ {
		j := i + r.Intn(HexagramLines-i)
		idx[i], idx[j] = idx[j], idx[i]
		s |= 1 << idx[i]
	}
	return s
}

// PolicyByName resolves a configured policy name. Unknown names fall back
// to the conservative policy.
func PolicyByName(name string) LinePolicy {
	if name == "uniform" {
		return UniformPolicy{}
	}
	return ConservativePolicy{}
}
