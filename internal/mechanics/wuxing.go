// internal/mechanics/wuxing.go
package mechanics

// Element is one of the five wuxing categories.
type Element int

const (
	Wood Element = iota
	Fire
	Earth
	Metal
	Water
	NumElements = 5
)

var elementNames = [NumElements]string{"wood", "fire", "earth", "metal", "water"}

func (e Element) String() string {
	if e < 0 || e >= NumElements {
		return "unknown"
	}
	return elementNames[e]
}

// ParseElement maps a wire string to an Element.
func ParseElement(s string) (Element, bool) {
	for i, n := range elementNames {
		if n == s {
			return Element(i), true
		}
	}
	return Wood, false
}

// Relation describes how one element acts on another within the fixed cycle.
type Relation int

const (
	Neutral Relation = iota
	Generates
	GeneratedBy
	Restrains
	RestrainedBy
)

// The generating (sheng) cycle: wood→fire→earth→metal→water→wood.
// The restraining (ke) cycle skips one step: wood→earth→water→fire→metal→wood.
var (
	generates = [NumElements]Element{Fire, Earth, Metal, Water, Wood}
	restrains = [NumElements]Element{Earth, Metal, Water, Wood, Fire}
)

// Generates returns the element produced by e in the sheng cycle.
func (e Element) Generates() Element { return generates[e] }

// Restrains returns the element suppressed by e in the ke cycle.
func (e Element) Restrains() Element { return restrains[e] }

// Relation returns how a acts on b. Lookup is constant time against the
// static cycle tables.
func (a Element) Relation(b Element) Relation {
	switch {
	case a == b:
		return Neutral
	case generates[a] == b:
		return Generates
	case generates[b] == a:
		return GeneratedBy
	case restrains[a] == b:
		return Restrains
	case restrains[b] == a:
		return RestrainedBy
	}
	return Neutral
}

// Affinities holds a player's per-element affinity counters, indexed by Element.
type Affinities [NumElements]int

// Dominant returns the element with the highest affinity. Ties resolve to
// the earlier element in cycle order so the result is deterministic.
func (a Affinities) Dominant() Element {
	best := Wood
	for e := Fire; e < NumElements; e++ {
		if a[e] > a[best] {
			best = e
		}
	}
	return best
}

// Total returns the sum of all affinity counters.
func (a Affinities) Total() int {
	sum := 0
	for _, v := range a {
		sum += v
	}
	return sum
}

const (
	// generateBonus is the extra affinity granted to the dominant element
	// when the applied element generates it.
	generateBonus = 1
	// restrainDivisor halves the applied strength when the dominant
	// element restrains the applied one.
	restrainDivisor = 2
)

// ApplyElement applies element e at the given strength to the affinity set
// and returns the updated set plus the strength that actually landed.
// If the target's dominant element is generated by e, the dominant element
// gains a fixed bonus on top. If the dominant element restrains e, the
// applied strength is halved (rounding down, minimum 0) before landing.
func ApplyElement(a Affinities, e Element, strength int) (Affinities, int) {
	if strength < 0 {
		strength = 0
	}
	dominant := a.Dominant()
	applied := strength
	switch e.Relation(dominant) {
	case Generates:
		a[dominant] += generateBonus
	case Restrains:
		applied = strength / restrainDivisor
	}
	a[e] += applied
	return a, applied
}
