// internal/mechanics/fortune.go
package mechanics

// Fortune grades a divination result from greatly auspicious down to
// greatly inauspicious.
type Fortune int

const (
	GreatFortune Fortune = iota
	GoodFortune
	SmallFortune
	EvenFortune
	SmallMisfortune
	Misfortune
	GreatMisfortune
)

var fortuneNames = [...]string{
	"great fortune",
	"good fortune",
	"small fortune",
	"neutral",
	"small misfortune",
	"misfortune",
	"great misfortune",
}

func (f Fortune) String() string {
	if f < 0 || int(f) >= len(fortuneNames) {
		return "unknown"
	}
	return fortuneNames[f]
}

// ReadFortune grades a cast deterministically from the primary hexagram
// and the changing lines: the closer the yang count sits to balance, the
// better the omen, and heavy change pushes the reading toward caution.
func ReadFortune(primary Hexagram, changes ChangingLineSet) Fortune {
	yang := primary.YangCount()
	// Distance from the balanced three-yang pattern: 0..3.
	dist := yang - 3
	if dist < 0 {
		dist = -dist
	}
	grade := dist * 2 // 0, 2, 4, 6
	if changes.Count() >= 4 {
		grade++
	}
	if grade > int(GreatMisfortune) {
		grade = int(GreatMisfortune)
	}
	return Fortune(grade)
}

var fortuneReadings = map[Fortune]string{
	GreatFortune:    "The lines rest in deep accord. Act with confidence; the way is open.",
	GoodFortune:     "Conditions favor movement. Proceed, but keep your intent sincere.",
	SmallFortune:    "A modest opening appears. Small steps succeed where leaps would falter.",
	EvenFortune:     "Neither gain nor loss is indicated. Hold your position and observe.",
	SmallMisfortune: "A minor obstruction lies ahead. Delay what can be delayed.",
	Misfortune:      "The moment resists you. Withdraw and cultivate stillness.",
	GreatMisfortune: "The lines stand in opposition. Undertake nothing; wait for the turn.",
}

// Interpret renders a free-text reading for a completed cast.
func Interpret(primary, transformed Hexagram, changes ChangingLineSet, f Fortune) string {
	if changes.Count() == 0 {
		return "The hexagram " + primary.String() + " stands unchanging. " + fortuneReadings[f]
	}
	return "The hexagram " + primary.String() + " moves toward " + transformed.String() + ". " + fortuneReadings[f]
}
