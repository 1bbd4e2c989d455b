// internal/game/errors.go
package game

import "errors"

// Rejection kinds returned to the offending client. None of them mutate
// state or abort the room's lane.
var (
	ErrInvalidAction        = errors.New("invalid action")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrInvalidTarget        = errors.New("invalid target")
)

// ErrStateCorrupt marks an invariant violation: a negative counter or a
// bad turn pointer. It is a programming error, not a user-facing one; a
// room refuses to start from a corrupt state and never repairs it.
var ErrStateCorrupt = errors.New("game state corrupt")

// ErrorKind maps a rejection to its wire name.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientResource):
		return "InsufficientResource"
	case errors.Is(err, ErrInvalidTarget):
		return "InvalidTarget"
	case errors.Is(err, ErrStateCorrupt):
		return "StateCorrupt"
	default:
		return "InvalidAction"
	}
}
