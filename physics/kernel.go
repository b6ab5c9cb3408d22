// physics/kernel.go
package physics

import (
	"encoding/json"
	"fmt"
)

// State is the variant-owned simulation state. The orchestration engine treats
// it as opaque: it only ever passes it back into the kernel that produced it.
type State any

// Terminal is the result of a terminal-condition check.
type Terminal struct {
	Terminal   bool `json:"terminal"`
	WinnerSlot int  `json:"winner_slot"` // 0 or 1, -1 when not terminal or draw
	Draw       bool `json:"draw"`
}

// InputError marks a rejected player input (out of turn, illegal move,
// malformed payload). It affects nothing but the offending input.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return "rejected input: " + e.Reason }

func rejectInput(format string, args ...interface{}) error {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

// Kernel is the capability surface every game variant implements.
// Advance must be deterministic: no wall-clock reads, all randomness comes
// from the RNG seeded once in InitialState (and re-used on serve resets).
type Kernel interface {
	Variant() string
	// Continuous reports whether the variant advances on fixed ticks.
	// Turn-based variants only change state through ApplyInput.
	Continuous() bool
	InitialState(seed int64) State
	Advance(s State) State
	ApplyInput(s State, slot int, input json.RawMessage) (State, error)
	CheckTerminal(s State) Terminal
}

// Scorer is implemented by variant states that track a per-slot score. The
// orchestration layer uses it for snapshots and the finished-match record.
type Scorer interface {
	Scores() [2]int
}

var kernels = map[string]func() Kernel{
	VariantPong:     func() Kernel { return NewPongKernel() },
	VariantHockey:   func() Kernel { return NewHockeyKernel() },
	VariantCheckers: func() Kernel { return NewCheckersKernel(CheckersOracle{}) },
}

const (
	VariantPong     = "pong"
	VariantHockey   = "hockey"
	VariantCheckers = "checkers"
)

// ForVariant returns a fresh kernel for the given variant tag.
func ForVariant(tag string) (Kernel, error) {
	mk, ok := kernels[tag]
	if !ok {
		return nil, fmt.Errorf("unknown game variant %q", tag)
	}
	return mk(), nil
}

// KnownVariant reports whether tag names a playable variant.
func KnownVariant(tag string) bool {
	_, ok := kernels[tag]
	return ok
}
