// physics/hockey_test.go
package physics

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHockeyStrikerConfinedToOwnHalf(t *testing.T) {
	k := NewHockeyKernel()
	s := k.InitialState(1)

	// Slot A tries to park in slot B's half: clamped to its own side.
	st, err := k.ApplyInput(s, 0, json.RawMessage(`{"x": 50, "y": 90}`))
	require.NoError(t, err)
	hs := st.(*HockeyState)
	assert.Equal(t, FieldHeight/2-hockeyStrikerRadius, hs.Strikers[0].Y)

	st, err = k.ApplyInput(st, 1, json.RawMessage(`{"x": 50, "y": 10}`))
	require.NoError(t, err)
	hs = st.(*HockeyState)
	assert.Equal(t, FieldHeight/2+hockeyStrikerRadius, hs.Strikers[1].Y)
}

func TestHockeyInputRejectsNonFinite(t *testing.T) {
	k := NewHockeyKernel()
	s := k.InitialState(1)

	_, err := k.ApplyInput(s, 0, json.RawMessage(`{"x": 10}`))
	var inputErr *InputError
	assert.True(t, errors.As(err, &inputErr))
}

func TestHockeyGoalOnlyThroughMouth(t *testing.T) {
	k := NewHockeyKernel()
	s := k.InitialState(1).(*HockeyState)

	// Park strikers out of the way.
	s.Strikers = [2]Vec{{X: 6, Y: 6}, {X: 6, Y: 94}}

	// Against the top wall outside the mouth: bounce, no score.
	s.Puck = Vec{X: 10, Y: 99.5}
	s.Vel = Vec{X: 0, Y: 1}
	st := k.Advance(s).(*HockeyState)
	assert.Equal(t, [2]int{0, 0}, st.Score)
	assert.Negative(t, st.Vel.Y)

	// Straight through the mouth: slot A scores.
	st.Puck = Vec{X: FieldWidth / 2, Y: 99.5}
	st.Vel = Vec{X: 0, Y: 1}
	st = k.Advance(st).(*HockeyState)
	assert.Equal(t, [2]int{1, 0}, st.Score)
	// Re-served from center toward the scored-on side.
	assert.InDelta(t, FieldWidth/2, st.Puck.X, 1e-9)
	assert.InDelta(t, FieldHeight/2, st.Puck.Y, 1e-9)
}

func TestHockeyStrikerPushesPuck(t *testing.T) {
	k := NewHockeyKernel()
	s := k.InitialState(1).(*HockeyState)

	s.Strikers[0] = Vec{X: 50, Y: 40}
	s.Puck = Vec{X: 50, Y: 44} // overlapping, puck above striker
	s.Vel = Vec{X: 0, Y: 0.1}

	st := k.Advance(s).(*HockeyState)
	// Pushed out along the normal at no less than push speed.
	assert.GreaterOrEqual(t, st.Vel.Y, 0.0)
	dy := st.Puck.Y - st.Strikers[0].Y
	assert.GreaterOrEqual(t, dy, hockeyStrikerRadius+hockeyPuckRadius-1e-9)
}

func TestHockeyTerminalAtScoreLimit(t *testing.T) {
	k := NewHockeyKernel()
	s := k.InitialState(1).(*HockeyState)
	s.Score = [2]int{hockeyScoreLimit, 0}

	term := k.CheckTerminal(s)
	require.True(t, term.Terminal)
	assert.Equal(t, 0, term.WinnerSlot)
}

func TestHockeyZeroVelocityIsFixedPoint(t *testing.T) {
	k := NewHockeyKernel()
	s := k.InitialState(7).(*HockeyState)
	s.Puck = Vec{X: FieldWidth / 2, Y: FieldHeight / 2}
	s.Vel = Vec{}

	before, err := json.Marshal(s)
	require.NoError(t, err)

	// Friction on a zero velocity stays zero; the puck sits clear of both
	// strikers, so nothing in Advance may move any part of the state.
	for i := 0; i < 25; i++ {
		k.Advance(s)
	}
	after, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}
