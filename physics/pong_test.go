// physics/pong_test.go
package physics

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPongDeterministicFromSeed(t *testing.T) {
	k := NewPongKernel()
	a := k.InitialState(42).(*PongState)
	b := k.InitialState(42).(*PongState)

	for i := 0; i < 300; i++ {
		a = k.Advance(a).(*PongState)
		b = k.Advance(b).(*PongState)
	}
	assert.Equal(t, a.Ball, b.Ball)
	assert.Equal(t, a.Vel, b.Vel)
	assert.Equal(t, a.Score, b.Score)
}

func TestPongServeSpeedAndDirection(t *testing.T) {
	k := NewPongKernel()
	s := k.InitialState(7).(*PongState)

	// Initial serve goes toward slot 0, i.e. downward.
	assert.Negative(t, s.Vel.Y)
	speed := s.Vel.X*s.Vel.X + s.Vel.Y*s.Vel.Y
	assert.InDelta(t, pongServeSpeed*pongServeSpeed, speed, 1e-9)
}

func TestPongInputRejectsNonFinite(t *testing.T) {
	k := NewPongKernel()
	s := k.InitialState(1)

	for _, raw := range []string{
		`{}`,
		`{"paddle_x": null}`,
		`not json`,
	} {
		_, err := k.ApplyInput(s, 0, json.RawMessage(raw))
		var inputErr *InputError
		assert.True(t, errors.As(err, &inputErr), "input %q should be rejected", raw)
	}
	// Paddle unchanged by rejected inputs.
	assert.Equal(t, FieldWidth/2, s.(*PongState).Paddles[0])
}

func TestPongInputClampsToField(t *testing.T) {
	k := NewPongKernel()
	s := k.InitialState(1)

	st, err := k.ApplyInput(s, 1, json.RawMessage(`{"paddle_x": 9999}`))
	require.NoError(t, err)
	assert.Equal(t, FieldWidth-pongPaddleHalfW, st.(*PongState).Paddles[1])

	st, err = k.ApplyInput(st, 1, json.RawMessage(`{"paddle_x": -50}`))
	require.NoError(t, err)
	assert.Equal(t, pongPaddleHalfW, st.(*PongState).Paddles[1])
}

func TestPongMissedBallScoresAndReserves(t *testing.T) {
	k := NewPongKernel()
	s := k.InitialState(1).(*PongState)

	// Park both paddles in a corner so nothing deflects, send the ball
	// straight down.
	s.Paddles = [2]float64{pongPaddleHalfW, pongPaddleHalfW}
	s.Ball = Vec{X: FieldWidth / 2, Y: 1}
	s.Vel = Vec{X: 0, Y: -1.5}

	st := k.Advance(s).(*PongState)
	assert.Equal(t, [2]int{0, 1}, st.Score)
	// Re-served from center.
	assert.InDelta(t, FieldWidth/2, st.Ball.X, 1e-9)
	assert.InDelta(t, FieldHeight/2, st.Ball.Y, 1e-9)
}

func TestPongDeflectOnlyAgainstIncomingBall(t *testing.T) {
	k := NewPongKernel()
	s := k.InitialState(1).(*PongState)

	// Ball over slot A's paddle but moving away from it: no deflection.
	s.Paddles = [2]float64{50, 50}
	s.Ball = Vec{X: 50, Y: 2}
	s.Vel = Vec{X: 0, Y: 0.5}

	st := k.Advance(s).(*PongState)
	assert.Positive(t, st.Vel.Y)
	assert.Equal(t, [2]int{0, 0}, st.Score)
}

func TestPongTerminalAtScoreLimit(t *testing.T) {
	k := NewPongKernel()
	s := k.InitialState(1).(*PongState)

	assert.False(t, k.CheckTerminal(s).Terminal)

	s.Score = [2]int{2, pongScoreLimit}
	term := k.CheckTerminal(s)
	require.True(t, term.Terminal)
	assert.Equal(t, 1, term.WinnerSlot)
	assert.False(t, term.Draw)
}

func TestWallBounceLosesEnergy(t *testing.T) {
	pos, vel := bounceX(Vec{X: -1, Y: 50}, Vec{X: -2, Y: 0})
	assert.Greater(t, pos.X, 0.0)
	assert.InDelta(t, 2*WallRestitution, vel.X, 1e-9)
}

func TestCapSpeedPreservesDirection(t *testing.T) {
	v := capSpeed(Vec{X: 30, Y: 40})
	assert.InDelta(t, SpeedCap, math.Hypot(v.X, v.Y), 1e-9)
	assert.InDelta(t, v.Y/v.X, 40.0/30.0, 1e-9)

	small := capSpeed(Vec{X: 0.1, Y: 0.2})
	assert.Equal(t, Vec{X: 0.1, Y: 0.2}, small)
}

func TestPongZeroVelocityIsFixedPoint(t *testing.T) {
	k := NewPongKernel()
	s := k.InitialState(7).(*PongState)
	s.Ball = Vec{X: FieldWidth / 2, Y: FieldHeight / 2}
	s.Vel = Vec{}

	before, err := json.Marshal(s)
	require.NoError(t, err)

	// A motionless ball must stay exactly where it is: no drift, no wall
	// interaction, no phantom paddle hit, no score.
	for i := 0; i < 25; i++ {
		k.Advance(s)
	}
	after, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}
