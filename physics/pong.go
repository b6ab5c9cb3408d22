// physics/pong.go
package physics

import (
	"encoding/json"
	"math"
	"math/rand"
)

const (
	pongScoreLimit  = 5
	pongPaddleHalfW = 8.0
	pongPaddleLineA = 3.0  // slot A defends the bottom edge
	pongPaddleLineB = 97.0 // slot B defends the top edge
	pongServeSpeed  = 1.2
	pongHitSpeedup  = 1.05
	pongSpinFactor  = 0.4
)

// PongState is the full simulation state of a paddle-ball match.
type PongState struct {
	Ball    Vec        `json:"ball"`
	Vel     Vec        `json:"vel"`
	Paddles [2]float64 `json:"paddles"` // paddle center X per slot
	Score   [2]int     `json:"score"`

	rng *rand.Rand
}

// Scores implements Scorer.
func (s *PongState) Scores() [2]int { return s.Score }

type pongKernel struct{}

// NewPongKernel returns the kernel for the paddle-ball variant.
func NewPongKernel() Kernel { return pongKernel{} }

func (pongKernel) Variant() string  { return VariantPong }
func (pongKernel) Continuous() bool { return true }

func (pongKernel) InitialState(seed int64) State {
	s := &PongState{
		Paddles: [2]float64{FieldWidth / 2, FieldWidth / 2},
		rng:     rand.New(rand.NewSource(seed)),
	}
	s.serve(0)
	return s
}

// serve places the ball at center and picks a randomized serve angle toward
// the given slot. Randomness comes only from the state-owned seeded RNG.
func (s *PongState) serve(toward int) {
	s.Ball = Vec{X: FieldWidth / 2, Y: FieldHeight / 2}
	angle := (s.rng.Float64() - 0.5) * math.Pi / 2 // within ±45° of vertical
	dir := 1.0
	if toward == 0 {
		dir = -1.0
	}
	s.Vel = Vec{
		X: pongServeSpeed * math.Sin(angle),
		Y: pongServeSpeed * math.Cos(angle) * dir,
	}
}

func (pongKernel) Advance(st State) State {
	s := st.(*PongState)

	s.Ball = integrate(s.Ball, s.Vel)
	s.Ball, s.Vel = bounceX(s.Ball, s.Vel)

	// Paddle hits only count against a ball moving into the paddle line.
	if s.Vel.Y < 0 && s.Ball.Y <= pongPaddleLineA && math.Abs(s.Ball.X-s.Paddles[0]) <= pongPaddleHalfW {
		s.deflect(0)
	} else if s.Vel.Y > 0 && s.Ball.Y >= pongPaddleLineB && math.Abs(s.Ball.X-s.Paddles[1]) <= pongPaddleHalfW {
		s.deflect(1)
	}

	// Past the bottom edge: B scores. Past the top edge: A scores.
	if s.Ball.Y <= 0 {
		s.Score[1]++
		s.serve(0)
	} else if s.Ball.Y >= FieldHeight {
		s.Score[0]++
		s.serve(1)
	}
	return s
}

func (s *PongState) deflect(slot int) {
	s.Vel.Y = -s.Vel.Y * pongHitSpeedup
	s.Vel.X += (s.Ball.X - s.Paddles[slot]) / pongPaddleHalfW * pongSpinFactor
	s.Vel = capSpeed(s.Vel)
	if slot == 0 {
		s.Ball.Y = clampInward(s.Ball.Y, pongPaddleLineA, FieldHeight)
	} else {
		s.Ball.Y = clampInward(s.Ball.Y, 0, pongPaddleLineB)
	}
}

type pongInput struct {
	PaddleX *float64 `json:"paddle_x"`
}

func (pongKernel) ApplyInput(st State, slot int, raw json.RawMessage) (State, error) {
	s := st.(*PongState)
	var in pongInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return s, rejectInput("malformed paddle input: %v", err)
	}
	if in.PaddleX == nil || math.IsNaN(*in.PaddleX) || math.IsInf(*in.PaddleX, 0) {
		return s, rejectInput("paddle_x missing or not a finite number")
	}
	s.Paddles[slot] = clamp(*in.PaddleX, pongPaddleHalfW, FieldWidth-pongPaddleHalfW)
	return s, nil
}

func (pongKernel) CheckTerminal(st State) Terminal {
	s := st.(*PongState)
	for slot := 0; slot < 2; slot++ {
		if s.Score[slot] >= pongScoreLimit {
			return Terminal{Terminal: true, WinnerSlot: slot}
		}
	}
	return Terminal{WinnerSlot: -1}
}
