// physics/hockey.go
package physics

import (
	"encoding/json"
	"math"
	"math/rand"
)

const (
	hockeyScoreLimit    = 5
	hockeyGoalHalfW     = 15.0 // goal gap centered on the top/bottom walls
	hockeyFriction      = 0.995
	hockeyStrikerRadius = 6.0
	hockeyPuckRadius    = 3.0
	hockeyServeSpeed    = 1.0
	hockeyPushSpeed     = 1.5
)

// HockeyState is the full simulation state of a puck-hockey match.
// Slot A defends the bottom goal, slot B the top goal.
type HockeyState struct {
	Puck     Vec    `json:"puck"`
	Vel      Vec    `json:"vel"`
	Strikers [2]Vec `json:"strikers"`
	Score    [2]int `json:"score"`

	rng *rand.Rand
}

// Scores implements Scorer.
func (s *HockeyState) Scores() [2]int { return s.Score }

type hockeyKernel struct{}

// NewHockeyKernel returns the kernel for the puck-hockey variant.
func NewHockeyKernel() Kernel { return hockeyKernel{} }

func (hockeyKernel) Variant() string  { return VariantHockey }
func (hockeyKernel) Continuous() bool { return true }

func (hockeyKernel) InitialState(seed int64) State {
	s := &HockeyState{
		Strikers: [2]Vec{
			{X: FieldWidth / 2, Y: 15},
			{X: FieldWidth / 2, Y: FieldHeight - 15},
		},
		rng: rand.New(rand.NewSource(seed)),
	}
	s.serve(0)
	return s
}

func (s *HockeyState) serve(toward int) {
	s.Puck = Vec{X: FieldWidth / 2, Y: FieldHeight / 2}
	angle := (s.rng.Float64() - 0.5) * math.Pi / 2
	dir := 1.0
	if toward == 0 {
		dir = -1.0
	}
	s.Vel = Vec{
		X: hockeyServeSpeed * math.Sin(angle),
		Y: hockeyServeSpeed * math.Cos(angle) * dir,
	}
}

func inGoalMouth(x float64) bool {
	return math.Abs(x-FieldWidth/2) <= hockeyGoalHalfW
}

func (hockeyKernel) Advance(st State) State {
	s := st.(*HockeyState)

	s.Puck = integrate(s.Puck, s.Vel)
	s.Vel.X *= hockeyFriction
	s.Vel.Y *= hockeyFriction

	s.Puck, s.Vel = bounceX(s.Puck, s.Vel)

	// Top/bottom walls bounce everywhere except inside the goal mouth.
	if (s.Puck.Y <= 0 || s.Puck.Y >= FieldHeight) && !inGoalMouth(s.Puck.X) {
		s.Puck, s.Vel = bounceY(s.Puck, s.Vel)
	}

	for slot := 0; slot < 2; slot++ {
		s.collideStriker(slot)
	}

	// A puck fully past a wall inside the goal mouth scores for the attacker.
	if s.Puck.Y <= 0 && inGoalMouth(s.Puck.X) {
		s.Score[1]++
		s.serve(0)
	} else if s.Puck.Y >= FieldHeight && inGoalMouth(s.Puck.X) {
		s.Score[0]++
		s.serve(1)
	}
	return s
}

// collideStriker pushes the puck out along the center-to-center normal when
// it overlaps a striker, at no less than the push speed.
func (s *HockeyState) collideStriker(slot int) {
	dx := s.Puck.X - s.Strikers[slot].X
	dy := s.Puck.Y - s.Strikers[slot].Y
	dist := math.Hypot(dx, dy)
	minDist := hockeyStrikerRadius + hockeyPuckRadius
	if dist >= minDist || dist == 0 {
		return
	}
	speed := math.Hypot(s.Vel.X, s.Vel.Y)
	if speed < hockeyPushSpeed {
		speed = hockeyPushSpeed
	}
	s.Vel = capSpeed(Vec{X: dx / dist * speed, Y: dy / dist * speed})
	// Move the puck out of the overlap so it cannot re-collide next tick.
	s.Puck.X = s.Strikers[slot].X + dx/dist*minDist
	s.Puck.Y = s.Strikers[slot].Y + dy/dist*minDist
}

type hockeyInput struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (hockeyKernel) ApplyInput(st State, slot int, raw json.RawMessage) (State, error) {
	s := st.(*HockeyState)
	var in hockeyInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return s, rejectInput("malformed striker input: %v", err)
	}
	if in.X == nil || in.Y == nil ||
		math.IsNaN(*in.X) || math.IsInf(*in.X, 0) || math.IsNaN(*in.Y) || math.IsInf(*in.Y, 0) {
		return s, rejectInput("striker position missing or not finite")
	}
	// Strikers are confined to their own half.
	x := clamp(*in.X, hockeyStrikerRadius, FieldWidth-hockeyStrikerRadius)
	var y float64
	if slot == 0 {
		y = clamp(*in.Y, hockeyStrikerRadius, FieldHeight/2-hockeyStrikerRadius)
	} else {
		y = clamp(*in.Y, FieldHeight/2+hockeyStrikerRadius, FieldHeight-hockeyStrikerRadius)
	}
	s.Strikers[slot] = Vec{X: x, Y: y}
	return s, nil
}

func (hockeyKernel) CheckTerminal(st State) Terminal {
	s := st.(*HockeyState)
	for slot := 0; slot < 2; slot++ {
		if s.Score[slot] >= hockeyScoreLimit {
			return Terminal{Terminal: true, WinnerSlot: slot}
		}
	}
	return Terminal{WinnerSlot: -1}
}
