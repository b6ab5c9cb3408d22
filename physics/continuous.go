// physics/continuous.go
//
// Shared kinematics for the continuous-field variants (pong, hockey):
// position integration, wall bounce with energy loss, speed capping and the
// inward boundary clamp that prevents a ball sitting exactly on a wall from
// double-scoring across two ticks.
package physics

import "math"

const (
	// Field is a fixed 100x100 unit square for every continuous variant.
	FieldWidth  = 100.0
	FieldHeight = 100.0

	// WallRestitution is the energy retained on a wall bounce.
	WallRestitution = 0.92

	// SpeedCap bounds runaway acceleration from repeated paddle hits,
	// in field units per tick.
	SpeedCap = 2.5
)

// Vec is a 2D position or velocity in field units.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// integrate moves pos by vel for one tick.
func integrate(pos, vel Vec) Vec {
	return Vec{X: pos.X + vel.X, Y: pos.Y + vel.Y}
}

// capSpeed scales vel down to SpeedCap if it exceeds it.
func capSpeed(vel Vec) Vec {
	speed := math.Hypot(vel.X, vel.Y)
	if speed <= SpeedCap || speed == 0 {
		return vel
	}
	k := SpeedCap / speed
	return Vec{X: vel.X * k, Y: vel.Y * k}
}

// bounceX reflects horizontal motion off the side walls, losing energy.
// A position exactly on (or past) a wall is clamped strictly inside it.
func bounceX(pos, vel Vec) (Vec, Vec) {
	if pos.X <= 0 {
		pos.X = clampInward(pos.X, 0, FieldWidth)
		vel.X = -vel.X * WallRestitution
	} else if pos.X >= FieldWidth {
		pos.X = clampInward(pos.X, 0, FieldWidth)
		vel.X = -vel.X * WallRestitution
	}
	return pos, vel
}

// bounceY reflects vertical motion off the top/bottom walls, losing energy.
func bounceY(pos, vel Vec) (Vec, Vec) {
	if pos.Y <= 0 || pos.Y >= FieldHeight {
		pos.Y = clampInward(pos.Y, 0, FieldHeight)
		vel.Y = -vel.Y * WallRestitution
	}
	return pos, vel
}

// clampInward pulls v strictly inside [lo, hi] by a small epsilon so a
// boundary-sitting ball cannot oscillate between "out" on both sides.
func clampInward(v, lo, hi float64) float64 {
	const eps = 1e-6
	if v <= lo {
		return lo + eps
	}
	if v >= hi {
		return hi - eps
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
