// services/rating_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateRatingsEvenMatch(t *testing.T) {
	newWinner, newLoser := UpdateRatings(1000, 1000)
	assert.Equal(t, 1016, newWinner)
	assert.Equal(t, 984, newLoser)
}

func TestUpdateRatingsWinnerFloor(t *testing.T) {
	// A 1200 player beating an 800 player earns +3 by the formula; the
	// floor lifts it to +5. The loser's change is not floored.
	newWinner, newLoser := UpdateRatings(1200, 800)
	assert.Equal(t, 1205, newWinner)
	assert.Equal(t, 797, newLoser)
}

func TestUpdateRatingsUnderdogWin(t *testing.T) {
	// The underdog gains far more than the floor; clamping must not apply.
	newWinner, newLoser := UpdateRatings(800, 1200)
	assert.Equal(t, 829, newWinner)
	assert.Equal(t, 1171, newLoser)
}

func TestUpdateRatingsDrawEven(t *testing.T) {
	newA, newB := UpdateRatingsDraw(1000, 1000)
	assert.Equal(t, 1000, newA)
	assert.Equal(t, 1000, newB)
}

func TestUpdateRatingsDrawUneven(t *testing.T) {
	// A draw moves points from the favorite to the underdog, with no floor.
	newA, newB := UpdateRatingsDraw(1200, 800)
	assert.Equal(t, 1187, newA)
	assert.Equal(t, 813, newB)
}

func TestExpectedScoreSymmetry(t *testing.T) {
	a := expectedScore(1100, 900)
	b := expectedScore(900, 1100)
	assert.InDelta(t, 1.0, a+b, 1e-9)
	assert.Greater(t, a, 0.5)
}
