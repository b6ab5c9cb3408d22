// services/rating.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"game-match-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	// KFactor is the Elo K used for every variant.
	KFactor = 32
	// RatingSeed is the rating every new record starts at.
	RatingSeed = 1000
	// WinnerFloor is the minimum points a winner gains, even when the
	// logistic formula would award less against a much weaker opponent.
	WinnerFloor = 5
)

// expectedScore is the logistic expectation of `player` against `opponent`.
func expectedScore(player, opponent int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(opponent-player)/400.0))
}

// UpdateRatings computes new ratings after a decisive result. The winner's
// gain is clamped to at least WinnerFloor; the loser's change is not.
func UpdateRatings(winnerRating, loserRating int) (newWinner, newLoser int) {
	newWinner = int(math.Round(float64(winnerRating) + KFactor*(1.0-expectedScore(winnerRating, loserRating))))
	if newWinner < winnerRating+WinnerFloor {
		newWinner = winnerRating + WinnerFloor
	}
	newLoser = int(math.Round(float64(loserRating) + KFactor*(0.0-expectedScore(loserRating, winnerRating))))
	return newWinner, newLoser
}

// UpdateRatingsDraw computes new ratings after a draw. No floor applies.
func UpdateRatingsDraw(ratingA, ratingB int) (newA, newB int) {
	newA = int(math.Round(float64(ratingA) + KFactor*(0.5-expectedScore(ratingA, ratingB))))
	newB = int(math.Round(float64(ratingB) + KFactor*(0.5-expectedScore(ratingB, ratingA))))
	return newA, newB
}

// RatingService persists per-variant rating records and serves the read API.
type RatingService struct {
	DB *gorm.DB
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{DB: db}
}

// RatingOutcome is what ApplyOutcome writes back, echoed to clients in the
// match-finished event.
type RatingOutcome struct {
	NewA   int `json:"new_a"`
	NewB   int `json:"new_b"`
	DeltaA int `json:"delta_a"`
	DeltaB int `json:"delta_b"`
}

// ApplyOutcome loads (or seeds) both records for the variant, runs the rating
// engine once and persists counters, streaks and earnings in one transaction.
// The loop's terminal latch guarantees this runs exactly once per match.
func (rs *RatingService) ApplyOutcome(variant, userA, userB string, winnerSlot int, draw bool, winnerEarnings int64) (*RatingOutcome, error) {
	var out *RatingOutcome
	err := rs.DB.Transaction(func(tx *gorm.DB) error {
		recA, err := loadOrSeedRating(tx, userA, variant)
		if err != nil {
			return err
		}
		recB, err := loadOrSeedRating(tx, userB, variant)
		if err != nil {
			return err
		}

		var newA, newB int
		switch {
		case draw:
			newA, newB = UpdateRatingsDraw(recA.Rating, recB.Rating)
			applyDraw(recA)
			applyDraw(recB)
		case winnerSlot == 0:
			newA, newB = UpdateRatings(recA.Rating, recB.Rating)
			applyWin(recA, winnerEarnings)
			applyLoss(recB)
		case winnerSlot == 1:
			newB, newA = UpdateRatings(recB.Rating, recA.Rating)
			applyWin(recB, winnerEarnings)
			applyLoss(recA)
		default:
			return fmt.Errorf("invalid outcome: winner slot %d without draw", winnerSlot)
		}

		out = &RatingOutcome{
			NewA: newA, NewB: newB,
			DeltaA: newA - recA.Rating,
			DeltaB: newB - recB.Rating,
		}
		recA.Rating = newA
		recB.Rating = newB
		if err := tx.Save(recA).Error; err != nil {
			return err
		}
		return tx.Save(recB).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadOrSeedRating(tx *gorm.DB, userID, variant string) (*models.RatingRecord, error) {
	var rec models.RatingRecord
	err := tx.Where("external_user_id = ? AND variant = ?", userID, variant).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec = models.RatingRecord{ExternalUserID: userID, Variant: variant, Rating: RatingSeed}
		if err := tx.Create(&rec).Error; err != nil {
			return nil, err
		}
		return &rec, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func applyWin(rec *models.RatingRecord, earnings int64) {
	rec.Games++
	rec.Wins++
	rec.WinStreak++
	if rec.WinStreak > rec.BestStreak {
		rec.BestStreak = rec.WinStreak
	}
	rec.Earnings += earnings
	now := time.Now()
	rec.LastPlayedAt = &now
}

func applyLoss(rec *models.RatingRecord) {
	rec.Games++
	rec.Losses++
	rec.WinStreak = 0
	now := time.Now()
	rec.LastPlayedAt = &now
}

func applyDraw(rec *models.RatingRecord) {
	rec.Games++
	rec.Draws++
	rec.WinStreak = 0
	now := time.Now()
	rec.LastPlayedAt = &now
}

// GetMyRatings returns the caller's rating records across variants.
func (rs *RatingService) GetMyRatings(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var records []models.RatingRecord
	if err := rs.DB.Where("external_user_id = ?", userID).Find(&records).Error; err != nil {
		log.Printf("❌ [RATING] fetching records for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(records)
}

// GetLeaderboard returns the top rated players for one variant.
func (rs *RatingService) GetLeaderboard(c *fiber.Ctx) error {
	variant := c.Params("variant")
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var records []models.RatingRecord
	if err := rs.DB.Where("variant = ?", variant).
		Order("rating DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		log.Printf("❌ [RATING] leaderboard query for %s: %v", variant, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{
		"variant": variant,
		"entries": records,
		"count":   len(records),
	})
}
