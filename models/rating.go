package models

import "time"

// RatingRecord tracks a player's rating and aggregate stats for one game
// variant (denormalized for leaderboard reads). Mutated exactly once per
// finished match, by the rating service.
type RatingRecord struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_rating_user_variant;not null" json:"external_user_id"`
	Variant        string `gorm:"uniqueIndex:idx_rating_user_variant;not null;type:varchar(32)" json:"variant"`

	Rating int `json:"rating" gorm:"default:1000"`

	// Activity counters
	Games  int64 `json:"games" gorm:"default:0"`
	Wins   int64 `json:"wins" gorm:"default:0"`
	Losses int64 `json:"losses" gorm:"default:0"`
	Draws  int64 `json:"draws" gorm:"default:0"`

	WinStreak  int `json:"win_streak" gorm:"default:0"`
	BestStreak int `json:"best_streak" gorm:"default:0"`

	// Cumulative stake winnings, in atomic token units
	Earnings int64 `json:"earnings" gorm:"default:0"`

	LastPlayedAt *time.Time `json:"last_played_at,omitempty"`

	Timestamps
}
