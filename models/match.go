package models

// Match is the persisted record of one finished (or abandoned) match.
// Live match state never touches the database — this row is written exactly
// once, by the loop's termination path.
type Match struct {
	ID      string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Code    string `gorm:"index;not null" json:"code"`
	Variant string `gorm:"index;not null;type:varchar(32)" json:"variant"`

	PlayerAID string `gorm:"index;not null" json:"player_a_id"`
	PlayerBID string `gorm:"index;not null" json:"player_b_id"`

	// Outcome
	WinnerID  string `gorm:"index" json:"winner_id,omitempty"` // empty on draw
	Result    string `json:"result" gorm:"type:varchar(16);check:result IN ('score','forfeit','timeout','draw')"`
	ScoreA    int    `json:"score_a" gorm:"default:0"`
	ScoreB    int    `json:"score_b" gorm:"default:0"`
	DurationSec int  `json:"duration_sec" gorm:"default:0"`

	// Rating deltas applied for this match (pre-calculated, avoids recomputation)
	RatingDeltaA int `json:"rating_delta_a" gorm:"default:0"`
	RatingDeltaB int `json:"rating_delta_b" gorm:"default:0"`

	// Stake carried by the match, 0 for free play
	StakeAmount int64  `json:"stake_amount" gorm:"default:0"`
	ReplayURL   string `json:"replay_url,omitempty"`

	Timestamps
}
