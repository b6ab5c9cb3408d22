package models

import "time"

// StakeSettlement is one pending or completed ledger action for a staked
// match. The loop enqueues rows at termination; the settlement worker drains
// them with bounded retries. Gameplay outcome is final regardless of how the
// ledger call goes — settlement is at-least-once, outcome exactly-once.
type StakeSettlement struct {
	ID      string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	MatchID string `gorm:"index;not null" json:"match_id"`

	Kind   string `json:"kind" gorm:"type:varchar(16);check:kind IN ('payout','refund')"`
	Wallet string `gorm:"index;not null" json:"wallet"`
	Amount int64  `gorm:"not null" json:"amount"`

	Status    string     `json:"status" gorm:"type:varchar(16);default:'pending';check:status IN ('pending','done','failed')"`
	Attempts  int        `json:"attempts" gorm:"default:0"`
	LastError string     `json:"last_error,omitempty"`
	TxRef     string     `json:"tx_ref,omitempty"` // ledger reference once settled
	SettledAt *time.Time `json:"settled_at,omitempty"`

	// Claim tracking for the winner-facing unclaimed-stakes API
	Claimed     bool       `json:"claimed" gorm:"default:false"`
	ClaimTxHash string     `json:"claim_tx_hash,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`

	Timestamps
}
