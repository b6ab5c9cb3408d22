package models

import (
	"time"

	"gorm.io/gorm"
)

// ArenaUser is a local snapshot of the identity data the match engine needs.
// Owned and managed solely by this service; populated on first connect and
// refreshed by the identity sync worker from the profile service.
type ArenaUser struct {
	ID             string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service UUID
	Username       string  `gorm:"index;not null" json:"username"`
	WalletAddress  *string `gorm:"index" json:"wallet_address,omitempty"` // nil until a wallet is linked
	ProfilePictureURL *string `json:"profile_picture_url,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	LastSeen *time.Time `json:"last_seen,omitempty"`
	IsBanned bool       `json:"is_banned" gorm:"default:false"` // local matchmaking ban

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// RemoteUser mirrors the schema of the profile service's `users` table
// (read-only). Used by the identity sync worker.
type RemoteUser struct {
	ID                uint       `gorm:"column:id"`
	Username          string     `gorm:"column:username"`
	WalletAddress     *string    `gorm:"column:wallet_address"`
	ProfilePictureURL *string    `gorm:"column:profile_picture_url"`
	ExternalID        string     `gorm:"column:external_id"` // links to ArenaUser.ExternalUserID
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
	DeletedAt         *time.Time `gorm:"column:deleted_at"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
