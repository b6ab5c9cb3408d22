// services/users.go
package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"game-match-system/models"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// UserService mirrors gateway identities into the arena's own user table so
// match records and leaderboards survive profile-service outages.
type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// FindOrCreate resolves the arena user for a gateway identity, creating the
// row on first contact and refreshing username and wallet on later ones.
// Usernames arrive from several clients, so normalize to NFC before storing.
func (us *UserService) FindOrCreate(externalID, username, wallet string) (*models.ArenaUser, error) {
	username = norm.NFC.String(strings.TrimSpace(username))

	var user models.ArenaUser
	err := us.DB.Where("external_user_id = ?", externalID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		now := time.Now()
		user = models.ArenaUser{
			ExternalUserID: externalID,
			Username:       username,
			LastSeen:       &now,
		}
		if wallet != "" {
			user.WalletAddress = &wallet
		}
		if err := us.DB.Create(&user).Error; err != nil {
			return nil, err
		}
		log.Printf("👤 [USERS] new arena user %s (%s)", username, externalID)
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"last_seen": time.Now()}
	if username != "" && username != user.Username {
		updates["username"] = username
	}
	if wallet != "" && (user.WalletAddress == nil || *user.WalletAddress != wallet) {
		updates["wallet_address"] = wallet
	}
	if err := us.DB.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// RecordActivity bumps last_seen for an identity without touching anything
// else. Errors are logged, not returned; activity tracking is advisory.
func (us *UserService) RecordActivity(externalID string) {
	err := us.DB.Model(&models.ArenaUser{}).
		Where("external_user_id = ?", externalID).
		Update("last_seen", time.Now()).Error
	if err != nil {
		log.Printf("⚠️ [USERS] recording activity for %s: %v", externalID, err)
	}
}
