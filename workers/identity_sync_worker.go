// workers/identity_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"game-match-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredIdentity matches the JSON response from the profile sync service.
type MirroredIdentity struct {
	ExternalID        string     `json:"external_id"`
	Username          string     `json:"username"`
	WalletAddress     *string    `json:"wallet_address,omitempty"`
	ProfilePictureURL *string    `json:"profile_picture_url,omitempty"`
	AccountStatus     string     `json:"account_status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
}

type GetIdentityChangesResponse struct {
	Users []MirroredIdentity `json:"users"`
}

// IdentitySyncWorker keeps arena_users fresh against the profile service so
// usernames and avatars on leaderboards do not depend on players connecting.
type IdentitySyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewIdentitySyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *IdentitySyncWorker {
	return &IdentitySyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *IdentitySyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Identity Sync Worker (profile-service → arena_users)…")
	go w.run(ctx)
}

func (w *IdentitySyncWorker) run(ctx context.Context) {
	// Initial sync (backfill if needed) - sync from the beginning of time
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial identity sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.getLastSyncTime()); err != nil {
				log.Printf("❌ Identity sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Identity Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt from the local table.
func (w *IdentitySyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM arena_users WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

func (w *IdentitySyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid sync service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sync service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response GetIdentityChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode sync service response: %w", err)
	}
	if len(response.Users) == 0 {
		return nil
	}

	var upsertCount, errorCount int
	for _, remote := range response.Users {
		local := models.ArenaUser{
			ExternalUserID:    remote.ExternalID,
			Username:          remote.Username,
			WalletAddress:     remote.WalletAddress,
			ProfilePictureURL: remote.ProfilePictureURL,
			IsBanned:          remote.AccountStatus == "suspended",
			CreatedAt:         remote.CreatedAt,
			UpdatedAt:         remote.UpdatedAt,
		}

		if err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "wallet_address", "profile_picture_url",
				"is_banned", "updated_at",
			}),
		}).Create(&local).Error; err != nil {
			errorCount++
			log.Printf("[SYNC] ⚠️ Failed to upsert arena_user (external_id=%q): %v", remote.ExternalID, err)
		} else {
			upsertCount++
		}
	}
	log.Printf("[SYNC] ✅ Synced %d identities (%d upserted, %d errors)", len(response.Users), upsertCount, errorCount)
	return nil
}
