// services/match_query_service.go
package services

import (
	"errors"
	"log"
	"strconv"
	"time"

	"game-match-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// MatchQueryService serves the read side: live match listings, finished
// match history and unclaimed stake lookups.
type MatchQueryService struct {
	DB       *gorm.DB
	Registry *MatchRegistry
}

func NewMatchQueryService(db *gorm.DB, reg *MatchRegistry) *MatchQueryService {
	return &MatchQueryService{DB: db, Registry: reg}
}

type liveMatchSummary struct {
	Code      string    `json:"code"`
	Variant   string    `json:"variant"`
	Status    string    `json:"status"`
	Staked    bool      `json:"staked"`
	Players   []string  `json:"players"`
	CreatedAt time.Time `json:"created_at"`
}

// GetLiveMatches lists every match currently in the registry.
func (qs *MatchQueryService) GetLiveMatches(c *fiber.Ctx) error {
	live := qs.Registry.Snapshot()
	out := make([]liveMatchSummary, 0, len(live))
	for _, m := range live {
		m.Lock()
		s := liveMatchSummary{
			Code:      m.Code,
			Variant:   m.Variant,
			Status:    string(m.Status),
			Staked:    m.Stake != StakeNone,
			CreatedAt: m.CreatedAt,
		}
		for _, slot := range m.Slots {
			if slot != nil {
				s.Players = append(s.Players, slot.Username)
			}
		}
		m.Unlock()
		out = append(out, s)
	}
	return c.JSON(out)
}

// GetMatchHistory returns the caller's finished matches, newest first.
func (qs *MatchQueryService) GetMatchHistory(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var matches []models.Match
	err := qs.DB.
		Where("player_a_id = ? OR player_b_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&matches).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "DB error fetching match history",
			"cause": err.Error(),
		})
	}
	return c.JSON(matches)
}

// GetUnclaimedStakes lists settled payouts and refunds for the caller's
// wallet that have not been marked claimed yet.
func (qs *MatchQueryService) GetUnclaimedStakes(c *fiber.Ctx) error {
	wallet, _ := c.Locals("wallet_address").(string)
	if wallet == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no wallet linked to this account",
		})
	}

	var rows []models.StakeSettlement
	err := qs.DB.
		Where("wallet = ? AND status = ? AND claimed = false", wallet, "done").
		Order("settled_at ASC").
		Find(&rows).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "DB error fetching unclaimed stakes",
			"cause": err.Error(),
		})
	}
	return c.JSON(rows)
}

// MarkStakeClaimed records the on-chain claim transaction for a settlement.
// Only the settlement's own wallet may claim it.
func (qs *MatchQueryService) MarkStakeClaimed(c *fiber.Ctx) error {
	wallet, _ := c.Locals("wallet_address").(string)
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid settlement id"})
	}

	var body struct {
		ClaimTxHash string `json:"claim_tx_hash"`
	}
	if err := c.BodyParser(&body); err != nil || body.ClaimTxHash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "claim_tx_hash is required"})
	}

	var row models.StakeSettlement
	if err := qs.DB.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "settlement not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if row.Wallet != wallet {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "settlement belongs to a different wallet"})
	}
	if row.Claimed {
		return c.JSON(row) // idempotent
	}

	now := time.Now()
	updates := map[string]any{
		"claimed":       true,
		"claim_tx_hash": body.ClaimTxHash,
		"claimed_at":    now,
	}
	if err := qs.DB.Model(&row).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	log.Printf("💰 [STAKES] settlement %s claimed by %s (tx %s)", row.ID, wallet, body.ClaimTxHash)
	return c.JSON(row)
}
