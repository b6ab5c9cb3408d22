// workers/settlement_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"game-match-system/models"
	"game-match-system/services"

	"gorm.io/gorm"
)

const (
	settlementPollInterval = 15 * time.Second
	settlementMaxAttempts  = 5
	settlementBatchSize    = 20
)

// SettlementWorker drains pending stake settlements against the ledger
// service. Rows are retried with bounded attempts; a row that keeps failing
// is parked as failed for operator inspection. Match outcomes are already
// final by the time a row exists here.
type SettlementWorker struct {
	db     *gorm.DB
	ledger *services.SettlementClient
}

func NewSettlementWorker(db *gorm.DB, ledger *services.SettlementClient) *SettlementWorker {
	return &SettlementWorker{db: db, ledger: ledger}
}

func (w *SettlementWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Settlement Worker (stake_settlements → ledger)…")
	go w.run(ctx)
}

func (w *SettlementWorker) run(ctx context.Context) {
	ticker := time.NewTicker(settlementPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Settlement Worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *SettlementWorker) drain(ctx context.Context) {
	var rows []models.StakeSettlement
	err := w.db.
		Where("status = ?", "pending").
		Order("created_at ASC").
		Limit(settlementBatchSize).
		Find(&rows).Error
	if err != nil {
		log.Printf("❌ [SETTLEMENT] fetching pending rows: %v", err)
		return
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return
		}
		w.process(row)
	}
}

func (w *SettlementWorker) process(row models.StakeSettlement) {
	var txRef string
	var err error
	switch row.Kind {
	case "payout":
		txRef, err = w.ledger.SettleWinner(row.MatchID, row.Wallet, row.Amount)
	case "refund":
		txRef, err = w.ledger.Refund(row.MatchID, row.Wallet, row.Amount)
	default:
		err = gorm.ErrInvalidData
	}

	attempts := row.Attempts + 1
	if err != nil {
		updates := map[string]any{
			"attempts":   attempts,
			"last_error": err.Error(),
		}
		if attempts >= settlementMaxAttempts {
			updates["status"] = "failed"
			log.Printf("❌ [SETTLEMENT] %s %s for %s failed permanently after %d attempts: %v",
				row.Kind, row.ID, row.Wallet, attempts, err)
		} else {
			log.Printf("⚠️ [SETTLEMENT] %s %s attempt %d/%d failed: %v",
				row.Kind, row.ID, attempts, settlementMaxAttempts, err)
		}
		if dbErr := w.db.Model(&row).Updates(updates).Error; dbErr != nil {
			log.Printf("❌ [SETTLEMENT] updating row %s: %v", row.ID, dbErr)
		}
		return
	}

	now := time.Now()
	updates := map[string]any{
		"status":     "done",
		"attempts":   attempts,
		"tx_ref":     txRef,
		"settled_at": now,
		"last_error": "",
	}
	if dbErr := w.db.Model(&row).Updates(updates).Error; dbErr != nil {
		log.Printf("❌ [SETTLEMENT] marking row %s done: %v", row.ID, dbErr)
		return
	}
	log.Printf("✅ [SETTLEMENT] %s of %d to %s settled (tx %s)", row.Kind, row.Amount, row.Wallet, txRef)
}
