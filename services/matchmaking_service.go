// services/matchmaking_service.go
package services

import (
	"errors"
	"log"
	"time"

	"game-match-system/models"
	"game-match-system/physics"
	"game-match-system/utils"

	"gorm.io/gorm"
)

// MatchmakingService pairs participants into live matches: friendly
// (human-shared code), quick (anonymous first-found queue) and staked
// (wallet-gated, exact-amount pools).
type MatchmakingService struct {
	DB         *gorm.DB
	Registry   *MatchRegistry
	Loops      *LoopService
	Broadcast  *Broadcaster
	Conns      *ConnectionCoordinator
	Settlement *SettlementClient
}

func NewMatchmakingService(db *gorm.DB, reg *MatchRegistry, loops *LoopService, bc *Broadcaster, conns *ConnectionCoordinator, settlement *SettlementClient) *MatchmakingService {
	return &MatchmakingService{DB: db, Registry: reg, Loops: loops, Broadcast: bc, Conns: conns, Settlement: settlement}
}

func (ms *MatchmakingService) newLiveMatch(code, variant string, creator *Session, quick bool, stake StakeState, amount int64, proof string) *LiveMatch {
	kernel, _ := physics.ForVariant(variant)
	now := time.Now()
	m := &LiveMatch{
		Code:         code,
		Variant:      variant,
		Status:       StatusForming,
		QuickPool:    quick,
		Stake:        stake,
		StakeAmount:  amount,
		Kernel:       kernel,
		State:        kernel.InitialState(now.UnixNano()),
		CreatedAt:    now,
		LastActivity: now,
		stop:         make(chan struct{}),
		replay:       NewReplayLog(code, variant),
	}
	m.Slots[0] = &Slot{
		UserID:     creator.UserID,
		Username:   creator.Username,
		Wallet:     creator.Wallet,
		LockProof:  proof,
		Connected:  true,
		PausesLeft: PauseQuota,
	}
	return m
}

// CreateFriendly opens a forming match with slot A filled. A missing code is
// generated as a random unguessable one.
func (ms *MatchmakingService) CreateFriendly(sess *Session, variant, code string) (*LiveMatch, error) {
	if !physics.KnownVariant(variant) {
		return nil, ErrUnknownVariant
	}
	if code == "" {
		code = utils.NewMatchCode(variant)
	} else {
		code = utils.NormalizeMatchCode(code)
	}
	m := ms.newLiveMatch(code, variant, sess, false, StakeNone, 0, "")
	if err := ms.Registry.Add(m); err != nil {
		return nil, err
	}
	ms.Conns.BindMatch(sess, code)
	log.Printf("🎮 [MATCHMAKING] friendly %s match %s formed by %s", variant, code, sess.Username)
	return m, nil
}

// JoinFriendly fills slot B of a forming match by code and starts the loop.
func (ms *MatchmakingService) JoinFriendly(sess *Session, code string) (*LiveMatch, error) {
	return ms.join(sess, utils.NormalizeMatchCode(code), "", false)
}

// join is the shared slot-B path for friendly, quick and staked joins.
func (ms *MatchmakingService) join(sess *Session, code, proof string, staked bool) (*LiveMatch, error) {
	m, ok := ms.Registry.Get(code)
	if !ok {
		return nil, ErrNotFound
	}
	m.Lock()
	if m.Status != StatusForming {
		m.Unlock()
		return nil, ErrNotAvailable
	}
	if m.Slots[1] != nil {
		m.Unlock()
		return nil, ErrFull
	}
	if m.Slots[0].UserID == sess.UserID {
		m.Unlock()
		return nil, ErrSelfMatch
	}
	if staked != (m.Stake != StakeNone) {
		m.Unlock()
		return nil, ErrNotAvailable
	}
	m.Slots[1] = &Slot{
		UserID:     sess.UserID,
		Username:   sess.Username,
		Wallet:     sess.Wallet,
		LockProof:  proof,
		Connected:  true,
		PausesLeft: PauseQuota,
	}
	if m.Stake == StakePending {
		m.Stake = StakeLocked
	}
	m.Status = StatusReady
	m.touch()
	m.Unlock()

	ms.Conns.BindMatch(sess, code)
	ms.Broadcast.Event(code, EvMatchReady, map[string]any{
		"code":    code,
		"variant": m.Variant,
	})
	ms.Loops.Start(m)
	log.Printf("🎮 [MATCHMAKING] %s joined match %s, starting", sess.Username, code)
	return m, nil
}

// EnqueueQuick pairs against the first forming quick match of the variant
// from a different identity, or opens a new one and returns immediately with
// a forming match — the pairing arrives asynchronously as match-ready.
func (ms *MatchmakingService) EnqueueQuick(sess *Session, variant string) (*LiveMatch, error) {
	if !physics.KnownVariant(variant) {
		return nil, ErrUnknownVariant
	}
	if waiting := ms.Registry.FindQuick(variant, sess.UserID); waiting != nil {
		m, err := ms.join(sess, waiting.Code, "", false)
		if err == nil {
			return m, nil
		}
		// The found match resolved under us (filled or cancelled);
		// fall through and wait in a fresh one.
		log.Printf("[MATCHMAKING] quick match %s resolved before join: %v", waiting.Code, err)
	}
	m := ms.newLiveMatch(utils.NewMatchCode(variant), variant, sess, true, StakeNone, 0, "")
	if err := ms.Registry.Add(m); err != nil {
		return nil, err
	}
	ms.Conns.BindMatch(sess, m.Code)
	log.Printf("🎮 [MATCHMAKING] %s waiting in quick pool for %s (match %s)", sess.Username, variant, m.Code)
	return m, nil
}

// CreateStaked opens a wallet-gated match with the stake pending until the
// second lock proof arrives. One open staked match per (player, variant,
// amount) at a time.
func (ms *MatchmakingService) CreateStaked(sess *Session, variant string, amount int64, proof string) (*LiveMatch, error) {
	if !physics.KnownVariant(variant) {
		return nil, ErrUnknownVariant
	}
	if ms.Registry.HasOpenStake(sess.UserID, variant, amount) {
		return nil, ErrDuplicateStake
	}
	if err := ms.verifyStake(sess, amount, proof); err != nil {
		return nil, err
	}
	m := ms.newLiveMatch(utils.NewMatchCode(variant), variant, sess, false, StakePending, amount, proof)
	if err := ms.Registry.Add(m); err != nil {
		return nil, err
	}
	ms.Conns.BindMatch(sess, m.Code)
	log.Printf("💰 [MATCHMAKING] staked %s match %s formed by %s (%d)", variant, m.Code, sess.Username, amount)
	return m, nil
}

// JoinStaked fills slot B of a staked match, verifying the joiner's own lock
// proof. On success the stake flips to locked and the match is ready.
func (ms *MatchmakingService) JoinStaked(sess *Session, code, proof string) (*LiveMatch, error) {
	m, ok := ms.Registry.Get(code)
	if !ok {
		return nil, ErrNotFound
	}
	m.Lock()
	amount := m.StakeAmount
	m.Unlock()
	if err := ms.verifyStake(sess, amount, proof); err != nil {
		return nil, err
	}
	return ms.join(sess, code, proof, true)
}

// verifyStake checks the participant has an active mirrored wallet and that
// the ledger confirms the lock proof for the amount.
func (ms *MatchmakingService) verifyStake(sess *Session, amount int64, proof string) error {
	if sess.Wallet == "" {
		return ErrWalletRequired
	}
	var wallet models.WalletMirror
	err := ms.DB.Where("address = ? AND is_active = true", sess.Wallet).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrWalletRequired
	}
	if err != nil {
		return err
	}
	if err := ms.Settlement.VerifyLock(sess.Wallet, proof, amount); err != nil {
		log.Printf("❌ [MATCHMAKING] lock proof rejected for %s: %v", sess.Wallet, err)
		return ErrStakeNotLocked
	}
	return nil
}

// Cancel removes a forming, not-yet-filled match. Only the creator may
// cancel; a match that is already filled or gone counts as resolved and the
// cancel is silently accepted.
func (ms *MatchmakingService) Cancel(sess *Session, code string) error {
	m, ok := ms.Registry.Get(code)
	if !ok {
		return nil // already gone
	}
	m.Lock()
	if m.Status != StatusForming || m.Slots[1] != nil {
		m.Unlock()
		return nil // already resolved
	}
	if m.Slots[0].UserID != sess.UserID {
		m.Unlock()
		return ErrNotCreator
	}
	// Latch the status while still holding the lock: a join racing this
	// cancel sees a non-forming match and is rejected, instead of filling
	// a match about to vanish from the registry.
	m.Status = StatusCancelled
	stake := m.Stake
	amount := m.StakeAmount
	wallet := m.Slots[0].Wallet
	m.Unlock()

	if stake == StakePending {
		// The creator's stake is locked at the ledger; stage a refund.
		row := models.StakeSettlement{MatchID: code, Kind: "refund", Wallet: wallet, Amount: amount}
		if err := ms.DB.Create(&row).Error; err != nil {
			log.Printf("❌ [MATCHMAKING] staging refund for cancelled %s: %v", code, err)
		}
	}
	ms.Broadcast.Event(code, EvMatchCancelled, map[string]string{"code": code})
	ms.Registry.Delete(code)
	ms.Broadcast.DropMatch(code)
	ms.Conns.UnbindMatch(sess)
	log.Printf("🎮 [MATCHMAKING] match %s cancelled by creator", code)
	return nil
}
