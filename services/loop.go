// services/loop.go
package services

import (
	"encoding/json"
	"log"
	"time"

	"game-match-system/models"
	"game-match-system/physics"

	"gorm.io/gorm"
)

const (
	// ContinuousTick is the fixed simulation period for physics variants.
	ContinuousTick = time.Second / 60
	// HeartbeatTick is the idle period for turn-based variants.
	HeartbeatTick = time.Second
	// CountdownTicks of one second run between ready and active.
	CountdownTicks = 3
	// PauseAutoResume is the bounded deadline on every pause.
	PauseAutoResume = 10 * time.Second
	// DisconnectGrace is how long a dropped participant may reconnect
	// before forfeiting. It runs regardless of pause status, so a paused
	// match can never stall indefinitely on a dead connection.
	DisconnectGrace = 30 * time.Second
	// FinishedGrace keeps a finished match visible for late events before
	// the janitor deletes it.
	FinishedGrace = 30 * time.Second
)

// Match result tags, persisted on the finished record.
const (
	ResultScore   = "score"
	ResultForfeit = "forfeit"
	ResultTimeout = "timeout"
	ResultDraw    = "draw"
)

// SlotView is the public projection of a slot for snapshots.
type SlotView struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Connected  bool   `json:"connected"`
	PausesLeft int    `json:"pauses_left"`
}

// MatchSnapshot is the per-tick state frame streamed to subscribers. State
// is captured as bytes under the match lock, so a snapshot in a send queue
// never aliases the live simulation state.
type MatchSnapshot struct {
	Code    string          `json:"code"`
	Variant string          `json:"variant"`
	Status  MatchStatus     `json:"status"`
	Slots   [2]*SlotView    `json:"slots"`
	Scores  [2]int          `json:"scores"`
	State   json.RawMessage `json:"state"`
}

// LoopService owns one ticking goroutine per active match and every
// transition of the pause/disconnect/forfeit state machine. All mutation
// goes through the match's single-writer lock.
type LoopService struct {
	DB        *gorm.DB
	Registry  *MatchRegistry
	Broadcast *Broadcaster
	Rating    *RatingService
	Replays   *ReplayArchiver

	// settleFn, when set, replaces settle as the terminal side-effect path.
	// Tests use it to observe the termination latch without a database.
	settleFn func(*LiveMatch, matchOutcome)
}

func NewLoopService(db *gorm.DB, reg *MatchRegistry, bc *Broadcaster, rating *RatingService, replays *ReplayArchiver) *LoopService {
	return &LoopService{DB: db, Registry: reg, Broadcast: bc, Rating: rating, Replays: replays}
}

// Start launches the match goroutine once both slots are filled. The match
// must be in ready status.
func (ls *LoopService) Start(m *LiveMatch) {
	go ls.run(m)
}

func (ls *LoopService) run(m *LiveMatch) {
	// Countdown: visible to both sides, no physics until it completes.
	ls.Broadcast.Event(m.Code, EvCountdownStarted, map[string]int{"seconds": CountdownTicks})
	for i := CountdownTicks; i > 0; i-- {
		ls.Broadcast.Event(m.Code, EvCountdown, map[string]int{"remaining": i})
		select {
		case <-m.stop:
			return
		case <-time.After(time.Second):
		}
	}

	m.Lock()
	if m.finished {
		m.Unlock()
		return
	}
	ls.activateLocked(m)
	snap := ls.snapshotLocked(m)
	m.Unlock()
	ls.Broadcast.Event(m.Code, EvMatchStarted, snap)
	log.Printf("🏁 [LOOP] match %s started (%s)", m.Code, m.Variant)

	period := ContinuousTick
	if !m.Kernel.Continuous() {
		period = HeartbeatTick
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			ls.tick(m)
		}
	}
}

// activateLocked flips a match from countdown to active. A participant who
// dropped during ready or the countdown never got a grace timer (nothing was
// forfeitable yet), so one is armed here; otherwise the match would sit
// active forever waiting on a connection that is already gone.
// Caller holds the match lock.
func (ls *LoopService) activateLocked(m *LiveMatch) {
	m.Status = StatusActive
	m.StartedAt = time.Now()
	m.touch()
	for slot, s := range m.Slots {
		if s == nil || s.Connected {
			continue
		}
		ls.armGraceLocked(m, slot)
		ls.Broadcast.EventExcept(m.Code, EvOpponentDisconnected, map[string]any{
			"user_id":   s.UserID,
			"grace_sec": int(DisconnectGrace.Seconds()),
		}, s.UserID)
		log.Printf("🔌 [LOOP] match %s: slot %d dropped before start, grace %s", m.Code, slot, DisconnectGrace)
	}
}

// tick advances the simulation by one fixed step. While paused nothing
// happens at all — no physics, no broadcast. The terminal transition is
// taken under the match lock, atomically with suppressing any further
// snapshot, so no input can land after a terminal tick.
func (ls *LoopService) tick(m *LiveMatch) {
	m.Lock()
	if m.Status != StatusActive {
		m.Unlock()
		return
	}
	if m.Kernel.Continuous() {
		m.State = m.Kernel.Advance(m.State)
		m.replay.Ticked()
	}

	if term := m.Kernel.CheckTerminal(m.State); term.Terminal {
		ls.finishLocked(m, term.WinnerSlot, term.Draw, resultTag(term))
		m.Unlock()
		return
	}

	if !m.Kernel.Continuous() {
		// Heartbeat only: board state is broadcast when a move lands.
		m.Unlock()
		return
	}
	snap := ls.snapshotLocked(m)
	m.Unlock()
	ls.Broadcast.Snapshot(m.Code, snap, "")
}

func resultTag(term physics.Terminal) string {
	if term.Draw {
		return ResultDraw
	}
	return ResultScore
}

// ApplyInput validates and applies a participant input. A rejected input is
// echoed to the sender only and changes nothing.
func (ls *LoopService) ApplyInput(sess *Session, code string, raw json.RawMessage) error {
	m, ok := ls.Registry.Get(code)
	if !ok {
		return ErrNotFound
	}
	m.Lock()
	slot := m.slotOf(sess.UserID)
	if slot < 0 {
		m.Unlock()
		return ErrNotInMatch
	}
	if m.Status != StatusActive {
		m.Unlock()
		return ErrNotActive
	}

	st, err := m.Kernel.ApplyInput(m.State, slot, raw)
	if err != nil {
		m.Unlock()
		return err
	}
	m.State = st
	m.replay.Input(slot, raw)
	m.touch()

	finished := false
	if !m.Kernel.Continuous() {
		// A validated move can end a board game immediately.
		if term := m.Kernel.CheckTerminal(m.State); term.Terminal {
			ls.finishLocked(m, term.WinnerSlot, term.Draw, resultTag(term))
			finished = true
		}
	}
	var snap *MatchSnapshot
	if !finished && !m.Kernel.Continuous() {
		snap = ls.snapshotLocked(m)
	}
	m.Unlock()

	// Continuous variants are streamed by the tick loop; board variants
	// broadcast each applied move, tagged with its origin session.
	if snap != nil {
		ls.Broadcast.Snapshot(m.Code, snap, sess.ID)
	}
	return nil
}

// Pause suspends the match for the requesting participant, spending one
// pause from their quota and arming the auto-resume timer.
func (ls *LoopService) Pause(code, userID string) (remaining int, err error) {
	m, ok := ls.Registry.Get(code)
	if !ok {
		return 0, ErrNotFound
	}
	m.Lock()
	defer m.Unlock()

	slot := m.slotOf(userID)
	if slot < 0 {
		return 0, ErrNotInMatch
	}
	if m.Status == StatusPaused {
		return m.Slots[slot].PausesLeft, ErrAlreadyPaused
	}
	if m.Status != StatusActive {
		return m.Slots[slot].PausesLeft, ErrNotActive
	}
	if m.Slots[slot].PausesLeft <= 0 {
		return 0, ErrNoPausesLeft
	}

	m.Slots[slot].PausesLeft--
	m.Status = StatusPaused
	m.pausedBy = slot
	m.touch()

	m.resumeGen++
	gen := m.resumeGen
	m.resumeTimer = time.AfterFunc(PauseAutoResume, func() {
		ls.autoResume(m, gen)
	})

	remaining = m.Slots[slot].PausesLeft
	ls.Broadcast.Event(m.Code, EvPaused, map[string]any{
		"by":               m.Slots[slot].Username,
		"pauses_remaining": remaining,
		"auto_resume_sec":  int(PauseAutoResume.Seconds()),
	})
	log.Printf("⏸️ [LOOP] match %s paused by %s (%d left)", m.Code, userID, remaining)
	return remaining, nil
}

// Resume puts a paused match back to active. Resuming a match that is not
// paused is a safe no-op, which also makes the auto-resume timer racing an
// explicit resume harmless.
func (ls *LoopService) Resume(code, userID string) error {
	m, ok := ls.Registry.Get(code)
	if !ok {
		return ErrNotFound
	}
	m.Lock()
	defer m.Unlock()
	if m.slotOf(userID) < 0 {
		return ErrNotInMatch
	}
	ls.resumeLocked(m)
	return nil
}

func (ls *LoopService) autoResume(m *LiveMatch, gen uint64) {
	m.Lock()
	defer m.Unlock()
	if m.resumeGen != gen {
		// Superseded by an explicit resume (or a newer pause).
		return
	}
	ls.resumeLocked(m)
}

// resumeLocked performs the paused→active transition. Caller holds the lock.
func (ls *LoopService) resumeLocked(m *LiveMatch) {
	if m.Status != StatusPaused {
		return
	}
	if m.resumeTimer != nil {
		m.resumeTimer.Stop()
		m.resumeTimer = nil
	}
	m.resumeGen++
	m.Status = StatusActive
	m.touch()
	ls.Broadcast.Event(m.Code, EvResumed, nil)
	log.Printf("▶️ [LOOP] match %s resumed", m.Code)
}

// HandleDisconnect marks a participant's slot disconnected and arms the
// grace timer. Reconnecting within the window leaves the match untouched.
// The timer runs even while the match is paused.
func (ls *LoopService) HandleDisconnect(code, userID string) {
	m, ok := ls.Registry.Get(code)
	if !ok {
		return
	}
	m.Lock()
	defer m.Unlock()

	slot := m.slotOf(userID)
	if slot < 0 || m.finished {
		return
	}
	m.Slots[slot].Connected = false
	m.touch()

	if m.Status == StatusForming || m.Status == StatusReady {
		// Nothing to forfeit yet. Forming matches are expired by the
		// janitor; a ready match arms the grace timer at activation.
		return
	}

	ls.armGraceLocked(m, slot)
	ls.Broadcast.EventExcept(m.Code, EvOpponentDisconnected, map[string]any{
		"user_id":   userID,
		"grace_sec": int(DisconnectGrace.Seconds()),
	}, userID)
	log.Printf("🔌 [LOOP] match %s: %s disconnected, grace %s", m.Code, userID, DisconnectGrace)
}

// HandleReconnect clears the disconnected flag and disarms the grace timer.
// Scores and pause quotas are untouched.
func (ls *LoopService) HandleReconnect(code, userID string) {
	m, ok := ls.Registry.Get(code)
	if !ok {
		return
	}
	m.Lock()
	defer m.Unlock()

	slot := m.slotOf(userID)
	if slot < 0 || m.finished {
		return
	}
	m.Slots[slot].Connected = true
	m.Slots[slot].graceGen++ // invalidate a timer already in flight
	if m.Slots[slot].graceTimer != nil {
		m.Slots[slot].graceTimer.Stop()
		m.Slots[slot].graceTimer = nil
	}
	m.touch()
	ls.Broadcast.EventExcept(m.Code, EvOpponentReconnected, map[string]string{"user_id": userID}, userID)
	log.Printf("🔌 [LOOP] match %s: %s reconnected within grace", m.Code, userID)
}

// armGraceLocked starts the disconnect grace clock for a slot, superseding
// any timer already in flight. Caller holds the match lock.
func (ls *LoopService) armGraceLocked(m *LiveMatch, slot int) {
	m.Slots[slot].graceGen++
	gen := m.Slots[slot].graceGen
	m.Slots[slot].graceTimer = time.AfterFunc(DisconnectGrace, func() {
		ls.disconnectTimeout(m, slot, gen)
	})
}

func (ls *LoopService) disconnectTimeout(m *LiveMatch, slot int, gen uint64) {
	m.Lock()
	defer m.Unlock()
	if m.Slots[slot] == nil || m.Slots[slot].graceGen != gen || m.Slots[slot].Connected || m.finished {
		// Reconnect or termination got there first.
		return
	}
	log.Printf("⏱️ [LOOP] match %s: grace expired for slot %d", m.Code, slot)
	ls.finishLocked(m, 1-slot, false, ResultTimeout)
}

// Forfeit ends the match immediately with the requester as loser.
func (ls *LoopService) Forfeit(code, userID string) error {
	m, ok := ls.Registry.Get(code)
	if !ok {
		return ErrNotFound
	}
	m.Lock()
	defer m.Unlock()

	slot := m.slotOf(userID)
	if slot < 0 {
		return ErrNotInMatch
	}
	if m.Status != StatusActive && m.Status != StatusPaused {
		return ErrNotActive
	}
	ls.Broadcast.EventExcept(m.Code, EvOpponentForfeited, map[string]string{"user_id": userID}, userID)
	ls.finishLocked(m, 1-slot, false, ResultForfeit)
	return nil
}

// matchOutcome carries everything the async settlement path needs, captured
// under the match lock at the moment of termination.
type matchOutcome struct {
	winnerSlot int
	draw       bool
	result     string
	scores     [2]int
	duration   time.Duration
}

// finishLocked latches the terminal state exactly once. Racing triggers
// (score threshold, forfeit, disconnect timeout) all funnel through here
// under the match lock; only the first one runs the side effects.
// Caller holds the match lock.
func (ls *LoopService) finishLocked(m *LiveMatch, winnerSlot int, draw bool, result string) {
	if m.finished {
		return
	}
	m.finished = true
	m.Status = StatusFinished
	m.FinishedAt = time.Now()

	// Disarm every pending timer; a late fire is a no-op via the latch and
	// generation counters, but there is no reason to let them run.
	if m.resumeTimer != nil {
		m.resumeTimer.Stop()
		m.resumeTimer = nil
	}
	m.resumeGen++
	for _, s := range m.Slots {
		if s != nil {
			s.graceGen++
			if s.graceTimer != nil {
				s.graceTimer.Stop()
				s.graceTimer = nil
			}
		}
	}
	close(m.stop)

	out := matchOutcome{
		winnerSlot: winnerSlot,
		draw:       draw,
		result:     result,
		scores:     scoresOf(m.State),
	}
	if !m.StartedAt.IsZero() {
		out.duration = m.FinishedAt.Sub(m.StartedAt)
	}
	log.Printf("🏆 [LOOP] match %s finished: %s (winner slot %d, draw=%v)", m.Code, result, winnerSlot, draw)

	// Side effects run off the match lock; the latch above makes them
	// exactly-once no matter how many triggers raced.
	settle := ls.settle
	if ls.settleFn != nil {
		settle = ls.settleFn
	}
	go settle(m, out)
}

func scoresOf(st physics.State) [2]int {
	if s, ok := st.(physics.Scorer); ok {
		return s.Scores()
	}
	return [2]int{}
}

// settle runs the terminal side effects: rating update, match record,
// settlement enqueue, replay archive, final broadcast.
func (ls *LoopService) settle(m *LiveMatch, out matchOutcome) {
	a, b := m.Slots[0], m.Slots[1]

	var pot int64
	if m.Stake == StakeLocked {
		pot = 2 * m.StakeAmount
	}

	ratings, err := ls.Rating.ApplyOutcome(m.Variant, a.UserID, b.UserID, out.winnerSlot, out.draw, pot)
	if err != nil {
		// Outcome stands even when persistence misbehaves.
		log.Printf("❌ [LOOP] rating update failed for match %s: %v", m.Code, err)
		ratings = &RatingOutcome{}
	}

	record := models.Match{
		Code:        m.Code,
		Variant:     m.Variant,
		PlayerAID:   a.UserID,
		PlayerBID:   b.UserID,
		Result:      out.result,
		ScoreA:      out.scores[0],
		ScoreB:      out.scores[1],
		DurationSec: int(out.duration.Seconds()),
		RatingDeltaA: ratings.DeltaA,
		RatingDeltaB: ratings.DeltaB,
		StakeAmount: m.StakeAmount,
	}
	if !out.draw {
		record.WinnerID = m.Slots[out.winnerSlot].UserID
	}
	if url := ls.Replays.Archive(m); url != "" {
		record.ReplayURL = url
	}
	if err := ls.DB.Create(&record).Error; err != nil {
		log.Printf("❌ [LOOP] saving match record %s: %v", m.Code, err)
	}

	if m.Stake == StakeLocked {
		ls.enqueueSettlement(record.ID, m, out)
	}

	winner := ""
	if !out.draw {
		winner = m.Slots[out.winnerSlot].UserID
	}
	ls.Broadcast.Event(m.Code, EvMatchFinished, map[string]any{
		"winner":  winner,
		"draw":    out.draw,
		"result":  out.result,
		"scores":  out.scores,
		"ratings": ratings,
	})
}

// enqueueSettlement stages ledger actions for the settlement worker: the pot
// to the winner, or both stakes refunded on a draw. The worker retries rows
// that fail, so a duplicate ledger call is possible and the ledger must
// dedupe on match id.
func (ls *LoopService) enqueueSettlement(matchID string, m *LiveMatch, out matchOutcome) {
	var rows []models.StakeSettlement
	if out.draw {
		for _, s := range m.Slots {
			rows = append(rows, models.StakeSettlement{
				MatchID: matchID, Kind: "refund", Wallet: s.Wallet, Amount: m.StakeAmount,
			})
		}
	} else {
		rows = append(rows, models.StakeSettlement{
			MatchID: matchID,
			Kind:    "payout",
			Wallet:  m.Slots[out.winnerSlot].Wallet,
			Amount:  2 * m.StakeAmount,
		})
	}
	if err := ls.DB.Create(&rows).Error; err != nil {
		log.Printf("❌ [LOOP] enqueueing settlement for match %s: %v", m.Code, err)
	}
}

// CurrentSnapshot returns the match's current public frame, for reconnecting
// clients that need to redraw before the next broadcast arrives.
func (ls *LoopService) CurrentSnapshot(code string) (*MatchSnapshot, error) {
	m, ok := ls.Registry.Get(code)
	if !ok {
		return nil, ErrNotFound
	}
	m.Lock()
	defer m.Unlock()
	return ls.snapshotLocked(m), nil
}

// snapshotLocked builds the public frame. Caller holds the match lock.
func (ls *LoopService) snapshotLocked(m *LiveMatch) *MatchSnapshot {
	state, err := json.Marshal(m.State)
	if err != nil {
		log.Printf("❌ [LOOP] marshaling state for %s: %v", m.Code, err)
	}
	snap := &MatchSnapshot{
		Code:    m.Code,
		Variant: m.Variant,
		Status:  m.Status,
		Scores:  scoresOf(m.State),
		State:   state,
	}
	for i, s := range m.Slots {
		if s != nil {
			snap.Slots[i] = &SlotView{
				UserID:     s.UserID,
				Username:   s.Username,
				Connected:  s.Connected,
				PausesLeft: s.PausesLeft,
			}
		}
	}
	return snap
}
