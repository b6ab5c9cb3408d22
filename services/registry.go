// services/registry.go
package services

import (
	"log"
	"sync"
	"time"

	"game-match-system/physics"
)

// MatchStatus is the lifecycle state of a live match.
type MatchStatus string

const (
	StatusForming MatchStatus = "forming"
	StatusReady   MatchStatus = "ready"
	StatusActive  MatchStatus = "active"
	StatusPaused  MatchStatus = "paused"
	// StatusCancelled is latched under the match lock before a cancelled
	// match leaves the registry, so a concurrent join cannot fill it in
	// the window between the cancel check and the registry delete.
	StatusCancelled MatchStatus = "cancelled"
	StatusFinished  MatchStatus = "finished"
)

// StakeState is the stake metadata of a live match.
type StakeState string

const (
	StakeNone    StakeState = "none"
	StakePending StakeState = "pending"
	StakeLocked  StakeState = "locked"
)

// Pause quota per participant per match.
const PauseQuota = 2

// Slot is one participant position in a live match.
type Slot struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Wallet   string `json:"wallet,omitempty"`
	LockProof string `json:"-"`

	Connected  bool `json:"connected"`
	PausesLeft int  `json:"pauses_left"`

	// Disconnect grace timer; the generation counter invalidates a timer
	// that fires after a reconnect already superseded it.
	graceTimer *time.Timer
	graceGen   uint64
}

// LiveMatch is the in-memory state of one match. All fields are guarded by
// mu: the tick loop and every pause/disconnect/forfeit handler take it, so
// each match has exactly one writer at a time. Cross-match operations never
// touch another match's lock.
type LiveMatch struct {
	mu sync.Mutex

	Code    string
	Variant string
	Status  MatchStatus

	// QuickPool marks a forming match joinable through the anonymous queue.
	QuickPool bool

	Slots [2]*Slot

	Stake       StakeState
	StakeAmount int64

	Kernel physics.Kernel
	State  physics.State

	CreatedAt    time.Time
	LastActivity time.Time
	StartedAt    time.Time
	FinishedAt   time.Time

	// Auto-resume timer for the single match-wide pause.
	pausedBy    int
	resumeTimer *time.Timer
	resumeGen   uint64

	// finished latches terminal side effects: checked-and-set under mu so
	// racing termination triggers resolve to exactly one winner path.
	finished bool
	stop     chan struct{}

	replay *ReplayLog
}

// Lock takes the match's single-writer lock.
func (m *LiveMatch) Lock() { m.mu.Lock() }

// Unlock releases the match's single-writer lock.
func (m *LiveMatch) Unlock() { m.mu.Unlock() }

// slotOf returns the slot index for a participant identity, or -1.
// Caller holds the match lock.
func (m *LiveMatch) slotOf(userID string) int {
	for i, s := range m.Slots {
		if s != nil && s.UserID == userID {
			return i
		}
	}
	return -1
}

// HasParticipant reports whether the identity occupies a slot.
func (m *LiveMatch) HasParticipant(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slotOf(userID) >= 0
}

// touch refreshes the last-activity timestamp. Caller holds the match lock.
func (m *LiveMatch) touch() { m.LastActivity = time.Now() }

// MatchRegistry is the shared in-memory table of live matches. The registry
// mutex only guards the map itself; per-match state is guarded by each
// match's own lock, so one slow match never delays another.
type MatchRegistry struct {
	mu      sync.RWMutex
	matches map[string]*LiveMatch
}

func NewMatchRegistry() *MatchRegistry {
	return &MatchRegistry{matches: make(map[string]*LiveMatch)}
}

// Add registers a new match under its code.
func (r *MatchRegistry) Add(m *LiveMatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.matches[m.Code]; exists {
		return ErrDuplicateCode
	}
	r.matches[m.Code] = m
	return nil
}

// Get looks up a live match by code.
func (r *MatchRegistry) Get(code string) (*LiveMatch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[code]
	return m, ok
}

// Delete removes a match from the table. Stopping its loop and timers is the
// caller's responsibility.
func (r *MatchRegistry) Delete(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[code]; ok {
		delete(r.matches, code)
		log.Printf("[REGISTRY] match %s removed (%d live)", code, len(r.matches))
	}
}

// Count returns the number of live matches.
func (r *MatchRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// Snapshot returns the current set of matches for iteration. Callers must
// take each match's own lock before reading its mutable fields.
func (r *MatchRegistry) Snapshot() []*LiveMatch {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*LiveMatch, 0, len(r.matches))
	for _, m := range r.matches {
		out = append(out, m)
	}
	return out
}

// FindQuick returns the first forming quick-pool match of the variant whose
// creator is a different identity. First-found, not skill-matched.
func (r *MatchRegistry) FindQuick(variant, excludeUserID string) *LiveMatch {
	for _, m := range r.Snapshot() {
		m.Lock()
		ok := m.QuickPool && m.Variant == variant && m.Status == StatusForming &&
			m.Slots[1] == nil && m.Slots[0] != nil && m.Slots[0].UserID != excludeUserID
		m.Unlock()
		if ok {
			return m
		}
	}
	return nil
}

// FindByUser returns the first unfinished match the identity occupies a slot
// in, used to re-attach reconnecting participants.
func (r *MatchRegistry) FindByUser(userID string) *LiveMatch {
	for _, m := range r.Snapshot() {
		m.Lock()
		ok := m.Status != StatusFinished && m.Status != StatusCancelled && m.slotOf(userID) >= 0
		m.Unlock()
		if ok {
			return m
		}
	}
	return nil
}

// HasOpenStake reports whether the user already has an open staked match of
// the same variant and amount. Pools are matched by exact amount.
func (r *MatchRegistry) HasOpenStake(userID, variant string, amount int64) bool {
	for _, m := range r.Snapshot() {
		m.Lock()
		found := m.Stake != StakeNone && m.Variant == variant && m.StakeAmount == amount &&
			m.Status == StatusForming && m.Slots[0] != nil && m.Slots[0].UserID == userID
		m.Unlock()
		if found {
			return true
		}
	}
	return false
}
