// services/broadcast.go
package services

import (
	"log"
	"sync"
)

// Envelope is the wire frame for every server→client message.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
	// Origin carries the session id that triggered a snapshot, so a sender
	// can tell its own echo apart from the opponent's moves.
	Origin string `json:"origin,omitempty"`
}

// Server→client event types.
const (
	EvMatchFormed          = "match-formed"
	EvMatchReady           = "match-ready"
	EvCountdownStarted     = "countdown-started"
	EvCountdown            = "countdown"
	EvMatchStarted         = "match-started"
	EvStateUpdate          = "state-update"
	EvPaused               = "paused"
	EvResumed              = "resumed"
	EvMatchFinished        = "match-finished"
	EvOpponentDisconnected = "opponent-disconnected"
	EvOpponentReconnected  = "opponent-reconnected"
	EvOpponentForfeited    = "opponent-forfeited"
	EvMatchCancelled       = "match-cancelled"
	EvError                = "error"
)

// Broadcaster fans out snapshots and lifecycle events to every session
// subscribed to a match — all devices of both participants. Slow or broken
// connections only affect themselves: writes are per-session locked with a
// deadline, and a failed write drops that one subscriber.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[*Session]bool // match code → subscribers
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[*Session]bool)}
}

// Subscribe adds a session to a match's stream.
func (b *Broadcaster) Subscribe(code string, sess *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[code] == nil {
		b.subs[code] = make(map[*Session]bool)
	}
	b.subs[code][sess] = true
}

// Unsubscribe removes a session from a match's stream.
func (b *Broadcaster) Unsubscribe(code string, sess *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set := b.subs[code]; set != nil {
		delete(set, sess)
		if len(set) == 0 {
			delete(b.subs, code)
		}
	}
}

// DropMatch clears all subscriptions of a deleted match.
func (b *Broadcaster) DropMatch(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, code)
}

// Event sends a lifecycle event to every subscriber of the match. Lifecycle
// events are distinct, small messages outside the snapshot stream so UI
// layers can react without diffing full state.
func (b *Broadcaster) Event(code, typ string, data any) {
	b.send(code, Envelope{Type: typ, Data: data}, nil)
}

// EventExcept sends a lifecycle event to every subscriber but one — used for
// opponent-facing events like opponent-disconnected.
func (b *Broadcaster) EventExcept(code, typ string, data any, except string) {
	b.send(code, Envelope{Type: typ, Data: data}, func(s *Session) bool {
		return s.UserID == except
	})
}

// Snapshot streams a per-tick state snapshot, tagged with the session that
// caused it (empty for pure tick advances).
func (b *Broadcaster) Snapshot(code string, data any, origin string) {
	b.send(code, Envelope{Type: EvStateUpdate, Data: data, Origin: origin}, nil)
}

func (b *Broadcaster) send(code string, env Envelope, skip func(*Session) bool) {
	b.mu.RLock()
	sessions := make([]*Session, 0, len(b.subs[code]))
	for s := range b.subs[code] {
		sessions = append(sessions, s)
	}
	b.mu.RUnlock()

	for _, s := range sessions {
		if skip != nil && skip(s) {
			continue
		}
		if err := s.Send(env); err != nil {
			log.Printf("⚠️ [BROADCAST] dropping session %s on match %s: %v", s.ID, code, err)
			b.Unsubscribe(code, s)
		}
	}
}

// SubscriberCount reports how many sessions follow a match.
func (b *Broadcaster) SubscriberCount(code string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[code])
}
