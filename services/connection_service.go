// services/connection_service.go
package services

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const sessionWriteDeadline = 5 * time.Second

// Session binds one physical websocket connection to a participant identity.
// An identity may hold several sessions at once (multi-device); at most one
// of them is the controlling session for any given match, the rest mirror.
type Session struct {
	ID       string
	UserID   string
	Username string
	Wallet   string
	DeviceID string

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu         sync.Mutex
	matchCode  string
	controller bool // controlling session for matchCode
	active     bool
	lastSeen   time.Time
}

// Send marshals v and writes it under the session's write lock with a write
// deadline, so broadcast fan-out and direct replies never interleave.
func (s *Session) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if s.conn == nil {
		return errors.New("session has no connection")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(sessionWriteDeadline)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// SendEvent sends a typed server→client protocol message.
func (s *Session) SendEvent(typ string, data any) error {
	return s.Send(Envelope{Type: typ, Data: data})
}

// MatchCode returns the match this session is bound to, if any.
func (s *Session) MatchCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchCode
}

// ConnectionCoordinator owns the session table: registering sockets,
// binding them to matches, and reporting disconnects to the match loop.
type ConnectionCoordinator struct {
	mu       sync.RWMutex
	sessions map[string]*Session            // by session id
	byUser   map[string]map[string]*Session // identity → session id → session

	Users     *UserService
	Loops     *LoopService
	Broadcast *Broadcaster
}

func NewConnectionCoordinator(users *UserService, loops *LoopService, broadcast *Broadcaster) *ConnectionCoordinator {
	return &ConnectionCoordinator{
		sessions:  make(map[string]*Session),
		byUser:    make(map[string]map[string]*Session),
		Users:     users,
		Loops:     loops,
		Broadcast: broadcast,
	}
}

// Register creates a session for an authenticated connection and records
// identity activity.
func (cc *ConnectionCoordinator) Register(conn *websocket.Conn, userID, username, wallet, deviceID string) *Session {
	sess := &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		Wallet:   wallet,
		DeviceID: deviceID,
		conn:     conn,
		active:   true,
		lastSeen: time.Now(),
	}

	cc.mu.Lock()
	cc.sessions[sess.ID] = sess
	if cc.byUser[userID] == nil {
		cc.byUser[userID] = make(map[string]*Session)
	}
	cc.byUser[userID][sess.ID] = sess
	cc.mu.Unlock()

	if _, err := cc.Users.FindOrCreate(userID, username, wallet); err != nil {
		log.Printf("⚠️ [CONN] upserting arena user %s: %v", userID, err)
	}
	log.Printf("🔌 [CONN] session %s registered for %s (device %s)", sess.ID, username, deviceID)
	return sess
}

// BindMatch makes sess the controlling session for the match, subscribing it
// to the broadcast stream. A previous controlling session of the same
// identity is demoted to a mirror, preserving at most one active controller
// per (identity, match).
func (cc *ConnectionCoordinator) BindMatch(sess *Session, code string) {
	cc.mu.RLock()
	siblings := cc.byUser[sess.UserID]
	for _, sib := range siblings {
		if sib == sess {
			continue
		}
		sib.mu.Lock()
		if sib.matchCode == code && sib.controller {
			sib.controller = false
		}
		sib.mu.Unlock()
	}
	cc.mu.RUnlock()

	sess.mu.Lock()
	sess.matchCode = code
	sess.controller = true
	sess.lastSeen = time.Now()
	sess.mu.Unlock()

	cc.Broadcast.Subscribe(code, sess)
}

// Mirror subscribes an additional device of a participant to the match
// stream without making it the controller.
func (cc *ConnectionCoordinator) Mirror(sess *Session, code string) {
	sess.mu.Lock()
	sess.matchCode = code
	sess.controller = false
	sess.mu.Unlock()
	cc.Broadcast.Subscribe(code, sess)
}

// UnbindMatch detaches a session from its match (leave, match deleted).
func (cc *ConnectionCoordinator) UnbindMatch(sess *Session) {
	sess.mu.Lock()
	code := sess.matchCode
	sess.matchCode = ""
	sess.controller = false
	sess.mu.Unlock()
	if code != "" {
		cc.Broadcast.Unsubscribe(code, sess)
	}
}

// Unregister deactivates a closed connection. If it was the controlling
// session for a match and no sibling device can take over, the disconnect is
// reported to the loop, which starts the grace timer.
func (cc *ConnectionCoordinator) Unregister(sess *Session) {
	sess.mu.Lock()
	sess.active = false
	sess.lastSeen = time.Now()
	code := sess.matchCode
	wasController := sess.controller
	sess.controller = false
	sess.mu.Unlock()

	cc.mu.Lock()
	delete(cc.sessions, sess.ID)
	if set := cc.byUser[sess.UserID]; set != nil {
		delete(set, sess.ID)
		if len(set) == 0 {
			delete(cc.byUser, sess.UserID)
		}
	}
	cc.mu.Unlock()

	cc.Users.RecordActivity(sess.UserID)

	if code == "" {
		return
	}
	cc.Broadcast.Unsubscribe(code, sess)
	if !wasController {
		return
	}

	// Another device of the same identity already in the match takes over
	// seamlessly; only a full identity drop starts the grace clock.
	if next := cc.promoteSibling(sess.UserID, code); next != nil {
		log.Printf("🔁 [CONN] %s: device %s takes over match %s", sess.Username, next.DeviceID, code)
		return
	}
	cc.Loops.HandleDisconnect(code, sess.UserID)
}

func (cc *ConnectionCoordinator) promoteSibling(userID, code string) *Session {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	for _, sib := range cc.byUser[userID] {
		sib.mu.Lock()
		ok := sib.active && sib.matchCode == code
		if ok {
			sib.controller = true
		}
		sib.mu.Unlock()
		if ok {
			return sib
		}
	}
	return nil
}

// SessionsFor returns the live sessions of an identity.
func (cc *ConnectionCoordinator) SessionsFor(userID string) []*Session {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	out := make([]*Session, 0, len(cc.byUser[userID]))
	for _, s := range cc.byUser[userID] {
		out = append(out, s)
	}
	return out
}
