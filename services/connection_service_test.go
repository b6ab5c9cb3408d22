// services/connection_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCoordinator(t *testing.T) (*ConnectionCoordinator, *Broadcaster) {
	t.Helper()
	reg := NewMatchRegistry()
	bc := NewBroadcaster()
	loops := &LoopService{Registry: reg, Broadcast: bc}
	return NewConnectionCoordinator(nil, loops, bc), bc
}

// addSession wires a bare session into the coordinator's tables the way
// Register does, without needing a live socket.
func addSession(cc *ConnectionCoordinator, sess *Session) {
	sess.active = true
	cc.mu.Lock()
	cc.sessions[sess.ID] = sess
	if cc.byUser[sess.UserID] == nil {
		cc.byUser[sess.UserID] = make(map[string]*Session)
	}
	cc.byUser[sess.UserID][sess.ID] = sess
	cc.mu.Unlock()
}

func TestBindMatchSingleController(t *testing.T) {
	cc, bc := testCoordinator(t)
	phone := testSession("s1", "user-a", "alice")
	laptop := testSession("s2", "user-a", "alice")
	addSession(cc, phone)
	addSession(cc, laptop)

	cc.BindMatch(phone, "pong-abc")
	assert.True(t, phone.controller)

	// Binding a second device of the same identity demotes the first:
	// at most one controlling session per (identity, match).
	cc.BindMatch(laptop, "pong-abc")
	assert.True(t, laptop.controller)
	assert.False(t, phone.controller)
	assert.Equal(t, 2, bc.SubscriberCount("pong-abc"))
}

func TestMirrorDoesNotTakeControl(t *testing.T) {
	cc, bc := testCoordinator(t)
	phone := testSession("s1", "user-a", "alice")
	tv := testSession("s2", "user-a", "alice")
	addSession(cc, phone)
	addSession(cc, tv)

	cc.BindMatch(phone, "pong-abc")
	cc.Mirror(tv, "pong-abc")

	assert.True(t, phone.controller)
	assert.False(t, tv.controller)
	assert.Equal(t, "pong-abc", tv.MatchCode())
	assert.Equal(t, 2, bc.SubscriberCount("pong-abc"))
}

func TestPromoteSiblingPrefersBoundDevice(t *testing.T) {
	cc, _ := testCoordinator(t)
	phone := testSession("s1", "user-a", "alice")
	tv := testSession("s2", "user-a", "alice")
	idle := testSession("s3", "user-a", "alice")
	addSession(cc, phone)
	addSession(cc, tv)
	addSession(cc, idle)

	cc.BindMatch(phone, "pong-abc")
	cc.Mirror(tv, "pong-abc")

	// Only a sibling already following the match can take over.
	next := cc.promoteSibling("user-a", "pong-abc")
	require.NotNil(t, next)
	assert.Equal(t, "s2", next.ID)
	assert.True(t, next.controller)
	assert.False(t, idle.controller)

	assert.Nil(t, cc.promoteSibling("user-b", "pong-abc"))
}

func TestUnbindMatchClearsSubscription(t *testing.T) {
	cc, bc := testCoordinator(t)
	phone := testSession("s1", "user-a", "alice")
	addSession(cc, phone)

	cc.BindMatch(phone, "pong-abc")
	require.Equal(t, 1, bc.SubscriberCount("pong-abc"))

	cc.UnbindMatch(phone)
	assert.Equal(t, "", phone.MatchCode())
	assert.False(t, phone.controller)
	assert.Equal(t, 0, bc.SubscriberCount("pong-abc"))

	// Unbinding an unbound session is harmless.
	cc.UnbindMatch(phone)
}
