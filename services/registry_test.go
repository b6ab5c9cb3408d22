// services/registry_test.go
package services

import (
	"testing"
	"time"

	"game-match-system/physics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMatch(t *testing.T, code, variant string, quick bool) *LiveMatch {
	t.Helper()
	kernel, err := physics.ForVariant(variant)
	require.NoError(t, err)
	return &LiveMatch{
		Code:         code,
		Variant:      variant,
		Status:       StatusForming,
		QuickPool:    quick,
		Kernel:       kernel,
		State:        kernel.InitialState(1),
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
		stop:         make(chan struct{}),
		replay:       NewReplayLog(code, variant),
		Slots: [2]*Slot{
			{UserID: "user-a", Username: "alice", Connected: true, PausesLeft: PauseQuota},
			nil,
		},
	}
}

func fillMatch(m *LiveMatch) *LiveMatch {
	m.Slots[1] = &Slot{UserID: "user-b", Username: "bob", Connected: true, PausesLeft: PauseQuota}
	m.Status = StatusActive
	m.StartedAt = time.Now()
	return m
}

func TestRegistryDuplicateCode(t *testing.T) {
	reg := NewMatchRegistry()
	require.NoError(t, reg.Add(testMatch(t, "checkers-abc123", "checkers", false)))

	err := reg.Add(testMatch(t, "checkers-abc123", "checkers", false))
	assert.ErrorIs(t, err, ErrDuplicateCode)
	assert.Equal(t, 1, reg.Count())
}

func TestRegistryGetAndDelete(t *testing.T) {
	reg := NewMatchRegistry()
	require.NoError(t, reg.Add(testMatch(t, "pong-xyz", "pong", false)))

	m, ok := reg.Get("pong-xyz")
	require.True(t, ok)
	assert.Equal(t, "pong", m.Variant)

	reg.Delete("pong-xyz")
	_, ok = reg.Get("pong-xyz")
	assert.False(t, ok)
	reg.Delete("pong-xyz") // deleting twice is harmless
}

func TestFindQuickExcludesOwnMatches(t *testing.T) {
	reg := NewMatchRegistry()
	require.NoError(t, reg.Add(testMatch(t, "pong-one", "pong", true)))

	// The waiting creator must not be paired against themselves.
	assert.Nil(t, reg.FindQuick("pong", "user-a"))
	assert.Nil(t, reg.FindQuick("hockey", "user-b"))

	found := reg.FindQuick("pong", "user-b")
	require.NotNil(t, found)
	assert.Equal(t, "pong-one", found.Code)
}

func TestFindQuickSkipsFriendlyAndFilled(t *testing.T) {
	reg := NewMatchRegistry()
	require.NoError(t, reg.Add(testMatch(t, "pong-friendly", "pong", false)))
	require.NoError(t, reg.Add(fillMatch(testMatch(t, "pong-going", "pong", true))))

	assert.Nil(t, reg.FindQuick("pong", "user-c"))
}

func TestHasOpenStakeExactAmount(t *testing.T) {
	reg := NewMatchRegistry()
	m := testMatch(t, "pong-staked", "pong", false)
	m.Stake = StakePending
	m.StakeAmount = 100
	require.NoError(t, reg.Add(m))

	assert.True(t, reg.HasOpenStake("user-a", "pong", 100))
	// Different amount, variant or identity each open a separate pool.
	assert.False(t, reg.HasOpenStake("user-a", "pong", 200))
	assert.False(t, reg.HasOpenStake("user-a", "hockey", 100))
	assert.False(t, reg.HasOpenStake("user-b", "pong", 100))
}

func TestFindByUser(t *testing.T) {
	reg := NewMatchRegistry()
	require.NoError(t, reg.Add(fillMatch(testMatch(t, "checkers-live", "checkers", false))))

	require.NotNil(t, reg.FindByUser("user-b"))
	assert.Nil(t, reg.FindByUser("user-z"))

	m, _ := reg.Get("checkers-live")
	m.Lock()
	m.Status = StatusFinished
	m.Unlock()
	assert.Nil(t, reg.FindByUser("user-b"))
}
