// services/broadcast_test.go
package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	s1 := testSession("s1", "user-a", "alice")
	s2 := testSession("s2", "user-b", "bob")

	b.Subscribe("m1", s1)
	b.Subscribe("m1", s2)
	assert.Equal(t, 2, b.SubscriberCount("m1"))

	b.Unsubscribe("m1", s1)
	assert.Equal(t, 1, b.SubscriberCount("m1"))

	b.DropMatch("m1")
	assert.Equal(t, 0, b.SubscriberCount("m1"))
}

func TestBroadcasterDropsFailingSessions(t *testing.T) {
	b := NewBroadcaster()
	// Sessions without a live socket fail their writes and must be shed
	// from the stream instead of wedging it.
	b.Subscribe("m1", testSession("s1", "user-a", "alice"))
	b.Subscribe("m1", testSession("s2", "user-b", "bob"))

	b.Event("m1", EvCountdown, map[string]int{"remaining": 3})
	assert.Equal(t, 0, b.SubscriberCount("m1"))
}

func TestReplayLogRecordsInputsAtTicks(t *testing.T) {
	r := NewReplayLog("pong-abc", "pong")

	r.Ticked()
	r.Ticked()
	r.Input(0, json.RawMessage(`{"paddle_x": 40}`))
	r.Ticked()
	r.Input(1, json.RawMessage(`{"paddle_x": 60}`))

	require.Len(t, r.Events, 2)
	assert.Equal(t, int64(2), r.Events[0].Tick)
	assert.Equal(t, 0, r.Events[0].Slot)
	assert.Equal(t, int64(3), r.Events[1].Tick)
	assert.Equal(t, 1, r.Events[1].Slot)
}

func TestReplayLogCopiesInputBuffer(t *testing.T) {
	r := NewReplayLog("pong-abc", "pong")
	buf := []byte(`{"paddle_x": 40}`)
	r.Input(0, buf)
	copy(buf, []byte(`{"paddle_x": 99}`)) // transport reuses its read buffer

	assert.JSONEq(t, `{"paddle_x": 40}`, string(r.Events[0].Input))
}

func TestReplayLogExport(t *testing.T) {
	r := NewReplayLog("checkers-xyz", "checkers")
	r.Input(0, json.RawMessage(`{"from":{"r":2,"c":1},"to":{"r":3,"c":0}}`))

	data, err := r.Export()
	require.NoError(t, err)

	var decoded ReplayLog
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "checkers-xyz", decoded.Code)
	assert.Equal(t, "checkers", decoded.Variant)
	require.Len(t, decoded.Events, 1)
}
