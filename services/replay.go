// services/replay.go
package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"game-match-system/utils"
)

// ReplayLog accumulates the inputs of one match. Continuous variants record
// tick counts between inputs instead of every tick, which keeps the log
// proportional to actual play; the deterministic kernels reproduce the rest
// from the seed.
type ReplayLog struct {
	mu      sync.Mutex
	Code    string `json:"code"`
	Variant string `json:"variant"`
	Started int64  `json:"started"`

	ticks  int64
	Events []ReplayEvent `json:"events"`
}

type ReplayEvent struct {
	Tick  int64           `json:"tick"`
	Slot  int             `json:"slot"`
	Input json.RawMessage `json:"input"`
}

func NewReplayLog(code, variant string) *ReplayLog {
	return &ReplayLog{Code: code, Variant: variant, Started: time.Now().Unix()}
}

// Ticked advances the tick counter. Called once per simulation step.
func (r *ReplayLog) Ticked() {
	r.mu.Lock()
	r.ticks++
	r.mu.Unlock()
}

// Input records an accepted input at the current tick.
func (r *ReplayLog) Input(slot int, raw json.RawMessage) {
	// Keep our own copy; the read-loop buffer is reused.
	dup := make(json.RawMessage, len(raw))
	copy(dup, raw)
	r.mu.Lock()
	r.Events = append(r.Events, ReplayEvent{Tick: r.ticks, Slot: slot, Input: dup})
	r.mu.Unlock()
}

// Export serializes the log for archival.
func (r *ReplayLog) Export() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return json.Marshal(r)
}

// ReplayArchiver uploads finished match logs to R2, falling back to local
// disk when object storage is not configured.
type ReplayArchiver struct{}

func NewReplayArchiver() *ReplayArchiver {
	return &ReplayArchiver{}
}

// Archive stores the match's replay log and returns its URL, or "" when the
// log is empty or storage fails. Archival is best effort; the match record
// is written either way.
func (ra *ReplayArchiver) Archive(m *LiveMatch) string {
	if m.replay == nil || len(m.replay.Events) == 0 {
		return ""
	}
	data, err := m.replay.Export()
	if err != nil {
		log.Printf("❌ [REPLAY] exporting log for match %s: %v", m.Code, err)
		return ""
	}
	key := fmt.Sprintf("replays/%s/%s.json", m.Variant, m.Code)
	if url, err := utils.UploadBytesToR2(key, "application/json", data); err == nil {
		log.Printf("📼 [REPLAY] archived match %s to %s", m.Code, url)
		return url
	} else {
		log.Printf("⚠️ [REPLAY] R2 upload failed for match %s, saving locally: %v", m.Code, err)
	}
	path, err := utils.SaveLocalFile(key, data)
	if err != nil {
		log.Printf("❌ [REPLAY] local save failed for match %s: %v", m.Code, err)
		return ""
	}
	return path
}
