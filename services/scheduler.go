// services/scheduler.go
package services

import (
	"log"
	"time"

	"game-match-system/models"

	"github.com/go-co-op/gocron/v2"
)

const (
	// FormingExpiry bounds how long an unfilled match may wait for an
	// opponent before the janitor cancels it.
	FormingExpiry = 10 * time.Minute

	// StaleMatchRetention bounds how long a forming or finished match may
	// sit idle before the janitor reaps it. Active and paused matches end
	// through their own grace and auto-resume timers.
	StaleMatchRetention = 24 * time.Hour
)

// StartJanitor runs the background sweeps that keep the registry bounded:
// finished matches past their grace window, forming matches nobody joined,
// and matches with no activity at all.
func (ls *LoopService) StartJanitor() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every 10 seconds: drop finished matches past the grace window.
	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Second),
		gocron.NewTask(func() {
			now := time.Now()
			for _, m := range ls.Registry.Snapshot() {
				m.Lock()
				expired := m.Status == StatusFinished &&
					!m.FinishedAt.IsZero() && now.Sub(m.FinishedAt) > FinishedGrace
				code := m.Code
				m.Unlock()
				if expired {
					ls.Registry.Delete(code)
					ls.Broadcast.DropMatch(code)
					log.Printf("🧹 [JANITOR] dropped finished match %s", code)
				}
			}
		}),
	)

	// Every minute: expire forming matches nobody joined, refunding any
	// pending stake, and reap matches idle past retention.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			now := time.Now()
			for _, m := range ls.Registry.Snapshot() {
				m.Lock()
				// Active and paused matches are reaped through their own
				// disconnect and auto-resume timers, never from here; their
				// loop goroutine must see the finish.
				var reason string
				if m.Status == StatusForming && now.Sub(m.CreatedAt) > FormingExpiry {
					reason = "no opponent joined"
				} else if (m.Status == StatusForming || m.Status == StatusFinished) &&
					now.Sub(m.LastActivity) > StaleMatchRetention {
					reason = "idle past retention"
				}
				if reason == "" {
					m.Unlock()
					continue
				}
				code := m.Code
				stake := m.Stake
				amount := m.StakeAmount
				wallet := ""
				if m.Slots[0] != nil {
					wallet = m.Slots[0].Wallet
				}
				m.Unlock()

				if stake == StakePending && wallet != "" {
					row := models.StakeSettlement{MatchID: code, Kind: "refund", Wallet: wallet, Amount: amount}
					if err := ls.DB.Create(&row).Error; err != nil {
						log.Printf("❌ [JANITOR] staging refund for expired %s: %v", code, err)
					}
				}
				ls.Broadcast.Event(code, EvMatchCancelled, map[string]string{"code": code})
				ls.Registry.Delete(code)
				ls.Broadcast.DropMatch(code)
				log.Printf("🧹 [JANITOR] expired match %s (%s)", code, reason)
			}
		}),
	)
}
