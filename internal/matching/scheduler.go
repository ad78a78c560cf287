package matching

import (
	"context"
	"log"
	"time"
)

// activeUserWindow bounds the nightly sweep to users seen recently.
const activeUserWindow = 30 * 24 * time.Hour

// Scheduler runs the engine's periodic jobs: the nightly implicit
// preference sweep that complements the probabilistic per-swipe trigger.
type Scheduler struct {
	service     Service
	refreshHour int
}

func NewScheduler(service Service, refreshHour int) *Scheduler {
	if refreshHour < 0 || refreshHour > 23 {
		refreshHour = 3
	}
	return &Scheduler{service: service, refreshHour: refreshHour}
}

// Start launches the jobs; they stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	// Implicit preference sweep runs off peak.
	go s.runDaily(ctx, s.refreshHour, 0, s.service.RefreshImplicitPreferences)
}

func (s *Scheduler) runDaily(ctx context.Context, hour, minute int, task func(context.Context) error) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if now.After(next) {
			next = next.Add(24 * time.Hour)
		}

		timer := time.NewTimer(next.Sub(now))

		select {
		case <-timer.C:
			if err := task(ctx); err != nil {
				log.Printf("scheduled task failed: %v", err)
			}
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
