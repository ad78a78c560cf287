package matching

import (
	"context"
	"time"
)

// SafetyLimits cap swipe throughput per user over a sliding window.
type SafetyLimits struct {
	MaxSwipes int
	Window    time.Duration
}

// DefaultSafetyLimits allows a generous human pace while stopping scripts.
func DefaultSafetyLimits() SafetyLimits {
	return SafetyLimits{MaxSwipes: 500, Window: time.Hour}
}

// SafetyService guards the swipe path against abuse. Checks run before the
// ledger write so throttled swipes never reach storage.
type SafetyService struct {
	repo   Repository
	limits SafetyLimits
}

func NewSafetyService(repo Repository, limits SafetyLimits) *SafetyService {
	return &SafetyService{repo: repo, limits: limits}
}

// CheckSwipeAllowed returns ErrSwipeRateLimited once a user exceeds the
// window cap.
func (s *SafetyService) CheckSwipeAllowed(ctx context.Context, userID int64) error {
	if s.limits.MaxSwipes <= 0 {
		return nil
	}

	count, err := s.repo.CountRecentSwipes(ctx, userID, s.limits.Window)
	if err != nil {
		return err
	}
	if count >= s.limits.MaxSwipes {
		RecordSwipeThrottled()
		return ErrSwipeRateLimited
	}

	return nil
}
