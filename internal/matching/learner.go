package matching

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// MinLikesForImplicitPrefs is the signal floor: below it a recomputation of
// implicit preferences is a no-op.
const MinLikesForImplicitPrefs = 5

// ImplicitConfidenceWeight is written with every recomputed preference set.
const ImplicitConfidenceWeight = 0.7

// TriggerPolicy decides, per like-swipe, whether the expensive implicit
// preference recomputation should run. It replaces inline random sampling
// at the call site so the policy is testable and swappable.
type TriggerPolicy interface {
	ShouldTrigger() bool
}

// ProbabilisticTrigger fires at a fixed rate per call.
type ProbabilisticTrigger struct {
	rate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewProbabilisticTrigger builds a trigger firing at the given rate. A nil
// source seeds from the clock; tests inject a fixed seed.
func NewProbabilisticTrigger(rate float64, src rand.Source) *ProbabilisticTrigger {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &ProbabilisticTrigger{rate: rate, rng: rand.New(src)}
}

func (t *ProbabilisticTrigger) ShouldTrigger() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rng.Float64() < t.rate
}

// NeverTrigger disables per-swipe recomputation; the scheduled sweep still
// refreshes preferences.
type NeverTrigger struct{}

func (NeverTrigger) ShouldTrigger() bool { return false }

// Learner derives behavioral and implicit preference updates from swipe
// activity. Both paths are best-effort: they run off the request path and
// their failures are logged by the task queue, never surfaced to swipers.
type Learner struct {
	repo Repository
	now  func() time.Time
}

func NewLearner(repo Repository) *Learner {
	return &Learner{repo: repo, now: time.Now}
}

// Ingest folds one swipe's metadata into the user's behavioral profile:
// running-average swipe time, like/dislike counters and the hour-of-day
// histogram bucket. The delta is applied in-place by the repository, so
// queued ingests for the same user compose in any order.
func (l *Learner) Ingest(ctx context.Context, userID, targetUserID int64, direction string, meta *SwipeMetadata) error {
	delta := BehavioralDelta{Hour: l.now().Hour()}
	if meta != nil {
		delta.SwipeTimeMs = meta.SwipeTimeMs
		delta.ViewDurationMs = meta.ViewDurationMs
	}

	switch direction {
	case DirectionLike:
		delta.Liked = true
	case DirectionDislike:
		delta.Disliked = true
	}

	return l.repo.ApplyBehavioralDelta(ctx, userID, delta)
}

// UpdateImplicitPreferences recomputes inferred preferences from the user's
// full like history: the liked-age distribution and an interest frequency
// map. With fewer than MinLikesForImplicitPrefs likes there is not enough
// signal and the call is a no-op.
//
// This scans swipe history and is expected to run on the background queue
// or the nightly sweep, concurrently with ongoing ingestion; it reads a
// snapshot and tolerates eventual consistency.
func (l *Learner) UpdateImplicitPreferences(ctx context.Context, userID int64) error {
	liked, err := l.repo.ListLikedProfiles(ctx, userID)
	if err != nil {
		return err
	}
	if len(liked) < MinLikesForImplicitPrefs {
		return nil
	}

	minAge := float64(liked[0].Age)
	maxAge := minAge
	sumAge := 0.0
	weights := make(map[string]int)

	for _, candidate := range liked {
		age := float64(candidate.Age)
		if age < minAge {
			minAge = age
		}
		if age > maxAge {
			maxAge = age
		}
		sumAge += age

		for _, interest := range candidate.Interests {
			weights[interest]++
		}
	}

	prefs := ImplicitPreferences{
		AgeRange: ImplicitAgeRange{
			Min:              minAge,
			Max:              maxAge,
			Avg:              sumAge / float64(len(liked)),
			ConfidenceWeight: ImplicitConfidenceWeight,
		},
		InterestWeights: weights,
	}

	return l.repo.SaveImplicitPreferences(ctx, userID, prefs)
}
