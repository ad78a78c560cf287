package matching

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUserNotFound     = errors.New("user profile not found")
	ErrSwipeNotFound    = errors.New("swipe not found")
	ErrSelfSwipe        = errors.New("cannot swipe on yourself")
	ErrInvalidDirection = errors.New("direction must be like or dislike")
	ErrDuplicateSwipe   = errors.New("swipe already recorded for this pair")
	ErrSwipeRateLimited = errors.New("too many swipes, slow down")
)

// Service is the engine boundary consumed by the HTTP layer.
type Service interface {
	RecordSwipe(ctx context.Context, fromUserID int64, dto *RecordSwipeDTO) (*SwipeResult, error)
	GetRecommendations(ctx context.Context, userID int64, params *RecommendationParams) ([]*Recommendation, error)
	GetCompatibility(ctx context.Context, userID, targetUserID int64) (*CompatibilityBreakdown, error)
	GetMatchesFor(ctx context.Context, userID int64) ([]*MatchSummary, error)
	AssignedVariant(userID int64) string
	RefreshImplicitPreferences(ctx context.Context) error
}

// MatchNotifier pushes match events to connected clients. Implementations
// must not block; the engine calls it inline on the swipe path.
type MatchNotifier interface {
	NotifyMatch(match *Match)
}

type service struct {
	repo     Repository
	scorer   *Scorer
	router   *VariantRouter
	learner  *Learner
	queue    *TaskQueue
	trigger  TriggerPolicy
	safety   *SafetyService
	notifier MatchNotifier

	recommend *RecommendationGenerator
}

// NewService wires the engine. notifier may be nil.
func NewService(
	repo Repository,
	router *VariantRouter,
	queue *TaskQueue,
	trigger TriggerPolicy,
	safety *SafetyService,
	notifier MatchNotifier,
	opts RecommendationOptions,
) Service {
	scorer := NewScorer()
	return &service{
		repo:      repo,
		scorer:    scorer,
		router:    router,
		learner:   NewLearner(repo),
		queue:     queue,
		trigger:   trigger,
		safety:    safety,
		notifier:  notifier,
		recommend: NewRecommendationGenerator(repo, scorer, router, opts),
	}
}

// RecordSwipe appends the swipe to the ledger and, on a reciprocal like,
// creates the pair's match exactly once. The whole sequence is linearizable
// per pair through the storage constraints: a duplicate swipe is idempotent
// success and a lost match-creation race resolves to the winner's match id.
func (s *service) RecordSwipe(ctx context.Context, fromUserID int64, dto *RecordSwipeDTO) (*SwipeResult, error) {
	if dto.Direction != DirectionLike && dto.Direction != DirectionDislike {
		return nil, ErrInvalidDirection
	}
	if fromUserID == dto.ToUserID {
		return nil, ErrSelfSwipe
	}

	if s.safety != nil {
		if err := s.safety.CheckSwipeAllowed(ctx, fromUserID); err != nil {
			return nil, err
		}
	}

	// Unknown targets are a caller error, not a ledger entry.
	if _, err := s.repo.GetUserProfile(ctx, dto.ToUserID); err != nil {
		return nil, err
	}

	event := &SwipeEvent{
		FromUserID: fromUserID,
		ToUserID:   dto.ToUserID,
		Direction:  dto.Direction,
	}
	if dto.Metadata != nil {
		if dto.Metadata.SwipeTimeMs > 0 {
			v := dto.Metadata.SwipeTimeMs
			event.SwipeTimeMs = &v
		}
		if dto.Metadata.ViewDurationMs > 0 {
			v := dto.Metadata.ViewDurationMs
			event.ViewDurationMs = &v
		}
		event.ViewedSections = dto.Metadata.ViewedSections
	}

	err := s.repo.SaveSwipe(ctx, event)
	duplicate := errors.Is(err, ErrDuplicateSwipe)
	if err != nil && !duplicate {
		return nil, fmt.Errorf("record swipe: %w", err)
	}

	direction := dto.Direction
	if duplicate {
		// The ledger keeps the first event per pair. Match state follows
		// the stored direction, not the re-request: a re-swipe that flips
		// direction is a no-op everywhere, so a match can only exist where
		// both stored events are likes.
		stored, err := s.repo.FindSwipe(ctx, fromUserID, dto.ToUserID)
		if err != nil {
			return nil, fmt.Errorf("load stored swipe: %w", err)
		}
		direction = stored.Direction
	} else {
		RecordSwipeDirection(dto.Direction)
		s.enqueueLearning(fromUserID, dto)
	}

	if direction != DirectionLike {
		return &SwipeResult{Matched: false}, nil
	}

	return s.resolveMatch(ctx, fromUserID, dto.ToUserID)
}

// resolveMatch checks reciprocity and creates or fetches the pair's match.
func (s *service) resolveMatch(ctx context.Context, fromUserID, toUserID int64) (*SwipeResult, error) {
	reciprocal, err := s.repo.FindSwipe(ctx, toUserID, fromUserID)
	if errors.Is(err, ErrSwipeNotFound) {
		return &SwipeResult{Matched: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check reciprocal swipe: %w", err)
	}
	if reciprocal.Direction != DirectionLike {
		return &SwipeResult{Matched: false}, nil
	}

	match, created, err := s.repo.CreateMatchIfAbsent(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}

	if created {
		RecordMatch()
		if s.notifier != nil {
			s.notifier.NotifyMatch(match)
		}
		if s.router != nil {
			variant := s.router.AssignVariant(fromUserID)
			if err := s.router.RecordOutcome(ctx, variant, match.ID, true); err != nil {
				// Outcome bookkeeping is advisory, never fails a swipe.
				RecordTaskFailure("variant_outcome")
			}
		}
	}

	return &SwipeResult{Matched: true, MatchID: &match.ID}, nil
}

// enqueueLearning hands behavioral work to the background queue. Nothing
// here can fail the swipe: a full queue drops the task.
func (s *service) enqueueLearning(fromUserID int64, dto *RecordSwipeDTO) {
	if s.queue == nil {
		return
	}

	toUserID := dto.ToUserID
	direction := dto.Direction
	meta := dto.Metadata

	if meta != nil {
		s.queue.Submit("behavioral_ingest", func(ctx context.Context) error {
			return s.learner.Ingest(ctx, fromUserID, toUserID, direction, meta)
		})
	}

	if direction == DirectionLike && s.trigger != nil && s.trigger.ShouldTrigger() {
		s.queue.Submit("implicit_prefs_refresh", func(ctx context.Context) error {
			return s.learner.UpdateImplicitPreferences(ctx, fromUserID)
		})
	}
}

func (s *service) GetRecommendations(ctx context.Context, userID int64, params *RecommendationParams) ([]*Recommendation, error) {
	return s.recommend.Recommend(ctx, userID, params)
}

func (s *service) GetCompatibility(ctx context.Context, userID, targetUserID int64) (*CompatibilityBreakdown, error) {
	viewer, err := s.repo.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	target, err := s.repo.GetUserProfile(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	breakdown := s.scorer.Score(viewer, target, s.weightsFor(userID))
	RecordCompatibilityScore(breakdown.OverallScore)
	return breakdown, nil
}

func (s *service) GetMatchesFor(ctx context.Context, userID int64) ([]*MatchSummary, error) {
	return s.repo.GetMatchesFor(ctx, userID)
}

func (s *service) AssignedVariant(userID int64) string {
	if s.router == nil {
		return DefaultVariantID
	}
	return s.router.AssignVariant(userID)
}

func (s *service) weightsFor(userID int64) ScoreWeights {
	if s.router == nil {
		return DefaultWeights()
	}
	return s.router.WeightsFor(userID)
}

// RefreshImplicitPreferences sweeps recently active users and recomputes
// their implicit preferences. Run by the scheduler; per-user failures are
// counted and skipped so one bad profile doesn't stall the sweep.
func (s *service) RefreshImplicitPreferences(ctx context.Context) error {
	ids, err := s.repo.ListActiveUserIDs(ctx, activeUserWindow)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	for _, id := range ids {
		if err := s.learner.UpdateImplicitPreferences(ctx, id); err != nil {
			RecordTaskFailure("implicit_prefs_sweep")
			continue
		}
		RecordLearnerRefresh()
	}

	return nil
}
