package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// RecommendationOptions tune the generator.
type RecommendationOptions struct {
	DefaultLimit int // entries returned when the caller doesn't ask for more
	PoolLimit    int // candidates pulled from storage before scoring
	ScoreWorkers int // concurrent scoring goroutines
}

// DefaultRecommendationOptions matches production defaults.
func DefaultRecommendationOptions() RecommendationOptions {
	return RecommendationOptions{
		DefaultLimit: 10,
		PoolLimit:    200,
		ScoreWorkers: 8,
	}
}

// RecommendationGenerator produces a ranked, deduplicated candidate list
// for a viewer. Read-only: scoring candidates has no cross-candidate
// dependency, so the pool is scored concurrently.
type RecommendationGenerator struct {
	repo   Repository
	scorer *Scorer
	router *VariantRouter
	opts   RecommendationOptions
}

func NewRecommendationGenerator(repo Repository, scorer *Scorer, router *VariantRouter, opts RecommendationOptions) *RecommendationGenerator {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.PoolLimit <= 0 {
		opts.PoolLimit = 200
	}
	if opts.ScoreWorkers <= 0 {
		opts.ScoreWorkers = 1
	}

	return &RecommendationGenerator{
		repo:   repo,
		scorer: scorer,
		router: router,
		opts:   opts,
	}
}

// Recommend returns the top candidates for a viewer, ordered by overall
// score descending with candidate id ascending as the tiebreak, so a fixed
// pool always yields the same ordering. A viewer without a profile gets an
// empty list, not an error: deleted or not-yet-onboarded users simply have
// nothing to see.
func (g *RecommendationGenerator) Recommend(ctx context.Context, userID int64, params *RecommendationParams) ([]*Recommendation, error) {
	started := time.Now()
	defer func() { RecordRecommendationDuration(time.Since(started)) }()

	viewer, err := g.repo.GetUserProfile(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return []*Recommendation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load viewer profile: %w", err)
	}

	excluded, err := g.exclusionSet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build exclusion set: %w", err)
	}

	pool, err := g.repo.ListCandidatePool(ctx, excluded, g.opts.PoolLimit)
	if err != nil {
		return nil, fmt.Errorf("load candidate pool: %w", err)
	}

	weights := DefaultWeights()
	if g.router != nil {
		weights = g.router.WeightsFor(userID)
	}

	scored := g.scorePool(viewer, pool, weights)

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].OverallScore != scored[j].OverallScore {
			return scored[i].OverallScore > scored[j].OverallScore
		}
		return scored[i].CandidateID < scored[j].CandidateID
	})

	limit := g.opts.DefaultLimit
	if params != nil && params.Limit > 0 {
		limit = params.Limit
	}
	if limit > len(scored) {
		limit = len(scored)
	}
	scored = scored[:limit]

	if params == nil || !params.IncludeBreakdown {
		for _, rec := range scored {
			rec.Breakdown = nil
		}
	}

	return scored, nil
}

// exclusionSet is the viewer plus every target they have already swiped.
func (g *RecommendationGenerator) exclusionSet(ctx context.Context, userID int64) ([]int64, error) {
	swipes, err := g.repo.ListSwipesFrom(ctx, userID)
	if err != nil {
		return nil, err
	}

	excluded := make([]int64, 0, len(swipes)+1)
	excluded = append(excluded, userID)
	seen := map[int64]bool{userID: true}
	for _, swipe := range swipes {
		if !seen[swipe.ToUserID] {
			excluded = append(excluded, swipe.ToUserID)
			seen[swipe.ToUserID] = true
		}
	}

	return excluded, nil
}

// scorePool fans candidates out over a bounded worker pool. Slot i of the
// result always belongs to candidate i, so no locking is needed.
func (g *RecommendationGenerator) scorePool(viewer *UserProfile, pool []*UserProfile, weights ScoreWeights) []*Recommendation {
	results := make([]*Recommendation, len(pool))

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := g.opts.ScoreWorkers
	if workers > len(pool) {
		workers = len(pool)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				candidate := pool[i]
				breakdown := g.scorer.Score(viewer, candidate, weights)
				results[i] = &Recommendation{
					CandidateID:     candidate.ID,
					DisplayName:     candidate.DisplayName,
					OverallScore:    breakdown.OverallScore,
					CommonInterests: breakdown.CommonInterests,
					Breakdown:       breakdown,
				}
			}
		}()
	}

	for i := range pool {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
