package matching

import (
	"context"
	"sync"
	"time"
)

// fakeRepository is an in-memory Repository with the same idempotency
// semantics as the Postgres implementation: one swipe per ordered pair,
// one match per canonical pair.
type fakeRepository struct {
	mu sync.Mutex

	profiles map[int64]*UserProfile
	swipes   map[[2]int64]*SwipeEvent
	matches  map[[2]int64]*Match

	nextSwipeID int64
	nextMatchID int64

	behavioral map[int64]BehavioralProfile
	implicit   map[int64]ImplicitPreferences

	swipeErr      error
	behavioralErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		profiles:   make(map[int64]*UserProfile),
		swipes:     make(map[[2]int64]*SwipeEvent),
		matches:    make(map[[2]int64]*Match),
		behavioral: make(map[int64]BehavioralProfile),
		implicit:   make(map[int64]ImplicitPreferences),
	}
}

func (f *fakeRepository) addProfile(p *UserProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Behavioral.ActiveHours == nil {
		p.Behavioral = NewBehavioralProfile()
	}
	f.profiles[p.ID] = p
}

func (f *fakeRepository) GetUserProfile(ctx context.Context, userID int64) (*UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.profiles[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *p
	if b, ok := f.behavioral[userID]; ok {
		copied.Behavioral = b
	}
	if prefs, ok := f.implicit[userID]; ok {
		copied.Implicit = prefs
	}
	return &copied, nil
}

func (f *fakeRepository) ListCandidatePool(ctx context.Context, excluding []int64, limit int) ([]*UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	skip := make(map[int64]bool, len(excluding))
	for _, id := range excluding {
		skip[id] = true
	}

	var pool []*UserProfile
	for id, p := range f.profiles {
		if skip[id] || len(pool) >= limit {
			continue
		}
		copied := *p
		pool = append(pool, &copied)
	}
	return pool, nil
}

func (f *fakeRepository) ListActiveUserIDs(ctx context.Context, activeWithin time.Duration) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []int64
	for id := range f.profiles {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeRepository) SaveSwipe(ctx context.Context, event *SwipeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.swipeErr != nil {
		return f.swipeErr
	}

	key := [2]int64{event.FromUserID, event.ToUserID}
	if _, ok := f.swipes[key]; ok {
		return ErrDuplicateSwipe
	}

	f.nextSwipeID++
	event.ID = f.nextSwipeID
	event.CreatedAt = time.Now()
	copied := *event
	f.swipes[key] = &copied
	return nil
}

func (f *fakeRepository) FindSwipe(ctx context.Context, fromID, toID int64) (*SwipeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	event, ok := f.swipes[[2]int64{fromID, toID}]
	if !ok {
		return nil, ErrSwipeNotFound
	}
	copied := *event
	return &copied, nil
}

func (f *fakeRepository) ListSwipesFrom(ctx context.Context, userID int64) ([]*SwipeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var events []*SwipeEvent
	for key, event := range f.swipes {
		if key[0] == userID {
			copied := *event
			events = append(events, &copied)
		}
	}
	return events, nil
}

func (f *fakeRepository) ListLikedProfiles(ctx context.Context, userID int64) ([]*UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var liked []*UserProfile
	for key, event := range f.swipes {
		if key[0] != userID || event.Direction != DirectionLike {
			continue
		}
		if p, ok := f.profiles[event.ToUserID]; ok {
			copied := *p
			liked = append(liked, &copied)
		}
	}
	return liked, nil
}

func (f *fakeRepository) CountRecentSwipes(ctx context.Context, userID int64, window time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for key := range f.swipes {
		if key[0] == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepository) CreateMatchIfAbsent(ctx context.Context, userA, userB int64) (*Match, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if userA > userB {
		userA, userB = userB, userA
	}

	key := [2]int64{userA, userB}
	if existing, ok := f.matches[key]; ok {
		copied := *existing
		return &copied, false, nil
	}

	f.nextMatchID++
	match := &Match{
		ID:        f.nextMatchID,
		User1ID:   userA,
		User2ID:   userB,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	f.matches[key] = match
	copied := *match
	return &copied, true, nil
}

func (f *fakeRepository) GetMatchesFor(ctx context.Context, userID int64) ([]*MatchSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var summaries []*MatchSummary
	for _, match := range f.matches {
		if match.User1ID != userID && match.User2ID != userID {
			continue
		}
		other := match.User1ID
		if other == userID {
			other = match.User2ID
		}
		summaries = append(summaries, &MatchSummary{
			MatchID:     match.ID,
			OtherUserID: other,
			CreatedAt:   match.CreatedAt,
		})
	}
	return summaries, nil
}

func (f *fakeRepository) ApplyBehavioralDelta(ctx context.Context, userID int64, delta BehavioralDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.behavioralErr != nil {
		return f.behavioralErr
	}
	if _, ok := f.profiles[userID]; !ok {
		return ErrUserNotFound
	}

	b, ok := f.behavioral[userID]
	if !ok || len(b.ActiveHours) != 24 {
		b = NewBehavioralProfile()
	}

	if delta.SwipeTimeMs > 0 {
		b.AvgSwipeTimeMs = (b.AvgSwipeTimeMs*float64(b.SwipeCount) + float64(delta.SwipeTimeMs)) / float64(b.SwipeCount+1)
	}
	if delta.ViewDurationMs > 0 {
		b.LastViewDurationMs = delta.ViewDurationMs
	}

	b.SwipeCount++
	if delta.Liked {
		b.LikeCount++
	}
	if delta.Disliked {
		b.DislikeCount++
	}
	b.ActiveHours[delta.Hour]++

	f.behavioral[userID] = b
	return nil
}

func (f *fakeRepository) SaveImplicitPreferences(ctx context.Context, userID int64, prefs ImplicitPreferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.profiles[userID]; !ok {
		return ErrUserNotFound
	}
	f.implicit[userID] = prefs
	return nil
}

func (f *fakeRepository) matchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.matches)
}

func ptrFloat(v float64) *float64 { return &v }

func testProfile(id int64, age int, gender string, interests ...string) *UserProfile {
	return &UserProfile{
		ID:          id,
		DisplayName: "user",
		Age:         age,
		Gender:      gender,
		Interests:   interests,
		Demographic: DemographicPreferences{
			AgeMin:           18,
			AgeMax:           99,
			GenderPreference: GenderPreferenceAny,
		},
		Behavioral: NewBehavioralProfile(),
	}
}
