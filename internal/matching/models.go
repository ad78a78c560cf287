package matching

import (
	"time"

	"github.com/lib/pq"
)

// Swipe directions accepted by the engine.
const (
	DirectionLike    = "like"
	DirectionDislike = "dislike"
)

// GenderPreferenceAny matches every candidate gender.
const GenderPreferenceAny = "any"

// DefaultMaxDistanceKm applies when a profile has no stated search radius.
const DefaultMaxDistanceKm = 100.0

// SwipeEvent is an immutable ledger entry. At most one event exists per
// ordered (from, to) pair; re-swipes never overwrite the original.
type SwipeEvent struct {
	ID         int64     `json:"id" db:"id"`
	FromUserID int64     `json:"from_user_id" db:"from_user_id"`
	ToUserID   int64     `json:"to_user_id" db:"to_user_id"`
	Direction  string    `json:"direction" db:"direction"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	// Optional client-reported metadata, consumed by the learner.
	SwipeTimeMs    *int64         `json:"swipe_time_ms,omitempty" db:"swipe_time_ms"`
	ViewDurationMs *int64         `json:"view_duration_ms,omitempty" db:"view_duration_ms"`
	ViewedSections pq.StringArray `json:"viewed_sections,omitempty" db:"viewed_sections"`
}

// Match confirms two users each swiped like on the other. User1ID is always
// the lower id; the pair's unique constraint hangs off that canonical order.
type Match struct {
	ID        int64      `json:"id" db:"id"`
	User1ID   int64      `json:"user1_id" db:"user1_id"`
	User2ID   int64      `json:"user2_id" db:"user2_id"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ClosedBy  *int64     `json:"closed_by,omitempty" db:"closed_by"`
	ClosedAt  *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}

// MatchSummary is the caller-facing view of a match: the other participant
// rather than the canonical pair.
type MatchSummary struct {
	MatchID     int64     `json:"match_id" db:"match_id"`
	OtherUserID int64     `json:"other_user_id" db:"other_user_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// DemographicPreferences are the viewer's explicitly stated filters.
type DemographicPreferences struct {
	AgeMin           int    `json:"age_min" db:"pref_age_min"`
	AgeMax           int    `json:"age_max" db:"pref_age_max"`
	GenderPreference string `json:"gender_preference" db:"pref_gender"`
}

// BehavioralProfile accumulates per-user swipe behavior. Mutated only by the
// learner; readers tolerate a partially updated snapshot.
type BehavioralProfile struct {
	AvgSwipeTimeMs     float64       `json:"avg_swipe_time_ms" db:"avg_swipe_time_ms"`
	SwipeCount         int64         `json:"swipe_count" db:"swipe_count"`
	LikeCount          int64         `json:"like_count" db:"like_count"`
	DislikeCount       int64         `json:"dislike_count" db:"dislike_count"`
	ActiveHours        pq.Int64Array `json:"active_hours" db:"active_hours"`
	LastViewDurationMs int64         `json:"last_view_duration_ms" db:"last_view_duration_ms"`
}

// NewBehavioralProfile returns a zeroed profile with the 24-bucket
// hour-of-day histogram allocated.
func NewBehavioralProfile() BehavioralProfile {
	return BehavioralProfile{ActiveHours: make(pq.Int64Array, 24)}
}

// BehavioralDelta is one swipe's contribution to a behavioral profile.
// The repository applies it with in-place increments, so concurrent
// ingests for the same user compose instead of overwriting each other.
type BehavioralDelta struct {
	SwipeTimeMs    int64 // 0 when the client reported no timing
	ViewDurationMs int64 // 0 when the client reported no view duration
	Liked          bool
	Disliked       bool
	Hour           int // 0-23, the swipe's wall-clock hour bucket
}

// ImplicitAgeRange is the liked-age distribution inferred from history.
type ImplicitAgeRange struct {
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
	Avg              float64 `json:"avg"`
	ConfidenceWeight float64 `json:"confidence_weight"`
}

// ImplicitPreferences are inferred, never user-entered. InterestWeights maps
// an interest to how many liked candidates carried it.
type ImplicitPreferences struct {
	AgeRange        ImplicitAgeRange `json:"age_range"`
	InterestWeights map[string]int   `json:"interest_weights"`
}

// UserProfile is the engine's read view of a user. Explicit fields are owned
// by external profile flows; behavioral and implicit fields by the learner.
type UserProfile struct {
	ID            int64          `json:"id" db:"id"`
	DisplayName   string         `json:"display_name" db:"display_name"`
	Age           int            `json:"age" db:"age"`
	Gender        string         `json:"gender" db:"gender"`
	Interests     pq.StringArray `json:"interests" db:"interests"`
	Latitude      *float64       `json:"latitude,omitempty" db:"latitude"`
	Longitude     *float64       `json:"longitude,omitempty" db:"longitude"`
	MaxDistanceKm float64        `json:"max_distance_km" db:"max_distance_km"`
	LastActive    time.Time      `json:"last_active" db:"last_active"`

	Demographic DemographicPreferences `json:"demographic_preferences"`
	Behavioral  BehavioralProfile      `json:"behavioral_profile"`
	Implicit    ImplicitPreferences    `json:"implicit_preferences"`
}

// HasLocation reports whether both coordinates are present.
func (p *UserProfile) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// SearchRadiusKm returns the stated radius or the default.
func (p *UserProfile) SearchRadiusKm() float64 {
	if p.MaxDistanceKm > 0 {
		return p.MaxDistanceKm
	}
	return DefaultMaxDistanceKm
}

// CompatibilityBreakdown is computed on demand and never persisted.
type CompatibilityBreakdown struct {
	InterestScore    float64  `json:"interest_score"`
	DemographicScore float64  `json:"demographic_score"`
	LocationScore    float64  `json:"location_score"`
	BehavioralScore  float64  `json:"behavioral_score"`
	OverallScore     float64  `json:"overall_score"`
	CommonInterests  []string `json:"common_interests"`
}

// SwipeMetadata is the optional payload attached to a swipe action.
type SwipeMetadata struct {
	SwipeTimeMs    int64    `json:"swipe_time_ms,omitempty"`
	ViewDurationMs int64    `json:"view_duration_ms,omitempty"`
	ViewedSections []string `json:"viewed_sections,omitempty"`
}

// SwipeResult reports match state after a swipe. MatchID is set iff Matched.
type SwipeResult struct {
	Matched bool   `json:"matched"`
	MatchID *int64 `json:"match_id,omitempty"`
}

// Recommendation is one ranked entry returned to a viewer.
type Recommendation struct {
	CandidateID     int64                   `json:"candidate_id"`
	DisplayName     string                  `json:"display_name"`
	OverallScore    float64                 `json:"overall_score"`
	CommonInterests []string                `json:"common_interests"`
	Breakdown       *CompatibilityBreakdown `json:"breakdown,omitempty"`
}
