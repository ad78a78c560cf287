package matching

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository is the engine's storage boundary: a read-only candidate view,
// an append-only swipe ledger and the match ledger, plus the learner's
// write paths.
type Repository interface {
	// Candidate store
	GetUserProfile(ctx context.Context, userID int64) (*UserProfile, error)
	ListCandidatePool(ctx context.Context, excluding []int64, limit int) ([]*UserProfile, error)
	ListActiveUserIDs(ctx context.Context, activeWithin time.Duration) ([]int64, error)

	// Swipe ledger
	SaveSwipe(ctx context.Context, event *SwipeEvent) error
	FindSwipe(ctx context.Context, fromID, toID int64) (*SwipeEvent, error)
	ListSwipesFrom(ctx context.Context, userID int64) ([]*SwipeEvent, error)
	ListLikedProfiles(ctx context.Context, userID int64) ([]*UserProfile, error)
	CountRecentSwipes(ctx context.Context, userID int64, window time.Duration) (int, error)

	// Match ledger
	CreateMatchIfAbsent(ctx context.Context, userA, userB int64) (*Match, bool, error)
	GetMatchesFor(ctx context.Context, userID int64) ([]*MatchSummary, error)

	// Learner writes
	ApplyBehavioralDelta(ctx context.Context, userID int64, delta BehavioralDelta) error
	SaveImplicitPreferences(ctx context.Context, userID int64, prefs ImplicitPreferences) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const profileColumns = `
	id, display_name, age, gender, interests,
	latitude, longitude, max_distance_km, last_active,
	pref_age_min, pref_age_max, pref_gender,
	avg_swipe_time_ms, swipe_count, like_count, dislike_count,
	active_hours, last_view_duration_ms, implicit_preferences
`

func (r *postgresRepository) scanProfile(row sqlx.ColScanner) (*UserProfile, error) {
	var p UserProfile
	var implicitRaw []byte

	err := row.Scan(
		&p.ID, &p.DisplayName, &p.Age, &p.Gender, &p.Interests,
		&p.Latitude, &p.Longitude, &p.MaxDistanceKm, &p.LastActive,
		&p.Demographic.AgeMin, &p.Demographic.AgeMax, &p.Demographic.GenderPreference,
		&p.Behavioral.AvgSwipeTimeMs, &p.Behavioral.SwipeCount,
		&p.Behavioral.LikeCount, &p.Behavioral.DislikeCount,
		&p.Behavioral.ActiveHours, &p.Behavioral.LastViewDurationMs,
		&implicitRaw,
	)
	if err != nil {
		return nil, err
	}

	if len(implicitRaw) > 0 {
		if err := json.Unmarshal(implicitRaw, &p.Implicit); err != nil {
			return nil, fmt.Errorf("decode implicit preferences for user %d: %w", p.ID, err)
		}
	}
	if len(p.Behavioral.ActiveHours) == 0 {
		p.Behavioral.ActiveHours = make(pq.Int64Array, 24)
	}

	return &p, nil
}

func (r *postgresRepository) GetUserProfile(ctx context.Context, userID int64) (*UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id = $1`

	row := r.db.QueryRowxContext(ctx, query, userID)
	profile, err := r.scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	return profile, err
}

func (r *postgresRepository) ListCandidatePool(ctx context.Context, excluding []int64, limit int) ([]*UserProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM user_profiles
		WHERE NOT (id = ANY($1))
		ORDER BY last_active DESC
		LIMIT $2
	`

	rows, err := r.db.QueryxContext(ctx, query, pq.Array(excluding), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pool []*UserProfile
	for rows.Next() {
		profile, err := r.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		pool = append(pool, profile)
	}

	return pool, rows.Err()
}

func (r *postgresRepository) ListActiveUserIDs(ctx context.Context, activeWithin time.Duration) ([]int64, error) {
	var ids []int64
	query := `SELECT id FROM user_profiles WHERE last_active > NOW() - $1::interval ORDER BY id`

	interval := fmt.Sprintf("%d seconds", int(activeWithin.Seconds()))
	err := r.db.SelectContext(ctx, &ids, query, interval)
	return ids, err
}

// SaveSwipe appends a ledger entry. The unique index on (from, to) makes the
// write idempotent: a duplicate reports ErrDuplicateSwipe and leaves the
// original event untouched.
func (r *postgresRepository) SaveSwipe(ctx context.Context, event *SwipeEvent) error {
	query := `
		INSERT INTO swipes (
			from_user_id, to_user_id, direction,
			swipe_time_ms, view_duration_ms, viewed_sections
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (from_user_id, to_user_id) DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(
		ctx, query,
		event.FromUserID, event.ToUserID, event.Direction,
		event.SwipeTimeMs, event.ViewDurationMs, event.ViewedSections,
	).Scan(&event.ID, &event.CreatedAt)

	if err == sql.ErrNoRows {
		return ErrDuplicateSwipe
	}

	return err
}

func (r *postgresRepository) FindSwipe(ctx context.Context, fromID, toID int64) (*SwipeEvent, error) {
	var event SwipeEvent
	query := `
		SELECT id, from_user_id, to_user_id, direction, created_at,
		       swipe_time_ms, view_duration_ms, viewed_sections
		FROM swipes
		WHERE from_user_id = $1 AND to_user_id = $2
	`

	err := r.db.GetContext(ctx, &event, query, fromID, toID)
	if err == sql.ErrNoRows {
		return nil, ErrSwipeNotFound
	}

	return &event, err
}

func (r *postgresRepository) ListSwipesFrom(ctx context.Context, userID int64) ([]*SwipeEvent, error) {
	var events []*SwipeEvent
	query := `
		SELECT id, from_user_id, to_user_id, direction, created_at,
		       swipe_time_ms, view_duration_ms, viewed_sections
		FROM swipes
		WHERE from_user_id = $1
		ORDER BY created_at
	`

	err := r.db.SelectContext(ctx, &events, query, userID)
	return events, err
}

func (r *postgresRepository) ListLikedProfiles(ctx context.Context, userID int64) ([]*UserProfile, error) {
	query := `
		SELECT p.id, p.display_name, p.age, p.gender, p.interests,
		       p.latitude, p.longitude, p.max_distance_km, p.last_active,
		       p.pref_age_min, p.pref_age_max, p.pref_gender,
		       p.avg_swipe_time_ms, p.swipe_count, p.like_count, p.dislike_count,
		       p.active_hours, p.last_view_duration_ms, p.implicit_preferences
		FROM swipes s
		JOIN user_profiles p ON p.id = s.to_user_id
		WHERE s.from_user_id = $1 AND s.direction = 'like'
		ORDER BY s.created_at
	`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var liked []*UserProfile
	for rows.Next() {
		profile, err := r.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		liked = append(liked, profile)
	}

	return liked, rows.Err()
}

func (r *postgresRepository) CountRecentSwipes(ctx context.Context, userID int64, window time.Duration) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM swipes WHERE from_user_id = $1 AND created_at > NOW() - $2::interval`

	interval := fmt.Sprintf("%d seconds", int(window.Seconds()))
	err := r.db.GetContext(ctx, &count, query, userID, interval)
	return count, err
}

// CreateMatchIfAbsent creates the pair's match exactly once. The pair is
// stored in canonical order (low id first) under a unique constraint, so
// concurrent racers on the same pair collapse onto a single row: the loser's
// insert affects nothing and the existing row is returned with created=false.
func (r *postgresRepository) CreateMatchIfAbsent(ctx context.Context, userA, userB int64) (*Match, bool, error) {
	if userA > userB {
		userA, userB = userB, userA
	}

	match := &Match{User1ID: userA, User2ID: userB, IsActive: true}

	insert := `
		INSERT INTO matches (user1_id, user2_id, is_active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (user1_id, user2_id) DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, insert, userA, userB).Scan(&match.ID, &match.CreatedAt)
	if err == nil {
		return match, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	// Lost the race (or the match predates this call): fetch the winner's row.
	query := `
		SELECT id, user1_id, user2_id, is_active, created_at, closed_by, closed_at
		FROM matches
		WHERE user1_id = $1 AND user2_id = $2
	`

	var existing Match
	if err := r.db.GetContext(ctx, &existing, query, userA, userB); err != nil {
		return nil, false, err
	}

	return &existing, false, nil
}

func (r *postgresRepository) GetMatchesFor(ctx context.Context, userID int64) ([]*MatchSummary, error) {
	var matches []*MatchSummary
	query := `
		SELECT m.id AS match_id,
		       CASE WHEN m.user1_id = $1 THEN m.user2_id ELSE m.user1_id END AS other_user_id,
		       m.created_at
		FROM matches m
		WHERE (m.user1_id = $1 OR m.user2_id = $1) AND m.is_active = TRUE
		ORDER BY m.created_at DESC
	`

	err := r.db.SelectContext(ctx, &matches, query, userID)
	return matches, err
}

// ApplyBehavioralDelta folds one swipe into the behavioral columns in a
// single statement. Everything increments in place against the row's
// current values, so two concurrent ingests for the same user never lose
// an update to a stale read.
func (r *postgresRepository) ApplyBehavioralDelta(ctx context.Context, userID int64, delta BehavioralDelta) error {
	liked, disliked := 0, 0
	if delta.Liked {
		liked = 1
	}
	if delta.Disliked {
		disliked = 1
	}

	// Postgres arrays are 1-based, hence Hour+1.
	query := `
		UPDATE user_profiles
		SET avg_swipe_time_ms = CASE WHEN $2::bigint > 0
		        THEN (avg_swipe_time_ms * swipe_count + $2) / (swipe_count + 1)
		        ELSE avg_swipe_time_ms END,
		    swipe_count = swipe_count + 1,
		    like_count = like_count + $3,
		    dislike_count = dislike_count + $4,
		    active_hours[$5] = active_hours[$5] + 1,
		    last_view_duration_ms = CASE WHEN $6::bigint > 0
		        THEN $6 ELSE last_view_duration_ms END
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx, query,
		userID, delta.SwipeTimeMs, liked, disliked, delta.Hour+1, delta.ViewDurationMs,
	)
	if err != nil {
		return err
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *postgresRepository) SaveImplicitPreferences(ctx context.Context, userID int64, prefs ImplicitPreferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode implicit preferences: %w", err)
	}

	query := `UPDATE user_profiles SET implicit_preferences = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, userID, raw)
	if err != nil {
		return err
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrUserNotFound
	}

	return nil
}
