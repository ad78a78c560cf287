package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterestScoreJaccard(t *testing.T) {
	s := NewScorer()

	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{
			name: "partial overlap",
			a:    []string{"music", "hiking"},
			b:    []string{"music", "travel"},
			want: 1.0 / 3.0,
		},
		{
			name: "identical sets",
			a:    []string{"music", "hiking"},
			b:    []string{"hiking", "music"},
			want: 1.0,
		},
		{
			name: "disjoint sets",
			a:    []string{"music"},
			b:    []string{"travel"},
			want: 0.0,
		},
		{
			name: "both empty is neutral",
			a:    nil,
			b:    nil,
			want: 0.5,
		},
		{
			name: "one empty",
			a:    []string{"music"},
			b:    nil,
			want: 0.0,
		},
		{
			name: "duplicates do not inflate",
			a:    []string{"music", "music", "hiking"},
			b:    []string{"music", "music", "travel"},
			want: 1.0 / 3.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.interestScore(tt.a, tt.b), 1e-9)
		})
	}
}

func TestDemographicScoreIsViewerDirectional(t *testing.T) {
	s := NewScorer()

	viewer := testProfile(1, 30, "female")
	viewer.Demographic = DemographicPreferences{AgeMin: 25, AgeMax: 35, GenderPreference: "male"}

	candidate := testProfile(2, 30, "male")
	candidate.Demographic = DemographicPreferences{AgeMin: 18, AgeMax: 22, GenderPreference: "female"}

	// Candidate fits the viewer's filters fully.
	assert.Equal(t, 1.0, s.demographicScore(viewer, candidate))

	// The viewer does not fit the candidate's age filter; only gender matches.
	assert.Equal(t, 0.5, s.demographicScore(candidate, viewer))
}

func TestDemographicScoreAnyGender(t *testing.T) {
	s := NewScorer()

	viewer := testProfile(1, 30, "female")
	viewer.Demographic = DemographicPreferences{AgeMin: 40, AgeMax: 50, GenderPreference: GenderPreferenceAny}

	candidate := testProfile(2, 30, "nonbinary")

	// Age misses, gender preference "any" always matches.
	assert.Equal(t, 0.5, s.demographicScore(viewer, candidate))
}

func TestDemographicScoreUnsetFiltersMatchEverything(t *testing.T) {
	s := NewScorer()

	// A profile that never stated filters scores like one that accepts
	// everyone, not like one that rejects everyone.
	viewer := testProfile(1, 30, "female")
	viewer.Demographic = DemographicPreferences{}

	candidate := testProfile(2, 45, "nonbinary")
	assert.Equal(t, 1.0, s.demographicScore(viewer, candidate))

	t.Run("unset age range with set gender", func(t *testing.T) {
		viewer.Demographic = DemographicPreferences{GenderPreference: "male"}
		assert.Equal(t, 0.5, s.demographicScore(viewer, candidate))
	})

	t.Run("set age range with unset gender", func(t *testing.T) {
		viewer.Demographic = DemographicPreferences{AgeMin: 18, AgeMax: 30}
		assert.Equal(t, 0.5, s.demographicScore(viewer, candidate))
	})
}

func TestLocationScore(t *testing.T) {
	s := NewScorer()

	viewer := testProfile(1, 30, "female")
	viewer.Latitude = ptrFloat(52.5200)
	viewer.Longitude = ptrFloat(13.4050)
	viewer.MaxDistanceKm = 100

	t.Run("zero distance is perfect", func(t *testing.T) {
		candidate := testProfile(2, 30, "male")
		candidate.Latitude = ptrFloat(52.5200)
		candidate.Longitude = ptrFloat(13.4050)
		assert.InDelta(t, 1.0, s.locationScore(viewer, candidate), 1e-9)
	})

	t.Run("decays with distance", func(t *testing.T) {
		near := testProfile(2, 30, "male")
		near.Latitude = ptrFloat(52.6)
		near.Longitude = ptrFloat(13.5)

		far := testProfile(3, 30, "male")
		far.Latitude = ptrFloat(53.0)
		far.Longitude = ptrFloat(14.0)

		assert.Greater(t, s.locationScore(viewer, near), s.locationScore(viewer, far))
	})

	t.Run("clamped to zero beyond the radius", func(t *testing.T) {
		// Berlin to Munich is ~500 km, well past a 100 km radius.
		candidate := testProfile(2, 30, "male")
		candidate.Latitude = ptrFloat(48.1351)
		candidate.Longitude = ptrFloat(11.5820)
		assert.Equal(t, 0.0, s.locationScore(viewer, candidate))
	})

	t.Run("missing coordinates is neutral", func(t *testing.T) {
		candidate := testProfile(2, 30, "male")
		assert.Equal(t, 0.5, s.locationScore(viewer, candidate))
		assert.Equal(t, 0.5, s.locationScore(candidate, viewer))
	})
}

func TestHaversineKnownDistance(t *testing.T) {
	// Berlin to Hamburg, roughly 255 km.
	d := haversineKm(52.5200, 13.4050, 53.5511, 9.9937)
	assert.InDelta(t, 255, d, 10)
}

func TestScoreOverallIsWeightedSum(t *testing.T) {
	s := NewScorer()

	viewer := testProfile(1, 30, "female", "music", "hiking")
	candidate := testProfile(2, 28, "male", "music", "travel")

	weights := DefaultWeights()
	b := s.Score(viewer, candidate, weights)

	expected := b.InterestScore*weights.Interest +
		b.DemographicScore*weights.Demographic +
		b.LocationScore*weights.Location +
		b.BehavioralScore*weights.Behavioral
	assert.InDelta(t, expected, b.OverallScore, 1e-9)

	// Every sub-score in [0,1] keeps the convex combination in [0,1].
	assert.GreaterOrEqual(t, b.OverallScore, 0.0)
	assert.LessOrEqual(t, b.OverallScore, 1.0)
}

func TestScoreCommonInterestsSorted(t *testing.T) {
	s := NewScorer()

	viewer := testProfile(1, 30, "female", "travel", "music", "hiking")
	candidate := testProfile(2, 28, "male", "music", "travel", "cooking")

	b := s.Score(viewer, candidate, DefaultWeights())
	assert.Equal(t, []string{"music", "travel"}, b.CommonInterests)
}

func TestScoreWeightsValid(t *testing.T) {
	assert.True(t, DefaultWeights().Valid())
	assert.InDelta(t, 1.0, DefaultWeights().Sum(), 1e-9)

	bad := ScoreWeights{Interest: 0.5, Demographic: 0.5, Location: 0.5, Behavioral: 0.5}
	assert.False(t, bad.Valid())

	negative := ScoreWeights{Interest: 1.2, Demographic: -0.2, Location: 0, Behavioral: 0}
	assert.False(t, negative.Valid())
}

func TestScoreDeterministic(t *testing.T) {
	s := NewScorer()

	viewer := testProfile(1, 30, "female", "music", "hiking")
	viewer.Latitude = ptrFloat(52.52)
	viewer.Longitude = ptrFloat(13.405)
	candidate := testProfile(2, 28, "male", "music")
	candidate.Latitude = ptrFloat(52.6)
	candidate.Longitude = ptrFloat(13.5)

	first := s.Score(viewer, candidate, DefaultWeights())
	for i := 0; i < 5; i++ {
		again := s.Score(viewer, candidate, DefaultWeights())
		require.Equal(t, first, again)
	}
}
