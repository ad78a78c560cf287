package matching

import (
	"math"
	"sort"
)

// ScoreWeights control how sub-scores combine into the overall score. They
// are passed in per call (by the variant router or as defaults), never held
// in package state.
type ScoreWeights struct {
	Interest    float64 `json:"interest"`
	Demographic float64 `json:"demographic"`
	Location    float64 `json:"location"`
	Behavioral  float64 `json:"behavioral"`
}

// DefaultWeights returns the production weight set.
func DefaultWeights() ScoreWeights {
	return ScoreWeights{
		Interest:    0.4,
		Demographic: 0.3,
		Location:    0.2,
		Behavioral:  0.1,
	}
}

// Sum returns the total of all weights. A valid set sums to 1.0.
func (w ScoreWeights) Sum() float64 {
	return w.Interest + w.Demographic + w.Location + w.Behavioral
}

// Valid reports whether the weights form a convex combination.
func (w ScoreWeights) Valid() bool {
	return math.Abs(w.Sum()-1.0) < 1e-6 &&
		w.Interest >= 0 && w.Demographic >= 0 && w.Location >= 0 && w.Behavioral >= 0
}

const neutralScore = 0.5

// Scorer computes compatibility between two profiles. It is deterministic,
// has no side effects and never fails: missing data degrades to the neutral
// sub-score, not to an error.
//
// The demographic sub-score is asymmetric: it applies the viewer's stated
// preferences to the candidate, so Score(a, b) and Score(b, a) can differ.
// Callers comparing the two directions must not assume symmetry.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes the full breakdown for a candidate as seen by a viewer.
func (s *Scorer) Score(viewer, candidate *UserProfile, weights ScoreWeights) *CompatibilityBreakdown {
	b := &CompatibilityBreakdown{
		InterestScore:    s.interestScore(viewer.Interests, candidate.Interests),
		DemographicScore: s.demographicScore(viewer, candidate),
		LocationScore:    s.locationScore(viewer, candidate),
		BehavioralScore:  neutralScore, // reserved slot, see behavioralScore
		CommonInterests:  commonInterests(viewer.Interests, candidate.Interests),
	}

	b.OverallScore = b.InterestScore*weights.Interest +
		b.DemographicScore*weights.Demographic +
		b.LocationScore*weights.Location +
		b.BehavioralScore*weights.Behavioral

	return b
}

// interestScore is the Jaccard similarity of the two interest sets. An empty
// union is neutral: absence of data is not evidence of incompatibility.
func (s *Scorer) interestScore(a, b []string) float64 {
	set := make(map[string]bool, len(a))
	for _, interest := range a {
		set[interest] = true
	}

	matches := 0
	seen := make(map[string]bool, len(b))
	for _, interest := range b {
		if seen[interest] {
			continue
		}
		seen[interest] = true
		if set[interest] {
			matches++
		}
	}

	union := len(set) + len(seen) - matches
	if union == 0 {
		return neutralScore
	}

	return float64(matches) / float64(union)
}

// demographicScore applies the viewer's stated filters to the candidate:
// half a point for the age range, half for the gender preference. An
// unset filter matches everything, same as missing coordinates in the
// location score: absence of a stated preference is not a mismatch.
func (s *Scorer) demographicScore(viewer, candidate *UserProfile) float64 {
	prefs := viewer.Demographic

	score := 0.0
	ageUnset := prefs.AgeMin == 0 && prefs.AgeMax == 0
	if ageUnset || (prefs.AgeMin <= candidate.Age && candidate.Age <= prefs.AgeMax) {
		score += 0.5
	}
	if prefs.GenderPreference == "" || prefs.GenderPreference == GenderPreferenceAny ||
		prefs.GenderPreference == candidate.Gender {
		score += 0.5
	}

	return math.Min(1.0, score)
}

// locationScore decays linearly with great-circle distance, hitting zero at
// the viewer's search radius. Missing coordinates on either side is neutral.
func (s *Scorer) locationScore(viewer, candidate *UserProfile) float64 {
	if !viewer.HasLocation() || !candidate.HasLocation() {
		return neutralScore
	}

	distance := haversineKm(*viewer.Latitude, *viewer.Longitude, *candidate.Latitude, *candidate.Longitude)
	return math.Max(0, 1-distance/viewer.SearchRadiusKm())
}

// behavioralScore is a fixed neutral placeholder: the slot exists in the
// weighted aggregate so weights can shift toward it once a behavioral
// similarity function is defined, but no behavior is invented here.

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371 // km

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// commonInterests returns the sorted intersection, for display.
func commonInterests(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, interest := range a {
		set[interest] = true
	}

	common := []string{}
	added := make(map[string]bool)
	for _, interest := range b {
		if set[interest] && !added[interest] {
			common = append(common, interest)
			added[interest] = true
		}
	}

	sort.Strings(common)
	return common
}
