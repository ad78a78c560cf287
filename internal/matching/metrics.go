package matching

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	swipesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_swipes_total",
			Help: "Total number of swipes recorded",
		},
		[]string{"direction"},
	)

	swipesThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_swipes_throttled_total",
			Help: "Swipes rejected by the rate limiter",
		},
	)

	matchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_matches_total",
			Help: "Total number of matches created",
		},
	)

	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_compatibility_scores",
			Help:    "Distribution of overall compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	recommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_recommendation_duration_seconds",
			Help:    "Time spent generating a recommendation list",
			Buckets: prometheus.DefBuckets,
		},
	)

	learnerRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_implicit_refreshes_total",
			Help: "Completed implicit preference recomputations",
		},
	)

	taskFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_background_task_failures_total",
			Help: "Background tasks that failed and were dropped",
		},
		[]string{"task"},
	)

	tasksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_background_tasks_dropped_total",
			Help: "Background tasks dropped because the queue was full",
		},
		[]string{"task"},
	)
)

func RecordSwipeDirection(direction string) {
	swipesTotal.WithLabelValues(direction).Inc()
}

func RecordSwipeThrottled() {
	swipesThrottled.Inc()
}

func RecordMatch() {
	matchesTotal.Inc()
}

func RecordCompatibilityScore(score float64) {
	compatibilityScores.Observe(score)
}

func RecordRecommendationDuration(d time.Duration) {
	recommendationDuration.Observe(d.Seconds())
}

func RecordLearnerRefresh() {
	learnerRefreshes.Inc()
}

func RecordTaskFailure(task string) {
	taskFailures.WithLabelValues(task).Inc()
}

func RecordTaskDropped(task string) {
	tasksDropped.WithLabelValues(task).Inc()
}
