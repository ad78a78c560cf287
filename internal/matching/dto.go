package matching

// DTOs for API requests/responses

type RecordSwipeDTO struct {
	ToUserID  int64          `json:"to_user_id" validate:"required"`
	Direction string         `json:"direction" validate:"required,oneof=like dislike"`
	Metadata  *SwipeMetadata `json:"metadata,omitempty"`
}

type RecommendationParams struct {
	Limit            int  `json:"limit"`
	IncludeBreakdown bool `json:"include_breakdown"`
}

type VariantDTO struct {
	VariantID string       `json:"variant_id"`
	Weights   ScoreWeights `json:"weights"`
}
