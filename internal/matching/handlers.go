package matching

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/amoro-app/amoro-backend/internal/auth"
	"github.com/amoro-app/amoro-backend/internal/common/utils"
)

type Handler struct {
	service Service
	router  *VariantRouter
}

func NewHandler(service Service, router *VariantRouter) *Handler {
	return &Handler{service: service, router: router}
}

func (h *Handler) RecordSwipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var dto RecordSwipeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.RecordSwipe(r.Context(), userID, &dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrSelfSwipe), errors.Is(err, ErrInvalidDirection):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrUserNotFound):
			utils.RespondWithError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrSwipeRateLimited):
			utils.RespondWithError(w, http.StatusTooManyRequests, err.Error())
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to record swipe")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	params := &RecommendationParams{}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			params.Limit = l
		}
	}
	params.IncludeBreakdown = r.URL.Query().Get("breakdown") == "true"

	recs, err := h.service.GetRecommendations(r.Context(), userID, params)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get recommendations")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, recs)
}

func (h *Handler) GetCompatibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	vars := mux.Vars(r)
	targetID, err := strconv.ParseInt(vars["userId"], 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	breakdown, err := h.service.GetCompatibility(r.Context(), userID, targetID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute compatibility")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, breakdown)
}

func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	matches, err := h.service.GetMatchesFor(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get matches")
		return
	}
	if matches == nil {
		matches = []*MatchSummary{}
	}

	utils.RespondWithJSON(w, http.StatusOK, matches)
}

func (h *Handler) GetVariant(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	variantID := h.service.AssignedVariant(userID)

	dto := VariantDTO{VariantID: variantID, Weights: DefaultWeights()}
	if h.router != nil {
		dto.Weights = h.router.WeightsFor(userID)
	}

	utils.RespondWithJSON(w, http.StatusOK, dto)
}

func (h *Handler) GetVariantOutcomes(w http.ResponseWriter, r *http.Request) {
	if h.router == nil {
		utils.RespondWithJSON(w, http.StatusOK, []*VariantOutcome{})
		return
	}

	outcomes, err := h.router.Outcomes(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to read variant outcomes")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, outcomes)
}
