package matching

import (
	"github.com/gorilla/mux"

	"github.com/amoro-app/amoro-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, hub *Hub, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/matching").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Swipes
	api.HandleFunc("/swipes", handler.RecordSwipe).Methods("POST")

	// Recommendations
	api.HandleFunc("/recommendations", handler.GetRecommendations).Methods("GET")

	// Compatibility
	api.HandleFunc("/compatibility/{userId}", handler.GetCompatibility).Methods("GET")

	// Matches
	api.HandleFunc("/matches", handler.GetMatches).Methods("GET")

	// Experiments
	api.HandleFunc("/variant", handler.GetVariant).Methods("GET")
	api.HandleFunc("/variant/outcomes", handler.GetVariantOutcomes).Methods("GET")

	// Match event stream
	if hub != nil {
		api.HandleFunc("/ws", hub.ServeWS).Methods("GET")
	}
}
