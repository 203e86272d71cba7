package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// NewRouter wires both gates behind the shared middleware stack. instrument
// wraps every route when non-nil.
func NewRouter(health *HealthHandler, accounts *AccountHandler, instrument func(http.Handler) http.Handler) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(StandardHeaders)
	if instrument != nil {
		router.Use(instrument)
	}

	router.NotFound(handleNotFound)
	router.MethodNotAllowed(handleMethodNotAllowed)

	health.RegisterRoutes(router)
	accounts.RegisterRoutes(router)

	return router
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	log.Error().Str("method", r.Method).Str("path", r.URL.Path).Msg("Endpoint not found")
	respondWithStatus(w, http.StatusNotFound)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	log.Warn().Str("method", r.Method).Str("path", r.URL.Path).Msg("API method not allowed")
	respondWithStatus(w, http.StatusMethodNotAllowed)
}
