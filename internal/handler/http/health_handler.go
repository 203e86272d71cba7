package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Pinger is the connectivity probe of the backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProbeRecorder receives the outcome of every connectivity probe.
type ProbeRecorder interface {
	ObserveProbe(success bool, d time.Duration)
}

type HealthHandler struct {
	store   Pinger
	timeout time.Duration
	probes  ProbeRecorder
}

// NewHealthHandler builds the health gate. A non-positive timeout leaves the
// probe bounded only by the request context. probes may be nil.
func NewHealthHandler(store Pinger, timeout time.Duration, probes ProbeRecorder) *HealthHandler {
	return &HealthHandler{store: store, timeout: timeout, probes: probes}
}

func (h *HealthHandler) RegisterRoutes(router chi.Router) {
	router.Handle("/healthz", h.pipeline())
	router.HandleFunc("/healthz/*", h.handleUnknownPath)
}

// Order matters: method and payload are checked before the store is touched.
func (h *HealthHandler) pipeline() pipeline {
	return pipeline{
		route:  "/healthz",
		checks: []check{allowMethod(http.MethodGet), rejectPayload},
		serve:  h.handleProbe,
	}
}

func (h *HealthHandler) handleProbe(ex *exchange) {
	ctx := ex.r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	err := h.store.Ping(ctx)
	if h.probes != nil {
		h.probes.ObserveProbe(err == nil, time.Since(start))
	}

	if err != nil {
		log.Error().Err(err).Msg("Health check failed, store is unreachable")
		respondWithStatus(ex.w, http.StatusServiceUnavailable)
		return
	}

	log.Info().Msg("Health check complete, system is running")
	respondWithStatus(ex.w, http.StatusOK)
}

func (h *HealthHandler) handleUnknownPath(w http.ResponseWriter, r *http.Request) {
	log.Warn().Str("path", r.URL.Path).Msg("Endpoint not found")
	respondWithStatus(w, http.StatusNotFound)
}
