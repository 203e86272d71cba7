package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/account-service/internal/account"
)

const maxBodyBytes = 1 << 20

// respondWithStatus ends the request with an empty body.
func respondWithStatus(w http.ResponseWriter, code int) {
	w.WriteHeader(code)
}

// respondWithJSON writes payload as the JSON response body.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		respondWithStatus(w, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	var vErr *account.ValidationError
	switch {
	case errors.As(err, &vErr),
		errors.Is(err, account.ErrUsernameExists),
		errors.Is(err, account.ErrImmutableField),
		errors.Is(err, account.ErrEmptyUpdate):
		return http.StatusBadRequest
	case errors.Is(err, account.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, account.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, account.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// hasPayload reports whether the request carries any body bytes other than
// whitespace, any query parameter, or any path parameter.
func hasPayload(r *http.Request) (bool, error) {
	if len(r.URL.Query()) > 0 {
		return true, nil
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for _, key := range rctx.URLParams.Keys {
			if key != "*" {
				return true, nil
			}
		}
	}
	if r.Body == nil || r.Body == http.NoBody {
		return false, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return false, fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return true, nil
	}
	return len(bytes.TrimSpace(body)) > 0, nil
}

// decodeJSON decodes a single JSON object. Unknown fields are ignored.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return io.EOF
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

// StandardHeaders disables caching and content sniffing on every response and
// strips persistent-connection hints.
func StandardHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Del("Connection")
		h.Del("Keep-Alive")
		next.ServeHTTP(w, r)
	})
}
