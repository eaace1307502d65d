package pipeline

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movie-search-gateway/pkg/metrics"
)

// Normalizer turns errors into client-facing envelopes. Server-side failures
// are logged in full and shown to the client only as a generic message.
type Normalizer struct {
	metrics *metrics.Metrics
}

func NewNormalizer(m *metrics.Metrics) *Normalizer {
	return &Normalizer{metrics: m}
}

// Write classifies err and writes the envelope with the matching status.
func (n *Normalizer) Write(w http.ResponseWriter, r *http.Request, err error) {
	env, status := apperrors.NewEnvelope(err)
	log := logger.FromContext(r.Context()).With(
		"component", "error-normalizer",
		"error_id", env.ID,
		"code", env.Code,
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
	)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Warn("request rejected", "error", err)
	}
	n.metrics.ErrorResponse(env.Code)
	WriteJSON(w, status, env)
}

// LogUnwritable records an error that surfaced after the response had
// already started.
func (n *Normalizer) LogUnwritable(r *http.Request, err error) {
	logger.FromContext(r.Context()).Error("error after response started",
		"component", "error-normalizer",
		"path", r.URL.Path,
		"error", err,
	)
}

// WriteJSON writes v as the JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to write response", "component", "gateway", "error", err)
	}
}
