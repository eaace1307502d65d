package analytics

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type Handler struct {
	aggregator *Aggregator
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

// Stats writes the current aggregate as JSON.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) error {
	body, err := json.Marshal(h.aggregator.Stats())
	if err != nil {
		return fmt.Errorf("encoding analytics stats: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	return nil
}
