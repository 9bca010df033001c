package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/debugferro/identity-be/internal/models"
)

// SystemStatsProvider exposes the most recent host resource snapshot.
type SystemStatsProvider interface {
	Latest() models.SystemStats
}

// StatsHandler handles HTTP requests for host resource stats.
type StatsHandler struct {
	provider SystemStatsProvider
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(provider SystemStatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// Get returns the latest sampled system stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.provider.Latest())
}
