package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-trunk/trunkcore/pkg/logger"
)

// API handles REST API endpoints
type API struct {
	logger   *logger.Logger
	channels []string
}

// NewAPI creates a new API instance. channels lists the channel names
// configured at startup.
func NewAPI(log *logger.Logger, channels []string) *API {
	return &API{
		logger:   log,
		channels: channels,
	}
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	version, _, _ := GetVersionInfo()
	response := map[string]interface{}{
		"status":        "running",
		"service":       "trunkcore",
		"version":       version,
		"channel_count": len(a.channels),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		a.logger.Warn("failed to encode status response", logger.Error(err))
	}
}

// HandleChannels handles the /api/channels endpoint, listing the channels
// configured at startup.
func (a *API) HandleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(a.channels); err != nil {
		a.logger.Warn("failed to encode channels response", logger.Error(err))
	}
}
