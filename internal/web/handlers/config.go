package handlers

import (
	"net/http"

	"github.com/kozaktomas/photo-map/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
	oracle string
}

// NewConfigHandler creates a new config handler. oracle is the name of the active locator.
func NewConfigHandler(cfg *config.Config, oracle string) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		oracle: oracle,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Map       MapDefaults    `json:"map"`
	Oracle    string         `json:"oracle"`
	Providers []ProviderInfo `json:"providers"`
}

// MapDefaults is the initial map view.
type MapDefaults struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Zoom      int     `json:"zoom"`
	FocusZoom int     `json:"focus_zoom"`
}

// ProviderInfo represents information about an AI provider
type ProviderInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Selected  bool   `json:"selected"`
}

// Get returns the available configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	selected := h.config.Geocoder.Provider
	providers := []ProviderInfo{
		{
			Name:      config.ProviderGemini,
			Available: h.config.Gemini.APIKey != "",
		},
		{
			Name:      config.ProviderOpenAI,
			Available: h.config.OpenAI.Token != "",
		},
		{
			Name:      config.ProviderOllama,
			Available: true, // Always available (local)
		},
	}
	for i := range providers {
		providers[i].Selected = providers[i].Name == selected
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		Map: MapDefaults{
			Lat:       h.config.Map.DefaultLat,
			Lng:       h.config.Map.DefaultLng,
			Zoom:      h.config.Map.DefaultZoom,
			FocusZoom: h.config.Map.FocusZoom,
		},
		Oracle:    h.oracle,
		Providers: providers,
	})
}
