package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/photo-map/internal/config"
)

func TestConfigHandler_Get(t *testing.T) {
	cfg := testConfig()
	cfg.Map.DefaultLat = 50.08
	cfg.Map.DefaultLng = 14.42
	cfg.Map.DefaultZoom = 5
	cfg.Map.FocusZoom = 14

	handler := NewConfigHandler(cfg, "gemini")
	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest("GET", "/api/v1/config", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp ConfigResponse
	parseJSONResponse(t, recorder, &resp)

	if resp.Oracle != "gemini" {
		t.Errorf("expected oracle 'gemini', got '%s'", resp.Oracle)
	}
	want := MapDefaults{Lat: 50.08, Lng: 14.42, Zoom: 5, FocusZoom: 14}
	if resp.Map != want {
		t.Errorf("expected map defaults %+v, got %+v", want, resp.Map)
	}

	byName := make(map[string]ProviderInfo)
	for _, p := range resp.Providers {
		byName[p.Name] = p
	}
	if len(byName) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(resp.Providers))
	}
	if !byName[config.ProviderGemini].Available || !byName[config.ProviderGemini].Selected {
		t.Errorf("expected gemini available and selected, got %+v", byName[config.ProviderGemini])
	}
	if byName[config.ProviderOpenAI].Available {
		t.Error("expected openai unavailable without a token")
	}
	if !byName[config.ProviderOllama].Available || byName[config.ProviderOllama].Selected {
		t.Errorf("expected ollama available and not selected, got %+v", byName[config.ProviderOllama])
	}
}
