package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/kozaktomas/photo-map/internal/config"
)

// LocationGuess is a place the oracle recognized in a photo.
type LocationGuess struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Locator is a geocoding oracle: it infers where a photo was taken from the image alone.
type Locator interface {
	Name() string
	// Locate takes a base64 encoded JPEG and returns the identified place.
	// It returns ErrNoLocation when nothing could be identified.
	Locate(ctx context.Context, base64Image string) (*LocationGuess, error)

	GetUsage() Usage
	ResetUsage()
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// RequestPricing holds input/output prices per 1M tokens
type RequestPricing struct {
	Input  float64
	Output float64
}

// usageTracker is embedded by every locator. Enrichment runs concurrently so it is locked.
type usageTracker struct {
	mu      sync.Mutex
	usage   Usage
	pricing RequestPricing
}

func (t *usageTracker) GetUsage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

func (t *usageTracker) ResetUsage() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = Usage{}
}

func (t *usageTracker) trackUsage(inputTokens, outputTokens int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.InputTokens += int(inputTokens)
	t.usage.OutputTokens += int(outputTokens)
	t.usage.TotalCost += float64(inputTokens) / 1_000_000 * t.pricing.Input
	t.usage.TotalCost += float64(outputTokens) / 1_000_000 * t.pricing.Output
}

// New builds the locator selected by cfg.Geocoder.Provider.
// cfg.Validate should have been called first.
func New(ctx context.Context, cfg *config.Config) (Locator, error) {
	switch cfg.Geocoder.Provider {
	case config.ProviderGemini:
		return NewGeminiLocator(ctx, cfg.Gemini.APIKey, pricingFor(cfg, geminiModel))
	case config.ProviderOpenAI:
		return NewOpenAILocator(cfg.OpenAI.Token, pricingFor(cfg, string(chatModel))), nil
	case config.ProviderOllama:
		return NewOllamaLocator(cfg.Ollama.URL, cfg.Ollama.Model)
	default:
		return nil, fmt.Errorf("unknown geocoder provider %q", cfg.Geocoder.Provider)
	}
}

func pricingFor(cfg *config.Config, model string) RequestPricing {
	p := cfg.GetModelPricing(model).Standard
	return RequestPricing{Input: p.Input, Output: p.Output}
}
