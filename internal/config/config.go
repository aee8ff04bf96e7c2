package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kozaktomas/photo-map/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var pricesYAML []byte

// ErrMissingCredential is returned by Validate when the selected geocoding oracle has no credential.
var ErrMissingCredential = errors.New("missing geocoder credential")

// Geocoder provider names accepted in GEOCODER_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Geocoder GeocoderConfig
	OpenAI   OpenAIConfig
	Gemini   GeminiConfig
	Ollama   OllamaConfig
	Web      WebConfig
	Map      MapConfig
	Log      LogConfig
	WatchDir string
	Prices   PricesConfig
}

type GeocoderConfig struct {
	Provider string // gemini (default), openai or ollama
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type OllamaConfig struct {
	URL   string // defaults to http://localhost:11434
	Model string // defaults to llama3.2-vision:11b
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // CORS origins, empty allows same-origin only
}

type MapConfig struct {
	DefaultLat  float64
	DefaultLng  float64
	DefaultZoom int
	FocusZoom   int
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Standard RequestPricing `yaml:"standard"`
}

type RequestPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envString reads an environment variable, falling back to defaultVal when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma separated environment variable, dropping blank entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	return &Config{
		Geocoder: GeocoderConfig{
			Provider: strings.ToLower(envString("GEOCODER_PROVIDER", ProviderGemini)),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Ollama: OllamaConfig{
			URL:   os.Getenv("OLLAMA_URL"),
			Model: os.Getenv("OLLAMA_MODEL"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),

			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Map: MapConfig{
			DefaultLat:  envFloat("MAP_DEFAULT_LAT", constants.DefaultMapLat),
			DefaultLng:  envFloat("MAP_DEFAULT_LNG", constants.DefaultMapLng),
			DefaultZoom: envInt("MAP_DEFAULT_ZOOM", constants.DefaultMapZoom),
			FocusZoom:   envInt("MAP_FOCUS_ZOOM", constants.FocusZoom),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
		WatchDir: os.Getenv("WATCH_DIR"),
		Prices:   prices,
	}
}

// Validate checks that the selected geocoding oracle can be constructed.
// A missing credential is fatal: nothing should be ingested without a working oracle.
func (c *Config) Validate() error {
	switch c.Geocoder.Provider {
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required", ErrMissingCredential)
		}
	case ProviderOpenAI:
		if c.OpenAI.Token == "" {
			return fmt.Errorf("%w: OPENAI_TOKEN environment variable is required", ErrMissingCredential)
		}
	case ProviderOllama:
		// local server, no credential
	default:
		return fmt.Errorf("unknown GEOCODER_PROVIDER %q", c.Geocoder.Provider)
	}
	return nil
}

// GetModelPricing returns pricing for a specific model, with fallback defaults
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	// Return zero pricing if model not found
	return ModelPricing{}
}
