package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/kozaktomas/photo-map/internal/constants"
	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

var nullable = true

// locationSchema forces the model to answer with name/lat/lng, each possibly null.
var locationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name": {
			Type:        genai.TypeString,
			Description: "Common name of the identified place, or null",
			Nullable:    &nullable,
		},
		"lat": {
			Type:        genai.TypeNumber,
			Description: "Latitude in decimal degrees, or null",
			Nullable:    &nullable,
		},
		"lng": {
			Type:        genai.TypeNumber,
			Description: "Longitude in decimal degrees, or null",
			Nullable:    &nullable,
		},
	},
	Required: []string{"name", "lat", "lng"},
}

type GeminiLocator struct {
	usageTracker
	client *genai.Client
}

func NewGeminiLocator(ctx context.Context, apiKey string, pricing RequestPricing) (*GeminiLocator, error) {
	return newGeminiLocator(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, pricing)
}

func newGeminiLocator(ctx context.Context, cc *genai.ClientConfig, pricing RequestPricing) (*GeminiLocator, error) {
	if cc.APIKey == "" {
		return nil, errors.New("gemini API key is empty")
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiLocator{
		usageTracker: usageTracker{pricing: pricing},
		client:       client,
	}, nil
}

func (p *GeminiLocator) Name() string {
	return geminiModel
}

func (p *GeminiLocator) Locate(ctx context.Context, base64Image string) (*LocationGuess, error) {
	imageData, err := base64.StdEncoding.DecodeString(base64Image)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: locatePrompt},
				{InlineData: &genai.Blob{Data: imageData, MIMEType: "image/jpeg"}},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   locationSchema,
	}

	var lastError error
	var lastResponse string

	for range constants.OracleMaxRetries {
		result, err := p.client.Models.GenerateContent(ctx, geminiModel, contents, config)
		if err != nil {
			return nil, fmt.Errorf("gemini API error: %w", err)
		}

		if result.UsageMetadata != nil {
			p.trackUsage(int64(result.UsageMetadata.PromptTokenCount), int64(result.UsageMetadata.CandidatesTokenCount))
		}

		content := result.Text()
		if content == "" {
			return nil, errors.New("no response from Gemini")
		}
		lastResponse = content

		resp, err := decodeLocation(content)
		if err != nil {
			lastError = err
			contents = append(contents,
				&genai.Content{
					Role:  "model",
					Parts: []*genai.Part{{Text: content}},
				},
				&genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: retryFeedback(err)}},
				},
			)
			continue
		}

		return resp.guess()
	}

	return nil, fmt.Errorf("failed to parse location JSON after %d attempts: %w (last response: %s)", constants.OracleMaxRetries, lastError, lastResponse)
}
