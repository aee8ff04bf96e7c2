package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/photo-map/internal/constants"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const chatModel = openai.ChatModelGPT4_1Mini

type OpenAILocator struct {
	usageTracker
	client *openai.Client
}

// NewOpenAILocator creates a locator backed by the chat completions API.
// Extra options are appended after the API key.
func NewOpenAILocator(apiKey string, pricing RequestPricing, opts ...option.RequestOption) *OpenAILocator {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAILocator{
		usageTracker: usageTracker{pricing: pricing},
		client:       &client,
	}
}

func (p *OpenAILocator) Name() string {
	return chatModel
}

func (p *OpenAILocator) Locate(ctx context.Context, base64Image string) (*LocationGuess, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(locatePrompt),
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart("Where was this photo taken?"),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    "data:image/jpeg;base64," + base64Image,
							Detail: "auto",
						}),
					},
				},
			},
		},
	}

	var lastError error
	var lastResponse string

	for range constants.OracleMaxRetries {
		resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    chatModel,
			Messages: messages,
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
			MaxTokens: openai.Int(200),
		})
		if err != nil {
			return nil, fmt.Errorf("OpenAI API error: %w", err)
		}

		if len(resp.Choices) == 0 {
			return nil, errors.New("no response from OpenAI")
		}

		if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
			p.trackUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		}

		content := resp.Choices[0].Message.Content
		lastResponse = content

		location, err := decodeLocation(content)
		if err != nil {
			lastError = err
			messages = append(messages,
				openai.AssistantMessage(content),
				openai.UserMessage(retryFeedback(err)),
			)
			continue
		}

		return location.guess()
	}

	return nil, fmt.Errorf("failed to parse location JSON after %d attempts: %w (last response: %s)", constants.OracleMaxRetries, lastError, lastResponse)
}
