package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewOpenAIClient builds a client. Retries are left to Limited, so the SDK's
// own retry loop is disabled.
func NewOpenAIClient(apiKey, model string, maxTokens int, temperature float64, opts ...option.RequestOption) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	reqOpts = append(reqOpts, opts...)
	return &OpenAIClient{
		client:      openai.NewClient(reqOpts...),
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: temperature,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
				return "", &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
			}
			return "", fmt.Errorf("openai api status %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("openai api: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Model() string {
	return c.model
}
