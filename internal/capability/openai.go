package capability

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenRouterURL is the OpenAI-compatible endpoint used by default.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenAIClient is a GenerationCapability for any OpenAI-compatible chat
// completion endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	cfg.BaseURL = baseURL
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Generate(ctx context.Context, p Prompt) (string, error) {
	var messages []openai.ChatCompletionMessage
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: p.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: p.User,
	})

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from %s", c.model)
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAI(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return &RetryableError{StatusCode: status, Message: err.Error()}
	}
	return fmt.Errorf("generation api: %w", err)
}
