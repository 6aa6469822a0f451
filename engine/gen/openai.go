package gen

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
)

// OpenAIBackend calls the Chat Completions API of OpenAI or a compatible
// server.
type OpenAIBackend struct {
	client openai.Client
}

// NewOpenAIBackend creates a backend; baseURL may be empty.
func NewOpenAIBackend(apiKey, baseURL string) *OpenAIBackend {
	opts := []ooption.RequestOption{ooption.WithAPIKey(strings.TrimSpace(apiKey)), ooption.WithMaxRetries(0)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, ooption.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	return &OpenAIBackend{client: openai.NewClient(opts...)}
}

// Generate implements Backend.
func (b *OpenAIBackend) Generate(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", backendError(ProviderOpenAI, req.Model, apiErr.StatusCode, err)
		}
		return "", backendError(ProviderOpenAI, req.Model, 0, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
