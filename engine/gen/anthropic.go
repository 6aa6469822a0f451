package gen

import (
	"context"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend calls the Anthropic Messages API.
type AnthropicBackend struct {
	client anthropic.Client
}

// NewAnthropicBackend creates a backend; baseURL may be empty.
func NewAnthropicBackend(apiKey, baseURL string) *AnthropicBackend {
	opts := []aoption.RequestOption{aoption.WithAPIKey(strings.TrimSpace(apiKey)), aoption.WithMaxRetries(0)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, aoption.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	return &AnthropicBackend{client: anthropic.NewClient(opts...)}
}

// Generate implements Backend.
func (b *AnthropicBackend) Generate(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(req.Temperature),
	}
	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", backendError(ProviderAnthropic, req.Model, apiErr.StatusCode, err)
		}
		return "", backendError(ProviderAnthropic, req.Model, 0, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}
