package gen

import (
	"context"
	"errors"

	"github.com/WessleyAI/wessley-fleet/pkg/ollama"
)

// OllamaBackend calls a local Ollama server.
type OllamaBackend struct {
	client *ollama.ChatClient
}

// NewOllamaBackend creates a backend for the server at baseURL.
func NewOllamaBackend(baseURL string) *OllamaBackend {
	return &OllamaBackend{client: ollama.NewChatClient(baseURL)}
}

// Generate implements Backend.
func (b *OllamaBackend) Generate(ctx context.Context, req Request) (string, error) {
	out, err := b.client.Chat(ctx, ollama.ChatRequest{
		Model:       req.Model,
		Messages:    []ollama.Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		var se *ollama.StatusError
		if errors.As(err, &se) {
			return "", backendError(ProviderOllama, req.Model, se.Code, err)
		}
		return "", backendError(ProviderOllama, req.Model, 0, err)
	}
	return out, nil
}
