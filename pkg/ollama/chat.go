package ollama

import (
	"context"
	"net/http"
	"strings"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a non-streaming /api/chat request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatReq struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Options  chatOptions `json:"options"`
}

type chatResp struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// ChatClient talks to Ollama's /api/chat endpoint.
type ChatClient struct {
	baseURL string
	client  *http.Client
}

// NewChatClient creates an Ollama chat client.
func NewChatClient(baseURL string) *ChatClient {
	return &ChatClient{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{}}
}

// Chat sends one request and returns the assistant message content.
func (c *ChatClient) Chat(ctx context.Context, in ChatRequest) (string, error) {
	var out chatResp
	err := postJSON(ctx, c.client, c.baseURL+"/api/chat", "chat", chatReq{
		Model:    in.Model,
		Messages: in.Messages,
		Stream:   false,
		Options:  chatOptions{Temperature: in.Temperature, NumPredict: in.MaxTokens},
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Message.Content, nil
}
