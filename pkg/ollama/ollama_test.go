package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req ollamaEmbedReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResp{Embedding: []float64{float64(len(req.Prompt)), 0.5}})
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL+"/", "nomic-embed-text")
	v, err := c.Embed(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 2 || v[0] != 3 || v[1] != 0.5 {
		t.Fatalf("got %v", v)
	}

	batch, err := c.EmbedBatch(context.Background(), []string{"a", "bb"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if batch[0][0] != 1 || batch[1][0] != 2 {
		t.Fatalf("batch out of order: %v", batch)
	}
}

func TestEmbedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewEmbedClient(srv.URL, "m").Embed(context.Background(), "x")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound || !strings.Contains(se.Detail, "model not found") {
		t.Fatalf("expected StatusError 404, got %v", err)
	}
}

func TestEmbedEmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[]}`))
	}))
	defer srv.Close()

	if _, err := NewEmbedClient(srv.URL, "m").EmbedBatch(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req chatReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream || req.Model != "llama3" || req.Options.NumPredict != 256 || len(req.Messages) != 1 {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(chatResp{Message: Message{Role: "assistant", Content: "Octavia"}, Done: true})
	}))
	defer srv.Close()

	out, err := NewChatClient(srv.URL).Chat(context.Background(), ChatRequest{
		Model:     "llama3",
		Messages:  []Message{{Role: "user", Content: "Który samochód?"}},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "Octavia" {
		t.Fatalf("got %q", out)
	}
}

func TestChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewChatClient(srv.URL).Chat(context.Background(), ChatRequest{Model: "m"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 StatusError, got %v", err)
	}
}
