package corpus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":1,"embedding":[0,1]},{"object":"embedding","index":0,"embedding":[1,0]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", srv.URL, "text-embedding-3-small")
	vecs, err := e.EmbedBatch(context.Background(), []string{"Toyota", "Skoda"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if gotModel != "text-embedding-3-small" {
		t.Fatalf("model = %q", gotModel)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Fatalf("vectors not ordered by index: %v", vecs)
	}
}

func TestOpenAIEmbedderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("bad", srv.URL, "m")
	if _, err := e.Embed(context.Background(), "Kia"); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenAIEmbedderEmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder("k", "http://127.0.0.1:1", "m")
	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("got %v %v", vecs, err)
	}
}
