// Package apptest provides a fake Ollama server that answers the three
// recommendation prompts and embeds text by keyword counts.
package apptest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
)

// Keywords are the embedding dimensions of the fake server.
var Keywords = []string{"octavia", "corolla", "civic", "benzyna", "diesel", "koszt"}

// Corpus is a small reference document that mentions two candidates.
const Corpus = `Skoda Octavia 1.5 TSI, benzyna, klasa C. Cena 79000 PLN, spalanie 6.1 l/100 km, przegląd co 30000 km.

Toyota Corolla 1.8 Hybrid, klasa C. Cena 76500 PLN, spalanie 4.5 l/100 km, przegląd co 15000 km.

Honda Civic e:HEV, klasa C. Cena 118000 PLN, spalanie 4.7 l/100 km.

Średnia wartość rezydualna segmentu C po 3 latach wynosi 55 procent ceny zakupu.`

var riskModel = regexp.MustCompile(`analizę ryzyka dla modelu: ([^\n]+)\.`)

// Ollama is a fake Ollama server.
type Ollama struct {
	*httptest.Server

	mu      sync.Mutex
	prompts []string
	// Candidates returned by the cost analysis.
	Candidates []string
	// FailRisk names a candidate whose risk analysis fails with HTTP 500.
	FailRisk string
}

// NewOllama starts a fake server closed at test cleanup.
func NewOllama(t testing.TB) *Ollama {
	o := &Ollama{Candidates: []string{"Skoda Octavia", "Toyota Corolla"}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/embeddings", o.embed)
	mux.HandleFunc("POST /api/chat", o.chat)
	o.Server = httptest.NewServer(mux)
	t.Cleanup(o.Close)
	return o
}

// Prompts returns every chat prompt received so far.
func (o *Ollama) Prompts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.prompts...)
}

// Embed returns the keyword vector of text.
func Embed(text string) []float64 {
	lower := strings.ToLower(text)
	v := make([]float64, len(Keywords))
	for i, k := range Keywords {
		v[i] = float64(strings.Count(lower, k)) + 0.01
	}
	return v
}

func (o *Ollama) embed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"embedding": Embed(req.Prompt)})
}

func (o *Ollama) chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	o.mu.Lock()
	o.prompts = append(o.prompts, prompt)
	o.mu.Unlock()

	var answer string
	switch {
	case strings.Contains(prompt, "--- KONTEKST ---"):
		b, _ := json.Marshal(map[string]any{
			"report":     "## Raport TCO\n\n" + strings.Join(o.Candidates, ", "),
			"candidates": o.Candidates,
		})
		answer = "```json\n" + string(b) + "\n```"
	case riskModel.MatchString(prompt):
		name := riskModel.FindStringSubmatch(prompt)[1]
		if name == o.FailRisk {
			http.Error(w, "model crashed", http.StatusInternalServerError)
			return
		}
		answer = fmt.Sprintf("Niezawodność %s: 8/10", name)
	case strings.Contains(prompt, "--- RAPORT KOSZTÓW ---"):
		answer = "## Rekomendacja końcowa\n\n" + o.Candidates[0]
	default:
		http.Error(w, "unknown prompt", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{
		"message": map[string]string{"role": "assistant", "content": answer},
		"done":    true,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
