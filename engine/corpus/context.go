package corpus

import "strings"

// Separator joins passages in a rendered context and sections in a report.
const Separator = "\n\n---\n\n"

// Passage is one retrieved chunk of the corpus.
type Passage struct {
	Text       string  `json:"text"`
	ChunkIndex int     `json:"chunk_index"`
	Page       int     `json:"page"`
	Score      float32 `json:"score"`
}

// RetrievedContext is the ordered result of one query, most similar first.
type RetrievedContext struct {
	Passages []Passage `json:"passages"`
}

// Empty reports whether nothing was retrieved.
func (c RetrievedContext) Empty() bool { return len(c.Passages) == 0 }

// Len is the number of passages.
func (c RetrievedContext) Len() int { return len(c.Passages) }

// Text renders the passages joined by Separator.
func (c RetrievedContext) Text() string {
	texts := make([]string, len(c.Passages))
	for i, p := range c.Passages {
		texts[i] = p.Text
	}
	return strings.Join(texts, Separator)
}
