package ingest

import "github.com/WessleyAI/wessley-fleet/engine/semantic"

// Document is a loaded source document split into pages. Plain text files
// are a single page numbered 0.
type Document struct {
	Path   string
	Source string
	Pages  []Page
}

// Page is the extracted text of one page.
type Page struct {
	Number int
	Text   string
}

// Chunk is a text segment ready for embedding.
type Chunk struct {
	Text  string
	Index int
	Page  int
}

// ChunkedDoc is a document split into embeddable chunks.
type ChunkedDoc struct {
	Document
	Chunks []Chunk
}

// EmbeddedDoc is a chunked document with one embedding per chunk.
type EmbeddedDoc struct {
	ChunkedDoc
	Embeddings [][]float32
}

// Records converts the embedded chunks into storable records.
func (d EmbeddedDoc) Records() []semantic.Record {
	records := make([]semantic.Record, len(d.Chunks))
	for i, c := range d.Chunks {
		records[i] = semantic.Record{
			ChunkIndex: c.Index,
			Page:       c.Page,
			Source:     d.Source,
			Text:       c.Text,
			Embedding:  d.Embeddings[i],
		}
	}
	return records
}

// Summary describes a completed ingestion.
type Summary struct {
	Path       string
	Source     string
	Pages      int
	Chunks     int
	Dimensions int
}
