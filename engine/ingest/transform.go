package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the target number of characters per chunk.
	DefaultChunkSize = 1000
	// DefaultOverlap is the number of overlapping characters between chunks.
	DefaultOverlap = 150
)

var newlinePattern = regexp.MustCompile(`\r\n|\r`)

// ChunkOpts configures the recursive splitter.
type ChunkOpts struct {
	Size    int
	Overlap int
}

func (o ChunkOpts) withDefaults() (ChunkOpts, error) {
	if o.Size <= 0 {
		o.Size = DefaultChunkSize
		if o.Overlap == 0 {
			o.Overlap = DefaultOverlap
		}
	}
	if o.Overlap < 0 {
		return o, fmt.Errorf("overlap cannot be negative")
	}
	if o.Overlap >= o.Size {
		return o, fmt.Errorf("overlap %d must be smaller than size %d", o.Overlap, o.Size)
	}
	return o, nil
}

// splitPages splits every page into overlapping chunks. Chunks never span
// pages; indexes are global and dense.
func splitPages(pages []Page, opts ChunkOpts) ([]Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(opts.Size),
		textsplitter.WithChunkOverlap(opts.Overlap),
	)
	var chunks []Chunk
	for _, p := range pages {
		text := strings.TrimSpace(newlinePattern.ReplaceAllString(p.Text, "\n"))
		if text == "" {
			continue
		}
		segments, err := splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", p.Number, err)
		}
		for _, seg := range segments {
			seg = strings.TrimSpace(seg)
			if seg == "" {
				continue
			}
			chunks = append(chunks, Chunk{Text: seg, Index: len(chunks), Page: p.Number})
		}
	}
	return chunks, nil
}
