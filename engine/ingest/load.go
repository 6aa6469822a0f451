package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/WessleyAI/wessley-fleet/engine/domain"
	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a document yields no extractable text.
var ErrNoText = errors.New("document contains no text")

// LoadDocument reads a PDF (page by page) or a plain text / markdown file.
func LoadDocument(path string) (Document, error) {
	doc := Document{Path: path, Source: filepath.Base(path)}
	if _, err := os.Stat(path); err != nil {
		return doc, &domain.IngestionError{Path: path, Step: "read", Err: err}
	}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		doc.Pages, err = readPDF(path)
	default:
		doc.Pages, err = readText(path)
	}
	if err != nil {
		return doc, err
	}

	for _, p := range doc.Pages {
		if strings.TrimSpace(p.Text) != "" {
			return doc, nil
		}
	}
	return doc, &domain.IngestionError{Path: path, Step: "parse", Err: ErrNoText}
}

func readText(path string) ([]Page, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.IngestionError{Path: path, Step: "read", Err: err}
	}
	return []Page{{Number: 0, Text: string(b)}}, nil
}

func readPDF(path string) (pages []Page, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &domain.IngestionError{Path: path, Step: "parse", Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, &domain.IngestionError{Path: path, Step: "parse", Err: err}
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, &domain.IngestionError{Path: path, Step: "parse", Err: fmt.Errorf("page %d: %w", i, err)}
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
