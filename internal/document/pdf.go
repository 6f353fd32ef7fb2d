package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extract reads the file at path and returns its pages.
// PDFs are extracted page by page; .txt and .md files become one page.
func Extract(path string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !SupportedType(ext) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	if ext == ".pdf" {
		return extractPDF(path)
	}
	return extractPlainText(path)
}

// extractPDF extracts per-page text. Pages that yield no text (scanned
// images, extraction failures) are skipped rather than failing the whole
// document.
func extractPDF(path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	var pages []Page
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// Extraction of a single page can fail on odd encodings;
			// the rest of the document is still usable.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no text extracted from %s", filepath.Base(path))
	}
	return pages, nil
}

func extractPlainText(path string) ([]Page, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path validated by caller
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("no text extracted from %s", filepath.Base(path))
	}
	return []Page{{Number: 1, Text: text}}, nil
}
