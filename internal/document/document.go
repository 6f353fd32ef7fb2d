// Package document extracts text from source files and splits it into
// chunks suitable for embedding.
//
// Extraction: PDFs are read page by page; plain-text files (.txt, .md) are
// treated as a single page. Chunking: a sliding word window with overlap so
// retrieval keeps sentence context across chunk boundaries. Each chunk is
// classified as text or table (tab/pipe-dense lines); the modality travels
// with the chunk into the docstore.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Supported source file extensions.
var supportedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// ErrUnsupportedType indicates the file extension cannot be ingested.
var ErrUnsupportedType = errors.New("unsupported file type")

// Page is the extracted text of a single source page.
type Page struct {
	Number int // 1-based
	Text   string
}

// Chunk is one embeddable segment of a source document.
type Chunk struct {
	ID       string
	Text     string
	Source   string
	Page     int
	Ordinal  int    // position of the chunk within its page
	Modality string // "text" or "table"
}

// SupportedType reports whether ext (including the dot, any case) can be
// ingested.
func SupportedType(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

// ChunkID derives a stable chunk identifier from provenance, so
// re-ingesting the same file yields the same IDs.
func ChunkID(source string, page, ordinal int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%d", source, page, ordinal))
	return hex.EncodeToString(sum[:16])
}
