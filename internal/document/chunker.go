package document

import (
	"strings"
)

// Chunker splits extracted pages into overlapping word windows.
type Chunker struct {
	size    int // words per chunk
	overlap int // words shared between adjacent chunks
}

// NewChunker creates a chunker. size must be positive; overlap must be
// non-negative and smaller than size (enforced by config validation,
// clamped here defensively).
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 200
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split chunks all pages of a source document. Blank pages yield no
// chunks. Chunk IDs are stable across re-ingestion of the same source.
func (c *Chunker) Split(source string, pages []Page) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		for ordinal, w := range c.splitPage(page.Text) {
			chunks = append(chunks, Chunk{
				ID:       ChunkID(source, page.Number, ordinal),
				Text:     w.text,
				Source:   source,
				Page:     page.Number,
				Ordinal:  ordinal,
				Modality: w.modality,
			})
		}
	}
	return chunks
}

// window is one chunk-sized slice of a page. Modality is decided against
// the page's original lines, before whitespace normalization flattens
// tabs and newlines out of the chunk text.
type window struct {
	text     string
	modality string
}

// splitPage slides a word window of c.size with c.overlap words of overlap.
func (c *Chunker) splitPage(text string) []window {
	lines := strings.Split(text, "\n")

	var words []string
	var lineOf []int // words[i] came from lines[lineOf[i]]
	for li, line := range lines {
		for _, w := range strings.Fields(line) {
			words = append(words, w)
			lineOf = append(lineOf, li)
		}
	}
	if len(words) == 0 {
		return nil
	}

	build := func(start, end int) window {
		return window{
			text:     strings.Join(words[start:end], " "),
			modality: classifyLines(lines[lineOf[start] : lineOf[end-1]+1]),
		}
	}

	if len(words) <= c.size {
		return []window{build(0, len(words))}
	}

	step := c.size - c.overlap
	var out []window
	for start := 0; start < len(words); start += step {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, build(start, end))
		if end == len(words) {
			break
		}
	}
	return out
}

// classifyLines labels a window as table when a majority of its non-blank
// source lines look like table rows. Everything else is text.
func classifyLines(lines []string) string {
	total := 0
	tabular := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if tabularLine(line) {
			tabular++
		}
	}
	if total == 0 {
		return "text"
	}
	if tabular*2 > total {
		return "table"
	}
	return "text"
}

// tabularLine reports whether a line is pipe- or tab-separated cells.
func tabularLine(line string) bool {
	return strings.Count(line, "|") >= 2 || strings.Count(line, "\t") >= 2
}

// ModalityFor classifies a single line.
func ModalityFor(line string) string {
	if tabularLine(line) {
		return "table"
	}
	return "text"
}
