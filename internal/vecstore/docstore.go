package vecstore

// Chunk modality constants, mirroring the ingestion pipeline's split of PDF
// content into texts, tables and images.
const (
	ModalityText  = "text"
	ModalityTable = "table"
	ModalityImage = "image"
)

// Chunk is a stored knowledge-base entry: one embedded text segment with
// its provenance.
type Chunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Source   string            `json:"source"`             // originating file name
	Page     int               `json:"page"`               // 1-based page number, 0 if unknown
	Modality string            `json:"modality"`           // text, table or image
	Metadata map[string]string `json:"metadata,omitempty"` // optional extra attributes
}

// Docstore maps chunk IDs to their content. It is the JSON document store
// persisted beside the vector index.
type Docstore struct {
	chunks map[string]Chunk
}

// NewDocstore creates an empty docstore.
func NewDocstore() *Docstore {
	return &Docstore{chunks: make(map[string]Chunk)}
}

// Put stores chunks, overwriting existing IDs.
func (d *Docstore) Put(chunks ...Chunk) {
	for _, c := range chunks {
		d.chunks[c.ID] = c
	}
}

// Get returns the chunk for id, if present.
func (d *Docstore) Get(id string) (Chunk, bool) {
	c, ok := d.chunks[id]
	return c, ok
}

// Delete removes the given IDs. Unknown IDs are ignored.
func (d *Docstore) Delete(ids ...string) {
	for _, id := range ids {
		delete(d.chunks, id)
	}
}

// Len returns the number of stored chunks.
func (d *Docstore) Len() int { return len(d.chunks) }

// IDsBySource returns the IDs of all chunks originating from source.
func (d *Docstore) IDsBySource(source string) []string {
	var ids []string
	for id, c := range d.chunks {
		if c.Source == source {
			ids = append(ids, id)
		}
	}
	return ids
}

// Sources returns the distinct source names present in the docstore.
func (d *Docstore) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range d.chunks {
		if !seen[c.Source] {
			seen[c.Source] = true
			out = append(out, c.Source)
		}
	}
	return out
}
