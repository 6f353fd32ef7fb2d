package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrDocumentNotFound is returned when a source has no registry record.
var ErrDocumentNotFound = errors.New("document not found")

// Record describes one ingested source document.
type Record struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	SHA256    string    `json:"sha256"`
	Pages     int       `json:"pages"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry tracks ingested documents in the database. The vector store
// holds the chunks; the registry holds per-document bookkeeping so the
// API and CLI can list what has been ingested without touching the index.
type Registry struct {
	db *sql.DB
}

// NewRegistry creates a Registry backed by db. The documents table must
// already exist (database.Migrate).
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Upsert inserts or replaces the record for rec.Source. Re-ingesting a
// source keeps its original ID but refreshes hash, counts and timestamp.
func (r *Registry) Upsert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO documents (id, source, sha256, pages, chunks, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			sha256 = excluded.sha256,
			pages = excluded.pages,
			chunks = excluded.chunks,
			created_at = excluded.created_at`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Source, rec.SHA256, rec.Pages, rec.Chunks, rec.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("upserting document %q: %w", rec.Source, err)
	}

	// The conflict path keeps the existing ID; read it back.
	return r.Get(ctx, rec.Source)
}

// Get returns the record for a source.
func (r *Registry) Get(ctx context.Context, source string) (Record, error) {
	const query = `
		SELECT id, source, sha256, pages, chunks, created_at
		FROM documents WHERE source = ?`
	var rec Record
	err := r.db.QueryRowContext(ctx, query, source).Scan(
		&rec.ID, &rec.Source, &rec.SHA256, &rec.Pages, &rec.Chunks, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %q", ErrDocumentNotFound, source)
	}
	if err != nil {
		return Record{}, fmt.Errorf("loading document %q: %w", source, err)
	}
	return rec, nil
}

// List returns all records, newest first.
func (r *Registry) List(ctx context.Context) ([]Record, error) {
	const query = `
		SELECT id, source, sha256, pages, chunks, created_at
		FROM documents ORDER BY created_at DESC, source`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.SHA256, &rec.Pages, &rec.Chunks, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes the record for a source.
func (r *Registry) Delete(ctx context.Context, source string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE source = ?`, source)
	if err != nil {
		return fmt.Errorf("deleting document %q: %w", source, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrDocumentNotFound, source)
	}
	return nil
}
