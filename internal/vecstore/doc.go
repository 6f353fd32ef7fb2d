// Package vecstore implements the persisted vector store backing the
// knowledge base.
//
// The store has two on-disk artifacts, kept consistent with each other:
//
//   - index.bin: a flat inner-product index over L2-normalized float32
//     vectors. Because every vector is normalized on insert and every query
//     is normalized before search, the inner product equals cosine
//     similarity. Search is exact brute-force top-k.
//   - docstore.json: a JSON map from chunk ID to the chunk's text and
//     metadata (source, page, modality).
//
// Deleting the data directory resets the knowledge base; Store.Reset does
// the same in-process.
//
// Concurrency: Store serializes all access with an internal mutex and is
// safe for concurrent use. Saves are atomic (write to temp file, rename).
package vecstore
