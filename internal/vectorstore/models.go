package vectorstore

// Document is one passage to be embedded and stored.
type Document struct {
	// ID is the unique passage identifier (doc id + version + chunk index).
	ID string

	// Content is the passage text.
	Content string

	// Metadata carries passage attribution: doc_id, version, doc_hash,
	// source, pages, chunk_id, status.
	Metadata map[string]string
}

// SearchResult is one similarity hit.
type SearchResult struct {
	// ID is the passage identifier.
	ID string

	// Content is the passage text.
	Content string

	// Score is the cosine similarity (higher = more similar).
	Score float32

	// Metadata is the stored passage metadata.
	Metadata map[string]string
}
