// Package vectorstore persists per-namespace passage vectors and serves
// similarity search over them.
package vectorstore

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/fortressd/internal/tenant"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Embedder generates vector embeddings from text.
//
// Embedding computation is an external capability (OpenAI-compatible API,
// TEI, or a local model); the store only depends on this boundary.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the per-namespace vector index store.
//
// Each namespace owns one durable index directory, created lazily (and seeded
// with a bootstrap placeholder entry) on first commit. The index grows
// strictly by appension; nothing is deduplicated or rebalanced, and
// deprecated passages stay in the index until an out-of-band rebuild.
//
// Writes are two-phase. Stage computes embeddings without touching any index;
// the returned batch's Commit performs the durable append. The split lets
// callers place their own durable decision between the two, so an embedding
// provider failure leaves no state behind anywhere.
//
// Score convention: results carry cosine similarity, higher is closer. The
// store passes the backend's scores through without reinterpretation.
type Store interface {
	// Stage embeds the given documents for the namespace without writing
	// anything. A failed embedding call leaves the index untouched.
	Stage(ctx context.Context, ns tenant.Namespace, docs []Document) (StagedBatch, error)

	// Search returns up to k passages most similar to the query, best first.
	// A namespace that was never ingested into yields an empty result, not an
	// error.
	Search(ctx context.Context, ns tenant.Namespace, query string, k int) ([]SearchResult, error)

	// Exists reports whether a durable index exists for the namespace.
	Exists(ns tenant.Namespace) bool

	// Close releases store resources.
	Close() error
}

// StagedBatch is a set of embedded documents not yet written to an index.
type StagedBatch interface {
	// Commit appends the staged documents to their namespace's index,
	// creating it on first use. Durability is established before Commit
	// returns.
	Commit(ctx context.Context) error
}
