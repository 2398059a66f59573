// Package reranker narrows retrieved passages to the most relevant few.
package reranker

import (
	"context"
)

// Document is a retrieved passage presented to the reranker.
type Document struct {
	ID      string  // Unique passage identifier
	Content string  // Passage text
	Source  string  // Originating file name
	Pages   string  // Page attribution (e.g. "3,4")
	Score   float32 // Similarity score from retrieval
}

// ScoredDocument is a reranked passage with its original position.
type ScoredDocument struct {
	Document
	OriginalRank int // Position in the retrieved list (0-indexed)
}

// Reranker reorders retrieved passages by query relevance and keeps the best
// topN. Implementations must fall back deterministically to the first topN
// documents in original order when no usable relevance ordering can be
// produced; only transport-level failures surface as errors.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document, topN int) ([]ScoredDocument, error)
}

// fallbackRank keeps the first topN documents in their original order.
func fallbackRank(docs []Document, topN int) []ScoredDocument {
	limit := topN
	if limit > len(docs) {
		limit = len(docs)
	}
	result := make([]ScoredDocument, limit)
	for i := 0; i < limit; i++ {
		result[i] = ScoredDocument{Document: docs[i], OriginalRank: i}
	}
	return result
}
