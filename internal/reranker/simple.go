package reranker

import (
	"context"
	"sort"
	"strings"
)

// SimpleReranker reorders passages by term overlap with the query, blended
// with the original similarity score. It needs no external model, which makes
// it the offline fallback deployment choice.
type SimpleReranker struct{}

// NewSimpleReranker creates a SimpleReranker.
func NewSimpleReranker() *SimpleReranker {
	return &SimpleReranker{}
}

// Rerank implements Reranker. The combined score weighs the retrieval score
// and the query term overlap equally.
func (r *SimpleReranker) Rerank(ctx context.Context, query string, docs []Document, topN int) ([]ScoredDocument, error) {
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return fallbackRank(docs, topN), nil
	}

	type scored struct {
		doc      ScoredDocument
		combined float32
	}

	ranked := make([]scored, len(docs))
	for i, doc := range docs {
		overlap := termOverlap(queryTokens, tokenize(doc.Content))
		ranked[i] = scored{
			doc:      ScoredDocument{Document: doc, OriginalRank: i},
			combined: 0.5*doc.Score + 0.5*overlap,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].combined > ranked[j].combined
	})

	result := make([]ScoredDocument, topN)
	for i := 0; i < topN; i++ {
		result[i] = ranked[i].doc
	}
	return result, nil
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping short
// tokens.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
		return !alnum
	})

	filtered := tokens[:0]
	for _, tok := range tokens {
		if len(tok) > 2 {
			filtered = append(filtered, tok)
		}
	}
	return filtered
}

// termOverlap returns the fraction of unique query tokens present in the
// document tokens (0.0 - 1.0).
func termOverlap(queryTokens, docTokens []string) float32 {
	if len(queryTokens) == 0 {
		return 0
	}

	docSet := make(map[string]bool, len(docTokens))
	for _, tok := range docTokens {
		docSet[tok] = true
	}

	matched := make(map[string]bool)
	for _, tok := range queryTokens {
		if docSet[tok] {
			matched[tok] = true
		}
	}
	return float32(len(matched)) / float32(len(queryTokens))
}
