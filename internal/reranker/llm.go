package reranker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// maxCandidateChars bounds how much passage text is shown per candidate,
// counted in runes so truncation never splits a multi-byte character.
const maxCandidateChars = 700

// LLMReranker asks a chat model to pick the most relevant candidates.
//
// The model sees numbered candidates and must answer with a comma-separated
// best-first selection (e.g. "3,1,2"). Out-of-range or duplicate numbers are
// skipped; if nothing usable remains, the reranker falls back to the first
// topN documents in original order rather than failing.
type LLMReranker struct {
	model llms.Model
}

// NewLLMReranker creates a reranker backed by the given chat model.
func NewLLMReranker(model llms.Model) *LLMReranker {
	return &LLMReranker{model: model}
}

// Rerank implements Reranker.
func (r *LLMReranker) Rerank(ctx context.Context, query string, docs []Document, topN int) ([]ScoredDocument, error) {
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}

	prompt := buildPrompt(query, docs, topN)

	resp, err := llms.GenerateFromSinglePrompt(ctx, r.model, prompt,
		llms.WithTemperature(0.0),
		llms.WithMaxTokens(200),
	)
	if err != nil {
		return nil, fmt.Errorf("reranker model call: %w", err)
	}

	picked := parseSelection(resp, len(docs), topN)
	if len(picked) == 0 {
		return fallbackRank(docs, topN), nil
	}

	result := make([]ScoredDocument, len(picked))
	for i, idx := range picked {
		result[i] = ScoredDocument{Document: docs[idx], OriginalRank: idx}
	}
	return result, nil
}

// buildPrompt renders the numbered-candidate selection prompt.
func buildPrompt(query string, docs []Document, topN int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a strict reranker for retrieval.\nQuestion: %s\n\n", query)
	fmt.Fprintf(&b, "Select the TOP %d candidate numbers in best-first order.\n", topN)
	b.WriteString("Return ONLY comma-separated numbers (example: 3,1,2). No extra text.\n\nCandidates:\n")

	for i, doc := range docs {
		content := doc.Content
		if runes := []rune(content); len(runes) > maxCandidateChars {
			content = string(runes[:maxCandidateChars])
		}
		fmt.Fprintf(&b, "[%d] source=%s, pages=%s\n%s\n", i+1, doc.Source, doc.Pages, content)
	}
	return b.String()
}

// parseSelection extracts up to topN unique in-range 0-based indices from a
// comma-separated 1-based selection string.
func parseSelection(resp string, candidateCount, topN int) []int {
	var picked []int
	seen := make(map[int]bool)

	for _, part := range strings.Split(strings.TrimSpace(resp), ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		idx := n - 1
		if idx < 0 || idx >= candidateCount || seen[idx] {
			continue
		}
		seen[idx] = true
		picked = append(picked, idx)
		if len(picked) >= topN {
			break
		}
	}
	return picked
}
