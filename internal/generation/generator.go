// Package generation produces grounded answers from reranked passages.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// NotFoundAnswer is returned verbatim when the context cannot answer the
// question. Callers short-circuit to this value when retrieval comes back
// empty, without spending a model call.
const NotFoundAnswer = "Not found in the provided documents."

// ErrNoModel indicates the generator was constructed without a chat model.
var ErrNoModel = errors.New("generation: no model configured")

// Passage is a context block handed to the answer model.
type Passage struct {
	Content string
	Source  string
	Pages   string
}

// Generator answers a question from the supplied passages only.
type Generator interface {
	Generate(ctx context.Context, question string, passages []Passage) (string, error)
}

// LLMGenerator answers with a chat model constrained to the given context.
type LLMGenerator struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

// Option configures an LLMGenerator.
type Option func(*LLMGenerator)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *LLMGenerator) { g.temperature = t }
}

// WithMaxTokens overrides the completion token cap.
func WithMaxTokens(n int) Option {
	return func(g *LLMGenerator) { g.maxTokens = n }
}

// NewLLMGenerator creates a generator backed by the given chat model.
func NewLLMGenerator(model llms.Model, opts ...Option) (*LLMGenerator, error) {
	if model == nil {
		return nil, ErrNoModel
	}

	g := &LLMGenerator{
		model:       model,
		temperature: 0.1,
		maxTokens:   700,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate implements Generator. With no passages it returns NotFoundAnswer
// without calling the model.
func (g *LLMGenerator) Generate(ctx context.Context, question string, passages []Passage) (string, error) {
	if len(passages) == 0 {
		return NotFoundAnswer, nil
	}

	resp, err := llms.GenerateFromSinglePrompt(ctx, g.model, buildAnswerPrompt(question, passages),
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generation model call: %w", err)
	}

	answer := strings.TrimSpace(resp)
	if answer == "" {
		return NotFoundAnswer, nil
	}
	return answer, nil
}

// buildAnswerPrompt renders the grounded-answer prompt with cited context
// blocks.
func buildAnswerPrompt(question string, passages []Passage) string {
	var b strings.Builder
	b.WriteString("Answer the question using ONLY the context below.\n")
	b.WriteString("Cite sources inline as [source, pages].\n")
	fmt.Fprintf(&b, "If the context does not contain the answer, reply exactly: %s\n\n", NotFoundAnswer)
	b.WriteString("Context:\n")

	for _, p := range passages {
		fmt.Fprintf(&b, "[%s, pages %s]\n%s\n\n", p.Source, p.Pages, p.Content)
	}

	fmt.Fprintf(&b, "Question: %s\nAnswer:", question)
	return b.String()
}
