// Package retrieval orchestrates the answer pipeline: vector search, rerank,
// and grounded generation.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fortressd/internal/generation"
	"github.com/fyrsmithlabs/fortressd/internal/logging"
	"github.com/fyrsmithlabs/fortressd/internal/reranker"
	"github.com/fyrsmithlabs/fortressd/internal/tenant"
	"github.com/fyrsmithlabs/fortressd/internal/vectorstore"
)

var tracer = otel.Tracer("fortressd/retrieval")

var (
	// ErrInvalidRequest indicates a request missing required fields.
	ErrInvalidRequest = errors.New("retrieval: invalid request")
)

// Hit is one retrieved passage with its provenance metadata.
type Hit struct {
	ID      string  `json:"id"`
	DocID   string  `json:"doc_id"`
	Version string  `json:"version"`
	Source  string  `json:"source"`
	Pages   string  `json:"pages"`
	Score   float32 `json:"score"`
	Content string  `json:"content"`
}

// SourceRef cites one source file and its contributing pages.
type SourceRef struct {
	Source string `json:"source"`
	Pages  string `json:"pages"`
}

// Latency breaks down where answer time was spent.
type Latency struct {
	Retrieval  time.Duration `json:"retrieval"`
	Rerank     time.Duration `json:"rerank"`
	Generation time.Duration `json:"generation"`
	Total      time.Duration `json:"total"`
}

// AnswerRequest asks a question against one namespace.
type AnswerRequest struct {
	Tenancy  tenant.Tenancy
	Question string
	TopK     int
	TopN     int
	Debug    bool
}

// Answer is the generated response with citations and timing.
type Answer struct {
	Text    string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
	Latency Latency     `json:"latency"`

	// Populated only when AnswerRequest.Debug is set.
	Retrieved []Hit `json:"retrieved,omitempty"`
	Reranked  []Hit `json:"reranked,omitempty"`
}

// Config holds retrieval parameters.
type Config struct {
	Mode tenant.Mode
	TopK int
	TopN int
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidRequest)
	}
	if c.TopN <= 0 || c.TopN > c.TopK {
		return fmt.Errorf("%w: top_n must be in (0, top_k]", ErrInvalidRequest)
	}
	return nil
}

// Service answers questions over namespace-scoped indexes.
type Service struct {
	config    Config
	store     vectorstore.Store
	reranker  reranker.Reranker
	generator generation.Generator
	logger    *zap.Logger
}

// NewService creates a retrieval service.
func NewService(config Config, store vectorstore.Store, rr reranker.Reranker, gen generation.Generator, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidRequest)
	}
	if rr == nil {
		return nil, fmt.Errorf("%w: reranker is required", ErrInvalidRequest)
	}
	if gen == nil {
		return nil, fmt.Errorf("%w: generator is required", ErrInvalidRequest)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		config:    config,
		store:     store,
		reranker:  rr,
		generator: gen,
		logger:    logger,
	}, nil
}

// Retrieve returns the topK nearest passages for a query. A namespace that
// was never ingested into yields an empty slice.
func (s *Service) Retrieve(ctx context.Context, t tenant.Tenancy, query string, topK int) ([]Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if topK <= 0 {
		topK = s.config.TopK
	}

	ns, err := tenant.Resolve(t, s.config.Mode)
	if err != nil {
		return nil, fmt.Errorf("resolving namespace: %w", err)
	}

	results, err := s.store.Search(ctx, ns, query, topK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, res := range results {
		hits[i] = Hit{
			ID:      res.ID,
			DocID:   res.Metadata["doc_id"],
			Version: res.Metadata["version"],
			Source:  res.Metadata["source"],
			Pages:   res.Metadata["pages"],
			Score:   res.Score,
			Content: res.Content,
		}
	}
	return hits, nil
}

// Answer runs the full pipeline for one question. Zero retrieved candidates
// short-circuit to the fixed not-found answer without a generation call.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	if req.Question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}
	topN := req.TopN
	if topN <= 0 {
		topN = s.config.TopN
	}
	if topN > topK {
		topN = topK
	}

	ctx, span := tracer.Start(ctx, "retrieval.Answer",
		trace.WithAttributes(
			attribute.Int("top_k", topK),
			attribute.Int("top_n", topN),
		))
	defer span.End()

	opID := uuid.NewString()
	logger := s.logger.With(zap.String("operation_id", opID)).
		With(logging.ContextFields(ctx)...)

	total := time.Now()

	start := time.Now()
	hits, err := s.Retrieve(ctx, req.Tenancy, req.Question, topK)
	if err != nil {
		QueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	retrievalTook := time.Since(start)

	answer := &Answer{Sources: []SourceRef{}}
	if req.Debug {
		answer.Retrieved = hits
	}

	if len(hits) == 0 {
		QueriesTotal.WithLabelValues("not_found").Inc()
		answer.Text = generation.NotFoundAnswer
		answer.Latency = Latency{Retrieval: retrievalTook, Total: time.Since(total)}
		logger.Info("no candidates retrieved",
			zap.Duration("retrieval", retrievalTook))
		return answer, nil
	}

	start = time.Now()
	reranked, err := s.reranker.Rerank(ctx, req.Question, hitsToCandidates(hits), topN)
	if err != nil {
		QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("reranking: %w", err)
	}
	rerankTook := time.Since(start)

	picked := scoredToHits(hits, reranked)
	if req.Debug {
		answer.Reranked = picked
	}

	start = time.Now()
	text, err := s.generator.Generate(ctx, req.Question, hitsToPassages(picked))
	if err != nil {
		QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	generationTook := time.Since(start)

	answer.Text = text
	answer.Sources = collectSources(picked)
	answer.Latency = Latency{
		Retrieval:  retrievalTook,
		Rerank:     rerankTook,
		Generation: generationTook,
		Total:      time.Since(total),
	}

	QueriesTotal.WithLabelValues("answered").Inc()
	QueryDuration.Observe(answer.Latency.Total.Seconds())

	logger.Info("question answered",
		zap.Int("retrieved", len(hits)),
		zap.Int("reranked", len(picked)),
		zap.Duration("retrieval", retrievalTook),
		zap.Duration("rerank", rerankTook),
		zap.Duration("generation", generationTook))

	return answer, nil
}

func hitsToCandidates(hits []Hit) []reranker.Document {
	docs := make([]reranker.Document, len(hits))
	for i, h := range hits {
		docs[i] = reranker.Document{
			ID:      h.ID,
			Content: h.Content,
			Source:  h.Source,
			Pages:   h.Pages,
			Score:   h.Score,
		}
	}
	return docs
}

func scoredToHits(hits []Hit, scored []reranker.ScoredDocument) []Hit {
	picked := make([]Hit, 0, len(scored))
	for _, doc := range scored {
		if doc.OriginalRank >= 0 && doc.OriginalRank < len(hits) {
			picked = append(picked, hits[doc.OriginalRank])
		}
	}
	return picked
}

func hitsToPassages(hits []Hit) []generation.Passage {
	passages := make([]generation.Passage, len(hits))
	for i, h := range hits {
		passages[i] = generation.Passage{
			Content: h.Content,
			Source:  h.Source,
			Pages:   h.Pages,
		}
	}
	return passages
}

// collectSources deduplicates source/pages pairs preserving rank order.
func collectSources(hits []Hit) []SourceRef {
	seen := make(map[SourceRef]bool)
	refs := make([]SourceRef, 0, len(hits))
	for _, h := range hits {
		ref := SourceRef{Source: h.Source, Pages: h.Pages}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}
