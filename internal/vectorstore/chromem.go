package vectorstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fortressd/internal/tenant"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("fortressd.vectorstore.chromem")

// passagesCollection is the collection name inside each namespace's index.
const passagesCollection = "passages"

// bootstrapID identifies the placeholder entry seeded into a fresh index so
// incremental appends always have a valid structure to extend. Bootstrap
// entries never surface in search results.
const bootstrapID = "__bootstrap__"

// ChromemConfig holds configuration for the chromem-go backed store.
type ChromemConfig struct {
	// Root is the storage root. Each namespace's index lives in its own
	// directory below <Root>/indexes/.
	Root string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: storage root required", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store on chromem-go, an embeddable pure-Go vector
// database with gob-file persistence. One persistent DB directory per
// namespace; the directory is the unit of durability.
type ChromemStore struct {
	config   ChromemConfig
	embedder Embedder
	logger   *zap.Logger

	mu      sync.Mutex
	handles map[tenant.Namespace]*chromem.DB
}

// NewChromemStore creates a ChromemStore.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	logger.Info("chromem store initialized",
		zap.String("root", config.Root),
		zap.Bool("compress", config.Compress),
	)

	return &ChromemStore{
		config:   config,
		embedder: embedder,
		logger:   logger,
		handles:  make(map[tenant.Namespace]*chromem.DB),
	}, nil
}

// embeddingFunc adapts the Embedder to chromem's query-time callback.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Exists reports whether a durable index directory exists for the namespace.
func (s *ChromemStore) Exists(ns tenant.Namespace) bool {
	info, err := os.Stat(ns.IndexDir(s.config.Root))
	return err == nil && info.IsDir()
}

// loadOrCreate opens the namespace's persistent DB, creating the directory
// and seeding the bootstrap entry on first use. The seed vector must match
// the dimension of the vectors that will live in the index; only the commit
// path creates indexes, so one of its staged vectors is passed through.
func (s *ChromemStore) loadOrCreate(ctx context.Context, ns tenant.Namespace, seed []float32) (*chromem.Collection, error) {
	s.mu.Lock()
	db, ok := s.handles[ns]
	s.mu.Unlock()

	if !ok {
		fresh := !s.Exists(ns)

		var err error
		db, err = chromem.NewPersistentDB(ns.IndexDir(s.config.Root), s.config.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening index for %s: %w", ns, err)
		}

		collection, err := db.GetOrCreateCollection(passagesCollection, nil, s.embeddingFunc())
		if err != nil {
			return nil, fmt.Errorf("opening collection for %s: %w", ns, err)
		}

		if fresh {
			embedding := seed
			if embedding == nil {
				vec, err := s.embedder.EmbedQuery(ctx, "init")
				if err != nil {
					return nil, fmt.Errorf("seeding index for %s: %w", ns, err)
				}
				embedding = vec
			}
			err := collection.AddDocument(ctx, chromem.Document{
				ID:        bootstrapID,
				Content:   "init",
				Embedding: embedding,
				Metadata:  map[string]string{"source": "init"},
			})
			if err != nil {
				return nil, fmt.Errorf("seeding index for %s: %w", ns, err)
			}
			s.logger.Info("created namespace index",
				zap.String("namespace", ns.String()),
			)
		}

		s.mu.Lock()
		if existing, ok := s.handles[ns]; ok {
			db = existing
		} else {
			s.handles[ns] = db
		}
		s.mu.Unlock()
	}

	collection, err := db.GetOrCreateCollection(passagesCollection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("opening collection for %s: %w", ns, err)
	}
	return collection, nil
}

// Stage implements Store. No index state is touched; embedding failures
// surface here so callers can abort before committing anything durable.
func (s *ChromemStore) Stage(ctx context.Context, ns tenant.Namespace, docs []Document) (StagedBatch, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Stage")
	defer span.End()
	span.SetAttributes(
		attribute.String("namespace", ns.String()),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		AppendsTotal.WithLabelValues("embedding_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(docs) {
		AppendsTotal.WithLabelValues("embedding_error").Inc()
		return nil, fmt.Errorf("%w: got %d vectors for %d documents", ErrEmbeddingFailed, len(vectors), len(docs))
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: vectors[i],
			Metadata:  doc.Metadata,
		}
	}

	return &chromemBatch{store: s, ns: ns, docs: chromemDocs, seed: vectors[0]}, nil
}

// chromemBatch carries embedded documents between Stage and Commit.
type chromemBatch struct {
	store *ChromemStore
	ns    tenant.Namespace
	docs  []chromem.Document
	seed  []float32
}

// Commit implements StagedBatch.
func (b *chromemBatch) Commit(ctx context.Context) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("namespace", b.ns.String()),
		attribute.Int("document_count", len(b.docs)),
	)

	start := time.Now()

	collection, err := b.store.loadOrCreate(ctx, b.ns, b.seed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		AppendsTotal.WithLabelValues("error").Inc()
		return err
	}

	if err := collection.AddDocuments(ctx, b.docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		AppendsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("appending to index for %s: %w", b.ns, err)
	}

	AppendsTotal.WithLabelValues("success").Inc()
	PassagesAppended.Add(float64(len(b.docs)))
	AppendDuration.Observe(time.Since(start).Seconds())

	b.store.logger.Debug("appended passages",
		zap.String("namespace", b.ns.String()),
		zap.Int("count", len(b.docs)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Search implements Store.
func (s *ChromemStore) Search(ctx context.Context, ns tenant.Namespace, query string, k int) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("namespace", ns.String()),
		attribute.Int("k", k),
	)

	if k <= 0 || !s.Exists(ns) {
		return []SearchResult{}, nil
	}

	start := time.Now()

	collection, err := s.loadOrCreate(ctx, ns, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		SearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	// Over-fetch by one so the bootstrap entry can be dropped without
	// shrinking the caller's k. chromem rejects nResults > count.
	limit := k + 1
	if count := collection.Count(); limit > count {
		limit = count
	}
	if limit == 0 {
		return []SearchResult{}, nil
	}

	hits, err := collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		SearchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("searching index for %s: %w", ns, err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.ID == bootstrapID {
			continue
		}
		results = append(results, SearchResult{
			ID:       hit.ID,
			Content:  hit.Content,
			Score:    hit.Similarity,
			Metadata: hit.Metadata,
		})
		if len(results) == k {
			break
		}
	}

	SearchesTotal.WithLabelValues("success").Inc()
	SearchDuration.Observe(time.Since(start).Seconds())

	return results, nil
}

// Close implements Store. chromem handles are file-backed and need no
// explicit teardown; the handle cache is dropped.
func (s *ChromemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles = make(map[tenant.Namespace]*chromem.DB)
	return nil
}
