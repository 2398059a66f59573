// Package ingest orchestrates document ingestion: fingerprinting, governance
// decisions, and append-only index updates.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fortressd/internal/fingerprint"
	"github.com/fyrsmithlabs/fortressd/internal/logging"
	"github.com/fyrsmithlabs/fortressd/internal/manifest"
	"github.com/fyrsmithlabs/fortressd/internal/tenant"
	"github.com/fyrsmithlabs/fortressd/internal/vectorstore"
)

var tracer = otel.Tracer("fortressd/ingest")

var (
	// ErrSourceNotFound indicates the ingestion source path does not exist.
	ErrSourceNotFound = errors.New("ingest: source not found")
	// ErrInvalidRequest indicates a request missing required fields.
	ErrInvalidRequest = errors.New("ingest: invalid request")
)

// Status reports what an ingestion call did.
type Status string

const (
	// StatusIngested means a new version was activated and indexed.
	StatusIngested Status = "ingested"
	// StatusSkippedDuplicate means the content hash matched the active
	// version, so nothing changed.
	StatusSkippedDuplicate Status = "skipped_duplicate"
)

// Request describes one document to ingest.
type Request struct {
	Tenancy  tenant.Tenancy
	DocID    string
	Version  string
	Source   io.Reader
	FileName string
}

// Outcome is the result of an ingestion call.
type Outcome struct {
	Status    Status
	Namespace tenant.Namespace
	DocID     string
	Version   string
	Chunks    int
}

// Config holds ingestion parameters.
type Config struct {
	Root         string
	Mode         tenant.Mode
	ChunkSize    int
	ChunkOverlap int
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: root is required", ErrInvalidRequest)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidRequest)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, size)", ErrInvalidRequest)
	}
	return nil
}

// Service runs the ingestion pipeline. Ingestions into the same namespace are
// serialized; distinct namespaces proceed in parallel.
type Service struct {
	config    Config
	store     vectorstore.Store
	extractor fingerprint.Extractor
	logger    *zap.Logger

	locks sync.Map // tenant.Namespace -> *sync.Mutex
}

// NewService creates an ingestion service.
func NewService(config Config, store vectorstore.Store, extractor fingerprint.Extractor, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidRequest)
	}
	if extractor == nil {
		return nil, fmt.Errorf("%w: extractor is required", ErrInvalidRequest)
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
		extractor: extractor,
		logger:    logger,
	}, nil
}

// IngestFile opens path and ingests its contents. A missing file maps to
// ErrSourceNotFound.
func (s *Service) IngestFile(ctx context.Context, t tenant.Tenancy, docID, version, path string) (*Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()

	return s.Ingest(ctx, Request{
		Tenancy:  t,
		DocID:    docID,
		Version:  version,
		Source:   f,
		FileName: filepath.Base(path),
	})
}

// Ingest runs the full pipeline for one document version.
//
// Embeddings are staged before the governance manifest is committed, so an
// embedding provider failure leaves no durable state and the same content can
// simply be retried. The manifest commit still precedes the index write; a
// crash or write failure between the two leaves an active version with no
// indexed passages, and the window is logged, not hidden.
func (s *Service) Ingest(ctx context.Context, req Request) (*Outcome, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ns, err := tenant.Resolve(req.Tenancy, s.config.Mode)
	if err != nil {
		return nil, fmt.Errorf("resolving namespace: %w", err)
	}

	ctx, span := tracer.Start(ctx, "ingest.Ingest",
		trace.WithAttributes(
			attribute.String("namespace", ns.String()),
			attribute.String("doc_id", req.DocID),
			attribute.String("version", req.Version),
		))
	defer span.End()

	ctx = logging.WithNamespace(ctx, ns.String())

	opID := uuid.NewString()
	logger := s.logger.With(
		zap.String("operation_id", opID),
		zap.String("doc_id", req.DocID),
		zap.String("version", req.Version),
	).With(logging.ContextFields(ctx)...)

	mu := s.namespaceLock(ns)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()

	raw, err := io.ReadAll(req.Source)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}

	hash, err := fingerprint.Hash(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("hashing source: %w", err)
	}

	manifestPath := ns.ManifestPath(s.config.Root)
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	if active := m.ActiveVersion(req.DocID); active != nil && active.DocHash == hash {
		activeLabel := activeVersionLabel(m, req.DocID)
		IngestionsTotal.WithLabelValues("duplicate").Inc()
		logger.Info("duplicate content, skipping",
			zap.String("doc_hash", hash),
			zap.String("active_version", activeLabel))
		// The active version is the effective one; the requested label was
		// never recorded.
		return &Outcome{
			Status:    StatusSkippedDuplicate,
			Namespace: ns,
			DocID:     req.DocID,
			Version:   activeLabel,
		}, nil
	}

	pages, err := s.extractor.Extract(ctx, bytes.NewReader(raw))
	if err != nil {
		IngestionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("extracting pages: %w", err)
	}

	chunks := fingerprint.ChunkPages(pages, s.config.ChunkSize, s.config.ChunkOverlap)
	if len(chunks) == 0 {
		IngestionsTotal.WithLabelValues("error").Inc()
		return nil, fingerprint.ErrEmptySource
	}

	records := fingerprint.BuildRecords(req.DocID, req.Version, hash, req.FileName, chunks)

	// Stage embeddings before the manifest commit. A provider failure here
	// aborts with nothing written, so a retry of the same content is not
	// trapped by the duplicate check.
	batch, err := s.store.Stage(ctx, ns, recordsToDocuments(records))
	if err != nil {
		IngestionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("staging embeddings: %w", err)
	}

	m.RecordIngestion(req.DocID, req.Version, hash, req.FileName, len(chunks))

	if err := manifest.Save(manifestPath, m); err != nil {
		IngestionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("saving manifest: %w", err)
	}

	if err := batch.Commit(ctx); err != nil {
		IngestionsTotal.WithLabelValues("error").Inc()
		logger.Error("index write failed after manifest commit, namespace needs out-of-band repair",
			zap.Error(err))
		return nil, fmt.Errorf("appending passages: %w", err)
	}

	IngestionsTotal.WithLabelValues("ingested").Inc()
	ChunksIngested.Add(float64(len(chunks)))
	IngestDuration.Observe(time.Since(start).Seconds())

	logger.Info("document ingested",
		zap.String("doc_hash", hash),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)))

	return &Outcome{
		Status:    StatusIngested,
		Namespace: ns,
		DocID:     req.DocID,
		Version:   req.Version,
		Chunks:    len(chunks),
	}, nil
}

func (s *Service) namespaceLock(ns tenant.Namespace) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(ns, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func validateRequest(req Request) error {
	if req.DocID == "" {
		return fmt.Errorf("%w: doc id is required", ErrInvalidRequest)
	}
	if req.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidRequest)
	}
	if req.Source == nil {
		return fmt.Errorf("%w: source is required", ErrInvalidRequest)
	}
	return nil
}

func activeVersionLabel(m *manifest.Manifest, docID string) string {
	entry, ok := m.Docs[docID]
	if !ok {
		return ""
	}
	return entry.ActiveVersion
}

func recordsToDocuments(records []fingerprint.Record) []vectorstore.Document {
	docs := make([]vectorstore.Document, len(records))
	for i, rec := range records {
		docs[i] = vectorstore.Document{
			ID:      rec.ID,
			Content: rec.Text,
			Metadata: map[string]string{
				"doc_id":      rec.DocID,
				"version":     rec.Version,
				"doc_hash":    rec.DocHash,
				"source":      rec.Source,
				"pages":       rec.Pages,
				"chunk_index": strconv.Itoa(rec.ChunkIndex),
			},
		}
	}
	return docs
}
