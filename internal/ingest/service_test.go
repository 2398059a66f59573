package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fortressd/internal/fingerprint"
	"github.com/fyrsmithlabs/fortressd/internal/manifest"
	"github.com/fyrsmithlabs/fortressd/internal/tenant"
	"github.com/fyrsmithlabs/fortressd/internal/vectorstore"
)

// fakeStore records committed documents in memory.
type fakeStore struct {
	mu        sync.Mutex
	appended  map[tenant.Namespace][]vectorstore.Document
	stageErr  error
	commitErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{appended: make(map[tenant.Namespace][]vectorstore.Document)}
}

func (f *fakeStore) Stage(ctx context.Context, ns tenant.Namespace, docs []vectorstore.Document) (vectorstore.StagedBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stageErr != nil {
		return nil, f.stageErr
	}
	return &fakeBatch{store: f, ns: ns, docs: docs}, nil
}

type fakeBatch struct {
	store *fakeStore
	ns    tenant.Namespace
	docs  []vectorstore.Document
}

func (b *fakeBatch) Commit(ctx context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if b.store.commitErr != nil {
		return b.store.commitErr
	}
	b.store.appended[b.ns] = append(b.store.appended[b.ns], b.docs...)
	return nil
}

func (f *fakeStore) Search(ctx context.Context, ns tenant.Namespace, query string, k int) ([]vectorstore.SearchResult, error) {
	return []vectorstore.SearchResult{}, nil
}

func (f *fakeStore) Exists(ns tenant.Namespace) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended[ns]) > 0
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) docs(ns tenant.Namespace) []vectorstore.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appended[ns]
}

func testTenancy() tenant.Tenancy {
	return tenant.Tenancy{TenantID: "acme", DeptID: "finance"}
}

func newTestService(t *testing.T, root string, store vectorstore.Store) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Root:         root,
		Mode:         tenant.ModeDept,
		ChunkSize:    100,
		ChunkOverlap: 20,
	}, store, fingerprint.NewTextExtractor(), zap.NewNop())
	require.NoError(t, err)
	return svc
}

func ingestText(t *testing.T, svc *Service, text, docID, version string) (*Outcome, error) {
	t.Helper()
	return svc.Ingest(context.Background(), Request{
		Tenancy:  testTenancy(),
		DocID:    docID,
		Version:  version,
		Source:   strings.NewReader(text),
		FileName: docID + ".txt",
	})
}

func TestIngestFirstVersion(t *testing.T) {
	root := t.TempDir()
	store := newFakeStore()
	svc := newTestService(t, root, store)

	text := strings.Repeat("travel expense policy ", 20)
	outcome, err := ingestText(t, svc, text, "policy", "1")
	require.NoError(t, err)

	assert.Equal(t, StatusIngested, outcome.Status)
	assert.Equal(t, "policy", outcome.DocID)
	assert.Equal(t, "1", outcome.Version)
	assert.Greater(t, outcome.Chunks, 1)
	assert.Equal(t, tenant.Namespace("acme__finance__knowledgebase"), outcome.Namespace)

	docs := store.docs(outcome.Namespace)
	require.Len(t, docs, outcome.Chunks)
	assert.Equal(t, "policy::v1::chunk-0", docs[0].ID)
	assert.Equal(t, "policy", docs[0].Metadata["doc_id"])
	assert.Equal(t, "1", docs[0].Metadata["version"])
	assert.Equal(t, "policy.txt", docs[0].Metadata["source"])
	assert.Equal(t, "1", docs[0].Metadata["pages"])

	m, err := manifest.Load(outcome.Namespace.ManifestPath(root))
	require.NoError(t, err)
	active := m.ActiveVersion("policy")
	require.NotNil(t, active)
	assert.Equal(t, manifest.StatusActive, active.Status)
	assert.Equal(t, outcome.Chunks, active.Chunks)
}

func TestIngestDuplicateContentSkips(t *testing.T) {
	root := t.TempDir()
	store := newFakeStore()
	svc := newTestService(t, root, store)

	text := strings.Repeat("identical content ", 20)
	first, err := ingestText(t, svc, text, "policy", "1")
	require.NoError(t, err)

	second, err := ingestText(t, svc, text, "policy", "2")
	require.NoError(t, err)
	assert.Equal(t, StatusSkippedDuplicate, second.Status)
	assert.Zero(t, second.Chunks)
	// The outcome reports the version that stays effective, not the
	// requested label.
	assert.Equal(t, "1", second.Version)

	// The index and manifest are untouched by the duplicate.
	assert.Len(t, store.docs(first.Namespace), first.Chunks)
	m, err := manifest.Load(first.Namespace.ManifestPath(root))
	require.NoError(t, err)
	assert.Equal(t, "1", m.Docs["policy"].ActiveVersion)
	assert.NotContains(t, m.Docs["policy"].Versions, "2")
}

func TestIngestSupersedesPriorVersion(t *testing.T) {
	root := t.TempDir()
	store := newFakeStore()
	svc := newTestService(t, root, store)

	first, err := ingestText(t, svc, strings.Repeat("old content ", 20), "policy", "1")
	require.NoError(t, err)

	second, err := ingestText(t, svc, strings.Repeat("new content ", 20), "policy", "2")
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, second.Status)

	// Append-only: both versions' passages remain in the index.
	assert.Len(t, store.docs(first.Namespace), first.Chunks+second.Chunks)

	m, err := manifest.Load(first.Namespace.ManifestPath(root))
	require.NoError(t, err)
	entry := m.Docs["policy"]
	assert.Equal(t, "2", entry.ActiveVersion)
	assert.Equal(t, manifest.StatusDeprecated, entry.Versions["1"].Status)
	assert.Equal(t, manifest.StatusActive, entry.Versions["2"].Status)
}

func TestIngestEmptySource(t *testing.T) {
	root := t.TempDir()
	store := newFakeStore()
	svc := newTestService(t, root, store)

	_, err := ingestText(t, svc, "   \n\f  \n", "policy", "1")
	assert.ErrorIs(t, err, fingerprint.ErrEmptySource)

	ns, rerr := tenant.Resolve(testTenancy(), tenant.ModeDept)
	require.NoError(t, rerr)
	assert.Empty(t, store.docs(ns))

	m, merr := manifest.Load(ns.ManifestPath(root))
	require.NoError(t, merr)
	assert.Empty(t, m.Docs)
}

func TestIngestFileNotFound(t *testing.T) {
	root := t.TempDir()
	svc := newTestService(t, root, newFakeStore())

	_, err := svc.IngestFile(context.Background(), testTenancy(), "policy", "1",
		filepath.Join(root, "missing.txt"))
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestIngestEmbeddingFailureThenRetry(t *testing.T) {
	root := t.TempDir()
	store := newFakeStore()
	store.stageErr = errors.New("embedding backend down")
	svc := newTestService(t, root, store)

	text := strings.Repeat("content ", 20)
	_, err := ingestText(t, svc, text, "policy", "1")
	require.Error(t, err)

	// Embeddings are staged before the manifest commit, so the outage left
	// nothing durable and the duplicate check cannot trap the retry.
	ns, rerr := tenant.Resolve(testTenancy(), tenant.ModeDept)
	require.NoError(t, rerr)
	m, merr := manifest.Load(ns.ManifestPath(root))
	require.NoError(t, merr)
	assert.Empty(t, m.Docs)
	assert.Empty(t, store.docs(ns))

	store.stageErr = nil
	outcome, err := ingestText(t, svc, text, "policy", "1")
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, outcome.Status)
	assert.Len(t, store.docs(ns), outcome.Chunks)

	m, merr = manifest.Load(ns.ManifestPath(root))
	require.NoError(t, merr)
	assert.Equal(t, "1", m.Docs["policy"].ActiveVersion)
}

func TestIngestCommitFailureAfterManifestCommit(t *testing.T) {
	root := t.TempDir()
	store := newFakeStore()
	store.commitErr = errors.New("index write failed")
	svc := newTestService(t, root, store)

	_, err := ingestText(t, svc, strings.Repeat("content ", 20), "policy", "1")
	require.Error(t, err)

	// The manifest commit precedes the index write, so an index write
	// failure leaves an active version without passages. That divergence
	// window is accepted for write failures and crashes only.
	ns, rerr := tenant.Resolve(testTenancy(), tenant.ModeDept)
	require.NoError(t, rerr)
	m, merr := manifest.Load(ns.ManifestPath(root))
	require.NoError(t, merr)
	assert.Equal(t, "1", m.Docs["policy"].ActiveVersion)
	assert.Empty(t, store.docs(ns))
}

func TestIngestRequestValidation(t *testing.T) {
	svc := newTestService(t, t.TempDir(), newFakeStore())

	tests := []struct {
		name string
		req  Request
	}{
		{name: "missing doc id", req: Request{Tenancy: testTenancy(), Version: "1", Source: strings.NewReader("x")}},
		{name: "missing version", req: Request{Tenancy: testTenancy(), DocID: "d", Source: strings.NewReader("x")}},
		{name: "missing source", req: Request{Tenancy: testTenancy(), DocID: "d", Version: "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid", config: Config{Root: "/tmp/x", ChunkSize: 900, ChunkOverlap: 150}},
		{name: "missing root", config: Config{ChunkSize: 900, ChunkOverlap: 150}, wantErr: true},
		{name: "zero size", config: Config{Root: "/tmp/x", ChunkOverlap: 0}, wantErr: true},
		{name: "overlap >= size", config: Config{Root: "/tmp/x", ChunkSize: 100, ChunkOverlap: 100}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIngestDistinctVersionIDsKeepHistory(t *testing.T) {
	root := t.TempDir()
	store := newFakeStore()
	svc := newTestService(t, root, store)

	for i, text := range []string{"alpha content", "beta content", "gamma content"} {
		_, err := ingestText(t, svc, strings.Repeat(text+" ", 15), "policy", string(rune('1'+i)))
		require.NoError(t, err)
	}

	ns, err := tenant.Resolve(testTenancy(), tenant.ModeDept)
	require.NoError(t, err)
	m, err := manifest.Load(ns.ManifestPath(root))
	require.NoError(t, err)

	entry := m.Docs["policy"]
	require.Len(t, entry.Versions, 3)
	assert.Equal(t, "3", entry.ActiveVersion)

	activeCount := 0
	for _, rec := range entry.Versions {
		if rec.Status == manifest.StatusActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
}
