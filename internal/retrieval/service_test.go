package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fortressd/internal/generation"
	"github.com/fyrsmithlabs/fortressd/internal/reranker"
	"github.com/fyrsmithlabs/fortressd/internal/tenant"
	"github.com/fyrsmithlabs/fortressd/internal/vectorstore"
)

type fakeSearchStore struct {
	results   []vectorstore.SearchResult
	searchErr error
	lastNS    tenant.Namespace
	lastK     int
}

func (f *fakeSearchStore) Stage(ctx context.Context, ns tenant.Namespace, docs []vectorstore.Document) (vectorstore.StagedBatch, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSearchStore) Search(ctx context.Context, ns tenant.Namespace, query string, k int) ([]vectorstore.SearchResult, error) {
	f.lastNS = ns
	f.lastK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeSearchStore) Exists(ns tenant.Namespace) bool { return len(f.results) > 0 }
func (f *fakeSearchStore) Close() error                    { return nil }

type fakeGenerator struct {
	answer   string
	err      error
	passages []generation.Passage
	calls    int
}

func (f *fakeGenerator) Generate(ctx context.Context, question string, passages []generation.Passage) (string, error) {
	f.calls++
	f.passages = passages
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeReranker struct {
	err error
	// pick reverses order keeping topN when set, otherwise first topN.
	reverse bool
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, docs []reranker.Document, topN int) ([]reranker.ScoredDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	if topN > len(docs) {
		topN = len(docs)
	}
	result := make([]reranker.ScoredDocument, 0, topN)
	if f.reverse {
		for i := len(docs) - 1; i >= 0 && len(result) < topN; i-- {
			result = append(result, reranker.ScoredDocument{Document: docs[i], OriginalRank: i})
		}
		return result, nil
	}
	for i := 0; i < topN; i++ {
		result = append(result, reranker.ScoredDocument{Document: docs[i], OriginalRank: i})
	}
	return result, nil
}

func searchResults() []vectorstore.SearchResult {
	return []vectorstore.SearchResult{
		{
			ID: "policy::v1::chunk-0", Content: "Travel requires approval.", Score: 0.92,
			Metadata: map[string]string{"doc_id": "policy", "version": "1", "source": "policy.pdf", "pages": "3"},
		},
		{
			ID: "policy::v1::chunk-4", Content: "Meals capped at 50 EUR.", Score: 0.81,
			Metadata: map[string]string{"doc_id": "policy", "version": "1", "source": "policy.pdf", "pages": "7,8"},
		},
		{
			ID: "handbook::v2::chunk-1", Content: "Office hours are flexible.", Score: 0.55,
			Metadata: map[string]string{"doc_id": "handbook", "version": "2", "source": "handbook.pdf", "pages": "1"},
		},
	}
}

func testTenancy() tenant.Tenancy {
	return tenant.Tenancy{TenantID: "acme", DeptID: "finance"}
}

func newTestService(t *testing.T, store vectorstore.Store, rr reranker.Reranker, gen generation.Generator) *Service {
	t.Helper()
	svc, err := NewService(Config{Mode: tenant.ModeDept, TopK: 8, TopN: 2}, store, rr, gen, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestRetrieveMapsMetadata(t *testing.T) {
	store := &fakeSearchStore{results: searchResults()}
	svc := newTestService(t, store, &fakeReranker{}, &fakeGenerator{answer: "x"})

	hits, err := svc.Retrieve(context.Background(), testTenancy(), "travel", 5)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, tenant.Namespace("acme__finance__knowledgebase"), store.lastNS)
	assert.Equal(t, 5, store.lastK)
	assert.Equal(t, "policy", hits[0].DocID)
	assert.Equal(t, "1", hits[0].Version)
	assert.Equal(t, "policy.pdf", hits[0].Source)
	assert.Equal(t, "3", hits[0].Pages)
	assert.InDelta(t, 0.92, hits[0].Score, 1e-6)
}

func TestRetrieveDefaultsTopK(t *testing.T) {
	store := &fakeSearchStore{}
	svc := newTestService(t, store, &fakeReranker{}, &fakeGenerator{answer: "x"})

	_, err := svc.Retrieve(context.Background(), testTenancy(), "travel", 0)
	require.NoError(t, err)
	assert.Equal(t, 8, store.lastK)
}

func TestRetrieveEmptyNamespace(t *testing.T) {
	svc := newTestService(t, &fakeSearchStore{}, &fakeReranker{}, &fakeGenerator{answer: "x"})

	hits, err := svc.Retrieve(context.Background(), testTenancy(), "travel", 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestAnswerFullPipeline(t *testing.T) {
	gen := &fakeGenerator{answer: "Manager approval is required [policy.pdf, 3]."}
	svc := newTestService(t, &fakeSearchStore{results: searchResults()}, &fakeReranker{}, gen)

	answer, err := svc.Answer(context.Background(), AnswerRequest{
		Tenancy:  testTenancy(),
		Question: "Who approves travel?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Manager approval is required [policy.pdf, 3].", answer.Text)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, SourceRef{Source: "policy.pdf", Pages: "3"}, answer.Sources[0])
	assert.Equal(t, SourceRef{Source: "policy.pdf", Pages: "7,8"}, answer.Sources[1])

	// Generator only sees the reranked topN.
	require.Len(t, gen.passages, 2)
	assert.Equal(t, "Travel requires approval.", gen.passages[0].Content)

	assert.GreaterOrEqual(t, answer.Latency.Total, answer.Latency.Generation)
	assert.Empty(t, answer.Retrieved)
}

func TestAnswerRerankOrderWins(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	svc := newTestService(t, &fakeSearchStore{results: searchResults()}, &fakeReranker{reverse: true}, gen)

	answer, err := svc.Answer(context.Background(), AnswerRequest{
		Tenancy:  testTenancy(),
		Question: "q",
		Debug:    true,
	})
	require.NoError(t, err)

	require.Len(t, answer.Reranked, 2)
	assert.Equal(t, "handbook::v2::chunk-1", answer.Reranked[0].ID)
	assert.Equal(t, "policy::v1::chunk-4", answer.Reranked[1].ID)
	assert.Len(t, answer.Retrieved, 3)
}

func TestAnswerNoCandidatesShortCircuits(t *testing.T) {
	gen := &fakeGenerator{answer: "should not run"}
	svc := newTestService(t, &fakeSearchStore{}, &fakeReranker{}, gen)

	answer, err := svc.Answer(context.Background(), AnswerRequest{
		Tenancy:  testTenancy(),
		Question: "anything",
	})
	require.NoError(t, err)

	assert.Equal(t, generation.NotFoundAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, gen.calls)
	assert.Zero(t, answer.Latency.Generation)
}

func TestAnswerPropagatesErrors(t *testing.T) {
	t.Run("search", func(t *testing.T) {
		svc := newTestService(t, &fakeSearchStore{searchErr: errors.New("io")}, &fakeReranker{}, &fakeGenerator{})
		_, err := svc.Answer(context.Background(), AnswerRequest{Tenancy: testTenancy(), Question: "q"})
		assert.Error(t, err)
	})

	t.Run("rerank", func(t *testing.T) {
		svc := newTestService(t, &fakeSearchStore{results: searchResults()}, &fakeReranker{err: errors.New("model down")}, &fakeGenerator{})
		_, err := svc.Answer(context.Background(), AnswerRequest{Tenancy: testTenancy(), Question: "q"})
		assert.Error(t, err)
	})

	t.Run("generate", func(t *testing.T) {
		svc := newTestService(t, &fakeSearchStore{results: searchResults()}, &fakeReranker{}, &fakeGenerator{err: errors.New("model down")})
		_, err := svc.Answer(context.Background(), AnswerRequest{Tenancy: testTenancy(), Question: "q"})
		assert.Error(t, err)
	})
}

func TestAnswerValidation(t *testing.T) {
	svc := newTestService(t, &fakeSearchStore{}, &fakeReranker{}, &fakeGenerator{})

	_, err := svc.Answer(context.Background(), AnswerRequest{Tenancy: testTenancy()})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Retrieve(context.Background(), testTenancy(), "", 4)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid", config: Config{TopK: 8, TopN: 4}},
		{name: "zero top_k", config: Config{TopN: 4}, wantErr: true},
		{name: "top_n above top_k", config: Config{TopK: 2, TopN: 4}, wantErr: true},
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
