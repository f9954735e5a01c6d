package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"document-qa/internal/chromemdb"
	"document-qa/internal/models"
)

const testDim = 512

// wordEmbedder hashes words into a fixed-size bag-of-words vector so that
// texts sharing words end up close together.
type wordEmbedder struct {
	mu         sync.Mutex
	docCalls   int
	queryCalls int
	err        error
	dropLast   bool
}

func embedWords(text string) []float32 {
	v := make([]float32, testDim)
	for i := range v {
		v[i] = 0.001
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%testDim]++
	}
	return v
}

func (e *wordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.docCalls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, embedWords(t))
	}
	if e.dropLast && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *wordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queryCalls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return embedWords(text), nil
}

func (e *wordEmbedder) calls() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docCalls, e.queryCalls
}

// MockGenerator mocks the answer generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, question, docContext string) (string, error) {
	args := m.Called(ctx, question, docContext)
	return args.String(0), args.Error(1)
}

type describedMockGenerator struct {
	MockGenerator
}

func (m *describedMockGenerator) Endpoint() string { return "http://localhost:11434/api/generate" }
func (m *describedMockGenerator) Model() string    { return "llama2" }

// faultyIndex wraps a real index and fails selected operations.
type faultyIndex struct {
	*chromemdb.VectorDBManager
	deleteErr error
	upsertErr error
	queryErr  error
	countErr  error
}

func (f *faultyIndex) DeleteWhere(ctx context.Context, where map[string]string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.VectorDBManager.DeleteWhere(ctx, where)
}

func (f *faultyIndex) Upsert(ctx context.Context, vectors []models.IndexedVector) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.VectorDBManager.Upsert(ctx, vectors)
}

func (f *faultyIndex) Query(ctx context.Context, vector []float32, k int, where map[string]string) ([]models.QueryResult, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.VectorDBManager.Query(ctx, vector, k, where)
}

func (f *faultyIndex) Count(ctx context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.VectorDBManager.Count(ctx)
}

var errStore = errors.New("store offline")

func newIndex(t *testing.T) *chromemdb.VectorDBManager {
	t.Helper()
	idx, err := chromemdb.NewVectorDBManager(chromemdb.Options{
		DBPath:         t.TempDir(),
		CollectionName: "documents",
		InMemory:       true,
	})
	require.NoError(t, err)
	return idx
}

func countOf(t *testing.T, idx VectorIndex) int {
	t.Helper()
	n, err := idx.Count(context.Background())
	require.NoError(t, err)
	return n
}
