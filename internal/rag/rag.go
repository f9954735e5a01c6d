// Package rag turns document text into indexed chunks and answers questions
// from them.
//
// A Service holds explicitly injected index, embedder and generator handles.
// It keeps no state of its own, so its thread-safety is that of the injected
// collaborators: the chromem-go index serialises writes per collection and
// allows concurrent queries.
//
// Re-ingesting the same document concurrently is not safe: the delete and
// insert steps of two runs may interleave. Callers must allow at most one
// in-flight ingestion per document id. Different documents may be ingested
// concurrently.
package rag

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/chunker"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
)

const defaultNResults = 3

// VectorIndex is the storage surface the service needs.
type VectorIndex interface {
	Upsert(ctx context.Context, vectors []models.IndexedVector) error
	DeleteWhere(ctx context.Context, where map[string]string) error
	Query(ctx context.Context, vector []float32, k int, where map[string]string) ([]models.QueryResult, error)
	Count(ctx context.Context) (int, error)
}

// Service runs ingestion and retrieval against a shared index.
type Service struct {
	index     VectorIndex
	embedder  embeddings.Embedder
	generator llmservice.Generator
	chunkSize int
	nResults  int
	cleanup   CleanupPolicy
}

// Option configures a Service.
type Option func(*Service)

// WithChunkSize sets the target chunk length in characters.
func WithChunkSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithNResults sets how many chunks are retrieved when a caller passes no limit.
func WithNResults(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.nResults = n
		}
	}
}

// WithCleanupPolicy sets how failures to remove stale chunks are handled.
func WithCleanupPolicy(p CleanupPolicy) Option {
	return func(s *Service) {
		s.cleanup = p
	}
}

// New creates a Service.
func New(index VectorIndex, embedder embeddings.Embedder, generator llmservice.Generator, opts ...Option) *Service {
	s := &Service{
		index:     index,
		embedder:  embedder,
		generator: generator,
		chunkSize: chunker.DefaultTargetSize,
		nResults:  defaultNResults,
		cleanup:   CleanupBestEffort,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Count returns the number of vectors in the index.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.index.Count(ctx)
}

// DeleteDocument removes every vector belonging to documentID.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.index.DeleteWhere(ctx, models.DocumentFilter(documentID)); err != nil {
		return joinKind(ErrIndexUnavailable, err)
	}
	return nil
}
