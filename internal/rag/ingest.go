package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"document-qa/internal/chunker"
	"document-qa/internal/models"
)

// Ingestion failure kinds. Wrapped errors match these with errors.Is.
var (
	ErrInvalidDocumentID = errors.New("document id is required")
	ErrEmptyInput        = errors.New("file is empty")
	ErrNoChunksProduced  = errors.New("no chunks created from text")
	ErrEmbedding         = errors.New("error generating embeddings")
	ErrNoValidChunks     = errors.New("no valid chunks to store")
	ErrIndexWrite        = errors.New("error storing in vector index")
	ErrIndexUnavailable  = errors.New("cannot access document collection")
)

// CleanupPolicy decides what a failed removal of a document's existing
// chunks does to the ingestion that triggered it.
type CleanupPolicy int

const (
	// CleanupBestEffort logs the failure and goes on writing the new chunks.
	CleanupBestEffort CleanupPolicy = iota
	// CleanupStrict aborts ingestion with ErrIndexUnavailable.
	CleanupStrict
)

func (p CleanupPolicy) String() string {
	switch p {
	case CleanupBestEffort:
		return "best-effort"
	case CleanupStrict:
		return "strict"
	default:
		return fmt.Sprintf("CleanupPolicy(%d)", int(p))
	}
}

func joinKind(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

// Ingest replaces the indexed chunks of documentID with chunks of text and
// returns how many were stored. Existing chunks are removed before any new
// ones are written. A failed write is not rolled back; re-running Ingest
// removes whatever was partially stored.
func (s *Service) Ingest(ctx context.Context, documentID, text string) (int, error) {
	if documentID == "" {
		return 0, ErrInvalidDocumentID
	}
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyInput
	}

	logger := log.With().Str("document_id", documentID).Logger()
	logger.Debug().Int("chars", len(text)).Msg("Processing document")

	if err := s.removeExisting(ctx, documentID); err != nil {
		return 0, err
	}

	chunks := chunker.Split(text, s.chunkSize)
	if len(chunks) == 0 {
		return 0, ErrNoChunksProduced
	}
	logger.Debug().Int("chunks", len(chunks)).Msg("Created chunks")

	vectors, err := s.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return 0, joinKind(ErrEmbedding, err)
	}
	if err := checkEmbeddings(len(chunks), vectors); err != nil {
		return 0, err
	}

	entries := make([]models.IndexedVector, 0, len(chunks))
	for i, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		entries = append(entries, models.IndexedVector{
			ID:        models.ChunkID(documentID, i),
			Embedding: vectors[i],
			Text:      chunk,
			Metadata: models.ChunkMetadata{
				DocumentID:  documentID,
				ChunkIndex:  i,
				ChunkLength: utf8.RuneCountInString(chunk),
			},
		})
	}
	if len(entries) == 0 {
		return 0, ErrNoValidChunks
	}

	if err := s.index.Upsert(ctx, entries); err != nil {
		return 0, joinKind(ErrIndexWrite, err)
	}

	if total, err := s.index.Count(ctx); err == nil {
		logger.Debug().Int("stored", len(entries)).Int("index_total", total).Msg("Stored chunks")
	}
	return len(entries), nil
}

// Process runs Ingest and reports the outcome as a success flag and a
// message suitable for persisting as the document's processing result.
func (s *Service) Process(ctx context.Context, documentID, text string) (bool, string) {
	n, err := s.Ingest(ctx, documentID, text)
	if err != nil {
		log.Warn().Err(err).Str("document_id", documentID).Msg("Processing failed")
		return false, err.Error()
	}
	return true, fmt.Sprintf("Successfully processed %d chunks", n)
}

// removeExisting deletes the document's current chunks under the configured
// cleanup policy.
func (s *Service) removeExisting(ctx context.Context, documentID string) error {
	err := s.index.DeleteWhere(ctx, models.DocumentFilter(documentID))
	if err == nil {
		return nil
	}
	if s.cleanup == CleanupStrict {
		return joinKind(ErrIndexUnavailable, err)
	}
	log.Warn().Err(err).Str("document_id", documentID).Stringer("policy", s.cleanup).
		Msg("Error cleaning existing chunks, continuing")
	return nil
}

func checkEmbeddings(want int, vectors [][]float32) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedding, len(vectors), want)
	}
	dim := -1
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty vector for chunk %d", ErrEmbedding, i)
		}
		if dim >= 0 && len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrEmbedding, i, len(v), dim)
		}
		dim = len(v)
	}
	return nil
}
