// Package documents manages uploaded files: it stores them, tracks their
// records and keeps the vector index in step with them.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"document-qa/internal/db"
	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/parser"
)

var (
	ErrNotFound          = db.ErrNotFound
	ErrUnsupportedFormat = parser.ErrUnsupportedFormat
	ErrProcessingFailed  = errors.New("processing failed")
)

// ProcessingError reports an upload whose record was created but whose
// text could not be indexed. It matches ErrProcessingFailed.
type ProcessingError struct {
	ID      int64
	Message string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("Processing failed: %s", e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return ErrProcessingFailed
}

// DocumentStore persists document records.
type DocumentStore interface {
	Create(ctx context.Context, doc *db.Document) error
	Get(ctx context.Context, id int64) (*db.Document, error)
	List(ctx context.Context) ([]db.Document, error)
	UpdateStatus(ctx context.Context, id int64, status, message string) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// Indexer is the ingestion and retrieval surface of the rag service.
type Indexer interface {
	Process(ctx context.Context, documentID, text string) (bool, string)
	Answer(ctx context.Context, question, documentID string, nResults int) string
	DeleteDocument(ctx context.Context, documentID string) error
	Count(ctx context.Context) (int, error)
}

// TextExtractor returns the text content of a stored file.
type TextExtractor func(filePath string) (string, error)

type UploadResult struct {
	ID         int64  `json:"id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	IndexCount int    `json:"index_count"`
}

type ProcessResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	IndexCount int    `json:"index_count"`
}

type Status struct {
	DatabaseDocuments int           `json:"database_documents"`
	IndexItems        int           `json:"index_items"`
	Documents         []db.Document `json:"documents"`
}

type outcome struct {
	success bool
	message string
}

type Service struct {
	store     DocumentStore
	index     Indexer
	extract   TextExtractor
	uploadDir string
	inflight  singleflight.Group
}

type Option func(*Service)

// WithExtractor replaces parser.ExtractText.
func WithExtractor(fn TextExtractor) Option {
	return func(s *Service) {
		s.extract = fn
	}
}

func New(store DocumentStore, index Indexer, uploadDir string, opts ...Option) *Service {
	s := &Service{
		store:     store,
		index:     index,
		extract:   parser.ExtractText,
		uploadDir: uploadDir,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IndexID is the document id under which a record's chunks are indexed.
func IndexID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Upload stores the file, records it and runs ingestion on its text. When
// ingestion fails the record is kept with status failed and a
// *ProcessingError is returned.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	if !parser.Supported(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err := helper.CreateFolder(s.uploadDir); err != nil {
		return nil, err
	}

	path := filepath.Join(s.uploadDir, helper.StoredFileName(filename))
	size, err := saveFile(path, r)
	if err != nil {
		return nil, err
	}

	doc := &db.Document{
		Title:            filepath.Base(filename),
		FilePath:         path,
		FileType:         strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."),
		FileSize:         size,
		ProcessingStatus: models.StatusProcessing,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	log.Info().Int64("id", doc.ID).Str("title", doc.Title).Int64("size", size).Msg("Document uploaded")

	res := s.process(ctx, doc)
	if !res.success {
		return nil, &ProcessingError{ID: doc.ID, Message: res.message}
	}
	return &UploadResult{
		ID:         doc.ID,
		Status:     models.StatusCompleted,
		Message:    res.message,
		IndexCount: s.indexCount(ctx),
	}, nil
}

// Reprocess re-extracts and re-ingests an existing document.
func (s *Service) Reprocess(ctx context.Context, id int64) (*ProcessResult, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(ctx, id, models.StatusProcessing, ""); err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Error updating document status")
	}

	res := s.process(ctx, doc)
	return &ProcessResult{
		Success:    res.success,
		Message:    res.message,
		IndexCount: s.indexCount(ctx),
	}, nil
}

// process runs at most one ingestion per document at a time; callers that
// arrive while one is running share its outcome.
func (s *Service) process(ctx context.Context, doc *db.Document) outcome {
	key := IndexID(doc.ID)
	v, _, _ := s.inflight.Do(key, func() (interface{}, error) {
		res := s.ingest(ctx, key, doc.FilePath)

		status := models.StatusCompleted
		if !res.success {
			status = models.StatusFailed
		}
		if err := s.store.UpdateStatus(ctx, doc.ID, status, res.message); err != nil {
			log.Error().Err(err).Int64("id", doc.ID).Msg("Error updating document status")
		}
		return res, nil
	})
	return v.(outcome)
}

func (s *Service) ingest(ctx context.Context, documentID, path string) outcome {
	text, err := s.extract(path)
	if err != nil {
		log.Error().Err(err).Str("document_id", documentID).Msg("Error extracting text")
		return outcome{message: fmt.Sprintf("Error extracting text: %v", err)}
	}

	ok, msg := s.index.Process(ctx, documentID, text)
	return outcome{success: ok, message: msg}
}

// Ask answers question from one document, or from all when documentID is empty.
func (s *Service) Ask(ctx context.Context, question, documentID string) string {
	return s.index.Answer(ctx, question, documentID, 0)
}

func (s *Service) List(ctx context.Context) ([]db.Document, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []db.Document{}
	}
	return docs, nil
}

// Delete removes a document's chunks, record and stored file.
func (s *Service) Delete(ctx context.Context, id int64) error {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.index.DeleteDocument(ctx, IndexID(id)); err != nil {
		return fmt.Errorf("remove chunks of document %d: %w", id, err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(doc.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", doc.FilePath).Msg("Error removing stored file")
	}
	log.Info().Int64("id", id).Msg("Document deleted")
	return nil
}

// Status reports record and index counts next to the records themselves.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{DatabaseDocuments: total, IndexItems: items, Documents: docs}, nil
}

func (s *Service) indexCount(ctx context.Context) int {
	n, err := s.index.Count(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Error counting index items")
		return 0
	}
	return n
}

func saveFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}
