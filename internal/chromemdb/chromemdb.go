package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

// ErrNoCollection is returned when an operation runs before a collection is opened.
var ErrNoCollection = errors.New("collection is not initialized")

// VectorDBManager encapsulates the chromem-go database operations for one
// collection. chromem-go guards each collection with its own lock, so a
// manager is safe for concurrent use once the collection is opened.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	compress      bool
	encryptionKey string
	filePath      string
}

// Options configures a VectorDBManager.
type Options struct {
	DBPath         string
	CollectionName string
	InMemory       bool
	Compress       bool
	EncryptionKey  string
}

// NewVectorDBManager initializes a new vector database manager and opens
// (or creates) the configured collection.
func NewVectorDBManager(opts Options) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if opts.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(opts.DBPath, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		dbPath:        opts.DBPath,
		compress:      opts.Compress,
		encryptionKey: opts.EncryptionKey,
		filePath:      filepath.Join(opts.DBPath, opts.CollectionName+".chromem"),
	}
	if _, err := m.GetOrCreateCollection(opts.CollectionName); err != nil {
		return nil, err
	}

	log.Debug().Str("collection", opts.CollectionName).Int("count", m.collection.Count()).
		Msg("Vector index ready")
	return m, nil
}

// GetOrCreateCollection opens the named collection, creating it if needed.
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	// Embeddings are always supplied by the caller, so the collection never
	// needs its own embedding function.
	c, err := m.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// Upsert writes all vectors in one batch. Existing ids are overwritten.
func (m *VectorDBManager) Upsert(ctx context.Context, vectors []models.IndexedVector) error {
	if m.collection == nil {
		return ErrNoCollection
	}
	if len(vectors) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(vectors))
	for i, v := range vectors {
		docs[i] = chromem.Document{
			ID:        v.ID,
			Content:   v.Text,
			Metadata:  v.Metadata.ToMap(),
			Embedding: v.Embedding,
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Delete removes vectors by id.
func (m *VectorDBManager) Delete(ctx context.Context, ids ...string) error {
	if m.collection == nil {
		return ErrNoCollection
	}
	if len(ids) == 0 {
		return nil
	}
	if err := m.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// DeleteWhere removes every vector whose metadata matches all entries of where.
func (m *VectorDBManager) DeleteWhere(ctx context.Context, where map[string]string) error {
	if m.collection == nil {
		return ErrNoCollection
	}
	if len(where) == 0 {
		return errors.New("delete filter must not be empty")
	}
	if err := m.collection.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Query returns up to k nearest neighbours of vector, ranked by ascending
// cosine distance. A nil or empty where searches the whole collection.
func (m *VectorDBManager) Query(ctx context.Context, vector []float32, k int, where map[string]string) ([]models.QueryResult, error) {
	if m.collection == nil {
		return nil, ErrNoCollection
	}
	if len(vector) == 0 {
		return nil, errors.New("query embedding must be provided")
	}

	// chromem-go rejects nResults larger than the collection.
	k = min(k, m.collection.Count())
	if k <= 0 {
		return nil, nil
	}
	if len(where) == 0 {
		where = nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       k,
		Where:          where,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.QueryResult, 0, len(results))
	for _, r := range results {
		out = append(out, models.QueryResult{
			ID:       r.ID,
			Text:     r.Content,
			Distance: 1 - r.Similarity,
			Metadata: models.MetadataFromMap(r.Metadata),
		})
	}
	return out, nil
}

// Count returns the number of vectors in the collection.
func (m *VectorDBManager) Count(_ context.Context) (int, error) {
	if m.collection == nil {
		return 0, ErrNoCollection
	}
	return m.collection.Count(), nil
}

// DeleteCollection drops the collection and everything in it.
func (m *VectorDBManager) DeleteCollection() error {
	if m.collection == nil {
		return ErrNoCollection
	}
	err := m.db.DeleteCollection(m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	m.collection = nil
	return nil
}

// Reset drops the collection and opens an empty one with the same name.
func (m *VectorDBManager) Reset() error {
	if m.collection == nil {
		return ErrNoCollection
	}
	name := m.collection.Name
	if err := m.DeleteCollection(); err != nil {
		return err
	}
	_, err := m.GetOrCreateCollection(name)
	return err
}

// Export writes the collection to a single, optionally compressed, encrypted file.
func (m *VectorDBManager) Export(_ context.Context) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if m.collection == nil {
		return ErrNoCollection
	}
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", m.filePath).
		Bool("compress", m.compress).Msg("Exporting collection")

	err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import restores the collection from the file written by Export.
func (m *VectorDBManager) Import(_ context.Context) error {
	if m.collection == nil {
		return ErrNoCollection
	}
	name := m.collection.Name
	err := m.db.ImportFromFile(m.filePath, m.encryptionKey, name)
	if err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	// Importing replaces the collection object held by the DB.
	if _, err := m.GetOrCreateCollection(name); err != nil {
		return err
	}
	return nil
}

// FilePath is where Export writes and Import reads.
func (m *VectorDBManager) FilePath() string {
	return m.filePath
}
