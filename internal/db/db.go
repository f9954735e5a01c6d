package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// ErrNotFound is returned when no document record has the requested id.
var ErrNotFound = errors.New("document not found")

const (
	DriverPgdriver = "pgdriver"
	DriverPq       = "pq"
)

// Document is the metadata record of an uploaded file. Its ID, formatted
// in base 10, is the document id used in the vector index.
type Document struct {
	bun.BaseModel    `bun:"table:documents,alias:d"`
	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	Title            string    `bun:"title,notnull" json:"title"`
	FilePath         string    `bun:"file_path,notnull" json:"file_path"`
	FileType         string    `bun:"file_type" json:"file_type"`
	FileSize         int64     `bun:"file_size" json:"file_size"`
	ProcessingStatus string    `bun:"processing_status,notnull,default:'pending'" json:"processing_status"`
	Message          string    `bun:"message" json:"message"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// ConnectDB opens a Postgres handle with the configured driver. The
// connection itself is established lazily on first use.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is required")
	}

	switch cfg.Driver {
	case DriverPq:
		return sql.Open("postgres", cfg.DSN)
	case DriverPgdriver, "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// Store persists Document records.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InitDB(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx)
	return err
}

// DropDocuments removes the documents table.
func (s *Store) DropDocuments(ctx context.Context) error {
	_, err := s.dropQuery().Exec(ctx)
	return err
}

func (s *Store) dropQuery() *bun.DropTableQuery {
	return s.db.NewDropTable().Model((*Document)(nil)).IfExists()
}

// Create inserts doc and fills in its id. A record without a status starts
// as pending.
func (s *Store) Create(ctx context.Context, doc *Document) error {
	_, err := s.insertQuery(doc).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *Store) insertQuery(doc *Document) *bun.InsertQuery {
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = models.StatusPending
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return s.db.NewInsert().Model(doc).Returning("id")
}

func (s *Store) Get(ctx context.Context, id int64) (*Document, error) {
	doc := new(Document)
	err := s.db.NewSelect().Model(doc).Where("d.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document %d: %w", id, err)
	}
	return doc, nil
}

func (s *Store) List(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := s.listQuery(&docs).Scan(ctx); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *Store) listQuery(docs *[]Document) *bun.SelectQuery {
	return s.db.NewSelect().Model(docs).OrderExpr("d.created_at DESC")
}

// UpdateStatus records the outcome of a processing run.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status, message string) error {
	res, err := s.updateStatusQuery(id, status, message).Exec(ctx)
	if err != nil {
		return fmt.Errorf("update document %d: %w", id, err)
	}
	return checkAffected(res)
}

func (s *Store) updateStatusQuery(id int64, status, message string) *bun.UpdateQuery {
	return s.db.NewUpdate().
		Model((*Document)(nil)).
		Set("processing_status = ?", status).
		Set("message = ?", message).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*Document)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	return checkAffected(res)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
