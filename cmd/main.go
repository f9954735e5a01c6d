package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/documents"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/llmservice"
	"document-qa/internal/parser"
	"document-qa/internal/rag"
	"document-qa/internal/server"
)

const (
	configFilePath  = "./configs/config.yaml"
	shutdownTimeout = 30 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	serve := flag.Bool("serve", false, "Start the HTTP API")
	filePath := flag.String("file", "", "Path to a document file to index")
	query := flag.String("query", "", "Question to be answered")
	docID := flag.String("doc", "", "Document id to index under or to restrict the query to")
	export := flag.Bool("export", false, "Export the vector collection to an encrypted file")
	importFile := flag.Bool("import", false, "Import the vector collection from an encrypted file")
	status := flag.Bool("status", false, "Print document records and index counts")
	reset := flag.Bool("reset", false, "Drop the vector collection and the documents table")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	setLogLevel(cfg.Log.Level)

	if *filePath != "" && *query != "" {
		log.Fatal().Msg("Please provide either a document file using the -file flag or a query using the -query flag, but not both")
	}

	ctx := context.Background()
	index := openIndex(cfg)

	switch {
	case *importFile:
		if err := index.Import(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error importing collection")
		}
		n, _ := index.Count(ctx)
		log.Info().Str("file", index.FilePath()).Int("count", n).Msg("Collection imported")
	case *export:
		if err := index.Export(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error exporting collection")
		}
		log.Info().Str("file", index.FilePath()).Msg("Collection exported")
	case *reset:
		if err := resetAll(ctx, cfg, index); err != nil {
			log.Fatal().Err(err).Msg("Error resetting")
		}
	case *status:
		if err := printStatus(ctx, cfg, newRAG(cfg, index)); err != nil {
			log.Fatal().Err(err).Msg("Error reading status")
		}
	case *serve:
		if err := runServer(ctx, cfg, newRAG(cfg, index)); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	case *filePath != "":
		indexFile(ctx, newRAG(cfg, index), *filePath, *docID)
	case *query != "":
		answer(ctx, newRAG(cfg, index), *query, *docID)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func openIndex(cfg *config.Config) *chromemdb.VectorDBManager {
	if !cfg.RAG.InMemory {
		if err := helper.CreateFolder(cfg.RAG.DBPath); err != nil {
			log.Fatal().Err(err).Msg("Error creating folder")
		}
	}

	index, err := chromemdb.NewVectorDBManager(chromemdb.Options{
		DBPath:         cfg.RAG.DBPath,
		CollectionName: cfg.RAG.CollectionName,
		InMemory:       cfg.RAG.InMemory,
		Compress:       cfg.RAG.Compress,
		EncryptionKey:  cfg.RAG.EncryptionKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating vector database manager")
	}
	return index
}

func newRAG(cfg *config.Config, index *chromemdb.VectorDBManager) *rag.Service {
	embedder, err := embedding.New(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	generator, err := llmservice.New(cfg.GenLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing generator")
	}

	cleanup := rag.CleanupBestEffort
	if cfg.RAG.StrictCleanup {
		cleanup = rag.CleanupStrict
	}

	return rag.New(index, embedder, generator,
		rag.WithChunkSize(cfg.RAG.ChunkSize),
		rag.WithNResults(cfg.RAG.NResults),
		rag.WithCleanupPolicy(cleanup),
	)
}

// indexFile ingests a single file without touching the record store. The
// document id defaults to the file name.
func indexFile(ctx context.Context, svc *rag.Service, filePath, docID string) {
	if docID == "" {
		docID = filePath
	}

	text, err := parser.ExtractText(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}

	ok, msg := svc.Process(ctx, docID, text)
	if !ok {
		log.Fatal().Str("document_id", docID).Msg(msg)
	}
	log.Info().Str("document_id", docID).Msg(msg)
}

func answer(ctx context.Context, svc *rag.Service, query, docID string) {
	response := svc.Answer(ctx, query, docID, 0)

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response)
}

func openStore(ctx context.Context, cfg *config.Config) (*db.Store, func(), error) {
	sqldb, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	dbInstance := db.NewDB(sqldb, cfg.Database.Debug)
	closeFn := func() { _ = dbInstance.Close() }

	store := db.NewStore(dbInstance)
	if err := store.InitDB(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("init database: %w", err)
	}
	return store, closeFn, nil
}

func printStatus(ctx context.Context, cfg *config.Config, svc *rag.Service) error {
	store, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	st, err := documents.New(store, svc, cfg.Server.UploadDir).Status(ctx)
	if err != nil {
		return err
	}
	helper.PrettyPrint(st)
	return nil
}

// resetAll empties the vector collection and recreates the documents table.
// Stored upload files are left in place.
func resetAll(ctx context.Context, cfg *config.Config, index *chromemdb.VectorDBManager) error {
	if err := index.Reset(); err != nil {
		return err
	}
	store, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := store.DropDocuments(ctx); err != nil {
		return fmt.Errorf("drop documents: %w", err)
	}
	if err := store.InitDB(ctx); err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	log.Info().Msg("Vector collection and documents table reset")
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, svc *rag.Service) error {
	store, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	docs := documents.New(store, svc, cfg.Server.UploadDir)
	router := server.NewRouter(server.RouterConfig{
		Documents:      docs,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exited")
	return nil
}
