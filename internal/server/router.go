package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Documents      DocumentService
	MaxUploadBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	limit := cfg.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	h := NewDocumentHandler(cfg.Documents, limit)
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(limit))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/upload", h.Upload)
		r.Post("/query", h.Query)
		r.Post("/{id}/reprocess", h.Reprocess)
		r.Delete("/{id}", h.Delete)
	})

	r.Get("/debug/status", h.Status)

	return r
}
