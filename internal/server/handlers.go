package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"document-qa/internal/db"
	"document-qa/internal/documents"
)

const defaultMaxUploadBytes = 32 << 20

// DocumentService is the application surface the HTTP handlers call.
type DocumentService interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*documents.UploadResult, error)
	Reprocess(ctx context.Context, id int64) (*documents.ProcessResult, error)
	Ask(ctx context.Context, question, documentID string) string
	List(ctx context.Context) ([]db.Document, error)
	Delete(ctx context.Context, id int64) error
	Status(ctx context.Context) (*documents.Status, error)
}

type DocumentHandler struct {
	svc            DocumentService
	maxUploadBytes int64
}

func NewDocumentHandler(svc DocumentService, maxUploadBytes int64) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &DocumentHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

type queryRequest struct {
	DocumentID json.RawMessage `json:"document_id"`
	Question   string          `json:"question"`
}

type queryResponse struct {
	Answer string `json:"answer"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		badBody(w, err, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		Error(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	res, err := h.svc.Upload(r.Context(), header.Filename, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

func (h *DocumentHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badBody(w, err, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		Error(w, http.StatusBadRequest, "Question is required")
		return
	}
	documentID, err := parseDocumentRef(req.DocumentID)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid document_id")
		return
	}

	answer := h.svc.Ask(r.Context(), req.Question, documentID)
	JSON(w, http.StatusOK, queryResponse{Answer: answer})
}

func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Reprocess(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, st)
}

func (h *DocumentHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var procErr *documents.ProcessingError
	switch {
	case errors.As(err, &procErr):
		log.Warn().Int64("id", procErr.ID).Str("request_id", middleware.GetReqID(r.Context())).Msg("Upload processing failed")
		Error(w, http.StatusInternalServerError, procErr.Error())
	case errors.Is(err, documents.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, documents.ErrUnsupportedFormat):
		Error(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("Request failed")
		Error(w, http.StatusInternalServerError, err.Error())
	}
}

func badBody(w http.ResponseWriter, err error, message string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	Error(w, http.StatusBadRequest, message)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		Error(w, http.StatusBadRequest, "invalid document id")
		return 0, false
	}
	return id, true
}

// parseDocumentRef accepts a document id given as a JSON string or an
// integer. Absent, null and empty values select all documents.
func parseDocumentRef(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return "", fmt.Errorf("document_id must be an integer or a string: %s", raw)
	}
	return strconv.FormatInt(id, 10), nil
}
