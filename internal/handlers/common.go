package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/imagereview/internal/dataset"
	"github.com/lehigh-university-libraries/imagereview/internal/models"
	"github.com/lehigh-university-libraries/imagereview/internal/review"
	"github.com/lehigh-university-libraries/imagereview/internal/storage"
)

// Options wires a Handler to the loading pipeline
type Options struct {
	Loader  *dataset.Loader
	Opener  *dataset.Opener
	Mapping models.ColumnMapping
	// DefaultSource is loaded when a create request names no source
	DefaultSource string
	// SessionOptions are applied to every new review session
	SessionOptions []review.Option
}

type Handler struct {
	sessionStore *storage.SessionStore
	loader       *dataset.Loader
	opener       *dataset.Opener
	mapping      models.ColumnMapping
	source       string
	sessionOpts  []review.Option
}

func New(opts Options) *Handler {
	return &Handler{
		sessionStore: storage.New(),
		loader:       opts.Loader,
		opener:       opts.Opener,
		mapping:      opts.Mapping,
		source:       opts.DefaultSource,
		sessionOpts:  opts.SessionOptions,
	}
}

// Register adds the API routes to mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/page", h.HandlePage)
	mux.HandleFunc("PUT /api/sessions/{id}/rows/{key}", h.HandleToggleRow)
	mux.HandleFunc("PUT /api/sessions/{id}/filter", h.HandleFilter)
	mux.HandleFunc("GET /api/sessions/{id}/export", h.HandleExport)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("Unable to write JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Warn(message, "status", code)
	}
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*storage.Entry, bool) {
	entry, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return entry, true
}

// loadStatus maps a load failure to an HTTP status
func loadStatus(err error) int {
	var missing *dataset.MissingColumnsError
	var status *dataset.SourceStatusError
	switch {
	case errors.Is(err, dataset.ErrEmptySource), errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case errors.As(err, &status):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
