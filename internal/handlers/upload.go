package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/imagereview/internal/dataset"
	"github.com/lehigh-university-libraries/imagereview/internal/models"
	"github.com/lehigh-university-libraries/imagereview/internal/review"
)

// HandleCreateSession loads a table into a new review session. The table is
// either a multipart "file" upload or a JSON {"source": ...} naming a path or
// URL. Passing "session_id" replaces that session and keeps its selection.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		h.handleSourceLoad(w, r)
		return
	}

	h.handleFileUpload(w, r)
}

func (h *Handler) handleSourceLoad(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Source    string `json:"source"`
		SessionID string `json:"session_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	source := request.Source
	if source == "" {
		source = h.source
	}
	if source == "" {
		h.writeError(w, "source is required", http.StatusBadRequest)
		return
	}

	table, err := h.opener.Open(r.Context(), source)
	if err != nil {
		h.writeError(w, "Failed to read source: "+err.Error(), loadStatus(err))
		return
	}

	h.load(w, r, source, table, request.SessionID)
}

func (h *Handler) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, dataset.MaxSourceBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, dataset.MaxSourceBytes+1))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(data) > dataset.MaxSourceBytes {
		h.writeError(w, fmt.Sprintf("File too large (max %d bytes)", dataset.MaxSourceBytes), http.StatusRequestEntityTooLarge)
		return
	}

	table, err := dataset.Decode(header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		h.writeError(w, "Failed to decode file: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.load(w, r, header.Filename, table, r.FormValue("session_id"))
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request, source string, table *dataset.Table, replace string) {
	var prior models.Selection
	sessionID := uuid.NewString()
	if replace != "" {
		entry, ok := h.getSessionOrError(w, replace)
		if !ok {
			return
		}
		prior = entry.Session.Selection()
		sessionID = replace
	}

	ds, err := h.loader.LoadAndValidate(r.Context(), source, table, h.mapping, prior)
	if err != nil {
		h.writeError(w, "Failed to load dataset: "+err.Error(), loadStatus(err))
		return
	}

	entry := h.sessionStore.Set(sessionID, review.NewSession(ds, h.sessionOpts...))
	slog.Info("Review session loaded", "session_id", sessionID, "source", source, "rows", len(ds.Rows), "source_rows", ds.SourceRows)

	h.writeJSONStatus(w, http.StatusCreated, newSessionView(entry))
}
