package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/imagereview/internal/review"
	"github.com/lehigh-university-libraries/imagereview/internal/storage"
)

type sessionSummary struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	SourceRows int       `json:"source_rows"`
	Included   int       `json:"included"`
	CreatedAt  time.Time `json:"created_at"`
}

// sessionView is everything a renderer needs to draw the current page
type sessionView struct {
	sessionSummary
	Page          int                 `json:"page"`
	TotalPages    int                 `json:"total_pages"`
	PageSize      int                 `json:"page_size"`
	Filter        []string            `json:"filter"`
	AvailableTags []string            `json:"available_tags"`
	CanExport     bool                `json:"can_export"`
	VisibleRows   []review.VisibleRow `json:"visible_rows"`
}

func newSummary(entry *storage.Entry) sessionSummary {
	ds := entry.Session.Dataset()
	return sessionSummary{
		ID:         entry.ID,
		Source:     ds.Source,
		Rows:       len(ds.Rows),
		SourceRows: ds.SourceRows,
		Included:   len(entry.Session.Included()),
		CreatedAt:  entry.CreatedAt,
	}
}

func newSessionView(entry *storage.Entry) sessionView {
	s := entry.Session
	summary := newSummary(entry)
	rows := s.VisibleRows()
	if rows == nil {
		rows = []review.VisibleRow{}
	}
	return sessionView{
		sessionSummary: summary,
		Page:           s.Page(),
		TotalPages:     s.TotalPages(),
		PageSize:       s.PageSize(),
		Filter:         s.Filter(),
		AvailableTags:  s.AvailableTags(),
		CanExport:      summary.Included > 0,
		VisibleRows:    rows,
	}
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	entries := h.sessionStore.GetAll()
	sessionList := make([]sessionSummary, 0, len(entries))
	for _, entry := range entries {
		sessionList = append(sessionList, newSummary(entry))
	}
	h.writeJSON(w, sessionList)
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, r.PathValue("id"))
	if !ok {
		return
	}
	h.writeJSON(w, newSessionView(entry))
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessionStore.Delete(r.PathValue("id")) {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePage accepts {"action": "first|prev|next|last"} or {"page": n}
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, r.PathValue("id"))
	if !ok {
		return
	}

	var request struct {
		Action string `json:"action"`
		Page   *int   `json:"page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	s := entry.Session
	switch {
	case request.Page != nil:
		s.SetPage(*request.Page)
	case request.Action == "first":
		s.First()
	case request.Action == "prev":
		s.Prev()
	case request.Action == "next":
		s.Next()
	case request.Action == "last":
		s.Last()
	default:
		h.writeError(w, "Invalid action. Must be 'first', 'prev', 'next' or 'last'", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, newSessionView(entry))
}

func (h *Handler) HandleToggleRow(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, r.PathValue("id"))
	if !ok {
		return
	}

	var request struct {
		Included *bool `json:"included"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if request.Included == nil {
		h.writeError(w, "included is required", http.StatusBadRequest)
		return
	}

	key := r.PathValue("key")
	if err := entry.Session.ToggleIncluded(key, *request.Included); err != nil {
		if errors.Is(err, review.ErrUnknownRow) {
			h.writeError(w, "Row not found: "+key, http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, newSessionView(entry))
}

func (h *Handler) HandleFilter(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, r.PathValue("id"))
	if !ok {
		return
	}

	var request struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	entry.Session.SetFilter(request.Tags)
	h.writeJSON(w, newSessionView(entry))
}
