package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lehigh-university-libraries/imagereview/internal/export"
)

func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.getSessionOrError(w, r.PathValue("id"))
	if !ok {
		return
	}

	ds := entry.Session.Dataset()
	data, err := export.BuildXLSX(ds.Mapping, ds.Rows)
	if err != nil {
		if errors.Is(err, export.ErrEmptySelection) {
			h.writeError(w, "No rows selected for export", http.StatusConflict)
			return
		}
		h.writeError(w, "Failed to build export: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(time.Now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Error("Unable to write export", "session_id", entry.ID, "err", err)
	}
}
