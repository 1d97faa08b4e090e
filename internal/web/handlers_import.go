package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/pota/internal/core"
	"github.com/JonMunkholm/pota/internal/logging"
	"github.com/JonMunkholm/pota/internal/web/templates"
)

// ImportResultResponse is the JSON shape of GET /api/imports/{id}/result.
// Result is nil while the import runs; Error is set when it failed.
type ImportResultResponse struct {
	ImportID string              `json:"import_id"`
	Phase    core.ImportPhase    `json:"phase"`
	Progress core.ImportProgress `json:"progress"`
	Result   *core.ImportResult  `json:"result,omitempty"`
	Error    *core.UserMessage   `json:"error,omitempty"`
}

// handleStartImport starts an asynchronous import and returns its id.
// Responds 409 when another import is running.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	path, cleanup, ok := s.importSource(w, r)
	if !ok {
		return
	}

	importID, err := s.service.StartImport(r.Context(), path)
	if err != nil {
		cleanup()
		respondError(w, r, err)
		return
	}

	// Spooled uploads are removed once the import finishes.
	go func() {
		s.service.GetImportResult(importID) //nolint:errcheck
		cleanup()
	}()

	ctx := logging.ContextWithImport(r.Context(), importID)
	logging.FromContext(ctx).Info("import queued", "file", filepath.Base(path))

	writeJSON(w, r, http.StatusAccepted, map[string]string{"import_id": importID})
}

// handlePreviewImport parses a file without importing it.
func (s *Server) handlePreviewImport(w http.ResponseWriter, r *http.Request) {
	path, cleanup, ok := s.importSource(w, r)
	if !ok {
		return
	}
	defer cleanup()

	result, err := s.service.PreviewImport(r.Context(), path)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleImportStatus returns the service's last progress snapshot for
// polling clients.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Status())
}

// handleImportProgress streams import progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	// The event ID is the progress percentage, so a reconnecting client can
	// skip events it already has.
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.service.SubscribeProgress(importID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// The controller reaches the Flusher through wrapping middleware.
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		logging.FromContext(r.Context()).Error("streaming not supported", "error", err)
		return
	}

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed after the terminal event.
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				rc.Flush() //nolint:errcheck
				return
			}

			percent := progress.Percent()
			if !progress.Phase.Terminal() && percent <= lastEventID {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", percent, sseEvent(progress.Phase), data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// sseEvent names the SSE event for a phase.
func sseEvent(phase core.ImportPhase) string {
	switch phase {
	case core.PhaseCompleted:
		return "done"
	case core.PhaseError:
		return "failed"
	default:
		return "progress"
	}
}

// importOutcome returns the progress of an import and, once it has
// finished, its result or error.
func (s *Server) importOutcome(importID string) (ImportResultResponse, error) {
	progress, err := s.service.GetImportProgress(importID)
	if err != nil {
		return ImportResultResponse{}, err
	}

	resp := ImportResultResponse{
		ImportID: importID,
		Phase:    progress.Phase,
		Progress: progress,
	}
	if !progress.Phase.Terminal() {
		return resp, nil
	}

	result, importErr := s.service.GetImportResult(importID)
	if importErr != nil {
		msg := core.MapError(importErr)
		resp.Error = &msg
		resp.Phase = core.PhaseError
		return resp, nil
	}
	resp.Result = result
	return resp, nil
}

// handleImportResult returns the final result of an import, or 202 with
// the current progress while it runs.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	resp, err := s.importOutcome(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if !resp.Phase.Terminal() {
		status = http.StatusAccepted
	}
	writeJSON(w, r, status, resp)
}

// handleImportSummary renders an HTML fragment describing an import.
func (s *Server) handleImportSummary(w http.ResponseWriter, r *http.Request) {
	resp, err := s.importOutcome(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch {
	case resp.Error != nil:
		templates.ErrorAlert(resp.Error.Message, resp.Error.Action, resp.Error.Code).Render(r.Context(), w)
	case resp.Result != nil:
		templates.ImportSummary(resp.Result).Render(r.Context(), w)
	default:
		templates.ImportRunning(resp.Progress).Render(r.Context(), w)
	}
}

// handleImportHistory returns recent imports as JSON, or as an HTML table
// for HTMX and browser clients.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ImportHistory(r.Context(), parseIntParam(r, "limit", 20))
	if err != nil {
		respondError(w, r, err)
		return
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.ImportHistory(records).Render(r.Context(), w)
		return
	}

	if records == nil {
		records = []core.ImportRecord{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"imports": records})
}
