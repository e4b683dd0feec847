package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/MimeLyc/video-summarizer/internal/service"
	"github.com/MimeLyc/video-summarizer/internal/summary"
	"github.com/MimeLyc/video-summarizer/internal/transcript"
)

type summarizeRequest struct {
	ExternalID string            `json:"external_id"`
	MediaID    int64             `json:"media_id"`
	PartIndex  int               `json:"part_index"`
	Lines      []transcript.Line `json:"lines"`
	Force      bool              `json:"force"`
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetSummary(w, r)
	case http.MethodPost:
		s.handleCreateSummary(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCreateSummary(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	identity := summary.VideoIdentity{
		ExternalID: req.ExternalID,
		MediaID:    req.MediaID,
		PartIndex:  req.PartIndex,
	}

	result, err := s.svc.Summarize(r.Context(), identity, req.Lines, service.Options{
		ForceRegenerate: req.Force,
		Manual:          true,
	})
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.cache.GetSummary(identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "no summary for "+identity.Key())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.coordinator.List())
}

func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	// /api/tasks/{id} and /api/tasks/{id}/cancel
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if rest == "" {
		writeError(w, http.StatusBadRequest, "missing task id")
		return
	}

	if strings.HasSuffix(rest, "/cancel") {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		taskID := strings.TrimSuffix(rest, "/cancel")
		if !s.coordinator.CancelTask(taskID) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	task, ok := s.coordinator.Get(rest)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task.Snapshot())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotFound, "settings store not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, redactSettings(settings))
	case http.MethodPut:
		var next settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		updated, err := s.settings.UpdateRuntimeSettings(next.toRuntimeSettings())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(updated); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, redactSettings(updated))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func identityFromQuery(r *http.Request) (summary.VideoIdentity, error) {
	externalID := r.URL.Query().Get("external_id")
	if externalID == "" {
		return summary.VideoIdentity{}, errors.New("external_id is required")
	}
	mediaID, _ := strconv.ParseInt(r.URL.Query().Get("media_id"), 10, 64)
	partIndex, _ := strconv.Atoi(r.URL.Query().Get("part_index"))
	return summary.VideoIdentity{
		ExternalID: externalID,
		MediaID:    mediaID,
		PartIndex:  partIndex,
	}, nil
}

// statusForError maps the typed taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var serr *summary.Error
	if !errors.As(err, &serr) {
		return http.StatusInternalServerError
	}
	switch serr.Kind {
	case summary.ErrConfigMissing, summary.ErrConfigInvalid, summary.ErrValidation:
		return http.StatusBadRequest
	case summary.ErrNarrativeTimeout:
		return http.StatusGatewayTimeout
	case summary.ErrUpstreamHTTP, summary.ErrIncompleteSummary:
		return http.StatusBadGateway
	case summary.ErrTaskAborted, summary.ErrTaskCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
