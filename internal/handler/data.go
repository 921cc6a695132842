package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stoa-edu/stoa/internal/i18n"
	"github.com/stoa-edu/stoa/internal/model"
)

// handleSaveLog persists a client-supplied conversation log. This is the
// unload-flush path: the client posts whatever it has and must get a fast
// answer, so the payload is stored opaquely.
func (h *Handler) handleSaveLog(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string          `json:"userId"`
		SessionID string          `json:"sessionId"`
		Filename  string          `json:"filename"`
		Payload   json.RawMessage `json:"payload"`
		// Log is an accepted alias for Payload.
		Log  json.RawMessage `json:"log"`
		Meta json.RawMessage `json:"meta"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	payload := req.Payload
	if len(payload) == 0 {
		payload = req.Log
	}
	if req.UserID == "" || len(payload) == 0 {
		respondError(r.Context(), w, http.StatusBadRequest, "InvalidRequest", nil)
		return
	}

	filename := req.Filename
	if filename == "" {
		filename = fmt.Sprintf("conversation_log_%s_%s.json", req.UserID, time.Now().Format("20060102_150405"))
	}
	id, err := h.store.InsertConversationLog(r.Context(), model.LogRecord{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Filename:  filename,
		Payload:   payload,
		Meta:      req.Meta,
	})
	if err != nil {
		respondError(r.Context(), w, http.StatusInternalServerError, "InternalError", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":       id,
		"filename": filename,
		"message":  i18n.T(r.Context(), "LogSaved"),
	})
}

// handleSaveSurvey persists a pretest or posttest submission.
func (h *Handler) handleSaveSurvey(phase model.SurveyPhase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username  string          `json:"username"`
			Language  string          `json:"language"`
			Responses json.RawMessage `json:"responses"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Username == "" || len(req.Responses) == 0 {
			respondError(r.Context(), w, http.StatusBadRequest, "InvalidRequest", nil)
			return
		}
		if req.Language == "" {
			req.Language = h.config.Language
		}

		id, err := h.store.InsertSurveyResponse(r.Context(), model.SurveyResponse{
			Username:  req.Username,
			Language:  req.Language,
			Phase:     phase,
			Responses: req.Responses,
		})
		if err != nil {
			respondError(r.Context(), w, http.StatusInternalServerError, "InternalError", err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{
			"id":      id,
			"phase":   phase,
			"message": i18n.T(r.Context(), "SurveySaved"),
		})
	}
}

// handleExport streams the full study export. Admin only.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	exp, err := h.store.ExportStudy(r.Context())
	if err != nil {
		respondError(r.Context(), w, http.StatusInternalServerError, "InternalError", err)
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=stoa_export_%s.json", time.Now().Format("20060102")))
	respondJSON(w, http.StatusOK, exp)
}

// handleListLogs lists stored conversation logs without payloads. Admin only.
func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.store.ListConversationLogs(r.Context())
	if err != nil {
		respondError(r.Context(), w, http.StatusInternalServerError, "InternalError", err)
		return
	}
	type logMeta struct {
		ID        int64     `json:"id"`
		UserID    string    `json:"user_id"`
		SessionID string    `json:"session_id"`
		Filename  string    `json:"filename"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]logMeta, 0, len(logs))
	for _, l := range logs {
		out = append(out, logMeta{
			ID:        l.ID,
			UserID:    l.UserID,
			SessionID: l.SessionID,
			Filename:  l.Filename,
			CreatedAt: l.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
