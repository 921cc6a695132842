// Package handler exposes the HTTP API: classroom chat, the test flow, log
// and survey persistence, and the admin export surface.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stoa-edu/stoa/internal/eval"
	"github.com/stoa-edu/stoa/internal/i18n"
	"github.com/stoa-edu/stoa/internal/llm"
	"github.com/stoa-edu/stoa/internal/model"
	"github.com/stoa-edu/stoa/internal/session"
	"github.com/stoa-edu/stoa/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	sessions *session.Manager
	gw       eval.Gateway
	config   model.Config
}

// New creates a new Handler.
func New(s *store.Store, mgr *session.Manager, gw eval.Gateway, cfg model.Config) *Handler {
	return &Handler{store: s, sessions: mgr, gw: gw, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/chat", h.handleChatProxy)
	r.Post("/api/save-log", h.handleSaveLog)
	r.Post("/api/save-pretest", h.handleSaveSurvey(model.SurveyPre))
	r.Post("/api/save-posttest", h.handleSaveSurvey(model.SurveyPost))
	r.Get("/api/check-tables", h.handleCheckTables)

	r.Route("/api/session", func(r chi.Router) {
		r.Post("/", h.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Post("/chat", h.handleClassroomChat)
			r.Get("/log", h.handleSessionLog)
			r.Post("/end", h.handleEndSession)
			r.Post("/test/question", h.handleTestQuestion)
			r.Post("/test/answer", h.handleTestAnswer)
			r.Post("/test/another", h.handleTestAnother)
			r.Post("/test/advance", h.handleTestAdvance)
		})
	})

	r.Post("/api/admin/login", h.handleLogin)
	r.Post("/api/admin/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth, requireRole(model.UserRoleAdmin))
		r.Get("/api/admin/export", h.handleExport)
		r.Get("/api/admin/logs", h.handleListLogs)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// errorBody is the uniform error shape: a localized message for the learner
// and a technical detail for logs and debugging.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, msgID string, err error) {
	body := errorBody{Error: i18n.T(ctx, msgID)}
	if err != nil {
		body.Detail = err.Error()
	}
	respondJSON(w, status, body)
}

// respondSessionError maps the session state machine's errors onto HTTP
// statuses and localized messages.
func respondSessionError(ctx context.Context, w http.ResponseWriter, err error) {
	var gwErr *llm.GatewayError
	switch {
	case errors.Is(err, session.ErrAwaitingChoice):
		respondError(ctx, w, http.StatusConflict, "AwaitingChoice", err)
	case errors.Is(err, session.ErrClassroomRounds):
		respondError(ctx, w, http.StatusConflict, "NotEnoughRounds", err)
	case errors.Is(err, session.ErrQuestionPending):
		respondError(ctx, w, http.StatusConflict, "QuestionPending", err)
	case errors.Is(err, session.ErrNoQuestion):
		respondError(ctx, w, http.StatusConflict, "NoQuestion", err)
	case errors.Is(err, session.ErrSessionEnded):
		respondError(ctx, w, http.StatusGone, "SessionEnded", err)
	case errors.Is(err, session.ErrUnknownAgent):
		respondError(ctx, w, http.StatusBadRequest, "UnknownAgent", err)
	case errors.As(err, &gwErr):
		slog.Error("upstream LLM failure", "status", gwErr.Status, "error", err)
		respondError(ctx, w, http.StatusBadGateway, "AssistantUnavailable", err)
	default:
		slog.Error("session operation failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "InternalError", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, "InvalidRequest", err)
		return false
	}
	return true
}

// machine resolves the session from the URL, writing a 404 on a miss.
func (h *Handler) machine(w http.ResponseWriter, r *http.Request) (*session.Machine, bool) {
	id := chi.URLParam(r, "sessionID")
	m, ok := h.sessions.Get(id)
	if !ok {
		respondError(r.Context(), w, http.StatusNotFound, "SessionNotFound", nil)
		return nil, false
	}
	return m, true
}

func (h *Handler) handleCheckTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.CheckTables(r.Context())
	if err != nil {
		respondError(r.Context(), w, http.StatusInternalServerError, "InternalError", err)
		return
	}
	allPresent := true
	for _, ok := range tables {
		if !ok {
			allPresent = false
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":     allPresent,
		"tables": tables,
	})
}
