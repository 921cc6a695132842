package handler

import (
	"net/http"

	"github.com/stoa-edu/stoa/internal/i18n"
	"github.com/stoa-edu/stoa/internal/model"
)

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Language string `json:"language"`
		Topic    string `json:"topic"`
		Goal     string `json:"goal"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" {
		req.Username = "anonymous"
	}

	m := h.sessions.Create(req.Username, req.Language, req.Topic, req.Goal)
	st := m.Snapshot()
	respondJSON(w, http.StatusCreated, map[string]any{
		"sessionId": st.ID,
		"username":  st.Username,
		"language":  st.Language,
		"topic":     st.SelectedTopic,
		"goal":      st.TestGoal,
		"level":     st.CurrentTestLevel,
	})
}

// handleClassroomChat is the classroom conversation endpoint: one learner
// message to one agent, one reply back.
func (h *Handler) handleClassroomChat(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	var req struct {
		Agent   model.AgentType `json:"agent"`
		Message string          `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		respondError(r.Context(), w, http.StatusBadRequest, "InvalidRequest", nil)
		return
	}

	reply, err := m.Classroom(r.Context(), req.Agent, req.Message)
	if err != nil {
		respondSessionError(r.Context(), w, err)
		return
	}
	st := m.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"reply":     reply,
		"agent":     req.Agent,
		"turnCount": st.TurnCount,
	})
}

func (h *Handler) handleTestQuestion(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	reply, err := m.Ask(r.Context())
	if err != nil {
		respondSessionError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleTestAnswer(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		respondError(r.Context(), w, http.StatusBadRequest, "InvalidRequest", nil)
		return
	}
	reply, err := m.Answer(r.Context(), req.Message)
	if err != nil {
		respondSessionError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleTestAnother(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	reply, err := m.AnotherQuestion(r.Context())
	if err != nil {
		respondSessionError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleTestAdvance(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	reply, err := m.Advance(r.Context())
	if err != nil {
		respondSessionError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

// handleSessionLog returns the full unified log and progress for a session.
func (h *Handler) handleSessionLog(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	st := m.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"sessionId":       st.ID,
		"unifiedLog":      st.UnifiedLog,
		"feedbackHistory": st.FeedbackHistory,
		"taskScores":      st.TaskScores,
		"level":           st.CurrentTestLevel,
		"turnCount":       st.TurnCount,
	})
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	if err := m.End(r.Context()); err != nil {
		respondSessionError(r.Context(), w, err)
		return
	}
	h.sessions.Remove(m.ID())
	respondJSON(w, http.StatusOK, map[string]any{
		"message": i18n.T(r.Context(), "SessionClosed"),
	})
}
