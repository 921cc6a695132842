package handler

import (
	"net/http"

	"github.com/stoa-edu/stoa/internal/llm"
	"github.com/stoa-edu/stoa/internal/model"
)

// handleChatProxy is the raw completion endpoint: the caller supplies the
// full message list and sampling parameters, the reply comes back as
// {content}. A leading system message becomes the system prompt; session
// state is not touched.
func (h *Handler) handleChatProxy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages    []model.Message `json:"messages"`
		Temperature float32         `json:"temperature"`
		MaxTokens   int             `json:"max_tokens"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		respondError(r.Context(), w, http.StatusBadRequest, "InvalidRequest", nil)
		return
	}
	if h.gw == nil {
		respondError(r.Context(), w, http.StatusInternalServerError, "InternalError", nil)
		return
	}

	var system string
	messages := req.Messages
	if messages[0].Role == model.RoleSystem {
		system = messages[0].Content
		messages = messages[1:]
	}

	content, err := h.gw.Complete(r.Context(), system, messages, llm.Options{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		respondSessionError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"content": content})
}
