package handler

import (
	"errors"
	"net/http"

	"github.com/edutech-foundation/site-api/internal/application/chat"
	"github.com/edutech-foundation/site-api/internal/domain"
	"go.uber.org/zap"
)

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatHandler struct {
	svc chat.Service
	log *zap.SugaredLogger
}

func NewChatHandler(svc chat.Service, log *zap.SugaredLogger) *ChatHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ChatHandler{svc: svc, log: log}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ChatEnvelope{Error: "invalid request body"})
		return
	}
	reply, err := h.svc.Reply(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrBadRequest) {
			writeJSON(w, http.StatusBadRequest, ChatEnvelope{Error: clientMessage(err, domain.ErrBadRequest)})
			return
		}
		h.log.Errorw("chat reply failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, ChatEnvelope{Error: "Internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, ChatEnvelope{Response: reply})
}
