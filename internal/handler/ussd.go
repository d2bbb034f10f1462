package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/hazolab/sms-gateway-go/internal/errors"
	"github.com/hazolab/sms-gateway-go/internal/ussd"
)

// SessionEngine is the slice of the USSD engine the HTTP surface needs.
type SessionEngine interface {
	Start(ctx context.Context, code string) (ussd.Session, error)
	Continue(ctx context.Context, id, input string) (ussd.Session, error)
	Cancel(ctx context.Context, id string) error
	Get(id string) (ussd.Session, error)
}

type UssdHandler struct {
	engine SessionEngine
}

func NewUssdHandler(engine SessionEngine) *UssdHandler {
	return &UssdHandler{engine: engine}
}

func (h *UssdHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Start)
	r.Get("/{sessionID}", h.Get)
	r.Post("/{sessionID}/reply", h.Reply)
	r.Delete("/{sessionID}", h.Cancel)

	return r
}

// POST /ussd
func (h *UssdHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.Code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}

	session, err := h.engine.Start(r.Context(), req.Code)
	if err != nil {
		log.Error().Err(err).Str("code", req.Code).Msg("Failed to start USSD session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse(session))
}

// GET /ussd/{sessionID}
func (h *UssdHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	session, err := h.engine.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse(session))
}

// POST /ussd/{sessionID}/reply
func (h *UssdHandler) Reply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.Input == "" {
		writeError(w, apperrors.MissingRequired("input"))
		return
	}

	session, err := h.engine.Continue(r.Context(), id, req.Input)
	if err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("Failed to continue USSD session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse(session))
}

// DELETE /ussd/{sessionID}
func (h *UssdHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	if err := h.engine.Cancel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func sessionResponse(s ussd.Session) map[string]any {
	resp := map[string]any{
		"session": s,
	}
	if n := len(s.History); n > 0 {
		resp["reply"] = s.History[n-1].ReceivedText
	}
	return resp
}
