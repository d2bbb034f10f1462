package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hazolab/sms-gateway-go/internal/device"
	apperrors "github.com/hazolab/sms-gateway-go/internal/errors"
	"github.com/hazolab/sms-gateway-go/internal/modem"
	"github.com/hazolab/sms-gateway-go/internal/notify"
)

// ModemGateway is the slice of the connection manager the HTTP surface
// needs.
type ModemGateway interface {
	State() modem.State
	CheckStatus(ctx context.Context) (bool, string)
	SendText(ctx context.Context, number, body string) error
	SendUssd(ctx context.Context, code string) (device.UssdReply, error)
}

type ModemHandler struct {
	gateway     ModemGateway
	events      notify.Sink
	balanceCode string
}

func NewModemHandler(gateway ModemGateway, events notify.Sink, balanceCode string) *ModemHandler {
	return &ModemHandler{
		gateway:     gateway,
		events:      events,
		balanceCode: balanceCode,
	}
}

// GET /modem/status
func (h *ModemHandler) Status(w http.ResponseWriter, r *http.Request) {
	state := h.gateway.State()
	resp := map[string]any{
		"state":     state,
		"connected": state == modem.StateReady,
	}
	if state == modem.StateReady {
		ok, status := h.gateway.CheckStatus(r.Context())
		resp["connected"] = ok
		resp["network"] = status
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /send-sms
func (h *ModemHandler) SendSMS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
		Message     string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, apperrors.MissingRequired("phone_number"))
		return
	}
	if req.Message == "" {
		writeError(w, apperrors.MissingRequired("message"))
		return
	}

	if err := h.gateway.SendText(r.Context(), req.PhoneNumber, req.Message); err != nil {
		log.Error().Err(err).Str("to", req.PhoneNumber).Msg("Failed to send SMS")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// POST /check-balance
func (h *ModemHandler) CheckBalance(w http.ResponseWriter, r *http.Request) {
	reply, err := h.gateway.SendUssd(r.Context(), h.balanceCode)
	if err != nil {
		log.Error().Err(err).Str("code", h.balanceCode).Msg("Balance check failed")
		writeError(w, err)
		return
	}

	h.events.Publish(r.Context(), notify.NewEvent(notify.EventUssdReply, map[string]string{
		"code":  h.balanceCode,
		"reply": reply.Text,
	}))

	writeJSON(w, http.StatusOK, map[string]string{"balance": reply.Text})
}
