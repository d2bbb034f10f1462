package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/hazolab/sms-gateway-go/internal/errors"
	"github.com/hazolab/sms-gateway-go/internal/middleware"
)

var phonePattern = regexp.MustCompile(`^\+?\d{7,15}$`)

// CodeStore is the slice of the verification store the HTTP surface
// needs.
type CodeStore interface {
	Issue(ctx context.Context, phoneNumber string) (time.Duration, error)
	Verify(phoneNumber, code string) (string, error)
}

type AuthHandler struct {
	store CodeStore
}

func NewAuthHandler(store CodeStore) *AuthHandler {
	return &AuthHandler{store: store}
}

// POST /auth/send-code
func (h *AuthHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, apperrors.MissingRequired("phone_number"))
		return
	}
	if !phonePattern.MatchString(req.PhoneNumber) {
		writeError(w, apperrors.InvalidInput("phone_number", "expected digits, optionally prefixed with +"))
		return
	}

	expiresIn, err := h.store.Issue(r.Context(), req.PhoneNumber)
	if err != nil {
		log.Error().Err(err).Str("phone", req.PhoneNumber).Msg("Failed to issue verification code")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "code sent",
		"expires_in": int(expiresIn.Seconds()),
	})
}

// POST /auth/verify-code
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
		Code        string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, apperrors.MissingRequired("phone_number"))
		return
	}
	if req.Code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}

	token, err := h.store.Verify(req.PhoneNumber, req.Code)
	if err != nil {
		log.Warn().Err(err).Str("phone", req.PhoneNumber).Msg("Verification failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// GET /protected-resource
func (h *AuthHandler) ProtectedResource(w http.ResponseWriter, r *http.Request) {
	phone := middleware.GetPhone(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Access granted",
		"phone":   phone,
	})
}
