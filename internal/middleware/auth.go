package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/hazolab/sms-gateway-go/internal/errors"
	"github.com/hazolab/sms-gateway-go/internal/httputil"
)

type contextKey string

const PhoneContextKey contextKey = "phone"

// GetPhone returns the verified phone number stored by the auth
// middleware, or "" when the request is unauthenticated.
func GetPhone(ctx context.Context) string {
	if phone, ok := ctx.Value(PhoneContextKey).(string); ok {
		return phone
	}
	return ""
}

// TokenVerifier validates a bearer token and returns the phone number
// it asserts. Satisfied by otp.TokenSigner.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.TokenInvalid(nil).WithDetails("missing bearer token"))
			return
		}

		phone, err := m.verifier.Verify(token)
		if err != nil {
			log.Warn().Err(err).Msg("Rejected invalid token")
			httputil.WriteError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), PhoneContextKey, phone)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// WebSocket clients cannot set headers from a browser.
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	return ""
}
