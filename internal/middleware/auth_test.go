package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/hazolab/sms-gateway-go/internal/errors"
)

type fakeVerifier struct {
	phone string
	err   error
}

func (f *fakeVerifier) Verify(token string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.phone, nil
}

func TestAuthMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetPhone(r.Context())))
	})

	t.Run("valid bearer token passes phone through context", func(t *testing.T) {
		m := NewAuthMiddleware(&fakeVerifier{phone: "0341234567"})

		req := httptest.NewRequest(http.MethodGet, "/protected-resource", nil)
		req.Header.Set("Authorization", "Bearer some.valid.token")
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "0341234567", rec.Body.String())
	})

	t.Run("token from query parameter", func(t *testing.T) {
		m := NewAuthMiddleware(&fakeVerifier{phone: "0341234567"})

		req := httptest.NewRequest(http.MethodGet, "/ws?token=some.valid.token", nil)
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		m := NewAuthMiddleware(&fakeVerifier{phone: "0341234567"})

		req := httptest.NewRequest(http.MethodGet, "/protected-resource", nil)
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		m := NewAuthMiddleware(&fakeVerifier{err: apperrors.TokenInvalid(nil)})

		req := httptest.NewRequest(http.MethodGet, "/protected-resource", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "TOKEN_INVALID")
	})

	t.Run("unauthenticated context has no phone", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Equal(t, "", GetPhone(req.Context()))
	})
}
