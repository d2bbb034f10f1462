package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hazolab/sms-gateway-go/internal/config"
)

func TestBodyLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("small body passes through", func(t *testing.T) {
		m := NewBodyLimitMiddleware(64)

		req := httptest.NewRequest(http.MethodPost, "/send-sms", strings.NewReader(`{"ok":true}`))
		rec := httptest.NewRecorder()

		m.Handler(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("declared oversize body is rejected", func(t *testing.T) {
		m := NewBodyLimitMiddleware(8)

		req := httptest.NewRequest(http.MethodPost, "/send-sms",
			strings.NewReader(`{"message": "far longer than eight bytes"}`))
		rec := httptest.NewRecorder()

		m.Handler(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("zero size falls back to the gateway default", func(t *testing.T) {
		m := NewBodyLimitMiddleware(0)
		assert.Equal(t, int64(config.MaxRequestBodyBytes), m.maxSize)
	})
}
