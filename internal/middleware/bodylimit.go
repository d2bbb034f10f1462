package middleware

import (
	"net/http"

	"github.com/hazolab/sms-gateway-go/internal/config"
)

// BodyLimitMiddleware caps request body size. Gateway requests are small
// JSON documents (a phone number plus at most one SMS worth of text), so
// the default limit is deliberately tight.
type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = config.MaxRequestBodyBytes
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reject early when the client declares an oversize body; the
		// MaxBytesReader covers chunked requests with no declared length.
		if r.Body != nil && r.ContentLength > m.maxSize {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
			})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		next.ServeHTTP(w, r)
	})
}
