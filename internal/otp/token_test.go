package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hazolab/sms-gateway-go/internal/errors"
)

func TestTokenSignVerify(t *testing.T) {
	t.Run("round trip returns the phone number", func(t *testing.T) {
		signer := NewTokenSigner("round-trip-secret", 24*time.Hour)

		token, err := signer.Sign("0341234567")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		phone, err := signer.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "0341234567", phone)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		signer := NewTokenSigner("secret-one", 24*time.Hour)
		other := NewTokenSigner("secret-two", 24*time.Hour)

		token, err := signer.Sign("0341234567")
		require.NoError(t, err)

		_, err = other.Verify(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTokenInvalid))
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		signer := NewTokenSigner("expiry-secret", time.Hour)

		token, err := signer.Sign("0341234567")
		require.NoError(t, err)

		signer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		_, err = signer.Verify(token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTokenInvalid))
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		signer := NewTokenSigner("garbage-secret", time.Hour)

		_, err := signer.Verify("not.a.token")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTokenInvalid))
	})
}
