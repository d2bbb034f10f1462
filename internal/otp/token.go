package otp

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/hazolab/sms-gateway-go/internal/errors"
)

// TokenSigner issues and validates the signed tokens handed out after a
// successful phone verification. Tokens are HS256 JWTs with the verified
// phone number as subject claim.
type TokenSigner struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

func NewTokenSigner(secret string, validity time.Duration) *TokenSigner {
	return &TokenSigner{
		secret:   []byte(secret),
		validity: validity,
		now:      time.Now,
	}
}

// Sign issues a token asserting the phone number, valid for the
// configured window.
func (s *TokenSigner) Sign(phoneNumber string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"phone": phoneNumber,
		"iat":   now.Unix(),
		"exp":   now.Add(s.validity).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates signature and expiry and returns the phone number
// claim. Every failure mode is TOKEN_INVALID.
func (s *TokenSigner) Verify(tokenString string) (string, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", apperrors.TokenInvalid(err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", apperrors.TokenInvalid(nil)
	}
	phone, ok := claims["phone"].(string)
	if !ok || phone == "" {
		return "", apperrors.TokenInvalid(nil)
	}
	return phone, nil
}
