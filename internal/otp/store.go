package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/hazolab/sms-gateway-go/internal/errors"
)

const codeDigits = 6

// messageTemplate is the SMS body delivered to the subscriber.
const messageTemplate = "Your verification code is: %s. Valid for %d minutes."

// Sender delivers the verification SMS. Satisfied by modem.Manager.
type Sender interface {
	SendText(ctx context.Context, number, body string) error
}

type entry struct {
	code      string
	issuedAt  time.Time
	expiresAt time.Time
}

// Store holds pending verification codes keyed by phone number. At most
// one code is live per number; issuing a new one replaces the old.
type Store struct {
	sender Sender
	signer *TokenSigner
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	pending map[string]entry
}

func NewStore(sender Sender, signer *TokenSigner, ttl time.Duration) *Store {
	return &Store{
		sender:  sender,
		signer:  signer,
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[string]entry),
	}
}

// Issue generates a fresh code for the phone number, records it, sends
// it by SMS, and returns the code's validity window. The code is
// recorded before delivery is attempted, so a delivery failure still
// leaves a verifiable code behind.
func (s *Store) Issue(ctx context.Context, phoneNumber string) (time.Duration, error) {
	code, err := generateCode()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to generate verification code", err)
	}

	now := s.now()
	s.mu.Lock()
	s.pending[phoneNumber] = entry{
		code:      code,
		issuedAt:  now,
		expiresAt: now.Add(s.ttl),
	}
	s.mu.Unlock()

	body := fmt.Sprintf(messageTemplate, code, int(s.ttl.Minutes()))
	if err := s.sender.SendText(ctx, phoneNumber, body); err != nil {
		log.Error().Err(err).Str("phone", phoneNumber).Msg("Verification SMS delivery failed")
		return 0, err
	}

	log.Info().Str("phone", phoneNumber).Msg("Verification code issued")
	return s.ttl, nil
}

// Verify checks the submitted code against the pending entry. A correct
// code consumes the entry and returns a signed token. An expired entry
// is removed; a mismatched code leaves the entry in place so the
// subscriber can retry.
func (s *Store) Verify(phoneNumber, code string) (string, error) {
	s.mu.Lock()
	e, ok := s.pending[phoneNumber]
	if !ok {
		s.mu.Unlock()
		return "", apperrors.CodeNotFound()
	}
	if s.now().After(e.expiresAt) {
		delete(s.pending, phoneNumber)
		s.mu.Unlock()
		return "", apperrors.CodeExpired()
	}
	if e.code != code {
		s.mu.Unlock()
		return "", apperrors.CodeMismatch()
	}
	delete(s.pending, phoneNumber)
	s.mu.Unlock()

	token, err := s.signer.Sign(phoneNumber)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to sign token", err)
	}

	log.Info().Str("phone", phoneNumber).Msg("Phone number verified")
	return token, nil
}

// PruneExpired drops entries past their expiry and reports how many
// were removed.
func (s *Store) PruneExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for phone, e := range s.pending {
		if now.After(e.expiresAt) {
			delete(s.pending, phone)
			removed++
		}
	}
	return removed
}

// Len reports the number of pending codes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
