package ussd

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hazolab/sms-gateway-go/internal/device"
	apperrors "github.com/hazolab/sms-gateway-go/internal/errors"
)

// SessionState tracks where a USSD dialogue is.
type SessionState string

const (
	StateActive        SessionState = "ACTIVE"
	StateAwaitingInput SessionState = "AWAITING_INPUT"
	StateComplete      SessionState = "COMPLETE"
	StateCancelled     SessionState = "CANCELLED"
)

func (s SessionState) Terminal() bool {
	return s == StateComplete || s == StateCancelled
}

// Step is one request/response exchange in a dialogue, kept for replay.
type Step struct {
	SentCode     string    `json:"sentCode"`
	ReceivedText string    `json:"receivedText"`
	At           time.Time `json:"at"`
}

// Session is an interactive USSD dialogue addressable by id. Ids are
// uuids and never reused after removal.
type Session struct {
	ID          string       `json:"id"`
	State       SessionState `json:"state"`
	CurrentCode string       `json:"currentCode"`
	StepCount   int          `json:"stepCount"`
	History     []Step       `json:"history"`
	CreatedAt   time.Time    `json:"createdAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`

	deviceOpen bool
}

// Sender is the slice of the connection manager the engine needs.
type Sender interface {
	Exchange(ctx context.Context, code string) (device.UssdReply, error)
	CancelUssd(ctx context.Context) error
}

// Engine turns the single-shot USSD primitive into tracked, resumable
// sessions. The session table has its own lock, never held across device
// calls.
type Engine struct {
	sender Sender
	idle   time.Duration
	notify func(Session)
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewEngine(sender Sender, idle time.Duration) *Engine {
	return &Engine{
		sender:   sender,
		idle:     idle,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// OnUpdate registers a fire-and-forget callback invoked with a copy of the
// session after every state change.
func (e *Engine) OnUpdate(fn func(Session)) {
	e.notify = fn
}

func (e *Engine) publish(s Session) {
	if e.notify != nil {
		e.notify(s)
	}
}

func snapshot(s *Session) Session {
	copied := *s
	copied.History = make([]Step, len(s.History))
	copy(copied.History, s.History)
	return copied
}

// Start creates a session, issues the first exchange and returns the
// session snapshot.
func (e *Engine) Start(ctx context.Context, code string) (Session, error) {
	reply, err := e.sender.Exchange(ctx, code)
	if err != nil {
		return Session{}, err
	}

	now := e.now()
	s := &Session{
		ID:          uuid.NewString(),
		State:       StateComplete,
		CurrentCode: code,
		StepCount:   1,
		History:     []Step{{SentCode: code, ReceivedText: reply.Text, At: now}},
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.idle),
	}
	if reply.Active {
		s.State = StateAwaitingInput
		s.deviceOpen = true
	}

	e.mu.Lock()
	e.sessions[s.ID] = s
	out := snapshot(s)
	e.mu.Unlock()

	log.Info().Str("sessionId", s.ID).Str("code", code).Str("state", string(s.State)).Msg("ussd session started")
	e.publish(out)
	return out, nil
}

// Continue sends input on a session awaiting it. Exactly one Continue is
// accepted per reply: a concurrent second call sees ACTIVE and fails with
// SESSION_WRONG_STATE.
func (e *Engine) Continue(ctx context.Context, id, input string) (Session, error) {
	e.mu.Lock()
	s, err := e.lookupLocked(id)
	if err != nil {
		e.mu.Unlock()
		return Session{}, err
	}
	if s.State != StateAwaitingInput {
		state := s.State
		e.mu.Unlock()
		return Session{}, apperrors.SessionWrongState(id, string(state))
	}
	s.State = StateActive
	s.CurrentCode = input
	e.mu.Unlock()

	reply, sendErr := e.sender.Exchange(ctx, input)

	e.mu.Lock()
	if _, live := e.sessions[id]; !live || s.State != StateActive {
		// A Cancel landed (or the idle sweep evicted the session) while
		// the exchange was in flight. The terminal state stands and the
		// late reply is dropped.
		state := s.State
		e.mu.Unlock()
		if sendErr == nil && reply.Active {
			if cerr := e.sender.CancelUssd(ctx); cerr != nil {
				log.Warn().Err(cerr).Str("sessionId", id).Msg("device ussd cancel failed, treating as closed")
			}
		}
		if !live {
			return Session{}, apperrors.SessionNotFound(id)
		}
		return Session{}, apperrors.SessionWrongState(id, string(state))
	}
	defer e.mu.Unlock()

	if sendErr != nil {
		// Leave the dialogue resumable; the network reply never arrived.
		s.State = StateAwaitingInput
		return Session{}, sendErr
	}

	now := e.now()
	s.History = append(s.History, Step{SentCode: input, ReceivedText: reply.Text, At: now})
	s.StepCount++
	s.ExpiresAt = now.Add(e.idle)
	if reply.Active {
		s.State = StateAwaitingInput
		s.deviceOpen = true
	} else {
		s.State = StateComplete
		s.deviceOpen = false
	}

	out := snapshot(s)
	log.Info().Str("sessionId", id).Int("step", s.StepCount).Str("state", string(s.State)).Msg("ussd session continued")
	e.publish(out)
	return out, nil
}

// Cancel moves a session to CANCELLED. The device-level cancel is best
// effort: an error there means the session was already closed.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	e.mu.Lock()
	s, err := e.lookupLocked(id)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if s.State.Terminal() {
		e.mu.Unlock()
		return nil
	}
	open := s.deviceOpen
	s.State = StateCancelled
	s.deviceOpen = false
	s.ExpiresAt = e.now().Add(e.idle)
	out := snapshot(s)
	e.mu.Unlock()

	if open {
		if cerr := e.sender.CancelUssd(ctx); cerr != nil {
			log.Warn().Err(cerr).Str("sessionId", id).Msg("device ussd cancel failed, treating as closed")
		}
	}

	log.Info().Str("sessionId", id).Msg("ussd session cancelled")
	e.publish(out)
	return nil
}

// Get returns a session snapshot for client polling.
func (e *Engine) Get(id string) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.lookupLocked(id)
	if err != nil {
		return Session{}, err
	}
	return snapshot(s), nil
}

// lookupLocked finds a session, lazily evicting it when its idle window
// has elapsed. Abandoned dialogues free themselves on next lookup.
func (e *Engine) lookupLocked(id string) (*Session, error) {
	s, ok := e.sessions[id]
	if !ok {
		return nil, apperrors.SessionNotFound(id)
	}
	if e.now().After(s.ExpiresAt) {
		delete(e.sessions, id)
		return nil, apperrors.SessionNotFound(id)
	}
	return s, nil
}

// PruneExpired removes sessions whose idle window has elapsed and returns
// how many were evicted.
func (e *Engine) PruneExpired() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	evicted := 0
	for id, s := range e.sessions {
		if now.After(s.ExpiresAt) {
			delete(e.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of tracked sessions.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}
