package modem

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hazolab/sms-gateway-go/internal/device"
	apperrors "github.com/hazolab/sms-gateway-go/internal/errors"
)

// State is the coarse connection state of the modem. Exactly one Manager
// (and so one state) exists per process.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateNetworkWait  State = "NETWORK_WAIT"
	StateReady        State = "READY"
	StateError        State = "ERROR"
)

// Options carries the connect/retry tuning. Zero values fall back to the
// production defaults; tests shrink the intervals to milliseconds.
type Options struct {
	DevicePath      string
	PIN             string
	NetworkWait     time.Duration
	NetworkPoll     time.Duration
	ConnectAttempts int
	ConnectPause    time.Duration
	SendAttempts    int
	SendPause       time.Duration
}

func (o *Options) applyDefaults() {
	if o.NetworkWait == 0 {
		o.NetworkWait = 30 * time.Second
	}
	if o.NetworkPoll == 0 {
		o.NetworkPoll = 2 * time.Second
	}
	if o.ConnectAttempts == 0 {
		o.ConnectAttempts = 3
	}
	if o.ConnectPause == 0 {
		o.ConnectPause = 5 * time.Second
	}
	if o.SendAttempts == 0 {
		o.SendAttempts = 3
	}
	if o.SendPause == 0 {
		o.SendPause = 2 * time.Second
	}
}

// Manager owns the device handle and drives connect, retry, network wait
// and disconnect. Every device-facing operation serializes on devMu; no
// two operations are ever in flight against the device concurrently.
type Manager struct {
	dev  device.Device
	opts Options

	devMu sync.Mutex

	stateMu sync.RWMutex
	state   State
}

func NewManager(dev device.Device, opts Options) *Manager {
	opts.applyDefaults()
	return &Manager{
		dev:   dev,
		opts:  opts,
		state: StateDisconnected,
	}
}

func (m *Manager) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.stateMu.Lock()
	prev := m.state
	m.state = s
	m.stateMu.Unlock()
	if prev != s {
		log.Info().Str("from", string(prev)).Str("to", string(s)).Msg("modem state")
	}
}

// Connect opens the device and waits for network registration. It is a
// single attempt: the retry policy lives in ConnectWithRetry.
func (m *Manager) Connect(ctx context.Context) error {
	m.devMu.Lock()
	defer m.devMu.Unlock()
	return m.connectLocked(ctx)
}

func (m *Manager) connectLocked(ctx context.Context) error {
	switch m.State() {
	case StateDisconnected, StateError:
	default:
		return apperrors.Internal(fmt.Sprintf("connect called in state %s", m.State()))
	}

	if m.opts.DevicePath != "" {
		if _, err := os.Stat(m.opts.DevicePath); err != nil {
			m.setState(StateError)
			return apperrors.DeviceUnavailable(err)
		}
	}

	m.setState(StateConnecting)
	if err := m.dev.Connect(ctx, m.opts.PIN); err != nil {
		m.setState(StateError)
		return apperrors.DeviceUnavailable(err)
	}

	m.setState(StateNetworkWait)
	deadline := time.Now().Add(m.opts.NetworkWait)
	for {
		registered, err := m.dev.Registered(ctx)
		if err == nil && registered {
			name, err := m.dev.NetworkName(ctx)
			if err == nil && name != "" {
				m.setState(StateReady)
				log.Info().Str("network", name).Msg("registered to network")
				return nil
			}
		}

		if time.Now().After(deadline) {
			if err := m.dev.Disconnect(); err != nil {
				log.Error().Err(err).Msg("disconnect after registration timeout")
			}
			m.setState(StateError)
			return apperrors.NetworkTimeout()
		}

		select {
		case <-ctx.Done():
			if err := m.dev.Disconnect(); err != nil {
				log.Error().Err(err).Msg("disconnect after cancelled connect")
			}
			m.setState(StateError)
			return apperrors.NetworkTimeout().WithCause(ctx.Err())
		case <-time.After(m.opts.NetworkPoll):
		}
	}
}

// ConnectWithRetry applies the caller-level retry policy: up to
// ConnectAttempts calls to Connect with a fixed pause in between. After
// exhaustion the manager stays in ERROR and sends fail fast.
func (m *Manager) ConnectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= m.opts.ConnectAttempts; attempt++ {
		log.Info().Int("attempt", attempt).Int("of", m.opts.ConnectAttempts).Msg("connecting to modem")
		lastErr = m.Connect(ctx)
		if lastErr == nil {
			return nil
		}
		log.Warn().Err(lastErr).Int("attempt", attempt).Msg("modem connect failed")
		if attempt < m.opts.ConnectAttempts {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(m.opts.ConnectPause):
			}
		}
	}
	return lastErr
}

// CheckStatus is a cheap read of network name and signal strength. It does
// not mutate connection state.
func (m *Manager) CheckStatus(ctx context.Context) (bool, string) {
	if m.State() != StateReady {
		return false, "Modem not connected"
	}

	m.devMu.Lock()
	defer m.devMu.Unlock()
	return m.statusLocked(ctx)
}

func (m *Manager) statusLocked(ctx context.Context) (bool, string) {
	name, err := m.dev.NetworkName(ctx)
	if err != nil {
		return false, err.Error()
	}
	if name == "" {
		return false, "Not registered to network"
	}
	signal, err := m.dev.SignalStrength(ctx)
	if err != nil {
		return false, err.Error()
	}
	return true, fmt.Sprintf("Connected to %s (Signal: %d)", name, signal)
}

// SendText sends an SMS. Transient carrier faults are retried up to
// SendAttempts times with a fixed pause; every other fault surfaces
// immediately. The send path never reconnects; that is the keep-alive
// loop's job.
func (m *Manager) SendText(ctx context.Context, number, body string) error {
	if m.State() != StateReady {
		return apperrors.NotConnected()
	}

	m.devMu.Lock()
	defer m.devMu.Unlock()

	if ok, status := m.statusLocked(ctx); !ok {
		return apperrors.NetworkUnavailable(status)
	}

	var lastErr error
	for attempt := 1; attempt <= m.opts.SendAttempts; attempt++ {
		lastErr = m.dev.SendText(ctx, number, body)
		if lastErr == nil {
			log.Info().Str("number", number).Int("attempt", attempt).Msg("sms sent")
			return nil
		}
		if !device.IsTransient(lastErr) {
			return apperrors.Wrap(apperrors.ErrCodeInternal, "SMS send failed", lastErr)
		}
		log.Warn().Err(lastErr).Int("attempt", attempt).Msg("transient sms fault")
		if attempt < m.opts.SendAttempts {
			select {
			case <-ctx.Done():
				return apperrors.RetriesExhausted(attempt, ctx.Err())
			case <-time.After(m.opts.SendPause):
			}
		}
	}
	return apperrors.RetriesExhausted(m.opts.SendAttempts, lastErr)
}

// SendUssd performs a one-shot USSD exchange. A session the network left
// open is explicitly cancelled so it cannot leak; callers that want to
// keep the dialogue going use Exchange instead.
func (m *Manager) SendUssd(ctx context.Context, code string) (device.UssdReply, error) {
	reply, err := m.Exchange(ctx, code)
	if err != nil {
		return device.UssdReply{}, err
	}
	if reply.Active {
		m.devMu.Lock()
		if cerr := m.dev.CancelUssd(ctx); cerr != nil {
			log.Warn().Err(cerr).Msg("cancel of open ussd session failed")
		}
		m.devMu.Unlock()
	}
	return reply, nil
}

// Exchange performs one USSD round trip and leaves an interactive session
// open on the device. The USSD engine owns the session from here.
func (m *Manager) Exchange(ctx context.Context, code string) (device.UssdReply, error) {
	if m.State() != StateReady {
		return device.UssdReply{}, apperrors.NotConnected()
	}

	m.devMu.Lock()
	defer m.devMu.Unlock()

	reply, err := m.dev.SendUssd(ctx, code)
	if err != nil {
		if device.IsTimeout(err) {
			return device.UssdReply{}, apperrors.UssdTimeout(code)
		}
		return device.UssdReply{}, apperrors.Wrap(apperrors.ErrCodeInternal, "USSD send failed", err)
	}
	return reply, nil
}

// CancelUssd terminates the open USSD session on the device.
func (m *Manager) CancelUssd(ctx context.Context) error {
	m.devMu.Lock()
	defer m.devMu.Unlock()
	return m.dev.CancelUssd(ctx)
}

// DrainStored asks the device to deliver buffered messages through the
// inbound channel.
func (m *Manager) DrainStored(ctx context.Context) error {
	if m.State() != StateReady {
		return apperrors.NotConnected()
	}
	m.devMu.Lock()
	defer m.devMu.Unlock()
	return m.dev.DrainStored(ctx)
}

// Disconnect is idempotent and best effort; close errors are logged, not
// returned.
func (m *Manager) Disconnect() {
	m.devMu.Lock()
	defer m.devMu.Unlock()
	if err := m.dev.Disconnect(); err != nil {
		log.Error().Err(err).Msg("modem disconnect")
	}
	m.setState(StateDisconnected)
}

// Healthy reports whether the modem session is live.
func (m *Manager) Healthy() bool {
	return m.State() == StateReady
}

// Inbound exposes the device's notification channel.
func (m *Manager) Inbound() <-chan device.InboundMessage {
	return m.dev.Inbound()
}
