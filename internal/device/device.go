package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// InboundMessage is a text message delivered by the modem's own event source.
type InboundMessage struct {
	Number     string    `json:"number"`
	ReceivedAt time.Time `json:"receivedAt"`
	Text       string    `json:"text"`
}

// UssdReply is the network's answer to a USSD exchange, tagged once at the
// adapter boundary. Active means the network left the interactive session
// open and expects further input.
type UssdReply struct {
	Text   string `json:"text"`
	Active bool   `json:"active"`
}

// FaultClass categorizes carrier/device errors for the retry policy.
type FaultClass int

const (
	FaultPermanent FaultClass = iota
	FaultTransient
	FaultTimeout
)

// Fault is an error reported by the device or carrier with an explicit
// classification, so callers never have to probe error strings.
type Fault struct {
	Class   FaultClass
	Op      string
	Message string
	cause   error
}

func (f *Fault) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Op, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Op, f.Message)
}

func (f *Fault) Unwrap() error {
	return f.cause
}

func newFault(class FaultClass, op, message string, cause error) *Fault {
	return &Fault{Class: class, Op: op, Message: message, cause: cause}
}

// Substrings of carrier-reported errors that are resolved by immediate
// retry. "message service busy" is the wording observed in production and
// is kept as a classification rule for compatibility.
var transientSubstrings = []string{
	"message service busy",
	"sms service of ms busy",
	"network failure",
}

// classifyCarrier maps a raw carrier error message onto a fault class.
func classifyCarrier(msg string) FaultClass {
	lower := strings.ToLower(msg)
	for _, s := range transientSubstrings {
		if strings.Contains(lower, s) {
			return FaultTransient
		}
	}
	return FaultPermanent
}

// IsTransient reports whether err is a fault expected to be resolved by
// immediate retry.
func IsTransient(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Class == FaultTransient
	}
	return false
}

// IsTimeout reports whether err is a protocol timeout.
func IsTimeout(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Class == FaultTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Device is the capability handle for a cellular modem. Implementations
// serialize their own port I/O; callers serialize operations against each
// other with the connection manager's device lock.
type Device interface {
	// Connect opens the device and registers the inbound-message sink.
	Connect(ctx context.Context, pin string) error
	// Disconnect closes the device. Best effort.
	Disconnect() error

	SendText(ctx context.Context, number, body string) error

	// SendUssd performs one USSD round trip. The session stays open on the
	// device when the reply is Active; the caller owns closing it.
	SendUssd(ctx context.Context, code string) (UssdReply, error)
	// CancelUssd terminates any open USSD session on the device.
	CancelUssd(ctx context.Context) error

	NetworkName(ctx context.Context) (string, error)
	SignalStrength(ctx context.Context) (int, error)
	Registered(ctx context.Context) (bool, error)

	// DrainStored asks the device to deliver messages buffered on the SIM
	// or device memory through the inbound channel.
	DrainStored(ctx context.Context) error

	// Inbound is the notification channel fed by the device's event
	// source. It stays valid across reconnects and is never closed by
	// Disconnect.
	Inbound() <-chan InboundMessage
}
