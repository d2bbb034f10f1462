package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/warthog618/modem/at"
	"github.com/warthog618/modem/gsm"
	"go.bug.st/serial"
)

const (
	atCommandTimeout = 5 * time.Second
	smsSendTimeout   = 15 * time.Second
	ussdTimeout      = 30 * time.Second
)

// deadline bounds a modem library call by the tighter of the context
// deadline and the given command timeout. The library has no context
// plumbing, so cancellation deadlines are translated into its timeout
// option.
func deadline(ctx context.Context, fallback time.Duration) at.TimeoutOption {
	if d, ok := ctx.Deadline(); ok {
		if remaining := time.Until(d); remaining < fallback {
			return at.WithTimeout(remaining)
		}
	}
	return at.WithTimeout(fallback)
}

// SerialModem drives a GSM modem over a serial AT command channel. It is
// the production Device implementation; tests use in-memory fakes.
type SerialModem struct {
	portName string
	baud     int

	mu      sync.Mutex
	port    serial.Port
	at      *at.AT
	g       *gsm.GSM
	ussdCh  chan UssdReply
	inbound chan InboundMessage
}

func NewSerialModem(portName string, baud int, queueSize int) *SerialModem {
	return &SerialModem{
		portName: portName,
		baud:     baud,
		inbound:  make(chan InboundMessage, queueSize),
	}
}

func (m *SerialModem) Connect(ctx context.Context, pin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.port != nil {
		return nil
	}

	port, err := serial.Open(m.portName, &serial.Mode{BaudRate: m.baud})
	if err != nil {
		return newFault(FaultPermanent, "connect", "open serial port", err)
	}

	a := at.New(port, at.WithTimeout(atCommandTimeout))
	if err := a.Init(deadline(ctx, atCommandTimeout)); err != nil {
		port.Close()
		return newFault(FaultPermanent, "connect", "modem init", err)
	}

	if pin != "" {
		if err := m.enterPIN(ctx, a, pin); err != nil {
			port.Close()
			return err
		}
	}

	g := gsm.New(a)
	if err := g.Init(deadline(ctx, atCommandTimeout)); err != nil {
		port.Close()
		return newFault(FaultPermanent, "connect", "gsm init", err)
	}

	m.ussdCh = make(chan UssdReply, 1)
	if err := a.AddIndication("+CUSD:", m.handleCUSD); err != nil {
		port.Close()
		return newFault(FaultPermanent, "connect", "register ussd indication", err)
	}

	if err := g.StartMessageRx(m.handleMessage, m.handleRxError); err != nil {
		port.Close()
		return newFault(FaultPermanent, "connect", "start message rx", err)
	}

	m.port = port
	m.at = a
	m.g = g

	log.Info().Str("port", m.portName).Int("baud", m.baud).Msg("modem connected")
	return nil
}

func (m *SerialModem) enterPIN(ctx context.Context, a *at.AT, pin string) error {
	info, err := a.Command("+CPIN?", deadline(ctx, atCommandTimeout))
	if err != nil {
		return newFault(FaultPermanent, "connect", "query pin state", err)
	}
	if len(info) > 0 && strings.Contains(info[0], "READY") {
		return nil
	}
	if _, err := a.Command(fmt.Sprintf(`+CPIN="%s"`, pin), deadline(ctx, atCommandTimeout)); err != nil {
		return newFault(FaultPermanent, "connect", "enter pin", err)
	}
	return nil
}

func (m *SerialModem) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.port == nil {
		return nil
	}

	if m.g != nil {
		m.g.StopMessageRx()
	}
	err := m.port.Close()
	m.port = nil
	m.at = nil
	m.g = nil
	if err != nil {
		return newFault(FaultPermanent, "disconnect", "close serial port", err)
	}
	return nil
}

func (m *SerialModem) SendText(ctx context.Context, number, body string) error {
	g, err := m.handle()
	if err != nil {
		return err
	}

	if _, err := g.SendShortMessage(number, body, deadline(ctx, smsSendTimeout)); err != nil {
		if errors.Is(err, at.ErrDeadlineExceeded) || ctx.Err() != nil {
			return newFault(FaultTimeout, "sendText", "send timed out", err)
		}
		return newFault(classifyCarrier(err.Error()), "sendText", "carrier rejected message", err)
	}
	return nil
}

func (m *SerialModem) SendUssd(ctx context.Context, code string) (UssdReply, error) {
	m.mu.Lock()
	a := m.at
	ch := m.ussdCh
	m.mu.Unlock()
	if a == nil {
		return UssdReply{}, newFault(FaultPermanent, "sendUssd", "modem not connected", nil)
	}

	// Flush a stale reply from a previous timed-out exchange.
	select {
	case <-ch:
	default:
	}

	if _, err := a.Command(fmt.Sprintf(`+CUSD=1,"%s",15`, code), deadline(ctx, atCommandTimeout)); err != nil {
		return UssdReply{}, newFault(classifyCarrier(err.Error()), "sendUssd", "issue ussd command", err)
	}

	timer := time.NewTimer(ussdTimeout)
	defer timer.Stop()
	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		return UssdReply{}, newFault(FaultTimeout, "sendUssd", "no network reply", nil)
	case <-ctx.Done():
		return UssdReply{}, newFault(FaultTimeout, "sendUssd", "context cancelled", ctx.Err())
	}
}

func (m *SerialModem) CancelUssd(ctx context.Context) error {
	a, err := m.atHandle()
	if err != nil {
		return err
	}
	if _, err := a.Command("+CUSD=2", deadline(ctx, atCommandTimeout)); err != nil {
		return newFault(FaultPermanent, "cancelUssd", "terminate session", err)
	}
	return nil
}

func (m *SerialModem) NetworkName(ctx context.Context) (string, error) {
	a, err := m.atHandle()
	if err != nil {
		return "", err
	}
	info, err := a.Command("+COPS?", deadline(ctx, atCommandTimeout))
	if err != nil {
		return "", newFault(FaultPermanent, "networkName", "query operator", err)
	}
	return parseCOPS(info), nil
}

func (m *SerialModem) SignalStrength(ctx context.Context) (int, error) {
	a, err := m.atHandle()
	if err != nil {
		return -1, err
	}
	info, err := a.Command("+CSQ", deadline(ctx, atCommandTimeout))
	if err != nil {
		return -1, newFault(FaultPermanent, "signalStrength", "query signal", err)
	}
	return parseCSQ(info), nil
}

func (m *SerialModem) Registered(ctx context.Context) (bool, error) {
	a, err := m.atHandle()
	if err != nil {
		return false, err
	}
	info, err := a.Command("+CREG?", deadline(ctx, atCommandTimeout))
	if err != nil {
		return false, newFault(FaultPermanent, "registered", "query registration", err)
	}
	return parseCREG(info), nil
}

func (m *SerialModem) DrainStored(ctx context.Context) error {
	a, err := m.atHandle()
	if err != nil {
		return err
	}
	// StartMessageRx flushes stored messages on start; re-asserting the
	// same direct-delivery indication mode picks up anything buffered
	// since.
	if _, err := a.Command("+CNMI=1,2,0,0,0", deadline(ctx, atCommandTimeout)); err != nil {
		return newFault(FaultPermanent, "drainStored", "resync message indications", err)
	}
	return nil
}

func (m *SerialModem) Inbound() <-chan InboundMessage {
	return m.inbound
}

func (m *SerialModem) handle() (*gsm.GSM, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.g == nil {
		return nil, newFault(FaultPermanent, "device", "modem not connected", nil)
	}
	return m.g, nil
}

func (m *SerialModem) atHandle() (*at.AT, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.at == nil {
		return nil, newFault(FaultPermanent, "device", "modem not connected", nil)
	}
	return m.at, nil
}

func (m *SerialModem) handleMessage(msg gsm.Message) {
	in := InboundMessage{
		Number:     msg.Number,
		ReceivedAt: time.Now(),
		Text:       msg.Message,
	}
	select {
	case m.inbound <- in:
	default:
		log.Warn().Str("number", in.Number).Msg("inbound queue full, dropping message")
	}
}

func (m *SerialModem) handleRxError(err error) {
	log.Error().Err(err).Msg("message rx error")
}

func (m *SerialModem) handleCUSD(info []string) {
	if len(info) == 0 {
		return
	}
	reply, ok := parseCUSD(info[0])
	if !ok {
		log.Warn().Str("line", info[0]).Msg("unparseable ussd indication")
		return
	}
	select {
	case m.ussdCh <- reply:
	default:
		log.Warn().Msg("unsolicited ussd reply dropped")
	}
}

// parseCUSD decodes a `+CUSD: <m>[,"<text>"[,<dcs>]]` indication.
// m=1 means the network expects further input.
func parseCUSD(line string) (UssdReply, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "+CUSD:")
	if !ok {
		return UssdReply{}, false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return UssdReply{}, false
	}

	mode := rest[:1]
	var text string
	if start := strings.Index(rest, `"`); start >= 0 {
		if end := strings.LastIndex(rest, `"`); end > start {
			text = rest[start+1 : end]
		}
	}
	return UssdReply{Text: text, Active: mode == "1"}, true
}

// parseCOPS extracts the operator name from a `+COPS: <mode>[,<format>,"<oper>"[,<act>]]`
// response. Empty when not registered.
func parseCOPS(info []string) string {
	for _, line := range info {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "+COPS:")
		if !ok {
			continue
		}
		if start := strings.Index(rest, `"`); start >= 0 {
			if end := strings.LastIndex(rest, `"`); end > start {
				return rest[start+1 : end]
			}
		}
	}
	return ""
}

// parseCSQ extracts the RSSI from a `+CSQ: <rssi>,<ber>` response.
// Returns -1 when the strength is unknown (rssi 99).
func parseCSQ(info []string) int {
	for _, line := range info {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "+CSQ:")
		if !ok {
			continue
		}
		fields := strings.SplitN(strings.TrimSpace(rest), ",", 2)
		rssi, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil || rssi == 99 {
			return -1
		}
		return rssi
	}
	return -1
}

// parseCREG reports registration from a `+CREG: <n>,<stat>` response;
// stat 1 is home network, 5 is roaming.
func parseCREG(info []string) bool {
	for _, line := range info {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "+CREG:")
		if !ok {
			continue
		}
		fields := strings.Split(strings.TrimSpace(rest), ",")
		if len(fields) < 2 {
			continue
		}
		stat := strings.TrimSpace(fields[1])
		return stat == "1" || stat == "5"
	}
	return false
}
