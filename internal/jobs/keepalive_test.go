package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazolab/sms-gateway-go/internal/device"
	"github.com/hazolab/sms-gateway-go/internal/model"
	"github.com/hazolab/sms-gateway-go/internal/notify"
)

type mockModem struct {
	mu           sync.Mutex
	healthy      bool
	statusOK     bool
	connectErr   error
	connectCalls int
	drainCalls   int
	statusCalls  int
	inbound      chan device.InboundMessage
}

func newMockModem(healthy, statusOK bool) *mockModem {
	return &mockModem{
		healthy:  healthy,
		statusOK: statusOK,
		inbound:  make(chan device.InboundMessage, 8),
	}
}

func (m *mockModem) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

func (m *mockModem) CheckStatus(_ context.Context) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	return m.statusOK, "Connected to Test (Signal: 20)"
}

func (m *mockModem) ConnectWithRetry(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if m.connectErr == nil {
		m.healthy = true
		m.statusOK = true
	}
	return m.connectErr
}

func (m *mockModem) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = false
}

func (m *mockModem) DrainStored(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drainCalls++
	return nil
}

func (m *mockModem) Inbound() <-chan device.InboundMessage {
	return m.inbound
}

func (m *mockModem) counts() (connect, drain, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls, m.drainCalls, m.statusCalls
}

type mockRecords struct {
	mu           sync.Mutex
	transactions []model.Transaction
	unparsed     []model.UnparsedMessage
}

func (m *mockRecords) CreateTransaction(_ context.Context, tx *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, *tx)
	return nil
}

func (m *mockRecords) CreateUnparsed(_ context.Context, msg *model.UnparsedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unparsed = append(m.unparsed, *msg)
	return nil
}

func (m *mockRecords) snapshot() (txs []model.Transaction, raw []model.UnparsedMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Transaction(nil), m.transactions...),
		append([]model.UnparsedMessage(nil), m.unparsed...)
}

type mockSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (m *mockSink) Publish(_ context.Context, event notify.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockSink) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Type)
	}
	return out
}

const sampleSMS = "50 000 Ar recu de herimampianina (0346449569) le 01/08/24 a 07:44. " +
	"Solde : 59 950 Ar. Ref: 276567871"

func TestKeepAliveJob(t *testing.T) {
	t.Run("healthy modem is probed and drained", func(t *testing.T) {
		modem := newMockModem(true, true)
		job := NewKeepAliveJob(modem, &mockRecords{}, &mockSink{}, 20*time.Millisecond)

		job.Start()
		time.Sleep(70 * time.Millisecond)
		job.Stop()

		connect, drain, status := modem.counts()
		assert.Equal(t, 0, connect)
		assert.GreaterOrEqual(t, status, 2)
		assert.GreaterOrEqual(t, drain, 1, "healthy ticks must flush stored messages")
	})

	t.Run("disconnected modem is reconnected and drained", func(t *testing.T) {
		modem := newMockModem(false, false)
		sink := &mockSink{}
		job := NewKeepAliveJob(modem, &mockRecords{}, sink, 20*time.Millisecond)

		job.Start()
		time.Sleep(50 * time.Millisecond)
		job.Stop()

		connect, drain, _ := modem.counts()
		assert.GreaterOrEqual(t, connect, 1)
		assert.GreaterOrEqual(t, drain, 1)
		assert.Contains(t, sink.types(), notify.EventModemState)
	})

	t.Run("failed probe triggers reconnect", func(t *testing.T) {
		modem := newMockModem(true, false)
		job := NewKeepAliveJob(modem, &mockRecords{}, &mockSink{}, 20*time.Millisecond)

		job.Start()
		time.Sleep(50 * time.Millisecond)
		job.Stop()

		connect, _, _ := modem.counts()
		assert.GreaterOrEqual(t, connect, 1)
	})
}

func TestKeepAliveInboundConsumer(t *testing.T) {
	t.Run("parseable message becomes a transaction", func(t *testing.T) {
		modem := newMockModem(true, true)
		records := &mockRecords{}
		sink := &mockSink{}
		job := NewKeepAliveJob(modem, records, sink, time.Hour)

		job.Start()
		modem.inbound <- device.InboundMessage{
			Number:     "MVola",
			ReceivedAt: time.Now(),
			Text:       sampleSMS,
		}
		time.Sleep(50 * time.Millisecond)
		job.Stop()

		txs, raw := records.snapshot()
		require.Len(t, txs, 1)
		assert.Empty(t, raw)
		assert.Equal(t, int64(50000), txs[0].Amount)
		assert.Equal(t, "276567871", txs[0].Reference)

		types := sink.types()
		assert.Contains(t, types, notify.EventSMSReceived)
		assert.Contains(t, types, notify.EventTransaction)
	})

	t.Run("unrecognized message is stored raw", func(t *testing.T) {
		modem := newMockModem(true, true)
		records := &mockRecords{}
		sink := &mockSink{}
		job := NewKeepAliveJob(modem, records, sink, time.Hour)

		job.Start()
		modem.inbound <- device.InboundMessage{
			Number:     "0341234567",
			ReceivedAt: time.Now(),
			Text:       "hello there",
		}
		time.Sleep(50 * time.Millisecond)
		job.Stop()

		txs, raw := records.snapshot()
		assert.Empty(t, txs)
		require.Len(t, raw, 1)
		assert.Equal(t, "hello there", raw[0].RawMessage)

		types := sink.types()
		assert.Contains(t, types, notify.EventSMSReceived)
		assert.NotContains(t, types, notify.EventTransaction)
	})
}
