package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hazolab/sms-gateway-go/internal/device"
	"github.com/hazolab/sms-gateway-go/internal/model"
	"github.com/hazolab/sms-gateway-go/internal/notify"
	"github.com/hazolab/sms-gateway-go/internal/parser"
)

const keepAliveTickTimeout = 2 * time.Minute

// Modem is the slice of the connection manager the keep-alive loop
// needs.
type Modem interface {
	Healthy() bool
	CheckStatus(ctx context.Context) (bool, string)
	ConnectWithRetry(ctx context.Context) error
	Disconnect()
	DrainStored(ctx context.Context) error
	Inbound() <-chan device.InboundMessage
}

// RecordSink persists parsed transactions and unparsed raw messages.
// Satisfied by repository.TransactionRepository.
type RecordSink interface {
	CreateTransaction(ctx context.Context, tx *model.Transaction) error
	CreateUnparsed(ctx context.Context, msg *model.UnparsedMessage) error
}

// KeepAliveJob probes the modem on a fixed interval and reconnects when
// the link has dropped. It also consumes the inbound message stream,
// parsing each message into a transaction record where possible.
type KeepAliveJob struct {
	modem    Modem
	records  RecordSink
	events   notify.Sink
	interval time.Duration
	done     chan struct{}
}

func NewKeepAliveJob(modem Modem, records RecordSink, events notify.Sink, interval time.Duration) *KeepAliveJob {
	return &KeepAliveJob{
		modem:    modem,
		records:  records,
		events:   events,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *KeepAliveJob) Start() {
	go j.run()
	go j.consume()
	log.Info().Dur("interval", j.interval).Msg("Keep-alive job started")
}

func (j *KeepAliveJob) Stop() {
	close(j.done)
	log.Info().Msg("Keep-alive job stopped")
}

func (j *KeepAliveJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.tick()
		}
	}
}

func (j *KeepAliveJob) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), keepAliveTickTimeout)
	defer cancel()

	if j.modem.Healthy() {
		if ok, status := j.modem.CheckStatus(ctx); ok {
			log.Debug().Str("status", status).Msg("Keep-alive probe ok")
			// Stored messages accumulate between deliveries, so every
			// interval flushes them, not just reconnects.
			j.drainStored(ctx)
			return
		}
		log.Warn().Msg("Keep-alive probe failed, reconnecting")
		// The manager only connects from a down state.
		j.modem.Disconnect()
	} else {
		log.Warn().Msg("Modem not connected, attempting reconnect")
	}

	if err := j.modem.ConnectWithRetry(ctx); err != nil {
		log.Error().Err(err).Msg("Keep-alive reconnect failed")
		j.events.Publish(ctx, notify.NewEvent(notify.EventModemState, map[string]string{"state": "disconnected"}))
		return
	}

	log.Info().Msg("Modem reconnected")
	j.events.Publish(ctx, notify.NewEvent(notify.EventModemState, map[string]string{"state": "ready"}))

	// Messages that arrived while the link was down sit in modem
	// storage until re-delivered.
	j.drainStored(ctx)
}

func (j *KeepAliveJob) drainStored(ctx context.Context) {
	if err := j.modem.DrainStored(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to drain stored messages")
	}
}

// consume drains the inbound message stream until Stop is called. The
// device channel stays open across reconnects, so a single consumer
// covers the life of the process.
func (j *KeepAliveJob) consume() {
	for {
		select {
		case <-j.done:
			return
		case msg := <-j.modem.Inbound():
			j.handleInbound(msg)
		}
	}
}

func (j *KeepAliveJob) handleInbound(msg device.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Info().
		Str("from", msg.Number).
		Int("length", len(msg.Text)).
		Msg("SMS received")

	j.events.Publish(ctx, notify.NewEvent(notify.EventSMSReceived, map[string]string{
		"from": msg.Number,
		"text": msg.Text,
	}))

	tx, ok := parser.Parse(msg.Text)
	if !ok {
		unparsed := parser.Unparsed(msg.Text, msg.ReceivedAt)
		if err := j.records.CreateUnparsed(ctx, unparsed); err != nil {
			log.Error().Err(err).Msg("Failed to record unparsed message")
		}
		return
	}

	if err := j.records.CreateTransaction(ctx, tx); err != nil {
		log.Error().Err(err).Str("reference", tx.Reference).Msg("Failed to record transaction")
		return
	}

	log.Info().
		Int64("amount", tx.Amount).
		Str("reference", tx.Reference).
		Str("locale", string(tx.Locale)).
		Msg("Transaction recorded")

	j.events.Publish(ctx, notify.NewEvent(notify.EventTransaction, tx))
}
