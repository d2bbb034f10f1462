package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/hazolab/sms-gateway-go/internal/redis"
)

const (
	PingInterval = 30 * time.Second

	clientBuffer = 100
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Event types emitted over the notification stream.
const (
	EventSMSReceived   = "sms_received"
	EventUssdReply     = "ussd_reply"
	EventSessionUpdate = "session_update"
	EventTransaction   = "transaction"
	EventModemState    = "modem_state"
)

// NewEvent marshals payload into an Event of the given type. Marshal
// failures are logged and produce an event with null data rather than
// an error; notification is fire-and-forget.
func NewEvent(eventType string, payload interface{}) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Failed to marshal event payload")
		data = []byte("null")
	}
	return Event{Type: eventType, Data: data}
}

type Client struct {
	Events chan Event
	Done   chan struct{}
}

// Sink is the publishing half of the hub, used by components that only
// emit events.
type Sink interface {
	Publish(ctx context.Context, event Event)
}

// Hub fans events out to connected WebSocket clients. With a Redis
// client attached, events travel through a pub/sub channel so every
// process in a multi-instance setup sees them; without one, events are
// delivered to local clients directly.
type Hub struct {
	redis   *redisclient.Client
	clients map[*Client]bool
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

func NewHub(redisClient *redisclient.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		redis:   redisClient,
		clients: make(map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
	return h
}

func (h *Hub) Subscribe() *Client {
	client := &Client{
		Events: make(chan Event, clientBuffer),
		Done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mu.Unlock()

	if h.redis != nil {
		h.once.Do(func() { go h.subscribeToRedis() })
	}

	log.Info().
		Int("clientCount", clientCount).
		Msg("Notification client subscribed")

	return client
}

func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Done)

		log.Info().
			Int("clientCount", len(h.clients)).
			Msg("Notification client unsubscribed")
	}
}

// Publish delivers the event to all subscribers. Failures are logged,
// never returned; event delivery must not block or fail the operation
// that produced the event.
func (h *Hub) Publish(ctx context.Context, event Event) {
	if h.redis == nil {
		h.broadcast(event)
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to marshal event")
		return
	}
	if err := h.redis.Publish(ctx, redisclient.EventChannel, data).Err(); err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to publish event to redis")
		// Fall back to local delivery so in-process clients still
		// see the event.
		h.broadcast(event)
	}
}

func (h *Hub) subscribeToRedis() {
	pubsub := h.redis.Subscribe(h.ctx, redisclient.EventChannel)
	defer pubsub.Close()

	log.Debug().
		Str("channel", redisclient.EventChannel).
		Msg("Redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("Failed to unmarshal event")
				continue
			}

			h.broadcast(event)
		}
	}
}

func (h *Hub) broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().Msg("Client event buffer full, dropping event")
		}
	}
}

func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Done)
	}
	h.clients = make(map[*Client]bool)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
