package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Event names pushed to clients.
const (
	EventSignedIn        = "auth.signed_in"
	EventSignedOut       = "auth.signed_out"
	EventSlidesProgress  = "slides.progress"
	EventSlidesCompleted = "slides.completed"
	EventSlidesFailed    = "slides.failed"
	EventWebinarUpdated  = "webinar.updated"
	EventVideoSubmitted  = "video.submitted"
	EventVideoFailed     = "video.failed"
)

// UserTopic is the channel carrying one user's auth and workspace events.
func UserTopic(userID uuid.UUID) string { return "user:" + userID.String() }

// WebinarTopic is the channel carrying one webinar's generation events.
func WebinarTopic(webinarID uuid.UUID) string { return "webinar:" + webinarID.String() }

// Hub maintains topic -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling when a broker is configured.
type Hub struct {
	// topic -> map[clientID]*Client
	topics   map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per topic
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishEvent(topic, event string, payload []byte) error
}

// RedisSubscriber subscribes to topic channels and invokes handler for incoming events.
type RedisSubscriber interface {
	Subscribe(topic string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a
// single-instance deployment.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics:   make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Join adds a client to a topic. Starts the Redis subscription for the topic
// when it is the first local listener.
func (h *Hub) Join(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.Subscribe(topic, func(event string, payload []byte) {
				h.Broadcast(topic, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("redis subscribe failed", zap.String("topic", topic), zap.Error(err))
			} else {
				h.subs[topic] = cancel
			}
		}
	}
	h.topics[topic][c.ID] = c
	c.addTopic(topic)
	h.logger.Debug("client joined topic", zap.String("client_id", c.ID), zap.String("topic", topic))
}

// Unregister removes a client from every topic it joined. Cancels a topic's
// Redis subscription when its last local listener leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range c.joined() {
		m, ok := h.topics[topic]
		if !ok {
			continue
		}
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.topics, topic)
			if cancel, ok := h.subs[topic]; ok {
				cancel()
				delete(h.subs, topic)
			}
		}
	}
	h.logger.Debug("client left", zap.String("client_id", c.ID))
}

// Broadcast sends a message to all local clients of a topic.
func (h *Hub) Broadcast(topic, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.topics[topic] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event to every listener of topic on every instance.
// With Redis configured the subscriber callback performs the local broadcast,
// so local clients receive the event exactly once.
func (h *Hub) Publish(topic, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("encode realtime event", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishEvent(topic, event, data); err != nil {
			h.logger.Warn("redis publish failed, delivering locally", zap.String("topic", topic), zap.Error(err))
			h.Broadcast(topic, event, json.RawMessage(data))
		}
		return
	}
	h.Broadcast(topic, event, json.RawMessage(data))
}

// Listeners returns the number of local clients on a topic.
func (h *Hub) Listeners(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
