package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	brokerChannelPrefix = "studio:rt:"
	publishTimeout      = 3 * time.Second
	subscribeBuffer     = 64
)

// envelope is what travels over a broker channel between instances.
type envelope struct {
	Event    string          `json:"event"`
	Payload  json.RawMessage `json:"payload"`
	SentAtMs int64           `json:"sent_at_ms"`
}

// Broker fans realtime events out across server and worker instances over
// Redis pub/sub. It satisfies both RedisPublisher and RedisSubscriber.
type Broker struct {
	rdb    redis.UniversalClient
	logger *zap.Logger
}

func NewBroker(rdb redis.UniversalClient, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{rdb: rdb, logger: logger.Named("broker")}
}

func channelFor(topic string) string { return brokerChannelPrefix + topic }

func (b *Broker) PublishEvent(topic, event string, payload []byte) error {
	raw, err := json.Marshal(envelope{Event: event, Payload: payload, SentAtMs: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return b.rdb.Publish(ctx, channelFor(topic), raw).Err()
}

// Subscribe listens on topic until the returned cancel func runs. The
// subscription is confirmed before Subscribe returns.
func (b *Broker) Subscribe(topic string, handler func(event string, payload []byte)) (func(), error) {
	ctx, stop := context.WithCancel(context.Background())
	sub := b.rdb.Subscribe(ctx, channelFor(topic))
	if _, err := sub.Receive(ctx); err != nil {
		stop()
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	msgs := sub.Channel(redis.WithChannelSize(subscribeBuffer))
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				b.deliver(topic, m.Payload, handler)
			}
		}
	}()
	return stop, nil
}

func (b *Broker) deliver(topic, raw string, handler func(string, []byte)) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Event == "" {
		b.logger.Debug("skip malformed envelope", zap.String("topic", topic))
		return
	}
	if lag := time.Since(time.UnixMilli(env.SentAtMs)); lag > publishTimeout {
		b.logger.Debug("late realtime event", zap.String("event", env.Event), zap.Duration("lag", lag))
	}
	handler(env.Event, env.Payload)
}
