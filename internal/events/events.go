package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"khoomi-api-io/checkout/pkg/util"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var CHANNEL_CHECKOUT_EVENTS = "CHECKOUT_EVENTS"

type EventType string

const (
	EventAddToCart      EventType = "add_to_cart"
	EventRemoveFromCart EventType = "remove_from_cart"
	EventUpdateCart     EventType = "update_cart"
	EventApplyPromo     EventType = "apply_promo"
	EventRemovePromo    EventType = "remove_promo"
	EventClearCart      EventType = "clear_cart"
	EventBeginCheckout  EventType = "begin_checkout"
	EventPurchase       EventType = "purchase"
)

type Event struct {
	Type          EventType       `json:"type"`
	Session       string          `json:"session"`
	OrderId       string          `json:"orderId,omitempty"`
	PaymentOption string          `json:"paymentOption,omitempty"`
	Value         decimal.Decimal `json:"value"`
	Items         int             `json:"items,omitempty"`
	Payload       string          `json:"payload,omitempty"`
	Timestamp     int64           `json:"timestamp"`
}

func (e Event) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers analytics events. Publishing is best effort; callers
// log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

func stamp(e Event) Event {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}
	return e
}

// RedisPublisher publishes events to a redis pub/sub channel as JSON.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = CHANNEL_CHECKOUT_EVENTS
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	event = stamp(event)
	if err := p.client.Publish(ctx, p.channel, event).Err(); err != nil {
		return errors.Wrapf(err, "publish %s event", event.Type)
	}
	return nil
}

func (p *RedisPublisher) Close() error { return nil }

// KafkaPublisher writes events to a kafka topic keyed by session.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	event = stamp(event)
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	msg := kafka.Message{
		Key:   []byte(event.Session),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s event", event.Type)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// MemoryPublisher keeps events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, stamp(event))
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// OfType returns the recorded events of type t.
func (p *MemoryPublisher) OfType(t EventType) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// New picks a publisher for sink: "redis", "kafka" or "none".
func New(sink string, client *redis.Client, brokers []string, topic string) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(sink)) {
	case "", "none":
		return NopPublisher{}, nil
	case "redis":
		if client == nil {
			return nil, errors.New("redis event sink needs a redis client")
		}
		return NewRedisPublisher(client, CHANNEL_CHECKOUT_EVENTS), nil
	case "kafka":
		if len(brokers) == 0 || topic == "" {
			return nil, errors.New("kafka event sink needs brokers and a topic")
		}
		return NewKafkaPublisher(brokers, topic), nil
	}
	return nil, errors.Errorf("unknown event sink %q", sink)
}

// Emit publishes event and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		util.LogWarning("event publish failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
