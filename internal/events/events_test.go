package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("broker down")
}

func (f *failingPublisher) Close() error { return nil }

func TestNewSelectsSink(t *testing.T) {
	p, err := New("none", nil, nil, "")
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)

	p, err = New("kafka", nil, []string{"localhost:9092"}, "checkout-events")
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, p)
	require.NoError(t, p.Close())

	_, err = New("redis", nil, nil, "")
	assert.Error(t, err)

	_, err = New("kafka", nil, nil, "")
	assert.Error(t, err)

	_, err = New("carrier-pigeon", nil, nil, "")
	assert.Error(t, err)
}

func TestMemoryPublisherStampsEvents(t *testing.T) {
	p := &MemoryPublisher{}
	Emit(context.Background(), p, Event{Type: EventPurchase, Session: "g1", OrderId: "o1", Value: decimal.NewFromInt(2500)})
	Emit(context.Background(), p, Event{Type: EventAddToCart, Session: "g1"})

	purchases := p.OfType(EventPurchase)
	require.Len(t, purchases, 1)
	assert.Equal(t, "o1", purchases[0].OrderId)
	assert.NotZero(t, purchases[0].Timestamp)
	assert.Len(t, p.Events(), 2)
}

func TestEmitSwallowsFailures(t *testing.T) {
	f := &failingPublisher{}
	assert.NotPanics(t, func() {
		Emit(context.Background(), f, Event{Type: EventPurchase})
		Emit(context.Background(), nil, Event{Type: EventPurchase})
	})
	assert.Equal(t, 1, f.calls)
}

func TestEventJSON(t *testing.T) {
	raw, err := Event{Type: EventBeginCheckout, Session: "g1", Value: decimal.RequireFromString("2560.50"), Timestamp: 1}.MarshalBinary()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "begin_checkout", decoded["type"])
	assert.NotContains(t, decoded, "orderId")
}
