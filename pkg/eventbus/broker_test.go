package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokerBus starts an in-process Redis server and a bus connected to it.
func brokerBus(t *testing.T) (*miniredis.Miniredis, *Bus) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := Defaults()
	cfg.Addr = mr.Addr()
	cfg.DialTimeout = time.Second
	cfg.MaxConnectAttempts = 1
	cfg.BackoffBase = time.Millisecond

	bus := New(cfg)
	t.Cleanup(func() { _ = bus.Close(context.Background()) })

	require.True(t, bus.Stats().BrokerConnected)
	return mr, bus
}

// waitSubscribed publishes raw payloads on the event channel until the
// listener's pattern subscription is visible to the server.
func waitSubscribed(t *testing.T, mr *miniredis.Miniredis, eventType, payload string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return mr.Publish(channelFor(eventType), payload) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPublishPersistent_CachesLastEvent(t *testing.T) {
	mr, bus := brokerBus(t)

	ok := bus.PublishPersistent(context.Background(), EventStockLowDetected, Payload{
		"product_id": 42,
		"stock":      2,
	})
	require.True(t, ok)

	raw, err := mr.Get(cacheKeyFor(EventStockLowDetected))
	require.NoError(t, err)

	env, err := decodeEnvelope([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, EventStockLowDetected, env.Type)
	assert.Equal(t, float64(42), env.Data["product_id"])
	assert.NotEmpty(t, env.EventID)

	// The cache entry expires; a plain Publish leaves no entry behind.
	assert.Greater(t, mr.TTL(cacheKeyFor(EventStockLowDetected)), time.Duration(0))
	require.True(t, bus.Publish(context.Background(), EventSaleRegistered, nil))
	assert.False(t, mr.Exists(cacheKeyFor(EventSaleRegistered)))
}

func TestSubscribeWithReplay_DeliversCachedEnvelope(t *testing.T) {
	_, bus := brokerBus(t)

	obs := &recordingObserver{}
	bus.AddObserver(obs)

	require.True(t, bus.PublishPersistent(context.Background(), EventStockLowDetected, Payload{
		"product_id": 42,
		"stock":      2,
	}))

	// The subscriber registers after the fact and still sees the cached
	// envelope, synchronously, before SubscribeWithReplay returns.
	var got Envelope
	calls := 0
	sub := bus.SubscribeWithReplay(context.Background(), EventStockLowDetected, func(_ context.Context, env Envelope) error {
		calls++
		got = env
		return nil
	})
	require.NotNil(t, sub)

	require.Equal(t, 1, calls)
	assert.Equal(t, EventStockLowDetected, got.Type)
	assert.Equal(t, float64(42), got.Data["product_id"])
	assert.Equal(t, float64(2), got.Data["stock"])
	assert.NotEmpty(t, got.EventID)
	assert.False(t, got.Timestamp.IsZero())

	replays := obs.byType(BusEventReplayDelivered)
	require.Len(t, replays, 1)
	assert.Equal(t, got.EventID, replays[0].EventID)
}

func TestSubscribeWithReplay_NothingCached(t *testing.T) {
	_, bus := brokerBus(t)

	calls := 0
	sub := bus.SubscribeWithReplay(context.Background(), EventSaleRegistered, func(context.Context, Envelope) error {
		calls++
		return nil
	})

	require.NotNil(t, sub)
	assert.Equal(t, 0, calls)
}

func TestSubscribeWithReplay_CorruptCacheEntrySkipped(t *testing.T) {
	mr, bus := brokerBus(t)

	require.NoError(t, mr.Set(cacheKeyFor(EventSaleRegistered), "not json at all"))

	calls := 0
	sub := bus.SubscribeWithReplay(context.Background(), EventSaleRegistered, func(context.Context, Envelope) error {
		calls++
		return nil
	})

	// The unreadable entry is logged and skipped; the registration stands.
	require.NotNil(t, sub)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, bus.Stats().Subscribers[EventSaleRegistered])
}

func TestListener_SkipsMalformedAndKeepsDispatching(t *testing.T) {
	mr, bus := brokerBus(t)

	received := make(chan Envelope, 4)
	bus.Subscribe(EventSaleRegistered, func(_ context.Context, env Envelope) error {
		received <- env
		return nil
	})
	require.True(t, bus.Listening())

	// Garbage on the wire first, also confirming the subscription is live.
	waitSubscribed(t, mr, EventSaleRegistered, "not json at all")
	mr.Publish(channelFor(EventSaleRegistered), `{"data":{},"event_id":"no-type"}`)

	env := newEnvelope(EventSaleRegistered, Payload{"sale_id": float64(7)}, time.Now())
	raw, err := encodeEnvelope(env)
	require.NoError(t, err)
	mr.Publish(channelFor(EventSaleRegistered), string(raw))

	select {
	case got := <-received:
		// The malformed payloads before it were skipped, not delivered.
		assert.Equal(t, env.EventID, got.EventID)
		assert.Equal(t, float64(7), got.Data["sale_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("valid envelope was not dispatched")
	}
	assert.Empty(t, received)
}

func TestListener_StreamFailureMarksDisconnected(t *testing.T) {
	mr, bus := brokerBus(t)

	obs := &recordingObserver{}
	bus.AddObserver(obs)

	bus.Subscribe(EventSaleRegistered, nopHandler)
	require.True(t, bus.Listening())
	waitSubscribed(t, mr, EventSaleRegistered, "ping")

	// Kill the connection under the listener; the receive stream closes and
	// the bus drops to fallback instead of crashing.
	require.NoError(t, bus.connector.Client().Close())

	require.Eventually(t, func() bool {
		return !bus.Stats().BrokerConnected && !bus.Listening()
	}, 2*time.Second, 10*time.Millisecond)

	assert.NotEmpty(t, obs.byType(BusEventBrokerDown))

	// With the server gone too, publishing degrades to local dispatch.
	mr.Close()
	delivered := 0
	bus.Subscribe(EventInventoryUpdated, func(context.Context, Envelope) error {
		delivered++
		return nil
	})
	assert.True(t, bus.Publish(context.Background(), EventInventoryUpdated, nil))
	assert.Equal(t, 1, delivered)
}
