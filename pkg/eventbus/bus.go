package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Bus is the facade composing BrokerConnector, SubscriberRegistry,
// Dispatcher and Listener. One instance per process is the normal setup;
// construct it at the composition root and inject it into producers and
// consumers (the Default facade exists for callers that want process-wide
// access).
type Bus struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	connector  *BrokerConnector
	registry   *SubscriberRegistry
	dispatcher *Dispatcher

	obsMu     sync.RWMutex
	observers []Observer

	// listenerMu guards listener start/replace; the listener itself runs
	// under baseCtx so Close can cancel it.
	listenerMu sync.Mutex
	listener   *Listener

	baseCtx    context.Context
	baseCancel context.CancelFunc

	brokerWasUp atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once
}

// Option configures Bus construction.
type Option func(*Bus)

// WithLogger injects the logger used by the bus and its components.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithObserver attaches observers for bus lifecycle events.
func WithObserver(obs ...Observer) Option {
	return func(b *Bus) {
		for _, o := range obs {
			if o != nil {
				b.observers = append(b.observers, o)
			}
		}
	}
}

// WithNow injects the timestamp source (tests).
func WithNow(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// New constructs a Bus and, when enabled, attempts the initial broker
// connection. Connection failure is not fatal: the bus starts in fallback
// mode and keeps retrying lazily on use.
func New(cfg Config, opts ...Option) *Bus {
	baseCtx, baseCancel := context.WithCancel(context.Background())

	b := &Bus{
		cfg:        cfg,
		logger:     zerolog.Nop(),
		now:        time.Now,
		registry:   NewSubscriberRegistry(),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
	for _, o := range opts {
		if o != nil {
			o(b)
		}
	}

	b.connector = NewBrokerConnector(cfg, b.logger)
	b.dispatcher = NewDispatcher(b.registry, b.logger, b.notify)

	if cfg.Enabled {
		_ = b.connector.Connect(baseCtx)
		b.trackBrokerState()
	}
	return b
}

// Publish delivers an event to all subscribers. When the broker is
// reachable the envelope goes out on "event:{type}" and local delivery
// happens through the listener; otherwise it is dispatched synchronously
// in-process. Returns false only when the bus is disabled or nothing could
// be delivered. Never returns an error and never panics into the caller.
func (b *Bus) Publish(ctx context.Context, eventType string, data Payload) bool {
	return b.publish(ctx, eventType, data, false)
}

// PublishPersistent behaves like Publish and additionally caches the
// envelope under "last_event:{type}" (TTL cfg.CacheTTL) so late subscribers
// using SubscribeWithReplay can catch up on the last occurrence.
func (b *Bus) PublishPersistent(ctx context.Context, eventType string, data Payload) bool {
	return b.publish(ctx, eventType, data, true)
}

func (b *Bus) publish(ctx context.Context, eventType string, data Payload, persistent bool) bool {
	if b.closed.Load() {
		return false
	}
	if !b.cfg.Enabled {
		b.logger.Debug().Str("event_type", eventType).Msg("event bus disabled, dropping event")
		return false
	}
	if eventType == "" {
		b.logger.Error().Msg("publish called with empty event type")
		return false
	}

	b.connector.EnsureConnected(ctx)
	b.trackBrokerState()

	env := newEnvelope(eventType, data, b.now())

	if client := b.connector.Client(); client != nil {
		if ok := b.publishBroker(ctx, client, env, persistent); ok {
			return true
		}
		// Broker send failed: degrade to local dispatch rather than failing
		// the caller.
		b.trackBrokerState()
	}

	b.dispatcher.Dispatch(ctx, env)
	b.notify(BusEvent{Type: BusEventPublishedLocal, EventType: env.Type, EventID: env.EventID})
	return true
}

func (b *Bus) publishBroker(ctx context.Context, client *redis.Client, env Envelope, persistent bool) bool {
	payload, err := encodeEnvelope(env)
	if err != nil {
		b.logger.Error().Err(err).Str("event_type", env.Type).Msg("envelope not serializable, using local dispatch")
		return false
	}

	if err := client.Publish(ctx, channelFor(env.Type), payload).Err(); err != nil {
		b.logger.Warn().Err(err).Str("event_type", env.Type).Msg("broker publish failed, using local dispatch")
		b.connector.MarkDisconnected()
		return false
	}

	if persistent {
		if err := client.Set(ctx, cacheKeyFor(env.Type), payload, b.cfg.CacheTTL).Err(); err != nil {
			// The event went out; a stale cache only affects late replay.
			b.logger.Warn().Err(err).Str("event_type", env.Type).Msg("last-event cache write failed")
		}
	}

	b.logger.Debug().Str("event_type", env.Type).Str("event_id", env.EventID).Msg("event published")
	b.notify(BusEvent{Type: BusEventPublishedBroker, EventType: env.Type, EventID: env.EventID})
	return true
}

// Subscribe registers a handler for an event type and returns its token.
// Registering the same handler twice is allowed and yields two deliveries
// per event; each call returns its own token.
//
// The first subscription while the broker is connected starts the
// background listener; a subscription after reconnection restarts it.
func (b *Bus) Subscribe(eventType string, h Handler) *Subscription {
	sub := b.registry.Add(eventType, h)
	b.logger.Debug().Str("event_type", eventType).Msg("subscriber registered")
	b.maybeStartListener()
	return sub
}

// SubscribeWithReplay registers a handler and, if a cached last envelope
// exists for the type, delivers it synchronously to the new handler before
// returning.
func (b *Bus) SubscribeWithReplay(ctx context.Context, eventType string, h Handler) *Subscription {
	sub := b.registry.Add(eventType, h)
	b.logger.Debug().Str("event_type", eventType).Msg("subscriber registered (replay)")

	if client := b.connector.Client(); client != nil {
		raw, err := client.Get(ctx, cacheKeyFor(eventType)).Result()
		switch {
		case err == nil:
			if env, derr := decodeEnvelope([]byte(raw)); derr == nil {
				b.dispatcher.deliverOne(ctx, sub, h, env)
				b.notify(BusEvent{Type: BusEventReplayDelivered, EventType: eventType, EventID: env.EventID})
			} else {
				b.logger.Error().Err(derr).Str("event_type", eventType).Msg("cached last event unreadable")
			}
		case errors.Is(err, redis.Nil):
			// Nothing cached; nothing to replay.
		default:
			b.logger.Error().Err(err).Str("event_type", eventType).Msg("last-event cache read failed")
		}
	}

	b.maybeStartListener()
	return sub
}

// Unsubscribe removes exactly the registration behind the token.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.registry.Remove(sub)
}

func (b *Bus) maybeStartListener() {
	if b.closed.Load() {
		return
	}

	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()

	if b.listener.Running() {
		return
	}
	client := b.connector.Client()
	if client == nil {
		return
	}
	b.listener = startListener(b.baseCtx, client, b.connector, b.dispatcher, b.logger, b.notify)
}

// Listening reports whether the background listener is running.
func (b *Bus) Listening() bool {
	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()
	return b.listener.Running()
}

// Close stops the listener and releases the broker connection. Idempotent.
func (b *Bus) Close(ctx context.Context) error {
	var err error
	b.closeOnce.Do(func() {
		b.closed.Store(true)

		b.listenerMu.Lock()
		l := b.listener
		b.listenerMu.Unlock()
		l.Stop()

		b.baseCancel()
		err = b.connector.Close()
	})
	return err
}

// AddObserver registers an observer for bus lifecycle events.
func (b *Bus) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	b.obsMu.Lock()
	b.observers = append(b.observers, obs)
	b.obsMu.Unlock()
}

func (b *Bus) notify(e BusEvent) {
	b.obsMu.RLock()
	obs := make([]Observer, len(b.observers))
	copy(obs, b.observers)
	b.obsMu.RUnlock()
	for _, o := range obs {
		o.OnBusEvent(e)
	}
}

// trackBrokerState emits BrokerUp/BrokerDown on connectivity transitions.
func (b *Bus) trackBrokerState() {
	cur := b.connector.Connected()
	if b.brokerWasUp.Swap(cur) != cur {
		if cur {
			b.notify(BusEvent{Type: BusEventBrokerUp})
		} else {
			b.notify(BusEvent{Type: BusEventBrokerDown})
		}
	}
}
