package eventbus

import (
	"context"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Listener is the single background receive loop pulling broker-delivered
// envelopes (including those published by other processes) and feeding them
// to the dispatcher.
//
// A listener is bound to one broker connection. When the receive stream
// fails it marks the connector disconnected and exits; it is not respawned
// here. The bus starts a fresh listener on the next Subscribe once the
// broker is reachable again.
type Listener struct {
	logger  zerolog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
}

// startListener subscribes to the "event:*" pattern and launches the
// receive goroutine.
func startListener(
	ctx context.Context,
	client *redis.Client,
	connector *BrokerConnector,
	dispatcher *Dispatcher,
	logger zerolog.Logger,
	notify func(BusEvent),
) *Listener {
	lctx, cancel := context.WithCancel(ctx)

	l := &Listener{
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	l.running.Store(true)

	pubsub := client.PSubscribe(lctx, channelPattern)
	go l.run(lctx, pubsub, connector, dispatcher, notify)

	logger.Info().Str("pattern", channelPattern).Msg("event listener started")
	return l
}

func (l *Listener) run(
	ctx context.Context,
	pubsub *redis.PubSub,
	connector *BrokerConnector,
	dispatcher *Dispatcher,
	notify func(BusEvent),
) {
	defer close(l.done)
	defer l.running.Store(false)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				// Receive stream failed mid-flight. Flag the connection so
				// the next EnsureConnected retries; do not crash or respawn.
				if ctx.Err() == nil {
					l.logger.Error().Msg("event listener stream closed, marking broker disconnected")
					connector.MarkDisconnected()
					notify(BusEvent{Type: BusEventBrokerDown})
				}
				return
			}

			env, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				l.logger.Error().
					Err(err).
					Str("channel", msg.Channel).
					Msg("skipping malformed broker message")
				continue
			}
			dispatcher.Dispatch(ctx, env)
		}
	}
}

// Running reports whether the receive loop is alive.
func (l *Listener) Running() bool {
	return l != nil && l.running.Load()
}

// Stop cancels the receive loop and waits for it to exit.
func (l *Listener) Stop() {
	if l == nil {
		return
	}
	l.cancel()
	<-l.done
}
