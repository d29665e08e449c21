package eventbus

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// BrokerConnector owns the Redis connection and reports connectivity.
//
// Broker absence is a degraded state, not an error: Connect exhausting its
// attempts leaves the connector disconnected and the bus falls back to
// in-process dispatch. A later EnsureConnected call retries from scratch.
type BrokerConnector struct {
	cfg    Config
	logger zerolog.Logger

	mu         sync.Mutex
	client     *redis.Client
	connected  bool
	retryCount int
}

// NewBrokerConnector builds a connector without dialing. Call Connect (or
// let EnsureConnected do it lazily) to establish the connection.
func NewBrokerConnector(cfg Config, logger zerolog.Logger) *BrokerConnector {
	return &BrokerConnector{cfg: cfg, logger: logger}
}

// Connect attempts to establish and verify a broker connection, retrying
// with exponential backoff up to cfg.MaxConnectAttempts. Exhausting the
// attempts is not fatal: it logs a warning and leaves the connector in the
// disconnected state.
func (c *BrokerConnector) Connect(ctx context.Context) error {
	if !c.cfg.Enabled {
		return ErrDisabled
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *BrokerConnector) connectLocked(ctx context.Context) error {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxConnectAttempts; attempt++ {
		if attempt > 0 {
			// 1s, 2s, 4s with the default base.
			delay := c.cfg.BackoffBase << (attempt - 1)
			c.logger.Info().Dur("delay", delay).Int("attempt", attempt).Msg("retrying broker connection")
			select {
			case <-ctx.Done():
				c.connected = false
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		client := redis.NewClient(&redis.Options{
			Addr:        c.cfg.Addr,
			Username:    c.cfg.Username,
			Password:    c.cfg.Password,
			DB:          c.cfg.DB,
			DialTimeout: c.cfg.DialTimeout,
		})

		pingCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			if c.client != nil {
				_ = c.client.Close()
			}
			c.client = client
			c.connected = true
			c.retryCount = 0
			c.logger.Info().Str("addr", c.cfg.Addr).Msg("event bus connected to broker")
			return nil
		}

		_ = client.Close()
		lastErr = err
		c.retryCount++
		c.logger.Error().Err(err).Str("addr", c.cfg.Addr).Msg("broker connection failed")
	}

	c.connected = false
	c.logger.Warn().Msg("broker unreachable, falling back to in-process dispatch")
	return lastErr
}

// EnsureConnected re-establishes the connection if needed. It is a no-op
// when disabled or already connected with a live ping.
func (c *BrokerConnector) EnsureConnected(ctx context.Context) {
	if !c.cfg.Enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected && c.client != nil {
		pingCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
		err := c.client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return
		}
		c.logger.Warn().Err(err).Msg("broker connection lost, reconnecting")
		c.connected = false
	}

	_ = c.connectLocked(ctx)
}

// Ping reports broker liveness. A failed ping marks the connector
// disconnected so the next EnsureConnected call retries.
func (c *BrokerConnector) Ping(ctx context.Context) bool {
	c.mu.Lock()
	client := c.client
	connected := c.connected
	c.mu.Unlock()

	if !connected || client == nil {
		return false
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		c.MarkDisconnected()
		return false
	}
	return true
}

// Connected reports the current connection state.
func (c *BrokerConnector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.client != nil
}

// RetryCount returns the number of failed attempts since the last
// successful connect.
func (c *BrokerConnector) RetryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryCount
}

// Client returns the live Redis client, or nil when disconnected.
func (c *BrokerConnector) Client() *redis.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	return c.client
}

// MarkDisconnected flags the connection as lost. Used by the listener when
// its receive stream fails mid-flight.
func (c *BrokerConnector) MarkDisconnected() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

// Close releases the underlying client. The connector can be reused via
// Connect afterwards.
func (c *BrokerConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	if err != nil && !strings.Contains(err.Error(), "closed") {
		return err
	}
	return nil
}
