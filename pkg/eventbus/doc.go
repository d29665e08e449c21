/*
Package eventbus provides the inter-module event backbone of the ERP backend.

Modules (sales, inventory, purchasing, fiscal, analytics, AI) publish and
subscribe to named events without coupling to one another. Distribution runs
over Redis Pub/Sub when the broker is reachable and degrades to synchronous
in-process dispatch when it is not; broker absence is a degraded state, never
a fatal one.

Events marked persistent additionally cache their last envelope in Redis
(key "last_event:{type}", TTL one hour) so subscribers registering after the
fact can catch up on the most recent occurrence.

# Usage

	cfg := eventbus.Defaults()
	cfg.Addr = "localhost:6379"

	bus := eventbus.New(cfg, eventbus.WithLogger(logger))
	defer bus.Close(context.Background())

	sub := bus.Subscribe(eventbus.EventStockLowDetected, func(ctx context.Context, env eventbus.Envelope) error {
		log.Printf("low stock: %v", env.Data["product_id"])
		return nil
	})
	defer bus.Unsubscribe(sub)

	bus.Publish(ctx, eventbus.EventStockLowDetected, eventbus.Payload{
		"product_id": 42,
		"stock":      2,
	})

Handlers must be fast and non-blocking: dispatch to local subscribers is
synchronous, so a hanging handler stalls delivery for its event type. That is
a caller obligation, not a bus guarantee.

Publish never returns an error. It reports false only when the bus is
disabled by configuration or both the broker and the local fallback path
failed; connectivity problems surface through HealthCheck, Stats, logs and
observers instead.
*/
package eventbus
