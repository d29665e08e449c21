package eventbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Well-known event types. The catalog is extensible: any non-empty string is
// a valid event type, these constants only name the ones the ERP modules
// already exchange.
const (
	// Sales
	EventSaleRegistered = "SALE_REGISTERED"
	EventSaleVoided     = "SALE_VOIDED"
	EventSaleModified   = "SALE_MODIFIED"

	// Inventory
	EventInventoryUpdated = "INVENTORY_UPDATED"
	EventStockLowDetected = "STOCK_LOW_DETECTED"
	EventProductCreated   = "PRODUCT_CREATED"

	// Purchasing
	EventPurchaseRegistered = "PURCHASE_REGISTERED"
	EventPurchaseReceived   = "PURCHASE_RECEIVED"

	// Ledger
	EventLedgerEntryCreated = "LEDGER_ENTRY_CREATED"
	EventPeriodClosed       = "PERIOD_CLOSED"

	// Analytics
	EventAnomalyDetected     = "ANOMALY_DETECTED"
	EventPredictionGenerated = "PREDICTION_GENERATED"

	// System
	EventSystemStarted = "SYSTEM_STARTED"
	EventCriticalError = "CRITICAL_ERROR"
)

// Payload is the producer-defined event body. The bus never inspects or
// validates its shape; the per-type structure is documented in the event
// catalog, not enforced here.
type Payload = map[string]any

// Envelope is the unit of data carried by the bus, both in memory and on the
// wire. Envelopes are immutable once constructed; EventID is unique per
// publish call and never reused.
type Envelope struct {
	Type      string    `json:"type"`
	Data      Payload   `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	EventID   string    `json:"event_id"`
}

// newEnvelope stamps a fresh envelope for a publish call.
func newEnvelope(eventType string, data Payload, now time.Time) Envelope {
	return Envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: now.UTC(),
		EventID:   uuid.NewString(),
	}
}

// encodeEnvelope renders the broker wire format:
// {"type","data","timestamp","event_id"} with an RFC 3339 timestamp.
func encodeEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// decodeEnvelope parses a broker payload. Malformed payloads are the
// caller's problem to skip; the envelope type must be non-empty.
func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, ErrEmptyEventType
	}
	return env, nil
}

// channelFor returns the broker channel an event type is published on.
func channelFor(eventType string) string { return channelPrefix + eventType }

// cacheKeyFor returns the persistent last-event cache key for an event type.
func cacheKeyFor(eventType string) string { return cacheKeyPrefix + eventType }

const (
	channelPrefix  = "event:"
	channelPattern = "event:*"
	cacheKeyPrefix = "last_event:"
)
