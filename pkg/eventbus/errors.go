package eventbus

import "errors"

var (
	// ErrEmptyEventType is returned when an envelope carries no type.
	ErrEmptyEventType = errors.New("eventbus: empty event type")

	// ErrDisabled indicates the bus is switched off by configuration.
	ErrDisabled = errors.New("eventbus: disabled by configuration")
)
