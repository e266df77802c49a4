package types

import "errors"

// Sentinel errors for cepgate operations.
var (
	// ErrPayloadTooLarge indicates the inbound body exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

	// ErrInvalidDocument indicates an inbound body is not a JSON object.
	ErrInvalidDocument = errors.New("document must be a JSON object")

	// ErrNotRepresentable indicates a value cannot be stored in a JSON document.
	ErrNotRepresentable = errors.New("value not representable in document")

	// ErrScopeDestroyed indicates the engine scope was already released.
	ErrScopeDestroyed = errors.New("engine scope destroyed")

	// ErrProviderClosed indicates an operation on a destroyed engine provider.
	ErrProviderClosed = errors.New("engine provider closed")

	// ErrUnknownEventType indicates an event of an unregistered type.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrDuplicateEventType indicates an event type registered twice.
	ErrDuplicateEventType = errors.New("event type already registered")

	// ErrSchemaMismatch indicates an attribute whose type disagrees with the schema.
	ErrSchemaMismatch = errors.New("attribute does not match event schema")

	// ErrUnknownStatement indicates a statement name not registered in the engine.
	ErrUnknownStatement = errors.New("unknown statement")

	// ErrDuplicateStatement indicates a statement name registered twice.
	ErrDuplicateStatement = errors.New("statement already registered")

	// ErrDispatchNotFound indicates a dispatch id absent from the journal.
	ErrDispatchNotFound = errors.New("dispatch not found")
)
