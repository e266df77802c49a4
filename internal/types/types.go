// Package types provides domain models shared across cepgate components.
//
// Kept free of engine and transport imports so the codec, correlation and
// dispatcher packages can depend on it without cycles. ID utilities in ids.go
// import uuid but are isolated from the rest of the package.
package types

// Document represents a JSON-like event document.
// Values are strings, numbers, booleans, nil, nested Documents or maps, and
// (inbound only) arrays, which are carried as opaque values.
type Document map[string]any

// Canonical event schema registered on the engine when a scope is provisioned.
// Every event routed through the engine must carry these attributes.
const (
	// EventTypeName is the engine event type for inbound IoT events.
	EventTypeName = "iotEvent"

	// FieldID identifies a single event instance.
	FieldID = "id"

	// FieldType discriminates the kind of entity that produced the event.
	FieldType = "type"

	// FieldService scopes the event to a tenant service.
	FieldService = "service"

	// FieldSubservice scopes the event to a path within the service.
	FieldSubservice = "subservice"

	// FieldErrors is the sibling key collecting per-property conversion failures.
	FieldErrors = "errors"
)

// ReservedFields lists the canonical attribute names in declaration order.
var ReservedFields = []string{FieldID, FieldType, FieldService, FieldSubservice}

// Resource limits enforced at the inbound boundary.
const (
	// MaxPayloadSize limits an inbound event body to prevent OOM on decode.
	// 1MB allows typical device payloads; larger documents belong in external storage.
	MaxPayloadSize = 1024 * 1024

	// DefaultJournalLimit caps journal listings when the caller gives no limit.
	DefaultJournalLimit = 100

	// MaxJournalLimit bounds a single journal listing.
	MaxJournalLimit = 1000
)
