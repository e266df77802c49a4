// Package engine defines the boundary to the complex-event-processing engine
// and the lifecycle of the single engine provider shared by a service scope.
//
// The engine itself is an opaque collaborator: it accepts typed events,
// evaluates statements, and emits results to subscribed listeners. This
// package only names that surface (Provider, Result, StatementSummary) and
// owns the lazy provisioning and teardown of one provider per Scope.
package engine

import (
	"context"
	"time"

	"github.com/solatis/cepgate/internal/types"
)

// FieldType is the declared type of an event attribute.
type FieldType int

const (
	FieldString FieldType = iota
	FieldNumber
	FieldBool
	FieldMap
)

func (f FieldType) String() string {
	switch f {
	case FieldString:
		return "string"
	case FieldNumber:
		return "number"
	case FieldBool:
		return "bool"
	case FieldMap:
		return "map"
	default:
		return "unknown"
	}
}

// CanonicalFields returns the attributes every iotEvent must declare.
func CanonicalFields() map[string]FieldType {
	fields := make(map[string]FieldType, len(types.ReservedFields))
	for _, name := range types.ReservedFields {
		fields[name] = FieldString
	}
	return fields
}

// Result is one event emitted by the engine.
// PropertyNames is schema-derived; its order is the only order consumers see.
type Result interface {
	PropertyNames() []string
	Get(name string) (any, error)
}

// StatementState is the lifecycle state of a registered statement.
type StatementState int

const (
	StatementStarted StatementState = iota
	StatementStopped
	StatementDestroyed
)

func (s StatementState) String() string {
	switch s {
	case StatementStarted:
		return "STARTED"
	case StatementStopped:
		return "STOPPED"
	case StatementDestroyed:
		return "DESTROYED"
	default:
		return "UNKNOWN"
	}
}

// StatementSummary is a read-only projection of a registered statement.
type StatementSummary struct {
	Name                string
	Text                string
	State               StatementState
	TimeLastStateChange time.Time
}

// Listener receives results emitted for one event.
// ctx carries the correlation active when the originating event was sent.
type Listener func(ctx context.Context, results []Result)

// Provider is a live engine instance.
// Read operations are safe for concurrent use once the provider is attached
// to a provisioned Scope.
type Provider interface {
	AddEventType(name string, fields map[string]FieldType) error
	HasEventType(name string) bool
	SendEvent(ctx context.Context, eventType string, attrs map[string]any) error
	Statements() []StatementSummary
	Statement(name string) (StatementSummary, bool)
	Subscribe(l Listener)
	Destroy() error
}

// Factory creates a new, unconfigured Provider.
type Factory func() (Provider, error)
