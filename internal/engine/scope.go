package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/solatis/cepgate/internal/types"
)

// State is the provisioning state of a Scope.
type State int

const (
	Unprovisioned State = iota
	Provisioned
	Destroyed
)

func (s State) String() string {
	switch s {
	case Unprovisioned:
		return "unprovisioned"
	case Provisioned:
		return "provisioned"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Scope owns the single engine provider of a container scope.
//
// The provider is created on first Acquire, not at startup, and destroyed
// exactly once by Release. Destroyed is terminal.
//
// Thread-safety: Acquire, Release and State hold one mutex across both the
// existence check and the create/destroy act, so concurrent first use yields
// exactly one provider and no caller sees it half-initialized.
type Scope struct {
	mu            sync.Mutex
	state         State
	provider      Provider
	factory       Factory
	logger        *slog.Logger
	onProvisioned []func(Provider)
	onReleased    []func()
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithLogger sets the logger for lifecycle transitions.
func WithLogger(logger *slog.Logger) ScopeOption {
	return func(s *Scope) {
		s.logger = logger
	}
}

// WithOnProvisioned registers a hook run inside the critical section right
// after the provider is created and the canonical type registered. Hooks are
// the place to subscribe listeners: they run once per provider.
func WithOnProvisioned(fn func(Provider)) ScopeOption {
	return func(s *Scope) {
		s.onProvisioned = append(s.onProvisioned, fn)
	}
}

// WithOnReleased registers a hook run after the provider is destroyed.
func WithOnReleased(fn func()) ScopeOption {
	return func(s *Scope) {
		s.onReleased = append(s.onReleased, fn)
	}
}

// NewScope creates an unprovisioned scope that will build its provider with factory.
func NewScope(factory Factory, opts ...ScopeOption) *Scope {
	s := &Scope{
		factory: factory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire returns the scope's provider, creating it on first use.
// Returns types.ErrScopeDestroyed once the scope has been released.
func (s *Scope) Acquire() (Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Provisioned:
		return s.provider, nil
	case Destroyed:
		return nil, types.ErrScopeDestroyed
	}

	if s.factory == nil {
		return nil, fmt.Errorf("engine factory cannot be nil")
	}
	provider, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create engine provider: %w", err)
	}

	// Canonical type must exist before any event of that type is sent.
	// Factories may have registered it already to attach statements to it.
	if provider.HasEventType(types.EventTypeName) {
		s.logger.Debug("canonical event type pre-registered by factory", "event_type", types.EventTypeName)
	} else if err := provider.AddEventType(types.EventTypeName, CanonicalFields()); err != nil {
		if derr := provider.Destroy(); derr != nil {
			s.logger.Error("failed to destroy half-built provider", "error", derr)
		}
		return nil, fmt.Errorf("failed to register %s: %w", types.EventTypeName, err)
	}

	for _, fn := range s.onProvisioned {
		fn(provider)
	}

	s.provider = provider
	s.state = Provisioned
	s.logger.Info("engine provider provisioned", "event_type", types.EventTypeName)
	return provider, nil
}

// Release destroys the provider if one exists and moves the scope to Destroyed.
// Calling Release on an unprovisioned or already destroyed scope is a no-op.
// A provider shutdown error is returned, but the scope still ends Destroyed.
func (s *Scope) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Provisioned {
		return nil
	}

	err := s.provider.Destroy()
	s.provider = nil
	s.state = Destroyed
	for _, fn := range s.onReleased {
		fn()
	}

	if err != nil {
		s.logger.Error("engine provider shutdown failed", "error", err)
		return fmt.Errorf("failed to destroy engine provider: %w", err)
	}
	s.logger.Info("engine provider destroyed")
	return nil
}

// State reports the current lifecycle state.
func (s *Scope) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
