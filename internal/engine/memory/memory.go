// Package memory provides an in-process engine.Provider.
//
// It stands in for a full complex-event-processing engine when cepgate runs
// standalone or under test. A statement is a named equality filter over
// dotted attribute paths of one event type with an optional projection; there
// is no rule language.
//
// Listener delivery is asynchronous: each matching event is delivered on its
// own goroutine with the sender's correlation detached onto a fresh context.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/solatis/cepgate/internal/correlation"
	"github.com/solatis/cepgate/internal/engine"
	"github.com/solatis/cepgate/internal/types"
)

// Statement describes a selection over one event type.
// Filter keys are dotted paths into the event ("attrs.temp", "readings.*.unit");
// a wildcard segment matches when any element does.
type Statement struct {
	Name      string
	EventType string
	Filter    map[string]any // attribute path -> required value (equality)
	Select    []string       // projected properties; empty selects all
}

type statement struct {
	Statement
	paths   map[string][]segment
	state   engine.StatementState
	changed time.Time
}

type eventType struct {
	fields map[string]engine.FieldType
	order  []string
}

// Provider is an in-process engine.
type Provider struct {
	mu         sync.RWMutex
	eventTypes map[string]eventType
	statements map[string]*statement
	names      []string
	listeners  []engine.Listener
	closed     bool
	inflight   sync.WaitGroup
	now        func() time.Time
}

// New creates an empty provider.
func New() *Provider {
	return &Provider{
		eventTypes: make(map[string]eventType),
		statements: make(map[string]*statement),
		now:        time.Now,
	}
}

// Factory adapts New to engine.Factory, applying setup to each new provider.
// The canonical event type is registered before setup runs so setup can add
// statements over it. A provider whose setup fails is destroyed.
func Factory(setup func(*Provider) error) engine.Factory {
	return func() (engine.Provider, error) {
		p := New()
		if err := p.AddEventType(types.EventTypeName, engine.CanonicalFields()); err != nil {
			return nil, err
		}
		if setup != nil {
			if err := setup(p); err != nil {
				_ = p.Destroy()
				return nil, err
			}
		}
		return p, nil
	}
}

// AddEventType registers an event schema.
func (p *Provider) AddEventType(name string, fields map[string]engine.FieldType) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return types.ErrProviderClosed
	}
	if _, ok := p.eventTypes[name]; ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateEventType, name)
	}

	et := eventType{fields: make(map[string]engine.FieldType, len(fields))}
	for k, v := range fields {
		et.fields[k] = v
	}
	et.order = fieldOrder(fields)
	p.eventTypes[name] = et
	return nil
}

// fieldOrder puts reserved fields first in canonical order, then the rest sorted.
func fieldOrder(fields map[string]engine.FieldType) []string {
	order := make([]string, 0, len(fields))
	for _, name := range types.ReservedFields {
		if _, ok := fields[name]; ok {
			order = append(order, name)
		}
	}
	var rest []string
	for name := range fields {
		if !isReserved(name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func isReserved(name string) bool {
	for _, r := range types.ReservedFields {
		if r == name {
			return true
		}
	}
	return false
}

// HasEventType reports whether name is registered.
func (p *Provider) HasEventType(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.eventTypes[name]
	return ok
}

// AddStatement registers a started statement.
func (p *Provider) AddStatement(st Statement) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return types.ErrProviderClosed
	}
	if st.Name == "" {
		return fmt.Errorf("statement name cannot be empty")
	}
	if _, ok := p.statements[st.Name]; ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateStatement, st.Name)
	}
	if _, ok := p.eventTypes[st.EventType]; !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownEventType, st.EventType)
	}

	paths := make(map[string][]segment, len(st.Filter))
	for key := range st.Filter {
		segs, err := parsePath(key)
		if err != nil {
			return fmt.Errorf("statement %s: %w", st.Name, err)
		}
		paths[key] = segs
	}

	p.statements[st.Name] = &statement{
		Statement: st,
		paths:     paths,
		state:     engine.StatementStarted,
		changed:   p.now().UTC(),
	}
	p.names = append(p.names, st.Name)
	return nil
}

// StopStatement stops a statement; stopped statements emit nothing.
func (p *Provider) StopStatement(name string) error {
	return p.setState(name, engine.StatementStopped)
}

// StartStatement restarts a stopped statement.
func (p *Provider) StartStatement(name string) error {
	return p.setState(name, engine.StatementStarted)
}

func (p *Provider) setState(name string, state engine.StatementState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return types.ErrProviderClosed
	}
	st, ok := p.statements[name]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownStatement, name)
	}
	if st.state != state {
		st.state = state
		st.changed = p.now().UTC()
	}
	return nil
}

// Subscribe registers a listener for all statement results.
func (p *Provider) Subscribe(l engine.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// SendEvent validates attrs against the event schema and evaluates every
// started statement. Matches are delivered to listeners asynchronously.
func (p *Provider) SendEvent(ctx context.Context, eventTypeName string, attrs map[string]any) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return types.ErrProviderClosed
	}
	et, ok := p.eventTypes[eventTypeName]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownEventType, eventTypeName)
	}
	if err := validate(et, attrs); err != nil {
		return err
	}

	var results []engine.Result
	for _, name := range p.names {
		st := p.statements[name]
		if st.state != engine.StatementStarted || st.EventType != eventTypeName {
			continue
		}
		if !st.matches(attrs) {
			continue
		}
		results = append(results, project(st.Select, et, attrs))
	}

	if len(results) == 0 || len(p.listeners) == 0 {
		return nil
	}

	listeners := append([]engine.Listener(nil), p.listeners...)
	deliverCtx := correlation.Detach(ctx)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		for _, l := range listeners {
			l(deliverCtx, results)
		}
	}()
	return nil
}

// validate checks that every declared field is present with the declared type.
func validate(et eventType, attrs map[string]any) error {
	for _, name := range et.order {
		v, ok := attrs[name]
		if !ok || v == nil {
			return fmt.Errorf("%w: missing attribute %q", types.ErrSchemaMismatch, name)
		}
		if !conforms(et.fields[name], v) {
			return fmt.Errorf("%w: attribute %q must be %s, got %T", types.ErrSchemaMismatch, name, et.fields[name], v)
		}
	}
	return nil
}

func conforms(ft engine.FieldType, v any) bool {
	switch ft {
	case engine.FieldString:
		_, ok := v.(string)
		return ok
	case engine.FieldNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64, json.Number:
			return true
		}
		return false
	case engine.FieldBool:
		_, ok := v.(bool)
		return ok
	case engine.FieldMap:
		_, ok := v.(map[string]any)
		return ok
	default:
		return false
	}
}

// matches reports whether every filter path reaches its required value.
func (st *statement) matches(attrs map[string]any) bool {
	for key, want := range st.Filter {
		if !anyMatch(st.paths[key], attrs, want) {
			return false
		}
	}
	return true
}

// equal compares numbers by value so a filter loaded from YAML (int) matches
// an attribute decoded from JSON (int64 or float64). Two integers compare
// exactly, beyond float64 precision.
func equal(got, want any) bool {
	if gi, ok := integer(got); ok {
		if wi, ok := integer(want); ok {
			return gi == wi
		}
	}
	g, gok := number(got)
	w, wok := number(want)
	if gok && wok {
		return g == w
	}
	return reflect.DeepEqual(got, want)
}

func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// project builds a result. Without a projection the property order is the
// schema order followed by the remaining attributes sorted by name.
func project(sel []string, et eventType, attrs map[string]any) *result {
	r := &result{values: make(map[string]any)}
	if len(sel) > 0 {
		for _, name := range sel {
			r.names = append(r.names, name)
			r.values[name] = attrs[name]
		}
		return r
	}

	r.names = append(r.names, et.order...)
	var rest []string
	for name := range attrs {
		if _, declared := et.fields[name]; !declared {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	r.names = append(r.names, rest...)
	for _, name := range r.names {
		r.values[name] = attrs[name]
	}
	return r
}

// Statements returns summaries in registration order.
func (p *Provider) Statements() []engine.StatementSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]engine.StatementSummary, 0, len(p.names))
	for _, name := range p.names {
		out = append(out, p.statements[name].summary())
	}
	return out
}

// Statement returns one summary.
func (p *Provider) Statement(name string) (engine.StatementSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st, ok := p.statements[name]
	if !ok {
		return engine.StatementSummary{}, false
	}
	return st.summary(), true
}

func (st *statement) summary() engine.StatementSummary {
	return engine.StatementSummary{
		Name:                st.Name,
		Text:                st.text(),
		State:               st.state,
		TimeLastStateChange: st.changed,
	}
}

// text renders the statement for introspection, e.g. iotEvent(type="alarm") -> id, type
func (st *statement) text() string {
	keys := make([]string, 0, len(st.Filter))
	for k := range st.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	for _, k := range keys {
		b, err := json.Marshal(st.Filter[k])
		if err != nil {
			b = []byte(fmt.Sprintf("%v", st.Filter[k]))
		}
		conds = append(conds, k+"="+string(b))
	}

	text := st.EventType + "(" + strings.Join(conds, ", ") + ")"
	if len(st.Select) > 0 {
		text += " -> " + strings.Join(st.Select, ", ")
	}
	return text
}

// Flush waits for in-flight listener deliveries.
func (p *Provider) Flush() {
	p.inflight.Wait()
}

// Destroy marks statements destroyed, rejects further work and waits for
// in-flight deliveries. A second call returns types.ErrProviderClosed.
func (p *Provider) Destroy() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return types.ErrProviderClosed
	}
	p.closed = true
	now := p.now().UTC()
	for _, st := range p.statements {
		st.state = engine.StatementDestroyed
		st.changed = now
	}
	p.mu.Unlock()

	p.inflight.Wait()
	return nil
}

type result struct {
	names  []string
	values map[string]any
}

func (r *result) PropertyNames() []string {
	return r.names
}

func (r *result) Get(name string) (any, error) {
	v, ok := r.values[name]
	if !ok {
		return nil, fmt.Errorf("no property %q", name)
	}
	return v, nil
}
