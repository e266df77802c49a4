// Package codec converts between JSON event documents and engine events.
//
// Decode turns an inbound document into the engine's attribute map; Encode
// turns an engine result into an outbound document. Encode follows a
// collect-errors-and-continue fold: a property that cannot be represented is
// recorded under the "errors" sub-document and the remaining properties are
// still converted. Neither direction validates against the event schema;
// conformance is the engine's job at ingestion.
package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/cepgate/internal/engine"
	"github.com/solatis/cepgate/internal/types"
)

// Decode converts a document into an engine attribute map.
// Nested documents become nested maps recursively; every other value,
// arrays included, is carried through unchanged.
func Decode(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	attrs := make(map[string]any, len(doc))
	for k, v := range doc {
		switch nested := v.(type) {
		case map[string]any:
			attrs[k] = Decode(nested)
		case types.Document:
			attrs[k] = Decode(nested)
		default:
			attrs[k] = v
		}
	}
	return attrs
}

// DecodeJSON parses a JSON object and decodes it.
// Integral numbers become int64 so values beyond 2^53 keep every digit;
// other numbers become float64.
func DecodeJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidDocument, err)
	}
	if doc == nil {
		return nil, types.ErrInvalidDocument
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after document", types.ErrInvalidDocument)
	}
	return Decode(resolveNumbers(doc).(map[string]any)), nil
}

// resolveNumbers replaces every json.Number in v, recursing into objects and
// arrays.
func resolveNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		// Out of float64 range; keep the literal rather than an infinity.
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = resolveNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = resolveNumbers(e)
		}
		return t
	default:
		return v
	}
}

// Encode converts an engine result into a document.
// See EncodeContext.
func Encode(result engine.Result) types.Document {
	return EncodeContext(context.Background(), result)
}

// EncodeContext converts an engine result into a document, logging per-property
// failures with ctx so they carry the request correlation.
//
// Properties are visited in PropertyNames order. A result with N properties
// of which M fail yields N-M keys plus, when M > 0, an "errors" document with
// M entries mapping property name to failure reason. Never fails as a whole.
func EncodeContext(ctx context.Context, result engine.Result) types.Document {
	doc := make(types.Document)
	if result == nil {
		return doc
	}

	failures := make(types.Document)
	for _, name := range result.PropertyNames() {
		v, err := result.Get(name)
		if err == nil {
			v, err = representable(v)
		}
		if err != nil {
			failures[name] = err.Error()
			slog.ErrorContext(ctx, "event property not encodable", "property", name, "error", err)
			continue
		}
		doc[name] = v
	}

	if len(failures) > 0 {
		doc[types.FieldErrors] = failures
	}
	return doc
}

// representable normalizes v and checks it fits the JSON data model.
// structpb defines the accepted shapes; non-finite numbers are rejected
// because JSON has no encoding for them.
func representable(v any) (any, error) {
	v = normalize(v)
	if _, err := structpb.NewValue(v); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrNotRepresentable, err)
	}
	if err := checkFinite(v); err != nil {
		return nil, err
	}
	return v, nil
}

// normalize maps Go types the engine commonly emits onto the JSON data model.
func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case types.Document:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = normalize(e)
	}
	return out
}

func checkFinite(v any) error {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: non-finite number %v", types.ErrNotRepresentable, t)
		}
	case float32:
		return checkFinite(float64(t))
	case map[string]any:
		for _, e := range t {
			if err := checkFinite(e); err != nil {
				return err
			}
		}
	case []any:
		for _, e := range t {
			if err := checkFinite(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// EncodeStatement projects a statement summary into a document.
// Returns nil for a nil statement; callers handle absence, it is not an error.
func EncodeStatement(st *engine.StatementSummary) types.Document {
	if st == nil {
		return nil
	}
	return types.Document{
		"name":                st.Name,
		"text":                st.Text,
		"state":               st.State.String(),
		"timeLastStateChange": st.TimeLastStateChange.UTC().Format(time.RFC3339Nano),
	}
}
