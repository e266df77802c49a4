package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/cepgate/internal/types"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    []segment
		wantErr bool
	}{
		{"top-level", "type", []segment{{key: "type"}}, false},
		{"nested", "attrs.temp", []segment{{key: "attrs"}, {key: "temp"}}, false},
		{"index", "readings.0", []segment{{key: "readings"}, {key: "0", index: 0, isIndex: true}}, false},
		{"wildcard", "readings.*.unit", []segment{{key: "readings"}, {wildcard: true}, {key: "unit"}}, false},
		{"empty segment", "attrs..temp", nil, true},
		{"trailing dot", "attrs.", nil, true},
		{"too many wildcards", "a.*.*.*", nil, true},
		{"too deep", strings.Repeat("a.", maxPathDepth) + "a", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePath(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnyMatch(t *testing.T) {
	event := map[string]any{
		"type": "alarm",
		"attrs": map[string]any{
			"temp": 21.5,
			"zone": map[string]any{"name": "north"},
		},
		"readings": []any{
			map[string]any{"unit": "C", "value": 21.5},
			map[string]any{"unit": "F", "value": 70.7},
		},
		"empty": []any{},
		"none":  nil,
	}

	tests := []struct {
		name string
		key  string
		want any
		ok   bool
	}{
		{"top-level equal", "type", "alarm", true},
		{"top-level differs", "type", "reading", false},
		{"nested number", "attrs.temp", 21.5, true},
		{"deeply nested", "attrs.zone.name", "north", true},
		{"missing nested key", "attrs.humidity", 40.0, false},
		{"index", "readings.1.unit", "F", true},
		{"index out of range", "readings.5.unit", "F", false},
		{"wildcard any element", "readings.*.unit", "F", true},
		{"wildcard no element", "readings.*.unit", "K", false},
		{"wildcard over object", "attrs.*", 21.5, true},
		{"wildcard on empty array", "empty.*", "x", false},
		{"path through null", "none.x", "x", false},
		{"path through scalar", "type.x", "x", false},
		{"key on array", "readings.unit", "C", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := parsePath(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, anyMatch(segs, event, tt.want))
		})
	}
}

func TestProvider_NestedFilter(t *testing.T) {
	p := setupProvider(t)
	require.NoError(t, p.AddStatement(Statement{
		Name:      "fahrenheit",
		EventType: types.EventTypeName,
		Filter:    map[string]any{"readings.*.unit": "F"},
		Select:    []string{"id"},
	}))
	c := &collector{}
	p.Subscribe(c.listen)

	hot := alarm("e1")
	hot["readings"] = []any{map[string]any{"unit": "C"}, map[string]any{"unit": "F"}}
	cold := alarm("e2")
	cold["readings"] = []any{map[string]any{"unit": "C"}}

	require.NoError(t, p.SendEvent(context.Background(), types.EventTypeName, hot))
	require.NoError(t, p.SendEvent(context.Background(), types.EventTypeName, cold))
	p.Flush()

	require.Len(t, c.results, 1)
	v, err := c.results[0][0].Get("id")
	require.NoError(t, err)
	assert.Equal(t, "e1", v)
}

func TestProvider_InvalidFilterPath(t *testing.T) {
	p := setupProvider(t)
	err := p.AddStatement(Statement{
		Name:      "bad",
		EventType: types.EventTypeName,
		Filter:    map[string]any{"a..b": 1},
	})
	require.Error(t, err)
	_, ok := p.Statement("bad")
	assert.False(t, ok)
}
