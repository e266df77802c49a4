package memory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Limits on filter paths, checked when a statement is added.
const (
	maxPathDepth = 16
	maxWildcards = 2
)

// segment is one component of a dotted filter path: an object key, an
// array index, or "*" matching any element.
type segment struct {
	key      string
	index    int
	isIndex  bool
	wildcard bool
}

// parsePath splits a filter key such as "attrs.readings.*.unit" into
// segments. A key without dots is a single top-level attribute.
func parsePath(key string) ([]segment, error) {
	parts := strings.Split(key, ".")
	if len(parts) > maxPathDepth {
		return nil, fmt.Errorf("filter path %q exceeds depth %d", key, maxPathDepth)
	}

	segs := make([]segment, 0, len(parts))
	wildcards := 0
	for _, p := range parts {
		switch {
		case p == "":
			return nil, fmt.Errorf("filter path %q has an empty segment", key)
		case p == "*":
			wildcards++
			segs = append(segs, segment{wildcard: true})
		default:
			if i, err := strconv.Atoi(p); err == nil && i >= 0 {
				segs = append(segs, segment{key: p, index: i, isIndex: true})
				continue
			}
			segs = append(segs, segment{key: p})
		}
	}
	if wildcards > maxWildcards {
		return nil, fmt.Errorf("filter path %q has more than %d wildcards", key, maxWildcards)
	}
	return segs, nil
}

// anyMatch reports whether some value reachable through path equals want.
// Wildcards have ANY semantics and visit object keys in sorted order.
func anyMatch(path []segment, current any, want any) bool {
	if len(path) == 0 {
		return equal(current, want)
	}
	seg, rest := path[0], path[1:]

	switch v := current.(type) {
	case map[string]any:
		if seg.wildcard {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if anyMatch(rest, v[k], want) {
					return true
				}
			}
			return false
		}
		// Numeric segments are valid object keys too.
		val, ok := v[seg.key]
		return ok && anyMatch(rest, val, want)

	case []any:
		if seg.wildcard {
			for _, elem := range v {
				if anyMatch(rest, elem, want) {
					return true
				}
			}
			return false
		}
		if !seg.isIndex || seg.index >= len(v) {
			return false
		}
		return anyMatch(rest, v[seg.index], want)

	default:
		// Scalar or null with path remaining
		return false
	}
}
