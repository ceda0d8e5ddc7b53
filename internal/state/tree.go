package state

import "strings"

// Tree is the canonical session state shape: a nested string-keyed mapping.
// Leaves are JSON-compatible scalars, slices, or nested Trees.
//
// Exactly one canonical Tree exists per Container. Every externally visible
// Tree (Read results, notification payloads) is an isolated deep copy.
type Tree = map[string]any

// Copy returns a deep copy of t. Nested mappings and slices are cloned
// recursively; scalars are copied by value.
func Copy(t Tree) Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case Tree:
		return Copy(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = copyValue(elem)
		}
		return out
	default:
		return v
	}
}

// Lookup resolves a dot-separated path ("cart.products.p1") against t.
// An empty path returns t itself. Returns false if any segment is missing
// or a non-mapping is traversed.
func Lookup(t Tree, path string) (any, bool) {
	if path == "" {
		return t, true
	}
	var cur any = t
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(Tree)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// zeroCart returns an empty cart section. Numeric fields are float64 so the
// in-memory shape matches a JSON round trip through the persistence layer.
func zeroCart() Tree {
	return Tree{
		"productCount": float64(0),
		"products":     Tree{},
		"subTotal":     float64(0),
		"total":        float64(0),
	}
}

// DefaultTree builds a fresh session tree with all standard sections.
func DefaultTree(sessionID string) Tree {
	return Tree{
		"meta": Tree{
			"project":   "statecore",
			"sessionId": sessionID,
		},
		"page":    Tree{},
		"cart":    zeroCart(),
		"product": Tree{},
		"profile": Tree{},
		"consent": Tree{},
	}
}
