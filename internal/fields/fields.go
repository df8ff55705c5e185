// Package fields implements the nested dot-path store holding every
// user-entered value of a workflow. Trees are plain map[string]any so
// they round-trip through JSON unchanged; updates are copy-on-write so
// snapshots taken by subscribers stay valid.
package fields

import "strings"

// Set returns a new tree with the leaf at dotPath replaced by value.
// Only the objects along the path are shallow-copied; every other
// branch is shared by reference with the input. Missing intermediate
// nodes are created as empty objects, and a non-object intermediate is
// replaced by one. The input tree is never mutated.
func Set(tree map[string]any, dotPath string, value any) map[string]any {
	if dotPath == "" {
		return tree
	}
	parts := strings.Split(dotPath, ".")
	return setParts(tree, parts, value)
}

func setParts(tree map[string]any, parts []string, value any) map[string]any {
	out := make(map[string]any, len(tree)+1)
	for k, v := range tree {
		out[k] = v
	}

	key := parts[0]
	if len(parts) == 1 {
		out[key] = value
		return out
	}

	child, _ := tree[key].(map[string]any)
	out[key] = setParts(child, parts[1:], value)
	return out
}

// Get returns the value at dotPath and whether the full path exists.
func Get(tree map[string]any, dotPath string) (any, bool) {
	if dotPath == "" {
		return nil, false
	}
	parts := strings.Split(dotPath, ".")
	current := tree
	for i, key := range parts {
		v, ok := current[key]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		current, ok = v.(map[string]any)
		if !ok {
			return nil, false
		}
	}
	return nil, false
}

// Flatten walks the tree and returns dot-joined leaf paths mapped to
// their values, for progress counting only. Scalar leaves that are nil
// or the empty string are skipped. Arrays are leaves: one entry when
// they hold at least one truthy member, skipped otherwise. Objects with
// no countable descendant contribute nothing.
func Flatten(tree map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", tree)
	return out
}

func flattenInto(out map[string]any, prefix string, tree map[string]any) {
	for k, v := range tree {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flattenInto(out, path, val)
		case []any:
			if hasTruthyMember(val) {
				out[path] = val
			}
		case nil:
			// empty leaf, skip
		case string:
			if val != "" {
				out[path] = val
			}
		default:
			out[path] = val
		}
	}
}

// hasTruthyMember reports whether the slice holds at least one value
// that counts as filled.
func hasTruthyMember(items []any) bool {
	for _, item := range items {
		if Truthy(item) {
			return true
		}
	}
	return false
}

// Truthy reports whether a stored value counts as present: non-nil,
// non-empty string, non-false, non-zero, or a container with at least
// one truthy member.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case []any:
		return hasTruthyMember(val)
	case map[string]any:
		for _, member := range val {
			if Truthy(member) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
