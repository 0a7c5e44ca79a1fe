package vocabulary

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/c360/semlink/errors"
)

// Tree is a command tree: keys are vocabulary words, values are either a
// nested Tree or a command name. A Tree is read-only once built.
//
//	kitchen:
//	  light:
//	    on: light.on
//	    off: light.off
type Tree map[string]any

// LoadTree parses a command tree from YAML or JSON. Scalar leaves are
// converted to strings; lists and nulls are rejected.
func LoadTree(data []byte) (Tree, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"Tree", "LoadTree", "parse command tree")
	}
	return FromMap(raw)
}

// FromMap converts a decoded map into a Tree, checking every leaf.
func FromMap(raw map[string]any) (Tree, error) {
	tree, err := normalize(raw, nil)
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"Tree", "FromMap", "normalize command tree")
	}
	return tree, nil
}

func normalize(raw map[string]any, path []string) (Tree, error) {
	tree := make(Tree, len(raw))
	for key, value := range raw {
		here := append(append([]string(nil), path...), key)
		switch v := value.(type) {
		case map[string]any:
			sub, err := normalize(v, here)
			if err != nil {
				return nil, err
			}
			tree[key] = sub
		case Tree:
			sub, err := normalize(v, here)
			if err != nil {
				return nil, err
			}
			tree[key] = sub
		case string:
			tree[key] = v
		case bool, int, int64, float64, uint64:
			tree[key] = fmt.Sprint(v)
		default:
			return nil, fmt.Errorf("unsupported value %T at %v", value, here)
		}
	}
	return tree, nil
}

// Empty reports whether the tree has no keys.
func (t Tree) Empty() bool {
	return len(t) == 0
}

// SortedKeys returns the keys of this level in sorted order.
func (t Tree) SortedKeys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Keys collects keys from the first depth levels (level 0 is the root).
// Traversal is bounded by depth alone, so it terminates on trees that
// contain themselves. Keys come out depth first, sorted within a node, and
// duplicates are kept.
func (t Tree) Keys(depth int) []string {
	var keys []string
	t.collect(0, depth, &keys)
	return keys
}

func (t Tree) collect(level, depth int, keys *[]string) {
	if level >= depth {
		return
	}
	for _, k := range t.SortedKeys() {
		*keys = append(*keys, k)
		if sub, ok := AsTree(t[k]); ok {
			sub.collect(level+1, depth, keys)
		}
	}
}

// AsTree returns v as a Tree if it is a nested mapping.
func AsTree(v any) (Tree, bool) {
	switch sub := v.(type) {
	case Tree:
		return sub, true
	case map[string]any:
		return Tree(sub), true
	default:
		return nil, false
	}
}
