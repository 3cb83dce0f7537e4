// FILE: lixenwraith/conftree/helper.go
package conftree

// ToMap returns a deep copy of the tree as nested map[string]any values.
// Null becomes nil and comments are dropped.
func (n *Node) ToMap() (map[string]any, error) {
	acc, err := n.AccumulatorCopy()
	if err != nil {
		return nil, err
	}
	return acc.toMap(), nil
}

// Flatten returns a snapshot of all leaf values keyed by dot-separated path.
func (n *Node) Flatten() (map[string]any, error) {
	m, err := n.ToMap()
	if err != nil {
		return nil, err
	}
	return flattenMap(m, ""), nil
}

// toMap converts an unpublished accumulator tree to nested maps.
func (acc *Accumulator) toMap() map[string]any {
	out := make(map[string]any, len(acc.mirror.values))
	for k, v := range acc.mirror.values {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch x := v.(type) {
	case *Accumulator:
		return x.toMap()
	case NullValue:
		return nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}

// flattenMap converts a nested map[string]any to a flat map[string]any with dot-notation paths.
func flattenMap(nested map[string]any, prefix string) map[string]any {
	flat := make(map[string]any)

	for key, value := range nested {
		newPath := key
		if prefix != "" {
			newPath = prefix + "." + key
		}

		// Check if the value is a map that can be further flattened
		if nestedMap, isMap := value.(map[string]any); isMap && len(nestedMap) > 0 {
			for subPath, subValue := range flattenMap(nestedMap, newPath) {
				flat[subPath] = subValue
			}
		} else {
			flat[newPath] = value
		}
	}

	return flat
}

// navigateToPath traverses nested map to reach the specified path
func navigateToPath(nested map[string]any, p Path) any {
	current := any(nested)
	for _, segment := range p {
		currentMap, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		value, exists := currentMap[segment]
		if !exists {
			return nil
		}
		current = value
	}
	return current
}
