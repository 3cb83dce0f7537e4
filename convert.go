// FILE: lixenwraith/conftree/convert.go
package conftree

import (
	"fmt"
)

// adopt converts a value entering a tree so that every nested level is a *Node
// owned by that tree alone. nil becomes Null, maps become nodes, accumulators are
// published, and lists are converted element by element. Nodes are copied level
// by level: a node already in a tree, or the target tree itself, is stored as a
// snapshot, so no level is ever shared and no cycle can form.
func adopt(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return Null, nil
	case *Node:
		if x == nil {
			return Null, nil
		}
		acc, err := copyNode(x, accessGuarded)
		if err != nil {
			return nil, err
		}
		return acc.publish()
	case *Accumulator:
		if x == nil {
			return Null, nil
		}
		return x.publish()
	case map[string]any:
		return nodeFromMap(x)
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			n, err := nodeFromMap(m)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			c, err := adopt(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		return v, nil
	}
}

func nodeFromMap(m map[string]any) (*Node, error) {
	n := NewNode()
	for k, v := range m {
		c, err := adopt(v)
		if err != nil {
			return nil, fmt.Errorf("convert %q: %w", k, err)
		}
		n.values[k] = c
	}
	return n, nil
}

// CheckInvariant walks the tree and verifies that every nested level, including
// those inside lists, is a *Node. It is a debugging aid; the conversion done on
// insertion keeps the invariant.
func (n *Node) CheckInvariant() error {
	return n.checkInvariant(accessGuarded, nil)
}

func (n *Node) checkInvariant(a access, at Path) error {
	var children []*Node
	var childPaths []Path
	err := n.read(a, func() error {
		for _, k := range sortedKeys(n.values) {
			if err := collectChildren(n.values[k], at.Append(k), &children, &childPaths); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i, c := range children {
		if err := c.checkInvariant(a.child(), childPaths[i]); err != nil {
			return err
		}
	}
	return nil
}

func collectChildren(v any, at Path, children *[]*Node, paths *[]Path) error {
	switch x := v.(type) {
	case *Node:
		*children = append(*children, x)
		*paths = append(*paths, at)
	case []any:
		for i, e := range x {
			if err := collectChildren(e, at.Append(fmt.Sprintf("[%d]", i)), children, paths); err != nil {
				return err
			}
		}
	case map[string]any, []map[string]any, *Accumulator, nil:
		return fmt.Errorf("foreign value of type %T stored at %s", v, at)
	}
	return nil
}
