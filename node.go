// FILE: lixenwraith/conftree/node.go
package conftree

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// NullValue is the type of Null.
type NullValue struct{}

func (NullValue) String() string { return "null" }

// Null is an explicit null configuration value. A key holding Null exists,
// unlike a key that was never set.
var Null = NullValue{}

// IsNull reports whether v is the explicit null value.
func IsNull(v any) bool {
	_, ok := v.(NullValue)
	return ok
}

var nodeIDs atomic.Uint64

// Node is one level of a configuration tree. It owns a values map, a comments map
// and the lock protecting both. Values are scalars, lists ([]any), nested *Node
// children or Null.
//
// All methods are safe for concurrent use. Each level is locked independently:
// operations on disjoint branches never wait for each other. Use BulkRead and
// BulkUpdate to group several operations into one atomic unit.
type Node struct {
	mu       sync.RWMutex
	values   map[string]any
	comments map[string]string
	id       uint64 // global lock order for two-node operations
	consumed atomic.Bool
}

// NewNode creates an empty node, usable as a tree root or as a sub-node.
func NewNode() *Node {
	return &Node{
		values:   make(map[string]any),
		comments: make(map[string]string),
		id:       nodeIDs.Add(1),
	}
}

// level resolves all but the last segment of p, starting at n. It returns the
// terminal node and the access mode to use on it, or a nil node when a level is
// missing and create is false.
func (n *Node) level(a access, p Path, create bool) (*Node, access, error) {
	cur, ca := n, a
	for i, key := range p[:len(p)-1] {
		next, blocking, err := cur.childAt(ca, key, create)
		if err != nil {
			if blocking != nil {
				return nil, 0, fmt.Errorf("%w: %q holds a value of type %T", err, p[:i+1].String(), blocking)
			}
			return nil, 0, err
		}
		if next == nil {
			return nil, 0, nil
		}
		cur, ca = next, ca.child()
	}
	return cur, ca, nil
}

// childAt returns the child node stored at key. When the key is missing and create
// is set, a new node is inserted under the write lock unless a concurrent writer
// inserted one first, in which case that one is used.
func (n *Node) childAt(a access, key string, create bool) (*Node, any, error) {
	var v any
	var ok bool
	if err := n.read(a, func() error {
		v, ok = n.values[key]
		return nil
	}); err != nil {
		return nil, nil, err
	}

	if !ok {
		if !create {
			return nil, nil, nil
		}
		if err := n.write(a, func() error {
			if existing, found := n.values[key]; found {
				v = existing
				return nil
			}
			v = NewNode()
			n.values[key] = v
			return nil
		}); err != nil {
			return nil, nil, err
		}
	}

	child, isNode := v.(*Node)
	if !isNode {
		return nil, v, ErrIncompatibleLevel
	}
	return child, nil, nil
}

func (n *Node) get(a access, p Path) (any, error) {
	if len(p) == 0 {
		return nil, ErrEmptyPath
	}
	t, ta, err := n.level(a, p, false)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	var v any
	var ok bool
	if err := t.read(ta, func() error {
		v, ok = t.values[p.Last()]
		return nil
	}); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return v, nil
}

func (n *Node) contains(a access, p Path) (bool, error) {
	if len(p) == 0 {
		return false, ErrEmptyPath
	}
	t, ta, err := n.level(a, p, false)
	if err != nil || t == nil {
		return false, err
	}
	var ok bool
	err = t.read(ta, func() error {
		_, ok = t.values[p.Last()]
		return nil
	})
	return ok, err
}

func (n *Node) set(a access, p Path, value any) (any, error) {
	if len(p) == 0 {
		return nil, ErrEmptyPath
	}
	// Converted first: a value that cannot be stored must not leave new levels behind
	v, err := adopt(value)
	if err != nil {
		return nil, err
	}
	t, ta, err := n.level(a, p, true)
	if err != nil {
		return nil, err
	}
	var old any
	err = t.write(ta, func() error {
		old = t.values[p.Last()]
		t.values[p.Last()] = v
		return nil
	})
	return old, err
}

func (n *Node) add(a access, p Path, value any) (bool, error) {
	if len(p) == 0 {
		return false, ErrEmptyPath
	}
	v, err := adopt(value)
	if err != nil {
		return false, err
	}
	t, ta, err := n.level(a, p, true)
	if err != nil {
		return false, err
	}
	inserted := false
	err = t.write(ta, func() error {
		if _, exists := t.values[p.Last()]; exists {
			return nil
		}
		t.values[p.Last()] = v
		inserted = true
		return nil
	})
	return inserted, err
}

func (n *Node) remove(a access, p Path) (any, error) {
	if len(p) == 0 {
		return nil, ErrEmptyPath
	}
	t, ta, err := n.level(a, p, false)
	if err != nil || t == nil {
		return nil, err
	}
	var old any
	err = t.write(ta, func() error {
		old = t.values[p.Last()]
		delete(t.values, p.Last())
		return nil
	})
	return old, err
}

func (n *Node) comment(a access, p Path) (string, bool, error) {
	if len(p) == 0 {
		return "", false, ErrEmptyPath
	}
	t, ta, err := n.level(a, p, false)
	if err != nil || t == nil {
		return "", false, err
	}
	var c string
	var ok bool
	err = t.read(ta, func() error {
		c, ok = t.comments[p.Last()]
		return nil
	})
	return c, ok, err
}

func (n *Node) setComment(a access, p Path, c string) (string, error) {
	if len(p) == 0 {
		return "", ErrEmptyPath
	}
	t, ta, err := n.level(a, p, true)
	if err != nil {
		return "", err
	}
	var old string
	err = t.write(ta, func() error {
		old = t.comments[p.Last()]
		t.comments[p.Last()] = c
		return nil
	})
	return old, err
}

func (n *Node) removeComment(a access, p Path) (string, error) {
	if len(p) == 0 {
		return "", ErrEmptyPath
	}
	t, ta, err := n.level(a, p, false)
	if err != nil || t == nil {
		return "", err
	}
	var old string
	err = t.write(ta, func() error {
		old = t.comments[p.Last()]
		delete(t.comments, p.Last())
		return nil
	})
	return old, err
}

func (n *Node) size(a access) (int, error) {
	var size int
	err := n.read(a, func() error {
		size = len(n.values)
		return nil
	})
	return size, err
}

func (n *Node) keys(a access) ([]string, error) {
	var keys []string
	err := n.read(a, func() error {
		keys = sortedKeys(n.values)
		return nil
	})
	return keys, err
}

func (n *Node) putAll(a access, values map[string]any) error {
	adopted := make(map[string]any, len(values))
	for k, v := range values {
		c, err := adopt(v)
		if err != nil {
			return fmt.Errorf("put %q: %w", k, err)
		}
		adopted[k] = c
	}
	return n.write(a, func() error {
		for k, v := range adopted {
			n.values[k] = v
		}
		return nil
	})
}

// Get returns the value at p. A missing entry or missing intermediate level
// yields ErrNotFound; a non-node intermediate value yields ErrIncompatibleLevel.
func (n *Node) Get(p Path) (any, error) {
	return n.get(accessGuarded, p)
}

// Contains reports whether a value exists at p.
func (n *Node) Contains(p Path) (bool, error) {
	return n.contains(accessGuarded, p)
}

// Set stores value at p, creating missing intermediate nodes, and returns the
// previous value (nil if there was none). Foreign sub-trees (map[string]any,
// *Accumulator) are converted to nodes before being stored; a *Node is stored
// as a copy. On error the tree is left unchanged.
func (n *Node) Set(p Path, value any) (any, error) {
	return n.set(accessGuarded, p, value)
}

// Add stores value at p only if no value exists there yet. It reports whether
// the value was inserted.
func (n *Node) Add(p Path, value any) (bool, error) {
	return n.add(accessGuarded, p, value)
}

// Remove deletes the value at p and returns it, or nil if there was none.
// The comment attached to p, if any, is kept.
func (n *Node) Remove(p Path) (any, error) {
	return n.remove(accessGuarded, p)
}

// Comment returns the comment attached to p, or ErrNotFound.
func (n *Node) Comment(p Path) (string, error) {
	c, ok, err := n.comment(accessGuarded, p)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: comment %s", ErrNotFound, p)
	}
	return c, nil
}

// SetComment attaches a comment to p and returns the previous one.
// Missing intermediate nodes are created.
func (n *Node) SetComment(p Path, comment string) (string, error) {
	return n.setComment(accessGuarded, p, comment)
}

// RemoveComment removes the comment attached to p and returns it.
func (n *Node) RemoveComment(p Path) (string, error) {
	return n.removeComment(accessGuarded, p)
}

// ContainsComment reports whether a comment is attached to p.
func (n *Node) ContainsComment(p Path) (bool, error) {
	_, ok, err := n.comment(accessGuarded, p)
	return ok, err
}

// Size returns the number of values stored directly in this node.
func (n *Node) Size() (int, error) {
	return n.size(accessGuarded)
}

// IsEmpty reports whether the node holds no value.
func (n *Node) IsEmpty() (bool, error) {
	size, err := n.size(accessGuarded)
	return size == 0, err
}

// Keys returns the sorted keys of the values stored directly in this node.
func (n *Node) Keys() ([]string, error) {
	return n.keys(accessGuarded)
}

// Clear removes all values of this node. Comments are kept.
func (n *Node) Clear() error {
	return n.write(accessGuarded, func() error {
		clear(n.values)
		return nil
	})
}

// ClearComments removes all comments of this node.
func (n *Node) ClearComments() error {
	return n.write(accessGuarded, func() error {
		clear(n.comments)
		return nil
	})
}

// PutAll stores every entry of values at the top level of this node, under a
// single write lock.
func (n *Node) PutAll(values map[string]any) error {
	return n.putAll(accessGuarded, values)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
