// FILE: lixenwraith/conftree/replace.go
package conftree

import (
	"fmt"
)

// ContentSource is the content accepted by Node.ReplaceContentBy.
// It is implemented by *Node and *Accumulator.
type ContentSource interface {
	contentSource()
}

func (*Node) contentSource()        {}
func (*Accumulator) contentSource() {}

// ReplaceContentBy atomically replaces all values and comments of n by those of
// src. Concurrent readers of n observe either the old or the new content, never
// a mix. The swap exchanges map references only, whatever the size of the trees.
//
// src cannot be used afterwards: every operation on it returns ErrConsumed.
//
// src must not be a level of n's tree, nor n a level of src's. The two locks are
// taken by node id, not by tree depth, so such a replacement can wait forever on
// a bulk operation running on the ancestor, and the swapped content would then
// contain its own owner.
func (n *Node) ReplaceContentBy(src ContentSource) error {
	if err := checkNormal(); err != nil {
		return err
	}
	switch s := src.(type) {
	case *Node:
		if err := n.swapFrom(s); err != nil {
			return err
		}
		replacements.WithLabelValues("node").Inc()
	case *Accumulator:
		mirror, err := s.publish()
		if err != nil {
			return err
		}
		if err := n.swapFrom(mirror); err != nil {
			return err
		}
		replacements.WithLabelValues("accumulator").Inc()
	default:
		return fmt.Errorf("unsupported content source %T", src)
	}
	return nil
}

// swapFrom moves src's maps into n. Both write locks are taken in ascending id
// order so that two replacements running in opposite directions cannot deadlock.
func (n *Node) swapFrom(src *Node) error {
	if src == nil {
		return fmt.Errorf("nil content source")
	}
	if src == n {
		return ErrSelfReplace
	}
	first, second := n, src
	if src.id < n.id {
		first, second = src, n
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if n.consumed.Load() || src.consumed.Load() {
		return ErrConsumed
	}
	n.values, n.comments = src.values, src.comments
	src.values, src.comments = nil, nil
	src.consumed.Store(true)
	return nil
}

// AccumulatorCopy returns a deep copy of the tree as an accumulator, taken under
// a bulk read of n. Savers encode the copy without holding any lock.
func (n *Node) AccumulatorCopy() (*Accumulator, error) {
	return BulkReadValue(n, func(v *ReadView) (*Accumulator, error) {
		acc := NewAccumulator()
		err := v.ForEach(func(e *ScopedEntry) error {
			val, err := e.Value()
			if err != nil {
				return err
			}
			c, err := copyValue(val, accessDirect)
			if err != nil {
				return fmt.Errorf("copy %q: %w", e.Key(), err)
			}
			acc.put(e.Key(), c)
			if comment, ok, _ := e.Comment(); ok {
				acc.mirror.comments[e.Key()] = comment
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		// Dangling comments are part of the content too.
		for k, c := range v.node.comments {
			acc.mirror.comments[k] = c
		}
		return acc, nil
	})
}

// copyNode copies n into a new accumulator. n's lock is only held while its own
// level is read; children are copied after it is released.
func copyNode(n *Node, a access) (*Accumulator, error) {
	acc := NewAccumulator()
	err := n.read(a, func() error {
		for k, v := range n.values {
			acc.mirror.values[k] = v
		}
		for k, c := range n.comments {
			acc.mirror.comments[k] = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for k, v := range acc.mirror.values {
		c, err := copyValue(v, a.child())
		if err != nil {
			return nil, fmt.Errorf("copy %q: %w", k, err)
		}
		acc.put(k, c)
	}
	return acc, nil
}

func copyValue(v any, a access) (any, error) {
	switch x := v.(type) {
	case *Node:
		return copyNode(x, a)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			c, err := copyValue(e, a)
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
