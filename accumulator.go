// FILE: lixenwraith/conftree/accumulator.go
package conftree

import (
	"fmt"
	"sync/atomic"
)

// Accumulator builds new tree content without any locking, typically from a
// parser, before it is published into a live tree with Node.ReplaceContentBy or
// stored as a value with Node.Set. It shares its maps with a mirror node, so
// publishing costs no copy. An Accumulator is not safe for concurrent use and
// cannot be used once published.
//
// A nested accumulator belongs to exactly one level. Storing it a second time,
// or below itself, fails with ErrInvalidPath; Remove releases it.
type Accumulator struct {
	mirror   *Node
	parent   *Accumulator
	consumed atomic.Bool
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{mirror: NewNode()}
}

// NewAccumulator creates an empty nested level, to be stored with Set.
func (acc *Accumulator) NewAccumulator() (*Accumulator, error) {
	if err := acc.check(); err != nil {
		return nil, err
	}
	return NewAccumulator(), nil
}

// AccumulatorFromMap builds an accumulator from a nested map, as produced by
// most decoders. Nodes found in m are copied.
func AccumulatorFromMap(m map[string]any) (*Accumulator, error) {
	if err := checkAttachable(m, nil, make(map[*Accumulator]bool)); err != nil {
		return nil, err
	}
	acc := NewAccumulator()
	for k, v := range m {
		c, err := accumulate(v, acc)
		if err != nil {
			return nil, fmt.Errorf("convert %q: %w", k, err)
		}
		acc.mirror.values[k] = c
	}
	return acc, nil
}

func (acc *Accumulator) check() error {
	if acc.consumed.Load() {
		return ErrConsumed
	}
	return nil
}

// put stores a value built by this package, which owns every accumulator in it.
func (acc *Accumulator) put(key string, v any) {
	attachAccumulated(v, acc, nil)
	acc.mirror.values[key] = v
}

// accumulate converts v for storage below parent: maps become nested
// accumulators and nodes are copied. Accumulators are stored as they are once
// checked; nothing is modified when an error is returned.
func accumulate(v any, parent *Accumulator) (any, error) {
	if err := checkAttachable(v, parent, make(map[*Accumulator]bool)); err != nil {
		return nil, err
	}
	fresh := make(map[*Accumulator]bool)
	c, err := convertAccumulated(v, fresh)
	if err != nil {
		return nil, err
	}
	attachAccumulated(c, parent, fresh)
	return c, nil
}

func checkAttachable(v any, parent *Accumulator, seen map[*Accumulator]bool) error {
	switch x := v.(type) {
	case *Accumulator:
		if x == nil {
			return nil
		}
		if err := x.check(); err != nil {
			return err
		}
		if x.parent != nil || seen[x] {
			return fmt.Errorf("%w: accumulator already belongs to a level", ErrInvalidPath)
		}
		for p := parent; p != nil; p = p.parent {
			if p == x {
				return fmt.Errorf("%w: accumulator would contain itself", ErrInvalidPath)
			}
		}
		seen[x] = true
	case map[string]any:
		for _, e := range x {
			if err := checkAttachable(e, parent, seen); err != nil {
				return err
			}
		}
	case []map[string]any:
		for _, m := range x {
			if err := checkAttachable(m, parent, seen); err != nil {
				return err
			}
		}
	case []any:
		for _, e := range x {
			if err := checkAttachable(e, parent, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// convertAccumulated records the accumulators it creates in fresh.
func convertAccumulated(v any, fresh map[*Accumulator]bool) (any, error) {
	switch x := v.(type) {
	case nil:
		return Null, nil
	case *Accumulator:
		if x == nil {
			return Null, nil
		}
		return x, nil
	case *Node:
		if x == nil {
			return Null, nil
		}
		return copyNode(x, accessGuarded)
	case map[string]any:
		child := NewAccumulator()
		for k, e := range x {
			c, err := convertAccumulated(e, fresh)
			if err != nil {
				return nil, fmt.Errorf("convert %q: %w", k, err)
			}
			child.mirror.values[k] = c
		}
		fresh[child] = true
		return child, nil
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			c, err := convertAccumulated(m, fresh)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			c, err := convertAccumulated(e, fresh)
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

// attachAccumulated makes parent the owner of the accumulators directly held by
// v, then descends into those listed in fresh.
func attachAccumulated(v any, parent *Accumulator, fresh map[*Accumulator]bool) {
	switch x := v.(type) {
	case *Accumulator:
		x.parent = parent
		if fresh[x] {
			for _, e := range x.mirror.values {
				attachAccumulated(e, x, fresh)
			}
		}
	case []any:
		for _, e := range x {
			attachAccumulated(e, parent, fresh)
		}
	}
}

// detachAccumulated releases the accumulators directly held by v.
func detachAccumulated(v any) {
	switch x := v.(type) {
	case *Accumulator:
		x.parent = nil
	case []any:
		for _, e := range x {
			detachAccumulated(e)
		}
	}
}

func (acc *Accumulator) level(p Path, create bool) (*Accumulator, error) {
	cur := acc
	for i, key := range p[:len(p)-1] {
		v, ok := cur.mirror.values[key]
		if !ok {
			if !create {
				return nil, nil
			}
			next := NewAccumulator()
			cur.put(key, next)
			cur = next
			continue
		}
		next, isAcc := v.(*Accumulator)
		if !isAcc {
			return nil, fmt.Errorf("%w: %q holds a value of type %T", ErrIncompatibleLevel, p[:i+1].String(), v)
		}
		cur = next
	}
	return cur, nil
}

// target is level without side effects: it reports the existing level for p, or
// the deepest existing ancestor when levels are missing.
func (acc *Accumulator) target(p Path) (*Accumulator, error) {
	cur := acc
	for i, key := range p[:len(p)-1] {
		v, ok := cur.mirror.values[key]
		if !ok {
			return cur, nil
		}
		next, isAcc := v.(*Accumulator)
		if !isAcc {
			return nil, fmt.Errorf("%w: %q holds a value of type %T", ErrIncompatibleLevel, p[:i+1].String(), v)
		}
		cur = next
	}
	return cur, nil
}

func (acc *Accumulator) resolve(p Path, create bool) (*Accumulator, error) {
	if err := acc.check(); err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, ErrEmptyPath
	}
	return acc.level(p, create)
}

// prepare converts value for storage at p before any level is created, so that
// a failure leaves the accumulator unchanged.
func (acc *Accumulator) prepare(p Path, value any) (any, error) {
	if err := acc.check(); err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, ErrEmptyPath
	}
	// Missing levels will be created below t and are new, so checking against
	// t and its ancestors is enough.
	t, err := acc.target(p)
	if err != nil {
		return nil, err
	}
	return accumulate(value, t)
}

// Get returns the value at p, or ErrNotFound. Nested levels are *Accumulator values.
func (acc *Accumulator) Get(p Path) (any, error) {
	t, err := acc.resolve(p, false)
	if err != nil {
		return nil, err
	}
	if t != nil {
		if v, ok := t.mirror.values[p.Last()]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
}

// Contains reports whether a value exists at p.
func (acc *Accumulator) Contains(p Path) (bool, error) {
	t, err := acc.resolve(p, false)
	if err != nil || t == nil {
		return false, err
	}
	_, ok := t.mirror.values[p.Last()]
	return ok, nil
}

// Set stores value at p, creating intermediate levels, and returns the previous value.
func (acc *Accumulator) Set(p Path, value any) (any, error) {
	v, err := acc.prepare(p, value)
	if err != nil {
		return nil, err
	}
	t, err := acc.level(p, true)
	if err != nil {
		return nil, err
	}
	attachAccumulated(v, t, nil)
	old := t.mirror.values[p.Last()]
	detachAccumulated(old)
	t.mirror.values[p.Last()] = v
	return old, nil
}

// Add stores value at p if no value exists there and reports whether it did.
func (acc *Accumulator) Add(p Path, value any) (bool, error) {
	if ok, err := acc.Contains(p); err != nil || ok {
		return false, err
	}
	v, err := acc.prepare(p, value)
	if err != nil {
		return false, err
	}
	t, err := acc.level(p, true)
	if err != nil {
		return false, err
	}
	attachAccumulated(v, t, nil)
	t.mirror.values[p.Last()] = v
	return true, nil
}

// Remove deletes the value at p and returns it.
func (acc *Accumulator) Remove(p Path) (any, error) {
	t, err := acc.resolve(p, false)
	if err != nil || t == nil {
		return nil, err
	}
	old := t.mirror.values[p.Last()]
	detachAccumulated(old)
	delete(t.mirror.values, p.Last())
	return old, nil
}

// Comment returns the comment attached to p, or ErrNotFound.
func (acc *Accumulator) Comment(p Path) (string, error) {
	t, err := acc.resolve(p, false)
	if err != nil {
		return "", err
	}
	if t != nil {
		if c, ok := t.mirror.comments[p.Last()]; ok {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: comment %s", ErrNotFound, p)
}

// SetComment attaches a comment to p and returns the previous one.
func (acc *Accumulator) SetComment(p Path, comment string) (string, error) {
	t, err := acc.resolve(p, true)
	if err != nil {
		return "", err
	}
	old := t.mirror.comments[p.Last()]
	t.mirror.comments[p.Last()] = comment
	return old, nil
}

// RemoveComment removes the comment attached to p and returns it.
func (acc *Accumulator) RemoveComment(p Path) (string, error) {
	t, err := acc.resolve(p, false)
	if err != nil || t == nil {
		return "", err
	}
	old := t.mirror.comments[p.Last()]
	delete(t.mirror.comments, p.Last())
	return old, nil
}

// Size returns the number of top-level values.
func (acc *Accumulator) Size() (int, error) {
	if err := acc.check(); err != nil {
		return 0, err
	}
	return len(acc.mirror.values), nil
}

// Keys returns the sorted top-level keys.
func (acc *Accumulator) Keys() ([]string, error) {
	if err := acc.check(); err != nil {
		return nil, err
	}
	return sortedKeys(acc.mirror.values), nil
}

// Range calls fn for every top-level entry in key order until fn returns false.
// hasComment reports whether a comment is attached to the key.
func (acc *Accumulator) Range(fn func(key string, value any, comment string, hasComment bool) bool) error {
	if err := acc.check(); err != nil {
		return err
	}
	for _, k := range sortedKeys(acc.mirror.values) {
		c, ok := acc.mirror.comments[k]
		if !fn(k, acc.mirror.values[k], c, ok) {
			break
		}
	}
	return nil
}

// publish marks a top-level accumulator consumed and returns its mirror node,
// after replacing every nested accumulator by its own mirror.
func (acc *Accumulator) publish() (*Node, error) {
	if acc.parent != nil {
		return nil, fmt.Errorf("%w: accumulator belongs to another level", ErrInvalidPath)
	}
	return acc.seal()
}

func (acc *Accumulator) seal() (*Node, error) {
	if !acc.consumed.CompareAndSwap(false, true) {
		return nil, ErrConsumed
	}
	if err := prepareReplacement(acc.mirror); err != nil {
		return nil, err
	}
	return acc.mirror, nil
}

// prepareReplacement rewrites n's values in place so that every nested level is a
// node. n must not be reachable by other goroutines yet.
func prepareReplacement(n *Node) error {
	for k, v := range n.values {
		pv, err := prepareValue(v)
		if err != nil {
			return fmt.Errorf("publish %q: %w", k, err)
		}
		n.values[k] = pv
	}
	return nil
}

func prepareValue(v any) (any, error) {
	switch x := v.(type) {
	case *Accumulator:
		return x.seal()
	case []any:
		for i, e := range x {
			pe, err := prepareValue(e)
			if err != nil {
				return nil, err
			}
			x[i] = pe
		}
		return x, nil
	default:
		return v, nil
	}
}
