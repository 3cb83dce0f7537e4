// FILE: lixenwraith/conftree/view.go
package conftree

import (
	"fmt"
	"sync/atomic"
)

// ReadView gives read access to a node whose read lock is held by a BulkRead call.
// It is only valid during the callback it was passed to; afterwards every method
// returns ErrViewExpired.
type ReadView struct {
	node  *Node
	valid atomic.Bool
}

func (v *ReadView) check() error {
	if !v.valid.Load() {
		return ErrViewExpired
	}
	return nil
}

func (v *ReadView) invalidate() {
	v.valid.Store(false)
}

// Get returns the value at p, or ErrNotFound.
func (v *ReadView) Get(p Path) (any, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return v.node.get(accessHeld, p)
}

// Contains reports whether a value exists at p.
func (v *ReadView) Contains(p Path) (bool, error) {
	if err := v.check(); err != nil {
		return false, err
	}
	return v.node.contains(accessHeld, p)
}

// Comment returns the comment attached to p, or ErrNotFound.
func (v *ReadView) Comment(p Path) (string, error) {
	if err := v.check(); err != nil {
		return "", err
	}
	c, ok, err := v.node.comment(accessHeld, p)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: comment %s", ErrNotFound, p)
	}
	return c, nil
}

// ContainsComment reports whether a comment is attached to p.
func (v *ReadView) ContainsComment(p Path) (bool, error) {
	if err := v.check(); err != nil {
		return false, err
	}
	_, ok, err := v.node.comment(accessHeld, p)
	return ok, err
}

// Size returns the number of top-level values.
func (v *ReadView) Size() (int, error) {
	if err := v.check(); err != nil {
		return 0, err
	}
	return len(v.node.values), nil
}

// Keys returns the sorted top-level keys.
func (v *ReadView) Keys() ([]string, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return sortedKeys(v.node.values), nil
}

// ForEach calls fn for every top-level entry, in key order. Entries are read-only
// and only valid during their own callback.
func (v *ReadView) ForEach(fn func(*ScopedEntry) error) error {
	if err := v.check(); err != nil {
		return err
	}
	return forEachScoped(v.node, false, fn)
}

// View gives read-write access to a node whose write lock is held by a
// BulkUpdate call. Like ReadView, it expires when the callback returns.
type View struct {
	ReadView
}

// Set stores value at p and returns the previous value.
func (v *View) Set(p Path, value any) (any, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return v.node.set(accessHeld, p, value)
}

// Add stores value at p if no value exists there and reports whether it did.
func (v *View) Add(p Path, value any) (bool, error) {
	if err := v.check(); err != nil {
		return false, err
	}
	return v.node.add(accessHeld, p, value)
}

// Remove deletes the value at p and returns it.
func (v *View) Remove(p Path) (any, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return v.node.remove(accessHeld, p)
}

// SetComment attaches a comment to p and returns the previous one.
func (v *View) SetComment(p Path, comment string) (string, error) {
	if err := v.check(); err != nil {
		return "", err
	}
	return v.node.setComment(accessHeld, p, comment)
}

// RemoveComment removes the comment attached to p and returns it.
func (v *View) RemoveComment(p Path) (string, error) {
	if err := v.check(); err != nil {
		return "", err
	}
	return v.node.removeComment(accessHeld, p)
}

// Clear removes all top-level values.
func (v *View) Clear() error {
	if err := v.check(); err != nil {
		return err
	}
	clear(v.node.values)
	return nil
}

// ClearComments removes all top-level comments.
func (v *View) ClearComments() error {
	if err := v.check(); err != nil {
		return err
	}
	clear(v.node.comments)
	return nil
}

// PutAll stores every entry of values at the top level.
func (v *View) PutAll(values map[string]any) error {
	if err := v.check(); err != nil {
		return err
	}
	return v.node.putAll(accessHeld, values)
}

// NewNode creates an empty node for insertion through this view. Inserting
// copies it, and the node cannot be written until the bulk operation ends, so
// the inserted level is filled through the view.
func (v *View) NewNode() (*Node, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return NewNode(), nil
}

// ForEach calls fn for every top-level entry, in key order, with writable entries.
func (v *View) ForEach(fn func(*ScopedEntry) error) error {
	if err := v.check(); err != nil {
		return err
	}
	return forEachScoped(v.node, true, fn)
}
