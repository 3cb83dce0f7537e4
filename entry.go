// FILE: lixenwraith/conftree/entry.go
package conftree

import (
	"errors"
	"sync/atomic"
)

// Entry is a handle on one top-level key of a node. Its value and comment are read
// lazily, each access taking the node lock again, so an Entry stays usable after
// the call that produced it. It must not be used while the current goroutine holds
// a tree lock (inside BulkRead, BulkUpdate or ForEach).
type Entry struct {
	node *Node
	key  string
}

// Key returns the entry key.
func (e *Entry) Key() string { return e.key }

// Value returns the current value, or ErrNotFound if the key was removed.
func (e *Entry) Value() (any, error) {
	return e.node.get(accessGuarded, Path{e.key})
}

// SetValue replaces the value and returns the previous one.
func (e *Entry) SetValue(value any) (any, error) {
	return e.node.set(accessGuarded, Path{e.key}, value)
}

// Comment returns the current comment and whether one is set.
func (e *Entry) Comment() (string, bool, error) {
	return e.node.comment(accessGuarded, Path{e.key})
}

// SetComment replaces the comment and returns the previous one.
func (e *Entry) SetComment(comment string) (string, error) {
	return e.node.setComment(accessGuarded, Path{e.key}, comment)
}

// RemoveComment removes the comment and returns it.
func (e *Entry) RemoveComment() (string, error) {
	return e.node.removeComment(accessGuarded, Path{e.key})
}

// ScopedEntry is an entry handed to a ForEach callback. It accesses the node maps
// directly, relying on the lock held by ForEach, and expires as soon as its
// callback returns.
type ScopedEntry struct {
	node     *Node
	key      string
	writable bool
	valid    atomic.Bool
}

func (e *ScopedEntry) check(write bool) error {
	if !e.valid.Load() {
		return ErrEntryExpired
	}
	if write && !e.writable {
		return ErrReadOnly
	}
	return nil
}

// Key returns the entry key.
func (e *ScopedEntry) Key() string { return e.key }

// Value returns the current value, or ErrNotFound if the key was removed.
func (e *ScopedEntry) Value() (any, error) {
	if err := e.check(false); err != nil {
		return nil, err
	}
	v, ok := e.node.values[e.key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// SetValue replaces the value and returns the previous one.
func (e *ScopedEntry) SetValue(value any) (any, error) {
	if err := e.check(true); err != nil {
		return nil, err
	}
	v, err := adopt(value)
	if err != nil {
		return nil, err
	}
	old := e.node.values[e.key]
	e.node.values[e.key] = v
	return old, nil
}

// Comment returns the current comment and whether one is set.
func (e *ScopedEntry) Comment() (string, bool, error) {
	if err := e.check(false); err != nil {
		return "", false, err
	}
	c, ok := e.node.comments[e.key]
	return c, ok, nil
}

// SetComment replaces the comment and returns the previous one.
func (e *ScopedEntry) SetComment(comment string) (string, error) {
	if err := e.check(true); err != nil {
		return "", err
	}
	old := e.node.comments[e.key]
	e.node.comments[e.key] = comment
	return old, nil
}

// RemoveComment removes the comment and returns it.
func (e *ScopedEntry) RemoveComment() (string, error) {
	if err := e.check(true); err != nil {
		return "", err
	}
	old := e.node.comments[e.key]
	delete(e.node.comments, e.key)
	return old, nil
}

// forEachScoped iterates over the keys of n present when it starts. The caller
// holds n's lock.
func forEachScoped(n *Node, writable bool, fn func(*ScopedEntry) error) error {
	for _, k := range sortedKeys(n.values) {
		if _, ok := n.values[k]; !ok {
			continue
		}
		if err := callScoped(n, k, writable, fn); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

func callScoped(n *Node, key string, writable bool, fn func(*ScopedEntry) error) error {
	e := &ScopedEntry{node: n, key: key, writable: writable}
	e.valid.Store(true)
	defer e.valid.Store(false)
	return fn(e)
}

// ForEach calls fn for every top-level entry while holding the node's write lock
// once for the whole traversal. Entries are writable and expire after their own
// callback. Returning ErrStopIteration ends the traversal early.
func (n *Node) ForEach(fn func(*ScopedEntry) error) error {
	leave, err := enterState(stateInIter)
	if err != nil {
		return err
	}
	defer leave()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.consumed.Load() {
		return ErrConsumed
	}
	return forEachScoped(n, true, fn)
}
