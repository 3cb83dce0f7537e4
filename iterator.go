// FILE: lixenwraith/conftree/iterator.go
package conftree

import (
	"fmt"
	"iter"
)

// Iterator walks a snapshot of a node's keys taken when the iterator was created.
// Keys inserted afterwards are not visited; values are read when accessed and so
// are always current.
type Iterator struct {
	node    *Node
	entries []*Entry
	pos     int
	removed bool
}

// Iterator snapshots the current top-level keys of n.
func (n *Node) Iterator() (*Iterator, error) {
	var entries []*Entry
	err := n.read(accessGuarded, func() error {
		keys := sortedKeys(n.values)
		entries = make([]*Entry, len(keys))
		for i, k := range keys {
			entries[i] = &Entry{node: n, key: k}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Iterator{node: n, entries: entries}, nil
}

// Next advances to the next entry and reports whether there is one.
func (it *Iterator) Next() bool {
	if it.pos >= len(it.entries) {
		// Past the end: Entry and Remove no longer see the last entry
		it.pos = len(it.entries) + 1
		return false
	}
	it.pos++
	it.removed = false
	return true
}

// Entry returns the current entry, or nil unless the last call to Next returned true.
func (it *Iterator) Entry() *Entry {
	if it.pos == 0 || it.pos > len(it.entries) {
		return nil
	}
	return it.entries[it.pos-1]
}

// Len returns the number of entries in the snapshot.
func (it *Iterator) Len() int { return len(it.entries) }

// Remove deletes the current entry from the live node. It can be called once
// per call to Next.
func (it *Iterator) Remove() error {
	if it.pos == 0 {
		return fmt.Errorf("%w: Next must be called before Remove", ErrIteratorState)
	}
	if it.pos > len(it.entries) {
		return fmt.Errorf("%w: iterator is exhausted", ErrIteratorState)
	}
	if it.removed {
		return fmt.Errorf("%w: Remove can be called only once per call to Next", ErrIteratorState)
	}
	if _, err := it.node.remove(accessGuarded, Path{it.entries[it.pos-1].key}); err != nil {
		return err
	}
	it.removed = true
	return nil
}

// All returns a sequence over a snapshot of the top-level entries. The sequence
// is empty if the snapshot cannot be taken; use Iterator to observe the error.
func (n *Node) All() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		it, err := n.Iterator()
		if err != nil {
			return
		}
		for it.Next() {
			if !yield(it.Entry()) {
				return
			}
		}
	}
}
