// FILE: lixenwraith/conftree/bulk.go
package conftree

// BulkRead runs fn with the node's read lock held for the whole call. The
// top-level values and comments of n cannot change while fn runs. Deeper levels
// have their own locks: other goroutines can still write below the top level,
// so reads of nested paths are individually consistent only. Writing through n,
// or any other tree, from inside fn fails with ErrScope.
func (n *Node) BulkRead(fn func(v *ReadView) error) error {
	leave, err := enterState(stateInBulk)
	if err != nil {
		return err
	}
	defer leave()

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.consumed.Load() {
		return ErrConsumed
	}

	view := &ReadView{node: n}
	view.valid.Store(true)
	defer view.invalidate()
	return fn(view)
}

// BulkUpdate runs fn with the node's write lock held for the whole call. No other
// goroutine observes or changes the top level of n between the operations made
// through the view. As with BulkRead, deeper levels keep their own locks.
func (n *Node) BulkUpdate(fn func(v *View) error) error {
	leave, err := enterState(stateInBulk)
	if err != nil {
		return err
	}
	defer leave()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.consumed.Load() {
		return ErrConsumed
	}

	view := &View{ReadView{node: n}}
	view.valid.Store(true)
	defer view.invalidate()
	return fn(view)
}

// BulkReadValue is BulkRead for callbacks producing a result.
func BulkReadValue[R any](n *Node, fn func(v *ReadView) (R, error)) (R, error) {
	var result R
	err := n.BulkRead(func(v *ReadView) error {
		var err error
		result, err = fn(v)
		return err
	})
	return result, err
}

// BulkUpdateValue is BulkUpdate for callbacks producing a result.
func BulkUpdateValue[R any](n *Node, fn func(v *View) (R, error)) (R, error) {
	var result R
	err := n.BulkUpdate(func(v *View) error {
		var err error
		result, err = fn(v)
		return err
	})
	return result, err
}
