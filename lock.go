// FILE: lixenwraith/conftree/lock.go
package conftree

// access selects how a node lock is taken for one level of a path operation.
type access uint8

const (
	// accessGuarded is the normal path. Reads make a non-blocking attempt first,
	// then check the guard and block; writes always check the guard first.
	accessGuarded access = iota
	// accessDirect blocks without consulting the guard. Used for levels below a node
	// whose lock the current goroutine legitimately holds (bulk views, copies).
	accessDirect
	// accessHeld means the caller already holds the lock of this node.
	accessHeld
)

// child returns the access mode for the levels below a node accessed with a.
func (a access) child() access {
	if a == accessGuarded {
		return accessGuarded
	}
	return accessDirect
}

func (n *Node) rlock(a access) error {
	switch a {
	case accessHeld:
		return nil
	case accessGuarded:
		if n.mu.TryRLock() {
			return nil
		}
		if err := checkNormal(); err != nil {
			return err
		}
		lockFallbacks.WithLabelValues("read").Inc()
	}
	n.mu.RLock()
	return nil
}

func (n *Node) runlock(a access) {
	if a != accessHeld {
		n.mu.RUnlock()
	}
}

func (n *Node) wlock(a access) error {
	switch a {
	case accessHeld:
		return nil
	case accessGuarded:
		// Only optimistic reads may skip the state check
		if err := checkNormal(); err != nil {
			return err
		}
		if n.mu.TryLock() {
			return nil
		}
		lockFallbacks.WithLabelValues("write").Inc()
	}
	n.mu.Lock()
	return nil
}

func (n *Node) wunlock(a access) {
	if a != accessHeld {
		n.mu.Unlock()
	}
}

// read runs fn with the node's maps protected against writers.
func (n *Node) read(a access, fn func() error) error {
	if err := n.rlock(a); err != nil {
		return err
	}
	defer n.runlock(a)
	if n.consumed.Load() {
		return ErrConsumed
	}
	return fn()
}

// write runs fn with exclusive access to the node's maps.
func (n *Node) write(a access, fn func() error) error {
	if err := n.wlock(a); err != nil {
		return err
	}
	defer n.wunlock(a)
	if n.consumed.Load() {
		return ErrConsumed
	}
	return fn()
}
