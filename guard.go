// FILE: lixenwraith/conftree/guard.go
package conftree

import (
	"sync"

	"github.com/petermattis/goid"
)

// opState records what the current goroutine is doing with a tree.
// Node locks are not reentrant, so a goroutine holding a node lock through a bulk
// operation or a ForEach must not take the normal locking path again.
type opState uint8

const (
	stateNormal opState = iota
	stateInBulk
	stateInIter
)

func (s opState) String() string {
	switch s {
	case stateInBulk:
		return "bulk"
	case stateInIter:
		return "iteration"
	default:
		return "normal"
	}
}

// opStates maps goroutine ids to their non-normal state. Normal goroutines have no entry.
var opStates sync.Map

func currentState() opState {
	if v, ok := opStates.Load(goid.Get()); ok {
		return v.(opState)
	}
	return stateNormal
}

// enterState switches the current goroutine to s and returns the function restoring
// the normal state. Entering any state while not normal is rejected.
func enterState(s opState) (func(), error) {
	id := goid.Get()
	if prev, loaded := opStates.LoadOrStore(id, s); loaded {
		prevState := prev.(opState)
		guardRejections.WithLabelValues(prevState.String()).Inc()
		if prevState == stateInBulk && s == stateInBulk {
			return nil, ErrNestedBulk
		}
		return nil, ErrScope
	}
	return func() { opStates.Delete(id) }, nil
}

// checkNormal validates that the current goroutine may block on a node lock.
func checkNormal() error {
	if s := currentState(); s != stateNormal {
		guardRejections.WithLabelValues(s.String()).Inc()
		return ErrScope
	}
	return nil
}
