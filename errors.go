// FILE: lixenwraith/conftree/errors.go
package conftree

import "errors"

// Path errors
var (
	ErrEmptyPath         = errors.New("empty entry path")
	ErrInvalidPath       = errors.New("invalid entry path")
	ErrIncompatibleLevel = errors.New("incompatible intermediate level")
	ErrNotFound          = errors.New("entry not found")
)

// Scope violations. These are programming errors and are never retried.
var (
	ErrScope         = errors.New("node used inside its own bulk operation or iteration")
	ErrNestedBulk    = errors.New("bulk operations cannot be nested")
	ErrViewExpired   = errors.New("view used outside the scope of its bulk operation")
	ErrEntryExpired  = errors.New("entry used outside the scope of its ForEach callback")
	ErrReadOnly      = errors.New("entry is read-only")
	ErrIteratorState = errors.New("invalid iterator state")
	ErrConsumed      = errors.New("content has been consumed by a replace operation")
	ErrSelfReplace   = errors.New("node cannot replace its content by itself")
)

// ErrStopIteration can be returned by a ForEach callback to stop early without error.
var ErrStopIteration = errors.New("stop iteration")

// File layer errors
var (
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrUnknownFormat  = errors.New("unknown configuration format")
	ErrClosed         = errors.New("file config is closed")
)
