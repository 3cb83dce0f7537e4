// FILE: lixenwraith/conftree/timing.go
package conftree

import "time"

// Core timing constants for production use.
// These define the fundamental timing behavior of the file layer.
const (
	SpinWaitInterval     = 5 * time.Millisecond   // CPU-friendly busy-wait quantum
	ShutdownTimeout      = 100 * time.Millisecond // Graceful watcher termination window
	DefaultDebounce      = 500 * time.Millisecond // File change coalescence period
	DefaultReloadTimeout = 5 * time.Second        // Maximum duration for reload operations
)

// Watcher and file limits
const (
	DefaultMaxWatchers  = 100              // Prevent resource exhaustion
	DefaultChangeBuffer = 10               // Per-subscriber channel capacity
	DefaultMaxFileSize  = 10 * 1024 * 1024 // Largest configuration file Load accepts
)
