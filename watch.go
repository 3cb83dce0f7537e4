// FILE: lixenwraith/conftree/watch.go
package conftree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/pslog"
)

// ChangeKind classifies a watcher notification.
type ChangeKind string

const (
	ChangeUpdated            ChangeKind = "updated"             // value added or modified at Path
	ChangeRemoved            ChangeKind = "removed"             // value removed at Path
	ChangeFileDeleted        ChangeKind = "file_deleted"        // file vanished; tree kept as is
	ChangePermissionsChanged ChangeKind = "permissions_changed" // group/world bits changed; reload skipped
	ChangeReloadError        ChangeKind = "reload_error"        // Err holds the cause
	ChangeReloadTimeout      ChangeKind = "reload_timeout"
)

// Change is one notification sent to watch subscribers.
type Change struct {
	Kind ChangeKind
	Path string // dot-separated leaf path for updated and removed
	Err  error
}

// WatchOptions configures file watching behavior
type WatchOptions struct {
	// Debounce duration to avoid rapid reloads
	Debounce time.Duration

	// MaxWatchers limits concurrent watch channels
	MaxWatchers int

	// ReloadTimeout for file reload operations
	ReloadTimeout time.Duration

	// BufferSize of each subscriber channel
	BufferSize int

	// VerifyPermissions checks file hasn't been replaced with different permissions
	VerifyPermissions bool
}

// DefaultWatchOptions returns sensible defaults for file watching
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Debounce:          DefaultDebounce,
		MaxWatchers:       DefaultMaxWatchers,
		ReloadTimeout:     DefaultReloadTimeout,
		BufferSize:        DefaultChangeBuffer,
		VerifyPermissions: true,
	}
}

func (o WatchOptions) normalized() WatchOptions {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.MaxWatchers <= 0 {
		o.MaxWatchers = DefaultMaxWatchers
	}
	if o.ReloadTimeout <= 0 {
		o.ReloadTimeout = DefaultReloadTimeout
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultChangeBuffer
	}
	return o
}

// watcher manages file watching state
type watcher struct {
	mu               sync.RWMutex
	ctx              context.Context
	cancel           context.CancelFunc
	opts             WatchOptions
	fc               *FileConfig
	fsw              *fsnotify.Watcher
	target           string
	lastMode         os.FileMode
	logger           pslog.Logger
	done             chan struct{}
	reloadInProgress atomic.Bool
	subscribers      map[int64]chan Change
	subscriberID     atomic.Int64
	debounceTimer    *time.Timer
}

// Watch subscribes to changes of the configuration file, starting the watcher
// with opts if it is not running yet. The tree is reloaded through Load after
// each debounced file change, and the paths whose values differ are sent on the
// returned channel. The channel is closed when ctx is done or the watcher stops.
// Slow subscribers miss notifications rather than stall the watcher.
func (f *FileConfig) Watch(ctx context.Context, opts WatchOptions) (<-chan Change, error) {
	w, err := f.ensureWatcher(opts)
	if err != nil {
		return nil, err
	}
	return w.subscribe(ctx)
}

// StartWatching starts reloading the tree on file changes without subscribing.
// It is a no-op if the watcher is already running.
func (f *FileConfig) StartWatching(opts WatchOptions) error {
	_, err := f.ensureWatcher(opts)
	return err
}

func (f *FileConfig) ensureWatcher(opts WatchOptions) (*watcher, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watcher != nil && f.watcher.ctx.Err() == nil {
		return f.watcher, nil
	}
	w, err := startWatcher(f, opts.normalized())
	if err != nil {
		return nil, err
	}
	f.watcher = w
	return w, nil
}

// StopWatching stops the watcher, closing every subscriber channel.
func (f *FileConfig) StopWatching() {
	f.mu.Lock()
	w := f.watcher
	f.watcher = nil
	f.mu.Unlock()

	if w != nil {
		w.stop()
	}
}

// IsWatching reports whether the watcher is running.
func (f *FileConfig) IsWatching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watcher != nil && f.watcher.ctx.Err() == nil
}

// WatcherCount returns the number of active watch channels
func (f *FileConfig) WatcherCount() int {
	f.mu.Lock()
	w := f.watcher
	f.mu.Unlock()

	if w == nil {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.subscribers)
}

// startWatcher watches the file's directory so that atomic saves, which replace
// the file by a rename, are seen.
func startWatcher(f *FileConfig, opts WatchOptions) (*watcher, error) {
	target, err := filepath.Abs(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path '%s': %w", f.path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(target)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch directory '%s': %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		ctx:         ctx,
		cancel:      cancel,
		opts:        opts,
		fc:          f,
		fsw:         fsw,
		target:      target,
		logger:      f.logger.With("path", f.path),
		done:        make(chan struct{}),
		subscribers: make(map[int64]chan Change),
	}
	if info, err := os.Stat(target); err == nil {
		w.lastMode = info.Mode()
	}

	go w.watchLoop()
	w.logger.Info("conftree.watch.started", "debounce", opts.Debounce.String())
	return w, nil
}

// watchLoop is the main file watching loop
func (w *watcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.target {
				continue
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("conftree.watch.error", "error", err)
		}
	}
}

func (w *watcher) handleEvent(ev fsnotify.Event) {
	info, err := os.Stat(w.target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Removed, or renamed away; an atomic save shows up as a later Create
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				w.notify(Change{Kind: ChangeFileDeleted})
			}
		}
		return
	}

	// SECURITY: Verify permissions haven't changed suspiciously
	if w.opts.VerifyPermissions && w.lastMode != 0 && info.Mode() != w.lastMode {
		if (info.Mode() & 0077) != (w.lastMode & 0077) {
			w.logger.Warn("conftree.watch.permissions_changed",
				"old_mode", w.lastMode.String(), "new_mode", info.Mode().String())
			w.notify(Change{Kind: ChangePermissionsChanged})
			return
		}
	}
	w.lastMode = info.Mode()

	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}

	// Debounce rapid changes
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.opts.Debounce, w.performReload)
	w.mu.Unlock()
}

// performReload reloads the configuration file
func (w *watcher) performReload() {
	if w.ctx.Err() != nil {
		return
	}
	// Prevent concurrent reloads
	if !w.reloadInProgress.CompareAndSwap(false, true) {
		return
	}
	defer w.reloadInProgress.Store(false)

	ctx, cancel := context.WithTimeout(w.ctx, w.opts.ReloadTimeout)
	defer cancel()

	oldValues, err := w.fc.root.Flatten()
	if err != nil {
		w.logger.Error("conftree.reload.snapshot_failed", "error", err)
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- w.fc.Load()
	}()

	select {
	case err := <-done:
		if err != nil {
			reloads.WithLabelValues("error").Inc()
			w.logger.Warn("conftree.reload.failed", "error", err)
			w.notify(Change{Kind: ChangeReloadError, Err: err})
			return
		}
		newValues, err := w.fc.root.Flatten()
		if err != nil {
			w.logger.Error("conftree.reload.snapshot_failed", "error", err)
			return
		}
		changes := diffSnapshots(oldValues, newValues)
		reloads.WithLabelValues("success").Inc()
		w.logger.Info("conftree.reload.applied", "changes", len(changes))
		for _, c := range changes {
			w.notify(c)
		}

	case <-ctx.Done():
		reloads.WithLabelValues("timeout").Inc()
		w.logger.Warn("conftree.reload.timeout", "timeout", w.opts.ReloadTimeout.String())
		w.notify(Change{Kind: ChangeReloadTimeout})
	}
}

// diffSnapshots lists changed paths in sorted order.
func diffSnapshots(oldValues, newValues map[string]any) []Change {
	var changes []Change
	for path, newVal := range newValues {
		if oldVal, existed := oldValues[path]; !existed || !reflect.DeepEqual(oldVal, newVal) {
			changes = append(changes, Change{Kind: ChangeUpdated, Path: path})
		}
	}
	for path := range oldValues {
		if _, exists := newValues[path]; !exists {
			changes = append(changes, Change{Kind: ChangeRemoved, Path: path})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

// subscribe creates a new subscriber channel
func (w *watcher) subscribe(ctx context.Context) (<-chan Change, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.subscribers) >= w.opts.MaxWatchers {
		return nil, fmt.Errorf("watcher limit of %d subscribers reached", w.opts.MaxWatchers)
	}

	// Buffered to keep notify non-blocking
	ch := make(chan Change, w.opts.BufferSize)
	id := w.subscriberID.Add(1)
	w.subscribers[id] = ch

	go func() {
		select {
		case <-ctx.Done():
		case <-w.ctx.Done():
		}
		w.mu.Lock()
		delete(w.subscribers, id)
		close(ch)
		w.mu.Unlock()
	}()

	return ch, nil
}

// notify sends a change to all subscribers
func (w *watcher) notify(c Change) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, ch := range w.subscribers {
		select {
		case ch <- c:
		default:
			// Channel full, skip
		}
	}
}

// stop terminates the watcher
func (w *watcher) stop() {
	w.cancel()
	w.fsw.Close()

	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.mu.Unlock()

	select {
	case <-w.done:
	case <-time.After(ShutdownTimeout):
	}
	w.logger.Info("conftree.watch.stopped")
}
