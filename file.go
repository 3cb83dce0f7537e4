// FILE: lixenwraith/conftree/file.go
package conftree

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"pkt.systems/pslog"
)

// ParsingMode selects how loaded content is applied to the existing tree.
type ParsingMode int

const (
	// ParseReplace swaps the whole content atomically: readers see the old tree
	// or the new one, never a mix.
	ParseReplace ParsingMode = iota
	// ParseMerge overwrites top-level entries present in the file and keeps the others.
	ParseMerge
	// ParseAdd only inserts top-level entries that do not exist yet.
	ParseAdd
)

func (m ParsingMode) String() string {
	switch m {
	case ParseReplace:
		return "replace"
	case ParseMerge:
		return "merge"
	case ParseAdd:
		return "add"
	default:
		return fmt.Sprintf("ParsingMode(%d)", int(m))
	}
}

// ParseParsingMode converts a mode name to a ParsingMode.
func ParseParsingMode(s string) (ParsingMode, error) {
	switch s {
	case "", "replace":
		return ParseReplace, nil
	case "merge":
		return ParseMerge, nil
	case "add":
		return ParseAdd, nil
	default:
		return 0, fmt.Errorf("unknown parsing mode %q", s)
	}
}

// FileOptions configures how a FileConfig reads and writes its file.
type FileOptions struct {
	// Format of the file; FormatAuto detects it from the extension, then the content
	Format Format

	// Mode used by Load to apply parsed content
	Mode ParsingMode

	// MaxFileSize is the largest file Load accepts (0 disables the limit)
	MaxFileSize int64

	// FileMode of files written by Save
	FileMode os.FileMode
}

// DefaultFileOptions returns the options used by NewFileConfig.
func DefaultFileOptions() FileOptions {
	return FileOptions{
		Format:      FormatAuto,
		Mode:        ParseReplace,
		MaxFileSize: DefaultMaxFileSize,
		FileMode:    0644,
	}
}

// FileConfig binds a tree to a configuration file.
// Load and Save are serialized; the tree itself stays usable by any goroutine
// while they run.
type FileConfig struct {
	root     *Node
	path     string
	opts     FileOptions
	defaults map[string]any
	spec     *ConfigSpec
	logger   pslog.Logger

	mu      sync.Mutex
	format  Format // resolved on first load or save
	watcher *watcher
	closed  atomic.Bool
}

// NewFileConfig creates a FileConfig for path with an empty tree.
func NewFileConfig(path string, opts FileOptions) *FileConfig {
	return &FileConfig{
		root:   NewNode(),
		path:   path,
		opts:   opts,
		logger: pslog.NoopLogger(),
	}
}

// Root returns the live tree.
func (f *FileConfig) Root() *Node { return f.root }

// Path returns the configuration file path.
func (f *FileConfig) Path() string { return f.path }

// Format returns the format in use, FormatAuto until it has been resolved.
func (f *FileConfig) Format() Format {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.format == "" {
		return f.opts.Format
	}
	return f.format
}

// Load reads the file and applies its content according to the parsing mode.
// Defaults fill whatever the file leaves unset. A missing file is not fatal:
// defaults are applied and an error wrapping ErrConfigNotFound is returned.
func (f *FileConfig) Load() error {
	if f.closed.Load() {
		return ErrClosed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *FileConfig) load() error {
	var acc *Accumulator
	data, readErr := readConfigFile(f.path, f.opts.MaxFileSize)
	switch {
	case errors.Is(readErr, ErrConfigNotFound):
		acc = NewAccumulator()
	case readErr != nil:
		return readErr
	default:
		format, err := resolveFormat(f.opts.Format, f.path, data)
		if err != nil {
			return err
		}
		acc, err = Parse(format, data)
		if err != nil {
			return fmt.Errorf("config file '%s': %w", f.path, err)
		}
		f.format = format
	}

	if err := applyDefaults(acc, f.defaults); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}
	keys := len(acc.mirror.values)
	if err := f.applyCorrected(acc); err != nil {
		return fmt.Errorf("failed to apply config file '%s': %w", f.path, err)
	}

	f.logger.Debug("conftree.load.applied",
		"path", f.path,
		"format", string(f.format),
		"mode", f.opts.Mode.String(),
		"keys", keys,
		"file_found", readErr == nil,
	)
	return readErr
}

// applyCorrected applies acc and corrects the result with the ConfigSpec, if any.
// In replace mode the content is corrected before it is published.
func (f *FileConfig) applyCorrected(acc *Accumulator) error {
	if f.spec == nil {
		return f.apply(acc)
	}
	if f.opts.Mode == ParseReplace {
		staged := NewNode()
		if err := staged.ReplaceContentBy(acc); err != nil {
			return err
		}
		if err := f.correct(staged); err != nil {
			return err
		}
		return f.root.ReplaceContentBy(staged)
	}
	if err := f.apply(acc); err != nil {
		return err
	}
	return f.correct(f.root)
}

func (f *FileConfig) correct(n *Node) error {
	corrections, err := f.spec.Correct(n)
	if err != nil {
		return fmt.Errorf("spec correction: %w", err)
	}
	for _, c := range corrections {
		f.logger.Info("conftree.spec.corrected", "path", c.Path.String(), "action", c.Action.String())
	}
	return nil
}

// apply publishes acc into the live tree. acc is consumed.
func (f *FileConfig) apply(acc *Accumulator) error {
	switch f.opts.Mode {
	case ParseReplace:
		return f.root.ReplaceContentBy(acc)
	case ParseMerge, ParseAdd:
		return f.root.BulkUpdate(func(v *View) error {
			for _, k := range sortedKeys(acc.mirror.values) {
				p := Path{k}
				value := acc.mirror.values[k]
				// Handed over to the tree level by level
				detachAccumulated(value)
				if f.opts.Mode == ParseMerge {
					if _, err := v.Set(p, value); err != nil {
						return err
					}
				} else {
					added, err := v.Add(p, value)
					if err != nil {
						return err
					}
					if !added {
						continue
					}
				}
				if c, ok := acc.mirror.comments[k]; ok {
					if _, err := v.SetComment(p, c); err != nil {
						return err
					}
				}
			}
			acc.consumed.Store(true)
			return nil
		})
	default:
		return fmt.Errorf("unknown parsing mode %d", int(f.opts.Mode))
	}
}

// applyDefaults adds every default value missing from acc, descending into
// nested levels present on both sides.
func applyDefaults(acc *Accumulator, defaults map[string]any) error {
	for k, dv := range defaults {
		existing, ok := acc.mirror.values[k]
		if !ok {
			v, err := accumulate(dv, acc)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			acc.mirror.values[k] = v
			continue
		}
		sub, isAcc := existing.(*Accumulator)
		dm, isMap := dv.(map[string]any)
		if isAcc && isMap {
			if err := applyDefaults(sub, dm); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
	}
	return nil
}

// Save writes the current tree to the file atomically.
func (f *FileConfig) Save() error {
	if f.closed.Load() {
		return ErrClosed
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.format == "" || f.format == FormatAuto {
		format, err := resolveFormat(f.opts.Format, f.path, nil)
		if err != nil {
			return err
		}
		f.format = format
	}
	return f.saveTo(f.path, f.format)
}

// SaveAs writes the current tree to path in the given format. The bound file
// is left untouched.
func (f *FileConfig) SaveAs(path string, format Format) error {
	format, err := resolveFormat(format, path, nil)
	if err != nil {
		return err
	}
	return f.saveTo(path, format)
}

func (f *FileConfig) saveTo(path string, format Format) error {
	data, err := Encode(format, f.root)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	perm := f.opts.FileMode
	if perm == 0 {
		perm = 0644
	}
	if err := atomicWriteFile(path, data, perm); err != nil {
		return err
	}
	f.logger.Debug("conftree.save.completed", "path", path, "format", string(format), "bytes", len(data))
	return nil
}

// Close stops the watcher. Further Load, Save and Watch calls return ErrClosed;
// the tree stays usable.
func (f *FileConfig) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	f.StopWatching()
	return nil
}
