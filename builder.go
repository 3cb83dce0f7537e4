// File: lixenwraith/conftree/builder.go
package conftree

import (
	"errors"
	"fmt"

	"pkt.systems/pslog"
)

// ValidatorFunc defines the signature for a function that can validate a loaded tree.
// It receives the root node after loading and should return an error if validation fails.
type ValidatorFunc func(root *Node) error

// Builder provides a fluent interface for building a FileConfig
type Builder struct {
	file       string
	opts       FileOptions
	defaults   map[string]any
	spec       *ConfigSpec
	logger     pslog.Logger
	watch      bool
	watchOpts  WatchOptions
	err        error
	validators []ValidatorFunc
}

// NewBuilder creates a new configuration builder
func NewBuilder() *Builder {
	return &Builder{
		opts:       DefaultFileOptions(),
		watchOpts:  DefaultWatchOptions(),
		validators: make([]ValidatorFunc, 0),
	}
}

// WithFile sets the configuration file path
func (b *Builder) WithFile(path string) *Builder {
	b.file = path
	return b
}

// WithFormat sets the file format; "auto" detects it
func (b *Builder) WithFormat(format string) *Builder {
	f, err := ParseFormat(format)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.opts.Format = f
	return b
}

// WithParsingMode sets how loaded content is applied to the tree
func (b *Builder) WithParsingMode(mode ParsingMode) *Builder {
	b.opts.Mode = mode
	return b
}

// WithFileOptions replaces all file options at once
func (b *Builder) WithFileOptions(opts FileOptions) *Builder {
	b.opts = opts
	return b
}

// WithLogger sets the logger used by the file layer and the watcher
func (b *Builder) WithLogger(logger pslog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithDefaults sets nested default values, applied wherever the file leaves a key unset
func (b *Builder) WithDefaults(defaults map[string]any) *Builder {
	b.defaults = defaults
	return b
}

// WithSpec corrects the tree against a ConfigSpec on every load, reloads included
func (b *Builder) WithSpec(spec *ConfigSpec) *Builder {
	b.spec = spec
	return b
}

// WithWatch enables file watching with the given options once the file is loaded
func (b *Builder) WithWatch(opts WatchOptions) *Builder {
	b.watch = true
	b.watchOpts = opts
	return b
}

// WithValidator adds a validation function that runs at the end of the build process
// Multiple validators can be added and are executed in the order they are added
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// Build creates the FileConfig with all specified options and loads it.
// A missing file is not fatal: the FileConfig is returned along with an error
// wrapping ErrConfigNotFound, holding the defaults.
func (b *Builder) Build() (*FileConfig, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.file == "" {
		return nil, fmt.Errorf("no configuration file set")
	}

	fc := NewFileConfig(b.file, b.opts)
	fc.defaults = b.defaults
	fc.spec = b.spec
	if b.logger != nil {
		fc.logger = b.logger
	}

	loadErr := fc.Load()
	if loadErr != nil && !errors.Is(loadErr, ErrConfigNotFound) {
		// Return on fatal load errors. ErrConfigNotFound is not fatal.
		return nil, loadErr
	}

	// Run validators
	for _, validator := range b.validators {
		if err := validator(fc.root); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	if b.watch {
		if err := fc.StartWatching(b.watchOpts); err != nil {
			return nil, fmt.Errorf("failed to start watcher: %w", err)
		}
	}

	// ErrConfigNotFound or nil
	return fc, loadErr
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *FileConfig {
	fc, err := b.Build()
	if err != nil {
		// Ignore ErrConfigNotFound as it is not a fatal error for MustBuild.
		// The application can proceed with defaults.
		if !errors.Is(err, ErrConfigNotFound) {
			panic(fmt.Sprintf("config build failed: %v", err))
		}
	}
	return fc
}

// BuildAndScan builds the configuration and decodes the whole tree into target
func (b *Builder) BuildAndScan(target any) (*FileConfig, error) {
	fc, err := b.Build()
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	if scanErr := fc.root.Scan(nil, target); scanErr != nil {
		return nil, fmt.Errorf("failed to scan final config into target: %w", scanErr)
	}

	// ErrConfigNotFound or nil
	return fc, err
}
