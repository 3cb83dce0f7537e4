// FILE: lixenwraith/conftree/discovery.go
package conftree

import (
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// DiscoverySource tells which rule located a configuration file.
type DiscoverySource string

const (
	DiscoveredByFlag   DiscoverySource = "flag"
	DiscoveredByEnv    DiscoverySource = "env"
	DiscoveredBySearch DiscoverySource = "search"
)

// FileDiscoveryOptions configures where a configuration file is looked for.
// Rules apply in order: the command-line flag, the environment variable, then
// Name plus each extension in every search directory.
type FileDiscoveryOptions struct {
	Name       string
	Extensions []string // tried in order within each directory

	// Paths are searched before the current and XDG directories
	Paths []string

	EnvVar string

	// Args are scanned for CLIFlag, as "--config path" or "--config=path".
	// Scanning stops at "--".
	Args    []string
	CLIFlag string

	UseXDG        bool
	UseCurrentDir bool
}

// DefaultDiscoveryOptions looks for appName with every supported extension,
// honors --config and APPNAME_CONFIG, and searches the current and XDG
// directories.
func DefaultDiscoveryOptions(appName string) FileDiscoveryOptions {
	return FileDiscoveryOptions{
		Name:          appName,
		Extensions:    []string{".yaml", ".yml", ".toml", ".json", ".conf"},
		EnvVar:        strings.ToUpper(strings.ReplaceAll(appName, "-", "_")) + "_CONFIG",
		Args:          os.Args[1:],
		CLIFlag:       "--config",
		UseXDG:        true,
		UseCurrentDir: true,
	}
}

// DiscoverFile applies the discovery rules and returns the selected path and
// the rule that selected it. Paths given by flag or environment are returned
// as is, without checking that they exist; searched paths must be regular
// files. ok is false when no rule matched.
func DiscoverFile(opts FileDiscoveryOptions) (path string, source DiscoverySource, ok bool) {
	if v, found := flagValue(opts.Args, opts.CLIFlag); found {
		return v, DiscoveredByFlag, true
	}
	if opts.EnvVar != "" {
		if v := os.Getenv(opts.EnvVar); v != "" {
			return v, DiscoveredByEnv, true
		}
	}
	for candidate := range opts.candidates() {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, DiscoveredBySearch, true
		}
	}
	return "", "", false
}

// WithFileDiscovery sets the file to the one found by DiscoverFile. When
// nothing is found, the previously set file, if any, is kept.
func (b *Builder) WithFileDiscovery(opts FileDiscoveryOptions) *Builder {
	path, source, ok := DiscoverFile(opts)
	if !ok {
		return b
	}
	b.file = path
	if b.logger != nil {
		b.logger.Debug("conftree.discovery.selected", "path", path, "source", string(source))
	}
	return b
}

// flagValue returns the value given to flag in args. The last occurrence wins,
// as with the standard flag packages.
func flagValue(args []string, flag string) (string, bool) {
	if flag == "" {
		return "", false
	}
	var value string
	var found bool
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return value, found
		case arg == flag:
			if i+1 < len(args) {
				i++
				value, found = args[i], true
			}
		case strings.HasPrefix(arg, flag+"="):
			value, found = arg[len(flag)+1:], true
		}
	}
	return value, found
}

// candidates yields every file path the search rule tries, in order.
func (o FileDiscoveryOptions) candidates() iter.Seq[string] {
	return func(yield func(string) bool) {
		if o.Name == "" {
			return
		}
		for _, dir := range o.searchDirs() {
			for _, ext := range o.Extensions {
				if !yield(filepath.Join(dir, o.Name+ext)) {
					return
				}
			}
		}
	}
}

func (o FileDiscoveryOptions) searchDirs() []string {
	dirs := append([]string(nil), o.Paths...)
	if o.UseCurrentDir {
		if cwd, err := os.Getwd(); err == nil {
			dirs = append(dirs, cwd)
		}
	}
	if o.UseXDG {
		dirs = append(dirs, xdgConfigDirs(o.Name)...)
	}
	return dirs
}

// xdgConfigDirs returns the user directory first, then the system ones.
func xdgConfigDirs(appName string) []string {
	var dirs []string
	if home, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, appName))
	}
	system := filepath.SplitList(os.Getenv("XDG_CONFIG_DIRS"))
	if len(system) == 0 {
		system = []string{"/etc/xdg", "/etc"}
	}
	for _, dir := range system {
		if dir != "" {
			dirs = append(dirs, filepath.Join(dir, appName))
		}
	}
	return dirs
}
