// File: lixenwraith/conftree/convenience.go
package conftree

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Quick loads path with defaults in one call.
// A missing file is not fatal; the returned error then wraps ErrConfigNotFound.
func Quick(path string, defaults map[string]any) (*FileConfig, error) {
	return NewBuilder().
		WithFile(path).
		WithDefaults(defaults).
		Build()
}

// MustQuick is like Quick but panics on fatal errors
func MustQuick(path string, defaults map[string]any) *FileConfig {
	fc, err := Quick(path, defaults)
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		panic(fmt.Sprintf("config initialization failed: %v", err))
	}
	return fc
}

// Validate checks that all required paths hold a non-null value.
// All paths are checked within one bulk read.
func (n *Node) Validate(required ...Path) error {
	var missing []string
	err := n.BulkRead(func(v *ReadView) error {
		for _, p := range required {
			val, err := v.Get(p)
			if err != nil {
				if errors.Is(err, ErrNotFound) || errors.Is(err, ErrIncompatibleLevel) {
					missing = append(missing, p.String())
					continue
				}
				return err
			}
			if IsNull(val) {
				missing = append(missing, p.String()+" (null)")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

// Clone creates a deep copy of the tree, comments included.
func (n *Node) Clone() (*Node, error) {
	acc, err := n.AccumulatorCopy()
	if err != nil {
		return nil, err
	}
	return acc.publish()
}

// Dump writes the tree to w in the given format
func (n *Node) Dump(w io.Writer, format Format) error {
	data, err := Encode(format, n)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Debug returns a formatted string showing all leaf values and their comments
func (n *Node) Debug() string {
	acc, err := n.AccumulatorCopy()
	if err != nil {
		return fmt.Sprintf("Configuration Debug Info: %v\n", err)
	}

	var b strings.Builder
	b.WriteString("Configuration Debug Info:\n")
	debugLevel(&b, acc, nil)
	return b.String()
}

func debugLevel(b *strings.Builder, acc *Accumulator, prefix Path) {
	for _, k := range sortedKeys(acc.mirror.values) {
		p := prefix.Append(k)
		if c, ok := acc.mirror.comments[k]; ok {
			fmt.Fprintf(b, "  # %s\n", strings.ReplaceAll(c, "\n", "\n  # "))
		}
		if sub, ok := acc.mirror.values[k].(*Accumulator); ok {
			fmt.Fprintf(b, "  %s:\n", p)
			debugLevel(b, sub, p)
			continue
		}
		fmt.Fprintf(b, "  %s = %v\n", p, acc.mirror.values[k])
	}
}
