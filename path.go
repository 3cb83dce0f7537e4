// FILE: lixenwraith/conftree/path.go
package conftree

import (
	"fmt"
	"strings"
)

// Path identifies a value or a comment, possibly across several nested nodes.
// A valid path has at least one segment. Paths are never retained by the tree.
type Path []string

// ParsePath splits a dot-separated path ("server.http.port") into its segments.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, ErrEmptyPath
	}
	segments := strings.Split(s, ".")
	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, s)
		}
	}
	return Path(segments), nil
}

// MustPath is like ParsePath but panics on an invalid path.
// Intended for constant paths in code and tests.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(fmt.Sprintf("conftree: %v", err))
	}
	return p
}

// String returns the dot-separated form of the path.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Last returns the final segment, or "" for an empty path.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent returns all segments but the last one.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Append returns a new path with the given segments added.
func (p Path) Append(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}
