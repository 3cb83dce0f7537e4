// FILE: lixenwraith/conftree/configspec.go
package conftree

import (
	"fmt"
	"reflect"
	"sync"
)

// ValueValidator reports whether a value is acceptable for a defined entry.
type ValueValidator func(value any) bool

// CorrectionAction tells what ConfigSpec.Correct did to an entry.
type CorrectionAction uint8

const (
	// CorrectionAdded means a missing entry was set to its default.
	CorrectionAdded CorrectionAction = iota
	// CorrectionReplaced means an invalid entry was reset to its default.
	CorrectionReplaced
	// CorrectionRemoved means an entry with no definition was deleted.
	CorrectionRemoved
)

func (a CorrectionAction) String() string {
	switch a {
	case CorrectionAdded:
		return "added"
	case CorrectionReplaced:
		return "replaced"
	case CorrectionRemoved:
		return "removed"
	default:
		return fmt.Sprintf("CorrectionAction(%d)", int(a))
	}
}

// Correction records one change made by ConfigSpec.Correct.
type Correction struct {
	Action CorrectionAction
	Path   Path
	Old    any // nil when added
	New    any // nil when removed
}

type valueSpec struct {
	def   any
	valid ValueValidator
}

// specLevel holds *valueSpec leaves and nested specLevel values.
type specLevel map[string]any

// ConfigSpec describes the entries a tree must hold: a default value and a
// validator per path. IsCorrect checks a tree against it and Correct repairs
// one in a single bulk update. A ConfigSpec is safe for concurrent use.
type ConfigSpec struct {
	mu              sync.RWMutex
	root            specLevel
	keepUnspecified bool
}

// NewConfigSpec creates an empty ConfigSpec. Entries it does not define are removed
// by Correct until SetKeepUnspecified(true) is called.
func NewConfigSpec() *ConfigSpec {
	return &ConfigSpec{root: make(specLevel)}
}

// SetKeepUnspecified sets whether entries with no definition are left alone
// instead of being removed or reported as incorrect.
func (s *ConfigSpec) SetKeepUnspecified(keep bool) {
	s.mu.Lock()
	s.keepUnspecified = keep
	s.mu.Unlock()
}

// Define adds or replaces the definition at p. A nil validator accepts values
// of the same kind as def: any integer for an integer default, any number for a
// floating-point default, a nested node for a map default. Nested levels given
// as *Node or *Accumulator are copied when defined.
func (s *ConfigSpec) Define(p Path, def any, valid ValueValidator) error {
	if len(p) == 0 {
		return ErrEmptyPath
	}
	if def == nil {
		return fmt.Errorf("%w: %s: default value must not be nil, use Null", ErrInvalidPath, p)
	}
	d, err := plainDefault(def)
	if err != nil {
		return fmt.Errorf("default for %s: %w", p, err)
	}
	if valid == nil {
		valid = sameKind(d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	level := s.root
	for i, key := range p[:len(p)-1] {
		switch x := level[key].(type) {
		case nil:
			next := make(specLevel)
			level[key] = next
			level = next
		case specLevel:
			level = x
		default:
			return fmt.Errorf("%w: %q is a defined value", ErrIncompatibleLevel, p[:i+1].String())
		}
	}
	level[p.Last()] = &valueSpec{def: d, valid: valid}
	return nil
}

// DefineInRange defines p with a validator accepting values between min and max
// inclusive. The bounds must both be numbers or both be strings.
func (s *ConfigSpec) DefineInRange(p Path, def, min, max any) error {
	if lo, ok := toNumber(min); ok {
		hi, ok := toNumber(max)
		if !ok {
			return fmt.Errorf("range for %s: bounds %T and %T differ in kind", p, min, max)
		}
		if lo > hi {
			return fmt.Errorf("range for %s: minimum %v is above maximum %v", p, min, max)
		}
		return s.Define(p, def, func(v any) bool {
			f, ok := toNumber(v)
			return ok && f >= lo && f <= hi
		})
	}
	lo, ok1 := min.(string)
	hi, ok2 := max.(string)
	if !ok1 || !ok2 {
		return fmt.Errorf("range for %s: bounds must both be numbers or both be strings, got %T and %T", p, min, max)
	}
	if lo > hi {
		return fmt.Errorf("range for %s: minimum %q is above maximum %q", p, lo, hi)
	}
	return s.Define(p, def, func(v any) bool {
		str, ok := v.(string)
		return ok && str >= lo && str <= hi
	})
}

// DefineInList defines p with a validator accepting only the listed values.
// Numbers compare by value whatever their Go type.
func (s *ConfigSpec) DefineInList(p Path, def any, acceptable ...any) error {
	allowed := append([]any(nil), acceptable...)
	return s.Define(p, def, func(v any) bool {
		for _, a := range allowed {
			if sameValue(a, v) {
				return true
			}
		}
		return false
	})
}

// DefineList defines p as a list whose every element passes elem.
func (s *ConfigSpec) DefineList(p Path, def []any, elem ValueValidator) error {
	if elem == nil {
		return fmt.Errorf("list definition for %s: nil element validator", p)
	}
	return s.Define(p, def, func(v any) bool {
		list, ok := v.([]any)
		if !ok {
			return false
		}
		for _, e := range list {
			if !elem(e) {
				return false
			}
		}
		return true
	})
}

// Undefine removes the definition or level of definitions at p and reports
// whether there was one.
func (s *ConfigSpec) Undefine(p Path) bool {
	if len(p) == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	level := s.levelOf(p)
	if level == nil {
		return false
	}
	if _, ok := level[p.Last()]; !ok {
		return false
	}
	delete(level, p.Last())
	return true
}

// IsDefined reports whether p holds a definition or a level of definitions.
func (s *ConfigSpec) IsDefined(p Path) bool {
	if len(p) == 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	level := s.levelOf(p)
	if level == nil {
		return false
	}
	_, ok := level[p.Last()]
	return ok
}

// levelOf returns the definition level holding p's last segment, or nil.
func (s *ConfigSpec) levelOf(p Path) specLevel {
	level := s.root
	for _, key := range p[:len(p)-1] {
		next, ok := level[key].(specLevel)
		if !ok {
			return nil
		}
		level = next
	}
	return level
}

// IsValueCorrect reports whether value is acceptable at p. It returns false
// when p holds no value definition.
func (s *ConfigSpec) IsValueCorrect(p Path, value any) bool {
	if len(p) == 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	level := s.levelOf(p)
	if level == nil {
		return false
	}
	vs, ok := level[p.Last()].(*valueSpec)
	return ok && vs.valid(value)
}

// IsCorrect reports whether n holds every defined entry with an acceptable
// value and, unless unspecified entries are kept, nothing else. The check runs
// under one bulk read of n.
func (s *ConfigSpec) IsCorrect(n *Node) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BulkReadValue(n, func(v *ReadView) (bool, error) {
		return s.checkLevel(v.node, accessHeld, s.root)
	})
}

func (s *ConfigSpec) checkLevel(n *Node, a access, level specLevel) (bool, error) {
	correct := true
	err := n.read(a, func() error {
		for k, sv := range level {
			v, exists := n.values[k]
			if !exists {
				correct = false
				return nil
			}
			switch x := sv.(type) {
			case specLevel:
				child, isNode := v.(*Node)
				if !isNode {
					correct = false
					return nil
				}
				ok, err := s.checkLevel(child, a.child(), x)
				if err != nil || !ok {
					correct = false
					return err
				}
			case *valueSpec:
				if !x.valid(v) {
					correct = false
					return nil
				}
			}
		}
		if !s.keepUnspecified {
			for k := range n.values {
				if _, ok := level[k]; !ok {
					correct = false
					return nil
				}
			}
		}
		return nil
	})
	return correct && err == nil, err
}

// Correct repairs n under one bulk update: missing and invalid entries are set
// to their defaults, values in the way of a level of definitions are replaced
// by a node, and unspecified entries are removed unless they are kept. It
// returns the corrections made, ordered by path within each level.
func (s *ConfigSpec) Correct(n *Node) ([]Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Correction
	err := n.BulkUpdate(func(v *View) error {
		return s.correctLevel(v.node, accessHeld, s.root, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ConfigSpec) correctLevel(n *Node, a access, level specLevel, prefix Path, out *[]Correction) error {
	return n.write(a, func() error {
		for _, k := range sortedKeys(level) {
			p := prefix.Append(k)
			old, exists := n.values[k]
			action := CorrectionReplaced
			if !exists {
				action, old = CorrectionAdded, nil
			}
			switch x := level[k].(type) {
			case specLevel:
				child, isNode := old.(*Node)
				if !isNode {
					child = NewNode()
					n.values[k] = child
					*out = append(*out, Correction{Action: action, Path: p, Old: old, New: child})
				}
				if err := s.correctLevel(child, a.child(), x, p, out); err != nil {
					return err
				}
			case *valueSpec:
				if exists && x.valid(old) {
					continue
				}
				nv, err := adopt(x.def)
				if err != nil {
					return fmt.Errorf("default for %s: %w", p, err)
				}
				n.values[k] = nv
				*out = append(*out, Correction{Action: action, Path: p, Old: old, New: nv})
			}
		}
		if s.keepUnspecified {
			return nil
		}
		for _, k := range sortedKeys(n.values) {
			if _, ok := level[k]; ok {
				continue
			}
			old := n.values[k]
			delete(n.values, k)
			delete(n.comments, k)
			*out = append(*out, Correction{Action: CorrectionRemoved, Path: prefix.Append(k), Old: old})
		}
		return nil
	})
}

// plainDefault turns nested levels of def into maps, so that every correction
// builds fresh nodes without reading another tree.
func plainDefault(def any) (any, error) {
	switch x := def.(type) {
	case *Node:
		return x.ToMap()
	case *Accumulator:
		if err := x.check(); err != nil {
			return nil, err
		}
		return x.toMap(), nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, v := range x {
			c, err := plainDefault(v)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, v := range x {
			c, err := plainDefault(v)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		return def, nil
	}
}

// sameKind is the validator used when Define is given none.
func sameKind(def any) ValueValidator {
	switch def.(type) {
	case map[string]any:
		return func(v any) bool {
			_, ok := v.(*Node)
			return ok
		}
	case []any:
		return func(v any) bool {
			_, ok := v.([]any)
			return ok
		}
	case NullValue:
		return IsNull
	}
	if isInteger(def) {
		return isInteger
	}
	if _, ok := toNumber(def); ok {
		return func(v any) bool {
			_, ok := toNumber(v)
			return ok
		}
	}
	kind := reflect.TypeOf(def).Kind()
	return func(v any) bool {
		return v != nil && !IsNull(v) && reflect.TypeOf(v).Kind() == kind
	}
}

func isInteger(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// toNumber converts any Go integer or float to float64. Booleans and strings
// are not numbers here.
func toNumber(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func sameValue(a, b any) bool {
	fa, okA := toNumber(a)
	fb, okB := toNumber(b)
	if okA || okB {
		return okA && okB && fa == fb
	}
	return reflect.DeepEqual(a, b)
}
