package hyperparam

import (
	"fmt"
	"sort"

	"github.com/samber/mo"
)

// Set holds the current values of a fixed list of hyperparameters. Every
// assignment is validated against the matching Spec; a rejected assignment
// leaves the previous value untouched.
//
// A Set is not safe for concurrent mutation.
type Set struct {
	specs  []Spec
	index  map[string]int
	values map[string]interface{}
}

// NewSet panics when two specs share a name since that is a programming error
// in a static algorithm table.
func NewSet(specs ...Spec) *Set {
	s := &Set{
		specs:  make([]Spec, 0, len(specs)),
		index:  make(map[string]int, len(specs)),
		values: make(map[string]interface{}),
	}
	for _, spec := range specs {
		if _, ok := s.index[spec.Name]; ok {
			panic(fmt.Sprintf("hyperparameter %s declared twice", spec.Name))
		}
		s.index[spec.Name] = len(s.specs)
		s.specs = append(s.specs, spec)
	}
	return s
}

func (s *Set) Spec(name string) (Spec, bool) {
	i, ok := s.index[name]
	if !ok {
		return Spec{}, false
	}
	return s.specs[i], true
}

func (s *Set) Specs() []Spec {
	return append([]Spec{}, s.specs...)
}

func (s *Set) Set(name string, v interface{}) error {
	spec, ok := s.Spec(name)
	if !ok {
		return &ValidationError{Field: name, Value: v, Err: ErrUnsupported}
	}
	n, err := spec.Validate(v)
	if err != nil {
		return err
	}
	s.values[name] = n
	return nil
}

// SetString parses raw with the spec's kind before validating it. It is
// used to rebuild a Set from hyperparameters read back from the platform.
func (s *Set) SetString(name, raw string) error {
	spec, ok := s.Spec(name)
	if !ok {
		return &ValidationError{Field: name, Value: raw, Err: ErrUnsupported}
	}
	v, err := Parse(spec.Kind, raw)
	if err != nil {
		return newValidationError(name, raw, err)
	}
	return s.Set(name, v)
}

func (s *Set) Get(name string) mo.Option[interface{}] {
	v, ok := s.values[name]
	if !ok {
		return mo.None[interface{}]()
	}
	return mo.Some(v)
}

func (s *Set) Unset(name string) {
	delete(s.values, name)
}

// Missing returns the names of required hyperparameters that are not set,
// in declaration order.
func (s *Set) Missing() []string {
	var missing []string
	for _, spec := range s.specs {
		if _, ok := s.values[spec.Name]; spec.Required && !ok {
			missing = append(missing, spec.Name)
		}
	}
	return missing
}

// Serialize renders every set hyperparameter with Format.
func (s *Set) Serialize() (map[string]string, error) {
	if missing := s.Missing(); len(missing) > 0 {
		return nil, &MissingFieldError{Fields: missing}
	}
	ret := make(map[string]string, len(s.values))
	for name, v := range s.values {
		ret[name] = Format(v)
	}
	return ret, nil
}

// Names returns the names of the hyperparameters currently set, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Set) Clone() *Set {
	c := NewSet(s.specs...)
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}
