package hyperparam

import (
	"errors"
	"fmt"
	"math"
)

type Kind uint8

const (
	KindInteger Kind = iota + 1
	KindFloat
	KindString
	KindIntList
	KindStringList
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindIntList:
		return "list of int"
	case KindStringList:
		return "list of string"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Spec describes one hyperparameter of an algorithm: its name, the kind of
// value it holds and the constraint the value must satisfy. Specs are
// declared once per algorithm and never mutated afterwards.
type Spec struct {
	Name     string
	Kind     Kind
	Doc      string
	Required bool
	check    func(interface{}) error
}

// Require returns a copy of s that must be set before serialization.
func (s Spec) Require() Spec {
	s.Required = true
	return s
}

// Validate normalizes v to the Go type backing the spec's kind (int, float64,
// string, []int, []string or bool) and runs the constraint on it.
func (s Spec) Validate(v interface{}) (interface{}, error) {
	n, err := normalize(s.Kind, v)
	if err != nil {
		return nil, newValidationError(s.Name, v, err)
	}
	if s.check != nil {
		if err := s.check(n); err != nil {
			return nil, newValidationError(s.Name, v, err)
		}
	}
	return n, nil
}

func Int(name, doc string, checkers ...func(int) error) Spec {
	return Spec{Name: name, Kind: KindInteger, Doc: doc, check: func(v interface{}) error {
		for _, c := range checkers {
			if err := c(v.(int)); err != nil {
				return err
			}
		}
		return nil
	}}
}

func Float(name, doc string, checkers ...func(float64) error) Spec {
	return Spec{Name: name, Kind: KindFloat, Doc: doc, check: func(v interface{}) error {
		for _, c := range checkers {
			if err := c(v.(float64)); err != nil {
				return err
			}
		}
		return nil
	}}
}

// Enum declares a string hyperparameter restricted to choices.
func Enum(name, doc string, choices ...string) Spec {
	return Text(name, doc, StringChoices(choices...))
}

func Text(name, doc string, checkers ...func(string) error) Spec {
	return Spec{Name: name, Kind: KindString, Doc: doc, check: func(v interface{}) error {
		for _, c := range checkers {
			if err := c(v.(string)); err != nil {
				return err
			}
		}
		return nil
	}}
}

func IntList(name, doc string, checkers ...func([]int) error) Spec {
	return Spec{Name: name, Kind: KindIntList, Doc: doc, check: func(v interface{}) error {
		for _, c := range checkers {
			if err := c(v.([]int)); err != nil {
				return err
			}
		}
		return nil
	}}
}

func StringList(name, doc string, checkers ...func([]string) error) Spec {
	return Spec{Name: name, Kind: KindStringList, Doc: doc, check: func(v interface{}) error {
		for _, c := range checkers {
			if err := c(v.([]string)); err != nil {
				return err
			}
		}
		return nil
	}}
}

func Boolean(name, doc string) Spec {
	return Spec{Name: name, Kind: KindBool, Doc: doc}
}

func wrongType(k Kind) error {
	switch k {
	case KindInteger:
		return constraintError{kind: ErrWrongType, constraint: "an integer"}
	case KindFloat:
		return constraintError{kind: ErrWrongType, constraint: "a number"}
	case KindIntList:
		return constraintError{kind: ErrWrongType, constraint: "a list of integers"}
	case KindStringList:
		return constraintError{kind: ErrWrongType, constraint: "a list of strings"}
	default:
		return constraintError{kind: ErrWrongType, constraint: "a " + k.String()}
	}
}

func normalize(k Kind, v interface{}) (interface{}, error) {
	switch k {
	case KindInteger:
		i, err := toInt(v)
		if err == nil {
			return i, nil
		}
		if err != errNotInteger {
			return nil, err
		}
	case KindFloat:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindIntList:
		l, err := toIntList(v)
		if err == nil {
			return l, nil
		}
		if err != errNotInteger {
			return nil, err
		}
	case KindStringList:
		if l, ok := toStringList(v); ok {
			return l, nil
		}
	}
	return nil, wrongType(k)
}

// errNotInteger marks a value toInt cannot read as an integer at all; it is
// reported as a wrong type by normalize.
var errNotInteger = errors.New("not an integer")

func intOutOfRange() error {
	return constraintError{kind: ErrOutOfRange, constraint: fmt.Sprintf("in [%d, %d]", math.MinInt, math.MaxInt)}
}

// toInt converts any Go integer, or an integral float, to int. Values that do
// not fit in an int are out of range rather than wrapped.
func toInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int8:
		return int(t), nil
	case int16:
		return int(t), nil
	case int32:
		return int(t), nil
	case int64:
		if t < math.MinInt || t > math.MaxInt {
			return 0, intOutOfRange()
		}
		return int(t), nil
	case uint:
		return fromUnsigned(uint64(t))
	case uint8:
		return int(t), nil
	case uint16:
		return int(t), nil
	case uint32:
		return fromUnsigned(uint64(t))
	case uint64:
		return fromUnsigned(t)
	case float32:
		return integral(float64(t))
	case float64:
		// numbers decoded from JSON arrive as float64
		return integral(t)
	}
	return 0, errNotInteger
}

func fromUnsigned(u uint64) (int, error) {
	if u > math.MaxInt {
		return 0, intOutOfRange()
	}
	return int(u), nil
}

func integral(f float64) (int, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, errNotInteger
	}
	// float64(math.MaxInt) rounds up to 2^63 on 64-bit platforms
	if f < math.MinInt || f >= math.MaxInt {
		return 0, intOutOfRange()
	}
	return int(f), nil
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case uint:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	if i, err := toInt(v); err == nil {
		return float64(i), true
	}
	return 0, false
}

func toIntList(v interface{}) ([]int, error) {
	switch t := v.(type) {
	case []int:
		return append([]int{}, t...), nil
	case []int64:
		return convertInts(len(t), func(i int) interface{} { return t[i] })
	case []uint64:
		return convertInts(len(t), func(i int) interface{} { return t[i] })
	case []interface{}:
		return convertInts(len(t), func(i int) interface{} { return t[i] })
	}
	return nil, errNotInteger
}

func convertInts(n int, at func(int) interface{}) ([]int, error) {
	ret := make([]int, n)
	for i := range ret {
		v, err := toInt(at(i))
		if err != nil {
			return nil, err
		}
		ret[i] = v
	}
	return ret, nil
}

func toStringList(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return append([]string{}, t...), true
	case []interface{}:
		ret := make([]string, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			ret[i] = s
		}
		return ret, true
	}
	return nil, false
}
