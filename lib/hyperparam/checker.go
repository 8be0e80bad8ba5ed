package hyperparam

import (
	"fmt"

	"github.com/samber/lo"
)

func bracket(inclusive bool, open, closed string) string {
	if inclusive {
		return closed
	}
	return open
}

func rangeText(lower, upper interface{}, includeLower, includeUpper bool) string {
	return fmt.Sprintf("in %s%v, %v%s", bracket(includeLower, "(", "["), lower, upper, bracket(includeUpper, ")", "]"))
}

func lowerText(lower interface{}, include bool) string {
	if include {
		return fmt.Sprintf(">= %v", lower)
	}
	return fmt.Sprintf("> %v", lower)
}

func upperText(upper interface{}, include bool) string {
	if include {
		return fmt.Sprintf("<= %v", upper)
	}
	return fmt.Sprintf("< %v", upper)
}

// IntRange checks lower <(=) v <(=) upper.
func IntRange(lower, upper int, includeLower, includeUpper bool) func(int) error {
	return func(v int) error {
		if (v > lower || includeLower && v == lower) && (v < upper || includeUpper && v == upper) {
			return nil
		}
		return constraintError{kind: ErrOutOfRange, constraint: rangeText(lower, upper, includeLower, includeUpper)}
	}
}

func IntLowerBound(lower int, include bool) func(int) error {
	return func(v int) error {
		if v > lower || include && v == lower {
			return nil
		}
		return constraintError{kind: ErrOutOfRange, constraint: lowerText(lower, include)}
	}
}

func IntUpperBound(upper int, include bool) func(int) error {
	return func(v int) error {
		if v < upper || include && v == upper {
			return nil
		}
		return constraintError{kind: ErrOutOfRange, constraint: upperText(upper, include)}
	}
}

// FloatRange checks lower <(=) v <(=) upper.
func FloatRange(lower, upper float64, includeLower, includeUpper bool) func(float64) error {
	return func(v float64) error {
		if (v > lower || includeLower && v == lower) && (v < upper || includeUpper && v == upper) {
			return nil
		}
		return constraintError{kind: ErrOutOfRange, constraint: rangeText(lower, upper, includeLower, includeUpper)}
	}
}

func FloatLowerBound(lower float64, include bool) func(float64) error {
	return func(v float64) error {
		if v > lower || include && v == lower {
			return nil
		}
		return constraintError{kind: ErrOutOfRange, constraint: lowerText(lower, include)}
	}
}

func FloatUpperBound(upper float64, include bool) func(float64) error {
	return func(v float64) error {
		if v < upper || include && v == upper {
			return nil
		}
		return constraintError{kind: ErrOutOfRange, constraint: upperText(upper, include)}
	}
}

// StringChoices verifies the value is one of choices.
func StringChoices(choices ...string) func(string) error {
	return func(v string) error {
		if lo.Contains(choices, v) {
			return nil
		}
		return constraintError{kind: ErrNotInSet, constraint: fmt.Sprintf("one of %v", choices)}
	}
}

// Each applies an element checker to every entry of an int list.
func Each(checker func(int) error) func([]int) error {
	return func(vs []int) error {
		for _, v := range vs {
			if err := checker(v); err != nil {
				return err
			}
		}
		return nil
	}
}

// EachString applies an element checker to every entry of a string list.
func EachString(checker func(string) error) func([]string) error {
	return func(vs []string) error {
		for _, v := range vs {
			if err := checker(v); err != nil {
				return err
			}
		}
		return nil
	}
}
