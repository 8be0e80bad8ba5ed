package hyperparam

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Format renders a normalized hyperparameter value in the text form the
// training containers parse: decimal integers, shortest floats with a
// trailing ".0" when integral, True/False for booleans and bracketed,
// comma-space separated lists.
func Format(v interface{}) string {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t)
	case float64:
		return formatFloat(t)
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case []int:
		return "[" + strings.Join(lo.Map(t, func(i int, _ int) string { return strconv.Itoa(i) }), ", ") + "]"
	case []string:
		return "[" + strings.Join(lo.Map(t, func(s string, _ int) string { return "'" + s + "'" }), ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.LastIndexByte(sci, 'e')+1:])
	if err == nil && f != 0 && (exp < -4 || exp >= 16) {
		return sci
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Parse is the inverse of Format for the given kind.
func Parse(k Kind, raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	switch k {
	case KindInteger:
		if i, err := strconv.Atoi(raw); err == nil {
			return i, nil
		}
		// jobs created elsewhere may carry integral floats such as "10.0"
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			i, err := integral(f)
			if err == nil {
				return i, nil
			}
			if err != errNotInteger {
				return nil, err
			}
		}
	case KindFloat:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
	case KindString:
		return raw, nil
	case KindBool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b, nil
		}
	case KindIntList:
		items, ok := listItems(raw)
		if !ok {
			break
		}
		ret := make([]int, 0, len(items))
		for _, item := range items {
			i, err := strconv.Atoi(item)
			if err != nil {
				return nil, wrongType(k)
			}
			ret = append(ret, i)
		}
		return ret, nil
	case KindStringList:
		items, ok := listItems(raw)
		if !ok {
			break
		}
		return lo.Map(items, func(s string, _ int) string { return strings.Trim(s, `'"`) }), nil
	}
	return nil, wrongType(k)
}

func listItems(raw string) ([]string, bool) {
	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
		return nil, false
	}
	inner := strings.TrimSpace(raw[1 : len(raw)-1])
	if inner == "" {
		return []string{}, true
	}
	return lo.Map(strings.Split(inner, ","), func(s string, _ int) string { return strings.TrimSpace(s) }), true
}
