package revisionable

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Comparer reports whether two field values are equal.
type Comparer func(a, b any) bool

// LooseEqual compares values the way a weakly typed ORM's dirty tracking does:
// numeric strings compare as numbers, booleans compare by truthiness and nil
// equals the zero value of the other side.
func LooseEqual(a, b any) bool {
	x, y := looseNormalize(unwrap(a)), looseNormalize(unwrap(b))

	_, xb := x.(bool)
	_, yb := y.(bool)
	switch {
	case x == nil && y == nil:
		return true
	case xb || yb:
		return truthy(x) == truthy(y)
	case x == nil:
		return equalsNil(y)
	case y == nil:
		return equalsNil(x)
	}

	xs, xIsStr := x.(string)
	ys, yIsStr := y.(string)
	switch {
	case xIsStr && yIsStr:
		if nx, ok := numeric(xs); ok {
			if ny, ok := numeric(ys); ok {
				return nx == ny
			}
		}
		return xs == ys
	case xIsStr:
		return stringEqualsNumber(xs, y.(float64))
	case yIsStr:
		return stringEqualsNumber(ys, x.(float64))
	default:
		return x.(float64) == y.(float64)
	}
}

// StrictEqual compares values by type and content.
func StrictEqual(a, b any) bool {
	a, b = unwrap(a), unwrap(b)
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

// looseNormalize reduces a scalar to nil, bool, float64 or string.
func looseNormalize(v any) any {
	switch x := v.(type) {
	case nil, bool, string:
		return x
	case []byte:
		return string(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case time.Time:
		return x.Format(TimeFormat)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	}
	return formatScalar(v)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != "" && x != "0"
	}
	return true
}

func equalsNil(v any) bool {
	switch x := v.(type) {
	case float64:
		return x == 0
	case string:
		return x == ""
	}
	return false
}

func stringEqualsNumber(s string, f float64) bool {
	if n, ok := numeric(s); ok {
		return n == f
	}
	return s == strconv.FormatFloat(f, 'f', -1, 64)
}

// numeric parses s as a decimal number, allowing surrounding whitespace.
func numeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	switch c := s[0]; {
	case c >= '0' && c <= '9', c == '+', c == '-', c == '.':
	default:
		return 0, false
	}
	if strings.ContainsAny(s, "xX_pPiInN") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
