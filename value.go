package revisionable

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// TimeFormat is the layout used when a time value is stored as revision text.
const TimeFormat = "2006-01-02 15:04:05"

type valueClass int

const (
	classScalar valueClass = iota
	classCompound
	classOpaque
)

// unwrap resolves pointers and driver.Valuer implementations to their underlying value.
func unwrap(v any) any {
	for i := 0; i < 8; i++ {
		if v == nil {
			return nil
		}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil
			}
			v = rv.Elem().Interface()
			continue
		}
		switch x := v.(type) {
		case time.Time, fmt.Stringer:
			return v
		case driver.Valuer:
			dv, err := x.Value()
			if err != nil {
				return v
			}
			v = dv
			continue
		}
		return v
	}
	return v
}

func classify(v any) valueClass {
	switch v.(type) {
	case nil, string, []byte, bool, time.Time, json.Number, fmt.Stringer:
		return classScalar
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return classScalar
	case reflect.Slice, reflect.Array, reflect.Map:
		return classCompound
	default:
		return classOpaque
	}
}

func isOpaque(v any) bool {
	return classify(unwrap(v)) == classOpaque
}

// IsCompound reports whether v is an array-like or map value.
func IsCompound(v any) bool {
	return classify(unwrap(v)) == classCompound
}

// FormatValue renders a scalar value as revision text. Nil and non-scalar
// values yield nil.
func FormatValue(v any) *string {
	v = unwrap(v)
	if v == nil || classify(v) != classScalar {
		return nil
	}
	s := formatScalar(v)
	return &s
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return x.Format(TimeFormat)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return formatScalar(rv.Bool())
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
