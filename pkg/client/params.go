package client

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
)

// Params holds query parameters for a fetch. Values may be strings, bools,
// numbers or pointers to those. Nil values, nil pointers and empty strings
// are dropped before the request is built.
type Params map[string]any

// Encode returns the non-empty parameters as url.Values.
func (p Params) Encode() url.Values {
	values := url.Values{}

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if s, ok := formatParam(p[k]); ok {
			values.Set(k, s)
		}
	}
	return values
}

// formatParam renders v, reporting false when it should be omitted.
func formatParam(v any) (string, bool) {
	if v == nil {
		return "", false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String:
		s := rv.String()
		return s, s != ""
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	default:
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			str := s.String()
			return str, str != ""
		}
		return fmt.Sprint(rv.Interface()), true
	}
}
