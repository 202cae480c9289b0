package talon

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Pair is one key=value query or form pair.
type Pair struct {
	Key   string
	Value string
}

// PairEncoder lets a record type supply its own query pairs instead of being
// mapped by reflection. Generated encoders implement it; the reflection
// mapper and a generated encoder for the same type produce identical pairs.
type PairEncoder interface {
	QueryPairs() ([]Pair, error)
}

var pairEncoderType = reflect.TypeOf((*PairEncoder)(nil)).Elem()

// Stringify renders a scalar parameter value the way it appears on the wire:
// in a path segment (before escaping), a query value, a form value, or a
// header value. encoding.TextMarshaler is preferred, then fmt.Stringer, then
// the primitive kinds. Anything else is an error.
func Stringify(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case encoding.TextMarshaler:
		b, err := s.MarshalText()
		if err != nil {
			return "", err
		}
		return string(b), nil
	case fmt.Stringer:
		return s.String(), nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", fmt.Errorf("cannot stringify nil %T", v)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	}
	return "", fmt.Errorf("cannot stringify %T as a request value", v)
}

// formatSeparator returns the joining string of a collection format.
// FormatMulti has no separator; it emits one pair per element.
func formatSeparator(f Format) (string, bool) {
	switch f {
	case FormatCSV:
		return ",", true
	case FormatSSV:
		return " ", true
	case FormatPipes:
		return "|", true
	}
	return "", false
}

// pairsForValue produces the query pairs of one classified parameter value.
// Pointers unwrap with nil meaning "omit entirely"; lists follow the
// collection format (an empty list emits nothing under any format); records
// contribute their field pairs and ignore key.
func pairsForValue(key string, format Format, rule Rename, v any) ([]Pair, error) {
	if v == nil {
		return nil, nil
	}
	if enc, ok := v.(PairEncoder); ok {
		return enc.QueryPairs()
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
		if rv.CanInterface() {
			if enc, ok := rv.Interface().(PairEncoder); ok {
				return enc.QueryPairs()
			}
		}
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return listPairs(key, format, rv)
	case reflect.Struct:
		if isScalar(rv.Interface()) {
			break
		}
		return recordPairsOf(rv, rule)
	case reflect.Map:
		return mapPairs(rv, rule)
	}

	s, err := Stringify(rv.Interface())
	if err != nil {
		return nil, err
	}
	return []Pair{{Key: key, Value: s}}, nil
}

func listPairs(key string, format Format, rv reflect.Value) ([]Pair, error) {
	n := rv.Len()
	sep, joined := formatSeparator(format)
	if joined {
		if n == 0 {
			return nil, nil
		}
		elems := make([]string, n)
		for i := 0; i < n; i++ {
			s, err := stringifyElem(rv.Index(i))
			if err != nil {
				return nil, err
			}
			elems[i] = s
		}
		return []Pair{{Key: key, Value: strings.Join(elems, sep)}}, nil
	}

	pairs := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		s, err := stringifyElem(rv.Index(i))
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, Pair{Key: key, Value: s})
	}
	return pairs, nil
}

func stringifyElem(rv reflect.Value) (string, error) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", fmt.Errorf("nil element in list value")
		}
		rv = rv.Elem()
	}
	return Stringify(rv.Interface())
}

// isScalar reports whether a struct value stringifies directly (time.Time
// and similar TextMarshaler or Stringer implementations) rather than being
// mapped field by field.
func isScalar(v any) bool {
	switch v.(type) {
	case encoding.TextMarshaler, fmt.Stringer:
		return true
	}
	return false
}

// queryEscapeNeeded reports whether a byte must be percent-encoded in a
// query component. Unreserved characters and the comma stay literal so that
// joined collection values read naturally; space encodes as %20.
func queryEscapeNeeded(c byte) bool {
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case '-', '.', '_', '~', ',':
		return false
	}
	return true
}

func escapeQuery(s string) string {
	needed := 0
	for i := 0; i < len(s); i++ {
		if queryEscapeNeeded(s[i]) {
			needed++
		}
	}
	if needed == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2*needed)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if queryEscapeNeeded(c) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// encodeQuery serializes pairs in order. It never sorts: pair order is the
// declaration order the plan produced.
func encodeQuery(pairs []Pair) string {
	if len(pairs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escapeQuery(p.Key))
		b.WriteByte('=')
		b.WriteString(escapeQuery(p.Value))
	}
	return b.String()
}
