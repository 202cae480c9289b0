package talon

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/talonhq/talon/internal/words"
)

// applyRename renders a field name under a rename rule. The case rules
// lowercase and UPPERCASE map the name verbatim; the word-based rules split
// on underscores, hyphens, and case boundaries first, so they behave the
// same for snake_case and PascalCase inputs.
func applyRename(r Rename, name string) string {
	switch r {
	case RenameNone:
		return name
	case RenameLower:
		return strings.ToLower(name)
	case RenameUpper:
		return strings.ToUpper(name)
	}
	ws := words.Split(name)
	switch r {
	case RenameCamel:
		return words.Camel(ws)
	case RenamePascal:
		return words.Pascal(ws)
	case RenameSnake:
		return words.Join(ws, "_", false)
	case RenameScreamingSnake:
		return words.Join(ws, "_", true)
	case RenameKebab:
		return words.Join(ws, "-", false)
	case RenameScreamingKebab:
		return words.Join(ws, "-", true)
	}
	return name
}

func validRename(r Rename) bool {
	switch r {
	case RenameNone, RenameLower, RenameUpper, RenameCamel, RenamePascal,
		RenameSnake, RenameScreamingSnake, RenameKebab, RenameScreamingKebab:
		return true
	}
	return false
}

func validFormat(f Format) bool {
	switch f {
	case "", FormatMulti, FormatCSV, FormatSSV, FormatPipes:
		return true
	}
	return false
}

// fieldPlan is one record field's compiled mapping.
type fieldPlan struct {
	index     []int // reflect field index chain (embedded structs flatten)
	key       string
	format    Format
	omitEmpty bool
}

// compileRecord walks a struct type and fixes each field's wire key and
// format. An explicit tag rename always beats the record rule. Unexported
// fields and fields tagged `query:"-"` are skipped; anonymous struct fields
// flatten into the parent.
func compileRecord(t reflect.Type, rule Rename) ([]fieldPlan, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("record must be a struct, got %s", t)
	}
	var plans []fieldPlan
	if err := appendFieldPlans(&plans, t, rule, nil); err != nil {
		return nil, err
	}
	return plans, nil
}

func appendFieldPlans(plans *[]fieldPlan, t reflect.Type, rule Rename, prefix []int) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		index := append(append([]int(nil), prefix...), i)

		tagName, opts, err := parseQueryTag(f.Tag.Get("query"))
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if tagName == "-" {
			continue
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if f.Anonymous && ft.Kind() == reflect.Struct && tagName == "" && !isScalarType(ft) {
			if err := appendFieldPlans(plans, ft, rule, index); err != nil {
				return err
			}
			continue
		}

		key := tagName
		if key == "" {
			key = applyRename(rule, f.Name)
		}
		*plans = append(*plans, fieldPlan{
			index:     index,
			key:       key,
			format:    opts.format,
			omitEmpty: opts.omitEmpty,
		})
	}
	return nil
}

func isScalarType(t reflect.Type) bool {
	return t.Implements(textMarshalerType) || t.Implements(stringerType) ||
		reflect.PointerTo(t).Implements(textMarshalerType)
}

var (
	textMarshalerType = reflect.TypeOf((*interface{ MarshalText() ([]byte, error) })(nil)).Elem()
	stringerType      = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

type tagOptions struct {
	format    Format
	omitEmpty bool
}

// parseQueryTag splits a `query:"name,opt,..."` tag. Recognized options are
// the collection formats (multi, csv, ssv, pipes) and omitempty.
func parseQueryTag(tag string) (string, tagOptions, error) {
	var opts tagOptions
	if tag == "" {
		return "", opts, nil
	}
	parts := strings.Split(tag, ",")
	name := parts[0]
	for _, opt := range parts[1:] {
		switch opt {
		case "multi":
			opts.format = FormatMulti
		case "csv":
			opts.format = FormatCSV
		case "ssv":
			opts.format = FormatSSV
		case "pipes":
			opts.format = FormatPipes
		case "omitempty":
			opts.omitEmpty = true
		case "":
		default:
			return "", opts, fmt.Errorf("unknown query tag option %q", opt)
		}
	}
	return name, opts, nil
}

// recordPairs evaluates compiled field plans against a struct value.
// Nil pointer fields are omitted; omitempty fields are omitted when zero;
// list fields follow their field format.
func recordPairs(rv reflect.Value, plans []fieldPlan) ([]Pair, error) {
	var pairs []Pair
	for _, fp := range plans {
		fv, err := fieldByIndex(rv, fp.index)
		if err != nil {
			continue // nil embedded pointer on the chain
		}
		for fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface {
			if fv.IsNil() {
				fv = reflect.Value{}
				break
			}
			fv = fv.Elem()
		}
		if !fv.IsValid() {
			continue
		}
		if fp.omitEmpty && fv.IsZero() {
			continue
		}

		switch fv.Kind() {
		case reflect.Slice, reflect.Array:
			ps, err := listPairs(fp.key, fp.format, fv)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", fp.key, err)
			}
			pairs = append(pairs, ps...)
		default:
			s, err := Stringify(fv.Interface())
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", fp.key, err)
			}
			pairs = append(pairs, Pair{Key: fp.key, Value: s})
		}
	}
	return pairs, nil
}

func fieldByIndex(rv reflect.Value, index []int) (reflect.Value, error) {
	for _, i := range index {
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return reflect.Value{}, fmt.Errorf("nil embedded struct")
			}
			rv = rv.Elem()
		}
		rv = rv.Field(i)
	}
	return rv, nil
}

// recordPairsOf maps an arbitrary struct value under a rename rule,
// compiling its field plans on the fly. The compiled-plan path and this path
// produce identical pairs for the same type and rule.
func recordPairsOf(rv reflect.Value, rule Rename) ([]Pair, error) {
	plans, err := compileRecord(rv.Type(), rule)
	if err != nil {
		return nil, err
	}
	return recordPairs(rv, plans)
}

// mapPairs emits a map record in sorted key order. Map iteration order is
// random in Go; sorting keeps the plan output deterministic.
func mapPairs(rv reflect.Value, rule Rename) ([]Pair, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("record map must have string keys, got %s", rv.Type())
	}
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	var pairs []Pair
	for _, k := range keys {
		mv := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
		for mv.Kind() == reflect.Pointer || mv.Kind() == reflect.Interface {
			if mv.IsNil() {
				mv = reflect.Value{}
				break
			}
			mv = mv.Elem()
		}
		if !mv.IsValid() {
			continue
		}
		key := applyRename(rule, k)
		switch mv.Kind() {
		case reflect.Slice, reflect.Array:
			ps, err := listPairs(key, FormatMulti, mv)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			pairs = append(pairs, ps...)
		default:
			s, err := Stringify(mv.Interface())
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			pairs = append(pairs, Pair{Key: key, Value: s})
		}
	}
	return pairs, nil
}

// RecordPairs maps a struct or map value to query pairs under a rename rule.
// It is the reflection backend generated encoders must agree with; exported
// so generated code can fall back to it for field shapes the generator does
// not special-case.
func RecordPairs(v any, rule Rename) ([]Pair, error) {
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
	}
	switch rv.Kind() {
	case reflect.Struct:
		return recordPairsOf(rv, rule)
	case reflect.Map:
		return mapPairs(rv, rule)
	}
	return nil, fmt.Errorf("record must be a struct or map, got %T", v)
}
