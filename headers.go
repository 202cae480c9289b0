package talon

import (
	"net/http"
	"sort"
	"strings"
)

// HeaderField is one name/value pair of an ordered header set.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered header set. Unlike http.Header it preserves both the
// order headers were first set in and the spelling of their names; lookups
// and overrides are case-insensitive. Later layers override earlier ones,
// adopting the overriding spelling but keeping the original position.
type Header struct {
	fields []HeaderField
}

// Set writes a header, replacing any existing value under a
// case-insensitive match of the name.
func (h *Header) Set(name, value string) {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].Name, name) {
			h.fields[i] = HeaderField{Name: name, Value: value}
			return
		}
	}
	h.fields = append(h.fields, HeaderField{Name: name, Value: value})
}

// Get returns the value under a case-insensitive match of name, or "".
func (h *Header) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Has reports whether a header is set under a case-insensitive match.
func (h *Header) Has(name string) bool {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Del removes a header under a case-insensitive match of name.
func (h *Header) Del(name string) {
	for i, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			h.fields = append(h.fields[:i], h.fields[i+1:]...)
			return
		}
	}
}

// Fields returns the headers in set order. The slice is shared; treat it as
// read-only.
func (h *Header) Fields() []HeaderField {
	return h.fields
}

// Len returns the number of headers.
func (h *Header) Len() int {
	return len(h.fields)
}

func (h *Header) clone() Header {
	fields := make([]HeaderField, len(h.fields))
	copy(fields, h.fields)
	return Header{fields: fields}
}

// setBag merges a header bag into h in deterministic order. Maps merge in
// sorted key order; http.Header values join multiple entries with ", " on a
// single line.
func (h *Header) setBag(bag any) bool {
	switch m := bag.(type) {
	case map[string]string:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Set(k, m[k])
		}
		return true
	case http.Header:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Set(k, strings.Join(m[k], ", "))
		}
		return true
	case []HeaderField:
		for _, f := range m {
			h.Set(f.Name, f.Value)
		}
		return true
	}
	return false
}

// fixedHeaderName rewrites underscores to hyphens so fixed header keys can
// be written as identifiers (X_Api_Version sends X-Api-Version).
func fixedHeaderName(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}
