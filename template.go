package talon

import (
	"errors"
	"net/url"
	"strings"
)

// extractPlaceholders scans a URL template and returns the {name} spans in
// order of appearance. Empty braces are skipped; duplicates are preserved
// (binding uniqueness is checked at compile time). malformed reports an
// opening brace with no closing brace.
func extractPlaceholders(template string) (names []string, malformed bool) {
	for i := 0; i < len(template); {
		if template[i] != '{' {
			i++
			continue
		}
		end := strings.IndexByte(template[i+1:], '}')
		if end < 0 {
			return names, true
		}
		if name := template[i+1 : i+1+end]; name != "" {
			names = append(names, name)
		}
		i += end + 2
	}
	return names, false
}

// uniquePlaceholders returns the distinct placeholder names, keeping first
// occurrence order.
func uniquePlaceholders(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

const upperhex = "0123456789ABCDEF"

// pathEscapeNeeded reports whether a byte must be percent-encoded inside a
// path segment. Controls, space, URL metacharacters, both slashes, and the
// percent sign itself are escaped; unreserved characters and the remaining
// sub-delimiters pass through untouched. Percent is escaped so values that
// already contain %-sequences are not double-decoded downstream.
func pathEscapeNeeded(c byte) bool {
	if c <= 0x20 || c == 0x7f {
		return true
	}
	switch c {
	case '"', '#', '<', '>', '`', '?', '{', '}', '/', '\\', '%':
		return true
	}
	return false
}

// escapePathSegment percent-encodes a substituted value for embedding in a
// single path segment. Bytes outside ASCII are left to the URL layer, which
// percent-encodes them during serialization.
func escapePathSegment(s string) string {
	needed := 0
	for i := 0; i < len(s); i++ {
		if pathEscapeNeeded(s[i]) {
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
		if pathEscapeNeeded(c) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// expandTemplate substitutes pre-escaped values for every occurrence of
// their placeholders. Placeholders without a value are left verbatim; the
// compiler guarantees there are none.
func expandTemplate(template string, values map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); {
		c := template[i]
		if c != '{' {
			b.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(template[i+1:], '}')
		if end < 0 {
			b.WriteString(template[i:])
			break
		}
		name := template[i+1 : i+1+end]
		if v, ok := values[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(template[i : i+end+2])
		}
		i += end + 2
	}
	return b.String()
}

// joinURL resolves a substituted path (plus optional raw query) against the
// base URL. Unlike RFC 3986 reference resolution, a base path prefix is
// always preserved: base https://api.example.com/v2 with path /repos/x
// yields https://api.example.com/v2/repos/x.
func joinURL(base *url.URL, pathAndQuery string) (*url.URL, error) {
	s := strings.TrimSuffix(base.String(), "/")
	if !strings.HasPrefix(pathAndQuery, "/") {
		pathAndQuery = "/" + pathAndQuery
	}
	return url.Parse(s + pathAndQuery)
}

// parseBaseURL validates a declared base URL: it must be absolute and carry
// no query or fragment.
func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("base URL must be absolute (scheme and host)")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, errors.New("base URL must not carry a query or fragment")
	}
	return u, nil
}
