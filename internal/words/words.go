// Package words splits identifiers into their constituent words so that
// rename rules and generated names can be derived from Go, snake, or kebab
// style inputs alike.
package words

import (
	"strings"
	"unicode"
)

// Split breaks an identifier into lowercase words. Underscores and hyphens
// always separate words; within a run of letters, a boundary is inserted
// before an upper-case rune that follows a lower-case rune or digit, and
// before the last upper-case rune of an acronym run ("HTTPServer" splits
// into "http", "server"). Digits stick to the current word.
func Split(name string) []string {
	var out []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r):
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			prevUpper := i > 0 && unicode.IsUpper(runes[i-1])
			if prevLower || (prevUpper && nextLower) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return out
}

// Camel renders words as camelCase.
func Camel(ws []string) string {
	var b strings.Builder
	for i, w := range ws {
		if i == 0 {
			b.WriteString(w)
			continue
		}
		b.WriteString(capitalize(w))
	}
	return b.String()
}

// Pascal renders words as PascalCase.
func Pascal(ws []string) string {
	var b strings.Builder
	for _, w := range ws {
		b.WriteString(capitalize(w))
	}
	return b.String()
}

// Join renders words separated by sep, optionally upper-cased.
func Join(ws []string, sep string, upper bool) string {
	s := strings.Join(ws, sep)
	if upper {
		return strings.ToUpper(s)
	}
	return s
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
