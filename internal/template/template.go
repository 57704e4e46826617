// Package template renders gate messages with fail-soft placeholder
// substitution.
//
// Templates use {name} placeholders. A placeholder whose variable is absent
// renders as the literal "(not set)" instead of failing, so a gate message is
// never lost because a metric was never written. Render never returns an
// error to its caller.
package template

import (
	"errors"
	"regexp"
	"strings"
)

// Missing is substituted for any placeholder with no matching variable.
const Missing = "(not set)"

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.-]+)\}`)

var errMalformed = errors.New("malformed template")

// Render substitutes {name} placeholders in tmpl from vars.
//
// The strict scanner is tried first; if the template is malformed (an
// unterminated or nested brace), Render falls back to sequential literal
// replacement of every known variable followed by a sweep that rewrites any
// still-unresolved placeholder to "(not set)".
func Render(tmpl string, vars map[string]string) string {
	out, err := renderStrict(tmpl, vars)
	if err == nil {
		return out
	}
	return renderFallback(tmpl, vars)
}

// renderStrict walks the template once, substituting each balanced {name}
// placeholder. It rejects unterminated and nested braces so the fallback
// path still gets exercised on author mistakes.
func renderStrict(tmpl string, vars map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		switch c {
		case '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", errMalformed
			}
			name := tmpl[i+1 : i+1+end]
			if strings.ContainsRune(name, '{') {
				return "", errMalformed
			}
			if v, ok := vars[name]; ok {
				b.WriteString(v)
			} else {
				b.WriteString(Missing)
			}
			i += end + 2
		case '}':
			return "", errMalformed
		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String(), nil
}

// renderFallback replaces each known variable literally, then rewrites any
// placeholder that survived to "(not set)".
func renderFallback(tmpl string, vars map[string]string) string {
	out := tmpl
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return placeholderPattern.ReplaceAllString(out, Missing)
}
