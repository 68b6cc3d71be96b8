package query_builder

import (
	"strings"
	"unicode"
)

// SanitizeIdentifier cleans a value that has to appear in query text as a bare
// identifier (label, relationship type, property key) because the query
// language cannot bind identifiers as parameters.
//
// The value is trimmed, backticks and backslashes are removed, whitespace runs
// become a single "_" and every remaining rune outside [A-Za-z0-9_-] is
// dropped. An empty result means the input is unusable; callers must reject it.
//
// Example:
//
//	SanitizeIdentifier("Foo Bar`;DROP") // "Foo_BarDROP"
func SanitizeIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	inSpace := false
	for _, r := range s {
		if r == '`' || r == '\\' {
			continue
		}
		if unicode.IsSpace(r) {
			if !inSpace {
				result.WriteByte('_')
				inSpace = true
			}
			continue
		}
		inSpace = false
		if isIdentRune(r) {
			result.WriteRune(r)
		}
	}

	return result.String()
}

func isIdentRune(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '_' || r == '-'
}

// IsPlainIdentifier reports whether s can be written in Cypher without quoting.
func IsPlainIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// QuoteIdentifier renders an already sanitized identifier, wrapping it in
// backticks when it is not a plain identifier ("1st", "first-name").
// Sanitized text never contains a backtick, so the quoting cannot be escaped.
func QuoteIdentifier(s string) string {
	if IsPlainIdentifier(s) {
		return s
	}
	return "`" + s + "`"
}

// Property renders a property access on a pattern variable.
//
// Example:
//
//	Property("record", "name")       // record.name
//	Property("record", "first-name") // record.`first-name`
func Property(varName, key string) string {
	return varName + "." + QuoteIdentifier(key)
}

// Labels renders a label expression such as ":__RECORD__:Person".
func Labels(labels ...string) string {
	var sb strings.Builder
	for _, l := range labels {
		if l == "" {
			continue
		}
		sb.WriteString(":")
		sb.WriteString(QuoteIdentifier(l))
	}
	return sb.String()
}

// StringLiteral renders a sanitized identifier as a single-quoted Cypher
// string literal. Only sanitized input may be passed.
func StringLiteral(sanitized string) string {
	return "'" + sanitized + "'"
}
