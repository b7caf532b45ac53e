// Package util holds the small string helpers used to read host commands.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArgs returns a copy of args with surrounding whitespace and quotes
// removed and escaped quotes restored.
func CleanArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = FixEscapeQuotes(TrimQuotes(strings.TrimSpace(a)))
	}
	return out
}

// SplitFields splits a command line on whitespace. A double-quoted field may
// contain spaces; a doubled quote inside it stands for one quote.
func SplitFields(line string) []string {
	var (
		fields  []string
		b       strings.Builder
		quoted  bool
		inField bool
	)
	flush := func() {
		if inField {
			fields = append(fields, b.String())
		}
		b.Reset()
		inField = false
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"' && quoted && i+1 < len(line) && line[i+1] == '"':
			b.WriteByte('"')
			i++
		case c == '"':
			quoted = !quoted
			inField = true
		case !quoted && (c == ' ' || c == '\t'):
			flush()
		default:
			b.WriteByte(c)
			inField = true
		}
	}
	flush()
	return fields
}
