package core

// tokenizer.go splits a single CSV line into fields.
//
// The tokenizer is lenient: an unterminated quote swallows the
// rest of the line into the open field instead of failing, and whitespace
// around every field is trimmed. Line splitting happens upstream in the
// streaming parser, so embedded newlines inside quotes are not supported.

import "strings"

// Tokenize splits one line (without its trailing newline) into trimmed
// field values. A doubled quote inside a quoted section yields a literal
// quote. The result always has at least one element.
func Tokenize(line string) []string {
	fields := make([]string, 0, 8)
	var buf strings.Builder
	inQuotes := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				buf.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(buf.String()))
			buf.Reset()
		default:
			buf.WriteRune(c)
		}
	}

	return append(fields, strings.TrimSpace(buf.String()))
}
