package rewrite

import "strings"

// Escape encodes value for the inside of a string literal delimited by quote, which is
// one of ' " or `. Only characters that would end or alter the literal are escaped.
func Escape(value string, quote byte) string {
	if !needsEscape(value, quote) {
		return value
	}

	var b strings.Builder
	b.Grow(len(value) + 8)
	for i := 0; i < len(value); i++ {
		ch := value[i]
		switch {
		case ch == '\\':
			b.WriteString(`\\`)
		case ch == quote:
			b.WriteByte('\\')
			b.WriteByte(ch)
		case ch == '\n' && quote != '`':
			b.WriteString(`\n`)
		case ch == '\r':
			b.WriteString(`\r`)
		case ch == '$' && quote == '`' && strings.HasPrefix(value[i:], "${"):
			b.WriteString(`\$`)
		case quote != '`' && strings.HasPrefix(value[i:], "\u2028"):
			b.WriteString(`\u2028`)
			i += len("\u2028") - 1
		case quote != '`' && strings.HasPrefix(value[i:], "\u2029"):
			b.WriteString(`\u2029`)
			i += len("\u2029") - 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func needsEscape(value string, quote byte) bool {
	if strings.ContainsAny(value, "\\\r") || strings.IndexByte(value, quote) >= 0 {
		return true
	}
	if quote == '`' {
		return strings.Contains(value, "${")
	}
	return strings.ContainsAny(value, "\n\u2028\u2029")
}
