package parser

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// decodeString cooks the body of a JavaScript string or template literal (quotes
// excluded). Malformed escapes keep the escaped character, as engines do in sloppy code.
func decodeString(raw []byte) string {
	if bytes.IndexByte(raw, '\\') < 0 && bytes.IndexByte(raw, '\r') < 0 {
		return string(raw)
	}

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); {
		ch := raw[i]
		if ch == '\r' {
			// Template literals normalize CRLF and CR to LF
			b.WriteByte('\n')
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			i++
			continue
		}
		if ch != '\\' || i+1 >= len(raw) {
			b.WriteByte(ch)
			i++
			continue
		}

		i++
		esc := raw[i]
		i++
		switch esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i < len(raw) && raw[i] == '\n' {
				i++
			}
		case 'x':
			if r, n := hexRune(raw[i:], 2); n > 0 {
				b.WriteRune(r)
				i += n
			} else {
				b.WriteByte('x')
			}
		case 'u':
			r, n := unicodeEscape(raw[i:])
			if n == 0 {
				b.WriteByte('u')
				continue
			}
			i += n
			if utf16.IsSurrogate(r) && i+1 < len(raw) && raw[i] == '\\' && raw[i+1] == 'u' {
				if lo, m := unicodeEscape(raw[i+2:]); m > 0 {
					if pair := utf16.DecodeRune(r, lo); pair != utf8.RuneError {
						r = pair
						i += 2 + m
					}
				}
			}
			b.WriteRune(r)
		default:
			// \' \" \\ \` \$ and any other escaped character stand for themselves;
			// multi-byte characters are copied whole
			i--
			r, size := utf8.DecodeRune(raw[i:])
			if r == '\u2028' || r == '\u2029' {
				// line continuation with a Unicode line terminator
				i += size
				continue
			}
			b.Write(raw[i : i+size])
			i += size
		}
	}
	return b.String()
}

// unicodeEscape decodes the part after \u: either XXXX or {X...}
func unicodeEscape(raw []byte) (rune, int) {
	if len(raw) > 0 && raw[0] == '{' {
		end := 1
		for end < len(raw) && raw[end] != '}' {
			end++
		}
		if end >= len(raw) || end == 1 {
			return 0, 0
		}
		v, err := strconv.ParseUint(string(raw[1:end]), 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0
		}
		return rune(v), end + 1
	}
	return hexRune(raw, 4)
}

func hexRune(raw []byte, digits int) (rune, int) {
	if len(raw) < digits {
		return 0, 0
	}
	v, err := strconv.ParseUint(string(raw[:digits]), 16, 32)
	if err != nil {
		return 0, 0
	}
	return rune(v), digits
}
