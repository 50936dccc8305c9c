package pathutil

import (
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// IsExternalURL reports whether a path literal points outside the extension package:
// a URL with a scheme, a protocol-relative URL or a bare fragment.
func IsExternalURL(p string) bool {
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "#") {
		return true
	}
	colon := strings.IndexByte(p, ':')
	if colon <= 0 {
		return false
	}
	// A single letter before the colon is a Windows drive, not a scheme
	if colon == 1 {
		return false
	}
	for i, r := range p[:colon] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// SplitSuffix separates a trailing query string or fragment from a path
// ("popup.html?tab=2#top" → "popup.html", "?tab=2#top").
func SplitSuffix(p string) (string, string) {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i], p[i:]
	}
	return p, ""
}

// NormalizeResourcePath cleans a developer-written resource path into the form the
// asset emitter uses. Steps, each idempotent on its own output:
//  1. canonical separators: backslashes become "/", empty and "." segments and any
//     leading root "/" are dropped;
//  2. percent-escapes are decoded, whitespace runs collapse to one space and the text is
//     put in Unicode NFC;
//  3. one leading publicRoot segment is stripped, since public assets are emitted at the
//     output root.
//
// The second result reports whether the public-root segment was stripped.
func NormalizeResourcePath(p, publicRoot string) (string, bool) {
	p = canonicalSeparators(p)
	p = collapseText(p)
	p = canonicalSeparators(p)

	if publicRoot == "" {
		return p, false
	}
	if rest, ok := strings.CutPrefix(p, publicRoot+"/"); ok && rest != "" {
		return rest, true
	}
	return p, false
}

func canonicalSeparators(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		kept = append(kept, part)
	}
	if len(kept) == 0 {
		return ""
	}
	return path.Clean(strings.Join(kept, "/"))
}

func collapseText(p string) string {
	if strings.IndexByte(p, '%') >= 0 {
		if decoded, err := url.PathUnescape(p); err == nil {
			p = decoded
		}
	}

	var b strings.Builder
	b.Grow(len(p))
	inSpace := false
	for _, r := range p {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}
