package resolver

import (
	"github.com/standardbeagle/extpath/pkg/pathutil"
)

// normalizedPath is a declared path ready for table lookup
type normalizedPath struct {
	Clean  string // lookup key
	Suffix string // ?query or #fragment carried over to the resolved text
	Public bool   // the public-root marker was stripped
}

// normalize prepares a declared path for lookup. The second result is false for paths
// that are skipped silently: empty text, URLs with a scheme, protocol-relative URLs and
// bare fragments.
func normalize(declared, publicRoot string) (normalizedPath, bool) {
	if declared == "" || pathutil.IsExternalURL(declared) {
		return normalizedPath{}, false
	}
	p, suffix := pathutil.SplitSuffix(declared)
	clean, public := pathutil.NormalizeResourcePath(p, publicRoot)
	if clean == "" {
		return normalizedPath{}, false
	}
	return normalizedPath{Clean: clean, Suffix: suffix, Public: public}, true
}

// resolvedText is the literal text written for an output path: absolute from the
// extension root so it works from any emitted page or worker
func resolvedText(output, suffix string) string {
	return "/" + output + suffix
}
