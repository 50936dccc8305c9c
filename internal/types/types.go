package types

import "fmt"

// Common system-wide constants
const (
	DefaultPublicRoot = "public" // Source folder copied verbatim to the output root
	DefaultBrowser    = "chrome"
	DefaultBuildMode  = "development"

	// MaxCalleeChain is the longest dotted callee the matcher decomposes.
	// Longer chains can never match a signature.
	MaxCalleeChain = 4
)

// Span is a half-open byte range [Start, End) into the original source text.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span
func (s Span) Len() int {
	return s.End - s.Start
}

// Contains reports whether other lies fully inside s
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Overlaps reports whether the two spans share at least one byte
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Category names a group of manifest-declared resources sharing one output-path convention.
type Category string

const (
	CategoryBackground     Category = "background"
	CategoryContentScripts Category = "content_scripts"
	CategoryAction         Category = "action"
	CategoryIcons          Category = "icons"
	CategoryDevtools       Category = "devtools"
	CategorySandbox        Category = "sandbox"
	CategorySidePanel      Category = "side_panel"
	CategorySidebarAction  Category = "sidebar_action"
	CategoryUserScripts    Category = "user_scripts"
	CategoryOptions        Category = "options"
	CategoryURLOverrides   Category = "chrome_url_overrides"
	CategoryPages          Category = "pages"
	CategoryScripts        Category = "scripts"
	CategoryWebResources   Category = "web_resources"
	CategoryPublic         Category = "public"
)

// AllCategories lists every concrete category in a stable order.
// CategoryWebResources is a lookup family, not a concrete bucket, and is not listed.
var AllCategories = []Category{
	CategoryBackground,
	CategoryContentScripts,
	CategoryAction,
	CategoryIcons,
	CategoryDevtools,
	CategorySandbox,
	CategorySidePanel,
	CategorySidebarAction,
	CategoryUserScripts,
	CategoryOptions,
	CategoryURLOverrides,
	CategoryPages,
	CategoryScripts,
	CategoryPublic,
}

// ResourceReference is one path discovered inside a recognized API call argument.
type ResourceReference struct {
	File           string
	Span           Span // quoted contents of the literal holding the path
	Category       Category
	DeclaredPath   string // text as written, escapes decoded
	NormalizedPath string
	ResolvedPath   string // output-root relative; empty when unresolved
	Resolved       bool
}

// DiagnosticKind classifies a non-fatal finding of the resolver pass
type DiagnosticKind uint8

const (
	DiagParseFailure     DiagnosticKind = iota // file passed through unmodified
	DiagUnresolvedPath                         // normalized path has no output entry
	DiagDynamicPath                            // path is computed at runtime
	DiagAmbiguousBinding                       // identifier value cannot be known statically
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagParseFailure:
		return "parse-failure"
	case DiagUnresolvedPath:
		return "unresolved-path"
	case DiagDynamicPath:
		return "dynamic-path"
	case DiagAmbiguousBinding:
		return "ambiguous-binding"
	default:
		return "unknown"
	}
}

// Severity of a diagnostic as surfaced to the host
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "info"
}

// Diagnostic is a non-fatal note produced while resolving a file.
type Diagnostic struct {
	Kind       DiagnosticKind
	Severity   Severity
	File       string
	Line       int // 1-based, 0 when unknown
	Column     int // 1-based, 0 when unknown
	Path       string
	Message    string
	Suggestion string
	Err        error
}

func (d Diagnostic) String() string {
	loc := d.File
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
	}
	msg := fmt.Sprintf("%s: %s [%s]: %s", loc, d.Severity, d.Kind, d.Message)
	if d.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", d.Suggestion)
	}
	return msg
}
