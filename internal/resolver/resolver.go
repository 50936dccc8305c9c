// Package resolver rewrites path arguments of browser extension API calls so they name
// the files the build actually emits.
//
// A pass over one file is a pure function of the file text, the manifest snapshot and
// the output table: it performs no I/O, never fails, and leaves every byte outside the
// rewritten literals untouched.
package resolver

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/standardbeagle/extpath/internal/debug"
	"github.com/standardbeagle/extpath/internal/errors"
	"github.com/standardbeagle/extpath/internal/jsast"
	"github.com/standardbeagle/extpath/internal/manifest"
	"github.com/standardbeagle/extpath/internal/outputs"
	"github.com/standardbeagle/extpath/internal/parser"
	"github.com/standardbeagle/extpath/internal/rewrite"
	"github.com/standardbeagle/extpath/internal/types"
)

// Options are the per-build settings of the pass
type Options struct {
	ManifestPath     string
	BuildMode        string
	PublicRootMarker string
	Browser          string
}

// Result is the outcome of resolving one file
type Result struct {
	Code        string
	Map         *rewrite.PositionMap
	References  []types.ResourceReference
	Diagnostics []types.Diagnostic
	Changed     bool
}

// Resolver holds the read-only state shared by every file of one build
type Resolver struct {
	opts     Options
	table    outputs.Table
	manifest *manifest.Descriptor
	matcher  *Matcher
	once     *debug.Once
}

// New creates a resolver. once scopes "log this only once" messages to the build; a
// nil once logs every time.
func New(opts Options, table outputs.Table, d *manifest.Descriptor, once *debug.Once) *Resolver {
	if opts.PublicRootMarker == "" {
		opts.PublicRootMarker = types.DefaultPublicRoot
	}
	if opts.BuildMode == "" {
		opts.BuildMode = types.DefaultBuildMode
	}
	if opts.Browser == "" {
		opts.Browser = types.DefaultBrowser
	}
	if table == nil {
		table = outputs.NewMapTable()
	}
	return &Resolver{opts: opts, table: table, manifest: d, matcher: defaultMatcher, once: once}
}

// Options returns the effective options
func (r *Resolver) Options() Options { return r.opts }

// Manifest returns the manifest snapshot the resolver was built with, possibly nil
func (r *Resolver) Manifest() *manifest.Descriptor { return r.manifest }

// Table returns the output table
func (r *Resolver) Table() outputs.Table { return r.table }

// Resolve rewrites one file. The returned Code is text itself when nothing changed.
func (r *Resolver) Resolve(file, text string) Result {
	passthrough := Result{Code: text, Map: &rewrite.PositionMap{}}
	if !mayContainAPICall(text) {
		return passthrough
	}

	if r.manifest != nil {
		r.once.Do("manifest:"+r.manifest.Path(), func() {
			debug.LogResolve("resolving against %s (MV%d, %s)\n", r.manifest.Path(), r.manifest.ManifestVersion(), r.manifest.Browser())
		})
	}

	root, err := parser.Parse(file, []byte(text))
	if err != nil {
		passthrough.Diagnostics = []types.Diagnostic{parseDiagnostic(file, err)}
		return passthrough
	}

	p := &pass{
		resolver: r,
		file:     file,
		src:      text,
		lines:    newLineIndex(text),
		tracker:  &tracker{},
		patched:  make(map[types.Span]bool),
	}
	p.extract = &extractor{tracker: p.tracker, matcher: r.matcher}
	p.visit(root)

	code, posMap, err := rewrite.Apply(text, p.patches)
	if err != nil {
		debug.LogResolve("%s: discarding patches: %v\n", file, err)
		passthrough.References = p.refs
		passthrough.Diagnostics = p.diags
		return passthrough
	}

	return Result{
		Code:        code,
		Map:         posMap,
		References:  p.refs,
		Diagnostics: p.diags,
		Changed:     len(p.patches) > 0,
	}
}

// mayContainAPICall is a cheap filter for files that cannot hold a recognized call
func mayContainAPICall(text string) bool {
	return strings.Contains(text, "chrome") ||
		strings.Contains(text, "browser") ||
		strings.Contains(text, "importScripts")
}

func parseDiagnostic(file string, err error) types.Diagnostic {
	d := types.Diagnostic{
		Kind:     types.DiagParseFailure,
		Severity: types.SeverityInfo,
		File:     file,
		Message:  "file passed through unmodified: " + err.Error(),
		Err:      err,
	}
	var pf *errors.ParseFailure
	if stderrors.As(err, &pf) {
		d.Line, d.Column = pf.Line, pf.Column
	}
	return d
}

// pass is the state of one top-to-bottom walk
type pass struct {
	resolver *Resolver
	file     string
	src      string
	lines    lineIndex
	tracker  *tracker
	extract  *extractor

	patches []rewrite.Patch
	patched map[types.Span]bool
	refs    []types.ResourceReference
	diags   []types.Diagnostic
}

func (p *pass) visit(n jsast.Node) {
	switch n := n.(type) {
	case nil:
	case *jsast.Block:
		p.tracker.push(n.Function)
		for _, stmt := range n.Body {
			p.visit(stmt)
		}
		p.tracker.pop()
	case *jsast.VarDecl:
		p.visit(n.Value)
		p.tracker.declare(n)
	case *jsast.Assign:
		p.visit(n.Value)
		p.tracker.assign(n)
	case *jsast.Call:
		p.visit(n.Callee)
		for _, arg := range n.Args {
			p.visit(arg)
		}
		if site, ok := p.resolver.matcher.MatchCall(p.file, n); ok {
			p.callSite(site)
		}
	default:
		for _, child := range jsast.Children(n) {
			p.visit(child)
		}
	}
}

func (p *pass) callSite(site CallSite) {
	r := p.resolver
	r.once.Do("api:"+site.Signature.Path, func() {
		debug.LogResolve("rewriting %s calls (mode=%s browser=%s manifest=%s)\n",
			site.Signature.Path, r.opts.BuildMode, r.opts.Browser, r.opts.ManifestPath)
	})

	for _, spec := range site.Signature.Args {
		for i, arg := range site.Args {
			if !spec.Applies(i) {
				continue
			}
			p.extract.reset(spec.Optional)
			p.extract.argument(arg, spec)
			for _, lit := range p.extract.literals {
				p.literal(lit, spec.Category)
			}
			for _, is := range p.extract.issues {
				p.issue(is, site)
			}
		}
	}
}

// literal normalizes and resolves one path literal, queueing a patch when the emitted
// text differs from what is written
func (p *pass) literal(lit pathLiteral, category types.Category) {
	if p.patched[lit.Inner] {
		return
	}
	norm, ok := normalize(lit.Value, p.resolver.opts.PublicRootMarker)
	if !ok {
		return
	}
	p.patched[lit.Inner] = true

	ref := types.ResourceReference{
		File:           p.file,
		Span:           lit.Inner,
		Category:       category,
		DeclaredPath:   lit.Value,
		NormalizedPath: norm.Clean,
	}

	output, found := p.resolver.table.Resolve(category, norm.Clean)
	if !found {
		p.refs = append(p.refs, ref)
		err := errors.NewUnresolvedPath(p.file, string(category), lit.Value, norm.Clean)
		line, col := p.lines.position(lit.Inner.Start)
		p.diags = append(p.diags, types.Diagnostic{
			Kind:       types.DiagUnresolvedPath,
			Severity:   types.SeverityWarning,
			File:       p.file,
			Line:       line,
			Column:     col,
			Path:       lit.Value,
			Message:    fmt.Sprintf("no emitted %s file for %q", category, norm.Clean),
			Suggestion: outputs.Suggest(p.resolver.table, category, norm.Clean),
			Err:        err,
		})
		return
	}

	text := resolvedText(output, norm.Suffix)
	ref.ResolvedPath = text
	ref.Resolved = true
	p.refs = append(p.refs, ref)

	if text != lit.Value {
		p.patches = append(p.patches, rewrite.Patch{Span: lit.Inner, Text: rewrite.Escape(text, lit.Quote)})
	}
}

func (p *pass) issue(is issue, site CallSite) {
	line, col := p.lines.position(is.span.Start)
	d := types.Diagnostic{
		File:   p.file,
		Line:   line,
		Column: col,
	}
	switch is.kind {
	case issueAmbiguous:
		err := errors.NewAmbiguousBinding(p.file, is.name, is.reason)
		d.Kind = types.DiagAmbiguousBinding
		d.Severity = types.SeverityInfo
		d.Path = is.name
		d.Message = fmt.Sprintf("%s argument %q left as written: %s", site.Signature.Path, is.name, is.reason)
		d.Err = err
	default:
		d.Kind = types.DiagDynamicPath
		d.Severity = types.SeverityWarning
		d.Path = excerpt(p.src, is.span)
		d.Message = fmt.Sprintf("%s path is computed at runtime and cannot be rewritten", site.Signature.Path)
	}
	p.diags = append(p.diags, d)
}

func excerpt(src string, span types.Span) string {
	const limit = 80
	s := src[span.Start:span.End]
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// lineIndex maps byte offsets to 1-based line and column
type lineIndex []int

func newLineIndex(src string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (l lineIndex) position(offset int) (int, int) {
	line := sort.Search(len(l), func(i int) bool { return l[i] > offset }) - 1
	if line < 0 {
		return 1, offset + 1
	}
	return line + 1, offset - l[line] + 1
}
