package outputs

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/extpath/internal/debug"
	"github.com/standardbeagle/extpath/internal/manifest"
	"github.com/standardbeagle/extpath/internal/types"
	"github.com/standardbeagle/extpath/pkg/pathutil"
)

// Planner derives the default output table from a manifest.
// Declared paths under the public root are copied verbatim and map to their cleaned path;
// everything else is emitted under a per-feature folder.
type Planner struct {
	PublicRoot   string   // Marker segment stripped from declared paths (default "public")
	PublicAssets []string // Files found under the public root, relative to it
	ExtraPages   []string // HTML entries not named by the manifest
	ExtraScripts []string // Script and style entries not named by the manifest
}

// NewPlanner creates a planner with the default public root
func NewPlanner() *Planner {
	return &Planner{PublicRoot: types.DefaultPublicRoot}
}

// Plan builds the table for d. A nil descriptor yields a table holding only public
// assets and extra entries.
//
// No output ever equals the declared path of a different entry: a lookup of an emitted
// path must resolve to itself, or a second pass over rewritten source would move it again.
func (p *Planner) Plan(d *manifest.Descriptor) *MapTable {
	var entries []planEntry
	add := func(category types.Category, declared, output string) {
		clean, public := pathutil.NormalizeResourcePath(declared, p.PublicRoot)
		if clean == "" || pathutil.IsExternalURL(declared) {
			return
		}
		if public {
			output = clean
		}
		entries = append(entries, planEntry{category: category, clean: clean, output: output})
	}

	if d != nil {
		p.planManifest(d, add)
	}
	for _, page := range p.ExtraPages {
		add(types.CategoryPages, page, "pages/"+stem(page)+".html")
	}
	for _, script := range p.ExtraScripts {
		add(types.CategoryScripts, script, "scripts/"+stem(script)+outputExt(script))
	}

	names := newOutputNamer(entries)
	t := NewMapTable()
	for _, asset := range p.PublicAssets {
		clean, _ := pathutil.NormalizeResourcePath(asset, "")
		t.AddPublic(clean)
	}
	for _, e := range entries {
		t.Add(e.category, e.clean, names.output(e))
	}

	debug.LogBuild("planned %d output entries\n", t.Len())
	return t
}

// planEntry is one declared resource awaiting its output name. An empty output asks
// for an icons/ name.
type planEntry struct {
	category types.Category
	clean    string
	output   string
}

func (p *Planner) planManifest(d *manifest.Descriptor, add func(types.Category, string, string)) {
	if sw, ok := d.ServiceWorker(); ok {
		add(types.CategoryBackground, sw, "background/service_worker.js")
	}
	for _, s := range d.BackgroundScripts() {
		add(types.CategoryBackground, s, "background/scripts.js")
	}
	if page, ok := d.BackgroundPage(); ok {
		add(types.CategoryBackground, page, "background/index.html")
	}

	for i, cs := range d.ContentScripts() {
		for _, js := range cs.JS {
			add(types.CategoryContentScripts, js, fmt.Sprintf("content_scripts/content-%d.js", i))
		}
		for _, css := range cs.CSS {
			add(types.CategoryContentScripts, css, fmt.Sprintf("content_scripts/content-%d.css", i))
		}
	}

	actions := d.Actions()
	for _, field := range []string{"action", "browser_action", "page_action"} {
		action, ok := actions[field]
		if !ok || action.DefaultPopup == "" {
			continue
		}
		out := "action/index.html"
		if field == "page_action" {
			out = "page_action/index.html"
		}
		add(types.CategoryAction, action.DefaultPopup, out)
	}

	for _, icon := range d.Icons().Paths() {
		add(types.CategoryIcons, icon, "")
	}
	for _, icon := range d.ActionIcons() {
		add(types.CategoryIcons, icon, "")
	}

	if page, ok := d.DevtoolsPage(); ok {
		add(types.CategoryDevtools, page, "devtools/index.html")
	}
	for i, page := range d.SandboxPages() {
		add(types.CategorySandbox, page, fmt.Sprintf("sandbox/page-%d.html", i))
	}
	if page, ok := d.SidePanel(); ok {
		add(types.CategorySidePanel, page, "side_panel/index.html")
	}
	if page, ok := d.SidebarPanel(); ok {
		add(types.CategorySidebarAction, page, "sidebar/index.html")
	}
	if script, ok := d.UserScriptAPI(); ok {
		add(types.CategoryUserScripts, script, "user_scripts/api_script.js")
	}
	if page, ok := d.OptionsPage(); ok {
		add(types.CategoryOptions, page, "options/index.html")
	}
	for key, page := range d.URLOverrides() {
		add(types.CategoryURLOverrides, page, "chrome_url_overrides/"+key+".html")
	}

	// Literal web_accessible_resources entries are copied through unchanged
	for _, res := range d.WebAccessibleResources() {
		if strings.ContainsAny(res, "*?[{") {
			continue
		}
		clean, _ := pathutil.NormalizeResourcePath(res, "")
		add(types.CategoryWebResources, res, clean)
	}
}

// outputNamer picks final output names. Every declared path is reserved up front so a
// proposed output that names another entry's source moves aside. Icons get
// icons/<basename>, falling back to a flattened path when that is reserved or owned by
// a different icon.
type outputNamer struct {
	reserved map[string]bool
	icons    map[string]string
	moved    map[string]string
}

func newOutputNamer(entries []planEntry) *outputNamer {
	n := &outputNamer{
		reserved: make(map[string]bool, len(entries)),
		icons:    make(map[string]string),
		moved:    make(map[string]string),
	}
	for _, e := range entries {
		n.reserved[e.clean] = true
	}
	return n
}

// free reports whether candidate may be emitted for the entry declared at clean
func (n *outputNamer) free(candidate, clean string) bool {
	return candidate == clean || !n.reserved[candidate]
}

func (n *outputNamer) output(e planEntry) string {
	if e.output == "" {
		return n.icon(e.clean)
	}
	if n.free(e.output, e.clean) {
		return e.output
	}
	// Entries sharing a proposed output share the replacement too
	if out, ok := n.moved[e.output]; ok {
		return out
	}
	out := n.suffixed(e.output, e.clean)
	n.moved[e.output] = out
	debug.LogBuild("output %s names a declared source, emitting %s instead\n", e.output, out)
	return out
}

func (n *outputNamer) icon(clean string) string {
	candidates := []string{
		"icons/" + path.Base(clean),
		"icons/" + strings.ReplaceAll(clean, "/", "-"),
	}
	for _, out := range candidates {
		if owner, ok := n.icons[out]; (!ok || owner == clean) && n.free(out, clean) {
			n.icons[out] = clean
			return out
		}
	}
	out := n.suffixed(candidates[1], clean)
	n.icons[out] = clean
	return out
}

// suffixed numbers candidate (name-2.ext, name-3.ext, ...) until it is free
func (n *outputNamer) suffixed(candidate, clean string) string {
	ext := path.Ext(candidate)
	base := strings.TrimSuffix(candidate, ext)
	for i := 2; ; i++ {
		out := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, owned := n.icons[out]; !owned && n.free(out, clean) {
			return out
		}
	}
}

func stem(p string) string {
	clean, _ := pathutil.NormalizeResourcePath(p, "")
	base := path.Base(clean)
	return strings.TrimSuffix(base, path.Ext(base))
}

// outputExt maps a source extension to the extension the bundler emits
func outputExt(p string) string {
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".ts", ".tsx", ".jsx", ".mjs", ".cjs", ".mts", ".cts":
		return ".js"
	case ".scss", ".sass", ".less":
		return ".css"
	default:
		return ext
	}
}

// ScanPublic lists every file under the public root, relative to it.
// A missing public root is not an error.
func ScanPublic(fsys fs.FS) ([]string, error) {
	matches, err := doublestar.Glob(fsys, "**", doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan public root: %w", err)
	}
	return matches, nil
}

// ScanEntries expands include patterns against fsys, dropping anything matched by an
// exclude pattern.
func ScanEntries(fsys fs.FS, include, exclude []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup || excluded(m, exclude) {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}

func excluded(p string, exclude []string) bool {
	for _, pattern := range exclude {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}
