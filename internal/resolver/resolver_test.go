package resolver

import (
	"strings"
	"testing"
	"unicode/utf8"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/extpath/internal/debug"
	"github.com/standardbeagle/extpath/internal/manifest"
	"github.com/standardbeagle/extpath/internal/outputs"
	"github.com/standardbeagle/extpath/internal/types"
)

const fixtureManifest = `{
  "manifest_version": 3,
  "name": "Fixture",
  "background": {"service_worker": "background.ts"},
  "action": {
    "default_popup": "popup/index.html",
    "default_icon": {"16": "assets/icon-16.png", "32": "assets/icon-32.png", "48": "assets/icon-48.png"}
  },
  "side_panel": {"default_path": "sidepanel/panel.html"},
  "content_scripts": [{"matches": ["<all_urls>"], "js": ["content/main.ts"], "css": ["content/style.css"]}],
  "options_ui": {"page": "options/options.html"}
}`

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	d, err := manifest.Parse("manifest.json", []byte(fixtureManifest), "chrome")
	require.NoError(t, err)

	p := outputs.NewPlanner()
	p.PublicAssets = []string{"logo.png", "café menu.png"}
	p.ExtraPages = []string{"a.html", "b.html", "panel.html"}
	p.ExtraScripts = []string{"vendor/lib.js"}

	return New(Options{ManifestPath: "manifest.json"}, p.Plan(d), d, debug.NewOnce())
}

func diagsOfKind(diags []types.Diagnostic, kind types.DiagnosticKind) []types.Diagnostic {
	var out []types.Diagnostic
	for _, d := range diags {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Scenario: backslash separators inside an options object
func TestResolve_BackslashSeparators(t *testing.T) {
	r := newTestResolver(t)
	src := `chrome.action.setPopup({ popup: "popup\\index.html", tabId: 1 });`

	res := r.Resolve("bg.js", src)

	assert.Equal(t, `chrome.action.setPopup({ popup: "/action/index.html", tabId: 1 });`, res.Code)
	assert.True(t, res.Changed)
	require.Len(t, res.References, 1)
	ref := res.References[0]
	assert.Equal(t, `popup\index.html`, ref.DeclaredPath)
	assert.Equal(t, "popup/index.html", ref.NormalizedPath)
	assert.Equal(t, "/action/index.html", ref.ResolvedPath)
	assert.Equal(t, types.CategoryAction, ref.Category)
	assert.True(t, ref.Resolved)
	assert.Empty(t, res.Diagnostics)
}

// Scenario: public-root marker with whitespace and a non-ASCII letter
func TestResolve_PublicRootWhitespaceUnicode(t *testing.T) {
	r := newTestResolver(t)
	src := "const url = chrome.runtime.getURL('public/café   menu.png');"

	res := r.Resolve("bg.js", src)

	assert.Equal(t, "const url = chrome.runtime.getURL('/café menu.png');", res.Code)
	require.Len(t, res.References, 1)
	assert.Equal(t, "café menu.png", res.References[0].NormalizedPath)
}

// Scenario: declaration passed by name several lines later
func TestResolve_RewritesDeclaration(t *testing.T) {
	r := newTestResolver(t)
	src := `const panelOptions = {
  path: "sidepanel/panel.html",
  enabled: true,
};

console.log("configuring side panel");
chrome.sidePanel.setOptions(panelOptions);
`
	res := r.Resolve("bg.js", src)

	want := strings.Replace(src, `"sidepanel/panel.html"`, `"/side_panel/index.html"`, 1)
	assert.Equal(t, want, res.Code)
	assert.Contains(t, res.Code, "chrome.sidePanel.setOptions(panelOptions);")
	require.Len(t, res.References, 1)
	assert.Equal(t, 2, strings.Count(src[:res.References[0].Span.Start], "\n")+1, "reference points into the declaration")
}

// Scenario: empty declaration reassigned before the call
func TestResolve_RewritesAssignment(t *testing.T) {
	r := newTestResolver(t)
	src := `let popupOptions = {};
popupOptions = { popup: "popup/index.html" };
chrome.action.setPopup(popupOptions);
`
	res := r.Resolve("bg.js", src)

	assert.Equal(t, `let popupOptions = {};
popupOptions = { popup: "/action/index.html" };
chrome.action.setPopup(popupOptions);
`, res.Code)
	assert.Empty(t, res.Diagnostics)
}

// Scenario: size-keyed icon map with one computed entry
func TestResolve_IconMapWithComputedEntry(t *testing.T) {
	r := newTestResolver(t)
	src := `chrome.action.setIcon({
  path: {
    16: "assets/icon-16.png",
    32: "assets/icon-32.png",
    48: "assets/icon-48.png",
    128: largeIconFor(theme),
  },
});`
	res := r.Resolve("bg.js", src)

	assert.Equal(t, `chrome.action.setIcon({
  path: {
    16: "/icons/icon-16.png",
    32: "/icons/icon-32.png",
    48: "/icons/icon-48.png",
    128: largeIconFor(theme),
  },
});`, res.Code)
	assert.Len(t, res.References, 3)

	dynamic := diagsOfKind(res.Diagnostics, types.DiagDynamicPath)
	require.Len(t, dynamic, 1)
	assert.Equal(t, "largeIconFor(theme)", dynamic[0].Path)
	assert.Equal(t, types.SeverityWarning, dynamic[0].Severity)
	assert.Equal(t, 6, dynamic[0].Line)
	assert.Len(t, res.Diagnostics, 1)
}

// Scenario: markup that merely looks like a public-root path
func TestResolve_MarkupUntouched(t *testing.T) {
	r := newTestResolver(t)
	src := `const html = '<img src="/public/logo.png">';
document.body.innerHTML = ` + "`<link rel=\"icon\" href=\"public/logo.png\">`" + `;
chrome.storage.local.get("settings");
`
	res := r.Resolve("content.js", src)

	assert.Equal(t, src, res.Code)
	assert.Equal(t, unsafe.StringData(src), unsafe.StringData(res.Code))
	assert.False(t, res.Changed)
	assert.Empty(t, res.References)
	assert.Empty(t, res.Diagnostics)
}

func TestResolve_Idempotent(t *testing.T) {
	r := newTestResolver(t)
	src := `chrome.action.setPopup({ popup: "popup\\index.html" });
chrome.action.setIcon({ path: { 16: "assets/icon-16.png", 32: "public/logo.png" } });
chrome.tabs.create({ url: "options/options.html#general" });
chrome.scripting.executeScript({ target: { tabId }, files: ["content/main.ts"] });
importScripts("vendor/lib.js");
`
	first := r.Resolve("bg.js", src)
	require.True(t, first.Changed)

	second := r.Resolve("bg.js", first.Code)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, unsafe.StringData(first.Code), unsafe.StringData(second.Code))
	for _, ref := range second.References {
		assert.True(t, ref.Resolved, ref.DeclaredPath)
	}
}

func TestResolve_IdempotentWithSharedIconBasenames(t *testing.T) {
	d, err := manifest.Parse("manifest.json", []byte(`{
  "manifest_version": 3,
  "icons": {"16": "assets/icon16.png", "32": "icons/icon16.png"}
}`), "chrome")
	require.NoError(t, err)
	r := New(Options{ManifestPath: "manifest.json"}, outputs.NewPlanner().Plan(d), d, nil)

	src := `chrome.action.setIcon({ path: "assets/icon16.png" });
chrome.action.setIcon({ path: "icons/icon16.png" });
`
	first := r.Resolve("bg.js", src)
	assert.Equal(t, `chrome.action.setIcon({ path: "/icons/assets-icon16.png" });
chrome.action.setIcon({ path: "/icons/icon16.png" });
`, first.Code)

	second := r.Resolve("bg.js", first.Code)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Code, second.Code)
}

func TestResolve_NonInterference(t *testing.T) {
	r := newTestResolver(t)
	src := "export function add(a, b) { return a + b; }\n"

	res := r.Resolve("math.ts", src)

	assert.Equal(t, unsafe.StringData(src), unsafe.StringData(res.Code))
	assert.True(t, res.Map.Identity())
	assert.Empty(t, res.References)
}

func TestResolve_SpanLocality(t *testing.T) {
	r := newTestResolver(t)
	src := `// header comment stays put
const a = 1;
chrome.tabs.create({ url: "a.html" });
const b = "unrelated/a.html";
chrome.windows.create({ url: ["a.html", "b.html"], type: "popup" });
`
	res := r.Resolve("bg.js", src)
	require.True(t, res.Changed)

	// Removing the replaced regions from both texts leaves identical bytes
	var orig, gen strings.Builder
	prevO, prevG := 0, 0
	for _, seg := range res.Map.Segments() {
		orig.WriteString(src[prevO:seg.Original.Start])
		gen.WriteString(res.Code[prevG:seg.Generated.Start])
		prevO, prevG = seg.Original.End, seg.Generated.End
	}
	orig.WriteString(src[prevO:])
	gen.WriteString(res.Code[prevG:])
	assert.Equal(t, orig.String(), gen.String())

	assert.Len(t, res.Map.Segments(), 3)
	assert.Contains(t, res.Code, `const b = "unrelated/a.html";`)
}

func TestResolve_LastWriteBeforeCall(t *testing.T) {
	r := newTestResolver(t)
	src := `let page = { url: "a.html" };
chrome.tabs.create(page);
page = { url: "b.html" };
chrome.tabs.create(page);
`
	res := r.Resolve("bg.js", src)

	assert.Equal(t, `let page = { url: "/pages/a.html" };
chrome.tabs.create(page);
page = { url: "/pages/b.html" };
chrome.tabs.create(page);
`, res.Code)
}

func TestResolve_FunctionBoundary(t *testing.T) {
	r := newTestResolver(t)
	src := `const opts = { url: "a.html" };
function open() {
  chrome.tabs.create(opts);
}
`
	res := r.Resolve("bg.js", src)

	assert.Equal(t, src, res.Code)
	ambiguous := diagsOfKind(res.Diagnostics, types.DiagAmbiguousBinding)
	require.Len(t, ambiguous, 1)
	assert.Equal(t, "opts", ambiguous[0].Path)
	assert.Equal(t, types.SeverityInfo, ambiguous[0].Severity)
	assert.Equal(t, 3, ambiguous[0].Line)
	assert.Equal(t, 22, ambiguous[0].Column)
}

func TestResolve_BlockShadowing(t *testing.T) {
	r := newTestResolver(t)
	src := `const opts = { url: "a.html" };
if (ready) {
  const opts = { url: "b.html" };
  chrome.tabs.create(opts);
}
chrome.tabs.create(opts);
`
	res := r.Resolve("bg.js", src)

	assert.Equal(t, `const opts = { url: "/pages/a.html" };
if (ready) {
  const opts = { url: "/pages/b.html" };
  chrome.tabs.create(opts);
}
chrome.tabs.create(opts);
`, res.Code)
}

func TestResolve_RuntimeBindingsShadowOuterLiterals(t *testing.T) {
	r := newTestResolver(t)
	tests := []struct {
		name  string
		src   string
		want  string
		ident string
	}{
		{
			name: "object destructuring",
			src: `const url = "a.html";
if (ok) {
  const { url } = cfg;
  chrome.tabs.create({ url });
}
`,
			ident: "url",
		},
		{
			name: "array destructuring",
			src: `const page = "a.html";
if (ok) {
  const [first, page] = pages;
  chrome.runtime.getURL(page);
}
`,
			ident: "page",
		},
		{
			name: "destructuring assignment",
			src: `let url = "a.html";
({ url } = cfg);
chrome.runtime.getURL(url);
`,
			ident: "url",
		},
		{
			name: "for of loop variable",
			src: `const opts = { url: "a.html" };
for (const opts of list) {
  chrome.tabs.create(opts);
}
chrome.tabs.create(opts);
`,
			want: `const opts = { url: "/pages/a.html" };
for (const opts of list) {
  chrome.tabs.create(opts);
}
chrome.tabs.create(opts);
`,
			ident: "opts",
		},
		{
			name: "for in existing name",
			src: `let opts = { url: "a.html" };
for (opts in table) {}
chrome.tabs.create(opts);
`,
			ident: "opts",
		},
		{
			name: "catch parameter",
			src: `const opts = { url: "a.html" };
try {
  run();
} catch (opts) {
  chrome.tabs.create(opts);
}
`,
			ident: "opts",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve("bg.js", tt.src)

			want := tt.want
			if want == "" {
				want = tt.src
			}
			assert.Equal(t, want, res.Code)
			assert.Equal(t, tt.want != "", res.Changed)

			ambiguous := diagsOfKind(res.Diagnostics, types.DiagAmbiguousBinding)
			require.Len(t, ambiguous, 1)
			assert.Equal(t, tt.ident, ambiguous[0].Path)
			assert.Contains(t, ambiguous[0].Message, "non-literal")
		})
	}
}

func TestResolve_NoTransitiveResolution(t *testing.T) {
	r := newTestResolver(t)
	src := `const base = { url: "a.html" };
const alias = base;
chrome.tabs.create(alias);
`
	res := r.Resolve("bg.js", src)

	assert.Equal(t, src, res.Code)
	ambiguous := diagsOfKind(res.Diagnostics, types.DiagAmbiguousBinding)
	require.Len(t, ambiguous, 1)
	assert.Contains(t, ambiguous[0].Message, "non-literal")
}

func TestResolve_IdentifierPropertyValue(t *testing.T) {
	r := newTestResolver(t)
	src := `const welcome = "a.html";
browser.tabs.create({ url: welcome, active: true });
`
	res := r.Resolve("bg.js", src)

	assert.Equal(t, `const welcome = "/pages/a.html";
browser.tabs.create({ url: welcome, active: true });
`, res.Code)
}

func TestResolve_UnresolvedWithSuggestion(t *testing.T) {
	r := newTestResolver(t)
	src := `chrome.action.setPopup({ popup: "popup/indx.html" });`

	res := r.Resolve("bg.js", src)

	assert.Equal(t, src, res.Code)
	require.Len(t, res.References, 1)
	assert.False(t, res.References[0].Resolved)

	unresolved := diagsOfKind(res.Diagnostics, types.DiagUnresolvedPath)
	require.Len(t, unresolved, 1)
	assert.Equal(t, types.SeverityWarning, unresolved[0].Severity)
	assert.Equal(t, "popup/index.html", unresolved[0].Suggestion)
	assert.Equal(t, "popup/indx.html", unresolved[0].Path)
}

func TestResolve_SkipsExternalURLs(t *testing.T) {
	r := newTestResolver(t)
	src := `chrome.tabs.create({ url: "https://example.com/welcome" });
chrome.notifications.create("id", { iconUrl: "data:image/png;base64,AAAA", title: "t" });
chrome.tabs.create({ url: "" });
chrome.tabs.create({ url: "#top" });
`
	res := r.Resolve("bg.js", src)

	assert.Equal(t, src, res.Code)
	assert.Empty(t, res.References)
	assert.Empty(t, res.Diagnostics)
}

func TestResolve_SuffixPreserved(t *testing.T) {
	r := newTestResolver(t)
	src := `chrome.tabs.create({ url: "options/options.html?tab=general#top" });`

	res := r.Resolve("bg.js", src)

	assert.Equal(t, `chrome.tabs.create({ url: "/options/index.html?tab=general#top" });`, res.Code)
}

func TestResolve_ArrayOfRecords(t *testing.T) {
	r := newTestResolver(t)
	src := `chrome.scripting.registerContentScripts([
  { id: "main", matches: ["<all_urls>"], js: ["content/main.ts"], css: ["content/style.css"] },
]);`
	res := r.Resolve("bg.ts", src)

	assert.Contains(t, res.Code, `js: ["/content_scripts/content-0.js"]`)
	assert.Contains(t, res.Code, `css: ["/content_scripts/content-0.css"]`)
	assert.Contains(t, res.Code, `matches: ["<all_urls>"]`)
}

func TestResolve_ApiVariants(t *testing.T) {
	r := newTestResolver(t)
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "importScripts",
			src:  `importScripts("vendor/lib.js", "https://cdn.example.com/x.js");`,
			want: `importScripts("/scripts/lib.js", "https://cdn.example.com/x.js");`,
		},
		{
			name: "globalThis prefix and optional chaining",
			src:  `globalThis.browser?.runtime?.getURL("a.html");`,
			want: `globalThis.browser?.runtime?.getURL("/pages/a.html");`,
		},
		{
			name: "static template",
			src:  "chrome.runtime.getURL(`public/logo.png`);",
			want: "chrome.runtime.getURL(`/logo.png`);",
		},
		{
			name: "single quotes",
			src:  `chrome.tabs.create({ url: 'b.html' });`,
			want: `chrome.tabs.create({ url: '/pages/b.html' });`,
		},
		{
			name: "tabs.update with tab id",
			src:  `chrome.tabs.update(tabId, { url: "b.html" });`,
			want: `chrome.tabs.update(tabId, { url: "/pages/b.html" });`,
		},
		{
			name: "devtools panel",
			src:  `chrome.devtools.panels.create("Inspector", "assets/icon-16.png", "panel.html");`,
			want: `chrome.devtools.panels.create("Inspector", "/icons/icon-16.png", "/pages/panel.html");`,
		},
		{
			name: "nested getURL",
			src:  `chrome.tabs.create({ url: chrome.runtime.getURL("options/options.html") });`,
			want: `chrome.tabs.create({ url: chrome.runtime.getURL("/options/index.html") });`,
		},
		{
			name: "TypeScript wrappers",
			src:  `chrome.action.setPopup({ popup: ("popup/index.html" as string) } satisfies chrome.action.PopupDetails);`,
			want: `chrome.action.setPopup({ popup: ("/action/index.html" as string) } satisfies chrome.action.PopupDetails);`,
		},
		{
			name: "unknown namespace member",
			src:  `chrome.runtime.sendMessage("a.html");`,
			want: `chrome.runtime.sendMessage("a.html");`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve("bg.ts", tt.src)
			assert.Equal(t, tt.want, res.Code)
			assert.Empty(t, res.Diagnostics)
		})
	}
}

func TestResolve_QuietOptionalPositions(t *testing.T) {
	r := newTestResolver(t)
	src := `function refresh(tabId) {
  chrome.tabs.update(tabId, { url: "b.html" });
}
`
	res := r.Resolve("bg.js", src)

	assert.Contains(t, res.Code, `"/pages/b.html"`)
	assert.Empty(t, res.Diagnostics, "an unresolvable tab id is not reported")
}

func TestResolve_DynamicTemplate(t *testing.T) {
	r := newTestResolver(t)
	src := "chrome.runtime.getURL(`pages/${name}.html`);"

	res := r.Resolve("bg.js", src)

	assert.Equal(t, src, res.Code)
	dynamic := diagsOfKind(res.Diagnostics, types.DiagDynamicPath)
	require.Len(t, dynamic, 1)
	assert.Equal(t, "`pages/${name}.html`", dynamic[0].Path)
}

func TestExcerpt_RuneBoundary(t *testing.T) {
	src := strings.Repeat("a", 79) + "é/pages/" + strings.Repeat("b", 10)

	got := excerpt(src, types.Span{Start: 0, End: len(src)})

	assert.True(t, utf8.ValidString(got), got)
	assert.Equal(t, strings.Repeat("a", 79)+"...", got)
	assert.Equal(t, "short", excerpt("short", types.Span{Start: 0, End: 5}))
}

func TestResolve_ParseFailurePassthrough(t *testing.T) {
	r := newTestResolver(t)
	src := "chrome.tabs.create({ url: \"a.html\" \n"

	res := r.Resolve("broken.js", src)

	assert.Equal(t, unsafe.StringData(src), unsafe.StringData(res.Code))
	assert.False(t, res.Changed)
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, types.DiagParseFailure, d.Kind)
	assert.Equal(t, types.SeverityInfo, d.Severity)
	assert.Equal(t, "broken.js", d.File)
	assert.Error(t, d.Err)
}

func TestResolve_SharedLiteralReportedOnce(t *testing.T) {
	r := newTestResolver(t)
	src := `const opts = { url: "a.html" };
chrome.tabs.create(opts);
chrome.windows.create(opts);
`
	res := r.Resolve("bg.js", src)

	assert.Len(t, res.References, 1)
	assert.Equal(t, 1, strings.Count(res.Code, "/pages/a.html"))
}

func TestResolve_BuildScopedOnce(t *testing.T) {
	d, err := manifest.Parse("manifest.json", []byte(fixtureManifest), "chrome")
	require.NoError(t, err)
	table := outputs.NewPlanner().Plan(d)

	onceA, onceB := debug.NewOnce(), debug.NewOnce()
	a := New(Options{}, table, d, onceA)
	b := New(Options{}, table, d, onceB)

	a.Resolve("bg.js", `chrome.tabs.create({ url: "popup/index.html" });`)
	assert.True(t, onceA.Seen("api:ns.tabs.create"))
	assert.False(t, onceB.Seen("api:ns.tabs.create"), "builds do not share log-once state")

	b.Resolve("bg.js", `chrome.tabs.create({ url: "popup/index.html" });`)
	assert.True(t, onceB.Seen("api:ns.tabs.create"))
}

func TestNew_Defaults(t *testing.T) {
	r := New(Options{}, nil, nil, nil)
	opts := r.Options()
	assert.Equal(t, types.DefaultPublicRoot, opts.PublicRootMarker)
	assert.Equal(t, types.DefaultBuildMode, opts.BuildMode)
	assert.Equal(t, types.DefaultBrowser, opts.Browser)
	assert.Nil(t, r.Manifest())

	res := r.Resolve("bg.js", `chrome.tabs.create({ url: "a.html" });`)
	assert.False(t, res.Changed)
	assert.Len(t, diagsOfKind(res.Diagnostics, types.DiagUnresolvedPath), 1)
}
