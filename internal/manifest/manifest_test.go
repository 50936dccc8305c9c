package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exterrors "github.com/standardbeagle/extpath/internal/errors"
)

const mv3Manifest = `{
  "manifest_version": 3,
  "name": "Sample",
  "background": {"service_worker": "background.ts"},
  "action": {
    "default_popup": "action/popup.html",
    "default_icon": {"16": "icons/16.png", "48": "icons/48.png", "128": "icons/128.png"}
  },
  "icons": {"128": "public/logo.png"},
  "devtools_page": "devtools/devtools.html",
  "sandbox": {"pages": ["sandbox/a.html", "sandbox/b.html"]},
  "side_panel": {"default_path": "sidepanel/index.html"},
  "options_ui": {"page": "options/options.html"},
  "chrome_url_overrides": {"newtab": "newtab/newtab.html"},
  "content_scripts": [
    {"matches": ["<all_urls>"], "js": ["content/a.ts", "content/b.ts"], "css": ["content/a.css"]},
    {"matches": ["https://example.com/*"], "js": ["content/c.tsx"]}
  ],
  "web_accessible_resources": [{"resources": ["images/*.png"], "matches": ["<all_urls>"]}],
  "firefox:sidebar_action": {"default_panel": "sidebar/panel.html", "default_icon": "icons/sidebar.png"},
  "chromium:minimum_chrome_version": "114"
}`

func TestParse_MV3Lookups(t *testing.T) {
	d, err := Parse("manifest.json", []byte(mv3Manifest), "chrome")
	require.NoError(t, err)

	assert.Equal(t, 3, d.ManifestVersion())
	assert.Equal(t, "Sample", d.Name())
	assert.Equal(t, "chrome", d.Browser())

	sw, ok := d.ServiceWorker()
	assert.True(t, ok)
	assert.Equal(t, "background.ts", sw)

	_, ok = d.BackgroundPage()
	assert.False(t, ok)

	assert.Equal(t, []string{"action/popup.html"}, d.Popups())
	assert.Equal(t, []string{"icons/16.png", "icons/48.png", "icons/128.png"}, d.ActionIcons())
	assert.Equal(t, []string{"public/logo.png"}, d.Icons().Paths())

	devtools, ok := d.DevtoolsPage()
	assert.True(t, ok)
	assert.Equal(t, "devtools/devtools.html", devtools)

	assert.Equal(t, []string{"sandbox/a.html", "sandbox/b.html"}, d.SandboxPages())

	panel, ok := d.SidePanel()
	assert.True(t, ok)
	assert.Equal(t, "sidepanel/index.html", panel)

	options, ok := d.OptionsPage()
	assert.True(t, ok)
	assert.Equal(t, "options/options.html", options)

	assert.Equal(t, map[string]string{"newtab": "newtab/newtab.html"}, d.URLOverrides())

	require.Len(t, d.ContentScripts(), 2)
	assert.Equal(t, []string{"content/a.ts", "content/b.ts"}, d.ContentScripts()[0].JS)
	assert.Equal(t, []string{"content/a.css"}, d.ContentScripts()[0].CSS)
	assert.Equal(t, []string{"content/c.tsx"}, d.ContentScripts()[1].JS)

	assert.Equal(t, []string{"images/*.png"}, d.WebAccessibleResources())

	// firefox-only key is dropped for chrome
	_, ok = d.SidebarPanel()
	assert.False(t, ok)
}

func TestParse_BrowserPrefixedKeys(t *testing.T) {
	d, err := Parse("manifest.json", []byte(mv3Manifest), "firefox")
	require.NoError(t, err)

	panel, ok := d.SidebarPanel()
	require.True(t, ok)
	assert.Equal(t, "sidebar/panel.html", panel)
	assert.Contains(t, d.ActionIcons(), "icons/sidebar.png")
}

func TestParse_PrefixedKeyOverridesPlainKey(t *testing.T) {
	src := `{
	  "background": {"service_worker": "sw.js", "gecko:scripts": ["bg-firefox.js"]},
	  "chromium:background": {"service_worker": "sw-chromium.js"}
	}`

	chrome, err := Parse("m.json", []byte(src), "edge")
	require.NoError(t, err)
	sw, _ := chrome.ServiceWorker()
	assert.Equal(t, "sw-chromium.js", sw)
	assert.Empty(t, chrome.BackgroundScripts())

	firefox, err := Parse("m.json", []byte(src), "firefox")
	require.NoError(t, err)
	sw, _ = firefox.ServiceWorker()
	assert.Equal(t, "sw.js", sw)
	assert.Equal(t, []string{"bg-firefox.js"}, firefox.BackgroundScripts())
}

func TestParse_ExactBrowserPrefixBeatsFamily(t *testing.T) {
	srcs := []string{
		`{"chromium:options_page": "family.html", "chrome:options_page": "exact.html"}`,
		`{"chrome:options_page": "exact.html", "chromium:options_page": "family.html"}`,
	}
	for _, src := range srcs {
		for i := 0; i < 20; i++ {
			d, err := Parse("m.json", []byte(src), "chrome")
			require.NoError(t, err)
			page, ok := d.OptionsPage()
			require.True(t, ok)
			require.Equal(t, "exact.html", page)
		}

		edge, err := Parse("m.json", []byte(src), "edge")
		require.NoError(t, err)
		page, _ := edge.OptionsPage()
		assert.Equal(t, "family.html", page)
	}
}

func TestParse_MV2Shapes(t *testing.T) {
	src := `{
	  "manifest_version": 2,
	  "background": {"scripts": ["bg/one.js", "bg/two.js"]},
	  "browser_action": {
	    "default_popup": "popup.html",
	    "default_icon": "icon.png",
	    "theme_icons": [{"light": "light-16.png", "dark": "dark-16.png", "size": 16}]
	  },
	  "page_action": {"default_popup": "page.html"},
	  "options_page": "options.html",
	  "user_scripts": {"api_script": "api.js"},
	  "web_accessible_resources": ["a.png", "b.html"]
	}`
	d, err := Parse("m.json", []byte(src), "firefox")
	require.NoError(t, err)

	assert.Equal(t, 2, d.ManifestVersion())
	assert.Equal(t, []string{"bg/one.js", "bg/two.js"}, d.BackgroundScripts())
	assert.Equal(t, []string{"popup.html", "page.html"}, d.Popups())
	assert.Equal(t, []string{"icon.png", "light-16.png", "dark-16.png"}, d.ActionIcons())
	assert.Len(t, d.Actions(), 2)

	options, ok := d.OptionsPage()
	assert.True(t, ok)
	assert.Equal(t, "options.html", options)

	api, ok := d.UserScriptAPI()
	assert.True(t, ok)
	assert.Equal(t, "api.js", api)

	assert.Equal(t, []string{"a.png", "b.html"}, d.WebAccessibleResources())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("m.json", []byte(`{"name": `), "chrome")
	var mErr *exterrors.ManifestError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, "m.json", mErr.Path)

	_, err = Parse("m.json", []byte(`[1, 2]`), "chrome")
	require.Error(t, err)

	_, err = Parse("m.json", []byte(`{"content_scripts": {"js": "nope"}}`), "chrome")
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, "content_scripts", mErr.Field)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(mv3Manifest), 0644))

	d, err := LoadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, path, d.Path())
	assert.Equal(t, "chrome", d.Browser())

	_, err = LoadFile(filepath.Join(dir, "missing.json"), "chrome")
	var fErr *exterrors.FileError
	assert.True(t, errors.As(err, &fErr))
}

func TestMatchesBrowser(t *testing.T) {
	tests := []struct {
		prefix, browser string
		want            bool
	}{
		{"chrome", "chrome", true},
		{"chromium", "chrome", true},
		{"chromium", "edge", true},
		{"chromium", "firefox", false},
		{"firefox", "firefox", true},
		{"gecko", "firefox", true},
		{"firefox", "chrome", false},
		{"edge", "chrome", false},
		{"safari", "safari", true},
	}
	for _, tt := range tests {
		t.Run(tt.prefix+"/"+tt.browser, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesBrowser(tt.prefix, tt.browser))
		})
	}
}

func TestStore_ReplaceWholesale(t *testing.T) {
	first, err := Parse("m.json", []byte(`{"devtools_page": "a.html"}`), "chrome")
	require.NoError(t, err)
	second, err := Parse("m.json", []byte(`{"devtools_page": "b.html"}`), "chrome")
	require.NoError(t, err)

	store := NewStore(first)
	assert.Equal(t, uint64(1), store.Generation())

	held := store.Load()
	gen := store.Replace(second)
	assert.Equal(t, uint64(2), gen)

	// a reader holding the old snapshot still sees the old values
	page, _ := held.DevtoolsPage()
	assert.Equal(t, "a.html", page)
	page, _ = store.Load().DevtoolsPage()
	assert.Equal(t, "b.html", page)
}

func TestStore_ConcurrentReaders(t *testing.T) {
	a, _ := Parse("m.json", []byte(`{"devtools_page": "a.html"}`), "chrome")
	b, _ := Parse("m.json", []byte(`{"devtools_page": "b.html"}`), "chrome")
	store := NewStore(a)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				page, ok := store.Load().DevtoolsPage()
				assert.True(t, ok)
				assert.Contains(t, []string{"a.html", "b.html"}, page)
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			store.Replace(b)
		} else {
			store.Replace(a)
		}
	}
	wg.Wait()
}

func TestStore_Empty(t *testing.T) {
	store := NewStore(nil)
	assert.Nil(t, store.Load())
	assert.Equal(t, uint64(0), store.Generation())
}
