// Package manifest loads the extension manifest once per build and exposes typed
// lookups for every field that can hold a user-declared resource path.
//
// A Descriptor is an immutable snapshot. When the manifest changes the host loads a
// new Descriptor and swaps it into a Store wholesale; readers holding the old
// snapshot keep a consistent view.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	exterrors "github.com/standardbeagle/extpath/internal/errors"
	"github.com/standardbeagle/extpath/internal/types"
)

// IconSet maps a size key ("16", "32", ...) to an icon path.
// A manifest that declares a single icon string is stored under the empty key.
type IconSet map[string]string

// UnmarshalJSON accepts either a bare path or a size-keyed record
func (s *IconSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var path string
		if err := json.Unmarshal(data, &path); err != nil {
			return err
		}
		*s = IconSet{"": path}
		return nil
	}
	var record map[string]string
	if err := json.Unmarshal(data, &record); err != nil {
		return err
	}
	*s = IconSet(record)
	return nil
}

// Paths returns the icon paths ordered by numeric size key
func (s IconSet) Paths() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		if s[k] != "" {
			paths = append(paths, s[k])
		}
	}
	return paths
}

// ThemeIcon is one light/dark icon pair (Firefox theme_icons)
type ThemeIcon struct {
	Light string `json:"light"`
	Dark  string `json:"dark"`
	Size  int    `json:"size"`
}

// Background holds the background entry for either schema version
type Background struct {
	ServiceWorker string   `json:"service_worker"`
	Scripts       []string `json:"scripts"`
	Page          string   `json:"page"`
}

// Action covers action (MV3), browser_action and page_action (MV2)
type Action struct {
	DefaultPopup string      `json:"default_popup"`
	DefaultIcon  IconSet     `json:"default_icon"`
	ThemeIcons   []ThemeIcon `json:"theme_icons"`
}

// SidebarAction is the Gecko sidebar declaration
type SidebarAction struct {
	DefaultPanel string  `json:"default_panel"`
	DefaultIcon  IconSet `json:"default_icon"`
}

// ContentScript is one indexed content_scripts group
type ContentScript struct {
	Matches []string `json:"matches"`
	JS      []string `json:"js"`
	CSS     []string `json:"css"`
}

type sandbox struct {
	Pages []string `json:"pages"`
}

type sidePanel struct {
	DefaultPath string `json:"default_path"`
}

type userScripts struct {
	APIScript string `json:"api_script"`
}

type optionsUI struct {
	Page string `json:"page"`
}

// rawManifest mirrors the subset of manifest.json the resolver reads
type rawManifest struct {
	ManifestVersion        int               `json:"manifest_version"`
	Name                   string            `json:"name"`
	Background             *Background       `json:"background"`
	Action                 *Action           `json:"action"`
	BrowserAction          *Action           `json:"browser_action"`
	PageAction             *Action           `json:"page_action"`
	Icons                  IconSet           `json:"icons"`
	DevtoolsPage           string            `json:"devtools_page"`
	Sandbox                *sandbox          `json:"sandbox"`
	SidePanel              *sidePanel        `json:"side_panel"`
	SidebarAction          *SidebarAction    `json:"sidebar_action"`
	ContentScripts         []ContentScript   `json:"content_scripts"`
	UserScripts            *userScripts      `json:"user_scripts"`
	OptionsUI              *optionsUI        `json:"options_ui"`
	OptionsPage            string            `json:"options_page"`
	ChromeURLOverrides     map[string]string `json:"chrome_url_overrides"`
	WebAccessibleResources json.RawMessage   `json:"web_accessible_resources"`
}

// Descriptor is an immutable per-build manifest snapshot. Callers must not mutate
// the slices or maps it returns.
type Descriptor struct {
	path    string
	browser string
	raw     rawManifest
	war     []string
}

// Parse builds a Descriptor from manifest bytes for the target browser.
// Browser-prefixed keys ("firefox:sidebar_action") are folded for the target
// and dropped for every other browser.
func Parse(path string, data []byte, browser string) (*Descriptor, error) {
	if browser == "" {
		browser = types.DefaultBrowser
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, exterrors.NewManifestError(path, "", err)
	}
	root, ok := generic.(map[string]any)
	if !ok {
		return nil, exterrors.NewManifestError(path, "", fmt.Errorf("top level is %T, expected an object", generic))
	}

	folded, err := json.Marshal(foldBrowserKeys(root, browser))
	if err != nil {
		return nil, exterrors.NewManifestError(path, "", err)
	}

	d := &Descriptor{path: path, browser: browser}
	if err := json.Unmarshal(folded, &d.raw); err != nil {
		return nil, exterrors.NewManifestError(path, fieldOf(err), err)
	}
	d.war = parseWebAccessibleResources(d.raw.WebAccessibleResources)
	return d, nil
}

// LoadFile reads and parses the manifest at path
func LoadFile(path, browser string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, exterrors.NewFileError("read manifest", path, err)
	}
	return Parse(path, data, browser)
}

func fieldOf(err error) string {
	if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
		return typeErr.Field
	}
	return ""
}

// parseWebAccessibleResources accepts the MV2 string list and the MV3 record list
func parseWebAccessibleResources(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}
	var records []struct {
		Resources []string `json:"resources"`
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil
	}
	var out []string
	for _, r := range records {
		out = append(out, r.Resources...)
	}
	return out
}

// Path returns the manifest file the descriptor was read from
func (d *Descriptor) Path() string { return d.path }

// Browser returns the target browser the descriptor was folded for
func (d *Descriptor) Browser() string { return d.browser }

// ManifestVersion returns 2 or 3, or 0 when absent
func (d *Descriptor) ManifestVersion() int { return d.raw.ManifestVersion }

// Name returns the extension name as declared
func (d *Descriptor) Name() string { return d.raw.Name }

// ServiceWorker returns background.service_worker
func (d *Descriptor) ServiceWorker() (string, bool) {
	if d.raw.Background == nil || d.raw.Background.ServiceWorker == "" {
		return "", false
	}
	return d.raw.Background.ServiceWorker, true
}

// BackgroundScripts returns background.scripts
func (d *Descriptor) BackgroundScripts() []string {
	if d.raw.Background == nil {
		return nil
	}
	return d.raw.Background.Scripts
}

// BackgroundPage returns background.page
func (d *Descriptor) BackgroundPage() (string, bool) {
	if d.raw.Background == nil || d.raw.Background.Page == "" {
		return "", false
	}
	return d.raw.Background.Page, true
}

// Actions returns the declared action, browser_action and page_action blocks keyed by
// manifest field name
func (d *Descriptor) Actions() map[string]*Action {
	out := make(map[string]*Action, 3)
	if d.raw.Action != nil {
		out["action"] = d.raw.Action
	}
	if d.raw.BrowserAction != nil {
		out["browser_action"] = d.raw.BrowserAction
	}
	if d.raw.PageAction != nil {
		out["page_action"] = d.raw.PageAction
	}
	return out
}

// Popups returns every declared action popup page in field order
func (d *Descriptor) Popups() []string {
	var out []string
	for _, a := range []*Action{d.raw.Action, d.raw.BrowserAction, d.raw.PageAction} {
		if a != nil && a.DefaultPopup != "" {
			out = append(out, a.DefaultPopup)
		}
	}
	return out
}

// Icons returns the top-level icons record
func (d *Descriptor) Icons() IconSet { return d.raw.Icons }

// ActionIcons returns every icon path declared on action-like blocks, including
// theme_icons light/dark pairs
func (d *Descriptor) ActionIcons() []string {
	var out []string
	for _, a := range []*Action{d.raw.Action, d.raw.BrowserAction, d.raw.PageAction} {
		if a == nil {
			continue
		}
		out = append(out, a.DefaultIcon.Paths()...)
		for _, ti := range a.ThemeIcons {
			if ti.Light != "" {
				out = append(out, ti.Light)
			}
			if ti.Dark != "" {
				out = append(out, ti.Dark)
			}
		}
	}
	if d.raw.SidebarAction != nil {
		out = append(out, d.raw.SidebarAction.DefaultIcon.Paths()...)
	}
	return out
}

// DevtoolsPage returns devtools_page
func (d *Descriptor) DevtoolsPage() (string, bool) {
	return d.raw.DevtoolsPage, d.raw.DevtoolsPage != ""
}

// SandboxPages returns sandbox.pages in declaration order
func (d *Descriptor) SandboxPages() []string {
	if d.raw.Sandbox == nil {
		return nil
	}
	return d.raw.Sandbox.Pages
}

// SidePanel returns side_panel.default_path
func (d *Descriptor) SidePanel() (string, bool) {
	if d.raw.SidePanel == nil || d.raw.SidePanel.DefaultPath == "" {
		return "", false
	}
	return d.raw.SidePanel.DefaultPath, true
}

// SidebarPanel returns sidebar_action.default_panel
func (d *Descriptor) SidebarPanel() (string, bool) {
	if d.raw.SidebarAction == nil || d.raw.SidebarAction.DefaultPanel == "" {
		return "", false
	}
	return d.raw.SidebarAction.DefaultPanel, true
}

// ContentScripts returns the indexed content_scripts groups
func (d *Descriptor) ContentScripts() []ContentScript { return d.raw.ContentScripts }

// UserScriptAPI returns user_scripts.api_script
func (d *Descriptor) UserScriptAPI() (string, bool) {
	if d.raw.UserScripts == nil || d.raw.UserScripts.APIScript == "" {
		return "", false
	}
	return d.raw.UserScripts.APIScript, true
}

// OptionsPage returns options_ui.page, falling back to options_page
func (d *Descriptor) OptionsPage() (string, bool) {
	if d.raw.OptionsUI != nil && d.raw.OptionsUI.Page != "" {
		return d.raw.OptionsUI.Page, true
	}
	return d.raw.OptionsPage, d.raw.OptionsPage != ""
}

// URLOverrides returns chrome_url_overrides (newtab, history, bookmarks)
func (d *Descriptor) URLOverrides() map[string]string { return d.raw.ChromeURLOverrides }

// WebAccessibleResources returns the flattened resource patterns of either schema version
func (d *Descriptor) WebAccessibleResources() []string { return d.war }

// foldBrowserKeys resolves "browser:key" entries at every object level.
// A matching prefixed key overrides its unprefixed sibling.
func foldBrowserKeys(obj map[string]any, browser string) map[string]any {
	out := make(map[string]any, len(obj))
	type candidate struct {
		value any
		exact bool
	}
	prefixed := make(map[string]candidate)

	for key, value := range obj {
		value = foldValue(value, browser)
		prefix, name, ok := strings.Cut(key, ":")
		if !ok || name == "" {
			out[key] = value
			continue
		}
		if !MatchesBrowser(prefix, browser) {
			continue
		}
		// chrome:x beats chromium:x for chrome whatever the key order
		exact := prefix == browser
		if prev, seen := prefixed[name]; seen && prev.exact && !exact {
			continue
		}
		prefixed[name] = candidate{value: value, exact: exact}
	}
	for name, c := range prefixed {
		out[name] = c.value
	}
	return out
}

func foldValue(value any, browser string) any {
	switch v := value.(type) {
	case map[string]any:
		return foldBrowserKeys(v, browser)
	case []any:
		for i := range v {
			v[i] = foldValue(v[i], browser)
		}
		return v
	default:
		return value
	}
}

// chromiumFamily lists browsers that honor "chromium:" prefixed keys
var chromiumFamily = map[string]bool{
	"chrome": true, "chromium": true, "edge": true, "brave": true, "opera": true, "vivaldi": true,
}

// geckoFamily lists browsers that honor "gecko:" prefixed keys
var geckoFamily = map[string]bool{
	"firefox": true, "gecko": true,
}

// MatchesBrowser reports whether a manifest key prefix applies to the target browser
func MatchesBrowser(prefix, browser string) bool {
	switch {
	case prefix == browser:
		return true
	case prefix == "chromium":
		return chromiumFamily[browser]
	case prefix == "gecko" || prefix == "firefox":
		return geckoFamily[browser]
	default:
		return false
	}
}

// KnownBrowser reports whether the browser name is a supported build target
func KnownBrowser(browser string) bool {
	return chromiumFamily[browser] || geckoFamily[browser]
}
