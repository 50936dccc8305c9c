package resolver

import (
	"strings"

	"github.com/standardbeagle/extpath/internal/types"
)

// Shape describes where a path sits inside an argument
type Shape uint8

const (
	// ShapeString is a string literal argument (a static template also counts)
	ShapeString Shape = iota
	// ShapeTemplate is a template literal argument; interpolation makes it dynamic
	ShapeTemplate
	// ShapeObjectPath is an options object whose named properties hold paths, or an
	// array of such objects
	ShapeObjectPath
	// ShapeObjectMap is an options object whose named property holds either one path
	// or a size-keyed record of paths
	ShapeObjectMap
)

func (s Shape) String() string {
	switch s {
	case ShapeTemplate:
		return "template"
	case ShapeObjectPath:
		return "object-path"
	case ShapeObjectMap:
		return "object-map"
	default:
		return "string"
	}
}

// ArgSpec names the path-bearing arguments of a call
type ArgSpec struct {
	Indexes    []int // argument positions; nil means every argument
	Shape      Shape
	Properties []string // property names for the object shapes
	Category   types.Category
	// Optional positions may legitimately hold something else (a tab id, a
	// notification id), so identifiers there are not reported when unresolvable
	Optional bool
}

// ApiSignature is one recognized browser API call. Path segments are dotted; a leading
// "ns" matches both chrome and browser.
type ApiSignature struct {
	Path  string
	Arity int
	Args  []ArgSpec
}

// Applies reports whether the spec covers argument position i
func (a ArgSpec) Applies(i int) bool {
	if a.Indexes == nil {
		return true
	}
	for _, idx := range a.Indexes {
		if idx == i {
			return true
		}
	}
	return false
}

func sig(path string, args ...ArgSpec) *ApiSignature {
	return &ApiSignature{Path: path, Arity: strings.Count(path, ".") + 1, Args: args}
}

func objectPath(category types.Category, props ...string) ArgSpec {
	return ArgSpec{Indexes: []int{0}, Shape: ShapeObjectPath, Properties: props, Category: category}
}

// objectPathAfterID covers calls whose optional first argument is an id, shifting the
// options object to position one
func objectPathAfterID(category types.Category, props ...string) ArgSpec {
	return ArgSpec{Indexes: []int{0, 1}, Shape: ShapeObjectPath, Properties: props, Category: category, Optional: true}
}

// signatures is the static table of path-bearing browser APIs
var signatures = []*ApiSignature{
	sig("importScripts", ArgSpec{Shape: ShapeString, Category: types.CategoryScripts}),

	sig("ns.runtime.getURL", ArgSpec{Indexes: []int{0}, Shape: ShapeTemplate, Category: types.CategoryWebResources}),
	sig("ns.extension.getURL", ArgSpec{Indexes: []int{0}, Shape: ShapeTemplate, Category: types.CategoryWebResources}),

	sig("ns.action.setIcon", ArgSpec{Indexes: []int{0}, Shape: ShapeObjectMap, Properties: []string{"path"}, Category: types.CategoryIcons}),
	sig("ns.browserAction.setIcon", ArgSpec{Indexes: []int{0}, Shape: ShapeObjectMap, Properties: []string{"path"}, Category: types.CategoryIcons}),
	sig("ns.pageAction.setIcon", ArgSpec{Indexes: []int{0}, Shape: ShapeObjectMap, Properties: []string{"path"}, Category: types.CategoryIcons}),
	sig("ns.sidebarAction.setIcon", ArgSpec{Indexes: []int{0}, Shape: ShapeObjectMap, Properties: []string{"path"}, Category: types.CategoryIcons}),

	sig("ns.action.setPopup", objectPath(types.CategoryAction, "popup")),
	sig("ns.browserAction.setPopup", objectPath(types.CategoryAction, "popup")),
	sig("ns.pageAction.setPopup", objectPath(types.CategoryAction, "popup")),

	sig("ns.sidePanel.setOptions", objectPath(types.CategorySidePanel, "path")),
	sig("ns.sidebarAction.setPanel", objectPath(types.CategorySidebarAction, "panel")),

	sig("ns.scripting.executeScript", objectPath(types.CategoryScripts, "files")),
	sig("ns.scripting.insertCSS", objectPath(types.CategoryScripts, "files")),
	sig("ns.scripting.removeCSS", objectPath(types.CategoryScripts, "files")),
	sig("ns.scripting.registerContentScripts", objectPath(types.CategoryScripts, "js", "css")),
	sig("ns.scripting.updateContentScripts", objectPath(types.CategoryScripts, "js", "css")),

	sig("ns.tabs.executeScript", objectPathAfterID(types.CategoryScripts, "file")),
	sig("ns.tabs.insertCSS", objectPathAfterID(types.CategoryScripts, "file")),
	sig("ns.tabs.create", objectPath(types.CategoryPages, "url")),
	sig("ns.tabs.update", objectPathAfterID(types.CategoryPages, "url")),
	sig("ns.windows.create", objectPath(types.CategoryPages, "url")),
	sig("ns.offscreen.createDocument", objectPath(types.CategoryPages, "url")),

	sig("ns.notifications.create", objectPathAfterID(types.CategoryIcons, "iconUrl", "imageUrl")),
	sig("ns.notifications.update", objectPathAfterID(types.CategoryIcons, "iconUrl", "imageUrl")),

	sig("ns.devtools.panels.create",
		ArgSpec{Indexes: []int{1}, Shape: ShapeString, Category: types.CategoryIcons},
		ArgSpec{Indexes: []int{2}, Shape: ShapeString, Category: types.CategoryPages},
	),
}

// Signatures returns the recognized API table. The slice must not be modified.
func Signatures() []*ApiSignature {
	return signatures
}
