// Package outputs holds the feature-to-output-path table the resolver consults: for a
// category of manifest feature and a normalized declared path, the path the build emits.
package outputs

import (
	"sort"

	"github.com/standardbeagle/extpath/internal/types"
)

// Table answers "where does the build emit this declared resource".
// Implementations must be safe for concurrent readers.
type Table interface {
	Resolve(category types.Category, path string) (string, bool)
}

// Lister is implemented by tables that can enumerate the paths a lookup would accept.
// It feeds "did you mean" suggestions for unresolved paths.
type Lister interface {
	Known(category types.Category) []string
}

// Entry is one declared-path to output-path mapping
type Entry struct {
	Category types.Category `toml:"category" json:"category"`
	Declared string         `toml:"declared" json:"declared"`
	Output   string         `toml:"output" json:"output"`
}

var htmlCategories = []types.Category{
	types.CategoryAction,
	types.CategoryDevtools,
	types.CategorySandbox,
	types.CategorySidePanel,
	types.CategorySidebarAction,
	types.CategoryOptions,
	types.CategoryURLOverrides,
	types.CategoryBackground,
	types.CategoryPages,
}

var scriptCategories = []types.Category{
	types.CategoryContentScripts,
	types.CategoryBackground,
	types.CategoryUserScripts,
	types.CategoryScripts,
}

// families lists, per lookup category, the concrete buckets searched in order.
// Categories without an entry search only themselves.
var families = map[types.Category][]types.Category{
	types.CategoryPages:         htmlCategories,
	types.CategoryScripts:       scriptCategories,
	types.CategoryAction:        {types.CategoryAction, types.CategoryPages},
	types.CategorySidePanel:     {types.CategorySidePanel, types.CategoryPages},
	types.CategorySidebarAction: {types.CategorySidebarAction, types.CategoryPages},
	types.CategoryWebResources:  append(append([]types.Category{}, types.AllCategories...), types.CategoryWebResources),
}

// Family returns the buckets a lookup for category searches
func Family(category types.Category) []types.Category {
	if fam, ok := families[category]; ok {
		return fam
	}
	return []types.Category{category}
}

// MapTable is the in-memory Table built by the Planner or loaded from a plan file.
// It is immutable once built; Add is only called while constructing it.
type MapTable struct {
	declared map[types.Category]map[string]string
	emitted  map[types.Category]map[string]struct{}
	public   map[string]struct{}
}

// NewMapTable creates an empty table
func NewMapTable() *MapTable {
	return &MapTable{
		declared: make(map[types.Category]map[string]string),
		emitted:  make(map[types.Category]map[string]struct{}),
		public:   make(map[string]struct{}),
	}
}

// Add records that declared (already normalized) is emitted at output within category.
// The output path also resolves to itself so already-rewritten source is stable.
func (t *MapTable) Add(category types.Category, declared, output string) {
	if declared == "" || output == "" {
		return
	}
	if t.declared[category] == nil {
		t.declared[category] = make(map[string]string)
		t.emitted[category] = make(map[string]struct{})
	}
	if _, exists := t.declared[category][declared]; !exists {
		t.declared[category][declared] = output
	}
	t.emitted[category][output] = struct{}{}
}

// AddPublic records an asset copied verbatim from the public root to the output root
func (t *MapTable) AddPublic(path string) {
	if path != "" {
		t.public[path] = struct{}{}
	}
}

// Resolve implements Table. Declared paths win over output identities, and public
// assets are visible from every category.
func (t *MapTable) Resolve(category types.Category, path string) (string, bool) {
	fam := Family(category)
	for _, c := range fam {
		if out, ok := t.declared[c][path]; ok {
			return out, true
		}
	}
	for _, c := range fam {
		if _, ok := t.emitted[c][path]; ok {
			return path, true
		}
	}
	if _, ok := t.public[path]; ok {
		return path, true
	}
	return "", false
}

// Known implements Lister
func (t *MapTable) Known(category types.Category) []string {
	seen := make(map[string]struct{})
	for _, c := range Family(category) {
		for k := range t.declared[c] {
			seen[k] = struct{}{}
		}
		for k := range t.emitted[c] {
			seen[k] = struct{}{}
		}
	}
	for k := range t.public {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Entries returns every declared mapping sorted by category then declared path.
// Public assets are returned separately by PublicAssets.
func (t *MapTable) Entries() []Entry {
	var out []Entry
	for c, m := range t.declared {
		for d, o := range m {
			out = append(out, Entry{Category: c, Declared: d, Output: o})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Declared < out[j].Declared
	})
	return out
}

// PublicAssets returns the public-root assets in sorted order
func (t *MapTable) PublicAssets() []string {
	out := make([]string, 0, len(t.public))
	for k := range t.public {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of declared mappings plus public assets
func (t *MapTable) Len() int {
	n := len(t.public)
	for _, m := range t.declared {
		n += len(m)
	}
	return n
}
