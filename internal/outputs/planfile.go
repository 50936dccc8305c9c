package outputs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/extpath/internal/types"
	"github.com/standardbeagle/extpath/pkg/pathutil"
)

// PlanFile is the on-disk shape of an externally computed output table.
//
//	public = ["logo.png", "fonts/a.woff2"]
//
//	[[entry]]
//	category = "action"
//	declared = "popup/index.html"
//	output   = "action/index.html"
type PlanFile struct {
	Public  []string `toml:"public" json:"public"`
	Entries []Entry  `toml:"entry" json:"entries"`
}

// LoadPlanFile reads a TOML or JSON plan (chosen by extension) into a table
func LoadPlanFile(path string) (*MapTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	var pf PlanFile
	if isJSON(path) {
		err = json.Unmarshal(data, &pf)
	} else {
		err = toml.Unmarshal(data, &pf)
	}
	if err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", path, err)
	}
	return pf.Table()
}

// Table converts the plan into a MapTable, normalizing declared paths the same way the
// resolver normalizes source literals.
func (pf *PlanFile) Table() (*MapTable, error) {
	t := NewMapTable()
	for _, p := range pf.Public {
		clean, _ := pathutil.NormalizeResourcePath(p, "")
		t.AddPublic(clean)
	}
	for i, e := range pf.Entries {
		if e.Category == "" || e.Declared == "" || e.Output == "" {
			return nil, fmt.Errorf("plan entry %d: category, declared and output are required", i)
		}
		if !validCategory(e.Category) {
			return nil, fmt.Errorf("plan entry %d: unknown category %q", i, e.Category)
		}
		declared, _ := pathutil.NormalizeResourcePath(e.Declared, "")
		output, _ := pathutil.NormalizeResourcePath(e.Output, "")
		t.Add(e.Category, declared, output)
	}
	return t, nil
}

// EncodePlan renders a table as a plan file, TOML unless asJSON is set
func EncodePlan(t *MapTable, asJSON bool) ([]byte, error) {
	pf := PlanFile{Public: t.PublicAssets(), Entries: t.Entries()}
	if asJSON {
		return json.MarshalIndent(pf, "", "  ")
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(pf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func validCategory(c types.Category) bool {
	if c == types.CategoryWebResources {
		return true
	}
	for _, known := range types.AllCategories {
		if c == known {
			return true
		}
	}
	return false
}
