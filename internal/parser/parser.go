// Package parser turns JavaScript, TypeScript and TSX source into the reduced jsast tree.
// Parsing uses tree-sitter grammars; parsers are pooled per dialect because a
// tree_sitter.Parser is not safe for concurrent use but is expensive to create.
package parser

import (
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/standardbeagle/extpath/internal/debug"
	"github.com/standardbeagle/extpath/internal/errors"
	"github.com/standardbeagle/extpath/internal/jsast"
)

// Dialect selects the grammar used for a file
type Dialect string

const (
	DialectJavaScript Dialect = "javascript"
	DialectTypeScript Dialect = "typescript"
	DialectTSX        Dialect = "tsx"
)

// DialectFor picks the dialect from a file extension. Unknown extensions fall back to
// JavaScript and report false.
func DialectFor(path string) (Dialect, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return DialectJavaScript, true
	case ".ts", ".mts", ".cts":
		return DialectTypeScript, true
	case ".tsx":
		return DialectTSX, true
	default:
		return DialectJavaScript, false
	}
}

// IsSourceFile reports whether path has an extension the parser understands
func IsSourceFile(path string) bool {
	_, ok := DialectFor(path)
	return ok
}

// parserPoolData holds the pool and grammar for one dialect
type parserPoolData struct {
	pool     sync.Pool
	once     sync.Once
	language func() unsafe.Pointer
}

// Dialect-specific parser pools so parallel workers never share a parser
var parserPools = map[Dialect]*parserPoolData{
	DialectJavaScript: {language: tree_sitter_javascript.Language},
	DialectTypeScript: {language: tree_sitter_typescript.LanguageTypescript},
	DialectTSX:        {language: tree_sitter_typescript.LanguageTSX},
}

// getParser returns a parser from the dialect's pool. Callers must release it with
// releaseParser.
func getParser(dialect Dialect) *tree_sitter.Parser {
	data := parserPools[dialect]
	data.once.Do(func() {
		language := tree_sitter.NewLanguage(data.language())
		data.pool.New = func() any {
			p := tree_sitter.NewParser()
			if err := p.SetLanguage(language); err != nil {
				debug.Log("PARSER", "set language %s: %v\n", dialect, err)
			}
			return p
		}
	})
	return data.pool.Get().(*tree_sitter.Parser)
}

func releaseParser(dialect Dialect, p *tree_sitter.Parser) {
	if p != nil {
		parserPools[dialect].pool.Put(p)
	}
}

// Parse parses src and converts it to a jsast tree rooted at the program block.
// Any syntax error fails the whole file with an *errors.ParseFailure.
func Parse(path string, src []byte) (*jsast.Block, error) {
	dialect, _ := DialectFor(path)

	p := getParser(dialect)
	tree := p.Parse(src, nil)
	releaseParser(dialect, p)
	if tree == nil {
		return nil, errors.NewParseFailure(path, string(dialect), 0, 0, errors.ErrSyntax)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line, col := 0, 0
		if bad := firstError(root); bad != nil {
			pos := bad.StartPosition()
			line, col = int(pos.Row)+1, int(pos.Column)+1
		}
		return nil, errors.NewParseFailure(path, string(dialect), line, col, errors.ErrSyntax)
	}

	c := &converter{src: src}
	return c.program(root), nil
}

// firstError finds the earliest ERROR or MISSING node in document order
func firstError(n *tree_sitter.Node) *tree_sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || !(child.HasError() || child.IsMissing()) {
			continue
		}
		if bad := firstError(child); bad != nil {
			return bad
		}
	}
	return nil
}
