// Package jsast is the reduced syntax tree the resolver pattern-matches. It keeps only
// what path rewriting needs (scopes, bindings, calls and literals) with exact byte spans
// into the original text. Everything else collapses into Other, which only carries the
// children worth visiting.
//
// Trees are immutable after the parser builds them.
package jsast

import "github.com/standardbeagle/extpath/internal/types"

// Node is the closed set of node kinds. The unexported method seals the union so a type
// switch over these kinds plus a default arm is exhaustive.
type Node interface {
	isNode()
	Span() types.Span
}

func (*Block) isNode()    {}
func (*VarDecl) isNode()  {}
func (*Assign) isNode()   {}
func (*Call) isNode()     {}
func (*Ident) isNode()    {}
func (*String) isNode()   {}
func (*Template) isNode() {}
func (*Object) isNode()   {}
func (*Array) isNode()    {}
func (*Other) isNode()    {}

// Block is a lexical scope. Function marks a function body (or the program), which is
// the boundary the symbol tracker never looks past.
type Block struct {
	Loc      types.Span
	Function bool
	Body     []Node
}

// DeclKind distinguishes var (function scoped) from let/const (block scoped)
type DeclKind uint8

const (
	DeclVar DeclKind = iota
	DeclLet
	DeclConst
)

func (k DeclKind) String() string {
	switch k {
	case DeclLet:
		return "let"
	case DeclConst:
		return "const"
	default:
		return "var"
	}
}

// VarDecl is one `name = value` declarator. Value is nil for `let x;`.
type VarDecl struct {
	Loc   types.Span
	Kind  DeclKind
	Name  string
	Value Node
}

// Assign is `name = value` where the target is a plain identifier
type Assign struct {
	Loc   types.Span
	Name  string
	Value Node
}

// Call is a call expression. Chain holds the dotted callee names when the callee is an
// identifier or a member chain of static names, nil otherwise. Callee is set only when
// the callee has children worth visiting (nested calls, function expressions).
type Call struct {
	Loc    types.Span
	Chain  []string
	Callee Node
	Args   []Node
}

// Ident is an identifier reference
type Ident struct {
	Loc  types.Span
	Name string
}

// String is a quoted string literal. Loc covers the quotes; Value is the decoded text.
type String struct {
	Loc   types.Span
	Quote byte
	Value string
}

// Template is a template literal. Value is the cooked text when there is no
// interpolation; Substitutions holds the interpolated expressions otherwise.
type Template struct {
	Loc           types.Span
	Value         string
	Substitutions []Node
}

// Dynamic reports whether the template interpolates anything
func (t *Template) Dynamic() bool { return len(t.Substitutions) > 0 }

// Object is an object literal
type Object struct {
	Loc   types.Span
	Props []*Property
}

// Property is one object entry. Key is empty for computed keys that are not a literal;
// Value is nil for spreads and methods, whose contents go to Other.
type Property struct {
	Loc      types.Span
	Key      string
	Computed bool
	Value    Node
	Other    Node
}

// Lookup returns the last property with the given static key, as JavaScript does for
// duplicate keys
func (o *Object) Lookup(key string) (*Property, bool) {
	for i := len(o.Props) - 1; i >= 0; i-- {
		p := o.Props[i]
		if p.Key == key && p.Value != nil {
			return p, true
		}
	}
	return nil, false
}

// Array is an array literal. Holes are omitted.
type Array struct {
	Loc   types.Span
	Elems []Node
}

// Other is the default arm: any construct the resolver does not interpret.
// Children are the nested nodes that may still contain scopes or calls.
type Other struct {
	Loc      types.Span
	Kind     string
	Children []Node
}

func (n *Block) Span() types.Span    { return n.Loc }
func (n *VarDecl) Span() types.Span  { return n.Loc }
func (n *Assign) Span() types.Span   { return n.Loc }
func (n *Call) Span() types.Span     { return n.Loc }
func (n *Ident) Span() types.Span    { return n.Loc }
func (n *String) Span() types.Span   { return n.Loc }
func (n *Template) Span() types.Span { return n.Loc }
func (n *Object) Span() types.Span   { return n.Loc }
func (n *Array) Span() types.Span    { return n.Loc }
func (n *Other) Span() types.Span    { return n.Loc }

// IsLiteral reports whether n is a value the symbol tracker may bind: a string, a
// template, an object or an array literal.
func IsLiteral(n Node) bool {
	switch n.(type) {
	case *String, *Template, *Object, *Array:
		return true
	default:
		return false
	}
}

// Children returns the direct children of n in source order
func Children(n Node) []Node {
	switch n := n.(type) {
	case *Block:
		return n.Body
	case *VarDecl:
		return nonNil(n.Value)
	case *Assign:
		return nonNil(n.Value)
	case *Call:
		return append(nonNil(n.Callee), n.Args...)
	case *Template:
		return n.Substitutions
	case *Object:
		var out []Node
		for _, p := range n.Props {
			if p.Value != nil {
				out = append(out, p.Value)
			}
			if p.Other != nil {
				out = append(out, p.Other)
			}
		}
		return out
	case *Array:
		return n.Elems
	case *Other:
		return n.Children
	default:
		return nil
	}
}

// Inspect traverses the tree depth-first in source order, calling fn for each node.
// Returning false from fn skips the node's children.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, fn)
	}
}

func nonNil(n Node) []Node {
	if n == nil {
		return nil
	}
	return []Node{n}
}
