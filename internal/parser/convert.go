package parser

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/extpath/internal/jsast"
	"github.com/standardbeagle/extpath/internal/types"
)

// converter lowers a tree-sitter CST into jsast. Kinds the resolver does not interpret
// become jsast.Other holding only their interesting children; leaves with nothing to
// visit are dropped.
type converter struct {
	src []byte
}

// Subtrees that can never hold a call or a binding
var skippedKinds = map[string]bool{
	"comment":                true,
	"hash_bang_line":         true,
	"regex":                  true,
	"number":                 true,
	"true":                   true,
	"false":                  true,
	"null":                   true,
	"undefined":              true,
	"this":                   true,
	"super":                  true,
	"type_annotation":        true,
	"type_arguments":         true,
	"type_parameters":        true,
	"type_alias_declaration": true,
	"interface_declaration":  true,
	"ambient_declaration":    true,
	"import_statement":       true,
	"property_identifier":    true,
	"statement_identifier":   true,
	"jsx_text":               true,
}

// Function-like kinds open a scope the symbol tracker never looks past
var functionKinds = map[string]bool{
	"function_declaration":           true,
	"function_expression":            true,
	"function":                       true,
	"generator_function_declaration": true,
	"generator_function":             true,
	"arrow_function":                 true,
	"method_definition":              true,
	"class_static_block":             true,
}

// Block-like kinds open a lexical scope
var blockKinds = map[string]bool{
	"statement_block": true,
	"for_statement":   true,
	"switch_body":     true,
	"class_body":      true,
	"with_statement":  true,
	"module":          true,
	"internal_module": true,
}

// Expression wrappers that are transparent for path extraction
var wrapperKinds = map[string]bool{
	"parenthesized_expression": true,
	"as_expression":            true,
	"satisfies_expression":     true,
	"non_null_expression":      true,
	"type_assertion":           true,
}

func (c *converter) span(n *tree_sitter.Node) types.Span {
	return types.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

func (c *converter) text(n *tree_sitter.Node) string {
	return string(c.src[n.StartByte():n.EndByte()])
}

func (c *converter) program(root *tree_sitter.Node) *jsast.Block {
	return &jsast.Block{
		Loc:      c.span(root),
		Function: true,
		Body:     c.children(root),
	}
}

// children converts every named child of n, dropping nil results
func (c *converter) children(n *tree_sitter.Node) []jsast.Node {
	var out []jsast.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if child := c.convert(n.NamedChild(i)); child != nil {
			out = append(out, child)
		}
	}
	return out
}

func (c *converter) convert(n *tree_sitter.Node) jsast.Node {
	if n == nil {
		return nil
	}
	kind := n.Kind()
	switch kind {
	case "for_in_statement":
		return c.forIn(n)
	case "catch_clause":
		return c.catch(n)
	case "member_expression":
		// value satisfies ns.Type parses as (value satisfies ns).Type
		if wrapper := c.typeAssertedObject(n); wrapper != nil {
			return c.unwrap(wrapper)
		}
	}

	switch {
	case skippedKinds[kind]:
		return nil
	case functionKinds[kind]:
		return c.function(n)
	case blockKinds[kind]:
		return &jsast.Block{Loc: c.span(n), Body: c.children(n)}
	case wrapperKinds[kind]:
		return c.unwrap(n)
	}

	switch kind {
	case "lexical_declaration", "variable_declaration":
		return c.declaration(n)
	case "assignment_expression", "augmented_assignment_expression":
		return c.assignment(n)
	case "call_expression":
		return c.call(n)
	case "identifier", "shorthand_property_identifier":
		return &jsast.Ident{Loc: c.span(n), Name: c.text(n)}
	case "string":
		return c.string(n)
	case "template_string":
		return c.template(n)
	case "object":
		return c.object(n)
	case "array":
		return c.array(n)
	}
	return c.other(n)
}

func (c *converter) other(n *tree_sitter.Node) jsast.Node {
	children := c.children(n)
	if len(children) == 0 {
		return nil
	}
	return &jsast.Other{Loc: c.span(n), Kind: n.Kind(), Children: children}
}

// function flattens the body's statement block into the function scope so parameters
// and body share one scope
func (c *converter) function(n *tree_sitter.Node) jsast.Node {
	fn := &jsast.Block{Loc: c.span(n), Function: true}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child.Kind() == "statement_block" {
			fn.Body = append(fn.Body, c.children(child)...)
			continue
		}
		if conv := c.convert(child); conv != nil {
			fn.Body = append(fn.Body, conv)
		}
	}
	return fn
}

// unwrap returns the wrapped expression of a parenthesized or type-level wrapper
func (c *converter) unwrap(n *tree_sitter.Node) jsast.Node {
	var inner *tree_sitter.Node
	if n.Kind() == "type_assertion" {
		// <T>expr keeps the expression last
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			if child := n.NamedChild(uint(i)); child.Kind() != "comment" {
				inner = child
				break
			}
		}
	} else {
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if child := n.NamedChild(i); child.Kind() != "comment" {
				inner = child
				break
			}
		}
	}
	return c.convert(inner)
}

func (c *converter) declaration(n *tree_sitter.Node) jsast.Node {
	kind := jsast.DeclVar
	if n.Kind() == "lexical_declaration" {
		kind = jsast.DeclLet
		if first := n.Child(0); first != nil && c.text(first) == "const" {
			kind = jsast.DeclConst
		}
	}

	var decls []jsast.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child.Kind() != "variable_declarator" {
			continue
		}
		if d := c.declarator(child, kind); d != nil {
			decls = append(decls, d)
		}
	}
	switch len(decls) {
	case 0:
		return nil
	case 1:
		return decls[0]
	default:
		return &jsast.Other{Loc: c.span(n), Kind: n.Kind(), Children: decls}
	}
}

func (c *converter) declarator(n *tree_sitter.Node, kind jsast.DeclKind) jsast.Node {
	name := n.ChildByFieldName("name")
	value := c.convert(n.ChildByFieldName("value"))
	if name == nil {
		return value
	}
	if name.Kind() != "identifier" {
		// Destructured names shadow outer bindings but carry no value the tracker can follow
		children := nonNil(value)
		children = c.patternBindings(name, func(id *tree_sitter.Node) jsast.Node {
			return &jsast.VarDecl{Loc: c.span(id), Kind: kind, Name: c.text(id), Value: c.opaque(id)}
		}, children)
		if len(children) == 0 {
			return nil
		}
		return &jsast.Other{Loc: c.span(n), Kind: n.Kind(), Children: children}
	}
	return &jsast.VarDecl{Loc: c.span(n), Kind: kind, Name: c.text(name), Value: value}
}

// opaque stands in for a value only known at runtime
func (c *converter) opaque(n *tree_sitter.Node) jsast.Node {
	return &jsast.Other{Loc: c.span(n), Kind: n.Kind()}
}

// patternBindings appends a binding node for every name a destructuring pattern
// introduces, plus any default-value expressions, in source order
func (c *converter) patternBindings(n *tree_sitter.Node, bind func(*tree_sitter.Node) jsast.Node, out []jsast.Node) []jsast.Node {
	if n == nil {
		return out
	}
	switch n.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		return append(out, bind(n))
	case "pair_pattern":
		return c.patternBindings(n.ChildByFieldName("value"), bind, out)
	case "assignment_pattern", "object_assignment_pattern":
		out = append(out, nonNil(c.convert(n.ChildByFieldName("right")))...)
		return c.patternBindings(n.ChildByFieldName("left"), bind, out)
	case "object_pattern", "array_pattern", "rest_pattern":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			out = c.patternBindings(n.NamedChild(i), bind, out)
		}
	}
	return out
}

// declKind maps a for-in/of `kind` keyword to a declaration kind. ok is false when the
// loop writes to an existing name.
func (c *converter) declKind(n *tree_sitter.Node) (jsast.DeclKind, bool) {
	if n == nil {
		return jsast.DeclVar, false
	}
	switch c.text(n) {
	case "let":
		return jsast.DeclLet, true
	case "const":
		return jsast.DeclConst, true
	default:
		return jsast.DeclVar, true
	}
}

// forIn opens the loop scope with the iterated expression first, then the loop
// variables bound to runtime values, then the body
func (c *converter) forIn(n *tree_sitter.Node) jsast.Node {
	block := &jsast.Block{Loc: c.span(n)}
	block.Body = append(block.Body, nonNil(c.convert(n.ChildByFieldName("value")))...)
	block.Body = append(block.Body, nonNil(c.convert(n.ChildByFieldName("right")))...)

	kind, declared := c.declKind(n.ChildByFieldName("kind"))
	bind := func(id *tree_sitter.Node) jsast.Node {
		if declared {
			return &jsast.VarDecl{Loc: c.span(id), Kind: kind, Name: c.text(id), Value: c.opaque(id)}
		}
		return &jsast.Assign{Loc: c.span(id), Name: c.text(id), Value: c.opaque(id)}
	}
	if left := n.ChildByFieldName("left"); left != nil {
		if left.Kind() == "identifier" || isPattern(left.Kind()) {
			block.Body = c.patternBindings(left, bind, block.Body)
		} else if conv := c.convert(left); conv != nil {
			block.Body = append(block.Body, conv)
		}
	}
	block.Body = append(block.Body, nonNil(c.convert(n.ChildByFieldName("body")))...)
	return block
}

// catch shares one scope between the parameter and the handler body
func (c *converter) catch(n *tree_sitter.Node) jsast.Node {
	block := &jsast.Block{Loc: c.span(n)}
	block.Body = c.patternBindings(n.ChildByFieldName("parameter"), func(id *tree_sitter.Node) jsast.Node {
		return &jsast.VarDecl{Loc: c.span(id), Kind: jsast.DeclLet, Name: c.text(id), Value: c.opaque(id)}
	}, nil)
	if body := n.ChildByFieldName("body"); body != nil {
		block.Body = append(block.Body, c.children(body)...)
	}
	return block
}

func isPattern(kind string) bool {
	return kind == "object_pattern" || kind == "array_pattern"
}

// typeAssertedObject finds an as/satisfies expression at the head of a member chain
func (c *converter) typeAssertedObject(n *tree_sitter.Node) *tree_sitter.Node {
	for obj := n.ChildByFieldName("object"); obj != nil; obj = obj.ChildByFieldName("object") {
		switch obj.Kind() {
		case "as_expression", "satisfies_expression":
			return obj
		case "member_expression":
		default:
			return nil
		}
	}
	return nil
}

func (c *converter) assignment(n *tree_sitter.Node) jsast.Node {
	left := n.ChildByFieldName("left")
	right := c.convert(n.ChildByFieldName("right"))
	if left != nil && left.Kind() == "identifier" {
		if n.Kind() == "augmented_assignment_expression" {
			// x += y leaves x with a computed value
			right = &jsast.Other{Loc: c.span(n), Kind: n.Kind(), Children: nonNil(right)}
		}
		return &jsast.Assign{Loc: c.span(n), Name: c.text(left), Value: right}
	}
	if left != nil && isPattern(left.Kind()) {
		// ({ url } = cfg) overwrites url with a runtime value
		children := nonNil(right)
		children = c.patternBindings(left, func(id *tree_sitter.Node) jsast.Node {
			return &jsast.Assign{Loc: c.span(id), Name: c.text(id), Value: c.opaque(id)}
		}, children)
		if len(children) == 0 {
			return nil
		}
		return &jsast.Other{Loc: c.span(n), Kind: n.Kind(), Children: children}
	}
	children := nonNil(c.convert(left))
	children = append(children, nonNil(right)...)
	if len(children) == 0 {
		return nil
	}
	return &jsast.Other{Loc: c.span(n), Kind: n.Kind(), Children: children}
}

func (c *converter) call(n *tree_sitter.Node) jsast.Node {
	call := &jsast.Call{Loc: c.span(n)}
	fn := n.ChildByFieldName("function")
	if chain, ok := c.calleeChain(fn); ok {
		call.Chain = chain
	} else {
		call.Callee = c.convert(fn)
	}

	args := n.ChildByFieldName("arguments")
	if args == nil {
		return call
	}
	if args.Kind() != "arguments" {
		// Tagged template: the template is visited but is not an argument list
		call.Callee = &jsast.Other{Loc: c.span(n), Kind: "tagged_template", Children: append(nonNil(call.Callee), nonNil(c.convert(args))...)}
		call.Chain = nil
		return call
	}
	call.Args = c.children(args)
	return call
}

// calleeChain flattens identifiers, static member access, string subscripts and
// optional chaining into dotted names
func (c *converter) calleeChain(n *tree_sitter.Node) ([]string, bool) {
	if n == nil {
		return nil, false
	}
	switch n.Kind() {
	case "identifier":
		return []string{c.text(n)}, true
	case "member_expression":
		prop := n.ChildByFieldName("property")
		if prop == nil || prop.Kind() != "property_identifier" {
			return nil, false
		}
		head, ok := c.calleeChain(n.ChildByFieldName("object"))
		if !ok {
			return nil, false
		}
		return append(head, c.text(prop)), true
	case "subscript_expression":
		index := n.ChildByFieldName("index")
		if index == nil || index.Kind() != "string" {
			return nil, false
		}
		head, ok := c.calleeChain(n.ChildByFieldName("object"))
		if !ok {
			return nil, false
		}
		return append(head, decodeString(c.src[index.StartByte()+1:index.EndByte()-1])), true
	case "parenthesized_expression", "non_null_expression":
		return c.calleeChain(n.NamedChild(0))
	}
	return nil, false
}

func (c *converter) string(n *tree_sitter.Node) jsast.Node {
	start, end := n.StartByte(), n.EndByte()
	if end-start < 2 {
		return nil
	}
	return &jsast.String{
		Loc:   c.span(n),
		Quote: c.src[start],
		Value: decodeString(c.src[start+1 : end-1]),
	}
}

func (c *converter) template(n *tree_sitter.Node) jsast.Node {
	tpl := &jsast.Template{Loc: c.span(n)}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child.Kind() != "template_substitution" {
			continue
		}
		sub := c.children(child)
		if len(sub) == 0 {
			// ${1} and friends still make the template dynamic
			sub = []jsast.Node{&jsast.Other{Loc: c.span(child), Kind: child.Kind()}}
		}
		tpl.Substitutions = append(tpl.Substitutions, sub...)
	}
	if !tpl.Dynamic() {
		start, end := n.StartByte(), n.EndByte()
		tpl.Value = decodeString(c.src[start+1 : end-1])
	}
	return tpl
}

func (c *converter) object(n *tree_sitter.Node) jsast.Node {
	obj := &jsast.Object{Loc: c.span(n)}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		switch child.Kind() {
		case "comment":
		case "pair":
			obj.Props = append(obj.Props, c.pair(child))
		case "shorthand_property_identifier":
			name := c.text(child)
			obj.Props = append(obj.Props, &jsast.Property{
				Loc:   c.span(child),
				Key:   name,
				Value: &jsast.Ident{Loc: c.span(child), Name: name},
			})
		default:
			// Methods, spreads and accessors are visited but never looked up
			obj.Props = append(obj.Props, &jsast.Property{Loc: c.span(child), Computed: true, Other: c.convert(child)})
		}
	}
	return obj
}

func (c *converter) pair(n *tree_sitter.Node) *jsast.Property {
	prop := &jsast.Property{Loc: c.span(n), Value: c.convert(n.ChildByFieldName("value"))}
	key := n.ChildByFieldName("key")
	if key == nil {
		prop.Computed = true
		return prop
	}
	switch key.Kind() {
	case "property_identifier", "number":
		prop.Key = c.text(key)
	case "string":
		if s, ok := c.string(key).(*jsast.String); ok {
			prop.Key = s.Value
		}
	case "computed_property_name":
		prop.Computed = true
		inner := c.convert(key.NamedChild(0))
		switch lit := inner.(type) {
		case *jsast.String:
			prop.Key = lit.Value
		case *jsast.Template:
			if !lit.Dynamic() {
				prop.Key = lit.Value
			} else {
				prop.Other = lit
			}
		default:
			prop.Other = inner
		}
	default:
		prop.Key = c.text(key)
	}
	return prop
}

func (c *converter) array(n *tree_sitter.Node) jsast.Node {
	return &jsast.Array{Loc: c.span(n), Elems: c.children(n)}
}

func nonNil(n jsast.Node) []jsast.Node {
	if n == nil {
		return nil
	}
	return []jsast.Node{n}
}
