package resolver

import (
	"github.com/standardbeagle/extpath/internal/jsast"
	"github.com/standardbeagle/extpath/internal/types"
)

// pathLiteral is one literal whose text is a candidate path
type pathLiteral struct {
	Value string     // decoded text
	Quote byte       // ' " or `
	Inner types.Span // quoted contents only
}

// issueKind is what went wrong while extracting
type issueKind uint8

const (
	issueDynamic issueKind = iota
	issueAmbiguous
)

type issue struct {
	kind   issueKind
	span   types.Span
	name   string // identifier, for ambiguous bindings
	reason string
}

// extractor pulls path literals out of call arguments, resolving identifiers one hop
// through the tracker
type extractor struct {
	tracker  *tracker
	matcher  *Matcher
	literals []pathLiteral
	issues   []issue
	quiet    bool // suppress ambiguous-binding issues for optional positions
}

func (e *extractor) reset(quiet bool) {
	e.literals = e.literals[:0]
	e.issues = e.issues[:0]
	e.quiet = quiet
}

// deref resolves an identifier to its bound literal. The second result is false when
// the identifier cannot be resolved, in which case an issue has been recorded.
func (e *extractor) deref(n jsast.Node) (jsast.Node, bool) {
	id, ok := n.(*jsast.Ident)
	if !ok {
		return n, true
	}
	b, found := e.tracker.lookup(id.Name)
	if reason := bindingFailure(b, found); reason != "" {
		if !e.quiet {
			e.issues = append(e.issues, issue{kind: issueAmbiguous, span: id.Loc, name: id.Name, reason: reason})
		}
		return nil, false
	}
	return b.Value, true
}

// leaf extracts a path value: a string, a template, or an array of those
func (e *extractor) leaf(n jsast.Node) {
	n, ok := e.deref(n)
	if !ok {
		return
	}
	switch v := n.(type) {
	case *jsast.String:
		e.add(v.Value, v.Quote, v.Loc)
	case *jsast.Template:
		if v.Dynamic() {
			e.dynamic(v.Loc)
			return
		}
		e.add(v.Value, '`', v.Loc)
	case *jsast.Array:
		for _, elem := range v.Elems {
			e.leaf(elem)
		}
	case *jsast.Call:
		// A nested recognized call (runtime.getURL) is rewritten on its own
		if _, matched := e.matcher.MatchCall("", v); !matched {
			e.dynamic(v.Loc)
		}
	default:
		e.dynamic(n.Span())
	}
}

func (e *extractor) add(value string, quote byte, loc types.Span) {
	e.literals = append(e.literals, pathLiteral{
		Value: value,
		Quote: quote,
		Inner: types.Span{Start: loc.Start + 1, End: loc.End - 1},
	})
}

func (e *extractor) dynamic(span types.Span) {
	e.issues = append(e.issues, issue{kind: issueDynamic, span: span})
}

// argument extracts every path the spec names from one argument
func (e *extractor) argument(arg jsast.Node, spec ArgSpec) {
	switch spec.Shape {
	case ShapeString, ShapeTemplate:
		e.leaf(arg)
	case ShapeObjectPath:
		e.objectPath(arg, spec.Properties)
	case ShapeObjectMap:
		e.objectMap(arg, spec.Properties)
	}
}

// objectPath reads the named properties of an options object, or of every object in an
// array of options records
func (e *extractor) objectPath(arg jsast.Node, props []string) {
	n, ok := e.deref(arg)
	if !ok {
		return
	}
	switch v := n.(type) {
	case *jsast.Object:
		e.properties(v, props)
	case *jsast.Array:
		for _, elem := range v.Elems {
			rec, ok := e.deref(elem)
			if !ok {
				continue
			}
			if obj, isObj := rec.(*jsast.Object); isObj {
				e.properties(obj, props)
			}
		}
	}
	// Anything else (a tab id, a callback) carries no path
}

func (e *extractor) properties(obj *jsast.Object, props []string) {
	for _, name := range props {
		if p, ok := obj.Lookup(name); ok {
			e.leaf(p.Value)
		}
	}
}

// objectMap reads a property holding either one path or a size-keyed record of paths
func (e *extractor) objectMap(arg jsast.Node, props []string) {
	n, ok := e.deref(arg)
	if !ok {
		return
	}
	obj, isObj := n.(*jsast.Object)
	if !isObj {
		return
	}
	for _, name := range props {
		p, found := obj.Lookup(name)
		if !found {
			continue
		}
		value, ok := e.deref(p.Value)
		if !ok {
			continue
		}
		record, isRecord := value.(*jsast.Object)
		if !isRecord {
			e.leaf(value)
			continue
		}
		for _, entry := range record.Props {
			if entry.Value == nil {
				e.dynamic(entry.Loc)
				continue
			}
			e.leaf(entry.Value)
		}
	}
}
