package resolver

import (
	"github.com/standardbeagle/extpath/internal/jsast"
	"github.com/standardbeagle/extpath/internal/types"
)

// TrackedBinding is the most recent write to a name seen so far in the walk
type TrackedBinding struct {
	Name     string
	DeclSpan types.Span
	Value    jsast.Node // nil when declared without an initializer
}

type trackerScope struct {
	function bool
	bindings map[string]*TrackedBinding
}

// tracker follows declarations and assignments during the single top-to-bottom walk.
// Lookups see only writes already visited, so the answer at a call site is the last
// write strictly before that call. Lookups never leave the enclosing function.
type tracker struct {
	scopes []*trackerScope
}

func (t *tracker) push(function bool) {
	t.scopes = append(t.scopes, &trackerScope{function: function})
}

func (t *tracker) pop() {
	if len(t.scopes) > 0 {
		t.scopes = t.scopes[:len(t.scopes)-1]
	}
}

// functionScope is the innermost function (or program) scope
func (t *tracker) functionScope() *trackerScope {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if t.scopes[i].function {
			return t.scopes[i]
		}
	}
	if len(t.scopes) == 0 {
		t.push(true)
	}
	return t.scopes[0]
}

func (t *tracker) current() *trackerScope {
	if len(t.scopes) == 0 {
		t.push(true)
	}
	return t.scopes[len(t.scopes)-1]
}

func (s *trackerScope) set(b *TrackedBinding) {
	if s.bindings == nil {
		s.bindings = make(map[string]*TrackedBinding)
	}
	s.bindings[b.Name] = b
}

// declare records a declarator. var is function scoped, let and const block scoped.
func (t *tracker) declare(d *jsast.VarDecl) {
	scope := t.current()
	if d.Kind == jsast.DeclVar {
		scope = t.functionScope()
	}
	scope.set(&TrackedBinding{Name: d.Name, DeclSpan: d.Loc, Value: d.Value})
}

// assign updates the nearest in-function binding of the name, or records the write in
// the function scope when the name is declared outside the function (or not at all)
func (t *tracker) assign(a *jsast.Assign) {
	b := &TrackedBinding{Name: a.Name, DeclSpan: a.Loc, Value: a.Value}
	for i := len(t.scopes) - 1; i >= 0; i-- {
		s := t.scopes[i]
		if _, ok := s.bindings[a.Name]; ok {
			s.set(b)
			return
		}
		if s.function {
			s.set(b)
			return
		}
	}
	t.current().set(b)
}

// lookup returns the visible binding for name inside the enclosing function
func (t *tracker) lookup(name string) (*TrackedBinding, bool) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		s := t.scopes[i]
		if b, ok := s.bindings[name]; ok {
			return b, true
		}
		if s.function {
			break
		}
	}
	return nil, false
}

// bindingFailure explains why an identifier has no statically known literal value,
// or returns "" when it resolves to one
func bindingFailure(b *TrackedBinding, found bool) string {
	switch {
	case !found:
		return "no declaration or assignment precedes it in the enclosing function"
	case b.Value == nil:
		return "declared without a literal value"
	case !jsast.IsLiteral(b.Value):
		return "bound to a non-literal value"
	default:
		return ""
	}
}
