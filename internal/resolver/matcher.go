package resolver

import (
	"strings"

	"github.com/standardbeagle/extpath/internal/jsast"
	"github.com/standardbeagle/extpath/internal/types"
)

// CallSite is a call whose callee matched a signature
type CallSite struct {
	File      string
	Span      types.Span
	Signature *ApiSignature
	Args      []jsast.Node
}

// Matcher looks callee chains up in a signature table
type Matcher struct {
	byPath map[string]*ApiSignature
}

// NewMatcher indexes sigs by path
func NewMatcher(sigs []*ApiSignature) *Matcher {
	m := &Matcher{byPath: make(map[string]*ApiSignature, len(sigs))}
	for _, s := range sigs {
		m.byPath[s.Path] = s
	}
	return m
}

var defaultMatcher = NewMatcher(signatures)

// Global objects that may prefix an API namespace
var globalRoots = map[string]bool{
	"globalThis": true,
	"window":     true,
	"self":       true,
}

// Match returns the signature for a dotted callee chain
func (m *Matcher) Match(chain []string) (*ApiSignature, bool) {
	if len(chain) > 1 && globalRoots[chain[0]] {
		chain = chain[1:]
	}
	if len(chain) == 0 || len(chain) > types.MaxCalleeChain {
		return nil, false
	}

	key := strings.Join(chain, ".")
	if chain[0] == "chrome" || chain[0] == "browser" {
		if len(chain) == 1 {
			return nil, false
		}
		key = "ns." + strings.Join(chain[1:], ".")
	}

	s, ok := m.byPath[key]
	if !ok || s.Arity != len(chain) {
		return nil, false
	}
	return s, true
}

// MatchCall matches a parsed call, returning its call site
func (m *Matcher) MatchCall(file string, call *jsast.Call) (CallSite, bool) {
	if call.Chain == nil {
		return CallSite{}, false
	}
	s, ok := m.Match(call.Chain)
	if !ok {
		return CallSite{}, false
	}
	return CallSite{File: file, Span: call.Loc, Signature: s, Args: call.Args}, true
}
