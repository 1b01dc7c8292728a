// Package symbols implements the semantic symbol graph: namespaces, types,
// functions and variables, the type-compatibility rules between them, and the
// scoped search used to bind names.
//
// The graph is a tree rooted at [Graph.Root]; every symbol has exactly one
// owning parent. Cross links (supertypes, resolved types, usages) are
// non-owning. The graph is not safe for concurrent use: all mutation and all
// reads happen on the resolver's single goroutine.
package symbols

import (
	"go.lsp.dev/protocol"

	"github.com/jward/arbor/internal/syntax"
)

// Kind classifies symbols.
type Kind int

const (
	KindNamespace Kind = iota
	KindClass
	KindInterface
	KindEnumeration
	KindFunctionGroup
	KindFunction
	KindVariable
	KindArgument
	KindLocal
)

var kindNames = [...]string{
	"namespace", "class", "interface", "enum", "function_group", "function",
	"variable", "argument", "local",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return 0, false
}

// Visibility is re-exported from syntax so callers need not import both.
type Visibility = syntax.Visibility

// Decl locates the declaration of a symbol. Owner identifies the context
// tree that registered it, so disposing that tree can release it.
type Decl struct {
	URI   protocol.DocumentURI
	Range syntax.Range
	// Name is the range of the declared name, used for go-to-definition.
	Name  syntax.Range
	Owner uint64
}

// Location returns the LSP location of the declared name.
func (d Decl) Location() protocol.Location {
	return protocol.Location{URI: d.URI, Range: d.Name.Protocol()}
}

// Usage is a back-reference from a symbol to a site that refers to it.
type Usage struct {
	URI   protocol.DocumentURI
	Range syntax.Range
	Owner uint64
}

// Location returns the LSP location of the usage.
func (u Usage) Location() protocol.Location {
	return protocol.Location{URI: u.URI, Range: u.Range.Protocol()}
}

// Symbol is implemented by every node of the graph.
type Symbol interface {
	Name() string
	// FullName is the dotted path from the root namespace.
	FullName() string
	Kind() Kind
	Parent() Symbol
	Decl() Decl
	// Usages returns the recorded usage sites, in recording order.
	Usages() []Usage
	AddUsage(u Usage)
	// RemoveUsages drops the usages recorded by the given tree.
	RemoveUsages(owner uint64)

	base() *symbolBase
}

type symbolBase struct {
	name     string
	kind     Kind
	parent   Symbol
	decl     Decl
	usages   []Usage
	fullName string
	fullOK   bool
}

func newBase(name string, kind Kind, decl Decl) symbolBase {
	return symbolBase{name: name, kind: kind, decl: decl}
}

func (b *symbolBase) Name() string   { return b.name }
func (b *symbolBase) Kind() Kind     { return b.kind }
func (b *symbolBase) Parent() Symbol { return b.parent }
func (b *symbolBase) Decl() Decl     { return b.decl }

func (b *symbolBase) base() *symbolBase { return b }

func (b *symbolBase) FullName() string {
	if b.fullOK {
		return b.fullName
	}
	b.fullName = b.name
	if b.parent != nil {
		pfx := b.parent.FullName()
		switch {
		case b.parent.Kind() == KindFunctionGroup:
			// Overloads share their group's name.
			b.fullName = pfx
		case pfx != "":
			b.fullName = pfx + "." + b.name
		}
	}
	b.fullOK = true
	return b.fullName
}

func (b *symbolBase) Usages() []Usage {
	out := make([]Usage, len(b.usages))
	copy(out, b.usages)
	return out
}

func (b *symbolBase) AddUsage(u Usage) {
	b.usages = append(b.usages, u)
}

func (b *symbolBase) RemoveUsages(owner uint64) {
	kept := b.usages[:0]
	for _, u := range b.usages {
		if u.Owner != owner {
			kept = append(kept, u)
		}
	}
	b.usages = kept
}

// setParent reparents s. Cached full names of s and everything below it are
// dropped.
func setParent(s Symbol, parent Symbol) {
	b := s.base()
	if b.parent == parent {
		return
	}
	b.parent = parent
	invalidateNames(s)
}

func invalidateNames(s Symbol) {
	s.base().fullOK = false
	if m := membersOf(s); m != nil {
		m.eachRegistered(invalidateNames)
	}
	switch c := s.(type) {
	case *Namespace:
		for _, child := range c.children {
			invalidateNames(child)
		}
	case *FunctionGroup:
		for _, f := range c.funcs {
			invalidateNames(f)
		}
	case *Function:
		for _, a := range c.args {
			invalidateNames(a)
		}
	}
}

// Valued is a symbol that has a value type: a variable, argument or local.
type Valued interface {
	Symbol
	// Type is the resolved type, or nil when it is unknown.
	Type() Type
}
