// Package tree builds the per-document context tree and runs the four
// resolution phases over it.
//
// A Tree is an arena: nodes live in one slice and refer to each other by
// NodeID. A tree is never patched; an edit disposes the whole tree and a new
// one is built from the fresh syntax. Each node caches what resolution found
// for it (the declared symbol, the bound symbol, the expression type).
package tree

import (
	"sync/atomic"

	"go.lsp.dev/protocol"

	"github.com/jward/arbor/internal/symbols"
	"github.com/jward/arbor/internal/syntax"
)

// NodeID addresses a node within its tree. The zero value is no node.
type NodeID int32

// Root is the NodeID of the file node.
const Root NodeID = 1

var lastTreeID atomic.Uint64

type node struct {
	syn      syntax.Node
	parent   NodeID
	children []NodeID

	// decl is the symbol this node declares, if any.
	decl symbols.Symbol
	// ref is the symbol this node refers to, if it resolved.
	ref symbols.Symbol
	// typ is the value type of an expression node.
	typ symbols.Type
	// ns is the namespace a file or namespace node opens.
	ns *symbols.Namespace
	// pins are the resolved pins of a file or namespace node.
	pins []*symbols.Namespace
	// segs holds the symbol resolved for each segment of a type name.
	segs []symbols.Symbol
	// typeRef marks an expression that names a type rather than a value.
	typeRef bool
}

type usageKey struct {
	sym symbols.Symbol
	rng syntax.Range
}

// Tree is the context tree of one document revision.
type Tree struct {
	id    uint64
	uri   protocol.DocumentURI
	g     *symbols.Graph
	file  *syntax.File
	nodes []node

	registered []registration
	usages     map[usageKey]bool
	touched    map[symbols.Symbol]bool
	disposed   bool
}

type registration struct {
	in  symbols.Container
	sym symbols.Symbol
}

// Build creates the context tree for f. Nothing is registered in g until the
// phases run.
func Build(g *symbols.Graph, uri protocol.DocumentURI, f *syntax.File) *Tree {
	t := &Tree{
		id:      lastTreeID.Add(1),
		uri:     uri,
		g:       g,
		file:    f,
		nodes:   make([]node, 1, 64),
		usages:  make(map[usageKey]bool),
		touched: make(map[symbols.Symbol]bool),
	}
	t.build(f, 0)
	return t
}

// ID identifies the tree as the owner of the symbols and usages it records.
func (t *Tree) ID() uint64 { return t.id }

// URI returns the document the tree was built from.
func (t *Tree) URI() protocol.DocumentURI { return t.uri }

// File returns the syntax the tree was built from.
func (t *Tree) File() *syntax.File { return t.file }

// Graph returns the symbol graph the tree registers into.
func (t *Tree) Graph() *symbols.Graph { return t.g }

// Disposed reports whether Dispose has been called.
func (t *Tree) Disposed() bool { return t.disposed }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) - 1 }

func (t *Tree) valid(id NodeID) bool {
	return !t.disposed && id > 0 && int(id) < len(t.nodes)
}

// Syntax returns the construct a node was built from.
func (t *Tree) Syntax(id NodeID) syntax.Node {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].syn
}

// Parent returns the parent of id, or 0 for the root.
func (t *Tree) Parent(id NodeID) NodeID {
	if !t.valid(id) {
		return 0
	}
	return t.nodes[id].parent
}

// Children returns the child nodes of id in source order.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].children
}

// Declared returns the symbol declared by node id, or nil.
func (t *Tree) Declared(id NodeID) symbols.Symbol {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].decl
}

// Ref returns the symbol node id resolved to, or nil.
func (t *Tree) Ref(id NodeID) symbols.Symbol {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].ref
}

// TypeOf returns the resolved value type of expression node id, or nil.
func (t *Tree) TypeOf(id NodeID) symbols.Type {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].typ
}

func (t *Tree) add(syn syntax.Node, parent NodeID) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{syn: syn, parent: parent})
	if parent != 0 {
		t.nodes[parent].children = append(t.nodes[parent].children, id)
	}
	return id
}

// build adds syn and its descendants below parent. The switch covers every
// construct a tree can hold.
func (t *Tree) build(syn syntax.Node, parent NodeID) NodeID {
	id := t.add(syn, parent)
	switch n := syn.(type) {
	case *syntax.File:
		t.buildDecls(n.Decls, id)
	case *syntax.NamespaceDecl:
		t.buildDecls(n.Decls, id)
	case *syntax.ClassDecl:
		t.buildType(n.Extends, id)
		for _, tn := range n.Implements {
			t.buildType(tn, id)
		}
		t.buildDecls(n.Members, id)
	case *syntax.InterfaceDecl:
		for _, tn := range n.Extends {
			t.buildType(tn, id)
		}
		t.buildDecls(n.Members, id)
	case *syntax.EnumDecl:
	case *syntax.FunctionDecl:
		for _, p := range n.Params {
			t.build(p, id)
		}
		t.buildType(n.Returns, id)
		if n.Body != nil {
			t.build(n.Body, id)
		}
	case *syntax.Param:
		t.buildType(n.Type, id)
	case *syntax.VarDecl:
		t.buildType(n.Type, id)
		t.buildExpr(n.Init, id)
	case *syntax.Block:
		for _, s := range n.Stmts {
			t.build(s, id)
		}
	case *syntax.LocalStmt:
		t.buildType(n.Type, id)
		t.buildExpr(n.Init, id)
	case *syntax.ExprStmt:
		t.buildExpr(n.X, id)
	case *syntax.ReturnStmt:
		t.buildExpr(n.Value, id)
	case *syntax.IfStmt:
		t.buildExpr(n.Cond, id)
		if n.Then != nil {
			t.build(n.Then, id)
		}
		if n.Else != nil {
			t.build(n.Else, id)
		}
	case *syntax.WhileStmt:
		t.buildExpr(n.Cond, id)
		if n.Body != nil {
			t.build(n.Body, id)
		}
	case *syntax.TypeName:
	case *syntax.Ident, *syntax.Literal:
	case *syntax.MemberExpr:
		t.buildExpr(n.X, id)
	case *syntax.CallExpr:
		t.buildExpr(n.Fun, id)
		for _, a := range n.Args {
			t.buildExpr(a, id)
		}
	case *syntax.NewExpr:
		t.buildType(n.Type, id)
		for _, a := range n.Args {
			t.buildExpr(a, id)
		}
	case *syntax.BinaryExpr:
		t.buildExpr(n.X, id)
		t.buildExpr(n.Y, id)
	case *syntax.AssignExpr:
		t.buildExpr(n.Target, id)
		t.buildExpr(n.Value, id)
	}
	return id
}

func (t *Tree) buildDecls(decls []syntax.Decl, parent NodeID) {
	for _, d := range decls {
		t.build(d, parent)
	}
}

func (t *Tree) buildType(tn *syntax.TypeName, parent NodeID) {
	if tn != nil {
		t.build(tn, parent)
	}
}

func (t *Tree) buildExpr(x syntax.Expr, parent NodeID) {
	if x != nil {
		t.build(x, parent)
	}
}

// childFor returns the child of id built from syn, or 0.
func (t *Tree) childFor(id NodeID, syn syntax.Node) NodeID {
	if syn == nil || !t.valid(id) {
		return 0
	}
	for _, c := range t.nodes[id].children {
		if t.nodes[c].syn == syn {
			return c
		}
	}
	return 0
}

func (t *Tree) declOf(syn syntax.Node) symbols.Decl {
	d := symbols.Decl{URI: t.uri, Range: syn.Span(), Owner: t.id}
	switch n := syn.(type) {
	case *syntax.ClassDecl:
		d.Name = n.Name.Range
	case *syntax.InterfaceDecl:
		d.Name = n.Name.Range
	case *syntax.EnumDecl:
		d.Name = n.Name.Range
	case *syntax.FunctionDecl:
		d.Name = n.Name.Range
	case *syntax.Param:
		d.Name = n.Name.Range
	case *syntax.VarDecl:
		d.Name = n.Name.Range
	case *syntax.LocalStmt:
		d.Name = n.Name.Range
	default:
		d.Name = syn.Span()
	}
	return d
}

// register adds sym to container in and remembers it for Dispose.
func (t *Tree) register(in symbols.Container, sym symbols.Symbol) error {
	if err := in.Register(sym); err != nil {
		return err
	}
	t.registered = append(t.registered, registration{in: in, sym: sym})
	return nil
}

// recordUsage adds a usage of sym at rng once per tree.
func (t *Tree) recordUsage(sym symbols.Symbol, rng syntax.Range) {
	if sym == nil {
		return
	}
	k := usageKey{sym: sym, rng: rng}
	if t.usages[k] {
		return
	}
	t.usages[k] = true
	t.touched[sym] = true
	sym.AddUsage(symbols.Usage{URI: t.uri, Range: rng, Owner: t.id})
}

// Dispose releases everything the tree contributed to the graph: registered
// symbols are unregistered (unless a newer registration replaced them) and
// recorded usages are removed. Disposing twice is a no-op.
func (t *Tree) Dispose() {
	if t.disposed {
		return
	}
	for sym := range t.touched {
		sym.RemoveUsages(t.id)
	}
	for i := len(t.registered) - 1; i >= 0; i-- {
		r := t.registered[i]
		r.in.Unregister(r.sym)
	}
	t.registered = nil
	t.usages = nil
	t.touched = nil
	t.nodes = nil
	t.disposed = true
}
