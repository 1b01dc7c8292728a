package tree

import (
	"github.com/jward/arbor/internal/symbols"
	"github.com/jward/arbor/internal/syntax"
)

// NodeAt returns the innermost node whose range contains p, or 0.
func (t *Tree) NodeAt(p syntax.Pos) NodeID {
	var found NodeID
	for i := 1; i < len(t.nodes); i++ {
		if t.nodes[i].syn.Span().Contains(p) {
			found = NodeID(i)
		}
	}
	return found
}

// SymbolAt returns the symbol declared or referenced at p, or nil.
func (t *Tree) SymbolAt(p syntax.Pos) symbols.Symbol {
	if t.disposed {
		return nil
	}
	for id := t.NodeAt(p); t.valid(id); id = t.nodes[id].parent {
		if s := t.symbolIn(id, p); s != nil {
			return s
		}
	}
	return nil
}

func (t *Tree) symbolIn(id NodeID, p syntax.Pos) symbols.Symbol {
	n := &t.nodes[id]
	switch s := n.syn.(type) {
	case *syntax.TypeName:
		for i, seg := range s.Segments {
			if i < len(n.segs) && seg.Range.Contains(p) {
				return n.segs[i]
			}
		}
		return nil
	case *syntax.Ident:
		return n.ref
	case *syntax.MemberExpr:
		if s.Sel.Range.Contains(p) {
			return n.ref
		}
		return nil
	case *syntax.BinaryExpr:
		if s.Op.Range.Contains(p) {
			return n.ref
		}
		return nil
	case *syntax.EnumDecl:
		e, ok := n.decl.(*symbols.Enumeration)
		if !ok {
			return nil
		}
		for _, v := range s.Values {
			if v.Range.Contains(p) {
				return e.LookupVariable(v.Name)
			}
		}
	}
	if n.decl != nil && n.decl.Decl().Name.Contains(p) {
		return n.decl
	}
	return nil
}

// TypeAt returns the value type of the innermost expression at p, or nil.
func (t *Tree) TypeAt(p syntax.Pos) symbols.Type {
	if t.disposed {
		return nil
	}
	for id := t.NodeAt(p); t.valid(id); id = t.nodes[id].parent {
		if _, ok := t.nodes[id].syn.(syntax.Expr); ok && t.nodes[id].typ != nil {
			return t.nodes[id].typ
		}
		if v, ok := t.nodes[id].decl.(symbols.Valued); ok {
			return v.Type()
		}
	}
	return nil
}

// SearchAt runs q as an unqualified lookup from position p.
func (t *Tree) SearchAt(p syntax.Pos, q *symbols.Query) {
	id := t.NodeAt(p)
	if id == 0 {
		id = Root
	}
	t.Search(id, q)
}

// Symbols returns the symbols declared by the tree in source order.
func (t *Tree) Symbols() []symbols.Symbol {
	var out []symbols.Symbol
	for i := 1; i < len(t.nodes); i++ {
		if s := t.nodes[i].decl; s != nil {
			out = append(out, s)
		}
		if e, ok := t.nodes[i].decl.(*symbols.Enumeration); ok {
			for _, v := range e.Values() {
				out = append(out, v)
			}
		}
	}
	return out
}
