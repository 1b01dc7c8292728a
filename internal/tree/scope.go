package tree

import (
	"fmt"
	"slices"

	"github.com/jward/arbor/internal/diag"
	"github.com/jward/arbor/internal/symbols"
	"github.com/jward/arbor/internal/syntax"
)

// enclosingTypes returns the types declared by id and its ancestors,
// innermost first.
func (t *Tree) enclosingTypes(id NodeID) []symbols.Type {
	var out []symbols.Type
	for cur := id; t.valid(cur); cur = t.nodes[cur].parent {
		if typ, ok := t.nodes[cur].decl.(symbols.Type); ok {
			out = append(out, typ)
		}
	}
	return out
}

// namespaceOf returns the innermost namespace opened by id or an ancestor.
func (t *Tree) namespaceOf(id NodeID) *symbols.Namespace {
	for cur := id; t.valid(cur); cur = t.nodes[cur].parent {
		if ns := t.nodes[cur].ns; ns != nil {
			return ns
		}
	}
	return t.g.Root()
}

// pinsOf returns the pins in effect at id: those of the innermost namespace
// first, each group in declaration order.
func (t *Tree) pinsOf(id NodeID) []*symbols.Namespace {
	var out []*symbols.Namespace
	for cur := id; t.valid(cur); cur = t.nodes[cur].parent {
		out = append(out, t.nodes[cur].pins...)
	}
	return out
}

// enclosingFunction returns the function node that contains id, or 0.
func (t *Tree) enclosingFunction(id NodeID) NodeID {
	for cur := id; t.valid(cur); cur = t.nodes[cur].parent {
		switch t.nodes[cur].syn.(type) {
		case *syntax.FunctionDecl:
			return cur
		case *syntax.ClassDecl, *syntax.InterfaceDecl, *syntax.NamespaceDecl:
			return 0
		}
	}
	return 0
}

// staticContext reports whether unqualified member lookups from id may only
// see static members.
func (t *Tree) staticContext(id NodeID) bool {
	for cur := id; t.valid(cur); cur = t.nodes[cur].parent {
		switch n := t.nodes[cur].syn.(type) {
		case *syntax.FunctionDecl:
			return n.Static
		case *syntax.VarDecl:
			return n.Static
		case *syntax.ClassDecl, *syntax.InterfaceDecl, *syntax.EnumDecl, *syntax.NamespaceDecl:
			return false
		}
	}
	return false
}

// locals returns the local variables and then the arguments visible at id,
// innermost first. Locals are visible only after their declaring statement.
func (t *Tree) locals(id NodeID) []symbols.Valued {
	var out []symbols.Valued
	cur := id
	for t.valid(cur) {
		p := t.nodes[cur].parent
		if p == 0 {
			break
		}
		switch t.nodes[p].syn.(type) {
		case *syntax.Block:
			kids := t.nodes[p].children
			for i := slices.Index(kids, cur) - 1; i >= 0; i-- {
				if l, ok := t.nodes[kids[i]].decl.(*symbols.LocalVariable); ok {
					out = append(out, l)
				}
			}
		case *syntax.FunctionDecl:
			for _, c := range t.nodes[p].children {
				if a, ok := t.nodes[c].decl.(*symbols.Argument); ok {
					out = append(out, a)
				}
			}
			return out
		}
		cur = p
	}
	return out
}

// scope describes the unqualified-lookup origin of id.
func (t *Tree) scope(id NodeID) symbols.Scope {
	return symbols.Scope{
		Types:     t.enclosingTypes(id),
		Namespace: t.namespaceOf(id),
		Pins:      t.pinsOf(id),
	}
}

// Search runs q as an unqualified lookup from node id: locals and arguments,
// then the enclosing types, namespaces and pins.
func (t *Tree) Search(id NodeID, q *symbols.Query) {
	if !t.valid(id) {
		return
	}
	if q.Access == nil {
		q.Access = t.enclosingTypes(id)
	}
	if t.staticContext(id) {
		q.StaticOnly = true
	}
	for _, l := range t.locals(id) {
		q.AddLocal(l)
	}
	q.SearchScope(t.scope(id))
}

// ResolveTypeName resolves tn as seen from node id without reporting
// diagnostics or recording usages.
func (t *Tree) ResolveTypeName(id NodeID, tn *syntax.TypeName) symbols.Type {
	if !t.valid(id) || tn == nil || len(tn.Segments) == 0 {
		return nil
	}
	typ, _, _ := t.lookupTypeName(id, tn)
	return typ
}

// lookupTypeName resolves tn from scope node id. It returns the resolved
// type, the symbol of every segment that resolved, and the index of the
// first failing segment (or -1). The final segment only ever matches a
// type.
func (t *Tree) lookupTypeName(id NodeID, tn *syntax.TypeName) (symbols.Type, []symbols.Symbol, int) {
	if len(tn.Segments) == 0 {
		panic(fmt.Errorf("%w at %s", symbols.ErrEmptyTypeName, tn.Range))
	}
	segs := make([]symbols.Symbol, 0, len(tn.Segments))
	last := len(tn.Segments) - 1
	cur := t.lookupFirst(id, tn.Segments[0].Name, last > 0)
	if cur == nil {
		return nil, segs, 0
	}
	segs = append(segs, cur)
	for i := 1; i <= last; i++ {
		name := tn.Segments[i].Name
		var next symbols.Symbol
		switch c := cur.(type) {
		case *symbols.Namespace:
			if typ := c.LookupType(name); typ != nil {
				next = typ
			} else if i < last {
				if child := c.Namespace(name); child != nil {
					next = child
				}
			}
		case symbols.Type:
			if typ := c.LookupType(name); typ != nil {
				next = typ
			}
		}
		if next == nil {
			return nil, segs, i
		}
		segs = append(segs, next)
		cur = next
	}
	return cur.(symbols.Type), segs, -1
}

// lookupFirst resolves the leftmost segment of a type name: nested types of
// the enclosing type chain (and their supertypes), then the namespace chain,
// then pins. Namespaces qualify only when more segments follow.
func (t *Tree) lookupFirst(id NodeID, name string, qualified bool) symbols.Symbol {
	for _, typ := range t.enclosingTypes(id) {
		if n := nestedType(typ, name); n != nil {
			return n
		}
	}
	inNamespace := func(ns *symbols.Namespace) symbols.Symbol {
		if typ := ns.LookupType(name); typ != nil {
			return typ
		}
		if qualified {
			if child := ns.Namespace(name); child != nil {
				return child
			}
		}
		return nil
	}
	for _, ns := range t.namespaceOf(id).Enclosing() {
		if s := inNamespace(ns); s != nil {
			return s
		}
	}
	for _, pin := range t.pinsOf(id) {
		if s := inNamespace(pin); s != nil {
			return s
		}
	}
	return nil
}

func nestedType(typ symbols.Type, name string) symbols.Type {
	if n := typ.LookupType(name); n != nil {
		return n
	}
	for _, s := range symbols.AllSupertypes(typ) {
		if n := s.LookupType(name); n != nil {
			return n
		}
	}
	return nil
}

// resolveTypeNode resolves the type-name node tnID as seen from scope node
// from. It caches the result on the node, records usages of every resolved
// segment and, when report is set, reports the first failing segment.
func (t *Tree) resolveTypeNode(from, tnID NodeID, phase diag.Phase, d *diag.Collector, report bool) symbols.Type {
	if !t.valid(tnID) {
		return nil
	}
	tn, ok := t.nodes[tnID].syn.(*syntax.TypeName)
	if !ok {
		return nil
	}
	typ, segs, failed := t.lookupTypeName(from, tn)
	n := &t.nodes[tnID]
	n.segs = segs
	n.typ = typ
	n.ref = nil
	if typ != nil {
		n.ref = typ
	}
	for i, s := range segs {
		t.recordUsage(s, tn.Segments[i].Range)
	}
	if failed >= 0 && report && d != nil {
		seg := tn.Segments[failed]
		code := diag.CodeUnresolvedType
		if phase == diag.PhaseInheritance {
			code = diag.CodeUnresolvedSuper
		}
		d.Errorf(phase, code, seg.Range, "cannot resolve %q in type %s", seg.Name, tn.Name())
	}
	return typ
}

// resolveNamespaceNode resolves a pin. Pins never create namespaces.
func (t *Tree) resolveNamespaceNode(tn *syntax.TypeName) *symbols.Namespace {
	return t.g.ResolveNamespace(tn.Name())
}
