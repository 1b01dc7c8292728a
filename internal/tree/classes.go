package tree

import (
	"strings"

	"github.com/jward/arbor/internal/diag"
	"github.com/jward/arbor/internal/symbols"
	"github.com/jward/arbor/internal/syntax"
)

// containerOf returns the innermost type or namespace enclosing id
// (including id itself).
func (t *Tree) containerOf(id NodeID) symbols.Container {
	for cur := id; t.valid(cur); cur = t.nodes[cur].parent {
		if typ, ok := t.nodes[cur].decl.(symbols.Type); ok {
			return typ
		}
		if ns := t.nodes[cur].ns; ns != nil {
			return ns
		}
	}
	return t.g.Root()
}

// ResolveClasses opens namespaces and registers every type declaration of the
// document in the graph. Nodes are stored in pre-order, so a container is
// always registered before its members.
func (t *Tree) ResolveClasses(d *diag.Collector) {
	if t.disposed {
		return
	}
	for i := 1; i < len(t.nodes); i++ {
		id := NodeID(i)
		n := &t.nodes[id]
		switch s := n.syn.(type) {
		case *syntax.File:
			n.ns = t.g.Root()
		case *syntax.NamespaceDecl:
			n.ns = t.namespaceOf(n.parent).Path(s.Name.Name())
		case *syntax.ClassDecl:
			c := t.g.NewClass(t.typeSpec(s, s.Name.Name, s.Visibility))
			t.declareType(id, c)
		case *syntax.InterfaceDecl:
			i := t.g.NewInterface(t.typeSpec(s, s.Name.Name, s.Visibility))
			t.declareType(id, i)
		case *syntax.EnumDecl:
			e := t.g.NewEnumeration(t.typeSpec(s, s.Name.Name, s.Visibility))
			t.declareType(id, e)
		}
	}
}

func (t *Tree) typeSpec(syn syntax.Node, name string, vis syntax.Visibility) symbols.TypeSpec {
	return symbols.TypeSpec{Name: name, Visibility: vis, Decl: t.declOf(syn)}
}

func (t *Tree) declareType(id NodeID, typ symbols.Type) {
	in := t.containerOf(t.nodes[id].parent)
	if err := t.register(in, typ); err != nil {
		panic(err)
	}
	t.nodes[id].decl = typ
}

// ResolveInheritance resolves pins and the extends/implements clauses of
// every type. It returns the number of references that did not resolve; the
// driver calls it again while that number keeps shrinking. Diagnostics are
// only reported when final is set, on the last call after the fixpoint
// settles.
func (t *Tree) ResolveInheritance(d *diag.Collector, final bool) int {
	if t.disposed {
		return 0
	}
	pending := 0
	for i := 1; i < len(t.nodes); i++ {
		id := NodeID(i)
		switch s := t.nodes[id].syn.(type) {
		case *syntax.File:
			pending += t.resolvePins(id, s.Pins, d, final)
		case *syntax.NamespaceDecl:
			pending += t.resolvePins(id, s.Pins, d, final)
		case *syntax.ClassDecl:
			pending += t.resolveClassSupers(id, s, d, final)
		case *syntax.InterfaceDecl:
			pending += t.resolveInterfaceSupers(id, s, d, final)
		}
	}
	if final {
		t.reportCycles(d)
	}
	return pending
}

func (t *Tree) resolvePins(id NodeID, pins []*syntax.TypeName, d *diag.Collector, final bool) int {
	pending := 0
	resolved := make([]*symbols.Namespace, 0, len(pins))
	for _, pin := range pins {
		ns := t.resolveNamespaceNode(pin)
		if ns == nil {
			pending++
			if final {
				d.Errorf(diag.PhaseInheritance, diag.CodeUnresolvedName, pin.Range, "cannot resolve namespace %s", pin.Name())
			}
			continue
		}
		t.recordUsage(ns, pin.Range)
		resolved = append(resolved, ns)
	}
	t.nodes[id].pins = resolved
	return pending
}

func (t *Tree) resolveClassSupers(id NodeID, s *syntax.ClassDecl, d *diag.Collector, final bool) int {
	c, ok := t.nodes[id].decl.(*symbols.Class)
	if !ok {
		return 0
	}
	from := t.nodes[id].parent
	pending := 0
	super := t.g.Object()
	if s.Extends != nil {
		switch typ := t.resolveTypeNode(from, t.childFor(id, s.Extends), diag.PhaseInheritance, d, final).(type) {
		case nil:
			pending++
		case *symbols.Class:
			super = typ
		default:
			if final {
				d.Errorf(diag.PhaseInheritance, diag.CodeInvalidSupertype, s.Extends.Range,
					"class %s cannot extend %s %s", c.Name(), typ.Kind(), typ.FullName())
			}
		}
	}
	var impls []*symbols.Interface
	for _, tn := range s.Implements {
		switch typ := t.resolveTypeNode(from, t.childFor(id, tn), diag.PhaseInheritance, d, final).(type) {
		case nil:
			pending++
		case *symbols.Interface:
			impls = append(impls, typ)
		default:
			if final {
				d.Errorf(diag.PhaseInheritance, diag.CodeInvalidSupertype, tn.Range,
					"class %s cannot implement %s %s", c.Name(), typ.Kind(), typ.FullName())
			}
		}
	}
	c.SetSupertypes(super, impls)
	return pending
}

func (t *Tree) resolveInterfaceSupers(id NodeID, s *syntax.InterfaceDecl, d *diag.Collector, final bool) int {
	iface, ok := t.nodes[id].decl.(*symbols.Interface)
	if !ok {
		return 0
	}
	from := t.nodes[id].parent
	pending := 0
	var supers []*symbols.Interface
	for _, tn := range s.Extends {
		switch typ := t.resolveTypeNode(from, t.childFor(id, tn), diag.PhaseInheritance, d, final).(type) {
		case nil:
			pending++
		case *symbols.Interface:
			supers = append(supers, typ)
		default:
			if final {
				d.Errorf(diag.PhaseInheritance, diag.CodeInvalidSupertype, tn.Range,
					"interface %s cannot extend %s %s", iface.Name(), typ.Kind(), typ.FullName())
			}
		}
	}
	iface.SetExtends(supers)
	return pending
}

// reportCycles reports every declared type that is its own supertype.
func (t *Tree) reportCycles(d *diag.Collector) {
	for i := 1; i < len(t.nodes); i++ {
		typ, ok := t.nodes[i].decl.(symbols.Type)
		if !ok {
			continue
		}
		cycle := symbols.InheritanceCycle(typ)
		if cycle == nil {
			continue
		}
		names := make([]string, len(cycle))
		for j, c := range cycle {
			names[j] = c.FullName()
		}
		d.Errorf(diag.PhaseInheritance, diag.CodeCyclicInheritance, typ.Decl().Name,
			"cyclic inheritance: %s", strings.Join(names, " -> "))
	}
}
