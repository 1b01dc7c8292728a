package tree

import (
	"errors"

	"github.com/jward/arbor/internal/diag"
	"github.com/jward/arbor/internal/symbols"
	"github.com/jward/arbor/internal/syntax"
)

// ResolveMembers registers variables, enumeration values and functions and
// resolves their declared types.
func (t *Tree) ResolveMembers(d *diag.Collector) {
	if t.disposed {
		return
	}
	for i := 1; i < len(t.nodes); i++ {
		id := NodeID(i)
		switch s := t.nodes[id].syn.(type) {
		case *syntax.VarDecl:
			t.declareVariable(id, s, d)
		case *syntax.EnumDecl:
			t.declareEnumValues(id, s)
		case *syntax.FunctionDecl:
			t.declareFunction(id, s, d)
		}
	}
}

func (t *Tree) declareVariable(id NodeID, s *syntax.VarDecl, d *diag.Collector) {
	in := t.containerOf(t.nodes[id].parent)
	_, inNamespace := in.(*symbols.Namespace)
	var typ symbols.Type
	if s.Type != nil {
		typ = t.resolveTypeNode(id, t.childFor(id, s.Type), diag.PhaseMembers, d, true)
	}
	v := symbols.NewVariable(symbols.VariableSpec{
		Name:       s.Name.Name,
		Type:       typ,
		Static:     s.Static || inNamespace,
		Visibility: s.Visibility,
		Decl:       t.declOf(s),
	})
	if err := t.register(in, v); err != nil {
		panic(err)
	}
	t.nodes[id].decl = v
}

func (t *Tree) declareEnumValues(id NodeID, s *syntax.EnumDecl) {
	e, ok := t.nodes[id].decl.(*symbols.Enumeration)
	if !ok {
		return
	}
	for _, val := range s.Values {
		v := symbols.NewVariable(symbols.VariableSpec{
			Name:     val.Name,
			Type:     e,
			Static:   true,
			ReadOnly: true,
			Decl:     symbols.Decl{URI: t.uri, Range: val.Range, Name: val.Range, Owner: t.id},
		})
		if err := t.register(e, v); err != nil {
			panic(err)
		}
	}
}

func (t *Tree) declareFunction(id NodeID, s *syntax.FunctionDecl, d *diag.Collector) {
	in := t.containerOf(t.nodes[id].parent)
	_, inNamespace := in.(*symbols.Namespace)

	var returns symbols.Type
	switch {
	case s.Kind == syntax.Constructor:
		returns, _ = in.(symbols.Type)
		if _, isClass := in.(*symbols.Class); !isClass {
			d.Errorf(diag.PhaseMembers, diag.CodeTypeMismatch, s.Name.Range, "constructors are only allowed in classes")
		}
	case s.Returns != nil:
		returns = t.resolveTypeNode(id, t.childFor(id, s.Returns), diag.PhaseMembers, d, true)
	default:
		returns = t.g.Builtin(symbols.VoidName)
	}

	f := symbols.NewFunction(symbols.FunctionSpec{
		Name:       s.GroupName(),
		Kind:       s.Kind,
		Static:     s.Static || inNamespace,
		Visibility: s.Visibility,
		Returns:    returns,
		Decl:       t.declOf(s),
	})
	for _, p := range s.Params {
		pid := t.childFor(id, p)
		var typ symbols.Type
		if p.Type != nil {
			typ = t.resolveTypeNode(pid, t.childFor(pid, p.Type), diag.PhaseMembers, d, true)
		}
		arg := symbols.NewArgument(p.Name.Name, typ, t.declOf(p))
		f.AddArgument(arg)
		if pid != 0 {
			t.nodes[pid].decl = arg
		}
	}
	if s.Kind == syntax.Operator && len(s.Params) != 1 {
		d.Errorf(diag.PhaseMembers, diag.CodeTypeMismatch, s.Name.Range, "operator %s takes exactly one operand", s.Name.Name)
	}
	t.nodes[id].decl = f

	err := t.register(in, f)
	switch {
	case errors.Is(err, symbols.ErrDuplicateOverload):
		d.Errorf(diag.PhaseMembers, diag.CodeDuplicateOverload, s.Name.Range,
			"duplicate overload %s%s", f.Name(), f.Signature())
	case err != nil:
		panic(err)
	}
}
