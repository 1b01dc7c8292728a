package tree

import (
	"github.com/jward/arbor/internal/diag"
	"github.com/jward/arbor/internal/symbols"
	"github.com/jward/arbor/internal/syntax"
)

// ResolveStatements resolves function bodies and variable initialisers:
// expression types, identifier bindings, usages and conversion checks.
func (t *Tree) ResolveStatements(d *diag.Collector) {
	if t.disposed {
		return
	}
	for i := 1; i < len(t.nodes); i++ {
		id := NodeID(i)
		switch s := t.nodes[id].syn.(type) {
		case *syntax.FunctionDecl:
			if s.Body != nil {
				t.stmt(t.childFor(id, s.Body), d)
			}
		case *syntax.VarDecl:
			if s.Init != nil {
				t.initVariable(id, s, d)
			}
		}
	}
}

func (t *Tree) initVariable(id NodeID, s *syntax.VarDecl, d *diag.Collector) {
	x := t.expr(t.childFor(id, s.Init), d)
	v, ok := t.nodes[id].decl.(*symbols.Variable)
	if !ok {
		return
	}
	if s.Type == nil {
		if v.Type() == nil {
			v.SetType(x.typ)
		}
		return
	}
	t.convert(x.typ, v.Type(), s.Init.Span(), d)
}

// stmt resolves the statement node id. The switch covers every statement
// variant.
func (t *Tree) stmt(id NodeID, d *diag.Collector) {
	if !t.valid(id) {
		return
	}
	switch s := t.nodes[id].syn.(type) {
	case *syntax.Block:
		for _, c := range t.nodes[id].children {
			t.stmt(c, d)
		}
	case *syntax.LocalStmt:
		t.localStmt(id, s, d)
	case *syntax.ExprStmt:
		t.expr(t.childFor(id, s.X), d)
	case *syntax.ReturnStmt:
		t.returnStmt(id, s, d)
	case *syntax.IfStmt:
		t.condition(id, s.Cond, d)
		t.stmt(t.childFor(id, s.Then), d)
		t.stmt(t.childFor(id, s.Else), d)
	case *syntax.WhileStmt:
		t.condition(id, s.Cond, d)
		t.stmt(t.childFor(id, s.Body), d)
	}
}

func (t *Tree) localStmt(id NodeID, s *syntax.LocalStmt, d *diag.Collector) {
	var typ symbols.Type
	if s.Type != nil {
		typ = t.resolveTypeNode(id, t.childFor(id, s.Type), diag.PhaseStatements, d, true)
	}
	if s.Init != nil {
		x := t.expr(t.childFor(id, s.Init), d)
		if s.Type == nil {
			typ = x.typ
		} else {
			t.convert(x.typ, typ, s.Init.Span(), d)
		}
	}
	var owner symbols.Symbol
	if fn := t.enclosingFunction(id); fn != 0 {
		owner = t.nodes[fn].decl
	}
	t.nodes[id].decl = symbols.NewLocal(s.Name.Name, typ, owner, t.declOf(s))
}

func (t *Tree) returnStmt(id NodeID, s *syntax.ReturnStmt, d *diag.Collector) {
	var x operand
	if s.Value != nil {
		x = t.expr(t.childFor(id, s.Value), d)
	}
	fnID := t.enclosingFunction(id)
	if fnID == 0 {
		return
	}
	f, ok := t.nodes[fnID].decl.(*symbols.Function)
	if !ok {
		return
	}
	void := f.IsConstructor() || f.Returns() == nil || f.Returns() == t.g.Builtin(symbols.VoidName)
	switch {
	case s.Value != nil && void && f.Returns() != nil:
		d.Errorf(diag.PhaseStatements, diag.CodeTypeMismatch, s.Value.Span(), "%s does not return a value", f.Name())
	case s.Value == nil && !void:
		d.Errorf(diag.PhaseStatements, diag.CodeTypeMismatch, s.Range, "missing return value of type %s", typeString(f.Returns()))
	case s.Value != nil:
		t.convert(x.typ, f.Returns(), s.Value.Span(), d)
	}
}

func (t *Tree) condition(id NodeID, cond syntax.Expr, d *diag.Collector) {
	x := t.expr(t.childFor(id, cond), d)
	if cond != nil {
		t.convert(x.typ, t.g.Builtin(symbols.BoolName), cond.Span(), d)
	}
}

// convert checks that a value of type from may be used where to is expected.
// Identical types pass; castable types get an auto-cast hint; anything else
// is a type mismatch. Unknown types pass silently.
func (t *Tree) convert(from, to symbols.Type, rng syntax.Range, d *diag.Collector) bool {
	switch {
	case from == nil || to == nil || symbols.Identical(from, to):
		return true
	case symbols.Castable(from, to):
		d.Hintf(diag.PhaseStatements, diag.CodeAutoCast, rng, "implicit conversion from %s to %s", from.FullName(), to.FullName())
		return true
	}
	d.Errorf(diag.PhaseStatements, diag.CodeTypeMismatch, rng, "cannot convert %s to %s", from.FullName(), to.FullName())
	return false
}

func typeString(t symbols.Type) string {
	if t == nil {
		return "?"
	}
	return t.FullName()
}
