package tree

import (
	"github.com/jward/arbor/internal/diag"
	"github.com/jward/arbor/internal/symbols"
	"github.com/jward/arbor/internal/syntax"
)

type operandKind int

const (
	unknown operandKind = iota
	value
	typeRef
	namespaceRef
	functionRef
)

// operand is what an expression resolved to. A value with a nil type is a
// value of unknown type; it never produces follow-up diagnostics.
type operand struct {
	kind operandKind
	typ  symbols.Type
	sym  symbols.Symbol
}

func (o operand) namespace() *symbols.Namespace {
	ns, _ := o.sym.(*symbols.Namespace)
	return ns
}

// ThisName is the identifier that denotes the current instance.
const ThisName = "this"

// expr resolves the expression node id and caches its type and binding. The
// switch covers every expression variant.
func (t *Tree) expr(id NodeID, d *diag.Collector) operand {
	if !t.valid(id) {
		return operand{}
	}
	var o operand
	switch x := t.nodes[id].syn.(type) {
	case *syntax.Literal:
		o = t.literal(x)
	case *syntax.Ident:
		o = t.ident(id, x, d)
	case *syntax.MemberExpr:
		base := t.expr(t.childFor(id, x.X), d)
		o = t.member(id, base, x.Sel, nil, d)
	case *syntax.CallExpr:
		o = t.call(id, x, d)
	case *syntax.NewExpr:
		o = t.newExpr(id, x, d)
	case *syntax.BinaryExpr:
		o = t.binary(id, x, d)
	case *syntax.AssignExpr:
		o = t.assign(id, x, d)
	}
	n := &t.nodes[id]
	n.typ = o.typ
	n.typeRef = o.kind == typeRef
	if o.kind == typeRef {
		n.typ = nil
	}
	return o
}

func (t *Tree) literal(x *syntax.Literal) operand {
	name := ""
	switch x.Kind {
	case syntax.IntLit:
		name = symbols.IntName
	case syntax.FloatLit:
		name = symbols.FloatName
	case syntax.StringLit:
		name = symbols.StringName
	case syntax.BoolLit:
		name = symbols.BoolName
	case syntax.NullLit:
		return operand{kind: value}
	}
	return operand{kind: value, typ: t.g.Builtin(name)}
}

// bind records that node id refers to sym, with a usage at rng.
func (t *Tree) bind(id NodeID, sym symbols.Symbol, rng syntax.Range) {
	t.nodes[id].ref = sym
	t.recordUsage(sym, rng)
}

// operandOf describes a found symbol as an operand.
func operandOf(sym symbols.Symbol) operand {
	switch s := sym.(type) {
	case symbols.Valued:
		return operand{kind: value, typ: s.Type(), sym: s}
	case symbols.Type:
		return operand{kind: typeRef, typ: s, sym: s}
	case *symbols.Namespace:
		return operand{kind: namespaceRef, sym: s}
	case *symbols.Function:
		return operand{kind: functionRef, sym: s}
	}
	return operand{}
}

func (t *Tree) ident(id NodeID, x *syntax.Ident, d *diag.Collector) operand {
	if x.Name == ThisName {
		return t.this(id, x, d)
	}
	q := symbols.NewQuery(x.Name)
	q.StopOnFirst = true
	q.IgnoreConstructors = true
	t.Search(id, q)
	first := q.First()
	if first == nil {
		t.reportMissing(id, x, d)
		return operand{}
	}
	t.bind(id, first, x.Range)
	return operandOf(first)
}

// reportMissing tells an inaccessible member from an unknown name.
func (t *Tree) reportMissing(id NodeID, x *syntax.Ident, d *diag.Collector) {
	q := symbols.NewQuery(x.Name)
	q.StopOnFirst = true
	q.IgnoreConstructors = true
	q.IgnoreVisibility = true
	t.Search(id, q)
	if s := q.First(); s != nil {
		d.Errorf(diag.PhaseStatements, diag.CodeInaccessibleMember, x.Range, "%s is not accessible here", s.FullName())
		return
	}
	d.Errorf(diag.PhaseStatements, diag.CodeUnresolvedName, x.Range, "cannot resolve %q", x.Name)
}

func (t *Tree) this(id NodeID, x *syntax.Ident, d *diag.Collector) operand {
	types := t.enclosingTypes(id)
	if len(types) == 0 || t.staticContext(id) {
		d.Errorf(diag.PhaseStatements, diag.CodeUnresolvedName, x.Range, "%s is not available here", ThisName)
		return operand{}
	}
	t.nodes[id].ref = types[0]
	return operand{kind: value, typ: types[0]}
}

// memberQuery prepares a lookup of name on base. It returns nil when base
// cannot have members.
func (t *Tree) memberQuery(id NodeID, base operand, name string) (*symbols.Query, func(*symbols.Query)) {
	q := symbols.NewQuery(name)
	q.StopOnFirst = true
	q.IgnoreConstructors = true
	q.Access = t.enclosingTypes(id)
	switch base.kind {
	case namespaceRef:
		ns := base.namespace()
		return q, func(q *symbols.Query) { q.SearchNamespace(ns) }
	case typeRef:
		q.StaticOnly = true
		typ := base.typ
		return q, func(q *symbols.Query) { q.SearchType(typ) }
	case value:
		if base.typ == nil {
			return nil, nil
		}
		typ := base.typ
		return q, func(q *symbols.Query) { q.SearchType(typ) }
	}
	return nil, nil
}

// member resolves base.sel. With a non-nil signature the lookup only admits
// compatible overloads and the result is the selected function's return
// value.
func (t *Tree) member(id NodeID, base operand, sel syntax.Ident, sig symbols.Signature, d *diag.Collector) operand {
	q, run := t.memberQuery(id, base, sel.Name)
	if q == nil {
		return operand{}
	}
	q.Signature = sig
	run(q)
	if first := q.First(); first != nil {
		switch {
		case sig != nil && len(q.Functions) > 0:
			return t.selectOverload(id, q.Functions, sig, sel.Range, d)
		case sig != nil:
			t.bind(id, first, sel.Range)
			d.Errorf(diag.PhaseStatements, diag.CodeNotCallable, sel.Range, "%s is not callable", first.FullName())
			return operand{}
		}
		t.bind(id, first, sel.Range)
		return operandOf(first)
	}

	// Not found: work out the most useful diagnostic.
	loose, _ := t.memberQuery(id, base, sel.Name)
	loose.IgnoreVisibility = true
	run(loose)
	found := loose.First()
	switch {
	case found == nil:
		d.Errorf(diag.PhaseStatements, diag.CodeUnresolvedName, sel.Range, "%s has no member %q", baseString(base), sel.Name)
	case sig != nil && len(loose.Functions) > 0:
		t.reportNoOverload(loose.Functions, sig, sel.Range, d)
	case sig != nil && !t.accessible(id, base, sel.Name):
		d.Errorf(diag.PhaseStatements, diag.CodeInaccessibleMember, sel.Range, "%s is not accessible here", found.FullName())
	case sig != nil:
		d.Errorf(diag.PhaseStatements, diag.CodeNotCallable, sel.Range, "%s is not callable", found.FullName())
	default:
		d.Errorf(diag.PhaseStatements, diag.CodeInaccessibleMember, sel.Range, "%s is not accessible here", found.FullName())
	}
	return operand{}
}

// accessible reports whether name is visible on base from id, ignoring
// signatures.
func (t *Tree) accessible(id NodeID, base operand, name string) bool {
	q, run := t.memberQuery(id, base, name)
	if q == nil {
		return false
	}
	run(q)
	return q.First() != nil
}

func baseString(o operand) string {
	switch o.kind {
	case namespaceRef, typeRef:
		return o.sym.FullName()
	}
	return typeString(o.typ)
}

func (t *Tree) call(id NodeID, x *syntax.CallExpr, d *diag.Collector) operand {
	args := make([]symbols.Type, len(x.Args))
	for i, a := range x.Args {
		args[i] = t.expr(t.childFor(id, a), d).typ
	}
	sig := symbols.SignatureOf(args...)
	funID := t.childFor(id, x.Fun)

	var o operand
	switch fun := x.Fun.(type) {
	case *syntax.Ident:
		o = t.callIdent(funID, fun, sig, d)
	case *syntax.MemberExpr:
		base := t.expr(t.childFor(funID, fun.X), d)
		o = t.member(funID, base, fun.Sel, sig, d)
	default:
		t.expr(funID, d)
		d.Errorf(diag.PhaseStatements, diag.CodeNotCallable, x.Fun.Span(), "expression is not callable")
		return operand{}
	}
	if f, ok := t.nodes[funID].ref.(*symbols.Function); ok {
		t.argumentHints(id, x.Args, f, d)
	}
	return o
}

func (t *Tree) callIdent(id NodeID, fun *syntax.Ident, sig symbols.Signature, d *diag.Collector) operand {
	q := symbols.NewQuery(fun.Name)
	q.StopOnFirst = true
	q.IgnoreConstructors = true
	q.Signature = sig
	t.Search(id, q)
	if len(q.Functions) > 0 {
		return t.selectOverload(id, q.Functions, sig, fun.Range, d)
	}

	loose := symbols.NewQuery(fun.Name)
	loose.StopOnFirst = true
	loose.IgnoreConstructors = true
	t.Search(id, loose)
	switch first := loose.First(); {
	case len(loose.Functions) > 0:
		t.reportNoOverload(loose.Functions, sig, fun.Range, d)
	case first != nil:
		t.bind(id, first, fun.Range)
		d.Errorf(diag.PhaseStatements, diag.CodeNotCallable, fun.Range, "%s is not callable", first.FullName())
	default:
		t.reportMissing(id, fun, d)
	}
	return operand{}
}

// selectOverload picks the best candidate among the compatible functions of
// one group. Several equally good non-Full candidates make the call
// ambiguous; the diagnostic lists them for disambiguation.
func (t *Tree) selectOverload(id NodeID, fns []*symbols.Function, sig symbols.Signature, rng syntax.Range, d *diag.Collector) operand {
	best := symbols.Rank(sig, fns)
	switch len(best) {
	case 0:
		t.reportNoOverload(fns, sig, rng, d)
		return operand{}
	case 1:
		f := best[0].Function
		t.bind(id, f, rng)
		return operand{kind: value, typ: f.Returns(), sym: f}
	}
	related := make([]string, len(best))
	for i, c := range best {
		related[i] = c.Function.String()
	}
	d.Add(diag.Diagnostic{
		Severity: diag.Error,
		Range:    rng,
		Phase:    diag.PhaseStatements,
		Code:     diag.CodeAmbiguousOverload,
		Message:  "ambiguous call to " + best[0].Function.Name() + sig.String(),
		Related:  related,
	})
	return operand{}
}

func (t *Tree) reportNoOverload(fns []*symbols.Function, sig symbols.Signature, rng syntax.Range, d *diag.Collector) {
	if len(fns) == 0 {
		return
	}
	related := make([]string, len(fns))
	for i, f := range fns {
		related[i] = f.String()
	}
	d.Add(diag.Diagnostic{
		Severity: diag.Error,
		Range:    rng,
		Phase:    diag.PhaseStatements,
		Code:     diag.CodeNoOverload,
		Message:  "no overload of " + fns[0].Name() + " matches " + sig.String(),
		Related:  related,
	})
}

// argumentHints reports an auto-cast hint for every argument that needs a
// conversion to the selected function's parameter type.
func (t *Tree) argumentHints(id NodeID, args []syntax.Expr, f *symbols.Function, d *diag.Collector) {
	params := f.Signature()
	if len(params) != len(args) {
		return
	}
	for i, a := range args {
		t.convert(t.TypeOf(t.childFor(id, a)), params[i].Type, a.Span(), d)
	}
}

func (t *Tree) newExpr(id NodeID, x *syntax.NewExpr, d *diag.Collector) operand {
	tnID := t.childFor(id, x.Type)
	typ := t.resolveTypeNode(id, tnID, diag.PhaseStatements, d, true)
	args := make([]symbols.Type, len(x.Args))
	for i, a := range x.Args {
		args[i] = t.expr(t.childFor(id, a), d).typ
	}
	if typ == nil {
		return operand{}
	}
	c, ok := typ.(*symbols.Class)
	if !ok || c.Builtin() {
		d.Errorf(diag.PhaseStatements, diag.CodeTypeMismatch, x.Type.Range, "cannot instantiate %s %s", typ.Kind(), typ.FullName())
		return operand{kind: value, typ: typ}
	}
	sig := symbols.SignatureOf(args...)
	ctors := c.LookupGroup(syntax.ConstructorName)
	if ctors == nil {
		if len(args) > 0 {
			d.Errorf(diag.PhaseStatements, diag.CodeNoOverload, x.Type.Range, "%s has no constructor taking %d arguments", c.FullName(), len(args))
		}
		return operand{kind: value, typ: c}
	}
	var compatible []*symbols.Function
	for _, f := range ctors.Functions() {
		if symbols.Matches(sig, f.Signature()) != symbols.MatchNo {
			compatible = append(compatible, f)
		}
	}
	if len(compatible) == 0 {
		t.reportNoOverload(ctors.Functions(), sig, x.Type.Range, d)
		return operand{kind: value, typ: c}
	}
	if o := t.selectOverload(id, compatible, sig, x.Type.Range, d); o.sym != nil {
		t.argumentHints(id, x.Args, o.sym.(*symbols.Function), d)
	}
	return operand{kind: value, typ: c}
}

func (t *Tree) binary(id NodeID, x *syntax.BinaryExpr, d *diag.Collector) operand {
	left := t.expr(t.childFor(id, x.X), d)
	right := t.expr(t.childFor(id, x.Y), d)
	if left.kind != value || left.typ == nil || right.typ == nil {
		return operand{}
	}
	name := syntax.OperatorPrefix + x.Op.Name
	q := symbols.NewQuery(name)
	q.StopOnFirst = true
	q.Signature = symbols.SignatureOf(right.typ)
	q.Access = t.enclosingTypes(id)
	q.SearchType(left.typ)
	if len(q.Functions) == 0 {
		d.Errorf(diag.PhaseStatements, diag.CodeNoOverload, x.Op.Range,
			"no operator %s for %s and %s", x.Op.Name, left.typ.FullName(), right.typ.FullName())
		return operand{}
	}
	return t.selectOverload(id, q.Functions, q.Signature, x.Op.Range, d)
}

func (t *Tree) assign(id NodeID, x *syntax.AssignExpr, d *diag.Collector) operand {
	target := t.expr(t.childFor(id, x.Target), d)
	val := t.expr(t.childFor(id, x.Value), d)
	switch s := target.sym.(type) {
	case nil:
		if target.kind == unknown {
			return operand{}
		}
	case *symbols.Variable:
		if s.ReadOnly() {
			d.Errorf(diag.PhaseStatements, diag.CodeTypeMismatch, x.Target.Span(), "cannot assign to read-only %s", s.FullName())
			return operand{kind: value, typ: target.typ}
		}
	case *symbols.Argument, *symbols.LocalVariable:
	default:
		d.Errorf(diag.PhaseStatements, diag.CodeTypeMismatch, x.Target.Span(), "cannot assign to %s %s", s.Kind(), s.FullName())
		return operand{}
	}
	if target.kind != value {
		return operand{}
	}
	t.convert(val.typ, target.typ, x.Value.Span(), d)
	return operand{kind: value, typ: target.typ}
}
