package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, src string) *File {
	t.Helper()
	f, err := Decode([]byte(src))
	require.NoError(t, err)
	return f
}

// =============================================================================
// Declarations
// =============================================================================

func TestDecode_Namespace(t *testing.T) {
	t.Parallel()
	f := decode(t, `namespace: geo
pins: [util]
decls:
  - class: Shape
    extends: Base
    implements: [A, B]
    members:
      - function: area
        params:
          - {name: x, type: Int}
        returns: Float
        visibility: protected
        body:
          - local: n
            init: 1
          - return: {call: area, args: [x]}
`)
	assert.Empty(t, f.Pins)
	require.Len(t, f.Decls, 1)
	ns, ok := f.Decls[0].(*NamespaceDecl)
	require.True(t, ok)
	assert.Equal(t, "geo", ns.Name.Name())
	require.Len(t, ns.Pins, 1)
	assert.Equal(t, "util", ns.Pins[0].Name())

	require.Len(t, ns.Decls, 1)
	cls, ok := ns.Decls[0].(*ClassDecl)
	require.True(t, ok)
	assert.Equal(t, "Shape", cls.Name.Name)
	assert.Equal(t, Range{Start: Pos{3, 11}, End: Pos{3, 16}}, cls.Name.Range)
	assert.Equal(t, "Base", cls.Extends.Name())
	require.Len(t, cls.Implements, 2)
	assert.Equal(t, "B", cls.Implements[1].Name())

	require.Len(t, cls.Members, 1)
	fn, ok := cls.Members[0].(*FunctionDecl)
	require.True(t, ok)
	assert.Equal(t, Method, fn.Kind)
	assert.Equal(t, "area", fn.GroupName())
	assert.Equal(t, Protected, fn.Visibility)
	assert.Equal(t, "Float", fn.Returns.Name())
	require.Len(t, fn.Params, 1)
	assert.Equal(t, "x", fn.Params[0].Name.Name)
	assert.Equal(t, "Int", fn.Params[0].Type.Name())

	require.NotNil(t, fn.Body)
	require.Len(t, fn.Body.Stmts, 2)
	local, ok := fn.Body.Stmts[0].(*LocalStmt)
	require.True(t, ok)
	assert.Equal(t, "n", local.Name.Name)
	assert.Equal(t, &Literal{Kind: IntLit, Value: "1", Range: local.Init.Span()}, local.Init)

	ret, ok := fn.Body.Stmts[1].(*ReturnStmt)
	require.True(t, ok)
	call, ok := ret.Value.(*CallExpr)
	require.True(t, ok)
	assert.Equal(t, "area", call.Fun.(*Ident).Name)
	require.Len(t, call.Args, 1)
	assert.Equal(t, "x", call.Args[0].(*Ident).Name)
}

func TestDecode_FileLevelPins(t *testing.T) {
	t.Parallel()
	f := decode(t, "pins: geo\ndecls:\n  - var: origin\n    type: geo.Point\n    static: true\n")
	require.Len(t, f.Pins, 1)
	assert.Equal(t, "geo", f.Pins[0].Name())

	v, ok := f.Decls[0].(*VarDecl)
	require.True(t, ok)
	assert.True(t, v.Static)
	require.Len(t, v.Type.Segments, 2)
	assert.Equal(t, "Point", v.Type.Segments[1].Name)
}

func TestDecode_InterfaceAndEnum(t *testing.T) {
	t.Parallel()
	f := decode(t, `decls:
  - interface: Drawable
    extends: [Visible, Sized]
    members:
      - function: draw
  - enum: Color
    values: [Red, Green]
    visibility: private
`)
	require.Len(t, f.Decls, 2)
	iface := f.Decls[0].(*InterfaceDecl)
	assert.Len(t, iface.Extends, 2)
	assert.Nil(t, iface.Members[0].(*FunctionDecl).Body)

	enum := f.Decls[1].(*EnumDecl)
	assert.Equal(t, Private, enum.Visibility)
	require.Len(t, enum.Values, 2)
	assert.Equal(t, "Green", enum.Values[1].Name)
}

func TestDecode_OperatorsAndConstructors(t *testing.T) {
	t.Parallel()
	f := decode(t, `decls:
  - class: Vec
    members:
      - constructor:
        params:
          - {name: x, type: Int}
      - operator: "+"
        params:
          - {name: o, type: Vec}
        returns: Vec
`)
	members := f.Decls[0].(*ClassDecl).Members
	require.Len(t, members, 2)

	ctor := members[0].(*FunctionDecl)
	assert.Equal(t, Constructor, ctor.Kind)
	assert.Equal(t, ConstructorName, ctor.GroupName())
	assert.Len(t, ctor.Params, 1)

	op := members[1].(*FunctionDecl)
	assert.Equal(t, Operator, op.Kind)
	assert.Equal(t, "operator+", op.GroupName())
}

func TestDecode_ExplicitRange(t *testing.T) {
	t.Parallel()
	f := decode(t, "decls: [{class: A, range: [1, 2, 3, 4]}]")
	assert.Equal(t, Range{Start: Pos{1, 2}, End: Pos{3, 4}}, f.Decls[0].Span())
}

func TestDecode_Empty(t *testing.T) {
	t.Parallel()
	for _, src := range []string{"", "~", "# nothing\n"} {
		f := decode(t, src)
		assert.Empty(t, f.Decls, "source %q", src)
	}
}

// =============================================================================
// Statements and expressions
// =============================================================================

func TestDecode_IdentChain(t *testing.T) {
	t.Parallel()
	f := decode(t, `decls:
  - function: f
    body:
      - expr: a.b.c
`)
	stmt := f.Decls[0].(*FunctionDecl).Body.Stmts[0].(*ExprStmt)
	outer, ok := stmt.X.(*MemberExpr)
	require.True(t, ok)
	assert.Equal(t, "c", outer.Sel.Name)
	assert.Equal(t, Range{Start: Pos{3, 18}, End: Pos{3, 19}}, outer.Sel.Range)

	inner, ok := outer.X.(*MemberExpr)
	require.True(t, ok)
	assert.Equal(t, "b", inner.Sel.Name)
	root := inner.X.(*Ident)
	assert.Equal(t, "a", root.Name)
	assert.Equal(t, Range{Start: Pos{3, 14}, End: Pos{3, 15}}, root.Range)
	assert.Equal(t, Range{Start: Pos{3, 14}, End: Pos{3, 19}}, outer.Range)
}

func TestDecode_Statements(t *testing.T) {
	t.Parallel()
	f := decode(t, `decls:
  - function: f
    body:
      - if: {binary: "<", left: i, right: 10}
        then:
          - expr: {assign: i, value: {binary: "+", left: i, right: 1}}
        else:
          - return:
      - while: true
        body:
          - expr: {new: geo.Point, args: [1.5, "s", null]}
      - block:
          - expr: {member: size, of: {call: items}}
`)
	stmts := f.Decls[0].(*FunctionDecl).Body.Stmts
	require.Len(t, stmts, 3)

	ifs := stmts[0].(*IfStmt)
	cond := ifs.Cond.(*BinaryExpr)
	assert.Equal(t, "<", cond.Op.Name)
	assert.Equal(t, IntLit, cond.Y.(*Literal).Kind)
	assign := ifs.Then.Stmts[0].(*ExprStmt).X.(*AssignExpr)
	assert.Equal(t, "i", assign.Target.(*Ident).Name)
	assert.Nil(t, ifs.Else.Stmts[0].(*ReturnStmt).Value)

	loop := stmts[1].(*WhileStmt)
	assert.Equal(t, BoolLit, loop.Cond.(*Literal).Kind)
	nx := loop.Body.Stmts[0].(*ExprStmt).X.(*NewExpr)
	assert.Equal(t, "geo.Point", nx.Type.Name())
	require.Len(t, nx.Args, 3)
	assert.Equal(t, FloatLit, nx.Args[0].(*Literal).Kind)
	assert.Equal(t, StringLit, nx.Args[1].(*Literal).Kind)
	assert.Equal(t, NullLit, nx.Args[2].(*Literal).Kind)

	blk := stmts[2].(*Block)
	member := blk.Stmts[0].(*ExprStmt).X.(*MemberExpr)
	assert.Equal(t, "size", member.Sel.Name)
	assert.IsType(t, &CallExpr{}, member.X)
}

func TestDecode_StringForms(t *testing.T) {
	t.Parallel()
	f := decode(t, `decls:
  - var: a
    init: {str: plain}
  - var: b
    init: {ident: x.y}
`)
	lit := f.Decls[0].(*VarDecl).Init.(*Literal)
	assert.Equal(t, StringLit, lit.Kind)
	assert.Equal(t, "plain", lit.Value)
	assert.IsType(t, &MemberExpr{}, f.Decls[1].(*VarDecl).Init)
}

// =============================================================================
// Errors
// =============================================================================

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown key", "decls: [{class: A, colour: red}]", `unknown key "colour"`},
		{"unknown declaration", "decls: [{widget: A}]", "unknown declaration"},
		{"unknown statement", "decls: [{function: f, body: [{loop: x}]}]", "unknown statement"},
		{"bad range", "decls: [{class: A, range: [1, 2]}]", "range"},
		{"bad visibility", "decls: [{class: A, visibility: secret}]", `unknown visibility "secret"`},
		{"missing name", "decls: [{class: }]", "expected name"},
		{"decls not a list", "decls: {class: A}", "expected list of declarations"},
		{"root not a mapping", "[1, 2]", "expected mapping"},
		{"bad static", "decls: [{var: v, static: maybe}]", "static: expected bool"},
		{"empty path segment", "decls: [{var: v, init: a..b}]", "bad identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode([]byte(tt.src))
			require.ErrorIs(t, err, ErrMalformed)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecode_InvalidYAML(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte("decls: [{class: "))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestDecodeFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := DecodeFile("/nonexistent/a.arb.yaml")
	assert.ErrorContains(t, err, "syntax: read")
}

// =============================================================================
// Positions
// =============================================================================

func TestNewTypeName(t *testing.T) {
	t.Parallel()
	tn := NewTypeName("a.bc", Pos{Line: 1, Col: 4})
	assert.Equal(t, "a.bc", tn.Name())
	require.Len(t, tn.Segments, 2)
	assert.Equal(t, Range{Start: Pos{1, 4}, End: Pos{1, 5}}, tn.Segments[0].Range)
	assert.Equal(t, Range{Start: Pos{1, 6}, End: Pos{1, 8}}, tn.Segments[1].Range)
	assert.Equal(t, Range{Start: Pos{1, 4}, End: Pos{1, 8}}, tn.Range)

	var none *TypeName
	assert.Equal(t, "", none.Name())
	assert.Empty(t, NewTypeName("", Pos{}).Segments)
}

func TestRange_Contains(t *testing.T) {
	t.Parallel()
	r := Range{Start: Pos{2, 4}, End: Pos{2, 9}}
	assert.True(t, r.Contains(Pos{2, 4}))
	assert.True(t, r.Contains(Pos{2, 9}))
	assert.False(t, r.Contains(Pos{2, 3}))
	assert.False(t, r.Contains(Pos{3, 0}))
	assert.True(t, Pos{1, 9}.Before(Pos{2, 0}))
	assert.True(t, Range{}.IsZero())

	p := r.Protocol()
	assert.Equal(t, uint32(2), p.Start.Line)
	assert.Equal(t, uint32(9), p.End.Character)
}
