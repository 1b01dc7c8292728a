package syntax

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformed is wrapped by every decoding error caused by a document that
// does not follow the interchange format.
var ErrMalformed = errors.New("syntax: malformed tree")

// DecodeFile reads and decodes the syntax tree stored at path.
func DecodeFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("syntax: read %s: %w", path, err)
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Decode decodes a syntax tree from its YAML (or JSON) interchange form. An
// empty document decodes to an empty file.
func Decode(data []byte) (*File, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("syntax: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &File{}, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.ShortTag() == "!!null" {
		return &File{}, nil
	}
	return decodeFile(root)
}

func decodeFile(n *yaml.Node) (*File, error) {
	f, err := fieldsOf(n, "namespace", "pins", "decls", "range")
	if err != nil {
		return nil, err
	}
	rng, err := rangeOf(n, f)
	if err != nil {
		return nil, err
	}
	pins, err := typeNames(f.get("pins"))
	if err != nil {
		return nil, err
	}
	decls, err := declList(f.get("decls"))
	if err != nil {
		return nil, err
	}
	file := &File{Range: rng}
	if ns := f.get("namespace"); ns != nil {
		name, err := typeName(ns)
		if err != nil {
			return nil, err
		}
		file.Decls = []Decl{&NamespaceDecl{Name: name, Pins: pins, Decls: decls, Range: rng}}
		return file, nil
	}
	file.Pins = pins
	file.Decls = decls
	return file, nil
}

// fields is a decoded mapping that remembers key order.
type fields struct {
	node   *yaml.Node
	keys   []string
	values map[string]*yaml.Node
}

func fieldsOf(n *yaml.Node, allowed ...string) (*fields, error) {
	if n.Kind != yaml.MappingNode {
		return nil, malformed(n, "expected mapping")
	}
	f := &fields{node: n, values: make(map[string]*yaml.Node, len(n.Content)/2)}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if len(allowed) > 0 && !slices.Contains(allowed, key) {
			return nil, malformed(n.Content[i], fmt.Sprintf("unknown key %q", key))
		}
		if _, dup := f.values[key]; dup {
			return nil, malformed(n.Content[i], fmt.Sprintf("duplicate key %q", key))
		}
		f.keys = append(f.keys, key)
		f.values[key] = n.Content[i+1]
	}
	return f, nil
}

func (f *fields) get(key string) *yaml.Node {
	return f.values[key]
}

func (f *fields) scalar(key string) (string, error) {
	v := f.values[key]
	if v == nil {
		return "", nil
	}
	if v.Kind != yaml.ScalarNode {
		return "", malformed(v, fmt.Sprintf("%s: expected scalar", key))
	}
	return v.Value, nil
}

func (f *fields) flag(key string) (bool, error) {
	v := f.values[key]
	if v == nil {
		return false, nil
	}
	var b bool
	if err := v.Decode(&b); err != nil {
		return false, malformed(v, fmt.Sprintf("%s: expected bool", key))
	}
	return b, nil
}

func (f *fields) visibility() (Visibility, error) {
	s, err := f.scalar("visibility")
	if err != nil {
		return Public, err
	}
	vis, ok := ParseVisibility(s)
	if !ok {
		return Public, malformed(f.get("visibility"), fmt.Sprintf("unknown visibility %q", s))
	}
	return vis, nil
}

// discriminator returns the first key of f that is one of kinds.
func (f *fields) discriminator(kinds ...string) string {
	for _, k := range f.keys {
		if slices.Contains(kinds, k) {
			return k
		}
	}
	return ""
}

func malformed(n *yaml.Node, msg string) error {
	if n == nil {
		return fmt.Errorf("%w: %s", ErrMalformed, msg)
	}
	return fmt.Errorf("%w: line %d col %d: %s", ErrMalformed, n.Line, n.Column, msg)
}

func startOf(n *yaml.Node) Pos {
	p := Pos{Line: n.Line - 1, Col: n.Column - 1}
	if n.Kind == yaml.ScalarNode && n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		p.Col++
	}
	return p
}

func endOf(n *yaml.Node) Pos {
	if n.Kind == yaml.ScalarNode {
		p := startOf(n)
		lines := strings.Split(n.Value, "\n")
		if len(lines) == 1 {
			return Pos{Line: p.Line, Col: p.Col + len(n.Value)}
		}
		return Pos{Line: p.Line + len(lines) - 1, Col: len(lines[len(lines)-1])}
	}
	end := startOf(n)
	for _, c := range n.Content {
		if e := endOf(c); end.Before(e) {
			end = e
		}
	}
	return end
}

// rangeOf returns the explicit "range" of a construct, or the span of its
// mapping in the source text when none is given.
func rangeOf(n *yaml.Node, f *fields) (Range, error) {
	if f != nil {
		if r := f.get("range"); r != nil {
			var v []int
			if err := r.Decode(&v); err != nil || len(v) != 4 {
				return Range{}, malformed(r, "range: expected [line, col, line, col]")
			}
			return Range{Start: Pos{Line: v[0], Col: v[1]}, End: Pos{Line: v[2], Col: v[3]}}, nil
		}
	}
	return Range{Start: startOf(n), End: endOf(n)}, nil
}

func ident(n *yaml.Node) (Ident, error) {
	if n == nil || n.Kind != yaml.ScalarNode || n.Value == "" {
		return Ident{}, malformed(n, "expected name")
	}
	return Ident{Name: n.Value, Range: span(startOf(n), len(n.Value))}, nil
}

func typeName(n *yaml.Node) (*TypeName, error) {
	if n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null") {
		return nil, nil
	}
	if n.Kind != yaml.ScalarNode {
		return nil, malformed(n, "expected type name")
	}
	return NewTypeName(n.Value, startOf(n)), nil
}

func typeNames(n *yaml.Node) ([]*TypeName, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind == yaml.ScalarNode {
		tn, err := typeName(n)
		if err != nil || tn == nil {
			return nil, err
		}
		return []*TypeName{tn}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, malformed(n, "expected list of type names")
	}
	out := make([]*TypeName, 0, len(n.Content))
	for _, c := range n.Content {
		tn, err := typeName(c)
		if err != nil {
			return nil, err
		}
		if tn != nil {
			out = append(out, tn)
		}
	}
	return out, nil
}

func sequence(n *yaml.Node, what string) ([]*yaml.Node, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, malformed(n, "expected list of "+what)
	}
	return n.Content, nil
}

// --- declarations ---

var declKinds = []string{"namespace", "class", "interface", "enum", "function", "operator", "constructor", "var"}

func declList(n *yaml.Node) ([]Decl, error) {
	items, err := sequence(n, "declarations")
	if err != nil {
		return nil, err
	}
	decls := make([]Decl, 0, len(items))
	for _, item := range items {
		d, err := decl(item)
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func decl(n *yaml.Node) (Decl, error) {
	f, err := fieldsOf(n)
	if err != nil {
		return nil, err
	}
	switch f.discriminator(declKinds...) {
	case "namespace":
		return namespaceDecl(n, f)
	case "class":
		return classDecl(n, f)
	case "interface":
		return interfaceDecl(n, f)
	case "enum":
		return enumDecl(n, f)
	case "function", "operator", "constructor":
		return functionDecl(n, f)
	case "var":
		return varDecl(n, f)
	}
	return nil, malformed(n, "unknown declaration")
}

func namespaceDecl(n *yaml.Node, f *fields) (*NamespaceDecl, error) {
	if _, err := fieldsOf(n, "namespace", "pins", "decls", "range"); err != nil {
		return nil, err
	}
	name, err := typeName(f.get("namespace"))
	if err != nil {
		return nil, err
	}
	if name == nil || len(name.Segments) == 0 {
		return nil, malformed(n, "namespace: expected name")
	}
	pins, err := typeNames(f.get("pins"))
	if err != nil {
		return nil, err
	}
	decls, err := declList(f.get("decls"))
	if err != nil {
		return nil, err
	}
	rng, err := rangeOf(n, f)
	if err != nil {
		return nil, err
	}
	return &NamespaceDecl{Name: name, Pins: pins, Decls: decls, Range: rng}, nil
}

func classDecl(n *yaml.Node, f *fields) (*ClassDecl, error) {
	if _, err := fieldsOf(n, "class", "extends", "implements", "members", "visibility", "range"); err != nil {
		return nil, err
	}
	name, err := ident(f.get("class"))
	if err != nil {
		return nil, err
	}
	ext, err := typeName(f.get("extends"))
	if err != nil {
		return nil, err
	}
	impls, err := typeNames(f.get("implements"))
	if err != nil {
		return nil, err
	}
	members, err := declList(f.get("members"))
	if err != nil {
		return nil, err
	}
	vis, err := f.visibility()
	if err != nil {
		return nil, err
	}
	rng, err := rangeOf(n, f)
	if err != nil {
		return nil, err
	}
	return &ClassDecl{Name: name, Extends: ext, Implements: impls, Members: members, Visibility: vis, Range: rng}, nil
}

func interfaceDecl(n *yaml.Node, f *fields) (*InterfaceDecl, error) {
	if _, err := fieldsOf(n, "interface", "extends", "members", "visibility", "range"); err != nil {
		return nil, err
	}
	name, err := ident(f.get("interface"))
	if err != nil {
		return nil, err
	}
	ext, err := typeNames(f.get("extends"))
	if err != nil {
		return nil, err
	}
	members, err := declList(f.get("members"))
	if err != nil {
		return nil, err
	}
	vis, err := f.visibility()
	if err != nil {
		return nil, err
	}
	rng, err := rangeOf(n, f)
	if err != nil {
		return nil, err
	}
	return &InterfaceDecl{Name: name, Extends: ext, Members: members, Visibility: vis, Range: rng}, nil
}

func enumDecl(n *yaml.Node, f *fields) (*EnumDecl, error) {
	if _, err := fieldsOf(n, "enum", "values", "visibility", "range"); err != nil {
		return nil, err
	}
	name, err := ident(f.get("enum"))
	if err != nil {
		return nil, err
	}
	items, err := sequence(f.get("values"), "enum values")
	if err != nil {
		return nil, err
	}
	values := make([]Ident, 0, len(items))
	for _, item := range items {
		v, err := ident(item)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	vis, err := f.visibility()
	if err != nil {
		return nil, err
	}
	rng, err := rangeOf(n, f)
	if err != nil {
		return nil, err
	}
	return &EnumDecl{Name: name, Values: values, Visibility: vis, Range: rng}, nil
}

func functionDecl(n *yaml.Node, f *fields) (*FunctionDecl, error) {
	kind := f.discriminator("function", "operator", "constructor")
	if _, err := fieldsOf(n, kind, "params", "returns", "static", "visibility", "body", "range"); err != nil {
		return nil, err
	}
	fn := &FunctionDecl{}
	switch kind {
	case "function":
		name, err := ident(f.get("function"))
		if err != nil {
			return nil, err
		}
		fn.Name, fn.Kind = name, Method
	case "operator":
		name, err := ident(f.get("operator"))
		if err != nil {
			return nil, err
		}
		fn.Name, fn.Kind = name, Operator
	case "constructor":
		key := f.get("constructor")
		fn.Name = Ident{Name: ConstructorName, Range: span(startOf(key), 0)}
		fn.Kind = Constructor
	}

	items, err := sequence(f.get("params"), "parameters")
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		p, err := param(item)
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, p)
	}
	if fn.Returns, err = typeName(f.get("returns")); err != nil {
		return nil, err
	}
	if fn.Static, err = f.flag("static"); err != nil {
		return nil, err
	}
	if fn.Visibility, err = f.visibility(); err != nil {
		return nil, err
	}
	if body := f.get("body"); body != nil {
		if fn.Body, err = block(body); err != nil {
			return nil, err
		}
	}
	if fn.Range, err = rangeOf(n, f); err != nil {
		return nil, err
	}
	return fn, nil
}

func param(n *yaml.Node) (*Param, error) {
	f, err := fieldsOf(n, "name", "type", "range")
	if err != nil {
		return nil, err
	}
	name, err := ident(f.get("name"))
	if err != nil {
		return nil, err
	}
	typ, err := typeName(f.get("type"))
	if err != nil {
		return nil, err
	}
	rng, err := rangeOf(n, f)
	if err != nil {
		return nil, err
	}
	return &Param{Name: name, Type: typ, Range: rng}, nil
}

func varDecl(n *yaml.Node, f *fields) (*VarDecl, error) {
	if _, err := fieldsOf(n, "var", "type", "static", "visibility", "init", "range"); err != nil {
		return nil, err
	}
	name, err := ident(f.get("var"))
	if err != nil {
		return nil, err
	}
	v := &VarDecl{Name: name}
	if v.Type, err = typeName(f.get("type")); err != nil {
		return nil, err
	}
	if v.Static, err = f.flag("static"); err != nil {
		return nil, err
	}
	if v.Visibility, err = f.visibility(); err != nil {
		return nil, err
	}
	if init := f.get("init"); init != nil {
		if v.Init, err = expr(init); err != nil {
			return nil, err
		}
	}
	if v.Range, err = rangeOf(n, f); err != nil {
		return nil, err
	}
	return v, nil
}

// --- statements ---

func block(n *yaml.Node) (*Block, error) {
	items, err := sequence(n, "statements")
	if err != nil {
		return nil, err
	}
	b := &Block{Range: Range{Start: startOf(n), End: endOf(n)}}
	for _, item := range items {
		s, err := stmt(item)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	return b, nil
}

func stmt(n *yaml.Node) (Stmt, error) {
	f, err := fieldsOf(n)
	if err != nil {
		return nil, err
	}
	rng, err := rangeOf(n, f)
	if err != nil {
		return nil, err
	}
	switch f.discriminator("local", "expr", "return", "if", "while", "block") {
	case "local":
		if _, err := fieldsOf(n, "local", "type", "init", "range"); err != nil {
			return nil, err
		}
		name, err := ident(f.get("local"))
		if err != nil {
			return nil, err
		}
		s := &LocalStmt{Name: name, Range: rng}
		if s.Type, err = typeName(f.get("type")); err != nil {
			return nil, err
		}
		if init := f.get("init"); init != nil {
			if s.Init, err = expr(init); err != nil {
				return nil, err
			}
		}
		return s, nil
	case "expr":
		x, err := expr(f.get("expr"))
		if err != nil {
			return nil, err
		}
		return &ExprStmt{X: x, Range: rng}, nil
	case "return":
		s := &ReturnStmt{Range: rng}
		if v := f.get("return"); !(v.Kind == yaml.ScalarNode && v.ShortTag() == "!!null" && v.Value == "") {
			if s.Value, err = expr(v); err != nil {
				return nil, err
			}
		}
		return s, nil
	case "if":
		if _, err := fieldsOf(n, "if", "then", "else", "range"); err != nil {
			return nil, err
		}
		cond, err := expr(f.get("if"))
		if err != nil {
			return nil, err
		}
		s := &IfStmt{Cond: cond, Range: rng}
		if then := f.get("then"); then != nil {
			if s.Then, err = block(then); err != nil {
				return nil, err
			}
		}
		if els := f.get("else"); els != nil {
			if s.Else, err = block(els); err != nil {
				return nil, err
			}
		}
		return s, nil
	case "while":
		if _, err := fieldsOf(n, "while", "body", "range"); err != nil {
			return nil, err
		}
		cond, err := expr(f.get("while"))
		if err != nil {
			return nil, err
		}
		s := &WhileStmt{Cond: cond, Range: rng}
		if body := f.get("body"); body != nil {
			if s.Body, err = block(body); err != nil {
				return nil, err
			}
		}
		return s, nil
	case "block":
		return block(f.get("block"))
	}
	return nil, malformed(n, "unknown statement")
}

// --- expressions ---

func expr(n *yaml.Node) (Expr, error) {
	if n == nil {
		return nil, malformed(nil, "missing expression")
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return scalarExpr(n)
	case yaml.MappingNode:
		return mappingExpr(n)
	}
	return nil, malformed(n, "expected expression")
}

func scalarExpr(n *yaml.Node) (Expr, error) {
	lit := func(k LitKind) *Literal {
		return &Literal{Kind: k, Value: n.Value, Range: span(startOf(n), len(n.Value))}
	}
	switch n.ShortTag() {
	case "!!null":
		return lit(NullLit), nil
	case "!!bool":
		return lit(BoolLit), nil
	case "!!int":
		return lit(IntLit), nil
	case "!!float":
		return lit(FloatLit), nil
	}
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		return lit(StringLit), nil
	}
	return identChain(n.Value, startOf(n))
}

// identChain turns a dotted path a.b.c into nested member expressions.
func identChain(path string, p Pos) (Expr, error) {
	if path == "" {
		return nil, malformed(nil, "empty identifier")
	}
	parts := strings.Split(path, ".")
	var x Expr = &Ident{Name: parts[0], Range: span(p, len(parts[0]))}
	col := p.Col + len(parts[0]) + 1
	for _, part := range parts[1:] {
		if part == "" {
			return nil, malformed(nil, fmt.Sprintf("bad identifier %q", path))
		}
		sel := Ident{Name: part, Range: span(Pos{Line: p.Line, Col: col}, len(part))}
		x = &MemberExpr{X: x, Sel: sel, Range: Range{Start: p, End: sel.Range.End}}
		col += len(part) + 1
	}
	return x, nil
}

func mappingExpr(n *yaml.Node) (Expr, error) {
	f, err := fieldsOf(n)
	if err != nil {
		return nil, err
	}
	rng, err := rangeOf(n, f)
	if err != nil {
		return nil, err
	}
	switch f.discriminator("str", "ident", "call", "new", "binary", "assign", "member") {
	case "str":
		v := f.get("str")
		return &Literal{Kind: StringLit, Value: v.Value, Range: span(startOf(v), len(v.Value))}, nil
	case "ident":
		v := f.get("ident")
		if v.Kind != yaml.ScalarNode {
			return nil, malformed(v, "ident: expected scalar")
		}
		return identChain(v.Value, startOf(v))
	case "call":
		if _, err := fieldsOf(n, "call", "args", "range"); err != nil {
			return nil, err
		}
		fun, err := expr(f.get("call"))
		if err != nil {
			return nil, err
		}
		args, err := exprList(f.get("args"))
		if err != nil {
			return nil, err
		}
		return &CallExpr{Fun: fun, Args: args, Range: rng}, nil
	case "new":
		if _, err := fieldsOf(n, "new", "args", "range"); err != nil {
			return nil, err
		}
		typ, err := typeName(f.get("new"))
		if err != nil {
			return nil, err
		}
		if typ == nil {
			return nil, malformed(n, "new: expected type name")
		}
		args, err := exprList(f.get("args"))
		if err != nil {
			return nil, err
		}
		return &NewExpr{Type: typ, Args: args, Range: rng}, nil
	case "binary":
		if _, err := fieldsOf(n, "binary", "left", "right", "range"); err != nil {
			return nil, err
		}
		op, err := ident(f.get("binary"))
		if err != nil {
			return nil, err
		}
		x, err := expr(f.get("left"))
		if err != nil {
			return nil, err
		}
		y, err := expr(f.get("right"))
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, X: x, Y: y, Range: rng}, nil
	case "assign":
		if _, err := fieldsOf(n, "assign", "value", "range"); err != nil {
			return nil, err
		}
		target, err := expr(f.get("assign"))
		if err != nil {
			return nil, err
		}
		value, err := expr(f.get("value"))
		if err != nil {
			return nil, err
		}
		return &AssignExpr{Target: target, Value: value, Range: rng}, nil
	case "member":
		if _, err := fieldsOf(n, "member", "of", "range"); err != nil {
			return nil, err
		}
		sel, err := ident(f.get("member"))
		if err != nil {
			return nil, err
		}
		x, err := expr(f.get("of"))
		if err != nil {
			return nil, err
		}
		return &MemberExpr{X: x, Sel: sel, Range: rng}, nil
	}
	return nil, malformed(n, "unknown expression")
}

func exprList(n *yaml.Node) ([]Expr, error) {
	items, err := sequence(n, "expressions")
	if err != nil {
		return nil, err
	}
	out := make([]Expr, 0, len(items))
	for _, item := range items {
		x, err := expr(item)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}
