package symbols

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jward/arbor/internal/syntax"
)

// ErrEmptyTypeName is an internal-invariant violation: a type name with no
// segments.
var ErrEmptyTypeName = errors.New("symbols: empty type name")

// Names of the built-in types registered in the root namespace.
const (
	ObjectName = "Object"
	IntName    = "Int"
	FloatName  = "Float"
	BoolName   = "Bool"
	StringName = "String"
	VoidName   = "Void"
	EnumName   = "Enum"
)

// Graph owns the root namespace and the built-in types. It lives as long as
// the engine that created it.
type Graph struct {
	root   *Namespace
	object *Class
	enum   *Class
}

// NewGraph returns a graph whose root holds the built-in types.
func NewGraph() *Graph {
	g := &Graph{root: newNamespace("")}
	g.object = g.builtinClass(ObjectName, nil)
	g.enum = g.builtinClass(EnumName, g.object)
	for _, name := range []string{IntName, FloatName, BoolName, StringName, VoidName} {
		g.builtinClass(name, g.object)
	}
	g.builtinOperators()
	return g
}

func (g *Graph) builtinClass(name string, super *Class) *Class {
	c := g.NewClass(TypeSpec{Name: name})
	c.builtin = true
	c.super = super
	if err := g.root.Register(c); err != nil {
		panic(err)
	}
	return c
}

type builtinOp struct {
	on, op, arg, ret string
}

var builtinOps = []builtinOp{
	{IntName, "+", IntName, IntName}, {IntName, "-", IntName, IntName},
	{IntName, "*", IntName, IntName}, {IntName, "/", IntName, IntName},
	{IntName, "%", IntName, IntName},
	{IntName, "<", IntName, BoolName}, {IntName, ">", IntName, BoolName},
	{IntName, "<=", IntName, BoolName}, {IntName, ">=", IntName, BoolName},
	{IntName, "+", FloatName, FloatName}, {IntName, "*", FloatName, FloatName},
	{FloatName, "+", FloatName, FloatName}, {FloatName, "-", FloatName, FloatName},
	{FloatName, "*", FloatName, FloatName}, {FloatName, "/", FloatName, FloatName},
	{FloatName, "<", FloatName, BoolName}, {FloatName, ">", FloatName, BoolName},
	{StringName, "+", StringName, StringName},
	{BoolName, "&&", BoolName, BoolName}, {BoolName, "||", BoolName, BoolName},
	{ObjectName, "==", ObjectName, BoolName}, {ObjectName, "!=", ObjectName, BoolName},
}

func (g *Graph) builtinOperators() {
	ops := append([]builtinOp(nil), builtinOps...)
	for _, name := range []string{IntName, FloatName, StringName, BoolName} {
		ops = append(ops,
			builtinOp{name, "==", name, BoolName},
			builtinOp{name, "!=", name, BoolName})
	}
	for _, b := range ops {
		on := g.root.LookupType(b.on)
		f := NewFunction(FunctionSpec{
			Name:    syntax.OperatorPrefix + b.op,
			Kind:    syntax.Operator,
			Returns: g.root.LookupType(b.ret),
		})
		f.AddArgument(NewArgument("other", g.root.LookupType(b.arg), Decl{}))
		if err := on.Register(f); err != nil {
			panic(err)
		}
	}
}

// Root returns the root namespace.
func (g *Graph) Root() *Namespace { return g.root }

// Object returns the universal supertype.
func (g *Graph) Object() *Class { return g.object }

// Enum returns the built-in supertype of every enumeration.
func (g *Graph) Enum() *Class { return g.enum }

// Builtin returns the built-in type with the given name, or nil.
func (g *Graph) Builtin(name string) Type {
	t := g.root.LookupType(name)
	if t == nil || !t.Builtin() {
		return nil
	}
	return t
}

// TypeSpec carries the attributes of a new type.
type TypeSpec struct {
	Name       string
	Visibility Visibility
	Decl       Decl
}

func (g *Graph) newTypeBase(spec TypeSpec, kind Kind) typeBase {
	return typeBase{
		symbolBase: newBase(spec.Name, kind, spec.Decl),
		g:          g,
		visibility: spec.Visibility,
	}
}

// NewClass creates an unregistered class.
func (g *Graph) NewClass(spec TypeSpec) *Class {
	c := &Class{typeBase: g.newTypeBase(spec, KindClass)}
	c.containerImpl.members = newMembers(c)
	return c
}

// NewInterface creates an unregistered interface.
func (g *Graph) NewInterface(spec TypeSpec) *Interface {
	i := &Interface{typeBase: g.newTypeBase(spec, KindInterface)}
	i.containerImpl.members = newMembers(i)
	return i
}

// NewEnumeration creates an unregistered enumeration.
func (g *Graph) NewEnumeration(spec TypeSpec) *Enumeration {
	e := &Enumeration{typeBase: g.newTypeBase(spec, KindEnumeration)}
	e.containerImpl.members = newMembers(e)
	return e
}

// ResolveNamespace returns the existing namespace at the dotted path, or nil.
// It never creates namespaces.
func (g *Graph) ResolveNamespace(path string) *Namespace {
	cur := g.root
	if path == "" {
		return cur
	}
	for _, part := range strings.Split(path, ".") {
		if cur = cur.Namespace(part); cur == nil {
			return nil
		}
	}
	return cur
}

// ResolveType resolves a fully-qualified type name from the root. Each
// segment after the first must be a direct child of what precedes it.
func (g *Graph) ResolveType(fullName string) (Type, error) {
	if fullName == "" {
		return nil, ErrEmptyTypeName
	}
	parts := strings.Split(fullName, ".")
	var cur Container = g.root
	for i, part := range parts {
		if t := cur.LookupType(part); t != nil {
			cur = t
			continue
		}
		ns, ok := cur.(*Namespace)
		if ok && i < len(parts)-1 {
			if child := ns.Namespace(part); child != nil {
				cur = child
				continue
			}
		}
		return nil, fmt.Errorf("symbols: resolve %q: segment %q not found", fullName, part)
	}
	t, ok := cur.(Type)
	if !ok {
		return nil, fmt.Errorf("symbols: resolve %q: not a type", fullName)
	}
	return t, nil
}

// Walk visits every symbol below the root in a deterministic order:
// namespaces, then types, function groups (and their functions) and
// variables, depth first. Returning false from fn stops the walk.
func (g *Graph) Walk(fn func(Symbol) bool) {
	walkContainer(g.root, fn)
}

func walkContainer(c Container, fn func(Symbol) bool) bool {
	if ns, ok := c.(*Namespace); ok {
		for _, child := range ns.Namespaces() {
			if !fn(child) || !walkContainer(child, fn) {
				return false
			}
		}
	}
	for _, t := range c.Types() {
		if !fn(t) || !walkContainer(t, fn) {
			return false
		}
	}
	for _, grp := range c.Groups() {
		if !fn(grp) {
			return false
		}
		for _, f := range grp.Functions() {
			if !fn(f) {
				return false
			}
			for _, a := range f.Arguments() {
				if !fn(a) {
					return false
				}
			}
		}
	}
	for _, v := range c.Variables() {
		if !fn(v) {
			return false
		}
	}
	return true
}

// Lookup finds a registered symbol by full name. Overloaded functions share
// their group's full name; Lookup returns the group.
func (g *Graph) Lookup(fullName string) Symbol {
	var found Symbol
	g.Walk(func(s Symbol) bool {
		if s.FullName() == fullName && s.Kind() != KindFunction && s.Kind() != KindArgument {
			found = s
			return false
		}
		return true
	})
	return found
}
