package symbols

import "strings"

// Namespace is a named container of types, functions, variables and nested
// namespaces. Namespaces are created on first reference and never removed,
// so a pin to a namespace whose members have all gone stays valid.
type Namespace struct {
	symbolBase
	containerImpl
	children map[string]*Namespace
}

func newNamespace(name string) *Namespace {
	ns := &Namespace{
		symbolBase: newBase(name, KindNamespace, Decl{}),
		children:   make(map[string]*Namespace),
	}
	ns.containerImpl.members = newMembers(ns)
	return ns
}

// Child returns the nested namespace with the given name, creating it on
// first reference.
func (ns *Namespace) Child(name string) *Namespace {
	if c, ok := ns.children[name]; ok {
		return c
	}
	c := newNamespace(name)
	setParent(c, ns)
	ns.children[name] = c
	return c
}

// Namespace returns an existing nested namespace, or nil.
func (ns *Namespace) Namespace(name string) *Namespace {
	return ns.children[name]
}

// Path returns the namespace at the dotted path below ns, creating missing
// namespaces along the way.
func (ns *Namespace) Path(path string) *Namespace {
	cur := ns
	if path == "" {
		return cur
	}
	for _, part := range strings.Split(path, ".") {
		cur = cur.Child(part)
	}
	return cur
}

// Namespaces returns the nested namespaces sorted by name.
func (ns *Namespace) Namespaces() []*Namespace {
	out := make([]*Namespace, 0, len(ns.children))
	for _, name := range sortedKeys(ns.children) {
		out = append(out, ns.children[name])
	}
	return out
}

// Invalidate marks this namespace and every nested namespace dirty.
func (ns *Namespace) Invalidate() {
	ns.members.invalidate()
	for _, c := range ns.children {
		c.Invalidate()
	}
}

// Enclosing returns the namespace chain from ns up to the root, innermost
// first.
func (ns *Namespace) Enclosing() []*Namespace {
	var chain []*Namespace
	for cur := ns; cur != nil; {
		chain = append(chain, cur)
		p, _ := cur.Parent().(*Namespace)
		cur = p
	}
	return chain
}
