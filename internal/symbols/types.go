package symbols

// Type is a value type: a class, interface or enumeration.
type Type interface {
	Container
	Visibility() Visibility
	// Builtin reports whether the type is provided by the graph rather than
	// declared in a document.
	Builtin() bool
	// Supertypes returns the direct supertypes: superclass first, then
	// implemented or extended interfaces.
	Supertypes() []Type
	graph() *Graph
}

type typeBase struct {
	symbolBase
	containerImpl
	g          *Graph
	visibility Visibility
	builtin    bool
}

func (t *typeBase) Visibility() Visibility { return t.visibility }
func (t *typeBase) Builtin() bool          { return t.builtin }
func (t *typeBase) graph() *Graph          { return t.g }

// Class is a class type. A class without an explicit superclass extends the
// built-in Object.
type Class struct {
	typeBase
	super *Class
	impls []*Interface
}

// Superclass returns the resolved superclass, or nil.
func (c *Class) Superclass() *Class { return c.super }

// Interfaces returns the resolved implemented interfaces.
func (c *Class) Interfaces() []*Interface { return c.impls }

// SetSupertypes records the resolved superclass and interfaces. Unresolved
// references are passed as nil and skipped.
func (c *Class) SetSupertypes(super *Class, impls []*Interface) {
	c.super = super
	kept := make([]*Interface, 0, len(impls))
	for _, i := range impls {
		if i != nil {
			kept = append(kept, i)
		}
	}
	c.impls = kept
	c.Invalidate()
}

func (c *Class) Supertypes() []Type {
	var out []Type
	if c.super != nil {
		out = append(out, c.super)
	}
	for _, i := range c.impls {
		out = append(out, i)
	}
	return out
}

// Interface is an interface type; it may extend other interfaces.
type Interface struct {
	typeBase
	supers []*Interface
}

// Extends returns the resolved super-interfaces.
func (i *Interface) Extends() []*Interface { return i.supers }

// SetExtends records the resolved super-interfaces, skipping nils.
func (i *Interface) SetExtends(supers []*Interface) {
	kept := make([]*Interface, 0, len(supers))
	for _, s := range supers {
		if s != nil {
			kept = append(kept, s)
		}
	}
	i.supers = kept
	i.Invalidate()
}

func (i *Interface) Supertypes() []Type {
	out := make([]Type, 0, len(i.supers))
	for _, s := range i.supers {
		out = append(out, s)
	}
	return out
}

// Enumeration is an enum type. Its values are static read-only variables of
// the enumeration type; its supertype is the built-in Enum class.
type Enumeration struct {
	typeBase
}

func (e *Enumeration) Supertypes() []Type {
	if e.g == nil || e.g.enum == nil {
		return nil
	}
	return []Type{e.g.enum}
}

// Values returns the enumeration constants.
func (e *Enumeration) Values() []*Variable {
	return e.Variables()
}

// Invalidate marks t and its nested types dirty.
func (t *typeBase) Invalidate() {
	t.members.invalidate()
	for _, nested := range t.members.classes {
		nested.Invalidate()
	}
	for _, nested := range t.members.interfaces {
		nested.Invalidate()
	}
	for _, nested := range t.members.enums {
		nested.Invalidate()
	}
}

// Identical reports whether a and b denote the same resolved type. Unknown
// types are never identical to anything.
func Identical(a, b Type) bool {
	return a != nil && b != nil && a == b
}

// Castable reports whether a value of type from can be converted to type to.
// Interfaces cast to any interface they extend (transitively) or to Object;
// classes cast up their superclass and implemented-interface chain;
// enumerations cast along their built-in supertype chain or to Object.
// Identical types are trivially castable. Unknown types are not castable;
// callers treat them as wildcards before asking.
func Castable(from, to Type) bool {
	if from == nil || to == nil {
		return false
	}
	if from == to {
		return true
	}
	if g := from.graph(); g != nil && to == Type(g.object) {
		switch from.(type) {
		case *Interface, *Enumeration:
			return true
		}
	}
	found := false
	walkSupertypes(from, func(t Type) bool {
		if t == to {
			found = true
			return false
		}
		return true
	})
	return found
}

// walkSupertypes visits every transitive supertype of t in priority order:
// superclass chain first, then interfaces, depth first. Each type is visited
// once, so cyclic chains terminate. Returning false from fn stops the walk.
func walkSupertypes(t Type, fn func(Type) bool) {
	visited := map[Type]bool{t: true}
	var walk func(Type) bool
	walk = func(cur Type) bool {
		for _, s := range cur.Supertypes() {
			if visited[s] {
				continue
			}
			visited[s] = true
			if !fn(s) || !walk(s) {
				return false
			}
		}
		return true
	}
	walk(t)
}

// AllSupertypes returns every transitive supertype of t in priority order.
func AllSupertypes(t Type) []Type {
	var out []Type
	walkSupertypes(t, func(s Type) bool {
		out = append(out, s)
		return true
	})
	return out
}

// InheritanceCycle returns the cycle through t, starting and ending at t,
// when t is its own transitive supertype. It returns nil otherwise.
func InheritanceCycle(t Type) []Type {
	visited := map[Type]bool{}
	var path []Type
	var walk func(Type) bool
	walk = func(cur Type) bool {
		for _, s := range cur.Supertypes() {
			if s == t {
				path = append(path, s)
				return true
			}
			if visited[s] {
				continue
			}
			visited[s] = true
			path = append(path, s)
			if walk(s) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	if walk(t) {
		return append([]Type{t}, path...)
	}
	return nil
}

// IsSubtype reports whether sub is t or transitively derives from it.
func IsSubtype(sub, t Type) bool {
	if sub == nil || t == nil {
		return false
	}
	if sub == t {
		return true
	}
	found := false
	walkSupertypes(sub, func(s Type) bool {
		found = s == t
		return !found
	})
	return found
}
