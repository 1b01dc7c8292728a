package symbols

import (
	"fmt"
	"sort"
)

// members is the member table shared by namespaces and types. Writes go to
// the per-kind registration maps; reads go through validate, which builds an
// immutable snapshot when the table is dirty.
type members struct {
	owner      Symbol
	classes    map[string]*Class
	interfaces map[string]*Interface
	enums      map[string]*Enumeration
	groups     map[string]*FunctionGroup
	vars       map[string]*Variable

	snap *memberSnapshot
}

// memberSnapshot is a read-only view of a member table. A new snapshot is
// built on every validation after an invalidation; old snapshots held by
// readers stay consistent.
type memberSnapshot struct {
	types    []Type
	typeMap  map[string]Type
	groups   []*FunctionGroup
	groupMap map[string]*FunctionGroup
	vars     []*Variable
	varMap   map[string]*Variable
}

func newMembers(owner Symbol) members {
	return members{
		owner:      owner,
		classes:    make(map[string]*Class),
		interfaces: make(map[string]*Interface),
		enums:      make(map[string]*Enumeration),
		groups:     make(map[string]*FunctionGroup),
		vars:       make(map[string]*Variable),
	}
}

func (m *members) invalidate() {
	m.snap = nil
}

func (m *members) validate() *memberSnapshot {
	if m.snap != nil {
		return m.snap
	}
	s := &memberSnapshot{
		typeMap:  make(map[string]Type, len(m.classes)+len(m.interfaces)+len(m.enums)),
		groupMap: make(map[string]*FunctionGroup, len(m.groups)),
		varMap:   make(map[string]*Variable, len(m.vars)),
	}
	// Name collisions across kinds resolve class, then interface, then enum.
	for _, name := range sortedKeys(m.classes) {
		c := m.classes[name]
		s.types = append(s.types, c)
		s.typeMap[name] = c
	}
	for _, name := range sortedKeys(m.interfaces) {
		i := m.interfaces[name]
		s.types = append(s.types, i)
		if _, taken := s.typeMap[name]; !taken {
			s.typeMap[name] = i
		}
	}
	for _, name := range sortedKeys(m.enums) {
		e := m.enums[name]
		s.types = append(s.types, e)
		if _, taken := s.typeMap[name]; !taken {
			s.typeMap[name] = e
		}
	}
	for _, name := range sortedKeys(m.groups) {
		g := m.groups[name]
		s.groups = append(s.groups, g)
		s.groupMap[name] = g
	}
	for _, name := range sortedKeys(m.vars) {
		v := m.vars[name]
		s.vars = append(s.vars, v)
		s.varMap[name] = v
	}
	m.snap = s
	return s
}

func (m *members) eachRegistered(fn func(Symbol)) {
	for _, c := range m.classes {
		fn(c)
	}
	for _, i := range m.interfaces {
		fn(i)
	}
	for _, e := range m.enums {
		fn(e)
	}
	for _, g := range m.groups {
		fn(g)
	}
	for _, v := range m.vars {
		fn(v)
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// register places s in table, replacing (not shadowing) any prior entry of
// the same name in that exact table.
func register[T Symbol](m *members, table map[string]T, s T) {
	name := s.Name()
	if prev, ok := table[name]; ok && Symbol(prev) != Symbol(s) && prev.Parent() == m.owner {
		setParent(prev, nil)
	}
	table[name] = s
	setParent(s, m.owner)
	m.invalidate()
}

// unregister removes s from table if it is still the registered entry.
func unregister[T Symbol](m *members, table map[string]T, s T) bool {
	name := s.Name()
	prev, ok := table[name]
	if !ok || Symbol(prev) != Symbol(s) {
		return false
	}
	delete(table, name)
	m.invalidate()
	return true
}

func (m *members) addFunction(f *Function) error {
	g := m.groups[f.Name()]
	if g == nil {
		g = newFunctionGroup(f.Name())
		setParent(g, m.owner)
		m.groups[f.Name()] = g
	}
	if err := g.add(f); err != nil {
		return err
	}
	m.invalidate()
	return nil
}

func (m *members) removeFunction(f *Function) bool {
	g := m.groups[f.Name()]
	if g == nil || !g.remove(f) {
		return false
	}
	if len(g.funcs) == 0 {
		delete(m.groups, f.Name())
		setParent(g, nil)
	}
	m.invalidate()
	return true
}

// Register adds a member symbol to m. Functions join their group and fail
// with ErrDuplicateOverload when the group already holds the same signature.
func (m *members) register(s Symbol) error {
	switch s := s.(type) {
	case *Class:
		register(m, m.classes, s)
	case *Interface:
		register(m, m.interfaces, s)
	case *Enumeration:
		register(m, m.enums, s)
	case *Function:
		return m.addFunction(s)
	case *Variable:
		register(m, m.vars, s)
	default:
		return fmt.Errorf("symbols: cannot register %s %q in %s", s.Kind(), s.Name(), m.owner.Kind())
	}
	return nil
}

func (m *members) unregister(s Symbol) bool {
	switch s := s.(type) {
	case *Class:
		return unregister(m, m.classes, s)
	case *Interface:
		return unregister(m, m.interfaces, s)
	case *Enumeration:
		return unregister(m, m.enums, s)
	case *Function:
		return m.removeFunction(s)
	case *Variable:
		return unregister(m, m.vars, s)
	}
	return false
}

// Container is a symbol that owns members: a namespace or a type.
type Container interface {
	Symbol
	// Register adds a member. Registering a type or variable replaces a prior
	// entry of the same name and kind.
	Register(s Symbol) error
	// Unregister removes s if it is still the registered entry.
	Unregister(s Symbol) bool
	// Invalidate marks the member tables dirty; the next read rebuilds them.
	Invalidate()
	// LookupType returns the direct child type with the given name.
	LookupType(name string) Type
	// Types returns the direct child types.
	Types() []Type
	// Groups returns the function groups declared directly in the container.
	Groups() []*FunctionGroup
	// Variables returns the variables declared directly in the container.
	Variables() []*Variable
	// LookupGroup returns the function group with the given name.
	LookupGroup(name string) *FunctionGroup
	// LookupVariable returns the variable with the given name.
	LookupVariable(name string) *Variable

	table() *members
}

func membersOf(s Symbol) *members {
	if c, ok := s.(Container); ok {
		return c.table()
	}
	return nil
}

// containerImpl provides the Container read/write methods on top of members.
type containerImpl struct {
	members
}

func (c *containerImpl) table() *members { return &c.members }

func (c *containerImpl) Register(s Symbol) error  { return c.members.register(s) }
func (c *containerImpl) Unregister(s Symbol) bool { return c.members.unregister(s) }
func (c *containerImpl) Invalidate()              { c.members.invalidate() }

func (c *containerImpl) LookupType(name string) Type {
	return c.validate().typeMap[name]
}

func (c *containerImpl) Types() []Type {
	return c.validate().types
}

func (c *containerImpl) Groups() []*FunctionGroup {
	return c.validate().groups
}

func (c *containerImpl) Variables() []*Variable {
	return c.validate().vars
}

func (c *containerImpl) LookupGroup(name string) *FunctionGroup {
	return c.validate().groupMap[name]
}

func (c *containerImpl) LookupVariable(name string) *Variable {
	return c.validate().varMap[name]
}
