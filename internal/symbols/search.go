package symbols

import (
	"strings"
	"unicode"

	"github.com/jward/arbor/internal/syntax"
)

// NestedOrder selects the order in which nested types of the enclosing type
// chain are searched.
type NestedOrder int

const (
	// InnerFirst searches the innermost enclosing type's nested types first.
	InnerFirst NestedOrder = iota
	// OuterFirst searches the outermost enclosing type's nested types first.
	OuterFirst
)

// Query is a mutable search request. It carries the filters and accumulates
// results as it is threaded through the traversal. A Query is single-use.
type Query struct {
	// Name is matched exactly unless Fuzzy is set.
	Name string
	// Fuzzy matches Name as a case-insensitive subsequence anchored at a word
	// part of the candidate. An empty fuzzy Name matches everything.
	Fuzzy bool

	TypesOnly          bool
	VariablesOnly      bool
	IgnoreFunctions    bool
	IgnoreConstructors bool
	// StaticOnly skips instance variables and instance functions of types.
	StaticOnly bool
	// Signature, when non-nil, keeps only functions whose parameters are
	// compatible (Matches != MatchNo) with it.
	Signature Signature
	// StopOnFirst ends the traversal after the first matching symbol. A
	// function group is always collected whole before stopping.
	StopOnFirst bool
	Nested      NestedOrder
	// Access lists the types enclosing the search origin, innermost first.
	// It decides private and protected visibility.
	Access []Type
	// IgnoreVisibility admits private and protected members regardless of
	// Access. Used to tell "inaccessible" from "not found".
	IgnoreVisibility bool

	Namespaces []*Namespace
	Types      []Type
	Groups     []*FunctionGroup
	Functions  []*Function
	Variables  []Valued
	// Results holds every match in priority order.
	Results []Symbol

	seen    map[Symbol]bool
	stopped bool
}

// NewQuery returns a query for the exact name.
func NewQuery(name string) *Query {
	return &Query{Name: name}
}

// Done reports whether the traversal may stop.
func (q *Query) Done() bool { return q.stopped }

// First returns the highest-priority match, or nil.
func (q *Query) First() Symbol {
	if len(q.Results) == 0 {
		return nil
	}
	return q.Results[0]
}

// Scope describes a search origin for unqualified lookup.
type Scope struct {
	// Types is the enclosing type chain, innermost first.
	Types []Type
	// Namespace is the innermost enclosing namespace.
	Namespace *Namespace
	// Pins are searched last, in declaration order.
	Pins []*Namespace
}

// MatchName reports whether name satisfies the query's name filter.
func (q *Query) MatchName(name string) bool {
	if q.Fuzzy {
		return FuzzyMatch(q.Name, name)
	}
	return q.Name == name
}

func (q *Query) admit(s Symbol) bool {
	if q.Done() {
		return false
	}
	if q.seen == nil {
		q.seen = make(map[Symbol]bool)
	}
	if q.seen[s] {
		return false
	}
	q.seen[s] = true
	q.Results = append(q.Results, s)
	if q.StopOnFirst {
		q.stopped = true
	}
	return true
}

// AddLocal offers a local variable or argument to the query.
func (q *Query) AddLocal(v Valued) {
	if q.Done() || q.TypesOnly || !q.MatchName(v.Name()) {
		return
	}
	if q.admit(v) {
		q.Variables = append(q.Variables, v)
	}
}

func (q *Query) addType(t Type, owner Type) {
	if q.Done() || q.VariablesOnly || !q.MatchName(t.Name()) || !q.visible(t.Visibility(), owner) {
		return
	}
	if q.admit(t) {
		q.Types = append(q.Types, t)
	}
}

func (q *Query) addNamespace(ns *Namespace) {
	if q.Done() || q.VariablesOnly || !q.MatchName(ns.Name()) {
		return
	}
	if q.admit(ns) {
		q.Namespaces = append(q.Namespaces, ns)
	}
}

func (q *Query) addVariable(v *Variable, owner Type) {
	if q.Done() || q.TypesOnly || !q.MatchName(v.Name()) {
		return
	}
	if owner != nil && (q.StaticOnly && !v.Static() || !q.visible(v.Visibility(), owner)) {
		return
	}
	if q.admit(v) {
		q.Variables = append(q.Variables, v)
	}
}

func (q *Query) addGroup(g *FunctionGroup, owner Type, inherited bool) {
	if q.Done() || q.TypesOnly || q.VariablesOnly || q.IgnoreFunctions || !q.MatchName(g.Name()) {
		return
	}
	isCtor := g.Name() == syntax.ConstructorName
	if isCtor && (q.IgnoreConstructors || inherited) {
		return
	}
	var fns []*Function
	for _, f := range g.Functions() {
		if owner != nil && (q.StaticOnly && !f.Static() && !isCtor || !q.visible(f.Visibility(), owner)) {
			continue
		}
		if q.Signature != nil && Matches(q.Signature, f.Signature()) == MatchNo {
			continue
		}
		fns = append(fns, f)
	}
	if len(fns) == 0 {
		return
	}
	if q.seen == nil {
		q.seen = make(map[Symbol]bool)
	}
	if q.seen[g] {
		return
	}
	q.seen[g] = true
	q.Groups = append(q.Groups, g)
	for _, f := range fns {
		q.seen[f] = true
		q.Results = append(q.Results, f)
		q.Functions = append(q.Functions, f)
	}
	if q.StopOnFirst {
		q.stopped = true
	}
}

// visible applies member visibility for a member declared in owner.
func (q *Query) visible(vis Visibility, owner Type) bool {
	if owner == nil || q.IgnoreVisibility {
		return true
	}
	switch vis {
	case syntax.Private:
		for _, a := range q.Access {
			if a == owner {
				return true
			}
		}
		return false
	case syntax.Protected:
		for _, a := range q.Access {
			if IsSubtype(a, owner) {
				return true
			}
		}
		return false
	}
	return true
}

// searchMembers searches the variables, then the function groups declared
// directly in c.
func (q *Query) searchMembers(c Container, inherited bool) {
	owner, _ := c.(Type)
	for _, v := range c.Variables() {
		q.addVariable(v, owner)
	}
	for _, g := range c.Groups() {
		q.addGroup(g, owner, inherited)
	}
}

func (q *Query) searchNested(t Type) {
	for _, n := range t.Types() {
		q.addType(n, t)
	}
}

// SearchType searches t's own members, its nested types and then its
// inherited chain: superclass first, then interfaces, recursively.
func (q *Query) SearchType(t Type) {
	if t == nil || q.Done() {
		return
	}
	q.searchMembers(t, false)
	q.searchNested(t)
	q.searchInherited(t)
}

func (q *Query) searchInherited(t Type) {
	walkSupertypes(t, func(s Type) bool {
		q.searchMembers(s, true)
		q.searchNested(s)
		return !q.Done()
	})
}

// SearchNamespace searches the direct members of ns: types, function groups,
// variables and nested namespaces.
func (q *Query) SearchNamespace(ns *Namespace) {
	if ns == nil || q.Done() {
		return
	}
	for _, t := range ns.Types() {
		q.addType(t, nil)
	}
	q.searchMembers(ns, false)
	for _, c := range ns.Namespaces() {
		q.addNamespace(c)
	}
}

// SearchScope runs unqualified lookup from a position inside the given
// scope. Locals and arguments are offered by the caller with AddLocal before
// calling SearchScope.
func (q *Query) SearchScope(s Scope) {
	if len(s.Types) > 0 {
		q.searchMembers(s.Types[0], false)
		q.searchNestedChain(s.Types)
		q.searchInherited(s.Types[0])
		for _, outer := range s.Types[1:] {
			q.searchMembers(outer, false)
			q.searchInherited(outer)
		}
	}
	if s.Namespace != nil {
		for _, ns := range s.Namespace.Enclosing() {
			q.SearchNamespace(ns)
		}
	}
	for _, pin := range s.Pins {
		q.SearchNamespace(pin)
	}
}

func (q *Query) searchNestedChain(chain []Type) {
	if q.Nested == OuterFirst {
		for i := len(chain) - 1; i >= 0; i-- {
			q.searchNested(chain[i])
		}
		return
	}
	for _, t := range chain {
		q.searchNested(t)
	}
}

// FuzzyMatch reports whether pattern is a case-insensitive subsequence of
// name whose first character starts name or one of its word parts.
func FuzzyMatch(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	p := []rune(strings.ToLower(pattern))
	n := []rune(name)
	for start := range n {
		if !wordStart(n, start) || unicode.ToLower(n[start]) != p[0] {
			continue
		}
		if subsequence(p[1:], n[start+1:]) {
			return true
		}
	}
	return false
}

func wordStart(n []rune, i int) bool {
	if i == 0 {
		return true
	}
	prev, cur := n[i-1], n[i]
	switch {
	case prev == '_' || prev == '.':
		return cur != '_'
	case unicode.IsLower(prev) && unicode.IsUpper(cur):
		return true
	case !unicode.IsDigit(prev) && unicode.IsDigit(cur):
		return true
	}
	return false
}

func subsequence(p, n []rune) bool {
	i := 0
	for _, r := range n {
		if i == len(p) {
			break
		}
		if unicode.ToLower(r) == p[i] {
			i++
		}
	}
	return i == len(p)
}
