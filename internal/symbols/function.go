package symbols

import (
	"errors"
	"fmt"

	"github.com/jward/arbor/internal/syntax"
)

// ErrDuplicateOverload is returned when a function group already holds a
// function with an identical parameter-type signature.
var ErrDuplicateOverload = errors.New("symbols: duplicate overload")

// Function is a single method, operator or constructor.
type Function struct {
	symbolBase
	kind       syntax.FuncKind
	static     bool
	visibility Visibility
	args       []*Argument
	returns    Type
}

// FunctionSpec carries the attributes of a new function.
type FunctionSpec struct {
	Name       string
	Kind       syntax.FuncKind
	Static     bool
	Visibility Visibility
	Returns    Type
	Decl       Decl
}

// NewFunction creates an unregistered function. Arguments are attached with
// AddArgument.
func NewFunction(spec FunctionSpec) *Function {
	return &Function{
		symbolBase: newBase(spec.Name, KindFunction, spec.Decl),
		kind:       spec.Kind,
		static:     spec.Static,
		visibility: spec.Visibility,
		returns:    spec.Returns,
	}
}

func (f *Function) FuncKind() syntax.FuncKind  { return f.kind }
func (f *Function) Static() bool               { return f.static }
func (f *Function) Visibility() Visibility     { return f.visibility }
func (f *Function) Returns() Type              { return f.returns }
func (f *Function) Arguments() []*Argument     { return f.args }
func (f *Function) IsConstructor() bool        { return f.kind == syntax.Constructor }
func (f *Function) SetReturns(t Type)          { f.returns = t }

// Owner returns the container the function's group belongs to.
func (f *Function) Owner() Container {
	if g := f.Parent(); g != nil {
		c, _ := g.Parent().(Container)
		return c
	}
	return nil
}

// AddArgument appends a formal argument.
func (f *Function) AddArgument(a *Argument) {
	setParent(a, f)
	f.args = append(f.args, a)
}

// Signature returns the declared parameter list.
func (f *Function) Signature() Signature {
	sig := make(Signature, len(f.args))
	for i, a := range f.args {
		sig[i] = Param{Type: a.typ, Name: a.Name()}
	}
	return sig
}

func (f *Function) String() string {
	return f.FullName() + f.Signature().String()
}

// FunctionGroup holds the overloads sharing one name in one container. It
// never holds two functions with identical signatures.
type FunctionGroup struct {
	symbolBase
	funcs []*Function
}

func newFunctionGroup(name string) *FunctionGroup {
	return &FunctionGroup{symbolBase: newBase(name, KindFunctionGroup, Decl{})}
}

// Functions returns the overloads in registration order.
func (g *FunctionGroup) Functions() []*Function {
	return g.funcs
}

func (g *FunctionGroup) add(f *Function) error {
	sig := f.Signature()
	for _, existing := range g.funcs {
		if existing == f {
			return nil
		}
		if MatchesExactly(existing.Signature(), sig) {
			return fmt.Errorf("%w: %s%s", ErrDuplicateOverload, g.name, sig)
		}
	}
	setParent(f, g)
	g.funcs = append(g.funcs, f)
	return nil
}

func (g *FunctionGroup) remove(f *Function) bool {
	for i, existing := range g.funcs {
		if existing == f {
			g.funcs = append(g.funcs[:i:i], g.funcs[i+1:]...)
			setParent(f, nil)
			return true
		}
	}
	return false
}

// Candidate is an overload paired with its compatibility.
type Candidate struct {
	Function *Function
	Match    Match
}

// Rank orders overload candidates for a call-site signature. It returns the
// best candidates: a single Full match, otherwise every candidate sharing
// the best non-No compatibility. An empty result means no overload fits.
func Rank(args Signature, funcs []*Function) []Candidate {
	best := MatchNo
	var out []Candidate
	for _, f := range funcs {
		m := Matches(args, f.Signature())
		if m == MatchNo || m < best {
			continue
		}
		if m > best {
			best = m
			out = out[:0]
		}
		out = append(out, Candidate{Function: f, Match: m})
	}
	if best == MatchFull && len(out) > 1 {
		out = out[:1]
	}
	return out
}
