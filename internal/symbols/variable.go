package symbols

// Variable is a field or namespace-level variable, or an enumeration value.
type Variable struct {
	symbolBase
	typ        Type
	static     bool
	readOnly   bool
	visibility Visibility
}

// VariableSpec carries the attributes of a new variable.
type VariableSpec struct {
	Name       string
	Type       Type
	Static     bool
	ReadOnly   bool
	Visibility Visibility
	Decl       Decl
}

// NewVariable creates an unregistered variable.
func NewVariable(spec VariableSpec) *Variable {
	return &Variable{
		symbolBase: newBase(spec.Name, KindVariable, spec.Decl),
		typ:        spec.Type,
		static:     spec.Static,
		readOnly:   spec.ReadOnly,
		visibility: spec.Visibility,
	}
}

func (v *Variable) Type() Type             { return v.typ }
func (v *Variable) SetType(t Type)         { v.typ = t }
func (v *Variable) Static() bool           { return v.static }
func (v *Variable) ReadOnly() bool         { return v.readOnly }
func (v *Variable) Visibility() Visibility { return v.visibility }

// Argument is a formal parameter of a function.
type Argument struct {
	symbolBase
	typ Type
}

// NewArgument creates an argument; it is owned by the function it is added
// to.
func NewArgument(name string, typ Type, decl Decl) *Argument {
	return &Argument{symbolBase: newBase(name, KindArgument, decl), typ: typ}
}

func (a *Argument) Type() Type { return a.typ }

// LocalVariable is a variable declared in a function body. It is owned by its
// declaring statement and never registered in a container.
type LocalVariable struct {
	symbolBase
	typ Type
}

// NewLocal creates a local variable owned by fn (which may be nil for
// initialisers outside functions).
func NewLocal(name string, typ Type, owner Symbol, decl Decl) *LocalVariable {
	l := &LocalVariable{symbolBase: newBase(name, KindLocal, decl), typ: typ}
	l.parent = owner
	return l
}

func (l *LocalVariable) Type() Type     { return l.typ }
func (l *LocalVariable) SetType(t Type) { l.typ = t }
