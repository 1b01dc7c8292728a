// Package syntax defines the immutable syntax tree the resolver consumes.
//
// Trees are produced by an external parser and handed over in the interchange
// format understood by [Decode]. Each construct is its own struct; the sealed
// Decl, Stmt and Expr interfaces make the set of variants closed so consumers
// can switch over them exhaustively.
package syntax

import "strings"

// Node is implemented by every syntax construct.
type Node interface {
	Span() Range
	node()
}

// Decl is a declaration: namespace, type, function or variable.
type Decl interface {
	Node
	declNode()
}

// Stmt is a statement inside a function body.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression.
type Expr interface {
	Node
	exprNode()
}

// Visibility of a member declaration.
type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "public"
	}
}

// ParseVisibility maps a modifier keyword to a Visibility. Unknown or empty
// keywords mean public.
func ParseVisibility(s string) (Visibility, bool) {
	switch strings.ToLower(s) {
	case "", "public":
		return Public, true
	case "protected":
		return Protected, true
	case "private":
		return Private, true
	}
	return Public, false
}

// FuncKind distinguishes ordinary methods from operators and constructors.
type FuncKind int

const (
	Method FuncKind = iota
	Operator
	Constructor
)

// ConstructorName is the function-group name constructors register under.
const ConstructorName = "new"

// OperatorPrefix prefixes the function-group name of an overloaded operator.
const OperatorPrefix = "operator"

// Ident is a single name with its source range. As an Expr it is an
// unqualified identifier reference.
type Ident struct {
	Name  string
	Range Range
}

// File is the root of a parsed document.
type File struct {
	Pins  []*TypeName
	Decls []Decl
	Range Range
}

type NamespaceDecl struct {
	Name  *TypeName
	Pins  []*TypeName
	Decls []Decl
	Range Range
}

type ClassDecl struct {
	Name       Ident
	Extends    *TypeName
	Implements []*TypeName
	Members    []Decl
	Visibility Visibility
	Range      Range
}

type InterfaceDecl struct {
	Name       Ident
	Extends    []*TypeName
	Members    []Decl
	Visibility Visibility
	Range      Range
}

type EnumDecl struct {
	Name       Ident
	Values     []Ident
	Visibility Visibility
	Range      Range
}

// FunctionDecl declares a method, operator or constructor. Body is nil for
// abstract (interface) functions.
type FunctionDecl struct {
	Name       Ident
	Kind       FuncKind
	Params     []*Param
	Returns    *TypeName
	Static     bool
	Visibility Visibility
	Body       *Block
	Range      Range
}

// GroupName is the name of the function group the declaration belongs to.
func (f *FunctionDecl) GroupName() string {
	switch f.Kind {
	case Operator:
		return OperatorPrefix + f.Name.Name
	case Constructor:
		return ConstructorName
	}
	return f.Name.Name
}

type Param struct {
	Name  Ident
	Type  *TypeName
	Range Range
}

// VarDecl declares a field (member variable) or a namespace-level variable.
type VarDecl struct {
	Name       Ident
	Type       *TypeName
	Static     bool
	Visibility Visibility
	Init       Expr
	Range      Range
}

type Block struct {
	Stmts []Stmt
	Range Range
}

type LocalStmt struct {
	Name  Ident
	Type  *TypeName
	Init  Expr
	Range Range
}

type ExprStmt struct {
	X     Expr
	Range Range
}

type ReturnStmt struct {
	Value Expr
	Range Range
}

type IfStmt struct {
	Cond  Expr
	Then  *Block
	Else  *Block
	Range Range
}

type WhileStmt struct {
	Cond  Expr
	Body  *Block
	Range Range
}

// LitKind classifies literals.
type LitKind int

const (
	IntLit LitKind = iota
	FloatLit
	StringLit
	BoolLit
	NullLit
)

type Literal struct {
	Kind  LitKind
	Value string
	Range Range
}

// MemberExpr is X.Sel.
type MemberExpr struct {
	X     Expr
	Sel   Ident
	Range Range
}

type CallExpr struct {
	Fun   Expr
	Args  []Expr
	Range Range
}

type NewExpr struct {
	Type  *TypeName
	Args  []Expr
	Range Range
}

type BinaryExpr struct {
	Op    Ident
	X     Expr
	Y     Expr
	Range Range
}

type AssignExpr struct {
	Target Expr
	Value  Expr
	Range  Range
}

func (n *Ident) Span() Range         { return n.Range }
func (n *File) Span() Range          { return n.Range }
func (n *NamespaceDecl) Span() Range { return n.Range }
func (n *ClassDecl) Span() Range     { return n.Range }
func (n *InterfaceDecl) Span() Range { return n.Range }
func (n *EnumDecl) Span() Range      { return n.Range }
func (n *FunctionDecl) Span() Range  { return n.Range }
func (n *Param) Span() Range         { return n.Range }
func (n *VarDecl) Span() Range       { return n.Range }
func (n *Block) Span() Range         { return n.Range }
func (n *LocalStmt) Span() Range     { return n.Range }
func (n *ExprStmt) Span() Range      { return n.Range }
func (n *ReturnStmt) Span() Range    { return n.Range }
func (n *IfStmt) Span() Range        { return n.Range }
func (n *WhileStmt) Span() Range     { return n.Range }
func (n *Literal) Span() Range       { return n.Range }
func (n *MemberExpr) Span() Range    { return n.Range }
func (n *CallExpr) Span() Range      { return n.Range }
func (n *NewExpr) Span() Range       { return n.Range }
func (n *BinaryExpr) Span() Range    { return n.Range }
func (n *AssignExpr) Span() Range    { return n.Range }
func (n *TypeName) Span() Range      { return n.Range }

func (*Ident) node()         {}
func (*File) node()          {}
func (*NamespaceDecl) node() {}
func (*ClassDecl) node()     {}
func (*InterfaceDecl) node() {}
func (*EnumDecl) node()      {}
func (*FunctionDecl) node()  {}
func (*Param) node()         {}
func (*VarDecl) node()       {}
func (*Block) node()         {}
func (*LocalStmt) node()     {}
func (*ExprStmt) node()      {}
func (*ReturnStmt) node()    {}
func (*IfStmt) node()        {}
func (*WhileStmt) node()     {}
func (*Literal) node()       {}
func (*MemberExpr) node()    {}
func (*CallExpr) node()      {}
func (*NewExpr) node()       {}
func (*BinaryExpr) node()    {}
func (*AssignExpr) node()    {}
func (*TypeName) node()      {}

func (*NamespaceDecl) declNode() {}
func (*ClassDecl) declNode()     {}
func (*InterfaceDecl) declNode() {}
func (*EnumDecl) declNode()      {}
func (*FunctionDecl) declNode()  {}
func (*VarDecl) declNode()       {}

func (*Block) stmtNode()      {}
func (*LocalStmt) stmtNode()  {}
func (*ExprStmt) stmtNode()   {}
func (*ReturnStmt) stmtNode() {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}

func (*Ident) exprNode()      {}
func (*Literal) exprNode()    {}
func (*MemberExpr) exprNode() {}
func (*CallExpr) exprNode()   {}
func (*NewExpr) exprNode()    {}
func (*BinaryExpr) exprNode() {}
func (*AssignExpr) exprNode() {}
