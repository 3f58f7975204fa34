// Package ast defines the recursive structure produced by internal/parser:
// declarations, statements, and expressions for the full DML surface
// language (spec.md §3 "AST").
//
// Per the re-architecture notes in spec.md §9, this is not a deep class
// hierarchy: every node embeds a single common header (NodeSpan) and the
// three top-level categories are closed sum types expressed as Go
// interfaces with an unexported marker method, the same shape buflsp uses
// for its symbolKind interface (definition/reference/import_/builtin).
// Dispatch over a Decl/Stmt/Expr is therefore an exhaustive type switch,
// not a visitor.
package ast

import "github.com/fenghaitao/dml-language-server/internal/span"

// Node is the common capability of every AST element: it knows its own
// source span.
type Node interface {
	Span() span.Span
}

// NodeSpan is the common header embedded by every concrete node. It
// replaces the parent-pointer/back-edge threading of the source
// implementation (spec.md §9): nodes do not know their parent, callers
// that need ancestry walk down from the root instead.
type NodeSpan struct {
	Sp span.Span
}

// Span implements Node.
func (n NodeSpan) Span() span.Span { return n.Sp }

// ============================================================ Declarations

// Decl is the closed sum type of all top-level and member declarations.
type Decl interface {
	Node
	isDecl()
}

// Param is a single name/type/default in a parameter list (method
// parameters, template parameters).
type Param struct {
	NodeSpan
	Name    string
	Type    Expr // may be nil when untyped
	Default Expr // may be nil
}

// DMLVersionDecl is the mandatory `dml <version>;` declaration.
type DMLVersionDecl struct {
	NodeSpan
	Version string
}

func (*DMLVersionDecl) isDecl() {}

// ImportDecl is an `import "path";` declaration.
type ImportDecl struct {
	NodeSpan
	Path string
}

func (*ImportDecl) isDecl() {}

// DeviceDecl is a `device name;` or `device name { ... }` declaration.
// The bare-semicolon form (Body == nil) is the DML 1.4 reference form
// mandated by spec.md §4.B tie-break (i).
type DeviceDecl struct {
	NodeSpan
	Name      string
	Templates []string // names applied via `is (...)`
	Body      []Decl   // nil for the bare-semicolon form
}

func (*DeviceDecl) isDecl() {}

// TemplateDecl declares a template, optionally extending parents via `is`.
type TemplateDecl struct {
	NodeSpan
	Name    string
	Parents []string
	Params  []*Param
	Members []Decl
}

func (*TemplateDecl) isDecl() {}

// MethodModifiers captures the fixed ordered modifier set from spec.md
// §4.B: inline|shared, independent, startup, memoized.
type MethodModifiers struct {
	InlineOrShared string // "inline", "shared", or ""
	Independent    bool
	Startup        bool
	Memoized       bool
	// OutOfOrder records a syntax error was raised for modifier ordering,
	// but parsing still continued (tie-break (iii)).
	OutOfOrder bool
}

// MethodDecl is a method declaration, abstract (Body == nil) or concrete.
type MethodDecl struct {
	NodeSpan
	Name       string
	Modifiers  MethodModifiers
	Params     []*Param
	Returns    []Expr // type expressions after `-> (...)`
	Throws     bool
	IsDefault  bool
	Body       []Stmt // nil for an abstract/declaration-only method
}

func (*MethodDecl) isDecl() {}

// RegisterDecl is a `register name [size] @ offset is (templates) { ... }`.
type RegisterDecl struct {
	NodeSpan
	Name      string
	Size      Expr // nil if omitted
	Offset    Expr // nil if omitted
	Templates []string
	Members   []Decl
}

func (*RegisterDecl) isDecl() {}

// FieldDecl is a `field name @ [hi:lo] { ... }`.
type FieldDecl struct {
	NodeSpan
	Name    string
	BitHigh Expr
	BitLow  Expr
	Members []Decl
}

func (*FieldDecl) isDecl() {}

// BankDecl is a `bank name { ... }`.
type BankDecl struct {
	NodeSpan
	Name    string
	Members []Decl
}

func (*BankDecl) isDecl() {}

// ParameterDecl is a `param name [: type] [= value | default value];`.
type ParameterDecl struct {
	NodeSpan
	Name    string
	Type    Expr
	Value   Expr
	IsDefault bool
}

func (*ParameterDecl) isDecl() {}

// AttributeDecl, ConnectDecl, InterfaceDecl, PortDecl, EventDecl, GroupDecl,
// and SubdeviceDecl share the same "named container with members" shape as
// BankDecl; DataDecl, SessionDecl, SavedDecl, ConstantDecl, and LogGroupDecl
// are named declarations without members. They are kept distinct per
// spec.md §3 so that symbol kinds and scope kinds stay faithful to the DML
// object taxonomy.
type AttributeDecl struct {
	NodeSpan
	Name      string
	Templates []string
	Members   []Decl
}

func (*AttributeDecl) isDecl() {}

type ConnectDecl struct {
	NodeSpan
	Name      string
	Templates []string
	Members   []Decl
}

func (*ConnectDecl) isDecl() {}

type InterfaceDecl struct {
	NodeSpan
	Name    string
	Members []Decl
}

func (*InterfaceDecl) isDecl() {}

type PortDecl struct {
	NodeSpan
	Name      string
	Templates []string
	Members   []Decl
}

func (*PortDecl) isDecl() {}

type EventDecl struct {
	NodeSpan
	Name      string
	Templates []string
	Members   []Decl
}

func (*EventDecl) isDecl() {}

type GroupDecl struct {
	NodeSpan
	Name      string
	Templates []string
	Members   []Decl
}

func (*GroupDecl) isDecl() {}

type DataDecl struct {
	NodeSpan
	Name string
	Type Expr
}

func (*DataDecl) isDecl() {}

type SessionDecl struct {
	NodeSpan
	Name  string
	Type  Expr
	Value Expr
}

func (*SessionDecl) isDecl() {}

type SavedDecl struct {
	NodeSpan
	Name  string
	Type  Expr
	Value Expr
}

func (*SavedDecl) isDecl() {}

type ConstantDecl struct {
	NodeSpan
	Name  string
	Value Expr
}

func (*ConstantDecl) isDecl() {}

type SubdeviceDecl struct {
	NodeSpan
	Name      string
	Templates []string
	Members   []Decl
}

func (*SubdeviceDecl) isDecl() {}

type LogGroupDecl struct {
	NodeSpan
	Name string
}

func (*LogGroupDecl) isDecl() {}

// TypedefDecl is `typedef <type> name;`.
type TypedefDecl struct {
	NodeSpan
	Name string
	Type Expr
}

func (*TypedefDecl) isDecl() {}

// StructDecl / UnionDecl / EnumDecl declare compound types.
type StructDecl struct {
	NodeSpan
	Name   string
	Fields []*Param
}

func (*StructDecl) isDecl() {}

type UnionDecl struct {
	NodeSpan
	Name   string
	Fields []*Param
}

func (*UnionDecl) isDecl() {}

type EnumDecl struct {
	NodeSpan
	Name    string
	Members []string
}

func (*EnumDecl) isDecl() {}

// ExternDecl is an `extern <type> name;` foreign declaration.
type ExternDecl struct {
	NodeSpan
	Name string
	Type Expr
}

func (*ExternDecl) isDecl() {}

// BadDecl wraps a declaration position the parser could not make sense of;
// it carries no semantic content but preserves the span so the recovered
// AST still covers the source (spec.md §4.B "best-effort partial AST").
type BadDecl struct {
	NodeSpan
}

func (*BadDecl) isDecl() {}

// ============================================================= Statements

// Stmt is the closed sum type of all statements.
type Stmt interface {
	Node
	isStmt()
}

type BlockStmt struct {
	NodeSpan
	Decls []Decl // local declarations (session/saved/local typedefs) mixed with statements use Stmts
	Stmts []Stmt
}

func (*BlockStmt) isStmt() {}

type IfStmt struct {
	NodeSpan
	Cond Expr
	Then Stmt
	Else Stmt // nil if no else
}

func (*IfStmt) isStmt() {}

type WhileStmt struct {
	NodeSpan
	Cond Expr
	Body Stmt
}

func (*WhileStmt) isStmt() {}

type DoWhileStmt struct {
	NodeSpan
	Body Stmt
	Cond Expr
}

func (*DoWhileStmt) isStmt() {}

type ForStmt struct {
	NodeSpan
	Init Stmt // may be nil
	Cond Expr // may be nil
	Post Stmt // may be nil
	Body Stmt
}

func (*ForStmt) isStmt() {}

type ForeachStmt struct {
	NodeSpan
	Var  string
	In   Expr
	Body Stmt
}

func (*ForeachStmt) isStmt() {}

type CaseStmt struct {
	NodeSpan
	Values  []Expr // empty for `default:`
	IsDefault bool
	Body    []Stmt
}

type SwitchStmt struct {
	NodeSpan
	Tag   Expr
	Cases []*CaseStmt
}

func (*SwitchStmt) isStmt() {}

type BreakStmt struct{ NodeSpan }

func (*BreakStmt) isStmt() {}

type ContinueStmt struct{ NodeSpan }

func (*ContinueStmt) isStmt() {}

type ReturnStmt struct {
	NodeSpan
	Value Expr // nil for bare `return;`
}

func (*ReturnStmt) isStmt() {}

type GotoStmt struct {
	NodeSpan
	Label string
}

func (*GotoStmt) isStmt() {}

type LabelStmt struct {
	NodeSpan
	Name string
}

func (*LabelStmt) isStmt() {}

type TryStmt struct {
	NodeSpan
	Try   Stmt
	Catch Stmt
}

func (*TryStmt) isStmt() {}

type ThrowStmt struct{ NodeSpan }

func (*ThrowStmt) isStmt() {}

type LogStmt struct {
	NodeSpan
	Kind string // e.g. "error", "info"
	Args []Expr
}

func (*LogStmt) isStmt() {}

type AssertStmt struct {
	NodeSpan
	Cond Expr
}

func (*AssertStmt) isStmt() {}

type AfterStmt struct {
	NodeSpan
	Delay Expr
	Call  Expr
}

func (*AfterStmt) isStmt() {}

// HashIfStmt is a preprocessor `#if (cond) { ... } #else { ... }` statement,
// parsed as an ordinary statement variant per spec.md §4.B.
type HashIfStmt struct {
	NodeSpan
	Cond Expr
	Then []Stmt
	Else []Stmt
}

func (*HashIfStmt) isStmt() {}

type HashForeachStmt struct {
	NodeSpan
	Var  string
	In   Expr
	Body []Stmt
}

func (*HashForeachStmt) isStmt() {}

type HashSelectCase struct {
	Var  string
	In   Expr
	Where Expr
	Body []Stmt
}

type HashSelectStmt struct {
	NodeSpan
	Cases []*HashSelectCase
	Else  []Stmt
}

func (*HashSelectStmt) isStmt() {}

// InlineCStmt surfaces a %{ ... %} C-block as a statement, verbatim.
type InlineCStmt struct {
	NodeSpan
	Text string
}

func (*InlineCStmt) isStmt() {}

type ExprStmt struct {
	NodeSpan
	X Expr
}

func (*ExprStmt) isStmt() {}

// DeclStmt wraps a local declaration (session/saved/local/constant) that
// appears inside a block body.
type DeclStmt struct {
	NodeSpan
	Decl Decl
}

func (*DeclStmt) isStmt() {}

// BadStmt mirrors BadDecl for statement-level recovery.
type BadStmt struct{ NodeSpan }

func (*BadStmt) isStmt() {}

// ============================================================ Expressions

// Expr is the closed sum type of all expressions.
type Expr interface {
	Node
	isExpr()
}

// LiteralKind distinguishes the literal forms of spec.md §3.
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitString
	LitChar
	LitBool
	LitNull
	LitUndefined
)

type LiteralExpr struct {
	NodeSpan
	Kind LiteralKind
	Text string
}

func (*LiteralExpr) isExpr() {}

type IdentExpr struct {
	NodeSpan
	Name string
}

func (*IdentExpr) isExpr() {}

// BinaryOp enumerates the binary operator families: arithmetic, relational,
// logical, bitwise, shift, and assignment/compound-assignment.
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinLogAnd
	BinLogOr
	BinBitAnd
	BinBitOr
	BinBitXor
	BinShl
	BinShr
	BinAssign
	BinAddAssign
	BinSubAssign
	BinMulAssign
	BinDivAssign
	BinModAssign
	BinAndAssign
	BinOrAssign
	BinXorAssign
	BinShlAssign
	BinShrAssign
)

type BinaryExpr struct {
	NodeSpan
	Op          BinaryOp
	Left, Right Expr
}

func (*BinaryExpr) isExpr() {}

// UnaryOp enumerates unary forms, including pre/post inc/dec, address-of,
// and dereference.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryBitNot
	UnaryPreInc
	UnaryPreDec
	UnaryPostInc
	UnaryPostDec
	UnaryAddrOf
	UnaryDeref
)

type UnaryExpr struct {
	NodeSpan
	Op UnaryOp
	X  Expr
}

func (*UnaryExpr) isExpr() {}

type CallExpr struct {
	NodeSpan
	Fn   Expr
	Args []Expr
}

func (*CallExpr) isExpr() {}

// MemberExpr is `.` or `->` member access.
type MemberExpr struct {
	NodeSpan
	X      Expr
	Name   string
	Arrow  bool // true for ->
}

func (*MemberExpr) isExpr() {}

type IndexExpr struct {
	NodeSpan
	X     Expr
	Index Expr
}

func (*IndexExpr) isExpr() {}

type TernaryExpr struct {
	NodeSpan
	Cond, Then, Else Expr
}

func (*TernaryExpr) isExpr() {}

// BitSliceExpr is the `x[hi:lo]` postfix-level bit-range form, distinct
// from IndexExpr (spec.md §4.B: the bare colon inside brackets is always a
// range, never a ternary arm).
type BitSliceExpr struct {
	NodeSpan
	X        Expr
	High, Low Expr
}

func (*BitSliceExpr) isExpr() {}

type CastExpr struct {
	NodeSpan
	Type Expr
	X    Expr
}

func (*CastExpr) isExpr() {}

type SizeofExpr struct {
	NodeSpan
	X Expr // nil when this is a sizeoftype(<type>) form over Type instead
	Type Expr
}

func (*SizeofExpr) isExpr() {}

type NewExpr struct {
	NodeSpan
	Type  Expr
	Count Expr // nil for a bare `new T`
}

func (*NewExpr) isExpr() {}

type InitializerListExpr struct {
	NodeSpan
	Elements []Expr
}

func (*InitializerListExpr) isExpr() {}

// TypeExpr represents a type written in expression position (cast targets,
// sizeoftype, typeof, parameter/return types). Name carries the base type
// spelling; Pointer/VectorOf/ArrayLen capture common DML type constructors.
type TypeExpr struct {
	NodeSpan
	Name      string
	Pointer   bool
	VectorOf  bool
	ArrayLen  Expr // nil unless this is a fixed-size array type
	IsTypeof  bool
	TypeofX   Expr // operand of `typeof(expr)`
}

func (*TypeExpr) isExpr() {}

// BadExpr mirrors BadDecl/BadStmt for expression-level recovery.
type BadExpr struct{ NodeSpan }

func (*BadExpr) isExpr() {}
