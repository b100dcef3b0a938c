package compiler

import (
	"fmt"
	"strings"
)

// The AST is a plain tree: a Program owns top-level declarations,
// declarations own statements, statements own expressions. There are no
// parent links, so passes can rebuild subtrees freely. Pipeline stages
// never mutate their input; they clone the program and rewrite the clone.

//  Types

// TypeKind discriminates the closed set of type shapes in the subset.
type TypeKind int

const (
	TypeInt TypeKind = iota
	TypeChar
	TypeVoid
	TypePointer
	TypeArray
	TypeStruct
	TypeFunc
)

// Type describes the type of an expression or declaration. Types are
// immutable after construction and may be shared between nodes.
type Type struct {
	Kind   TypeKind
	Elem   *Type   // pointer / array element type
	Len    int32   // array length
	Name   string  // struct name
	Ret    *Type   // function return type
	Params []*Type // function parameter types
}

var (
	intType  = &Type{Kind: TypeInt}
	charType = &Type{Kind: TypeChar}
	voidType = &Type{Kind: TypeVoid}
)

func pointerTo(elem *Type) *Type { return &Type{Kind: TypePointer, Elem: elem} }

func arrayOf(elem *Type, n int32) *Type { return &Type{Kind: TypeArray, Elem: elem, Len: n} }

func (t *Type) String() string {
	switch t.Kind {
	case TypeInt:
		return "int"
	case TypeChar:
		return "char"
	case TypeVoid:
		return "void"
	case TypePointer:
		return t.Elem.String() + "*"
	case TypeArray:
		return fmt.Sprintf("%s[%d]", t.Elem, t.Len)
	case TypeStruct:
		return "struct " + t.Name
	case TypeFunc:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		return fmt.Sprintf("%s(%s)", t.Ret, strings.Join(parts, ", "))
	}
	return "?"
}

// IsInteger reports whether t is an arithmetic integer type.
func (t *Type) IsInteger() bool { return t.Kind == TypeInt || t.Kind == TypeChar }

// IsScalar reports whether t may appear in a condition or arithmetic context.
func (t *Type) IsScalar() bool { return t.IsInteger() || t.Kind == TypePointer }

// typesEqual compares two types structurally.
func typesEqual(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TypePointer:
		return typesEqual(a.Elem, b.Elem)
	case TypeArray:
		return a.Len == b.Len && typesEqual(a.Elem, b.Elem)
	case TypeStruct:
		return a.Name == b.Name
	case TypeFunc:
		if !typesEqual(a.Ret, b.Ret) || len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if !typesEqual(a.Params[i], b.Params[i]) {
				return false
			}
		}
	}
	return true
}

// assignable reports whether a value of type src may be stored into dst.
// int and char convert freely; an array decays to a pointer to its element
// type; everything else must match structurally.
func assignable(dst, src *Type) bool {
	if dst == nil || src == nil {
		return false
	}
	if dst.IsInteger() && src.IsInteger() {
		return true
	}
	if dst.Kind == TypePointer && src.Kind == TypeArray {
		return typesEqual(dst.Elem, src.Elem)
	}
	return typesEqual(dst, src)
}

//  Expression nodes

// Expr is implemented by every node that produces a value. Semantic
// analysis fills in the resolved type of each expression.
type Expr interface {
	exprNode()
	String() string
	Pos() int
	Type() *Type
}

// IntLit is a compile-time integer constant.
//
//	int x = 10;
//	         ^^  IntLit{Value: 10}
//
// Values carry 32-bit two's-complement semantics, matching the target
// word size.
type IntLit struct {
	Value int32
	Line  int
	T     *Type
}

// StrLit is a string constant "..."; Value holds the decoded bytes without
// the terminating NUL (every consumer appends one).
type StrLit struct {
	Value string
	Line  int
	T     *Type
}

// CharLit is a character constant 'c'; arithmetic sees its byte value.
type CharLit struct {
	Value byte
	Line  int
	T     *Type
}

// Ident is a read of a named variable, parameter, or enum constant.
//
//	return x;
//	       ^  Ident{Name: "x"}
type Ident struct {
	Name string
	Line int
	T    *Type
	Sym  *Symbol
}

// BinaryExpr represents a binary operation: Left Op Right. It covers
// arithmetic, bitwise, and comparison operators; && and || live in
// LogicalExpr because they short-circuit.
type BinaryExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
	Line  int
	T     *Type
}

// LogicalExpr represents Left && Right or Left || Right. The right operand
// is evaluated only when the left does not decide the result.
type LogicalExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
	Line  int
	T     *Type
}

// UnaryExpr represents - ! ~ & * and ++/--. Post distinguishes x++ from
// ++x and is meaningful only for PLUS_PLUS and MINUS_MINUS.
type UnaryExpr struct {
	Op      TokenType
	Operand Expr
	Post    bool
	Line    int
	T       *Type
}

// AssignExpr represents Target = Value. Compound forms (+=, -=, ...) are
// desugared by the parser into Target = Target op Value.
type AssignExpr struct {
	Target Expr
	Value  Expr
	Line   int
	T      *Type
}

// CallExpr represents name(args). The subset has no function pointers, so
// the callee is always a plain identifier.
type CallExpr struct {
	Name string
	Args []Expr
	Line int
	T    *Type
}

// IndexExpr represents Base[Index].
type IndexExpr struct {
	Base  Expr
	Index Expr
	Line  int
	T     *Type
}

// MemberExpr represents Base.Field, or Base->Field when Arrow is set.
type MemberExpr struct {
	Base  Expr
	Field string
	Arrow bool
	Line  int
	T     *Type
}

// TernaryExpr represents Cond ? Then : Else.
type TernaryExpr struct {
	Cond Expr
	Then Expr
	Else Expr
	Line int
	T    *Type
}

// CastExpr represents (To)Inner.
type CastExpr struct {
	To    *Type
	Inner Expr
	Line  int
	T     *Type
}

// SizeofExpr represents sizeof(type) or sizeof expr; exactly one of
// TypeArg and ExprArg is set.
type SizeofExpr struct {
	TypeArg *Type
	ExprArg Expr
	Line    int
	T       *Type
}

func (*IntLit) exprNode()      {}
func (*StrLit) exprNode()      {}
func (*CharLit) exprNode()     {}
func (*Ident) exprNode()       {}
func (*BinaryExpr) exprNode()  {}
func (*LogicalExpr) exprNode() {}
func (*UnaryExpr) exprNode()   {}
func (*AssignExpr) exprNode()  {}
func (*CallExpr) exprNode()    {}
func (*IndexExpr) exprNode()   {}
func (*MemberExpr) exprNode()  {}
func (*TernaryExpr) exprNode() {}
func (*CastExpr) exprNode()    {}
func (*SizeofExpr) exprNode()  {}

func (e *IntLit) Pos() int      { return e.Line }
func (e *StrLit) Pos() int      { return e.Line }
func (e *CharLit) Pos() int     { return e.Line }
func (e *Ident) Pos() int       { return e.Line }
func (e *BinaryExpr) Pos() int  { return e.Line }
func (e *LogicalExpr) Pos() int { return e.Line }
func (e *UnaryExpr) Pos() int   { return e.Line }
func (e *AssignExpr) Pos() int  { return e.Line }
func (e *CallExpr) Pos() int    { return e.Line }
func (e *IndexExpr) Pos() int   { return e.Line }
func (e *MemberExpr) Pos() int  { return e.Line }
func (e *TernaryExpr) Pos() int { return e.Line }
func (e *CastExpr) Pos() int    { return e.Line }
func (e *SizeofExpr) Pos() int  { return e.Line }

func (e *IntLit) Type() *Type      { return e.T }
func (e *StrLit) Type() *Type      { return e.T }
func (e *CharLit) Type() *Type     { return e.T }
func (e *Ident) Type() *Type       { return e.T }
func (e *BinaryExpr) Type() *Type  { return e.T }
func (e *LogicalExpr) Type() *Type { return e.T }
func (e *UnaryExpr) Type() *Type   { return e.T }
func (e *AssignExpr) Type() *Type  { return e.T }
func (e *CallExpr) Type() *Type    { return e.T }
func (e *IndexExpr) Type() *Type   { return e.T }
func (e *MemberExpr) Type() *Type  { return e.T }
func (e *TernaryExpr) Type() *Type { return e.T }
func (e *CastExpr) Type() *Type    { return e.T }
func (e *SizeofExpr) Type() *Type  { return e.T }

// Expression String methods render valid C with conservative parentheses;
// the source re-emitter builds on them.

func (e *IntLit) String() string  { return fmt.Sprintf("%d", e.Value) }
func (e *StrLit) String() string  { return quoteCString(e.Value) }
func (e *CharLit) String() string { return quoteCChar(e.Value) }
func (e *Ident) String() string   { return e.Name }

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, opText[e.Op], e.Right)
}

func (e *LogicalExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, opText[e.Op], e.Right)
}

func (e *UnaryExpr) String() string {
	if e.Post {
		return fmt.Sprintf("(%s%s)", e.Operand, opText[e.Op])
	}
	return fmt.Sprintf("(%s%s)", opText[e.Op], e.Operand)
}

func (e *AssignExpr) String() string {
	return fmt.Sprintf("(%s = %s)", e.Target, e.Value)
}

func (e *CallExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(args, ", "))
}

func (e *IndexExpr) String() string { return fmt.Sprintf("%s[%s]", e.Base, e.Index) }

func (e *MemberExpr) String() string {
	if e.Arrow {
		return fmt.Sprintf("%s->%s", e.Base, e.Field)
	}
	return fmt.Sprintf("%s.%s", e.Base, e.Field)
}

func (e *TernaryExpr) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", e.Cond, e.Then, e.Else)
}

func (e *CastExpr) String() string { return fmt.Sprintf("(%s)%s", e.To, e.Inner) }

func (e *SizeofExpr) String() string {
	if e.TypeArg != nil {
		return fmt.Sprintf("sizeof(%s)", e.TypeArg)
	}
	return fmt.Sprintf("sizeof(%s)", e.ExprArg)
}

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	stmtNode()
	String() string
	Pos() int
}

// ExprStmt represents an expression evaluated for its side effects
// (e.g. a function call or assignment).
type ExprStmt struct {
	E    Expr
	Line int
}

// BlockStmt represents { statement; ... } and opens a new scope.
type BlockStmt struct {
	List []Stmt
	Line int
}

// IfStmt represents if (cond) body [else elseBody]. Else is nil, a
// *BlockStmt, or a *IfStmt for an else-if chain.
type IfStmt struct {
	Cond Expr
	Then *BlockStmt
	Else Stmt
	Line int
}

// WhileStmt represents while (cond) body.
type WhileStmt struct {
	Cond Expr
	Body *BlockStmt
	Line int
}

// DoWhileStmt represents do body while (cond); the body runs at least once.
type DoWhileStmt struct {
	Body *BlockStmt
	Cond Expr
	Line int
}

// ForStmt represents for (init; cond; post) body. Init is nil, a *VarDecl,
// or an *ExprStmt; Cond and Post may each be nil.
type ForStmt struct {
	Init Stmt
	Cond Expr
	Post Expr
	Body *BlockStmt
	Line int
}

// CaseClause represents case Value: Body, or default: Body when Value
// is nil.
type CaseClause struct {
	Value Expr
	Body  []Stmt
	Line  int
}

// SwitchStmt represents switch (Tag) { Cases... }. A default clause, if
// present, appears in Cases with a nil Value.
type SwitchStmt struct {
	Tag   Expr
	Cases []*CaseClause
	Line  int
}

// BreakStmt represents break;
type BreakStmt struct{ Line int }

// ContinueStmt represents continue;
type ContinueStmt struct{ Line int }

// ReturnStmt represents return [expr]; Result is nil for a bare return.
type ReturnStmt struct {
	Result Expr
	Line   int
}

func (*ExprStmt) stmtNode()     {}
func (*BlockStmt) stmtNode()    {}
func (*IfStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()    {}
func (*DoWhileStmt) stmtNode()  {}
func (*ForStmt) stmtNode()      {}
func (*SwitchStmt) stmtNode()   {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*ReturnStmt) stmtNode()   {}
func (*VarDecl) stmtNode()      {}

func (s *ExprStmt) Pos() int     { return s.Line }
func (s *BlockStmt) Pos() int    { return s.Line }
func (s *IfStmt) Pos() int       { return s.Line }
func (s *WhileStmt) Pos() int    { return s.Line }
func (s *DoWhileStmt) Pos() int  { return s.Line }
func (s *ForStmt) Pos() int      { return s.Line }
func (s *SwitchStmt) Pos() int   { return s.Line }
func (s *BreakStmt) Pos() int    { return s.Line }
func (s *ContinueStmt) Pos() int { return s.Line }
func (s *ReturnStmt) Pos() int   { return s.Line }

func (s *ExprStmt) String() string  { return fmt.Sprintf("ExprStmt(%s)", s.E) }
func (s *BlockStmt) String() string { return fmt.Sprintf("BlockStmt(len=%d)", len(s.List)) }

func (s *IfStmt) String() string {
	if s.Else != nil {
		return fmt.Sprintf("IfStmt(if %s then %s else %s)", s.Cond, s.Then, s.Else)
	}
	return fmt.Sprintf("IfStmt(if %s then %s)", s.Cond, s.Then)
}

func (s *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt(while %s do %s)", s.Cond, s.Body)
}

func (s *DoWhileStmt) String() string {
	return fmt.Sprintf("DoWhileStmt(do %s while %s)", s.Body, s.Cond)
}

func (s *ForStmt) String() string {
	return fmt.Sprintf("ForStmt(init=%s, cond=%s, post=%s, body=%s)", s.Init, s.Cond, s.Post, s.Body)
}

func (s *SwitchStmt) String() string {
	return fmt.Sprintf("SwitchStmt(tag=%s, cases=%d)", s.Tag, len(s.Cases))
}

func (s *BreakStmt) String() string    { return "BreakStmt" }
func (s *ContinueStmt) String() string { return "ContinueStmt" }

func (s *ReturnStmt) String() string {
	if s.Result == nil {
		return "ReturnStmt()"
	}
	return fmt.Sprintf("ReturnStmt(%s)", s.Result)
}

//  Declarations

// Decl is implemented by every top-level declaration. VarDecl implements
// Stmt as well, so local declarations sit directly in blocks.
type Decl interface {
	declNode()
	String() string
	Pos() int
}

// Param is one function parameter.
type Param struct {
	Name string
	Type *Type
	Line int
}

// FuncDecl represents ret name(params) { body }, or a prototype when Body
// is nil. Variadic marks a trailing "..." in the parameter list, which the
// subset allows only on prototypes of library functions. Renamed and
// StateVars are synthesized metadata: the renaming pass records its
// identifier mapping, flattening records the dispatch state variables it
// introduced.
type FuncDecl struct {
	Name      string
	Params    []*Param
	Ret       *Type
	Body      *BlockStmt
	Variadic  bool
	Line      int
	Renamed   map[string]string
	StateVars []string
}

// VarDecl represents type name [= init]; Global marks file scope, Extern
// a declaration whose storage lives in another unit.
type VarDecl struct {
	Name   string
	Type   *Type
	Init   Expr
	Global bool
	Extern bool
	Line   int
}

// Field is one struct member.
type Field struct {
	Name string
	Type *Type
	Line int
}

// StructDecl represents struct Name { fields... };
type StructDecl struct {
	Name   string
	Fields []*Field
	Line   int
}

// EnumMember is one named constant; values are assigned by the parser.
type EnumMember struct {
	Name  string
	Value int32
}

// EnumDecl represents enum Name { members... }; members become integer
// constants in the enclosing scope.
type EnumDecl struct {
	Name    string
	Members []EnumMember
	Line    int
}

// TypedefDecl records a type alias. References are resolved during
// parsing; the declaration itself is kept only for source re-emission.
type TypedefDecl struct {
	Name string
	Type *Type
	Line int
}

func (*FuncDecl) declNode()    {}
func (*VarDecl) declNode()     {}
func (*StructDecl) declNode()  {}
func (*EnumDecl) declNode()    {}
func (*TypedefDecl) declNode() {}

func (d *FuncDecl) Pos() int    { return d.Line }
func (d *VarDecl) Pos() int     { return d.Line }
func (d *StructDecl) Pos() int  { return d.Line }
func (d *EnumDecl) Pos() int    { return d.Line }
func (d *TypedefDecl) Pos() int { return d.Line }

func (d *FuncDecl) String() string {
	params := make([]string, len(d.Params))
	for i, p := range d.Params {
		params[i] = fmt.Sprintf("%s %s", p.Type, p.Name)
	}
	head := fmt.Sprintf("%s %s(%s)", d.Ret, d.Name, strings.Join(params, ", "))
	if d.Body == nil {
		return fmt.Sprintf("FuncDecl(%s, prototype)", head)
	}
	return fmt.Sprintf("FuncDecl(%s, body=%s)", head, d.Body)
}

func (d *VarDecl) String() string {
	if d.Init == nil {
		return fmt.Sprintf("VarDecl(%s %s)", d.Type, d.Name)
	}
	return fmt.Sprintf("VarDecl(%s %s = %s)", d.Type, d.Name, d.Init)
}

func (d *StructDecl) String() string {
	return fmt.Sprintf("StructDecl(struct %s, fields=%d)", d.Name, len(d.Fields))
}

func (d *EnumDecl) String() string {
	return fmt.Sprintf("EnumDecl(enum %s, members=%d)", d.Name, len(d.Members))
}

func (d *TypedefDecl) String() string {
	return fmt.Sprintf("TypedefDecl(%s = %s)", d.Name, d.Type)
}

// Program is one translation unit: the ordered top-level declarations.
type Program struct {
	File  string
	Decls []Decl
}

// Functions returns the function declarations in source order.
func (p *Program) Functions() []*FuncDecl {
	var fns []*FuncDecl
	for _, d := range p.Decls {
		if fn, ok := d.(*FuncDecl); ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

// Function returns the named function, preferring a definition over a
// bare prototype, or nil.
func (p *Program) Function(name string) *FuncDecl {
	var proto *FuncDecl
	for _, d := range p.Decls {
		if fn, ok := d.(*FuncDecl); ok && fn.Name == name {
			if fn.Body != nil {
				return fn
			}
			if proto == nil {
				proto = fn
			}
		}
	}
	return proto
}

// Struct returns the named struct declaration, or nil.
func (p *Program) Struct(name string) *StructDecl {
	for _, d := range p.Decls {
		if sd, ok := d.(*StructDecl); ok && sd.Name == name {
			return sd
		}
	}
	return nil
}

//  Deep copies

// Clone returns a deep copy of the program. Types are immutable and stay
// shared; resolved symbols are copied by reference and re-established by
// the next analysis.
func (p *Program) Clone() *Program {
	out := &Program{File: p.File, Decls: make([]Decl, len(p.Decls))}
	for i, d := range p.Decls {
		out.Decls[i] = cloneDecl(d)
	}
	return out
}

func cloneDecl(d Decl) Decl {
	switch d := d.(type) {
	case *FuncDecl:
		return cloneFunc(d)
	case *VarDecl:
		return cloneVarDecl(d)
	case *StructDecl:
		fields := make([]*Field, len(d.Fields))
		for i, f := range d.Fields {
			cp := *f
			fields[i] = &cp
		}
		return &StructDecl{Name: d.Name, Fields: fields, Line: d.Line}
	case *EnumDecl:
		members := make([]EnumMember, len(d.Members))
		copy(members, d.Members)
		return &EnumDecl{Name: d.Name, Members: members, Line: d.Line}
	case *TypedefDecl:
		cp := *d
		return &cp
	}
	panic(fmt.Sprintf("cloneDecl: unknown declaration %T", d))
}

func cloneFunc(fn *FuncDecl) *FuncDecl {
	out := &FuncDecl{Name: fn.Name, Ret: fn.Ret, Variadic: fn.Variadic, Line: fn.Line}
	out.Params = make([]*Param, len(fn.Params))
	for i, p := range fn.Params {
		cp := *p
		out.Params[i] = &cp
	}
	if fn.Body != nil {
		out.Body = cloneStmt(fn.Body).(*BlockStmt)
	}
	if fn.Renamed != nil {
		out.Renamed = make(map[string]string, len(fn.Renamed))
		for k, v := range fn.Renamed {
			out.Renamed[k] = v
		}
	}
	out.StateVars = append([]string(nil), fn.StateVars...)
	return out
}

func cloneVarDecl(d *VarDecl) *VarDecl {
	return &VarDecl{Name: d.Name, Type: d.Type, Init: cloneExpr(d.Init), Global: d.Global, Extern: d.Extern, Line: d.Line}
}

func cloneStmts(list []Stmt) []Stmt {
	if list == nil {
		return nil
	}
	out := make([]Stmt, len(list))
	for i, s := range list {
		out[i] = cloneStmt(s)
	}
	return out
}

func cloneStmt(s Stmt) Stmt {
	switch s := s.(type) {
	case *ExprStmt:
		return &ExprStmt{E: cloneExpr(s.E), Line: s.Line}
	case *BlockStmt:
		return &BlockStmt{List: cloneStmts(s.List), Line: s.Line}
	case *IfStmt:
		out := &IfStmt{Cond: cloneExpr(s.Cond), Then: cloneStmt(s.Then).(*BlockStmt), Line: s.Line}
		if s.Else != nil {
			out.Else = cloneStmt(s.Else)
		}
		return out
	case *WhileStmt:
		return &WhileStmt{Cond: cloneExpr(s.Cond), Body: cloneStmt(s.Body).(*BlockStmt), Line: s.Line}
	case *DoWhileStmt:
		return &DoWhileStmt{Body: cloneStmt(s.Body).(*BlockStmt), Cond: cloneExpr(s.Cond), Line: s.Line}
	case *ForStmt:
		out := &ForStmt{Cond: cloneExpr(s.Cond), Post: cloneExpr(s.Post), Body: cloneStmt(s.Body).(*BlockStmt), Line: s.Line}
		if s.Init != nil {
			out.Init = cloneStmt(s.Init)
		}
		return out
	case *SwitchStmt:
		out := &SwitchStmt{Tag: cloneExpr(s.Tag), Line: s.Line}
		out.Cases = make([]*CaseClause, len(s.Cases))
		for i, c := range s.Cases {
			out.Cases[i] = &CaseClause{Value: cloneExpr(c.Value), Body: cloneStmts(c.Body), Line: c.Line}
		}
		return out
	case *BreakStmt:
		return &BreakStmt{Line: s.Line}
	case *ContinueStmt:
		return &ContinueStmt{Line: s.Line}
	case *ReturnStmt:
		return &ReturnStmt{Result: cloneExpr(s.Result), Line: s.Line}
	case *VarDecl:
		return cloneVarDecl(s)
	}
	panic(fmt.Sprintf("cloneStmt: unknown statement %T", s))
}

func cloneExprs(list []Expr) []Expr {
	if list == nil {
		return nil
	}
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = cloneExpr(e)
	}
	return out
}

func cloneExpr(e Expr) Expr {
	if e == nil {
		return nil
	}
	switch e := e.(type) {
	case *IntLit:
		cp := *e
		return &cp
	case *StrLit:
		cp := *e
		return &cp
	case *CharLit:
		cp := *e
		return &cp
	case *Ident:
		cp := *e
		return &cp
	case *BinaryExpr:
		return &BinaryExpr{Op: e.Op, Left: cloneExpr(e.Left), Right: cloneExpr(e.Right), Line: e.Line, T: e.T}
	case *LogicalExpr:
		return &LogicalExpr{Op: e.Op, Left: cloneExpr(e.Left), Right: cloneExpr(e.Right), Line: e.Line, T: e.T}
	case *UnaryExpr:
		return &UnaryExpr{Op: e.Op, Operand: cloneExpr(e.Operand), Post: e.Post, Line: e.Line, T: e.T}
	case *AssignExpr:
		return &AssignExpr{Target: cloneExpr(e.Target), Value: cloneExpr(e.Value), Line: e.Line, T: e.T}
	case *CallExpr:
		return &CallExpr{Name: e.Name, Args: cloneExprs(e.Args), Line: e.Line, T: e.T}
	case *IndexExpr:
		return &IndexExpr{Base: cloneExpr(e.Base), Index: cloneExpr(e.Index), Line: e.Line, T: e.T}
	case *MemberExpr:
		return &MemberExpr{Base: cloneExpr(e.Base), Field: e.Field, Arrow: e.Arrow, Line: e.Line, T: e.T}
	case *TernaryExpr:
		return &TernaryExpr{Cond: cloneExpr(e.Cond), Then: cloneExpr(e.Then), Else: cloneExpr(e.Else), Line: e.Line, T: e.T}
	case *CastExpr:
		return &CastExpr{To: e.To, Inner: cloneExpr(e.Inner), Line: e.Line, T: e.T}
	case *SizeofExpr:
		return &SizeofExpr{TypeArg: e.TypeArg, ExprArg: cloneExpr(e.ExprArg), Line: e.Line, T: e.T}
	}
	panic(fmt.Sprintf("cloneExpr: unknown expression %T", e))
}

//  Expression rewriting
//
// The obfuscation passes all rewrite expressions in place. rewriteExpr
// rebuilds a tree bottom-up, applying f to every node that is read for
// its value. Nodes in storage position (an assignment target, the operand
// of ++/-- or unary &) are never passed to f; only their
// read-subexpressions are, so f can wrap any node it sees without
// producing an invalid lvalue.

func rewriteExpr(e Expr, f func(Expr) Expr) Expr {
	if e == nil {
		return nil
	}
	switch e := e.(type) {
	case *BinaryExpr:
		e.Left = rewriteExpr(e.Left, f)
		e.Right = rewriteExpr(e.Right, f)
	case *LogicalExpr:
		e.Left = rewriteExpr(e.Left, f)
		e.Right = rewriteExpr(e.Right, f)
	case *UnaryExpr:
		if e.Op == PLUS_PLUS || e.Op == MINUS_MINUS || e.Op == AND {
			rewriteLvalue(e.Operand, f)
			return e
		}
		e.Operand = rewriteExpr(e.Operand, f)
	case *AssignExpr:
		rewriteLvalue(e.Target, f)
		e.Value = rewriteExpr(e.Value, f)
		return e
	case *CallExpr:
		for i, a := range e.Args {
			e.Args[i] = rewriteExpr(a, f)
		}
	case *IndexExpr:
		e.Base = rewriteExpr(e.Base, f)
		e.Index = rewriteExpr(e.Index, f)
	case *MemberExpr:
		e.Base = rewriteExpr(e.Base, f)
	case *TernaryExpr:
		e.Cond = rewriteExpr(e.Cond, f)
		e.Then = rewriteExpr(e.Then, f)
		e.Else = rewriteExpr(e.Else, f)
	case *CastExpr:
		e.Inner = rewriteExpr(e.Inner, f)
	case *SizeofExpr:
		// sizeof does not evaluate its operand, so there is nothing to
		// rewrite inside it.
		return e
	}
	return f(e)
}

// rewriteLvalue rewrites the read-subexpressions of a storage location
// without touching its shape.
func rewriteLvalue(e Expr, f func(Expr) Expr) {
	switch e := e.(type) {
	case *IndexExpr:
		e.Base = rewriteExpr(e.Base, f)
		e.Index = rewriteExpr(e.Index, f)
	case *MemberExpr:
		if e.Arrow {
			e.Base = rewriteExpr(e.Base, f)
		} else {
			rewriteLvalue(e.Base, f)
		}
	case *UnaryExpr:
		if e.Op == STAR {
			e.Operand = rewriteExpr(e.Operand, f)
		}
	}
}

// rewriteStmtExprs applies rewriteExpr to every expression hanging
// directly off s, without descending into nested statements.
func rewriteStmtExprs(s Stmt, f func(Expr) Expr) {
	switch s := s.(type) {
	case *ExprStmt:
		s.E = rewriteExpr(s.E, f)
	case *VarDecl:
		s.Init = rewriteExpr(s.Init, f)
	case *IfStmt:
		s.Cond = rewriteExpr(s.Cond, f)
	case *WhileStmt:
		s.Cond = rewriteExpr(s.Cond, f)
	case *DoWhileStmt:
		s.Cond = rewriteExpr(s.Cond, f)
	case *ForStmt:
		s.Cond = rewriteExpr(s.Cond, f)
		s.Post = rewriteExpr(s.Post, f)
	case *SwitchStmt:
		// Case labels stay constant expressions; only the tag is fair
		// game for rewriting.
		s.Tag = rewriteExpr(s.Tag, f)
	case *ReturnStmt:
		s.Result = rewriteExpr(s.Result, f)
	}
}

// rewriteAllExprs applies f to every value-position expression in the
// statement tree.
func rewriteAllExprs(list []Stmt, f func(Expr) Expr) {
	for _, s := range list {
		rewriteStmtExprs(s, f)
		switch s := s.(type) {
		case *BlockStmt:
			rewriteAllExprs(s.List, f)
		case *IfStmt:
			rewriteAllExprs(s.Then.List, f)
			if s.Else != nil {
				rewriteAllExprs([]Stmt{s.Else}, f)
			}
		case *WhileStmt:
			rewriteAllExprs(s.Body.List, f)
		case *DoWhileStmt:
			rewriteAllExprs(s.Body.List, f)
		case *ForStmt:
			if s.Init != nil {
				rewriteAllExprs([]Stmt{s.Init}, f)
			}
			rewriteAllExprs(s.Body.List, f)
		case *SwitchStmt:
			for _, c := range s.Cases {
				rewriteAllExprs(c.Body, f)
			}
		}
	}
}
