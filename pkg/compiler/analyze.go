package compiler

// Semantic analysis resolves every identifier, types every expression, and
// validates control flow. It walks in source order, so a name is only
// visible after its declaration, and it stops at the first error: later
// stages may assume a fully resolved, well-typed tree.

// builtinDecls are the library functions every unit can call without
// declaring them. They lower to libc calls in generated code and to
// native implementations in the evaluator.
func builtinDecls() []*FuncDecl {
	charPtr := pointerTo(charType)
	return []*FuncDecl{
		{Name: "putchar", Params: []*Param{{Name: "c", Type: intType}}, Ret: intType},
		{Name: "getchar", Params: nil, Ret: intType},
		{Name: "puts", Params: []*Param{{Name: "s", Type: charPtr}}, Ret: intType},
		{Name: "printf", Params: []*Param{{Name: "format", Type: charPtr}}, Ret: intType, Variadic: true},
	}
}

type analyzer struct {
	prog     *Program
	table    *SymbolTable
	scope    *Scope
	fn       *FuncDecl
	loops    int
	switches int
	warns    Diagnostics
}

// Analyze resolves names and checks types across the whole unit. It
// returns the symbol table and any warnings; the first error aborts.
func Analyze(prog *Program) (*SymbolTable, Diagnostics, error) {
	a := &analyzer{prog: prog, table: NewSymbolTable()}
	a.scope = a.table.Globals

	for _, b := range builtinDecls() {
		sym := &Symbol{Name: b.Name, Kind: SymFunc, Type: funcType(b), Fn: b}
		if err := a.scope.Define(sym); err != nil {
			return nil, nil, err
		}
	}

	for _, d := range prog.Decls {
		var err error
		switch d := d.(type) {
		case *StructDecl:
			err = a.table.DefineStruct(d)
		case *EnumDecl:
			err = a.declareEnum(d)
		case *TypedefDecl:
			err = a.validateType(d.Type, d.Line)
		case *VarDecl:
			err = a.declareGlobal(d)
		case *FuncDecl:
			err = a.checkFunction(d)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return a.table, a.warns, nil
}

func funcType(fn *FuncDecl) *Type {
	params := make([]*Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Type
	}
	return &Type{Kind: TypeFunc, Ret: fn.Ret, Params: params}
}

// validateType rejects types that name undefined structs or that cannot
// hold a value.
func (a *analyzer) validateType(t *Type, line int) error {
	switch t.Kind {
	case TypeStruct:
		if _, ok := a.table.Struct(t.Name); !ok {
			return errorf(UnresolvedSymbol, line, "struct %q is not defined", t.Name)
		}
	case TypePointer:
		if t.Elem.Kind == TypeVoid {
			return nil // void* is a valid pointer type
		}
		return a.validateType(t.Elem, line)
	case TypeArray:
		if t.Elem.Kind == TypeVoid {
			return errorf(TypeMismatch, line, "cannot declare an array of void")
		}
		return a.validateType(t.Elem, line)
	}
	return nil
}

func (a *analyzer) declareEnum(d *EnumDecl) error {
	for _, m := range d.Members {
		sym := &Symbol{Name: m.Name, Kind: SymEnumConst, Type: intType, Line: d.Line, Const: m.Value}
		if err := a.scope.Define(sym); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) declareGlobal(d *VarDecl) error {
	if err := a.validateType(d.Type, d.Line); err != nil {
		return err
	}
	if d.Type.Kind == TypeVoid {
		return errorf(TypeMismatch, d.Line, "cannot declare variable %q of type void", d.Name)
	}
	if d.Init != nil {
		t, err := a.checkExpr(d.Init)
		if err != nil {
			return err
		}
		if !constInitializer(d.Init) {
			return errorf(TypeMismatch, d.Line, "initializer of global %q must be a constant expression", d.Name)
		}
		if !a.assignOK(d.Type, t, d.Init) {
			return errorf(TypeMismatch, d.Line, "cannot initialize %s %q with %s", d.Type, d.Name, t)
		}
	}
	sym := &Symbol{Name: d.Name, Kind: SymGlobal, Type: d.Type, Line: d.Line}
	return a.scope.Define(sym)
}

// constInitializer reports whether e can be evaluated at compile time:
// literal arithmetic, enum constants, or a string literal.
func constInitializer(e Expr) bool {
	switch e := e.(type) {
	case *IntLit, *CharLit, *StrLit:
		return true
	case *Ident:
		return e.Sym != nil && e.Sym.Kind == SymEnumConst
	case *UnaryExpr:
		return !e.Post && (e.Op == MINUS || e.Op == TILDE || e.Op == NOT) && constInitializer(e.Operand)
	case *BinaryExpr:
		return constInitializer(e.Left) && constInitializer(e.Right)
	}
	return false
}

func (a *analyzer) checkFunction(fn *FuncDecl) error {
	for _, p := range fn.Params {
		if p.Type.Kind == TypeArray && p.Type.Elem.Kind != TypeVoid {
			// Array parameters decay to pointers, as in C. Adjusting
			// before declareFunc keeps int f(int a[4]) and int f(int *a)
			// interchangeable between prototype and definition.
			p.Type = pointerTo(p.Type.Elem)
		}
	}
	if err := a.declareFunc(fn); err != nil {
		return err
	}
	if fn.Body == nil {
		return nil
	}

	if fn.Ret.Kind == TypeStruct {
		return errorf(TypeMismatch, fn.Line, "function %q cannot return a struct; return a pointer", fn.Name)
	}

	outer := a.scope
	a.scope = NewScope(outer)
	a.fn = fn
	defer func() {
		a.scope = outer
		a.fn = nil
	}()

	for _, p := range fn.Params {
		if err := a.validateType(p.Type, p.Line); err != nil {
			return err
		}
		if p.Type.Kind == TypeVoid {
			return errorf(TypeMismatch, p.Line, "parameter %q of %q cannot have type void", p.Name, fn.Name)
		}
		if p.Type.Kind == TypeStruct {
			return errorf(TypeMismatch, p.Line, "parameter %q of %q cannot be a struct; pass a pointer", p.Name, fn.Name)
		}
		sym := &Symbol{Name: p.Name, Kind: SymParam, Type: p.Type, Line: p.Line}
		if err := a.scope.Define(sym); err != nil {
			return err
		}
	}

	if err := a.checkStmts(fn.Body.List); err != nil {
		return err
	}

	if fn.Ret.Kind != TypeVoid && !terminates(fn.Body.List) {
		a.warns = append(a.warns, warningf(a.prog.File, fn.Line,
			"control may reach the end of non-void function %q", fn.Name))
	}
	return nil
}

// declareFunc records fn in the file scope, merging with an earlier
// prototype when the signatures agree.
func (a *analyzer) declareFunc(fn *FuncDecl) error {
	if existing := a.scope.LookupLocal(fn.Name); existing != nil {
		if existing.Kind != SymFunc {
			return errorf(DuplicateSymbol, fn.Line, "%q redeclared as a function", fn.Name)
		}
		if !typesEqual(existing.Type, funcType(fn)) || existing.Fn.Variadic != fn.Variadic {
			return errorf(TypeMismatch, fn.Line,
				"conflicting declaration of %q (previous: %s)", fn.Name, existing.Type)
		}
		if existing.Fn.Body != nil && fn.Body != nil {
			return errorf(DuplicateSymbol, fn.Line, "function %q redefined", fn.Name)
		}
		if fn.Body != nil {
			existing.Fn = fn
		}
		return nil
	}
	sym := &Symbol{Name: fn.Name, Kind: SymFunc, Type: funcType(fn), Line: fn.Line, Fn: fn}
	return a.scope.Define(sym)
}

//  Statements

func (a *analyzer) checkStmts(list []Stmt) error {
	for _, s := range list {
		if err := a.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) checkStmt(s Stmt) error {
	switch s := s.(type) {
	case *ExprStmt:
		_, err := a.checkExpr(s.E)
		return err

	case *BlockStmt:
		outer := a.scope
		a.scope = NewScope(outer)
		err := a.checkStmts(s.List)
		a.scope = outer
		return err

	case *VarDecl:
		return a.declareLocal(s)

	case *IfStmt:
		if err := a.checkCond(s.Cond); err != nil {
			return err
		}
		if err := a.checkStmt(s.Then); err != nil {
			return err
		}
		if s.Else != nil {
			return a.checkStmt(s.Else)
		}
		return nil

	case *WhileStmt:
		if err := a.checkCond(s.Cond); err != nil {
			return err
		}
		a.loops++
		err := a.checkStmt(s.Body)
		a.loops--
		return err

	case *DoWhileStmt:
		a.loops++
		err := a.checkStmt(s.Body)
		a.loops--
		if err != nil {
			return err
		}
		return a.checkCond(s.Cond)

	case *ForStmt:
		outer := a.scope
		a.scope = NewScope(outer)
		defer func() { a.scope = outer }()
		if s.Init != nil {
			if err := a.checkStmt(s.Init); err != nil {
				return err
			}
		}
		if s.Cond != nil {
			if err := a.checkCond(s.Cond); err != nil {
				return err
			}
		}
		if s.Post != nil {
			if _, err := a.checkExpr(s.Post); err != nil {
				return err
			}
		}
		a.loops++
		err := a.checkStmt(s.Body)
		a.loops--
		return err

	case *SwitchStmt:
		return a.checkSwitch(s)

	case *BreakStmt:
		if a.loops == 0 && a.switches == 0 {
			return errorf(InvalidControlFlow, s.Line, "break outside a loop or switch")
		}
		return nil

	case *ContinueStmt:
		if a.loops == 0 {
			return errorf(InvalidControlFlow, s.Line, "continue outside a loop")
		}
		return nil

	case *ReturnStmt:
		return a.checkReturn(s)
	}
	return errorf(InternalInconsistency, s.Pos(), "unhandled statement %T", s)
}

func (a *analyzer) declareLocal(d *VarDecl) error {
	if err := a.validateType(d.Type, d.Line); err != nil {
		return err
	}
	if d.Type.Kind == TypeVoid {
		return errorf(TypeMismatch, d.Line, "cannot declare variable %q of type void", d.Name)
	}
	if d.Init != nil {
		if d.Type.Kind == TypeArray {
			return errorf(TypeMismatch, d.Line, "array %q cannot have an initializer; assign elements instead", d.Name)
		}
		t, err := a.checkExpr(d.Init)
		if err != nil {
			return err
		}
		if !a.assignOK(d.Type, t, d.Init) {
			return errorf(TypeMismatch, d.Line, "cannot initialize %s %q with %s", d.Type, d.Name, t)
		}
	}
	sym := &Symbol{Name: d.Name, Kind: SymLocal, Type: d.Type, Line: d.Line}
	return a.scope.Define(sym)
}

func (a *analyzer) checkCond(e Expr) error {
	t, err := a.checkExpr(e)
	if err != nil {
		return err
	}
	if !decay(t).IsScalar() {
		return errorf(TypeMismatch, e.Pos(), "condition has non-scalar type %s", t)
	}
	return nil
}

func (a *analyzer) checkSwitch(s *SwitchStmt) error {
	t, err := a.checkExpr(s.Tag)
	if err != nil {
		return err
	}
	if !t.IsInteger() {
		return errorf(TypeMismatch, s.Tag.Pos(), "switch tag has non-integer type %s", t)
	}

	// All case bodies share one scope, like the braces of the switch
	// itself. A name declared under one label is visible under the next.
	outer := a.scope
	a.scope = NewScope(outer)
	defer func() { a.scope = outer }()

	seen := make(map[int32]int)
	for _, c := range s.Cases {
		if c.Value != nil {
			if _, err := a.checkExpr(c.Value); err != nil {
				return err
			}
			v, ok := a.constValue(c.Value)
			if !ok {
				return errorf(TypeMismatch, c.Line, "case label must be an integer constant expression")
			}
			if prev, dup := seen[v]; dup {
				return errorf(DuplicateSymbol, c.Line, "duplicate case value %d (previous at line %d)", v, prev)
			}
			seen[v] = c.Line
		}
		a.switches++
		err := a.checkStmts(c.Body)
		a.switches--
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) checkReturn(s *ReturnStmt) error {
	if a.fn == nil {
		return errorf(InternalInconsistency, s.Line, "return outside a function")
	}
	if a.fn.Ret.Kind == TypeVoid {
		if s.Result != nil {
			return errorf(TypeMismatch, s.Line, "void function %q cannot return a value", a.fn.Name)
		}
		return nil
	}
	if s.Result == nil {
		return errorf(TypeMismatch, s.Line, "non-void function %q must return a value", a.fn.Name)
	}
	t, err := a.checkExpr(s.Result)
	if err != nil {
		return err
	}
	if !a.assignOK(a.fn.Ret, t, s.Result) {
		return errorf(TypeMismatch, s.Line, "cannot return %s from function %q returning %s", t, a.fn.Name, a.fn.Ret)
	}
	return nil
}

// terminates reports whether every path through the statement list ends in
// a return. It is deliberately syntactic: loops and switches do not count
// even when they always return.
func terminates(list []Stmt) bool {
	for _, s := range list {
		switch s := s.(type) {
		case *ReturnStmt:
			return true
		case *BlockStmt:
			if terminates(s.List) {
				return true
			}
		case *IfStmt:
			if s.Else == nil {
				continue
			}
			var elseOK bool
			switch e := s.Else.(type) {
			case *BlockStmt:
				elseOK = terminates(e.List)
			case *IfStmt:
				elseOK = terminates([]Stmt{e})
			}
			if terminates(s.Then.List) && elseOK {
				return true
			}
		case *WhileStmt, *DoWhileStmt, *ForStmt:
			if loopsForever(s) {
				return true
			}
		}
	}
	return false
}

// loopsForever reports whether s is a loop control cannot leave forward:
// its condition is a constant nonzero (or absent) and no break binds to
// it. A return inside still leaves the function, which is exactly what
// the missing-return check wants.
func loopsForever(s Stmt) bool {
	var cond Expr
	var body *BlockStmt
	switch s := s.(type) {
	case *WhileStmt:
		cond, body = s.Cond, s.Body
	case *DoWhileStmt:
		cond, body = s.Cond, s.Body
	case *ForStmt:
		cond, body = s.Cond, s.Body
	default:
		return false
	}
	if cond != nil {
		lit, ok := cond.(*IntLit)
		if !ok || lit.Value == 0 {
			return false
		}
	}
	return !breaksOut(body.List)
}

// breaksOut reports whether a break at this nesting level would leave the
// list. Nested loops and switches consume their own breaks.
func breaksOut(list []Stmt) bool {
	for _, s := range list {
		switch s := s.(type) {
		case *BreakStmt:
			return true
		case *BlockStmt:
			if breaksOut(s.List) {
				return true
			}
		case *IfStmt:
			if breaksOut(s.Then.List) {
				return true
			}
			if s.Else != nil && breaksOut([]Stmt{s.Else}) {
				return true
			}
		}
	}
	return false
}

//  Expressions

// decay turns an array type into a pointer to its element type, the way C
// does in every value context.
func decay(t *Type) *Type {
	if t != nil && t.Kind == TypeArray {
		return pointerTo(t.Elem)
	}
	return t
}

// assignOK reports whether value (of type src) may be stored into dst. A
// literal zero converts to any pointer type.
func (a *analyzer) assignOK(dst, src *Type, value Expr) bool {
	if assignable(dst, src) {
		return true
	}
	if dst.Kind == TypePointer && src.Kind == TypePointer {
		// void* converts freely in either direction.
		if dst.Elem.Kind == TypeVoid || src.Elem.Kind == TypeVoid {
			return true
		}
	}
	if dst.Kind == TypePointer && isZeroLit(value) {
		return true
	}
	return false
}

func isZeroLit(e Expr) bool {
	lit, ok := e.(*IntLit)
	return ok && lit.Value == 0
}

// isLvalue reports whether e designates a storage location.
func isLvalue(e Expr) bool {
	switch e := e.(type) {
	case *Ident:
		return e.Sym == nil || e.Sym.Kind == SymGlobal || e.Sym.Kind == SymLocal || e.Sym.Kind == SymParam
	case *IndexExpr, *MemberExpr:
		return true
	case *UnaryExpr:
		return e.Op == STAR && !e.Post
	}
	return false
}

// checkExpr types e, resolving identifiers along the way, and returns the
// resolved type. Every node's T field is set before returning.
func (a *analyzer) checkExpr(e Expr) (*Type, error) {
	switch e := e.(type) {
	case *IntLit:
		e.T = intType
		return e.T, nil

	case *CharLit:
		// Character constants have type int, as in C.
		e.T = intType
		return e.T, nil

	case *StrLit:
		e.T = pointerTo(charType)
		return e.T, nil

	case *Ident:
		sym := a.scope.Lookup(e.Name)
		if sym == nil {
			return nil, errorf(UnresolvedSymbol, e.Line, "use of undeclared identifier %q", e.Name)
		}
		if sym.Kind == SymFunc {
			return nil, errorf(TypeMismatch, e.Line, "function %q used as a value", e.Name)
		}
		e.Sym = sym
		e.T = sym.Type
		return e.T, nil

	case *BinaryExpr:
		return a.checkBinary(e)

	case *LogicalExpr:
		if err := a.checkCond(e.Left); err != nil {
			return nil, err
		}
		if err := a.checkCond(e.Right); err != nil {
			return nil, err
		}
		e.T = intType
		return e.T, nil

	case *UnaryExpr:
		return a.checkUnary(e)

	case *AssignExpr:
		return a.checkAssign(e)

	case *CallExpr:
		return a.checkCall(e)

	case *IndexExpr:
		bt, err := a.checkExpr(e.Base)
		if err != nil {
			return nil, err
		}
		it, err := a.checkExpr(e.Index)
		if err != nil {
			return nil, err
		}
		bt = decay(bt)
		if bt.Kind != TypePointer || bt.Elem.Kind == TypeVoid {
			return nil, errorf(TypeMismatch, e.Line, "cannot index a value of type %s", e.Base.Type())
		}
		if !it.IsInteger() {
			return nil, errorf(TypeMismatch, e.Line, "array index has non-integer type %s", it)
		}
		e.T = bt.Elem
		return e.T, nil

	case *MemberExpr:
		return a.checkMember(e)

	case *TernaryExpr:
		if err := a.checkCond(e.Cond); err != nil {
			return nil, err
		}
		tt, err := a.checkExpr(e.Then)
		if err != nil {
			return nil, err
		}
		et, err := a.checkExpr(e.Else)
		if err != nil {
			return nil, err
		}
		if tt.IsInteger() && et.IsInteger() {
			e.T = intType
		} else if typesEqual(decay(tt), decay(et)) {
			e.T = decay(tt)
		} else {
			return nil, errorf(TypeMismatch, e.Line, "mismatched ternary arms: %s and %s", tt, et)
		}
		return e.T, nil

	case *CastExpr:
		it, err := a.checkExpr(e.Inner)
		if err != nil {
			return nil, err
		}
		if err := a.validateType(e.To, e.Line); err != nil {
			return nil, err
		}
		if !e.To.IsScalar() || !decay(it).IsScalar() {
			return nil, errorf(TypeMismatch, e.Line, "cannot cast %s to %s", it, e.To)
		}
		e.T = e.To
		return e.T, nil

	case *SizeofExpr:
		if e.TypeArg != nil {
			if err := a.validateType(e.TypeArg, e.Line); err != nil {
				return nil, err
			}
			if _, err := a.table.SizeOf(e.TypeArg); err != nil {
				return nil, errorf(TypeMismatch, e.Line, "sizeof: %v", err)
			}
		} else {
			t, err := a.checkExpr(e.ExprArg)
			if err != nil {
				return nil, err
			}
			if _, err := a.table.SizeOf(t); err != nil {
				return nil, errorf(TypeMismatch, e.Line, "sizeof: %v", err)
			}
		}
		e.T = intType
		return e.T, nil
	}
	return nil, errorf(InternalInconsistency, e.Pos(), "unhandled expression %T", e)
}

func (a *analyzer) checkBinary(e *BinaryExpr) (*Type, error) {
	lt, err := a.checkExpr(e.Left)
	if err != nil {
		return nil, err
	}
	rt, err := a.checkExpr(e.Right)
	if err != nil {
		return nil, err
	}
	lt, rt = decay(lt), decay(rt)

	switch e.Op {
	case PLUS, MINUS:
		if lt.IsInteger() && rt.IsInteger() {
			e.T = intType
			return e.T, nil
		}
		if lt.Kind == TypePointer && rt.IsInteger() {
			e.T = lt
			return e.T, nil
		}
		if e.Op == PLUS && lt.IsInteger() && rt.Kind == TypePointer {
			e.T = rt
			return e.T, nil
		}
		return nil, errorf(TypeMismatch, e.Line, "invalid operands to %s: %s and %s", opText[e.Op], lt, rt)

	case STAR, SLASH, PERCENT, AND, PIPE, CARET, SHL_OP, SHR_OP:
		if lt.IsInteger() && rt.IsInteger() {
			e.T = intType
			return e.T, nil
		}
		return nil, errorf(TypeMismatch, e.Line, "invalid operands to %s: %s and %s", opText[e.Op], lt, rt)

	case EQUALS, NOT_EQ, LESS, GREATER, LESS_EQ, GREATER_EQ:
		ok := (lt.IsInteger() && rt.IsInteger()) ||
			(lt.Kind == TypePointer && rt.Kind == TypePointer && typesEqual(lt, rt)) ||
			(lt.Kind == TypePointer && rt.IsInteger()) ||
			(lt.IsInteger() && rt.Kind == TypePointer)
		if !ok {
			return nil, errorf(TypeMismatch, e.Line, "cannot compare %s with %s", lt, rt)
		}
		e.T = intType
		return e.T, nil
	}
	return nil, errorf(InternalInconsistency, e.Line, "unhandled binary operator %s", e.Op)
}

func (a *analyzer) checkUnary(e *UnaryExpr) (*Type, error) {
	t, err := a.checkExpr(e.Operand)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case MINUS, TILDE:
		if !t.IsInteger() {
			return nil, errorf(TypeMismatch, e.Line, "invalid operand to %s: %s", opText[e.Op], t)
		}
		e.T = intType
		return e.T, nil

	case NOT:
		if !decay(t).IsScalar() {
			return nil, errorf(TypeMismatch, e.Line, "invalid operand to !: %s", t)
		}
		e.T = intType
		return e.T, nil

	case AND:
		if !isLvalue(e.Operand) {
			return nil, errorf(TypeMismatch, e.Line, "cannot take the address of this expression")
		}
		if t.Kind == TypeArray {
			// &arr is treated as a pointer to the first element.
			e.T = pointerTo(t.Elem)
		} else {
			e.T = pointerTo(t)
		}
		return e.T, nil

	case STAR:
		dt := decay(t)
		if dt.Kind != TypePointer || dt.Elem.Kind == TypeVoid {
			return nil, errorf(TypeMismatch, e.Line, "cannot dereference a value of type %s", t)
		}
		e.T = dt.Elem
		return e.T, nil

	case PLUS_PLUS, MINUS_MINUS:
		if !isLvalue(e.Operand) {
			return nil, errorf(TypeMismatch, e.Line, "%s needs a modifiable lvalue", opText[e.Op])
		}
		if !t.IsInteger() && t.Kind != TypePointer {
			return nil, errorf(TypeMismatch, e.Line, "invalid operand to %s: %s", opText[e.Op], t)
		}
		e.T = t
		return e.T, nil
	}
	return nil, errorf(InternalInconsistency, e.Line, "unhandled unary operator %s", e.Op)
}

func (a *analyzer) checkAssign(e *AssignExpr) (*Type, error) {
	tt, err := a.checkExpr(e.Target)
	if err != nil {
		return nil, err
	}
	if !isLvalue(e.Target) {
		return nil, errorf(TypeMismatch, e.Line, "expression is not assignable")
	}
	if tt.Kind == TypeArray {
		return nil, errorf(TypeMismatch, e.Line, "cannot assign to an array")
	}
	vt, err := a.checkExpr(e.Value)
	if err != nil {
		return nil, err
	}
	if !a.assignOK(tt, decay(vt), e.Value) {
		return nil, errorf(TypeMismatch, e.Line, "cannot assign %s to %s", vt, tt)
	}
	e.T = tt
	return e.T, nil
}

func (a *analyzer) checkCall(e *CallExpr) (*Type, error) {
	sym := a.scope.Lookup(e.Name)
	if sym == nil {
		return nil, errorf(UnresolvedSymbol, e.Line, "call to undeclared function %q", e.Name)
	}
	if sym.Kind != SymFunc {
		return nil, errorf(TypeMismatch, e.Line, "%q is not a function", e.Name)
	}
	fn := sym.Fn

	if fn.Variadic {
		if len(e.Args) < len(fn.Params) {
			return nil, errorf(TypeMismatch, e.Line,
				"too few arguments to %q (want at least %d, got %d)", e.Name, len(fn.Params), len(e.Args))
		}
	} else if len(e.Args) != len(fn.Params) {
		return nil, errorf(TypeMismatch, e.Line,
			"wrong number of arguments to %q (want %d, got %d)", e.Name, len(fn.Params), len(e.Args))
	}

	for i, arg := range e.Args {
		at, err := a.checkExpr(arg)
		if err != nil {
			return nil, err
		}
		at = decay(at)
		if i < len(fn.Params) {
			if !a.assignOK(fn.Params[i].Type, at, arg) {
				return nil, errorf(TypeMismatch, arg.Pos(),
					"argument %d of %q: cannot pass %s as %s", i+1, e.Name, at, fn.Params[i].Type)
			}
		} else if !at.IsScalar() {
			return nil, errorf(TypeMismatch, arg.Pos(),
				"argument %d of %q: cannot pass %s through \"...\"", i+1, e.Name, at)
		}
	}
	e.T = fn.Ret
	return e.T, nil
}

func (a *analyzer) checkMember(e *MemberExpr) (*Type, error) {
	bt, err := a.checkExpr(e.Base)
	if err != nil {
		return nil, err
	}

	var structT *Type
	if e.Arrow {
		dt := decay(bt)
		if dt.Kind != TypePointer || dt.Elem.Kind != TypeStruct {
			return nil, errorf(TypeMismatch, e.Line, "-> needs a pointer to struct, got %s", bt)
		}
		structT = dt.Elem
	} else {
		if bt.Kind != TypeStruct {
			return nil, errorf(TypeMismatch, e.Line, ". needs a struct, got %s", bt)
		}
		structT = bt
	}

	def, ok := a.table.Struct(structT.Name)
	if !ok {
		return nil, errorf(UnresolvedSymbol, e.Line, "struct %q is not defined", structT.Name)
	}
	f := def.Field(e.Field)
	if f == nil {
		return nil, errorf(UnresolvedSymbol, e.Line, "no field %q in struct %q", e.Field, structT.Name)
	}
	e.T = f.Type
	return e.T, nil
}

// constValue evaluates a checked expression that must be a compile-time
// integer constant (case labels). Enum constants participate.
func (a *analyzer) constValue(e Expr) (int32, bool) {
	switch e := e.(type) {
	case *IntLit:
		return e.Value, true
	case *CharLit:
		return int32(e.Value), true
	case *Ident:
		if e.Sym != nil && e.Sym.Kind == SymEnumConst {
			return e.Sym.Const, true
		}
	case *UnaryExpr:
		if e.Post {
			return 0, false
		}
		v, ok := a.constValue(e.Operand)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case MINUS:
			return -v, true
		case TILDE:
			return ^v, true
		case NOT:
			if v == 0 {
				return 1, true
			}
			return 0, true
		}
	case *BinaryExpr:
		l, okL := a.constValue(e.Left)
		r, okR := a.constValue(e.Right)
		if !okL || !okR {
			return 0, false
		}
		return evalBinary(e.Op, l, r)
	}
	return 0, false
}
