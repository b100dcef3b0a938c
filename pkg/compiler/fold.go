package compiler

// Constant folding evaluates subexpressions whose operands are known at
// compile time, using the target's 32-bit two's-complement arithmetic so
// folded results match what the generated code would have computed.
// Division and modulo by zero are never folded; that behavior belongs to
// the runtime, not the compiler.

// b2i is the C boolean convention.
func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// evalBinary computes l op r with the target's 32-bit semantics. Shift
// counts are masked to the low five bits, matching x86 and the evaluator;
// >> on a negative value is an arithmetic shift. The second result is
// false when the operation cannot be evaluated (division by zero).
func evalBinary(op TokenType, l, r int32) (int32, bool) {
	switch op {
	case PLUS:
		return l + r, true
	case MINUS:
		return l - r, true
	case STAR:
		return l * r, true
	case SLASH:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case PERCENT:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case AND:
		return l & r, true
	case PIPE:
		return l | r, true
	case CARET:
		return l ^ r, true
	case SHL_OP:
		return l << (uint32(r) & 31), true
	case SHR_OP:
		return l >> (uint32(r) & 31), true
	case EQUALS:
		return b2i(l == r), true
	case NOT_EQ:
		return b2i(l != r), true
	case LESS:
		return b2i(l < r), true
	case GREATER:
		return b2i(l > r), true
	case LESS_EQ:
		return b2i(l <= r), true
	case GREATER_EQ:
		return b2i(l >= r), true
	}
	return 0, false
}

// evalUnary computes the prefix operators that act on values.
// constExprValue evaluates an integer constant expression after semantic
// analysis, when enum identifiers carry their symbol. It accepts the
// shapes the analyzer accepts for case labels and global initializers.
func constExprValue(e Expr) (int32, bool) {
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
		if v, ok := constExprValue(e.Operand); ok {
			return evalUnary(e.Op, v)
		}
	case *BinaryExpr:
		l, okL := constExprValue(e.Left)
		r, okR := constExprValue(e.Right)
		if okL && okR {
			return evalBinary(e.Op, l, r)
		}
	}
	return 0, false
}

func evalUnary(op TokenType, v int32) (int32, bool) {
	switch op {
	case MINUS:
		return -v, true
	case TILDE:
		return ^v, true
	case NOT:
		return b2i(v == 0), true
	}
	return 0, false
}

// Fold returns a copy of prog with constant subexpressions collapsed to
// literals. The symbol table supplies struct sizes for sizeof.
func Fold(prog *Program, table *SymbolTable) *Program {
	out := prog.Clone()
	f := &folder{table: table}
	for _, d := range out.Decls {
		switch d := d.(type) {
		case *FuncDecl:
			if d.Body != nil {
				f.foldBlock(d.Body)
			}
		case *VarDecl:
			if d.Init != nil {
				d.Init = f.foldExpr(d.Init)
			}
		}
	}
	return out
}

type folder struct {
	table *SymbolTable
}

// constOf extracts the compile-time value of an already folded expression.
// Enum constants count: the analyzer resolved them, so folding turns them
// into plain literals wherever they appear.
func constOf(e Expr) (int32, bool) {
	switch e := e.(type) {
	case *IntLit:
		return e.Value, true
	case *CharLit:
		return int32(e.Value), true
	case *Ident:
		if e.Sym != nil && e.Sym.Kind == SymEnumConst {
			return e.Sym.Const, true
		}
	}
	return 0, false
}

func (f *folder) foldBlock(b *BlockStmt) {
	for _, s := range b.List {
		f.foldStmt(s)
	}
}

func (f *folder) foldStmt(s Stmt) {
	switch s := s.(type) {
	case *ExprStmt:
		s.E = f.foldExpr(s.E)
	case *VarDecl:
		if s.Init != nil {
			s.Init = f.foldExpr(s.Init)
		}
	case *BlockStmt:
		f.foldBlock(s)
	case *IfStmt:
		s.Cond = f.foldExpr(s.Cond)
		f.foldBlock(s.Then)
		if s.Else != nil {
			f.foldStmt(s.Else)
		}
	case *WhileStmt:
		s.Cond = f.foldExpr(s.Cond)
		f.foldBlock(s.Body)
	case *DoWhileStmt:
		f.foldBlock(s.Body)
		s.Cond = f.foldExpr(s.Cond)
	case *ForStmt:
		if s.Init != nil {
			f.foldStmt(s.Init)
		}
		if s.Cond != nil {
			s.Cond = f.foldExpr(s.Cond)
		}
		if s.Post != nil {
			s.Post = f.foldExpr(s.Post)
		}
		f.foldBlock(s.Body)
	case *SwitchStmt:
		s.Tag = f.foldExpr(s.Tag)
		for _, c := range s.Cases {
			// Case labels stay as written; only bodies fold.
			for _, cs := range c.Body {
				f.foldStmt(cs)
			}
		}
	case *ReturnStmt:
		if s.Result != nil {
			s.Result = f.foldExpr(s.Result)
		}
	}
}

func (f *folder) foldExpr(e Expr) Expr {
	switch e := e.(type) {
	case *Ident:
		if v, ok := constOf(e); ok {
			return &IntLit{Value: v, Line: e.Line, T: intType}
		}
		return e

	case *BinaryExpr:
		e.Left = f.foldExpr(e.Left)
		e.Right = f.foldExpr(e.Right)
		l, okL := constOf(e.Left)
		r, okR := constOf(e.Right)
		if okL && okR {
			if v, ok := evalBinary(e.Op, l, r); ok {
				return &IntLit{Value: v, Line: e.Line, T: intType}
			}
		}
		return e

	case *LogicalExpr:
		e.Left = f.foldExpr(e.Left)
		e.Right = f.foldExpr(e.Right)
		l, okL := constOf(e.Left)
		if okL {
			// A deciding left side folds the whole expression and drops
			// the never-evaluated right side, exactly as at runtime.
			if e.Op == AND_LOGICAL && l == 0 {
				return &IntLit{Value: 0, Line: e.Line, T: intType}
			}
			if e.Op == OR_LOGICAL && l != 0 {
				return &IntLit{Value: 1, Line: e.Line, T: intType}
			}
			if r, okR := constOf(e.Right); okR {
				return &IntLit{Value: b2i(r != 0), Line: e.Line, T: intType}
			}
		}
		return e

	case *UnaryExpr:
		if e.Op == PLUS_PLUS || e.Op == MINUS_MINUS || e.Op == AND || e.Op == STAR {
			e.Operand = f.foldExpr(e.Operand)
			return e
		}
		e.Operand = f.foldExpr(e.Operand)
		if v, ok := constOf(e.Operand); ok {
			if folded, ok := evalUnary(e.Op, v); ok {
				return &IntLit{Value: folded, Line: e.Line, T: intType}
			}
		}
		return e

	case *AssignExpr:
		e.Target = f.foldExpr(e.Target)
		e.Value = f.foldExpr(e.Value)
		return e

	case *CallExpr:
		for i, arg := range e.Args {
			e.Args[i] = f.foldExpr(arg)
		}
		return e

	case *IndexExpr:
		e.Base = f.foldExpr(e.Base)
		e.Index = f.foldExpr(e.Index)
		return e

	case *MemberExpr:
		e.Base = f.foldExpr(e.Base)
		return e

	case *TernaryExpr:
		e.Cond = f.foldExpr(e.Cond)
		e.Then = f.foldExpr(e.Then)
		e.Else = f.foldExpr(e.Else)
		if v, ok := constOf(e.Cond); ok {
			if v != 0 {
				return e.Then
			}
			return e.Else
		}
		return e

	case *CastExpr:
		e.Inner = f.foldExpr(e.Inner)
		if v, ok := constOf(e.Inner); ok && e.To.IsInteger() {
			if e.To.Kind == TypeChar {
				v = int32(uint8(v))
			}
			return &IntLit{Value: v, Line: e.Line, T: intType}
		}
		return e

	case *SizeofExpr:
		t := e.TypeArg
		if t == nil && e.ExprArg != nil {
			t = e.ExprArg.Type()
		}
		if t != nil {
			if size, err := f.table.SizeOf(t); err == nil {
				return &IntLit{Value: size, Line: e.Line, T: intType}
			}
		}
		return e
	}
	return e
}
