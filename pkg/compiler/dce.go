package compiler

// Dead code elimination removes three things: statements that follow an
// unconditional return, break, or continue in the same block; branches
// whose condition folded to a constant; and locals that are never read.
// Eliminating a write to a dead local keeps the right-hand side alive
// when it has side effects, so calls are never dropped.
//
// Unused-local removal is name based and therefore only touches names
// declared exactly once in their function; shadowed names stay put.

// EliminateDeadCode returns a copy of prog with dead code removed. It
// iterates to a fixed point, since removing one dead assignment can make
// another local dead, then drops functions nothing reaches.
func EliminateDeadCode(prog *Program) *Program {
	out := prog.Clone()
	for i := 0; i < 10; i++ {
		d := &dcePass{}
		for _, decl := range out.Decls {
			if fn, ok := decl.(*FuncDecl); ok && fn.Body != nil {
				d.function(fn)
			}
		}
		if !d.changed {
			break
		}
	}
	return eliminateDeadFunctions(out)
}

type dcePass struct {
	changed bool
	// deadNames are the function's removable locals, rebuilt per function.
	deadNames map[string]bool
}

func (d *dcePass) function(fn *FuncDecl) {
	d.deadNames = deadLocals(fn)
	fn.Body.List = d.stmts(fn.Body.List)
}

// deadLocals finds locals that can be removed: declared exactly once in
// the function and never read anywhere in it.
func deadLocals(fn *FuncDecl) map[string]bool {
	declared := make(map[string]int)
	reads := make(map[string]int)
	countDecls(fn.Body.List, declared)
	countReads(fn.Body.List, reads)

	dead := make(map[string]bool)
	for name, n := range declared {
		if n == 1 && reads[name] == 0 {
			dead[name] = true
		}
	}
	return dead
}

func countDecls(list []Stmt, declared map[string]int) {
	for _, s := range list {
		switch s := s.(type) {
		case *VarDecl:
			declared[s.Name]++
		case *BlockStmt:
			countDecls(s.List, declared)
		case *IfStmt:
			countDecls(s.Then.List, declared)
			if s.Else != nil {
				countDecls([]Stmt{s.Else}, declared)
			}
		case *WhileStmt:
			countDecls(s.Body.List, declared)
		case *DoWhileStmt:
			countDecls(s.Body.List, declared)
		case *ForStmt:
			if s.Init != nil {
				countDecls([]Stmt{s.Init}, declared)
			}
			countDecls(s.Body.List, declared)
		case *SwitchStmt:
			for _, c := range s.Cases {
				countDecls(c.Body, declared)
			}
		}
	}
}

func countReads(list []Stmt, reads map[string]int) {
	for _, s := range list {
		switch s := s.(type) {
		case *ExprStmt:
			exprReads(s.E, reads)
		case *VarDecl:
			if s.Init != nil {
				exprReads(s.Init, reads)
			}
		case *BlockStmt:
			countReads(s.List, reads)
		case *IfStmt:
			exprReads(s.Cond, reads)
			countReads(s.Then.List, reads)
			if s.Else != nil {
				countReads([]Stmt{s.Else}, reads)
			}
		case *WhileStmt:
			exprReads(s.Cond, reads)
			countReads(s.Body.List, reads)
		case *DoWhileStmt:
			countReads(s.Body.List, reads)
			exprReads(s.Cond, reads)
		case *ForStmt:
			if s.Init != nil {
				countReads([]Stmt{s.Init}, reads)
			}
			if s.Cond != nil {
				exprReads(s.Cond, reads)
			}
			if s.Post != nil {
				exprReads(s.Post, reads)
			}
			countReads(s.Body.List, reads)
		case *SwitchStmt:
			exprReads(s.Tag, reads)
			for _, c := range s.Cases {
				if c.Value != nil {
					exprReads(c.Value, reads)
				}
				countReads(c.Body, reads)
			}
		case *ReturnStmt:
			if s.Result != nil {
				exprReads(s.Result, reads)
			}
		}
	}
}

// exprReads counts identifier reads in e. The target of a plain
// assignment is a write, not a read; everything else that mentions a name
// counts, including address-taking and increments, which keeps such
// variables alive.
func exprReads(e Expr, reads map[string]int) {
	switch e := e.(type) {
	case *Ident:
		reads[e.Name]++
	case *BinaryExpr:
		exprReads(e.Left, reads)
		exprReads(e.Right, reads)
	case *LogicalExpr:
		exprReads(e.Left, reads)
		exprReads(e.Right, reads)
	case *UnaryExpr:
		exprReads(e.Operand, reads)
	case *AssignExpr:
		if _, plain := e.Target.(*Ident); !plain {
			exprReads(e.Target, reads)
		}
		exprReads(e.Value, reads)
	case *CallExpr:
		for _, a := range e.Args {
			exprReads(a, reads)
		}
	case *IndexExpr:
		exprReads(e.Base, reads)
		exprReads(e.Index, reads)
	case *MemberExpr:
		exprReads(e.Base, reads)
	case *TernaryExpr:
		exprReads(e.Cond, reads)
		exprReads(e.Then, reads)
		exprReads(e.Else, reads)
	case *CastExpr:
		exprReads(e.Inner, reads)
	case *SizeofExpr:
		if e.ExprArg != nil {
			exprReads(e.ExprArg, reads)
		}
	}
}

// hasSideEffects reports whether evaluating e does anything observable.
func hasSideEffects(e Expr) bool {
	switch e := e.(type) {
	case *CallExpr, *AssignExpr:
		return true
	case *UnaryExpr:
		if e.Op == PLUS_PLUS || e.Op == MINUS_MINUS {
			return true
		}
		return hasSideEffects(e.Operand)
	case *BinaryExpr:
		return hasSideEffects(e.Left) || hasSideEffects(e.Right)
	case *LogicalExpr:
		return hasSideEffects(e.Left) || hasSideEffects(e.Right)
	case *IndexExpr:
		return hasSideEffects(e.Base) || hasSideEffects(e.Index)
	case *MemberExpr:
		return hasSideEffects(e.Base)
	case *TernaryExpr:
		return hasSideEffects(e.Cond) || hasSideEffects(e.Then) || hasSideEffects(e.Else)
	case *CastExpr:
		return hasSideEffects(e.Inner)
	}
	return false
}

// isTerminator reports whether s unconditionally leaves the current block.
func isTerminator(s Stmt) bool {
	switch s.(type) {
	case *ReturnStmt, *BreakStmt, *ContinueStmt:
		return true
	}
	return false
}

// stmts rewrites a statement list: prune dead branches, drop dead locals,
// and truncate everything after an unconditional terminator.
func (d *dcePass) stmts(list []Stmt) []Stmt {
	var out []Stmt
	for _, s := range list {
		rewritten, keep := d.stmt(s)
		if !keep {
			d.changed = true
			continue
		}
		out = append(out, rewritten...)
		if len(out) > 0 && isTerminator(out[len(out)-1]) {
			break
		}
	}
	if len(out) < len(list) {
		d.changed = true
	}
	return out
}

// stmt rewrites one statement. It may expand to several statements (a
// pruned if becomes its taken branch) or to none.
func (d *dcePass) stmt(s Stmt) ([]Stmt, bool) {
	switch s := s.(type) {
	case *VarDecl:
		if d.deadNames[s.Name] {
			if s.Init != nil && hasSideEffects(s.Init) {
				return []Stmt{&ExprStmt{E: s.Init, Line: s.Line}}, true
			}
			return nil, false
		}
		return []Stmt{s}, true

	case *ExprStmt:
		if assign, ok := s.E.(*AssignExpr); ok {
			if target, ok := assign.Target.(*Ident); ok && d.deadNames[target.Name] {
				if hasSideEffects(assign.Value) {
					return []Stmt{&ExprStmt{E: assign.Value, Line: s.Line}}, true
				}
				return nil, false
			}
		}
		if !hasSideEffects(s.E) {
			return nil, false
		}
		return []Stmt{s}, true

	case *BlockStmt:
		s.List = d.stmts(s.List)
		if len(s.List) == 0 {
			return nil, false
		}
		return []Stmt{s}, true

	case *IfStmt:
		if v, ok := constOf(s.Cond); ok {
			d.changed = true
			if v != 0 {
				s.Then.List = d.stmts(s.Then.List)
				return []Stmt{s.Then}, len(s.Then.List) > 0
			}
			if s.Else == nil {
				return nil, false
			}
			return d.stmt(s.Else)
		}
		s.Then.List = d.stmts(s.Then.List)
		if s.Else != nil {
			rewritten, keep := d.stmt(s.Else)
			if !keep {
				s.Else = nil
			} else if len(rewritten) == 1 {
				s.Else = rewritten[0]
			} else {
				s.Else = &BlockStmt{List: rewritten, Line: s.Else.Pos()}
			}
		}
		return []Stmt{s}, true

	case *WhileStmt:
		if v, ok := constOf(s.Cond); ok && v == 0 {
			return nil, false
		}
		s.Body.List = d.stmts(s.Body.List)
		return []Stmt{s}, true

	case *DoWhileStmt:
		// The body always runs once, so a do-while is never pruned.
		s.Body.List = d.stmts(s.Body.List)
		return []Stmt{s}, true

	case *ForStmt:
		if s.Cond != nil {
			if v, ok := constOf(s.Cond); ok && v == 0 {
				d.changed = true
				if s.Init == nil {
					return nil, false
				}
				// The init may declare or assign; keep it in its own scope.
				return d.stmt(&BlockStmt{List: []Stmt{s.Init}, Line: s.Line})
			}
		}
		s.Body.List = d.stmts(s.Body.List)
		return []Stmt{s}, true

	case *SwitchStmt:
		for _, c := range s.Cases {
			c.Body = d.stmts(c.Body)
		}
		return []Stmt{s}, true

	default:
		return []Stmt{s}, true
	}
}
