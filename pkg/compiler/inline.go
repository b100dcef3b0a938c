package compiler

import "fmt"

// Function inlining replaces a call with the callee's body. A function is
// an inline candidate when it is defined in this translation unit, not
// recursive (not even through a cycle), small, and returns only as the
// last statement of its body. Calls are expanded only in statement
// position: an expression statement, a local initializer, a plain
// assignment, or a return. Calls nested inside larger expressions stay.

// DefaultInlineLimit is the largest body, in statements, that Inline
// will expand.
const DefaultInlineLimit = 8

// Inline returns a copy of prog with eligible calls expanded. limit
// bounds candidate body size; values below one fall back to
// DefaultInlineLimit.
func Inline(prog *Program, limit int) *Program {
	if limit < 1 {
		limit = DefaultInlineLimit
	}
	out := prog.Clone()
	in := &inliner{
		candidates: inlineCandidates(out, limit, fileScopeNames(out)),
	}
	for _, decl := range out.Decls {
		if fn, ok := decl.(*FuncDecl); ok && fn.Body != nil {
			fn.Body.List = in.stmts(fn.Body.List)
		}
	}
	return out
}

// fileScopeNames collects every name visible at file scope.
func fileScopeNames(prog *Program) map[string]bool {
	out := make(map[string]bool)
	for _, decl := range prog.Decls {
		switch d := decl.(type) {
		case *VarDecl:
			out[d.Name] = true
		case *FuncDecl:
			out[d.Name] = true
		case *EnumDecl:
			for _, m := range d.Members {
				out[m.Name] = true
			}
		}
	}
	return out
}

// inlineCandidates picks the functions whose calls may be expanded.
func inlineCandidates(prog *Program, limit int, globals map[string]bool) map[string]*FuncDecl {
	defined := make(map[string]*FuncDecl)
	for _, fn := range prog.Functions() {
		if fn.Body != nil {
			defined[fn.Name] = fn
		}
	}

	callees := make(map[string]map[string]bool)
	for name, fn := range defined {
		set := make(map[string]bool)
		calleeNames(fn.Body.List, set)
		callees[name] = set
	}

	out := make(map[string]*FuncDecl)
	for name, fn := range defined {
		if name == "main" {
			continue
		}
		if fn.Variadic {
			continue
		}
		if callsReach(callees, name, name) {
			continue
		}
		if stmtCount(fn.Body.List) > limit {
			continue
		}
		if !tailReturnOnly(fn.Body.List) {
			continue
		}
		// Renaming the body substitutes every use of a declared name, so
		// a local that shadows a file-scope name would capture references
		// to the outer one.
		if shadowsAny(fn, globals) {
			continue
		}
		out[name] = fn
	}
	return out
}

func shadowsAny(fn *FuncDecl, globals map[string]bool) bool {
	for name := range localNames(fn.Body.List) {
		if globals[name] {
			return true
		}
	}
	return false
}

// callsReach reports whether target is reachable from from through the
// call graph. callsReach(g, f, f) detects recursion.
func callsReach(callees map[string]map[string]bool, from, target string) bool {
	seen := make(map[string]bool)
	stack := []string{}
	for c := range callees[from] {
		stack = append(stack, c)
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		for c := range callees[cur] {
			stack = append(stack, c)
		}
	}
	return false
}

func calleeNames(list []Stmt, set map[string]bool) {
	for _, s := range list {
		walkStmtExprs(s, func(e Expr) {
			if call, ok := e.(*CallExpr); ok {
				set[call.Name] = true
			}
		})
		switch s := s.(type) {
		case *BlockStmt:
			calleeNames(s.List, set)
		case *IfStmt:
			calleeNames(s.Then.List, set)
			if s.Else != nil {
				calleeNames([]Stmt{s.Else}, set)
			}
		case *WhileStmt:
			calleeNames(s.Body.List, set)
		case *DoWhileStmt:
			calleeNames(s.Body.List, set)
		case *ForStmt:
			if s.Init != nil {
				calleeNames([]Stmt{s.Init}, set)
			}
			calleeNames(s.Body.List, set)
		case *SwitchStmt:
			for _, c := range s.Cases {
				calleeNames(c.Body, set)
			}
		}
	}
}

// walkStmtExprs visits every expression directly attached to s, without
// descending into nested statements.
func walkStmtExprs(s Stmt, visit func(Expr)) {
	switch s := s.(type) {
	case *ExprStmt:
		walkExpr(s.E, visit)
	case *VarDecl:
		if s.Init != nil {
			walkExpr(s.Init, visit)
		}
	case *IfStmt:
		walkExpr(s.Cond, visit)
	case *WhileStmt:
		walkExpr(s.Cond, visit)
	case *DoWhileStmt:
		walkExpr(s.Cond, visit)
	case *ForStmt:
		if s.Cond != nil {
			walkExpr(s.Cond, visit)
		}
		if s.Post != nil {
			walkExpr(s.Post, visit)
		}
	case *SwitchStmt:
		walkExpr(s.Tag, visit)
		for _, c := range s.Cases {
			if c.Value != nil {
				walkExpr(c.Value, visit)
			}
		}
	case *ReturnStmt:
		if s.Result != nil {
			walkExpr(s.Result, visit)
		}
	}
}

// walkExpr visits e and all of its subexpressions.
func walkExpr(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch e := e.(type) {
	case *BinaryExpr:
		walkExpr(e.Left, visit)
		walkExpr(e.Right, visit)
	case *LogicalExpr:
		walkExpr(e.Left, visit)
		walkExpr(e.Right, visit)
	case *UnaryExpr:
		walkExpr(e.Operand, visit)
	case *AssignExpr:
		walkExpr(e.Target, visit)
		walkExpr(e.Value, visit)
	case *CallExpr:
		for _, a := range e.Args {
			walkExpr(a, visit)
		}
	case *IndexExpr:
		walkExpr(e.Base, visit)
		walkExpr(e.Index, visit)
	case *MemberExpr:
		walkExpr(e.Base, visit)
	case *TernaryExpr:
		walkExpr(e.Cond, visit)
		walkExpr(e.Then, visit)
		walkExpr(e.Else, visit)
	case *CastExpr:
		walkExpr(e.Inner, visit)
	case *SizeofExpr:
		walkExpr(e.ExprArg, visit)
	}
}

func stmtCount(list []Stmt) int {
	n := 0
	for _, s := range list {
		n++
		switch s := s.(type) {
		case *BlockStmt:
			n += stmtCount(s.List)
		case *IfStmt:
			n += stmtCount(s.Then.List)
			if s.Else != nil {
				n += stmtCount([]Stmt{s.Else})
			}
		case *WhileStmt:
			n += stmtCount(s.Body.List)
		case *DoWhileStmt:
			n += stmtCount(s.Body.List)
		case *ForStmt:
			if s.Init != nil {
				n += stmtCount([]Stmt{s.Init})
			}
			n += stmtCount(s.Body.List)
		case *SwitchStmt:
			for _, c := range s.Cases {
				n += stmtCount(c.Body)
			}
		}
	}
	return n
}

// tailReturnOnly reports whether the only return in the body, if any, is
// its final top-level statement. Such a body can be spliced into a caller
// by rewriting that one return into an assignment.
func tailReturnOnly(list []Stmt) bool {
	for i, s := range list {
		if _, ok := s.(*ReturnStmt); ok {
			if i != len(list)-1 {
				return false
			}
			continue
		}
		if containsReturn(s) {
			return false
		}
	}
	return true
}

func containsReturn(s Stmt) bool {
	switch s := s.(type) {
	case *ReturnStmt:
		return true
	case *BlockStmt:
		for _, inner := range s.List {
			if containsReturn(inner) {
				return true
			}
		}
	case *IfStmt:
		for _, inner := range s.Then.List {
			if containsReturn(inner) {
				return true
			}
		}
		if s.Else != nil {
			return containsReturn(s.Else)
		}
	case *WhileStmt:
		for _, inner := range s.Body.List {
			if containsReturn(inner) {
				return true
			}
		}
	case *DoWhileStmt:
		for _, inner := range s.Body.List {
			if containsReturn(inner) {
				return true
			}
		}
	case *ForStmt:
		if s.Init != nil && containsReturn(s.Init) {
			return true
		}
		for _, inner := range s.Body.List {
			if containsReturn(inner) {
				return true
			}
		}
	case *SwitchStmt:
		for _, c := range s.Cases {
			for _, inner := range c.Body {
				if containsReturn(inner) {
					return true
				}
			}
		}
	}
	return false
}

type inliner struct {
	candidates map[string]*FuncDecl
	sites      int
}

func (in *inliner) stmts(list []Stmt) []Stmt {
	var out []Stmt
	for _, s := range list {
		out = append(out, in.stmt(s)...)
	}
	return out
}

func (in *inliner) stmt(s Stmt) []Stmt {
	switch s := s.(type) {
	case *ExprStmt:
		if call, ok := s.E.(*CallExpr); ok {
			if fn := in.candidate(call); fn != nil {
				return in.expand(fn, call, nil, s.Line)
			}
		}
		if assign, ok := s.E.(*AssignExpr); ok {
			if call, ok := assign.Value.(*CallExpr); ok {
				if fn := in.candidate(call); fn != nil && fn.Ret.Kind != TypeVoid {
					ret, pre := in.expandInto(fn, call, s.Line)
					assign.Value = ret
					return append(pre, s)
				}
			}
		}
		return []Stmt{s}

	case *VarDecl:
		if call, ok := s.Init.(*CallExpr); ok {
			if fn := in.candidate(call); fn != nil && fn.Ret.Kind != TypeVoid {
				ret, pre := in.expandInto(fn, call, s.Line)
				s.Init = ret
				return append(pre, s)
			}
		}
		return []Stmt{s}

	case *ReturnStmt:
		if call, ok := s.Result.(*CallExpr); ok {
			if fn := in.candidate(call); fn != nil && fn.Ret.Kind != TypeVoid {
				ret, pre := in.expandInto(fn, call, s.Line)
				s.Result = ret
				return append(pre, s)
			}
		}
		return []Stmt{s}

	case *BlockStmt:
		s.List = in.stmts(s.List)
		return []Stmt{s}
	case *IfStmt:
		s.Then.List = in.stmts(s.Then.List)
		if s.Else != nil {
			rewritten := in.stmt(s.Else)
			if len(rewritten) == 1 {
				s.Else = rewritten[0]
			} else {
				s.Else = &BlockStmt{List: rewritten, Line: s.Else.Pos()}
			}
		}
		return []Stmt{s}
	case *WhileStmt:
		s.Body.List = in.stmts(s.Body.List)
		return []Stmt{s}
	case *DoWhileStmt:
		s.Body.List = in.stmts(s.Body.List)
		return []Stmt{s}
	case *ForStmt:
		s.Body.List = in.stmts(s.Body.List)
		return []Stmt{s}
	case *SwitchStmt:
		for _, c := range s.Cases {
			c.Body = in.stmts(c.Body)
		}
		return []Stmt{s}
	default:
		return []Stmt{s}
	}
}

func (in *inliner) candidate(call *CallExpr) *FuncDecl {
	fn := in.candidates[call.Name]
	if fn == nil || len(call.Args) != len(fn.Params) {
		return nil
	}
	return fn
}

// expandInto expands a call whose result is consumed. It returns the
// identifier holding the result plus the statements that compute it.
func (in *inliner) expandInto(fn *FuncDecl, call *CallExpr, line int) (Expr, []Stmt) {
	in.sites++
	retName := fmt.Sprintf("__inl_%s_%d_ret", fn.Name, in.sites)
	pre := []Stmt{
		&VarDecl{Name: retName, Type: fn.Ret, Init: &IntLit{Value: 0, Line: line, T: intType}, Line: line},
	}
	pre = append(pre, in.splice(fn, call, retName, line)...)
	return &Ident{Name: retName, Line: line, T: fn.Ret}, pre
}

// expand expands a call whose result, if any, is discarded.
func (in *inliner) expand(fn *FuncDecl, call *CallExpr, _ Expr, line int) []Stmt {
	in.sites++
	return in.splice(fn, call, "", line)
}

// splice produces the block that binds arguments to fresh parameter names
// and runs the renamed body. A tail return becomes an assignment to
// retName, or vanishes when the result is unused.
func (in *inliner) splice(fn *FuncDecl, call *CallExpr, retName string, line int) []Stmt {
	prefix := fmt.Sprintf("__inl_%s_%d_", fn.Name, in.sites)

	sub := make(map[string]string)
	block := &BlockStmt{Line: line}
	for i, p := range fn.Params {
		fresh := prefix + p.Name
		sub[p.Name] = fresh
		block.List = append(block.List, &VarDecl{
			Name: fresh,
			Type: p.Type,
			Init: call.Args[i],
			Line: line,
		})
	}
	for name := range localNames(fn.Body.List) {
		if _, taken := sub[name]; !taken {
			sub[name] = prefix + name
		}
	}

	body := cloneStmts(fn.Body.List)
	renameStmts(body, sub)

	if n := len(body); n > 0 {
		if ret, ok := body[n-1].(*ReturnStmt); ok {
			body = body[:n-1]
			if ret.Result != nil {
				if retName != "" {
					target := &Ident{Name: retName, Line: ret.Line, T: fn.Ret}
					body = append(body, &ExprStmt{
						E:    &AssignExpr{Target: target, Value: ret.Result, Line: ret.Line, T: fn.Ret},
						Line: ret.Line,
					})
				} else if hasSideEffects(ret.Result) {
					body = append(body, &ExprStmt{E: ret.Result, Line: ret.Line})
				}
			}
		}
	}
	block.List = append(block.List, body...)
	return []Stmt{block}
}

// localNames collects every name declared anywhere in the body.
func localNames(list []Stmt) map[string]bool {
	declared := make(map[string]int)
	countDecls(list, declared)
	out := make(map[string]bool, len(declared))
	for name := range declared {
		out[name] = true
	}
	return out
}

// renameStmts applies the substitution to every identifier use and
// declaration in the list, in place.
func renameStmts(list []Stmt, sub map[string]string) {
	for _, s := range list {
		renameStmt(s, sub)
	}
}

func renameStmt(s Stmt, sub map[string]string) {
	switch s := s.(type) {
	case *ExprStmt:
		renameExpr(s.E, sub)
	case *VarDecl:
		if fresh, ok := sub[s.Name]; ok {
			s.Name = fresh
		}
		if s.Init != nil {
			renameExpr(s.Init, sub)
		}
	case *BlockStmt:
		renameStmts(s.List, sub)
	case *IfStmt:
		renameExpr(s.Cond, sub)
		renameStmts(s.Then.List, sub)
		if s.Else != nil {
			renameStmt(s.Else, sub)
		}
	case *WhileStmt:
		renameExpr(s.Cond, sub)
		renameStmts(s.Body.List, sub)
	case *DoWhileStmt:
		renameStmts(s.Body.List, sub)
		renameExpr(s.Cond, sub)
	case *ForStmt:
		if s.Init != nil {
			renameStmt(s.Init, sub)
		}
		if s.Cond != nil {
			renameExpr(s.Cond, sub)
		}
		if s.Post != nil {
			renameExpr(s.Post, sub)
		}
		renameStmts(s.Body.List, sub)
	case *SwitchStmt:
		renameExpr(s.Tag, sub)
		for _, c := range s.Cases {
			if c.Value != nil {
				renameExpr(c.Value, sub)
			}
			renameStmts(c.Body, sub)
		}
	case *ReturnStmt:
		if s.Result != nil {
			renameExpr(s.Result, sub)
		}
	}
}

func renameExpr(e Expr, sub map[string]string) {
	walkExpr(e, func(e Expr) {
		if id, ok := e.(*Ident); ok {
			if fresh, ok := sub[id.Name]; ok {
				id.Name = fresh
			}
		}
	})
}
