package compiler

import (
	"fmt"
	"math/rand"
)

// Opaque predicates are conditions that always hold at run time but are
// not syntactically constant. The pass seeds each function with a couple
// of integer locals and builds predicates over them, then wraps some
// statements in always-taken branches and conjoins predicates onto
// existing conditions. The untaken arm of a wrap is not left empty: it
// carries a decoy store, so both branches look live.
//
// Every predicate is exact under 32-bit wraparound for any value of v:
//
//	(v * (v + 1)) % 2 == 0    one of two consecutive integers is even
//	((v * 2) & 1) == 0        doubling clears the low bit
//	(v ^ v) == 0              anything xored with itself
//
// Variable declarations are never wrapped, since moving one into a branch
// body would shrink its scope.

// InsertOpaquePredicates returns a copy of prog with opaque guards added
// to every function body.
func InsertOpaquePredicates(prog *Program, rng *rand.Rand) *Program {
	out := prog.Clone()
	o := &opaquer{rng: rng, globals: fileScopeNames(out)}
	for _, decl := range out.Decls {
		if fn, ok := decl.(*FuncDecl); ok && fn.Body != nil {
			o.function(fn)
		}
	}
	return out
}

type opaquer struct {
	rng     *rand.Rand
	globals map[string]bool
	n       int
	vars    []string
}

func (o *opaquer) function(fn *FuncDecl) {
	if len(fn.Body.List) == 0 {
		return
	}
	used := localNames(fn.Body.List)
	for _, p := range fn.Params {
		used[p.Name] = true
	}

	line := fn.Line
	o.vars = o.vars[:0]
	var decls []Stmt
	for i := 0; i < 2; i++ {
		var name string
		for {
			o.n++
			name = fmt.Sprintf("__op%d", o.n)
			if !used[name] && !o.globals[name] {
				break
			}
		}
		used[name] = true
		o.vars = append(o.vars, name)
		decls = append(decls, &VarDecl{
			Name: name,
			Type: intType,
			Init: &IntLit{Value: o.rng.Int31n(89) + 11, Line: line, T: intType},
			Line: line,
		})
	}

	fn.Body.List = append(decls, o.stmts(fn.Body.List)...)
}

func (o *opaquer) stmts(list []Stmt) []Stmt {
	out := make([]Stmt, 0, len(list))
	for _, s := range list {
		out = append(out, o.stmt(s))
	}
	return out
}

func (o *opaquer) stmt(s Stmt) Stmt {
	switch s := s.(type) {
	case *VarDecl:
		return s
	case *BlockStmt:
		s.List = o.stmts(s.List)
	case *IfStmt:
		if o.rng.Intn(3) == 0 {
			s.Cond = o.conjoin(s.Cond)
		}
		s.Then.List = o.stmts(s.Then.List)
		if s.Else != nil {
			s.Else = o.stmt(s.Else)
		}
	case *WhileStmt:
		if o.rng.Intn(3) == 0 {
			s.Cond = o.conjoin(s.Cond)
		}
		s.Body.List = o.stmts(s.Body.List)
	case *DoWhileStmt:
		s.Body.List = o.stmts(s.Body.List)
		if o.rng.Intn(3) == 0 {
			s.Cond = o.conjoin(s.Cond)
		}
	case *ForStmt:
		if s.Cond != nil && o.rng.Intn(3) == 0 {
			s.Cond = o.conjoin(s.Cond)
		}
		s.Body.List = o.stmts(s.Body.List)
	case *SwitchStmt:
		for _, c := range s.Cases {
			c.Body = o.stmts(c.Body)
		}
	}

	if o.rng.Intn(3) == 0 {
		return o.guard(s)
	}
	return s
}

// guard wraps s in an always-taken branch. The dead arm reassigns a
// predicate variable, which tolerates any value.
func (o *opaquer) guard(s Stmt) Stmt {
	line := s.Pos()
	return &IfStmt{
		Cond: o.predicate(line),
		Then: &BlockStmt{List: []Stmt{s}, Line: line},
		Else: &BlockStmt{List: []Stmt{o.decoy(line)}, Line: line},
		Line: line,
	}
}

// decoy builds the store for an untaken arm.
func (o *opaquer) decoy(line int) Stmt {
	name := o.vars[o.rng.Intn(len(o.vars))]
	v := func() Expr { return &Ident{Name: name, Line: line, T: intType} }
	lit := func(n int32) Expr { return &IntLit{Value: n, Line: line, T: intType} }
	scaled := &BinaryExpr{
		Op:    STAR,
		Left:  v(),
		Right: lit(o.rng.Int31n(7) + 2),
		Line:  line,
		T:     intType,
	}
	value := &BinaryExpr{
		Op:    PLUS,
		Left:  scaled,
		Right: lit(o.rng.Int31n(13) + 1),
		Line:  line,
		T:     intType,
	}
	return &ExprStmt{
		E: &AssignExpr{
			Target: &Ident{Name: name, Line: line, T: intType},
			Value:  value,
			Line:   line,
			T:      intType,
		},
		Line: line,
	}
}

// conjoin strengthens cond with a predicate on the right, preserving
// short-circuit order.
func (o *opaquer) conjoin(cond Expr) Expr {
	line := cond.Pos()
	return &LogicalExpr{
		Op:    AND_LOGICAL,
		Left:  cond,
		Right: o.predicate(line),
		Line:  line,
		T:     intType,
	}
}

func (o *opaquer) predicate(line int) Expr {
	name := o.vars[o.rng.Intn(len(o.vars))]
	v := func() Expr { return &Ident{Name: name, Line: line, T: intType} }
	lit := func(n int32) Expr { return &IntLit{Value: n, Line: line, T: intType} }
	bin := func(op TokenType, l, r Expr) Expr {
		return &BinaryExpr{Op: op, Left: l, Right: r, Line: line, T: intType}
	}

	switch o.rng.Intn(3) {
	case 0:
		prod := bin(STAR, v(), bin(PLUS, v(), lit(1)))
		return bin(EQUALS, bin(PERCENT, prod, lit(2)), lit(0))
	case 1:
		return bin(EQUALS, bin(AND, bin(STAR, v(), lit(2)), lit(1)), lit(0))
	default:
		return bin(EQUALS, bin(CARET, v(), v()), lit(0))
	}
}
