package compiler

import "math/rand"

// Expression complication rewrites integer arithmetic into equivalent but
// harder to read forms. Both identities are exact under 32-bit
// two's-complement wraparound:
//
//	x + y  ==  (x ^ y) + ((x & y) << 1)
//	x - y  ==  (x + ~y) + 1
//
// The first duplicates its operands, so it applies only when both sides
// are free of side effects. The pass also wraps some integer reads in
// neutral operations (x ^ 0, x | 0, x + 0). Pointer arithmetic is never
// touched.

// ComplicateExpressions returns a copy of prog with integer expressions
// rewritten. Choices are drawn from rng, so a fixed seed reproduces the
// same output.
func ComplicateExpressions(prog *Program, rng *rand.Rand) *Program {
	out := prog.Clone()
	c := &complicator{rng: rng}
	for _, decl := range out.Decls {
		if fn, ok := decl.(*FuncDecl); ok && fn.Body != nil {
			rewriteAllExprs(fn.Body.List, c.rewrite)
		}
	}
	return out
}

type complicator struct{ rng *rand.Rand }

// intOperands reports whether both sides of e are integer typed, which
// rules out pointer arithmetic and untyped trees.
func intOperands(e *BinaryExpr) bool {
	lt, rt := e.Left.Type(), e.Right.Type()
	return lt != nil && rt != nil && lt.IsInteger() && rt.IsInteger()
}

func (c *complicator) rewrite(e Expr) Expr {
	switch e := e.(type) {
	case *BinaryExpr:
		if !intOperands(e) {
			return e
		}
		switch e.Op {
		case PLUS:
			if c.rng.Intn(2) == 0 && !hasSideEffects(e.Left) && !hasSideEffects(e.Right) {
				return carrySum(e)
			}
		case MINUS:
			if c.rng.Intn(2) == 0 {
				return complementDiff(e)
			}
		}
		return e
	case *Ident:
		return c.maybeWrap(e)
	case *IntLit:
		return c.maybeWrap(e)
	}
	return e
}

// maybeWrap occasionally hides an integer read behind an identity
// operation.
func (c *complicator) maybeWrap(e Expr) Expr {
	t := e.Type()
	if t == nil || !t.IsInteger() || c.rng.Intn(4) != 0 {
		return e
	}
	zero := &IntLit{Value: 0, Line: e.Pos(), T: intType}
	ops := [...]TokenType{CARET, PIPE, PLUS}
	op := ops[c.rng.Intn(len(ops))]
	return &BinaryExpr{Op: op, Left: e, Right: zero, Line: e.Pos(), T: intType}
}

// carrySum builds (x ^ y) + ((x & y) << 1), the carry-save form of x + y.
func carrySum(e *BinaryExpr) Expr {
	x2 := cloneExpr(e.Left)
	y2 := cloneExpr(e.Right)
	xor := &BinaryExpr{Op: CARET, Left: e.Left, Right: e.Right, Line: e.Line, T: intType}
	and := &BinaryExpr{Op: AND, Left: x2, Right: y2, Line: e.Line, T: intType}
	one := &IntLit{Value: 1, Line: e.Line, T: intType}
	shl := &BinaryExpr{Op: SHL_OP, Left: and, Right: one, Line: e.Line, T: intType}
	return &BinaryExpr{Op: PLUS, Left: xor, Right: shl, Line: e.Line, T: intType}
}

// complementDiff builds (x + ~y) + 1, the two's-complement form of x - y.
func complementDiff(e *BinaryExpr) Expr {
	not := &UnaryExpr{Op: TILDE, Operand: e.Right, Line: e.Line, T: intType}
	sum := &BinaryExpr{Op: PLUS, Left: e.Left, Right: not, Line: e.Line, T: intType}
	one := &IntLit{Value: 1, Line: e.Line, T: intType}
	return &BinaryExpr{Op: PLUS, Left: sum, Right: one, Line: e.Line, T: intType}
}
