package compiler

import (
	"fmt"
	"math/rand"
)

// Dead code insertion plants plausible but unused computation throughout
// function bodies. Each inserted local gets an innocuous name and an
// initializer built from small constants; some later get an equally dead
// reassignment. The pass runs after optimization, so its own output is
// not eliminated again.

var junkPrefixes = [...]string{
	"counter", "index", "temp", "buffer", "size", "len", "offset", "ptr", "flag",
}

// DefaultDeadCodeRatio is the fraction of statement gaps that receive
// junk when the caller does not pick one.
const DefaultDeadCodeRatio = 0.2

// InsertJunk returns a copy of prog with dead declarations and
// assignments inserted into every function body. ratio is the fraction of
// statement gaps that get an insertion; zero means DefaultDeadCodeRatio,
// and values above one saturate.
func InsertJunk(prog *Program, ratio float64, rng *rand.Rand) *Program {
	if ratio == 0 {
		ratio = DefaultDeadCodeRatio
	}
	out := prog.Clone()
	j := &junker{rng: rng, ratio: ratio, globals: fileScopeNames(out)}
	for _, decl := range out.Decls {
		if fn, ok := decl.(*FuncDecl); ok && fn.Body != nil {
			j.function(fn)
		}
	}
	return out
}

type junker struct {
	rng     *rand.Rand
	ratio   float64
	globals map[string]bool
	used    map[string]bool
	n       int
}

func (j *junker) function(fn *FuncDecl) {
	j.used = localNames(fn.Body.List)
	for _, p := range fn.Params {
		j.used[p.Name] = true
	}
	fn.Body.List = j.stmts(fn.Body.List)
}

// stmts interleaves junk into a statement list. Declarations drawn for
// this block are tracked so a later insertion can reassign one.
func (j *junker) stmts(list []Stmt) []Stmt {
	var blockVars []string
	out := make([]Stmt, 0, len(list))
	for _, s := range list {
		if j.rng.Float64() < j.ratio {
			line := s.Pos()
			if len(blockVars) > 0 && j.rng.Intn(3) == 0 {
				name := blockVars[j.rng.Intn(len(blockVars))]
				out = append(out, &ExprStmt{
					E: &AssignExpr{
						Target: &Ident{Name: name, Line: line, T: intType},
						Value:  j.expr(line),
						Line:   line,
						T:      intType,
					},
					Line: line,
				})
			} else {
				name := j.freshName()
				blockVars = append(blockVars, name)
				out = append(out, &VarDecl{
					Name: name,
					Type: intType,
					Init: j.expr(line),
					Line: line,
				})
			}
		}
		out = append(out, j.stmt(s))
	}
	return out
}

func (j *junker) stmt(s Stmt) Stmt {
	switch s := s.(type) {
	case *BlockStmt:
		s.List = j.stmts(s.List)
	case *IfStmt:
		s.Then.List = j.stmts(s.Then.List)
		if s.Else != nil {
			s.Else = j.stmt(s.Else)
		}
	case *WhileStmt:
		s.Body.List = j.stmts(s.Body.List)
	case *DoWhileStmt:
		s.Body.List = j.stmts(s.Body.List)
	case *ForStmt:
		s.Body.List = j.stmts(s.Body.List)
	case *SwitchStmt:
		for _, c := range s.Cases {
			c.Body = j.stmts(c.Body)
		}
	}
	return s
}

func (j *junker) freshName() string {
	for {
		j.n++
		name := fmt.Sprintf("%s_%d", junkPrefixes[j.rng.Intn(len(junkPrefixes))], j.n)
		if !j.used[name] && !j.globals[name] {
			j.used[name] = true
			return name
		}
	}
}

// expr builds one decoy computation over small constants. The divisor in
// the remainder form is never zero.
func (j *junker) expr(line int) Expr {
	lit := func(n int32) Expr { return &IntLit{Value: n, Line: line, T: intType} }
	bin := func(op TokenType, l, r Expr) Expr {
		return &BinaryExpr{Op: op, Left: l, Right: r, Line: line, T: intType}
	}
	a := lit(j.rng.Int31n(99) + 1)
	b := lit(j.rng.Int31n(99) + 1)
	c := lit(j.rng.Int31n(99) + 1)
	d := lit(j.rng.Int31n(99) + 1)

	switch j.rng.Intn(5) {
	case 0:
		return bin(STAR, bin(PLUS, a, b), bin(MINUS, c, d))
	case 1:
		return bin(AND, a, bin(PIPE, b, c))
	case 2:
		return &TernaryExpr{
			Cond: bin(GREATER, a, b),
			Then: c,
			Else: d,
			Line: line,
			T:    intType,
		}
	case 3:
		return &UnaryExpr{Op: MINUS, Operand: bin(STAR, a, b), Line: line, T: intType}
	default:
		return bin(PERCENT, bin(STAR, a, b), lit(j.rng.Int31n(9)+1))
	}
}
