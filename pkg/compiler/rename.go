package compiler

import "math/rand"

// Identifier renaming strips the meaning out of local names. Every local
// and parameter gets a fresh name in the chosen style; file-scope names
// and struct fields keep theirs, since those are visible across
// translation units. Shadowing is preserved: lookups walk a scope stack
// that mirrors the block structure, so an inner declaration hides an
// outer one exactly as it did before the pass.

// RenameLocals returns a copy of prog with every local and parameter
// renamed. The old-to-new mapping for each function is recorded in its
// Renamed field.
func RenameLocals(prog *Program, style NameStyle, rng *rand.Rand) *Program {
	out := prog.Clone()
	reserved := fileScopeNames(out)
	for _, b := range builtinDecls() {
		reserved[b.Name] = true
	}
	for _, decl := range out.Decls {
		if fn, ok := decl.(*FuncDecl); ok && fn.Body != nil {
			renameFunction(fn, style, rng, reserved)
		}
	}
	return out
}

func renameFunction(fn *FuncDecl, style NameStyle, rng *rand.Rand, reserved map[string]bool) {
	gen := newNameGen(rng, style)
	for name := range reserved {
		gen.reserve(name)
	}
	if fn.Renamed == nil {
		fn.Renamed = make(map[string]string)
	}

	w := &localRewriter{declare: func(name string) string {
		fresh := gen.fresh()
		fn.Renamed[name] = fresh
		return fresh
	}}
	w.function(fn)
}

// renScope is one level of a scope stack mapping source names to their
// replacements.
type renScope struct {
	parent *renScope
	names  map[string]string
}

func (s *renScope) lookup(name string) (string, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if fresh, ok := cur.names[name]; ok {
			return fresh, true
		}
	}
	return "", false
}

// localRewriter renames local declarations and their uses while walking a
// function body with C block scoping. The declare hook picks the new name
// for each declaration; uses resolve through the scope stack, so
// shadowing behaves as it did in the source.
type localRewriter struct {
	scope   *renScope
	declare func(string) string
}

func (w *localRewriter) function(fn *FuncDecl) {
	w.push()
	for _, p := range fn.Params {
		p.Name = w.bind(p.Name)
	}
	w.block(fn.Body)
	w.pop()
}

func (w *localRewriter) push() {
	w.scope = &renScope{parent: w.scope, names: make(map[string]string)}
}

func (w *localRewriter) pop() {
	w.scope = w.scope.parent
}

// bind assigns a replacement for a declaration in the current scope.
func (w *localRewriter) bind(name string) string {
	fresh := w.declare(name)
	w.scope.names[name] = fresh
	return fresh
}

func (w *localRewriter) block(b *BlockStmt) {
	w.push()
	for _, s := range b.List {
		w.stmt(s)
	}
	w.pop()
}

func (w *localRewriter) stmt(s Stmt) {
	switch s := s.(type) {
	case *ExprStmt:
		w.expr(s.E)
	case *VarDecl:
		// The initializer is evaluated before the name is in scope.
		if s.Init != nil {
			w.expr(s.Init)
		}
		s.Name = w.bind(s.Name)
	case *BlockStmt:
		w.block(s)
	case *IfStmt:
		w.expr(s.Cond)
		w.block(s.Then)
		if s.Else != nil {
			w.stmt(s.Else)
		}
	case *WhileStmt:
		w.expr(s.Cond)
		w.block(s.Body)
	case *DoWhileStmt:
		w.block(s.Body)
		w.expr(s.Cond)
	case *ForStmt:
		w.push()
		if s.Init != nil {
			w.stmt(s.Init)
		}
		if s.Cond != nil {
			w.expr(s.Cond)
		}
		if s.Post != nil {
			w.expr(s.Post)
		}
		w.block(s.Body)
		w.pop()
	case *SwitchStmt:
		w.expr(s.Tag)
		w.push()
		for _, c := range s.Cases {
			for _, inner := range c.Body {
				w.stmt(inner)
			}
		}
		w.pop()
	case *ReturnStmt:
		if s.Result != nil {
			w.expr(s.Result)
		}
	}
}

func (w *localRewriter) expr(e Expr) {
	switch e := e.(type) {
	case *Ident:
		if fresh, ok := w.scope.lookup(e.Name); ok {
			e.Name = fresh
		}
	case *BinaryExpr:
		w.expr(e.Left)
		w.expr(e.Right)
	case *LogicalExpr:
		w.expr(e.Left)
		w.expr(e.Right)
	case *UnaryExpr:
		w.expr(e.Operand)
	case *AssignExpr:
		w.expr(e.Target)
		w.expr(e.Value)
	case *CallExpr:
		for _, a := range e.Args {
			w.expr(a)
		}
	case *IndexExpr:
		w.expr(e.Base)
		w.expr(e.Index)
	case *MemberExpr:
		w.expr(e.Base)
	case *TernaryExpr:
		w.expr(e.Cond)
		w.expr(e.Then)
		w.expr(e.Else)
	case *CastExpr:
		w.expr(e.Inner)
	case *SizeofExpr:
		if e.ExprArg != nil {
			w.expr(e.ExprArg)
		}
	}
}
