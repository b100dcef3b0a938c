package compiler

import (
	"math/rand"
	"testing"
)

// flattenSource flattens every function in src and re-analyzes the
// result, since a flattened tree that no longer passes analysis would
// poison every later pass.
func flattenSource(t *testing.T, src string, seed int64) *Program {
	t.Helper()
	prog, _ := analyzeSource(t, src)
	out := FlattenControl(prog, rand.New(rand.NewSource(seed)))
	if _, _, err := Analyze(out); err != nil {
		t.Fatalf("flattened program fails analysis: %v", err)
	}
	return out
}

// dispatchOf unpacks the flattened shape of fn: hoisted declarations,
// then the state variable starting at 0, then a single loop whose body
// is one switch over the state.
func dispatchOf(t *testing.T, fn *FuncDecl) (*VarDecl, *SwitchStmt) {
	t.Helper()
	list := fn.Body.List
	if len(list) < 2 {
		t.Fatalf("flattened %s has %d statements, want declarations plus a loop", fn.Name, len(list))
	}
	for _, s := range list[:len(list)-1] {
		d, ok := s.(*VarDecl)
		if !ok {
			t.Fatalf("statement before the dispatch loop is %T, want a hoisted declaration", s)
		}
		if d.Init != nil && d.Name != list[len(list)-2].(*VarDecl).Name {
			t.Fatalf("hoisted %s kept its initializer", d.Name)
		}
	}
	st := list[len(list)-2].(*VarDecl)
	init, ok := st.Init.(*IntLit)
	if !ok || init.Value != 0 {
		t.Fatalf("state variable %s starts at %v, want 0", st.Name, st.Init)
	}
	loop, ok := list[len(list)-1].(*WhileStmt)
	if !ok {
		t.Fatalf("last statement is %T, want the dispatch loop", list[len(list)-1])
	}
	if cond, ok := loop.Cond.(*IntLit); !ok || cond.Value != 1 {
		t.Fatalf("dispatch loop condition is %v, want the constant 1", loop.Cond)
	}
	if len(loop.Body.List) != 1 {
		t.Fatalf("dispatch loop body has %d statements, want just the switch", len(loop.Body.List))
	}
	sw, ok := loop.Body.List[0].(*SwitchStmt)
	if !ok {
		t.Fatalf("dispatch loop body is %T, want a switch", loop.Body.List[0])
	}
	if tag, ok := sw.Tag.(*Ident); !ok || tag.Name != st.Name {
		t.Fatalf("switch tag is %v, want %s", sw.Tag, st.Name)
	}
	return st, sw
}

// eachStmt visits every statement under list, descending into blocks,
// branches, loops, and switch cases.
func eachStmt(list []Stmt, visit func(Stmt)) {
	for _, s := range list {
		visit(s)
		switch s := s.(type) {
		case *BlockStmt:
			eachStmt(s.List, visit)
		case *IfStmt:
			eachStmt(s.Then.List, visit)
			if s.Else != nil {
				eachStmt([]Stmt{s.Else}, visit)
			}
		case *WhileStmt:
			eachStmt(s.Body.List, visit)
		case *DoWhileStmt:
			eachStmt(s.Body.List, visit)
		case *ForStmt:
			if s.Init != nil {
				eachStmt([]Stmt{s.Init}, visit)
			}
			eachStmt(s.Body.List, visit)
		case *SwitchStmt:
			for _, c := range s.Cases {
				eachStmt(c.Body, visit)
			}
		}
	}
}

// statesAssigned collects every constant assigned to the named state
// variable anywhere under list.
func statesAssigned(list []Stmt, name string) map[int32]bool {
	got := make(map[int32]bool)
	eachStmt(list, func(s Stmt) {
		walkStmtExprs(s, func(e Expr) {
			a, ok := e.(*AssignExpr)
			if !ok {
				return
			}
			id, ok := a.Target.(*Ident)
			if !ok || id.Name != name {
				return
			}
			if lit, ok := a.Value.(*IntLit); ok {
				got[lit.Value] = true
			}
		})
	})
	return got
}

func caseValues(t *testing.T, sw *SwitchStmt) map[int32]bool {
	t.Helper()
	got := make(map[int32]bool, len(sw.Cases))
	for _, c := range sw.Cases {
		lit, ok := c.Value.(*IntLit)
		if !ok {
			t.Fatalf("case value is %v, want an integer constant", c.Value)
		}
		if got[lit.Value] {
			t.Fatalf("state %d has two cases", lit.Value)
		}
		got[lit.Value] = true
	}
	return got
}

const factorialSrc = `
int f(int n) {
	int r = 1;
	while (n > 1) {
		r = r * n;
		n = n - 1;
	}
	return r;
}
`

func TestFlattenBuildsSingleDispatchLoop(t *testing.T) {
	out := flattenSource(t, factorialSrc, 1)
	fn := out.Function("f")

	st, sw := dispatchOf(t, fn)
	if len(fn.StateVars) != 1 || fn.StateVars[0] != st.Name {
		t.Errorf("StateVars = %v, want [%s]", fn.StateVars, st.Name)
	}

	// States are dense from 0: entry, loop head, loop body, loop exit.
	values := caseValues(t, sw)
	if len(values) != 4 {
		t.Fatalf("got %d states, want 4", len(values))
	}
	for i := int32(0); i < 4; i++ {
		if !values[i] {
			t.Errorf("state %d missing from the switch", i)
		}
	}

	// The original locals survive as hoisted declarations.
	names := make(map[string]bool)
	for _, s := range fn.Body.List[:len(fn.Body.List)-1] {
		names[s.(*VarDecl).Name] = true
	}
	if !names["r"] {
		t.Errorf("local r was not hoisted; declarations are %v", names)
	}
}

func TestFlattenEntryStateRunsFirstStatement(t *testing.T) {
	out := flattenSource(t, factorialSrc, 7)
	_, sw := dispatchOf(t, out.Function("f"))

	var entry *CaseClause
	for _, c := range sw.Cases {
		if c.Value.(*IntLit).Value == 0 {
			entry = c
		}
	}
	if entry == nil {
		t.Fatal("no case for state 0")
	}
	// r = 1 moved from the hoisted declaration into the entry state.
	es, ok := entry.Body[0].(*ExprStmt)
	if !ok {
		t.Fatalf("entry state starts with %T, want the initializing assignment", entry.Body[0])
	}
	a, ok := es.E.(*AssignExpr)
	if !ok || a.Target.(*Ident).Name != "r" {
		t.Fatalf("entry state starts with %v, want r = 1", es.E)
	}
	if lit, ok := a.Value.(*IntLit); !ok || lit.Value != 1 {
		t.Fatalf("r initialized to %v, want 1", a.Value)
	}
}

// Every case except the entry must be the target of some state
// assignment, and every state assignment must name an existing case.
func TestFlattenLeavesNoOrphanStates(t *testing.T) {
	sources := map[string]string{
		"loop": factorialSrc,
		"branches": `
int g(int n) {
	if (n > 10) {
		n = n - 10;
	} else if (n > 5) {
		n = n - 5;
	}
	return n;
}
`,
		"early return": `
int h(int n) {
	while (n > 0) {
		if (n == 3) {
			return 99;
		}
		n = n - 1;
	}
	return n;
}
`,
		"switch": `
int k(int n) {
	int r = 0;
	switch (n) {
	case 1:
		r = 10;
		break;
	case 2:
		r = 20;
	default:
		r = r + 1;
		break;
	}
	return r;
}
`,
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			out := flattenSource(t, src, 3)
			fn := out.Decls[0].(*FuncDecl)
			st, sw := dispatchOf(t, fn)

			values := caseValues(t, sw)
			assigned := statesAssigned(fn.Body.List, st.Name)
			for v := range assigned {
				if !values[v] {
					t.Errorf("state %d is assigned but has no case", v)
				}
			}
			for v := range values {
				if v != 0 && !assigned[v] {
					t.Errorf("state %d has a case nothing jumps to", v)
				}
			}
		})
	}
}

// When both arms of a branch return, the join point is unreachable and
// must not surface as a case.
func TestFlattenDropsUnreachableJoin(t *testing.T) {
	src := `
int pick(int n) {
	if (n > 0) {
		return 1;
	} else {
		return 2;
	}
}
`
	out := flattenSource(t, src, 5)
	_, sw := dispatchOf(t, out.Function("pick"))

	// Entry, then-arm, else-arm. No fourth case for the dead join.
	if len(sw.Cases) != 3 {
		t.Fatalf("got %d states, want 3", len(sw.Cases))
	}
	for _, c := range sw.Cases {
		if len(c.Body) == 0 {
			t.Errorf("state %d is an empty case", c.Value.(*IntLit).Value)
		}
	}
}

// Sequential loops at the same depth share the function's dispatch
// machine rather than each spawning their own.
func TestFlattenSequentialLoopsShareOneMachine(t *testing.T) {
	src := `
int twice(int n) {
	int a = 0;
	while (a < n) {
		a = a + 1;
	}
	int b = 0;
	do {
		b = b + 2;
	} while (b < n);
	for (int i = 0; i < n; i++) {
		a = a + b;
	}
	return a;
}
`
	out := flattenSource(t, src, 11)
	fn := out.Function("twice")
	if len(fn.StateVars) != 1 {
		t.Fatalf("StateVars = %v, want a single machine", fn.StateVars)
	}
	dispatchOf(t, fn)
}

func TestFlattenNestedLoopBecomesOwnMachine(t *testing.T) {
	src := `
int grid(void) {
	int total = 0;
	for (int i = 0; i < 4; i++) {
		int j = 0;
		while (j < 5) {
			total = total + 1;
			j = j + 1;
		}
	}
	return total;
}
`
	out := flattenSource(t, src, 13)
	fn := out.Function("grid")
	outer, sw := dispatchOf(t, fn)
	if len(fn.StateVars) != 2 {
		t.Fatalf("StateVars = %v, want outer and nested machines", fn.StateVars)
	}
	inner := fn.StateVars[1]
	if inner == outer.Name {
		t.Fatalf("nested machine reuses state variable %s", inner)
	}

	// The nested machine is hoisted without an initializer and reset to
	// 0 where the loop ran, so re-entering the loop restarts it.
	var hoisted bool
	for _, s := range fn.Body.List[:len(fn.Body.List)-1] {
		if d := s.(*VarDecl); d.Name == inner {
			hoisted = d.Init == nil
		}
	}
	if !hoisted {
		t.Fatalf("nested state %s not hoisted without initializer", inner)
	}

	// One case carries the nested dispatch loop: reset, loop with its
	// own switch, and the sentinel check that leaves it.
	var nested *WhileStmt
	var reset bool
	for _, c := range sw.Cases {
		for i, s := range c.Body {
			w, ok := s.(*WhileStmt)
			if !ok {
				continue
			}
			nested = w
			if i > 0 {
				es, ok := c.Body[i-1].(*ExprStmt)
				if ok {
					a, ok := es.E.(*AssignExpr)
					reset = ok && a.Target.(*Ident).Name == inner && a.Value.(*IntLit).Value == 0
				}
			}
		}
	}
	if nested == nil {
		t.Fatal("no case carries the nested dispatch loop")
	}
	if !reset {
		t.Error("nested machine is not reset to state 0 before dispatch")
	}
	if len(nested.Body.List) != 2 {
		t.Fatalf("nested dispatch body has %d statements, want switch plus exit check", len(nested.Body.List))
	}
	nsw, ok := nested.Body.List[0].(*SwitchStmt)
	if !ok || nsw.Tag.(*Ident).Name != inner {
		t.Fatalf("nested dispatch switches on %v, want %s", nested.Body.List[0], inner)
	}
	exit, ok := nested.Body.List[1].(*IfStmt)
	if !ok {
		t.Fatalf("nested dispatch ends with %T, want the exit check", nested.Body.List[1])
	}
	cmp := exit.Cond.(*BinaryExpr)
	if cmp.Op != EQUALS || cmp.Left.(*Ident).Name != inner || cmp.Right.(*IntLit).Value != -1 {
		t.Errorf("exit check is %v, want %s == -1", exit.Cond, inner)
	}

	// The nested machine's states are dense from 0 and something inside
	// it assigns the exit sentinel.
	values := caseValues(t, nsw)
	for i := int32(0); i < int32(len(values)); i++ {
		if !values[i] {
			t.Errorf("nested state %d missing", i)
		}
	}
	sentinel := false
	for _, c := range nsw.Cases {
		if statesAssigned(c.Body, inner)[-1] {
			sentinel = true
		}
	}
	if !sentinel {
		t.Error("nothing inside the nested machine assigns the exit sentinel")
	}
}

// Declarations in inner scopes hoist to the function top; clashing names
// from sibling scopes are kept apart by renaming.
func TestFlattenHoistsScopedDeclarations(t *testing.T) {
	src := `
int scopes(int n) {
	if (n > 0) {
		int x = 1;
		n = n + x;
	} else {
		int x = 2;
		n = n + x;
	}
	return n;
}
`
	out := flattenSource(t, src, 17)
	fn := out.Function("scopes")
	dispatchOf(t, fn)

	names := make(map[string]bool)
	for _, s := range fn.Body.List[:len(fn.Body.List)-1] {
		names[s.(*VarDecl).Name] = true
	}
	if !names["x"] || !names["x_1"] {
		t.Fatalf("sibling locals hoisted as %v, want x and x_1", names)
	}

	// Both arms still initialize their own copy.
	var initialized int
	eachStmt(fn.Body.List, func(s Stmt) {
		es, ok := s.(*ExprStmt)
		if !ok {
			return
		}
		if a, ok := es.E.(*AssignExpr); ok {
			if id, ok := a.Target.(*Ident); ok && (id.Name == "x" || id.Name == "x_1") {
				initialized++
			}
		}
	})
	if initialized != 2 {
		t.Errorf("found %d initializing assignments, want 2", initialized)
	}
}

func TestFlattenLowersSwitchToComparisonChain(t *testing.T) {
	src := `
int classify(int n) {
	int r = 0;
	switch (n) {
	case 1:
		r = 10;
		break;
	default:
		r = 7;
		break;
	}
	return r;
}
`
	out := flattenSource(t, src, 19)
	fn := out.Function("classify")
	_, sw := dispatchOf(t, fn)

	// The source switch is gone; the only switch left is the dispatch.
	var switches int
	eachStmt(fn.Body.List, func(s Stmt) {
		if _, ok := s.(*SwitchStmt); ok {
			switches++
		}
	})
	if switches != 1 {
		t.Fatalf("found %d switches after flattening, want only the dispatch", switches)
	}

	// The tag is materialized into a hoisted temporary compared by an
	// if chain in one of the states.
	var chain *IfStmt
	for _, c := range sw.Cases {
		for _, s := range c.Body {
			ifs, ok := s.(*IfStmt)
			if !ok {
				continue
			}
			cmp, ok := ifs.Cond.(*BinaryExpr)
			if ok && cmp.Op == EQUALS {
				if id, ok := cmp.Left.(*Ident); ok && id.Name == "__sw1" {
					chain = ifs
				}
			}
		}
	}
	if chain == nil {
		t.Fatal("no state compares the materialized switch tag")
	}
	if lit, ok := chain.Cond.(*BinaryExpr).Right.(*IntLit); !ok || lit.Value != 1 {
		t.Errorf("chain compares against %v, want the case value 1", chain.Cond.(*BinaryExpr).Right)
	}
}

func TestFlattenImplicitReturn(t *testing.T) {
	src := `
void tick(int n) {
	n = n + 1;
}

int late(int n) {
	n = n + 1;
}
`
	out := flattenSource(t, src, 23)

	returns := func(fn *FuncDecl) []*ReturnStmt {
		var rs []*ReturnStmt
		eachStmt(fn.Body.List, func(s Stmt) {
			if r, ok := s.(*ReturnStmt); ok {
				rs = append(rs, r)
			}
		})
		return rs
	}

	rs := returns(out.Function("tick"))
	if len(rs) != 1 || rs[0].Result != nil {
		t.Errorf("void function got returns %v, want one bare return", rs)
	}
	rs = returns(out.Function("late"))
	if len(rs) != 1 {
		t.Fatalf("got %d returns, want 1", len(rs))
	}
	if lit, ok := rs[0].Result.(*IntLit); !ok || lit.Value != 0 {
		t.Errorf("fall-off return yields %v, want 0", rs[0].Result)
	}
}

// The same seed must reproduce the same flattening, case order included.
func TestFlattenDeterministic(t *testing.T) {
	src := `
int main(void) {
	int total = 0;
	for (int i = 0; i < 4; i++) {
		int j = 0;
		while (j < 5) {
			total = total + 1;
			j = j + 1;
		}
	}
	if (total > 10) {
		total = total - 10;
	}
	return total;
}
`
	a := EmitC(flattenSource(t, src, 42))
	b := EmitC(flattenSource(t, src, 42))
	if a != b {
		t.Error("same seed produced different flattenings")
	}
}
