package compiler

import "testing"

func dceSource(t *testing.T, src string) *Program {
	t.Helper()
	prog, _ := analyzeSource(t, src)
	return EliminateDeadCode(prog)
}

func TestDCETruncatesAfterTerminator(t *testing.T) {
	src := `
int main(void) {
	while (1) {
		break;
		putchar(65);
	}
	return 1;
	putchar(66);
}
`
	fn := dceSource(t, src).Function("main")
	if len(fn.Body.List) != 2 {
		t.Fatalf("main has %d statements, want 2", len(fn.Body.List))
	}
	loop, ok := fn.Body.List[0].(*WhileStmt)
	if !ok {
		t.Fatalf("first statement is %T, want the loop", fn.Body.List[0])
	}
	if len(loop.Body.List) != 1 {
		t.Errorf("loop body has %d statements, want only the break", len(loop.Body.List))
	}
	if _, ok := fn.Body.List[1].(*ReturnStmt); !ok {
		t.Errorf("second statement is %T, want the return", fn.Body.List[1])
	}
}

func TestDCEPrunesConstantBranches(t *testing.T) {
	src := `
int main(void) {
	int r;
	r = 0;
	if (1) {
		r = r + 1;
	} else {
		r = 100;
	}
	if (0) {
		r = 200;
	}
	if (0) {
		r = 300;
	} else {
		r = r + 2;
	}
	return r;
}
`
	fn := dceSource(t, src).Function("main")
	if len(fn.Body.List) != 5 {
		t.Fatalf("main has %d statements, want 5", len(fn.Body.List))
	}
	for _, s := range fn.Body.List {
		if _, ok := s.(*IfStmt); ok {
			t.Fatal("a constant if survived elimination")
		}
	}
	// Taken branches remain as their own blocks.
	then1, ok := fn.Body.List[2].(*BlockStmt)
	if !ok {
		t.Fatalf("statement 2 is %T, want the taken then-branch", fn.Body.List[2])
	}
	if len(then1.List) != 1 {
		t.Errorf("taken branch has %d statements, want 1", len(then1.List))
	}
	if _, ok := fn.Body.List[3].(*BlockStmt); !ok {
		t.Errorf("statement 3 is %T, want the taken else-branch", fn.Body.List[3])
	}
}

func TestDCEPrunesEnumConstantBranch(t *testing.T) {
	src := `
enum flags { OFF = 0, ON = 1 };

int main(void) {
	int r;
	r = 5;
	if (OFF) {
		r = 1;
	}
	while (OFF) {
		r = 2;
	}
	if (ON) {
		r = r + 1;
	}
	return r;
}
`
	fn := dceSource(t, src).Function("main")
	for _, s := range fn.Body.List {
		switch s.(type) {
		case *IfStmt, *WhileStmt:
			t.Fatalf("%T conditioned on an enum constant survived", s)
		}
	}
	if len(fn.Body.List) != 4 {
		t.Errorf("main has %d statements, want 4", len(fn.Body.List))
	}
}

func TestDCEDropsConstantFalseWhile(t *testing.T) {
	src := `
int main(void) {
	int n;
	n = 5;
	while (0) {
		n = 9;
	}
	while (n > 0) {
		n--;
	}
	return n;
}
`
	fn := dceSource(t, src).Function("main")
	loops := 0
	for _, s := range fn.Body.List {
		if _, ok := s.(*WhileStmt); ok {
			loops++
		}
	}
	if loops != 1 {
		t.Errorf("main has %d loops, want only the runtime one", loops)
	}
}

// A do-while body always runs once, whatever the condition folded to.
func TestDCEKeepsDoWhile(t *testing.T) {
	src := `
int main(void) {
	do {
		putchar(65);
	} while (0);
	return 0;
}
`
	fn := dceSource(t, src).Function("main")
	if _, ok := fn.Body.List[0].(*DoWhileStmt); !ok {
		t.Fatalf("first statement is %T, want the do-while kept", fn.Body.List[0])
	}
}

func TestDCEForWithFalseCondition(t *testing.T) {
	src := `
int main(void) {
	int i;
	i = 3;
	for (i = 9; 0; i++) {
		putchar(65);
	}
	for (int j = 1; 0; j++) {
		putchar(66);
	}
	return i;
}
`
	fn := dceSource(t, src).Function("main")
	if len(fn.Body.List) != 4 {
		t.Fatalf("main has %d statements, want 4", len(fn.Body.List))
	}
	// The first loop's init assigns a live variable and survives in its own
	// block; the second loop, init included, is dead and vanishes.
	block, ok := fn.Body.List[2].(*BlockStmt)
	if !ok {
		t.Fatalf("statement 2 is %T, want the kept init block", fn.Body.List[2])
	}
	es, ok := block.List[0].(*ExprStmt)
	if !ok {
		t.Fatalf("init block holds %T, want the assignment", block.List[0])
	}
	if _, ok := es.E.(*AssignExpr); !ok {
		t.Errorf("init block expression is %T, want an assignment", es.E)
	}
	for _, s := range fn.Body.List {
		if _, ok := s.(*ForStmt); ok {
			t.Fatal("a constant-false for loop survived")
		}
	}
}

func TestDCEDropsUnreadLocals(t *testing.T) {
	src := `
int bump(int n) {
	return n + 1;
}

int main(void) {
	int unused;
	unused = 41;
	int keep;
	keep = bump(1);
	int effect;
	effect = bump(2);
	int silent = 7;
	return keep;
}
`
	fn := dceSource(t, src).Function("main")
	if len(fn.Body.List) != 4 {
		t.Fatalf("main has %d statements, want 4", len(fn.Body.List))
	}
	for _, s := range fn.Body.List {
		if d, ok := s.(*VarDecl); ok && d.Name != "keep" {
			t.Errorf("dead local %q survived", d.Name)
		}
	}
	// The write to effect is gone but its call is not.
	es, ok := fn.Body.List[2].(*ExprStmt)
	if !ok {
		t.Fatalf("statement 2 is %T, want an expression statement", fn.Body.List[2])
	}
	if _, ok := es.E.(*CallExpr); !ok {
		t.Errorf("statement 2 expression is %T, want the bare call kept", es.E)
	}
}

// Unused-local removal is name based, so a name declared in two scopes is
// never removed.
func TestDCEKeepsShadowedNames(t *testing.T) {
	src := `
int main(void) {
	int v;
	v = 1;
	{
		int v;
		v = 2;
	}
	return 0;
}
`
	fn := dceSource(t, src).Function("main")
	if len(fn.Body.List) != 4 {
		t.Fatalf("main has %d statements, want 4", len(fn.Body.List))
	}
	inner, ok := fn.Body.List[2].(*BlockStmt)
	if !ok {
		t.Fatalf("statement 2 is %T, want the inner block", fn.Body.List[2])
	}
	if len(inner.List) != 2 {
		t.Errorf("inner block has %d statements, want 2", len(inner.List))
	}
}

func TestDCEDropsPureExpressionStatements(t *testing.T) {
	src := `
int main(void) {
	int x;
	x = 2;
	x + 3;
	x == 2;
	x++;
	return x;
}
`
	fn := dceSource(t, src).Function("main")
	if len(fn.Body.List) != 4 {
		t.Fatalf("main has %d statements, want 4", len(fn.Body.List))
	}
	es, ok := fn.Body.List[2].(*ExprStmt)
	if !ok {
		t.Fatalf("statement 2 is %T, want the increment", fn.Body.List[2])
	}
	if _, ok := es.E.(*UnaryExpr); !ok {
		t.Errorf("statement 2 expression is %T, want the increment kept", es.E)
	}
}

func TestDCERemovesUnreachableFunctions(t *testing.T) {
	src := `
int orphan(void);

int used(int n) {
	return n * 2;
}

int orphan(void) {
	return 9;
}

int chained(void) {
	return orphan();
}

int main(void) {
	return used(3);
}
`
	out := dceSource(t, src)
	if out.Function("used") == nil {
		t.Error("reachable function was removed")
	}
	for _, d := range out.Decls {
		fn, ok := d.(*FuncDecl)
		if !ok {
			continue
		}
		if fn.Name == "orphan" || fn.Name == "chained" {
			t.Errorf("unreachable function %q survived (body: %v)", fn.Name, fn.Body != nil)
		}
	}
}

// A unit without a main keeps every definition: any of them may be called
// from outside.
func TestDCEKeepsFunctionsWithoutMain(t *testing.T) {
	src := `
int alpha(void) {
	return 1;
}

int beta(void) {
	return 2;
}
`
	out := dceSource(t, src)
	if out.Function("alpha") == nil || out.Function("beta") == nil {
		t.Error("library function removed from a unit without main")
	}
}

func TestDCEKeepsGlobals(t *testing.T) {
	src := `
int never_read;

int main(void) {
	return 0;
}
`
	out := dceSource(t, src)
	found := false
	for _, d := range out.Decls {
		if v, ok := d.(*VarDecl); ok && v.Name == "never_read" {
			found = true
		}
	}
	if !found {
		t.Error("global removed; elimination only covers locals and functions")
	}
}

func TestDCEPreservesInput(t *testing.T) {
	prog, _ := analyzeSource(t, "int main(void) { return 1; putchar(7); }")
	out := EliminateDeadCode(prog)
	if got := len(prog.Function("main").Body.List); got != 2 {
		t.Errorf("input tree mutated: %d statements", got)
	}
	if got := len(out.Function("main").Body.List); got != 1 {
		t.Errorf("output has %d statements, want 1", got)
	}
}
