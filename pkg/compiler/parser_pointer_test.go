package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParser_MultiLevelPointers(t *testing.T) {
	input := `
	int **pp;
	char ***ppp;
	struct node **node_pp;
	void f(int **a) { }
	`
	prog := parseSource(t, input)
	if len(prog.Decls) != 4 {
		t.Fatalf("got %d declarations, want 4", len(prog.Decls))
	}

	wantTypes := []string{"int**", "char***", "struct node**"}
	for i, want := range wantTypes {
		v, ok := prog.Decls[i].(*VarDecl)
		if !ok {
			t.Errorf("decl %d is %T, want *VarDecl", i, prog.Decls[i])
			continue
		}
		if got := v.Type.String(); got != want {
			t.Errorf("decl %d type = %s, want %s", i, got, want)
		}
	}

	fn, ok := prog.Decls[3].(*FuncDecl)
	if !ok {
		t.Fatalf("decl 3 is %T, want *FuncDecl", prog.Decls[3])
	}
	if len(fn.Params) != 1 {
		t.Fatalf("f has %d params, want 1", len(fn.Params))
	}
	if got := fn.Params[0].Type.String(); got != "int**" {
		t.Errorf("param type = %s, want int**", got)
	}
}

func TestParser_PointerExpressions(t *testing.T) {
	input := "void store(void) { int x; int *p; int **pp; *p = &x; x = **pp; }"
	prog := parseSource(t, input)
	body := prog.Decls[0].(*FuncDecl).Body.List

	want := []Stmt{
		&VarDecl{Name: "x", Type: intType},
		&VarDecl{Name: "p", Type: pointerTo(intType)},
		&VarDecl{Name: "pp", Type: pointerTo(pointerTo(intType))},
		&ExprStmt{E: &AssignExpr{
			Target: &UnaryExpr{Op: STAR, Operand: &Ident{Name: "p"}},
			Value:  &UnaryExpr{Op: AND, Operand: &Ident{Name: "x"}},
		}},
		&ExprStmt{E: &AssignExpr{
			Target: &Ident{Name: "x"},
			Value: &UnaryExpr{
				Op:      STAR,
				Operand: &UnaryExpr{Op: STAR, Operand: &Ident{Name: "pp"}},
			},
		}},
	}
	if diff := cmp.Diff(want, body, ignorePositions); diff != "" {
		t.Errorf("pointer statement mismatch (-want +got):\n%s", diff)
	}
}
