package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParser_GeneralizedCasts(t *testing.T) {
	input := `
	void setup(void) {
		int *p = (int *)0x1000;
		int **pp = (int **)p;
		struct node *n = (struct node *)0x2000;
		char *tag = (char *)n;
	}
	`
	prog := parseSource(t, input)

	nodeType := &Type{Kind: TypeStruct, Name: "node"}
	want := []Decl{
		&FuncDecl{
			Name: "setup",
			Ret:  voidType,
			Body: &BlockStmt{List: []Stmt{
				&VarDecl{
					Name: "p",
					Type: pointerTo(intType),
					Init: &CastExpr{To: pointerTo(intType), Inner: &IntLit{Value: 0x1000}},
				},
				&VarDecl{
					Name: "pp",
					Type: pointerTo(pointerTo(intType)),
					Init: &CastExpr{To: pointerTo(pointerTo(intType)), Inner: &Ident{Name: "p"}},
				},
				&VarDecl{
					Name: "n",
					Type: pointerTo(nodeType),
					Init: &CastExpr{To: pointerTo(nodeType), Inner: &IntLit{Value: 0x2000}},
				},
				&VarDecl{
					Name: "tag",
					Type: pointerTo(charType),
					Init: &CastExpr{To: pointerTo(charType), Inner: &Ident{Name: "n"}},
				},
			}},
		},
	}
	if diff := cmp.Diff(want, prog.Decls, ignorePositions); diff != "" {
		t.Errorf("cast tree mismatch (-want +got):\n%s", diff)
	}
}

// A cast applies to the unary expression after it, not to a whole binary
// expression.
func TestParser_CastBindsBeforeBinary(t *testing.T) {
	got := parseReturnExpr(t, "(char)x + 1").String()
	want := "((char)x + 1)"
	if got != want {
		t.Errorf("cast precedence: got %s, want %s", got, want)
	}

	got = parseReturnExpr(t, "(char)(x + 1)").String()
	want = "(char)(x + 1)"
	if got != want {
		t.Errorf("parenthesised cast: got %s, want %s", got, want)
	}
}

// A parenthesised typedef name is a cast once the alias is in scope.
func TestParser_TypedefCast(t *testing.T) {
	input := "typedef int cell_t;\nint widen(char c) { return (cell_t)c; }"
	prog := parseSource(t, input)

	fn := prog.Decls[1].(*FuncDecl)
	ret := fn.Body.List[0].(*ReturnStmt)
	cast, ok := ret.Result.(*CastExpr)
	if !ok {
		t.Fatalf("returned expression is %T, want *CastExpr", ret.Result)
	}
	if cast.To != intType {
		t.Errorf("cast target = %s, want int", cast.To)
	}
}
