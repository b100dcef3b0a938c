package compiler

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// ignorePositions drops source lines and resolution metadata from tree
// comparisons, so tests assert shape rather than token coordinates.
var ignorePositions = cmp.FilterPath(func(p cmp.Path) bool {
	sf, ok := p.Last().(cmp.StructField)
	if !ok {
		return false
	}
	switch sf.Name() {
	case "Line", "T", "Sym":
		return true
	}
	return false
}, cmp.Ignore())

func parseSource(t *testing.T, src string) *Program {
	t.Helper()
	tokens, err := Lex(src)
	if err != nil {
		t.Fatalf("Lex(%q): %v", src, err)
	}
	prog, err := Parse(tokens, src, "test.c")
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return prog
}

// parseReturnExpr parses "int main(void) { return <expr>; }" and hands back
// the returned expression.
func parseReturnExpr(t *testing.T, expr string) Expr {
	t.Helper()
	prog := parseSource(t, "int main(void) { return "+expr+"; }")
	fn := prog.Decls[0].(*FuncDecl)
	ret := fn.Body.List[0].(*ReturnStmt)
	return ret.Result
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Decl
	}{
		{
			name:  "Global With Initializer",
			input: "int x = 10;",
			want: []Decl{
				&VarDecl{Name: "x", Type: intType, Init: &IntLit{Value: 10}, Global: true},
			},
		},
		{
			name:  "Global Array",
			input: "char buf[16];",
			want: []Decl{
				&VarDecl{Name: "buf", Type: arrayOf(charType, 16), Global: true},
			},
		},
		{
			name:  "Extern Declaration",
			input: "extern int shared_total;",
			want: []Decl{
				&VarDecl{Name: "shared_total", Type: intType, Global: true, Extern: true},
			},
		},
		{
			name:  "Pointer To Pointer",
			input: "int **pp;",
			want: []Decl{
				&VarDecl{Name: "pp", Type: pointerTo(pointerTo(intType)), Global: true},
			},
		},
		{
			name:  "Empty Function",
			input: "void reset(void) { }",
			want: []Decl{
				&FuncDecl{Name: "reset", Ret: voidType, Body: &BlockStmt{}},
			},
		},
		{
			name:  "Function With Parameters",
			input: "int add(int a, int b) { return a + b; }",
			want: []Decl{
				&FuncDecl{
					Name: "add",
					Ret:  intType,
					Params: []*Param{
						{Name: "a", Type: intType},
						{Name: "b", Type: intType},
					},
					Body: &BlockStmt{List: []Stmt{
						&ReturnStmt{Result: &BinaryExpr{
							Op:    PLUS,
							Left:  &Ident{Name: "a"},
							Right: &Ident{Name: "b"},
						}},
					}},
				},
			},
		},
		{
			name:  "Prototype",
			input: "int putchar(int c);",
			want: []Decl{
				&FuncDecl{Name: "putchar", Ret: intType, Params: []*Param{{Name: "c", Type: intType}}},
			},
		},
		{
			name:  "Unnamed Prototype Parameter",
			input: "int abs(int);",
			want: []Decl{
				&FuncDecl{Name: "abs", Ret: intType, Params: []*Param{{Name: "", Type: intType}}},
			},
		},
		{
			name:  "Variadic Prototype",
			input: "int printf(char *fmt, ...);",
			want: []Decl{
				&FuncDecl{
					Name:     "printf",
					Ret:      intType,
					Params:   []*Param{{Name: "fmt", Type: pointerTo(charType)}},
					Variadic: true,
				},
			},
		},
		{
			name:  "Array Parameters",
			input: "int sum(int a[], char w[3]);",
			want: []Decl{
				&FuncDecl{
					Name: "sum",
					Ret:  intType,
					Params: []*Param{
						{Name: "a", Type: pointerTo(intType)},
						{Name: "w", Type: arrayOf(charType, 3)},
					},
				},
			},
		},
		{
			name:  "Local Declaration And Assignment",
			input: "int main(void) { int y; y = 3; return y; }",
			want: []Decl{
				&FuncDecl{
					Name: "main",
					Ret:  intType,
					Body: &BlockStmt{List: []Stmt{
						&VarDecl{Name: "y", Type: intType},
						&ExprStmt{E: &AssignExpr{Target: &Ident{Name: "y"}, Value: &IntLit{Value: 3}}},
						&ReturnStmt{Result: &Ident{Name: "y"}},
					}},
				},
			},
		},
		{
			name:  "If Else Wraps Single Statements",
			input: "int sign(int n) { if (n < 0) return -1; else return 1; }",
			want: []Decl{
				&FuncDecl{
					Name:   "sign",
					Ret:    intType,
					Params: []*Param{{Name: "n", Type: intType}},
					Body: &BlockStmt{List: []Stmt{
						&IfStmt{
							Cond: &BinaryExpr{Op: LESS, Left: &Ident{Name: "n"}, Right: &IntLit{Value: 0}},
							Then: &BlockStmt{List: []Stmt{
								&ReturnStmt{Result: &UnaryExpr{Op: MINUS, Operand: &IntLit{Value: 1}}},
							}},
							Else: &BlockStmt{List: []Stmt{
								&ReturnStmt{Result: &IntLit{Value: 1}},
							}},
						},
					}},
				},
			},
		},
		{
			name:  "While Loop",
			input: "void spin(void) { while (1) { } }",
			want: []Decl{
				&FuncDecl{
					Name: "spin",
					Ret:  voidType,
					Body: &BlockStmt{List: []Stmt{
						&WhileStmt{Cond: &IntLit{Value: 1}, Body: &BlockStmt{}},
					}},
				},
			},
		},
		{
			name:  "Do While",
			input: "void once(void) { do { } while (0); }",
			want: []Decl{
				&FuncDecl{
					Name: "once",
					Ret:  voidType,
					Body: &BlockStmt{List: []Stmt{
						&DoWhileStmt{Body: &BlockStmt{}, Cond: &IntLit{Value: 0}},
					}},
				},
			},
		},
		{
			name:  "For With Declaration",
			input: "int sum(void) { int s; for (int i = 0; i < 4; i++) s = s + i; return s; }",
			want: []Decl{
				&FuncDecl{
					Name: "sum",
					Ret:  intType,
					Body: &BlockStmt{List: []Stmt{
						&VarDecl{Name: "s", Type: intType},
						&ForStmt{
							Init: &VarDecl{Name: "i", Type: intType, Init: &IntLit{Value: 0}},
							Cond: &BinaryExpr{Op: LESS, Left: &Ident{Name: "i"}, Right: &IntLit{Value: 4}},
							Post: &UnaryExpr{Op: PLUS_PLUS, Operand: &Ident{Name: "i"}, Post: true},
							Body: &BlockStmt{List: []Stmt{
								&ExprStmt{E: &AssignExpr{
									Target: &Ident{Name: "s"},
									Value:  &BinaryExpr{Op: PLUS, Left: &Ident{Name: "s"}, Right: &Ident{Name: "i"}},
								}},
							}},
						},
						&ReturnStmt{Result: &Ident{Name: "s"}},
					}},
				},
			},
		},
		{
			name:  "For With Empty Clauses",
			input: "void wait_forever(void) { for (;;) break; }",
			want: []Decl{
				&FuncDecl{
					Name: "wait_forever",
					Ret:  voidType,
					Body: &BlockStmt{List: []Stmt{
						&ForStmt{Body: &BlockStmt{List: []Stmt{&BreakStmt{}}}},
					}},
				},
			},
		},
		{
			name:  "Switch With Default",
			input: "int classify(int v) { switch (v) { case 1: return 10; default: return 0; } }",
			want: []Decl{
				&FuncDecl{
					Name:   "classify",
					Ret:    intType,
					Params: []*Param{{Name: "v", Type: intType}},
					Body: &BlockStmt{List: []Stmt{
						&SwitchStmt{
							Tag: &Ident{Name: "v"},
							Cases: []*CaseClause{
								{Value: &IntLit{Value: 1}, Body: []Stmt{&ReturnStmt{Result: &IntLit{Value: 10}}}},
								{Value: nil, Body: []Stmt{&ReturnStmt{Result: &IntLit{Value: 0}}}},
							},
						},
					}},
				},
			},
		},
		{
			name:  "Struct Definition",
			input: "struct point { int x; int y; char tag[8]; };",
			want: []Decl{
				&StructDecl{Name: "point", Fields: []*Field{
					{Name: "x", Type: intType},
					{Name: "y", Type: intType},
					{Name: "tag", Type: arrayOf(charType, 8)},
				}},
			},
		},
		{
			name:  "Enum With Explicit Values",
			input: "enum color { RED, GREEN = 5, BLUE };",
			want: []Decl{
				&EnumDecl{Name: "color", Members: []EnumMember{
					{Name: "RED", Value: 0},
					{Name: "GREEN", Value: 5},
					{Name: "BLUE", Value: 6},
				}},
			},
		},
		{
			name:  "Typedef Then Declaration",
			input: "typedef int cell_t;\ncell_t c;",
			want: []Decl{
				&TypedefDecl{Name: "cell_t", Type: intType},
				&VarDecl{Name: "c", Type: intType, Global: true},
			},
		},
		{
			name:  "String Initializer Holds Decoded Bytes",
			input: "char *greeting = \"hi\\n\";",
			want: []Decl{
				&VarDecl{
					Name:   "greeting",
					Type:   pointerTo(charType),
					Init:   &StrLit{Value: "hi\n"},
					Global: true,
				},
			},
		},
		{
			name:  "Char Initializer",
			input: "char newline = '\\n';",
			want: []Decl{
				&VarDecl{Name: "newline", Type: charType, Init: &CharLit{Value: 10}, Global: true},
			},
		},
		{
			name:  "Compound Assignment Desugars",
			input: "void bump(void) { int x; x -= 4; }",
			want: []Decl{
				&FuncDecl{
					Name: "bump",
					Ret:  voidType,
					Body: &BlockStmt{List: []Stmt{
						&VarDecl{Name: "x", Type: intType},
						&ExprStmt{E: &AssignExpr{
							Target: &Ident{Name: "x"},
							Value:  &BinaryExpr{Op: MINUS, Left: &Ident{Name: "x"}, Right: &IntLit{Value: 4}},
						}},
					}},
				},
			},
		},
		{
			name:  "Member Access Chain",
			input: "int take(struct box *b) { return b->inner.val; }",
			want: []Decl{
				&FuncDecl{
					Name:   "take",
					Ret:    intType,
					Params: []*Param{{Name: "b", Type: pointerTo(&Type{Kind: TypeStruct, Name: "box"})}},
					Body: &BlockStmt{List: []Stmt{
						&ReturnStmt{Result: &MemberExpr{
							Base:  &MemberExpr{Base: &Ident{Name: "b"}, Field: "inner", Arrow: true},
							Field: "val",
						}},
					}},
				},
			},
		},
		{
			name:  "Call With Arguments",
			input: "int relay(int a) { return add(a, 1); }",
			want: []Decl{
				&FuncDecl{
					Name:   "relay",
					Ret:    intType,
					Params: []*Param{{Name: "a", Type: intType}},
					Body: &BlockStmt{List: []Stmt{
						&ReturnStmt{Result: &CallExpr{
							Name: "add",
							Args: []Expr{&Ident{Name: "a"}, &IntLit{Value: 1}},
						}},
					}},
				},
			},
		},
		{
			name:  "Bare Return",
			input: "void stop(void) { return; }",
			want: []Decl{
				&FuncDecl{
					Name: "stop",
					Ret:  voidType,
					Body: &BlockStmt{List: []Stmt{&ReturnStmt{}}},
				},
			},
		},
		{
			name:  "Empty Statements Dropped",
			input: "int main(void) { ;; return 0; }",
			want: []Decl{
				&FuncDecl{
					Name: "main",
					Ret:  intType,
					Body: &BlockStmt{List: []Stmt{&ReturnStmt{Result: &IntLit{Value: 0}}}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := parseSource(t, tt.input)
			if diff := cmp.Diff(tt.want, prog.Decls, ignorePositions); diff != "" {
				t.Errorf("Parse(%q) tree mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

// TestParse_Precedence checks operator binding through the parenthesised
// String rendering of the parsed expression.
func TestParse_Precedence(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"Xor Between Or And And", "a | b ^ c & d", "(a | (b ^ (c & d)))"},
		{"Equality Binds Tighter Than And", "a & b == c", "(a & (b == c))"},
		{"Shift Binds Tighter Than Relational", "a < b << c", "(a < (b << c))"},
		{"Additive Binds Tighter Than Shift", "a << b + c", "(a << (b + c))"},
		{"Shift Left Associative", "a << b << c", "((a << b) << c)"},
		{"Shift Then Mask", "a >> b & c", "((a >> b) & c)"},
		{"Complement Binds Tightest", "~a & b", "((~a) & b)"},
		{"Bitwise Or Above Logical And", "a | b && c | d", "((a | b) && (c | d))"},
		{"Logical And Above Logical Or", "a || b && c", "(a || (b && c))"},
		{"Parentheses Override", "(a | b) & c", "((a | b) & c)"},
		{"Mixed Arithmetic", "1 + 2 * 3 - 4", "((1 + (2 * 3)) - 4)"},
		{"Unary Minus Then Multiply", "-x * 3", "((-x) * 3)"},
		{"Ternary Right Associative", "a ? b : c ? d : e", "(a ? b : (c ? d : e))"},
		{"Assignment Right Associative", "a = b = c", "(a = (b = c))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseReturnExpr(t, tt.expr).String()
			if got != tt.want {
				t.Errorf("parse %q = %s, want %s", tt.expr, got, tt.want)
			}
		})
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Missing Semicolon", "int x = 10"},
		{"Invalid Variable Name", "int 123 = 4;"},
		{"Mismatched Parens", "int main(void) { return (1 + 2; }"},
		{"Mismatched Braces", "int main(void) { return 1;"},
		{"Invalid Factor", "int main(void) { int x; x = +; }"},
		{"Missing Pointer Name", "int *;"},
		{"Malformed Array", "int arr[;"},
		{"Array Size Zero", "int arr[0];"},
		{"Anonymous Struct", "struct { int x; };"},
		{"Unnamed Parameter With Body", "int twice(int) { return 0; }"},
		{"Trailing Comma In Params", "int f(int a,) { return a; }"},
		{"If Missing Parens", "int main(void) { if 1 return 2; return 3; }"},
		{"For Missing Semicolon", "int main(void) { for (int i = 0 i < 3; i++) { } return 0; }"},
		{"Statement At File Scope", "return 1;"},
		{"Multiple Defaults In Switch", "int main(void) { switch (1) { default: return 1; default: return 2; } }"},
		{"Extern In Function Body", "int main(void) { extern int x; return 0; }"},
		{"Extern With Initializer", "extern int x = 5;"},
		{"Struct Definition In Function", "int main(void) { struct s { int v; }; return 0; }"},
		{"Call Through Expression", "int main(void) { return (1)(2); }"},
		{"Integer Out Of Range", "int main(void) { return 4294967296; }"},
		{"Enum Value Not Constant", "enum e { A = x };"},
		{"Typedef Missing Name", "typedef int;"},
		{"Do Without While", "int main(void) { do { } return 0; }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Lex(tt.input)
			if err != nil {
				t.Fatalf("Lex(%q): %v", tt.input, err)
			}
			_, err = Parse(tokens, tt.input, "test.c")
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want syntax error", tt.input)
			}
			var ce *Error
			if !errors.As(err, &ce) || ce.Code != SyntaxInput {
				t.Errorf("Parse(%q) = %v, want a %s error", tt.input, err, SyntaxInput)
			}
		})
	}
}
