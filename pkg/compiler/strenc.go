package compiler

import (
	"fmt"
	"math/rand"
)

// String encryption keeps literal text out of the produced assembly.
// Every string literal inside a function body is XOR-folded with a random
// single-byte key, stored encrypted in a generated global, and replaced
// by a call that decrypts it into a dedicated buffer at run time. The
// decryptor is ordinary code appended to the tree, so later passes
// flatten and compile it like anything the user wrote.
//
// Initializers of file-scope variables must stay constant expressions and
// are left alone.

const decryptName = "__rc_dec"

const decryptSrc = `
char *__rc_dec(char *src, char *dst, int len, int key) {
	int i = 0;
	while (i < len) {
		dst[i] = src[i] ^ key;
		i = i + 1;
	}
	dst[len] = 0;
	return dst;
}
`

// decryptDecl parses the run-time decryptor from source. The source is
// fixed, so a failure here is a bug in the front end, not in user input.
func decryptDecl() *FuncDecl {
	tokens, err := Lex(decryptSrc)
	if err != nil {
		panic("strenc: lexing decryptor: " + err.Error())
	}
	prog, err := Parse(tokens, decryptSrc, "<generated>")
	if err != nil {
		panic("strenc: parsing decryptor: " + err.Error())
	}
	fns := prog.Functions()
	if len(fns) != 1 {
		panic("strenc: decryptor source must define exactly one function")
	}
	return fns[0]
}

type encryptor struct {
	rng     *rand.Rand
	n       int
	globals []Decl
}

// EncryptStrings returns a copy of prog with every string literal in a
// function body replaced by a decrypting call. Keys are drawn from rng,
// one per literal, never zero.
func EncryptStrings(prog *Program, rng *rand.Rand) *Program {
	out := prog.Clone()
	enc := &encryptor{rng: rng}
	for _, decl := range out.Decls {
		if fn, ok := decl.(*FuncDecl); ok && fn.Body != nil {
			rewriteAllExprs(fn.Body.List, enc.rewrite)
		}
	}
	if len(enc.globals) == 0 {
		return out
	}
	generated := append(enc.globals, Decl(decryptDecl()))
	out.Decls = spliceBeforeFirstFunc(out.Decls, generated)
	return out
}

func (enc *encryptor) rewrite(e Expr) Expr {
	lit, ok := e.(*StrLit)
	if !ok {
		return e
	}
	enc.n++
	key := byte(enc.rng.Intn(255) + 1)

	plain := []byte(lit.Value)
	cipher := make([]byte, len(plain))
	for i, b := range plain {
		cipher[i] = b ^ key
	}

	charPtr := pointerTo(charType)
	encName := fmt.Sprintf("__rc_e%d", enc.n)
	bufName := fmt.Sprintf("__rc_b%d", enc.n)
	enc.globals = append(enc.globals,
		&VarDecl{
			Name:   encName,
			Type:   charPtr,
			Init:   &StrLit{Value: string(cipher), Line: lit.Line, T: charPtr},
			Global: true,
			Line:   lit.Line,
		},
		&VarDecl{
			Name:   bufName,
			Type:   arrayOf(charType, int32(len(plain)+1)),
			Global: true,
			Line:   lit.Line,
		},
	)

	return &CallExpr{
		Name: decryptName,
		Args: []Expr{
			&Ident{Name: encName, Line: lit.Line, T: charPtr},
			&Ident{Name: bufName, Line: lit.Line, T: pointerTo(charType)},
			&IntLit{Value: int32(len(plain)), Line: lit.Line, T: intType},
			&IntLit{Value: int32(key), Line: lit.Line, T: intType},
		},
		Line: lit.Line,
		T:    charPtr,
	}
}

// spliceBeforeFirstFunc inserts generated declarations ahead of the first
// function so everything they name is declared before use.
func spliceBeforeFirstFunc(decls, generated []Decl) []Decl {
	at := len(decls)
	for i, d := range decls {
		if _, ok := d.(*FuncDecl); ok {
			at = i
			break
		}
	}
	out := make([]Decl, 0, len(decls)+len(generated))
	out = append(out, decls[:at]...)
	out = append(out, generated...)
	out = append(out, decls[at:]...)
	return out
}
