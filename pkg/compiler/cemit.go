package compiler

import (
	"fmt"
	"strings"
)

// The C emitter renders a program back to compilable source. Obfuscated
// output goes through it, so everything it prints must survive another
// trip through the lexer and parser: strings escape every non-printable
// byte as three-digit octal, which cannot run into a following digit the
// way a hex escape can.

// EmitC renders prog as a C translation unit.
func EmitC(prog *Program) string {
	w := &cWriter{}
	for i, d := range prog.Decls {
		if i > 0 {
			w.nl()
		}
		w.decl(d)
	}
	return w.sb.String()
}

type cWriter struct {
	sb    strings.Builder
	depth int
}

func (w *cWriter) nl() { w.sb.WriteByte('\n') }

func (w *cWriter) line(format string, args ...interface{}) {
	for i := 0; i < w.depth; i++ {
		w.sb.WriteString("    ")
	}
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
}

// cdecl renders a C declarator: the type wrapped around the name.
// Pointers prepend a star to the name, arrays append a bound, and the
// recursion bottoms out at the base type. The subset cannot construct a
// pointer to an array, so no parenthesized declarators are needed.
func cdecl(t *Type, name string) string {
	switch t.Kind {
	case TypePointer:
		return cdecl(t.Elem, "*"+name)
	case TypeArray:
		return cdecl(t.Elem, fmt.Sprintf("%s[%d]", name, t.Len))
	case TypeStruct:
		if name == "" {
			return "struct " + t.Name
		}
		return "struct " + t.Name + " " + name
	default:
		if name == "" {
			return t.String()
		}
		return t.String() + " " + name
	}
}

func (w *cWriter) decl(d Decl) {
	switch d := d.(type) {
	case *StructDecl:
		w.line("struct %s {", d.Name)
		w.depth++
		for _, f := range d.Fields {
			w.line("%s;", cdecl(f.Type, f.Name))
		}
		w.depth--
		w.line("};")

	case *EnumDecl:
		// Values were resolved at parse time; print them explicitly so
		// the meaning is unchanged even out of context.
		var parts []string
		for _, m := range d.Members {
			parts = append(parts, fmt.Sprintf("%s = %d", m.Name, m.Value))
		}
		if d.Name != "" {
			w.line("enum %s { %s };", d.Name, strings.Join(parts, ", "))
		} else {
			w.line("enum { %s };", strings.Join(parts, ", "))
		}

	case *TypedefDecl:
		w.line("typedef %s;", cdecl(d.Type, d.Name))

	case *VarDecl:
		w.varDecl(d)

	case *FuncDecl:
		w.funcDecl(d)
	}
}

func (w *cWriter) varDecl(d *VarDecl) {
	prefix := ""
	if d.Extern {
		prefix = "extern "
	}
	if d.Init != nil {
		w.line("%s%s = %s;", prefix, cdecl(d.Type, d.Name), d.Init.String())
		return
	}
	w.line("%s%s;", prefix, cdecl(d.Type, d.Name))
}

func (w *cWriter) funcDecl(d *FuncDecl) {
	var params []string
	for _, p := range d.Params {
		params = append(params, cdecl(p.Type, p.Name))
	}
	if d.Variadic {
		params = append(params, "...")
	}
	sig := "void"
	if len(params) > 0 {
		sig = strings.Join(params, ", ")
	}
	head := fmt.Sprintf("%s(%s)", cdecl(d.Ret, d.Name), sig)

	if d.Body == nil {
		w.line("%s;", head)
		return
	}
	w.line("%s {", head)
	w.depth++
	for _, s := range d.Body.List {
		w.stmt(s)
	}
	w.depth--
	w.line("}")
}

func (w *cWriter) stmt(s Stmt) {
	switch s := s.(type) {
	case *ExprStmt:
		w.line("%s;", s.E)

	case *VarDecl:
		w.varDecl(s)

	case *BlockStmt:
		w.line("{")
		w.depth++
		for _, inner := range s.List {
			w.stmt(inner)
		}
		w.depth--
		w.line("}")

	case *IfStmt:
		w.ifChain(s)

	case *WhileStmt:
		w.line("while (%s) {", s.Cond)
		w.body(s.Body)
		w.line("}")

	case *DoWhileStmt:
		w.line("do {")
		w.body(s.Body)
		w.line("} while (%s);", s.Cond)

	case *ForStmt:
		w.line("for (%s %s; %s) {", w.forInit(s.Init), exprOrEmpty(s.Cond), exprOrEmpty(s.Post))
		w.body(s.Body)
		w.line("}")

	case *SwitchStmt:
		w.line("switch (%s) {", s.Tag)
		for _, c := range s.Cases {
			if c.Value != nil {
				w.line("case %s:", c.Value)
			} else {
				w.line("default:")
			}
			w.depth++
			for _, inner := range c.Body {
				w.stmt(inner)
			}
			w.depth--
		}
		w.line("}")

	case *BreakStmt:
		w.line("break;")

	case *ContinueStmt:
		w.line("continue;")

	case *ReturnStmt:
		if s.Result != nil {
			w.line("return %s;", s.Result)
		} else {
			w.line("return;")
		}
	}
}

// ifChain renders else-if ladders on one level instead of nesting.
func (w *cWriter) ifChain(s *IfStmt) {
	w.line("if (%s) {", s.Cond)
	w.body(s.Then)
	for {
		if s.Else == nil {
			w.line("}")
			return
		}
		if next, ok := s.Else.(*IfStmt); ok {
			w.line("} else if (%s) {", next.Cond)
			w.body(next.Then)
			s = next
			continue
		}
		w.line("} else {")
		w.depth++
		if b, ok := s.Else.(*BlockStmt); ok {
			for _, inner := range b.List {
				w.stmt(inner)
			}
		} else {
			w.stmt(s.Else)
		}
		w.depth--
		w.line("}")
		return
	}
}

func (w *cWriter) body(b *BlockStmt) {
	w.depth++
	for _, s := range b.List {
		w.stmt(s)
	}
	w.depth--
}

// forInit renders the first clause of a for header, semicolon included,
// since a declaration carries its own.
func (w *cWriter) forInit(init Stmt) string {
	switch init := init.(type) {
	case nil:
		return ";"
	case *VarDecl:
		if init.Init != nil {
			return fmt.Sprintf("%s = %s;", cdecl(init.Type, init.Name), init.Init)
		}
		return fmt.Sprintf("%s;", cdecl(init.Type, init.Name))
	case *ExprStmt:
		return fmt.Sprintf("%s;", init.E)
	}
	return ";"
}

func exprOrEmpty(e Expr) string {
	if e == nil {
		return ""
	}
	return e.String()
}

// quoteCString renders raw bytes as a double-quoted C literal.
func quoteCString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		writeCByte(&sb, s[i], '"')
	}
	sb.WriteByte('"')
	return sb.String()
}

// quoteCChar renders one byte as a single-quoted C literal.
func quoteCChar(b byte) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	writeCByte(&sb, b, '\'')
	sb.WriteByte('\'')
	return sb.String()
}

func writeCByte(sb *strings.Builder, b byte, quote byte) {
	switch b {
	case '\n':
		sb.WriteString(`\n`)
	case '\r':
		sb.WriteString(`\r`)
	case '\t':
		sb.WriteString(`\t`)
	case '\\':
		sb.WriteString(`\\`)
	case quote:
		sb.WriteByte('\\')
		sb.WriteByte(b)
	default:
		if b >= 0x20 && b < 0x7f {
			sb.WriteByte(b)
			return
		}
		fmt.Fprintf(sb, `\%03o`, b)
	}
}
