package compiler

import (
	"fmt"
	"strings"
)

// The code generator lowers an analyzed tree to 32-bit x86 assembly in
// AT&T syntax, one translation unit per call. Calls follow cdecl:
// arguments are pushed right to left, the caller pops them, and results
// come back in %eax. Locals live below a conventional %ebp frame whose
// layout is computed here, in generation order, since only the back end
// knows how wide each slot spills.
//
// Evaluation is accumulator style. An expression leaves its value in
// %eax, a storage location leaves its address in %eax, and binary
// operators stage the left operand on the stack. char values are
// unsigned: every byte load zero-extends and every byte store truncates.
//
// A construct the back end cannot express reports UnsupportedConstruct,
// and no assembly is produced at all.

// Generate emits assembly for prog. On error the output is empty.
func Generate(prog *Program, table *SymbolTable) (string, error) {
	g := &codegen{
		table:  table,
		frame:  make(map[*VarDecl]int32),
		strtab: make(map[string]string),
	}
	if err := g.run(prog); err != nil {
		return "", err
	}
	return g.text.String() + g.data.String() + g.rodata(), nil
}

type codegen struct {
	table  *SymbolTable
	text   strings.Builder
	data   strings.Builder
	fname  string
	labels int

	// string literal pool, deduplicated by content
	strtab map[string]string
	strs   []string

	frame  map[*VarDecl]int32
	scopes []map[string]varLoc
	loops  []loopLabels
}

// varLoc is a resolved variable reference: an %ebp offset for locals and
// parameters, a symbol name for globals.
type varLoc struct {
	offset int32
	typ    *Type
	global bool
	name   string
}

// loopLabels are the jump targets of an enclosing breakable construct. A
// switch entry has an empty continue target; continue skips past it to
// the nearest loop.
type loopLabels struct {
	brk  string
	cont string
}

func (g *codegen) ins(format string, args ...interface{}) {
	g.text.WriteByte('\t')
	fmt.Fprintf(&g.text, format, args...)
	g.text.WriteByte('\n')
}

func (g *codegen) at(label string) {
	g.text.WriteString(label)
	g.text.WriteString(":\n")
}

// newLabel draws the next jump target. The counter restarts in every
// function and the function name keeps the labels distinct file-wide.
func (g *codegen) newLabel() string {
	g.labels++
	return fmt.Sprintf(".L%s_%d", g.fname, g.labels)
}

// strLabel interns a literal in the read-only pool.
func (g *codegen) strLabel(s string) string {
	if l, ok := g.strtab[s]; ok {
		return l
	}
	l := fmt.Sprintf(".LC%d", len(g.strs))
	g.strtab[s] = l
	g.strs = append(g.strs, s)
	return l
}

func (g *codegen) rodata() string {
	if len(g.strs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\t.section .rodata\n")
	for i, s := range g.strs {
		fmt.Fprintf(&sb, ".LC%d:\n\t.string %s\n", i, quoteCString(s))
	}
	return sb.String()
}

func (g *codegen) run(prog *Program) error {
	g.text.WriteString("\t.text\n")
	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *FuncDecl:
			if d.Body == nil {
				continue
			}
			if err := g.function(d); err != nil {
				return err
			}
		case *VarDecl:
			if err := g.global(d); err != nil {
				return err
			}
		}
	}
	return nil
}

//  Globals

func (g *codegen) global(d *VarDecl) error {
	if d.Extern {
		return nil
	}
	size, err := g.table.SizeOf(d.Type)
	if err != nil {
		return errorf(InternalInconsistency, d.Line, "size of %q: %v", d.Name, err)
	}

	if d.Init == nil {
		align := int32(4)
		if d.Type.Kind == TypeChar || (d.Type.Kind == TypeArray && d.Type.Elem.Kind == TypeChar) {
			align = 1
		}
		fmt.Fprintf(&g.data, "\t.comm %s,%d,%d\n", d.Name, size, align)
		return nil
	}

	g.data.WriteString("\t.data\n")
	fmt.Fprintf(&g.data, "\t.globl %s\n", d.Name)
	if d.Type.Kind != TypeChar {
		g.data.WriteString("\t.align 4\n")
	}
	fmt.Fprintf(&g.data, "%s:\n", d.Name)

	if lit, ok := d.Init.(*StrLit); ok {
		fmt.Fprintf(&g.data, "\t.long %s\n", g.strLabel(lit.Value))
		return nil
	}
	v, ok := constExprValue(d.Init)
	if !ok {
		return errorf(InternalInconsistency, d.Line,
			"initializer of %q is not constant after analysis", d.Name)
	}
	if d.Type.Kind == TypeChar {
		fmt.Fprintf(&g.data, "\t.byte %d\n", int32(uint8(v)))
	} else {
		fmt.Fprintf(&g.data, "\t.long %d\n", v)
	}
	return nil
}

//  Functions

func (g *codegen) function(fn *FuncDecl) error {
	g.scopes = g.scopes[:0]
	g.loops = g.loops[:0]
	g.fname = fn.Name
	g.labels = 0

	size, err := g.layoutFrame(fn)
	if err != nil {
		return err
	}

	g.ins(".globl %s", fn.Name)
	g.ins(".type %s, @function", fn.Name)
	g.at(fn.Name)
	g.ins("pushl %%ebp")
	g.ins("movl %%esp, %%ebp")
	if size > 0 {
		g.ins("subl $%d, %%esp", size)
	}

	g.push()
	for i, p := range fn.Params {
		g.bind(p.Name, varLoc{offset: int32(8 + 4*i), typ: p.Type})
	}
	if err := g.stmts(fn.Body.List); err != nil {
		return err
	}
	g.pop()

	// Falling off the end of a value function returns 0. The tail is
	// dead when every path returns explicitly; the assembler does not
	// mind.
	if fn.Ret.Kind != TypeVoid {
		g.ins("movl $0, %%eax")
	}
	g.ins("leave")
	g.ins("ret")
	return nil
}

// layoutFrame assigns an %ebp offset to every declaration in the body,
// nested blocks included. Slots round up to word size so the stack stays
// aligned.
func (g *codegen) layoutFrame(fn *FuncDecl) (int32, error) {
	var total int32
	var walkErr error
	collectVarDecls(fn.Body.List, func(d *VarDecl) {
		if walkErr != nil {
			return
		}
		size, err := g.table.SizeOf(d.Type)
		if err != nil {
			walkErr = errorf(InternalInconsistency, d.Line, "size of %q: %v", d.Name, err)
			return
		}
		if rem := size % 4; rem != 0 {
			size += 4 - rem
		}
		total += size
		g.frame[d] = -total
	})
	return total, walkErr
}

func collectVarDecls(list []Stmt, visit func(*VarDecl)) {
	for _, s := range list {
		switch s := s.(type) {
		case *VarDecl:
			visit(s)
		case *BlockStmt:
			collectVarDecls(s.List, visit)
		case *IfStmt:
			collectVarDecls(s.Then.List, visit)
			if s.Else != nil {
				collectVarDecls([]Stmt{s.Else}, visit)
			}
		case *WhileStmt:
			collectVarDecls(s.Body.List, visit)
		case *DoWhileStmt:
			collectVarDecls(s.Body.List, visit)
		case *ForStmt:
			if s.Init != nil {
				collectVarDecls([]Stmt{s.Init}, visit)
			}
			collectVarDecls(s.Body.List, visit)
		case *SwitchStmt:
			for _, c := range s.Cases {
				collectVarDecls(c.Body, visit)
			}
		}
	}
}

//  Scopes

func (g *codegen) push() {
	g.scopes = append(g.scopes, make(map[string]varLoc))
}

func (g *codegen) pop() {
	g.scopes = g.scopes[:len(g.scopes)-1]
}

func (g *codegen) bind(name string, loc varLoc) {
	g.scopes[len(g.scopes)-1][name] = loc
}

// errEnumConst is a sentinel from resolve: the name is an enum constant
// whose value rides in the offset field of the returned location.
var errEnumConst = fmt.Errorf("enum constant")

// resolve finds a name the way the analyzer scoped it: innermost block
// first, then file scope.
func (g *codegen) resolve(name string, line int) (varLoc, error) {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		if loc, ok := g.scopes[i][name]; ok {
			return loc, nil
		}
	}
	if sym := g.table.Globals.Lookup(name); sym != nil {
		switch sym.Kind {
		case SymEnumConst:
			return varLoc{typ: intType, offset: sym.Const}, errEnumConst
		case SymGlobal:
			return varLoc{typ: sym.Type, global: true, name: name}, nil
		}
	}
	return varLoc{}, errorf(InternalInconsistency, line, "unresolved name %q survived analysis", name)
}

//  Statements

func (g *codegen) stmts(list []Stmt) error {
	for _, s := range list {
		if err := g.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *codegen) stmt(s Stmt) error {
	switch s := s.(type) {
	case *ExprStmt:
		return g.value(s.E)

	case *VarDecl:
		loc := varLoc{offset: g.frame[s], typ: s.Type}
		g.bind(s.Name, loc)
		if s.Init == nil {
			return nil
		}
		if err := g.value(s.Init); err != nil {
			return err
		}
		if s.Type.Kind == TypeChar {
			g.ins("movb %%al, %d(%%ebp)", loc.offset)
		} else {
			g.ins("movl %%eax, %d(%%ebp)", loc.offset)
		}
		return nil

	case *BlockStmt:
		g.push()
		err := g.stmts(s.List)
		g.pop()
		return err

	case *IfStmt:
		return g.ifStmt(s)

	case *WhileStmt:
		cond := g.newLabel()
		end := g.newLabel()
		g.at(cond)
		if err := g.value(s.Cond); err != nil {
			return err
		}
		g.ins("testl %%eax, %%eax")
		g.ins("je %s", end)
		g.loops = append(g.loops, loopLabels{brk: end, cont: cond})
		g.push()
		err := g.stmts(s.Body.List)
		g.pop()
		g.loops = g.loops[:len(g.loops)-1]
		if err != nil {
			return err
		}
		g.ins("jmp %s", cond)
		g.at(end)
		return nil

	case *DoWhileStmt:
		body := g.newLabel()
		cond := g.newLabel()
		end := g.newLabel()
		g.at(body)
		g.loops = append(g.loops, loopLabels{brk: end, cont: cond})
		g.push()
		err := g.stmts(s.Body.List)
		g.pop()
		g.loops = g.loops[:len(g.loops)-1]
		if err != nil {
			return err
		}
		g.at(cond)
		if err := g.value(s.Cond); err != nil {
			return err
		}
		g.ins("testl %%eax, %%eax")
		g.ins("jne %s", body)
		g.at(end)
		return nil

	case *ForStmt:
		g.push()
		defer g.pop()
		if s.Init != nil {
			if err := g.stmt(s.Init); err != nil {
				return err
			}
		}
		cond := g.newLabel()
		post := g.newLabel()
		end := g.newLabel()
		g.at(cond)
		if s.Cond != nil {
			if err := g.value(s.Cond); err != nil {
				return err
			}
			g.ins("testl %%eax, %%eax")
			g.ins("je %s", end)
		}
		g.loops = append(g.loops, loopLabels{brk: end, cont: post})
		g.push()
		err := g.stmts(s.Body.List)
		g.pop()
		g.loops = g.loops[:len(g.loops)-1]
		if err != nil {
			return err
		}
		g.at(post)
		if s.Post != nil {
			if err := g.value(s.Post); err != nil {
				return err
			}
		}
		g.ins("jmp %s", cond)
		g.at(end)
		return nil

	case *SwitchStmt:
		return g.switchStmt(s)

	case *BreakStmt:
		if len(g.loops) == 0 {
			return errorf(InternalInconsistency, s.Line, "break outside a loop survived analysis")
		}
		g.ins("jmp %s", g.loops[len(g.loops)-1].brk)
		return nil

	case *ContinueStmt:
		for i := len(g.loops) - 1; i >= 0; i-- {
			if g.loops[i].cont != "" {
				g.ins("jmp %s", g.loops[i].cont)
				return nil
			}
		}
		return errorf(InternalInconsistency, s.Line, "continue outside a loop survived analysis")

	case *ReturnStmt:
		if s.Result != nil {
			if err := g.value(s.Result); err != nil {
				return err
			}
		}
		g.ins("leave")
		g.ins("ret")
		return nil
	}
	return errorf(InternalInconsistency, s.Pos(), "unhandled statement %T", s)
}

func (g *codegen) ifStmt(s *IfStmt) error {
	if err := g.value(s.Cond); err != nil {
		return err
	}
	g.ins("testl %%eax, %%eax")
	end := g.newLabel()
	target := end
	if s.Else != nil {
		target = g.newLabel()
	}
	g.ins("je %s", target)

	g.push()
	err := g.stmts(s.Then.List)
	g.pop()
	if err != nil {
		return err
	}

	if s.Else != nil {
		g.ins("jmp %s", end)
		g.at(target)
		g.push()
		err := g.stmt(s.Else)
		g.pop()
		if err != nil {
			return err
		}
	}
	g.at(end)
	return nil
}

// switchStmt lowers to a compare chain. Case bodies are emitted in
// source order so falling through one label lands in the next, which is
// C's behavior.
func (g *codegen) switchStmt(s *SwitchStmt) error {
	if err := g.value(s.Tag); err != nil {
		return err
	}
	end := g.newLabel()

	labels := make([]string, len(s.Cases))
	defaultLabel := end
	for i, c := range s.Cases {
		labels[i] = g.newLabel()
		if c.Value == nil {
			defaultLabel = labels[i]
			continue
		}
		v, ok := constExprValue(c.Value)
		if !ok {
			return errorf(InternalInconsistency, c.Line, "non-constant case label survived analysis")
		}
		g.ins("cmpl $%d, %%eax", v)
		g.ins("je %s", labels[i])
	}
	g.ins("jmp %s", defaultLabel)

	g.loops = append(g.loops, loopLabels{brk: end})
	g.push()
	for i, c := range s.Cases {
		g.at(labels[i])
		if err := g.stmts(c.Body); err != nil {
			g.pop()
			g.loops = g.loops[:len(g.loops)-1]
			return err
		}
	}
	g.pop()
	g.loops = g.loops[:len(g.loops)-1]
	g.at(end)
	return nil
}

//  Expressions

// value evaluates e into %eax. An array evaluates to its address, which
// is how it decays.
func (g *codegen) value(e Expr) error {
	switch e := e.(type) {
	case *IntLit:
		g.ins("movl $%d, %%eax", e.Value)
		return nil

	case *CharLit:
		g.ins("movl $%d, %%eax", int32(e.Value))
		return nil

	case *StrLit:
		g.ins("movl $%s, %%eax", g.strLabel(e.Value))
		return nil

	case *Ident:
		loc, err := g.resolve(e.Name, e.Line)
		if err == errEnumConst {
			g.ins("movl $%d, %%eax", loc.offset)
			return nil
		}
		if err != nil {
			return err
		}
		return g.loadVar(loc, e.Line)

	case *BinaryExpr:
		return g.binary(e)

	case *LogicalExpr:
		return g.logical(e)

	case *UnaryExpr:
		return g.unary(e)

	case *AssignExpr:
		return g.assign(e)

	case *CallExpr:
		for i := len(e.Args) - 1; i >= 0; i-- {
			if err := g.value(e.Args[i]); err != nil {
				return err
			}
			g.ins("pushl %%eax")
		}
		g.ins("call %s", e.Name)
		if n := len(e.Args); n > 0 {
			g.ins("addl $%d, %%esp", 4*n)
		}
		return nil

	case *IndexExpr:
		if err := g.address(e); err != nil {
			return err
		}
		return g.loadMem(e.Type())

	case *MemberExpr:
		if err := g.address(e); err != nil {
			return err
		}
		return g.loadMem(e.Type())

	case *TernaryExpr:
		if err := g.value(e.Cond); err != nil {
			return err
		}
		g.ins("testl %%eax, %%eax")
		els := g.newLabel()
		end := g.newLabel()
		g.ins("je %s", els)
		if err := g.value(e.Then); err != nil {
			return err
		}
		g.ins("jmp %s", end)
		g.at(els)
		if err := g.value(e.Else); err != nil {
			return err
		}
		g.at(end)
		return nil

	case *CastExpr:
		if err := g.value(e.Inner); err != nil {
			return err
		}
		if e.To.Kind == TypeChar {
			g.ins("movzbl %%al, %%eax")
		}
		return nil

	case *SizeofExpr:
		t := e.TypeArg
		if t == nil {
			t = e.ExprArg.Type()
		}
		size, err := g.table.SizeOf(t)
		if err != nil {
			return errorf(UnsupportedConstruct, e.Line, "sizeof: %v", err)
		}
		g.ins("movl $%d, %%eax", size)
		return nil
	}
	return errorf(InternalInconsistency, e.Pos(), "unhandled expression %T", e)
}

func (g *codegen) loadVar(loc varLoc, line int) error {
	switch {
	case loc.typ.Kind == TypeStruct:
		return errorf(UnsupportedConstruct, line,
			"a struct has no scalar value; read a member or take its address")
	case loc.global && loc.typ.Kind == TypeArray:
		g.ins("movl $%s, %%eax", loc.name)
	case loc.global && loc.typ.Kind == TypeChar:
		g.ins("movzbl %s, %%eax", loc.name)
	case loc.global:
		g.ins("movl %s, %%eax", loc.name)
	case loc.typ.Kind == TypeArray:
		g.ins("leal %d(%%ebp), %%eax", loc.offset)
	case loc.typ.Kind == TypeChar:
		g.ins("movzbl %d(%%ebp), %%eax", loc.offset)
	default:
		g.ins("movl %d(%%ebp), %%eax", loc.offset)
	}
	return nil
}

// loadMem turns the address in %eax into the value it points at. Array
// and struct addresses are already the value.
func (g *codegen) loadMem(t *Type) error {
	switch t.Kind {
	case TypeArray, TypeStruct:
		return nil
	case TypeChar:
		g.ins("movzbl (%%eax), %%eax")
	default:
		g.ins("movl (%%eax), %%eax")
	}
	return nil
}

// address evaluates a storage location into %eax.
func (g *codegen) address(e Expr) error {
	switch e := e.(type) {
	case *Ident:
		loc, err := g.resolve(e.Name, e.Line)
		if err == errEnumConst {
			return errorf(InternalInconsistency, e.Line, "enum constant %q used as a location", e.Name)
		}
		if err != nil {
			return err
		}
		if loc.global {
			g.ins("movl $%s, %%eax", loc.name)
		} else {
			g.ins("leal %d(%%ebp), %%eax", loc.offset)
		}
		return nil

	case *IndexExpr:
		if err := g.value(e.Base); err != nil {
			return err
		}
		g.ins("pushl %%eax")
		if err := g.value(e.Index); err != nil {
			return err
		}
		size, err := g.elemSize(e.Base.Type(), e.Line)
		if err != nil {
			return err
		}
		if size != 1 {
			g.ins("imull $%d, %%eax, %%eax", size)
		}
		g.ins("popl %%ecx")
		g.ins("addl %%ecx, %%eax")
		return nil

	case *MemberExpr:
		var base *Type
		if e.Arrow {
			if err := g.value(e.Base); err != nil {
				return err
			}
			base = e.Base.Type().Elem
		} else {
			if err := g.address(e.Base); err != nil {
				return err
			}
			base = e.Base.Type()
		}
		def, ok := g.table.Struct(base.Name)
		if !ok {
			return errorf(InternalInconsistency, e.Line, "unknown struct %q survived analysis", base.Name)
		}
		if off := def.Offsets[e.Field]; off != 0 {
			g.ins("addl $%d, %%eax", off)
		}
		return nil

	case *UnaryExpr:
		if e.Op == STAR {
			return g.value(e.Operand)
		}
	}
	return errorf(InternalInconsistency, e.Pos(), "%T is not a storage location", e)
}

func (g *codegen) elemSize(t *Type, line int) (int32, error) {
	if t == nil || t.Elem == nil {
		return 0, errorf(InternalInconsistency, line, "indexing a non-pointer survived analysis")
	}
	size, err := g.table.SizeOf(t.Elem)
	if err != nil {
		return 0, errorf(UnsupportedConstruct, line, "indexing %s: %v", t, err)
	}
	return size, nil
}

func (g *codegen) binary(e *BinaryExpr) error {
	if err := g.value(e.Left); err != nil {
		return err
	}
	g.ins("pushl %%eax")
	if err := g.value(e.Right); err != nil {
		return err
	}
	g.ins("movl %%eax, %%ecx")
	g.ins("popl %%eax")

	// Pointer arithmetic scales the integer side by the element size.
	lt, rt := e.Left.Type(), e.Right.Type()
	if e.Op == PLUS || e.Op == MINUS {
		switch {
		case isAddr(lt) && rt != nil && rt.IsInteger():
			size, err := g.elemSize(lt, e.Line)
			if err != nil {
				return err
			}
			if size != 1 {
				g.ins("imull $%d, %%ecx, %%ecx", size)
			}
		case e.Op == PLUS && isAddr(rt) && lt != nil && lt.IsInteger():
			size, err := g.elemSize(rt, e.Line)
			if err != nil {
				return err
			}
			if size != 1 {
				g.ins("imull $%d, %%eax, %%eax", size)
			}
		}
	}

	switch e.Op {
	case PLUS:
		g.ins("addl %%ecx, %%eax")
	case MINUS:
		g.ins("subl %%ecx, %%eax")
	case STAR:
		g.ins("imull %%ecx, %%eax")
	case SLASH:
		g.ins("cltd")
		g.ins("idivl %%ecx")
	case PERCENT:
		g.ins("cltd")
		g.ins("idivl %%ecx")
		g.ins("movl %%edx, %%eax")
	case AND:
		g.ins("andl %%ecx, %%eax")
	case PIPE:
		g.ins("orl %%ecx, %%eax")
	case CARET:
		g.ins("xorl %%ecx, %%eax")
	case SHL_OP:
		// Hardware masks the count mod 32, same as the folder.
		g.ins("sall %%cl, %%eax")
	case SHR_OP:
		g.ins("sarl %%cl, %%eax")
	case EQUALS, NOT_EQ, LESS, LESS_EQ, GREATER, GREATER_EQ:
		g.ins("cmpl %%ecx, %%eax")
		g.ins("%s %%al", setcc(e.Op))
		g.ins("movzbl %%al, %%eax")
	default:
		return errorf(InternalInconsistency, e.Line, "unhandled binary operator %s", e.Op)
	}
	return nil
}

func isAddr(t *Type) bool {
	return t != nil && (t.Kind == TypePointer || t.Kind == TypeArray)
}

func setcc(op TokenType) string {
	switch op {
	case NOT_EQ:
		return "setne"
	case LESS:
		return "setl"
	case LESS_EQ:
		return "setle"
	case GREATER:
		return "setg"
	case GREATER_EQ:
		return "setge"
	}
	return "sete"
}

func (g *codegen) logical(e *LogicalExpr) error {
	short := g.newLabel()
	end := g.newLabel()

	if err := g.value(e.Left); err != nil {
		return err
	}
	g.ins("testl %%eax, %%eax")
	if e.Op == AND_LOGICAL {
		g.ins("je %s", short)
	} else {
		g.ins("jne %s", short)
	}

	if err := g.value(e.Right); err != nil {
		return err
	}
	g.ins("testl %%eax, %%eax")
	if e.Op == AND_LOGICAL {
		g.ins("je %s", short)
		g.ins("movl $1, %%eax")
	} else {
		g.ins("jne %s", short)
		g.ins("movl $0, %%eax")
	}
	g.ins("jmp %s", end)

	g.at(short)
	if e.Op == AND_LOGICAL {
		g.ins("movl $0, %%eax")
	} else {
		g.ins("movl $1, %%eax")
	}
	g.at(end)
	return nil
}

func (g *codegen) unary(e *UnaryExpr) error {
	switch e.Op {
	case MINUS:
		if err := g.value(e.Operand); err != nil {
			return err
		}
		g.ins("negl %%eax")
		return nil

	case TILDE:
		if err := g.value(e.Operand); err != nil {
			return err
		}
		g.ins("notl %%eax")
		return nil

	case NOT:
		if err := g.value(e.Operand); err != nil {
			return err
		}
		g.ins("testl %%eax, %%eax")
		g.ins("sete %%al")
		g.ins("movzbl %%al, %%eax")
		return nil

	case PLUS:
		return g.value(e.Operand)

	case AND:
		return g.address(e.Operand)

	case STAR:
		if err := g.value(e.Operand); err != nil {
			return err
		}
		return g.loadMem(e.Type())

	case PLUS_PLUS, MINUS_MINUS:
		return g.incdec(e)
	}
	return errorf(InternalInconsistency, e.Line, "unhandled unary operator %s", e.Op)
}

// incdec keeps the slot address in %ecx across the update and, for the
// postfix forms, parks the original value in %edx.
func (g *codegen) incdec(e *UnaryExpr) error {
	t := e.Operand.Type()
	delta := int32(1)
	if t != nil && t.Kind == TypePointer {
		size, err := g.elemSize(t, e.Line)
		if err != nil {
			return err
		}
		delta = size
	}

	if err := g.address(e.Operand); err != nil {
		return err
	}
	g.ins("movl %%eax, %%ecx")
	isChar := t != nil && t.Kind == TypeChar
	if isChar {
		g.ins("movzbl (%%ecx), %%eax")
	} else {
		g.ins("movl (%%ecx), %%eax")
	}
	if e.Post {
		g.ins("movl %%eax, %%edx")
	}
	if e.Op == PLUS_PLUS {
		g.ins("addl $%d, %%eax", delta)
	} else {
		g.ins("subl $%d, %%eax", delta)
	}
	if isChar {
		g.ins("movb %%al, (%%ecx)")
		g.ins("movzbl %%al, %%eax")
	} else {
		g.ins("movl %%eax, (%%ecx)")
	}
	if e.Post {
		g.ins("movl %%edx, %%eax")
	}
	return nil
}

func (g *codegen) assign(e *AssignExpr) error {
	t := e.Target.Type()
	if t != nil && t.Kind == TypeStruct {
		return errorf(UnsupportedConstruct, e.Line,
			"struct assignment is not supported; assign the members individually")
	}
	if err := g.value(e.Value); err != nil {
		return err
	}
	g.ins("pushl %%eax")
	if err := g.address(e.Target); err != nil {
		return err
	}
	g.ins("movl %%eax, %%ecx")
	g.ins("popl %%eax")
	if t != nil && t.Kind == TypeChar {
		g.ins("movb %%al, (%%ecx)")
		g.ins("movzbl %%al, %%eax")
	} else {
		g.ins("movl %%eax, (%%ecx)")
	}
	return nil
}
