// Package interp executes analyzed programs directly, with the same
// observable semantics the generated assembly has: 32-bit wraparound
// arithmetic, unsigned char, byte-addressed memory, cdecl-shaped calls.
// It exists to check the compiler against itself. A transformed program
// and its baseline must produce identical return values and output on
// the same input, and this package is the engine that runs both sides.
package interp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/TheBitty/RustCC/pkg/compiler"
)

var (
	// ErrNoMain means the program defines no main to start from.
	ErrNoMain = errors.New("no main function")
	// ErrStepLimit means execution ran past its step budget.
	ErrStepLimit = errors.New("step limit exceeded")
	// ErrMemoryFault is an out-of-range or null access.
	ErrMemoryFault = errors.New("memory access out of range")
	// ErrDivideByZero is an integer division or remainder by zero.
	ErrDivideByZero = errors.New("division by zero")
	// ErrUnsupported is a construct with no runtime meaning here, such
	// as whole-struct assignment.
	ErrUnsupported = errors.New("construct not supported at run time")
)

const (
	// DefaultSteps bounds execution; obfuscated programs burn several
	// times the steps of their baselines, so the default is generous.
	DefaultSteps = 4 << 20
	// DefaultMemory is the size of the flat address space.
	DefaultMemory = 1 << 20

	maxCallDepth = 4096
)

// Options configure one run.
type Options struct {
	// Steps caps evaluation work; 0 means DefaultSteps.
	Steps int
	// Memory is the address space size in bytes; 0 means DefaultMemory.
	Memory int
	// Stdin feeds getchar; empty means immediate end of input.
	Stdin []byte
}

// Result is a completed run.
type Result struct {
	// Return is main's return value.
	Return int32
	// Output is everything putchar, puts, and printf wrote.
	Output []byte
	// Steps is the work the run actually used.
	Steps int
}

// Run executes prog from main and captures what it does. The table must
// come from the analysis of this exact tree.
func Run(prog *compiler.Program, table *compiler.SymbolTable, opts Options) (*Result, error) {
	limit := opts.Steps
	if limit == 0 {
		limit = DefaultSteps
	}
	size := opts.Memory
	if size == 0 {
		size = DefaultMemory
	}

	m := &machine{
		table: table,
		mem:   make([]byte, size),
		brk:   4, // address 0 stays unmapped so null dereferences fault
		in:    opts.Stdin,
		limit: limit,
		funcs: make(map[string]*compiler.FuncDecl),
		strs:  make(map[string]int32),
		glob:  make(map[string]int32),
	}
	if err := m.loadProgram(prog); err != nil {
		return nil, err
	}

	main, ok := m.funcs["main"]
	if !ok {
		return nil, ErrNoMain
	}
	ret, err := m.call(main, make([]int32, len(main.Params)))
	if err != nil {
		return nil, err
	}
	return &Result{Return: ret, Output: m.out.Bytes(), Steps: m.steps}, nil
}

type machine struct {
	table *compiler.SymbolTable
	mem   []byte
	brk   int32 // first free address; allocation bumps, return unwinds
	out   bytes.Buffer
	in    []byte
	steps int
	limit int

	funcs map[string]*compiler.FuncDecl
	strs  map[string]int32 // interned string literals
	glob  map[string]int32 // global name to address

	scopes []map[string]int32 // local name to address, one map per block
	depth  int
	ret    int32
}

// flow is the control signal a statement hands back up.
type flow int

const (
	flowNext flow = iota
	flowBreak
	flowContinue
	flowReturn
)

//  Loading

func (m *machine) loadProgram(prog *compiler.Program) error {
	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *compiler.FuncDecl:
			if d.Body != nil {
				m.funcs[d.Name] = d
			}
		case *compiler.VarDecl:
			if err := m.loadGlobal(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadGlobal allocates and initializes one file-scope variable. Extern
// declarations get local storage too; a single unit has nowhere else to
// find them.
func (m *machine) loadGlobal(d *compiler.VarDecl) error {
	size, err := m.table.SizeOf(d.Type)
	if err != nil {
		return fmt.Errorf("global %s: %v: %w", d.Name, err, ErrUnsupported)
	}
	addr, err := m.alloc(size)
	if err != nil {
		return err
	}
	m.glob[d.Name] = addr
	if d.Init == nil {
		return nil
	}
	if lit, ok := d.Init.(*compiler.StrLit); ok {
		saddr, err := m.intern(lit.Value)
		if err != nil {
			return err
		}
		return m.store(addr, d.Type, saddr)
	}
	// Anything else here is a constant expression; analysis said so.
	v, err := m.eval(d.Init)
	if err != nil {
		return err
	}
	return m.store(addr, d.Type, v)
}

//  Memory

func (m *machine) alloc(size int32) (int32, error) {
	if rem := m.brk % 4; rem != 0 {
		m.brk += 4 - rem
	}
	addr := m.brk
	if size < 0 || int(addr)+int(size) > len(m.mem) {
		return 0, fmt.Errorf("allocating %d bytes: %w", size, ErrMemoryFault)
	}
	m.brk += size
	return addr, nil
}

func (m *machine) check(addr, size int32) error {
	if addr < 4 || int(addr)+int(size) > len(m.mem) {
		return fmt.Errorf("address %d: %w", addr, ErrMemoryFault)
	}
	return nil
}

// load reads the value of type t at addr. Arrays and structs read as
// their own address, which is how arrays decay and members chain.
func (m *machine) load(addr int32, t *compiler.Type) (int32, error) {
	switch t.Kind {
	case compiler.TypeArray, compiler.TypeStruct:
		return addr, nil
	case compiler.TypeChar:
		if err := m.check(addr, 1); err != nil {
			return 0, err
		}
		return int32(m.mem[addr]), nil
	default:
		if err := m.check(addr, 4); err != nil {
			return 0, err
		}
		return int32(binary.LittleEndian.Uint32(m.mem[addr:])), nil
	}
}

func (m *machine) store(addr int32, t *compiler.Type, v int32) error {
	if t.Kind == compiler.TypeChar {
		if err := m.check(addr, 1); err != nil {
			return err
		}
		m.mem[addr] = byte(v)
		return nil
	}
	if err := m.check(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.mem[addr:], uint32(v))
	return nil
}

func (m *machine) intern(s string) (int32, error) {
	if addr, ok := m.strs[s]; ok {
		return addr, nil
	}
	addr, err := m.alloc(int32(len(s)) + 1)
	if err != nil {
		return 0, err
	}
	copy(m.mem[addr:], s)
	m.mem[int(addr)+len(s)] = 0
	m.strs[s] = addr
	return addr, nil
}

// cstring reads the NUL-terminated bytes at addr.
func (m *machine) cstring(addr int32) (string, error) {
	if err := m.check(addr, 1); err != nil {
		return "", err
	}
	end := int(addr)
	for end < len(m.mem) && m.mem[end] != 0 {
		end++
	}
	if end == len(m.mem) {
		return "", fmt.Errorf("unterminated string at %d: %w", addr, ErrMemoryFault)
	}
	return string(m.mem[addr:end]), nil
}

//  Calls

func (m *machine) call(fn *compiler.FuncDecl, args []int32) (int32, error) {
	if m.depth >= maxCallDepth {
		return 0, fmt.Errorf("call depth %d in %s: %w", maxCallDepth, fn.Name, ErrStepLimit)
	}
	m.depth++
	savedBrk := m.brk
	savedScopes := len(m.scopes)
	m.scopes = append(m.scopes, make(map[string]int32))

	var retErr error
	ret := int32(0)

	for i, p := range fn.Params {
		addr, err := m.alloc(4)
		if err != nil {
			retErr = err
			break
		}
		binary.LittleEndian.PutUint32(m.mem[addr:], uint32(args[i]))
		m.scopes[len(m.scopes)-1][p.Name] = addr
	}
	if retErr == nil {
		fl, err := m.execList(fn.Body.List)
		if err != nil {
			retErr = err
		} else if fl == flowReturn {
			ret = m.ret
		}
		// Falling off the end returns 0.
	}

	m.scopes = m.scopes[:savedScopes]
	m.brk = savedBrk
	m.depth--
	return ret, retErr
}

func (m *machine) resolve(name string) (int32, bool) {
	for i := len(m.scopes) - 1; i >= 0; i-- {
		if addr, ok := m.scopes[i][name]; ok {
			return addr, true
		}
	}
	addr, ok := m.glob[name]
	return addr, ok
}

func (m *machine) step(line int) error {
	m.steps++
	if m.steps > m.limit {
		return fmt.Errorf("line %d: %w", line, ErrStepLimit)
	}
	return nil
}

//  Statements

func (m *machine) execList(list []compiler.Stmt) (flow, error) {
	for _, s := range list {
		fl, err := m.exec(s)
		if err != nil || fl != flowNext {
			return fl, err
		}
	}
	return flowNext, nil
}

func (m *machine) exec(s compiler.Stmt) (flow, error) {
	if err := m.step(s.Pos()); err != nil {
		return flowNext, err
	}

	switch s := s.(type) {
	case *compiler.ExprStmt:
		_, err := m.eval(s.E)
		return flowNext, err

	case *compiler.VarDecl:
		size, err := m.table.SizeOf(s.Type)
		if err != nil {
			return flowNext, fmt.Errorf("line %d: %s: %v: %w", s.Line, s.Name, err, ErrUnsupported)
		}
		addr, err := m.alloc(size)
		if err != nil {
			return flowNext, err
		}
		m.scopes[len(m.scopes)-1][s.Name] = addr
		if s.Init != nil {
			v, err := m.eval(s.Init)
			if err != nil {
				return flowNext, err
			}
			if err := m.store(addr, s.Type, v); err != nil {
				return flowNext, err
			}
		}
		return flowNext, nil

	case *compiler.BlockStmt:
		m.scopes = append(m.scopes, make(map[string]int32))
		fl, err := m.execList(s.List)
		m.scopes = m.scopes[:len(m.scopes)-1]
		return fl, err

	case *compiler.IfStmt:
		c, err := m.eval(s.Cond)
		if err != nil {
			return flowNext, err
		}
		if c != 0 {
			return m.execBlock(s.Then)
		}
		if s.Else != nil {
			return m.exec(s.Else)
		}
		return flowNext, nil

	case *compiler.WhileStmt:
		for {
			c, err := m.eval(s.Cond)
			if err != nil {
				return flowNext, err
			}
			if c == 0 {
				return flowNext, nil
			}
			fl, err := m.execBlock(s.Body)
			if err != nil {
				return fl, err
			}
			if fl == flowBreak {
				return flowNext, nil
			}
			if fl == flowReturn {
				return fl, nil
			}
		}

	case *compiler.DoWhileStmt:
		for {
			fl, err := m.execBlock(s.Body)
			if err != nil {
				return fl, err
			}
			if fl == flowBreak {
				return flowNext, nil
			}
			if fl == flowReturn {
				return fl, nil
			}
			c, err := m.eval(s.Cond)
			if err != nil {
				return flowNext, err
			}
			if c == 0 {
				return flowNext, nil
			}
		}

	case *compiler.ForStmt:
		m.scopes = append(m.scopes, make(map[string]int32))
		fl, err := m.execFor(s)
		m.scopes = m.scopes[:len(m.scopes)-1]
		return fl, err

	case *compiler.SwitchStmt:
		return m.execSwitch(s)

	case *compiler.BreakStmt:
		return flowBreak, nil

	case *compiler.ContinueStmt:
		return flowContinue, nil

	case *compiler.ReturnStmt:
		m.ret = 0
		if s.Result != nil {
			v, err := m.eval(s.Result)
			if err != nil {
				return flowNext, err
			}
			m.ret = v
		}
		return flowReturn, nil
	}
	return flowNext, fmt.Errorf("statement %T: %w", s, ErrUnsupported)
}

// execBlock runs a block body in its own scope.
func (m *machine) execBlock(b *compiler.BlockStmt) (flow, error) {
	m.scopes = append(m.scopes, make(map[string]int32))
	fl, err := m.execList(b.List)
	m.scopes = m.scopes[:len(m.scopes)-1]
	return fl, err
}

func (m *machine) execFor(s *compiler.ForStmt) (flow, error) {
	if s.Init != nil {
		if _, err := m.exec(s.Init); err != nil {
			return flowNext, err
		}
	}
	for {
		if s.Cond != nil {
			c, err := m.eval(s.Cond)
			if err != nil {
				return flowNext, err
			}
			if c == 0 {
				return flowNext, nil
			}
		}
		fl, err := m.execBlock(s.Body)
		if err != nil {
			return fl, err
		}
		if fl == flowBreak {
			return flowNext, nil
		}
		if fl == flowReturn {
			return fl, nil
		}
		if s.Post != nil {
			if _, err := m.eval(s.Post); err != nil {
				return flowNext, err
			}
		}
	}
}

// execSwitch finds the matching clause and runs from there through the
// following clauses, which is C's fallthrough. All clause bodies share
// one scope, like the braces of the switch itself. A continue passes
// through to the enclosing loop.
func (m *machine) execSwitch(s *compiler.SwitchStmt) (flow, error) {
	tag, err := m.eval(s.Tag)
	if err != nil {
		return flowNext, err
	}

	start := -1
	deflt := -1
	for i, c := range s.Cases {
		if c.Value == nil {
			deflt = i
			continue
		}
		v, err := m.eval(c.Value)
		if err != nil {
			return flowNext, err
		}
		if v == tag {
			start = i
			break
		}
	}
	if start < 0 {
		start = deflt
	}
	if start < 0 {
		return flowNext, nil
	}

	m.scopes = append(m.scopes, make(map[string]int32))
	defer func() { m.scopes = m.scopes[:len(m.scopes)-1] }()
	for i := start; i < len(s.Cases); i++ {
		fl, err := m.execList(s.Cases[i].Body)
		if err != nil {
			return fl, err
		}
		switch fl {
		case flowBreak:
			return flowNext, nil
		case flowContinue, flowReturn:
			return fl, nil
		}
	}
	return flowNext, nil
}

//  Expressions

func (m *machine) eval(e compiler.Expr) (int32, error) {
	if err := m.step(e.Pos()); err != nil {
		return 0, err
	}

	switch e := e.(type) {
	case *compiler.IntLit:
		return e.Value, nil

	case *compiler.CharLit:
		return int32(e.Value), nil

	case *compiler.StrLit:
		return m.intern(e.Value)

	case *compiler.Ident:
		if e.Sym != nil && e.Sym.Kind == compiler.SymEnumConst {
			return e.Sym.Const, nil
		}
		addr, ok := m.resolve(e.Name)
		if !ok {
			return 0, fmt.Errorf("line %d: unknown name %s: %w", e.Line, e.Name, ErrUnsupported)
		}
		return m.load(addr, m.typeOf(e))

	case *compiler.BinaryExpr:
		return m.binary(e)

	case *compiler.LogicalExpr:
		l, err := m.eval(e.Left)
		if err != nil {
			return 0, err
		}
		if e.Op == compiler.AND_LOGICAL {
			if l == 0 {
				return 0, nil
			}
		} else if l != 0 {
			return 1, nil
		}
		r, err := m.eval(e.Right)
		if err != nil {
			return 0, err
		}
		if r != 0 {
			return 1, nil
		}
		return 0, nil

	case *compiler.UnaryExpr:
		return m.unary(e)

	case *compiler.AssignExpr:
		return m.assign(e)

	case *compiler.CallExpr:
		return m.evalCall(e)

	case *compiler.IndexExpr:
		addr, err := m.addr(e)
		if err != nil {
			return 0, err
		}
		return m.load(addr, m.typeOf(e))

	case *compiler.MemberExpr:
		addr, err := m.addr(e)
		if err != nil {
			return 0, err
		}
		return m.load(addr, m.typeOf(e))

	case *compiler.TernaryExpr:
		c, err := m.eval(e.Cond)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return m.eval(e.Then)
		}
		return m.eval(e.Else)

	case *compiler.CastExpr:
		v, err := m.eval(e.Inner)
		if err != nil {
			return 0, err
		}
		if e.To.Kind == compiler.TypeChar {
			return v & 0xff, nil
		}
		return v, nil

	case *compiler.SizeofExpr:
		t := e.TypeArg
		if t == nil {
			t = e.ExprArg.Type()
		}
		size, err := m.table.SizeOf(t)
		if err != nil {
			return 0, fmt.Errorf("line %d: sizeof: %v: %w", e.Line, err, ErrUnsupported)
		}
		return size, nil
	}
	return 0, fmt.Errorf("expression %T: %w", e, ErrUnsupported)
}

// typeOf is the annotated type of e, falling back to the symbol for
// identifiers.
func (m *machine) typeOf(e compiler.Expr) *compiler.Type {
	if t := e.Type(); t != nil {
		return t
	}
	if id, ok := e.(*compiler.Ident); ok && id.Sym != nil {
		return id.Sym.Type
	}
	return nil
}

func isAddrType(t *compiler.Type) bool {
	return t != nil && (t.Kind == compiler.TypePointer || t.Kind == compiler.TypeArray)
}

func (m *machine) elemSize(t *compiler.Type, line int) (int32, error) {
	if t == nil || t.Elem == nil {
		return 0, fmt.Errorf("line %d: indexing a non-pointer: %w", line, ErrUnsupported)
	}
	size, err := m.table.SizeOf(t.Elem)
	if err != nil {
		return 0, fmt.Errorf("line %d: %v: %w", line, err, ErrUnsupported)
	}
	return size, nil
}

func (m *machine) binary(e *compiler.BinaryExpr) (int32, error) {
	l, err := m.eval(e.Left)
	if err != nil {
		return 0, err
	}
	r, err := m.eval(e.Right)
	if err != nil {
		return 0, err
	}

	// Pointer arithmetic scales the integer side by the element size.
	lt, rt := e.Left.Type(), e.Right.Type()
	if e.Op == compiler.PLUS || e.Op == compiler.MINUS {
		if isAddrType(lt) && rt != nil && rt.IsInteger() {
			size, err := m.elemSize(lt, e.Line)
			if err != nil {
				return 0, err
			}
			r *= size
		} else if e.Op == compiler.PLUS && isAddrType(rt) && lt != nil && lt.IsInteger() {
			size, err := m.elemSize(rt, e.Line)
			if err != nil {
				return 0, err
			}
			l *= size
		}
	}

	switch e.Op {
	case compiler.PLUS:
		return l + r, nil
	case compiler.MINUS:
		return l - r, nil
	case compiler.STAR:
		return l * r, nil
	case compiler.SLASH:
		if r == 0 {
			return 0, fmt.Errorf("line %d: %w", e.Line, ErrDivideByZero)
		}
		return l / r, nil
	case compiler.PERCENT:
		if r == 0 {
			return 0, fmt.Errorf("line %d: %w", e.Line, ErrDivideByZero)
		}
		return l % r, nil
	case compiler.AND:
		return l & r, nil
	case compiler.PIPE:
		return l | r, nil
	case compiler.CARET:
		return l ^ r, nil
	case compiler.SHL_OP:
		// The count masks mod 32, matching the hardware.
		return l << (uint32(r) & 31), nil
	case compiler.SHR_OP:
		return l >> (uint32(r) & 31), nil
	case compiler.EQUALS:
		return b2i(l == r), nil
	case compiler.NOT_EQ:
		return b2i(l != r), nil
	case compiler.LESS:
		return b2i(l < r), nil
	case compiler.LESS_EQ:
		return b2i(l <= r), nil
	case compiler.GREATER:
		return b2i(l > r), nil
	case compiler.GREATER_EQ:
		return b2i(l >= r), nil
	}
	return 0, fmt.Errorf("line %d: operator %s: %w", e.Line, e.Op, ErrUnsupported)
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (m *machine) unary(e *compiler.UnaryExpr) (int32, error) {
	switch e.Op {
	case compiler.MINUS:
		v, err := m.eval(e.Operand)
		return -v, err
	case compiler.TILDE:
		v, err := m.eval(e.Operand)
		return ^v, err
	case compiler.NOT:
		v, err := m.eval(e.Operand)
		return b2i(v == 0), err
	case compiler.PLUS:
		return m.eval(e.Operand)
	case compiler.AND:
		return m.addr(e.Operand)
	case compiler.STAR:
		addr, err := m.eval(e.Operand)
		if err != nil {
			return 0, err
		}
		return m.load(addr, m.typeOf(e))
	case compiler.PLUS_PLUS, compiler.MINUS_MINUS:
		return m.incdec(e)
	}
	return 0, fmt.Errorf("line %d: operator %s: %w", e.Line, e.Op, ErrUnsupported)
}

func (m *machine) incdec(e *compiler.UnaryExpr) (int32, error) {
	t := m.typeOf(e.Operand)
	delta := int32(1)
	if t != nil && t.Kind == compiler.TypePointer {
		size, err := m.elemSize(t, e.Line)
		if err != nil {
			return 0, err
		}
		delta = size
	}
	if e.Op == compiler.MINUS_MINUS {
		delta = -delta
	}

	addr, err := m.addr(e.Operand)
	if err != nil {
		return 0, err
	}
	old, err := m.load(addr, t)
	if err != nil {
		return 0, err
	}
	if err := m.store(addr, t, old+delta); err != nil {
		return 0, err
	}
	if e.Post {
		return old, nil
	}
	// A char slot truncates what was stored; reload to observe it.
	return m.load(addr, t)
}

func (m *machine) assign(e *compiler.AssignExpr) (int32, error) {
	t := m.typeOf(e.Target)
	if t != nil && t.Kind == compiler.TypeStruct {
		return 0, fmt.Errorf("line %d: struct assignment: %w", e.Line, ErrUnsupported)
	}
	v, err := m.eval(e.Value)
	if err != nil {
		return 0, err
	}
	addr, err := m.addr(e.Target)
	if err != nil {
		return 0, err
	}
	if err := m.store(addr, t, v); err != nil {
		return 0, err
	}
	if t != nil && t.Kind == compiler.TypeChar {
		return v & 0xff, nil
	}
	return v, nil
}

func (m *machine) addr(e compiler.Expr) (int32, error) {
	switch e := e.(type) {
	case *compiler.Ident:
		if e.Sym != nil && e.Sym.Kind == compiler.SymEnumConst {
			return 0, fmt.Errorf("line %d: enum constant %s has no address: %w", e.Line, e.Name, ErrUnsupported)
		}
		addr, ok := m.resolve(e.Name)
		if !ok {
			return 0, fmt.Errorf("line %d: unknown name %s: %w", e.Line, e.Name, ErrUnsupported)
		}
		return addr, nil

	case *compiler.IndexExpr:
		base, err := m.eval(e.Base)
		if err != nil {
			return 0, err
		}
		idx, err := m.eval(e.Index)
		if err != nil {
			return 0, err
		}
		size, err := m.elemSize(m.typeOf(e.Base), e.Line)
		if err != nil {
			return 0, err
		}
		return base + idx*size, nil

	case *compiler.MemberExpr:
		var base int32
		var bt *compiler.Type
		var err error
		if e.Arrow {
			base, err = m.eval(e.Base)
			if t := m.typeOf(e.Base); t != nil {
				bt = t.Elem
			}
		} else {
			base, err = m.addr(e.Base)
			bt = m.typeOf(e.Base)
		}
		if err != nil {
			return 0, err
		}
		if bt == nil || bt.Kind != compiler.TypeStruct {
			return 0, fmt.Errorf("line %d: member of non-struct: %w", e.Line, ErrUnsupported)
		}
		def, ok := m.table.Struct(bt.Name)
		if !ok {
			return 0, fmt.Errorf("line %d: unknown struct %s: %w", e.Line, bt.Name, ErrUnsupported)
		}
		return base + def.Offsets[e.Field], nil

	case *compiler.UnaryExpr:
		if e.Op == compiler.STAR {
			return m.eval(e.Operand)
		}
	}
	return 0, fmt.Errorf("%T is not a storage location: %w", e, ErrUnsupported)
}

//  Calls and builtins

func (m *machine) evalCall(e *compiler.CallExpr) (int32, error) {
	args := make([]int32, len(e.Args))
	for i, a := range e.Args {
		v, err := m.eval(a)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}

	// A definition in the program wins over the builtin of the same name.
	if fn, ok := m.funcs[e.Name]; ok {
		return m.call(fn, args)
	}
	if v, ok, err := m.builtin(e.Name, args); ok || err != nil {
		return v, err
	}
	return 0, fmt.Errorf("line %d: call to undefined function %s: %w", e.Line, e.Name, ErrUnsupported)
}

func (m *machine) builtin(name string, args []int32) (int32, bool, error) {
	switch name {
	case "putchar":
		b := byte(args[0])
		m.out.WriteByte(b)
		return int32(b), true, nil

	case "getchar":
		if len(m.in) == 0 {
			return -1, true, nil
		}
		c := m.in[0]
		m.in = m.in[1:]
		return int32(c), true, nil

	case "puts":
		s, err := m.cstring(args[0])
		if err != nil {
			return 0, true, err
		}
		m.out.WriteString(s)
		m.out.WriteByte('\n')
		return 0, true, nil

	case "printf":
		n, err := m.printf(args)
		return n, true, err
	}
	return 0, false, nil
}

// printf covers the subset's verbs: %d %u %c %s %x and %%. It returns
// the byte count written, like the real one.
func (m *machine) printf(args []int32) (int32, error) {
	format, err := m.cstring(args[0])
	if err != nil {
		return 0, err
	}
	rest := args[1:]
	n := 0

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			m.out.WriteByte(c)
			n++
			continue
		}
		i++
		if i >= len(format) {
			m.out.WriteByte('%')
			n++
			break
		}
		verb := format[i]
		if verb == '%' {
			m.out.WriteByte('%')
			n++
			continue
		}
		if len(rest) == 0 {
			return 0, fmt.Errorf("printf: no argument for %%%c: %w", verb, ErrUnsupported)
		}
		arg := rest[0]
		rest = rest[1:]

		switch verb {
		case 'd':
			s := strconv.FormatInt(int64(arg), 10)
			m.out.WriteString(s)
			n += len(s)
		case 'u':
			s := strconv.FormatUint(uint64(uint32(arg)), 10)
			m.out.WriteString(s)
			n += len(s)
		case 'x':
			s := strconv.FormatUint(uint64(uint32(arg)), 16)
			m.out.WriteString(s)
			n += len(s)
		case 'c':
			m.out.WriteByte(byte(arg))
			n++
		case 's':
			s, err := m.cstring(arg)
			if err != nil {
				return 0, err
			}
			m.out.WriteString(s)
			n += len(s)
		default:
			return 0, fmt.Errorf("printf: verb %%%c: %w", verb, ErrUnsupported)
		}
	}
	return int32(n), nil
}
