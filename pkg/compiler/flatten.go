package compiler

import (
	"fmt"
	"math/rand"
)

// Control flow flattening rewrites a function into a state machine. Local
// declarations hoist to the top of the function so every state can reach
// them, and the body becomes a single dispatch loop,
//
//	int __st0 = 0;
//	while (1) {
//		switch (__st0) {
//		case 0: ... __st0 = 1; break;
//		case 1: ... return x;
//		}
//	}
//
// with every straight-line run of statements in its own case and every
// structured construct lowered to state assignments: an if becomes a
// conditional assignment to one of two successor states, a loop becomes
// head, body, and exit states, a source switch becomes a comparison chain
// on a materialized tag. break and continue resolve against the construct
// they were bound to in the source and become jumps to its exit or
// continuation state. A case ending in return returns directly; a body
// that falls off the end returns 0, or nothing for void.
//
// A loop nested inside another loop does not join the outer numbering: it
// becomes a machine of its own, with a fresh state variable, states
// counted again from 0, and the reserved exit state that the embedded
// dispatch loop watches for. Flattening composes, and each machine's ids
// stay small and dense.
//
// Within one machine, states count up from 0 in the order lowering
// reaches the segments, so the entry is always state 0. Segments nothing
// jumps to are dropped rather than emitted as unreachable cases. Only the
// emitted case order is shuffled; it carries no meaning.

// FlattenControl returns a copy of prog with every function body
// flattened into a dispatch loop.
func FlattenControl(prog *Program, rng *rand.Rand) *Program {
	out := prog.Clone()
	globals := fileScopeNames(out)
	for _, decl := range out.Decls {
		if fn, ok := decl.(*FuncDecl); ok && fn.Body != nil {
			flattenFunction(fn, rng, globals)
		}
	}
	return out
}

// uniquifyLocals renames clashing locals so that hoisting every
// declaration to function scope cannot collide. The first declaration of
// each name keeps it; later ones in sibling scopes get a suffix.
func uniquifyLocals(fn *FuncDecl, globals map[string]bool) map[string]bool {
	taken := make(map[string]bool, len(globals))
	for name := range globals {
		taken[name] = true
	}
	n := 0
	w := &localRewriter{declare: func(name string) string {
		fresh := name
		for taken[fresh] {
			n++
			fresh = fmt.Sprintf("%s_%d", name, n)
		}
		taken[fresh] = true
		return fresh
	}}
	w.function(fn)
	return taken
}

// exitState is the state a nested machine assigns to leave its dispatch
// loop. Real states count up from 0, so it can never collide.
const exitState = -1

type segment struct {
	body []Stmt
}

// jumpCtx records where break and continue go while lowering the
// construct they are bound to. Switches accept break only.
type jumpCtx struct {
	brk      int
	cont     int
	isSwitch bool
}

// flattener is the per-function state shared by every machine in the
// function: the hoisted declarations and the allocator for fresh names.
type flattener struct {
	rng     *rand.Rand
	fn      *FuncDecl
	taken   map[string]bool
	tmps    int
	hoisted []Stmt
}

// machine is one dispatch loop under construction. The function body is
// the outermost machine; each loop nested inside another loop becomes a
// machine of its own.
type machine struct {
	f        *flattener
	stateVar string
	segments []*segment
	entered  []int
	cur      int
	pend     []statePatch
	ctx      []jumpCtx
	inLoop   int
}

// statePatch is a state literal waiting for segment numbering, recorded
// with the segment that wrote it so numbering can walk the jump graph.
type statePatch struct {
	from int
	lit  *IntLit
	seg  int
}

func flattenFunction(fn *FuncDecl, rng *rand.Rand, globals map[string]bool) {
	f := &flattener{rng: rng, fn: fn, taken: uniquifyLocals(fn, globals)}

	m := f.newMachine()
	m.enter(m.newSegment())
	if !m.lower(fn.Body.List) {
		m.implicitReturn()
	}

	line := fn.Line
	list := append([]Stmt{}, f.hoisted...)
	list = append(list,
		&VarDecl{Name: m.stateVar, Type: intType, Init: &IntLit{Value: 0, Line: line, T: intType}, Line: line},
		&WhileStmt{
			Cond: &IntLit{Value: 1, Line: line, T: intType},
			Body: &BlockStmt{
				List: []Stmt{&SwitchStmt{
					Tag:   &Ident{Name: m.stateVar, Line: line, T: intType},
					Cases: m.finish(line),
					Line:  line,
				}},
				Line: line,
			},
			Line: line,
		})
	fn.Body.List = list
}

func (f *flattener) newMachine() *machine {
	m := &machine{f: f, cur: -1}
	m.stateVar = f.freshLocal("__st")
	f.fn.StateVars = append(f.fn.StateVars, m.stateVar)
	return m
}

func (f *flattener) freshLocal(prefix string) string {
	for {
		name := fmt.Sprintf("%s%d", prefix, f.tmps)
		f.tmps++
		if !f.taken[name] {
			f.taken[name] = true
			return name
		}
	}
}

func (m *machine) newSegment() int {
	m.segments = append(m.segments, &segment{})
	return len(m.segments) - 1
}

// enter makes seg current and records the visit order, which is the order
// the final state numbers follow.
func (m *machine) enter(seg int) {
	m.cur = seg
	m.entered = append(m.entered, seg)
}

func (m *machine) emit(s Stmt) {
	c := m.segments[m.cur]
	c.body = append(c.body, s)
}

// declare hoists a local declaration to function scope, leaving an
// assignment at the declaration point when there is an initializer. Every
// state of every machine can then reach the variable, and a declaration
// revisited by a loop still resets its value.
func (m *machine) declare(d *VarDecl) {
	m.f.hoisted = append(m.f.hoisted, &VarDecl{Name: d.Name, Type: d.Type, Line: d.Line})
	if d.Init == nil {
		return
	}
	m.emit(&ExprStmt{
		E: &AssignExpr{
			Target: &Ident{Name: d.Name, Line: d.Line, T: d.Type},
			Value:  d.Init,
			Line:   d.Line,
			T:      d.Type,
		},
		Line: d.Line,
	})
}

// stateRef builds a literal that will hold seg's state number once
// numbering runs. The exit sentinel is already final.
func (m *machine) stateRef(seg, line int) *IntLit {
	lit := &IntLit{Line: line, T: intType}
	if seg == exitState {
		lit.Value = exitState
		return lit
	}
	m.pend = append(m.pend, statePatch{from: m.cur, lit: lit, seg: seg})
	return lit
}

// setState builds the statement __st = <seg>.
func (m *machine) setState(seg, line int) Stmt {
	return &ExprStmt{
		E: &AssignExpr{
			Target: &Ident{Name: m.stateVar, Line: line, T: intType},
			Value:  m.stateRef(seg, line),
			Line:   line,
			T:      intType,
		},
		Line: line,
	}
}

// jump ends the current case: set the next state and break out of the
// dispatch switch.
func (m *machine) jump(seg, line int) {
	m.emit(m.setState(seg, line))
	m.emit(&BreakStmt{Line: line})
}

// branch ends the current case on a condition: pick one of two successor
// states, then break out of the dispatch switch.
func (m *machine) branch(cond Expr, then, els, line int) {
	m.emit(&IfStmt{
		Cond: cond,
		Then: &BlockStmt{List: []Stmt{m.setState(then, line)}, Line: line},
		Else: &BlockStmt{List: []Stmt{m.setState(els, line)}, Line: line},
		Line: line,
	})
	m.emit(&BreakStmt{Line: line})
}

func (m *machine) implicitReturn() {
	fn := m.f.fn
	line := fn.Line
	if fn.Ret.Kind == TypeVoid {
		m.emit(&ReturnStmt{Line: line})
		return
	}
	m.emit(&ReturnStmt{Result: &IntLit{Value: 0, Line: line, T: intType}, Line: line})
}

// breakTarget is the construct a source break binds to: the innermost
// loop or switch.
func (m *machine) breakTarget() int {
	return m.ctx[len(m.ctx)-1].brk
}

// continueTarget is the innermost loop, skipping switch contexts.
func (m *machine) continueTarget() int {
	for i := len(m.ctx) - 1; i >= 0; i-- {
		if !m.ctx[i].isSwitch {
			return m.ctx[i].cont
		}
	}
	panic("flatten: continue outside a loop survived analysis")
}

// lower writes list into the segment chain starting at the current one.
// It reports whether control definitely left the list, in which case the
// remaining statements are unreachable and dropped.
func (m *machine) lower(list []Stmt) bool {
	for _, s := range list {
		switch s := s.(type) {
		case *ExprStmt:
			m.emit(s)

		case *VarDecl:
			m.declare(s)

		case *BlockStmt:
			// Scopes were merged by uniquifyLocals; splice the contents.
			if m.lower(s.List) {
				return true
			}

		case *ReturnStmt:
			m.emit(s)
			return true

		case *BreakStmt:
			m.jump(m.breakTarget(), s.Line)
			return true

		case *ContinueStmt:
			m.jump(m.continueTarget(), s.Line)
			return true

		case *IfStmt:
			thenSeg := m.newSegment()
			elseSeg := -1
			if s.Else != nil {
				elseSeg = m.newSegment()
			}
			joinSeg := m.newSegment()
			if elseSeg < 0 {
				elseSeg = joinSeg
			}
			m.branch(s.Cond, thenSeg, elseSeg, s.Line)

			m.enter(thenSeg)
			thenDone := m.lower(s.Then.List)
			if !thenDone {
				m.jump(joinSeg, s.Line)
			}
			elseDone := false
			if s.Else != nil {
				m.enter(elseSeg)
				elseDone = m.lower([]Stmt{s.Else})
				if !elseDone {
					m.jump(joinSeg, s.Line)
				}
			}
			if thenDone && elseDone {
				return true
			}
			m.enter(joinSeg)

		case *WhileStmt:
			if m.inLoop > 0 {
				m.embed(s, s.Line)
				continue
			}
			head := m.newSegment()
			exit := m.newSegment()
			m.jump(head, s.Line)
			m.lowerWhile(s, head, exit)
			m.enter(exit)

		case *DoWhileStmt:
			if m.inLoop > 0 {
				m.embed(s, s.Line)
				continue
			}
			body := m.newSegment()
			exit := m.newSegment()
			m.jump(body, s.Line)
			m.lowerDoWhile(s, body, exit)
			m.enter(exit)

		case *ForStmt:
			if m.inLoop > 0 {
				m.embed(s, s.Line)
				continue
			}
			m.forInit(s)
			head := m.newSegment()
			exit := m.newSegment()
			m.jump(head, s.Line)
			m.lowerFor(s, head, exit)
			m.enter(exit)

		case *SwitchStmt:
			m.lowerSwitch(s)

		default:
			panic(fmt.Sprintf("flatten: unhandled statement %T", s))
		}
	}
	return false
}

func (m *machine) forInit(s *ForStmt) {
	switch init := s.Init.(type) {
	case nil:
	case *VarDecl:
		m.declare(init)
	default:
		m.emit(init)
	}
}

// lowerWhile writes a while loop into this machine. head must be a fresh
// segment; brk is where a break or a false condition escapes to.
func (m *machine) lowerWhile(s *WhileStmt, head, brk int) {
	body := m.newSegment()
	m.enter(head)
	m.branch(s.Cond, body, brk, s.Line)

	m.ctx = append(m.ctx, jumpCtx{brk: brk, cont: head})
	m.inLoop++
	m.enter(body)
	if !m.lower(s.Body.List) {
		m.jump(head, s.Line)
	}
	m.inLoop--
	m.ctx = m.ctx[:len(m.ctx)-1]
}

func (m *machine) lowerDoWhile(s *DoWhileStmt, body, brk int) {
	cond := m.newSegment()
	m.ctx = append(m.ctx, jumpCtx{brk: brk, cont: cond})
	m.inLoop++
	m.enter(body)
	if !m.lower(s.Body.List) {
		m.jump(cond, s.Line)
	}
	m.inLoop--
	m.ctx = m.ctx[:len(m.ctx)-1]

	m.enter(cond)
	m.branch(s.Cond, body, brk, s.Line)
}

func (m *machine) lowerFor(s *ForStmt, head, brk int) {
	body := m.newSegment()
	post := m.newSegment()
	m.enter(head)
	if s.Cond != nil {
		m.branch(s.Cond, body, brk, s.Line)
	} else {
		m.jump(body, s.Line)
	}

	m.ctx = append(m.ctx, jumpCtx{brk: brk, cont: post})
	m.inLoop++
	m.enter(body)
	if !m.lower(s.Body.List) {
		m.jump(post, s.Line)
	}
	m.inLoop--
	m.ctx = m.ctx[:len(m.ctx)-1]

	m.enter(post)
	if s.Post != nil {
		m.emit(&ExprStmt{E: s.Post, Line: s.Line})
	}
	m.jump(head, s.Line)
}

// embed lowers a loop nested inside another loop as a machine of its own,
// spliced into a dedicated segment: the fresh state variable restarts at
// the nested entry each time the segment runs, and the nested dispatch
// loop spins until the state goes to the exit sentinel.
func (m *machine) embed(s Stmt, line int) {
	loop := m.newSegment()
	cont := m.newSegment()
	m.jump(loop, line)
	m.enter(loop)

	c := m.f.newMachine()
	switch s := s.(type) {
	case *WhileStmt:
		c.lowerWhile(s, c.newSegment(), exitState)
	case *DoWhileStmt:
		c.lowerDoWhile(s, c.newSegment(), exitState)
	case *ForStmt:
		m.forInit(s)
		c.lowerFor(s, c.newSegment(), exitState)
	}
	for _, st := range c.dispatch(line) {
		m.emit(st)
	}

	m.jump(cont, line)
	m.enter(cont)
}

// dispatch assembles a nested machine: reset its state variable to the
// entry, then run the switch until the state leaves the machine.
func (c *machine) dispatch(line int) []Stmt {
	c.f.hoisted = append(c.f.hoisted, &VarDecl{Name: c.stateVar, Type: intType, Line: line})
	return []Stmt{
		&ExprStmt{
			E: &AssignExpr{
				Target: &Ident{Name: c.stateVar, Line: line, T: intType},
				Value:  &IntLit{Value: 0, Line: line, T: intType},
				Line:   line,
				T:      intType,
			},
			Line: line,
		},
		&WhileStmt{
			Cond: &IntLit{Value: 1, Line: line, T: intType},
			Body: &BlockStmt{
				List: []Stmt{
					&SwitchStmt{
						Tag:   &Ident{Name: c.stateVar, Line: line, T: intType},
						Cases: c.finish(line),
						Line:  line,
					},
					&IfStmt{
						Cond: &BinaryExpr{
							Op:    EQUALS,
							Left:  &Ident{Name: c.stateVar, Line: line, T: intType},
							Right: &IntLit{Value: exitState, Line: line, T: intType},
							Line:  line,
							T:     intType,
						},
						Then: &BlockStmt{List: []Stmt{&BreakStmt{Line: line}}, Line: line},
						Line: line,
					},
				},
				Line: line,
			},
			Line: line,
		},
	}
}

// lowerSwitch turns a source switch into a comparison chain on a
// materialized tag plus one segment per clause. Fallthrough is the next
// clause's segment; break is the common exit.
func (m *machine) lowerSwitch(s *SwitchStmt) {
	line := s.Line
	tag := m.f.freshLocal("__sw")
	m.declare(&VarDecl{Name: tag, Type: intType, Init: s.Tag, Line: line})

	caseSeg := make([]int, len(s.Cases))
	for i := range s.Cases {
		caseSeg[i] = m.newSegment()
	}
	exitSeg := m.newSegment()

	defaultSeg := exitSeg
	for i, c := range s.Cases {
		if c.Value == nil {
			defaultSeg = caseSeg[i]
		}
	}

	// Build the dispatch as an else-if chain in source order, with the
	// default (or the exit) as the final else.
	var chain Stmt = &BlockStmt{List: []Stmt{m.setState(defaultSeg, line)}, Line: line}
	for i := len(s.Cases) - 1; i >= 0; i-- {
		c := s.Cases[i]
		if c.Value == nil {
			continue
		}
		cond := &BinaryExpr{
			Op:    EQUALS,
			Left:  &Ident{Name: tag, Line: c.Line, T: intType},
			Right: c.Value,
			Line:  c.Line,
			T:     intType,
		}
		chain = &IfStmt{
			Cond: cond,
			Then: &BlockStmt{List: []Stmt{m.setState(caseSeg[i], c.Line)}, Line: c.Line},
			Else: chain,
			Line: c.Line,
		}
	}
	m.emit(chain)
	m.emit(&BreakStmt{Line: line})

	m.ctx = append(m.ctx, jumpCtx{brk: exitSeg, isSwitch: true})
	for i, c := range s.Cases {
		m.enter(caseSeg[i])
		next := exitSeg
		if i+1 < len(s.Cases) {
			next = caseSeg[i+1]
		}
		if !m.lower(c.Body) {
			m.jump(next, c.Line)
		}
	}
	m.ctx = m.ctx[:len(m.ctx)-1]
	m.enter(exitSeg)
}

// finish numbers the segments still reachable from the entry and returns
// their case clauses. Only the clause order is shuffled; the state values
// keep their meaning.
func (m *machine) finish(line int) []*CaseClause {
	ids := m.number()
	clauses := make([]*CaseClause, 0, len(m.entered))
	for _, si := range m.entered {
		if ids[si] < 0 {
			continue
		}
		clauses = append(clauses, &CaseClause{
			Value: &IntLit{Value: ids[si], Line: line, T: intType},
			Body:  m.segments[si].body,
			Line:  line,
		})
	}
	m.f.rng.Shuffle(len(clauses), func(i, j int) {
		clauses[i], clauses[j] = clauses[j], clauses[i]
	})
	return clauses
}

// number assigns state numbers to the segments reachable from the entry.
// Reachability walks the recorded state assignments; numbers count up
// from 0 in the order lowering entered the segments, so the entry is 0.
// Segments nothing jumps to, like the join of a branch whose arms both
// return, get no number and no case. Every surviving literal is patched.
func (m *machine) number() []int32 {
	next := make([][]int, len(m.segments))
	for _, p := range m.pend {
		next[p.from] = append(next[p.from], p.seg)
	}
	reach := make([]bool, len(m.segments))
	reach[0] = true
	stack := []int{0}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, t := range next[s] {
			if !reach[t] {
				reach[t] = true
				stack = append(stack, t)
			}
		}
	}

	ids := make([]int32, len(m.segments))
	for i := range ids {
		ids[i] = -1
	}
	var n int32
	for _, si := range m.entered {
		if reach[si] {
			ids[si] = n
			n++
		}
	}
	for _, p := range m.pend {
		if reach[p.from] {
			p.lit.Value = ids[p.seg]
		}
	}
	return ids
}
