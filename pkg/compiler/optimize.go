package compiler

// Unreachable function elimination, the whole-program half of dead code
// removal: a definition no call chain from main reaches is dropped from
// the unit, prototype included. A unit without a main keeps every
// definition, since any of them may be an entry point for callers
// outside the unit.

func eliminateDeadFunctions(prog *Program) *Program {
	defined := make(map[string]bool)
	for _, d := range prog.Decls {
		if fn, ok := d.(*FuncDecl); ok && fn.Body != nil {
			defined[fn.Name] = true
		}
	}
	if !defined["main"] {
		return prog
	}

	bodies := make(map[string]*FuncDecl)
	for _, d := range prog.Decls {
		if fn, ok := d.(*FuncDecl); ok && fn.Body != nil {
			bodies[fn.Name] = fn
		}
	}

	reachable := make(map[string]bool)
	var queue []string
	mark := func(name string) {
		if !reachable[name] {
			reachable[name] = true
			queue = append(queue, name)
		}
	}
	mark("main")

	// Global initializers run before main, so their callees are roots.
	for _, d := range prog.Decls {
		if v, ok := d.(*VarDecl); ok && v.Init != nil {
			walkExpr(v.Init, func(e Expr) {
				if call, ok := e.(*CallExpr); ok {
					mark(call.Name)
				}
			})
		}
	}

	for len(queue) > 0 {
		fn, ok := bodies[queue[0]]
		queue = queue[1:]
		if !ok {
			// A builtin or an external function; nothing to scan.
			continue
		}
		callees := make(map[string]bool)
		calleeNames(fn.Body.List, callees)
		for name := range callees {
			mark(name)
		}
	}

	out := &Program{File: prog.File}
	for _, d := range prog.Decls {
		if fn, ok := d.(*FuncDecl); ok && defined[fn.Name] && !reachable[fn.Name] {
			continue
		}
		out.Decls = append(out.Decls, d)
	}
	return out
}
