package compiler

import (
	"math/rand"
	"time"
)

// OptLevel selects how much optimization runs before obfuscation.
type OptLevel int

const (
	// OptNone leaves the tree as analyzed.
	OptNone OptLevel = iota
	// OptBasic folds constants and eliminates dead code.
	OptBasic
	// OptFull additionally inlines small functions.
	OptFull
)

func (l OptLevel) String() string {
	switch l {
	case OptNone:
		return "none"
	case OptBasic:
		return "basic"
	case OptFull:
		return "full"
	}
	return "unknown"
}

// ObfLevel selects how aggressively the program is disguised.
type ObfLevel int

const (
	ObfNone ObfLevel = iota
	// ObfBasic renames locals and encrypts string literals.
	ObfBasic
	// ObfAggressive applies every technique, ending with control flow
	// flattening.
	ObfAggressive
)

func (l ObfLevel) String() string {
	switch l {
	case ObfNone:
		return "none"
	case ObfBasic:
		return "basic"
	case ObfAggressive:
		return "aggressive"
	}
	return "unknown"
}

// Toggle forces one technique on or off regardless of the level default.
type Toggle int

const (
	ToggleDefault Toggle = iota
	ToggleOn
	ToggleOff
)

func (t Toggle) enabled(levelDefault bool) bool {
	switch t {
	case ToggleOn:
		return true
	case ToggleOff:
		return false
	}
	return levelDefault
}

// Options configures the transformation pipeline. The zero value runs no
// optimization and no obfuscation. Seed selects the random stream used
// for names, keys, and state numbers; zero means derive one from the
// clock, so two runs with the same nonzero seed produce identical output.
type Options struct {
	Optimize  OptLevel
	Obfuscate ObfLevel

	ConstantFolding Toggle
	DeadCodeRemoval Toggle
	InlineFunctions Toggle
	InlineLimit     int

	RenameVariables    Toggle
	NameStyle          NameStyle
	EncryptStrings     Toggle
	ComplicateExprs    Toggle
	OpaquePredicates   Toggle
	InsertDeadCode     Toggle
	FlattenControlFlow Toggle

	// DeadCodeRatio is the fraction of statement gaps that receive junk,
	// in [0, 1]; zero means DefaultDeadCodeRatio.
	DeadCodeRatio float64

	Seed int64
}

// Result is the transformed tree plus everything a back end needs.
type Result struct {
	Program     *Program
	Table       *SymbolTable
	Diagnostics Diagnostics
	Seed        int64
}

// Transform analyzes prog, optimizes it, then obfuscates it, in that
// order: obfuscation artifacts must survive, so dead code removal cannot
// run after junk is inserted. Each pass output is re-analyzed; a tree a
// pass broke is reported as an internal inconsistency rather than
// compiled.
func Transform(prog *Program, opts Options) (*Result, error) {
	table, warns, err := Analyze(prog)
	if err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	r := &Result{Program: prog, Table: table, Diagnostics: warns, Seed: seed}

	fold := opts.ConstantFolding.enabled(opts.Optimize >= OptBasic)
	dce := opts.DeadCodeRemoval.enabled(opts.Optimize >= OptBasic)
	inline := opts.InlineFunctions.enabled(opts.Optimize >= OptFull)

	if fold {
		if err := r.apply("constant folding", func(p *Program) *Program {
			return Fold(p, r.Table)
		}); err != nil {
			return nil, err
		}
	}
	if dce {
		if err := r.apply("dead code elimination", EliminateDeadCode); err != nil {
			return nil, err
		}
	}
	if inline {
		if err := r.apply("inlining", func(p *Program) *Program {
			return Inline(p, opts.InlineLimit)
		}); err != nil {
			return nil, err
		}
	}

	rename := opts.RenameVariables.enabled(opts.Obfuscate >= ObfBasic)
	encrypt := opts.EncryptStrings.enabled(opts.Obfuscate >= ObfBasic)
	complicate := opts.ComplicateExprs.enabled(opts.Obfuscate >= ObfAggressive)
	opaque := opts.OpaquePredicates.enabled(opts.Obfuscate >= ObfAggressive)
	junk := opts.InsertDeadCode.enabled(opts.Obfuscate >= ObfAggressive)
	flatten := opts.FlattenControlFlow.enabled(opts.Obfuscate >= ObfAggressive)

	if rename {
		if err := r.apply("renaming", func(p *Program) *Program {
			return RenameLocals(p, opts.NameStyle, rng)
		}); err != nil {
			return nil, err
		}
	}
	if encrypt {
		if err := r.apply("string encryption", func(p *Program) *Program {
			return EncryptStrings(p, rng)
		}); err != nil {
			return nil, err
		}
	}
	if complicate {
		if err := r.apply("expression complication", func(p *Program) *Program {
			return ComplicateExpressions(p, rng)
		}); err != nil {
			return nil, err
		}
	}
	if opaque {
		if err := r.apply("opaque predicates", func(p *Program) *Program {
			return InsertOpaquePredicates(p, rng)
		}); err != nil {
			return nil, err
		}
	}
	if junk {
		if err := r.apply("dead code insertion", func(p *Program) *Program {
			return InsertJunk(p, opts.DeadCodeRatio, rng)
		}); err != nil {
			return nil, err
		}
	}
	if flatten {
		if err := r.apply("control flow flattening", func(p *Program) *Program {
			return FlattenControl(p, rng)
		}); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// apply runs one pass and re-analyzes its output. Warnings from
// re-analysis duplicate the originals and are dropped; an error means the
// pass emitted a tree that no longer type checks, which is a bug here,
// not in the input.
func (r *Result) apply(name string, pass func(*Program) *Program) error {
	next := pass(r.Program)
	table, _, err := Analyze(next)
	if err != nil {
		return errorf(InternalInconsistency, 0, "%s produced an invalid program: %v", name, err)
	}
	r.Program = next
	r.Table = table
	return nil
}
