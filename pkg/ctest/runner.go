package ctest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/TheBitty/RustCC/pkg/compiler"
	"github.com/TheBitty/RustCC/pkg/interp"
)

// Point is one cell of the level matrix.
type Point struct {
	Opt compiler.OptLevel
	Obf compiler.ObfLevel
}

func (p Point) String() string {
	return fmt.Sprintf("O%d-obf%d", p.Opt, p.Obf)
}

// Matrix is the full cross product of optimization and obfuscation
// levels. Behavioral assertions must hold at every point; corpus files
// whose assertions inspect the assembly pin their own points instead.
func Matrix() []Point {
	var pts []Point
	for opt := compiler.OptNone; opt <= compiler.OptFull; opt++ {
		for obf := compiler.ObfNone; obf <= compiler.ObfAggressive; obf++ {
			pts = append(pts, Point{opt, obf})
		}
	}
	return pts
}

// Check compiles tc at one matrix point and evaluates every assertion,
// returning an error describing the first one that fails.
func Check(tc Case, pt Point, seed int64) error {
	file := strings.ReplaceAll(tc.Name, " ", "_") + ".c"
	opts := compiler.Options{Optimize: pt.Opt, Obfuscate: pt.Obf, Seed: seed}

	tokens, err := compiler.Lex(tc.Source)
	if err != nil {
		return matchError(tc, err)
	}
	prog, err := compiler.Parse(tokens, tc.Source, file)
	if err != nil {
		return matchError(tc, err)
	}
	tr, err := compiler.Transform(prog, opts)
	if err != nil {
		return matchError(tc, err)
	}
	if want := tc.ExpectedError(); want != "" {
		return fmt.Errorf("compiled cleanly, want a %s error", want)
	}

	// The interpreter run and the assembly are shared across assertions
	// so a case with both returns and output fences executes once.
	var run *interp.Result
	var asm string
	execute := func() error {
		if run != nil {
			return nil
		}
		run, err = interp.Run(tr.Program, tr.Table, interp.Options{Stdin: []byte(tc.Stdin)})
		if err != nil {
			return fmt.Errorf("program failed: %w", err)
		}
		return nil
	}
	generate := func() error {
		if asm != "" {
			return nil
		}
		asm, err = compiler.Generate(tr.Program, tr.Table)
		if err != nil {
			return fmt.Errorf("codegen failed: %w", err)
		}
		return nil
	}

	for _, a := range tc.Assertions {
		switch a.Kind {
		case AssertReturns:
			if err := execute(); err != nil {
				return err
			}
			want, _ := strconv.ParseInt(strings.TrimSpace(a.Content), 10, 32)
			if run.Return != int32(want) {
				return fmt.Errorf("returned %d, want %d", run.Return, want)
			}
		case AssertOutput:
			if err := execute(); err != nil {
				return err
			}
			if string(run.Output) != a.Content {
				return fmt.Errorf("output %q, want %q", run.Output, a.Content)
			}
		case AssertAsmContains:
			if err := generate(); err != nil {
				return err
			}
			for _, needle := range assertLines(a.Content) {
				if !strings.Contains(asm, needle) {
					return fmt.Errorf("assembly does not contain %q", needle)
				}
			}
		case AssertAsmAbsent:
			if err := generate(); err != nil {
				return err
			}
			for _, needle := range assertLines(a.Content) {
				if strings.Contains(asm, needle) {
					return fmt.Errorf("assembly contains %q", needle)
				}
			}
		}
	}
	return nil
}

// matchError decides whether a compile failure was the expected one.
func matchError(tc Case, err error) error {
	want := tc.ExpectedError()
	if want == "" {
		return fmt.Errorf("compile failed: %w", err)
	}
	var ce *compiler.Error
	if errors.As(err, &ce) && string(ce.Code) == want {
		return nil
	}
	return fmt.Errorf("compile failed with %v, want a %s error", err, want)
}

// assertLines splits a fence into one substring expectation per
// non-blank line.
func assertLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
