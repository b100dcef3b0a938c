// Package ctest runs the Markdown test corpus. A corpus file holds
// named C programs with expectations about what they compile to and
// what they do when run; the runner compiles each case at several
// optimization and obfuscation levels and checks that the expectations
// hold at every one, which is the differential property the obfuscator
// promises.
//
// Corpus format: a heading `Test: <name>` opens a case. A fenced
// `c-program` block is the source. Assertion fences are `returns` (the
// value main returns), `output` (the exact bytes the program writes,
// final newline included), `compile-error` (the diagnostic code the
// compiler must report), and `asm-contains` / `asm-absent` (one
// substring per line, checked against the generated assembly). An
// `input` fence supplies stdin.
package ctest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// AssertKind is the fence language of an assertion.
type AssertKind string

const (
	AssertReturns      AssertKind = "returns"
	AssertOutput       AssertKind = "output"
	AssertCompileError AssertKind = "compile-error"
	AssertAsmContains  AssertKind = "asm-contains"
	AssertAsmAbsent    AssertKind = "asm-absent"
)

const (
	sourceFence = "c-program"
	stdinFence  = "input"
)

// Assertion is one expectation attached to a case.
type Assertion struct {
	Kind    AssertKind
	Content string
	Line    int
}

// Case is one extracted corpus entry.
type Case struct {
	Name       string
	Source     string
	Stdin      string
	Assertions []Assertion
}

// ExpectedError returns the diagnostic code a compile-error assertion
// names, or "" when the case must compile.
func (c Case) ExpectedError() string {
	for _, a := range c.Assertions {
		if a.Kind == AssertCompileError {
			return strings.TrimSpace(a.Content)
		}
	}
	return ""
}

// ExtractCases parses a corpus document. Malformed corpora are errors,
// not skipped cases: a typo in a fence language would otherwise silently
// drop the expectation it carried.
func ExtractCases(markdown string) ([]Case, error) {
	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var cases []Case
	var cur *Case

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			heading := headingText(n, source)
			name, ok := strings.CutPrefix(heading, "Test: ")
			if !ok {
				return ast.WalkContinue, nil
			}
			if cur != nil {
				if err := cur.validate(); err != nil {
					return ast.WalkStop, err
				}
				cases = append(cases, *cur)
			}
			cur = &Case{Name: name}

		case *ast.FencedCodeBlock:
			lang := string(n.Language(source))
			content := fenceContent(n, source)
			line := fenceLine(n, source)

			if cur == nil {
				if lang == "" {
					return ast.WalkContinue, nil
				}
				return ast.WalkStop, fmt.Errorf("line %d: %s fence outside any test case", line, lang)
			}

			switch {
			case lang == sourceFence:
				if cur.Source != "" {
					return ast.WalkStop, fmt.Errorf("line %d: second c-program fence in test %q", line, cur.Name)
				}
				cur.Source = content
			case lang == stdinFence:
				if cur.Stdin != "" {
					return ast.WalkStop, fmt.Errorf("line %d: second input fence in test %q", line, cur.Name)
				}
				cur.Stdin = content
			case isAssertFence(lang):
				a := Assertion{Kind: AssertKind(lang), Content: content, Line: line}
				if err := a.check(cur.Name); err != nil {
					return ast.WalkStop, err
				}
				cur.Assertions = append(cur.Assertions, a)
			case lang == "":
				// Untyped fences are prose illustrations.
			default:
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence language %q in test %q", line, lang, cur.Name)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	if cur != nil {
		if err := cur.validate(); err != nil {
			return nil, err
		}
		cases = append(cases, *cur)
	}
	return cases, nil
}

func (c *Case) validate() error {
	if c.Source == "" {
		return fmt.Errorf("test %q has no c-program fence", c.Name)
	}
	if len(c.Assertions) == 0 {
		return fmt.Errorf("test %q has no assertion fences", c.Name)
	}
	return nil
}

// check validates assertion content at extraction time, so a corpus
// typo fails the whole file instead of one matrix point.
func (a Assertion) check(test string) error {
	switch a.Kind {
	case AssertReturns:
		if _, err := strconv.ParseInt(strings.TrimSpace(a.Content), 10, 32); err != nil {
			return fmt.Errorf("line %d: returns fence in test %q is not an int32: %q", a.Line, test, strings.TrimSpace(a.Content))
		}
	case AssertCompileError:
		if strings.TrimSpace(a.Content) == "" {
			return fmt.Errorf("line %d: empty compile-error fence in test %q", a.Line, test)
		}
	case AssertAsmContains, AssertAsmAbsent:
		if strings.TrimSpace(a.Content) == "" {
			return fmt.Errorf("line %d: empty %s fence in test %q", a.Line, a.Kind, test)
		}
	}
	return nil
}

func isAssertFence(lang string) bool {
	switch AssertKind(lang) {
	case AssertReturns, AssertOutput, AssertCompileError, AssertAsmContains, AssertAsmAbsent:
		return true
	}
	return false
}

func headingText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := n.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func fenceContent(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < block.Lines().Len(); i++ {
		seg := block.Lines().At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

func fenceLine(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	start := node.Lines().At(0).Start
	line := 1
	for i := 0; i < start && i < len(source); i++ {
		if source[i] == '\n' {
			line++
		}
	}
	return line
}
