package compiler_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TheBitty/RustCC/pkg/compiler"
)

// writeSource drops a file into dir and returns its path.
func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompileFileProducesAssembly(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "mathlib.c", `
int square(int x) {
	return x * x;
}
`)
	mainPath := writeSource(t, dir, "main.c", `
#include "mathlib.c"

int main(void) {
	return square(6);
}
`)

	res, err := compiler.CompileFile(context.Background(), mainPath, compiler.CompileOptions{
		Preprocessor: &compiler.NativePreprocessor{},
	})
	if err != nil {
		t.Fatalf("CompileFile failed: %v\n%s", err, res.Diagnostics)
	}
	if res.Path != mainPath {
		t.Errorf("result path = %q, want %q", res.Path, mainPath)
	}
	for _, want := range []string{".globl main", "main:", "square:", "call square"} {
		if !strings.Contains(res.Output, want) {
			t.Errorf("assembly missing %q:\n%s", want, res.Output)
		}
	}
}

func TestCompileFileEmitsCSource(t *testing.T) {
	dir := t.TempDir()
	mainPath := writeSource(t, dir, "main.c", `
int main(void) {
	int x = 2 + 3;
	return x;
}
`)

	res, err := compiler.CompileFile(context.Background(), mainPath, compiler.CompileOptions{
		Emit:         compiler.EmitCSource,
		Preprocessor: &compiler.NativePreprocessor{},
	})
	if err != nil {
		t.Fatalf("CompileFile failed: %v", err)
	}
	if !strings.Contains(res.Output, "int main(void) {") {
		t.Errorf("emitted C missing the main definition:\n%s", res.Output)
	}
	if strings.Contains(res.Output, ".globl") {
		t.Errorf("emitted C contains assembly:\n%s", res.Output)
	}
}

func TestCompileFileEmitsPreprocessed(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "defs.c", `
#define ANSWER 42
int answer(void) { return ANSWER; }
`)
	mainPath := writeSource(t, dir, "main.c", `
#include "defs.c"

int main(void) {
	return answer();
}
`)

	res, err := compiler.CompileFile(context.Background(), mainPath, compiler.CompileOptions{
		Emit:         compiler.EmitPreprocessed,
		Preprocessor: &compiler.NativePreprocessor{},
	})
	if err != nil {
		t.Fatalf("CompileFile failed: %v", err)
	}
	if !strings.Contains(res.Output, "return 42") {
		t.Errorf("macro not expanded in preprocessed output:\n%s", res.Output)
	}
	if strings.Contains(res.Output, "#include") || strings.Contains(res.Output, "#define") {
		t.Errorf("directives survived preprocessing:\n%s", res.Output)
	}
}

func TestCompileFileMissingFile(t *testing.T) {
	res, err := compiler.CompileFile(context.Background(), filepath.Join(t.TempDir(), "nope.c"), compiler.CompileOptions{
		Preprocessor: &compiler.NativePreprocessor{},
	})
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !res.Diagnostics.HasErrors() {
		t.Error("diagnostics should record the failure")
	}
	if res.Output != "" {
		t.Errorf("output should be empty on failure, got %q", res.Output)
	}
}

func TestCompileAllUnitsIndependent(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeSource(t, dir, "a.c", `int alpha(void) { return 1; } int main(void) { return alpha(); }`),
		writeSource(t, dir, "b.c", `int broken(void) { return undefined_name; }`),
		writeSource(t, dir, "c.c", `int gamma(void) { return 3; } int main(void) { return gamma(); }`),
	}

	results, err := compiler.CompileAll(context.Background(), paths, compiler.CompileOptions{
		Preprocessor: &compiler.NativePreprocessor{},
	})
	if err == nil {
		t.Fatal("expected the broken unit to surface an error")
	}
	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}

	// A failed sibling leaves the good units untouched.
	if !strings.Contains(results[0].Output, "alpha:") {
		t.Errorf("first unit missing its code:\n%s", results[0].Output)
	}
	if !results[1].Diagnostics.HasErrors() {
		t.Error("second unit should carry its own diagnostics")
	}
	if results[1].Output != "" {
		t.Errorf("failed unit produced output: %q", results[1].Output)
	}
	if !strings.Contains(results[2].Output, "gamma:") {
		t.Errorf("third unit missing its code:\n%s", results[2].Output)
	}
}

func TestCompileAllSeedsPerUnit(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeSource(t, dir, "a.c", `int main(void) { return 1; }`),
		writeSource(t, dir, "b.c", `int main(void) { return 2; }`),
		writeSource(t, dir, "c.c", `int main(void) { return 3; }`),
	}

	results, err := compiler.CompileAll(context.Background(), paths, compiler.CompileOptions{
		Transform:    compiler.Options{Seed: 100},
		Preprocessor: &compiler.NativePreprocessor{},
	})
	if err != nil {
		t.Fatalf("CompileAll failed: %v", err)
	}
	for i, res := range results {
		want := int64(100 + i)
		if res.Seed != want {
			t.Errorf("unit %d seed = %d, want %d", i, res.Seed, want)
		}
	}
}

func TestCompileSourceBadSyntax(t *testing.T) {
	res, err := compiler.CompileSource(`int main( {`, "broken.c", compiler.CompileOptions{})
	if err == nil {
		t.Fatal("expected a parse error")
	}
	errs := res.Diagnostics.Errors()
	if len(errs) == 0 {
		t.Fatal("diagnostics should record the parse error")
	}
	if errs[0].Code != compiler.SyntaxInput {
		t.Errorf("code = %s, want %s", errs[0].Code, compiler.SyntaxInput)
	}
	if errs[0].File != "broken.c" {
		t.Errorf("file = %q, want broken.c", errs[0].File)
	}
}
