package compiler

import (
	"strings"
	"testing"
)

// The whole chain on one source string, defaults everywhere.
func TestCompileSourceSmoke(t *testing.T) {
	src := `
	int twice(int v) { return v * 2; }
	int main(void) {
		int x = 1 + 2;
		int y = x - 1;
		return twice(x == y + 1);
	}
	`
	res, err := CompileSource(src, "smoke.c", CompileOptions{})
	if err != nil {
		t.Fatalf("CompileSource failed: %v\n%s", err, res.Diagnostics)
	}
	if res.Diagnostics.HasErrors() {
		t.Fatalf("unexpected diagnostics:\n%s", res.Diagnostics)
	}
	for _, want := range []string{
		"pushl %ebp",
		"movl %esp, %ebp",
		"call twice",
		"sete %al",
		"leave",
		"ret",
	} {
		if !strings.Contains(res.Output, want) {
			t.Errorf("assembly missing %q:\n%s", want, res.Output)
		}
	}
}

func TestCompileSourceRecordsWarnings(t *testing.T) {
	src := `
	int f(int v) {
		if (v > 0) {
			return 1;
		}
	}
	int main(void) { return f(1); }
	`
	res, err := CompileSource(src, "warn.c", CompileOptions{})
	if err != nil {
		t.Fatalf("CompileSource failed: %v", err)
	}
	warns := res.Diagnostics.Warnings()
	if len(warns) != 1 {
		t.Fatalf("expected one warning, got %d:\n%s", len(warns), res.Diagnostics)
	}
	if !strings.Contains(warns[0].Message, "control may reach the end") {
		t.Errorf("unexpected warning: %s", warns[0].Message)
	}
	if res.Output == "" {
		t.Error("a warning must not suppress output")
	}
	if warns[0].File != "warn.c" {
		t.Errorf("warning file = %q, want warn.c", warns[0].File)
	}
}

func TestCompileSourceRecordsSeed(t *testing.T) {
	src := `int main(void) { return 0; }`

	res, err := CompileSource(src, "seed.c", CompileOptions{
		Transform: Options{Seed: 77},
	})
	if err != nil {
		t.Fatalf("CompileSource failed: %v", err)
	}
	if res.Seed != 77 {
		t.Errorf("seed = %d, want 77", res.Seed)
	}

	// An unset seed is drawn from the clock and reported for replay.
	res, err = CompileSource(src, "seed.c", CompileOptions{
		Transform: Options{Obfuscate: ObfBasic},
	})
	if err != nil {
		t.Fatalf("CompileSource failed: %v", err)
	}
	if res.Seed == 0 {
		t.Error("a drawn seed must be recorded")
	}
}
