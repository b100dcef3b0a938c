package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// ExecPreprocessor delegates to an external C preprocessor, normally
// gcc -E. It understands the full directive language and is preferred
// when the binary is installed; the native fallback covers the rest.
type ExecPreprocessor struct {
	// Binary is the command to run; empty means "gcc".
	Binary       string
	IncludeDirs  []string
	Defines      map[string]string
	KeepComments bool
}

// DefaultGCC is the preprocessor binary probed for when none is
// configured.
const DefaultGCC = "gcc"

func (p *ExecPreprocessor) Preprocess(ctx context.Context, path string) (string, error) {
	bin := p.Binary
	if bin == "" {
		bin = DefaultGCC
	}

	// -P suppresses linemarkers, which the lexer has no use for.
	args := []string{"-E", "-P"}
	if p.KeepComments {
		args = append(args, "-C")
	}
	for _, dir := range p.IncludeDirs {
		args = append(args, "-I", dir)
	}
	names := make([]string, 0, len(p.Defines))
	for name := range p.Defines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if val := p.Defines[name]; val != "" {
			args = append(args, "-D", fmt.Sprintf("%s=%s", name, val))
		} else {
			args = append(args, "-D", name)
		}
	}
	args = append(args, path)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		if ctx.Err() != nil {
			msg = fmt.Sprintf("%v (%s)", ctx.Err(), msg)
		}
		return "", errorf(ExternalToolFailure, 0, "%s -E %s: %s", bin, path, msg)
	}
	return stdout.String(), nil
}

// SelectPreprocessor picks the external preprocessor when its binary can
// be found on PATH and falls back to the native one otherwise. Both
// receive the same include directories and predefines.
func SelectPreprocessor(binary string, dirs []string, defines map[string]string, keepComments bool) Preprocessor {
	if binary == "" {
		binary = DefaultGCC
	}
	if _, err := exec.LookPath(binary); err == nil {
		return &ExecPreprocessor{
			Binary:       binary,
			IncludeDirs:  dirs,
			Defines:      defines,
			KeepComments: keepComments,
		}
	}
	return &NativePreprocessor{IncludeDirs: dirs, Defines: defines}
}
