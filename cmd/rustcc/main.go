// Command rustcc compiles C source files to obfuscated x86-32 assembly.
//
//	rustcc <source.c>... [-o out] [-O0|-O1|-O2] [-obf0|-obf1|-obf2]
//	       [-I dir] [-D name[=val]] [-E] [-emit asm|c] [-config file]
//	       [-seed n]
//
// Each source file compiles as an independent translation unit. Units
// run concurrently; diagnostics go to stderr and the exit status is
// nonzero when any unit fails.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TheBitty/RustCC/pkg/compiler"
	"github.com/TheBitty/RustCC/pkg/config"
)

const usage = `usage: rustcc <source.c>... [options]

  -o <file>       write output to <file> (one source only)
  -O0 -O1 -O2     optimization level (default -O0)
  -obf0..-obf2    obfuscation level (default -obf0)
  -I <dir>        add an include search directory
  -D name[=val]   predefine a macro
  -E              stop after preprocessing, write <stem>.i
  -emit asm|c     output kind (default asm)
  -config <file>  load a TOML or JSON compilation profile
  -seed <n>       fix the obfuscation seed
`

// cliArgs records what the command line actually said. Set markers keep
// "flag absent" distinguishable from "flag at its zero value" so that
// profile settings survive unless a flag overrides them.
type cliArgs struct {
	sources  []string
	out      string
	conf     string
	includes []string
	defines  map[string]string

	opt     compiler.OptLevel
	optSet  bool
	obf     compiler.ObfLevel
	obfSet  bool
	emit    compiler.EmitKind
	emitSet bool
	seed    int64
	seedSet bool
	pponly  bool
}

func main() {
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "rustcc:", err)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	opts, profile, err := buildOptions(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rustcc:", err)
		os.Exit(2)
	}
	for _, w := range profile.Warnings {
		fmt.Fprintln(os.Stderr, "rustcc: warning:", w)
	}

	results, _ := compiler.CompileAll(context.Background(), args.sources, opts)

	failed := false
	for i, res := range results {
		for _, d := range res.Diagnostics {
			fmt.Fprintln(os.Stderr, d)
		}
		if res.Diagnostics.HasErrors() {
			failed = true
			continue
		}
		if profile.Verbose {
			fmt.Fprintf(os.Stderr, "rustcc: %s: seed %d\n", res.Path, res.Seed)
		}
		dest := outputPath(args, i, opts.Emit)
		if err := os.WriteFile(dest, []byte(res.Output), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "rustcc:", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func parseArgs(argv []string) (*cliArgs, error) {
	args := &cliArgs{defines: map[string]string{}}
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		next := func(what string) (string, error) {
			i++
			if i >= len(argv) {
				return "", fmt.Errorf("%s needs an argument", what)
			}
			return argv[i], nil
		}
		switch {
		case arg == "-o":
			v, err := next("-o")
			if err != nil {
				return nil, err
			}
			args.out = v
		case arg == "-O0", arg == "-O1", arg == "-O2":
			args.opt = compiler.OptLevel(arg[2] - '0')
			args.optSet = true
		case arg == "-obf0", arg == "-obf1", arg == "-obf2":
			args.obf = compiler.ObfLevel(arg[4] - '0')
			args.obfSet = true
		case arg == "-I":
			v, err := next("-I")
			if err != nil {
				return nil, err
			}
			args.includes = append(args.includes, v)
		case strings.HasPrefix(arg, "-I"):
			args.includes = append(args.includes, arg[2:])
		case arg == "-D":
			v, err := next("-D")
			if err != nil {
				return nil, err
			}
			defineArg(args.defines, v)
		case strings.HasPrefix(arg, "-D"):
			defineArg(args.defines, arg[2:])
		case arg == "-E":
			args.pponly = true
		case arg == "-emit":
			v, err := next("-emit")
			if err != nil {
				return nil, err
			}
			switch v {
			case "asm":
				args.emit = compiler.EmitAssembly
			case "c":
				args.emit = compiler.EmitCSource
			default:
				return nil, fmt.Errorf("-emit %s: want asm or c", v)
			}
			args.emitSet = true
		case arg == "-config":
			v, err := next("-config")
			if err != nil {
				return nil, err
			}
			args.conf = v
		case arg == "-seed":
			v, err := next("-seed")
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("-seed %s: not an integer", v)
			}
			args.seed = n
			args.seedSet = true
		case arg == "-h", arg == "-help", arg == "--help":
			fmt.Print(usage)
			os.Exit(0)
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag %s", arg)
		default:
			args.sources = append(args.sources, arg)
		}
	}
	if len(args.sources) == 0 {
		return nil, fmt.Errorf("no source files")
	}
	if args.out != "" && len(args.sources) > 1 {
		return nil, fmt.Errorf("-o cannot name the output of %d source files", len(args.sources))
	}
	return args, nil
}

func defineArg(defines map[string]string, s string) {
	name, val, ok := strings.Cut(s, "=")
	if !ok {
		val = "1"
	}
	defines[name] = val
}

// buildOptions merges the profile (if any) with the command line. Flags
// win over profile settings; include paths and defines accumulate.
func buildOptions(args *cliArgs) (compiler.CompileOptions, *config.Profile, error) {
	profile := &config.Profile{Emit: compiler.EmitAssembly}
	if args.conf != "" {
		p, err := config.Load(args.conf)
		if err != nil {
			return compiler.CompileOptions{}, nil, err
		}
		profile = p
	}

	opts := compiler.CompileOptions{
		Transform: profile.Options,
		Emit:      profile.Emit,
	}
	if args.optSet {
		opts.Transform.Optimize = args.opt
	}
	if args.obfSet {
		opts.Transform.Obfuscate = args.obf
	}
	if args.seedSet {
		opts.Transform.Seed = args.seed
	}
	if args.emitSet {
		opts.Emit = args.emit
	}
	if args.pponly {
		opts.Emit = compiler.EmitPreprocessed
	}

	includes := append(append([]string{}, profile.IncludePaths...), args.includes...)
	defines := map[string]string{}
	for k, v := range profile.Defines {
		defines[k] = v
	}
	for k, v := range args.defines {
		defines[k] = v
	}
	opts.Preprocessor = compiler.SelectPreprocessor(profile.GCCPath, includes, defines, profile.KeepComments)

	return opts, profile, nil
}

func outputPath(args *cliArgs, i int, emit compiler.EmitKind) string {
	if args.out != "" {
		return args.out
	}
	src := args.sources[i]
	stem := strings.TrimSuffix(src, filepath.Ext(src))
	switch emit {
	case compiler.EmitPreprocessed:
		return stem + ".i"
	case compiler.EmitCSource:
		// Never the bare .c name, which would overwrite the input.
		return stem + ".obf.c"
	default:
		return stem + ".s"
	}
}
