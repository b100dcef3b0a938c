package compiler

import "context"

// EmitKind selects what text a compilation produces.
type EmitKind int

const (
	// EmitAssembly produces assembly text, the default.
	EmitAssembly EmitKind = iota
	// EmitCSource re-emits the transformed tree as C, for inspecting
	// what the passes did.
	EmitCSource
	// EmitPreprocessed stops after preprocessing.
	EmitPreprocessed
)

// CompileOptions bundles everything the chain needs beyond the source
// file itself.
type CompileOptions struct {
	// Transform controls the optimization and obfuscation passes.
	Transform Options
	Emit      EmitKind
	// Preprocessor handles directives before lexing. Nil selects the
	// external preprocessor when installed, the native one otherwise.
	Preprocessor Preprocessor
}

// CompileResult is the outcome for one translation unit. Diagnostics are
// always populated; Output is empty when they contain an error.
type CompileResult struct {
	Path        string
	Output      string
	Diagnostics Diagnostics
	// Seed is the generator seed the transforms actually used, recorded
	// so a run can be reproduced.
	Seed int64
}

// CompileFile runs the whole chain on one file: preprocess, lex, parse,
// transform, emit. The returned error, when non-nil, is also present in
// the result's diagnostics; callers that only report can ignore it.
func CompileFile(ctx context.Context, path string, opts CompileOptions) (*CompileResult, error) {
	pp := opts.Preprocessor
	if pp == nil {
		pp = SelectPreprocessor("", nil, nil, false)
	}

	src, err := pp.Preprocess(ctx, path)
	if err != nil {
		res := &CompileResult{Path: path, Seed: opts.Transform.Seed}
		res.Diagnostics = append(res.Diagnostics, toDiagnostic(err, path))
		return res, err
	}
	if opts.Emit == EmitPreprocessed {
		return &CompileResult{Path: path, Output: src, Seed: opts.Transform.Seed}, nil
	}
	return CompileSource(src, path, opts)
}

// CompileSource runs the chain on text that is already preprocessed. The
// path only labels diagnostics.
func CompileSource(src, path string, opts CompileOptions) (*CompileResult, error) {
	res := &CompileResult{Path: path, Seed: opts.Transform.Seed}

	tokens, err := Lex(src)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, toDiagnostic(err, path))
		return res, err
	}

	prog, err := Parse(tokens, src, path)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, toDiagnostic(err, path))
		return res, err
	}

	tr, err := Transform(prog, opts.Transform)
	if tr != nil {
		res.Diagnostics = append(res.Diagnostics, tr.Diagnostics...)
		res.Seed = tr.Seed
	}
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, toDiagnostic(err, path))
		return res, err
	}

	switch opts.Emit {
	case EmitCSource:
		res.Output = EmitC(tr.Program)
	case EmitPreprocessed:
		res.Output = src
	default:
		asm, err := Generate(tr.Program, tr.Table)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, toDiagnostic(err, path))
			return res, err
		}
		res.Output = asm
	}
	return res, nil
}
