// Package config loads compilation profiles from TOML or JSON files and
// maps them onto the compiler's option types. A profile can set
// everything the command line can, so a team checks one file into the
// repository instead of sharing flag incantations.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/TheBitty/RustCC/pkg/compiler"
)

// File is the on-disk schema. Boolean toggles are pointers so that an
// absent key stays distinguishable from an explicit false: absent means
// "whatever the level implies".
type File struct {
	Optimization Optimization `toml:"optimization" json:"optimization"`
	Obfuscation  Obfuscation  `toml:"obfuscation" json:"obfuscation"`
	Output       Output       `toml:"output" json:"output"`
	Preprocessor Preprocessor `toml:"preprocessor" json:"preprocessor"`
	Verbose      bool         `toml:"verbose" json:"verbose"`
}

type Optimization struct {
	Level               string `toml:"level" json:"level"`
	InlineThreshold     int    `toml:"inline_threshold" json:"inline_threshold"`
	ConstantFolding     *bool  `toml:"constant_folding" json:"constant_folding"`
	DeadCodeElimination *bool  `toml:"dead_code_elimination" json:"dead_code_elimination"`
}

type Obfuscation struct {
	Level                  string   `toml:"level" json:"level"`
	VariableRenameStyle    string   `toml:"variable_rename_style" json:"variable_rename_style"`
	StringEncryption       *bool    `toml:"string_encryption" json:"string_encryption"`
	ExpressionComplication *bool    `toml:"expression_complication" json:"expression_complication"`
	ControlFlowFlattening  *bool    `toml:"control_flow_flattening" json:"control_flow_flattening"`
	OpaquePredicates       *bool    `toml:"opaque_predicates" json:"opaque_predicates"`
	DeadCodeInsertionRatio *float64 `toml:"dead_code_insertion_ratio" json:"dead_code_insertion_ratio"`
}

type Output struct {
	Format    string `toml:"format" json:"format"`
	DebugInfo bool   `toml:"debug_info" json:"debug_info"`
}

type Preprocessor struct {
	IncludePaths []string          `toml:"include_paths" json:"include_paths"`
	Defines      map[string]string `toml:"defines" json:"defines"`
	KeepComments bool              `toml:"keep_comments" json:"keep_comments"`
	GCCPath      string            `toml:"gcc_path" json:"gcc_path"`
}

// Profile is a loaded and validated configuration, ready to hand to the
// compiler. Warnings carry unknown keys and other advisories; a profile
// with warnings is still usable.
type Profile struct {
	Options      compiler.Options
	Emit         compiler.EmitKind
	IncludePaths []string
	Defines      map[string]string
	KeepComments bool
	GCCPath      string
	Verbose      bool
	DebugInfo    bool
	Warnings     []string
}

// Load reads a profile from path. The extension picks the format: .json
// parses as JSON, anything else as TOML. Unknown keys produce warnings
// rather than errors, so old tools keep reading new profiles; values
// outside their range are errors.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var f File
	var warnings []string
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, warnings, err = decodeJSON(data)
	} else {
		f, warnings, err = decodeTOML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.build(warnings)
}

func decodeTOML(data []byte) (File, []string, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return f, nil, err
	}
	var warnings []string
	for _, key := range md.Undecoded() {
		warnings = append(warnings, fmt.Sprintf("unknown config key %q", key))
	}
	return f, warnings, nil
}

// decodeJSON decodes strictly first. When the only problem is an unknown
// field it falls back to a lenient pass and downgrades the field to a
// warning, which matches what the TOML path reports.
func decodeJSON(data []byte) (File, []string, error) {
	var f File
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err := dec.Decode(&f)
	if err == nil {
		return f, nil, nil
	}
	if !strings.Contains(err.Error(), "unknown field") {
		return f, nil, err
	}
	warning := fmt.Sprintf("unknown config key: %v", err)
	f = File{}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, nil, err
	}
	return f, []string{warning}, nil
}

func (f *File) build(warnings []string) (*Profile, error) {
	p := &Profile{
		IncludePaths: f.Preprocessor.IncludePaths,
		Defines:      f.Preprocessor.Defines,
		KeepComments: f.Preprocessor.KeepComments,
		GCCPath:      f.Preprocessor.GCCPath,
		Verbose:      f.Verbose,
		DebugInfo:    f.Output.DebugInfo,
		Warnings:     warnings,
	}

	var err error
	if p.Options.Optimize, err = parseOptLevel(f.Optimization.Level); err != nil {
		return nil, err
	}
	if p.Options.Obfuscate, err = parseObfLevel(f.Obfuscation.Level); err != nil {
		return nil, err
	}

	if f.Optimization.InlineThreshold < 0 {
		return nil, fmt.Errorf("inline_threshold %d is negative", f.Optimization.InlineThreshold)
	}
	p.Options.InlineLimit = f.Optimization.InlineThreshold
	p.Options.ConstantFolding = toggleOf(f.Optimization.ConstantFolding)
	p.Options.DeadCodeRemoval = toggleOf(f.Optimization.DeadCodeElimination)

	style, err := compiler.ParseNameStyle(f.Obfuscation.VariableRenameStyle)
	if err != nil {
		return nil, err
	}
	p.Options.NameStyle = style
	p.Options.EncryptStrings = toggleOf(f.Obfuscation.StringEncryption)
	p.Options.ComplicateExprs = toggleOf(f.Obfuscation.ExpressionComplication)
	p.Options.FlattenControlFlow = toggleOf(f.Obfuscation.ControlFlowFlattening)
	p.Options.OpaquePredicates = toggleOf(f.Obfuscation.OpaquePredicates)

	// The ratio both gates and tunes the pass: zero switches insertion
	// off, anything above forces it on at that density.
	if r := f.Obfuscation.DeadCodeInsertionRatio; r != nil {
		if *r < 0 || *r > 1 {
			return nil, fmt.Errorf("dead_code_insertion_ratio %v out of range [0, 1]", *r)
		}
		if *r == 0 {
			p.Options.InsertDeadCode = compiler.ToggleOff
		} else {
			p.Options.InsertDeadCode = compiler.ToggleOn
			p.Options.DeadCodeRatio = *r
		}
	}

	switch strings.ToLower(f.Output.Format) {
	case "", "asm":
		p.Emit = compiler.EmitAssembly
	case "c":
		p.Emit = compiler.EmitCSource
	default:
		return nil, fmt.Errorf("output format %q (want asm or c)", f.Output.Format)
	}

	return p, nil
}

func parseOptLevel(s string) (compiler.OptLevel, error) {
	switch strings.ToLower(s) {
	case "", "none", "o0":
		return compiler.OptNone, nil
	case "basic", "o1":
		return compiler.OptBasic, nil
	case "full", "o2":
		return compiler.OptFull, nil
	}
	return compiler.OptNone, fmt.Errorf("optimization level %q (want none, basic, or full)", s)
}

func parseObfLevel(s string) (compiler.ObfLevel, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return compiler.ObfNone, nil
	case "basic":
		return compiler.ObfBasic, nil
	case "aggressive", "full":
		return compiler.ObfAggressive, nil
	}
	return compiler.ObfNone, fmt.Errorf("obfuscation level %q (want none, basic, or aggressive)", s)
}

func toggleOf(b *bool) compiler.Toggle {
	switch {
	case b == nil:
		return compiler.ToggleDefault
	case *b:
		return compiler.ToggleOn
	default:
		return compiler.ToggleOff
	}
}
