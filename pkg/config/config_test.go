package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"

	"github.com/TheBitty/RustCC/pkg/compiler"
)

// writeProfile drops content into a temp file with the given name and
// returns its path.
func writeProfile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	be.Err(t, os.WriteFile(path, []byte(content), 0o644), nil)
	return path
}

func TestLoadTOMLProfile(t *testing.T) {
	path := writeProfile(t, "profile.toml", `
verbose = true

[optimization]
level = "full"
inline_threshold = 12
constant_folding = true
dead_code_elimination = false

[obfuscation]
level = "aggressive"
variable_rename_style = "sequential"
string_encryption = true
expression_complication = false
control_flow_flattening = true
opaque_predicates = false
dead_code_insertion_ratio = 0.35

[output]
format = "c"
debug_info = true

[preprocessor]
include_paths = ["include", "/usr/local/include"]
keep_comments = true
gcc_path = "/opt/cc/bin/gcc"

[preprocessor.defines]
DEBUG = "1"
VERSION = "\"2.1\""
`)
	p, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, len(p.Warnings), 0)

	want := compiler.Options{
		Optimize:           compiler.OptFull,
		Obfuscate:          compiler.ObfAggressive,
		ConstantFolding:    compiler.ToggleOn,
		DeadCodeRemoval:    compiler.ToggleOff,
		InlineLimit:        12,
		NameStyle:          compiler.NameSequential,
		EncryptStrings:     compiler.ToggleOn,
		ComplicateExprs:    compiler.ToggleOff,
		OpaquePredicates:   compiler.ToggleOff,
		InsertDeadCode:     compiler.ToggleOn,
		FlattenControlFlow: compiler.ToggleOn,
		DeadCodeRatio:      0.35,
	}
	if diff := cmp.Diff(want, p.Options); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	be.Equal(t, p.Emit, compiler.EmitCSource)
	be.True(t, p.Verbose)
	be.True(t, p.DebugInfo)
	be.True(t, p.KeepComments)
	be.Equal(t, p.GCCPath, "/opt/cc/bin/gcc")
	if diff := cmp.Diff([]string{"include", "/usr/local/include"}, p.IncludePaths); diff != "" {
		t.Errorf("include paths mismatch (-want +got):\n%s", diff)
	}
	be.Equal(t, p.Defines["DEBUG"], "1")
	be.Equal(t, p.Defines["VERSION"], `"2.1"`)
}

// The .json extension selects the JSON decoder; the same schema loads to
// the same profile.
func TestLoadJSONProfile(t *testing.T) {
	path := writeProfile(t, "profile.json", `{
	"optimization": {"level": "basic", "inline_threshold": 3},
	"obfuscation": {
		"level": "basic",
		"string_encryption": false,
		"dead_code_insertion_ratio": 1.0
	},
	"output": {"format": "asm"}
}`)
	p, err := Load(path)
	be.Err(t, err, nil)

	want := compiler.Options{
		Optimize:       compiler.OptBasic,
		Obfuscate:      compiler.ObfBasic,
		InlineLimit:    3,
		EncryptStrings: compiler.ToggleOff,
		InsertDeadCode: compiler.ToggleOn,
		DeadCodeRatio:  1.0,
	}
	if diff := cmp.Diff(want, p.Options); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	be.Equal(t, p.Emit, compiler.EmitAssembly)
}

// An absent toggle stays distinguishable from an explicit false: absent
// defers to the level, false forces the pass off.
func TestToggleThreeStates(t *testing.T) {
	cases := []struct {
		name string
		body string
		want compiler.Toggle
	}{
		{"absent", ``, compiler.ToggleDefault},
		{"true", `string_encryption = true`, compiler.ToggleOn},
		{"false", `string_encryption = false`, compiler.ToggleOff},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			path := writeProfile(t, "t.toml", "[obfuscation]\n"+tt.body+"\n")
			p, err := Load(path)
			be.Err(t, err, nil)
			be.Equal(t, p.Options.EncryptStrings, tt.want)
		})
	}
}

// A zero ratio is a switch-off, not "use the default density".
func TestDeadCodeRatioGatesInsertion(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		toggle compiler.Toggle
		ratio  float64
	}{
		{"absent", ``, compiler.ToggleDefault, 0},
		{"zero", `dead_code_insertion_ratio = 0.0`, compiler.ToggleOff, 0},
		{"tuned", `dead_code_insertion_ratio = 0.6`, compiler.ToggleOn, 0.6},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			path := writeProfile(t, "r.toml", "[obfuscation]\n"+tt.body+"\n")
			p, err := Load(path)
			be.Err(t, err, nil)
			be.Equal(t, p.Options.InsertDeadCode, tt.toggle)
			be.Equal(t, p.Options.DeadCodeRatio, tt.ratio)
		})
	}
}

// Unknown keys warn instead of failing, so an old binary still reads a
// profile written for a newer one.
func TestUnknownKeysWarn(t *testing.T) {
	t.Run("toml", func(t *testing.T) {
		path := writeProfile(t, "extra.toml", `
[obfuscation]
level = "basic"
shiny_new_feature = true
`)
		p, err := Load(path)
		be.Err(t, err, nil)
		be.Equal(t, len(p.Warnings), 1)
		be.True(t, strings.Contains(p.Warnings[0], "shiny_new_feature"))
		be.Equal(t, p.Options.Obfuscate, compiler.ObfBasic)
	})
	t.Run("json", func(t *testing.T) {
		path := writeProfile(t, "extra.json", `{
	"obfuscation": {"level": "basic", "shiny_new_feature": true}
}`)
		p, err := Load(path)
		be.Err(t, err, nil)
		be.Equal(t, len(p.Warnings), 1)
		be.Equal(t, p.Options.Obfuscate, compiler.ObfBasic)
	})
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"bad optimization level", "a.toml", "[optimization]\nlevel = \"turbo\"\n", "optimization level"},
		{"bad obfuscation level", "b.toml", "[obfuscation]\nlevel = \"paranoid\"\n", "obfuscation level"},
		{"bad rename style", "c.toml", "[obfuscation]\nvariable_rename_style = \"leet\"\n", "name style"},
		{"negative threshold", "d.toml", "[optimization]\ninline_threshold = -1\n", "negative"},
		{"ratio above one", "e.toml", "[obfuscation]\ndead_code_insertion_ratio = 1.5\n", "out of range"},
		{"ratio below zero", "f.toml", "[obfuscation]\ndead_code_insertion_ratio = -0.25\n", "out of range"},
		{"bad output format", "g.toml", "[output]\nformat = \"elf\"\n", "output format"},
		{"malformed toml", "h.toml", "[obfuscation\nlevel = \"basic\"\n", "parse"},
		{"malformed json", "i.json", `{"obfuscation": {`, "parse"},
		{"type mismatch json", "j.json", `{"verbose": "yes"}`, "parse"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			path := writeProfile(t, tt.file, tt.content)
			_, err := Load(path)
			be.True(t, err != nil)
			be.True(t, strings.Contains(err.Error(), tt.wantErr))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	be.True(t, err != nil)
}

// Case of the extension must not matter on systems that uppercase file
// names.
func TestLoadExtensionCase(t *testing.T) {
	path := writeProfile(t, "UPPER.JSON", `{"optimization": {"level": "full"}}`)
	p, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, p.Options.Optimize, compiler.OptFull)
}
