package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// A Preprocessor turns a source file into one self-contained translation
// unit with every directive resolved.
type Preprocessor interface {
	Preprocess(ctx context.Context, path string) (string, error)
}

// NativePreprocessor resolves directives in-process: quoted #include with
// cycle detection, #define/#undef substitution, and #ifdef family
// conditionals. It covers what the subset needs when no external
// preprocessor is installed.
type NativePreprocessor struct {
	// IncludeDirs are searched in order, after the including file's own
	// directory.
	IncludeDirs []string
	// Defines are predefined object-like macros, as if each had appeared
	// in a #define above the first line.
	Defines map[string]string
}

func (p *NativePreprocessor) Preprocess(_ context.Context, path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", errorf(SyntaxInput, 0, "read %s: %v", path, err)
	}
	return p.Expand(string(src), filepath.Dir(path))
}

// Expand processes src as if it had been read from a file in dir.
func (p *NativePreprocessor) Expand(src, dir string) (string, error) {
	st := &ppState{
		macros: make(map[string]Macro),
		once:   make(map[string]bool),
		dirs:   p.IncludeDirs,
	}
	for name, body := range p.Defines {
		st.macros[name] = Macro{Body: body}
	}
	return st.expand(src, dir, nil)
}

// Macro is one #define. A function-like macro has FuncLike set even when
// its parameter list is empty.
type Macro struct {
	Params   []string
	Body     string
	FuncLike bool
}

type ppState struct {
	macros map[string]Macro
	once   map[string]bool // absolute paths already spliced in
	dirs   []string
}

// cond is one open conditional. live marks whether lines of the current
// branch are kept; taken records that some branch of this conditional has
// been live, which is what #else consults; parent is the liveness of the
// enclosing context.
type cond struct {
	live   bool
	taken  bool
	parent bool
}

// expand processes one file's text. Directives are replaced by blank
// lines so the line numbering of what remains roughly survives; included
// files are spliced in place. stack holds the chain of absolute paths
// currently being included, for cycle reporting.
func (st *ppState) expand(src, dir string, stack []string) (string, error) {
	var out strings.Builder
	var conds []cond
	live := func() bool {
		for _, c := range conds {
			if !c.live {
				return false
			}
		}
		return true
	}

	for i, raw := range strings.Split(src, "\n") {
		line := i + 1
		t := strings.TrimSpace(raw)

		// The conditional directives are tracked even inside a dead
		// branch, otherwise the matching #endif could not be found.
		switch {
		case strings.HasPrefix(t, "#ifdef") || strings.HasPrefix(t, "#ifndef"):
			neg := strings.HasPrefix(t, "#ifndef")
			name := directiveArg(t)
			if name == "" {
				return "", errorf(SyntaxInput, line, "%s needs a macro name", directiveWord(t))
			}
			_, defined := st.macros[name]
			want := defined != neg
			parent := live()
			conds = append(conds, cond{live: parent && want, taken: want, parent: parent})
			out.WriteByte('\n')
			continue

		case t == "#else":
			if len(conds) == 0 {
				return "", errorf(SyntaxInput, line, "#else without a matching #ifdef")
			}
			c := &conds[len(conds)-1]
			c.live = c.parent && !c.taken
			c.taken = true
			out.WriteByte('\n')
			continue

		case t == "#endif":
			if len(conds) == 0 {
				return "", errorf(SyntaxInput, line, "#endif without a matching #ifdef")
			}
			conds = conds[:len(conds)-1]
			out.WriteByte('\n')
			continue
		}

		if !live() {
			out.WriteByte('\n')
			continue
		}

		switch {
		case strings.HasPrefix(t, "#define"):
			if err := st.define(t); err != nil {
				return "", errorf(SyntaxInput, line, "%v", err)
			}
			out.WriteByte('\n')

		case strings.HasPrefix(t, "#undef"):
			name := directiveArg(t)
			if name == "" {
				return "", errorf(SyntaxInput, line, "#undef needs a macro name")
			}
			delete(st.macros, name)
			out.WriteByte('\n')

		case strings.HasPrefix(t, "#include"):
			text, err := st.include(t, dir, stack)
			if err != nil {
				return "", errorf(SyntaxInput, line, "%v", err)
			}
			out.WriteString(text)

		case strings.HasPrefix(t, "#"):
			return "", errorf(SyntaxInput, line, "unsupported directive %s", directiveWord(t))

		default:
			out.WriteString(expandMacros(raw, st.macros))
			out.WriteByte('\n')
		}
	}

	if len(conds) > 0 {
		return "", errorf(SyntaxInput, 0, "unterminated conditional at end of file")
	}
	return out.String(), nil
}

// directiveWord returns the leading #word of a directive line.
func directiveWord(t string) string {
	end := 1
	for end < len(t) && t[end] != ' ' && t[end] != '\t' {
		end++
	}
	return t[:end]
}

// directiveArg returns the first token after the directive word.
func directiveArg(t string) string {
	fields := strings.Fields(t)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

func (st *ppState) define(t string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(t, "#define"))
	if rest == "" {
		return fmt.Errorf("#define needs a macro name")
	}

	end := 0
	for end < len(rest) && rest[end] != ' ' && rest[end] != '\t' && rest[end] != '(' {
		end++
	}
	name := rest[:end]
	rest = rest[end:]

	var m Macro
	// A parameter list counts only when the parenthesis touches the name.
	if strings.HasPrefix(rest, "(") {
		closing := strings.IndexByte(rest, ')')
		if closing < 0 {
			return fmt.Errorf("unterminated parameter list in #define %s", name)
		}
		m.FuncLike = true
		if inner := strings.TrimSpace(rest[1:closing]); inner != "" {
			for _, p := range strings.Split(inner, ",") {
				m.Params = append(m.Params, strings.TrimSpace(p))
			}
		}
		rest = rest[closing+1:]
	}
	m.Body = strings.TrimSpace(rest)

	// Object-like bodies expand at definition time. Function-like bodies
	// wait for their arguments, which shadow the global table.
	if !m.FuncLike {
		m.Body = expandMacros(m.Body, st.macros)
	}
	st.macros[name] = m
	return nil
}

func (st *ppState) include(t, dir string, stack []string) (string, error) {
	open := strings.IndexByte(t, '"')
	if open < 0 {
		return "", fmt.Errorf("#include needs a quoted path")
	}
	rest := t[open+1:]
	closing := strings.IndexByte(rest, '"')
	if closing < 0 {
		return "", fmt.Errorf("unterminated path in %s", t)
	}
	name := rest[:closing]

	path, err := st.resolveInclude(name, dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, p := range stack {
		if p == abs {
			return "", fmt.Errorf("circular include of %q", name)
		}
	}

	// A file is spliced once per unit. A repeat include contributes
	// nothing new: its macros are already in the shared table and its
	// declarations are already in the output.
	if st.once[abs] {
		return "\n", nil
	}
	st.once[abs] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read included file %q: %v", name, err)
	}
	return st.expand(string(data), filepath.Dir(path), append(stack, abs))
}

func (st *ppState) resolveInclude(name, dir string) (string, error) {
	try := filepath.Join(dir, name)
	if _, err := os.Stat(try); err == nil {
		return try, nil
	}
	for _, d := range st.dirs {
		try := filepath.Join(d, name)
		if _, err := os.Stat(try); err == nil {
			return try, nil
		}
	}
	return "", fmt.Errorf("include file %q not found", name)
}

// expandMacros rewrites macro references in one line of text. String and
// char literals pass through untouched, and replacement happens on whole
// identifiers only.
func expandMacros(in string, table map[string]Macro) string {
	if len(table) == 0 {
		return in
	}
	var sb strings.Builder
	for i := 0; i < len(in); {
		c := in[i]
		if c == '"' || c == '\'' {
			i = copyLiteral(&sb, in, i)
			continue
		}
		if !isIdentStart(rune(c)) {
			sb.WriteByte(c)
			i++
			continue
		}

		start := i
		for i < len(in) && isIdentPart(rune(in[i])) {
			i++
		}
		word := in[start:i]
		m, ok := table[word]
		if !ok {
			sb.WriteString(word)
			continue
		}
		if !m.FuncLike {
			sb.WriteString(m.Body)
			continue
		}

		args, next, ok := scanMacroArgs(in, i)
		if ok && len(args) == 1 && args[0] == "" && len(m.Params) == 0 {
			args = nil
		}
		if !ok || len(args) != len(m.Params) {
			// Bare reference to a function-like macro, or the wrong
			// arity: the name stays as written.
			sb.WriteString(word)
			continue
		}
		i = next

		// All arguments substitute in a single pass so that one
		// argument's replacement cannot be captured by a later
		// parameter name.
		bound := make(map[string]Macro, len(m.Params))
		for k, p := range m.Params {
			bound[p] = Macro{Body: args[k]}
		}
		sb.WriteString(expandMacros(expandMacros(m.Body, bound), table))
	}
	return sb.String()
}

// copyLiteral copies the quoted literal starting at in[i] and returns the
// index past its closing quote. Escapes keep the quote alive.
func copyLiteral(sb *strings.Builder, in string, i int) int {
	quote := in[i]
	sb.WriteByte(quote)
	i++
	for i < len(in) {
		c := in[i]
		sb.WriteByte(c)
		i++
		if c == '\\' && i < len(in) {
			sb.WriteByte(in[i])
			i++
		} else if c == quote {
			break
		}
	}
	return i
}

// scanMacroArgs reads a parenthesized argument list at or after in[i],
// splitting on top-level commas. It reports the index past the closing
// parenthesis, or ok=false when no complete list starts there.
func scanMacroArgs(in string, i int) (args []string, next int, ok bool) {
	for i < len(in) && (in[i] == ' ' || in[i] == '\t') {
		i++
	}
	if i >= len(in) || in[i] != '(' {
		return nil, 0, false
	}
	i++
	depth := 1
	var cur strings.Builder
	for i < len(in) {
		switch c := in[i]; {
		case c == '(':
			depth++
			cur.WriteByte(c)
		case c == ')':
			depth--
			if depth == 0 {
				args = append(args, strings.TrimSpace(cur.String()))
				return args, i + 1, true
			}
			cur.WriteByte(c)
		case c == ',' && depth == 1:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
		i++
	}
	return nil, 0, false
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
