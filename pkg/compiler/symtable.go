package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// SymbolKind says what a name denotes.
type SymbolKind int

const (
	SymGlobal SymbolKind = iota
	SymLocal
	SymParam
	SymFunc
	SymEnumConst
)

func (k SymbolKind) String() string {
	switch k {
	case SymGlobal:
		return "global"
	case SymLocal:
		return "local"
	case SymParam:
		return "param"
	case SymFunc:
		return "func"
	case SymEnumConst:
		return "enum"
	}
	return "?"
}

// Symbol is one declared name. Fn backs function symbols so call checking
// can reach the parameter list; Const holds the value of enum constants.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Type  *Type
	Line  int
	Const int32
	Fn    *FuncDecl
}

// Scope is one lexical scope. Scopes form a chain to the file scope;
// lookup walks outward, definition stays local.
type Scope struct {
	parent *Scope
	syms   map[string]*Symbol
	order  []string
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, syms: make(map[string]*Symbol)}
}

// Define adds sym to this scope. Redeclaring a name within one scope is
// an error; shadowing an outer scope is not.
func (s *Scope) Define(sym *Symbol) error {
	if prev, ok := s.syms[sym.Name]; ok {
		return errorf(DuplicateSymbol, sym.Line,
			"%q redeclared in this scope (previous declaration at line %d)", sym.Name, prev.Line)
	}
	s.syms[sym.Name] = sym
	s.order = append(s.order, sym.Name)
	return nil
}

// Lookup resolves name against this scope and its ancestors.
func (s *Scope) Lookup(name string) *Symbol {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.syms[name]; ok {
			return sym
		}
	}
	return nil
}

// LookupLocal resolves name in this scope only.
func (s *Scope) LookupLocal(name string) *Symbol {
	return s.syms[name]
}

// StructDef is a resolved struct layout. Fields keep declaration order;
// offsets respect each member's natural alignment (char 1, everything
// word-sized 4).
type StructDef struct {
	Name    string
	Fields  []*Field
	Offsets map[string]int32
	Size    int32
	Align   int32
}

// Field returns the named member, or nil.
func (d *StructDef) Field(name string) *Field {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// SymbolTable holds the file scope and the resolved struct layouts of one
// translation unit. It is built by semantic analysis and read by every
// later stage that needs sizes or global symbols.
type SymbolTable struct {
	Globals *Scope
	structs map[string]*StructDef
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Globals: NewScope(nil),
		structs: make(map[string]*StructDef),
	}
}

// DefineStruct lays out sd and records it. Struct-typed members must name
// structs defined earlier in the unit.
func (st *SymbolTable) DefineStruct(sd *StructDecl) error {
	if _, ok := st.structs[sd.Name]; ok {
		return errorf(DuplicateSymbol, sd.Line, "struct %q redefined", sd.Name)
	}
	def := &StructDef{
		Name:    sd.Name,
		Fields:  sd.Fields,
		Offsets: make(map[string]int32),
		Align:   1,
	}
	var off int32
	for _, f := range sd.Fields {
		size, err := st.SizeOf(f.Type)
		if err != nil {
			return errorf(UnresolvedSymbol, f.Line, "field %q: %v", f.Name, err)
		}
		align := st.alignOf(f.Type)
		if off%align != 0 {
			off += align - off%align
		}
		if _, dup := def.Offsets[f.Name]; dup {
			return errorf(DuplicateSymbol, f.Line, "duplicate field %q in struct %q", f.Name, sd.Name)
		}
		def.Offsets[f.Name] = off
		off += size
		if align > def.Align {
			def.Align = align
		}
	}
	if off%def.Align != 0 {
		off += def.Align - off%def.Align
	}
	def.Size = off
	st.structs[sd.Name] = def
	return nil
}

// Struct returns the layout of the named struct.
func (st *SymbolTable) Struct(name string) (*StructDef, bool) {
	d, ok := st.structs[name]
	return d, ok
}

// SizeOf returns the size of t in bytes on the 32-bit target.
func (st *SymbolTable) SizeOf(t *Type) (int32, error) {
	switch t.Kind {
	case TypeChar:
		return 1, nil
	case TypeInt, TypePointer:
		return 4, nil
	case TypeArray:
		elem, err := st.SizeOf(t.Elem)
		if err != nil {
			return 0, err
		}
		return elem * t.Len, nil
	case TypeStruct:
		def, ok := st.structs[t.Name]
		if !ok {
			return 0, fmt.Errorf("struct %q is not defined", t.Name)
		}
		return def.Size, nil
	case TypeVoid:
		return 0, fmt.Errorf("void has no size")
	}
	return 0, fmt.Errorf("type %s has no size", t)
}

func (st *SymbolTable) alignOf(t *Type) int32 {
	switch t.Kind {
	case TypeChar:
		return 1
	case TypeArray:
		return st.alignOf(t.Elem)
	case TypeStruct:
		if def, ok := st.structs[t.Name]; ok {
			return def.Align
		}
		return 4
	}
	return 4
}

// String returns a deterministically ordered dump of the table.
func (st *SymbolTable) String() string {
	var sb strings.Builder

	if len(st.Globals.syms) > 0 {
		sb.WriteString("Globals:\n")
		names := make([]string, 0, len(st.Globals.syms))
		for name := range st.Globals.syms {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sym := st.Globals.syms[name]
			fmt.Fprintf(&sb, "  %-20s  %s %s\n", name, sym.Kind, sym.Type)
		}
	} else {
		sb.WriteString("Globals: (empty)\n")
	}

	if len(st.structs) > 0 {
		sb.WriteString("Structs:\n")
		names := make([]string, 0, len(st.structs))
		for name := range st.structs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			def := st.structs[name]
			fmt.Fprintf(&sb, "  struct %s (size %d, align %d)\n", name, def.Size, def.Align)
			for _, f := range def.Fields {
				fmt.Fprintf(&sb, "    %-18s  %s @%d\n", f.Name, f.Type, def.Offsets[f.Name])
			}
		}
	}
	return sb.String()
}
