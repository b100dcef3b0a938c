// Package compiler implements a C-subset compiler whose back end is an
// obfuscator: alongside the classical optimizations it can rename
// identifiers, encrypt string literals, complicate arithmetic, guard
// statements behind opaque predicates, insert junk code, and flatten
// control flow, all without changing what the program computes.
//
// Pipeline: C source → Preprocess → Lex → Parse → Analyze → Transform →
// Generate (x86-32 assembly text) or EmitC (C source).
package compiler
