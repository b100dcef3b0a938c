package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable / function name
	INTEGER    // decimal or hex integer literal
	STRING     // string literal "..."
	CHAR_LIT   // character literal 'c'

	// Keywords
	INT      // "int"
	CHAR     // "char"
	VOID     // "void"
	IF       // "if"
	ELSE     // "else"
	WHILE    // "while"
	DO       // "do"
	FOR      // "for"
	SWITCH   // "switch"
	CASE     // "case"
	DEFAULT  // "default"
	BREAK    // "break"
	CONTINUE // "continue"
	RETURN   // "return"
	STRUCT   // "struct"
	ENUM     // "enum"
	TYPEDEF  // "typedef"
	CONST    // "const"
	EXTERN   // "extern"
	SIZEOF   // "sizeof"

	// Paired delimiters
	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	DOT       // .
	ARROW     // ->
	SEMICOLON // ;
	COMMA     // ,
	COLON     // :
	QUESTION  // ?

	// Arithmetic / bitwise operators
	PLUS        // +
	MINUS       // -
	STAR        // * (multiply, pointer declarator, or unary dereference)
	SLASH       // /
	PERCENT     // %
	AND         // & (binary bitwise AND, or unary address-of)
	PIPE        // |
	CARET       // ^
	TILDE       // ~
	SHL_OP      // <<
	SHR_OP      // >>
	AND_LOGICAL // &&
	OR_LOGICAL  // ||
	NOT         // !

	PLUS_PLUS   // ++
	MINUS_MINUS // --

	// Assignment / comparison  (order matters: ASSIGN before EQUALS)
	ASSIGN         // =
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=
	AND_ASSIGN     // &=
	PIPE_ASSIGN    // |=
	CARET_ASSIGN   // ^=
	SHL_ASSIGN     // <<=
	SHR_ASSIGN     // >>=

	EQUALS     // ==
	NOT_EQ     // !=
	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:            "EOF",
	IDENTIFIER:     "IDENTIFIER",
	INTEGER:        "INTEGER",
	STRING:         "STRING",
	CHAR_LIT:       "CHAR_LIT",
	INT:            "INT",
	CHAR:           "CHAR",
	VOID:           "VOID",
	IF:             "IF",
	ELSE:           "ELSE",
	WHILE:          "WHILE",
	DO:             "DO",
	FOR:            "FOR",
	SWITCH:         "SWITCH",
	CASE:           "CASE",
	DEFAULT:        "DEFAULT",
	BREAK:          "BREAK",
	CONTINUE:       "CONTINUE",
	RETURN:         "RETURN",
	STRUCT:         "STRUCT",
	ENUM:           "ENUM",
	TYPEDEF:        "TYPEDEF",
	CONST:          "CONST",
	EXTERN:         "EXTERN",
	SIZEOF:         "SIZEOF",
	LBRACE:         "LBRACE",
	RBRACE:         "RBRACE",
	LPAREN:         "LPAREN",
	RPAREN:         "RPAREN",
	LBRACKET:       "LBRACKET",
	RBRACKET:       "RBRACKET",
	DOT:            "DOT",
	ARROW:          "ARROW",
	SEMICOLON:      "SEMICOLON",
	COMMA:          "COMMA",
	COLON:          "COLON",
	QUESTION:       "QUESTION",
	PLUS:           "PLUS",
	MINUS:          "MINUS",
	STAR:           "STAR",
	SLASH:          "SLASH",
	PERCENT:        "PERCENT",
	AND:            "AND",
	PIPE:           "PIPE",
	CARET:          "CARET",
	TILDE:          "TILDE",
	SHL_OP:         "SHL_OP",
	SHR_OP:         "SHR_OP",
	AND_LOGICAL:    "AND_LOGICAL",
	OR_LOGICAL:     "OR_LOGICAL",
	NOT:            "NOT",
	PLUS_PLUS:      "PLUS_PLUS",
	MINUS_MINUS:    "MINUS_MINUS",
	ASSIGN:         "ASSIGN",
	PLUS_ASSIGN:    "PLUS_ASSIGN",
	MINUS_ASSIGN:   "MINUS_ASSIGN",
	STAR_ASSIGN:    "STAR_ASSIGN",
	SLASH_ASSIGN:   "SLASH_ASSIGN",
	PERCENT_ASSIGN: "PERCENT_ASSIGN",
	AND_ASSIGN:     "AND_ASSIGN",
	PIPE_ASSIGN:    "PIPE_ASSIGN",
	CARET_ASSIGN:   "CARET_ASSIGN",
	SHL_ASSIGN:     "SHL_ASSIGN",
	SHR_ASSIGN:     "SHR_ASSIGN",
	EQUALS:         "EQUALS",
	NOT_EQ:         "NOT_EQ",
	LESS:           "LESS",
	GREATER:        "GREATER",
	LESS_EQ:        "LESS_EQ",
	GREATER_EQ:     "GREATER_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// opText maps operator token types to their C source spelling. Used by the
// AST printers; keywords and literals are never looked up here.
var opText = map[TokenType]string{
	PLUS:        "+",
	MINUS:       "-",
	STAR:        "*",
	SLASH:       "/",
	PERCENT:     "%",
	AND:         "&",
	PIPE:        "|",
	CARET:       "^",
	TILDE:       "~",
	SHL_OP:      "<<",
	SHR_OP:      ">>",
	AND_LOGICAL: "&&",
	OR_LOGICAL:  "||",
	NOT:         "!",
	PLUS_PLUS:   "++",
	MINUS_MINUS: "--",
	EQUALS:      "==",
	NOT_EQ:      "!=",
	LESS:        "<",
	GREATER:     ">",
	LESS_EQ:     "<=",
	GREATER_EQ:  ">=",
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}
