package compiler

import (
	"fmt"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"int":      INT,
	"char":     CHAR,
	"void":     VOID,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"do":       DO,
	"for":      FOR,
	"switch":   SWITCH,
	"case":     CASE,
	"default":  DEFAULT,
	"break":    BREAK,
	"continue": CONTINUE,
	"return":   RETURN,
	"struct":   STRUCT,
	"enum":     ENUM,
	"typedef":  TYPEDEF,
	"const":    CONST,
	"extern":   EXTERN,
	"sizeof":   SIZEOF,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment() error {
	startLine := l.line
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return nil
		}
		l.advance()
	}
	return fmt.Errorf("unterminated block comment (opened on line %d)", startLine)
}

// scanIdent collects a full identifier or keyword token.
// The first character (letter, '_', or '$') must still be at l.peek().
// '$' follows the GNU extension; obfuscated output uses it in synthesized
// names, and the lexer has to accept its own emitter's identifiers.
func (l *Lexer) scanIdent() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line}
}

// scanInt collects a decimal or hex integer literal.
// The first digit must still be at l.peek().
func (l *Lexer) scanInt() Token {
	line := l.line
	start := l.pos

	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance() // consume '0'
		l.advance() // consume 'x'
		for l.pos < len(l.src) {
			r := l.peek()
			if unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F') {
				l.advance()
			} else {
				break
			}
		}
	} else {
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}

	return Token{Type: INTEGER, Lexeme: string(l.src[start:l.pos]), Line: line}
}

// unescape maps the character after a backslash to its byte value.
func unescape(r rune) (rune, bool) {
	switch r {
	case 'n':
		return '\n', true
	case 'r':
		return '\r', true
	case 't':
		return '\t', true
	case '0':
		return 0, true
	case '\\':
		return '\\', true
	case '\'':
		return '\'', true
	case '"':
		return '"', true
	}
	return 0, false
}

// scanEscape decodes the sequence after a backslash, which has already
// been consumed. Octal escapes take up to three digits; anything else is
// a single named character.
func (l *Lexer) scanEscape() (rune, error) {
	r := l.peek()
	if r >= '1' && r <= '7' {
		val := rune(0)
		for i := 0; i < 3; i++ {
			d := l.peek()
			if d < '0' || d > '7' {
				break
			}
			val = val*8 + (d - '0')
			l.advance()
		}
		if val > 255 {
			return 0, fmt.Errorf("octal escape out of range on line %d", l.line)
		}
		return val, nil
	}
	// "\0" followed by more octal digits is also an octal escape.
	if r == '0' && l.peek2() >= '0' && l.peek2() <= '7' {
		val := rune(0)
		for i := 0; i < 3; i++ {
			d := l.peek()
			if d < '0' || d > '7' {
				break
			}
			val = val*8 + (d - '0')
			l.advance()
		}
		return val, nil
	}
	esc, ok := unescape(r)
	if !ok {
		return 0, fmt.Errorf("unknown escape sequence \\%c on line %d", r, l.line)
	}
	l.advance()
	return esc, nil
}

// scanChar collects a character literal 'c'.
func (l *Lexer) scanChar() (Token, error) {
	line := l.line
	l.advance() // consume opening '

	r := l.peek()
	var val rune

	if r == '\'' {
		return Token{}, fmt.Errorf("empty character literal on line %d", line)
	}

	if r == '\\' {
		l.advance() // consume backslash
		esc, err := l.scanEscape()
		if err != nil {
			return Token{}, err
		}
		val = esc
	} else {
		val = r
		l.advance()
	}

	if l.peek() != '\'' {
		return Token{}, fmt.Errorf("unterminated character literal on line %d", line)
	}
	l.advance() // consume closing '

	return Token{Type: CHAR_LIT, Lexeme: fmt.Sprintf("%d", val), Line: line}, nil
}

// scanString collects a string literal "...". The token lexeme holds the
// decoded value, escapes already resolved (embedded NUL bytes included).
// The lexeme is a raw byte string: an escape like \377 contributes exactly
// one byte, never a UTF-8 encoding of the code point.
func (l *Lexer) scanString() (Token, error) {
	line := l.line
	l.advance() // consume opening "
	var val []byte

	for l.pos < len(l.src) {
		r := l.peek()
		if r == '"' {
			break
		}
		if r == '\n' {
			return Token{}, fmt.Errorf("unterminated string literal on line %d", line)
		}
		if r == '\\' {
			l.advance() // consume backslash
			esc, err := l.scanEscape()
			if err != nil {
				return Token{}, err
			}
			val = append(val, byte(esc))
			continue
		}
		val = append(val, []byte(string(r))...)
		l.advance()
	}

	if l.pos >= len(l.src) {
		return Token{}, fmt.Errorf("unterminated string literal on line %d", line)
	}
	l.advance() // consume closing "

	return Token{Type: STRING, Lexeme: string(val), Line: line}, nil
}

// nextToken skips whitespace/comments and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	// Skip whitespace and both comment styles in a loop so that
	// a comment followed immediately by more whitespace is handled.
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Lexeme: "", Line: l.line}, nil
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			l.advance()
			l.advance()
			if err := l.skipBlockComment(); err != nil {
				return Token{}, err
			}
			continue
		}
		// Preprocessor line markers like "# 1 \"file.c\"" survive gcc -E;
		// they carry no tokens the parser needs.
		if l.peek() == '#' {
			l.skipLineComment()
			continue
		}
		break
	}

	ch := l.peek()
	line := l.line

	if unicode.IsLetter(ch) || ch == '_' || ch == '$' {
		return l.scanIdent(), nil
	}
	if unicode.IsDigit(ch) {
		return l.scanInt(), nil
	}

	if ch == '"' {
		return l.scanString()
	}

	if ch == '\'' {
		return l.scanChar()
	}

	l.advance() // consume the character before the switch
	switch ch {
	case '{':
		return Token{LBRACE, "{", line}, nil
	case '}':
		return Token{RBRACE, "}", line}, nil
	case '(':
		return Token{LPAREN, "(", line}, nil
	case ')':
		return Token{RPAREN, ")", line}, nil
	case '[':
		return Token{LBRACKET, "[", line}, nil
	case ']':
		return Token{RBRACKET, "]", line}, nil
	case '.':
		return Token{DOT, ".", line}, nil
	case ';':
		return Token{SEMICOLON, ";", line}, nil
	case ',':
		return Token{COMMA, ",", line}, nil
	case ':':
		return Token{COLON, ":", line}, nil
	case '?':
		return Token{QUESTION, "?", line}, nil

	case '+':
		if l.peek() == '+' {
			l.advance()
			return Token{PLUS_PLUS, "++", line}, nil
		}
		if l.peek() == '=' {
			l.advance()
			return Token{PLUS_ASSIGN, "+=", line}, nil
		}
		return Token{PLUS, "+", line}, nil
	case '-':
		if l.peek() == '-' {
			l.advance()
			return Token{MINUS_MINUS, "--", line}, nil
		}
		if l.peek() == '=' {
			l.advance()
			return Token{MINUS_ASSIGN, "-=", line}, nil
		}
		if l.peek() == '>' {
			l.advance()
			return Token{ARROW, "->", line}, nil
		}
		return Token{MINUS, "-", line}, nil
	case '*':
		if l.peek() == '=' {
			l.advance()
			return Token{STAR_ASSIGN, "*=", line}, nil
		}
		return Token{STAR, "*", line}, nil
	case '/':
		if l.peek() == '=' {
			l.advance()
			return Token{SLASH_ASSIGN, "/=", line}, nil
		}
		return Token{SLASH, "/", line}, nil
	case '%':
		if l.peek() == '=' {
			l.advance()
			return Token{PERCENT_ASSIGN, "%=", line}, nil
		}
		return Token{PERCENT, "%", line}, nil
	case '&':
		if l.peek() == '&' {
			l.advance()
			return Token{AND_LOGICAL, "&&", line}, nil
		}
		if l.peek() == '=' {
			l.advance()
			return Token{AND_ASSIGN, "&=", line}, nil
		}
		return Token{AND, "&", line}, nil
	case '|':
		if l.peek() == '|' {
			l.advance()
			return Token{OR_LOGICAL, "||", line}, nil
		}
		if l.peek() == '=' {
			l.advance()
			return Token{PIPE_ASSIGN, "|=", line}, nil
		}
		return Token{PIPE, "|", line}, nil
	case '^':
		if l.peek() == '=' {
			l.advance()
			return Token{CARET_ASSIGN, "^=", line}, nil
		}
		return Token{CARET, "^", line}, nil
	case '~':
		return Token{TILDE, "~", line}, nil
	case '!':
		if l.peek() == '=' {
			l.advance()
			return Token{NOT_EQ, "!=", line}, nil
		}
		return Token{NOT, "!", line}, nil
	case '<':
		if l.peek() == '=' {
			l.advance()
			return Token{LESS_EQ, "<=", line}, nil
		}
		if l.peek() == '<' {
			l.advance()
			if l.peek() == '=' {
				l.advance()
				return Token{SHL_ASSIGN, "<<=", line}, nil
			}
			return Token{SHL_OP, "<<", line}, nil
		}
		return Token{LESS, "<", line}, nil
	case '>':
		if l.peek() == '=' {
			l.advance()
			return Token{GREATER_EQ, ">=", line}, nil
		}
		if l.peek() == '>' {
			l.advance()
			if l.peek() == '=' {
				l.advance()
				return Token{SHR_ASSIGN, ">>=", line}, nil
			}
			return Token{SHR_OP, ">>", line}, nil
		}
		return Token{GREATER, ">", line}, nil
	case '=':
		if l.peek() == '=' { // lookahead: distinguish = vs ==
			l.advance()
			return Token{EQUALS, "==", line}, nil
		}
		return Token{ASSIGN, "=", line}, nil
	default:
		return Token{}, fmt.Errorf("unexpected character %q on line %d", ch, line)
	}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It returns a non-nil error on the first illegal character or unterminated
// comment or literal.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
