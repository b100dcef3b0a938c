package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds a
// Program.
//
// Grammar (C subset):
//
//	program    = declaration* EOF
//	declaration = structDecl | enumDecl | typedefDecl | funcDecl | varDecl
//	structDecl = "struct" IDENTIFIER "{" (type IDENTIFIER ("[" INTEGER "]")? ";")* "}" ";"
//	enumDecl   = "enum" IDENTIFIER? "{" IDENTIFIER ("=" constExpr)? ("," ...)* "}" ";"
//	funcDecl   = type IDENTIFIER "(" params? ")" (block | ";")
//	varDecl    = "extern"? type IDENTIFIER ("[" INTEGER "]")? ("=" expression)? ";"
//	statement  = varDecl | block | if | while | doWhile | for | switch
//	           | "break" ";" | "continue" ";" | "return" expression? ";" | exprStmt
//	expression = assignment
//	assignment = ternary (("=" | "+=" | "-=" | "*=" | "/=" | "%=") assignment)?
//	ternary    = logical_or ("?" expression ":" ternary)?
//	logical_or = logical_and ("||" logical_and)*
//	logical_and = bitwise_or ("&&" bitwise_or)*
//	bitwise_or = bitwise_xor ("|" bitwise_xor)*
//	bitwise_xor = bitwise_and ("^" bitwise_and)*
//	bitwise_and = equality ("&" equality)*
//	equality   = relational (("=="|"!=") relational)*
//	relational = shift (("<"|">"|"<="|">=") shift)*
//	shift      = additive (("<<"|">>") additive)*
//	additive   = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/" | "%") unary)*
//	unary      = ("(" type ")" | "&" | "*" | "~" | "!" | "-" | "++" | "--") unary
//	           | "sizeof" ("(" type ")" | unary) | postfix
//	postfix    = primary ("[" expression "]" | "." IDENTIFIER | "->" IDENTIFIER
//	           | "(" args ")" | "++" | "--")*
//	primary    = INTEGER | CHAR_LIT | STRING | IDENTIFIER | "(" expression ")"
//
// Compound assignments are desugared here: x += e becomes x = x + e, so
// no later stage needs to know about them.
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
	typedefs    map[string]*Type
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{
		tokens:      tokens,
		sourceLines: strings.Split(rawSource, "\n"),
		typedefs:    make(map[string]*Type),
	}
}

// fmtError wraps an error message with the source line where the token appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	lineIdx := tok.Line - 1 // Lines are 1-based

	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}

	return &Error{
		Code: SyntaxInput,
		Line: tok.Line,
		Msg:  fmt.Sprintf("%s\n  |> %s", msg, snippet),
	}
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

// peekNext returns the token immediately after the current one.
func (p *Parser) peekNext() Token {
	return p.peekAt(1)
}

// peekAt returns the token at the given offset from the current position.
func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+offset]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

//  Types

// isTypeStart reports whether tok can begin a type name. Typedef aliases
// registered earlier in the unit count as type starters, which is what
// makes (alias)x parse as a cast and alias x; as a declaration.
func (p *Parser) isTypeStart(tok Token) bool {
	switch tok.Type {
	case INT, CHAR, VOID, STRUCT, ENUM, CONST:
		return true
	case IDENTIFIER:
		_, ok := p.typedefs[tok.Lexeme]
		return ok
	}
	return false
}

// parseType parses a type name with optional pointer suffixes. Array
// suffixes belong to the declarator and are handled by the declaration
// parsers. The const qualifier is accepted and dropped.
func (p *Parser) parseType() (*Type, error) {
	if p.peek().Type == CONST {
		p.advance()
	}

	var base *Type
	tok := p.peek()
	switch tok.Type {
	case INT:
		p.advance()
		base = intType
	case CHAR:
		p.advance()
		base = charType
	case VOID:
		p.advance()
		base = voidType
	case STRUCT:
		p.advance()
		nameTok, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		base = &Type{Kind: TypeStruct, Name: nameTok.Lexeme}
	case ENUM:
		// Enum-typed variables are plain ints.
		p.advance()
		if _, err := p.expect(IDENTIFIER); err != nil {
			return nil, err
		}
		base = intType
	case IDENTIFIER:
		ty, ok := p.typedefs[tok.Lexeme]
		if !ok {
			return nil, p.fmtError(tok, "expected type name, got %q", tok.Lexeme)
		}
		p.advance()
		base = ty
	default:
		return nil, p.fmtError(tok, "expected type name, got %s (%q)", tok.Type, tok.Lexeme)
	}

	for p.peek().Type == STAR {
		p.advance()
		base = pointerTo(base)
	}
	return base, nil
}

//  Expressions

// compoundOp maps a compound assignment operator to the binary operator it
// desugars into.
var compoundOp = map[TokenType]TokenType{
	PLUS_ASSIGN:    PLUS,
	MINUS_ASSIGN:   MINUS,
	STAR_ASSIGN:    STAR,
	SLASH_ASSIGN:   SLASH,
	PERCENT_ASSIGN: PERCENT,
	AND_ASSIGN:     AND,
	PIPE_ASSIGN:    PIPE,
	CARET_ASSIGN:   CARET,
	SHL_ASSIGN:     SHL_OP,
	SHR_ASSIGN:     SHR_OP,
}

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseAssignExpr()
}

// parseAssignExpr handles = and the compound assignments, right associative.
func (p *Parser) parseAssignExpr() (Expr, error) {
	expr, err := p.parseTernary()
	if err != nil {
		return nil, err
	}

	tt := p.peek().Type
	if tt == ASSIGN {
		tok := p.advance()
		val, err := p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
		return &AssignExpr{Target: expr, Value: val, Line: tok.Line}, nil
	}
	if op, ok := compoundOp[tt]; ok {
		tok := p.advance()
		val, err := p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
		rhs := &BinaryExpr{Op: op, Left: cloneExpr(expr), Right: val, Line: tok.Line}
		return &AssignExpr{Target: expr, Value: rhs, Line: tok.Line}, nil
	}
	return expr, nil
}

// parseTernary handles cond ? a : b.
func (p *Parser) parseTernary() (Expr, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != QUESTION {
		return cond, nil
	}
	tok := p.advance()
	thenE, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	elseE, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &TernaryExpr{Cond: cond, Then: thenE, Else: elseE, Line: tok.Line}, nil
}

// parseLogicalOr handles ||
func (p *Parser) parseLogicalOr() (Expr, error) {
	expr, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == OR_LOGICAL {
		tok := p.advance()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		expr = &LogicalExpr{Op: tok.Type, Left: expr, Right: right, Line: tok.Line}
	}
	return expr, nil
}

// parseLogicalAnd handles &&
func (p *Parser) parseLogicalAnd() (Expr, error) {
	expr, err := p.parseBitwiseOr()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == AND_LOGICAL {
		tok := p.advance()
		right, err := p.parseBitwiseOr()
		if err != nil {
			return nil, err
		}
		expr = &LogicalExpr{Op: tok.Type, Left: expr, Right: right, Line: tok.Line}
	}
	return expr, nil
}

// parseBitwiseOr handles |
func (p *Parser) parseBitwiseOr() (Expr, error) {
	expr, err := p.parseBitwiseXor()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == PIPE {
		tok := p.advance()
		right, err := p.parseBitwiseXor()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: tok.Type, Left: expr, Right: right, Line: tok.Line}
	}
	return expr, nil
}

// parseBitwiseXor handles ^
func (p *Parser) parseBitwiseXor() (Expr, error) {
	expr, err := p.parseBitwiseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == CARET {
		tok := p.advance()
		right, err := p.parseBitwiseAnd()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: tok.Type, Left: expr, Right: right, Line: tok.Line}
	}
	return expr, nil
}

// parseBitwiseAnd handles &
func (p *Parser) parseBitwiseAnd() (Expr, error) {
	expr, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == AND {
		tok := p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: tok.Type, Left: expr, Right: right, Line: tok.Line}
	}
	return expr, nil
}

// parseEquality handles == and !=
func (p *Parser) parseEquality() (Expr, error) {
	expr, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == EQUALS || p.peek().Type == NOT_EQ {
		tok := p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: tok.Type, Left: expr, Right: right, Line: tok.Line}
	}
	return expr, nil
}

// parseRelational handles < > <= >=
func (p *Parser) parseRelational() (Expr, error) {
	expr, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.peek().Type
		if tt != LESS && tt != GREATER && tt != LESS_EQ && tt != GREATER_EQ {
			break
		}
		tok := p.advance()
		right, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: tok.Type, Left: expr, Right: right, Line: tok.Line}
	}
	return expr, nil
}

// parseShift handles << and >>
func (p *Parser) parseShift() (Expr, error) {
	expr, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == SHL_OP || p.peek().Type == SHR_OP {
		tok := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: tok.Type, Left: expr, Right: right, Line: tok.Line}
	}
	return expr, nil
}

// parseAdditive handles + and -
func (p *Parser) parseAdditive() (Expr, error) {
	expr, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == PLUS || p.peek().Type == MINUS {
		tok := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: tok.Type, Left: expr, Right: right, Line: tok.Line}
	}
	return expr, nil
}

// parseMultiplicative handles * / and %
func (p *Parser) parseMultiplicative() (Expr, error) {
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.peek().Type
		if tt != STAR && tt != SLASH && tt != PERCENT {
			break
		}
		tok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: tok.Type, Left: expr, Right: right, Line: tok.Line}
	}
	return expr, nil
}

// parseUnary handles casts, sizeof, and the prefix operators
// & * ~ ! - ++ --
func (p *Parser) parseUnary() (Expr, error) {
	// A '(' followed by a type starter is a cast; anything else in
	// parentheses falls through to parsePrimary.
	if p.peek().Type == LPAREN && p.isTypeStart(p.peekNext()) {
		lp := p.advance()
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &CastExpr{To: ty, Inner: inner, Line: lp.Line}, nil
	}

	switch p.peek().Type {
	case AND, STAR, TILDE, NOT, MINUS, PLUS_PLUS, MINUS_MINUS:
		tok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: tok.Type, Operand: operand, Line: tok.Line}, nil
	case SIZEOF:
		return p.parseSizeof()
	}
	return p.parsePostfix()
}

// parseSizeof handles sizeof(type) and sizeof expr.
func (p *Parser) parseSizeof() (Expr, error) {
	tok := p.advance() // sizeof
	if p.peek().Type == LPAREN && p.isTypeStart(p.peekNext()) {
		p.advance()
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return &SizeofExpr{TypeArg: ty, Line: tok.Line}, nil
	}
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &SizeofExpr{ExprArg: operand, Line: tok.Line}, nil
}

// parsePostfix handles array index [], member access . and ->, function
// calls (), and postfix ++/--
func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.peek().Type {
		case LBRACKET:
			tok := p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			expr = &IndexExpr{Base: expr, Index: index, Line: tok.Line}

		case DOT:
			p.advance()
			memberTok, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			expr = &MemberExpr{Base: expr, Field: memberTok.Lexeme, Line: memberTok.Line}

		case ARROW:
			p.advance()
			memberTok, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			expr = &MemberExpr{Base: expr, Field: memberTok.Lexeme, Arrow: true, Line: memberTok.Line}

		case LPAREN:
			// The subset has no function pointers, so calls go through a
			// plain identifier.
			id, ok := expr.(*Ident)
			if !ok {
				return nil, p.fmtError(p.peek(), "expected function name before '('")
			}
			p.advance()
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			expr = &CallExpr{Name: id.Name, Args: args, Line: id.Line}

		case PLUS_PLUS, MINUS_MINUS:
			tok := p.advance()
			expr = &UnaryExpr{Op: tok.Type, Operand: expr, Post: true, Line: tok.Line}

		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseCallArgs() ([]Expr, error) {
	var args []Expr
	if p.peek().Type != RPAREN {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}

	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

// parsePrimary handles literals, identifiers, and parenthesised expressions.
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case INTEGER:
		p.advance()
		val, err := strconv.ParseUint(tok.Lexeme, 0, 32)
		if err != nil {
			return nil, p.fmtError(tok, "integer constant %q out of 32-bit range", tok.Lexeme)
		}
		return &IntLit{Value: int32(uint32(val)), Line: tok.Line}, nil

	case CHAR_LIT:
		p.advance()
		val, err := strconv.ParseUint(tok.Lexeme, 10, 32)
		if err != nil || val > 255 {
			return nil, p.fmtError(tok, "character constant does not fit in a byte")
		}
		return &CharLit{Value: byte(val), Line: tok.Line}, nil

	case STRING:
		p.advance()
		return &StrLit{Value: tok.Lexeme, Line: tok.Line}, nil

	case IDENTIFIER:
		p.advance()
		return &Ident{Name: tok.Lexeme, Line: tok.Line}, nil

	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, p.fmtError(tok, "expected expression, got %s (%q)", tok.Type, tok.Lexeme)
	}
}

//  Statements

// parseStatement dispatches to the correct sub-parser based on the leading token.
func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	switch tok.Type {

	case LBRACE:
		p.advance()
		return p.parseBlock(tok.Line)

	case IF:
		p.advance()
		return p.parseIf(tok.Line)

	case WHILE:
		p.advance()
		return p.parseWhile(tok.Line)

	case DO:
		p.advance()
		return p.parseDoWhile(tok.Line)

	case FOR:
		return p.parseFor()

	case SWITCH:
		return p.parseSwitch()

	case BREAK:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &BreakStmt{Line: tok.Line}, nil

	case CONTINUE:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &ContinueStmt{Line: tok.Line}, nil

	case RETURN:
		p.advance()
		return p.parseReturn(tok.Line)

	case SEMICOLON:
		// Empty statement; the block parser drops it.
		p.advance()
		return nil, nil

	case STRUCT:
		if p.peekAt(2).Type == LBRACE {
			return nil, p.fmtError(tok, "struct definitions are only allowed at file scope")
		}
		return p.parseVarDecl(false)

	case INT, CHAR, VOID, ENUM, CONST, EXTERN:
		return p.parseVarDecl(false)

	case IDENTIFIER:
		if _, ok := p.typedefs[tok.Lexeme]; ok {
			return p.parseVarDecl(false)
		}
		return p.parseExprStmt(tok.Line)

	default:
		return p.parseExprStmt(tok.Line)
	}
}

func (p *Parser) parseExprStmt(line int) (Stmt, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ExprStmt{E: expr, Line: line}, nil
}

// parseBlock parses { stmt1; stmt2; ... }
// The leading LBRACE token has already been consumed by the caller.
func (p *Parser) parseBlock(line int) (*BlockStmt, error) {
	var stmts []Stmt
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return &BlockStmt{List: stmts, Line: line}, nil
}

// parseBody parses the body of a control statement: either a braced block
// or a single statement, which gets wrapped in a block so every later
// stage sees a uniform shape.
func (p *Parser) parseBody() (*BlockStmt, error) {
	if p.peek().Type == LBRACE {
		tok := p.advance()
		return p.parseBlock(tok.Line)
	}
	tok := p.peek()
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	blk := &BlockStmt{Line: tok.Line}
	if stmt != nil {
		blk.List = append(blk.List, stmt)
	}
	return blk, nil
}

// parseIf parses if ( cond ) body [ else elseBody ]
// The leading IF token has already been consumed.
func (p *Parser) parseIf(line int) (Stmt, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseBody()
	if err != nil {
		return nil, err
	}

	var elseBody Stmt
	if p.peek().Type == ELSE {
		p.advance()
		if p.peek().Type == IF {
			tok := p.advance()
			elseBody, err = p.parseIf(tok.Line)
		} else {
			elseBody, err = p.parseBody()
		}
		if err != nil {
			return nil, err
		}
	}

	return &IfStmt{Cond: cond, Then: then, Else: elseBody, Line: line}, nil
}

// parseWhile parses while ( cond ) body
// The leading WHILE token has already been consumed.
func (p *Parser) parseWhile(line int) (Stmt, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body, Line: line}, nil
}

// parseDoWhile parses do body while ( cond ) ;
// The leading DO token has already been consumed.
func (p *Parser) parseDoWhile(line int) (Stmt, error) {
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(WHILE); err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &DoWhileStmt{Body: body, Cond: cond, Line: line}, nil
}

// parseFor parses for ( init; cond; post ) body
func (p *Parser) parseFor() (Stmt, error) {
	forTok, err := p.expect(FOR)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var init Stmt
	if p.peek().Type == SEMICOLON {
		p.advance()
	} else if p.isTypeStart(p.peek()) {
		init, err = p.parseVarDecl(false)
		if err != nil {
			return nil, err
		}
	} else {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		init = &ExprStmt{E: expr, Line: expr.Pos()}
	}

	var cond Expr
	if p.peek().Type != SEMICOLON {
		cond, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}

	var post Expr
	if p.peek().Type != RPAREN {
		post, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &ForStmt{Init: init, Cond: cond, Post: post, Body: body, Line: forTok.Line}, nil
}

// parseSwitch parses switch ( expr ) { case val: ... default: ... }
// Clauses keep their source order; a default clause has a nil Value.
func (p *Parser) parseSwitch() (Stmt, error) {
	switchTok, err := p.expect(SWITCH)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	tag, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}

	var cases []*CaseClause
	hasDefault := false

	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		tok := p.peek()
		var value Expr
		switch tok.Type {
		case CASE:
			p.advance()
			value, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		case DEFAULT:
			if hasDefault {
				return nil, p.fmtError(tok, "multiple default labels in switch")
			}
			hasDefault = true
			p.advance()
		default:
			return nil, p.fmtError(tok, "expected case or default in switch, got %s", tok.Type)
		}
		if _, err := p.expect(COLON); err != nil {
			return nil, err
		}

		var body []Stmt
		for {
			tt := p.peek().Type
			if tt == CASE || tt == DEFAULT || tt == RBRACE || tt == EOF {
				break
			}
			stmt, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			if stmt != nil {
				body = append(body, stmt)
			}
		}
		cases = append(cases, &CaseClause{Value: value, Body: body, Line: tok.Line})
	}

	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return &SwitchStmt{Tag: tag, Cases: cases, Line: switchTok.Line}, nil
}

// parseReturn parses return [expr] ;
// The leading RETURN token has already been consumed. Whether the result
// matches the function's return type is checked by semantic analysis.
func (p *Parser) parseReturn(line int) (Stmt, error) {
	if p.peek().Type == SEMICOLON {
		p.advance()
		return &ReturnStmt{Line: line}, nil
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ReturnStmt{Result: expr, Line: line}, nil
}

//  Declarations

// parseVarDecl parses [extern] type name [ "[" size "]" ] [= init] ;
func (p *Parser) parseVarDecl(global bool) (Stmt, error) {
	extern := false
	if p.peek().Type == EXTERN {
		tok := p.advance()
		if !global {
			return nil, p.fmtError(tok, "extern is only allowed at file scope")
		}
		extern = true
	}
	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	return p.parseVarDeclRest(ty, nameTok, global, extern)
}

// parseVarDeclRest finishes a variable declaration whose type and name
// have already been consumed.
func (p *Parser) parseVarDeclRest(ty *Type, nameTok Token, global, extern bool) (Stmt, error) {
	if p.peek().Type == LBRACKET {
		p.advance()
		sizeTok, err := p.expect(INTEGER)
		if err != nil {
			return nil, err
		}
		size, err := strconv.ParseUint(sizeTok.Lexeme, 0, 31)
		if err != nil || size == 0 {
			return nil, p.fmtError(sizeTok, "invalid array size %q", sizeTok.Lexeme)
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		ty = arrayOf(ty, int32(size))
	}

	var init Expr
	if p.peek().Type == ASSIGN {
		assignTok := p.advance()
		if extern {
			return nil, p.fmtError(assignTok, "extern declaration cannot have an initializer")
		}
		var err error
		init, err = p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &VarDecl{
		Name:   nameTok.Lexeme,
		Type:   ty,
		Init:   init,
		Global: global,
		Extern: extern,
		Line:   nameTok.Line,
	}, nil
}

// parseStructDecl parses struct Name { fields... } ;
func (p *Parser) parseStructDecl() (Decl, error) {
	if _, err := p.expect(STRUCT); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}

	var fields []*Field
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		fty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fnameTok, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if p.peek().Type == LBRACKET {
			p.advance()
			sizeTok, err := p.expect(INTEGER)
			if err != nil {
				return nil, err
			}
			size, err := strconv.ParseUint(sizeTok.Lexeme, 0, 31)
			if err != nil || size == 0 {
				return nil, p.fmtError(sizeTok, "invalid array size %q", sizeTok.Lexeme)
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			fty = arrayOf(fty, int32(size))
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		fields = append(fields, &Field{Name: fnameTok.Lexeme, Type: fty, Line: fnameTok.Line})
	}

	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &StructDecl{Name: nameTok.Lexeme, Fields: fields, Line: nameTok.Line}, nil
}

// parseEnumDecl parses enum [Name] { A, B = expr, ... } ;
// Member values resolve at parse time: unvalued members count up from the
// previous value, starting at zero.
func (p *Parser) parseEnumDecl() (Decl, error) {
	enumTok, err := p.expect(ENUM)
	if err != nil {
		return nil, err
	}
	name := ""
	if p.peek().Type == IDENTIFIER {
		name = p.advance().Lexeme
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}

	var members []EnumMember
	next := int32(0)
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		memberTok, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		value := next
		if p.peek().Type == ASSIGN {
			p.advance()
			expr, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			v, ok := litValue(expr)
			if !ok {
				return nil, p.fmtError(memberTok, "enum value for %q must be a constant expression", memberTok.Lexeme)
			}
			value = v
		}
		members = append(members, EnumMember{Name: memberTok.Lexeme, Value: value})
		next = value + 1

		if p.peek().Type == COMMA {
			p.advance()
		} else {
			break
		}
	}

	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &EnumDecl{Name: name, Members: members, Line: enumTok.Line}, nil
}

// litValue evaluates the small constant-expression forms allowed in enum
// values: integer and character literals combined with unary - ~ and the
// basic binary arithmetic.
func litValue(e Expr) (int32, bool) {
	switch e := e.(type) {
	case *IntLit:
		return e.Value, true
	case *CharLit:
		return int32(e.Value), true
	case *UnaryExpr:
		v, ok := litValue(e.Operand)
		if !ok || e.Post {
			return 0, false
		}
		switch e.Op {
		case MINUS:
			return -v, true
		case TILDE:
			return ^v, true
		}
		return 0, false
	case *BinaryExpr:
		l, okL := litValue(e.Left)
		r, okR := litValue(e.Right)
		if !okL || !okR {
			return 0, false
		}
		switch e.Op {
		case PLUS:
			return l + r, true
		case MINUS:
			return l - r, true
		case STAR:
			return l * r, true
		case SHL_OP:
			return l << (uint32(r) & 31), true
		case PIPE:
			return l | r, true
		}
	}
	return 0, false
}

// parseTypedef parses typedef type Name ;
// The alias takes effect immediately for the rest of the unit.
func (p *Parser) parseTypedef() (Decl, error) {
	tdTok, err := p.expect(TYPEDEF)
	if err != nil {
		return nil, err
	}
	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	p.typedefs[nameTok.Lexeme] = ty
	return &TypedefDecl{Name: nameTok.Lexeme, Type: ty, Line: tdTok.Line}, nil
}

// parseFunctionRest finishes a function declaration whose return type and
// name have already been consumed; the current token is '('.
func (p *Parser) parseFunctionRest(ret *Type, nameTok Token) (Decl, error) {
	p.advance() // (
	fn := &FuncDecl{Name: nameTok.Lexeme, Ret: ret, Line: nameTok.Line}

	if p.peek().Type != RPAREN {
		// void as the whole parameter list means no parameters
		if p.peek().Type == VOID && p.peekNext().Type == RPAREN {
			p.advance()
		} else {
			for {
				if p.peek().Type == DOT {
					// "..." arrives as three dot tokens
					if p.peekAt(1).Type != DOT || p.peekAt(2).Type != DOT {
						return nil, p.fmtError(p.peek(), "expected parameter or \"...\"")
					}
					p.advance()
					p.advance()
					p.advance()
					fn.Variadic = true
					break
				}
				pty, err := p.parseType()
				if err != nil {
					return nil, err
				}
				pname := ""
				pline := p.peek().Line
				if p.peek().Type == IDENTIFIER {
					ptok := p.advance()
					pname = ptok.Lexeme
					pline = ptok.Line
				}
				if p.peek().Type == LBRACKET {
					p.advance()
					if p.peek().Type == RBRACKET {
						// int a[] means int *a
						pty = pointerTo(pty)
					} else {
						sizeTok, err := p.expect(INTEGER)
						if err != nil {
							return nil, err
						}
						size, err := strconv.ParseUint(sizeTok.Lexeme, 0, 31)
						if err != nil || size == 0 {
							return nil, p.fmtError(sizeTok, "invalid array size %q", sizeTok.Lexeme)
						}
						pty = arrayOf(pty, int32(size))
					}
					if _, err := p.expect(RBRACKET); err != nil {
						return nil, err
					}
				}
				fn.Params = append(fn.Params, &Param{Name: pname, Type: pty, Line: pline})

				if p.peek().Type != COMMA {
					break
				}
				p.advance()
			}
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	if p.peek().Type == SEMICOLON {
		p.advance()
		return fn, nil // prototype
	}

	braceTok, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	for _, prm := range fn.Params {
		if prm.Name == "" {
			return nil, p.fmtError(braceTok, "parameter %d of %q needs a name", len(fn.Params), fn.Name)
		}
	}
	body, err := p.parseBlock(braceTok.Line)
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

// parseTopLevel parses one file-scope declaration.
func (p *Parser) parseTopLevel() (Decl, error) {
	tok := p.peek()
	switch {
	case tok.Type == SEMICOLON:
		p.advance()
		return nil, nil

	case tok.Type == STRUCT && p.peekAt(2).Type == LBRACE:
		return p.parseStructDecl()

	case tok.Type == ENUM && (p.peekNext().Type == LBRACE || p.peekAt(2).Type == LBRACE):
		return p.parseEnumDecl()

	case tok.Type == TYPEDEF:
		return p.parseTypedef()

	case tok.Type == EXTERN || p.isTypeStart(tok):
		extern := false
		if tok.Type == EXTERN {
			p.advance()
			extern = true
		}
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		nameTok, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if p.peek().Type == LPAREN {
			return p.parseFunctionRest(ty, nameTok)
		}
		stmt, err := p.parseVarDeclRest(ty, nameTok, true, extern)
		if err != nil {
			return nil, err
		}
		return stmt.(*VarDecl), nil

	default:
		return nil, p.fmtError(tok, "expected declaration at file scope, got %s (%q)", tok.Type, tok.Lexeme)
	}
}

// Parse builds a Program from the token stream. Only declarations are
// allowed at the top level.
func Parse(tokens []Token, rawSource, file string) (*Program, error) {
	p := NewParser(tokens, rawSource)
	prog := &Program{File: file}
	for p.peek().Type != EOF {
		d, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		if d != nil {
			prog.Decls = append(prog.Decls, d)
		}
	}
	return prog, nil
}
