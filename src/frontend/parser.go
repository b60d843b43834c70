// parser.go provides the recursive descent parser that transforms the scanned
// token stream into the syntax tree of ir nodes. The grammar has four
// expression levels, expression → comparison → addition → primary, and
// recognises at most one binary operator per comparison and addition
// invocation. The first failed expectation aborts the parse.

package frontend

import (
	"fmt"
	"strconv"

	"github.com/golang/glog"

	"jamc/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// parser walks the scanned token stream and builds the function list.
type parser struct {
	toks []Token // Token stream, terminated by an EOF token.
	pos  int     // Index of the next token to consume.
}

// ---------------------
// ----- functions -----
// ---------------------

// Parse scans and parses the source string and returns the program's
// functions in declaration order.
func Parse(src string) ([]*ir.Function, error) {
	toks, err := Scan(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	funcs, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("parsed %d functions", len(funcs))
	return funcs, nil
}

// peek returns, but does not consume, the next token.
func (p *parser) peek() Token {
	return p.toks[p.pos]
}

// peek2 returns, but does not consume, the token after the next token.
func (p *parser) peek2() Token {
	if p.toks[p.pos].Kind == EOF {
		return p.toks[p.pos]
	}
	return p.toks[p.pos+1]
}

// next consumes and returns the next token. The EOF token is never consumed.
func (p *parser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != EOF {
		p.pos++
	}
	return t
}

// consume asserts that the next token is of kind typ and consumes it.
func (p *parser) consume(typ TokenKind) (Token, error) {
	t := p.peek()
	if t.Kind != typ {
		return t, fmt.Errorf("line %d: expected %s, got %s %q", t.Line, typ, t.Kind, t.Val)
	}
	return p.next(), nil
}

// parseProgram parses a sequence of function definitions until end of input.
func (p *parser) parseProgram() ([]*ir.Function, error) {
	funcs := make([]*ir.Function, 0, 16)
	for p.peek().Kind != EOF {
		f, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, f)
	}
	return funcs, nil
}

// parseFunction parses a single function definition, including the optional
// extern and export prefixes. An extern function carries no body and must be
// terminated by a semicolon.
func (p *parser) parseFunction() (*ir.Function, error) {
	f := &ir.Function{}
	switch p.peek().Kind {
	case EXTERN:
		p.next()
		f.Extern = true
	case EXPORT:
		p.next()
		f.Export = true
	}

	if _, err := p.consume(FN); err != nil {
		return nil, err
	}
	name, err := p.consume(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	f.Name = name.Val
	f.Line = name.Line

	if _, err := p.consume(LPAREN); err != nil {
		return nil, err
	}
	if p.peek().Kind != RPAREN {
		if f.Params, err = p.parseParams(); err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(RPAREN); err != nil {
		return nil, err
	}

	if p.peek().Kind == ARROW {
		p.next()
		if f.ReturnType, err = p.parseType(); err != nil {
			return nil, err
		}
	}

	if f.Extern {
		if _, err := p.consume(SEMICOLON); err != nil {
			return nil, err
		}
		glog.V(2).Infof("parsed extern function %q", f.Name)
		return f, nil
	}

	if _, err := p.consume(LBRACE); err != nil {
		return nil, err
	}
	if f.Body, err = p.parseStatements(); err != nil {
		return nil, err
	}
	if _, err := p.consume(RBRACE); err != nil {
		return nil, err
	}
	glog.V(2).Infof("parsed function %q with %d statements", f.Name, len(f.Body))
	return f, nil
}

// parseParams parses a non-empty comma separated parameter list. Parameter
// names must be unique within the function.
func (p *parser) parseParams() ([]ir.Param, error) {
	params := make([]ir.Param, 0, 8)
	for {
		name, err := p.consume(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		for _, e1 := range params {
			if e1.Name == name.Val {
				return nil, fmt.Errorf("line %d: duplicate parameter name %q", name.Line, name.Val)
			}
		}
		if _, err := p.consume(COLON); err != nil {
			return nil, err
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, ir.Param{Name: name.Val, Type: typ})
		if p.peek().Kind != COMMA {
			return params, nil
		}
		p.next()
	}
}

// parseType parses a type name: either a reserved primitive type name or a
// slice form []T where T is recursively a type name.
func (p *parser) parseType() (string, error) {
	if p.peek().Kind == LBRACKET {
		p.next()
		if _, err := p.consume(RBRACKET); err != nil {
			return "", err
		}
		elem, err := p.parseType()
		if err != nil {
			return "", err
		}
		return "[]" + elem, nil
	}
	t, err := p.consume(TYPE)
	if err != nil {
		return "", fmt.Errorf("line %d: expected type name, got %s %q", t.Line, t.Kind, t.Val)
	}
	return t.Val, nil
}

// parseStatements parses statements until a closing brace or end of input.
func (p *parser) parseStatements() ([]*ir.Expr, error) {
	body := make([]*ir.Expr, 0, 8)
	for p.peek().Kind != RBRACE && p.peek().Kind != EOF {
		n, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, n)
	}
	return body, nil
}

// parseStatement parses a single statement. A bare comparison expression is
// accepted without a trailing semicolon; it only appears in nested contexts.
func (p *parser) parseStatement() (*ir.Expr, error) {
	t := p.peek()
	switch t.Kind {
	case RETURN:
		p.next()
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(SEMICOLON); err != nil {
			return nil, err
		}
		return &ir.Expr{Kind: ir.RETURN, Line: t.Line, Left: val}, nil
	case CONST, VAR:
		return p.parseVarDecl()
	case IF:
		return p.parseIf()
	case WHILE:
		return p.parseWhile()
	case FOR:
		return p.parseFor()
	case BREAK:
		p.next()
		if _, err := p.consume(SEMICOLON); err != nil {
			return nil, err
		}
		return &ir.Expr{Kind: ir.BREAK, Line: t.Line}, nil
	case CONTINUE:
		p.next()
		if _, err := p.consume(SEMICOLON); err != nil {
			return nil, err
		}
		return &ir.Expr{Kind: ir.CONTINUE, Line: t.Line}, nil
	case IDENTIFIER:
		if p.peek2().Kind == LPAREN {
			// Call statement.
			call, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(SEMICOLON); err != nil {
				return nil, err
			}
			return call, nil
		}
	}
	return p.parseExpression()
}

// parseVarDecl parses a const or var declaration. The declared type defaults
// to u8 when the annotation is omitted; the initializer is optional.
func (p *parser) parseVarDecl() (*ir.Expr, error) {
	t := p.next() // const or var.
	name, err := p.consume(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	n := &ir.Expr{
		Kind:  ir.VAR_DECL,
		Line:  t.Line,
		Text:  name.Val,
		Type:  "u8",
		Const: t.Kind == CONST,
	}
	if p.peek().Kind == COLON {
		p.next()
		if n.Type, err = p.parseType(); err != nil {
			return nil, err
		}
	}
	if p.peek().Kind == ASSIGN {
		p.next()
		if n.Left, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(SEMICOLON); err != nil {
		return nil, err
	}
	return n, nil
}

// parseIf parses an if statement with an optional else branch. Both branch
// bodies are brace delimited statement lists.
func (p *parser) parseIf() (*ir.Expr, error) {
	t := p.next() // if.
	n := &ir.Expr{Kind: ir.IF, Line: t.Line}
	var err error
	if _, err = p.consume(LPAREN); err != nil {
		return nil, err
	}
	if n.Left, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if _, err = p.consume(RPAREN); err != nil {
		return nil, err
	}
	if _, err = p.consume(LBRACE); err != nil {
		return nil, err
	}
	if n.Body, err = p.parseStatements(); err != nil {
		return nil, err
	}
	if _, err = p.consume(RBRACE); err != nil {
		return nil, err
	}
	if p.peek().Kind == ELSE {
		p.next()
		if _, err = p.consume(LBRACE); err != nil {
			return nil, err
		}
		if n.Else, err = p.parseStatements(); err != nil {
			return nil, err
		}
		if _, err = p.consume(RBRACE); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// parseWhile parses a while loop.
func (p *parser) parseWhile() (*ir.Expr, error) {
	t := p.next() // while.
	n := &ir.Expr{Kind: ir.WHILE, Line: t.Line}
	var err error
	if _, err = p.consume(LPAREN); err != nil {
		return nil, err
	}
	if n.Left, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if _, err = p.consume(RPAREN); err != nil {
		return nil, err
	}
	if _, err = p.consume(LBRACE); err != nil {
		return nil, err
	}
	if n.Body, err = p.parseStatements(); err != nil {
		return nil, err
	}
	if _, err = p.consume(RBRACE); err != nil {
		return nil, err
	}
	return n, nil
}

// parseFor parses a for loop over the half-open integer range [start, end).
func (p *parser) parseFor() (*ir.Expr, error) {
	t := p.next() // for.
	name, err := p.consume(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	n := &ir.Expr{Kind: ir.FOR, Line: t.Line, Text: name.Val}
	if _, err = p.consume(IN); err != nil {
		return nil, err
	}
	if n.Left, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if _, err = p.consume(COLON); err != nil {
		return nil, err
	}
	if n.Right, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if _, err = p.consume(LBRACE); err != nil {
		return nil, err
	}
	if n.Body, err = p.parseStatements(); err != nil {
		return nil, err
	}
	if _, err = p.consume(RBRACE); err != nil {
		return nil, err
	}
	return n, nil
}

// parseExpression parses a comparison: a single comparison operator between
// two additions.
func (p *parser) parseExpression() (*ir.Expr, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}
	switch t := p.peek(); t.Kind {
	case EQ, NEQ, LT, LEQ, GT, GEQ:
		p.next()
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		return &ir.Expr{Kind: ir.BINARY, Line: t.Line, Op: t.Val, Left: left, Right: right}, nil
	}
	return left, nil
}

// parseAddition parses a primary optionally followed by a single plus and a
// second primary.
func (p *parser) parseAddition() (*ir.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Kind == PLUS {
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &ir.Expr{Kind: ir.BINARY, Line: t.Line, Op: t.Val, Left: left, Right: right}, nil
	}
	return left, nil
}

// parsePrimary parses a literal, a parenthesised expression, a variable
// reference or a call.
func (p *parser) parsePrimary() (*ir.Expr, error) {
	t := p.peek()
	switch t.Kind {
	case NUMBER:
		p.next()
		v, err := strconv.ParseInt(t.Val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: integer literal %q out of 64-bit range", t.Line, t.Val)
		}
		return &ir.Expr{Kind: ir.NUMBER, Line: t.Line, Num: v}, nil
	case TRUE:
		p.next()
		return &ir.Expr{Kind: ir.BOOLEAN, Line: t.Line, Bool: true}, nil
	case FALSE:
		p.next()
		return &ir.Expr{Kind: ir.BOOLEAN, Line: t.Line, Bool: false}, nil
	case STRING:
		p.next()
		return &ir.Expr{Kind: ir.STRING, Line: t.Line, Text: t.Val}, nil
	case LPAREN:
		p.next()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case IDENTIFIER:
		p.next()
		if p.peek().Kind != LPAREN {
			return &ir.Expr{Kind: ir.VARIABLE, Line: t.Line, Text: t.Val}, nil
		}
		return p.parseCallArgs(t)
	}
	return nil, fmt.Errorf("line %d: expected expression, got %s %q", t.Line, t.Kind, t.Val)
}

// parseCallArgs parses the parenthesised argument list of a call whose callee
// token has already been consumed.
func (p *parser) parseCallArgs(callee Token) (*ir.Expr, error) {
	n := &ir.Expr{Kind: ir.CALL, Line: callee.Line, Text: callee.Val}
	if _, err := p.consume(LPAREN); err != nil {
		return nil, err
	}
	if p.peek().Kind != RPAREN {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			n.Args = append(n.Args, arg)
			if p.peek().Kind != COMMA {
				break
			}
			p.next()
		}
	}
	if _, err := p.consume(RPAREN); err != nil {
		return nil, err
	}
	return n, nil
}
