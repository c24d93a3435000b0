package parser

import (
	"fmt"
	"strconv"

	"github.com/mzlang/mzc/pkg/ast"
	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/dialect"
	"github.com/mzlang/mzc/pkg/lexer"
	"github.com/mzlang/mzc/pkg/token"
)

// Parser holds the state for the parsing process
type Parser struct {
	cur   *Cursor
	cfg   *config.Config
	table *dialect.Table
}

// New creates a Parser over a token stream produced by the lexer.
func New(tokens []token.Token, cfg *config.Config) *Parser {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Parser{cur: NewCursor(tokens), cfg: cfg}
}

// WithDialect makes error messages name expected tokens in t's spelling.
func (p *Parser) WithDialect(t *dialect.Table) *Parser {
	p.table = t
	return p
}

// ParseSource lexes and parses src in one step.
func ParseSource(src string, table *dialect.Table, cfg *config.Config) (*ast.Program, error) {
	tokens, err := lexer.Tokenize(src, table, cfg)
	if err != nil {
		return nil, err
	}
	return New(tokens, cfg).WithDialect(table).Parse()
}

// Parse consumes the whole stream. The first error aborts.
func (p *Parser) Parse() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.cur.AtEnd() {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}

// Parser helpers
func (p *Parser) peek() token.Token {
	t, _ := p.cur.Peek()
	return t
}

func (p *Parser) advance() token.Token {
	t, _ := p.cur.Next()
	return t
}

func (p *Parser) check(kind token.Kind) bool { return p.peek().Kind == kind }

func (p *Parser) match(kind token.Kind) bool {
	if !p.check(kind) {
		return false
	}
	p.advance()
	return true
}

// expect consumes a token of the given kind or fails with a MissingToken
// error naming what was expected, where, and what was found instead.
func (p *Parser) expect(kind token.Kind, context string) (token.Token, error) {
	if p.check(kind) {
		return p.advance(), nil
	}
	found := p.peek()
	return found, diag.AtToken(diag.ParseError, diag.CodeMissingToken, found,
		"expected %s %s, found %s", p.describe(kind), context, found.Describe())
}

func (p *Parser) describe(kind token.Kind) string {
	switch kind {
	case token.Ident:
		return "identifier"
	case token.IntLit:
		return "integer"
	}
	if p.table != nil {
		if s, err := p.table.Render(kind); err == nil {
			return "'" + s + "'"
		}
	}
	if s, err := dialect.MustLoad(dialect.Default).Render(kind); err == nil {
		return "'" + s + "'"
	}
	return kind.String()
}

func (p *Parser) requireFeature(ft config.Feature, tok token.Token, what string) error {
	if p.cfg.IsFeatureEnabled(ft) {
		return nil
	}
	return diag.AtToken(diag.ParseError, diag.CodeFeatureDisabled, tok,
		"%s are disabled (enable with -F%s)", what, p.cfg.Features[ft].Name)
}

// Statement Parsing
func (p *Parser) parseStmt() (*ast.Stmt, error) {
	tok := p.peek()
	switch tok.Kind {
	case token.Exit:
		return p.parseExit()
	case token.Let:
		return p.parseLet()
	case token.OpenCurly:
		return p.parseScope("to open a scope")
	case token.If:
		return p.parseIf()
	case token.While:
		return p.parseWhile()
	case token.Ident:
		return p.parseIdentStmt()
	}
	return nil, diag.AtToken(diag.ParseError, diag.CodeUnexpectedToken, tok,
		"unexpected %s at start of statement", tok.Describe())
}

func (p *Parser) parseExit() (*ast.Stmt, error) {
	tok := p.advance()
	kw := "'" + tok.Text + "'"
	if _, err := p.expect(token.OpenParen, "after "+kw); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.CloseParen, "after exit status"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semi, "after "+kw+" statement"); err != nil {
		return nil, err
	}
	return ast.NewExit(tok, value), nil
}

func (p *Parser) parseLet() (*ast.Stmt, error) {
	tok := p.advance()
	name, err := p.expect(token.Ident, "after '"+tok.Text+"'")
	if err != nil {
		return nil, err
	}

	if p.check(token.OpenBracket) {
		if err := p.requireFeature(config.FeatArrays, p.peek(), "arrays"); err != nil {
			return nil, err
		}
		p.advance()
		size, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.CloseBracket, "after array size"); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semi, "after array declaration"); err != nil {
			return nil, err
		}
		return ast.NewArrayDecl(name, name.Text, size), nil
	}

	if _, err := p.expect(token.Eq, "after variable name '"+name.Text+"'"); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semi, "after declaration of '"+name.Text+"'"); err != nil {
		return nil, err
	}
	return ast.NewLet(name, name.Text, value), nil
}

func (p *Parser) parseScope(context string) (*ast.Stmt, error) {
	open, err := p.expect(token.OpenCurly, context)
	if err != nil {
		return nil, err
	}
	var stmts []*ast.Stmt
	for !p.check(token.CloseCurly) {
		if p.cur.AtEnd() {
			_, err := p.expect(token.CloseCurly, fmt.Sprintf("to close the scope opened at %s", open.Pos()))
			return nil, err
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	p.advance()
	return ast.NewScope(open, stmts), nil
}

// parseCondition parses "( expr )" after a control-flow keyword.
func (p *Parser) parseCondition(kw token.Token) (*ast.Expr, error) {
	if _, err := p.expect(token.OpenParen, "after '"+kw.Text+"'"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.CloseParen, "after condition"); err != nil {
		return nil, err
	}
	return cond, nil
}

func (p *Parser) parseIf() (*ast.Stmt, error) {
	tok := p.peek()
	if err := p.requireFeature(config.FeatControlFlow, tok, "control-flow statements"); err != nil {
		return nil, err
	}
	p.advance()
	cond, err := p.parseCondition(tok)
	if err != nil {
		return nil, err
	}
	then, err := p.parseScope("after condition")
	if err != nil {
		return nil, err
	}

	var elifs []ast.ElifClause
	for p.check(token.Elif) {
		elifTok := p.advance()
		elifCond, err := p.parseCondition(elifTok)
		if err != nil {
			return nil, err
		}
		body, err := p.parseScope("after condition")
		if err != nil {
			return nil, err
		}
		elifs = append(elifs, ast.ElifClause{Tok: elifTok, Cond: elifCond, Body: body})
	}

	var els *ast.Stmt
	if p.check(token.Else) {
		elseTok := p.advance()
		if els, err = p.parseScope("after '" + elseTok.Text + "'"); err != nil {
			return nil, err
		}
	}
	return ast.NewIf(tok, cond, then, elifs, els), nil
}

func (p *Parser) parseWhile() (*ast.Stmt, error) {
	tok := p.peek()
	if err := p.requireFeature(config.FeatControlFlow, tok, "control-flow statements"); err != nil {
		return nil, err
	}
	p.advance()
	cond, err := p.parseCondition(tok)
	if err != nil {
		return nil, err
	}
	body, err := p.parseScope("after condition")
	if err != nil {
		return nil, err
	}
	return ast.NewWhile(tok, cond, body), nil
}

// parseIdentStmt handles assignment, array assignment, a bare array read
// and builtin calls, all of which start with an identifier.
func (p *Parser) parseIdentStmt() (*ast.Stmt, error) {
	name := p.advance()

	switch {
	case p.match(token.Eq):
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semi, "after assignment to '"+name.Text+"'"); err != nil {
			return nil, err
		}
		return ast.NewAssign(name, name.Text, value), nil

	case p.check(token.OpenBracket):
		if err := p.requireFeature(config.FeatArrays, p.peek(), "arrays"); err != nil {
			return nil, err
		}
		p.advance()
		index, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.CloseBracket, "after array index"); err != nil {
			return nil, err
		}
		if p.match(token.Eq) {
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Semi, "after array assignment"); err != nil {
				return nil, err
			}
			return ast.NewArrayAssign(name, name.Text, index, value), nil
		}
		if _, err := p.expect(token.Semi, "after array element"); err != nil {
			return nil, err
		}
		return ast.NewArrayReadStmt(name, name.Text, index), nil

	case p.check(token.OpenParen):
		if err := p.requireFeature(config.FeatBuiltins, name, "builtin calls"); err != nil {
			return nil, err
		}
		p.advance()
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semi, "after call to '"+name.Text+"'"); err != nil {
			return nil, err
		}
		return ast.NewBuiltinCall(name, name.Text, args), nil
	}

	_, err := p.expect(token.Eq, "after identifier '"+name.Text+"'")
	return nil, err
}

// parseArgs parses a comma separated argument list up to and including ')'.
func (p *Parser) parseArgs() ([]*ast.Expr, error) {
	var args []*ast.Expr
	if p.match(token.CloseParen) {
		return args, nil
	}
	for {
		var arg *ast.Expr
		if p.check(token.StrLit) {
			tok := p.advance()
			arg = ast.NewStrLit(tok, tok.Text)
		} else {
			var err error
			if arg, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
		args = append(args, arg)
		if !p.match(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.CloseParen, "after arguments"); err != nil {
		return nil, err
	}
	return args, nil
}

// Expression Parsing
func (p *Parser) parseExpr() (*ast.Expr, error) { return p.parseBinaryExpr(0) }

// parseBinaryExpr is left-associative precedence climbing: operators at
// or above minPrec are folded into the left operand, and each right
// operand only takes operators that bind strictly tighter.
func (p *Parser) parseBinaryExpr(minPrec int) (*ast.Expr, error) {
	left, err := p.parsePrimaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		opTok := p.peek()
		prec := opTok.Prec
		if prec < 0 || prec < minPrec {
			break
		}
		op, ok := ast.FromToken(opTok.Kind)
		if !ok {
			break
		}
		p.advance()
		right, err := p.parseBinaryExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(opTok, op, left, right)
	}
	return left, nil
}

func (p *Parser) parsePrimaryExpr() (*ast.Expr, error) {
	tok := p.peek()
	switch tok.Kind {
	case token.IntLit:
		p.advance()
		val, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, diag.AtToken(diag.ParseError, diag.CodeUnexpectedToken, tok, "invalid integer literal %s", tok.Text)
		}
		return ast.NewIntLit(tok, val), nil

	case token.Ident:
		p.advance()
		if !p.check(token.OpenBracket) {
			return ast.NewIdent(tok, tok.Text), nil
		}
		if err := p.requireFeature(config.FeatArrays, p.peek(), "arrays"); err != nil {
			return nil, err
		}
		p.advance()
		index, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.CloseBracket, "after array index"); err != nil {
			return nil, err
		}
		return ast.NewArrayRead(tok, tok.Text, index), nil

	case token.OpenParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.CloseParen, "after expression"); err != nil {
			return nil, err
		}
		return ast.NewParen(tok, inner), nil

	case token.StrLit:
		return nil, diag.AtToken(diag.ParseError, diag.CodeUnexpectedToken, tok,
			"string literals are only allowed as builtin arguments")
	}
	return nil, diag.AtToken(diag.ParseError, diag.CodeUnexpectedToken, tok,
		"expected an expression, found %s", tok.Describe())
}
