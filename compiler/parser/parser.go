// Package parser is a hand-written recursive-descent parser over the token
// stream, implementing the grammar of spec §6. It produces a bare
// *parsetree.Program; compiler/ast resolves scopes and symbols from there.
//
// "int", "bool" and "void" are not reserved words in the grammar (type :=
// Ident); the parser recognizes them as type names by spelling, the same way
// the teacher compiler's hand-written scanner recognizes "func" by spelling
// in front/parser.go.
package parser

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cruxlang/crux/compiler/parsetree"
	"github.com/cruxlang/crux/compiler/token"
)

var typeNames = map[string]bool{"int": true, "bool": true, "void": true}

type Parser struct {
	toks []token.Token
	pos  int
}

func Parse(ctx context.Context, toks []token.Token) (prog *parsetree.Program, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "parser.Parse")
	defer tr.Finish("err", &err)

	p := &Parser{toks: toks}
	prog, err = p.parseProgram()
	if err == nil {
		tr.Printw("parsed", "decls", len(prog.Decls))
	}
	return prog, err
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }
func (p *Parser) peek(n int) token.Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if !p.at(k) {
		return token.Token{}, errors.New("line %d: expected %v, got %v %q", p.cur().Line, k, p.cur().Kind, p.cur().Text)
	}
	return p.advance(), nil
}

func (p *Parser) isTypeIdent() bool {
	return p.at(token.Ident) && typeNames[p.cur().Text]
}

func (p *Parser) parseProgram() (*parsetree.Program, error) {
	prog := &parsetree.Program{}

	for !p.at(token.EOF) {
		decl, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		prog.Decls = append(prog.Decls, decl)
	}

	return prog, nil
}

// parseDecl disambiguates varDecl / arrayDecl / funcDefn by looking past the
// leading "type Ident" pair at the next token.
func (p *Parser) parseDecl() (parsetree.Decl, error) {
	typLine := p.cur().Line
	typ, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}

	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}

	switch p.cur().Kind {
	case token.LParen:
		return p.parseFuncDefn(typ, nameTok.Text, typLine)
	case token.LBracket:
		return p.parseArrayDeclTail(typ, nameTok.Text, typLine)
	default:
		if _, err := p.expect(token.Semi); err != nil {
			return nil, err
		}
		return &parsetree.VarDecl{Type: typ, Name: nameTok.Text, Line: typLine}, nil
	}
}

func (p *Parser) parseTypeName() (string, error) {
	t, err := p.expect(token.Ident)
	if err != nil {
		return "", err
	}
	return t.Text, nil
}

func (p *Parser) parseArrayDeclTail(typ, name string, line int) (*parsetree.ArrayDecl, error) {
	if _, err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	sizeTok, err := p.expect(token.Integer)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}

	size, err := parseInt(sizeTok.Text)
	if err != nil {
		return nil, err
	}

	return &parsetree.ArrayDecl{Type: typ, Name: name, Size: size, Line: line}, nil
}

func (p *Parser) parseFuncDefn(retType, name string, line int) (*parsetree.FuncDefn, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}

	var params []parsetree.Param
	for !p.at(token.RParen) {
		if len(params) > 0 {
			if _, err := p.expect(token.Comma); err != nil {
				return nil, err
			}
		}

		pLine := p.cur().Line
		pType, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		pName, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		params = append(params, parsetree.Param{Type: pType, Name: pName.Text, Line: pLine})
	}

	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	body, err := p.parseStmtBlock()
	if err != nil {
		return nil, err
	}

	return &parsetree.FuncDefn{RetType: retType, Name: name, Params: params, Body: body, Line: line}, nil
}

func (p *Parser) parseStmtBlock() ([]parsetree.Stmt, error) {
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}

	var stmts []parsetree.Stmt
	for !p.at(token.RBrace) {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}

	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}

	return stmts, nil
}

func (p *Parser) parseStmt() (parsetree.Stmt, error) {
	switch {
	case p.isTypeIdent():
		typLine := p.cur().Line
		typ, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semi); err != nil {
			return nil, err
		}
		return &parsetree.VarDecl{Type: typ, Name: name.Text, Line: typLine}, nil

	case p.at(token.KwIf):
		return p.parseIfStmt()

	case p.at(token.KwFor):
		return p.parseForStmt()

	case p.at(token.KwBreak):
		line := p.advance().Line
		if _, err := p.expect(token.Semi); err != nil {
			return nil, err
		}
		return &parsetree.Break{Line: line}, nil

	case p.at(token.KwReturn):
		line := p.advance().Line
		var val parsetree.Expr
		if !p.at(token.Semi) {
			v, err := p.parseExpr0()
			if err != nil {
				return nil, err
			}
			val = v
		}
		if _, err := p.expect(token.Semi); err != nil {
			return nil, err
		}
		return &parsetree.Return{Value: val, Line: line}, nil

	case p.at(token.Ident):
		if p.peek(1).Kind == token.LParen {
			return p.parseCallStmt()
		}
		return p.parseAssignStmt(true)

	default:
		return nil, errors.New("line %d: unexpected token %v %q", p.cur().Line, p.cur().Kind, p.cur().Text)
	}
}

func (p *Parser) parseCallStmt() (*parsetree.CallStmt, error) {
	line := p.cur().Line
	call, err := p.parseCallExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}
	return &parsetree.CallStmt{Call: call, Line: line}, nil
}

// parseAssignStmt parses `designator = expr0`, optionally consuming the
// trailing ';' (forStmt's incr clause omits it).
func (p *Parser) parseAssignStmt(withSemi bool) (*parsetree.Assign, error) {
	line := p.cur().Line
	target, err := p.parseDesignator()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Assign); err != nil {
		return nil, err
	}
	val, err := p.parseExpr0()
	if err != nil {
		return nil, err
	}
	if withSemi {
		if _, err := p.expect(token.Semi); err != nil {
			return nil, err
		}
	}
	return &parsetree.Assign{Target: target, Value: val, Line: line}, nil
}

func (p *Parser) parseIfStmt() (*parsetree.If, error) {
	line := p.advance().Line // 'if'
	cond, err := p.parseExpr0()
	if err != nil {
		return nil, err
	}
	then, err := p.parseStmtBlock()
	if err != nil {
		return nil, err
	}

	var els []parsetree.Stmt
	if p.at(token.KwElse) {
		p.advance()
		els, err = p.parseStmtBlock()
		if err != nil {
			return nil, err
		}
	}

	return &parsetree.If{Cond: cond, Then: then, Else: els, Line: line}, nil
}

func (p *Parser) parseForStmt() (*parsetree.For, error) {
	line := p.advance().Line // 'for'
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}

	init, err := p.parseAssignStmt(true)
	if err != nil {
		return nil, err
	}

	cond, err := p.parseExpr0()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}

	incr, err := p.parseAssignStmt(false)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	body, err := p.parseStmtBlock()
	if err != nil {
		return nil, err
	}

	return &parsetree.For{Init: init, Cond: cond, Incr: incr, Body: body, Line: line}, nil
}

func (p *Parser) parseDesignator() (parsetree.Expr, error) {
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if p.at(token.LBracket) {
		p.advance()
		idx, err := p.parseExpr0()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return nil, err
		}
		return &parsetree.Index{Name: name.Text, Index: idx, Line: name.Line}, nil
	}
	return &parsetree.Ident{Name: name.Text, Line: name.Line}, nil
}

func (p *Parser) parseCallExpr() (*parsetree.Call, error) {
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}

	var args []parsetree.Expr
	for !p.at(token.RParen) {
		if len(args) > 0 {
			if _, err := p.expect(token.Comma); err != nil {
				return nil, err
			}
		}
		a, err := p.parseExpr0()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}

	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	return &parsetree.Call{Name: name.Text, Args: args, Line: name.Line}, nil
}

// expr0 := expr1 | expr1 op0 expr1 — op0 is non-associative: at most one
// comparison per chain.
func (p *Parser) parseExpr0() (parsetree.Expr, error) {
	left, err := p.parseExpr1()
	if err != nil {
		return nil, err
	}

	if op, ok := op0(p.cur().Kind); ok {
		line := p.advance().Line
		right, err := p.parseExpr1()
		if err != nil {
			return nil, err
		}
		return &parsetree.Binary{Op: op, L: left, R: right, Line: line}, nil
	}

	return left, nil
}

// expr1 := expr2 (op1 expr2)* — left-associative.
func (p *Parser) parseExpr1() (parsetree.Expr, error) {
	left, err := p.parseExpr2()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := op1(p.cur().Kind)
		if !ok {
			return left, nil
		}
		line := p.advance().Line
		right, err := p.parseExpr2()
		if err != nil {
			return nil, err
		}
		left = &parsetree.Binary{Op: op, L: left, R: right, Line: line}
	}
}

// expr2 := expr3 (op2 expr3)* — left-associative.
func (p *Parser) parseExpr2() (parsetree.Expr, error) {
	left, err := p.parseExpr3()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := op2(p.cur().Kind)
		if !ok {
			return left, nil
		}
		line := p.advance().Line
		right, err := p.parseExpr3()
		if err != nil {
			return nil, err
		}
		left = &parsetree.Binary{Op: op, L: left, R: right, Line: line}
	}
}

func (p *Parser) parseExpr3() (parsetree.Expr, error) {
	switch {
	case p.at(token.Bang):
		line := p.advance().Line
		x, err := p.parseExpr3()
		if err != nil {
			return nil, err
		}
		return &parsetree.Unary{Op: "!", X: x, Line: line}, nil

	case p.at(token.LParen):
		p.advance()
		x, err := p.parseExpr0()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return x, nil

	case p.at(token.Ident):
		if p.peek(1).Kind == token.LParen {
			return p.parseCallExpr()
		}
		return p.parseDesignator()

	case p.at(token.Integer):
		t := p.advance()
		v, err := parseInt(t.Text)
		if err != nil {
			return nil, err
		}
		return &parsetree.Int{Value: v, Line: t.Line}, nil

	case p.at(token.True):
		t := p.advance()
		return &parsetree.Bool{Value: true, Line: t.Line}, nil

	case p.at(token.False):
		t := p.advance()
		return &parsetree.Bool{Value: false, Line: t.Line}, nil

	default:
		return nil, errors.New("line %d: expected expression, got %v %q", p.cur().Line, p.cur().Kind, p.cur().Text)
	}
}

func op0(k token.Kind) (string, bool) {
	switch k {
	case token.Ge:
		return ">=", true
	case token.Le:
		return "<=", true
	case token.Ne:
		return "!=", true
	case token.EqEq:
		return "==", true
	case token.Gt:
		return ">", true
	case token.Lt:
		return "<", true
	}
	return "", false
}

func op1(k token.Kind) (string, bool) {
	switch k {
	case token.Plus:
		return "+", true
	case token.Minus:
		return "-", true
	case token.OrOr:
		return "||", true
	}
	return "", false
}

func op2(k token.Kind) (string, bool) {
	switch k {
	case token.Star:
		return "*", true
	case token.Slash:
		return "/", true
	case token.AndAnd:
		return "&&", true
	}
	return "", false
}

func parseInt(s string) (int64, error) {
	var v int64
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			return 0, errors.New("invalid integer literal %q", s)
		}
		v = v*10 + int64(c-'0')
	}
	return v, nil
}
