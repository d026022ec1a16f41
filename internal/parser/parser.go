package parser

import (
	"fmt"
	"math/big"
	"strings"

	"PriceOptimizer/internal/symbolic"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokVar
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPow
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

func lex(text, variable string) ([]token, error) {
	var toks []token
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case isSpace(rune(c)):
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			dot := false
			for i < len(text) && (text[i] >= '0' && text[i] <= '9' || text[i] == '.') {
				if text[i] == '.' {
					if dot {
						return nil, fmt.Errorf("%w at offset %d: malformed number %q", ErrParse, start, text[start:i+1])
					}
					dot = true
				}
				i++
			}
			if text[start:i] == "." {
				return nil, fmt.Errorf("%w at offset %d: lone decimal point", ErrParse, start)
			}
			toks = append(toks, token{kind: tokNumber, text: text[start:i], pos: start})
		case string(c) == variable:
			toks = append(toks, token{kind: tokVar, text: variable, pos: i})
			i++
		case c == '*' && i+1 < len(text) && text[i+1] == '*':
			toks = append(toks, token{kind: tokPow, text: "**", pos: i})
			i += 2
		case strings.IndexByte("+-*/()", c) >= 0:
			toks = append(toks, token{kind: single[c], text: string(c), pos: i})
			i++
		default:
			return nil, fmt.Errorf("%w at offset %d: unexpected character %q", ErrParse, i, rune(c))
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(text)}), nil
}

var single = map[byte]tokenKind{
	'+': tokPlus,
	'-': tokMinus,
	'*': tokStar,
	'/': tokSlash,
	'(': tokLParen,
	')': tokRParen,
}

// Parse builds the expression for text with variable as its only free
// symbol. Operator precedence follows Python: ** binds tighter than unary
// minus and is right-associative.
func Parse(text, variable string) (symbolic.Expr, error) {
	if err := CheckVariable(variable); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	toks, err := lex(text, variable)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, variable: variable}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w at offset %d: unexpected %s", ErrParse, t.pos, t)
	}
	// Checked on the text: 0*x simplifies the variable away but still counts.
	if !strings.Contains(text, variable) {
		return nil, fmt.Errorf("%w: variable %q does not appear", ErrParse, variable)
	}
	return e, nil
}

// MustParse is Parse for inputs known to be valid. It panics on error.
func MustParse(text, variable string) symbolic.Expr {
	e, err := Parse(text, variable)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	toks     []token
	pos      int
	variable string
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// expr := term (('+'|'-') term)*
func (p *parser) expr() (symbolic.Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokPlus, tokMinus:
			op := p.next()
			right, err := p.term()
			if err != nil {
				return nil, err
			}
			if op.kind == tokPlus {
				left = symbolic.Add(left, right)
			} else {
				left = symbolic.Sub(left, right)
			}
		default:
			return left, nil
		}
	}
}

// term := unary (('*'|'/') unary)*
func (p *parser) term() (symbolic.Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokStar, tokSlash:
			op := p.next()
			right, err := p.unary()
			if err != nil {
				return nil, err
			}
			if op.kind == tokStar {
				left = symbolic.Mul(left, right)
			} else {
				left = symbolic.Div(left, right)
			}
		default:
			return left, nil
		}
	}
}

// unary := ('+'|'-') unary | power
func (p *parser) unary() (symbolic.Expr, error) {
	switch p.peek().kind {
	case tokPlus:
		p.next()
		return p.unary()
	case tokMinus:
		p.next()
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return symbolic.Neg(e), nil
	}
	return p.power()
}

// power := atom ('**' unary)?
func (p *parser) power() (symbolic.Expr, error) {
	base, err := p.atom()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokPow {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return symbolic.Pow(base, exp), nil
}

// atom := number | variable | '(' expr ')'
func (p *parser) atom() (symbolic.Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return number(t)
	case tokVar:
		return symbolic.Symbol(p.variable), nil
	case tokLParen:
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, fmt.Errorf("%w at offset %d: expected \")\", got %s", ErrParse, c.pos, c)
		}
		return e, nil
	}
	return nil, fmt.Errorf("%w at offset %d: unexpected %s", ErrParse, t.pos, t)
}

func number(t token) (symbolic.Expr, error) {
	s := t.text
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("%w at offset %d: malformed number %q", ErrParse, t.pos, t.text)
	}
	return symbolic.Rat(r), nil
}
