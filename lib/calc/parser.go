package calc

import (
	"fmt"
	"math"
	"strconv"
	"unicode"
)

// --------------------------------------------------------------------------
// Lexer
// --------------------------------------------------------------------------

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp // one of + - * / % ^ ( ) , =
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			// exponent
			if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
				j := i + 1
				if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
					j++
				}
				if j < len(runes) && unicode.IsDigit(runes[j]) {
					for j < len(runes) && unicode.IsDigit(runes[j]) {
						j++
					}
					i = j
				}
			}
			text := string(runes[start:i])
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q at %d", ErrSyntax, text, start)
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, num: num, pos: start})

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[start:i]), pos: start})

		default:
			switch r {
			case '+', '-', '*', '/', '%', '^', '(', ')', ',', '=':
				tokens = append(tokens, token{kind: tokOp, text: string(r), pos: i})
				i++
			default:
				return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, r, i)
			}
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(runes)}), nil
}

// --------------------------------------------------------------------------
// Parser
// --------------------------------------------------------------------------

// parser is a recursive descent evaluator for
//
//	statement := ident "=" expr | expr
//	expr      := term {("+" | "-") term}
//	term      := unary {("*" | "/" | "%") unary}
//	unary     := ("+" | "-") unary | power
//	power     := primary ["^" unary]
//	primary   := number | ident | ident "(" expr {"," expr} ")" | "(" expr ")"
type parser struct {
	tokens []token
	pos    int
	vars   map[string]float64
}

func newParser(input string, vars map[string]float64) (*parser, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	return &parser{tokens: tokens, vars: vars}, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(op string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == op
}

func (p *parser) expect(op string) error {
	if !p.isOp(op) {
		return p.unexpected()
	}
	p.next()
	return nil
}

func (p *parser) unexpected() error {
	t := p.peek()
	if t.kind == tokEOF {
		return fmt.Errorf("%w: unexpected end of input", ErrSyntax)
	}
	return fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
}

// statement returns the assigned variable name (empty for plain expressions)
// and the value
func (p *parser) statement() (string, float64, error) {
	var name string
	if p.peek().kind == tokIdent && p.tokens[p.pos+1].kind == tokOp && p.tokens[p.pos+1].text == "=" {
		name = p.next().text
		p.next()
	}

	v, err := p.expr()
	if err != nil {
		return "", 0, err
	}
	if p.peek().kind != tokEOF {
		return "", 0, p.unexpected()
	}
	return name, v, nil
}

func (p *parser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text
		rhs, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			v += rhs
		} else {
			v -= rhs
		}
	}
	return v, nil
}

func (p *parser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("%") {
		op := p.next().text
		rhs, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			v *= rhs
		case "/":
			if rhs == 0 {
				return 0, ErrDivisionByZero
			}
			v /= rhs
		case "%":
			if rhs == 0 {
				return 0, ErrDivisionByZero
			}
			v = math.Mod(v, rhs)
		}
	}
	return v, nil
}

func (p *parser) unary() (float64, error) {
	if p.isOp("-") || p.isOp("+") {
		neg := p.next().text == "-"
		v, err := p.unary()
		if neg {
			v = -v
		}
		return v, err
	}
	return p.power()
}

func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if !p.isOp("^") {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *parser) primary() (float64, error) {
	t := p.peek()
	switch {
	case t.kind == tokNumber:
		p.next()
		return t.num, nil

	case t.kind == tokIdent:
		p.next()
		if p.isOp("(") {
			p.next()
			args, err := p.arguments()
			if err != nil {
				return 0, err
			}
			return call(t.text, args)
		}
		v, ok := p.vars[t.text]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownVariable, t.text)
		}
		return v, nil

	case p.isOp("("):
		p.next()
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		return v, p.expect(")")
	}
	return 0, p.unexpected()
}

// arguments parses a comma separated list up to and including ")"
func (p *parser) arguments() ([]float64, error) {
	var args []float64
	if p.isOp(")") {
		p.next()
		return args, nil
	}
	for {
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		if p.isOp(",") {
			p.next()
			continue
		}
		return args, p.expect(")")
	}
}
