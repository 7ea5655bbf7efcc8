package filter

import (
	"fmt"
	"strconv"
	"strings"
)

type ldapParser struct {
	src string
	pos int
}

func (p *ldapParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: ldap at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *ldapParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *ldapParser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

// parse reads one parenthesised filter.
func (p *ldapParser) parse() (Filter, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var (
		f   Filter
		err error
	)
	switch p.peek() {
	case '!':
		p.pos++
		var inner Filter
		if inner, err = p.parse(); err != nil {
			return nil, err
		}
		f = inner.Not()
	case '&', '|':
		op := p.peek()
		p.pos++
		f, err = p.parseList(op)
	default:
		f, err = p.parseItem()
	}
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return f, nil
}

// parseList folds an n-ary LDAP list into left-nested binary conditions.
func (p *ldapParser) parseList(op byte) (Filter, error) {
	var acc Filter
	for p.peek() == '(' {
		f, err := p.parse()
		if err != nil {
			return nil, err
		}
		switch {
		case acc == nil:
			acc = f
		case op == '&':
			acc = and(acc, f)
		default:
			acc = or(acc, f)
		}
	}
	if acc == nil {
		return nil, p.errorf("empty filter list")
	}
	return acc, nil
}

func (p *ldapParser) parseItem() (Filter, error) {
	var name strings.Builder
	for p.peek() != '=' {
		c := p.peek()
		switch c {
		case 0, '(', ')', '&', '|', '!':
			return nil, p.errorf("expected attribute=value")
		case '\\':
			v, err := p.escape()
			if err != nil {
				return nil, err
			}
			name.WriteByte(v)
			continue
		}
		name.WriteByte(c)
		p.pos++
	}
	if name.Len() == 0 {
		return nil, p.errorf("expected attribute=value")
	}
	p.pos++

	var b strings.Builder
	for p.pos < len(p.src) && p.src[p.pos] != ')' {
		c := p.src[p.pos]
		if c == '(' {
			return nil, p.errorf("unescaped '(' in value")
		}
		if c == '\\' {
			v, err := p.escape()
			if err != nil {
				return nil, err
			}
			b.WriteByte(v)
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
	return newProperty(LDAP, name.String(), b.String()), nil
}

// escape decodes a \XX hex escape at the current position.
func (p *ldapParser) escape() (byte, error) {
	if p.pos+2 >= len(p.src) {
		return 0, p.errorf("truncated escape")
	}
	v, err := strconv.ParseUint(p.src[p.pos+1:p.pos+3], 16, 8)
	if err != nil {
		return 0, p.errorf("invalid escape %q", p.src[p.pos:p.pos+3])
	}
	p.pos += 3
	return byte(v), nil
}

type tokenParser struct {
	src string
	pos int
}

func (p *tokenParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: token at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *tokenParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *tokenParser) keyword(kw string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], kw) {
		end := p.pos + len(kw)
		if end == len(p.src) || p.src[end] == ' ' || p.src[end] == '(' {
			p.pos = end
			return true
		}
	}
	return false
}

// parseExpr reads a term, optionally negated.
func (p *tokenParser) parseExpr() (Filter, error) {
	if p.keyword("NOT") {
		inner, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return inner.Not(), nil
	}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '(' {
		return p.parseGroup()
	}
	return p.parseProperty()
}

// parseGroup reads "( operand [AND|OR operand] )".
func (p *tokenParser) parseGroup() (Filter, error) {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '(' {
		return nil, p.errorf("expected '('")
	}
	p.pos++
	left, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	result := left
	switch {
	case p.keyword("AND"):
		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		result = and(left, right)
	case p.keyword("OR"):
		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		result = or(left, right)
	}
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != ')' {
		return nil, p.errorf("expected ')'")
	}
	p.pos++
	return result, nil
}

func (p *tokenParser) parseProperty() (Filter, error) {
	p.skipSpace()
	var name string
	if p.pos < len(p.src) && p.src[p.pos] == '"' {
		quoted, err := p.quotedName()
		if err != nil {
			return nil, err
		}
		name = quoted
	} else {
		start := p.pos
		for p.pos < len(p.src) && isNameChar(p.src[p.pos]) {
			p.pos++
		}
		if start == p.pos {
			return nil, p.errorf("expected property name")
		}
		name = p.src[start:p.pos]
	}
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '=' {
		return nil, p.errorf("expected '='")
	}
	p.pos++
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '\'' {
		return nil, p.errorf("expected quoted value")
	}
	p.pos++
	var b strings.Builder
	for {
		if p.pos >= len(p.src) {
			return nil, p.errorf("unterminated value")
		}
		c := p.src[p.pos]
		if c == '\\' && p.pos+1 < len(p.src) {
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
			continue
		}
		p.pos++
		if c == '\'' {
			break
		}
		b.WriteByte(c)
	}
	return newProperty(Token, name, b.String()), nil
}

// quotedName reads a double quoted property name with backslash escapes.
func (p *tokenParser) quotedName() (string, error) {
	p.pos++
	var b strings.Builder
	for {
		if p.pos >= len(p.src) {
			return "", p.errorf("unterminated property name")
		}
		c := p.src[p.pos]
		if c == '\\' && p.pos+1 < len(p.src) {
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
			continue
		}
		p.pos++
		if c == '"' {
			return b.String(), nil
		}
		b.WriteByte(c)
	}
}

func isNameChar(c byte) bool {
	return c == '_' || c == '.' || c == '-' || c == ':' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
