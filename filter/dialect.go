package filter

import (
	"errors"
	"fmt"
	"strings"
)

// Dialect renders filter trees for one container technology and parses its
// own renderings back into trees.
type Dialect interface {
	// Name identifies the dialect in configuration ("ldap", "token").
	Name() string

	// Property renders a leaf.
	Property(name string, value any, not bool) string

	// And renders a conjunction of two already rendered operands.
	And(left, right string, not bool) string

	// Or renders a disjunction of two already rendered operands.
	Or(left, right string, not bool) string

	// Parse builds a tree from a string rendered by this dialect.
	Parse(expr string) (Filter, error)
}

var (
	// ErrUnknownDialect is returned by DialectByName for unregistered names.
	ErrUnknownDialect = errors.New("unknown filter dialect")
	// ErrSyntax is wrapped by parse failures.
	ErrSyntax = errors.New("filter syntax error")
)

var (
	// LDAP renders OSGi style LDAP filters: (a=1), (&(a=1)(b=2)), (!(a=1)).
	LDAP Dialect = ldapDialect{}
	// Token renders a simple infix syntax: a = '1', (a = '1' AND b = '2'), NOT (a = '1').
	Token Dialect = tokenDialect{}
)

// DialectByName resolves "ldap" or "token".
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ldap", "osgi":
		return LDAP, nil
	case "token", "":
		return Token, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, name)
}

type ldapDialect struct{}

func (ldapDialect) Name() string { return "ldap" }

func (ldapDialect) Property(name string, value any, not bool) string {
	return ldapNot("("+ldapEscapeName(name)+"="+ldapEscape(canonical(value))+")", not)
}

func (ldapDialect) And(left, right string, not bool) string {
	return ldapNot("(&"+left+right+")", not)
}

func (ldapDialect) Or(left, right string, not bool) string {
	return ldapNot("(|"+left+right+")", not)
}

func (d ldapDialect) Parse(expr string) (Filter, error) {
	p := &ldapParser{src: strings.TrimSpace(expr)}
	f, err := p.parse()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input")
	}
	return f, nil
}

func ldapNot(s string, not bool) string {
	if not {
		return "(!" + s + ")"
	}
	return s
}

// ldapEscape applies RFC 4515 value escaping.
func ldapEscape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*':
			b.WriteString(`\2a`)
		case '(':
			b.WriteString(`\28`)
		case ')':
			b.WriteString(`\29`)
		case '\\':
			b.WriteString(`\5c`)
		case 0:
			b.WriteString(`\00`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ldapEscapeName hex escapes the value specials, whitespace and the
// characters that would end the attribute or read as an operator.
func ldapEscapeName(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		switch c := name[i]; c {
		case '=', '&', '|', '!', ' ', '\t', '\n', '\r', '*', '(', ')', '\\', 0:
			fmt.Fprintf(&b, `\%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

type tokenDialect struct{}

func (tokenDialect) Name() string { return "token" }

func (tokenDialect) Property(name string, value any, not bool) string {
	return tokenNot(tokenName(name)+" = "+tokenQuote(canonical(value)), not)
}

func (tokenDialect) And(left, right string, not bool) string {
	return tokenNot("("+left+" AND "+right+")", not)
}

func (tokenDialect) Or(left, right string, not bool) string {
	return tokenNot("("+left+" OR "+right+")", not)
}

func (tokenDialect) Parse(expr string) (Filter, error) {
	p := &tokenParser{src: expr}
	f, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input")
	}
	return f, nil
}

func tokenNot(s string, not bool) string {
	if !not {
		return s
	}
	if strings.HasPrefix(s, "(") {
		return "NOT " + s
	}
	return "NOT (" + s + ")"
}

// tokenName leaves plain identifiers bare and double quotes everything else,
// including the AND, OR and NOT keywords.
func tokenName(name string) string {
	if isPlainName(name) {
		return name
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(name) + `"`
}

func isPlainName(name string) bool {
	switch name {
	case "", "AND", "OR", "NOT":
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isNameChar(name[i]) {
			return false
		}
	}
	return true
}

func tokenQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}
