// Package query builds backend neutral query expressions and renders them
// to a SQL-like definition string:
//
//	age := query.FieldName("age")
//	age.GreaterOrEqualThan(10).Definition()                    // age >= 10
//	age.EqualTo("'x'").And(age.EqualTo("'y'")).Definition()    // age = 'x' AND age = 'y'
//
// Values render verbatim; wrap strings in Literal to get them quoted.
package query

import (
	"fmt"
	"strings"
)

// Operand is one side of a comparison.
type Operand interface {
	Definition() string
}

// Expression is a boolean query expression.
type Expression interface {
	Definition() string
	And(other Expression) Expression
	Or(other Expression) Expression
	Not() Expression
}

// FieldNameOperand references a field of the queried entity.
type FieldNameOperand struct {
	name string
}

// FieldName returns an operand for the named field.
func FieldName(name string) FieldNameOperand { return FieldNameOperand{name: name} }

func (f FieldNameOperand) Definition() string { return f.name }

func (f FieldNameOperand) EqualTo(v any) Expression            { return compare(f, "=", v) }
func (f FieldNameOperand) NotEqualTo(v any) Expression         { return compare(f, "<>", v) }
func (f FieldNameOperand) GreaterThan(v any) Expression        { return compare(f, ">", v) }
func (f FieldNameOperand) GreaterOrEqualThan(v any) Expression { return compare(f, ">=", v) }
func (f FieldNameOperand) LowerThan(v any) Expression          { return compare(f, "<", v) }
func (f FieldNameOperand) LowerOrEqualThan(v any) Expression   { return compare(f, "<=", v) }
func (f FieldNameOperand) Like(v any) Expression               { return compare(f, "LIKE", v) }

// In matches any of values.
func (f FieldNameOperand) In(values ...any) Expression {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = Value(v).Definition()
	}
	return &comparison{left: f, op: "IN", right: ValueOperand{v: rawSQL("(" + strings.Join(parts, ", ") + ")")}}
}

// IsNull matches entities where the field has no value.
func (f FieldNameOperand) IsNull() Expression {
	return &comparison{left: f, op: "IS", right: ValueOperand{v: rawSQL("NULL")}}
}

// IsNotNull matches entities where the field has a value.
func (f FieldNameOperand) IsNotNull() Expression {
	return &comparison{left: f, op: "IS NOT", right: ValueOperand{v: rawSQL("NULL")}}
}

type rawSQL string

// ValueOperand is a value rendered verbatim.
type ValueOperand struct {
	v any
}

// Value returns an operand for v. Operands passed in are returned unchanged
// by the comparison helpers.
func Value(v any) ValueOperand { return ValueOperand{v: v} }

func (v ValueOperand) Definition() string {
	switch t := v.v.(type) {
	case nil:
		return "NULL"
	case rawSQL:
		return string(t)
	case Operand:
		return t.Definition()
	default:
		return fmt.Sprint(t)
	}
}

// Literal returns a single-quoted string operand.
func Literal(s string) ValueOperand {
	return ValueOperand{v: rawSQL("'" + strings.ReplaceAll(s, "'", "''") + "'")}
}

func operand(v any) Operand {
	if o, ok := v.(Operand); ok {
		return o
	}
	return Value(v)
}

func compare(left Operand, op string, right any) Expression {
	return &comparison{left: left, op: op, right: operand(right)}
}

type comparison struct {
	left  Operand
	op    string
	right Operand
}

func (c *comparison) Definition() string {
	return c.left.Definition() + " " + c.op + " " + c.right.Definition()
}

func (c *comparison) And(other Expression) Expression { return And(c, other) }
func (c *comparison) Or(other Expression) Expression  { return Or(c, other) }
func (c *comparison) Not() Expression                 { return Not(c) }

const (
	opAnd = "AND"
	opOr  = "OR"
)

type junction struct {
	op    string
	items []Expression
}

// And combines expressions with AND. Nested ANDs are flattened.
func And(exprs ...Expression) Expression { return join(opAnd, exprs) }

// Or combines expressions with OR. Nested ORs are flattened.
func Or(exprs ...Expression) Expression { return join(opOr, exprs) }

func join(op string, exprs []Expression) Expression {
	j := &junction{op: op}
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if inner, ok := e.(*junction); ok && inner.op == op {
			j.items = append(j.items, inner.items...)
			continue
		}
		j.items = append(j.items, e)
	}
	if len(j.items) == 1 {
		return j.items[0]
	}
	return j
}

func (j *junction) Definition() string {
	parts := make([]string, len(j.items))
	for i, e := range j.items {
		def := e.Definition()
		if inner, ok := e.(*junction); ok && inner.op != j.op {
			def = "(" + def + ")"
		}
		parts[i] = def
	}
	return strings.Join(parts, " "+j.op+" ")
}

func (j *junction) And(other Expression) Expression { return And(j, other) }
func (j *junction) Or(other Expression) Expression  { return Or(j, other) }
func (j *junction) Not() Expression                 { return Not(j) }

type negation struct {
	inner Expression
}

// Not negates e. Negating a negation returns the original expression.
func Not(e Expression) Expression {
	if n, ok := e.(*negation); ok {
		return n.inner
	}
	return &negation{inner: e}
}

func (n *negation) Definition() string              { return "NOT (" + n.inner.Definition() + ")" }
func (n *negation) And(other Expression) Expression { return And(n, other) }
func (n *negation) Or(other Expression) Expression  { return Or(n, other) }
func (n *negation) Not() Expression                 { return n.inner }
