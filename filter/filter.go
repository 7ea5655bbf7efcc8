// Package filter implements the component filter algebra: boolean trees of
// property-equality leaves combined with AND, OR and NOT.
//
// Trees are technology agnostic. Only the string rendering is delegated to a
// Dialect, so the same tree can be rendered as an LDAP filter for one
// container and as a simple token expression for another. Evaluation through
// Matches and the rendering produced by Filter always describe the same
// boolean function.
package filter

import (
	"fmt"
	"reflect"
)

// Filter is a node of a filter expression tree.
type Filter interface {
	// Matches evaluates the tree against a property bag.
	Matches(props map[string]any) bool

	// Filter renders the tree using the dialect of the builder that created it.
	Filter() string

	// String is an alias of Filter.
	String() string

	// And returns a new tree evaluating to this AND other.
	And(other Filter) Filter

	// Or returns a new tree evaluating to this OR other.
	Or(other Filter) Filter

	// AndProperty is shorthand for And(CreateFilter(name, value)).
	AndProperty(name string, value any) Filter

	// OrProperty is shorthand for Or(CreateFilter(name, value)).
	OrProperty(name string, value any) Filter

	// Not returns a copy of this node with its negation flag toggled.
	Not() Filter

	// IsNot reports whether the node is negated.
	IsNot() bool
}

// node is implemented by every tree node created by this package so that
// composites can render children in their own dialect and copy nodes when
// toggling negation.
type node interface {
	Filter
	render(d Dialect) string
	eval(props map[string]any) bool
}

type base struct {
	not     bool
	dialect Dialect
}

func (b base) IsNot() bool { return b.not }

func (b base) apply(result bool) bool {
	if b.not {
		return !result
	}
	return result
}

// propertyFilter is the leaf: name == value.
type propertyFilter struct {
	base
	name  string
	value any
}

func (p *propertyFilter) eval(props map[string]any) bool {
	actual, ok := props[p.name]
	if !ok {
		return false
	}
	return valuesEqual(actual, p.value)
}

func (p *propertyFilter) Matches(props map[string]any) bool { return p.apply(p.eval(props)) }
func (p *propertyFilter) render(d Dialect) string           { return d.Property(p.name, p.value, p.not) }
func (p *propertyFilter) Filter() string                    { return p.render(p.dialect) }
func (p *propertyFilter) String() string                    { return p.Filter() }
func (p *propertyFilter) And(other Filter) Filter           { return and(p, other) }
func (p *propertyFilter) Or(other Filter) Filter            { return or(p, other) }
func (p *propertyFilter) AndProperty(name string, value any) Filter {
	return and(p, newProperty(p.dialect, name, value))
}
func (p *propertyFilter) OrProperty(name string, value any) Filter {
	return or(p, newProperty(p.dialect, name, value))
}
func (p *propertyFilter) Not() Filter {
	cp := *p
	cp.not = !p.not
	return &cp
}

// Name returns the property name compared by the leaf.
func (p *propertyFilter) Name() string { return p.name }

// Value returns the value compared by the leaf.
func (p *propertyFilter) Value() any { return p.value }

type operator int

const (
	opAnd operator = iota
	opOr
)

// condition is a binary composite. Evaluation defers to left op right.
type condition struct {
	base
	op    operator
	left  Filter
	right Filter
}

func (c *condition) eval(props map[string]any) bool {
	if c.op == opAnd {
		return c.left.Matches(props) && c.right.Matches(props)
	}
	return c.left.Matches(props) || c.right.Matches(props)
}

func (c *condition) Matches(props map[string]any) bool { return c.apply(c.eval(props)) }

func (c *condition) render(d Dialect) string {
	l, r := renderChild(c.left, d), renderChild(c.right, d)
	if c.op == opAnd {
		return d.And(l, r, c.not)
	}
	return d.Or(l, r, c.not)
}

func (c *condition) Filter() string          { return c.render(c.dialect) }
func (c *condition) String() string          { return c.Filter() }
func (c *condition) And(other Filter) Filter { return and(c, other) }
func (c *condition) Or(other Filter) Filter  { return or(c, other) }
func (c *condition) AndProperty(name string, value any) Filter {
	return and(c, newProperty(c.dialect, name, value))
}
func (c *condition) OrProperty(name string, value any) Filter {
	return or(c, newProperty(c.dialect, name, value))
}
func (c *condition) Not() Filter {
	cp := *c
	cp.not = !c.not
	return &cp
}

// Left returns the left operand.
func (c *condition) Left() Filter { return c.left }

// Right returns the right operand.
func (c *condition) Right() Filter { return c.right }

func newProperty(d Dialect, name string, value any) *propertyFilter {
	return &propertyFilter{base: base{dialect: d}, name: name, value: value}
}

func and(left, right Filter) Filter {
	if right == nil {
		return left
	}
	return &condition{base: base{dialect: dialectOf(left)}, op: opAnd, left: left, right: right}
}

func or(left, right Filter) Filter {
	if right == nil {
		return left
	}
	return &condition{base: base{dialect: dialectOf(left)}, op: opOr, left: left, right: right}
}

func dialectOf(f Filter) Dialect {
	switch n := f.(type) {
	case *propertyFilter:
		return n.dialect
	case *condition:
		return n.dialect
	}
	return Token
}

func renderChild(f Filter, d Dialect) string {
	if n, ok := f.(node); ok {
		return n.render(d)
	}
	return f.Filter()
}

// valuesEqual compares a property value with a filter value. Values that are
// deeply equal match; otherwise their canonical string forms are compared so
// that evaluation agrees with the rendered string, which carries no types.
func valuesEqual(actual, expected any) bool {
	if reflect.DeepEqual(actual, expected) {
		return true
	}
	return canonical(actual) == canonical(expected)
}

func canonical(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Match evaluates f against props; a nil filter matches everything.
func Match(f Filter, props map[string]any) bool {
	if f == nil {
		return true
	}
	return f.Matches(props)
}
