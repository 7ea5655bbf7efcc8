package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefinition(t *testing.T) {
	age := FieldName("age")
	name := FieldName("name")

	tests := []struct {
		name     string
		expr     Expression
		expected string
	}{
		{"greater or equal", age.GreaterOrEqualThan(10), "age >= 10"},
		{"and of equals", age.EqualTo("'x'").And(age.EqualTo("'y'")), "age = 'x' AND age = 'y'"},
		{"not equal", age.NotEqualTo(3), "age <> 3"},
		{"greater", age.GreaterThan(1), "age > 1"},
		{"lower", age.LowerThan(1), "age < 1"},
		{"lower or equal", age.LowerOrEqualThan(1), "age <= 1"},
		{"like literal", name.Like(Literal("%o'k%")), "name LIKE '%o''k%'"},
		{"in", age.In(1, 2, Literal("x")), "age IN (1, 2, 'x')"},
		{"is null", name.IsNull(), "name IS NULL"},
		{"is not null", name.IsNotNull(), "name IS NOT NULL"},
		{"field to field", age.EqualTo(FieldName("minAge")), "age = minAge"},
		{"nil value", age.EqualTo(nil), "age = NULL"},
		{"flattened and", age.GreaterThan(1).And(age.LowerThan(9)).And(name.IsNotNull()), "age > 1 AND age < 9 AND name IS NOT NULL"},
		{"or inside and", And(Or(age.EqualTo(1), age.EqualTo(2)), name.IsNull()), "(age = 1 OR age = 2) AND name IS NULL"},
		{"and inside or", age.EqualTo(1).And(name.IsNull()).Or(age.EqualTo(2)), "(age = 1 AND name IS NULL) OR age = 2"},
		{"not", age.EqualTo(1).Not(), "NOT (age = 1)"},
		{"not of composite", Or(age.EqualTo(1), age.EqualTo(2)).Not(), "NOT (age = 1 OR age = 2)"},
		{"double not", age.EqualTo(1).Not().Not(), "age = 1"},
		{"single and", And(age.EqualTo(1)), "age = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.expr.Definition())
		})
	}
}
