package filter

// Builder creates filter trees bound to one rendering dialect. Builders are
// registered as components so the dialect can be swapped per container
// technology; consumers never construct filter nodes directly.
type Builder interface {
	// CreateFilter returns a leaf matching properties where name == value.
	CreateFilter(name string, value any) Filter

	// Parse turns a rendering produced by this builder's dialect back into a tree.
	Parse(expr string) (Filter, error)

	// Dialect returns the rendering dialect used by created filters.
	Dialect() Dialect
}

type builder struct {
	dialect Dialect
}

// NewBuilder returns a Builder rendering with d. A nil d uses Token.
func NewBuilder(d Dialect) Builder {
	if d == nil {
		d = Token
	}
	return &builder{dialect: d}
}

func (b *builder) CreateFilter(name string, value any) Filter {
	return newProperty(b.dialect, name, value)
}

func (b *builder) Parse(expr string) (Filter, error) {
	return b.dialect.Parse(expr)
}

func (b *builder) Dialect() Dialect { return b.dialect }
