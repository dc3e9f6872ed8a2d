package query

import "github.com/tendant/simple-rbac/pkg/model"

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Query is a fully composed listing request.
type Query struct {
	Filter   Filter
	Sort     Sort
	Page     int
	PageSize int
}

// Skip is the number of records before the requested page.
func (q Query) Skip() int64 {
	return int64(q.Page-1) * int64(q.PageSize)
}

// Builder composes a Query from optional criteria. Criteria that are not
// supplied add no constraint.
type Builder struct {
	filters  []Filter
	sort     Sort
	page     int
	pageSize int
}

func NewBuilder() *Builder {
	return &Builder{page: DefaultPage, pageSize: DefaultPageSize}
}

// Where adds a filter that must hold.
func (b *Builder) Where(f Filter) *Builder {
	if f != nil {
		b.filters = append(b.filters, f)
	}
	return b
}

// WhereEq adds an equality constraint.
func (b *Builder) WhereEq(field string, value any) *Builder {
	return b.Where(Eq{Field: field, Value: value})
}

// WhereBool adds an equality constraint when value is set.
func (b *Builder) WhereBool(field string, value *bool) *Builder {
	if value == nil {
		return b
	}
	return b.WhereEq(field, *value)
}

// WhereString adds an equality constraint when value is non-empty.
func (b *Builder) WhereString(field, value string) *Builder {
	if value == "" {
		return b
	}
	return b.WhereEq(field, value)
}

// Search matches term case-insensitively against any of fields.
func (b *Builder) Search(term string, fields ...string) *Builder {
	if term == "" || len(fields) == 0 {
		return b
	}
	or := make(Or, len(fields))
	for i, field := range fields {
		or[i] = ContainsFold{Field: field, Term: term}
	}
	return b.Where(or)
}

// ActiveOnly hides soft-deleted records unless includeInactive is set.
func (b *Builder) ActiveOnly(includeInactive bool) *Builder {
	if includeInactive {
		return b
	}
	return b.WhereEq(model.FieldIsActive, true)
}

func (b *Builder) SortBy(keys ...SortField) *Builder {
	b.sort = append(b.sort, keys...)
	return b
}

// Paginate sets the page window, clamping page to at least 1 and pageSize to
// [1, MaxPageSize]. Zero values select the defaults.
func (b *Builder) Paginate(page, pageSize int) *Builder {
	b.page, b.pageSize = ClampPage(page, pageSize)
	return b
}

func (b *Builder) Build() Query {
	sort := b.sort
	if len(sort) == 0 {
		sort = NewestFirst
	}
	return Query{
		Filter:   AllOf(b.filters...),
		Sort:     sort,
		Page:     b.page,
		PageSize: b.pageSize,
	}
}

// ClampPage applies the listing defaults and bounds.
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	switch {
	case pageSize == 0:
		pageSize = DefaultPageSize
	case pageSize < 1:
		pageSize = 1
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}
