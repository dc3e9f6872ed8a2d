package query

import (
	"time"

	"github.com/tendant/simple-rbac/pkg/model"
)

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// Sort is an ordered list of sort keys. Stores break remaining ties by id.
type Sort []SortField

// Asc sorts field ascending.
func Asc(field string) SortField { return SortField{Field: field} }

// Desc sorts field descending.
func Desc(field string) SortField { return SortField{Field: field, Desc: true} }

// NewestFirst is the default listing order.
var NewestFirst = Sort{Desc(model.FieldCreatedAt)}

// Less reports whether a sorts before b under s. Missing values sort first.
func (s Sort) Less(a, b Document) bool {
	for _, key := range s {
		av, _ := a.Field(key.Field)
		bv, _ := b.Field(key.Field)
		c := compare(normalize(av), normalize(bv))
		if c == 0 {
			continue
		}
		if key.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

func compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case time.Time:
		bv, _ := b.(time.Time)
		return av.Compare(bv)
	case bool:
		bv, _ := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case int:
		bv, _ := b.(int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	}
	return 0
}
