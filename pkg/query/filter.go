package query

import (
	"strings"
	"time"

	"github.com/tendant/simple-rbac/pkg/model"
)

// Filter is a predicate over stored documents. A nil Filter matches everything.
// Stores translate filters into their native query language; Match evaluates
// them in process.
type Filter interface {
	isFilter()
}

// Eq matches documents whose field equals Value. On array fields it matches
// when the array contains Value.
type Eq struct {
	Field string
	Value any
}

// Ne is the negation of Eq.
type Ne struct {
	Field string
	Value any
}

// In matches documents whose field equals any of Values.
type In struct {
	Field  string
	Values []any
}

// ContainsFold matches string fields containing Term, ignoring case.
type ContainsFold struct {
	Field string
	Term  string
}

// And matches when every sub-filter matches. An empty And matches everything.
type And []Filter

// Or matches when at least one sub-filter matches. An empty Or matches nothing.
type Or []Filter

func (Eq) isFilter()           {}
func (Ne) isFilter()           {}
func (In) isFilter()           {}
func (ContainsFold) isFilter() {}
func (And) isFilter()          {}
func (Or) isFilter()           {}

// IDIn builds an In filter on the id field.
func IDIn(ids []model.ID) In {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return In{Field: model.FieldID, Values: values}
}

// AllOf joins the non-nil filters with AND, flattening the trivial cases.
func AllOf(filters ...Filter) Filter {
	var out And
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// Document exposes stored fields by name.
type Document interface {
	Field(name string) (any, bool)
}

// Match evaluates f against doc.
func Match(f Filter, doc Document) bool {
	switch f := f.(type) {
	case nil:
		return true
	case Eq:
		v, _ := doc.Field(f.Field)
		return equalOrContains(v, f.Value)
	case Ne:
		v, _ := doc.Field(f.Field)
		return !equalOrContains(v, f.Value)
	case In:
		v, _ := doc.Field(f.Field)
		for _, want := range f.Values {
			if equalOrContains(v, want) {
				return true
			}
		}
		return false
	case ContainsFold:
		v, _ := doc.Field(f.Field)
		s, ok := normalize(v).(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(f.Term))
	case And:
		for _, sub := range f {
			if !Match(sub, doc) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range f {
			if Match(sub, doc) {
				return true
			}
		}
		return false
	}
	return false
}

func equalOrContains(got, want any) bool {
	want = normalize(want)
	if list, ok := normalize(got).([]string); ok {
		for _, item := range list {
			if item == want {
				return true
			}
		}
		return false
	}
	return equal(normalize(got), want)
}

func equal(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// normalize folds ids into plain strings so ids and strings compare equal.
func normalize(v any) any {
	switch v := v.(type) {
	case model.ID:
		return string(v)
	case []model.ID:
		return model.Strings(v)
	case *time.Time:
		if v == nil {
			return nil
		}
		return *v
	}
	return v
}
