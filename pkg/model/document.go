package model

import (
	"fmt"
	"time"
)

// assign copies value into dst when the dynamic types line up.
func assign[V any](dst *V, field string, value any) error {
	v, ok := value.(V)
	if !ok {
		return fmt.Errorf("field %s: expected %T, got %T", field, *dst, value)
	}
	*dst = v
	return nil
}

func assignTimePtr(dst **time.Time, field string, value any) error {
	switch v := value.(type) {
	case nil:
		*dst = nil
	case time.Time:
		*dst = &v
	case *time.Time:
		if v == nil {
			*dst = nil
			return nil
		}
		t := *v
		*dst = &t
	default:
		return fmt.Errorf("field %s: expected time.Time, got %T", field, value)
	}
	return nil
}

func unknownField(entity, field string) error {
	return fmt.Errorf("%s has no field %q", entity, field)
}

func cloneIDs(ids []ID) []ID {
	if ids == nil {
		return nil
	}
	out := make([]ID, len(ids))
	copy(out, ids)
	return out
}
