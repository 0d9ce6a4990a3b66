package store

import (
	"fmt"
	"sort"
)

// Condition is a single exact-match comparison.
type Condition struct {
	Field string
	Value interface{}
}

func Eq(field string, value interface{}) Condition {
	return Condition{Field: field, Value: value}
}

// Filter is a conjunction of exact-match conditions.
type Filter []Condition

func Where(conds ...Condition) Filter {
	return Filter(conds)
}

func (f Filter) And(field string, value interface{}) Filter {
	return append(f, Eq(field, value))
}

// Changes maps column names to new values for a partial update.
type Changes map[string]interface{}

// Columns returns the changed columns in a stable order.
func (c Changes) Columns() []string {
	cols := make([]string, 0, len(c))
	for col := range c {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

type columnSet map[string]struct{}

func newColumnSet(columns []string) columnSet {
	set := make(columnSet, len(columns))
	for _, c := range columns {
		set[c] = struct{}{}
	}
	return set
}

func (s columnSet) check(field string) error {
	if _, ok := s[field]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}
