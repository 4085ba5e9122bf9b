package repository

import "github.com/uptrace/bun"

// Filter is an equality constraint on a column. Filters passed to an
// operation are combined as a conjunction. The column name is resolved by
// the database at execution time; an unknown column surfaces as
// ErrRepository.
type Filter struct {
	Column string
	Value  any
}

// Eq builds an equality filter for column.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

func applySelectFilters(q *bun.SelectQuery, filters []Filter) *bun.SelectQuery {
	for _, f := range filters {
		q = q.Where("? = ?", bun.Ident(f.Column), f.Value)
	}
	return q
}
