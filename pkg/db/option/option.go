// Package option holds small gorm query modifiers shared by repositories.
package option

import (
	"strings"

	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type sortBy struct {
	column string
	desc   bool
}

// Apply orders by the column, with id as a stable tiebreaker.
func (s sortBy) Apply(db *gorm.DB) *gorm.DB {
	if s.column == "" {
		return db
	}
	direction := "ASC"
	if s.desc {
		direction = "DESC"
	}
	return db.Order(s.column + " " + direction).Order("id " + direction)
}

type noop struct{}

func (noop) Apply(db *gorm.DB) *gorm.DB { return db }

// WithQuerySortBy validates a caller supplied column against allowed. Unknown
// columns fall back to created_at ascending.
func WithQuerySortBy(column, order string, allowed map[string]bool) QueryOption {
	column = strings.ToLower(strings.TrimSpace(column))
	if column == "" || !allowed[column] {
		column = "created_at"
	}
	return sortBy{
		column: column,
		desc:   strings.EqualFold(strings.TrimSpace(order), "desc"),
	}
}

// WithSortBy passes opt through, tolerating nil.
func WithSortBy(opt QueryOption) QueryOption {
	if opt == nil {
		return noop{}
	}
	return opt
}
