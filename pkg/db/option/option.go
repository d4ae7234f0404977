// Package option provides composable gorm query options.
package option

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vendwatch/vendwatch/pkg/db/pagination"
	"gorm.io/gorm"
)

// ErrSortNotAllowed is returned when a requested sort field is outside the
// declared allow list.
var ErrSortNotAllowed = errors.New("sort_field_not_allowed")

// QueryOption mutates a gorm statement.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type optionFunc func(*gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination applies the normalized offset window.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.Limit())
	})
}

// QuerySortBy declares the sortable surface of a listing.
type QuerySortBy struct {
	Allow  map[string]bool
	Fields []string
}

// WithSortBy orders by the requested fields, rejecting anything outside the
// allow list. A leading '-' requests descending order.
func WithSortBy(sort QuerySortBy) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		for _, field := range sort.Fields {
			name := strings.TrimPrefix(strings.TrimSpace(field), "-")
			if name == "" {
				continue
			}
			if len(sort.Allow) > 0 && !sort.Allow[name] {
				_ = db.AddError(fmt.Errorf("%w: %s", ErrSortNotAllowed, name))
				return db
			}
			if strings.HasPrefix(strings.TrimSpace(field), "-") {
				db = db.Order(name + " DESC")
			} else {
				db = db.Order(name + " ASC")
			}
		}
		return db
	})
}
