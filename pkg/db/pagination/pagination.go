// Package pagination implements the offset page envelope shared by every
// listing and report endpoint.
package pagination

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Pagination is the requested page window.
type Pagination struct {
	Page int `form:"page"`
	Size int `form:"size"`
}

// Normalize clamps the window to the allowed bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the normalized window.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Size
}

// Limit returns the row limit for the normalized window.
func (p Pagination) Limit() int {
	return p.Normalize().Size
}

// Page is the paginated response envelope.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// NewPage builds a response envelope for the given window.
func NewPage[T any](items []T, total int64, p Pagination) Page[T] {
	n := p.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items: items,
		Total: total,
		Page:  n.Page,
		Size:  n.Size,
	}
}
