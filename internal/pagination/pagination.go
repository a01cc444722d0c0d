// Package pagination parses page and sort query parameters and applies them to GORM queries.
package pagination

import (
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest holds pagination parameters parsed from query strings.
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Defaults fills in page 1 and the default size, and clamps oversize pages.
func (p *PageRequest) Defaults() {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PageSize < 1:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageResponse is one page of items plus the totals needed to render a pager.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse builds a PageResponse. Data is never null in JSON.
func NewPageResponse[T any](data []T, page, pageSize int, totalItems int64) PageResponse[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((totalItems + int64(pageSize) - 1) / int64(pageSize))
	}
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// Paginate returns a GORM scope that applies OFFSET and LIMIT for the given page request.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}

// Fetch counts the rows matched by query and loads the requested page.
// Count and find run on separate sessions so neither leaks clauses into the other.
// scopes apply to the page query only (ordering, preloads, selects).
func Fetch[T any](query *gorm.DB, page PageRequest, scopes ...func(*gorm.DB) *gorm.DB) (*PageResponse[T], error) {
	page.Defaults()

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var items []T
	if total > int64(page.Offset()) {
		scopes = append(scopes, Paginate(page))
		if err := query.Session(&gorm.Session{}).Scopes(scopes...).Find(&items).Error; err != nil {
			return nil, err
		}
	}

	resp := NewPageResponse(items, page.Page, page.PageSize, total)
	return &resp, nil
}

// SortRequest holds the requested sort key and direction for list endpoints.
type SortRequest struct {
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order" binding:"omitempty,sort_order"`
}

// OrderBy returns a GORM scope ordering by the column mapped to req.SortBy,
// descending unless asc is requested. Unknown keys order by fallback alone;
// otherwise fallback breaks ties so pages stay stable.
func OrderBy(req SortRequest, columns map[string]string, fallback string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		column, ok := columns[req.SortBy]
		if !ok {
			return db.Order(fallback)
		}
		dir := "DESC"
		if req.SortOrder == "asc" {
			dir = "ASC"
		}
		return db.Order(column + " " + dir).Order(fallback)
	}
}
