package repository

import "math"

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest carries 1-based paging parameters from the HTTP layer.
// Zero or negative values mean "use the default"; repositories normalize
// before querying so callers never have to.
type PageRequest struct {
	Page     int
	PageSize int
}

// Offset is the row offset for the normalized request.
func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PageResult is one page of items plus the totals the list envelopes expose.
type PageResult[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

func normalizePageRequest(in PageRequest) PageRequest {
	page := in.Page
	if page < 1 {
		page = DefaultPage
	}
	pageSize := in.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return PageRequest{Page: page, PageSize: pageSize}
}

func calcTotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}
