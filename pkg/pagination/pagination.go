package pagination

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/JaimeStill/civic/pkg/query"
)

// SortFields decodes from either "name,-created_at" or a JSON array of
// query.SortField.
type SortFields []query.SortField

func (s *SortFields) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = query.ParseSortFields(str)
		return nil
	}

	var fields []query.SortField
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*s = fields
	return nil
}

type PageRequest struct {
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Search   *string    `json:"search,omitempty"`
	Sort     SortFields `json:"sort,omitempty"`
}

// Normalize clamps Page to at least 1 and PageSize into
// [1, cfg.MaxPageSize], substituting cfg.DefaultPageSize when unset.
func (r *PageRequest) Normalize(cfg Config) {
	r.Page = max(r.Page, 1)
	if r.PageSize < 1 {
		r.PageSize = cfg.DefaultPageSize
	}
	r.PageSize = min(r.PageSize, cfg.MaxPageSize)
	if r.Search != nil && strings.TrimSpace(*r.Search) == "" {
		r.Search = nil
	}
}

func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// SearchTerm is the trimmed search text, or "" when none was given.
func (r *PageRequest) SearchTerm() string {
	if r.Search == nil {
		return ""
	}
	return strings.TrimSpace(*r.Search)
}

// PageRequestFromQuery reads page, page_size, search, and sort from a
// query string and normalizes the result.
func PageRequestFromQuery(values url.Values, cfg Config) PageRequest {
	var req PageRequest
	req.Page, _ = strconv.Atoi(values.Get("page"))
	req.PageSize, _ = strconv.Atoi(values.Get("page_size"))
	if s := strings.TrimSpace(values.Get("search")); s != "" {
		req.Search = &s
	}
	req.Sort = query.ParseSortFields(values.Get("sort"))

	req.Normalize(cfg)
	return req
}

type PageResult[T any] struct {
	Data       []T  `json:"data"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPageResult always reports at least one page, and Data is never nil.
func NewPageResult[T any](data []T, total, page, pageSize int) PageResult[T] {
	totalPages := 1
	if pageSize > 0 && total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	if data == nil {
		data = []T{}
	}

	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// Slice pages an in-memory result set that is already filtered and ordered.
func Slice[T any](items []T, page PageRequest) PageResult[T] {
	total := len(items)
	start := min(max(page.Offset(), 0), total)
	end := min(start+page.PageSize, total)

	window := make([]T, end-start)
	copy(window, items[start:end])

	return NewPageResult(window, total, page.Page, page.PageSize)
}
