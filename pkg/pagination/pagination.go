package pagination

import (
	"math"
	"net/http"
	"strconv"
)

// MaxPerPage caps the page size a client may request.
const MaxPerPage = 100

// MaxPage is the highest page number whose offset fits in an int.
const MaxPage = math.MaxInt/MaxPerPage + 1

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int
	PerPage int
	// Requested is false when the query carried neither page nor per_page.
	Requested bool
}

// DefaultParams returns page 1 of 20.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: 20}
}

// FromRequest extracts page and per_page from the query. Values that do not
// parse or fall out of range keep their defaults.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()
	q := r.URL.Query()

	if page := q.Get("page"); page != "" {
		p.Requested = true
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = min(v, MaxPage)
		}
	}
	if perPage := q.Get("per_page"); perPage != "" {
		p.Requested = true
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= MaxPerPage {
			p.PerPage = v
		}
	}
	return p
}

// Offset returns the index of the first item on the page. It saturates at
// math.MaxInt instead of overflowing.
func (p Params) Offset() int {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PerPage {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PerPage
}

// Meta describes one page of a larger list.
type Meta struct {
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Apply returns the page of items selected by p together with its metadata.
// A page past the end is empty, never nil.
func Apply[T any](items []T, p Params) ([]T, Meta) {
	total := len(items)
	totalPages := total / p.PerPage
	if total%p.PerPage > 0 {
		totalPages++
	}

	start := min(p.Offset(), total)
	end := start + min(p.PerPage, total-start)
	page := make([]T, end-start)
	copy(page, items[start:end])

	return page, Meta{
		TotalCount: total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}
