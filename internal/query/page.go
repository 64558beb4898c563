package query

import (
	"net/url"
	"strconv"
)

// Meta is the pagination block of a list response.
type Meta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	TotalPages  int `json:"total_pages"`
}

// Links holds navigation URLs; nil fields serialize as null.
type Links struct {
	First *string `json:"first"`
	Last  *string `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

// NewMeta reports the requested page as-is, even past the last page.
func NewMeta(p Plan, total int) Meta {
	totalPages := 0
	if p.PerPage > 0 {
		totalPages = (total + p.PerPage - 1) / p.PerPage
	}
	return Meta{
		CurrentPage: p.Page,
		PerPage:     p.PerPage,
		Total:       total,
		TotalPages:  totalPages,
	}
}

// NewLinks builds absolute page links on base, keeping the plan's filters.
// last points at page 1 when there are no rows.
func NewLinks(base *url.URL, p Plan, m Meta) Links {
	lastPage := max(m.TotalPages, 1)

	pageURL := func(page int) *string {
		v := p.Values()
		v.Set("page", strconv.Itoa(page))
		u := *base
		u.RawQuery = v.Encode()
		s := u.String()
		return &s
	}

	links := Links{
		First: pageURL(1),
		Last:  pageURL(lastPage),
	}
	if p.Page > 1 {
		links.Prev = pageURL(min(p.Page-1, lastPage))
	}
	if p.Page < m.TotalPages {
		links.Next = pageURL(p.Page + 1)
	}
	return links
}
