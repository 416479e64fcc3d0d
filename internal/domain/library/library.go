package library

import (
	"net/url"
	"strconv"

	"storyreel/internal/domain/story"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Query filters the story index
type Query struct {
	Featured bool
	Search   string
	Page     int
	PerPage  int
}

// Values encodes the query the way the stories endpoint expects it. Zero values
// are left out so the server defaults apply.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Featured {
		v.Set("featured", "true")
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		per := q.PerPage
		if per > MaxPerPage {
			per = MaxPerPage
		}
		v.Set("per_page", strconv.Itoa(per))
	}
	return v
}

// Index is one page of the story collection
type Index struct {
	Stories    []story.Entry `json:"stories"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
}

// BySlug returns the position of the story with the given slug, or -1.
func (ix *Index) BySlug(slug string) int {
	for i, s := range ix.Stories {
		if s.Slug == slug {
			return i
		}
	}
	return -1
}

// ByID returns the position of the story with the given id, or -1.
func (ix *Index) ByID(id int) int {
	for i, s := range ix.Stories {
		if s.ID == id {
			return i
		}
	}
	return -1
}
