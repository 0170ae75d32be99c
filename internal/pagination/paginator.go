// Package pagination splits result sets into pages. A short last page of at most
// Orphans items is folded into the page before it.
package pagination

import "strconv"

// Page is one page of a paginated result.
type Page struct {
	Number   int `json:"page"`
	NumPages int `json:"num_pages"`
	Count    int `json:"count"`
	PerPage  int `json:"per_page"`
	// Offset and Limit select the page's rows.
	Offset int `json:"-"`
	Limit  int `json:"-"`
}

// Paginate returns the page raw asks for. A page that is not an integer is
// the first page; a page outside 1..NumPages is the last page.
func Paginate(count, perPage, orphans int, raw string) Page {
	if perPage < 1 {
		perPage = 1
	}
	if orphans < 0 {
		orphans = 0
	}
	p := Page{Count: count, PerPage: perPage, NumPages: numPages(count, perPage, orphans)}

	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		n = 1
	case n < 1 || n > p.NumPages:
		n = p.NumPages
	}
	p.Number = n

	p.Offset = (n - 1) * perPage
	top := p.Offset + perPage
	if top+orphans >= count {
		top = count
	}
	p.Limit = top - p.Offset
	if p.Limit < 0 {
		p.Limit = 0
	}
	return p
}

// an empty result still has one (empty) page
func numPages(count, perPage, orphans int) int {
	if count == 0 {
		return 1
	}
	hits := count - orphans
	if hits < 1 {
		hits = 1
	}
	return (hits + perPage - 1) / perPage
}

func (p Page) HasNext() bool     { return p.Number < p.NumPages }
func (p Page) HasPrevious() bool { return p.Number > 1 }
func (p Page) NextNumber() int   { return p.Number + 1 }
func (p Page) PreviousNumber() int {
	return p.Number - 1
}

// StartIndex is the 1-based index of the first item on the page, 0 when empty.
func (p Page) StartIndex() int {
	if p.Count == 0 {
		return 0
	}
	return p.Offset + 1
}

// EndIndex is the 1-based index of the last item on the page.
func (p Page) EndIndex() int { return p.Offset + p.Limit }

// Numbers lists all page numbers, for page links.
func (p Page) Numbers() []int {
	out := make([]int, p.NumPages)
	for i := range out {
		out[i] = i + 1
	}
	return out
}
