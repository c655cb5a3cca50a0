package models

const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 1000
)

// PaginationMeta describes the page returned alongside list data
type PaginationMeta struct {
	Count   int `json:"count"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Paginated is the {data, meta} envelope shared by list endpoints
type Paginated[T any] struct {
	Data []T            `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// NormalizePage clamps page (1-based) and perPage to their allowed ranges.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// Offset returns the number of items skipped before the given page.
func Offset(page, perPage int) int {
	page, perPage = NormalizePage(page, perPage)
	return (page - 1) * perPage
}

// Paginate slices an in-memory list. Count is the size of the full list.
func Paginate[T any](items []T, page, perPage int) Paginated[T] {
	page, perPage = NormalizePage(page, perPage)

	start := Offset(page, perPage)
	if start > len(items) {
		start = len(items)
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}

	data := make([]T, end-start)
	copy(data, items[start:end])

	return Paginated[T]{
		Data: data,
		Meta: PaginationMeta{
			Count:   len(items),
			Page:    page,
			PerPage: perPage,
		},
	}
}
