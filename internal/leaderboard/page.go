package leaderboard

import "strings"

type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Search keeps the rows whose player name contains q, ignoring case.
func Search(rows []RankedRow, q string) []RankedRow {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return rows
	}
	out := make([]RankedRow, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.PlayerName), q) {
			out = append(out, r)
		}
	}
	return out
}

// Paginate slices items into a 1-based page. Out of range pages are clamped.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = len(items)
		if size == 0 {
			size = 1
		}
	}
	totalPages := (len(items) + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * size
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	pageItems := make([]T, 0, end-start)
	pageItems = append(pageItems, items[start:end]...)

	return Page[T]{
		Items:      pageItems,
		Page:       page,
		PageSize:   size,
		Total:      len(items),
		TotalPages: totalPages,
	}
}

// TotalPages is the number of pages needed for total items, at least one.
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
