package handlers

import (
	"fmt"
	"net/http"
	"strconv"
)

type paginationParams struct {
	page     int
	pageSize int
	limit    int
	offset   int
}

func parsePaginationParams(r *http.Request, defaultSize int, maxSize int) (paginationParams, error) {
	p := paginationParams{page: 1, pageSize: defaultSize}

	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("invalid page %q", v)
		}
		p.page = n
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("invalid page_size %q", v)
		}
		if n > maxSize {
			n = maxSize
		}
		p.pageSize = n
	}

	p.limit = p.pageSize
	p.offset = (p.page - 1) * p.pageSize
	return p, nil
}

func writePaginatedResponse(w http.ResponseWriter, status int, items any, page int, pageSize int, total int) {
	writeJSON(w, status, map[string]any{
		"success":   true,
		"data":      items,
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	})
}
