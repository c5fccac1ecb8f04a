package shared

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageQuery ?page&page_size clamped to page >= 1 and page_size 1..100 (default 20)
func PageQuery(c *gin.Context) (int, int) {
	return NormalizePagination(atoiOr(c.Query("page"), 1), atoiOr(c.Query("page_size"), defaultPageSize))
}

// NormalizePagination clamps page and pageSize
func NormalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func atoiOr(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}
