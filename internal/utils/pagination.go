package utils

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidPageParam = errors.New("page and size must be integers")

// ParsePageParams reads the page and size query values. Empty values fall back
// to the defaults; range checks are left to the caller.
func ParsePageParams(pageRaw, sizeRaw string, defaultPage, defaultSize int) (page, size int, err error) {
	page, err = parseIntOr(pageRaw, defaultPage)
	if err != nil {
		return 0, 0, err
	}

	size, err = parseIntOr(sizeRaw, defaultSize)
	if err != nil {
		return 0, 0, err
	}

	return page, size, nil
}

func parseIntOr(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrInvalidPageParam
	}
	return n, nil
}

const ProductsListCachePrefix = "products:list:"

func BuildProductsListCacheKey(page, size int) string {
	return ProductsListCachePrefix + "page=" + strconv.Itoa(page) + "|size=" + strconv.Itoa(size)
}
