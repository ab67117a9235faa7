package utils

import (
	"errors"
	"strings"
	"testing"
)

func TestParsePageParams(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		size     string
		wantPage int
		wantSize int
		wantErr  bool
	}{
		{name: "defaults", wantPage: 0, wantSize: 10},
		{name: "explicit", page: "2", size: "25", wantPage: 2, wantSize: 25},
		{name: "whitespace", page: " 1 ", size: " 5", wantPage: 1, wantSize: 5},
		{name: "negative_passes_through", page: "-1", size: "0", wantPage: -1, wantSize: 0},
		{name: "bad_page", page: "abc", wantErr: true},
		{name: "bad_size", size: "1.5", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			page, size, err := ParsePageParams(tt.page, tt.size, 0, 10)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPageParam) {
					t.Fatalf("got %v, want ErrInvalidPageParam", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if page != tt.wantPage || size != tt.wantSize {
				t.Fatalf("got (%d,%d), want (%d,%d)", page, size, tt.wantPage, tt.wantSize)
			}
		})
	}
}

func TestBuildProductsListCacheKey(t *testing.T) {
	a := BuildProductsListCacheKey(0, 10)
	b := BuildProductsListCacheKey(1, 10)

	if a == b {
		t.Fatalf("different pages must not share a key")
	}
	if !strings.HasPrefix(a, ProductsListCachePrefix) {
		t.Fatalf("key %q lacks list prefix", a)
	}
}
