package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", defaultPageLimit, 0},
		{"?limit=10", 10, 0},
		{"?limit=10&offset=20", 10, 20},
		{"?limit=0", defaultPageLimit, 0},
		{"?limit=-5&offset=-1", defaultPageLimit, 0},
		{"?limit=abc&offset=xyz", defaultPageLimit, 0},
		{"?limit=100000", maxPageLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/contacts"+tt.query, nil)
			limit, offset := parsePagination(r)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		query    string
		wantPage []int
		wantMore bool
	}{
		{"", []int{1, 2, 3, 4, 5}, false},
		{"?limit=2", []int{1, 2}, true},
		{"?limit=2&offset=2", []int{3, 4}, true},
		{"?limit=2&offset=4", []int{5}, false},
		{"?offset=10", []int{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/contacts"+tt.query, nil)
			page, meta := paginate(r, items)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, len(items), meta.TotalCount)
			assert.Equal(t, tt.wantMore, meta.HasMore)
		})
	}
}

func TestPaginate_DoesNotAlias(t *testing.T) {
	items := []string{"a", "b"}
	r := httptest.NewRequest("GET", "/contacts", nil)
	page, _ := paginate(r, items)
	page[0] = "z"
	assert.Equal(t, "a", items[0])
}
