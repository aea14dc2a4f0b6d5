package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPage(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Limit: 10}, NewPage(0, 0))
	assert.Equal(t, Page{Page: 3, Limit: 100}, NewPage(3, 500))
	assert.Equal(t, 20, NewPage(3, 10).Offset())
}

func TestListResult_TotalPages(t *testing.T) {
	r := &ListResult[string]{Total: 21, Page: NewPage(1, 10)}
	assert.Equal(t, 3, r.TotalPages())

	r.Total = 0
	assert.Equal(t, 0, r.TotalPages())
}
