package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaginationDefaults(t *testing.T) {
	p := NewPagination(0, 0, 45)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 45, p.Total)
	require.Equal(t, 3, p.TotalPages)
}

func TestNewPaginationExactFit(t *testing.T) {
	p := NewPagination(2, 10, 40)
	require.Equal(t, 4, p.TotalPages)
}

func TestPaginationFromOffset(t *testing.T) {
	p := PaginationFromOffset(10, 20, 35)
	require.Equal(t, 3, p.Page)
	require.Equal(t, 10, p.PerPage)
	require.Equal(t, 4, p.TotalPages)

	p = PaginationFromOffset(0, -5, 7)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 1, p.TotalPages)
}
