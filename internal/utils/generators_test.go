package utils_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"gatekeeper/internal/utils"
)

func TestGenerateOrderID(t *testing.T) {
	id := utils.GenerateOrderID()
	assert.True(t, strings.HasPrefix(id, "ORDER-"))

	other := utils.GenerateOrderID()
	assert.NotEqual(t, id, other)
}

func TestGenerateTicketID(t *testing.T) {
	id := utils.GenerateTicketID()
	assert.True(t, strings.HasPrefix(id, "TKT-"))

	parts := strings.Split(id, "-")
	assert.Len(t, parts, 3)
	assert.Len(t, parts[2], 9)
}

func TestGenerateTicketIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := utils.GenerateTicketID()
		assert.False(t, seen[id], "duplicate ticket id %s", id)
		seen[id] = true
	}
}

func TestNewPagination(t *testing.T) {
	p := utils.NewPagination(2, 10, 25)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, 25, p.Total)
	assert.Equal(t, 3, p.TotalPages)

	p = utils.NewPagination(0, 0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 0, p.TotalPages)
}
