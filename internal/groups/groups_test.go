package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogIsConsistent(t *testing.T) {
	seen := make(map[int]struct{})
	for _, g := range All() {
		_, dup := seen[g.ID]
		assert.False(t, dup, "duplicate group id %d", g.ID)
		seen[g.ID] = struct{}{}
		assert.True(t, ValidCourse(g.Course), "group %s has unknown course %d", g.Name, g.Course)
		assert.NotEmpty(t, g.Name)
	}
}

func TestByCourse(t *testing.T) {
	for _, course := range Courses {
		list := ByCourse(course)
		require.NotEmpty(t, list)
		for _, g := range list {
			assert.Equal(t, course, g.Course)
		}
	}
	assert.Empty(t, ByCourse(9))
}

func TestByID(t *testing.T) {
	g, ok := ByID(16)
	require.True(t, ok)
	assert.Equal(t, "IS-2-1", g.Name)
	assert.Equal(t, 2, g.Course)

	_, ok = ByID(0)
	assert.False(t, ok)
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(16, 2))
	assert.False(t, IsValid(16, 1))
	assert.False(t, IsValid(999, 1))
}

func TestValidCourse(t *testing.T) {
	assert.True(t, ValidCourse(1))
	assert.True(t, ValidCourse(4))
	assert.False(t, ValidCourse(0))
	assert.False(t, ValidCourse(5))
}
