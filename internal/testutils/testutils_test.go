package testutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuiteCleanupRunsInReverse(t *testing.T) {
	var order []int
	t.Run("inner", func(t *testing.T) {
		s := NewTestSuite(t, nil)
		s.AddCleanup(func() { order = append(order, 1) })
		s.AddCleanup(func() { order = append(order, 2) })
		path := s.CreateTempFile("a/b.txt", "x")
		assert.True(t, FileExists(path))
	})
	assert.Equal(t, []int{2, 1}, order)
}

func TestPhenologyCSVIsDeterministic(t *testing.T) {
	a := PhenologyCSV(30, 3, 1)
	assert.Equal(t, a, PhenologyCSV(30, 3, 1))
	assert.Len(t, strings.Split(strings.TrimSpace(a), "\n"), 31)
	assert.Contains(t, a, ",0,")
}
