package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKKeepsBest(t *testing.T) {
	best := newTopK(3, func(a, b int) bool { return a < b })
	for _, x := range []int{5, 1, 9, 3, 7, 2} {
		best.Offer(x)
	}
	assert.Equal(t, []int{1, 2, 3}, best.Sorted())
	assert.False(t, best.Accepts(4))
}

func TestTopKNonPositiveLimit(t *testing.T) {
	for _, limit := range []int{0, -1} {
		best := newTopK(limit, func(a, b int) bool { return a < b })
		assert.False(t, best.Offer(1))
		assert.Empty(t, best.Sorted())
	}
}
