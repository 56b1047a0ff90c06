package scheduler

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinationIterator(t *testing.T) {
	var got [][]int
	it := NewCombinationIterator(4, 2)
	for it.Next() {
		got = append(got, slices.Clone(it.Indices()))
	}

	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, got)
}

func TestCombinationIteratorEdgeCases(t *testing.T) {
	it := NewCombinationIterator(3, 0)
	require.True(t, it.Next())
	assert.Empty(t, it.Indices())
	assert.False(t, it.Next())

	it = NewCombinationIterator(2, 3)
	assert.False(t, it.Next())
}

func TestCombinationIteratorCountMatchesBinomial(t *testing.T) {
	for n := 0; n <= 12; n++ {
		for k := 0; k <= n; k++ {
			cnt := uint64(0)
			it := NewCombinationIterator(n, k)
			for it.Next() {
				cnt++
			}
			assert.Equal(t, BinomialCapped(n, k, 1<<40), cnt, "C(%d, %d)", n, k)
		}
	}
}

func TestMultisetIterator(t *testing.T) {
	var got [][]int
	it := NewMultisetIterator(3, 2)
	for it.Next() {
		got = append(got, slices.Clone(it.Indices()))
	}

	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {0, 2}, {1, 1}, {1, 2}, {2, 2}}, got)
}

func TestMultisetIteratorCountMatchesFormula(t *testing.T) {
	for n := 1; n <= 7; n++ {
		for k := 0; k <= 5; k++ {
			cnt := uint64(0)
			it := NewMultisetIterator(n, k)
			for it.Next() {
				cnt++
				assert.True(t, slices.IsSorted(it.Indices()))
			}
			assert.Equal(t, MultisetCountCapped(n, k, 1<<40), cnt, "n=%d k=%d", n, k)
		}
	}

	assert.False(t, NewMultisetIterator(0, 2).Next())
}

func TestBinomialCapped(t *testing.T) {
	assert.Equal(t, uint64(184756), BinomialCapped(20, 10, 1_000_000))
	assert.Equal(t, uint64(1), BinomialCapped(30, 30, 10))
	assert.Equal(t, uint64(0), BinomialCapped(3, 4, 10))

	// C(40, 20) 远大于上限
	assert.Equal(t, uint64(1_000_001), BinomialCapped(40, 20, 1_000_000))
	assert.Equal(t, uint64(1_000_001), BinomialCapped(1000, 500, 1_000_000))
}

func TestMultisetCountCapped(t *testing.T) {
	// C(6+4-1, 4) = 126
	assert.Equal(t, uint64(126), MultisetCountCapped(6, 4, 5_000_000))
	assert.Equal(t, uint64(1), MultisetCountCapped(0, 0, 10))
	assert.Equal(t, uint64(0), MultisetCountCapped(0, 3, 10))
	assert.Equal(t, uint64(11), MultisetCountCapped(200, 10, 10))
}
