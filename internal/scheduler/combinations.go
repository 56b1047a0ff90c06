package scheduler

import "math/bits"

// CombinationIterator 按字典序惰性生成 [0, n) 中所有大小为 k 的组合
// Indices 返回的切片会在下一次 Next 时被修改，调用方需要自行复制
type CombinationIterator struct {
	n, k    int
	idx     []int
	started bool
	done    bool
}

func NewCombinationIterator(n, k int) *CombinationIterator {
	return &CombinationIterator{
		n:    n,
		k:    k,
		idx:  make([]int, k),
		done: k < 0 || k > n,
	}
}

func (it *CombinationIterator) Next() bool {
	if it.done {
		return false
	}

	if !it.started {
		it.started = true
		for i := range it.idx {
			it.idx[i] = i
		}
		return true
	}

	// 找到最右边还能增加的位置
	i := it.k - 1
	for i >= 0 && it.idx[i] == it.n-it.k+i {
		i--
	}
	if i < 0 {
		it.done = true
		return false
	}

	it.idx[i]++
	for j := i + 1; j < it.k; j++ {
		it.idx[j] = it.idx[j-1] + 1
	}
	return true
}

func (it *CombinationIterator) Indices() []int {
	return it.idx
}

// MultisetIterator 按字典序惰性生成 [0, n) 中长度为 k 的所有非递减序列（可重复组合）
type MultisetIterator struct {
	n, k    int
	idx     []int
	started bool
	done    bool
}

func NewMultisetIterator(n, k int) *MultisetIterator {
	return &MultisetIterator{
		n:    n,
		k:    k,
		idx:  make([]int, k),
		done: k < 0 || (n <= 0 && k > 0),
	}
}

func (it *MultisetIterator) Next() bool {
	if it.done {
		return false
	}

	if !it.started {
		it.started = true
		return true
	}

	i := it.k - 1
	for i >= 0 && it.idx[i] == it.n-1 {
		i--
	}
	if i < 0 {
		it.done = true
		return false
	}

	it.idx[i]++
	for j := i + 1; j < it.k; j++ {
		it.idx[j] = it.idx[i]
	}
	return true
}

func (it *MultisetIterator) Indices() []int {
	return it.idx
}

// BinomialCapped 计算 C(n, k)，结果超过 ceiling 时返回 ceiling + 1
func BinomialCapped(n, k int, ceiling uint64) uint64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}

	var res uint64 = 1
	for i := 1; i <= k; i++ {
		// C(n-k+i, i) = C(n-k+i-1, i-1) * (n-k+i) / i，每一步都是整数且单调不减
		hi, lo := bits.Mul64(res, uint64(n-k+i))
		if hi != 0 {
			return ceiling + 1
		}
		res = lo / uint64(i)
		if res > ceiling {
			return ceiling + 1
		}
	}
	return res
}

// MultisetCountCapped 计算 C(n+k-1, k)，即从 n 个元素中可重复地选 k 个的方案数
func MultisetCountCapped(n, k int, ceiling uint64) uint64 {
	if k == 0 {
		return 1
	}
	if n <= 0 {
		return 0
	}
	return BinomialCapped(n+k-1, k, ceiling)
}
