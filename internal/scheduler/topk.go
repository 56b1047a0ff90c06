package scheduler

import (
	"container/heap"
	"sort"
)

// topK 保存按 less 排序的前 limit 个元素，堆顶为当前保留的最差元素
type topK[T any] struct {
	items []T
	less  func(a, b T) bool
	limit int
}

func newTopK[T any](limit int, less func(a, b T) bool) *topK[T] {
	return &topK[T]{
		items: make([]T, 0, min(max(limit, 0), 1024)),
		less:  less,
		limit: limit,
	}
}

func (t *topK[T]) Len() int           { return len(t.items) }
func (t *topK[T]) Less(i, j int) bool { return t.less(t.items[j], t.items[i]) }
func (t *topK[T]) Swap(i, j int)      { t.items[i], t.items[j] = t.items[j], t.items[i] }
func (t *topK[T]) Push(x any)         { t.items = append(t.items, x.(T)) }
func (t *topK[T]) Pop() any {
	n := len(t.items)
	x := t.items[n-1]
	t.items = t.items[:n-1]
	return x
}

// Accepts 判断 x 是否能进入当前保留的结果
func (t *topK[T]) Accepts(x T) bool {
	if t.limit <= 0 {
		return false
	}
	return len(t.items) < t.limit || t.less(x, t.items[0])
}

// Offer 尝试加入 x，返回是否被保留
func (t *topK[T]) Offer(x T) bool {
	if !t.Accepts(x) {
		return false
	}
	if len(t.items) < t.limit {
		heap.Push(t, x)
		return true
	}
	t.items[0] = x
	heap.Fix(t, 0)
	return true
}

// Sorted 返回从好到差排好序的结果
func (t *topK[T]) Sorted() []T {
	res := make([]T, len(t.items))
	copy(res, t.items)
	sort.SliceStable(res, func(i, j int) bool {
		return t.less(res[i], res[j])
	})
	return res
}
