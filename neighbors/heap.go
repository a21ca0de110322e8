// SPDX-License-Identifier: MIT

package neighbors

import (
	"container/heap"
	"math"
)

// candidate is a target row and its squared distance to the query.
type candidate struct {
	idx int
	d2  float64
}

// worse reports whether a ranks after b under (distance, index) ordering.
func worse(a, b candidate) bool {
	if a.d2 != b.d2 {
		return a.d2 > b.d2
	}

	return a.idx > b.idx
}

// knnHeap is a max-heap holding the best k candidates seen so far; the
// root is the current k-th best, the first to be evicted.
type knnHeap []candidate

func (h knnHeap) Len() int            { return len(h) }
func (h knnHeap) Less(i, j int) bool  { return worse(h[i], h[j]) }
func (h knnHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *knnHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *knnHeap) Pop() interface{} {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]

	return c
}

// collector accumulates the k best candidates of one query.
type collector struct {
	k int
	h knnHeap
}

func newCollector(k int) *collector {
	return &collector{k: k, h: make(knnHeap, 0, k)}
}

func (c *collector) reset() { c.h = c.h[:0] }

// offer keeps cand if it ranks before the current k-th candidate.
func (c *collector) offer(cand candidate) {
	if len(c.h) < c.k {
		heap.Push(&c.h, cand)
		return
	}
	if worse(c.h[0], cand) {
		c.h[0] = cand
		heap.Fix(&c.h, 0)
	}
}

// drain writes the held candidates in ascending (distance, index) order.
func (c *collector) drain(idx []int, dist []float64) {
	for r := len(c.h) - 1; r >= 0; r-- {
		cand := heap.Pop(&c.h).(candidate)
		idx[r] = cand.idx
		dist[r] = math.Sqrt(cand.d2)
	}
}
