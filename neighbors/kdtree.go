// SPDX-License-Identifier: MIT

package neighbors

import (
	"gonum.org/v1/gonum/spatial/kdtree"
)

// searcher answers k-nearest queries against a fixed target set.
type searcher interface {
	// search fills c with the k best targets of q; c is reset by the caller.
	search(q []float64, c *collector)
}

// sqDist returns Σ (a[j] − b[j])², accumulated in dimension order so both
// indices produce bit-identical values for the same pair.
func sqDist(a, b []float64) float64 {
	var s float64
	for j, v := range a {
		d := v - b[j]
		s += d * d
	}

	return s
}

// bruteIndex scans every target row.
type bruteIndex struct {
	data []float64
	dim  int
	n    int
}

func newBruteIndex(data []float64, n, dim int) *bruteIndex {
	return &bruteIndex{data: data, dim: dim, n: n}
}

func (b *bruteIndex) search(q []float64, c *collector) {
	for i := 0; i < b.n; i++ {
		c.offer(candidate{idx: i, d2: sqDist(q, b.data[i*b.dim:(i+1)*b.dim])})
	}
}

// cell is a target row viewed as a kdtree.Comparable. x aliases the target
// buffer; row survives the reordering done while the tree is built.
type cell struct {
	row int
	x   []float64
}

// Compare returns the signed distance of c from the plane through o
// perpendicular to d.
func (c cell) Compare(o kdtree.Comparable, d kdtree.Dim) float64 {
	return c.x[d] - o.(cell).x[d]
}

func (c cell) Dims() int { return len(c.x) }

// Distance is the squared Euclidean distance, the metric kdtree prunes with.
func (c cell) Distance(o kdtree.Comparable) float64 {
	return sqDist(c.x, o.(cell).x)
}

// cells implements kdtree.Interface.
type cells []cell

func (p cells) Index(i int) kdtree.Comparable         { return p[i] }
func (p cells) Len() int                              { return len(p) }
func (p cells) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot partitions p around its median along d.
func (p cells) Pivot(d kdtree.Dim) int {
	pl := plane{cells: p, dim: d}

	return kdtree.Partition(pl, kdtree.MedianOfMedians(pl))
}

// plane orders cells along one dimension for median selection.
type plane struct {
	cells
	dim kdtree.Dim
}

func (p plane) Less(i, j int) bool { return p.cells[i].x[p.dim] < p.cells[j].x[p.dim] }
func (p plane) Swap(i, j int)      { p.cells[i], p.cells[j] = p.cells[j], p.cells[i] }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{cells: p.cells[start:end], dim: p.dim}
}

// kdIndex is an exact search over gonum's k-d tree. The tree itself is
// read-only after construction, so concurrent queries are safe.
type kdIndex struct {
	tree *kdtree.Tree
	k    int
}

// newKDIndex builds the tree over the rows of a flat row-major buffer.
// Complexity: O(m log m) build.
func newKDIndex(data []float64, n, dim, k int) *kdIndex {
	pts := make(cells, n)
	for i := range pts {
		pts[i] = cell{row: i, x: data[i*dim : (i+1)*dim : (i+1)*dim]}
	}

	return &kdIndex{tree: kdtree.New(pts, false), k: k}
}

// search resolves ties by target index in two passes:
//   - Stage 1: an NKeeper(k) query yields r, the k-th smallest squared distance.
//   - Stage 2: a DistKeeper(r) query returns every target with d² ≤ r, ties
//     at the boundary included (kdtree keeps and visits on equality).
//   - Stage 3: the collector keeps the k best by (d², index).
func (t *kdIndex) search(q []float64, c *collector) {
	qc := cell{row: -1, x: q}

	nk := kdtree.NewNKeeper(t.k)
	t.tree.NearestSet(nk, qc)
	r := 0.0
	for _, cd := range nk.Heap {
		if cd.Comparable != nil && cd.Dist > r {
			r = cd.Dist
		}
	}

	dk := kdtree.NewDistKeeper(r)
	t.tree.NearestSet(dk, qc)
	for _, cd := range dk.Heap {
		if cd.Comparable == nil {
			continue
		}
		c.offer(candidate{idx: cd.Comparable.(cell).row, d2: cd.Dist})
	}
}
