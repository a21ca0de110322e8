// SPDX-License-Identifier: MIT

package snn

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/katalvlaran/mnncorrect"
	"github.com/katalvlaran/mnncorrect/matrix"
	"github.com/katalvlaran/mnncorrect/neighbors"
)

// Sentinel errors for the snn package.
var (
	// ErrLabels indicates batch labels whose length does not match the cells.
	ErrLabels = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "snn: batch labels do not match cells")

	// ErrBadWeight indicates a negative or NaN weight threshold.
	ErrBadWeight = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "snn: invalid weight threshold")
)

// Edge is one weighted SNN edge, seen from one endpoint.
type Edge struct {
	To     int
	Weight float64
}

// Graph is an undirected SNN graph over n cells, stored as adjacency lists
// sorted by neighbour index.
type Graph struct {
	k   int
	adj [][]Edge
}

// Build computes the SNN graph of X's rows with neighbour count k.
//
// Implementation:
//   - Stage 1: kNN of every cell against all cells (self-inclusive).
//   - Stage 2: inverted lists member → owners, so every neighbour set is
//     intersected only with sets that share a member.
//   - Stage 3: Jaccard = shared / (2k − shared), edges for shared > 0.
//
// Complexity: O(n·k·m̄) where m̄ is the mean inverted-list length.
func Build(ctx context.Context, X *matrix.Dense, k int, opts ...neighbors.Option) (*Graph, error) {
	rel, err := neighbors.Find(ctx, X, X, k, opts...)
	if err != nil {
		return nil, fmt.Errorf("snn: %w", err)
	}

	n := rel.Len()
	owners := make([][]int, n)
	for i, row := range rel.Indices {
		for _, c := range row {
			owners[c] = append(owners[c], i)
		}
	}

	g := &Graph{k: k, adj: make([][]Edge, n)}
	shared := make([]int, n)
	touched := make([]int, 0, n)
	for i, row := range rel.Indices {
		if i%1024 == 0 {
			if err = ctx.Err(); err != nil {
				return nil, err
			}
		}
		touched = touched[:0]
		for _, c := range row {
			for _, j := range owners[c] {
				if j == i {
					continue
				}
				if shared[j] == 0 {
					touched = append(touched, j)
				}
				shared[j]++
			}
		}
		sort.Ints(touched)
		edges := make([]Edge, 0, len(touched))
		for _, j := range touched {
			s := float64(shared[j])
			edges = append(edges, Edge{To: j, Weight: s / (float64(2*k) - s)})
			shared[j] = 0
		}
		g.adj[i] = edges
	}

	return g, nil
}

// N returns the number of cells.
func (g *Graph) N() int { return len(g.adj) }

// K returns the neighbour count the graph was built with.
func (g *Graph) K() int { return g.k }

// Edges returns a copy of cell i's adjacency list.
func (g *Graph) Edges(i int) []Edge { return append([]Edge(nil), g.adj[i]...) }

// Degree returns the number of edges at cell i.
func (g *Graph) Degree(i int) int { return len(g.adj[i]) }

// NumEdges returns the number of undirected edges.
func (g *Graph) NumEdges() int {
	var sum int
	for _, e := range g.adj {
		sum += len(e)
	}

	return sum / 2
}

// Weight returns the weight of edge i–j, or 0 when absent.
func (g *Graph) Weight(i, j int) float64 {
	for _, e := range g.adj[i] {
		if e.To == j {
			return e.Weight
		}
		if e.To > j {
			break
		}
	}

	return 0
}

// Components labels connected components over edges with Weight ≥ minWeight.
// It returns one label per cell and the number of components.
func (g *Graph) Components(minWeight float64) ([]int, int, error) {
	if minWeight < 0 || math.IsNaN(minWeight) {
		return nil, 0, ErrBadWeight
	}
	w := &walker{
		graph:     g,
		minWeight: minWeight,
		queue:     make([]int, 0, len(g.adj)),
		label:     make([]int, len(g.adj)),
	}
	for i := range w.label {
		w.label[i] = -1
	}

	var count int
	for start := range g.adj {
		if w.label[start] >= 0 {
			continue
		}
		w.flood(start, count)
		count++
	}

	return w.label, count, nil
}
