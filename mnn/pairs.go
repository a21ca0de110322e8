// SPDX-License-Identifier: MIT

package mnn

import (
	"fmt"
	"sort"

	"github.com/katalvlaran/mnncorrect/neighbors"
)

// Pair is one mutual nearest neighbour pair: A indexes the first batch
// (the reference during a merge), B the second (the target).
type Pair struct {
	A, B int
}

// PairSet is a duplicate-free list of pairs sorted by (A, B).
type PairSet []Pair

// MutualPairs returns every (a, b) with b ∈ kNN(a) in aToB and a ∈ kNN(b) in bToA.
//
// aToB must have one row per cell of A with indices into B; bToA the converse.
//
// Complexity: O(|A|·k²) membership checks plus O(P log P) sorting.
func MutualPairs(aToB, bToA *neighbors.Relation) (PairSet, error) {
	if aToB == nil || bToA == nil {
		return nil, ErrNilRelation
	}
	nA, nB := aToB.Len(), bToA.Len()
	if aToB.TargetRows != nB || bToA.TargetRows != nA {
		return nil, fmt.Errorf("mnn: |A|=%d/%d, |B|=%d/%d: %w", nA, bToA.TargetRows, nB, aToB.TargetRows, ErrRelationShape)
	}

	var out PairSet
	for a, row := range aToB.Indices {
		for _, b := range row {
			if b < 0 || b >= nB {
				return nil, fmt.Errorf("mnn: neighbour %d of cell %d: %w", b, a, ErrRelationShape)
			}
			if bToA.Contains(b, a) {
				out = append(out, Pair{A: a, B: b})
			}
		}
	}
	out.sort()

	return out, nil
}

func (ps PairSet) sort() {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].A != ps[j].A {
			return ps[i].A < ps[j].A
		}
		return ps[i].B < ps[j].B
	})
}

// Len returns the number of pairs.
func (ps PairSet) Len() int { return len(ps) }

// Reverse returns the pairs with A and B swapped, re-sorted.
func (ps PairSet) Reverse() PairSet {
	out := make(PairSet, len(ps))
	for i, p := range ps {
		out[i] = Pair{A: p.B, B: p.A}
	}
	out.sort()

	return out
}

// Contains reports whether (a, b) is a pair. O(log P).
func (ps PairSet) Contains(a, b int) bool {
	i := sort.Search(len(ps), func(i int) bool {
		return ps[i].A > a || (ps[i].A == a && ps[i].B >= b)
	})

	return i < len(ps) && ps[i].A == a && ps[i].B == b
}

// ReferenceCells returns the distinct A members, ascending.
func (ps PairSet) ReferenceCells() []int {
	return distinct(ps, func(p Pair) int { return p.A })
}

// TargetCells returns the distinct B members, ascending.
func (ps PairSet) TargetCells() []int {
	return distinct(ps, func(p Pair) int { return p.B })
}

func distinct(ps PairSet, key func(Pair) int) []int {
	seen := make(map[int]struct{}, len(ps))
	out := make([]int, 0, len(ps))
	for _, p := range ps {
		k := key(p)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Ints(out)

	return out
}
