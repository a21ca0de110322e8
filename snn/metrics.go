// SPDX-License-Identifier: MIT

package snn

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/katalvlaran/mnncorrect/matrix"
	"github.com/katalvlaran/mnncorrect/neighbors"
)

func checkLabels(rel *neighbors.Relation, batchOf []int) error {
	if rel == nil || rel.Len() != len(batchOf) || rel.TargetRows != len(batchOf) {
		return ErrLabels
	}
	for _, b := range batchOf {
		if b < 0 {
			return ErrLabels
		}
	}

	return nil
}

// SameBatchFraction returns, averaged over cells, the share of each cell's
// neighbours (itself excluded) that belong to its own batch. rel must be a
// self-relation (cells against the same cells).
func SameBatchFraction(rel *neighbors.Relation, batchOf []int) (float64, error) {
	if err := checkLabels(rel, batchOf); err != nil {
		return 0, err
	}
	var sum float64
	var cells int
	for i, row := range rel.Indices {
		var same, total int
		for _, j := range row {
			if j == i {
				continue
			}
			total++
			if batchOf[j] == batchOf[i] {
				same++
			}
		}
		if total == 0 {
			continue
		}
		sum += float64(same) / float64(total)
		cells++
	}
	if cells == 0 {
		return 0, nil
	}

	return sum / float64(cells), nil
}

// ExpectedSameBatchFraction is SameBatchFraction's value under perfect
// mixing: Σ_b (n_b/n)·((n_b − 1)/(n − 1)).
func ExpectedSameBatchFraction(batchOf []int) float64 {
	n := len(batchOf)
	if n < 2 {
		return 0
	}
	sizes := batchSizes(batchOf)
	var e float64
	for _, nb := range sizes {
		e += float64(nb) / float64(n) * float64(nb-1) / float64(n-1)
	}

	return e
}

// MixingEntropy returns the mean, over cells, of the Shannon entropy of the
// batch composition of each neighbourhood (itself excluded), normalised by
// log(#batches) into [0, 1]. A single batch yields 0.
func MixingEntropy(rel *neighbors.Relation, batchOf []int) (float64, error) {
	if err := checkLabels(rel, batchOf); err != nil {
		return 0, err
	}
	nb := len(batchSizes(batchOf))
	if nb < 2 {
		return 0, nil
	}
	norm := math.Log(float64(nb))
	p := make([]float64, maxLabel(batchOf)+1)
	var sum float64
	var cells int
	for i, row := range rel.Indices {
		for b := range p {
			p[b] = 0
		}
		var total float64
		for _, j := range row {
			if j == i {
				continue
			}
			p[batchOf[j]]++
			total++
		}
		if total == 0 {
			continue
		}
		for b := range p {
			p[b] /= total
		}
		sum += stat.Entropy(p) / norm
		cells++
	}
	if cells == 0 {
		return 0, nil
	}

	return sum / float64(cells), nil
}

// Preservation returns the mean Jaccard overlap between each cell's k
// nearest neighbours in before and in after (same cells, same order).
// 1 means every neighbourhood survived the correction unchanged.
func Preservation(ctx context.Context, before, after *matrix.Dense, k int, opts ...neighbors.Option) (float64, error) {
	if err := matrix.ValidateNotNil(before); err != nil {
		return 0, fmt.Errorf("snn: Preservation: %w", err)
	}
	if err := matrix.ValidateNotNil(after); err != nil {
		return 0, fmt.Errorf("snn: Preservation: %w", err)
	}
	if before.Rows() != after.Rows() {
		return 0, fmt.Errorf("snn: Preservation: %d vs %d cells: %w", before.Rows(), after.Rows(), ErrLabels)
	}
	rb, err := neighbors.Find(ctx, before, before, k, opts...)
	if err != nil {
		return 0, fmt.Errorf("snn: Preservation: %w", err)
	}
	ra, err := neighbors.Find(ctx, after, after, k, opts...)
	if err != nil {
		return 0, fmt.Errorf("snn: Preservation: %w", err)
	}

	var sum float64
	inB := make(map[int]struct{}, k)
	for i := range rb.Indices {
		for key := range inB {
			delete(inB, key)
		}
		for _, j := range rb.Indices[i] {
			inB[j] = struct{}{}
		}
		var shared int
		for _, j := range ra.Indices[i] {
			if _, ok := inB[j]; ok {
				shared++
			}
		}
		sum += float64(shared) / float64(2*k-shared)
	}

	return sum / float64(len(rb.Indices)), nil
}

func batchSizes(batchOf []int) map[int]int {
	sizes := make(map[int]int)
	for _, b := range batchOf {
		sizes[b]++
	}

	return sizes
}

func maxLabel(batchOf []int) int {
	m := 0
	for _, b := range batchOf {
		if b > m {
			m = b
		}
	}

	return m
}
