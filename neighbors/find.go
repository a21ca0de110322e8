// SPDX-License-Identifier: MIT

package neighbors

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/mnncorrect/matrix"
)

// Find returns, for every row of query, its k nearest rows of target.
//
// Implementation:
//   - Stage 1: validate inputs, k and options.
//   - Stage 2: under Cosine, L2-normalise both matrices.
//   - Stage 3: build the index over target once (read-only afterwards).
//   - Stage 4: split query rows into blocks; a bounded errgroup searches the
//     blocks, each writing its own rows of the Relation.
//
// Errors:
//   - ErrNilInput, ErrDimensionMismatch, ErrNonFinite, ErrBadK, ErrKTooLarge,
//     ErrBadOption (all of kind mnncorrect.ErrInvalidInput).
//   - ctx.Err() when the context is cancelled before the search completes.
//
// Complexity: KDTree O(m log m) build plus two tree queries per row, roughly
// O(k·log m) each on low-dimensional embeddings; BruteForce O(n·m·dim). n = query rows, m = target rows.
func Find(ctx context.Context, query, target *matrix.Dense, k int, opts ...Option) (*Relation, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if query == nil || target == nil {
		return nil, ErrNilInput
	}
	if query.Cols() != target.Cols() {
		return nil, fmt.Errorf("neighbors: query has %d dims, target %d: %w", query.Cols(), target.Cols(), ErrDimensionMismatch)
	}
	if matrix.ValidateFinite(query) != nil || matrix.ValidateFinite(target) != nil {
		return nil, ErrNonFinite
	}
	if k < 1 {
		return nil, fmt.Errorf("neighbors: k=%d: %w", k, ErrBadK)
	}
	if k > target.Rows() {
		return nil, fmt.Errorf("neighbors: k=%d with %d target cells: %w", k, target.Rows(), ErrKTooLarge)
	}

	if o.Metric == Cosine {
		var err error
		if query, _, err = matrix.NormalizeRowsL2(query); err != nil {
			return nil, fmt.Errorf("neighbors: %w", err)
		}
		if target, _, err = matrix.NormalizeRowsL2(target); err != nil {
			return nil, fmt.Errorf("neighbors: %w", err)
		}
	}

	m, dim := target.Rows(), target.Cols()
	var idx searcher
	switch o.Index {
	case KDTree:
		idx = newKDIndex(target.RawData(), m, dim, k)
	default:
		idx = newBruteIndex(target.RawData(), m, dim)
	}

	n := query.Rows()
	rel := &Relation{
		K:          k,
		TargetRows: m,
		Indices:    make([][]int, n),
		Distances:  make([][]float64, n),
	}
	// Rows share two flat backing arrays.
	flatIdx := make([]int, n*k)
	flatDist := make([]float64, n*k)
	for i := 0; i < n; i++ {
		rel.Indices[i] = flatIdx[i*k : (i+1)*k : (i+1)*k]
		rel.Distances[i] = flatDist[i*k : (i+1)*k : (i+1)*k]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)
	for lo := 0; lo < n; lo += o.BlockSize {
		lo, hi := lo, min(lo+o.BlockSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := newCollector(k)
			for i := lo; i < hi; i++ {
				q, err := query.RowView(i)
				if err != nil {
					return err
				}
				c.reset()
				idx.search(q, c)
				c.drain(rel.Indices[i], rel.Distances[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return rel, nil
}

// FindMutualInputs returns both directed relations between a and b with
// the same k and options: aToB (rows of a against b) and bToA.
func FindMutualInputs(ctx context.Context, a, b *matrix.Dense, k int, opts ...Option) (aToB, bToA *Relation, err error) {
	if aToB, err = Find(ctx, a, b, k, opts...); err != nil {
		return nil, nil, err
	}
	if bToA, err = Find(ctx, b, a, k, opts...); err != nil {
		return nil, nil, err
	}

	return aToB, bToA, nil
}
