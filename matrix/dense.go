// SPDX-License-Identifier: MIT

// Package matrix - builders that combine or split Dense matrices.
// Batches travel through the pipeline as separate matrices; the projector is
// fitted on their row-concatenation and results are split back per batch.
package matrix

import "fmt"

const (
	opVStack    = "VStack"
	opSplitRows = "SplitRows"
)

// VStack concatenates matrices by rows (all must share the column count).
// The result owns fresh storage; inputs are not aliased.
//
// Errors:
//   - ErrInvalidDimensions when called with no matrices.
//   - ErrNilMatrix, ErrDimensionMismatch.
//
// Complexity: O(total elements).
func VStack(ms ...*Dense) (*Dense, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("%s: %w", opVStack, ErrInvalidDimensions)
	}
	var rows int
	for i, m := range ms {
		if m == nil {
			return nil, fmt.Errorf("%s: operand %d: %w", opVStack, i, ErrNilMatrix)
		}
		if m.c != ms[0].c {
			return nil, fmt.Errorf("%s: operand %d has %d cols, want %d: %w", opVStack, i, m.c, ms[0].c, ErrDimensionMismatch)
		}
		rows += m.r
	}

	out := make([]float64, 0, rows*ms[0].c)
	for _, m := range ms {
		out = append(out, m.data...)
	}

	return newDenseUnchecked(rows, ms[0].c, out), nil
}

// SplitRows cuts m into consecutive row blocks of the given sizes.
// It is the inverse of VStack: SplitRows(VStack(a, b), a.Rows(), b.Rows()).
//
// Errors:
//   - ErrNilMatrix; ErrInvalidDimensions for a non-positive size;
//     ErrDimensionMismatch when the sizes do not add up to m.Rows().
func SplitRows(m *Dense, sizes ...int) ([]*Dense, error) {
	if m == nil {
		return nil, fmt.Errorf("%s: %w", opSplitRows, ErrNilMatrix)
	}
	var total int
	for _, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("%s: size %d: %w", opSplitRows, s, ErrInvalidDimensions)
		}
		total += s
	}
	if total != m.r {
		return nil, fmt.Errorf("%s: sizes sum to %d, matrix has %d rows: %w", opSplitRows, total, m.r, ErrDimensionMismatch)
	}

	out := make([]*Dense, len(sizes))
	var from int
	for k, s := range sizes {
		buf := make([]float64, s*m.c)
		copy(buf, m.data[from*m.c:(from+s)*m.c])
		out[k] = newDenseUnchecked(s, m.c, buf)
		from += s
	}

	return out, nil
}
