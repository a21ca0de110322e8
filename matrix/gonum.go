// SPDX-License-Identifier: MIT

// Package matrix - bridge to gonum for factorisations that do not belong in
// hand-written kernels (thin SVD of tall cells×genes matrices).
//
// Dense and gonum's *mat.Dense share the same row-major layout, so the
// bridge towards gonum is zero-copy; the way back copies so the finite-only
// policy can be re-checked.
package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	opFromGonum      = "FromGonum"
	opPrincipalAxes  = "PrincipalAxes"
	opCanonicalSigns = "CanonicalSigns"
)

// Gonum returns a *mat.Dense sharing m's backing buffer.
// Mutations through the returned value are visible in m and bypass the
// numeric policy; treat it as read-only unless m is owned by the caller.
func (m *Dense) Gonum() *mat.Dense {
	return mat.NewDense(m.r, m.c, m.data)
}

// FromGonum copies any gonum matrix into a new Dense.
//
// Errors:
//   - ErrInvalidDimensions for empty input; ErrNaNInf for non-finite entries.
func FromGonum(a mat.Matrix) (*Dense, error) {
	r, c := a.Dims()
	out, err := NewDense(r, c)
	if err != nil {
		return nil, matrixErrorf(opFromGonum, err)
	}
	if d, ok := a.(*mat.Dense); ok {
		raw := d.RawMatrix()
		for i := 0; i < r; i++ {
			copy(out.data[i*c:(i+1)*c], raw.Data[i*raw.Stride:i*raw.Stride+c])
		}
	} else {
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out.data[i*c+j] = a.At(i, j)
			}
		}
	}
	for k, v := range out.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, matrixErrorf(opFromGonum, denseErrorf(ctxSet, k/c, k%c, ErrNaNInf))
		}
	}

	return out, nil
}

// PrincipalAxes returns up to k leading principal axes of X (rows are
// observations): the right singular vectors of the column-centred X, as the
// columns of a Cols()×rank matrix, together with their singular values.
// Axes whose singular value is ≤ tol × (largest singular value) are dropped,
// so rank ≤ k. Signs follow CanonicalSigns.
//
// Implementation:
//   - Stage 1: CenterColumns(X).
//   - Stage 2: gonum thin SVD.
//   - Stage 3: keep leading axes above the relative tolerance; fix signs.
//
// Errors:
//   - ErrNilMatrix; ErrInvalidDimensions when k < 1;
//   - ErrRankDeficient when the factorisation fails or no axis survives
//     (for example a batch of identical cells).
//
// Complexity: O(r*c*min(r,c)).
func PrincipalAxes(X *Dense, k int, tol float64) (*Dense, []float64, error) {
	if err := ValidateNotNil(X); err != nil {
		return nil, nil, matrixErrorf(opPrincipalAxes, err)
	}
	if k < 1 {
		return nil, nil, matrixErrorf(opPrincipalAxes, ErrInvalidDimensions)
	}
	Xc, _, err := CenterColumns(X)
	if err != nil {
		return nil, nil, matrixErrorf(opPrincipalAxes, err)
	}

	var svd mat.SVD
	if ok := svd.Factorize(Xc.Gonum(), mat.SVDThin); !ok {
		return nil, nil, matrixErrorf(opPrincipalAxes, ErrRankDeficient)
	}
	values := svd.Values(nil)
	if len(values) == 0 || values[0] == 0 {
		return nil, nil, matrixErrorf(opPrincipalAxes, ErrRankDeficient)
	}
	var v mat.Dense
	svd.VTo(&v)

	rank := 0
	for rank < k && rank < len(values) && values[rank] > tol*values[0] {
		rank++
	}
	if rank == 0 {
		return nil, nil, matrixErrorf(opPrincipalAxes, ErrRankDeficient)
	}
	V, err := FromGonum(v.Slice(0, X.c, 0, rank))
	if err != nil {
		return nil, nil, matrixErrorf(opPrincipalAxes, err)
	}
	if err = CanonicalSigns(V); err != nil {
		return nil, nil, matrixErrorf(opPrincipalAxes, err)
	}

	return V, values[:rank], nil
}

// CanonicalSigns flips, in place, every column of V whose largest-magnitude
// entry is negative (first such entry on ties). Singular and eigen vectors
// are defined up to sign; fixing it makes every solver reproducible.
func CanonicalSigns(V *Dense) error {
	if err := ValidateNotNil(V); err != nil {
		return fmt.Errorf("%s: %w", opCanonicalSigns, err)
	}
	r, c := V.r, V.c
	for j := 0; j < c; j++ {
		best, arg := -1.0, 0
		for i := 0; i < r; i++ {
			if a := math.Abs(V.data[i*c+j]); a > best {
				best, arg = a, i
			}
		}
		if V.data[arg*c+j] < 0 {
			for i := 0; i < r; i++ {
				V.data[i*c+j] = -V.data[i*c+j]
			}
		}
	}

	return nil
}
