// SPDX-License-Identifier: MIT
// Package matrix provides the small linear-algebra kernels used by the
// projector and the correction estimator: matrix product, transpose,
// scaling, Jacobi eigen-decomposition of symmetric matrices, modified
// Gram–Schmidt orthonormalisation and projection onto the orthogonal
// complement of a subspace.
//
// Purpose:
//   - Keep kernels dependency-free and deterministic for small operands
//     (d×d covariances, per-batch bases).
//   - Large factorisations (thin SVD of cells×genes) go through gonum; see gonum.go.
//
// Notes:
//   - All kernels validate through validators.go and wrap with matrixErrorf.

package matrix

import (
	"fmt"
	"math"
	"sort"
)

// Operation name constants for unified error wrapping.
const (
	opMul            = "Mul"
	opTranspose      = "Transpose"
	opScale          = "Scale"
	opEigen          = "Eigen"
	opOrthonormalize = "Orthonormalize"
	opProjectOut     = "ProjectOut"
)

// matrixErrorf wraps err with an operation tag, preserving the original error via %w.
// Use only when err != nil.
func matrixErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}

// Mul returns the product a×b (a: r×n, b: n×c).
// Implementation:
//   - Stage 1: validate non-nil and a.Cols == b.Rows.
//   - Stage 2: i→k→j loop on flat buffers (streams rows of b; cache friendly).
//
// Complexity: O(r*n*c).
func Mul(a, b *Dense) (*Dense, error) {
	if a == nil || b == nil {
		return nil, matrixErrorf(opMul, ErrNilMatrix)
	}
	if a.c != b.r {
		return nil, matrixErrorf(opMul, ErrDimensionMismatch)
	}
	r, n, c := a.r, a.c, b.c
	out := make([]float64, r*c)
	for i := 0; i < r; i++ {
		orow := out[i*c : (i+1)*c]
		for k := 0; k < n; k++ {
			aik := a.data[i*n+k]
			if aik == 0 {
				continue
			}
			brow := b.data[k*c : (k+1)*c]
			for j := range orow {
				orow[j] += aik * brow[j]
			}
		}
	}

	return newDenseUnchecked(r, c, out), nil
}

// Transpose returns mᵀ.
// Complexity: O(r*c).
func Transpose(m *Dense) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opTranspose, err)
	}
	out := make([]float64, len(m.data))
	for i := 0; i < m.r; i++ {
		for j := 0; j < m.c; j++ {
			out[j*m.r+i] = m.data[i*m.c+j]
		}
	}

	return newDenseUnchecked(m.c, m.r, out), nil
}

// Scale returns α*m.
// Complexity: O(r*c).
func Scale(m *Dense, alpha float64) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opScale, err)
	}
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return nil, matrixErrorf(opScale, ErrNaNInf)
	}
	out := make([]float64, len(m.data))
	for k, v := range m.data {
		out[k] = alpha * v
	}

	return newDenseUnchecked(m.r, m.c, out), nil
}

// Eigen performs classical Jacobi eigen-decomposition of a symmetric matrix.
// It returns the eigenvalues (diagonal order, unsorted) and the matrix Q
// whose columns are the matching unit eigenvectors.
//
// Implementation:
//   - Stage 1: ValidateSymmetric(m, tol).
//   - Stage 2: A ← copy(m), Q ← I.
//   - Stage 3: repeatedly zero the largest off-diagonal |A[p,q]| with a plane
//     rotation (a'pp = app − t·apq, a'qq = aqq + t·apq), accumulating into Q.
//   - Stage 4: stop when max |A[p,q]| ≤ tol; ErrEigenFailed after maxIter rotations.
//
// Complexity: O(n²) per rotation (pivot search dominates), O(maxIter·n²) total.
//
// AI-Hints: maxIter is counted in rotations; 100·n² is ample for well-scaled input.
func Eigen(m *Dense, tol float64, maxIter int) ([]float64, *Dense, error) {
	if err := ValidateSymmetric(m, tol); err != nil {
		return nil, nil, matrixErrorf(opEigen, err)
	}
	n := m.r
	A := m.Clone()
	Q, err := NewDense(n, n)
	if err != nil {
		return nil, nil, matrixErrorf(opEigen, err)
	}
	for i := 0; i < n; i++ {
		Q.data[i*n+i] = 1.0
	}
	a, q := A.data, Q.data

	var (
		iter           int
		p, r           int     // pivot (row p, col r)
		maxOff, off    float64 // pivot search
		app, arr, apr  float64
		theta, t, c, s float64
		aip, air       float64
		converged      bool
	)
	for iter = 0; ; iter++ {
		// J.1: find pivot maximising |A[p,r]| on the upper triangle.
		maxOff = 0
		for i := 0; i < n; i++ {
			base := i * n
			for j := i + 1; j < n; j++ {
				off = math.Abs(a[base+j])
				if off > maxOff {
					maxOff, p, r = off, i, j
				}
			}
		}
		// J.2: convergence check (an already diagonal input needs no rotation).
		if maxOff <= tol {
			converged = true
			break
		}
		if iter == maxIter {
			break
		}
		// J.3: rotation parameters.
		app, arr, apr = a[p*n+p], a[r*n+r], a[p*n+r]
		theta = (arr - app) / (2 * apr)
		t = math.Copysign(1.0/(math.Abs(theta)+math.Hypot(theta, 1)), theta)
		c = 1.0 / math.Sqrt(t*t+1)
		s = t * c

		// J.4: rotate rows/cols p and r of A.
		for i := 0; i < n; i++ {
			if i == p || i == r {
				continue
			}
			aip, air = a[i*n+p], a[i*n+r]
			a[i*n+p] = c*aip - s*air
			a[p*n+i] = a[i*n+p]
			a[i*n+r] = s*aip + c*air
			a[r*n+i] = a[i*n+r]
		}
		a[p*n+p] = app - t*apr
		a[r*n+r] = arr + t*apr
		a[p*n+r], a[r*n+p] = 0, 0

		// J.5: accumulate the rotation into Q (columns p and r).
		for i := 0; i < n; i++ {
			aip, air = q[i*n+p], q[i*n+r]
			q[i*n+p] = c*aip - s*air
			q[i*n+r] = s*aip + c*air
		}
	}
	if !converged {
		return nil, nil, matrixErrorf(opEigen, ErrEigenFailed)
	}

	eigs := make([]float64, n)
	for i := 0; i < n; i++ {
		eigs[i] = a[i*n+i]
	}

	return eigs, Q, nil
}

// EigenSorted is Eigen with eigenpairs ordered by descending eigenvalue
// (ties keep diagonal order), which is the order principal axes are consumed in.
func EigenSorted(m *Dense, tol float64, maxIter int) ([]float64, *Dense, error) {
	vals, vecs, err := Eigen(m, tol, maxIter)
	if err != nil {
		return nil, nil, err
	}
	n := len(vals)
	idx := seq(n)
	sort.SliceStable(idx, func(x, y int) bool { return vals[idx[x]] > vals[idx[y]] })

	sortedVals := make([]float64, n)
	for k, i := range idx {
		sortedVals[k] = vals[i]
	}
	sortedVecs, err := vecs.Induced(nil, idx)
	if err != nil {
		return nil, nil, matrixErrorf(opEigen, err)
	}

	return sortedVals, sortedVecs, nil
}

// Orthonormalize returns an orthonormal basis of the column space of m using
// modified Gram–Schmidt with one re-orthogonalisation pass per column.
// Columns whose residual norm falls to ≤ tol × (original norm) are dropped,
// so the result is n × rank with rank ≤ m.Cols().
//
// Errors:
//   - ErrNilMatrix; ErrRankDeficient when no column survives.
//
// Complexity: O(n*k²).
func Orthonormalize(m *Dense, tol float64) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opOrthonormalize, err)
	}
	n, k := m.r, m.c
	basis := make([][]float64, 0, k)
	v := make([]float64, n)
	for j := 0; j < k; j++ {
		var orig float64
		for i := 0; i < n; i++ {
			v[i] = m.data[i*k+j]
			orig += v[i] * v[i]
		}
		orig = math.Sqrt(orig)
		if orig == 0 {
			continue
		}
		for pass := 0; pass < 2; pass++ {
			for _, b := range basis {
				var dot float64
				for i := range v {
					dot += b[i] * v[i]
				}
				for i := range v {
					v[i] -= dot * b[i]
				}
			}
		}
		var norm float64
		for _, x := range v {
			norm += x * x
		}
		norm = math.Sqrt(norm)
		if norm <= tol*orig {
			continue
		}
		b := make([]float64, n)
		for i := range v {
			b[i] = v[i] / norm
		}
		basis = append(basis, b)
	}
	if len(basis) == 0 {
		return nil, matrixErrorf(opOrthonormalize, ErrRankDeficient)
	}

	rank := len(basis)
	out := make([]float64, n*rank)
	for j, b := range basis {
		for i := 0; i < n; i++ {
			out[i*rank+j] = b[i]
		}
	}

	return newDenseUnchecked(n, rank, out), nil
}

// ProjectOut removes from v, in place, its components along the orthonormal
// columns of basis: v ← v − B·Bᵀ·v.
//
// Errors:
//   - ErrNilMatrix; ErrDimensionMismatch when len(v) != basis.Rows().
//
// Complexity: O(n*m).
func ProjectOut(v []float64, basis *Dense) error {
	if err := ValidateNotNil(basis); err != nil {
		return matrixErrorf(opProjectOut, err)
	}
	if err := ValidateVecLen(v, basis.r); err != nil {
		return matrixErrorf(opProjectOut, err)
	}
	n, m := basis.r, basis.c
	for j := 0; j < m; j++ {
		var dot float64
		for i := 0; i < n; i++ {
			dot += basis.data[i*m+j] * v[i]
		}
		if dot == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			v[i] -= dot * basis.data[i*m+j]
		}
	}

	return nil
}
