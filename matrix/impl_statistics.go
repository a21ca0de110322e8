// SPDX-License-Identifier: MIT
// Package: matrix
//
// Purpose:
//   - Provide the column statistics the pipeline needs: means, centring,
//     sample variances, total within-batch variance and covariance.
//   - Provide row L2 normalisation (cosine normalisation of expression profiles).
//
// Exposed API:
//   - ColumnMeans(X)      -> means
//   - CenterColumns(X)    -> (Xc, means)   // subtract per-column mean
//   - ColumnVariances(X)  -> vars          // sample variance per column (n-1)
//   - TotalVariance(X)    -> Σ vars        // trace of the sample covariance
//   - Covariance(X)       -> (Cov, means)  // (Xcᵀ Xc)/(r-1)
//   - NormalizeRowsL2(X)  -> (Y, norms)    // degenerate rows unchanged
//
// Determinism & Performance:
//   - Fixed i→j traversal for all explicit loops on the flat buffer.
//   - Column variances go through gonum/stat so the two-pass corrected
//     algorithm is shared with the rest of the ecosystem.

package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Operation name constants for unified error wrapping.
const (
	opColumnMeans     = "ColumnMeans"
	opCenterColumns   = "CenterColumns"
	opColumnVariances = "ColumnVariances"
	opCovariance      = "Covariance"
	opNormalizeRowsL2 = "NormalizeRowsL2"
)

// ColumnMeans returns Σ_i X[i,j] / r for every column j.
// Complexity: O(r*c).
func ColumnMeans(X *Dense) ([]float64, error) {
	if err := ValidateNotNil(X); err != nil {
		return nil, matrixErrorf(opColumnMeans, err)
	}
	r, c := X.r, X.c
	means := make([]float64, c)
	for i := 0; i < r; i++ { // deterministic row order
		base := i * c
		for j := 0; j < c; j++ {
			means[j] += X.data[base+j]
		}
	}
	invR := 1.0 / float64(r)
	for j := range means {
		means[j] *= invR
	}

	return means, nil
}

// CenterColumns returns a centred copy Xc = X − mean(X, by columns) and the means.
// Implementation:
//   - Stage 1: Validate X.
//   - Stage 2: ColumnMeans in one deterministic pass.
//   - Stage 3: Broadcast-subtract into a fresh buffer.
//
// Complexity: Time O(r*c), Space O(r*c).
//
// AI-Hints: keep the means to un-centre later (Reconstruct in pca).
func CenterColumns(X *Dense) (*Dense, []float64, error) {
	means, err := ColumnMeans(X)
	if err != nil {
		return nil, nil, matrixErrorf(opCenterColumns, err)
	}
	out, err := SubRowVector(X, means)
	if err != nil {
		return nil, nil, matrixErrorf(opCenterColumns, err)
	}

	return out, means, nil
}

// SubRowVector returns out[i,j] = X[i,j] − v[j] (v broadcast over rows).
// Complexity: O(r*c).
func SubRowVector(X *Dense, v []float64) (*Dense, error) {
	if err := ValidateNotNil(X); err != nil {
		return nil, err
	}
	if err := ValidateVecLen(v, X.c); err != nil {
		return nil, err
	}
	out := make([]float64, len(X.data))
	c := X.c
	for i := 0; i < X.r; i++ {
		base := i * c
		for j := 0; j < c; j++ {
			out[base+j] = X.data[base+j] - v[j]
		}
	}

	return newDenseUnchecked(X.r, c, out), nil
}

// AddRowVector returns out[i,j] = X[i,j] + v[j] (v broadcast over rows).
// Complexity: O(r*c).
func AddRowVector(X *Dense, v []float64) (*Dense, error) {
	neg := make([]float64, len(v))
	for j := range v {
		neg[j] = -v[j]
	}

	return SubRowVector(X, neg)
}

// ColumnVariances returns the sample variance (denominator r−1) of every column.
//
// Errors:
//   - ErrNilMatrix; ErrTooFewRows when r < 2.
//
// Complexity: O(r*c) time, O(r) scratch.
func ColumnVariances(X *Dense) ([]float64, error) {
	if err := ValidateNotNil(X); err != nil {
		return nil, matrixErrorf(opColumnVariances, err)
	}
	if X.r < 2 {
		return nil, matrixErrorf(opColumnVariances, ErrTooFewRows)
	}
	vars := make([]float64, X.c)
	col := make([]float64, X.r) // scratch reused across columns
	for j := 0; j < X.c; j++ {
		for i := 0; i < X.r; i++ {
			col[i] = X.data[i*X.c+j]
		}
		_, vars[j] = stat.MeanVariance(col, nil)
	}

	return vars, nil
}

// TotalVariance returns the sum of column sample variances (trace of the
// sample covariance). A single-row matrix has total variance 0.
// Complexity: O(r*c).
func TotalVariance(X *Dense) (float64, error) {
	if err := ValidateNotNil(X); err != nil {
		return 0, matrixErrorf(opColumnVariances, err)
	}
	if X.r < 2 {
		return 0, nil
	}
	vars, err := ColumnVariances(X)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, v := range vars {
		total += v
	}

	return total, nil
}

// Covariance computes the sample covariance of columns: Cov = (Xcᵀ Xc)/(r−1).
// Returns Cov (c×c, symmetric by construction) and column means.
//
// Errors:
//   - ErrNilMatrix; ErrTooFewRows when r < 2.
//
// Complexity: O(r*c²) time, O(r*c + c²) space.
func Covariance(X *Dense) (*Dense, []float64, error) {
	if err := ValidateNotNil(X); err != nil {
		return nil, nil, matrixErrorf(opCovariance, err)
	}
	if X.r < 2 {
		return nil, nil, matrixErrorf(opCovariance, ErrTooFewRows)
	}
	Xc, means, err := CenterColumns(X)
	if err != nil {
		return nil, nil, matrixErrorf(opCovariance, err)
	}

	// Accumulate the upper triangle only, then mirror: exact symmetry.
	c := X.c
	cov := make([]float64, c*c)
	for i := 0; i < X.r; i++ {
		row := Xc.data[i*c : (i+1)*c]
		for p := 0; p < c; p++ {
			vp := row[p]
			if vp == 0 {
				continue
			}
			base := p * c
			for q := p; q < c; q++ {
				cov[base+q] += vp * row[q]
			}
		}
	}
	inv := 1.0 / float64(X.r-1)
	for p := 0; p < c; p++ {
		for q := p; q < c; q++ {
			v := cov[p*c+q] * inv
			cov[p*c+q] = v
			cov[q*c+p] = v
		}
	}

	return newDenseUnchecked(c, c, cov), means, nil
}

// NormalizeRowsL2 scales each row to unit L2 norm; returns Y and the original norms.
// Degenerate rows (norm == 0) remain zero rows.
// Complexity: O(r*c).
//
// AI-Hints: cosine normalisation of expression profiles before MNN search
// removes per-cell scaling (library size) differences between batches.
func NormalizeRowsL2(X *Dense) (*Dense, []float64, error) {
	if err := ValidateNotNil(X); err != nil {
		return nil, nil, matrixErrorf(opNormalizeRowsL2, err)
	}
	r, c := X.r, X.c
	norms := make([]float64, r)
	out := make([]float64, len(X.data))
	for i := 0; i < r; i++ {
		base := i * c
		var sq float64
		for j := 0; j < c; j++ {
			v := X.data[base+j]
			sq += v * v
		}
		norms[i] = math.Sqrt(sq)
		if norms[i] == 0 {
			continue
		}
		for j := 0; j < c; j++ {
			out[base+j] = X.data[base+j] / norms[i]
		}
	}

	return newDenseUnchecked(r, c, out), norms, nil
}

// AllClose checks element-wise |a−b| ≤ atol + rtol*|b| for identical shapes.
// Complexity: O(r*c).
func AllClose(a, b *Dense, rtol, atol float64) (bool, error) {
	if err := ValidateSameShape(a, b); err != nil {
		return false, fmt.Errorf("AllClose: %w", err)
	}
	rtol, atol = math.Abs(rtol), math.Abs(atol)
	for k := range a.data {
		if math.Abs(a.data[k]-b.data[k]) > atol+rtol*math.Abs(b.data[k]) {
			return false, nil
		}
	}

	return true, nil
}
