// SPDX-License-Identifier: MIT

package pca

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/mnncorrect/matrix"
)

// thinSVD returns the leading d right singular vectors of A (as columns)
// and all singular values, descending.
func thinSVD(A *matrix.Dense, d int) (*matrix.Dense, []float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(A.Gonum(), mat.SVDThin); !ok {
		return nil, nil, ErrFactorization
	}
	s := svd.Values(nil)
	if len(s) < d {
		return nil, nil, ErrRankDeficient
	}
	var v mat.Dense
	svd.VTo(&v)
	V, err := matrix.FromGonum(v.Slice(0, A.Cols(), 0, d))
	if err != nil {
		return nil, nil, ErrFactorization
	}

	return V, s, nil
}

// solveSVD factorises the centred matrix directly.
func solveSVD(Xc *matrix.Dense, d int) (*matrix.Dense, []float64, error) {
	return thinSVD(Xc, d)
}

// solveEigen diagonalises Xcᵀ·Xc/(n−1) and converts eigenvalues back to
// singular values: s = √(λ·(n−1)).
func solveEigen(Xc *matrix.Dense, d int) (*matrix.Dense, []float64, error) {
	cov, _, err := matrix.Covariance(Xc)
	if err != nil {
		return nil, nil, err
	}
	p := cov.Cols()
	var trace float64
	for i := 0; i < p; i++ {
		v, _ := cov.At(i, i)
		trace += v
	}
	tol := 1e-14 * math.Max(trace, 1)
	maxIter := 100 * p * p
	if maxIter < 100 {
		maxIter = 100
	}
	vals, vecs, err := matrix.EigenSorted(cov, tol, maxIter)
	if err != nil {
		return nil, nil, ErrFactorization
	}

	cols := make([]int, d)
	for k := range cols {
		cols[k] = k
	}
	V, err := vecs.Induced(nil, cols)
	if err != nil {
		return nil, nil, err
	}
	scale := float64(Xc.Rows() - 1)
	s := make([]float64, len(vals))
	for k, l := range vals {
		s[k] = math.Sqrt(math.Max(l, 0) * scale)
	}

	return V, s, nil
}

// solveRandomized approximates the leading right singular subspace.
//
// Implementation:
//   - Stage 1: Ω ~ N(0,1)^{p×l}, l = min(d + oversampling, n, p); Q = orth(Xc·Ω).
//   - Stage 2: q power iterations Q = orth(Xc·orth(Xcᵀ·Q)).
//   - Stage 3: exact thin SVD of the small B = Qᵀ·Xc (l×p).
//
// The only randomness is the seeded Gaussian sketch, so equal seeds give equal results.
func solveRandomized(Xc *matrix.Dense, d int, o Options) (*matrix.Dense, []float64, error) {
	n, p := Xc.Rows(), Xc.Cols()
	l := d + o.Oversampling
	if l > n {
		l = n
	}
	if l > p {
		l = p
	}

	rng := rand.New(rand.NewSource(o.Seed))
	omega := make([]float64, p*l)
	for k := range omega {
		omega[k] = rng.NormFloat64()
	}
	Omega, err := matrix.NewDenseFrom(p, l, omega)
	if err != nil {
		return nil, nil, err
	}

	const orthTol = 1e-12
	Y, err := matrix.Mul(Xc, Omega)
	if err != nil {
		return nil, nil, err
	}
	Q, err := matrix.Orthonormalize(Y, orthTol)
	if err != nil {
		return nil, nil, ErrRankDeficient
	}
	Xt, err := matrix.Transpose(Xc)
	if err != nil {
		return nil, nil, err
	}
	for it := 0; it < o.PowerIterations; it++ {
		Z, err := matrix.Mul(Xt, Q)
		if err != nil {
			return nil, nil, err
		}
		if Z, err = matrix.Orthonormalize(Z, orthTol); err != nil {
			return nil, nil, ErrRankDeficient
		}
		if Y, err = matrix.Mul(Xc, Z); err != nil {
			return nil, nil, err
		}
		if Q, err = matrix.Orthonormalize(Y, orthTol); err != nil {
			return nil, nil, ErrRankDeficient
		}
	}
	if Q.Cols() < d {
		return nil, nil, ErrRankDeficient
	}

	Qt, err := matrix.Transpose(Q)
	if err != nil {
		return nil, nil, err
	}
	B, err := matrix.Mul(Qt, Xc)
	if err != nil {
		return nil, nil, err
	}

	return thinSVD(B, d)
}
