// SPDX-License-Identifier: MIT
// Package matrix: sentinel error set (unified, consistent).
// This file defines ONLY package-level sentinel errors used across the matrix
// package. All kernels MUST return these sentinels and tests MUST check them
// via errors.Is. No kernel should panic on user-triggered error conditions.

package matrix

import "github.com/katalvlaran/mnncorrect"

// NOTE ON NAMING & CLASSIFICATION
// -------------------------------
// Every message is prefixed with "matrix: ..." for grep-ability. Each sentinel
// is classified under one of the module-wide kinds, so callers can match
// either errors.Is(err, matrix.ErrDimensionMismatch) or the coarser
// errors.Is(err, mnncorrect.ErrInvalidInput).
//
// ERROR PRIORITY (enforced in tests):
// nil -> shape/index -> NaN/Inf -> dimension mismatch -> structural violations
// -> numerical failures.

var (
	// ErrInvalidDimensions indicates that requested matrix dimensions are non-positive.
	ErrInvalidDimensions = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "matrix: dimensions must be > 0")

	// ErrOutOfRange indicates that an index (row or column) is outside valid bounds.
	// Public indexers (At/Set/RowView) MUST return this, not panic.
	ErrOutOfRange = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "matrix: index out of range")

	// ErrDimensionMismatch indicates incompatible dimensions between operands,
	// e.g. Mul where a.Cols != b.Rows, or a data slice of the wrong length.
	ErrDimensionMismatch = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "matrix: dimension mismatch")

	// ErrNonSquare signals that a square matrix was required but the input wasn't.
	ErrNonSquare = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "matrix: matrix is not square")

	// ErrAsymmetry signals that a matrix expected to be symmetric violated
	// symmetry within the given tolerance.
	ErrAsymmetry = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "matrix: matrix is not symmetric within eps")

	// ErrNaNInf signals a NaN or ±Inf value where finite values are required.
	ErrNaNInf = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "matrix: NaN or Inf encountered")

	// ErrNilMatrix indicates that a nil *Dense (receiver or argument) was used.
	ErrNilMatrix = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "matrix: nil matrix")

	// ErrTooFewRows is returned by sample statistics that need at least two rows.
	ErrTooFewRows = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "matrix: at least two rows required")

	// ErrEigenFailed indicates that the Jacobi routine failed to converge
	// under the given tolerance/iterations.
	ErrEigenFailed = mnncorrect.NewError(mnncorrect.ErrNumericalInstability, "matrix: eigen decomposition failed")

	// ErrRankDeficient is returned when orthonormalisation leaves no usable
	// direction (all columns numerically zero) or a factorisation fails.
	ErrRankDeficient = mnncorrect.NewError(mnncorrect.ErrNumericalInstability, "matrix: rank deficient input")
)
