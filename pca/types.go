// SPDX-License-Identifier: MIT

package pca

import "github.com/katalvlaran/mnncorrect"

// Sentinel errors returned by the pca package.
var (
	// ErrNilInput indicates a nil matrix was passed to Fit, Project or Reconstruct.
	ErrNilInput = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "pca: nil input matrix")

	// ErrEmptyFeatures indicates an explicitly empty feature subset.
	ErrEmptyFeatures = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "pca: empty feature set")

	// ErrFeatureIndex indicates a duplicate or out-of-range feature index.
	ErrFeatureIndex = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "pca: invalid feature index")

	// ErrBadComponents indicates d < 1 or d greater than the number of features.
	ErrBadComponents = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "pca: component count out of range")

	// ErrTooFewCells indicates fewer cells than components (or fewer than two cells).
	ErrTooFewCells = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "pca: fewer cells than components")

	// ErrBadOption indicates an unknown solver or a negative tuning value.
	ErrBadOption = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "pca: invalid option")

	// ErrShapeMismatch indicates a matrix whose width does not match the projector.
	ErrShapeMismatch = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "pca: matrix width does not match projector")

	// ErrFactorization indicates that the underlying SVD or eigen routine failed.
	ErrFactorization = mnncorrect.NewError(mnncorrect.ErrNumericalInstability, "pca: factorisation failed")

	// ErrRankDeficient indicates that the d-th singular value is negligible
	// relative to the first, so the requested embedding is not well defined.
	ErrRankDeficient = mnncorrect.NewError(mnncorrect.ErrNumericalInstability, "pca: rank deficient input")
)

// Solver selects the factorisation used by Fit.
type Solver int

const (
	// SolverSVD computes a thin SVD of the centred matrix (gonum).
	SolverSVD Solver = iota

	// SolverEigen diagonalises the sample covariance with Jacobi rotations.
	SolverEigen

	// SolverRandomized sketches the range of the centred matrix with a seeded
	// Gaussian test matrix, then solves a small exact SVD.
	SolverRandomized
)

// String returns the lower-case solver name used in configuration files.
func (s Solver) String() string {
	switch s {
	case SolverSVD:
		return "svd"
	case SolverEigen:
		return "eigen"
	case SolverRandomized:
		return "randomized"
	default:
		return "unknown"
	}
}

// ParseSolver maps a configuration name back to a Solver.
func ParseSolver(name string) (Solver, error) {
	switch name {
	case "", "svd":
		return SolverSVD, nil
	case "eigen":
		return SolverEigen, nil
	case "randomized":
		return SolverRandomized, nil
	default:
		return 0, ErrBadOption
	}
}

// Options configures Fit.
//
// Components      – number of principal components d (≥ 1).
// Features        – column subset of the input space; nil means all columns.
// Solver          – factorisation backend.
// Seed            – seed of the randomized solver's test matrix.
// Oversampling    – extra sketch columns of the randomized solver (≥ 0).
// PowerIterations – subspace iterations of the randomized solver (≥ 0).
// RankTolerance   – relative threshold below which the d-th singular value
// is treated as zero (≥ 0).
type Options struct {
	Components      int
	Features        []int
	Solver          Solver
	Seed            int64
	Oversampling    int
	PowerIterations int
	RankTolerance   float64

	featuresSet bool // distinguishes WithFeatures(nil/empty) from "all"
}

// Option represents a functional option for configuring Fit.
type Option func(*Options)

// DefaultOptions returns the defaults:
//   - Components:      50.
//   - Features:        all columns.
//   - Solver:          SolverSVD.
//   - Seed:            1.
//   - Oversampling:    10.
//   - PowerIterations: 2.
//   - RankTolerance:   1e-10.
func DefaultOptions() Options {
	return Options{
		Components:      50,
		Solver:          SolverSVD,
		Seed:            1,
		Oversampling:    10,
		PowerIterations: 2,
		RankTolerance:   1e-10,
	}
}

// WithComponents sets the number of principal components.
func WithComponents(d int) Option {
	return func(o *Options) { o.Components = d }
}

// WithFeatures restricts fitting and projection to the given input columns.
// The slice is copied; an empty slice is rejected by Fit with ErrEmptyFeatures.
func WithFeatures(cols []int) Option {
	return func(o *Options) {
		o.Features = append([]int(nil), cols...)
		o.featuresSet = true
	}
}

// WithSolver selects the factorisation backend.
func WithSolver(s Solver) Option {
	return func(o *Options) { o.Solver = s }
}

// WithSeed seeds the randomized solver.
func WithSeed(seed int64) Option {
	return func(o *Options) { o.Seed = seed }
}

// WithOversampling sets the randomized solver's extra sketch columns.
func WithOversampling(p int) Option {
	return func(o *Options) { o.Oversampling = p }
}

// WithPowerIterations sets the randomized solver's subspace iterations.
func WithPowerIterations(q int) Option {
	return func(o *Options) { o.PowerIterations = q }
}

// WithRankTolerance sets the relative rank-deficiency threshold.
func WithRankTolerance(tol float64) Option {
	return func(o *Options) { o.RankTolerance = tol }
}
