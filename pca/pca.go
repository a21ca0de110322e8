// SPDX-License-Identifier: MIT

package pca

import (
	"fmt"
	"math"

	"github.com/katalvlaran/mnncorrect/matrix"
)

// Projector maps expression profiles into the fitted principal-component
// space and back. It is immutable after Fit and safe for concurrent use.
type Projector struct {
	inputCols int
	// selected input columns, in fitting order, and their joint means
	features []int
	center   []float64
	// |features| × d, orthonormal columns
	rotation *matrix.Dense
	// per-component sample variance and total variance of the features
	variance []float64
	total    float64
	solver   Solver
}

// Fit fits a Projector on X (cells × genes, all batches stacked).
//
// Implementation:
//   - Stage 1: validate X and options; resolve the feature subset.
//   - Stage 2: centre the selected columns by their joint means.
//   - Stage 3: factorise with the chosen solver, keep d components.
//   - Stage 4: reject a negligible d-th singular value; fix signs.
//
// Complexity: SVD O(n·p·min(n,p)); Eigen O(n·p² + p³); Randomized O(n·p·l·(q+1)).
func Fit(X *matrix.Dense, opts ...Option) (*Projector, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if X == nil {
		return nil, ErrNilInput
	}
	if err := matrix.ValidateFinite(X); err != nil {
		return nil, fmt.Errorf("pca: Fit: %w", err)
	}
	if o.Oversampling < 0 || o.PowerIterations < 0 || o.RankTolerance < 0 || math.IsNaN(o.RankTolerance) {
		return nil, ErrBadOption
	}

	features, err := resolveFeatures(X.Cols(), o)
	if err != nil {
		return nil, err
	}
	d := o.Components
	if d < 1 || d > len(features) {
		return nil, fmt.Errorf("pca: Fit: d=%d with %d features: %w", d, len(features), ErrBadComponents)
	}
	if X.Rows() < d || X.Rows() < 2 {
		return nil, fmt.Errorf("pca: Fit: %d cells for d=%d: %w", X.Rows(), d, ErrTooFewCells)
	}

	Xs, err := X.Induced(nil, features)
	if err != nil {
		return nil, fmt.Errorf("pca: Fit: %w", err)
	}
	Xc, center, err := matrix.CenterColumns(Xs)
	if err != nil {
		return nil, fmt.Errorf("pca: Fit: %w", err)
	}
	total, err := matrix.TotalVariance(Xs)
	if err != nil {
		return nil, fmt.Errorf("pca: Fit: %w", err)
	}

	var (
		V *matrix.Dense
		s []float64 // singular values of Xc, descending, len ≥ d
	)
	switch o.Solver {
	case SolverSVD:
		V, s, err = solveSVD(Xc, d)
	case SolverEigen:
		V, s, err = solveEigen(Xc, d)
	case SolverRandomized:
		V, s, err = solveRandomized(Xc, d, o)
	default:
		return nil, ErrBadOption
	}
	if err != nil {
		return nil, fmt.Errorf("pca: Fit (%s): %w", o.Solver, err)
	}
	if len(s) < d || s[0] == 0 || s[d-1] <= o.RankTolerance*s[0] {
		return nil, fmt.Errorf("pca: Fit (%s): d=%d: %w", o.Solver, d, ErrRankDeficient)
	}
	if err = matrix.CanonicalSigns(V); err != nil {
		return nil, fmt.Errorf("pca: Fit: %w", err)
	}

	variance := make([]float64, d)
	inv := 1.0 / float64(X.Rows()-1)
	for k := 0; k < d; k++ {
		variance[k] = s[k] * s[k] * inv
	}

	return &Projector{
		inputCols: X.Cols(),
		features:  features,
		center:    center,
		rotation:  V,
		variance:  variance,
		total:     total,
		solver:    o.Solver,
	}, nil
}

// resolveFeatures validates the requested subset (or returns all columns).
func resolveFeatures(cols int, o Options) ([]int, error) {
	if !o.featuresSet {
		all := make([]int, cols)
		for j := range all {
			all[j] = j
		}
		return all, nil
	}
	if len(o.Features) == 0 {
		return nil, ErrEmptyFeatures
	}
	seen := make(map[int]struct{}, len(o.Features))
	for _, f := range o.Features {
		if f < 0 || f >= cols {
			return nil, fmt.Errorf("pca: feature %d outside [0,%d): %w", f, cols, ErrFeatureIndex)
		}
		if _, dup := seen[f]; dup {
			return nil, fmt.Errorf("pca: feature %d listed twice: %w", f, ErrFeatureIndex)
		}
		seen[f] = struct{}{}
	}

	return append([]int(nil), o.Features...), nil
}

// Components returns d.
func (p *Projector) Components() int { return p.rotation.Cols() }

// InputCols returns the width of matrices accepted by Project and Select.
func (p *Projector) InputCols() int { return p.inputCols }

// Solver returns the solver used for fitting.
func (p *Projector) Solver() Solver { return p.solver }

// Features returns a copy of the selected input columns.
func (p *Projector) Features() []int { return append([]int(nil), p.features...) }

// Center returns a copy of the joint column means of the selected features.
func (p *Projector) Center() []float64 { return append([]float64(nil), p.center...) }

// Rotation returns a copy of the |features| × d rotation matrix.
func (p *Projector) Rotation() *matrix.Dense { return p.rotation.Clone() }

// Variance returns the sample variance captured by each component.
func (p *Projector) Variance() []float64 { return append([]float64(nil), p.variance...) }

// ExplainedRatio returns each component's share of the total variance of the
// selected features. The ratios sum to at most 1 (exactly 1 when d spans the data).
func (p *Projector) ExplainedRatio() []float64 {
	out := make([]float64, len(p.variance))
	if p.total == 0 {
		return out
	}
	for k, v := range p.variance {
		out[k] = v / p.total
	}

	return out
}

// Select returns X restricted to the projector's features (cells × |features|).
func (p *Projector) Select(X *matrix.Dense) (*matrix.Dense, error) {
	if X == nil {
		return nil, ErrNilInput
	}
	if X.Cols() != p.inputCols {
		return nil, fmt.Errorf("pca: Select: %d cols, want %d: %w", X.Cols(), p.inputCols, ErrShapeMismatch)
	}

	return X.Induced(nil, p.features)
}

// Project maps X (cells × InputCols) to cells × d coordinates.
// Complexity: O(n·|features|·d).
func (p *Projector) Project(X *matrix.Dense) (*matrix.Dense, error) {
	Xs, err := p.Select(X)
	if err != nil {
		return nil, err
	}

	return p.ProjectSelected(Xs)
}

// ProjectSelected maps an already feature-restricted matrix
// (cells × |features|) to cells × d coordinates: (Xs − centre)·R.
func (p *Projector) ProjectSelected(Xs *matrix.Dense) (*matrix.Dense, error) {
	if Xs == nil {
		return nil, ErrNilInput
	}
	if nf := len(p.features); Xs.Cols() != nf {
		return nil, fmt.Errorf("pca: Project: %d cols, want %d: %w", Xs.Cols(), nf, ErrShapeMismatch)
	}
	Xc, err := matrix.SubRowVector(Xs, p.center)
	if err != nil {
		return nil, fmt.Errorf("pca: Project: %w", err)
	}
	Y, err := matrix.Mul(Xc, p.rotation)
	if err != nil {
		return nil, fmt.Errorf("pca: Project: %w", err)
	}

	return Y, nil
}

// Reconstruct maps cells × d coordinates back to the selected feature space:
// Y·Rᵀ + centre. Reconstruct(Project(X)) recovers X[:, features] exactly when
// d spans the centred data.
func (p *Projector) Reconstruct(Y *matrix.Dense) (*matrix.Dense, error) {
	if Y == nil {
		return nil, ErrNilInput
	}
	if d := p.rotation.Cols(); Y.Cols() != d {
		return nil, fmt.Errorf("pca: Reconstruct: %d cols, want %d: %w", Y.Cols(), d, ErrShapeMismatch)
	}
	Rt, err := matrix.Transpose(p.rotation)
	if err != nil {
		return nil, fmt.Errorf("pca: Reconstruct: %w", err)
	}
	Xc, err := matrix.Mul(Y, Rt)
	if err != nil {
		return nil, fmt.Errorf("pca: Reconstruct: %w", err)
	}
	X, err := matrix.AddRowVector(Xc, p.center)
	if err != nil {
		return nil, fmt.Errorf("pca: Reconstruct: %w", err)
	}

	return X, nil
}
