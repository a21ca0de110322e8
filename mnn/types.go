// SPDX-License-Identifier: MIT

package mnn

import (
	"math"

	"github.com/katalvlaran/mnncorrect"
)

// Sentinel errors returned by the mnn package.
var (
	// ErrNilRelation indicates a nil neighbour relation.
	ErrNilRelation = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "mnn: nil neighbour relation")

	// ErrRelationShape indicates two relations that do not describe the same
	// pair of batches (sizes disagree or an index is out of range).
	ErrRelationShape = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "mnn: relations do not describe the same batches")

	// ErrShapeMismatch indicates estimator inputs of incompatible shapes.
	ErrShapeMismatch = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "mnn: input shapes do not match")

	// ErrBadOption indicates a non-positive sigma, negative bio dims or an
	// unknown smoothing mode.
	ErrBadOption = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "mnn: invalid option")

	// ErrNoPairs indicates an empty pair set.
	ErrNoPairs = mnncorrect.NewError(mnncorrect.ErrNoMutualNeighbors, "mnn: no mutual nearest neighbour pairs")

	// ErrNonFinite indicates a correction that overflowed or became NaN.
	ErrNonFinite = mnncorrect.NewError(mnncorrect.ErrNumericalInstability, "mnn: non-finite correction")
)

// Smoothing selects how paired-cell differences reach unpaired cells.
type Smoothing int

const (
	// SmoothLocal gives each target cell a Gaussian-kernel weighted average
	// of the paired cells' differences.
	SmoothLocal Smoothing = iota

	// SmoothGlobal applies the mean of all pair differences to every cell.
	SmoothGlobal
)

// String returns the configuration name.
func (s Smoothing) String() string {
	switch s {
	case SmoothLocal:
		return "local"
	case SmoothGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// ParseSmoothing maps a configuration name to a Smoothing.
func ParseSmoothing(name string) (Smoothing, error) {
	switch name {
	case "", "local":
		return SmoothLocal, nil
	case "global":
		return SmoothGlobal, nil
	default:
		return 0, ErrBadOption
	}
}

// Options configures Estimate.
//   - Sigma: relative kernel bandwidth (> 0). σ² = Sigma · spread², where
//     spread² is the median squared distance of target cells to their
//     centroid in kernel space.
//   - Smoothing: SmoothLocal or SmoothGlobal.
//   - BioDims: number of target principal axes the correction is made
//     orthogonal to (≥ 0, 0 disables). Capped at p−1 and at the batch rank.
type Options struct {
	Sigma     float64
	Smoothing Smoothing
	BioDims   int
}

// Validate returns ErrBadOption for a non-positive or infinite Sigma, a
// negative BioDims or an unknown Smoothing.
func (o Options) Validate() error {
	if !(o.Sigma > 0) || math.IsInf(o.Sigma, 0) || o.BioDims < 0 {
		return ErrBadOption
	}
	if o.Smoothing != SmoothLocal && o.Smoothing != SmoothGlobal {
		return ErrBadOption
	}

	return nil
}

// Option represents a functional option for configuring Estimate.
type Option func(*Options)

// DefaultOptions returns Sigma 0.1, SmoothLocal and BioDims 2.
func DefaultOptions() Options {
	return Options{Sigma: 0.1, Smoothing: SmoothLocal, BioDims: 2}
}

// WithSigma sets the relative kernel bandwidth.
func WithSigma(s float64) Option {
	return func(o *Options) { o.Sigma = s }
}

// WithSmoothing selects the smoothing mode.
func WithSmoothing(s Smoothing) Option {
	return func(o *Options) { o.Smoothing = s }
}

// WithBioDims sets how many biological axes the correction avoids.
func WithBioDims(m int) Option {
	return func(o *Options) { o.BioDims = m }
}
