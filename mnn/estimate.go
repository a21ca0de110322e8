// SPDX-License-Identifier: MIT

package mnn

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/katalvlaran/mnncorrect/matrix"
)

// axisTolerance drops principal axes whose singular value is below this
// fraction of the first when building the biological subspace.
const axisTolerance = 1e-8

// EstimateInput carries one merge step's data.
//
// Reference and Target are in the space the correction is applied in
// (expression or embedding). TargetKernel holds the coordinates used for the
// smoothing weights (usually the embedding); nil means Target itself.
// Pairs index Reference rows (A) and Target rows (B).
type EstimateInput struct {
	Reference    *matrix.Dense
	Target       *matrix.Dense
	TargetKernel *matrix.Dense
	Pairs        PairSet
}

// Correction is the estimated batch effect of one merge step.
type Correction struct {
	// Vector is the mean of the per-cell vectors: the step's correction vector.
	Vector []float64
	// PerCell holds one smoothed, orthogonalised vector per target cell.
	PerCell *matrix.Dense
	// Pairs is the number of MNN pairs and PairedCells the distinct target
	// cells among them.
	Pairs       int
	PairedCells int
	// BioAxes is the number of biological axes actually projected out.
	BioAxes int
	// Sigma2 is the absolute squared bandwidth used (0 under SmoothGlobal).
	Sigma2 float64
}

// Norm returns the Euclidean norm of Vector.
func (c *Correction) Norm() float64 { return floats.Norm(c.Vector, 2) }

// Apply returns target − PerCell. target must have PerCell's shape.
func (c *Correction) Apply(target *matrix.Dense) (*matrix.Dense, error) {
	if err := matrix.ValidateSameShape(target, c.PerCell); err != nil {
		return nil, fmt.Errorf("mnn: Apply: %w", ErrShapeMismatch)
	}
	out := make([]float64, len(target.RawData()))
	floats.SubTo(out, target.RawData(), c.PerCell.RawData())

	return matrix.NewDenseFrom(target.Rows(), target.Cols(), out)
}

// Estimate computes the per-cell correction of Target towards Reference.
//
// Implementation:
//   - Stage 1: validate options, shapes and pair indices.
//   - Stage 2: per paired target cell, average target[b] − reference[a].
//   - Stage 3: smooth onto every target cell (local Gaussian kernel with
//     log-sum-exp normalisation, or the global pair mean).
//   - Stage 4: project each vector off the target's leading BioDims axes.
//
// Complexity: O(P·p + nT·|paired|·d + nT·p·BioDims) plus one thin SVD of the
// target for the biological axes.
func Estimate(in EstimateInput, opts ...Option) (*Correction, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if in.Reference == nil || in.Target == nil {
		return nil, fmt.Errorf("mnn: nil reference or target: %w", ErrShapeMismatch)
	}
	if in.Reference.Cols() != in.Target.Cols() {
		return nil, fmt.Errorf("mnn: reference has %d cols, target %d: %w", in.Reference.Cols(), in.Target.Cols(), ErrShapeMismatch)
	}
	kernel := in.TargetKernel
	if kernel == nil {
		kernel = in.Target
	}
	if kernel.Rows() != in.Target.Rows() {
		return nil, fmt.Errorf("mnn: kernel has %d rows, target %d: %w", kernel.Rows(), in.Target.Rows(), ErrShapeMismatch)
	}
	if len(in.Pairs) == 0 {
		return nil, ErrNoPairs
	}
	nR, nT, p := in.Reference.Rows(), in.Target.Rows(), in.Target.Cols()
	for _, pr := range in.Pairs {
		if pr.A < 0 || pr.A >= nR || pr.B < 0 || pr.B >= nT {
			return nil, fmt.Errorf("mnn: pair (%d,%d) outside %d×%d: %w", pr.A, pr.B, nR, nT, ErrShapeMismatch)
		}
	}

	// Stage 2: per paired target cell sums and counts.
	paired := in.Pairs.TargetCells()
	slot := make(map[int]int, len(paired))
	for s, b := range paired {
		slot[b] = s
	}
	centroids := make([][]float64, len(paired))
	counts := make([]float64, len(paired))
	for s := range centroids {
		centroids[s] = make([]float64, p)
	}
	global := make([]float64, p)
	diff := make([]float64, p)
	R, T := in.Reference.RawData(), in.Target.RawData()
	for _, pr := range in.Pairs {
		floats.SubTo(diff, T[pr.B*p:(pr.B+1)*p], R[pr.A*p:(pr.A+1)*p])
		s := slot[pr.B]
		floats.Add(centroids[s], diff)
		floats.Add(global, diff)
		counts[s]++
	}
	for s := range centroids {
		floats.Scale(1/counts[s], centroids[s])
	}
	floats.Scale(1/float64(len(in.Pairs)), global)

	// Stage 3: smoothing.
	per := make([]float64, nT*p)
	var sigma2 float64
	if o.Smoothing == SmoothLocal {
		sigma2 = o.Sigma * medianSpread2(kernel)
	}
	if sigma2 == 0 {
		for j := 0; j < nT; j++ {
			copy(per[j*p:(j+1)*p], global)
		}
	} else {
		smoothLocal(per, kernel, paired, centroids, counts, sigma2)
	}

	PerCell, err := matrix.NewDenseFrom(nT, p, per)
	if err != nil {
		return nil, fmt.Errorf("mnn: %w", ErrNonFinite)
	}

	// Stage 4: orthogonalise against biological axes of the target.
	axes := o.BioDims
	if axes > p-1 {
		axes = p - 1
	}
	var bio int
	if axes > 0 && nT >= 2 {
		V, _, err := matrix.PrincipalAxes(in.Target, axes, axisTolerance)
		switch {
		case errors.Is(err, matrix.ErrRankDeficient):
			// constant batch: no biological direction to protect
		case err != nil:
			return nil, fmt.Errorf("mnn: biological axes: %w", err)
		default:
			bio = V.Cols()
			for j := 0; j < nT; j++ {
				row, _ := PerCell.RowView(j)
				if err = matrix.ProjectOut(row, V); err != nil {
					return nil, fmt.Errorf("mnn: %w", err)
				}
			}
		}
	}
	if err = matrix.ValidateFinite(PerCell); err != nil {
		return nil, ErrNonFinite
	}

	vector, err := matrix.ColumnMeans(PerCell)
	if err != nil {
		return nil, fmt.Errorf("mnn: %w", err)
	}

	return &Correction{
		Vector:      vector,
		PerCell:     PerCell,
		Pairs:       len(in.Pairs),
		PairedCells: len(paired),
		BioAxes:     bio,
		Sigma2:      sigma2,
	}, nil
}

// smoothLocal writes into per (nT×p) the kernel-weighted average of the
// paired centroids for every target cell:
//
//	w_jt ∝ count_t · exp(−‖x_j − x_t‖² / σ²)
//
// Weights are normalised in log space (subtracting the largest exponent),
// so distant cells still receive the average of their nearest paired cells
// instead of an underflowed 0/0.
func smoothLocal(per []float64, kernel *matrix.Dense, paired []int, centroids [][]float64, counts []float64, sigma2 float64) {
	nT := kernel.Rows()
	p := len(centroids[0])
	logw := make([]float64, len(paired))
	for j := 0; j < nT; j++ {
		xj, _ := kernel.RowView(j)
		maxLog := math.Inf(-1)
		for s, t := range paired {
			xt, _ := kernel.RowView(t)
			d := floats.Distance(xj, xt, 2)
			logw[s] = math.Log(counts[s]) - d*d/sigma2
			if logw[s] > maxLog {
				maxLog = logw[s]
			}
		}
		out := per[j*p : (j+1)*p]
		var total float64
		for s := range paired {
			w := math.Exp(logw[s] - maxLog)
			if w == 0 {
				continue
			}
			floats.AddScaled(out, w, centroids[s])
			total += w
		}
		floats.Scale(1/total, out)
	}
}

// medianSpread2 returns the median squared distance of K's rows to their centroid.
func medianSpread2(K *matrix.Dense) float64 {
	centre, err := matrix.ColumnMeans(K)
	if err != nil {
		return 0
	}
	n := K.Rows()
	d2 := make([]float64, n)
	for i := 0; i < n; i++ {
		row, _ := K.RowView(i)
		d := floats.Distance(row, centre, 2)
		d2[i] = d * d
	}
	sort.Float64s(d2)
	if n%2 == 1 {
		return d2[n/2]
	}

	return (d2[n/2-1] + d2[n/2]) / 2
}

// LostVariance returns the share of before's total within-batch variance
// that is missing from after: clamp((V(before) − V(after)) / V(before), 0, 1).
// It is 0 when before has no variance (single cell or constant batch), and
// exactly 0 when after equals before.
func LostVariance(before, after *matrix.Dense) (float64, error) {
	if err := matrix.ValidateSameShape(before, after); err != nil {
		return 0, fmt.Errorf("mnn: LostVariance: %w", ErrShapeMismatch)
	}
	vb, err := matrix.TotalVariance(before)
	if err != nil {
		return 0, fmt.Errorf("mnn: LostVariance: %w", err)
	}
	if vb == 0 {
		return 0, nil
	}
	va, err := matrix.TotalVariance(after)
	if err != nil {
		return 0, fmt.Errorf("mnn: LostVariance: %w", err)
	}
	f := (vb - va) / vb

	return math.Min(1, math.Max(0, f)), nil
}
