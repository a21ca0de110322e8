// SPDX-License-Identifier: MIT

package mnn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/mnncorrect"
	"github.com/katalvlaran/mnncorrect/matrix"
	"github.com/katalvlaran/mnncorrect/mnn"
)

func identityPairs(n int) mnn.PairSet {
	ps := make(mnn.PairSet, n)
	for i := range ps {
		ps[i] = mnn.Pair{A: i, B: i}
	}

	return ps
}

// TestEstimateShift covers A={[1,0],[1,1]}, B={[5,0],[5,1]} with k = 1.
func TestEstimateShift(t *testing.T) {
	A := rows(t, [][]float64{{1, 0}, {1, 1}})
	B := rows(t, [][]float64{{5, 0}, {5, 1}})

	pairs, err := mnn.MutualPairs(relations(t, B, A, 1))
	require.NoError(t, err)
	require.Equal(t, identityPairs(2), pairs)

	// pairs index B (A side of the relation) and A; estimate B towards A.
	corr, err := mnn.Estimate(mnn.EstimateInput{Reference: A, Target: B, Pairs: pairs.Reverse()})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, corr.Vector[0], 1e-9)
	assert.InDelta(t, 0.0, corr.Vector[1], 1e-9)
	assert.InDelta(t, 4.0, corr.Norm(), 1e-9)
	assert.Equal(t, 2, corr.Pairs)
	assert.Equal(t, 2, corr.PairedCells)
	assert.Equal(t, 1, corr.BioAxes)

	fixed, err := corr.Apply(B)
	require.NoError(t, err)
	CompareClose(t, fixed, A, 1e-9)

	lost, err := mnn.LostVariance(B, fixed)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, lost, 1e-9)
}

func TestEstimateNoPairs(t *testing.T) {
	A := rows(t, [][]float64{{1, 0}})
	_, err := mnn.Estimate(mnn.EstimateInput{Reference: A, Target: A})
	assert.ErrorIs(t, err, mnn.ErrNoPairs)
	assert.ErrorIs(t, err, mnncorrect.ErrNoMutualNeighbors)
}

// twoPopulations has two target subpopulations shifted by different amounts.
func twoPopulations(t *testing.T) (ref, tgt *matrix.Dense) {
	ref = rows(t, [][]float64{{0, 0}, {0, 1}, {10, 0}, {10, 1}})
	tgt = rows(t, [][]float64{{1, 0}, {1, 1}, {13, 0}, {13, 1}})

	return ref, tgt
}

func TestEstimateLocalKeepsSubpopulationEffects(t *testing.T) {
	ref, tgt := twoPopulations(t)
	in := mnn.EstimateInput{Reference: ref, Target: tgt, Pairs: identityPairs(4)}

	local, err := mnn.Estimate(in, mnn.WithBioDims(0))
	require.NoError(t, err)
	first, _ := local.PerCell.Row(0)
	last, _ := local.PerCell.Row(3)
	assert.InDelta(t, 1.0, first[0], 1e-6)
	assert.InDelta(t, 3.0, last[0], 1e-6)
	assert.Greater(t, local.Sigma2, 0.0)

	global, err := mnn.Estimate(in, mnn.WithBioDims(0), mnn.WithSmoothing(mnn.SmoothGlobal))
	require.NoError(t, err)
	for j := 0; j < 4; j++ {
		row, _ := global.PerCell.Row(j)
		assert.Equal(t, []float64{2, 0}, row)
	}
	assert.Zero(t, global.Sigma2)

	fixed, err := local.Apply(tgt)
	require.NoError(t, err)
	CompareClose(t, fixed, ref, 1e-6)
}

func TestEstimateWideKernelApproachesGlobal(t *testing.T) {
	ref, tgt := twoPopulations(t)
	in := mnn.EstimateInput{Reference: ref, Target: tgt, Pairs: identityPairs(4)}

	wide, err := mnn.Estimate(in, mnn.WithBioDims(0), mnn.WithSigma(1e12))
	require.NoError(t, err)
	for j := 0; j < 4; j++ {
		row, _ := wide.PerCell.Row(j)
		assert.InDelta(t, 2.0, row[0], 1e-6)
	}
}

func TestEstimateUnpairedCellsBorrowFromNeighbours(t *testing.T) {
	ref := rows(t, [][]float64{{0, 0}, {10, 0}})
	tgt := rows(t, [][]float64{{1, 0}, {1.2, 0.3}, {13, 0}, {12.8, 0.3}})
	pairs := mnn.PairSet{{A: 0, B: 0}, {A: 1, B: 2}}

	corr, err := mnn.Estimate(mnn.EstimateInput{Reference: ref, Target: tgt, Pairs: pairs}, mnn.WithBioDims(0))
	require.NoError(t, err)
	assert.Equal(t, 2, corr.PairedCells)
	near0, _ := corr.PerCell.Row(1)
	near2, _ := corr.PerCell.Row(3)
	assert.InDelta(t, 1.0, near0[0], 1e-6)
	assert.InDelta(t, 3.0, near2[0], 1e-6)
}

func TestEstimateOrthogonalisesAgainstBiology(t *testing.T) {
	// Target varies along x; the batch effect is [1,1].
	tgt := rows(t, [][]float64{{0, 0}, {10, 0.1}, {20, -0.1}})
	ref := rows(t, [][]float64{{-1, -1}, {9, -0.9}, {19, -1.1}})
	in := mnn.EstimateInput{Reference: ref, Target: tgt, Pairs: identityPairs(3)}

	plain, err := mnn.Estimate(in, mnn.WithBioDims(0))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, plain.Vector[0], 1e-9)
	assert.InDelta(t, 1.0, plain.Vector[1], 1e-9)
	assert.Zero(t, plain.BioAxes)

	ortho, err := mnn.Estimate(in, mnn.WithBioDims(1))
	require.NoError(t, err)
	assert.Equal(t, 1, ortho.BioAxes)
	assert.InDelta(t, 0.0, ortho.Vector[0], 0.05)
	assert.InDelta(t, 1.0, ortho.Vector[1], 0.05)

	// Bio dims beyond p−1 are capped rather than zeroing the correction.
	capped, err := mnn.Estimate(in, mnn.WithBioDims(10))
	require.NoError(t, err)
	assert.Equal(t, 1, capped.BioAxes)
	assert.Greater(t, capped.Norm(), 0.9)
}

func TestEstimateErrors(t *testing.T) {
	A := rows(t, [][]float64{{1, 0}, {2, 0}})
	narrow := rows(t, [][]float64{{1}, {2}})
	short := rows(t, [][]float64{{1, 0}})
	good := mnn.EstimateInput{Reference: A, Target: A, Pairs: identityPairs(2)}

	cases := []struct {
		name string
		in   mnn.EstimateInput
		opts []mnn.Option
		want error
	}{
		{"zero sigma", good, []mnn.Option{mnn.WithSigma(0)}, mnn.ErrBadOption},
		{"negative bio dims", good, []mnn.Option{mnn.WithBioDims(-1)}, mnn.ErrBadOption},
		{"unknown smoothing", good, []mnn.Option{mnn.WithSmoothing(mnn.Smoothing(7))}, mnn.ErrBadOption},
		{"nil target", mnn.EstimateInput{Reference: A, Pairs: identityPairs(1)}, nil, mnn.ErrShapeMismatch},
		{"width mismatch", mnn.EstimateInput{Reference: A, Target: narrow, Pairs: identityPairs(1)}, nil, mnn.ErrShapeMismatch},
		{"kernel rows", mnn.EstimateInput{Reference: A, Target: A, TargetKernel: short, Pairs: identityPairs(1)}, nil, mnn.ErrShapeMismatch},
		{"pair outside", mnn.EstimateInput{Reference: A, Target: A, Pairs: mnn.PairSet{{A: 0, B: 5}}}, nil, mnn.ErrShapeMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mnn.Estimate(tc.in, tc.opts...)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, mnncorrect.ErrInvalidInput)
		})
	}

	corr, err := mnn.Estimate(good)
	require.NoError(t, err)
	_, err = corr.Apply(narrow)
	assert.ErrorIs(t, err, mnn.ErrShapeMismatch)
}

func TestLostVariance(t *testing.T) {
	X := gaussian(t, 50, 3, 0, 11)

	lost, err := mnn.LostVariance(X, X.Clone())
	require.NoError(t, err)
	assert.Zero(t, lost)

	flat, err := matrix.NewDense(50, 3)
	require.NoError(t, err)
	lost, err = mnn.LostVariance(X, flat)
	require.NoError(t, err)
	assert.Equal(t, 1.0, lost)

	// More variance after correction clamps to 0.
	wide, err := matrix.Scale(X, 3)
	require.NoError(t, err)
	lost, err = mnn.LostVariance(X, wide)
	require.NoError(t, err)
	assert.Zero(t, lost)

	half, err := matrix.Scale(X, 0.5)
	require.NoError(t, err)
	lost, err = mnn.LostVariance(X, half)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, lost, 1e-12)

	single := rows(t, [][]float64{{1, 2, 3}})
	lost, err = mnn.LostVariance(single, single)
	require.NoError(t, err)
	assert.Zero(t, lost)

	_, err = mnn.LostVariance(X, single)
	assert.ErrorIs(t, err, mnn.ErrShapeMismatch)
}

func TestLostVarianceWithinBounds(t *testing.T) {
	ref := gaussian(t, 80, 4, 0, 21)
	tgt := gaussian(t, 70, 4, 2, 22)

	for _, k := range []int{1, 5, 15} {
		pairs, err := mnn.MutualPairs(relations(t, tgt, ref, k))
		require.NoError(t, err)
		require.NotZero(t, pairs.Len())
		corr, err := mnn.Estimate(mnn.EstimateInput{Reference: ref, Target: tgt, Pairs: pairs.Reverse()})
		require.NoError(t, err)
		fixed, err := corr.Apply(tgt)
		require.NoError(t, err)
		lost, err := mnn.LostVariance(tgt, fixed)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, lost, 0.0)
		assert.LessOrEqual(t, lost, 1.0)
	}
}

func CompareClose(t *testing.T, a, b *matrix.Dense, atol float64) {
	t.Helper()
	ok, err := matrix.AllClose(a, b, 0, atol)
	require.NoError(t, err)
	assert.True(t, ok, "got\n%v\nwant\n%v", a, b)
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, mnn.DefaultOptions().Validate())

	bad := map[string]mnn.Options{
		"sigma zero":        {Sigma: 0, BioDims: 2},
		"sigma negative":    {Sigma: -1},
		"bio dims negative": {Sigma: 0.1, BioDims: -1},
		"unknown smoothing": {Sigma: 0.1, Smoothing: mnn.Smoothing(3)},
	}
	for name, o := range bad {
		t.Run(name, func(t *testing.T) {
			err := o.Validate()
			assert.ErrorIs(t, err, mnn.ErrBadOption)
			assert.ErrorIs(t, err, mnncorrect.ErrInvalidInput)
		})
	}
}
