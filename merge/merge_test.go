// SPDX-License-Identifier: MIT

package merge_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/katalvlaran/mnncorrect"
	"github.com/katalvlaran/mnncorrect/matrix"
	"github.com/katalvlaran/mnncorrect/merge"
	"github.com/katalvlaran/mnncorrect/mnn"
	"github.com/katalvlaran/mnncorrect/neighbors"
	"github.com/katalvlaran/mnncorrect/pca"
)

func rows(t testing.TB, r [][]float64) *matrix.Dense {
	t.Helper()
	m, err := matrix.NewDenseRows(r)
	require.NoError(t, err)

	return m
}

// shiftBatches is A={[1,0],[1,1]}, B={[5,0],[5,1]}.
func shiftBatches(t testing.TB) []merge.Batch {
	return []merge.Batch{
		{Name: "A", X: rows(t, [][]float64{{1, 0}, {1, 1}})},
		{Name: "B", X: rows(t, [][]float64{{5, 0}, {5, 1}})},
	}
}

// clustered draws left cells around (−8,0,0) and right cells around (8,0,0),
// both translated by shift, with unit noise.
func clustered(t testing.TB, name string, left, right int, shift [3]float64, seed int64) merge.Batch {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	n := left + right
	data := make([]float64, 0, n*3)
	for i := 0; i < n; i++ {
		cx := -8.0
		if i >= left {
			cx = 8
		}
		data = append(data,
			cx+shift[0]+rng.NormFloat64(),
			shift[1]+rng.NormFloat64(),
			shift[2]+rng.NormFloat64())
	}
	X, err := matrix.NewDenseFrom(n, 3, data)
	require.NoError(t, err)

	return merge.Batch{Name: name, X: X}
}

func maxAbsDiff(a, b *matrix.Dense) float64 {
	var m float64
	for k, v := range a.RawData() {
		m = math.Max(m, math.Abs(v-b.RawData()[k]))
	}

	return m
}

func TestMergerStateMachine(t *testing.T) {
	ctx := context.Background()
	batches := shiftBatches(t)
	m, err := merge.New(batches, merge.WithK(1), merge.WithComponents(2))
	require.NoError(t, err)
	assert.Equal(t, merge.StatePending, m.State())
	assert.Nil(t, m.Projector())

	_, err = m.Result()
	assert.ErrorIs(t, err, merge.ErrNotMerged)

	seed, err := m.Step(ctx)
	require.NoError(t, err)
	assert.True(t, seed.Seeded)
	assert.Equal(t, 0, seed.Batch)
	assert.Equal(t, merge.StateReference, m.State())
	assert.Equal(t, []int{0}, m.Order())
	require.NotNil(t, m.Projector())

	step, err := m.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, step.Step)
	assert.Equal(t, "B", step.Name)
	assert.Equal(t, 2, step.Pairs)
	assert.InDelta(t, 4.0, step.Correction[0], 1e-9)
	assert.InDelta(t, 0.0, step.Correction[1], 1e-9)
	assert.InDelta(t, 0.0, step.LostVariance, 1e-9)
	assert.Equal(t, merge.StateMerged, m.State())

	_, err = m.Step(ctx)
	assert.ErrorIs(t, err, merge.ErrAlreadyMerged)

	res, err := m.Result()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, res.Order)
	assert.Equal(t, []string{"A", "B"}, res.Names)
	assert.Equal(t, []int{0, 1}, res.Features)
	assert.Less(t, maxAbsDiff(res.Expression[1], batches[0].X), 1e-9)
	assert.Less(t, maxAbsDiff(res.Expression[0], batches[0].X), 1e-12)
	assert.Len(t, res.Steps, 2)

	d := res.Diagnostics
	assert.Equal(t, []int{0, 1}, d.Order)
	require.Len(t, d.LostVariance, 1)
	assert.Len(t, d.LostVariance[0], 2)
	assert.Zero(t, d.LostVariance[0][0])
	assert.Equal(t, []int{2}, d.PairCounts)
	assert.InDelta(t, 4.0, d.CorrectionNorms[0], 1e-9)
}

func TestCorrectEmbeddingSpace(t *testing.T) {
	batches := shiftBatches(t)
	res, err := merge.Correct(context.Background(), batches,
		merge.WithK(1), merge.WithComponents(2), merge.WithSpace(merge.SpaceEmbedding))
	require.NoError(t, err)

	// Full-rank embedding: reconstruction recovers the corrected expression.
	assert.Less(t, maxAbsDiff(res.Expression[1], batches[0].X), 1e-9)
	assert.Less(t, maxAbsDiff(res.Coordinates[1], res.Coordinates[0]), 1e-9)
	assert.InDelta(t, 4.0, res.Diagnostics.CorrectionNorms[0], 1e-9)
}

func TestStepErrorKeepsStateAndAllowsRetry(t *testing.T) {
	ctx := context.Background()
	m, err := merge.New(shiftBatches(t), merge.WithK(5), merge.WithComponents(2))
	require.NoError(t, err)

	_, err = m.Step(ctx)
	require.NoError(t, err)

	_, err = m.Step(ctx)
	require.Error(t, err)
	var se *merge.StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Step)
	assert.Equal(t, 1, se.Batch)
	assert.Equal(t, "B", se.Name)
	assert.ErrorIs(t, err, mnncorrect.ErrInvalidInput)
	assert.Contains(t, err.Error(), "step 1")

	assert.Equal(t, merge.StateReference, m.State())
	assert.Equal(t, []int{0}, m.Order())
	assert.Len(t, m.Steps(), 1)

	require.NoError(t, m.SetK(1))
	assert.Equal(t, 1, m.K())
	res, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, res.Order)
	assert.ErrorIs(t, m.SetK(0), merge.ErrBadOption)
}

func TestSeedFailureStaysPending(t *testing.T) {
	// Default 50 components exceed the two genes.
	m, err := merge.New(shiftBatches(t), merge.WithK(1))
	require.NoError(t, err)

	_, err = m.Run(context.Background())
	var se *merge.StepError
	require.True(t, errors.As(err, &se))
	assert.Zero(t, se.Step)
	assert.ErrorIs(t, err, pca.ErrBadComponents)
	assert.Equal(t, merge.StatePending, m.State())
}

func TestMinPairsReportsNoMutualNeighbors(t *testing.T) {
	_, err := merge.Correct(context.Background(), shiftBatches(t),
		merge.WithK(1), merge.WithComponents(2), merge.WithMinPairs(3))
	assert.ErrorIs(t, err, merge.ErrTooFewPairs)
	assert.ErrorIs(t, err, mnncorrect.ErrNoMutualNeighbors)
}

func TestSingleBatch(t *testing.T) {
	b := shiftBatches(t)[:1]
	res, err := merge.Correct(context.Background(), b, merge.WithComponents(1))
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Order)
	assert.Empty(t, res.Diagnostics.LostVariance)
}

func TestNewValidation(t *testing.T) {
	good := shiftBatches(t)
	wide := rows(t, [][]float64{{1, 2, 3}})

	cases := []struct {
		name    string
		batches []merge.Batch
		opts    []merge.Option
		want    error
	}{
		{"no batches", nil, nil, merge.ErrNoBatches},
		{"nil matrix", []merge.Batch{{Name: "x"}}, nil, merge.ErrBatchShape},
		{"gene mismatch", []merge.Batch{good[0], {Name: "w", X: wide}}, nil, merge.ErrBatchShape},
		{"k zero", good, []merge.Option{merge.WithK(0)}, merge.ErrBadOption},
		{"workers zero", good, []merge.Option{merge.WithWorkers(0)}, merge.ErrBadOption},
		{"bad space", good, []merge.Option{merge.WithSpace(merge.Space(5))}, merge.ErrBadOption},
		{"order and auto", good, []merge.Option{merge.WithOrder([]int{1, 0}), merge.WithAutoOrder()}, merge.ErrBadOption},
		{"order too short", good, []merge.Option{merge.WithOrder([]int{0})}, merge.ErrBadOrder},
		{"order duplicate", good, []merge.Option{merge.WithOrder([]int{1, 1})}, merge.ErrBadOrder},
		{"order out of range", good, []merge.Option{merge.WithOrder([]int{0, 2})}, merge.ErrBadOrder},
		{"sigma zero", good, []merge.Option{merge.WithSigma(0)}, merge.ErrBadOption},
		{"sigma infinite", good, []merge.Option{merge.WithSigma(math.Inf(1))}, merge.ErrBadOption},
		{"bio dims negative", good, []merge.Option{merge.WithBioDims(-1)}, merge.ErrBadOption},
		{"bad smoothing", good, []merge.Option{merge.WithSmoothing(mnn.Smoothing(7))}, merge.ErrBadOption},
		{"bad metric", good, []merge.Option{merge.WithMetric(neighbors.Metric(99))}, merge.ErrBadOption},
		{"bad index", good, []merge.Option{merge.WithIndex(neighbors.Index(99))}, merge.ErrBadOption},
		{"bad solver", good, []merge.Option{merge.WithSolver(pca.Solver(9))}, merge.ErrBadOption},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := merge.New(tc.batches, tc.opts...)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, mnncorrect.ErrInvalidInput)
		})
	}
}

func TestNewRejectsStageOptionsBeforeSeeding(t *testing.T) {
	m, err := merge.New(shiftBatches(t), merge.WithK(1), merge.WithComponents(2), merge.WithSigma(0))
	require.Nil(t, m)
	assert.ErrorIs(t, err, merge.ErrBadOption)
	assert.ErrorIs(t, err, mnn.ErrBadOption)

	_, err = merge.New(shiftBatches(t), merge.WithMetric(neighbors.Metric(99)))
	assert.ErrorIs(t, err, neighbors.ErrBadOption)

	// A valid configuration seeds and merges without a stranded reference.
	m, err = merge.New(shiftBatches(t), merge.WithK(1), merge.WithComponents(2), merge.WithSigma(0.5))
	require.NoError(t, err)
	_, err = m.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, merge.StateReference, m.State())
	_, err = m.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, merge.StateMerged, m.State())
}

func TestSeedEmbedsEveryBatchWithJointProjector(t *testing.T) {
	batches := []merge.Batch{
		clustered(t, "a", 6, 4, [3]float64{0, 0, 0}, 3),
		clustered(t, "b", 3, 5, [3]float64{0, 2, 1}, 4),
	}
	m, err := merge.New(batches, merge.WithK(3), merge.WithComponents(3), merge.WithOrder([]int{1, 0}))
	require.NoError(t, err)
	_, err = m.Step(context.Background())
	require.NoError(t, err)
	proj := m.Projector()
	require.NotNil(t, proj)

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	// The reference batch is never corrected, so its coordinates are the
	// projector applied to that batch alone.
	want, err := proj.Project(batches[1].X)
	require.NoError(t, err)
	require.Equal(t, 8, res.Coordinates[1].Rows())
	assert.Less(t, maxAbsDiff(want, res.Coordinates[1]), 1e-9)
	assert.Equal(t, 10, res.Coordinates[0].Rows())
}

func TestMergeLogsSteps(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	_, err := merge.Correct(context.Background(), shiftBatches(t),
		merge.WithK(1), merge.WithComponents(2), merge.WithLogger(zap.New(core)))
	require.NoError(t, err)

	require.Equal(t, 1, logs.FilterMessage("reference seeded").Len())
	merged := logs.FilterMessage("batch merged").All()
	require.Len(t, merged, 1)
	assert.Equal(t, int64(2), merged[0].ContextMap()["pairs"])
	assert.Equal(t, "B", merged[0].ContextMap()["batch"])
}

func TestCosineNorm(t *testing.T) {
	res, err := merge.Correct(context.Background(), []merge.Batch{
		clustered(t, "a", 15, 15, [3]float64{0, 0, 0}, 1),
		clustered(t, "b", 15, 15, [3]float64{0, 2, 0}, 2),
	}, merge.WithK(5), merge.WithComponents(3), merge.WithCosineNorm(true))
	require.NoError(t, err)
	assert.Equal(t, 30, res.Coordinates[1].Rows())
	assert.Equal(t, 3, res.Expression[1].Cols())
}
