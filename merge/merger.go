// SPDX-License-Identifier: MIT

package merge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/katalvlaran/mnncorrect/matrix"
	"github.com/katalvlaran/mnncorrect/mnn"
	"github.com/katalvlaran/mnncorrect/neighbors"
	"github.com/katalvlaran/mnncorrect/pca"
)

// StepResult describes one successful Step.
type StepResult struct {
	Step  int
	Batch int
	Name  string
	// Seeded is true for the step that built the initial reference; the
	// remaining fields are zero for it.
	Seeded         bool
	K              int
	Pairs          int
	PairedCells    int
	LostVariance   float64
	Correction     []float64
	CorrectionNorm float64
	Elapsed        time.Duration
}

// Merger merges batches one Step at a time. It is not safe for concurrent
// use; each Step runs the parallel neighbour search internally.
type Merger struct {
	opts    Options
	batches []Batch
	k       int
	state   State

	proj   *pca.Projector
	values []*matrix.Dense // per batch, in the correction space
	coords []*matrix.Dense // per batch embedding

	order  []int // batches merged so far, reference first
	merged []bool
	steps  []StepResult
}

// New validates the batches and options. No computation happens until the
// first Step.
//
// Errors:
//   - ErrNoBatches, ErrBatchShape, ErrBadOrder, ErrBadOption.
func New(batches []Batch, opts ...Option) (*Merger, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if len(batches) == 0 {
		return nil, ErrNoBatches
	}
	for i, b := range batches {
		if b.X == nil {
			return nil, fmt.Errorf("merge: batch %d %q has no matrix: %w", i, b.Name, ErrBatchShape)
		}
		if b.X.Cols() != batches[0].X.Cols() {
			return nil, fmt.Errorf("merge: batch %d %q has %d genes, want %d: %w", i, b.Name, b.X.Cols(), batches[0].X.Cols(), ErrBatchShape)
		}
	}
	if o.K < 1 || o.MinPairs < 1 || o.Workers < 1 {
		return nil, ErrBadOption
	}
	if o.Space != SpaceExpression && o.Space != SpaceEmbedding {
		return nil, ErrBadOption
	}
	if o.Solver != pca.SolverSVD && o.Solver != pca.SolverEigen && o.Solver != pca.SolverRandomized {
		return nil, fmt.Errorf("merge: solver %d: %w", int(o.Solver), ErrBadOption)
	}
	if err := o.validateStages(); err != nil {
		return nil, err
	}
	if o.AutoOrder && o.Order != nil {
		return nil, fmt.Errorf("merge: WithOrder and WithAutoOrder are exclusive: %w", ErrBadOption)
	}
	if o.Order != nil {
		if err := validateOrder(o.Order, len(batches)); err != nil {
			return nil, err
		}
	}

	return &Merger{
		opts:    o,
		batches: append([]Batch(nil), batches...),
		k:       o.K,
		state:   StatePending,
		values:  make([]*matrix.Dense, len(batches)),
		coords:  make([]*matrix.Dense, len(batches)),
		merged:  make([]bool, len(batches)),
	}, nil
}

func validateOrder(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("merge: order has %d entries for %d batches: %w", len(order), n, ErrBadOrder)
	}
	seen := make([]bool, n)
	for _, b := range order {
		if b < 0 || b >= n || seen[b] {
			return fmt.Errorf("merge: order entry %d: %w", b, ErrBadOrder)
		}
		seen[b] = true
	}

	return nil
}

// State returns the current lifecycle state.
func (m *Merger) State() State { return m.state }

// K returns the neighbour count used by the next Step.
func (m *Merger) K() int { return m.k }

// SetK changes the neighbour count for subsequent steps, typically after a
// step failed because k exceeded a batch or produced too few pairs.
func (m *Merger) SetK(k int) error {
	if k < 1 {
		return fmt.Errorf("merge: k=%d: %w", k, ErrBadOption)
	}
	m.k = k

	return nil
}

// Order returns the batches merged so far, reference first.
func (m *Merger) Order() []int { return append([]int(nil), m.order...) }

// Steps returns the results of the successful steps so far.
func (m *Merger) Steps() []StepResult { return append([]StepResult(nil), m.steps...) }

// Projector returns the fitted projector, or nil before the first Step.
func (m *Merger) Projector() *pca.Projector { return m.proj }

// Step advances the merge by one batch.
func (m *Merger) Step(ctx context.Context) (*StepResult, error) {
	switch m.state {
	case StateMerged:
		return nil, ErrAlreadyMerged
	case StatePending:
		return m.seed(ctx)
	}

	step := len(m.steps)
	batch, err := m.next(ctx)
	if err != nil {
		return nil, &StepError{Step: step, Batch: -1, Err: err}
	}
	res, err := m.mergeBatch(ctx, step, batch)
	if err != nil {
		m.opts.Logger.Warn("merge step failed",
			zap.Int("step", step),
			zap.String("batch", m.batches[batch].Name),
			zap.Int("k", m.k),
			zap.Error(err))
		return nil, &StepError{Step: step, Batch: batch, Name: m.batches[batch].Name, Err: err}
	}

	return res, nil
}

// Run steps until every batch is merged and returns the Result. On failure
// the merger keeps the state reached before the failing step.
func (m *Merger) Run(ctx context.Context) (*Result, error) {
	for m.state != StateMerged {
		if _, err := m.Step(ctx); err != nil {
			return nil, err
		}
	}

	return m.Result()
}

// seed fits the projector on every batch, embeds all cells and installs the
// first batch of the order as the reference.
func (m *Merger) seed(ctx context.Context) (*StepResult, error) {
	start := time.Now()
	first := 0
	if m.opts.Order != nil {
		first = m.opts.Order[0]
	}
	fail := func(err error) (*StepResult, error) {
		return nil, &StepError{Step: 0, Batch: first, Name: m.batches[first].Name, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	inputs := make([]*matrix.Dense, len(m.batches))
	for i, b := range m.batches {
		inputs[i] = b.X
		if m.opts.CosineNorm {
			Y, _, err := matrix.NormalizeRowsL2(b.X)
			if err != nil {
				return fail(err)
			}
			inputs[i] = Y
		}
	}
	stacked, err := matrix.VStack(inputs...)
	if err != nil {
		return fail(err)
	}
	proj, err := pca.Fit(stacked, m.opts.pcaOptions()...)
	if err != nil {
		return fail(err)
	}

	sizes := make([]int, len(inputs))
	for i, X := range inputs {
		sizes[i] = X.Rows()
	}
	sel, err := proj.Select(stacked)
	if err != nil {
		return fail(err)
	}
	embedded, err := proj.ProjectSelected(sel)
	if err != nil {
		return fail(err)
	}
	coords, err := matrix.SplitRows(embedded, sizes...)
	if err != nil {
		return fail(err)
	}
	values := append([]*matrix.Dense(nil), coords...)
	if m.opts.Space == SpaceExpression {
		if values, err = matrix.SplitRows(sel, sizes...); err != nil {
			return fail(err)
		}
	}

	m.proj, m.values, m.coords = proj, values, coords
	m.order = []int{first}
	m.merged[first] = true
	m.state = StateReference
	if len(m.batches) == 1 {
		m.state = StateMerged
	}
	res := StepResult{Step: 0, Batch: first, Name: m.batches[first].Name, Seeded: true, Elapsed: time.Since(start)}
	m.steps = append(m.steps, res)

	m.opts.Logger.Info("reference seeded",
		zap.String("batch", res.Name),
		zap.Int("cells", m.batches[first].X.Rows()),
		zap.Int("components", proj.Components()),
		zap.Int("features", len(proj.Features())),
		zap.Stringer("solver", proj.Solver()),
		zap.Stringer("space", m.opts.Space))

	return &res, nil
}

// next picks the batch merged by the coming step.
func (m *Merger) next(ctx context.Context) (int, error) {
	if !m.opts.AutoOrder {
		if m.opts.Order != nil {
			return m.opts.Order[len(m.order)], nil
		}
		for b, done := range m.merged {
			if !done {
				return b, nil
			}
		}
	}

	ref, err := m.reference(m.coords)
	if err != nil {
		return 0, err
	}
	best, bestPairs := -1, -1
	for b, done := range m.merged {
		if done {
			continue
		}
		pairs, err := m.pairs(ctx, ref, m.coords[b])
		if err != nil {
			return 0, err
		}
		m.opts.Logger.Debug("auto order candidate",
			zap.String("batch", m.batches[b].Name),
			zap.Int("pairs", pairs.Len()))
		if pairs.Len() > bestPairs {
			best, bestPairs = b, pairs.Len()
		}
	}

	return best, nil
}

// reference stacks the merged batches of per in merge order.
func (m *Merger) reference(per []*matrix.Dense) (*matrix.Dense, error) {
	parts := make([]*matrix.Dense, len(m.order))
	for i, b := range m.order {
		parts[i] = per[b]
	}

	return matrix.VStack(parts...)
}

// pairs finds the mutual pairs between reference (A) and target (B) coordinates.
func (m *Merger) pairs(ctx context.Context, ref, tgt *matrix.Dense) (mnn.PairSet, error) {
	aToB, bToA, err := neighbors.FindMutualInputs(ctx, ref, tgt, m.k, m.opts.neighborOptions()...)
	if err != nil {
		return nil, err
	}

	return mnn.MutualPairs(aToB, bToA)
}

// mergeBatch corrects batch b towards the reference. Nothing is committed
// unless every stage succeeds.
func (m *Merger) mergeBatch(ctx context.Context, step, b int) (*StepResult, error) {
	start := time.Now()
	refCoords, err := m.reference(m.coords)
	if err != nil {
		return nil, err
	}
	refValues, err := m.reference(m.values)
	if err != nil {
		return nil, err
	}
	tgtCoords, tgtValues := m.coords[b], m.values[b]

	pairs, err := m.pairs(ctx, refCoords, tgtCoords)
	if err != nil {
		return nil, err
	}
	if pairs.Len() < m.opts.MinPairs {
		return nil, fmt.Errorf("merge: %d pairs, need %d: %w", pairs.Len(), m.opts.MinPairs, ErrTooFewPairs)
	}
	corr, err := mnn.Estimate(mnn.EstimateInput{
		Reference:    refValues,
		Target:       tgtValues,
		TargetKernel: tgtCoords,
		Pairs:        pairs,
	}, m.opts.mnnOptions()...)
	if err != nil {
		return nil, err
	}
	corrected, err := corr.Apply(tgtValues)
	if err != nil {
		return nil, err
	}
	lost, err := mnn.LostVariance(tgtValues, corrected)
	if err != nil {
		return nil, err
	}
	newCoords := corrected
	if m.opts.Space == SpaceExpression {
		if newCoords, err = m.proj.ProjectSelected(corrected); err != nil {
			return nil, err
		}
	}

	m.values[b], m.coords[b] = corrected, newCoords
	m.merged[b] = true
	m.order = append(m.order, b)
	if len(m.order) == len(m.batches) {
		m.state = StateMerged
	}
	res := StepResult{
		Step:           step,
		Batch:          b,
		Name:           m.batches[b].Name,
		K:              m.k,
		Pairs:          corr.Pairs,
		PairedCells:    corr.PairedCells,
		LostVariance:   lost,
		Correction:     corr.Vector,
		CorrectionNorm: corr.Norm(),
		Elapsed:        time.Since(start),
	}
	m.steps = append(m.steps, res)

	m.opts.Logger.Info("batch merged",
		zap.Int("step", step),
		zap.String("batch", res.Name),
		zap.Int("k", res.K),
		zap.Int("pairs", res.Pairs),
		zap.Int("paired_cells", res.PairedCells),
		zap.Int("bio_axes", corr.BioAxes),
		zap.Float64("lost_variance", lost),
		zap.Float64("correction_norm", res.CorrectionNorm),
		zap.Duration("elapsed", res.Elapsed))

	return &res, nil
}

// Correct is New followed by Run.
func Correct(ctx context.Context, batches []Batch, opts ...Option) (*Result, error) {
	m, err := New(batches, opts...)
	if err != nil {
		return nil, err
	}

	return m.Run(ctx)
}
