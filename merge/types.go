// SPDX-License-Identifier: MIT

package merge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/katalvlaran/mnncorrect"
	"github.com/katalvlaran/mnncorrect/matrix"
	"github.com/katalvlaran/mnncorrect/mnn"
	"github.com/katalvlaran/mnncorrect/neighbors"
	"github.com/katalvlaran/mnncorrect/pca"
)

// Sentinel errors returned by the merge package.
var (
	// ErrNoBatches indicates an empty batch list.
	ErrNoBatches = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "merge: no batches")

	// ErrBatchShape indicates a nil batch matrix or batches with different gene counts.
	ErrBatchShape = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "merge: batches do not share a gene set")

	// ErrBadOrder indicates a merge order that is not a permutation of the batches.
	ErrBadOrder = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "merge: order is not a permutation of the batches")

	// ErrBadOption indicates an invalid or conflicting option.
	ErrBadOption = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "merge: invalid option")

	// ErrAlreadyMerged is returned by Step once every batch is merged.
	ErrAlreadyMerged = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "merge: all batches already merged")

	// ErrNotMerged is returned by Result before the merge completes.
	ErrNotMerged = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "merge: merge not complete")

	// ErrTooFewPairs indicates a step whose pair count is below the WithMinPairs threshold.
	ErrTooFewPairs = mnncorrect.NewError(mnncorrect.ErrNoMutualNeighbors, "merge: too few mutual nearest neighbour pairs")
)

// Batch is one named group of cells sharing the gene set (cells × genes).
type Batch struct {
	Name string
	X    *matrix.Dense
}

// State is the merger's lifecycle position.
type State int

const (
	// StatePending: no reference yet, every batch remaining.
	StatePending State = iota

	// StateReference: reference built, batches remaining.
	StateReference

	// StateMerged: every batch merged (terminal).
	StateMerged
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReference:
		return "reference"
	case StateMerged:
		return "merged"
	default:
		return "unknown"
	}
}

// Space selects where corrections are estimated and applied.
type Space int

const (
	// SpaceExpression corrects the selected expression features.
	SpaceExpression Space = iota

	// SpaceEmbedding corrects the principal-component coordinates.
	SpaceEmbedding
)

// String returns the configuration name.
func (s Space) String() string {
	switch s {
	case SpaceExpression:
		return "expression"
	case SpaceEmbedding:
		return "embedding"
	default:
		return "unknown"
	}
}

// ParseSpace maps a configuration name to a Space.
func ParseSpace(name string) (Space, error) {
	switch name {
	case "", "expression":
		return SpaceExpression, nil
	case "embedding":
		return SpaceEmbedding, nil
	default:
		return 0, ErrBadOption
	}
}

// StepError reports the step that failed and the batch it was merging.
// It unwraps to the underlying error, so errors.Is matches both package
// sentinels and the module-wide kinds.
type StepError struct {
	Step  int
	Batch int
	Name  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("merge: step %d (batch %d %q): %v", e.Step, e.Batch, e.Name, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Options configures a Merger.
type Options struct {
	K          int
	MinPairs   int
	Components int
	Features   []int
	Solver     pca.Solver
	Seed       int64
	CosineNorm bool
	Space      Space
	Sigma      float64
	Smoothing  mnn.Smoothing
	BioDims    int
	Metric     neighbors.Metric
	Index      neighbors.Index
	Workers    int
	Order      []int
	AutoOrder  bool
	Logger     *zap.Logger

	featuresSet bool
}

// Option represents a functional option for configuring a Merger.
type Option func(*Options)

// DefaultOptions returns:
//   - K: 20, MinPairs: 1.
//   - Components: 50, all features, SolverSVD, Seed 1.
//   - CosineNorm: false, Space: SpaceExpression.
//   - Sigma: 0.1, SmoothLocal, BioDims: 2.
//   - Euclidean metric, KDTree index, Workers: neighbors default.
//   - input order, zap.NewNop logger.
func DefaultOptions() Options {
	nd := neighbors.DefaultOptions()
	md := mnn.DefaultOptions()

	return Options{
		K:          20,
		MinPairs:   1,
		Components: 50,
		Solver:     pca.SolverSVD,
		Seed:       1,
		Space:      SpaceExpression,
		Sigma:      md.Sigma,
		Smoothing:  md.Smoothing,
		BioDims:    md.BioDims,
		Metric:     nd.Metric,
		Index:      nd.Index,
		Workers:    nd.Workers,
		Logger:     zap.NewNop(),
	}
}

// WithK sets the number of nearest neighbours searched in each direction.
func WithK(k int) Option { return func(o *Options) { o.K = k } }

// WithMinPairs fails a step with ErrTooFewPairs when it finds fewer pairs.
func WithMinPairs(n int) Option { return func(o *Options) { o.MinPairs = n } }

// WithComponents sets the embedding dimension d.
func WithComponents(d int) Option { return func(o *Options) { o.Components = d } }

// WithFeatures restricts the projector (and expression-space correction) to
// the given gene columns.
func WithFeatures(cols []int) Option {
	return func(o *Options) {
		o.Features = append([]int(nil), cols...)
		o.featuresSet = true
	}
}

// WithSolver selects the projector's factorisation.
func WithSolver(s pca.Solver) Option { return func(o *Options) { o.Solver = s } }

// WithSeed seeds the randomized solver.
func WithSeed(seed int64) Option { return func(o *Options) { o.Seed = seed } }

// WithCosineNorm L2-normalises every cell before fitting and correcting.
func WithCosineNorm(on bool) Option { return func(o *Options) { o.CosineNorm = on } }

// WithSpace selects the correction space.
func WithSpace(s Space) Option { return func(o *Options) { o.Space = s } }

// WithSigma sets the relative smoothing bandwidth.
func WithSigma(s float64) Option { return func(o *Options) { o.Sigma = s } }

// WithSmoothing selects local or global smoothing.
func WithSmoothing(s mnn.Smoothing) Option { return func(o *Options) { o.Smoothing = s } }

// WithBioDims sets how many biological axes corrections avoid.
func WithBioDims(m int) Option { return func(o *Options) { o.BioDims = m } }

// WithMetric selects the neighbour-search metric.
func WithMetric(m neighbors.Metric) Option { return func(o *Options) { o.Metric = m } }

// WithIndex selects the neighbour-search index.
func WithIndex(x neighbors.Index) Option { return func(o *Options) { o.Index = x } }

// WithWorkers bounds the neighbour-search parallelism.
func WithWorkers(n int) Option { return func(o *Options) { o.Workers = n } }

// WithOrder pins the merge order (a permutation of batch indices).
func WithOrder(order []int) Option {
	return func(o *Options) { o.Order = append([]int(nil), order...) }
}

// WithAutoOrder merges, at each step, the remaining batch with the most
// mutual pairs against the reference (ties by lower batch index). The
// reference is seeded with batch 0.
func WithAutoOrder() Option { return func(o *Options) { o.AutoOrder = true } }

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func (o Options) neighborOptions() []neighbors.Option {
	return []neighbors.Option{
		neighbors.WithMetric(o.Metric),
		neighbors.WithIndex(o.Index),
		neighbors.WithWorkers(o.Workers),
	}
}

func (o Options) pcaOptions() []pca.Option {
	opts := []pca.Option{
		pca.WithComponents(o.Components),
		pca.WithSolver(o.Solver),
		pca.WithSeed(o.Seed),
	}
	if o.featuresSet {
		opts = append(opts, pca.WithFeatures(o.Features))
	}

	return opts
}

func (o Options) mnnOptions() []mnn.Option {
	return []mnn.Option{
		mnn.WithSigma(o.Sigma),
		mnn.WithSmoothing(o.Smoothing),
		mnn.WithBioDims(o.BioDims),
	}
}

// validateStages checks the estimator and search options up front, so a bad
// value never strands a seeded merger.
func (o Options) validateStages() error {
	mo := mnn.DefaultOptions()
	for _, opt := range o.mnnOptions() {
		opt(&mo)
	}
	if err := mo.Validate(); err != nil {
		return fmt.Errorf("merge: correction options: %w: %w", ErrBadOption, err)
	}
	no := neighbors.DefaultOptions()
	for _, opt := range o.neighborOptions() {
		opt(&no)
	}
	if err := no.Validate(); err != nil {
		return fmt.Errorf("merge: search options: %w: %w", ErrBadOption, err)
	}

	return nil
}
