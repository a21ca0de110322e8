// SPDX-License-Identifier: MIT

package neighbors

import (
	"runtime"

	"github.com/katalvlaran/mnncorrect"
)

// Sentinel errors returned by the neighbors package.
var (
	// ErrNilInput indicates a nil query or target matrix.
	ErrNilInput = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "neighbors: nil input matrix")

	// ErrDimensionMismatch indicates query and target of different widths.
	ErrDimensionMismatch = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "neighbors: query and target dimensions differ")

	// ErrNonFinite indicates a NaN or ±Inf coordinate.
	ErrNonFinite = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "neighbors: non-finite coordinate")

	// ErrBadK indicates k < 1.
	ErrBadK = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "neighbors: k must be >= 1")

	// ErrKTooLarge indicates k greater than the number of target cells.
	ErrKTooLarge = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "neighbors: k exceeds target size")

	// ErrBadOption indicates an unknown metric/index or a non-positive tuning value.
	ErrBadOption = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "neighbors: invalid option")
)

// Metric selects the distance used for ranking.
type Metric int

const (
	// Euclidean ranks by plain Euclidean distance.
	Euclidean Metric = iota

	// Cosine L2-normalises rows first, then ranks by Euclidean distance.
	Cosine
)

// String returns the configuration name of the metric.
func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case Cosine:
		return "cosine"
	default:
		return "unknown"
	}
}

// ParseMetric maps a configuration name to a Metric.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "", "euclidean":
		return Euclidean, nil
	case "cosine":
		return Cosine, nil
	default:
		return 0, ErrBadOption
	}
}

// Index selects the search structure.
type Index int

const (
	// KDTree is an exact search over gonum's spatial/kdtree.
	KDTree Index = iota

	// BruteForce scans every target row for every query.
	BruteForce
)

// String returns the configuration name of the index.
func (x Index) String() string {
	switch x {
	case KDTree:
		return "kdtree"
	case BruteForce:
		return "brute"
	default:
		return "unknown"
	}
}

// ParseIndex maps a configuration name to an Index.
func ParseIndex(name string) (Index, error) {
	switch name {
	case "", "kdtree":
		return KDTree, nil
	case "brute":
		return BruteForce, nil
	default:
		return 0, ErrBadOption
	}
}

// Relation is the ordered k-nearest-neighbour list of every query cell.
// Indices[i][r] is the r-th nearest target row of query row i and
// Distances[i][r] its distance; both rows are sorted by (distance, index).
type Relation struct {
	K          int
	TargetRows int
	Indices    [][]int
	Distances  [][]float64
}

// Len returns the number of query cells.
func (r *Relation) Len() int { return len(r.Indices) }

// Contains reports whether target cell j is among the k nearest of query i.
func (r *Relation) Contains(i, j int) bool {
	if i < 0 || i >= len(r.Indices) {
		return false
	}
	for _, x := range r.Indices[i] {
		if x == j {
			return true
		}
	}

	return false
}

// Options configures Find.
//
// Metric    – Euclidean or Cosine.
// Index     – KDTree or BruteForce.
// Workers   – maximum goroutines searching in parallel (≥ 1).
// BlockSize – query rows per parallel task (≥ 1).
type Options struct {
	Metric    Metric
	Index     Index
	Workers   int
	BlockSize int
}

// Option represents a functional option for configuring Find.
type Option func(*Options)

// DefaultOptions returns:
//   - Metric:    Euclidean.
//   - Index:     KDTree.
//   - Workers:   runtime.GOMAXPROCS(0).
//   - BlockSize: 256.
func DefaultOptions() Options {
	return Options{
		Metric:    Euclidean,
		Index:     KDTree,
		Workers:   runtime.GOMAXPROCS(0),
		BlockSize: 256,
	}
}

// WithMetric selects the distance metric.
func WithMetric(m Metric) Option {
	return func(o *Options) { o.Metric = m }
}

// WithIndex selects the search structure.
func WithIndex(x Index) Option {
	return func(o *Options) { o.Index = x }
}

// WithWorkers bounds the number of parallel search goroutines.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithBlockSize sets the number of query rows handled per task.
func WithBlockSize(n int) Option {
	return func(o *Options) { o.BlockSize = n }
}

// Validate returns ErrBadOption for an unknown metric or index or a
// non-positive tuning value.
func (o Options) Validate() error {
	if o.Metric != Euclidean && o.Metric != Cosine {
		return ErrBadOption
	}
	if o.Index != KDTree && o.Index != BruteForce {
		return ErrBadOption
	}
	if o.Workers < 1 || o.BlockSize < 1 {
		return ErrBadOption
	}

	return nil
}
