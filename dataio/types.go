// SPDX-License-Identifier: MIT

package dataio

import (
	"fmt"

	"github.com/katalvlaran/mnncorrect"
	"github.com/katalvlaran/mnncorrect/matrix"
	"github.com/katalvlaran/mnncorrect/merge"
)

var (
	// ErrHeader indicates a missing or malformed header row.
	ErrHeader = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "dataio: bad header")

	// ErrEmpty indicates a table without data rows or a gene list without names.
	ErrEmpty = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "dataio: no data")

	// ErrRagged indicates a row whose field count differs from the header.
	ErrRagged = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "dataio: ragged row")

	// ErrValue indicates a non-numeric or non-finite value.
	ErrValue = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "dataio: bad value")

	// ErrDuplicate indicates a repeated gene or cell name.
	ErrDuplicate = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "dataio: duplicate name")

	// ErrUnknownGene indicates a gene list entry absent from the dataset.
	ErrUnknownGene = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "dataio: unknown gene")

	// ErrUnknownBatch indicates a batch name absent from the dataset.
	ErrUnknownBatch = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "dataio: unknown batch")

	// ErrShape indicates result matrices that do not match the dataset.
	ErrShape = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "dataio: result shape does not match dataset")
)

// Dataset is a loaded expression table split by batch.
type Dataset struct {
	// Cells and BatchOf are in file order.
	Cells   []string
	BatchOf []int
	Genes   []string
	// Batches holds batch names in first-seen order.
	Batches []string
	// Matrices[b] is batch b's cells × genes matrix, rows in file order.
	Matrices []*matrix.Dense

	pos []int // row of each cell inside its batch
}

// NumCells returns the number of cells over all batches.
func (d *Dataset) NumCells() int { return len(d.Cells) }

// MergeBatches returns the batches as merge input, in first-seen order.
func (d *Dataset) MergeBatches() []merge.Batch {
	out := make([]merge.Batch, len(d.Batches))
	for b, name := range d.Batches {
		out[b] = merge.Batch{Name: name, X: d.Matrices[b]}
	}

	return out
}

// BatchIndex returns the index of the named batch.
func (d *Dataset) BatchIndex(name string) (int, error) {
	for b, n := range d.Batches {
		if n == name {
			return b, nil
		}
	}

	return 0, fmt.Errorf("dataio: batch %q: %w", name, ErrUnknownBatch)
}

// GeneIndex maps gene names to column indices, in the order given.
//
// Errors:
//   - ErrUnknownGene, ErrDuplicate.
func (d *Dataset) GeneIndex(names []string) ([]int, error) {
	byName := make(map[string]int, len(d.Genes))
	for j, g := range d.Genes {
		byName[g] = j
	}
	seen := make(map[string]bool, len(names))
	cols := make([]int, len(names))
	for i, n := range names {
		j, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("dataio: gene %q: %w", n, ErrUnknownGene)
		}
		if seen[n] {
			return nil, fmt.Errorf("dataio: gene %q listed twice: %w", n, ErrDuplicate)
		}
		seen[n] = true
		cols[i] = j
	}

	return cols, nil
}

// BatchLabels returns the batch index of every cell in the stacked order a
// merge result uses: batch 0's cells, then batch 1's, and so on.
func (d *Dataset) BatchLabels() []int {
	labels := make([]int, 0, len(d.Cells))
	for b, m := range d.Matrices {
		for i := 0; i < m.Rows(); i++ {
			labels = append(labels, b)
		}
	}

	return labels
}

// Options configures readers and writers.
type Options struct {
	// Delimiter separates fields (default ',').
	Delimiter rune
	// Comment starts lines that are skipped; 0 disables (default '#').
	Comment rune
	// Precision is the number of significant digits written; -1 is the
	// shortest exact representation (default).
	Precision int
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns comma-delimited, '#' comments, shortest floats.
func DefaultOptions() Options {
	return Options{Delimiter: ',', Comment: '#', Precision: -1}
}

// WithDelimiter sets the field delimiter ('\t' for TSV).
func WithDelimiter(r rune) Option { return func(o *Options) { o.Delimiter = r } }

// WithComment sets the comment character; 0 disables comments.
func WithComment(r rune) Option { return func(o *Options) { o.Comment = r } }

// WithPrecision sets the significant digits written by the CSV writers.
func WithPrecision(p int) Option { return func(o *Options) { o.Precision = p } }

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// StackedRows maps every cell, in file order, to its row in the stacked
// batch-major layout (batch 0's cells first) that BatchLabels describes.
func (d *Dataset) StackedRows() []int {
	offset := make([]int, len(d.Matrices))
	for b := 1; b < len(d.Matrices); b++ {
		offset[b] = offset[b-1] + d.Matrices[b-1].Rows()
	}
	rows := make([]int, len(d.Cells))
	for i, b := range d.BatchOf {
		rows[i] = offset[b] + d.pos[i]
	}

	return rows
}
