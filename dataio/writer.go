// SPDX-License-Identifier: MIT

package dataio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/katalvlaran/mnncorrect/matrix"
)

// WriteCoordinates writes per-batch embeddings as `cell,batch,PC1..PCd`
// rows in the dataset's original cell order.
func WriteCoordinates(w io.Writer, ds *Dataset, coords []*matrix.Dense, opts ...Option) error {
	if len(coords) == 0 || coords[0] == nil {
		return fmt.Errorf("dataio: WriteCoordinates: %w", ErrShape)
	}
	cols := make([]string, coords[0].Cols())
	for j := range cols {
		cols[j] = "PC" + strconv.Itoa(j+1)
	}

	return writeTable(w, ds, cols, coords, buildOptions(opts))
}

// WriteExpression writes per-batch corrected expression over the given gene
// columns, in the dataset's original cell order.
func WriteExpression(w io.Writer, ds *Dataset, features []int, expr []*matrix.Dense, opts ...Option) error {
	cols := make([]string, len(features))
	for k, j := range features {
		if j < 0 || j >= len(ds.Genes) {
			return fmt.Errorf("dataio: WriteExpression: feature %d: %w", j, ErrShape)
		}
		cols[k] = ds.Genes[j]
	}

	return writeTable(w, ds, cols, expr, buildOptions(opts))
}

func writeTable(w io.Writer, ds *Dataset, cols []string, per []*matrix.Dense, o Options) error {
	if len(per) != len(ds.Batches) {
		return fmt.Errorf("dataio: %d result batches for %d dataset batches: %w", len(per), len(ds.Batches), ErrShape)
	}
	for b, m := range per {
		if m == nil || m.Rows() != ds.Matrices[b].Rows() || m.Cols() != len(cols) {
			return fmt.Errorf("dataio: batch %q: %w", ds.Batches[b], ErrShape)
		}
	}

	cw := csv.NewWriter(w)
	cw.Comma = o.Delimiter
	rec := make([]string, len(cols)+2)
	rec[0], rec[1] = "cell", "batch"
	copy(rec[2:], cols)
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("dataio: write header: %w", err)
	}
	for i, cell := range ds.Cells {
		b := ds.BatchOf[i]
		row, err := per[b].RowView(ds.pos[i])
		if err != nil {
			return fmt.Errorf("dataio: cell %q: %w", cell, err)
		}
		rec[0], rec[1] = cell, ds.Batches[b]
		for j, v := range row {
			rec[j+2] = strconv.FormatFloat(v, 'g', o.Precision, 64)
		}
		if err = cw.Write(rec); err != nil {
			return fmt.Errorf("dataio: cell %q: %w", cell, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("dataio: flush: %w", err)
	}

	return nil
}

// WriteLabels writes `cell,batch,<column>` rows in the original cell order.
// labels is in the stacked batch-major layout (see Dataset.StackedRows).
func WriteLabels(w io.Writer, ds *Dataset, column string, labels []int, opts ...Option) error {
	if len(labels) != ds.NumCells() {
		return fmt.Errorf("dataio: %d labels for %d cells: %w", len(labels), ds.NumCells(), ErrShape)
	}
	o := buildOptions(opts)
	cw := csv.NewWriter(w)
	cw.Comma = o.Delimiter
	if err := cw.Write([]string{"cell", "batch", column}); err != nil {
		return fmt.Errorf("dataio: write header: %w", err)
	}
	for i, row := range ds.StackedRows() {
		rec := []string{ds.Cells[i], ds.Batches[ds.BatchOf[i]], strconv.Itoa(labels[row])}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("dataio: cell %q: %w", ds.Cells[i], err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("dataio: flush: %w", err)
	}

	return nil
}
