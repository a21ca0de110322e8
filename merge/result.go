// SPDX-License-Identifier: MIT

package merge

import (
	"fmt"

	"github.com/katalvlaran/mnncorrect/matrix"
)

// Result is the outcome of a complete merge. Per-batch slices are indexed
// by the input batch position, not by merge order.
type Result struct {
	// Order is the merge order actually used, reference first.
	Order []int
	Names []string
	// Features are the gene columns the expression output refers to.
	Features []int
	// Coordinates holds each batch's corrected embedding (cells × d).
	Coordinates []*matrix.Dense
	// Expression holds each batch's corrected expression over Features.
	Expression  []*matrix.Dense
	Steps       []StepResult
	Diagnostics Diagnostics
}

// Diagnostics is the per-step record consumed by reporting layers.
type Diagnostics struct {
	Order []int
	// LostVariance[s][b] is the fraction of batch b's variance removed by
	// merge step s+1 (the seeding step removes nothing and has no row).
	// Batches not corrected in a step have 0.
	LostVariance [][]float64
	// PairCounts[s] and Corrections[s] belong to merge step s+1.
	PairCounts      []int
	Corrections     [][]float64
	CorrectionNorms []float64
}

// Result assembles the Result. It fails with ErrNotMerged until the last
// batch has been merged.
func (m *Merger) Result() (*Result, error) {
	if m.state != StateMerged {
		return nil, fmt.Errorf("merge: state %s: %w", m.state, ErrNotMerged)
	}
	n := len(m.batches)
	res := &Result{
		Order:       m.Order(),
		Names:       make([]string, n),
		Features:    m.proj.Features(),
		Coordinates: make([]*matrix.Dense, n),
		Expression:  make([]*matrix.Dense, n),
		Steps:       m.Steps(),
	}
	for b := range m.batches {
		res.Names[b] = m.batches[b].Name
		res.Coordinates[b] = m.coords[b].Clone()
		if m.opts.Space == SpaceExpression {
			res.Expression[b] = m.values[b].Clone()
			continue
		}
		X, err := m.proj.Reconstruct(m.coords[b])
		if err != nil {
			return nil, fmt.Errorf("merge: reconstruct batch %d: %w", b, err)
		}
		res.Expression[b] = X
	}

	d := Diagnostics{Order: res.Order}
	for _, s := range m.steps {
		if s.Seeded {
			continue
		}
		row := make([]float64, n)
		row[s.Batch] = s.LostVariance
		d.LostVariance = append(d.LostVariance, row)
		d.PairCounts = append(d.PairCounts, s.Pairs)
		d.Corrections = append(d.Corrections, append([]float64(nil), s.Correction...))
		d.CorrectionNorms = append(d.CorrectionNorms, s.CorrectionNorm)
	}
	res.Diagnostics = d

	return res, nil
}
