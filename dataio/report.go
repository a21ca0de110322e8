// SPDX-License-Identifier: MIT

package dataio

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/katalvlaran/mnncorrect/merge"
)

// Report is the JSON diagnostics record of one merge.
type Report struct {
	Order      []string `json:"order"`
	OrderIndex []int    `json:"order_index"`
	Batches    []string `json:"batches"`
	K          int      `json:"k"`
	Components int      `json:"components"`
	// LostVariance[s][b]: see merge.Diagnostics.
	LostVariance    [][]float64 `json:"lost_variance"`
	PairCounts      []int       `json:"pair_counts"`
	CorrectionNorms []float64   `json:"correction_norms"`
	Corrections     [][]float64 `json:"corrections"`
	Mixing          *Mixing     `json:"mixing,omitempty"`
}

// Mixing summarises how well batches intermix after correction.
type Mixing struct {
	K                 int     `json:"k"`
	SameBatch         float64 `json:"same_batch_fraction"`
	ExpectedSameBatch float64 `json:"expected_same_batch_fraction"`
	Entropy           float64 `json:"entropy"`
	Clusters          int     `json:"clusters,omitempty"`
}

// NewReport builds a Report from a merge result. Empty slices are kept
// non-nil so the JSON never carries null arrays.
func NewReport(res *merge.Result, k, components int) Report {
	d := res.Diagnostics
	rep := Report{
		Order:           make([]string, len(res.Order)),
		OrderIndex:      append([]int{}, res.Order...),
		Batches:         append([]string{}, res.Names...),
		K:               k,
		Components:      components,
		LostVariance:    append([][]float64{}, d.LostVariance...),
		PairCounts:      append([]int{}, d.PairCounts...),
		CorrectionNorms: append([]float64{}, d.CorrectionNorms...),
		Corrections:     append([][]float64{}, d.Corrections...),
	}
	for i, b := range res.Order {
		rep.Order[i] = res.Names[b]
	}

	return rep
}

// WriteDiagnostics writes rep as indented JSON.
func WriteDiagnostics(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("dataio: WriteDiagnostics: %w", err)
	}

	return nil
}
