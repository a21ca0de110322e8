// SPDX-License-Identifier: MIT

package pca

import (
	"fmt"
	"sort"

	"github.com/katalvlaran/mnncorrect/matrix"
)

// TopVarianceFeatures returns the n columns of X with the highest sample
// variance (ties broken by lower index), in ascending column order, ready
// for WithFeatures. Cells from all batches are pooled.
func TopVarianceFeatures(X *matrix.Dense, n int) ([]int, error) {
	if X == nil {
		return nil, ErrNilInput
	}
	if n < 1 || n > X.Cols() {
		return nil, fmt.Errorf("pca: TopVarianceFeatures: n=%d with %d columns: %w", n, X.Cols(), ErrBadComponents)
	}
	vars, err := matrix.ColumnVariances(X)
	if err != nil {
		return nil, fmt.Errorf("pca: TopVarianceFeatures: %w", err)
	}
	idx := make([]int, len(vars))
	for j := range idx {
		idx[j] = j
	}
	sort.SliceStable(idx, func(a, b int) bool { return vars[idx[a]] > vars[idx[b]] })

	out := append([]int(nil), idx[:n]...)
	sort.Ints(out)

	return out, nil
}
