// SPDX-License-Identifier: MIT

package pca_test

import (
	"fmt"

	"github.com/katalvlaran/mnncorrect/matrix"
	"github.com/katalvlaran/mnncorrect/pca"
)

// ExampleFit fits a one-component projector on cells lying on a line.
func ExampleFit() {
	X, _ := matrix.NewDenseRows([][]float64{{0, 0}, {1, 1}, {2, 2}, {3, 3}})

	p, err := pca.Fit(X, pca.WithComponents(1))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	Y, _ := p.Project(X)
	y, _ := Y.At(3, 0)

	fmt.Printf("components: %d\n", p.Components())
	fmt.Printf("explained: %.2f\n", p.ExplainedRatio()[0])
	fmt.Printf("last cell: %.4f\n", y)

	// Output:
	// components: 1
	// explained: 1.00
	// last cell: 2.1213
}
