package pca_test

import (
	"fmt"
	"testing"

	"github.com/katalvlaran/mnncorrect/pca"
)

var sinkP *pca.Projector

func BenchmarkFit(b *testing.B) {
	scales := make([]float64, 100)
	for j := range scales {
		scales[j] = 1 + float64(len(scales)-j)/10
	}
	X := scaledNormal(b, 1000, scales, 1)
	for _, s := range []pca.Solver{pca.SolverSVD, pca.SolverEigen, pca.SolverRandomized} {
		b.Run(fmt.Sprintf("solver=%s", s), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				p, err := pca.Fit(X, pca.WithComponents(10), pca.WithSolver(s))
				if err != nil {
					b.Fatal(err)
				}
				sinkP = p
			}
		})
	}
}
