// Package matrix_test provides benchmarks for the matrix kernels on the
// shapes the correction pipeline produces (tall cells×features, small d×d).
package matrix_test

import (
	"fmt"
	"testing"

	"github.com/katalvlaran/mnncorrect/matrix"
)

// benchCells are the row counts to benchmark; features are fixed.
var benchCells = []int{256, 1024, 4096}

const benchFeatures = 64

// sinks to defeat dead-code elimination
var (
	sinkM *matrix.Dense
	sinkV []float64
	sinkF float64
)

func BenchmarkMul(b *testing.B) {
	b.ReportAllocs()
	for _, n := range benchCells {
		b.Run(fmt.Sprintf("cells=%d", n), func(b *testing.B) {
			X := RandomDense(b, n, benchFeatures, 1337)
			R := RandomDense(b, benchFeatures, 10, 4242)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				m, err := matrix.Mul(X, R)
				if err != nil {
					b.Fatal(err)
				}
				sinkM = m
			}
		})
	}
}

func BenchmarkCovariance(b *testing.B) {
	b.ReportAllocs()
	for _, n := range benchCells {
		b.Run(fmt.Sprintf("cells=%d", n), func(b *testing.B) {
			X := RandomDense(b, n, benchFeatures, 7)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				cov, means, err := matrix.Covariance(X)
				if err != nil {
					b.Fatal(err)
				}
				sinkM, sinkV = cov, means
			}
		})
	}
}

func BenchmarkTotalVariance(b *testing.B) {
	b.ReportAllocs()
	for _, n := range benchCells {
		b.Run(fmt.Sprintf("cells=%d", n), func(b *testing.B) {
			X := RandomDense(b, n, benchFeatures, 11)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				v, err := matrix.TotalVariance(X)
				if err != nil {
					b.Fatal(err)
				}
				sinkF = v
			}
		})
	}
}

func BenchmarkEigenSorted(b *testing.B) {
	b.ReportAllocs()
	X := RandomDense(b, 512, 32, 99)
	cov, _, err := matrix.Covariance(X)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		vals, vecs, err := matrix.EigenSorted(cov, 1e-10, 100*32*32)
		if err != nil {
			b.Fatal(err)
		}
		sinkV, sinkM = vals, vecs
	}
}

func BenchmarkPrincipalAxes(b *testing.B) {
	b.ReportAllocs()
	for _, n := range benchCells {
		b.Run(fmt.Sprintf("cells=%d", n), func(b *testing.B) {
			X := RandomDense(b, n, benchFeatures, 3)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				V, _, err := matrix.PrincipalAxes(X, 10, 1e-10)
				if err != nil {
					b.Fatal(err)
				}
				sinkM = V
			}
		})
	}
}

func BenchmarkNormalizeRowsL2(b *testing.B) {
	b.ReportAllocs()
	X := RandomDense(b, 4096, benchFeatures, 5)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Y, norms, err := matrix.NormalizeRowsL2(X)
		if err != nil {
			b.Fatal(err)
		}
		sinkM, sinkV = Y, norms
	}
}
