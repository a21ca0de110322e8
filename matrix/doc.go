// Package matrix provides the dense numeric container shared by every stage
// of the batch-correction pipeline.
//
// The matrix package provides:
//
//   - Dense, a row-major cells×features matrix with bounds-checked accessors
//     and a finite-only numeric policy.
//   - Column statistics (means, centring, sample variances, covariance) and
//     row L2 normalisation (cosine normalisation of expression profiles).
//   - Small linear-algebra kernels: Mul, Transpose, Scale, Jacobi Eigen for
//     symmetric matrices, modified Gram–Schmidt Orthonormalize and ProjectOut.
//   - A zero-copy bridge to gonum (Dense.Gonum) for heavy factorisations.
//
// Rows are observations (cells) and columns are features (genes or
// principal components) throughout the module.
//
// All kernels are deterministic: fixed i→j loop orders, no map iteration, no
// hidden randomness.
package matrix
