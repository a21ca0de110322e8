// SPDX-License-Identifier: MIT

// Package pca fits the low-dimensional embedding in which mutual nearest
// neighbours are searched.
//
// A Projector is fitted once on the row-concatenation of every batch, so all
// batches share one coordinate system. Fitting selects a feature subset,
// centres by the joint column means and keeps the top d right singular
// vectors of the centred matrix as the rotation R (features × d).
//
//	Project(X)     = (X[:, features] − centre) · R
//	Reconstruct(Y) = Y · Rᵀ + centre
//
// Solvers:
//
//	– SolverSVD:        thin SVD through gonum (default).
//	– SolverEigen:      sample covariance + Jacobi eigen-decomposition; suited
//	                    to narrow feature panels.
//	– SolverRandomized: seeded Gaussian sketch with power iterations; suited to
//	                    wide matrices where only a few components are needed.
//
// Whatever the solver, each component is sign-fixed so that its
// largest-magnitude loading is positive; the same input therefore always
// yields the same embedding.
//
// Errors:
//
//	– ErrInvalidInput kind: ErrNilInput, ErrEmptyFeatures, ErrFeatureIndex,
//	  ErrBadComponents, ErrTooFewCells, ErrBadOption, ErrShapeMismatch.
//	– ErrNumericalInstability kind: ErrFactorization, ErrRankDeficient.
package pca
