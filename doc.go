// SPDX-License-Identifier: MIT

// Package mnncorrect aligns batches of single-cell expression profiles with
// mutual nearest neighbours (MNN).
//
// What is MNN correction?
//
//	Cells profiled in different batches carry technical, non-biological
//	shifts. Pairs of cells from two batches that are each among the other's
//	k nearest neighbours are taken as anchors of a shared biological state;
//	the expression differences across those pairs estimate the batch effect,
//	which is smoothed, orthogonalised against the batch's own biological
//	variance and subtracted.
//
// Under the hood the work is split into subpackages, leaves first:
//
//	matrix/    row-major cells×features Dense, statistics, small linear algebra
//	pca/       feature-space projector fitted jointly across batches
//	neighbors/ exact k-d tree / brute-force kNN with parallel queries
//	mnn/       mutual-pair detector and correction-vector estimator
//	merge/     merge orchestrator (ordered, step-wise, with diagnostics)
//	snn/       shared-nearest-neighbour graph clustering and mixing metrics
//	dataio/    CSV loader and writers
//	config/    YAML configuration with environment overrides
//	cmd/mnncorrect  command-line front end
//
// This root package only holds the error kinds shared by every subpackage:
// ErrInvalidInput, ErrNoMutualNeighbors and ErrNumericalInstability. Concrete
// sentinels in subpackages wrap one of them, so both
//
//	errors.Is(err, neighbors.ErrKTooLarge)
//	errors.Is(err, mnncorrect.ErrInvalidInput)
//
// hold for the same failure.
//
// Merge order matters: each batch is corrected against the reference
// accumulated so far, so permuting the input changes the output. The order
// used is always reported back in merge.Result.Order.
//
//	go get github.com/katalvlaran/mnncorrect
package mnncorrect
