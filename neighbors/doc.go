// SPDX-License-Identifier: MIT

// Package neighbors finds, for every query cell, its k nearest target cells.
//
// The search is exact. Two indices are available:
//
//	– KDTree:     gonum spatial/kdtree; a k-nearest pass finds the k-th
//	              distance, a radius pass collects every tie at it (default).
//	– BruteForce: full scan of the target rows, kept as a reference.
//
// Both return identical relations: candidates are ranked by
// (squared distance, target index) ascending, so equal distances are
// resolved in favour of the lower target index, including at the k-th
// position.
//
// Metrics:
//
//	– Euclidean: plain Euclidean distance (default).
//	– Cosine:    rows are L2-normalised before the search; reported distances
//	             are Euclidean distances between the normalised rows.
//
// Concurrency: query rows are split into blocks that a bounded errgroup
// searches in parallel (WithWorkers, default GOMAXPROCS). Index and inputs
// are read-only during the search and every block writes only its own rows
// of the result. Cancelling the context stops outstanding blocks.
//
// k is never clamped: k < 1 or k larger than the target set is rejected
// with ErrBadK / ErrKTooLarge (both of kind mnncorrect.ErrInvalidInput).
package neighbors
