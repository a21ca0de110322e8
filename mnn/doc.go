// SPDX-License-Identifier: MIT

// Package mnn detects mutual nearest neighbour pairs between two batches and
// turns them into a batch-effect correction.
//
// Pairs: a reference cell a and a target cell b form a pair when b is among
// the k nearest target cells of a and a is among the k nearest reference cells
// of b. The relation is symmetric: swapping the two directed relations yields
// the same pairs with their members swapped.
//
// Correction, for one merge step:
//
//  1. every pair contributes the difference target[b] − reference[a];
//  2. differences are averaged per paired target cell;
//  3. the averages are smoothed onto every target cell with a Gaussian kernel
//     in the kernel (embedding) space, each paired cell weighted by its pair
//     count (SmoothLocal), or replaced by their pair-weighted mean (SmoothGlobal);
//  4. each per-cell vector loses its components along the target batch's
//     leading principal axes, so biological variation along those axes is
//     not removed with the batch effect.
//
// The corrected target is target − PerCell. LostVariance reports the share
// of the batch's total variance the correction removed.
//
// Errors:
//
//	– ErrNoPairs (kind mnncorrect.ErrNoMutualNeighbors): nothing to estimate
//	  from; a zero vector is never returned instead.
//	– ErrNilRelation, ErrRelationShape, ErrShapeMismatch, ErrBadOption
//	  (kind mnncorrect.ErrInvalidInput).
//	– ErrNonFinite (kind mnncorrect.ErrNumericalInstability).
package mnn
