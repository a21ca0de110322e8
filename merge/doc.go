// SPDX-License-Identifier: MIT

// Package merge orchestrates MNN correction across an ordered sequence of
// batches.
//
// A Merger is a small state machine:
//
//	StatePending ──Step──▶ StateReference ──Step…──▶ StateMerged
//
// The first Step fits the projector jointly on every batch, embeds all
// cells and seeds the reference with the first batch of the merge order.
// Each further Step merges one batch into the reference: neighbours are
// searched both ways in the embedding, mutual pairs are detected, a
// correction is estimated and subtracted from the batch, and the corrected
// batch joins the reference. A failing Step returns a *StepError and
// leaves the Merger exactly as it was, so the caller can adjust k with
// SetK and call Step again.
//
// Merge order matters. The reference grows with every step, so merging
// [A, B, C] and [C, B, A] generally produces different corrected values.
// Result.Order records the order used; WithOrder pins it and WithAutoOrder
// picks, at each step, the remaining batch with the most mutual pairs
// against the current reference.
//
// Correction space:
//
//	– SpaceExpression (default): corrections are estimated and applied on
//	  the selected expression features; corrected batches are re-projected.
//	– SpaceEmbedding: corrections are estimated and applied on the
//	  embedding; expression is reconstructed as Y·Rᵀ + centre.
//
// Diagnostics report, per merge step, the fraction of each batch's variance
// the correction removed (steps × batches), the pair counts and the
// correction vectors.
package merge
