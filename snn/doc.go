// SPDX-License-Identifier: MIT

// Package snn builds shared-nearest-neighbour graphs over cells and derives
// clustering and batch-mixing diagnostics from them.
//
// Graph: every cell keeps its k nearest cells (itself included); the edge
// i–j carries the Jaccard index |S_i ∩ S_j| / |S_i ∪ S_j| of the two
// neighbour sets and exists only when the sets overlap.
//
// Components: breadth-first search over edges whose weight is at least a
// threshold. Labels are assigned in order of each component's smallest
// cell index, so labelling is deterministic.
//
// Diagnostics over a neighbour relation and per-cell batch labels:
//
//	– SameBatchFraction:         observed share of same-batch neighbours.
//	– ExpectedSameBatchFraction: the share expected under perfect mixing.
//	– MixingEntropy:             mean normalised batch entropy of neighbourhoods.
//	– Preservation:              mean Jaccard overlap of each cell's
//	                             neighbourhood before and after correction.
package snn
