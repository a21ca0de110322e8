// SPDX-License-Identifier: MIT

// Package dataio reads expression tables and writes merge results.
//
// Input is delimited text with a header row
//
//	cell,batch,GENE1,GENE2,...
//
// and one cell per line. Batches are numbered in first-seen order and every
// batch keeps its cells in file order, so writers can restore the original
// cell order after a merge. The same layout is used for coordinate files
// (PC columns instead of genes), which lets a corrected embedding be read
// back for clustering.
//
// Every rejection (ragged row, non-numeric or non-finite value, duplicate
// gene, unknown gene in a list) wraps mnncorrect.ErrInvalidInput and names
// the offending line.
package dataio
