// SPDX-License-Identifier: MIT

package dataio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/katalvlaran/mnncorrect/matrix"
)

// ReadCSV parses a cell × gene table with a `cell,batch,<gene>...` header.
//
// Implementation:
//   - Stage 1: header; the first two names must be "cell" and "batch"
//     (case-insensitive), at least one gene, gene names unique.
//   - Stage 2: rows; field count equal to the header, unique cell names,
//     finite numeric values. Batches are numbered as first seen.
//   - Stage 3: one Dense per batch.
//
// Errors:
//   - ErrHeader, ErrEmpty, ErrRagged, ErrValue, ErrDuplicate.
//
// Complexity: O(cells × genes).
func ReadCSV(r io.Reader, opts ...Option) (*Dataset, error) {
	o := buildOptions(opts)
	cr := csv.NewReader(r)
	cr.Comma = o.Delimiter
	cr.Comment = o.Comment
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dataio: ReadCSV: %w", ErrEmpty)
	}
	if err != nil {
		return nil, fmt.Errorf("dataio: ReadCSV: %v: %w", err, ErrHeader)
	}
	genes, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Genes: genes}
	var (
		data     [][]float64
		batchIdx = make(map[string]int)
		cellSeen = make(map[string]bool)
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataio: ReadCSV: %v: %w", err, ErrValue)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != len(header) {
			return nil, fmt.Errorf("dataio: line %d: %d fields, header has %d: %w", line, len(rec), len(header), ErrRagged)
		}
		cell, batch := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if cell == "" || batch == "" {
			return nil, fmt.Errorf("dataio: line %d: empty cell or batch name: %w", line, ErrValue)
		}
		if cellSeen[cell] {
			return nil, fmt.Errorf("dataio: line %d: cell %q: %w", line, cell, ErrDuplicate)
		}
		cellSeen[cell] = true

		b, ok := batchIdx[batch]
		if !ok {
			b = len(ds.Batches)
			batchIdx[batch] = b
			ds.Batches = append(ds.Batches, batch)
			data = append(data, nil)
		}
		for j, field := range rec[2:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("dataio: line %d gene %q: value %q: %w", line, genes[j], field, ErrValue)
			}
			data[b] = append(data[b], v)
		}
		ds.Cells = append(ds.Cells, cell)
		ds.BatchOf = append(ds.BatchOf, b)
		ds.pos = append(ds.pos, len(data[b])/len(genes)-1)
	}
	if len(ds.Cells) == 0 {
		return nil, fmt.Errorf("dataio: ReadCSV: %w", ErrEmpty)
	}

	ds.Matrices = make([]*matrix.Dense, len(data))
	for b, buf := range data {
		m, err := matrix.NewDenseFrom(len(buf)/len(genes), len(genes), buf)
		if err != nil {
			return nil, fmt.Errorf("dataio: batch %q: %w", ds.Batches[b], err)
		}
		ds.Matrices[b] = m
	}

	return ds, nil
}

func parseHeader(header []string) ([]string, error) {
	if len(header) < 3 {
		return nil, fmt.Errorf("dataio: header has %d fields, want cell,batch and at least one gene: %w", len(header), ErrHeader)
	}
	if !strings.EqualFold(strings.TrimSpace(header[0]), "cell") || !strings.EqualFold(strings.TrimSpace(header[1]), "batch") {
		return nil, fmt.Errorf("dataio: header starts %q,%q, want cell,batch: %w", header[0], header[1], ErrHeader)
	}
	genes := make([]string, len(header)-2)
	seen := make(map[string]bool, len(genes))
	for j, g := range header[2:] {
		g = strings.TrimSpace(g)
		if g == "" {
			return nil, fmt.Errorf("dataio: header column %d is empty: %w", j+2, ErrHeader)
		}
		if seen[g] {
			return nil, fmt.Errorf("dataio: gene %q: %w", g, ErrDuplicate)
		}
		seen[g] = true
		genes[j] = g
	}

	return genes, nil
}

// ReadGeneList reads one gene name per line. Blank lines and lines starting
// with '#' are skipped.
//
// Errors:
//   - ErrEmpty when no name is found; ErrDuplicate.
func ReadGeneList(r io.Reader) ([]string, error) {
	var (
		names []string
		seen  = make(map[string]bool)
		sc    = bufio.NewScanner(r)
		line  int
	)
	for sc.Scan() {
		line++
		name := strings.TrimSpace(sc.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("dataio: gene list line %d: %q: %w", line, name, ErrDuplicate)
		}
		seen[name] = true
		names = append(names, name)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dataio: gene list: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("dataio: gene list: %w", ErrEmpty)
	}

	return names, nil
}
