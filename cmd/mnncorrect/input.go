// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/katalvlaran/mnncorrect/config"
	"github.com/katalvlaran/mnncorrect/dataio"
	"github.com/katalvlaran/mnncorrect/matrix"
	"github.com/katalvlaran/mnncorrect/neighbors"
	"github.com/katalvlaran/mnncorrect/pca"
	"github.com/katalvlaran/mnncorrect/snn"
)

// loadDataset reads the table at path with the configured delimiter.
func loadDataset(path string, cfg *config.Config) (*dataio.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	ds, err := dataio.ReadCSV(f, dataio.WithDelimiter(cfg.Delimiter()))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return ds, nil
}

// loadFeatures resolves the configured gene list against ds and then keeps
// the input.top_genes most variable of them. It returns nil when neither
// is configured.
func loadFeatures(ds *dataio.Dataset, cfg *config.Config) ([]int, error) {
	var features []int
	if cfg.Input.Genes != "" {
		f, err := os.Open(cfg.Input.Genes)
		if err != nil {
			return nil, fmt.Errorf("opening gene list: %w", err)
		}
		defer f.Close()

		names, err := dataio.ReadGeneList(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", cfg.Input.Genes, err)
		}
		if features, err = ds.GeneIndex(names); err != nil {
			return nil, err
		}
	}
	if cfg.Input.TopGenes == 0 {
		return features, nil
	}

	all, err := matrix.VStack(ds.Matrices...)
	if err != nil {
		return nil, err
	}
	if features != nil {
		if all, err = all.Induced(nil, features); err != nil {
			return nil, err
		}
	}
	top, err := pca.TopVarianceFeatures(all, cfg.Input.TopGenes)
	if err != nil {
		return nil, fmt.Errorf("selecting %d most variable genes: %w", cfg.Input.TopGenes, err)
	}
	if features != nil {
		for i, j := range top {
			top[i] = features[j]
		}
	}

	return top, nil
}

// writeFile creates path and hands it to write.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	return write(f)
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// mixing computes batch-mixing metrics over the stacked embeddings.
func mixing(ctx context.Context, per []*matrix.Dense, labels []int, k int, opts ...neighbors.Option) (*dataio.Mixing, error) {
	all, err := matrix.VStack(per...)
	if err != nil {
		return nil, err
	}
	// k+1 because every cell is its own nearest neighbour.
	rel, err := neighbors.Find(ctx, all, all, k+1, opts...)
	if err != nil {
		return nil, err
	}
	same, err := snn.SameBatchFraction(rel, labels)
	if err != nil {
		return nil, err
	}
	entropy, err := snn.MixingEntropy(rel, labels)
	if err != nil {
		return nil, err
	}

	return &dataio.Mixing{
		K:                 k,
		SameBatch:         same,
		ExpectedSameBatch: snn.ExpectedSameBatchFraction(labels),
		Entropy:           entropy,
	}, nil
}

// searchOptions converts the configured search section.
func searchOptions(cfg *config.Config) []neighbors.Option {
	metric, _ := neighbors.ParseMetric(cfg.Search.Metric)
	index, _ := neighbors.ParseIndex(cfg.Search.Index)
	opts := []neighbors.Option{neighbors.WithMetric(metric), neighbors.WithIndex(index)}
	if cfg.Search.Workers > 0 {
		opts = append(opts, neighbors.WithWorkers(cfg.Search.Workers))
	}

	return opts
}
