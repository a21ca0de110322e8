// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/katalvlaran/mnncorrect/dataio"
	"github.com/katalvlaran/mnncorrect/matrix"
	"github.com/katalvlaran/mnncorrect/mnn"
	"github.com/katalvlaran/mnncorrect/neighbors"
	"github.com/katalvlaran/mnncorrect/pca"
)

// PairCount is one row of the pairs report.
type PairCount struct {
	K              int `json:"k"`
	Pairs          int `json:"pairs"`
	ReferenceCells int `json:"reference_cells"`
	TargetCells    int `json:"target_cells"`
}

// PairsResponse is the output of the pairs command.
type PairsResponse struct {
	Reference string      `json:"reference"`
	Target    string      `json:"target"`
	Counts    []PairCount `json:"counts"`
}

func (a *app) pairsCmd() *cobra.Command {
	var (
		reference, target string
		ks                []int
	)
	cmd := &cobra.Command{
		Use:   "pairs <table>",
		Short: "Count mutual nearest neighbour pairs between two batches for several k",
		Long: `Embed two batches jointly and report, for each k, how many mutual
nearest neighbour pairs they share and how many cells of each side take
part. Use it to pick k before running correct.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg := cmd.Context(), a.cfg
			ds, err := loadDataset(args[0], cfg)
			if err != nil {
				return err
			}
			if len(ds.Batches) < 2 {
				return fmt.Errorf("pairs needs two batches, table has %d: %w", len(ds.Batches), dataio.ErrEmpty)
			}
			if reference == "" {
				reference = ds.Batches[0]
			}
			if target == "" {
				target = ds.Batches[1]
			}
			ra, err := ds.BatchIndex(reference)
			if err != nil {
				return err
			}
			tb, err := ds.BatchIndex(target)
			if err != nil {
				return err
			}
			features, err := loadFeatures(ds, cfg)
			if err != nil {
				return err
			}

			coords, err := a.embedPair(ds.Matrices[ra], ds.Matrices[tb], features)
			if err != nil {
				return err
			}
			resp := PairsResponse{Reference: reference, Target: target}
			for _, k := range ks {
				aToB, bToA, err := neighbors.FindMutualInputs(ctx, coords[0], coords[1], k, searchOptions(cfg)...)
				if err != nil {
					return fmt.Errorf("k=%d: %w", k, err)
				}
				ps, err := mnn.MutualPairs(aToB, bToA)
				if err != nil {
					return err
				}
				a.logger.Debug("pairs counted", zap.Int("k", k), zap.Int("pairs", ps.Len()))
				resp.Counts = append(resp.Counts, PairCount{
					K:              k,
					Pairs:          ps.Len(),
					ReferenceCells: len(ps.ReferenceCells()),
					TargetCells:    len(ps.TargetCells()),
				})
			}

			return outputJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "reference batch name (default: first batch)")
	cmd.Flags().StringVar(&target, "target", "", "target batch name (default: second batch)")
	cmd.Flags().IntSliceVar(&ks, "k", []int{5, 10, 20, 50}, "neighbour counts to try")

	return cmd
}

// embedPair fits the configured projector on both batches and returns
// their coordinates.
func (a *app) embedPair(ref, tgt *matrix.Dense, features []int) ([]*matrix.Dense, error) {
	cfg := a.cfg
	inputs := []*matrix.Dense{ref, tgt}
	if cfg.Merge.CosineNorm {
		for i, X := range inputs {
			Y, _, err := matrix.NormalizeRowsL2(X)
			if err != nil {
				return nil, err
			}
			inputs[i] = Y
		}
	}
	stacked, err := matrix.VStack(inputs...)
	if err != nil {
		return nil, err
	}
	solver, _ := pca.ParseSolver(cfg.PCA.Solver)
	opts := []pca.Option{
		pca.WithComponents(cfg.PCA.Components),
		pca.WithSolver(solver),
		pca.WithSeed(cfg.PCA.Seed),
	}
	if features != nil {
		opts = append(opts, pca.WithFeatures(features))
	}
	proj, err := pca.Fit(stacked, opts...)
	if err != nil {
		return nil, err
	}
	embedded, err := proj.Project(stacked)
	if err != nil {
		return nil, err
	}

	return matrix.SplitRows(embedded, ref.Rows(), tgt.Rows())
}
