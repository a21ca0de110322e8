// SPDX-License-Identifier: MIT

package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/katalvlaran/mnncorrect/dataio"
	"github.com/katalvlaran/mnncorrect/matrix"
	"github.com/katalvlaran/mnncorrect/snn"
)

// ClusterResponse is the output of the cluster command.
type ClusterResponse struct {
	Cells     int            `json:"cells"`
	K         int            `json:"k"`
	MinWeight float64        `json:"min_weight"`
	Edges     int            `json:"edges"`
	Clusters  int            `json:"clusters"`
	Sizes     []int          `json:"sizes"`
	Mixing    *dataio.Mixing `json:"mixing"`
}

func (a *app) clusterCmd() *cobra.Command {
	var (
		k         int
		minWeight float64
		labels    string
	)
	cmd := &cobra.Command{
		Use:   "cluster <coordinates>",
		Short: "Cluster a coordinates table on its shared-nearest-neighbour graph",
		Long: `Build the shared-nearest-neighbour graph of a coordinates table (as
written by correct), cut edges lighter than --min-weight and report the
connected components together with batch-mixing metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg := cmd.Context(), a.cfg
			ds, err := loadDataset(args[0], cfg)
			if err != nil {
				return err
			}
			all, err := matrix.VStack(ds.Matrices...)
			if err != nil {
				return err
			}
			g, err := snn.Build(ctx, all, k, searchOptions(cfg)...)
			if err != nil {
				return err
			}
			comp, n, err := g.Components(minWeight)
			if err != nil {
				return err
			}
			resp := ClusterResponse{
				Cells:     all.Rows(),
				K:         k,
				MinWeight: minWeight,
				Edges:     g.NumEdges(),
				Clusters:  n,
				Sizes:     make([]int, n),
			}
			for _, c := range comp {
				resp.Sizes[c]++
			}
			if len(ds.Batches) > 1 && k > 1 {
				// Same neighbourhoods as the graph: k cells, the cell itself included.
				if resp.Mixing, err = mixing(ctx, ds.Matrices, ds.BatchLabels(), k-1, searchOptions(cfg)...); err != nil {
					return err
				}
				resp.Mixing.Clusters = n
			}
			a.logger.Info("clusters found",
				zap.Int("cells", resp.Cells),
				zap.Int("edges", resp.Edges),
				zap.Int("clusters", n))

			if labels != "" {
				err = writeFile(labels, func(w io.Writer) error {
					return dataio.WriteLabels(w, ds, "cluster", comp, dataio.WithDelimiter(cfg.Delimiter()))
				})
				if err != nil {
					return err
				}
			}

			return outputJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().IntVar(&k, "k", 10, "neighbours per cell (the cell itself included)")
	cmd.Flags().Float64Var(&minWeight, "min-weight", 0.2, "drop edges whose Jaccard weight is below this")
	cmd.Flags().StringVar(&labels, "labels", "", "write cell,batch,cluster to this file")

	return cmd
}
