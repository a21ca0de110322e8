// SPDX-License-Identifier: MIT

package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/katalvlaran/mnncorrect/dataio"
	"github.com/katalvlaran/mnncorrect/merge"
)

type correctFlags struct {
	k           int
	components  int
	order       []string
	autoOrder   bool
	space       string
	genes       string
	topGenes    int
	coordinates string
	expression  string
	diagnostics string
	mixingK     int
}

func (a *app) correctCmd() *cobra.Command {
	var f correctFlags
	cmd := &cobra.Command{
		Use:   "correct <table>",
		Short: "Merge all batches of a table and write corrected outputs",
		Long: `Merge every batch of the input table into a common space.

Without any output path the corrected coordinates are written to stdout.
Use --order (batch names, reference first) or --auto-order to control the
merge order; the order used is recorded in the diagnostics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.applyCorrectFlags(cmd, f)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runCorrect(cmd, args[0], f.mixingK)
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.k, "k", 0, "neighbours searched in each direction (default from config)")
	fl.IntVar(&f.components, "components", 0, "embedding dimension (default from config)")
	fl.StringSliceVar(&f.order, "order", nil, "merge order as batch names, reference first")
	fl.BoolVar(&f.autoOrder, "auto-order", false, "merge the batch with most mutual pairs next")
	fl.StringVar(&f.space, "space", "", `correction space: "expression" or "embedding"`)
	fl.StringVar(&f.genes, "genes", "", "gene list file restricting the features")
	fl.IntVar(&f.topGenes, "top-genes", 0, "keep only this many most variable genes")
	fl.StringVar(&f.coordinates, "coordinates", "", "write corrected coordinates to this file")
	fl.StringVar(&f.expression, "expression", "", "write corrected expression to this file")
	fl.StringVar(&f.diagnostics, "diagnostics", "", "write JSON diagnostics to this file")
	fl.IntVar(&f.mixingK, "mixing-k", 0, "add batch-mixing metrics over this many neighbours to the diagnostics")

	return cmd
}

// applyCorrectFlags lets explicitly set flags override the configuration.
func (a *app) applyCorrectFlags(cmd *cobra.Command, f correctFlags) {
	fl, c := cmd.Flags(), a.cfg
	if fl.Changed("k") {
		c.Merge.K = f.k
	}
	if fl.Changed("components") {
		c.PCA.Components = f.components
	}
	if fl.Changed("order") {
		c.Merge.Order = f.order
	}
	if fl.Changed("auto-order") {
		c.Merge.AutoOrder = f.autoOrder
	}
	if fl.Changed("space") {
		c.Merge.Space = f.space
	}
	if fl.Changed("genes") {
		c.Input.Genes = f.genes
	}
	if fl.Changed("top-genes") {
		c.Input.TopGenes = f.topGenes
	}
	if fl.Changed("coordinates") {
		c.Output.Coordinates = f.coordinates
	}
	if fl.Changed("expression") {
		c.Output.Expression = f.expression
	}
	if fl.Changed("diagnostics") {
		c.Output.Diagnostics = f.diagnostics
	}
}

func (a *app) runCorrect(cmd *cobra.Command, path string, mixingK int) error {
	ctx, cfg, log := cmd.Context(), a.cfg, a.logger
	ds, err := loadDataset(path, cfg)
	if err != nil {
		return err
	}
	log.Info("dataset loaded",
		zap.String("path", path),
		zap.Int("cells", ds.NumCells()),
		zap.Int("genes", len(ds.Genes)),
		zap.Strings("batches", ds.Batches))

	opts, err := cfg.MergeOptions(ds.Batches)
	if err != nil {
		return err
	}
	features, err := loadFeatures(ds, cfg)
	if err != nil {
		return err
	}
	if features != nil {
		opts = append(opts, merge.WithFeatures(features))
	}
	opts = append(opts, merge.WithLogger(log.Named("merge")))

	res, err := merge.Correct(ctx, ds.MergeBatches(), opts...)
	if err != nil {
		return err
	}

	prec := dataio.WithPrecision(cfg.Output.Precision)
	delim := dataio.WithDelimiter(cfg.Delimiter())
	writeCoords := func(w io.Writer) error {
		return dataio.WriteCoordinates(w, ds, res.Coordinates, prec, delim)
	}
	out := cfg.Output
	if out.Coordinates == "" && out.Expression == "" && out.Diagnostics == "" {
		return writeCoords(cmd.OutOrStdout())
	}
	if out.Coordinates != "" {
		if err = writeFile(out.Coordinates, writeCoords); err != nil {
			return err
		}
	}
	if out.Expression != "" {
		err = writeFile(out.Expression, func(w io.Writer) error {
			return dataio.WriteExpression(w, ds, res.Features, res.Expression, prec, delim)
		})
		if err != nil {
			return err
		}
	}
	if out.Diagnostics != "" {
		rep := dataio.NewReport(res, cfg.Merge.K, cfg.PCA.Components)
		if mixingK > 0 {
			if rep.Mixing, err = mixing(ctx, res.Coordinates, ds.BatchLabels(), mixingK, searchOptions(cfg)...); err != nil {
				return err
			}
		}
		if err = writeFile(out.Diagnostics, func(w io.Writer) error { return dataio.WriteDiagnostics(w, rep) }); err != nil {
			return err
		}
	}
	log.Info("correction written",
		zap.Ints("order", res.Order),
		zap.String("coordinates", out.Coordinates),
		zap.String("expression", out.Expression),
		zap.String("diagnostics", out.Diagnostics))

	return nil
}
