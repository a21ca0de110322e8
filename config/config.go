// SPDX-License-Identifier: MIT

// Package config loads mnncorrect run settings from YAML with environment
// overrides and converts them into merge options.
//
// Precedence, lowest first: built-in defaults, the YAML file, MNNCORRECT_*
// environment variables (optionally seeded from a .env file), command-line
// flags applied by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/katalvlaran/mnncorrect"
	"github.com/katalvlaran/mnncorrect/merge"
	"github.com/katalvlaran/mnncorrect/mnn"
	"github.com/katalvlaran/mnncorrect/neighbors"
	"github.com/katalvlaran/mnncorrect/pca"
)

// ErrConfig marks every configuration error: unreadable or malformed
// files, bad environment values and failed validation.
var ErrConfig = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "config: invalid configuration")

// Config is the full run configuration.
type Config struct {
	Merge      MergeConfig      `yaml:"merge"`
	PCA        PCAConfig        `yaml:"pca"`
	Correction CorrectionConfig `yaml:"correction"`
	Search     SearchConfig     `yaml:"search"`
	Input      InputConfig      `yaml:"input"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// MergeConfig controls the merge loop.
type MergeConfig struct {
	K        int `yaml:"k"`
	MinPairs int `yaml:"min_pairs"`
	// Order lists batch names, reference first. Empty means input order.
	Order     []string `yaml:"order,omitempty"`
	AutoOrder bool     `yaml:"auto_order"`
	// Space is "expression" or "embedding".
	Space      string `yaml:"space"`
	CosineNorm bool   `yaml:"cosine_norm"`
}

// PCAConfig controls the projector.
type PCAConfig struct {
	Components int `yaml:"components"`
	// Solver is "svd", "eigen" or "randomized".
	Solver string `yaml:"solver"`
	Seed   int64  `yaml:"seed"`
}

// CorrectionConfig controls the correction estimator.
type CorrectionConfig struct {
	Sigma float64 `yaml:"sigma"`
	// Smoothing is "local" or "global".
	Smoothing string `yaml:"smoothing"`
	BioDims   int    `yaml:"bio_dims"`
}

// SearchConfig controls the neighbour finder.
type SearchConfig struct {
	// Metric is "euclidean" or "cosine"; Index is "kdtree" or "brute".
	Metric string `yaml:"metric"`
	Index  string `yaml:"index"`
	// Workers bounds parallel queries; 0 uses GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// InputConfig describes the expression table.
type InputConfig struct {
	Delimiter string `yaml:"delimiter"`
	// Genes is an optional gene list file restricting the features.
	Genes string `yaml:"genes,omitempty"`
	// TopGenes keeps only the n most variable genes (of the list, when one
	// is given); 0 keeps them all.
	TopGenes int `yaml:"top_genes,omitempty"`
}

// OutputConfig names the result files; empty paths are not written.
type OutputConfig struct {
	Coordinates string `yaml:"coordinates,omitempty"`
	Expression  string `yaml:"expression,omitempty"`
	Diagnostics string `yaml:"diagnostics,omitempty"`
	// Precision is the significant digits written; -1 is exact.
	Precision int `yaml:"precision"`
}

// LoggingConfig sets the zap level ("debug", "info", "warn", "error").
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	md := mnn.DefaultOptions()

	return &Config{
		Merge:      MergeConfig{K: 20, MinPairs: 1, Space: merge.SpaceExpression.String()},
		PCA:        PCAConfig{Components: 50, Solver: pca.SolverSVD.String(), Seed: 1},
		Correction: CorrectionConfig{Sigma: md.Sigma, Smoothing: md.Smoothing.String(), BioDims: md.BioDims},
		Search:     SearchConfig{Metric: neighbors.Euclidean.String(), Index: neighbors.KDTree.String()},
		Input:      InputConfig{Delimiter: ","},
		Output:     OutputConfig{Precision: -1},
		Logging:    LoggingConfig{Level: "info"},
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and the MNNCORRECT_* environment. The result is
// validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %v: %w", path, err, ErrConfig)
		}
		if err = cfg.decode(data); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decode overlays YAML onto cfg; unknown keys are rejected and an empty
// document leaves cfg unchanged.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%v: %w", err, ErrConfig)
	}

	return nil
}

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none)
// into the process environment without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: %s: %v: %w", f, err, ErrConfig)
		}
	}

	return nil
}

// Save writes c as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}

	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("config: "+format+": %w", append(args, ErrConfig)...)
	}
	switch {
	case c.Merge.K < 1:
		return bad("merge.k=%d must be at least 1", c.Merge.K)
	case c.Merge.MinPairs < 1:
		return bad("merge.min_pairs=%d must be at least 1", c.Merge.MinPairs)
	case c.Merge.AutoOrder && len(c.Merge.Order) > 0:
		return bad("merge.order and merge.auto_order are exclusive")
	case c.PCA.Components < 1:
		return bad("pca.components=%d must be at least 1", c.PCA.Components)
	case !(c.Correction.Sigma > 0):
		return bad("correction.sigma=%g must be positive", c.Correction.Sigma)
	case c.Correction.BioDims < 0:
		return bad("correction.bio_dims=%d must not be negative", c.Correction.BioDims)
	case c.Input.TopGenes < 0:
		return bad("input.top_genes=%d must not be negative", c.Input.TopGenes)
	case c.Search.Workers < 0:
		return bad("search.workers=%d must not be negative", c.Search.Workers)
	case len([]rune(c.Input.Delimiter)) != 1:
		return bad("input.delimiter %q must be one character", c.Input.Delimiter)
	case c.Output.Precision < -1:
		return bad("output.precision=%d must be -1 or more", c.Output.Precision)
	}
	seen := make(map[string]bool, len(c.Merge.Order))
	for _, name := range c.Merge.Order {
		if seen[name] {
			return bad("merge.order names %q twice", name)
		}
		seen[name] = true
	}
	if _, err := merge.ParseSpace(c.Merge.Space); err != nil {
		return bad("merge.space %q", c.Merge.Space)
	}
	if _, err := pca.ParseSolver(c.PCA.Solver); err != nil {
		return bad("pca.solver %q", c.PCA.Solver)
	}
	if _, err := mnn.ParseSmoothing(c.Correction.Smoothing); err != nil {
		return bad("correction.smoothing %q", c.Correction.Smoothing)
	}
	if _, err := neighbors.ParseMetric(c.Search.Metric); err != nil {
		return bad("search.metric %q", c.Search.Metric)
	}
	if _, err := neighbors.ParseIndex(c.Search.Index); err != nil {
		return bad("search.index %q", c.Search.Index)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return bad("logging.level %q", c.Logging.Level)
	}

	return nil
}

// Level returns the configured log level (info when unparsable).
func (c *Config) Level() zapcore.Level {
	l, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return zapcore.InfoLevel
	}

	return l
}

// Delimiter returns the input delimiter rune.
func (c *Config) Delimiter() rune {
	for _, r := range c.Input.Delimiter {
		return r
	}

	return ','
}

// MergeOptions converts c into merge options. batches are the dataset's
// batch names, used to resolve merge.order.
func (c *Config) MergeOptions(batches []string) ([]merge.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	// Validate has accepted every name, so the parse errors below are nil.
	space, _ := merge.ParseSpace(c.Merge.Space)
	solver, _ := pca.ParseSolver(c.PCA.Solver)
	smoothing, _ := mnn.ParseSmoothing(c.Correction.Smoothing)
	metric, _ := neighbors.ParseMetric(c.Search.Metric)
	index, _ := neighbors.ParseIndex(c.Search.Index)

	opts := []merge.Option{
		merge.WithK(c.Merge.K),
		merge.WithMinPairs(c.Merge.MinPairs),
		merge.WithSpace(space),
		merge.WithCosineNorm(c.Merge.CosineNorm),
		merge.WithComponents(c.PCA.Components),
		merge.WithSolver(solver),
		merge.WithSeed(c.PCA.Seed),
		merge.WithSigma(c.Correction.Sigma),
		merge.WithSmoothing(smoothing),
		merge.WithBioDims(c.Correction.BioDims),
		merge.WithMetric(metric),
		merge.WithIndex(index),
	}
	if c.Search.Workers > 0 {
		opts = append(opts, merge.WithWorkers(c.Search.Workers))
	}
	if c.Merge.AutoOrder {
		opts = append(opts, merge.WithAutoOrder())
	}
	if len(c.Merge.Order) > 0 {
		order, err := resolveOrder(c.Merge.Order, batches)
		if err != nil {
			return nil, err
		}
		opts = append(opts, merge.WithOrder(order))
	}

	return opts, nil
}

func resolveOrder(names, batches []string) ([]int, error) {
	idx := make(map[string]int, len(batches))
	for b, n := range batches {
		idx[n] = b
	}
	order := make([]int, len(names))
	for i, n := range names {
		b, ok := idx[n]
		if !ok {
			return nil, fmt.Errorf("config: merge.order names unknown batch %q: %w", n, ErrConfig)
		}
		order[i] = b
	}

	return order, nil
}
