// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MNNCORRECT_"

// applyEnvOverrides applies MNNCORRECT_* variables. Unset or empty
// variables leave the value unchanged.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"SPACE":       &c.Merge.Space,
		"SOLVER":      &c.PCA.Solver,
		"SMOOTHING":   &c.Correction.Smoothing,
		"METRIC":      &c.Search.Metric,
		"INDEX":       &c.Search.Index,
		"DELIMITER":   &c.Input.Delimiter,
		"GENES":       &c.Input.Genes,
		"COORDINATES": &c.Output.Coordinates,
		"EXPRESSION":  &c.Output.Expression,
		"DIAGNOSTICS": &c.Output.Diagnostics,
		"LOG_LEVEL":   &c.Logging.Level,
	}
	for key, dst := range strs {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"K":          &c.Merge.K,
		"MIN_PAIRS":  &c.Merge.MinPairs,
		"COMPONENTS": &c.PCA.Components,
		"BIO_DIMS":   &c.Correction.BioDims,
		"WORKERS":    &c.Search.Workers,
		"PRECISION":  &c.Output.Precision,
		"TOP_GENES":  &c.Input.TopGenes,
	}
	for key, dst := range ints {
		v := os.Getenv(EnvPrefix + key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(key, v)
		}
		*dst = n
	}

	if v := os.Getenv(EnvPrefix + "SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return envError("SEED", v)
		}
		c.PCA.Seed = n
	}
	if v := os.Getenv(EnvPrefix + "SIGMA"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("SIGMA", v)
		}
		c.Correction.Sigma = f
	}
	bools := map[string]*bool{
		"COSINE_NORM": &c.Merge.CosineNorm,
		"AUTO_ORDER":  &c.Merge.AutoOrder,
	}
	for key, dst := range bools {
		v := os.Getenv(EnvPrefix + key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError(key, v)
		}
		*dst = b
	}
	if v := os.Getenv(EnvPrefix + "ORDER"); v != "" {
		c.Merge.Order = nil
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.Merge.Order = append(c.Merge.Order, name)
			}
		}
	}

	return nil
}

func envError(key, value string) error {
	return fmt.Errorf("config: %s%s=%q: %w", EnvPrefix, key, value, ErrConfig)
}
