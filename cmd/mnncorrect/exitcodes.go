// SPDX-License-Identifier: MIT

package main

import (
	"errors"

	"github.com/katalvlaran/mnncorrect"
	"github.com/katalvlaran/mnncorrect/config"
)

// Exit codes.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (bad arguments, I/O failure)
	ExitConfigError = 2 // Configuration file or environment rejected
	ExitDataError   = 3 // Malformed input table or invalid parameters for it
	ExitNoPairs     = 4 // A merge step found no (or too few) mutual nearest neighbours
	ExitNumerical   = 5 // Factorisation failed or produced non-finite values
)

// exitCode maps an error onto the exit codes above.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrConfig):
		return ExitConfigError
	case errors.Is(err, mnncorrect.ErrNoMutualNeighbors):
		return ExitNoPairs
	case errors.Is(err, mnncorrect.ErrNumericalInstability):
		return ExitNumerical
	case errors.Is(err, mnncorrect.ErrInvalidInput):
		return ExitDataError
	default:
		return ExitError
	}
}
